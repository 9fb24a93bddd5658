package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ScanTrigger records what started a scan
type ScanTrigger string

const (
	TriggerAutoscan ScanTrigger = "autoscan"
	TriggerManual   ScanTrigger = "manual"
)

// ScanRecord is the scan history entry for one page in one batch
type ScanRecord struct {
	ID            primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	BatchID       string             `json:"batch_id" bson:"batch_id"`
	PageID        string             `json:"page_id" bson:"page_id"`
	PageTitle     string             `json:"page_title" bson:"page_title"`
	URL           string             `json:"url" bson:"url"`
	Trigger       ScanTrigger        `json:"trigger" bson:"trigger"`
	State         ScanState          `json:"state" bson:"state"`
	StatusCode    int                `json:"status_code,omitempty" bson:"status_code,omitempty"`
	ContentLength int                `json:"content_length" bson:"content_length"`
	DurationMs    int64              `json:"duration_ms" bson:"duration_ms"`
	Error         string             `json:"error,omitempty" bson:"error,omitempty"`
	ScannedAt     time.Time          `json:"scanned_at" bson:"scanned_at"`
}

// ScanRecordSummary represents a summary for list responses
type ScanRecordSummary struct {
	BatchID    string `json:"batch_id"`
	PageID     string `json:"page_id"`
	PageTitle  string `json:"page_title"`
	Trigger    string `json:"trigger"`
	State      string `json:"state"`
	StatusCode int    `json:"status_code,omitempty"`
	DurationMs int64  `json:"duration_ms"`
	ScannedAt  string `json:"scanned_at"`
}

// ToSummary converts ScanRecord to ScanRecordSummary
func (sr *ScanRecord) ToSummary() ScanRecordSummary {
	var scannedAt string
	if !sr.ScannedAt.IsZero() {
		scannedAt = sr.ScannedAt.Format(time.RFC3339)
	}

	return ScanRecordSummary{
		BatchID:    sr.BatchID,
		PageID:     sr.PageID,
		PageTitle:  sr.PageTitle,
		Trigger:    string(sr.Trigger),
		State:      string(sr.State),
		StatusCode: sr.StatusCode,
		DurationMs: sr.DurationMs,
		ScannedAt:  scannedAt,
	}
}
