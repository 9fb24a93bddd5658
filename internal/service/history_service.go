package service

import (
	"context"
	"fmt"
	"time"

	"github.com/nsabot/updatescanner/internal/model"
	"go.mongodb.org/mongo-driver/bson"
)

// ScanHistoryRepository lists stored scan records
type ScanHistoryRepository interface {
	List(ctx context.Context, filter bson.M, page, limit int) ([]model.ScanRecord, int64, error)
}

// HistoryFilter narrows a scan history listing. Empty fields match everything.
type HistoryFilter struct {
	PageID  string
	BatchID string
	State   string
	From    string
	To      string
}

// HistoryService handles scan history queries
type HistoryService struct {
	repo ScanHistoryRepository
}

// NewHistoryService creates a new history service
func NewHistoryService(repo ScanHistoryRepository) *HistoryService {
	return &HistoryService{
		repo: repo,
	}
}

// List retrieves scan history with filtering, newest first
func (s *HistoryService) List(ctx context.Context, f HistoryFilter, page, limit int) ([]model.ScanRecordSummary, int64, error) {
	filter := bson.M{}

	if f.PageID != "" {
		filter["page_id"] = f.PageID
	}
	if f.BatchID != "" {
		filter["batch_id"] = f.BatchID
	}
	if f.State != "" {
		filter["state"] = f.State
	}

	scannedAt, err := timeRange(f.From, f.To)
	if err != nil {
		return nil, 0, err
	}
	if scannedAt != nil {
		filter["scanned_at"] = scannedAt
	}

	records, total, err := s.repo.List(ctx, filter, page, limit)
	if err != nil {
		return nil, 0, err
	}

	summaries := make([]model.ScanRecordSummary, len(records))
	for i := range records {
		summaries[i] = records[i].ToSummary()
	}

	return summaries, total, nil
}

// timeRange builds a $gte/$lte filter from RFC 3339 bounds
func timeRange(from, to string) (bson.M, error) {
	if from == "" && to == "" {
		return nil, nil
	}

	r := bson.M{}
	if from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid from: %v", ErrValidation, err)
		}
		r["$gte"] = t
	}
	if to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid to: %v", ErrValidation, err)
		}
		r["$lte"] = t
	}
	return r, nil
}
