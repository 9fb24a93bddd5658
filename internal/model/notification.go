package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DeliveryAttempt represents a single webhook delivery attempt
type DeliveryAttempt struct {
	AttemptNumber int       `json:"attempt_number" bson:"attempt_number"`
	Timestamp     time.Time `json:"timestamp" bson:"timestamp"`
	StatusCode    int       `json:"status_code,omitempty" bson:"status_code,omitempty"`
	ResponseBody  string    `json:"response_body,omitempty" bson:"response_body,omitempty"`
	Error         string    `json:"error,omitempty" bson:"error,omitempty"`
	DurationMs    int64     `json:"duration_ms" bson:"duration_ms"`
}

// ChangedPage identifies a page reported in a change notification
type ChangedPage struct {
	PageID string `json:"page_id" bson:"page_id"`
	Title  string `json:"title" bson:"title"`
	URL    string `json:"url" bson:"url"`
}

// Notification is the delivery log of one change notification
type Notification struct {
	ID                   primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	BatchID              string             `json:"batch_id" bson:"batch_id"`
	WebhookURL           string             `json:"webhook_url" bson:"webhook_url"`
	Text                 string             `json:"text" bson:"text"`
	Pages                []ChangedPage      `json:"pages" bson:"pages"`
	Attempts             []DeliveryAttempt  `json:"attempts" bson:"attempts"`
	FinalStatus          string             `json:"final_status" bson:"final_status"`                           // "delivered", "failed", "retrying"
	AcknowledgmentStatus string             `json:"acknowledgment_status" bson:"acknowledgment_status"`         // "open", "acknowledged"
	AcknowledgedBy       string             `json:"acknowledged_by,omitempty" bson:"acknowledged_by,omitempty"` // email/username
	AcknowledgedAt       time.Time          `json:"acknowledged_at,omitempty" bson:"acknowledged_at,omitempty"`
	CreatedAt            time.Time          `json:"created_at" bson:"created_at"`
	CompletedAt          time.Time          `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
}

// NotificationSummary represents a summary for list responses
type NotificationSummary struct {
	ID                   string `json:"id"`
	BatchID              string `json:"batch_id"`
	FinalStatus          string `json:"final_status"`
	AcknowledgmentStatus string `json:"acknowledgment_status"`
	AcknowledgedBy       string `json:"acknowledged_by,omitempty"`
	PagesCount           int    `json:"pages_count"`
	AttemptsCount        int    `json:"attempts_count"`
	CreatedAt            string `json:"created_at"`
}

// ToSummary converts Notification to NotificationSummary
func (n *Notification) ToSummary() NotificationSummary {
	ackStatus := n.AcknowledgmentStatus
	if ackStatus == "" {
		ackStatus = "open"
	}

	var createdAt string
	if !n.CreatedAt.IsZero() {
		createdAt = n.CreatedAt.Format(time.RFC3339)
	}

	return NotificationSummary{
		ID:                   n.ID.Hex(),
		BatchID:              n.BatchID,
		FinalStatus:          n.FinalStatus,
		AcknowledgmentStatus: ackStatus,
		AcknowledgedBy:       n.AcknowledgedBy,
		PagesCount:           len(n.Pages),
		AttemptsCount:        len(n.Attempts),
		CreatedAt:            createdAt,
	}
}
