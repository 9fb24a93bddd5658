package service

import (
	"context"
	"fmt"
	"time"

	"github.com/nsabot/updatescanner/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NotificationRepository stores change notification logs
type NotificationRepository interface {
	Create(ctx context.Context, n *model.Notification) error
	List(ctx context.Context, filter bson.M, page, limit int) ([]model.Notification, int64, error)
	Acknowledge(ctx context.Context, id primitive.ObjectID, acknowledgedBy string, acknowledgedAt time.Time) error
}

// NotificationService handles notification log queries
type NotificationService struct {
	repo NotificationRepository
}

// NewNotificationService creates a new notification service
func NewNotificationService(repo NotificationRepository) *NotificationService {
	return &NotificationService{
		repo: repo,
	}
}

// List retrieves notification logs with filtering
func (s *NotificationService) List(ctx context.Context, status, acknowledgmentStatus, from, to string, page, limit int) ([]model.NotificationSummary, int64, error) {
	filter := bson.M{}

	if status != "" {
		filter["final_status"] = status
	}

	if acknowledgmentStatus != "" {
		// logs written before acknowledgement existed have no status
		if acknowledgmentStatus == "open" {
			filter["$or"] = []bson.M{
				{"acknowledgment_status": "open"},
				{"acknowledgment_status": bson.M{"$exists": false}},
				{"acknowledgment_status": ""},
			}
		} else {
			filter["acknowledgment_status"] = acknowledgmentStatus
		}
	}

	createdAt, err := timeRange(from, to)
	if err != nil {
		return nil, 0, err
	}
	if createdAt != nil {
		filter["created_at"] = createdAt
	}

	notifications, total, err := s.repo.List(ctx, filter, page, limit)
	if err != nil {
		return nil, 0, err
	}

	summaries := make([]model.NotificationSummary, len(notifications))
	for i := range notifications {
		summaries[i] = notifications[i].ToSummary()
	}

	return summaries, total, nil
}

// Acknowledge marks a notification as acknowledged
func (s *NotificationService) Acknowledge(ctx context.Context, id, acknowledgedBy string) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: invalid notification ID", ErrValidation)
	}

	if acknowledgedBy == "" {
		return fmt.Errorf("%w: acknowledged_by is required", ErrValidation)
	}

	return s.repo.Acknowledge(ctx, objID, acknowledgedBy, time.Now().UTC())
}
