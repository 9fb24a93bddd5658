package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nsabot/updatescanner/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// NotificationRepository handles change notification logs
type NotificationRepository struct {
	collection *mongo.Collection
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *MongoDB) *NotificationRepository {
	return &NotificationRepository{
		collection: db.GetCollection(CollectionNotifications),
	}
}

// Create inserts a new notification log
func (r *NotificationRepository) Create(ctx context.Context, n *model.Notification) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// Ensure ID is generated if not set
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}

	// New notifications start open
	if n.AcknowledgmentStatus == "" {
		n.AcknowledgmentStatus = "open"
	}

	if _, err := r.collection.InsertOne(ctxTimeout, n); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	return nil
}

// GetByID retrieves a notification log by ID
func (r *NotificationRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*model.Notification, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var n model.Notification
	err := r.collection.FindOne(ctxTimeout, bson.M{"_id": id}).Decode(&n)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("notification %s: %w", id.Hex(), ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}

	return &n, nil
}

// List retrieves notification logs with filtering and pagination, newest first
func (r *NotificationRepository) List(ctx context.Context, filter bson.M, page, limit int) ([]model.Notification, int64, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	// Count total documents
	total, err := r.collection.CountDocuments(ctxTimeout, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	// Calculate pagination
	skip := (page - 1) * limit
	opts := options.Find().
		SetSkip(int64(skip)).
		SetLimit(int64(limit)).
		SetSort(bson.D{{Key: "created_at", Value: -1}})

	// Find documents
	cursor, err := r.collection.Find(ctxTimeout, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer cursor.Close(ctxTimeout)

	var notifications []model.Notification
	if err := cursor.All(ctxTimeout, &notifications); err != nil {
		return nil, 0, fmt.Errorf("failed to decode notifications: %w", err)
	}

	return notifications, total, nil
}

// Acknowledge marks a notification as acknowledged
func (r *NotificationRepository) Acknowledge(ctx context.Context, id primitive.ObjectID, acknowledgedBy string, acknowledgedAt time.Time) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	update := bson.M{
		"$set": bson.M{
			"acknowledgment_status": "acknowledged",
			"acknowledged_by":       acknowledgedBy,
			"acknowledged_at":       acknowledgedAt,
		},
	}

	result, err := r.collection.UpdateOne(ctxTimeout, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to acknowledge notification: %w", err)
	}

	if result.MatchedCount == 0 {
		return fmt.Errorf("notification %s: %w", id.Hex(), ErrNotFound)
	}

	return nil
}
