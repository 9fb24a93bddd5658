package database

import (
	"context"
	"fmt"
	"time"

	"github.com/nsabot/updatescanner/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ScanHistoryRepository handles scan history operations
type ScanHistoryRepository struct {
	collection *mongo.Collection
}

// NewScanHistoryRepository creates a new scan history repository
func NewScanHistoryRepository(db *MongoDB) *ScanHistoryRepository {
	return &ScanHistoryRepository{
		collection: db.GetCollection(CollectionScanHistory),
	}
}

// Create inserts a new scan record
func (r *ScanHistoryRepository) Create(ctx context.Context, record *model.ScanRecord) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// Ensure ID is generated if not set
	if record.ID.IsZero() {
		record.ID = primitive.NewObjectID()
	}

	if _, err := r.collection.InsertOne(ctxTimeout, record); err != nil {
		return fmt.Errorf("failed to create scan record: %w", err)
	}

	return nil
}

// List retrieves scan records with filtering and pagination, newest first
func (r *ScanHistoryRepository) List(ctx context.Context, filter bson.M, page, limit int) ([]model.ScanRecord, int64, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	// Count total documents
	total, err := r.collection.CountDocuments(ctxTimeout, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count scan records: %w", err)
	}

	// Calculate pagination
	skip := (page - 1) * limit
	opts := options.Find().
		SetSkip(int64(skip)).
		SetLimit(int64(limit)).
		SetSort(bson.D{{Key: "scanned_at", Value: -1}})

	// Find documents
	cursor, err := r.collection.Find(ctxTimeout, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list scan records: %w", err)
	}
	defer cursor.Close(ctxTimeout)

	var records []model.ScanRecord
	if err := cursor.All(ctxTimeout, &records); err != nil {
		return nil, 0, fmt.Errorf("failed to decode scan records: %w", err)
	}

	return records, total, nil
}

// DeleteByPage removes the history of a deleted page
func (r *ScanHistoryRepository) DeleteByPage(ctx context.Context, pageID string) (int64, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	result, err := r.collection.DeleteMany(ctxTimeout, bson.M{"page_id": pageID})
	if err != nil {
		return 0, fmt.Errorf("failed to delete scan records: %w", err)
	}

	return result.DeletedCount, nil
}
