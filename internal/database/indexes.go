package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CreateIndexes creates all necessary indexes for the collections
func CreateIndexes(ctx context.Context, db *MongoDB) error {
	slog.Info("Creating MongoDB indexes")

	for _, c := range []struct {
		name    string
		indexes []mongo.IndexModel
	}{
		{CollectionPages, pageIndexes()},
		{CollectionPageHTML, pageHTMLIndexes()},
		{CollectionScanHistory, scanHistoryIndexes()},
		{CollectionNotifications, notificationIndexes()},
		{CollectionScanLocks, scanLockIndexes()},
	} {
		if err := createIndexes(ctx, db, c.name, c.indexes); err != nil {
			return err
		}
	}

	slog.Info("Successfully created all MongoDB indexes")
	return nil
}

func createIndexes(ctx context.Context, db *MongoDB, collection string, indexes []mongo.IndexModel) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := db.GetCollection(collection).Indexes().CreateMany(ctxTimeout, indexes); err != nil {
		return fmt.Errorf("failed to create %s indexes: %w", collection, err)
	}

	slog.Info("Created indexes", "collection", collection)
	return nil
}

func pageIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "parent_id", Value: 1}},
			Options: options.Index().SetName("idx_parent_id"),
		},
		{
			Keys:    bson.D{{Key: "type", Value: 1}},
			Options: options.Index().SetName("idx_type"),
		},
	}
}

func pageHTMLIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "page_id", Value: 1}},
			Options: options.Index().SetName("idx_page_id"),
		},
	}
}

func scanHistoryIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "page_id", Value: 1},
				{Key: "scanned_at", Value: -1},
			},
			Options: options.Index().SetName("idx_page_id_scanned_at"),
		},
		{
			Keys:    bson.D{{Key: "batch_id", Value: 1}},
			Options: options.Index().SetName("idx_batch_id"),
		},
		{
			Keys:    bson.D{{Key: "scanned_at", Value: -1}},
			Options: options.Index().SetName("idx_scanned_at"),
		},
		{
			Keys: bson.D{
				{Key: "state", Value: 1},
				{Key: "scanned_at", Value: -1},
			},
			Options: options.Index().SetName("idx_state_scanned_at"),
		},
	}
}

func notificationIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "batch_id", Value: 1}},
			Options: options.Index().SetName("idx_batch_id"),
		},
		{
			Keys:    bson.D{{Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_created_at"),
		},
		{
			Keys: bson.D{
				{Key: "acknowledgment_status", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("idx_acknowledgment_status_created_at"),
		},
	}
}

func scanLockIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("idx_expires_at_ttl"),
		},
		{
			Keys:    bson.D{{Key: "locked_by", Value: 1}},
			Options: options.Index().SetName("idx_locked_by"),
		},
	}
}
