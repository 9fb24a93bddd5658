package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nsabot/updatescanner/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// LockRepository handles per-page scan locks shared by every scanner instance
type LockRepository struct {
	collection *mongo.Collection
}

// NewLockRepository creates a new lock repository
func NewLockRepository(db *MongoDB) *LockRepository {
	return &LockRepository{
		collection: db.GetCollection(CollectionScanLocks),
	}
}

// AcquireLock attempts to lock a page for scanning.
// Returns false without error when another owner holds an unexpired lock.
func (r *LockRepository) AcquireLock(ctx context.Context, pageID, owner string, ttl time.Duration) (bool, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	now := time.Now().UTC()
	expiresAt := now.Add(ttl)

	// Either no lock document exists or the existing lock has expired
	filter := bson.M{
		"_id":        pageID,
		"expires_at": bson.M{"$lt": now},
	}

	// Set or refresh the lock with this instance as owner
	update := bson.M{
		"$set": bson.M{
			"locked_by":  owner,
			"locked_at":  now,
			"expires_at": expiresAt,
		},
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var result model.ScanLock
	err := r.collection.FindOneAndUpdate(ctxTimeout, filter, update, opts).Decode(&result)
	if err != nil {
		// The upsert collides with the live lock document
		if mongo.IsDuplicateKeyError(err) || errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}

	// Check that the returned document is ours
	if result.LockedBy != owner {
		return false, nil
	}

	slog.Debug("Acquired scan lock",
		"page_id", pageID,
		"owner", owner,
		"expires_at", expiresAt,
	)

	return true, nil
}

// ReleaseLock releases a page lock, but only if it is held by owner
func (r *LockRepository) ReleaseLock(ctx context.Context, pageID, owner string) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// Only delete if the lock is owned by this instance
	filter := bson.M{
		"_id":       pageID,
		"locked_by": owner,
	}

	result, err := r.collection.DeleteOne(ctxTimeout, filter)
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}

	if result.DeletedCount > 0 {
		slog.Debug("Released scan lock",
			"page_id", pageID,
			"owner", owner,
		)
	}

	return nil
}

// ReleaseAllLocks releases all locks held by owner. Called during graceful shutdown.
func (r *LockRepository) ReleaseAllLocks(ctx context.Context, owner string) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	result, err := r.collection.DeleteMany(ctxTimeout, bson.M{"locked_by": owner})
	if err != nil {
		return fmt.Errorf("failed to release all locks: %w", err)
	}

	if result.DeletedCount > 0 {
		slog.Info("Released all scan locks during shutdown",
			"owner", owner,
			"count", result.DeletedCount,
		)
	}

	return nil
}

// CleanExpiredLocks removes locks left behind by scanners that crashed
func (r *LockRepository) CleanExpiredLocks(ctx context.Context) (int64, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	result, err := r.collection.DeleteMany(ctxTimeout, bson.M{
		"expires_at": bson.M{"$lt": time.Now().UTC()},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to clean expired locks: %w", err)
	}

	if result.DeletedCount > 0 {
		slog.Info("Cleaned expired scan locks", "count", result.DeletedCount)
	}

	return result.DeletedCount, nil
}
