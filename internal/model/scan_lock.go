package model

import (
	"time"
)

// ScanLock keeps two overlapping scan batches from fetching the same page at once
type ScanLock struct {
	PageID    string    `json:"page_id" bson:"_id"`
	LockedBy  string    `json:"locked_by" bson:"locked_by"`   // Scanner instance identifier
	LockedAt  time.Time `json:"locked_at" bson:"locked_at"`   // Lock acquisition timestamp
	ExpiresAt time.Time `json:"expires_at" bson:"expires_at"` // Lock expiration (TTL)
}
