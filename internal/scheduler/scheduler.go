// Package scheduler runs the periodic housekeeping of a scanner instance.
package scheduler

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InstanceID identifies this process in scan locks: the hostname (the pod name in
// Kubernetes), or a random UUID when it cannot be read.
func InstanceID() string {
	id, err := os.Hostname()
	if err != nil || id == "" {
		id = uuid.NewString()
		slog.Warn("Failed to get hostname, using UUID as instance ID", "instance_id", id)
	}
	return id
}

// LockStore is the part of the lock repository the janitor maintains
type LockStore interface {
	CleanExpiredLocks(ctx context.Context) (int64, error)
	ReleaseAllLocks(ctx context.Context, owner string) error
}

// Janitor periodically removes expired scan locks and releases this instance's locks on shutdown
type Janitor struct {
	locks    LockStore
	owner    string
	interval time.Duration
	ticker   *time.Ticker
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewJanitor creates a janitor for the locks held by owner
func NewJanitor(locks LockStore, owner string, interval time.Duration) *Janitor {
	return &Janitor{
		locks:    locks,
		owner:    owner,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins the cleanup loop
func (j *Janitor) Start(ctx context.Context) {
	slog.Info("Starting lock janitor",
		"instance_id", j.owner,
		"interval", j.interval,
	)

	j.ticker = time.NewTicker(j.interval)
	j.wg.Add(1)

	go j.run(ctx)
}

// Stop ends the loop and releases every lock still held by this instance
func (j *Janitor) Stop(ctx context.Context) {
	j.stopOnce.Do(func() {
		close(j.stopChan)
	})
	if j.ticker != nil {
		j.ticker.Stop()
	}

	done := make(chan struct{})
	go func() {
		j.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		slog.Warn("Timeout waiting for lock janitor to stop")
	}

	if err := j.locks.ReleaseAllLocks(context.WithoutCancel(ctx), j.owner); err != nil {
		slog.Error("Failed to release locks during shutdown", "error", err)
	}

	slog.Info("Lock janitor stopped", "instance_id", j.owner)
}

func (j *Janitor) run(ctx context.Context) {
	defer j.wg.Done()

	// locks left behind by a crashed instance are cleared on start
	j.sweep(ctx)

	for {
		select {
		case <-j.ticker.C:
			j.sweep(ctx)
		case <-j.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (j *Janitor) sweep(ctx context.Context) {
	removed, err := j.locks.CleanExpiredLocks(ctx)
	if err != nil {
		slog.Error("Failed to clean expired scan locks", "error", err)
		return
	}
	if removed > 0 {
		slog.Info("Expired scan locks removed", "count", removed)
	}
}
