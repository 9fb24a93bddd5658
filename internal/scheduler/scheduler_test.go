package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeLocks struct {
	mu       sync.Mutex
	sweeps   int
	released []string
}

func (f *fakeLocks) CleanExpiredLocks(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sweeps++
	return 1, nil
}

func (f *fakeLocks) ReleaseAllLocks(ctx context.Context, owner string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, owner)
	return nil
}

func (f *fakeLocks) sweepCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sweeps
}

func TestJanitor_SweepsAndReleases(t *testing.T) {
	locks := &fakeLocks{}
	j := NewJanitor(locks, "instance-a", 10*time.Millisecond)
	j.Start(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for locks.sweepCount() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("expected repeated sweeps, got %d", locks.sweepCount())
		}
		time.Sleep(5 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	j.Stop(ctx)
	j.Stop(ctx)

	if len(locks.released) != 2 || locks.released[0] != "instance-a" {
		t.Errorf("unexpected releases %v", locks.released)
	}
}

func TestInstanceID(t *testing.T) {
	if InstanceID() == "" {
		t.Error("instance id must not be empty")
	}
}
