package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nsabot/updatescanner/internal/model"
)

// Scanner runs a scan batch
type Scanner interface {
	ScanWithTrigger(ctx context.Context, pages []*model.Page, trigger model.ScanTrigger) (*model.ScanBatch, error)
}

// PageResolver turns page IDs into pages
type PageResolver interface {
	Pages(ctx context.Context, ids []string) ([]*model.Page, error)
}

// ScanService runs manual scans, either while the caller waits or as background jobs
type ScanService struct {
	scanner  Scanner
	pages    PageResolver
	jobStore *model.JobStatusStore
	// base is the parent of background job contexts; cancelled on shutdown
	base context.Context
}

// NewScanService creates a new scan service. Background jobs stop when ctx is cancelled.
func NewScanService(ctx context.Context, scanner Scanner, pages PageResolver) *ScanService {
	return &ScanService{
		scanner:  scanner,
		pages:    pages,
		jobStore: model.NewJobStatusStore(),
		base:     ctx,
	}
}

// Scan scans the given pages and waits for the result
func (s *ScanService) Scan(ctx context.Context, pageIDs []string) (*model.ScanBatch, error) {
	pages, err := s.resolve(ctx, pageIDs)
	if err != nil {
		return nil, err
	}
	return s.scanner.ScanWithTrigger(ctx, pages, model.TriggerManual)
}

// SubmitJob queues a scan of the given pages and returns the job ID
func (s *ScanService) SubmitJob(ctx context.Context, pageIDs []string) (string, error) {
	pages, err := s.resolve(ctx, pageIDs)
	if err != nil {
		return "", err
	}

	jobID := uuid.NewString()
	s.jobStore.Set(jobID, &model.JobStatus{
		JobID:       jobID,
		Status:      "queued",
		PageIDs:     pageIDs,
		SubmittedAt: time.Now().UTC(),
	})

	go s.executeAsync(jobID, pages)

	return jobID, nil
}

// GetJobStatus retrieves the status of a background scan
func (s *ScanService) GetJobStatus(jobID string) (model.JobStatus, bool) {
	return s.jobStore.Get(jobID)
}

func (s *ScanService) resolve(ctx context.Context, pageIDs []string) ([]*model.Page, error) {
	if len(pageIDs) == 0 {
		return nil, fmt.Errorf("%w: page_ids is required", ErrValidation)
	}
	return s.pages.Pages(ctx, pageIDs)
}

func (s *ScanService) executeAsync(jobID string, pages []*model.Page) {
	s.jobStore.Update(jobID, func(status *model.JobStatus) {
		status.Status = "processing"
	})

	slog.Info("Starting background scan", "job_id", jobID, "count", len(pages))

	batch, err := s.scanner.ScanWithTrigger(s.base, pages, model.TriggerManual)

	s.jobStore.Update(jobID, func(status *model.JobStatus) {
		status.Result = batch
		if err != nil {
			status.Status = "failed"
			status.Error = err.Error()
			return
		}
		status.Status = "completed"
	})

	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("Background scan failed", "job_id", jobID, "error", err)
		return
	}
	slog.Info("Background scan completed", "job_id", jobID)
}
