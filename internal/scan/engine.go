// Package scan fetches monitored pages, detects content changes and records the outcome.
package scan

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nsabot/updatescanner/internal/database"
	"github.com/nsabot/updatescanner/internal/evaluator"
	"github.com/nsabot/updatescanner/internal/metrics"
	"github.com/nsabot/updatescanner/internal/model"
	"github.com/nsabot/updatescanner/internal/worker"
)

// PageStore persists scan state and cached page content
type PageStore interface {
	UpdateScanState(ctx context.Context, id string, state model.ScanState, scannedAt time.Time, changed bool) error
	SaveHTML(ctx context.Context, pageID string, htmlType model.HTMLType, html string) error
	LoadHTML(ctx context.Context, pageID string, htmlType model.HTMLType) (string, error)
}

// Locker serializes scans of the same page across overlapping batches and instances
type Locker interface {
	AcquireLock(ctx context.Context, pageID, owner string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, pageID, owner string) error
}

// History records one entry per scanned page
type History interface {
	Create(ctx context.Context, record *model.ScanRecord) error
}

// Notifier is told about the pages that changed in a batch
type Notifier interface {
	NotifyChanges(ctx context.Context, batchID string, trigger model.ScanTrigger, pages []model.ChangedPage)
}

// Submitter queues scan jobs
type Submitter interface {
	Submit(ctx context.Context, job worker.Job) error
}

// PageFetcher downloads a page
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*FetchResult, error)
}

// Engine scans batches of pages on a worker pool
type Engine struct {
	pool     Submitter
	fetcher  PageFetcher
	store    PageStore
	locks    Locker
	history  History
	notifier Notifier
	owner    string
	lockTTL  time.Duration
	now      func() time.Time
}

// NewEngine creates an engine. The pool's executor must be set to Engine.ScanPage.
// owner identifies this instance in page locks.
func NewEngine(pool Submitter, fetcher PageFetcher, store PageStore, locks Locker, history History, owner string, lockTTL time.Duration) *Engine {
	return &Engine{
		pool:    pool,
		fetcher: fetcher,
		store:   store,
		locks:   locks,
		history: history,
		owner:   owner,
		lockTTL: lockTTL,
		now:     time.Now,
	}
}

// SetNotifier enables change notifications
func (e *Engine) SetNotifier(n Notifier) {
	e.notifier = n
}

// Scan scans pages on behalf of the autoscan scheduler
func (e *Engine) Scan(ctx context.Context, pages []*model.Page) error {
	_, err := e.ScanWithTrigger(ctx, pages, model.TriggerAutoscan)
	return err
}

// ScanWithTrigger scans every page once and waits for the whole batch.
// Pages locked by another scan are skipped. The returned error joins every page that
// could not be scanned and recorded; an unreachable page is a recorded outcome, not an error.
func (e *Engine) ScanWithTrigger(ctx context.Context, pages []*model.Page, trigger model.ScanTrigger) (*model.ScanBatch, error) {
	batch := &model.ScanBatch{
		BatchID: uuid.NewString(),
		Trigger: trigger,
		Records: make([]model.ScanRecordSummary, 0, len(pages)),
	}
	if len(pages) == 0 {
		return batch, nil
	}

	slog.Info("Starting scan batch",
		"batch_id", batch.BatchID,
		"trigger", trigger,
		"count", len(pages),
	)

	reply := make(chan worker.Result, len(pages))
	var errs []error
	submitted := 0
	for _, page := range pages {
		job := worker.Job{
			Page:    page,
			BatchID: batch.BatchID,
			Trigger: trigger,
			Context: ctx,
			Reply:   reply,
		}
		if err := e.pool.Submit(ctx, job); err != nil {
			errs = append(errs, fmt.Errorf("page %s: %w", page.ID, err))
			continue
		}
		submitted++
	}

	var changed []model.ChangedPage
	skipped := 0
	for i := 0; i < submitted; i++ {
		result := <-reply
		if result.Error != nil {
			errs = append(errs, fmt.Errorf("page %s: %w", result.PageID, result.Error))
		}
		if result.Skipped {
			skipped++
		}
		if result.Record != nil {
			batch.Records = append(batch.Records, result.Record.ToSummary())
			if result.Changed {
				changed = append(changed, model.ChangedPage{
					PageID: result.Record.PageID,
					Title:  result.Record.PageTitle,
					URL:    result.Record.URL,
				})
			}
		}
	}

	slog.Info("Scan batch completed",
		"batch_id", batch.BatchID,
		"scanned", len(batch.Records),
		"changed", len(changed),
		"skipped", skipped,
		"failed", len(errs),
	)

	if len(changed) > 0 && e.notifier != nil {
		e.notifier.NotifyChanges(ctx, batch.BatchID, trigger, changed)
	}

	return batch, errors.Join(errs...)
}

// ScanPage scans a single page. It is the worker pool executor.
func (e *Engine) ScanPage(ctx context.Context, job worker.Job) worker.Result {
	page := job.Page

	acquired, err := e.locks.AcquireLock(ctx, page.ID, e.owner, e.lockTTL)
	if err != nil {
		return worker.Result{Error: err}
	}
	if !acquired {
		slog.Debug("Page is being scanned elsewhere", "page_id", page.ID, "batch_id", job.BatchID)
		return worker.Result{Skipped: true}
	}
	defer func() {
		if err := e.locks.ReleaseLock(context.WithoutCancel(ctx), page.ID, e.owner); err != nil {
			slog.Error("Failed to release scan lock", "page_id", page.ID, "error", err)
		}
	}()

	metrics.IncScanJobsRunning()
	defer metrics.DecScanJobsRunning()

	start := e.now()
	fetched, fetchErr := e.fetcher.Fetch(ctx, page.URL)
	scannedAt := start.UTC().Truncate(time.Millisecond)

	record := &model.ScanRecord{
		BatchID:   job.BatchID,
		PageID:    page.ID,
		PageTitle: page.Title,
		URL:       page.URL,
		Trigger:   job.Trigger,
		ScannedAt: scannedAt,
	}
	if fetched != nil {
		record.StatusCode = fetched.StatusCode
		record.ContentLength = len(fetched.Body)
	}

	var state model.ScanState
	var changed bool
	if fetchErr != nil {
		state = model.StateError
		record.Error = fetchErr.Error()
		slog.Warn("Page fetch failed", "page_id", page.ID, "url", page.URL, "error", fetchErr)
	} else {
		state, changed, err = e.compareAndStore(ctx, page, fetched.Body)
		if err != nil {
			return worker.Result{Error: err}
		}
	}
	record.State = state
	record.DurationMs = e.now().Sub(start).Milliseconds()

	if err := e.store.UpdateScanState(ctx, page.ID, state, scannedAt, changed); err != nil {
		return worker.Result{Record: record, Error: err}
	}
	if err := e.history.Create(ctx, record); err != nil {
		slog.Error("Failed to save scan record", "page_id", page.ID, "batch_id", job.BatchID, "error", err)
	}

	metrics.RecordPageScan(string(job.Trigger), string(state))
	slog.Debug("Page scanned",
		"page_id", page.ID,
		"batch_id", job.BatchID,
		"state", state,
		"duration_ms", record.DurationMs,
	)

	return worker.Result{Record: record, Changed: changed}
}

// compareAndStore compares body with the last stored content. On a change the previous
// content becomes OLD and body becomes NEW. The first scan of a page is never a change.
func (e *Engine) compareAndStore(ctx context.Context, page *model.Page, body []byte) (model.ScanState, bool, error) {
	previous, err := e.store.LoadHTML(ctx, page.ID, model.HTMLNew)
	if errors.Is(err, database.ErrNotFound) {
		if err := e.store.SaveHTML(ctx, page.ID, model.HTMLNew, string(body)); err != nil {
			return "", false, err
		}
		return model.StateNoChange, false, nil
	}
	if err != nil {
		return "", false, err
	}

	if bytes.Equal(comparisonKey(page, []byte(previous)), comparisonKey(page, body)) {
		// unselected parts may still differ; keep the viewer current
		if previous != string(body) {
			if err := e.store.SaveHTML(ctx, page.ID, model.HTMLNew, string(body)); err != nil {
				return "", false, err
			}
		}
		return model.StateNoChange, false, nil
	}

	if err := e.store.SaveHTML(ctx, page.ID, model.HTMLOld, previous); err != nil {
		return "", false, err
	}
	if err := e.store.SaveHTML(ctx, page.ID, model.HTMLNew, string(body)); err != nil {
		return "", false, err
	}
	return model.StateChanged, true, nil
}

// comparisonKey returns the part of body that decides whether a page changed: the selected
// JSON value when the page has a selector that matches, otherwise the whole body.
func comparisonKey(page *model.Page, body []byte) []byte {
	if page.Selector == "" {
		return body
	}
	selected, err := evaluator.Extract(body, page.Selector)
	if err != nil {
		slog.Debug("Selector did not match, comparing whole page",
			"page_id", page.ID,
			"selector", page.Selector,
			"error", err,
		)
		return body
	}
	return selected
}
