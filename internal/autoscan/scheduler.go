// Package autoscan owns the recurring autoscan alarm and hands due pages to the scan engine.
package autoscan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nsabot/updatescanner/internal/alarm"
	"github.com/nsabot/updatescanner/internal/evaluator"
	"github.com/nsabot/updatescanner/internal/metrics"
	"github.com/nsabot/updatescanner/internal/model"
)

// AlarmName is the name of the single alarm the scheduler owns
const AlarmName = "autoscan"

// DebugSetting selects the short alarm timing when true
const DebugSetting = "debug"

var (
	normalTiming = alarm.Info{DelayInMinutes: 1, PeriodInMinutes: 5}
	debugTiming  = alarm.Info{DelayInMinutes: 0.1, PeriodInMinutes: 0.5}
)

var (
	ErrConfigLoad   = errors.New("failed to load autoscan settings")
	ErrPageTreeLoad = errors.New("failed to load page tree")
	ErrScanDispatch = errors.New("failed to dispatch scan")
)

// Alarms is the recurring timer facility
type Alarms interface {
	Create(name string, info alarm.Info) error
	Clear(name string) bool
	AddListener(l alarm.Listener)
}

// Settings reads named settings
type Settings interface {
	LoadSetting(ctx context.Context, name string) (interface{}, error)
}

// PageTreeLoader supplies the full page tree
type PageTreeLoader interface {
	LoadPageTree(ctx context.Context) (*model.PageFolder, error)
}

// ScanEngine scans a batch of pages
type ScanEngine interface {
	Scan(ctx context.Context, pages []*model.Page) error
}

// Scheduler arms the autoscan alarm and dispatches due pages on each fire
type Scheduler struct {
	alarms   Alarms
	settings Settings
	pages    PageTreeLoader
	engine   ScanEngine
	now      func() time.Time

	listenOnce sync.Once
}

// New creates a scheduler. Nothing is armed until Initialize is called.
func New(alarms Alarms, settings Settings, pages PageTreeLoader, engine ScanEngine) *Scheduler {
	return &Scheduler{
		alarms:   alarms,
		settings: settings,
		pages:    pages,
		engine:   engine,
		now:      time.Now,
	}
}

// Initialize (re)arms the autoscan alarm using the timing selected by the debug setting.
// Calling it again replaces the existing registration.
func (s *Scheduler) Initialize(ctx context.Context) error {
	value, err := s.settings.LoadSetting(ctx, DebugSetting)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrConfigLoad, DebugSetting, err)
	}
	debug, err := evaluator.ParseBool(value)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrConfigLoad, DebugSetting, err)
	}

	timing := normalTiming
	if debug {
		timing = debugTiming
	}

	s.listenOnce.Do(func() {
		s.alarms.AddListener(s.OnAlarm)
	})

	s.alarms.Clear(AlarmName)
	if err := s.alarms.Create(AlarmName, timing); err != nil {
		return fmt.Errorf("failed to create %s alarm: %w", AlarmName, err)
	}

	slog.Info("Autoscan alarm armed",
		"alarm", AlarmName,
		"debug", debug,
		"delay_in_minutes", timing.DelayInMinutes,
		"period_in_minutes", timing.PeriodInMinutes,
	)
	return nil
}

// OnAlarm handles one alarm fire. Fires of other alarms are ignored.
func (s *Scheduler) OnAlarm(ctx context.Context, a alarm.Alarm) {
	if a.Name != AlarmName {
		return
	}

	now := s.now()

	root, err := s.pages.LoadPageTree(ctx)
	if err != nil {
		metrics.RecordFiring("load_error")
		slog.Error("Autoscan firing skipped",
			"alarm", a.Name,
			"error", fmt.Errorf("%w: %v", ErrPageTreeLoad, err),
		)
		return
	}

	var pages []*model.Page
	if root != nil {
		pages = model.Flatten(root)
	}

	due := DuePages(pages, now)
	if len(due) == 0 {
		metrics.RecordFiring("idle")
		slog.Debug("No pages due for autoscan", "alarm", a.Name)
		return
	}

	slog.Info("Dispatching due pages", "alarm", a.Name, "count", len(due))
	metrics.AddPagesDispatched(len(due))

	if err := s.engine.Scan(ctx, due); err != nil {
		metrics.RecordFiring("dispatch_error")
		slog.Error("Autoscan dispatch failed",
			"alarm", a.Name,
			"count", len(due),
			"error", fmt.Errorf("%w: %v", ErrScanDispatch, err),
		)
		return
	}
	metrics.RecordFiring("dispatched")
}

// DuePages keeps the pages that are due at now, preserving order
func DuePages(pages []*model.Page, now time.Time) []*model.Page {
	var due []*model.Page
	for _, p := range pages {
		if IsDue(p, now) {
			due = append(due, p)
		}
	}
	return due
}

// IsDue reports whether more than the page's scan rate has elapsed since its last autoscan.
// A page that was never scanned is always due.
func IsDue(p *model.Page, now time.Time) bool {
	if p.LastAutoscanTime == nil {
		return true
	}
	return now.Sub(*p.LastAutoscanTime) > p.ScanRate()
}
