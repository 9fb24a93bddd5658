// Package alarm provides named recurring alarms on top of robfig/cron.
//
// An alarm fires once after its initial delay and then once every period until it is
// cleared. Creating an alarm under a name that is already registered replaces it, so a
// name never has more than one registration.
package alarm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Info describes when an alarm fires, in minutes
type Info struct {
	DelayInMinutes  float64 `json:"delay_in_minutes"`
	PeriodInMinutes float64 `json:"period_in_minutes"`
}

// Alarm is delivered to listeners each time a registration fires
type Alarm struct {
	Name          string
	ScheduledTime time.Time
}

// Registration describes a live alarm
type Registration struct {
	Name     string
	Info     Info
	NextFire time.Time
}

// Listener is called on every fire of every alarm
type Listener func(ctx context.Context, a Alarm)

// Facility owns the set of alarm registrations
type Facility struct {
	ctx    context.Context
	cron   *cron.Cron
	logger *slog.Logger

	mu        sync.Mutex
	entries   map[string]entry
	listeners []Listener
}

type entry struct {
	id   cron.EntryID
	info Info
}

// New creates a facility. Listeners receive ctx on every fire.
func New(ctx context.Context, logger *slog.Logger) *Facility {
	if logger == nil {
		logger = slog.Default()
	}
	cl := cronLogger{logger: logger}

	return &Facility{
		ctx:    ctx,
		logger: logger,
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl)),
		),
		entries: make(map[string]entry),
	}
}

// Start begins firing alarms in the background
func (f *Facility) Start() {
	f.cron.Start()
}

// Stop stops firing alarms. The returned context is done once running listeners return.
func (f *Facility) Stop() context.Context {
	return f.cron.Stop()
}

// Create registers an alarm, replacing any alarm with the same name
func (f *Facility) Create(name string, info Info) error {
	if name == "" {
		return errors.New("alarm name is required")
	}
	if info.PeriodInMinutes <= 0 {
		return fmt.Errorf("alarm %q: period must be positive", name)
	}
	if info.DelayInMinutes < 0 {
		return fmt.Errorf("alarm %q: delay must not be negative", name)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if existing, ok := f.entries[name]; ok {
		f.cron.Remove(existing.id)
	}

	schedule := newDelayedSchedule(time.Now(), minutes(info.DelayInMinutes), minutes(info.PeriodInMinutes))
	id := f.cron.Schedule(schedule, cron.FuncJob(func() {
		f.fire(name)
	}))
	f.entries[name] = entry{id: id, info: info}

	f.logger.Debug("Alarm created",
		"alarm", name,
		"delay_in_minutes", info.DelayInMinutes,
		"period_in_minutes", info.PeriodInMinutes,
	)
	return nil
}

// Clear removes the named alarm and reports whether one existed
func (f *Facility) Clear(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	existing, ok := f.entries[name]
	if !ok {
		return false
	}
	f.cron.Remove(existing.id)
	delete(f.entries, name)

	f.logger.Debug("Alarm cleared", "alarm", name)
	return true
}

// Get returns the named registration
func (f *Facility) Get(name string) (Registration, bool) {
	f.mu.Lock()
	existing, ok := f.entries[name]
	f.mu.Unlock()
	if !ok {
		return Registration{}, false
	}

	return Registration{
		Name:     name,
		Info:     existing.info,
		NextFire: f.cron.Entry(existing.id).Next,
	}, true
}

// Names lists registered alarms in sorted order
func (f *Facility) Names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	names := make([]string, 0, len(f.entries))
	for name := range f.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AddListener subscribes l to every alarm fire
func (f *Facility) AddListener(l Listener) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, l)
}

func (f *Facility) fire(name string) {
	f.mu.Lock()
	listeners := make([]Listener, len(f.listeners))
	copy(listeners, f.listeners)
	f.mu.Unlock()

	a := Alarm{Name: name, ScheduledTime: time.Now()}
	for _, l := range listeners {
		l(f.ctx, a)
	}
}

func minutes(m float64) time.Duration {
	return time.Duration(m * float64(time.Minute))
}

// delayedSchedule fires at first and then every period after the previous fire
type delayedSchedule struct {
	first  time.Time
	period time.Duration
}

func newDelayedSchedule(now time.Time, delay, period time.Duration) delayedSchedule {
	return delayedSchedule{first: now.Add(delay), period: period}
}

// Next implements cron.Schedule
func (s delayedSchedule) Next(t time.Time) time.Time {
	if t.Before(s.first) {
		return s.first
	}
	return t.Add(s.period)
}

// cronLogger routes cron's logging onto slog
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
