package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/nsabot/updatescanner/internal/alarm"
)

// Pinger reports whether the database is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// AlarmInspector lists the armed alarms
type AlarmInspector interface {
	Names() []string
	Get(name string) (alarm.Registration, bool)
}

// HealthHandler handles service health and readiness checks
type HealthHandler struct {
	db        Pinger
	alarms    AlarmInspector
	startTime time.Time
	version   string
}

// NewHealthHandler creates a new health handler. alarms may be nil.
func NewHealthHandler(db Pinger, alarms AlarmInspector, version string) *HealthHandler {
	return &HealthHandler{
		db:        db,
		alarms:    alarms,
		startTime: time.Now(),
		version:   version,
	}
}

// AlarmStatus describes one armed alarm
type AlarmStatus struct {
	Name            string  `json:"name"`
	DelayInMinutes  float64 `json:"delay_in_minutes"`
	PeriodInMinutes float64 `json:"period_in_minutes"`
	NextFire        string  `json:"next_fire,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status        string        `json:"status"`
	Version       string        `json:"version"`
	Timestamp     string        `json:"timestamp"`
	MongoDB       string        `json:"mongodb"`
	Alarms        []AlarmStatus `json:"alarms"`
	UptimeSeconds int64         `json:"uptime_seconds"`
}

// ReadyResponse represents the readiness check response
type ReadyResponse struct {
	Ready   bool   `json:"ready"`
	MongoDB string `json:"mongodb"`
}

func (h *HealthHandler) mongoStatus(ctx context.Context) string {
	if err := h.db.Ping(ctx); err != nil {
		return "disconnected"
	}
	return "connected"
}

func (h *HealthHandler) alarmStatus() []AlarmStatus {
	statuses := []AlarmStatus{}
	if h.alarms == nil {
		return statuses
	}

	for _, name := range h.alarms.Names() {
		reg, ok := h.alarms.Get(name)
		if !ok {
			// cleared between Names and Get
			continue
		}
		status := AlarmStatus{
			Name:            reg.Name,
			DelayInMinutes:  reg.Info.DelayInMinutes,
			PeriodInMinutes: reg.Info.PeriodInMinutes,
		}
		if !reg.NextFire.IsZero() {
			status.NextFire = reg.NextFire.UTC().Format(time.RFC3339)
		}
		statuses = append(statuses, status)
	}
	return statuses
}

// Health handles GET /health. The process is healthy while it can answer.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:        "healthy",
		Version:       h.version,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		MongoDB:       h.mongoStatus(r.Context()),
		Alarms:        h.alarmStatus(),
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	status := h.mongoStatus(r.Context())
	ready := status == "connected"

	statusCode := http.StatusOK
	if !ready {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, ReadyResponse{
		Ready:   ready,
		MongoDB: status,
	})
}
