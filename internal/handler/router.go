package handler

import (
	"net/http"

	"github.com/nsabot/updatescanner/pkg/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router handles HTTP routing
type Router struct {
	pageHandler         *PageHandler
	scanHandler         *ScanHandler
	historyHandler      *HistoryHandler
	notificationHandler *NotificationHandler
	settingsHandler     *SettingsHandler
	healthHandler       *HealthHandler
	corsConfig          middleware.CORSConfig
}

// NewRouter creates a new router
func NewRouter(
	pageHandler *PageHandler,
	scanHandler *ScanHandler,
	historyHandler *HistoryHandler,
	notificationHandler *NotificationHandler,
	settingsHandler *SettingsHandler,
	healthHandler *HealthHandler,
	corsConfig middleware.CORSConfig,
) *Router {
	return &Router{
		pageHandler:         pageHandler,
		scanHandler:         scanHandler,
		historyHandler:      historyHandler,
		notificationHandler: notificationHandler,
		settingsHandler:     settingsHandler,
		healthHandler:       healthHandler,
		corsConfig:          corsConfig,
	}
}

// Handler returns the configured HTTP handler with middleware
func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", rt.healthHandler.Health)
	mux.HandleFunc("GET /ready", rt.healthHandler.Ready)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/v1/pages", rt.pageHandler.Tree)
	mux.HandleFunc("POST /api/v1/pages", rt.pageHandler.Create)
	mux.HandleFunc("GET /api/v1/pages/{id}", rt.pageHandler.Get)
	mux.HandleFunc("PUT /api/v1/pages/{id}", rt.pageHandler.Update)
	mux.HandleFunc("DELETE /api/v1/pages/{id}", rt.pageHandler.Delete)
	mux.HandleFunc("GET /api/v1/pages/{id}/html", rt.pageHandler.HTML)

	mux.HandleFunc("POST /api/v1/scans", rt.scanHandler.Scan)
	mux.HandleFunc("GET /api/v1/scans/jobs/{id}", rt.scanHandler.JobStatus)

	mux.HandleFunc("GET /api/v1/history", rt.historyHandler.List)

	mux.HandleFunc("GET /api/v1/notifications", rt.notificationHandler.List)
	mux.HandleFunc("PATCH /api/v1/notifications/{id}/acknowledge", rt.notificationHandler.Acknowledge)

	mux.HandleFunc("GET /api/v1/settings/{name}", rt.settingsHandler.Get)
	mux.HandleFunc("PUT /api/v1/settings/{name}", rt.settingsHandler.Put)

	// CORS innermost so preflight requests are still logged and counted
	return middleware.Chain(mux,
		middleware.CorrelationID,
		middleware.Logging,
		middleware.Prometheus,
		middleware.Recovery,
		middleware.CORS(rt.corsConfig),
	)
}
