package handler

import (
	"context"
	"net/http"

	"github.com/nsabot/updatescanner/internal/model"
)

// NotificationService lists and acknowledges change notifications
type NotificationService interface {
	List(ctx context.Context, status, acknowledgmentStatus, from, to string, page, limit int) ([]model.NotificationSummary, int64, error)
	Acknowledge(ctx context.Context, id, acknowledgedBy string) error
}

// NotificationHandler handles change notification logs
type NotificationHandler struct {
	service NotificationService
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(service NotificationService) *NotificationHandler {
	return &NotificationHandler{
		service: service,
	}
}

// List handles GET /api/v1/notifications
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, limit := parsePagination(r)

	summaries, total, err := h.service.List(r.Context(),
		q.Get("status"),
		q.Get("acknowledgment_status"),
		q.Get("from"),
		q.Get("to"),
		page, limit,
	)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ListResponse[model.NotificationSummary]{
		Total:   total,
		Page:    page,
		Limit:   limit,
		Results: summaries,
	})
}

// AcknowledgeRequest represents the acknowledge notification request
type AcknowledgeRequest struct {
	AcknowledgedBy string `json:"acknowledged_by"`
}

// Acknowledge handles PATCH /api/v1/notifications/{id}/acknowledge
func (h *NotificationHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	var req AcknowledgeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.service.Acknowledge(r.Context(), r.PathValue("id"), req.AcknowledgedBy); err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "notification acknowledged successfully",
	})
}
