package handler

import (
	"context"
	"net/http"

	"github.com/nsabot/updatescanner/internal/model"
	"github.com/nsabot/updatescanner/internal/service"
)

// HistoryService lists scan history
type HistoryService interface {
	List(ctx context.Context, filter service.HistoryFilter, page, limit int) ([]model.ScanRecordSummary, int64, error)
}

// HistoryHandler handles scan history queries
type HistoryHandler struct {
	service HistoryService
}

// NewHistoryHandler creates a new history handler
func NewHistoryHandler(service HistoryService) *HistoryHandler {
	return &HistoryHandler{
		service: service,
	}
}

// List handles GET /api/v1/history
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := service.HistoryFilter{
		PageID:  q.Get("page_id"),
		BatchID: q.Get("batch_id"),
		State:   q.Get("state"),
		From:    q.Get("from"),
		To:      q.Get("to"),
	}
	page, limit := parsePagination(r)

	summaries, total, err := h.service.List(r.Context(), filter, page, limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ListResponse[model.ScanRecordSummary]{
		Total:   total,
		Page:    page,
		Limit:   limit,
		Results: summaries,
	})
}
