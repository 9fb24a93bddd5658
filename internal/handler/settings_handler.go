package handler

import (
	"context"
	"net/http"

	"github.com/nsabot/updatescanner/internal/model"
)

// SettingsService reads and writes settings
type SettingsService interface {
	Get(ctx context.Context, name string) (*model.Setting, error)
	Put(ctx context.Context, name string, value interface{}) error
}

// SettingsHandler exposes named settings
type SettingsHandler struct {
	service SettingsService
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(service SettingsService) *SettingsHandler {
	return &SettingsHandler{
		service: service,
	}
}

// SettingRequest is the body of PUT /api/v1/settings/{name}
type SettingRequest struct {
	Value interface{} `json:"value"`
}

// Get handles GET /api/v1/settings/{name}
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	setting, err := h.service.Get(r.Context(), r.PathValue("name"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, setting)
}

// Put handles PUT /api/v1/settings/{name}
func (h *SettingsHandler) Put(w http.ResponseWriter, r *http.Request) {
	var req SettingRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	name := r.PathValue("name")
	if err := h.service.Put(r.Context(), name, req.Value); err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, model.Setting{Name: name, Value: req.Value})
}
