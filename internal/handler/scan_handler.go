package handler

import (
	"context"
	"net/http"

	"github.com/nsabot/updatescanner/internal/model"
)

// ScanService runs manual scans
type ScanService interface {
	Scan(ctx context.Context, pageIDs []string) (*model.ScanBatch, error)
	SubmitJob(ctx context.Context, pageIDs []string) (string, error)
	GetJobStatus(jobID string) (model.JobStatus, bool)
}

// ScanHandler handles manual scan requests
type ScanHandler struct {
	service ScanService
}

// NewScanHandler creates a new scan handler
func NewScanHandler(service ScanService) *ScanHandler {
	return &ScanHandler{
		service: service,
	}
}

// ScanRequest represents a manual scan request
type ScanRequest struct {
	PageIDs []string `json:"page_ids"`
	Async   bool     `json:"async"`
}

// ScanResponse is returned by a synchronous scan. Error lists pages that could not be scanned.
type ScanResponse struct {
	*model.ScanBatch
	Error string `json:"error,omitempty"`
}

// AsyncResponse represents async scan response
type AsyncResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Scan handles POST /api/v1/scans
func (h *ScanHandler) Scan(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.Async {
		jobID, err := h.service.SubmitJob(r.Context(), req.PageIDs)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusAccepted, AsyncResponse{
			JobID:   jobID,
			Status:  "queued",
			Message: "Scan queued successfully",
		})
		return
	}

	batch, err := h.service.Scan(r.Context(), req.PageIDs)
	if err != nil && batch == nil {
		writeServiceError(w, r, err)
		return
	}

	// a batch with failed pages still reports the pages that were scanned
	response := ScanResponse{ScanBatch: batch}
	if err != nil {
		response.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, response)
}

// JobStatus handles GET /api/v1/scans/jobs/{id}
func (h *ScanHandler) JobStatus(w http.ResponseWriter, r *http.Request) {
	status, ok := h.service.GetJobStatus(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	writeJSON(w, http.StatusOK, status)
}
