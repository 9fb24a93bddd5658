package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/nsabot/updatescanner/internal/model"
)

// PageService manages the page tree
type PageService interface {
	Tree(ctx context.Context) (*model.PageFolder, error)
	Get(ctx context.Context, id string) (model.Node, error)
	CreatePage(ctx context.Context, parentID string, page *model.Page) error
	CreateFolder(ctx context.Context, parentID string, folder *model.PageFolder) error
	Update(ctx context.Context, id string, page *model.Page) (model.Node, error)
	Delete(ctx context.Context, id string) error
	HTML(ctx context.Context, id string, htmlType model.HTMLType) (string, error)
}

// PageHandler handles page tree CRUD and the cached content viewer
type PageHandler struct {
	service PageService
}

// NewPageHandler creates a new page handler
func NewPageHandler(service PageService) *PageHandler {
	return &PageHandler{
		service: service,
	}
}

// NodeRequest is the body of page and folder create and update requests
type NodeRequest struct {
	ParentID        string         `json:"parent_id"`
	Type            model.NodeType `json:"type"`
	Title           string         `json:"title"`
	URL             string         `json:"url"`
	ScanRateMinutes float64        `json:"scan_rate_minutes"`
	Selector        string         `json:"selector"`
}

func (req *NodeRequest) page() *model.Page {
	return &model.Page{
		Title:           req.Title,
		URL:             req.URL,
		ScanRateMinutes: req.ScanRateMinutes,
		Selector:        req.Selector,
	}
}

// Tree handles GET /api/v1/pages
func (h *PageHandler) Tree(w http.ResponseWriter, r *http.Request) {
	root, err := h.service.Tree(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, root)
}

// Create handles POST /api/v1/pages
func (h *PageHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req NodeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	parentID := req.ParentID
	if parentID == "" {
		parentID = model.RootID
	}

	switch req.Type {
	case model.NodeTypeFolder:
		folder := &model.PageFolder{Title: req.Title}
		if err := h.service.CreateFolder(r.Context(), parentID, folder); err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, folder)
	case model.NodeTypePage, "":
		page := req.page()
		if err := h.service.CreatePage(r.Context(), parentID, page); err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, page)
	default:
		writeError(w, http.StatusBadRequest, "type must be page or folder")
	}
}

// Get handles GET /api/v1/pages/{id}
func (h *PageHandler) Get(w http.ResponseWriter, r *http.Request) {
	node, err := h.service.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, node)
}

// Update handles PUT /api/v1/pages/{id}
func (h *PageHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req NodeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	node, err := h.service.Update(r.Context(), r.PathValue("id"), req.page())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, node)
}

// Delete handles DELETE /api/v1/pages/{id}
func (h *PageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HTML handles GET /api/v1/pages/{id}/html?type=new|old. Stored content is served in a sandbox
// so scripts and forms of the monitored page never run with this origin's privileges.
func (h *PageHandler) HTML(w http.ResponseWriter, r *http.Request) {
	htmlType := model.HTMLType(r.URL.Query().Get("type"))
	if htmlType == "" {
		htmlType = model.HTMLNew
	}

	html, err := h.service.HTML(r.Context(), r.PathValue("id"), htmlType)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Security-Policy", "sandbox")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, html)
}
