package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nsabot/updatescanner/internal/database"
	"github.com/nsabot/updatescanner/internal/model"
)

// ErrValidation marks a request rejected before it reached the store
var ErrValidation = errors.New("validation failed")

// PageRepository is the page store used by PageService
type PageRepository interface {
	LoadPageTree(ctx context.Context) (*model.PageFolder, error)
	GetByID(ctx context.Context, id string) (*model.PageRecord, error)
	GetPages(ctx context.Context, ids []string) ([]*model.Page, error)
	Create(ctx context.Context, parentID string, record *model.PageRecord) error
	Update(ctx context.Context, record *model.PageRecord) error
	Delete(ctx context.Context, id string) error
	LoadHTML(ctx context.Context, pageID string, htmlType model.HTMLType) (string, error)
}

// HistoryCleaner removes the scan history of deleted pages
type HistoryCleaner interface {
	DeleteByPage(ctx context.Context, pageID string) (int64, error)
}

// PageService manages the page tree
type PageService struct {
	repo    PageRepository
	history HistoryCleaner
}

// NewPageService creates a new page service. history may be nil.
func NewPageService(repo PageRepository, history HistoryCleaner) *PageService {
	return &PageService{
		repo:    repo,
		history: history,
	}
}

// Tree returns the whole page tree
func (s *PageService) Tree(ctx context.Context) (*model.PageFolder, error) {
	return s.repo.LoadPageTree(ctx)
}

// Get returns a page or a folder with its subtree
func (s *PageService) Get(ctx context.Context, id string) (model.Node, error) {
	root, err := s.repo.LoadPageTree(ctx)
	if err != nil {
		return nil, err
	}

	node, ok := model.Find(root, id)
	if !ok {
		return nil, fmt.Errorf("page %s: %w", id, database.ErrNotFound)
	}
	return node, nil
}

// Pages resolves page IDs, failing on the first ID that is not a page
func (s *PageService) Pages(ctx context.Context, ids []string) ([]*model.Page, error) {
	pages, err := s.repo.GetPages(ctx, ids)
	if err != nil {
		return nil, err
	}

	found := make(map[string]bool, len(pages))
	for _, p := range pages {
		found[p.ID] = true
	}
	for _, id := range ids {
		if !found[id] {
			return nil, fmt.Errorf("page %s: %w", id, database.ErrNotFound)
		}
	}
	return pages, nil
}

// CreatePage validates and stores a new page under parentID
func (s *PageService) CreatePage(ctx context.Context, parentID string, page *model.Page) error {
	if err := page.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	// scan state is owned by the scan engine
	page.LastAutoscanTime = nil
	page.State = ""
	page.ChangedAt = nil

	record := model.RecordFromPage(page, parentID)
	if err := s.repo.Create(ctx, parentID, record); err != nil {
		return err
	}
	page.ID = record.ID

	slog.Info("Page created", "page_id", page.ID, "parent_id", parentID, "url", page.URL)
	return nil
}

// CreateFolder validates and stores a new empty folder under parentID
func (s *PageService) CreateFolder(ctx context.Context, parentID string, folder *model.PageFolder) error {
	if err := folder.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	record := model.RecordFromFolder(folder, parentID)
	if err := s.repo.Create(ctx, parentID, record); err != nil {
		return err
	}
	folder.ID = record.ID
	folder.Children = nil

	slog.Info("Folder created", "folder_id", folder.ID, "parent_id", parentID)
	return nil
}

// UpdatePage replaces the editable fields of a page
func (s *PageService) UpdatePage(ctx context.Context, id string, page *model.Page) error {
	if err := page.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	page.ID = id
	return s.repo.Update(ctx, model.RecordFromPage(page, ""))
}

// RenameFolder changes the title of a folder
func (s *PageService) RenameFolder(ctx context.Context, id string, folder *model.PageFolder) error {
	if err := folder.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	folder.ID = id
	return s.repo.Update(ctx, model.RecordFromFolder(folder, ""))
}

// Update applies a change to whichever kind of node id refers to
func (s *PageService) Update(ctx context.Context, id string, page *model.Page) (model.Node, error) {
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if record.Type == model.NodeTypeFolder {
		folder := &model.PageFolder{Title: page.Title}
		if err := s.RenameFolder(ctx, id, folder); err != nil {
			return nil, err
		}
		return folder, nil
	}

	if err := s.UpdatePage(ctx, id, page); err != nil {
		return nil, err
	}
	return page, nil
}

// Delete removes a page or an empty folder and the page's scan history
func (s *PageService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	if s.history != nil {
		removed, err := s.history.DeleteByPage(ctx, id)
		if err != nil {
			slog.Warn("Failed to delete scan history", "page_id", id, "error", err)
		} else if removed > 0 {
			slog.Debug("Scan history deleted", "page_id", id, "count", removed)
		}
	}

	slog.Info("Page deleted", "page_id", id)
	return nil
}

// HTML returns a cached copy of a page's content
func (s *PageService) HTML(ctx context.Context, id string, htmlType model.HTMLType) (string, error) {
	if !htmlType.Valid() {
		return "", fmt.Errorf("%w: unknown content type %q", ErrValidation, htmlType)
	}
	return s.repo.LoadHTML(ctx, id, htmlType)
}
