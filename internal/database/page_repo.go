package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nsabot/updatescanner/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrRootNotDeletable = errors.New("the root folder cannot be deleted")
	ErrFolderNotEmpty   = errors.New("folder is not empty")
	ErrInvalidParent    = errors.New("parent must be an existing folder")
)

// PageRepository stores the page tree and the cached content of each page
type PageRepository struct {
	collection *mongo.Collection
	html       *mongo.Collection
}

// NewPageRepository creates a new page repository
func NewPageRepository(db *MongoDB) *PageRepository {
	return &PageRepository{
		collection: db.GetCollection(CollectionPages),
		html:       db.GetCollection(CollectionPageHTML),
	}
}

// EnsureRoot creates the root folder if it does not exist yet
func (r *PageRepository) EnsureRoot(ctx context.Context) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// Only inserts on first start; an existing root is left as is
	now := time.Now().UTC()
	update := bson.M{
		"$setOnInsert": bson.M{
			"type":     model.NodeTypeFolder,
			"title":    "root",
			"children": []string{},
			"metadata": model.Metadata{CreatedAt: now, UpdatedAt: now},
		},
	}

	_, err := r.collection.UpdateOne(ctxTimeout, bson.M{"_id": model.RootID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to ensure root folder: %w", err)
	}
	return nil
}

// LoadPageTree reads every node and assembles the tree below the root folder
func (r *PageRepository) LoadPageTree(ctx context.Context) (*model.PageFolder, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cursor, err := r.collection.Find(ctxTimeout, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to load pages: %w", err)
	}
	defer cursor.Close(ctxTimeout)

	var records []model.PageRecord
	if err := cursor.All(ctxTimeout, &records); err != nil {
		return nil, fmt.Errorf("failed to decode pages: %w", err)
	}

	// Assemble the nested tree from the flat records
	return model.BuildTree(records, model.RootID), nil
}

// GetByID retrieves a single node record
func (r *PageRepository) GetByID(ctx context.Context, id string) (*model.PageRecord, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var record model.PageRecord
	err := r.collection.FindOne(ctxTimeout, bson.M{"_id": id}).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("page %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get page: %w", err)
	}

	return &record, nil
}

// GetPages retrieves the pages with the given IDs in the order requested. Folders and unknown IDs are skipped.
func (r *PageRepository) GetPages(ctx context.Context, ids []string) ([]*model.Page, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	filter := bson.M{
		"_id":  bson.M{"$in": ids},
		"type": model.NodeTypePage,
	}
	cursor, err := r.collection.Find(ctxTimeout, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to get pages: %w", err)
	}
	defer cursor.Close(ctxTimeout)

	var records []model.PageRecord
	if err := cursor.All(ctxTimeout, &records); err != nil {
		return nil, fmt.Errorf("failed to decode pages: %w", err)
	}

	// Restore the requested order
	byID := make(map[string]*model.PageRecord, len(records))
	for i := range records {
		byID[records[i].ID] = &records[i]
	}

	pages := make([]*model.Page, 0, len(records))
	for _, id := range ids {
		if rec, ok := byID[id]; ok {
			pages = append(pages, rec.ToPage())
			delete(byID, id)
		}
	}
	return pages, nil
}

// Create stores a new node and appends it to its parent's children. A new ID is assigned.
func (r *PageRepository) Create(ctx context.Context, parentID string, record *model.PageRecord) error {
	// Parent must be an existing folder
	parent, err := r.GetByID(ctx, parentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrInvalidParent
		}
		return err
	}
	if parent.Type != model.NodeTypeFolder {
		return ErrInvalidParent
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// Generate ID
	record.ID = primitive.NewObjectID().Hex()
	record.ParentID = parentID
	record.Metadata.Touch(time.Now().UTC())
	if record.Type == model.NodeTypeFolder && record.Children == nil {
		record.Children = []string{}
	}

	if _, err := r.collection.InsertOne(ctxTimeout, record); err != nil {
		return fmt.Errorf("failed to create page: %w", err)
	}

	// Append to the parent's ordered children
	update := bson.M{
		"$push": bson.M{"children": record.ID},
		"$set":  bson.M{"metadata.updated_at": record.Metadata.UpdatedAt},
	}
	if _, err := r.collection.UpdateOne(ctxTimeout, bson.M{"_id": parentID}, update); err != nil {
		return fmt.Errorf("failed to attach page to parent: %w", err)
	}

	return nil
}

// Update replaces the editable fields of an existing node. Scan state is left untouched.
func (r *PageRepository) Update(ctx context.Context, record *model.PageRecord) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	set := bson.M{
		"title":               record.Title,
		"metadata.updated_at": time.Now().UTC(),
	}
	// Page-only fields
	if record.Type == model.NodeTypePage {
		set["url"] = record.URL
		set["scan_rate_minutes"] = record.ScanRateMinutes
		set["selector"] = record.Selector
	}

	filter := bson.M{"_id": record.ID, "type": record.Type}
	result, err := r.collection.UpdateOne(ctxTimeout, filter, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update page: %w", err)
	}

	if result.MatchedCount == 0 {
		return fmt.Errorf("page %s: %w", record.ID, ErrNotFound)
	}

	return nil
}

// Delete removes a page or an empty folder together with its cached content
func (r *PageRepository) Delete(ctx context.Context, id string) error {
	if id == model.RootID {
		return ErrRootNotDeletable
	}

	record, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	// Only empty folders can be deleted
	if record.Type == model.NodeTypeFolder && len(record.Children) > 0 {
		return ErrFolderNotEmpty
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result, err := r.collection.DeleteOne(ctxTimeout, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete page: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("page %s: %w", id, ErrNotFound)
	}

	// Remove from the parent's children
	if record.ParentID != "" {
		detach := bson.M{"$pull": bson.M{"children": id}}
		if _, err := r.collection.UpdateOne(ctxTimeout, bson.M{"_id": record.ParentID}, detach); err != nil {
			return fmt.Errorf("failed to detach page from parent: %w", err)
		}
	}

	// Drop cached content
	if _, err := r.html.DeleteMany(ctxTimeout, bson.M{"page_id": id}); err != nil {
		return fmt.Errorf("failed to delete cached content: %w", err)
	}

	return nil
}

// UpdateScanState records the outcome of a scan and the time it ran
func (r *PageRepository) UpdateScanState(ctx context.Context, id string, state model.ScanState, scannedAt time.Time, changed bool) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	set := bson.M{
		"state":               state,
		"last_autoscan_time":  scannedAt,
		"metadata.updated_at": time.Now().UTC(),
	}
	// Only a change moves changed_at
	if changed {
		set["changed_at"] = scannedAt
	}

	filter := bson.M{"_id": id, "type": model.NodeTypePage}
	result, err := r.collection.UpdateOne(ctxTimeout, filter, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update scan state: %w", err)
	}

	if result.MatchedCount == 0 {
		return fmt.Errorf("page %s: %w", id, ErrNotFound)
	}

	return nil
}

// SaveHTML stores one cached copy of a page's content, replacing the previous copy of that type
func (r *PageRepository) SaveHTML(ctx context.Context, pageID string, htmlType model.HTMLType, html string) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	doc := model.PageHTML{
		ID:        model.PageHTMLID(pageID, htmlType),
		PageID:    pageID,
		Type:      htmlType,
		HTML:      html,
		UpdatedAt: time.Now().UTC(),
	}

	_, err := r.html.ReplaceOne(ctxTimeout, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save %s content: %w", htmlType, err)
	}

	return nil
}

// LoadHTML returns one cached copy of a page's content
func (r *PageRepository) LoadHTML(ctx context.Context, pageID string, htmlType model.HTMLType) (string, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var doc model.PageHTML
	err := r.html.FindOne(ctxTimeout, bson.M{"_id": model.PageHTMLID(pageID, htmlType)}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", fmt.Errorf("%s content of page %s: %w", htmlType, pageID, ErrNotFound)
		}
		return "", fmt.Errorf("failed to load %s content: %w", htmlType, err)
	}

	return doc.HTML, nil
}
