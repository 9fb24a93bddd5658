package model

import (
	"time"
)

// HTMLType names one of the cached copies of a page's content
type HTMLType string

const (
	// HTMLOld is the content seen by the scan before the latest change
	HTMLOld HTMLType = "old"
	// HTMLNew is the content seen by the most recent scan
	HTMLNew HTMLType = "new"
)

// Valid reports whether t is a known content type
func (t HTMLType) Valid() bool {
	return t == HTMLOld || t == HTMLNew
}

// PageRecord is the stored form of a tree node. Folders keep the ordered IDs of their children.
type PageRecord struct {
	ID               string     `json:"id" bson:"_id"`
	Type             NodeType   `json:"type" bson:"type"`
	Title            string     `json:"title" bson:"title"`
	ParentID         string     `json:"parent_id,omitempty" bson:"parent_id,omitempty"`
	Children         []string   `json:"children,omitempty" bson:"children,omitempty"`
	URL              string     `json:"url,omitempty" bson:"url,omitempty"`
	ScanRateMinutes  float64    `json:"scan_rate_minutes,omitempty" bson:"scan_rate_minutes,omitempty"`
	LastAutoscanTime *time.Time `json:"last_autoscan_time,omitempty" bson:"last_autoscan_time,omitempty"`
	Selector         string     `json:"selector,omitempty" bson:"selector,omitempty"`
	State            ScanState  `json:"state,omitempty" bson:"state,omitempty"`
	ChangedAt        *time.Time `json:"changed_at,omitempty" bson:"changed_at,omitempty"`
	Metadata         Metadata   `json:"metadata" bson:"metadata"`
}

// PageHTML is one cached copy of a page's content
type PageHTML struct {
	ID        string    `bson:"_id"`
	PageID    string    `bson:"page_id"`
	Type      HTMLType  `bson:"type"`
	HTML      string    `bson:"html"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// PageHTMLID is the storage key of a cached content copy
func PageHTMLID(pageID string, t HTMLType) string {
	return pageID + ":" + string(t)
}

// ToPage converts a page record to its tree form
func (r *PageRecord) ToPage() *Page {
	return &Page{
		ID:               r.ID,
		Title:            r.Title,
		URL:              r.URL,
		ScanRateMinutes:  r.ScanRateMinutes,
		LastAutoscanTime: r.LastAutoscanTime,
		Selector:         r.Selector,
		State:            r.State,
		ChangedAt:        r.ChangedAt,
	}
}

// RecordFromPage builds the stored form of a page placed under parentID
func RecordFromPage(p *Page, parentID string) *PageRecord {
	return &PageRecord{
		ID:               p.ID,
		Type:             NodeTypePage,
		Title:            p.Title,
		ParentID:         parentID,
		URL:              p.URL,
		ScanRateMinutes:  p.ScanRateMinutes,
		LastAutoscanTime: p.LastAutoscanTime,
		Selector:         p.Selector,
		State:            p.State,
		ChangedAt:        p.ChangedAt,
	}
}

// RecordFromFolder builds the stored form of an empty folder placed under parentID
func RecordFromFolder(f *PageFolder, parentID string) *PageRecord {
	return &PageRecord{
		ID:       f.ID,
		Type:     NodeTypeFolder,
		Title:    f.Title,
		ParentID: parentID,
		Children: []string{},
	}
}

// BuildTree assembles the tree hanging off rootID from flat records.
// Unknown child IDs and cycles are skipped. A missing root yields an empty root folder.
func BuildTree(records []PageRecord, rootID string) *PageFolder {
	byID := make(map[string]*PageRecord, len(records))
	for i := range records {
		byID[records[i].ID] = &records[i]
	}

	rootRecord, ok := byID[rootID]
	if !ok || rootRecord.Type != NodeTypeFolder {
		return &PageFolder{ID: rootID, Title: "root"}
	}

	visited := make(map[string]bool, len(records))
	var build func(r *PageRecord) Node
	build = func(r *PageRecord) Node {
		visited[r.ID] = true
		if r.Type == NodeTypePage {
			return r.ToPage()
		}
		folder := &PageFolder{ID: r.ID, Title: r.Title}
		for _, childID := range r.Children {
			child, ok := byID[childID]
			if !ok || visited[childID] {
				continue
			}
			folder.Children = append(folder.Children, build(child))
		}
		return folder
	}

	return build(rootRecord).(*PageFolder)
}
