package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func sampleTree() *PageFolder {
	return &PageFolder{
		ID:    RootID,
		Title: "root",
		Children: []Node{
			&Page{ID: "a", URL: "http://a.example.com", ScanRateMinutes: 15},
			&PageFolder{
				ID:    "f1",
				Title: "news",
				Children: []Node{
					&Page{ID: "b", URL: "http://b.example.com", ScanRateMinutes: 30},
					&PageFolder{ID: "f2", Title: "empty"},
				},
			},
			&Page{ID: "c", URL: "http://c.example.com", ScanRateMinutes: 60},
		},
	}
}

func TestFlatten_DropsFolders(t *testing.T) {
	pages := Flatten(sampleTree())

	var ids []string
	for _, p := range pages {
		ids = append(ids, p.ID)
	}
	if got := strings.Join(ids, ","); got != "a,b,c" {
		t.Errorf("Flatten ids = %q, want a,b,c", got)
	}
}

func TestFlatten_NilAndSinglePage(t *testing.T) {
	if pages := Flatten(nil); len(pages) != 0 {
		t.Errorf("Flatten(nil) returned %d pages", len(pages))
	}
	if pages := Flatten(&PageFolder{ID: RootID}); len(pages) != 0 {
		t.Errorf("Flatten(empty folder) returned %d pages", len(pages))
	}
	page := &Page{ID: "solo"}
	if pages := Flatten(page); len(pages) != 1 || pages[0] != page {
		t.Errorf("Flatten(page) = %v", pages)
	}
}

func TestFind(t *testing.T) {
	tree := sampleTree()

	node, ok := Find(tree, "b")
	if !ok {
		t.Fatal("expected to find page b")
	}
	if _, isPage := node.(*Page); !isPage {
		t.Errorf("expected *Page, got %T", node)
	}

	node, ok = Find(tree, "f2")
	if !ok {
		t.Fatal("expected to find folder f2")
	}
	if _, isFolder := node.(*PageFolder); !isFolder {
		t.Errorf("expected *PageFolder, got %T", node)
	}

	if _, ok := Find(tree, "missing"); ok {
		t.Error("expected missing node not to be found")
	}
}

func TestPageValidate(t *testing.T) {
	p := &Page{URL: "https://example.com/news"}
	if err := p.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if p.ScanRateMinutes != DefaultScanRateMinutes {
		t.Errorf("ScanRateMinutes = %v, want default", p.ScanRateMinutes)
	}
	if p.Title != p.URL {
		t.Errorf("Title = %q, want URL", p.Title)
	}

	bad := []*Page{
		{},
		{URL: "ftp://example.com"},
		{URL: "http://example.com", ScanRateMinutes: -5},
		{URL: "http://example.com", Selector: "no-dollar"},
	}
	for _, p := range bad {
		if err := p.Validate(); err == nil {
			t.Errorf("expected validation error for %+v", p)
		}
	}
}

func TestPageValidate_AcceptsSelector(t *testing.T) {
	p := &Page{URL: "http://api.example.com/status", Selector: "$.version"}
	if err := p.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestFolderValidate(t *testing.T) {
	if err := (&PageFolder{}).Validate(); err == nil {
		t.Error("expected error for folder without title")
	}
	if err := (&PageFolder{Title: strings.Repeat("x", 256)}).Validate(); err == nil {
		t.Error("expected error for long title")
	}
	if err := (&PageFolder{Title: "news"}).Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestScanRate(t *testing.T) {
	p := &Page{ScanRateMinutes: 0.5}
	if p.ScanRate() != 30*time.Second {
		t.Errorf("ScanRate = %v, want 30s", p.ScanRate())
	}
}

func TestNodeJSON_CarriesType(t *testing.T) {
	data, err := json.Marshal(sampleTree())
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded struct {
		Type     string `json:"type"`
		Children []struct {
			Type     string            `json:"type"`
			ID       string            `json:"id"`
			Children []json.RawMessage `json:"children"`
		} `json:"children"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Type != "folder" {
		t.Errorf("root type = %q, want folder", decoded.Type)
	}
	if len(decoded.Children) != 3 {
		t.Fatalf("expected 3 children, got %d", len(decoded.Children))
	}
	if decoded.Children[0].Type != "page" || decoded.Children[1].Type != "folder" {
		t.Errorf("unexpected child types: %+v", decoded.Children)
	}
	if len(decoded.Children[1].Children) != 2 {
		t.Errorf("expected nested folder with 2 children, got %d", len(decoded.Children[1].Children))
	}
}

func TestEmptyFolderJSON_HasEmptyChildren(t *testing.T) {
	data, err := json.Marshal(&PageFolder{ID: "x", Title: "x"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(data), `"children":[]`) {
		t.Errorf("expected empty children array, got %s", data)
	}
}
