package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/oliveagle/jsonpath"
)

// RootID is the ID of the folder at the top of every page tree
const RootID = "0"

// DefaultScanRateMinutes is applied to new pages that do not set a scan rate (one day)
const DefaultScanRateMinutes = 24 * 60

// NodeType discriminates the two kinds of tree node
type NodeType string

const (
	NodeTypePage   NodeType = "page"
	NodeTypeFolder NodeType = "folder"
)

// ScanState is the outcome of the most recent scan of a page
type ScanState string

const (
	StateNoChange ScanState = "no_change"
	StateChanged  ScanState = "changed"
	StateError    ScanState = "error"
)

// Node is a member of the page tree: either a *Page or a *PageFolder.
type Node interface {
	NodeID() string
	NodeTitle() string
	isNode()
}

// Page is a single monitored web resource
type Page struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	URL              string     `json:"url"`
	ScanRateMinutes  float64    `json:"scan_rate_minutes"`
	LastAutoscanTime *time.Time `json:"last_autoscan_time,omitempty"`
	Selector         string     `json:"selector,omitempty"`
	State            ScanState  `json:"state,omitempty"`
	ChangedAt        *time.Time `json:"changed_at,omitempty"`
}

// PageFolder is a container of pages and other folders. It is never scanned.
type PageFolder struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Children []Node `json:"children"`
}

func (p *Page) NodeID() string    { return p.ID }
func (p *Page) NodeTitle() string { return p.Title }
func (*Page) isNode()             {}

func (f *PageFolder) NodeID() string    { return f.ID }
func (f *PageFolder) NodeTitle() string { return f.Title }
func (*PageFolder) isNode()             {}

// MarshalJSON adds the node type so clients can tell pages and folders apart
func (p *Page) MarshalJSON() ([]byte, error) {
	type alias Page
	return json.Marshal(struct {
		Type NodeType `json:"type"`
		*alias
	}{NodeTypePage, (*alias)(p)})
}

// MarshalJSON adds the node type so clients can tell pages and folders apart
func (f *PageFolder) MarshalJSON() ([]byte, error) {
	type alias PageFolder
	a := (*alias)(f)
	if a.Children == nil {
		a = &alias{ID: f.ID, Title: f.Title, Children: []Node{}}
	}
	return json.Marshal(struct {
		Type NodeType `json:"type"`
		*alias
	}{NodeTypeFolder, a})
}

// ScanRate returns the configured scan interval as a duration
func (p *Page) ScanRate() time.Duration {
	return time.Duration(p.ScanRateMinutes * float64(time.Minute))
}

// Validate checks a page before it is stored and fills in defaults
func (p *Page) Validate() error {
	if p.URL == "" {
		return errors.New("page URL is required")
	}

	parsedURL, err := url.Parse(p.URL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return errors.New("URL must start with http:// or https://")
	}

	if p.ScanRateMinutes == 0 {
		p.ScanRateMinutes = DefaultScanRateMinutes
	}
	if p.ScanRateMinutes < 0 {
		return errors.New("scan_rate_minutes must be positive")
	}

	if p.Selector != "" {
		if _, err := jsonpath.Compile(p.Selector); err != nil {
			return fmt.Errorf("invalid selector: %w", err)
		}
	}

	if p.Title == "" {
		p.Title = p.URL
	}

	return nil
}

// Validate checks a folder before it is stored
func (f *PageFolder) Validate() error {
	if f.Title == "" {
		return errors.New("folder title is required")
	}
	if len(f.Title) > 255 {
		return errors.New("folder title must be 255 characters or less")
	}
	return nil
}

// Flatten returns every Page below root, depth first. Folders are dropped.
func Flatten(root Node) []*Page {
	var pages []*Page
	var walk func(n Node)
	walk = func(n Node) {
		switch node := n.(type) {
		case *Page:
			pages = append(pages, node)
		case *PageFolder:
			for _, child := range node.Children {
				walk(child)
			}
		}
	}
	if root != nil {
		walk(root)
	}
	return pages
}

// Find returns the node with the given ID below root
func Find(root Node, id string) (Node, bool) {
	switch node := root.(type) {
	case *Page:
		if node.ID == id {
			return node, true
		}
	case *PageFolder:
		if node.ID == id {
			return node, true
		}
		for _, child := range node.Children {
			if found, ok := Find(child, id); ok {
				return found, true
			}
		}
	}
	return nil, false
}
