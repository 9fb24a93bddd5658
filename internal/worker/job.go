package worker

import (
	"context"

	"github.com/nsabot/updatescanner/internal/model"
)

// Job is one page scan within a batch
type Job struct {
	Page    *model.Page
	BatchID string
	Trigger model.ScanTrigger
	Context context.Context
	// Reply receives exactly one Result. It must be buffered or drained by the submitter.
	Reply chan<- Result
}

// Result represents the outcome of a page scan
type Result struct {
	PageID  string
	Record  *model.ScanRecord
	Changed bool
	Skipped bool // another scanner held the page lock
	Error   error
}
