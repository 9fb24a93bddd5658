package model

import (
	"sync"
	"time"
)

// ScanBatch is the outcome of scanning one list of pages
type ScanBatch struct {
	BatchID string              `json:"batch_id"`
	Trigger ScanTrigger         `json:"trigger"`
	Records []ScanRecordSummary `json:"records"`
}

// JobStatus represents the status of an async scan job
type JobStatus struct {
	JobID       string     `json:"job_id"`
	Status      string     `json:"status"` // "queued", "processing", "completed", "failed"
	PageIDs     []string   `json:"page_ids"`
	Error       string     `json:"error,omitempty"`
	Result      *ScanBatch `json:"result,omitempty"`
	SubmittedAt time.Time  `json:"submitted_at"`
}

// JobStatusStore is an in-memory store for job statuses
type JobStatusStore struct {
	mu   sync.RWMutex
	jobs map[string]*JobStatus
}

// NewJobStatusStore creates a new job status store
func NewJobStatusStore() *JobStatusStore {
	return &JobStatusStore{
		jobs: make(map[string]*JobStatus),
	}
}

// Set stores a job status
func (s *JobStatusStore) Set(jobID string, status *JobStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[jobID] = status
}

// Update applies fn to a stored job status under the store lock
func (s *JobStatusStore) Update(jobID string, fn func(*JobStatus)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	status, exists := s.jobs[jobID]
	if exists {
		fn(status)
	}
	return exists
}

// Get retrieves a copy of a job status
func (s *JobStatusStore) Get(jobID string) (JobStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status, exists := s.jobs[jobID]
	if !exists {
		return JobStatus{}, false
	}
	return *status, true
}
