package engine

import (
	"fmt"
	"sync"
	"time"
)

// JobStatus represents the current status of an async analysis.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Job tracks one async analysis.
type Job struct {
	ID          string     `json:"id"`
	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	Report      *Report    `json:"report,omitempty"`
}

func (j *Job) finished() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// JobStore is an in-memory job table, safe for concurrent use. It holds at
// most limit jobs; when full, the oldest finished job is evicted. Data is
// lost on restart.
type JobStore struct {
	mu    sync.RWMutex
	jobs  map[string]*Job
	order []string
	limit int
	now   func() time.Time
}

// NewJobStore creates a store holding at most limit jobs.
func NewJobStore(limit int) *JobStore {
	if limit < 1 {
		limit = 1
	}
	return &JobStore{jobs: make(map[string]*Job), limit: limit, now: time.Now}
}

// Create registers a pending job. It fails when the store is full of
// unfinished jobs.
func (s *JobStore) Create(id string) (*Job, error) {
	if id == "" {
		return nil, fmt.Errorf("job ID is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[id]; exists {
		return nil, fmt.Errorf("job %s already exists", id)
	}
	if len(s.jobs) >= s.limit && !s.evictLocked() {
		return nil, fmt.Errorf("job store full (%d unfinished jobs)", len(s.jobs))
	}
	j := &Job{ID: id, Status: JobStatusPending, CreatedAt: s.now()}
	s.jobs[id] = j
	s.order = append(s.order, id)

	// Return a copy to avoid external modifications
	jobCopy := *j
	return &jobCopy, nil
}

func (s *JobStore) evictLocked() bool {
	for i, id := range s.order {
		if s.jobs[id].finished() {
			delete(s.jobs, id)
			s.order = append(s.order[:i], s.order[i+1:]...)
			return true
		}
	}
	return false
}

// Get retrieves a copy of a job.
func (s *JobStore) Get(id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, exists := s.jobs[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	jobCopy := *j
	return &jobCopy, nil
}

// Start marks a job running.
func (s *JobStore) Start(id string) {
	s.update(id, func(j *Job) {
		t := s.now()
		j.Status = JobStatusRunning
		j.StartedAt = &t
	})
}

// Complete stores the report of a finished job.
func (s *JobStore) Complete(id string, rep *Report) {
	s.update(id, func(j *Job) {
		t := s.now()
		j.Status = JobStatusCompleted
		j.CompletedAt = &t
		j.Report = rep
	})
}

// Fail marks a job failed.
func (s *JobStore) Fail(id string, err error) {
	s.update(id, func(j *Job) {
		t := s.now()
		j.Status = JobStatusFailed
		j.CompletedAt = &t
		j.Error = err.Error()
	})
}

func (s *JobStore) update(id string, fn func(*Job)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok {
		fn(j)
	}
}

// Len returns the number of stored jobs.
func (s *JobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}
