package bulkimport

import (
	"sync"
	"time"
)

// StatusTracker receives the lifecycle of an import job.
// Implementations must be safe for concurrent use.
type StatusTracker interface {
	Start(jobID string, total int)
	Advance(jobID string, n int)
	Finish(jobID string, err error)
}

// JobState is the lifecycle state of a job.
type JobState string

const (
	JobRunning   JobState = "running"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
)

// JobStatus is a point-in-time view of one job.
type JobStatus struct {
	ID         string
	State      JobState
	Total      int
	Done       int
	Err        string
	StartedAt  time.Time
	FinishedAt time.Time
}

// MemoryStatus keeps job status in memory so callers can poll it.
type MemoryStatus struct {
	mu   sync.RWMutex
	jobs map[string]*JobStatus
}

var _ StatusTracker = (*MemoryStatus)(nil)

// NewMemoryStatus creates an empty status store.
func NewMemoryStatus() *MemoryStatus {
	return &MemoryStatus{jobs: make(map[string]*JobStatus)}
}

func (m *MemoryStatus) Start(jobID string, total int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[jobID] = &JobStatus{
		ID:        jobID,
		State:     JobRunning,
		Total:     total,
		StartedAt: time.Now(),
	}
}

func (m *MemoryStatus) Advance(jobID string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[jobID]; ok {
		job.Done = min(job.Done+n, job.Total)
	}
}

func (m *MemoryStatus) Finish(jobID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return
	}
	job.FinishedAt = time.Now()
	if err != nil {
		job.State = JobFailed
		job.Err = err.Error()
		return
	}
	job.State = JobCompleted
}

// Status returns a copy of the job's status.
func (m *MemoryStatus) Status(jobID string) (JobStatus, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return JobStatus{}, false
	}
	return *job, true
}

// multiStatus fans events out to several trackers.
type multiStatus []StatusTracker

func (ms multiStatus) Start(jobID string, total int) {
	for _, s := range ms {
		s.Start(jobID, total)
	}
}

func (ms multiStatus) Advance(jobID string, n int) {
	for _, s := range ms {
		s.Advance(jobID, n)
	}
}

func (ms multiStatus) Finish(jobID string, err error) {
	for _, s := range ms {
		s.Finish(jobID, err)
	}
}
