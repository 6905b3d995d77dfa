package mcp

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Sriram-PR/site-harvester/pkg/crawler"
	"github.com/Sriram-PR/site-harvester/pkg/models"
)

// JobStatus represents the current state of a crawl job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// IsActive reports whether a job in status s can still make progress
func (s JobStatus) IsActive() bool {
	return s == JobStatusPending || s == JobStatusRunning
}

// Job represents a background crawl job
type Job struct {
	ID           string    `json:"id"`
	Target       string    `json:"target"`
	Seed         string    `json:"seed,omitempty"`
	Status       JobStatus `json:"status"`
	StartedAt    time.Time `json:"started_at"`
	CompletedAt  time.Time `json:"completed_at,omitempty"`
	PagesVisited int       `json:"pages_visited"`
	PagesQueued  int       `json:"pages_queued"`
	Artifacts    int       `json:"artifacts"`
	ErrorMessage string    `json:"error_message,omitempty"`

	// Internal fields
	ctx      context.Context
	cancel   context.CancelFunc
	progress func() crawler.Progress
	result   *models.CrawlResult
}

// JobManager manages background crawl jobs
type JobManager struct {
	jobs     map[string]*Job
	mu       sync.RWMutex
	byTarget map[string]string // target -> jobID for active jobs
}

// NewJobManager creates a new job manager
func NewJobManager() *JobManager {
	return &JobManager{
		jobs:     make(map[string]*Job),
		byTarget: make(map[string]string),
	}
}

// CreateJob creates a pending job for target. If a job for target is still
// active, that job is returned with created=false.
func (m *JobManager) CreateJob(target, seed string) (job Job, created bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existingID, exists := m.byTarget[target]; exists {
		if existing := m.jobs[existingID]; existing != nil && existing.Status.IsActive() {
			return existing.snapshot(), false
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	j := &Job{
		ID:        uuid.New().String(),
		Target:    target,
		Seed:      seed,
		Status:    JobStatusPending,
		StartedAt: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}
	m.jobs[j.ID] = j
	m.byTarget[target] = j.ID
	return j.snapshot(), true
}

// snapshot copies the exported fields, refreshing progress counters for active jobs.
// Callers hold m.mu.
func (j *Job) snapshot() Job {
	if j.progress != nil && j.Status.IsActive() {
		p := j.progress()
		j.PagesVisited, j.PagesQueued, j.Artifacts = p.Visited, p.Queued, p.Artifacts
	}
	return Job{
		ID:           j.ID,
		Target:       j.Target,
		Seed:         j.Seed,
		Status:       j.Status,
		StartedAt:    j.StartedAt,
		CompletedAt:  j.CompletedAt,
		PagesVisited: j.PagesVisited,
		PagesQueued:  j.PagesQueued,
		Artifacts:    j.Artifacts,
		ErrorMessage: j.ErrorMessage,
	}
}

// GetJob returns a snapshot of the job with jobID
func (m *JobManager) GetJob(jobID string) (Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobID]
	if !ok {
		return Job{}, false
	}
	return j.snapshot(), true
}

// GetJobByTarget returns the active job for target, if any
func (m *JobManager) GetJobByTarget(target string) (Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if jobID, exists := m.byTarget[target]; exists {
		if j := m.jobs[jobID]; j != nil {
			return j.snapshot(), true
		}
	}
	return Job{}, false
}

// IsRunning checks if a job is currently active for target
func (m *JobManager) IsRunning(target string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if jobID, exists := m.byTarget[target]; exists {
		j := m.jobs[jobID]
		return j != nil && j.Status.IsActive()
	}
	return false
}

// Start moves a pending job to running and attaches its progress source.
// It returns the job's context, or nil if the job is gone or no longer pending.
func (m *JobManager) Start(jobID string, progress func() crawler.Progress) context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, exists := m.jobs[jobID]
	if !exists || j.Status != JobStatusPending {
		return nil
	}
	j.Status = JobStatusRunning
	j.progress = progress
	return j.ctx
}

// UpdateStatus sets the status of a job. Terminal statuses are final.
func (m *JobManager) UpdateStatus(jobID string, status JobStatus, errorMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, exists := m.jobs[jobID]
	if !exists || !j.Status.IsActive() {
		return
	}
	j.Status = status
	if !status.IsActive() {
		m.finishLocked(j)
	}
	if errorMsg != "" {
		j.ErrorMessage = errorMsg
	}
}

// Finish records res as the outcome of the job. A job cancelled in the
// meantime keeps its cancelled status but still gets the partial result.
func (m *JobManager) Finish(jobID string, res *models.CrawlResult, runErr error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, exists := m.jobs[jobID]
	if !exists {
		return
	}
	j.result = res
	if res != nil {
		j.PagesVisited = res.PagesVisited
		j.Artifacts = len(res.Artifacts)
		j.PagesQueued = 0
	}
	if !j.Status.IsActive() {
		return
	}
	switch {
	case runErr == nil:
		j.Status = JobStatusCompleted
	case j.ctx.Err() != nil:
		j.Status = JobStatusCancelled
	default:
		j.Status = JobStatusFailed
		j.ErrorMessage = runErr.Error()
	}
	m.finishLocked(j)
}

func (m *JobManager) finishLocked(j *Job) {
	j.CompletedAt = time.Now()
	j.progress = nil
	if m.byTarget[j.Target] == j.ID {
		delete(m.byTarget, j.Target)
	}
}

// Result returns the crawl result of a finished job
func (m *JobManager) Result(jobID string) (*models.CrawlResult, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, exists := m.jobs[jobID]
	if !exists || j.result == nil {
		return nil, false
	}
	return j.result, true
}

// CancelJob cancels an active job
func (m *JobManager) CancelJob(jobID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, exists := m.jobs[jobID]
	if !exists || !j.Status.IsActive() {
		return false
	}
	j.cancel()
	j.Status = JobStatusCancelled
	m.finishLocked(j)
	return true
}

// CancelAll cancels all active jobs
func (m *JobManager) CancelAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, j := range m.jobs {
		if j.Status.IsActive() {
			j.cancel()
			j.Status = JobStatusCancelled
			m.finishLocked(j)
		}
	}
}

// ListJobs returns snapshots of all jobs, oldest first
func (m *JobManager) ListJobs() []Job {
	m.mu.Lock()
	defer m.mu.Unlock()

	jobs := make([]Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		jobs = append(jobs, j.snapshot())
	}
	sort.Slice(jobs, func(a, b int) bool { return jobs[a].StartedAt.Before(jobs[b].StartedAt) })
	return jobs
}
