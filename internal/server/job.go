package server

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cwbudde/blendopt/internal/blend"
	"github.com/cwbudde/blendopt/internal/plan"
)

// JobState represents the current state of a job
type JobState string

const (
	StatePending   JobState = "pending"
	StateRunning   JobState = "running"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
	StateCancelled JobState = "cancelled"
)

// Terminal reports whether the job will not change state again.
func (s JobState) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Job represents an optimization run requested over HTTP
type Job struct {
	ID        string       `json:"id"`
	State     JobState     `json:"state"`
	Mode      plan.Mode    `json:"mode"`
	Tanks     int          `json:"tanks"`
	Cost      float64      `json:"cost"`
	Feasible  bool         `json:"feasible"`
	Optimizer string       `json:"optimizer,omitempty"`
	Persisted bool         `json:"persisted"`
	Report    *plan.Report `json:"report,omitempty"`
	StartTime time.Time    `json:"startTime"`
	EndTime   *time.Time   `json:"endTime,omitempty"`
	Error     string       `json:"error,omitempty"`

	input blend.Input
}

// Summary returns the job without its report.
func (j Job) Summary() Job {
	j.Report = nil
	return j
}

// JobManager manages the lifecycle of jobs
type JobManager struct {
	mu          sync.RWMutex
	jobs        map[string]*Job
	broadcaster *EventBroadcaster
}

// NewJobManager creates a new JobManager. A nil logger disables logging.
func NewJobManager(logger *zap.Logger) *JobManager {
	return &JobManager{
		jobs:        make(map[string]*Job),
		broadcaster: NewEventBroadcaster(logger),
	}
}

// CreateJob registers a pending job for the given problem
func (jm *JobManager) CreateJob(in blend.Input, mode plan.Mode) Job {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job := &Job{
		ID:        uuid.New().String(),
		State:     StatePending,
		Mode:      mode,
		Tanks:     len(in.Tanks),
		StartTime: time.Now(),
		input:     in,
	}

	jm.jobs[job.ID] = job
	return *job
}

// GetJob returns a snapshot of a job
func (jm *JobManager) GetJob(id string) (Job, bool) {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	job, exists := jm.jobs[id]
	if !exists {
		return Job{}, false
	}
	return *job, true
}

// ListJobs returns snapshots of all jobs, oldest first
func (jm *JobManager) ListJobs() []Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	jobs := make([]Job, 0, len(jm.jobs))
	for _, job := range jm.jobs {
		jobs = append(jobs, *job)
	}
	sort.Slice(jobs, func(i, k int) bool {
		return jobs[i].StartTime.Before(jobs[k].StartTime)
	})
	return jobs
}

// UpdateJob atomically updates a job using the provided function and
// broadcasts the resulting state to stream subscribers
func (jm *JobManager) UpdateJob(id string, updateFn func(*Job)) error {
	jm.mu.Lock()
	job, exists := jm.jobs[id]
	if !exists {
		jm.mu.Unlock()
		return fmt.Errorf("job not found: %s", id)
	}
	updateFn(job)
	event := newEvent(*job)
	jm.mu.Unlock()

	jm.broadcaster.Broadcast(event)
	return nil
}

// GetRunningJobs returns all jobs currently in the running state
func (jm *JobManager) GetRunningJobs() []Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	running := make([]Job, 0)
	for _, job := range jm.jobs {
		if job.State == StateRunning {
			running = append(running, *job)
		}
	}
	return running
}
