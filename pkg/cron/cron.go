// Package cron runs the daemon's scheduled maintenance jobs.
package cron

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"ongoing/pkg/logger"
)

// ErrJobNotFound is returned for an unknown job ID.
var ErrJobNotFound = errors.New("job not found")

// Task is the work a job performs on each run.
type Task func(ctx context.Context) error

// Job represents a scheduled job.
type Job struct {
	ID          string    `json:"id"`           // Unique job ID
	Name        string    `json:"name"`         // Human-readable name
	Schedule    string    `json:"schedule"`     // Cron expression or descriptor
	CreatedAt   time.Time `json:"created_at"`   // Creation timestamp
	LastRun     time.Time `json:"last_run"`     // Last execution time
	NextRun     time.Time `json:"next_run"`     // Next scheduled run
	RunCount    int       `json:"run_count"`    // Total executions
	LastError   string    `json:"last_error"`   // Last error message
	LastSuccess bool      `json:"last_success"` // Whether last run succeeded

	task Task
}

// Manager manages scheduled jobs.
type Manager struct {
	log *logger.Logger

	scheduler *cron.Cron
	jobs      map[string]*Job         // Job ID -> Job
	entries   map[string]cron.EntryID // Job ID -> Cron entry ID
	mu        sync.RWMutex

	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new cron manager. Schedules use the standard five-field
// syntax and descriptors such as "@hourly".
func New(log *logger.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		log:       log.Named("cron"),
		scheduler: cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		jobs:      make(map[string]*Job),
		entries:   make(map[string]cron.EntryID),
		timeout:   time.Minute,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start starts the scheduler.
func (m *Manager) Start() error {
	m.log.Info("Starting cron manager", zap.Int("jobs", len(m.ListJobs())))
	m.scheduler.Start()
	return nil
}

// Stop stops the scheduler and waits for running jobs.
func (m *Manager) Stop() error {
	m.log.Info("Stopping cron manager")

	ctx := m.scheduler.Stop()
	<-ctx.Done()

	m.cancel()

	m.log.Info("Cron manager stopped")
	return nil
}

// AddJob schedules task under schedule.
func (m *Manager) AddJob(name, schedule string, task Task) (*Job, error) {
	if task == nil {
		return nil, fmt.Errorf("job %s has no task", name)
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}

	job := &Job{
		ID:        uuid.NewString(),
		Name:      name,
		Schedule:  schedule,
		CreatedAt: time.Now(),
		task:      task,
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entryID, err := m.scheduler.AddFunc(schedule, func() {
		m.executeJob(job.ID)
	})
	if err != nil {
		return nil, fmt.Errorf("scheduling job: %w", err)
	}
	m.jobs[job.ID] = job
	m.entries[job.ID] = entryID
	job.NextRun = m.scheduler.Entry(entryID).Next

	m.log.Info("Added cron job",
		zap.String("job_id", job.ID),
		zap.String("name", name),
		zap.String("schedule", schedule))

	jobCopy := *job
	return &jobCopy, nil
}

// RemoveJob unschedules a job.
func (m *Manager) RemoveJob(jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, exists := m.jobs[jobID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}

	if entryID, exists := m.entries[jobID]; exists {
		m.scheduler.Remove(entryID)
		delete(m.entries, jobID)
	}
	delete(m.jobs, jobID)

	m.log.Info("Removed cron job",
		zap.String("job_id", jobID),
		zap.String("name", job.Name))

	return nil
}

// RunNow executes a job immediately, outside its schedule.
func (m *Manager) RunNow(jobID string) error {
	m.mu.RLock()
	_, exists := m.jobs[jobID]
	m.mu.RUnlock()
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return m.executeJob(jobID)
}

// ListJobs returns copies of all jobs ordered by name.
func (m *Manager) ListJobs() []*Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]*Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobCopy := *job
		jobs = append(jobs, &jobCopy)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Name < jobs[j].Name })

	return jobs
}

// GetJob returns a job by ID.
func (m *Manager) GetJob(jobID string) (*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, exists := m.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}

	jobCopy := *job
	return &jobCopy, nil
}

// executeJob runs a job and records the outcome.
func (m *Manager) executeJob(jobID string) error {
	m.mu.RLock()
	job, exists := m.jobs[jobID]
	if !exists {
		m.mu.RUnlock()
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	name, task := job.Name, job.task
	m.mu.RUnlock()

	m.log.Debug("Executing cron job", zap.String("job_id", jobID), zap.String("name", name))

	ctx, cancel := context.WithTimeout(m.ctx, m.timeout)
	defer cancel()
	err := task(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if job, exists := m.jobs[jobID]; exists {
		job.LastRun = time.Now()
		job.RunCount++
		if err != nil {
			job.LastSuccess = false
			job.LastError = err.Error()
			m.log.Error("Cron job failed",
				zap.String("job_id", jobID),
				zap.String("name", name),
				zap.Error(err))
		} else {
			job.LastSuccess = true
			job.LastError = ""
		}
		if entryID, exists := m.entries[jobID]; exists {
			job.NextRun = m.scheduler.Entry(entryID).Next
		}
	}
	return err
}
