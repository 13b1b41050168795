// Package scheduler runs periodic background jobs on top of gocron.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-co-op/gocron/v2"
)

// JobStatus represents the status of a job.
type JobStatus string

const (
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusScheduled JobStatus = "scheduled"
)

// JobInfo contains information about a scheduled job.
type JobInfo struct {
	ID         string
	Name       string
	Status     JobStatus
	Interval   time.Duration
	LastRun    time.Time
	NextRun    time.Time
	RunCount   int
	ErrorCount int
	LastError  string
	Enabled    bool

	job gocron.Job
}

// JobFunc represents a function that can be scheduled.
type JobFunc func(ctx context.Context) error

// Scheduler manages scheduled jobs.
type Scheduler struct {
	gocron gocron.Scheduler
	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.RWMutex
	jobs map[string]*JobInfo
}

// New creates a new scheduler. The context passed to jobs is cancelled on Stop.
func New(opts ...gocron.SchedulerOption) (*Scheduler, error) {
	opts = append([]gocron.SchedulerOption{gocron.WithLogger(newGocronLogger(log.Default()))}, opts...)
	gocronScheduler, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		gocron: gocronScheduler,
		jobs:   make(map[string]*JobInfo),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Start starts the scheduler.
func (s *Scheduler) Start() {
	log.Info("Starting job scheduler")
	s.gocron.Start()

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, info := range s.jobs {
		if nextRun, err := info.job.NextRun(); err == nil {
			info.NextRun = nextRun
			log.Debug("Next run time for job", "id", id, "nextRun", nextRun)
		}
	}
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() error {
	log.Info("Stopping job scheduler")
	s.cancel()
	return s.gocron.Shutdown()
}

// AddSingletonJob schedules jobFunc at a fixed interval. A run that is still in
// progress when the next one is due causes that next run to be skipped, so runs
// never overlap.
func (s *Scheduler) AddSingletonJob(id, name string, interval time.Duration, jobFunc JobFunc) error {
	info := &JobInfo{
		ID:       id,
		Name:     name,
		Status:   JobStatusScheduled,
		Interval: interval,
		Enabled:  true,
	}

	job, err := s.gocron.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.wrapJobFunc(id, jobFunc)),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to create job %s: %w", id, err)
	}
	info.job = job

	s.mu.Lock()
	s.jobs[id] = info
	s.mu.Unlock()

	log.Info("Added job to scheduler", "id", id, "name", name, "interval", interval)
	return nil
}

// RunJobNow triggers a job outside of its schedule.
func (s *Scheduler) RunJobNow(id string) error {
	s.mu.RLock()
	info, exists := s.jobs[id]
	s.mu.RUnlock()
	if !exists {
		return fmt.Errorf("job %s not found", id)
	}

	log.Info("Manually triggering job", "id", id, "name", info.Name)
	if err := info.job.RunNow(); err != nil {
		return fmt.Errorf("failed to trigger job %s: %w", id, err)
	}
	return nil
}

// SetEnabled toggles whether scheduled runs of a job execute.
func (s *Scheduler) SetEnabled(id string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, exists := s.jobs[id]
	if !exists {
		return fmt.Errorf("job %s not found", id)
	}
	info.Enabled = enabled
	log.Info("Changed job state", "id", id, "enabled", enabled)
	return nil
}

// GetJob returns a copy of the information about a job.
func (s *Scheduler) GetJob(id string) (JobInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, exists := s.jobs[id]
	if !exists {
		return JobInfo{}, false
	}
	return *info, true
}

// GetJobs returns copies of all job information.
func (s *Scheduler) GetJobs() map[string]JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make(map[string]JobInfo, len(s.jobs))
	for id, info := range s.jobs {
		jobs[id] = *info
	}
	return jobs
}

// wrapJobFunc wraps a job function to update job statistics.
func (s *Scheduler) wrapJobFunc(id string, jobFunc JobFunc) func() {
	return func() {
		s.mu.Lock()
		info := s.jobs[id]
		if info == nil || !info.Enabled {
			s.mu.Unlock()
			log.Debug("Job is disabled or unknown, skipping", "id", id)
			return
		}
		info.Status = JobStatusRunning
		info.LastRun = time.Now()
		info.RunCount++
		if nextRun, err := info.job.NextRun(); err == nil {
			info.NextRun = nextRun
		}
		name := info.Name
		s.mu.Unlock()

		log.Debug("Starting job", "id", id, "name", name)
		err := jobFunc(s.ctx)

		s.mu.Lock()
		defer s.mu.Unlock()
		if err != nil {
			log.Error("Job failed", "id", id, "name", name, "error", err)
			info.Status = JobStatusFailed
			info.ErrorCount++
			info.LastError = err.Error()
			return
		}
		log.Debug("Job completed", "id", id, "name", name)
		info.Status = JobStatusCompleted
		info.LastError = ""
	}
}
