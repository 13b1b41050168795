package engine

import (
	"context"
	"fmt"

	"github.com/antichaos/antichaos/internal/scheduler"
	"github.com/charmbracelet/log"
)

const reminderJobID = "reminder"

// GetScheduler returns the scheduler instance for API access.
func (e *Engine) GetScheduler() *scheduler.Scheduler {
	return e.scheduler
}

// Run starts the engine and all its background jobs.
func (e *Engine) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if e.cfg.Reminder != nil && e.cfg.Reminder.Enabled {
		if err := e.reminder.Start(); err != nil {
			return fmt.Errorf("failed to start reminder service: %w", err)
		}
	}

	// Start the scheduler
	e.scheduler.Start()

	// Wait for context cancellation
	<-ctx.Done()
	return nil
}

// Close stops the engine and cleans up resources.
func (e *Engine) Close() error {
	if e.reminder.Running() {
		if err := e.reminder.Stop(); err != nil {
			log.Warn("Failed to stop reminder service", "error", err)
		}
	}
	return e.scheduler.Stop()
}

// setupJobs configures all scheduled jobs.
func (e *Engine) setupJobs() error {
	if e.cfg.Reminder == nil || !e.cfg.Reminder.Enabled {
		log.Info("Reminder job disabled for this process")
		return nil
	}

	// Ticks must never overlap, so the job is a singleton.
	if err := e.scheduler.AddSingletonJob(
		reminderJobID,
		"Daily Reminders",
		e.cfg.Reminder.Interval,
		e.runReminderJob,
	); err != nil {
		return fmt.Errorf("failed to add reminder job: %w", err)
	}

	log.Info("Scheduled jobs configured successfully", "reminder_interval", e.cfg.Reminder.Interval)
	return nil
}

func (e *Engine) runReminderJob(ctx context.Context) error {
	_, err := e.reminder.Tick(ctx)
	return err
}
