package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/antichaos/antichaos/internal/database"
	"github.com/antichaos/antichaos/internal/reminder"
	"github.com/charmbracelet/log"
	"github.com/samber/lo"
)

// ListQuestions returns the question catalog.
func (e *Engine) ListQuestions(ctx context.Context, activeOnly bool) ([]database.Question, error) {
	return e.db.GetQuestions(ctx, activeOnly)
}

// CreateQuestion adds a question to the catalog.
func (e *Engine) CreateQuestion(ctx context.Context, q *database.Question) error {
	if q.Type == "" {
		q.Type = database.QuestionTypeText
	}
	if strings.TrimSpace(q.Text) == "" || !q.Type.Valid() {
		return ErrInvalidQuestion
	}
	if err := e.checkSphere(ctx, q.Sphere); err != nil {
		return err
	}
	if err := e.db.CreateQuestion(ctx, q); err != nil {
		return fmt.Errorf("failed to create question: %w", err)
	}
	log.Info("Question created", "id", q.ID, "sphere", q.Sphere)
	return nil
}

// UpdateQuestion changes the given fields of a question.
func (e *Engine) UpdateQuestion(ctx context.Context, id uint, update database.QuestionUpdate) (*database.Question, error) {
	if update.Text != nil && strings.TrimSpace(*update.Text) == "" {
		return nil, ErrInvalidQuestion
	}
	if update.Type != nil && !update.Type.Valid() {
		return nil, ErrInvalidQuestion
	}
	if update.Sphere != nil {
		if err := e.checkSphere(ctx, *update.Sphere); err != nil {
			return nil, err
		}
	}
	return e.db.UpdateQuestion(ctx, id, update)
}

// DeleteQuestion removes a question from the catalog.
func (e *Engine) DeleteQuestion(ctx context.Context, id uint) error {
	if err := e.db.DeleteQuestion(ctx, id); err != nil {
		return err
	}
	log.Info("Question deleted", "id", id)
	return nil
}

// CreateSphere adds a sphere to the catalog.
func (e *Engine) CreateSphere(ctx context.Context, s *database.Sphere) error {
	s.Key = strings.TrimSpace(s.Key)
	if s.Key == "" || strings.TrimSpace(s.Name) == "" {
		return ErrInvalidSphere
	}
	if err := e.db.CreateSphere(ctx, s); err != nil {
		return fmt.Errorf("failed to create sphere: %w", err)
	}
	log.Info("Sphere created", "key", s.Key)
	return nil
}

// UpdateSphere changes name or color of a sphere.
func (e *Engine) UpdateSphere(ctx context.Context, key string, update database.SphereUpdate) (*database.Sphere, error) {
	if update.Name != nil && strings.TrimSpace(*update.Name) == "" {
		return nil, ErrInvalidSphere
	}
	return e.db.UpdateSphere(ctx, key, update)
}

// DeleteSphere removes a sphere together with its ratings, focus selections and questions.
func (e *Engine) DeleteSphere(ctx context.Context, key string) error {
	if err := e.db.DeleteSphere(ctx, key); err != nil {
		return err
	}
	log.Warn("Sphere deleted", "key", key)
	return nil
}

// DueUsers previews the users that would be reminded at the given time without sending anything.
func (e *Engine) DueUsers(ctx context.Context, at time.Time) ([]reminder.Due, error) {
	return e.reminder.CollectDueUsers(ctx, at)
}

// DueUsersAt previews the reminders of today at the given HH:MM in the
// reference timezone. An empty value previews the current minute.
func (e *Engine) DueUsersAt(ctx context.Context, at string) ([]reminder.Due, error) {
	now := e.now()
	if at == "" {
		return e.DueUsers(ctx, now)
	}
	hour, minute, err := reminder.ParseNotificationTime(at)
	if err != nil {
		return nil, ErrInvalidNotificationTime
	}
	local := now.In(e.cfg.Location())
	return e.DueUsers(ctx, time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, local.Location()))
}

// Stats returns row counts of the database.
func (e *Engine) Stats(ctx context.Context) (*database.Stats, error) {
	return e.db.GetStats(ctx)
}

func (e *Engine) checkSphere(ctx context.Context, key string) error {
	known, err := e.sphereKeys(ctx)
	if err != nil {
		return err
	}
	if !lo.Contains(known, key) {
		return ErrInvalidQuestion
	}
	return nil
}
