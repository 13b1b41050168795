package engine

import (
	"context"
	"fmt"

	"github.com/antichaos/antichaos/internal/database"
	"github.com/charmbracelet/log"
	"github.com/samber/lo"
)

// DailyQuestion returns the question of the day for the user, preferring the
// given focus sphere when it is set. A nil question means nothing is left to ask.
func (e *Engine) DailyQuestion(ctx context.Context, userID uint, preferredSphere string) (*database.Question, error) {
	q, err := e.selector.SelectDaily(ctx, userID, preferredSphere)
	if err != nil {
		return nil, fmt.Errorf("failed to select daily question: %w", err)
	}
	if q == nil {
		log.Debug("No daily question available", "user", userID)
	}
	return q, nil
}

// SimpleQuestion returns a question from any sphere that was not answered today.
func (e *Engine) SimpleQuestion(ctx context.Context, userID uint) (*database.Question, error) {
	q, err := e.selector.SelectFallback(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to select question: %w", err)
	}
	return q, nil
}

// GetQuestion returns a single question by id.
func (e *Engine) GetQuestion(ctx context.Context, id uint) (*database.Question, error) {
	return e.db.GetQuestionByID(ctx, id)
}

// CanChangeFocusSpheres reports whether the user has answered every question of the current focus spheres.
func (e *Engine) CanChangeFocusSpheres(ctx context.Context, userID uint) (bool, error) {
	return e.selector.CanChangeFocusSpheres(ctx, userID)
}

// GetFocusSpheres returns the focus spheres of the user in selection order.
func (e *Engine) GetFocusSpheres(ctx context.Context, userID uint) ([]database.FocusSphere, error) {
	return e.db.GetFocusSpheres(ctx, userID)
}

// UpdateFocusSpheres replaces the focus set of the user. The set must contain
// one or two distinct spheres from the catalog.
func (e *Engine) UpdateFocusSpheres(ctx context.Context, userID uint, spheres []string) ([]database.FocusSphere, error) {
	if len(spheres) == 0 || len(spheres) > MaxFocusSpheres || len(lo.Uniq(spheres)) != len(spheres) {
		return nil, ErrInvalidFocusSet
	}

	known, err := e.sphereKeys(ctx)
	if err != nil {
		return nil, err
	}
	if unknown := lo.Without(spheres, known...); len(unknown) > 0 {
		log.Debug("Rejecting unknown focus spheres", "user", userID, "spheres", unknown)
		return nil, ErrInvalidFocusSet
	}

	if e.cfg.Focus != nil && e.cfg.Focus.EnforceRotationGate {
		ok, err := e.selector.CanChangeFocusSpheres(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to check focus rotation: %w", err)
		}
		if !ok {
			return nil, ErrFocusChangeLocked
		}
	}

	focus, err := e.db.ReplaceFocusSpheres(ctx, userID, spheres, e.now())
	if err != nil {
		return nil, fmt.Errorf("failed to replace focus spheres: %w", err)
	}
	log.Info("Focus spheres updated", "user", userID, "spheres", spheres)
	return focus, nil
}

// SpheresToRate returns the focus spheres whose questions were all answered,
// so the user can rate them again.
func (e *Engine) SpheresToRate(ctx context.Context, userID uint) ([]string, error) {
	return e.selector.ExhaustedFocusSpheres(ctx, userID)
}

// SubmitAnswer stores the answer of the user to an existing question.
func (e *Engine) SubmitAnswer(ctx context.Context, userID, questionID uint, text string) (*database.Answer, error) {
	if _, err := e.db.GetQuestionByID(ctx, questionID); err != nil {
		return nil, err
	}

	answer := &database.Answer{
		UserID:     userID,
		QuestionID: questionID,
		Answer:     text,
		Date:       e.now(),
	}
	if err := e.db.CreateAnswer(ctx, answer); err != nil {
		return nil, fmt.Errorf("failed to store answer: %w", err)
	}
	return answer, nil
}

// ListAnswers returns the answers of the user, newest first. A positive days
// limits the result to the last days.
func (e *Engine) ListAnswers(ctx context.Context, userID uint, days int) ([]database.Answer, error) {
	if days <= 0 {
		return e.db.GetAnswers(ctx, userID, nil)
	}
	since := e.now().AddDate(0, 0, -days)
	return e.db.GetAnswers(ctx, userID, &since)
}

func (e *Engine) sphereKeys(ctx context.Context) ([]string, error) {
	spheres, err := e.db.GetSpheres(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get spheres: %w", err)
	}
	return lo.Map(spheres, func(s database.Sphere, _ int) string { return s.Key }), nil
}
