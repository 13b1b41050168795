package engine

import (
	"context"
	"fmt"

	"github.com/antichaos/antichaos/internal/database"
	"github.com/antichaos/antichaos/internal/progress"
	"github.com/charmbracelet/log"
	"github.com/samber/lo"
)

// RatingInput is a single self assessment of a sphere.
type RatingInput struct {
	Sphere string
	Rating int
}

// GetSpheres returns the sphere catalog.
func (e *Engine) GetSpheres(ctx context.Context) ([]database.Sphere, error) {
	return e.db.GetSpheres(ctx)
}

// RateSpheres appends a rating for every given sphere. All ratings share the same date.
func (e *Engine) RateSpheres(ctx context.Context, userID uint, inputs []RatingInput) ([]database.SphereRating, error) {
	if len(inputs) == 0 {
		return nil, ErrInvalidRating
	}

	known, err := e.sphereKeys(ctx)
	if err != nil {
		return nil, err
	}
	for _, in := range inputs {
		if in.Rating < MinRating || in.Rating > MaxRating || !lo.Contains(known, in.Sphere) {
			return nil, ErrInvalidRating
		}
	}

	now := e.now()
	ratings := lo.Map(inputs, func(in RatingInput, _ int) database.SphereRating {
		return database.SphereRating{
			UserID: userID,
			Sphere: in.Sphere,
			Rating: in.Rating,
			Date:   now,
		}
	})
	if err := e.db.CreateSphereRatings(ctx, ratings); err != nil {
		return nil, fmt.Errorf("failed to store ratings: %w", err)
	}
	log.Debug("Spheres rated", "user", userID, "count", len(ratings))
	return ratings, nil
}

// GetLatestRatings returns the current rating of every sphere the user has rated.
func (e *Engine) GetLatestRatings(ctx context.Context, userID uint) ([]database.SphereRating, error) {
	return e.db.GetLatestSphereRatings(ctx, userID)
}

// OnboardingCompleted reports whether the user rated every catalog sphere and picked at least one focus sphere.
func (e *Engine) OnboardingCompleted(ctx context.Context, userID uint) (bool, error) {
	known, err := e.sphereKeys(ctx)
	if err != nil {
		return false, err
	}
	latest, err := e.db.GetLatestSphereRatings(ctx, userID)
	if err != nil {
		return false, err
	}
	rated := lo.Map(latest, func(r database.SphereRating, _ int) string { return r.Sphere })
	if len(lo.Without(known, rated...)) > 0 {
		return false, nil
	}

	focus, err := e.db.GetFocusSpheres(ctx, userID)
	if err != nil {
		return false, err
	}
	return len(focus) > 0, nil
}

// Progress compares the current ratings of the user with the averages of the last days.
func (e *Engine) Progress(ctx context.Context, userID uint, days int) (*progress.Progress, error) {
	if days <= 0 {
		days = progress.WeekDays
	}
	return e.aggregator.Calculate(ctx, userID, days)
}

// WeeklySummary returns the progress of the last week.
func (e *Engine) WeeklySummary(ctx context.Context, userID uint) (*progress.WeeklySummary, error) {
	return e.aggregator.WeeklySummary(ctx, userID)
}

// MonthlyReport returns the progress of the last month.
func (e *Engine) MonthlyReport(ctx context.Context, userID uint) (*progress.MonthlyReport, error) {
	return e.aggregator.MonthlyReport(ctx, userID)
}
