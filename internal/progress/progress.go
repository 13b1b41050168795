// Package progress derives rolling averages and growth reports from sphere ratings.
package progress

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/antichaos/antichaos/internal/database"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

const (
	WeekDays  = 7
	MonthDays = 30
)

// Store is the part of the database the aggregator reads from.
type Store interface {
	GetSphereRatings(ctx context.Context, userID uint) ([]database.SphereRating, error)
	GetFocusSpheres(ctx context.Context, userID uint) ([]database.FocusSphere, error)
	CountAnswersSince(ctx context.Context, userID uint, since time.Time) (int64, error)
}

// Change is the difference between the current rating of a sphere and its window average.
// Delta is always positive.
type Change struct {
	Sphere string
	Delta  float64
}

// Progress is the rating trend over a trailing window.
type Progress struct {
	// CurrentRatings holds the latest rating per sphere, regardless of the window.
	CurrentRatings map[string]int
	// AverageRatings holds the mean rating per sphere within the window.
	AverageRatings map[string]float64
	Grown          []Change
	Declined       []Change
	PeriodDays     int
}

// WeeklySummary is the progress of the last seven days.
type WeeklySummary struct {
	Progress     *Progress
	FocusSpheres []string
	AnswersCount int64
	WeekStart    time.Time
	WeekEnd      time.Time
}

// MonthlyReport is the progress of the last thirty days.
type MonthlyReport struct {
	Progress     *Progress
	FocusSpheres []string
	AnswersCount int64
	// InitialRatings holds the latest rating per sphere from before the window.
	InitialRatings map[string]int
	CurrentRatings map[string]int
	MonthStart     time.Time
	MonthEnd       time.Time
}

// Aggregator computes progress reports.
type Aggregator struct {
	store Store
	now   func() time.Time
}

// NewAggregator creates an aggregator. A nil now defaults to time.Now.
func NewAggregator(store Store, now func() time.Time) *Aggregator {
	if now == nil {
		now = time.Now
	}
	return &Aggregator{store: store, now: now}
}

// Calculate returns the progress of the user over the trailing number of days.
func (a *Aggregator) Calculate(ctx context.Context, userID uint, days int) (*Progress, error) {
	ratings, err := a.store.GetSphereRatings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get sphere ratings: %w", err)
	}
	return calculate(ratings, a.now().Add(-window(days)), days), nil
}

// WeeklySummary returns the progress of the last seven days with answer and focus metadata.
func (a *Aggregator) WeeklySummary(ctx context.Context, userID uint) (*WeeklySummary, error) {
	now := a.now()
	cutoff := now.Add(-window(WeekDays))

	r, err := a.load(ctx, userID, cutoff)
	if err != nil {
		return nil, err
	}
	return &WeeklySummary{
		Progress:     calculate(r.ratings, cutoff, WeekDays),
		FocusSpheres: r.focus,
		AnswersCount: r.answers,
		WeekStart:    cutoff,
		WeekEnd:      now,
	}, nil
}

// MonthlyReport returns the progress of the last thirty days together with the
// ratings the user had before the month started.
func (a *Aggregator) MonthlyReport(ctx context.Context, userID uint) (*MonthlyReport, error) {
	now := a.now()
	cutoff := now.Add(-window(MonthDays))

	r, err := a.load(ctx, userID, cutoff)
	if err != nil {
		return nil, err
	}

	before := lo.Filter(r.ratings, func(sr database.SphereRating, _ int) bool {
		return sr.Date.Before(cutoff)
	})
	progress := calculate(r.ratings, cutoff, MonthDays)

	return &MonthlyReport{
		Progress:       progress,
		FocusSpheres:   r.focus,
		AnswersCount:   r.answers,
		InitialRatings: ratingMap(database.LatestPerSphere(before)),
		CurrentRatings: progress.CurrentRatings,
		MonthStart:     cutoff,
		MonthEnd:       now,
	}, nil
}

type reportData struct {
	ratings []database.SphereRating
	focus   []string
	answers int64
}

func (a *Aggregator) load(ctx context.Context, userID uint, since time.Time) (*reportData, error) {
	var r reportData
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ratings, err := a.store.GetSphereRatings(gctx, userID)
		if err != nil {
			return fmt.Errorf("failed to get sphere ratings: %w", err)
		}
		r.ratings = ratings
		return nil
	})
	g.Go(func() error {
		focus, err := a.store.GetFocusSpheres(gctx, userID)
		if err != nil {
			return fmt.Errorf("failed to get focus spheres: %w", err)
		}
		r.focus = lo.Map(focus, func(f database.FocusSphere, _ int) string { return f.Sphere })
		return nil
	})
	g.Go(func() error {
		count, err := a.store.CountAnswersSince(gctx, userID, since)
		if err != nil {
			return fmt.Errorf("failed to count answers: %w", err)
		}
		r.answers = count
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &r, nil
}

// calculate expects ratings ordered newest first.
func calculate(ratings []database.SphereRating, cutoff time.Time, days int) *Progress {
	inWindow := lo.Filter(ratings, func(r database.SphereRating, _ int) bool {
		return !r.Date.Before(cutoff)
	})
	averages := lo.MapValues(
		lo.GroupBy(inWindow, func(r database.SphereRating) string { return r.Sphere }),
		func(group []database.SphereRating, _ string) float64 {
			return float64(lo.SumBy(group, func(r database.SphereRating) int { return r.Rating })) / float64(len(group))
		},
	)
	current := ratingMap(database.LatestPerSphere(ratings))

	p := &Progress{
		CurrentRatings: current,
		AverageRatings: averages,
		Grown:          []Change{},
		Declined:       []Change{},
		PeriodDays:     days,
	}
	for _, sphere := range slices.Sorted(maps.Keys(current)) {
		avg, ok := averages[sphere]
		if !ok {
			continue
		}
		cur := float64(current[sphere])
		switch {
		case cur > avg:
			p.Grown = append(p.Grown, Change{Sphere: sphere, Delta: cur - avg})
		case cur < avg:
			p.Declined = append(p.Declined, Change{Sphere: sphere, Delta: avg - cur})
		}
	}
	return p
}

func ratingMap(ratings []database.SphereRating) map[string]int {
	return lo.SliceToMap(ratings, func(r database.SphereRating) (string, int) {
		return r.Sphere, r.Rating
	})
}

func window(days int) time.Duration {
	return time.Duration(days) * 24 * time.Hour
}
