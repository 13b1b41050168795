// Package question picks the question of the day for a user.
//
// Questions of a focus sphere are consumed once per focus selection: a question
// answered at or after the earliest SelectedAt of the current focus set is not
// offered again until the set is replaced. Users without focus spheres get a
// random sphere with a window that resets at the start of every calendar day.
package question

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/antichaos/antichaos/internal/database"
	"github.com/charmbracelet/log"
	"github.com/samber/lo"
)

// Store is the part of the database the selector reads from.
type Store interface {
	GetFocusSpheres(ctx context.Context, userID uint) ([]database.FocusSphere, error)
	GetSpheres(ctx context.Context) ([]database.Sphere, error)
	GetActiveQuestionsBySphere(ctx context.Context, sphere string) ([]database.Question, error)
	GetAnsweredQuestionIDs(ctx context.Context, userID uint, since time.Time) ([]uint, error)
}

// Selector chooses unanswered questions for users.
type Selector struct {
	store Store
	loc   *time.Location
	now   func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures a Selector.
type Option func(*Selector)

// WithRand sets the source of randomness used to pick among candidates.
func WithRand(rng *rand.Rand) Option {
	return func(s *Selector) {
		s.rng = rng
	}
}

// WithClock sets the function used to read the current time.
func WithClock(now func() time.Time) Option {
	return func(s *Selector) {
		s.now = now
	}
}

// NewSelector creates a selector. loc is the reference timezone for calendar days.
func NewSelector(store Store, loc *time.Location, opts ...Option) *Selector {
	if loc == nil {
		loc = time.UTC
	}
	s := &Selector{
		store: store,
		loc:   loc,
		now:   time.Now,
		rng:   rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())), //nolint:gosec
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SelectDaily returns the next question for the user.
// If preferredSphere is one of the user's focus spheres it is tried first.
// A nil question without an error means that nothing is left to answer.
func (s *Selector) SelectDaily(ctx context.Context, userID uint, preferredSphere string) (*database.Question, error) {
	focus, err := s.store.GetFocusSpheres(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get focus spheres: %w", err)
	}
	if len(focus) == 0 {
		return s.SelectFallback(ctx, userID)
	}

	origin := WindowOrigin(focus)
	answered, err := s.answeredSince(ctx, userID, origin)
	if err != nil {
		return nil, err
	}

	for _, sphere := range attemptOrder(focus, preferredSphere) {
		q, err := s.pick(ctx, sphere, answered)
		if err != nil {
			return nil, err
		}
		if q != nil {
			return q, nil
		}
		log.Debug("Focus sphere exhausted", "user", userID, "sphere", sphere, "since", origin)
	}

	return s.SelectFallback(ctx, userID)
}

// SelectFallback returns a random question from a random sphere that the user
// did not answer today. It returns nil when every sphere is exhausted for the day.
func (s *Selector) SelectFallback(ctx context.Context, userID uint) (*database.Question, error) {
	spheres, err := s.store.GetSpheres(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get spheres: %w", err)
	}

	keys := lo.Map(spheres, func(sp database.Sphere, _ int) string { return sp.Key })
	s.mu.Lock()
	s.rng.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })
	s.mu.Unlock()

	answered, err := s.answeredSince(ctx, userID, StartOfDay(s.now(), s.loc))
	if err != nil {
		return nil, err
	}

	for _, key := range keys {
		q, err := s.pick(ctx, key, answered)
		if err != nil {
			return nil, err
		}
		if q != nil {
			return q, nil
		}
	}
	return nil, nil
}

// CanChangeFocusSpheres reports whether the user has answered every active
// question of every current focus sphere within the current window.
// Users without focus spheres may always change them.
func (s *Selector) CanChangeFocusSpheres(ctx context.Context, userID uint) (bool, error) {
	focus, err := s.store.GetFocusSpheres(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to get focus spheres: %w", err)
	}
	if len(focus) == 0 {
		return true, nil
	}

	answered, err := s.answeredSince(ctx, userID, WindowOrigin(focus))
	if err != nil {
		return false, err
	}
	for _, f := range focus {
		remaining, _, err := s.remaining(ctx, f.Sphere, answered)
		if err != nil {
			return false, err
		}
		if len(remaining) > 0 {
			return false, nil
		}
	}
	return true, nil
}

// ExhaustedFocusSpheres returns the focus spheres that have active questions,
// all of which were answered within the current window.
func (s *Selector) ExhaustedFocusSpheres(ctx context.Context, userID uint) ([]string, error) {
	focus, err := s.store.GetFocusSpheres(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get focus spheres: %w", err)
	}
	exhausted := make([]string, 0, len(focus))
	if len(focus) == 0 {
		return exhausted, nil
	}

	answered, err := s.answeredSince(ctx, userID, WindowOrigin(focus))
	if err != nil {
		return nil, err
	}
	for _, f := range focus {
		remaining, total, err := s.remaining(ctx, f.Sphere, answered)
		if err != nil {
			return nil, err
		}
		if total > 0 && len(remaining) == 0 {
			exhausted = append(exhausted, f.Sphere)
		}
	}
	return exhausted, nil
}

// WindowOrigin returns the earliest selection time of the focus set.
func WindowOrigin(focus []database.FocusSphere) time.Time {
	return lo.MinBy(focus, func(a, b database.FocusSphere) bool {
		return a.SelectedAt.Before(b.SelectedAt)
	}).SelectedAt
}

// StartOfDay returns midnight of the calendar day of t in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// attemptOrder lists the focus spheres in the order they are tried.
func attemptOrder(focus []database.FocusSphere, preferred string) []string {
	order := lo.Uniq(lo.Map(focus, func(f database.FocusSphere, _ int) string { return f.Sphere }))
	if preferred == "" || !lo.Contains(order, preferred) {
		return order
	}
	return append([]string{preferred}, lo.Without(order, preferred)...)
}

func (s *Selector) answeredSince(ctx context.Context, userID uint, since time.Time) (map[uint]struct{}, error) {
	ids, err := s.store.GetAnsweredQuestionIDs(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to get answered questions: %w", err)
	}
	return lo.Keyify(ids), nil
}

// remaining returns the active questions of the sphere that are not in answered,
// together with the number of active questions.
func (s *Selector) remaining(ctx context.Context, sphere string, answered map[uint]struct{}) ([]database.Question, int, error) {
	questions, err := s.store.GetActiveQuestionsBySphere(ctx, sphere)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get questions for sphere %s: %w", sphere, err)
	}
	remaining := lo.Filter(questions, func(q database.Question, _ int) bool {
		_, ok := answered[q.ID]
		return !ok
	})
	return remaining, len(questions), nil
}

func (s *Selector) pick(ctx context.Context, sphere string, answered map[uint]struct{}) (*database.Question, error) {
	candidates, _, err := s.remaining(ctx, sphere, answered)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	q := candidates[s.rng.IntN(len(candidates))]
	s.mu.Unlock()
	return &q, nil
}
