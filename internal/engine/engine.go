package engine

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/antichaos/antichaos/internal/cache"
	"github.com/antichaos/antichaos/internal/config"
	"github.com/antichaos/antichaos/internal/database"
	"github.com/antichaos/antichaos/internal/identity"
	"github.com/antichaos/antichaos/internal/notify/email"
	"github.com/antichaos/antichaos/internal/notify/ntfy"
	"github.com/antichaos/antichaos/internal/notify/telegram"
	"github.com/antichaos/antichaos/internal/progress"
	"github.com/antichaos/antichaos/internal/question"
	"github.com/antichaos/antichaos/internal/reminder"
	"github.com/antichaos/antichaos/internal/scheduler"
	"github.com/charmbracelet/log"
)

var (
	// ErrInvalidFocusSet indicates a focus set that is empty, too large, has duplicates or unknown spheres.
	ErrInvalidFocusSet = errors.New("focus set must contain one or two distinct existing spheres")
	// ErrFocusChangeLocked indicates that the current focus spheres still have unanswered questions.
	ErrFocusChangeLocked = errors.New("focus spheres can not be changed yet")
	// ErrInvalidRating indicates a rating outside of 1..10 or for an unknown sphere.
	ErrInvalidRating = errors.New("rating must be between 1 and 10 for an existing sphere")
	// ErrAdminOnly indicates an operation reserved for administrators.
	ErrAdminOnly = errors.New("access denied, admin only")
	// ErrGuestOnly indicates an operation reserved for guests.
	ErrGuestOnly = errors.New("only available for guest users")
	// ErrInvalidDate indicates a date that could not be parsed.
	ErrInvalidDate = errors.New("invalid date format, use DD.MM.YYYY or YYYY-MM-DD")
	// ErrInvalidNotificationTime indicates a reminder time that is not HH:MM.
	ErrInvalidNotificationTime = errors.New("notification time must be HH:MM")
	// ErrInvalidQuestion indicates a question with missing text, an unknown type or an unknown sphere.
	ErrInvalidQuestion = errors.New("invalid question")
	// ErrInvalidSphere indicates a sphere with a missing key or name.
	ErrInvalidSphere = errors.New("invalid sphere")
)

const (
	MaxFocusSpheres = 2
	MinRating       = 1
	MaxRating       = 10
)

// Engine ties the storage, the question selector, the progress aggregator and
// the reminder service together. It is shared by the API and the CLI.
type Engine struct {
	cfg        *config.Config
	db         database.DB
	admins     identity.AdminSet
	selector   *question.Selector
	aggregator *progress.Aggregator
	reminder   *reminder.Service
	scheduler  *scheduler.Scheduler
	commands   *telegram.CommandHandler
	now        func() time.Time
	started    time.Time

	rngMu sync.Mutex
	rng   *rand.Rand
}

// Option configures optional collaborators of the engine.
type Option func(*options)

type options struct {
	deliverer reminder.Deliverer
	now       func() time.Time
	rng       *rand.Rand
}

// WithDeliverer replaces the telegram client as the reminder deliverer.
func WithDeliverer(d reminder.Deliverer) Option {
	return func(o *options) {
		o.deliverer = d
	}
}

// WithClock overrides the clock used by all engine components.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithRand sets the random source used for question selection and test data.
func WithRand(rng *rand.Rand) Option {
	return func(o *options) {
		o.rng = rng
	}
}

// New creates a new Engine instance.
func New(cfg *config.Config, db database.DB, opts ...Option) (*Engine, error) {
	o := &options{now: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	if o.rng == nil {
		o.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())) //nolint:gosec
	}

	sched, err := scheduler.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	store, err := cache.New(cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}

	telegramClient, err := telegram.NewClient(cfg.Telegram)
	if err != nil {
		return nil, err
	}
	deliverer := o.deliverer
	if deliverer == nil {
		deliverer = telegramClient
	}

	var alerters reminder.Alerters
	if cfg.Ntfy != nil && cfg.Ntfy.Enabled {
		alerters = append(alerters, ntfy.NewClient(cfg.Ntfy))
	}
	if cfg.Email != nil && cfg.Email.Enabled {
		alerters = append(alerters, email.New(cfg.Email))
	}

	admins := identity.NewAdminSet(cfg.Admins)
	loc := cfg.Location()

	// the selector locks its own source, so it must not share o.rng
	selectorRng := rand.New(rand.NewPCG(o.rng.Uint64(), o.rng.Uint64())) //nolint:gosec
	selector := question.NewSelector(db, loc,
		question.WithRand(selectorRng),
		question.WithClock(o.now),
	)

	reminderOpts := reminder.Options{
		FrontendURL: cfg.FrontendURL,
		Location:    loc,
		Admins:      admins,
		Sent:        cache.NewPrefixedCache[time.Time](store, reminder.SentCachePrefix),
		Now:         o.now,
	}
	if cfg.Reminder != nil {
		reminderOpts.SendSpacing = cfg.Reminder.SendSpacing
	}
	if len(alerters) > 0 {
		reminderOpts.Alerter = alerters
	}

	engine := &Engine{
		cfg:        cfg,
		db:         db,
		admins:     admins,
		selector:   selector,
		aggregator: progress.NewAggregator(db, o.now),
		reminder:   reminder.New(db, selector, deliverer, reminderOpts),
		scheduler:  sched,
		commands:   telegram.NewCommandHandler(telegramClient, cfg.FrontendURL),
		now:        o.now,
		started:    o.now(),
		rng:        o.rng,
	}

	// Setup scheduled jobs
	if err := engine.setupJobs(); err != nil {
		return nil, fmt.Errorf("failed to setup jobs: %w", err)
	}

	log.Debug("Engine created", "admins", len(admins), "timezone", loc.String())
	return engine, nil
}

// IsAdmin reports whether the user is one of the configured administrators.
func (e *Engine) IsAdmin(user *database.User) bool {
	return user != nil && e.admins.IsAdmin(user.TelegramID)
}

// GetReminder returns the reminder service.
func (e *Engine) GetReminder() *reminder.Service {
	return e.reminder
}

// GetCommandHandler returns the telegram command handler.
func (e *Engine) GetCommandHandler() *telegram.CommandHandler {
	return e.commands
}

func (e *Engine) intn(n int) int {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return e.rng.IntN(n)
}
