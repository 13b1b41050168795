// Package reminder decides which users are due for their daily reminder and delivers it.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/antichaos/antichaos/internal/cache"
	"github.com/antichaos/antichaos/internal/database"
	"github.com/antichaos/antichaos/internal/identity"
	"github.com/antichaos/antichaos/internal/notify/telegram"
	"github.com/antichaos/antichaos/internal/question"
	"github.com/charmbracelet/log"
	"github.com/eko/gocache/lib/v4/store"
)

var (
	ErrAlreadyRunning = errors.New("reminder service is already running")
	ErrNotRunning     = errors.New("reminder service is not running")
)

// SentCachePrefix prefixes the per minute delivery markers.
const SentCachePrefix = "reminder-sent-"

// Store is the part of the database the service reads from.
type Store interface {
	GetNotifiableUsers(ctx context.Context) ([]database.User, error)
	HasAnsweredSince(ctx context.Context, userID uint, since time.Time) (bool, error)
	GetLastAnswerTime(ctx context.Context, userID uint) (*time.Time, error)
}

// Selector picks the question a reminder links to.
type Selector interface {
	SelectDaily(ctx context.Context, userID uint, preferredSphere string) (*database.Question, error)
}

// Deliverer sends a message to a user.
type Deliverer interface {
	SendMessage(ctx context.Context, msg telegram.OutgoingMessage) error
}

// Alerter notifies the operator about failed deliveries.
type Alerter interface {
	SendReminderFailures(ctx context.Context, failed, total int, errs []string) error
}

// Alerters reports to every alerter in the list.
type Alerters []Alerter

func (a Alerters) SendReminderFailures(ctx context.Context, failed, total int, errs []string) error {
	var result []error
	for _, alerter := range a {
		if err := alerter.SendReminderFailures(ctx, failed, total, errs); err != nil {
			result = append(result, err)
		}
	}
	return errors.Join(result...)
}

// Due is a user that should receive a reminder in the current minute.
type Due struct {
	User database.User
	// QuestionID is the question to deep link to, nil if none is available.
	QuestionID *uint
	// IsTest marks reminders sent because of the admin test mode.
	IsTest bool
}

// TickResult summarizes a single tick.
type TickResult struct {
	Due     int
	Sent    int
	Failed  int
	Skipped int
}

// Options configures a Service.
type Options struct {
	FrontendURL string
	Location    *time.Location
	SendSpacing time.Duration
	Admins      identity.AdminSet
	// Sent suppresses a second delivery to the same user within the same minute. Optional.
	Sent *cache.PrefixedCache[time.Time]
	// Alerter receives a report when deliveries fail. Optional.
	Alerter Alerter
	// Now overrides the clock.
	Now func() time.Time
}

// Service is the notification scheduler. It starts stopped.
type Service struct {
	store     Store
	selector  Selector
	deliverer Deliverer
	opts      Options
	logger    *log.Logger

	running atomic.Bool
}

// New creates a reminder service.
func New(store Store, selector Selector, deliverer Deliverer, opts Options) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Admins == nil {
		opts.Admins = identity.AdminSet{}
	}
	return &Service{
		store:     store,
		selector:  selector,
		deliverer: deliverer,
		opts:      opts,
		logger:    log.WithPrefix("reminder"),
	}
}

// Start switches the service to running. Ticks are ignored while it is stopped.
func (s *Service) Start() error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	s.logger.Info("Reminder service started")
	return nil
}

// Stop switches the service to stopped. A tick in progress finishes its current delivery.
func (s *Service) Stop() error {
	if !s.running.CompareAndSwap(true, false) {
		return ErrNotRunning
	}
	s.logger.Info("Reminder service stopped")
	return nil
}

// Running reports whether the service is running.
func (s *Service) Running() bool {
	return s.running.Load()
}

// ParseNotificationTime parses an "HH:MM" reminder time.
func ParseNotificationTime(value string) (hour, minute int, err error) {
	if len(value) != len("15:04") {
		return 0, 0, fmt.Errorf("invalid notification time %q: expected HH:MM", value)
	}
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid notification time %q: %w", value, err)
	}
	return t.Hour(), t.Minute(), nil
}

// CollectDueUsers returns the users that should be reminded at now.
func (s *Service) CollectDueUsers(ctx context.Context, now time.Time) ([]Due, error) {
	users, err := s.store.GetNotifiableUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}

	local := now.In(s.opts.Location)
	today := question.StartOfDay(now, s.opts.Location)

	due := make([]Due, 0)
	for _, user := range users {
		if user.TelegramID <= 0 || user.Settings == nil || user.Settings.IsPaused {
			continue
		}

		isTest := s.opts.Admins.IsAdmin(user.TelegramID) && user.Settings.AdminTestNotifications
		if !isTest {
			ok, err := s.dueAt(ctx, &user, local, today)
			if err != nil {
				s.logger.Error("Failed to check reminder", "user", user.ID, "error", err)
				continue
			}
			if !ok {
				continue
			}
		}

		d := Due{User: user, IsTest: isTest}
		q, err := s.selector.SelectDaily(ctx, user.ID, "")
		if err != nil {
			s.logger.Warn("Failed to select question for reminder", "user", user.ID, "error", err)
		} else if q != nil {
			id := q.ID
			d.QuestionID = &id
		}
		due = append(due, d)
	}
	return due, nil
}

func (s *Service) dueAt(ctx context.Context, user *database.User, local, today time.Time) (bool, error) {
	if user.Settings.NotificationTime == "" {
		return false, nil
	}
	hour, minute, err := ParseNotificationTime(user.Settings.NotificationTime)
	if err != nil {
		s.logger.Debug("Skipping user with malformed notification time", "user", user.ID, "value", user.Settings.NotificationTime)
		return false, nil
	}
	if local.Hour() != hour || local.Minute() != minute {
		return false, nil
	}
	answered, err := s.store.HasAnsweredSince(ctx, user.ID, today)
	if err != nil {
		return false, err
	}
	return !answered, nil
}

// Tick collects the due users and delivers their reminders one after another.
func (s *Service) Tick(ctx context.Context) (*TickResult, error) {
	result := &TickResult{}
	if !s.Running() {
		s.logger.Debug("Reminder service stopped, skipping tick")
		return result, nil
	}

	now := s.opts.Now()
	due, err := s.CollectDueUsers(ctx, now)
	if err != nil {
		return result, err
	}
	result.Due = len(due)

	minute := now.In(s.opts.Location).Format("200601021504")
	var failures []string
	attempted := 0
	for _, d := range due {
		if ctx.Err() != nil {
			break
		}

		key := fmt.Sprintf("%d:%s", d.User.ID, minute)
		if s.alreadySent(ctx, key) {
			result.Skipped++
			continue
		}

		// spacing only separates real sends
		if attempted > 0 && s.opts.SendSpacing > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(s.opts.SendSpacing):
			}
			if ctx.Err() != nil {
				break
			}
		}
		attempted++

		if err := s.deliver(ctx, d, now); err != nil {
			s.logger.Error("Failed to send reminder", "user", d.User.ID, "telegram_id", d.User.TelegramID, "error", err)
			result.Failed++
			failures = append(failures, fmt.Sprintf("user %d: %v", d.User.ID, err))
			continue
		}
		result.Sent++
		s.markSent(ctx, key, now)
	}

	if result.Due > 0 {
		s.logger.Info("Reminder tick finished", "due", result.Due, "sent", result.Sent, "failed", result.Failed, "skipped", result.Skipped)
	}
	if result.Failed > 0 && s.opts.Alerter != nil {
		if err := s.opts.Alerter.SendReminderFailures(ctx, result.Failed, result.Due, failures); err != nil {
			s.logger.Error("Failed to send operator alert", "error", err)
		}
	}
	return result, nil
}

func (s *Service) deliver(ctx context.Context, d Due, now time.Time) error {
	last, err := s.store.GetLastAnswerTime(ctx, d.User.ID)
	if err != nil {
		s.logger.Warn("Failed to get last answer time", "user", d.User.ID, "error", err)
		last = nil
	}
	return s.deliverer.SendMessage(ctx, BuildMessage(s.opts.FrontendURL, d, last, now))
}

func (s *Service) alreadySent(ctx context.Context, key string) bool {
	if s.opts.Sent == nil {
		return false
	}
	_, err := s.opts.Sent.Get(ctx, key)
	return err == nil
}

func (s *Service) markSent(ctx context.Context, key string, now time.Time) {
	if s.opts.Sent == nil {
		return
	}
	if err := s.opts.Sent.Set(ctx, key, now, store.WithExpiration(2*time.Minute)); err != nil {
		s.logger.Warn("Failed to remember sent reminder", "key", key, "error", err)
	}
}
