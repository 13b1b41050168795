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
	"golang.org/x/sync/errgroup"
)

// ProfileInput holds an optional profile update as sent by the client.
type ProfileInput struct {
	Name      *string
	Gender    *string
	BirthDate *string
}

// Export is everything stored about a user.
type Export struct {
	User         *database.User
	Ratings      []database.SphereRating
	Answers      []database.Answer
	FocusSpheres []string
	Settings     *database.UserSettings
}

// test data is generated relative to now
var testDataOffsets = []time.Duration{
	30 * 24 * time.Hour,
	14 * 24 * time.Hour,
	24 * time.Hour,
}

// GetSettings returns the settings of the user, creating them with defaults if missing.
func (e *Engine) GetSettings(ctx context.Context, userID uint) (*database.UserSettings, error) {
	return e.db.GetOrCreateUserSettings(ctx, userID)
}

// UpdateSettings applies a partial settings update. Only admins may toggle the test notifications.
func (e *Engine) UpdateSettings(ctx context.Context, user *database.User, update database.SettingsUpdate) (*database.UserSettings, error) {
	if update.AdminTestNotifications != nil && !e.IsAdmin(user) {
		return nil, ErrAdminOnly
	}
	if update.NotificationTime != nil && *update.NotificationTime != "" {
		if _, _, err := reminder.ParseNotificationTime(*update.NotificationTime); err != nil {
			return nil, ErrInvalidNotificationTime
		}
	}

	settings, err := e.db.UpdateUserSettings(ctx, user.ID, update)
	if err != nil {
		return nil, fmt.Errorf("failed to update settings: %w", err)
	}
	return settings, nil
}

// ParseBirthDate parses a date given as DD.MM.YYYY or YYYY-MM-DD.
func ParseBirthDate(value string) (time.Time, error) {
	layout := time.DateOnly
	if strings.Contains(value, ".") {
		layout = "02.01.2006"
	}
	t, err := time.Parse(layout, value)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

// UpdateProfile updates name, gender and birth date of the user.
func (e *Engine) UpdateProfile(ctx context.Context, userID uint, input ProfileInput) (*database.User, error) {
	update := database.ProfileUpdate{
		Name:   input.Name,
		Gender: input.Gender,
	}
	if input.BirthDate != nil && *input.BirthDate != "" {
		birthDate, err := ParseBirthDate(*input.BirthDate)
		if err != nil {
			return nil, err
		}
		update.BirthDate = &birthDate
	}
	return e.db.UpdateUserProfile(ctx, userID, update)
}

// Export collects all data of the user.
func (e *Engine) Export(ctx context.Context, user *database.User) (*Export, error) {
	export := &Export{User: user}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ratings, err := e.db.GetSphereRatings(gctx, user.ID)
		if err != nil {
			return fmt.Errorf("failed to get ratings: %w", err)
		}
		export.Ratings = ratings
		return nil
	})
	g.Go(func() error {
		answers, err := e.db.GetAnswers(gctx, user.ID, nil)
		if err != nil {
			return fmt.Errorf("failed to get answers: %w", err)
		}
		export.Answers = answers
		return nil
	})
	g.Go(func() error {
		focus, err := e.db.GetFocusSpheres(gctx, user.ID)
		if err != nil {
			return fmt.Errorf("failed to get focus spheres: %w", err)
		}
		export.FocusSpheres = lo.Map(focus, func(f database.FocusSphere, _ int) string { return f.Sphere })
		return nil
	})
	g.Go(func() error {
		settings, err := e.db.GetOrCreateUserSettings(gctx, user.ID)
		if err != nil {
			return fmt.Errorf("failed to get settings: %w", err)
		}
		export.Settings = settings
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return export, nil
}

// DeleteAccount removes the user and all of its data.
func (e *Engine) DeleteAccount(ctx context.Context, userID uint) error {
	if err := e.db.DeleteUser(ctx, userID); err != nil {
		return err
	}
	log.Info("Account deleted", "user", userID)
	return nil
}

// GenerateGuestTestData fills the account of a guest with ratings for every
// sphere spread over the last month and picks the first two spheres as focus.
func (e *Engine) GenerateGuestTestData(ctx context.Context, user *database.User) error {
	if !user.IsGuest() {
		return ErrGuestOnly
	}

	spheres, err := e.db.GetSpheres(ctx)
	if err != nil {
		return fmt.Errorf("failed to get spheres: %w", err)
	}
	if len(spheres) == 0 {
		return nil
	}

	now := e.now()
	ratings := make([]database.SphereRating, 0, len(spheres)*len(testDataOffsets))
	for _, offset := range testDataOffsets {
		for _, s := range spheres {
			ratings = append(ratings, database.SphereRating{
				UserID: user.ID,
				Sphere: s.Key,
				Rating: 3 + e.intn(MaxRating-3+1),
				Date:   now.Add(-offset),
			})
		}
	}
	if err := e.db.CreateSphereRatings(ctx, ratings); err != nil {
		return fmt.Errorf("failed to store test ratings: %w", err)
	}

	focus := lo.Map(spheres[:min(MaxFocusSpheres, len(spheres))], func(s database.Sphere, _ int) string { return s.Key })
	if _, err := e.db.ReplaceFocusSpheres(ctx, user.ID, focus, now); err != nil {
		return fmt.Errorf("failed to store test focus spheres: %w", err)
	}

	log.Info("Generated guest test data", "user", user.ID, "ratings", len(ratings), "focus", focus)
	return nil
}
