package database

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"
)

// ReportFrequency controls how often progress reports are offered.
type ReportFrequency string

const (
	ReportFrequencyDaily    ReportFrequency = "daily"
	ReportFrequencyWeekly   ReportFrequency = "weekly"
	ReportFrequencyBiweekly ReportFrequency = "biweekly"
	ReportFrequencyMonthly  ReportFrequency = "monthly"
)

// UserSettings holds all settings specific to a user.
type UserSettings struct {
	gorm.Model
	UserID uint `gorm:"uniqueIndex;not null"`
	// NotificationTime is the daily reminder time as "HH:MM", empty when unset.
	NotificationTime      string
	Language              string          `gorm:"default:ru"`
	IsPaused              bool            `gorm:"default:false"`
	WeeklyReportFrequency ReportFrequency `gorm:"default:weekly"`
	ReminderFrequency     ReportFrequency `gorm:"default:weekly"`
	DarkTheme             bool            `gorm:"default:false"`
	// AdminTestNotifications sends a reminder on every tick. Only honored for admins.
	AdminTestNotifications bool `gorm:"default:false"`
}

// DefaultUserSettings returns the settings a user starts with.
func DefaultUserSettings(userID uint) *UserSettings {
	return &UserSettings{
		UserID:                userID,
		Language:              "ru",
		WeeklyReportFrequency: ReportFrequencyWeekly,
		ReminderFrequency:     ReportFrequencyWeekly,
	}
}

// SettingsUpdate holds a partial settings update. Nil fields are left untouched.
type SettingsUpdate struct {
	NotificationTime       *string
	Language               *string
	IsPaused               *bool
	WeeklyReportFrequency  *ReportFrequency
	ReminderFrequency      *ReportFrequency
	DarkTheme              *bool
	AdminTestNotifications *bool
}

// Apply copies all set fields onto the given settings.
func (u SettingsUpdate) Apply(s *UserSettings) {
	if u.NotificationTime != nil {
		s.NotificationTime = *u.NotificationTime
	}
	if u.Language != nil {
		s.Language = *u.Language
	}
	if u.IsPaused != nil {
		s.IsPaused = *u.IsPaused
	}
	if u.WeeklyReportFrequency != nil {
		s.WeeklyReportFrequency = *u.WeeklyReportFrequency
	}
	if u.ReminderFrequency != nil {
		s.ReminderFrequency = *u.ReminderFrequency
	}
	if u.DarkTheme != nil {
		s.DarkTheme = *u.DarkTheme
	}
	if u.AdminTestNotifications != nil {
		s.AdminTestNotifications = *u.AdminTestNotifications
	}
}

// SubscriptionPlan is the plan a user is subscribed to.
type SubscriptionPlan string

const (
	SubscriptionPlanFree    SubscriptionPlan = "free"
	SubscriptionPlanPremium SubscriptionPlan = "premium"
)

// Subscription represents the plan of a user. Payment is handled elsewhere.
type Subscription struct {
	gorm.Model
	UserID    uint             `gorm:"uniqueIndex;not null"`
	Plan      SubscriptionPlan `gorm:"not null"`
	ExpiresAt *time.Time
}

// GetOrCreateUserSettings returns the settings of the user, creating them with defaults if missing.
func (c *Client) GetOrCreateUserSettings(ctx context.Context, userID uint) (*UserSettings, error) {
	var settings UserSettings
	err := c.db.WithContext(ctx).
		Where(UserSettings{UserID: userID}).
		Attrs(DefaultUserSettings(userID)).
		FirstOrCreate(&settings).Error
	if err != nil {
		log.Error("failed to get user settings", "error", err)
		return nil, err
	}
	return &settings, nil
}

func (c *Client) UpdateUserSettings(ctx context.Context, userID uint, update SettingsUpdate) (*UserSettings, error) {
	settings, err := c.GetOrCreateUserSettings(ctx, userID)
	if err != nil {
		return nil, err
	}
	update.Apply(settings)
	if err := c.db.WithContext(ctx).Save(settings).Error; err != nil {
		log.Error("failed to update user settings", "error", err)
		return nil, err
	}
	return settings, nil
}

func (c *Client) GetSubscription(ctx context.Context, userID uint) (*Subscription, error) {
	var subscription Subscription
	if err := c.db.WithContext(ctx).Where("user_id = ?", userID).First(&subscription).Error; err != nil {
		if err != gorm.ErrRecordNotFound {
			log.Error("failed to get subscription", "error", err)
		}
		return nil, notFound(err)
	}
	return &subscription, nil
}

// UpdateSubscription sets the plan of a user. A nil expiry keeps the current one.
func (c *Client) UpdateSubscription(ctx context.Context, userID uint, plan SubscriptionPlan, expiresAt *time.Time) (*Subscription, error) {
	subscription, err := c.GetSubscription(ctx, userID)
	if err == ErrNotFound {
		subscription = &Subscription{UserID: userID}
	} else if err != nil {
		return nil, err
	}

	subscription.Plan = plan
	if expiresAt != nil {
		t := expiresAt.UTC()
		subscription.ExpiresAt = &t
	}
	if err := c.db.WithContext(ctx).Save(subscription).Error; err != nil {
		log.Error("failed to update subscription", "error", err)
		return nil, err
	}
	return subscription, nil
}
