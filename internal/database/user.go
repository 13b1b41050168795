package database

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"
)

// User represents a user in the database.
// A registered user carries a positive telegram id, a guest a negative synthetic one.
// Admin status is not stored; it is derived from the configured admin ids.
type User struct {
	gorm.Model
	TelegramID   int64 `gorm:"uniqueIndex;not null"`
	Username     string
	FirstName    string
	LastName     string
	Name         string
	Gender       string
	BirthDate    *time.Time
	GuestIP      string  `gorm:"index"`
	GuestToken   *string `gorm:"uniqueIndex"`
	Settings     *UserSettings
	Subscription *Subscription
}

// IsGuest reports whether the user is an unauthenticated visitor.
func (u *User) IsGuest() bool {
	return u.TelegramID < 0
}

// DisplayName returns the best available name to greet the user with.
func (u *User) DisplayName() string {
	switch {
	case u.Name != "":
		return u.Name
	case u.FirstName != "":
		return u.FirstName
	case u.Username != "":
		return u.Username
	default:
		return ""
	}
}

// ProfileUpdate holds the optional profile fields of a user. Nil fields are left untouched.
type ProfileUpdate struct {
	Name      *string
	Gender    *string
	BirthDate *time.Time
}

// CreateUser stores a new user together with default settings and a free subscription.
func (c *Client) CreateUser(ctx context.Context, user *User) error {
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Settings", "Subscription").Create(user).Error; err != nil {
			log.Error("failed to create user", "error", err)
			return err
		}
		settings := DefaultUserSettings(user.ID)
		if err := tx.Create(settings).Error; err != nil {
			log.Error("failed to create user settings", "error", err)
			return err
		}
		subscription := &Subscription{UserID: user.ID, Plan: SubscriptionPlanFree}
		if err := tx.Create(subscription).Error; err != nil {
			log.Error("failed to create subscription", "error", err)
			return err
		}
		user.Settings = settings
		user.Subscription = subscription
		return nil
	})
}

func (c *Client) GetUserByID(ctx context.Context, id uint) (*User, error) {
	var user User
	if err := c.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if err != gorm.ErrRecordNotFound {
			log.Error("failed to get user by ID", "error", err)
		}
		return nil, notFound(err)
	}
	return &user, nil
}

func (c *Client) GetUserByTelegramID(ctx context.Context, telegramID int64) (*User, error) {
	var user User
	if err := c.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&user).Error; err != nil {
		if err != gorm.ErrRecordNotFound {
			log.Error("failed to get user by telegram ID", "error", err)
		}
		return nil, notFound(err)
	}
	return &user, nil
}

// GetUserByGuestToken returns the guest holding the given session token.
func (c *Client) GetUserByGuestToken(ctx context.Context, token string) (*User, error) {
	var user User
	if err := c.db.WithContext(ctx).Where("guest_token = ?", token).First(&user).Error; err != nil {
		if err != gorm.ErrRecordNotFound {
			log.Error("failed to get user by guest token", "error", err)
		}
		return nil, notFound(err)
	}
	return &user, nil
}

// GetLatestGuestByIP returns the most recently created guest for the given address.
func (c *Client) GetLatestGuestByIP(ctx context.Context, ip string) (*User, error) {
	var user User
	err := c.db.WithContext(ctx).
		Where("telegram_id < 0 AND guest_ip = ?", ip).
		Order("created_at DESC, id DESC").
		First(&user).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			log.Error("failed to get guest by IP", "error", err)
		}
		return nil, notFound(err)
	}
	return &user, nil
}

func (c *Client) UpdateUserProfile(ctx context.Context, id uint, update ProfileUpdate) (*User, error) {
	user, err := c.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if update.Name != nil {
		fields["name"] = *update.Name
	}
	if update.Gender != nil {
		fields["gender"] = *update.Gender
	}
	if update.BirthDate != nil {
		fields["birth_date"] = update.BirthDate.UTC()
	}
	if len(fields) == 0 {
		return user, nil
	}

	if err := c.db.WithContext(ctx).Model(user).Updates(fields).Error; err != nil {
		log.Error("failed to update user profile", "error", err)
		return nil, err
	}
	return c.GetUserByID(ctx, id)
}

// DeleteUser removes the user and every row owned by it.
func (c *Client) DeleteUser(ctx context.Context, id uint) error {
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&User{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}

		owned := []any{&SphereRating{}, &Answer{}, &FocusSphere{}, &UserSettings{}, &Subscription{}}
		for _, model := range owned {
			if err := tx.Unscoped().Where("user_id = ?", id).Delete(model).Error; err != nil {
				log.Error("failed to delete user data", "error", err)
				return err
			}
		}
		return tx.Unscoped().Delete(&User{}, id).Error
	})
}

// GetNotifiableUsers returns all registered users that have settings, with the settings preloaded.
func (c *Client) GetNotifiableUsers(ctx context.Context) ([]User, error) {
	var users []User
	err := c.db.WithContext(ctx).
		Joins("Settings").
		Where("users.telegram_id > 0").
		Order("users.id").
		Find(&users).Error
	if err != nil {
		log.Error("failed to get notifiable users", "error", err)
		return nil, err
	}

	// the join is a left join, drop users whose settings row was never created
	result := users[:0]
	for _, u := range users {
		if u.Settings != nil && u.Settings.ID != 0 {
			result = append(result, u)
		}
	}
	return result, nil
}
