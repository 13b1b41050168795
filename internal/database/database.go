package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/antichaos/antichaos/internal/config"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// DB is the storage surface used by the engine and its collaborators.
type DB interface {
	// Users
	CreateUser(ctx context.Context, user *User) error
	GetUserByID(ctx context.Context, id uint) (*User, error)
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*User, error)
	GetUserByGuestToken(ctx context.Context, token string) (*User, error)
	GetLatestGuestByIP(ctx context.Context, ip string) (*User, error)
	UpdateUserProfile(ctx context.Context, id uint, update ProfileUpdate) (*User, error)
	DeleteUser(ctx context.Context, id uint) error
	GetNotifiableUsers(ctx context.Context) ([]User, error)

	// Spheres
	GetSpheres(ctx context.Context) ([]Sphere, error)
	GetSphere(ctx context.Context, key string) (*Sphere, error)
	CreateSphere(ctx context.Context, sphere *Sphere) error
	UpdateSphere(ctx context.Context, key string, update SphereUpdate) (*Sphere, error)
	DeleteSphere(ctx context.Context, key string) error

	// Sphere ratings
	CreateSphereRatings(ctx context.Context, ratings []SphereRating) error
	GetSphereRatings(ctx context.Context, userID uint) ([]SphereRating, error)
	GetLatestSphereRatings(ctx context.Context, userID uint) ([]SphereRating, error)

	// Focus spheres
	GetFocusSpheres(ctx context.Context, userID uint) ([]FocusSphere, error)
	ReplaceFocusSpheres(ctx context.Context, userID uint, spheres []string, selectedAt time.Time) ([]FocusSphere, error)

	// Questions
	GetQuestionByID(ctx context.Context, id uint) (*Question, error)
	GetQuestions(ctx context.Context, activeOnly bool) ([]Question, error)
	GetActiveQuestionsBySphere(ctx context.Context, sphere string) ([]Question, error)
	CreateQuestion(ctx context.Context, question *Question) error
	UpdateQuestion(ctx context.Context, id uint, update QuestionUpdate) (*Question, error)
	DeleteQuestion(ctx context.Context, id uint) error

	// Answers
	CreateAnswer(ctx context.Context, answer *Answer) error
	GetAnswers(ctx context.Context, userID uint, since *time.Time) ([]Answer, error)
	GetAnsweredQuestionIDs(ctx context.Context, userID uint, since time.Time) ([]uint, error)
	HasAnsweredSince(ctx context.Context, userID uint, since time.Time) (bool, error)
	CountAnswersSince(ctx context.Context, userID uint, since time.Time) (int64, error)
	GetLastAnswerTime(ctx context.Context, userID uint) (*time.Time, error)

	// Settings and subscriptions
	GetOrCreateUserSettings(ctx context.Context, userID uint) (*UserSettings, error)
	UpdateUserSettings(ctx context.Context, userID uint, update SettingsUpdate) (*UserSettings, error)
	GetSubscription(ctx context.Context, userID uint) (*Subscription, error)
	UpdateSubscription(ctx context.Context, userID uint, plan SubscriptionPlan, expiresAt *time.Time) (*Subscription, error)

	// Maintenance
	SeedCatalog(ctx context.Context) error
	GetStats(ctx context.Context) (*Stats, error)
	Close() error
}

var _ DB = (*Client)(nil) // Ensure Client implements DB

// Client wraps the gorm.DB instance.
type Client struct {
	db *gorm.DB
}

// New creates a new database connection and performs migrations.
func New(cfg *config.DatabaseConfig) (*Client, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case config.DatabaseDriverPostgres:
		dialector = postgres.Open(cfg.DSN)
	default:
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		dialector = sqlite.Open(cfg.Path)
	}
	return Open(dialector)
}

// Open connects through the given dialector and migrates the schema.
func Open(dialector gorm.Dialector) (*Client, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	if err := db.AutoMigrate(
		&User{},
		&UserSettings{},
		&Subscription{},
		&Sphere{},
		&SphereRating{},
		&FocusSphere{},
		&Question{},
		&Answer{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Client{db: db}, nil
}

// Close closes the underlying connection pool.
func (c *Client) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// notFound translates gorm's not found error into ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
