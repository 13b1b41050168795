package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/samber/lo"
	"github.com/spf13/viper"
)

type CacheType string

const (
	CacheTypeMemory CacheType = "memory"
	CacheTypeRedis  CacheType = "redis"
)

type DatabaseDriver string

const (
	DatabaseDriverSQLite   DatabaseDriver = "sqlite"
	DatabaseDriverPostgres DatabaseDriver = "postgres"
)

// Config holds the configuration for the antichaos server and its dependencies.
type Config struct {
	// Listen is the address the API server will listen on.
	Listen string `yaml:"listen" mapstructure:"listen"`
	// FrontendURL is the base URL of the mini app, used for deep links in reminders.
	FrontendURL string `yaml:"frontend_url" mapstructure:"frontend_url"`
	// Timezone is the reference timezone for calendar days and notification times.
	Timezone string `yaml:"timezone" mapstructure:"timezone"`
	// Admins is the list of telegram ids with administrator privileges.
	Admins []int64 `yaml:"admins" mapstructure:"admins"`
	// SessionKey is the key used to sign the guest session cookie.
	SessionKey string `yaml:"session_key" mapstructure:"session_key"`
	// Database holds the database configuration.
	Database *DatabaseConfig `yaml:"database" mapstructure:"database"`
	// Telegram holds the bot configuration.
	Telegram *TelegramConfig `yaml:"telegram" mapstructure:"telegram"`
	// Reminder holds the notification scheduler configuration.
	Reminder *ReminderConfig `yaml:"reminder" mapstructure:"reminder"`
	// Focus holds the focus sphere configuration.
	Focus *FocusConfig `yaml:"focus" mapstructure:"focus"`
	// Cache holds the cache engine configuration.
	Cache *CacheConfig `yaml:"cache" mapstructure:"cache"`
	// Ntfy holds the ntfy operator alert configuration.
	Ntfy *NtfyConfig `yaml:"ntfy" mapstructure:"ntfy"`
	// Email holds the email operator alert configuration.
	Email *EmailConfig `yaml:"email" mapstructure:"email"`

	location *time.Location
}

// DatabaseConfig holds the database configuration.
type DatabaseConfig struct {
	// Driver selects the database backend ("sqlite" or "postgres").
	Driver DatabaseDriver `yaml:"driver" mapstructure:"driver"`
	// Path is the path to the sqlite database file.
	Path string `yaml:"path" mapstructure:"path"`
	// DSN is the postgres connection string.
	DSN string `yaml:"dsn" mapstructure:"dsn"`
}

// TelegramConfig holds the telegram bot configuration.
type TelegramConfig struct {
	// BotToken is the token of the telegram bot.
	BotToken string `yaml:"bot_token" mapstructure:"bot_token"`
	// SecretKey is used to validate web app init data. Defaults to the bot token.
	SecretKey string `yaml:"secret_key" mapstructure:"secret_key"`
	// APIURL is the base URL of the bot API.
	APIURL string `yaml:"api_url" mapstructure:"api_url"`
}

// ReminderConfig holds the notification scheduler configuration.
type ReminderConfig struct {
	// Enabled controls whether this process runs the reminder job.
	// Only one process per database may have it enabled.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// Interval is the tick interval of the reminder job.
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
	// SendSpacing is the pause between two sends within a tick.
	SendSpacing time.Duration `yaml:"send_spacing" mapstructure:"send_spacing"`
}

// FocusConfig holds the focus sphere configuration.
type FocusConfig struct {
	// EnforceRotationGate rejects focus changes until the current focus spheres are exhausted.
	EnforceRotationGate bool `yaml:"enforce_rotation_gate" mapstructure:"enforce_rotation_gate"`
}

// CacheConfig holds the configuration for the cache engine.
type CacheConfig struct {
	// Type is the type of cache engine to use (e.g., "memory", "redis").
	Type CacheType `yaml:"type" mapstructure:"type"`
	// RedisURL is the URL for the Redis cache if using Redis.
	RedisURL string `yaml:"redis_url" mapstructure:"redis_url"`
}

// NtfyConfig holds the ntfy notification configuration.
type NtfyConfig struct {
	// Enabled indicates whether ntfy notifications are enabled.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// ServerURL is the URL of the ntfy server.
	ServerURL string `yaml:"server_url" mapstructure:"server_url"`
	// Topic is the ntfy topic to publish notifications to.
	Topic string `yaml:"topic" mapstructure:"topic"`
	// Username is the ntfy username for authentication.
	Username string `yaml:"username" mapstructure:"username"`
	// Password is the ntfy password for authentication.
	Password string `yaml:"password" mapstructure:"password"`
	// Token is the ntfy token for authentication.
	Token string `yaml:"token" mapstructure:"token"`
}

// EmailConfig holds the email operator alert configuration.
type EmailConfig struct {
	// Enabled indicates whether email alerts are enabled.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// To is the list of operator addresses receiving alerts.
	To []string `yaml:"to" mapstructure:"to"`
	// SMTPHost is the SMTP server host.
	SMTPHost string `yaml:"smtp_host" mapstructure:"smtp_host"`
	// SMTPPort is the SMTP server port.
	SMTPPort int `yaml:"smtp_port" mapstructure:"smtp_port"`
	// Username is the SMTP username.
	Username string `yaml:"username" mapstructure:"username"`
	// Password is the SMTP password.
	Password string `yaml:"password" mapstructure:"password"`
	// FromEmail is the email address from which alerts are sent.
	FromEmail string `yaml:"from_email" mapstructure:"from_email"`
	// FromName is the name from which alerts are sent.
	FromName string `yaml:"from_name" mapstructure:"from_name"`
	// UseTLS indicates whether to use STARTTLS for the SMTP connection.
	UseTLS bool `yaml:"use_tls" mapstructure:"use_tls"`
	// UseSSL indicates whether to use implicit TLS for the SMTP connection.
	UseSSL bool `yaml:"use_ssl" mapstructure:"use_ssl"`
	// InsecureSkipVerify indicates whether to skip TLS certificate verification.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify" mapstructure:"insecure_skip_verify"`
}

// Load reads the configuration from the specified path and returns a Config struct.
// If path is empty, it will use default search paths for config files.
func Load(path string) (*Config, error) {
	v := viper.New()

	bindNestedEnv(v)
	setDefaults(v)

	v.SetConfigType("yaml")
	v.SetEnvPrefix("ANTICHAOS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var configFileFound bool
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.antichaos")
		v.AddConfigPath("/etc/antichaos")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		configFileFound = true
	}

	if configFileFound {
		log.Debug("Using config file", "file", v.ConfigFileUsed())
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	sanitizeConfig(&c)

	if err := validateConfig(&c); err != nil {
		return nil, err
	}

	return &c, nil
}

// setDefaults sets default values for the configuration.
func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", "0.0.0.0:8000")
	v.SetDefault("frontend_url", "http://localhost:5173")
	v.SetDefault("timezone", "UTC")
	v.SetDefault("admins", []int64{})
	v.SetDefault("session_key", "")

	// Database defaults
	v.SetDefault("database.driver", DatabaseDriverSQLite)
	v.SetDefault("database.path", "./data/antichaos.db")
	v.SetDefault("database.dsn", "")

	// Telegram defaults
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.secret_key", "")
	v.SetDefault("telegram.api_url", "https://api.telegram.org")

	// Reminder defaults
	v.SetDefault("reminder.enabled", true)
	v.SetDefault("reminder.interval", time.Minute)
	v.SetDefault("reminder.send_spacing", 100*time.Millisecond)

	v.SetDefault("focus.enforce_rotation_gate", false)

	// Cache defaults
	v.SetDefault("cache.type", CacheTypeMemory)
	v.SetDefault("cache.redis_url", "")

	// Ntfy defaults
	v.SetDefault("ntfy.enabled", false)
	v.SetDefault("ntfy.server_url", "https://ntfy.sh")
	v.SetDefault("ntfy.topic", "antichaos")
	v.SetDefault("ntfy.username", "")
	v.SetDefault("ntfy.password", "")
	v.SetDefault("ntfy.token", "")

	// Email defaults
	v.SetDefault("email.enabled", false)
	v.SetDefault("email.to", []string{})
	v.SetDefault("email.smtp_host", "")
	v.SetDefault("email.smtp_port", 587)
	v.SetDefault("email.username", "")
	v.SetDefault("email.password", "")
	v.SetDefault("email.from_email", "")
	v.SetDefault("email.from_name", "AntiChaos")
	v.SetDefault("email.use_tls", true)
	v.SetDefault("email.use_ssl", false)
	v.SetDefault("email.insecure_skip_verify", false)
}

// the auto env function from viper only binds keys it already knows about.
// The bot token has no useful default, so it is bound explicitly, together
// with the legacy variable names used by existing deployments.
func bindNestedEnv(v *viper.Viper) {
	v.MustBindEnv("telegram.bot_token", "ANTICHAOS_TELEGRAM_BOT_TOKEN", "TELEGRAM_BOT_TOKEN")
	v.MustBindEnv("telegram.secret_key", "ANTICHAOS_TELEGRAM_SECRET_KEY", "TELEGRAM_BOT_SECRET_KEY")
	v.MustBindEnv("frontend_url", "ANTICHAOS_FRONTEND_URL", "FRONTEND_URL")
	v.MustBindEnv("admins", "ANTICHAOS_ADMINS", "ADMINS")
}

// validateConfig validates the configuration.
func validateConfig(c *Config) error {
	if c == nil {
		return fmt.Errorf("missing antichaos config")
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	c.location = loc

	if c.SessionKey == "" {
		return fmt.Errorf("session key is required")
	}

	if c.Database == nil {
		return fmt.Errorf("missing database config")
	}
	switch c.Database.Driver {
	case DatabaseDriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database path is required when using sqlite")
		}
	case DatabaseDriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database dsn is required when using postgres")
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	if c.Telegram == nil || c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram bot token is required")
	}
	if c.Telegram.SecretKey == "" {
		c.Telegram.SecretKey = c.Telegram.BotToken
	}

	if c.Reminder == nil {
		return fmt.Errorf("missing reminder config")
	}
	if c.Reminder.Interval < time.Second {
		return fmt.Errorf("reminder interval must be at least one second")
	}
	if c.Reminder.SendSpacing < 0 {
		return fmt.Errorf("reminder send spacing must not be negative")
	}

	if c.Focus == nil {
		c.Focus = &FocusConfig{}
	}

	if c.Cache != nil {
		if c.Cache.Type == "" {
			return fmt.Errorf("cache type is required when cache is enabled")
		}
		if c.Cache.Type == CacheTypeRedis && c.Cache.RedisURL == "" {
			return fmt.Errorf("Redis URL is required when Redis cache is enabled") //nolint:staticcheck
		}
	} else {
		c.Cache = &CacheConfig{
			Type: CacheTypeMemory,
		}
	}

	if c.Ntfy != nil && c.Ntfy.Enabled {
		if c.Ntfy.ServerURL == "" {
			return fmt.Errorf("ntfy server URL is required when ntfy is enabled")
		}
	}

	if c.Email != nil && c.Email.Enabled {
		if c.Email.SMTPHost == "" {
			return fmt.Errorf("SMTP host is required when email is enabled")
		}
		if c.Email.FromEmail == "" {
			return fmt.Errorf("from email is required when email is enabled")
		}
		if len(c.Email.To) == 0 {
			return fmt.Errorf("at least one recipient is required when email is enabled")
		}
	}

	return nil
}

// sanitizeConfig sanitizes the configuration values.
func sanitizeConfig(c *Config) {
	if c == nil {
		return
	}

	c.Listen = urlSanitize(c.Listen)
	c.FrontendURL = urlSanitize(c.FrontendURL)

	if c.Telegram != nil {
		c.Telegram.APIURL = urlSanitize(c.Telegram.APIURL)
	}

	if c.Ntfy != nil {
		c.Ntfy.ServerURL = urlSanitize(c.Ntfy.ServerURL)
	}

	if c.Email != nil {
		c.Email.SMTPHost = strings.TrimSpace(c.Email.SMTPHost)
		c.Email.To = lo.Compact(lo.Map(c.Email.To, func(to string, _ int) string { return strings.TrimSpace(to) }))
	}
}

func urlSanitize(url string) string {
	return strings.TrimSuffix(strings.TrimSpace(url), "/")
}

// Location returns the reference timezone. It falls back to UTC for configs
// that were not loaded through Load.
func (c *Config) Location() *time.Location {
	if c == nil || c.location == nil {
		return time.UTC
	}
	return c.location
}
