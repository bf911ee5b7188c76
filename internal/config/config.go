package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Publishing PublishingConfig `mapstructure:"publishing"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// TelegramConfig holds Bot API settings
type TelegramConfig struct {
	Token   string `mapstructure:"token"`
	AdminID int64  `mapstructure:"admin_id"` // all reports go to this chat
	Debug   bool   `mapstructure:"debug"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"` // SQLite file path
}

// SchedulerConfig holds scheduler settings
type SchedulerConfig struct {
	// Cron expression for the out-of-band subscriber count refresh
	RefreshCron string `mapstructure:"refresh_cron"`
}

// PublishingConfig holds defaults applied to fresh drafts
type PublishingConfig struct {
	DefaultHour          int  `mapstructure:"default_hour"`
	DefaultMinute        int  `mapstructure:"default_minute"`
	DefaultDaily         bool `mapstructure:"default_daily"`
	DefaultDurationHours int  `mapstructure:"default_duration_hours"`
}

// RateLimitConfig holds rate limiting settings
type RateLimitConfig struct {
	MessagesPerSecond float64 `mapstructure:"messages_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json or console
	Output string `mapstructure:"output"` // stdout or file path
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	// Load .env file if present (ignore errors if not found)
	_ = godotenv.Load()
	_ = godotenv.Load(".env.local")

	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config in current directory and configs folder
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")

		// Also check user's home directory
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".autopost-bot"))
		}
	}

	// Environment variables
	v.SetEnvPrefix("AUTOPOST")
	v.AutomaticEnv()

	// Explicit bindings for nested keys (Viper doesn't auto-bind underscored nested keys)
	v.BindEnv("telegram.token", "AUTOPOST_TELEGRAM_TOKEN")
	v.BindEnv("telegram.admin_id", "AUTOPOST_TELEGRAM_ADMIN_ID")
	v.BindEnv("telegram.debug", "AUTOPOST_TELEGRAM_DEBUG")
	v.BindEnv("database.dsn", "AUTOPOST_DATABASE_DSN")
	v.BindEnv("scheduler.refresh_cron", "AUTOPOST_SCHEDULER_REFRESH_CRON")
	v.BindEnv("logging.level", "AUTOPOST_LOGGING_LEVEL")

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.dsn", "./data/autopost.db")

	// Scheduler defaults
	v.SetDefault("scheduler.refresh_cron", "0 */6 * * *") // every 6 hours

	// Publishing defaults
	v.SetDefault("publishing.default_hour", 12)
	v.SetDefault("publishing.default_minute", 0)
	v.SetDefault("publishing.default_daily", false)
	v.SetDefault("publishing.default_duration_hours", 24)

	// Rate limit defaults
	v.SetDefault("rate_limit.messages_per_second", 25.0)
	v.SetDefault("rate_limit.burst", 5)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stdout")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("telegram.token is required")
	}
	if c.Telegram.AdminID == 0 {
		return fmt.Errorf("telegram.admin_id is required")
	}
	return nil
}
