// Package config loads taskden configuration from YAML with environment
// overrides. A .env file next to the working directory is honored.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DataDir     string `yaml:"data_dir" json:"data_dir"`
	ScheduleDir string `yaml:"schedule_dir" json:"schedule_dir"`
	DiaryPath   string `yaml:"diary_path" json:"diary_path"`

	// NotifyURL is the broadcast endpoint; empty falls back to log
	// notifications.
	NotifyURL string `yaml:"notify_url" json:"notify_url"`

	DefaultReminderMinutes int `yaml:"default_reminder_minutes" json:"default_reminder_minutes"`
	TickSeconds            int `yaml:"tick_seconds" json:"tick_seconds"`
	SummaryHour            int `yaml:"summary_hour" json:"summary_hour"`
	ArchiveAfterDays       int `yaml:"archive_after_days" json:"archive_after_days"`
	LockTimeoutSeconds     int `yaml:"lock_timeout_seconds" json:"lock_timeout_seconds"`
	RetryBackoffMinutes    int `yaml:"retry_backoff_minutes" json:"retry_backoff_minutes"`

	LogLevel string `yaml:"log_level" json:"log_level"`
}

func (c *Config) ApplyDefaults() {
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.ScheduleDir == "" {
		c.ScheduleDir = "data/schedule"
	}
	if c.DiaryPath == "" {
		c.DiaryPath = "data/diary.log"
	}
	if c.DefaultReminderMinutes <= 0 {
		c.DefaultReminderMinutes = 60
	}
	if c.TickSeconds <= 0 {
		c.TickSeconds = 60
	}
	if c.SummaryHour <= 0 {
		c.SummaryHour = 8
	}
	if c.ArchiveAfterDays <= 0 {
		c.ArchiveAfterDays = 30
	}
	if c.LockTimeoutSeconds <= 0 {
		c.LockTimeoutSeconds = 10
	}
	if c.RetryBackoffMinutes <= 0 {
		c.RetryBackoffMinutes = 5
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (c *Config) DefaultReminderOffset() time.Duration {
	return time.Duration(c.DefaultReminderMinutes) * time.Minute
}

func (c *Config) Tick() time.Duration {
	return time.Duration(c.TickSeconds) * time.Second
}

func (c *Config) ArchiveThreshold() time.Duration {
	return time.Duration(c.ArchiveAfterDays) * 24 * time.Hour
}

func (c *Config) LockTimeout() time.Duration {
	return time.Duration(c.LockTimeoutSeconds) * time.Second
}

func (c *Config) RetryBackoff() time.Duration {
	return time.Duration(c.RetryBackoffMinutes) * time.Minute
}

// Load reads the YAML config at path (missing file is fine), layers env
// overrides on top, and fills defaults.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(b, &c); err != nil {
				return nil, err
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}
	c.fromEnv()
	c.ApplyDefaults()
	return &c, nil
}

func (c *Config) fromEnv() {
	if v := os.Getenv("TASKDEN_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("TASKDEN_SCHEDULE_DIR"); v != "" {
		c.ScheduleDir = v
	}
	if v := os.Getenv("TASKDEN_DIARY_PATH"); v != "" {
		c.DiaryPath = v
	}
	if v := os.Getenv("TASKDEN_NOTIFY_URL"); v != "" {
		c.NotifyURL = v
	}
	if v := getEnvInt("TASKDEN_DEFAULT_REMINDER_MINUTES"); v > 0 {
		c.DefaultReminderMinutes = v
	}
	if v := getEnvInt("TASKDEN_TICK_SECONDS"); v > 0 {
		c.TickSeconds = v
	}
	if v := getEnvInt("TASKDEN_SUMMARY_HOUR"); v > 0 {
		c.SummaryHour = v
	}
	if v := getEnvInt("TASKDEN_ARCHIVE_AFTER_DAYS"); v > 0 {
		c.ArchiveAfterDays = v
	}
	if v := getEnvInt("TASKDEN_LOCK_TIMEOUT_SECONDS"); v > 0 {
		c.LockTimeoutSeconds = v
	}
	if v := getEnvInt("TASKDEN_RETRY_BACKOFF_MINUTES"); v > 0 {
		c.RetryBackoffMinutes = v
	}
	if v := os.Getenv("TASKDEN_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

func getEnvInt(key string) int {
	val := os.Getenv(key)
	if val == "" {
		return 0
	}
	num, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return num
}
