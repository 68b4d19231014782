// Package config loads, validates, and watches the warden configuration file.
package config

import (
	"time"

	"github.com/wardenhq/warden/internal/domain"
)

// Config is the root of the warden configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Watchdog WatchdogConfig `mapstructure:"watchdog"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig describes the process to supervise and how to stop it.
type ServerConfig struct {
	Command     string        `mapstructure:"command"`
	Args        []string      `mapstructure:"args"`
	Workdir     string        `mapstructure:"workdir"`
	StopCommand string        `mapstructure:"stop_command"`
	StopTimeout time.Duration `mapstructure:"stop_timeout"`
}

// ScheduleConfig describes the daily window the server should be up.
type ScheduleConfig struct {
	Start        string        `mapstructure:"start"`
	End          string        `mapstructure:"end"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	WarnMinutes  []int         `mapstructure:"warn_minutes"`
}

// WatchdogConfig bounds how often the server may be relaunched.
type WatchdogConfig struct {
	MaxStarts int           `mapstructure:"max_starts"`
	Window    time.Duration `mapstructure:"window"`
	Backoff   time.Duration `mapstructure:"backoff"`
}

// NotifyConfig configures outbound notifications.
type NotifyConfig struct {
	DiscordWebhookURL string `mapstructure:"discord_webhook_url"`
}

// LoggingConfig configures warden's own logging.
type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Window parses the schedule bounds into a domain window.
func (s ScheduleConfig) Window() (domain.Window, error) {
	return domain.NewWindow(s.Start, s.End)
}

// Validate checks the configuration for values the supervisor cannot run
// with. The first offending field is reported.
func (c *Config) Validate() error {
	if c.Server.Command == "" {
		return domain.NewValidationError("server.command", "cannot be empty")
	}
	if c.Server.StopTimeout <= 0 {
		return domain.NewValidationError("server.stop_timeout", "must be positive")
	}
	if _, err := domain.ParseClockTime(c.Schedule.Start); err != nil {
		return domain.NewValidationError("schedule.start", err.Error())
	}
	if _, err := domain.ParseClockTime(c.Schedule.End); err != nil {
		return domain.NewValidationError("schedule.end", err.Error())
	}
	if _, err := c.Schedule.Window(); err != nil {
		return domain.NewValidationError("schedule", err.Error())
	}
	if c.Schedule.PollInterval <= 0 {
		return domain.NewValidationError("schedule.poll_interval", "must be positive")
	}
	for _, m := range c.Schedule.WarnMinutes {
		if m < 0 {
			return domain.NewValidationError("schedule.warn_minutes", "entries must not be negative")
		}
	}
	if c.Watchdog.MaxStarts <= 0 {
		return domain.NewValidationError("watchdog.max_starts", "must be positive")
	}
	if c.Watchdog.Window <= 0 {
		return domain.NewValidationError("watchdog.window", "must be positive")
	}
	if c.Watchdog.Backoff <= 0 {
		return domain.NewValidationError("watchdog.backoff", "must be positive")
	}
	return nil
}
