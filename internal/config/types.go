package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

type Config struct {
	Logging  LoggingConfig  `json:"logging"`
	Storage  StorageConfig  `json:"storage"`
	Schedule ScheduleConfig `json:"schedule"`
	Refresh  RefreshConfig  `json:"refresh"`
	Protocol ProtocolConfig `json:"protocol"`
	Debug    DebugConfig    `json:"debug"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Format  string      `json:"format,omitempty"` // console | json
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig selects the persistence driver.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/protosched.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// ScheduleConfig controls generation.
//
// Defaults (when fields are omitted/zero):
//   - timezone: the host's local zone
//   - coverage_years: 2
//   - completion_window: "24h"
//   - language: "en"
type ScheduleConfig struct {
	Timezone         string `json:"timezone,omitempty"`
	CoverageYears    int    `json:"coverage_years,omitempty"`
	CompletionWindow string `json:"completion_window,omitempty"`
	Language         string `json:"language,omitempty"`
}

// RefreshConfig controls the daemon's regeneration triggers.
//
// Schedule accepts a cron expression (seconds optional), a descriptor such
// as "@daily" or "@every 6h", a Go duration, or an HH:MM interval.
type RefreshConfig struct {
	Enabled  bool   `json:"enabled"`
	Schedule string `json:"schedule,omitempty"`
	// TimezoneCheck is how often the device offset is compared with the
	// stored one. "0s" disables the check.
	TimezoneCheck string `json:"timezone_check,omitempty"`
	// MinInterval and Burst rate-limit regenerations across all triggers.
	MinInterval string `json:"min_interval,omitempty"`
	Burst       int    `json:"burst,omitempty"`
}

type ProtocolConfig struct {
	Path  string `json:"path,omitempty"`
	Watch bool   `json:"watch,omitempty"`
}

// DebugConfig controls the optional status/pprof HTTP server of `serve`.
// Binding to a non-loopback address requires a token.
type DebugConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"`
	Token   string `json:"token,omitempty"`
}

const (
	DefaultDebugAddr       = "127.0.0.1:6060"
	DefaultRefreshSchedule = "@daily"
	DefaultTimezoneCheck   = time.Minute
	DefaultMinInterval     = 10 * time.Second
	DefaultBurst           = 1
	DefaultLanguage        = "en"
)

// Location resolves the schedule timezone.
func (c ScheduleConfig) Location() (*time.Location, error) {
	tz := strings.TrimSpace(c.Timezone)
	if tz == "" || strings.EqualFold(tz, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("schedule.timezone: %w", err)
	}
	return loc, nil
}

func (c ScheduleConfig) Window() (time.Duration, error) {
	return ParseDurationOrDefault("schedule.completion_window", c.CompletionWindow, 24*time.Hour)
}

func (c ScheduleConfig) Lang() string {
	if s := strings.TrimSpace(c.Language); s != "" {
		return s
	}
	return DefaultLanguage
}

func (c RefreshConfig) Spec() string {
	if s := strings.TrimSpace(c.Schedule); s != "" {
		return s
	}
	return DefaultRefreshSchedule
}

func (c RefreshConfig) TimezoneInterval() (time.Duration, error) {
	if strings.TrimSpace(c.TimezoneCheck) == "" {
		return DefaultTimezoneCheck, nil
	}
	return ParseDurationField("refresh.timezone_check", c.TimezoneCheck)
}

func (c RefreshConfig) Limit() (time.Duration, int, error) {
	d, err := ParseDurationOrDefault("refresh.min_interval", c.MinInterval, DefaultMinInterval)
	if err != nil {
		return 0, 0, err
	}
	burst := c.Burst
	if burst <= 0 {
		burst = DefaultBurst
	}
	return d, burst, nil
}

// Validate checks every field that can be checked without side effects.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	var errs []error
	if _, err := c.Schedule.Location(); err != nil {
		errs = append(errs, err)
	}
	if c.Schedule.CoverageYears < 0 {
		errs = append(errs, errors.New("schedule.coverage_years must be >= 0"))
	}
	if _, err := c.Schedule.Window(); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Refresh.TimezoneInterval(); err != nil {
		errs = append(errs, err)
	}
	if _, _, err := c.Refresh.Limit(); err != nil {
		errs = append(errs, err)
	}
	if c.Protocol.Watch && strings.TrimSpace(c.Protocol.Path) == "" {
		errs = append(errs, errors.New("protocol.watch requires protocol.path"))
	}
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format))
	}
	if c.Debug.Enabled {
		if err := c.Debug.check(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c DebugConfig) Address() string {
	if a := strings.TrimSpace(c.Addr); a != "" {
		return a
	}
	return DefaultDebugAddr
}

func (c DebugConfig) check() error {
	host, _, err := net.SplitHostPort(c.Address())
	if err != nil {
		return fmt.Errorf("debug.addr: %w", err)
	}
	if strings.TrimSpace(c.Token) != "" {
		return nil
	}
	if ip := net.ParseIP(host); strings.EqualFold(host, "localhost") || (ip != nil && ip.IsLoopback()) {
		return nil
	}
	return fmt.Errorf("debug.addr %q is not loopback; set debug.token", c.Address())
}
