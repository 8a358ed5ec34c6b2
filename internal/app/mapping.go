package app

import (
	"fmt"
	"strings"
	"time"

	"protosched/internal/config"
	"protosched/internal/localization"
	"protosched/internal/notify"
	"protosched/internal/schedule"
	"protosched/internal/storage"
	"protosched/internal/trigger"
	logx "protosched/pkg/logx"
)

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	path := strings.TrimSpace(sc.Path)
	switch driver {
	case "", "memory", "none":
		return storage.Config{Driver: driver}, nil
	case "file", "json":
		if path == "" {
			return storage.Config{}, fmt.Errorf("storage.path is required when storage.driver=%s", driver)
		}
		return storage.Config{Driver: "file", Path: path}, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, err
		}
		return storage.Config{Driver: "sqlite", Path: path, BusyTimeout: busy}, nil
	default:
		return storage.Config{}, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

func mapScheduleOptions(cfg *config.Config, log logx.Logger) (schedule.Options, error) {
	loc, err := cfg.Schedule.Location()
	if err != nil {
		return schedule.Options{}, err
	}
	window, err := cfg.Schedule.Window()
	if err != nil {
		return schedule.Options{}, err
	}
	text := localization.New(cfg.Schedule.Lang())
	return schedule.Options{
		Location:                loc,
		CoverageYears:           cfg.Schedule.CoverageYears,
		DefaultCompletionWindow: window,
		Text:                    text,
		Notifications:           notify.Builder{Text: text, Sound: true, Vibrate: true},
		Log:                     log,
	}, nil
}

func mapTriggerConfig(cfg *config.Config) (trigger.Config, error) {
	loc, err := cfg.Schedule.Location()
	if err != nil {
		return trigger.Config{}, err
	}
	tz, err := cfg.Refresh.TimezoneInterval()
	if err != nil {
		return trigger.Config{}, err
	}
	minInterval, burst, err := cfg.Refresh.Limit()
	if err != nil {
		return trigger.Config{}, err
	}
	spec := cfg.Refresh.Spec()
	if _, err := trigger.ParseSchedule(spec); err != nil {
		return trigger.Config{}, fmt.Errorf("refresh.schedule: %w", err)
	}
	return trigger.Config{
		Enabled:       cfg.Refresh.Enabled,
		Schedule:      spec,
		Location:      loc,
		TimezoneCheck: tz,
		MinInterval:   minInterval,
		Burst:         burst,
	}, nil
}
