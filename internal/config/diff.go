package config

import (
	"slices"
	"strings"

	logx "protosched/pkg/logx"
)

// SummarizeConfigChange returns a sorted list of changed sections and
// structured attrs for logging the new values. Paths are only reported as
// set/unset.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 5)
	attrs := make([]logx.Field, 0, 16)

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.String("logging.format", newCfg.Logging.Format),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	oS, nS := trimStorage(oldCfg.Storage), trimStorage(newCfg.Storage)
	if oS != nS {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", nS.Driver),
			logx.Bool("storage.path_set", nS.Path != ""),
			logx.String("storage.busy_timeout", nS.BusyTimeout),
		)
	}

	if oldCfg.Schedule != newCfg.Schedule {
		changed = append(changed, "schedule")
		attrs = append(attrs,
			logx.String("schedule.timezone", newCfg.Schedule.Timezone),
			logx.Int("schedule.coverage_years", newCfg.Schedule.CoverageYears),
			logx.String("schedule.completion_window", newCfg.Schedule.CompletionWindow),
			logx.String("schedule.language", newCfg.Schedule.Lang()),
		)
	}

	if oldCfg.Refresh != newCfg.Refresh {
		changed = append(changed, "refresh")
		attrs = append(attrs,
			logx.Bool("refresh.enabled", newCfg.Refresh.Enabled),
			logx.String("refresh.schedule", newCfg.Refresh.Spec()),
			logx.String("refresh.timezone_check", newCfg.Refresh.TimezoneCheck),
		)
	}

	if oldCfg.Protocol != newCfg.Protocol {
		changed = append(changed, "protocol")
		attrs = append(attrs,
			logx.Bool("protocol.path_set", strings.TrimSpace(newCfg.Protocol.Path) != ""),
			logx.Bool("protocol.watch", newCfg.Protocol.Watch),
		)
	}

	if oldCfg.Debug != newCfg.Debug {
		changed = append(changed, "debug")
		attrs = append(attrs,
			logx.Bool("debug.enabled", newCfg.Debug.Enabled),
			logx.String("debug.addr", newCfg.Debug.Address()),
			logx.Bool("debug.token_set", newCfg.Debug.Token != ""),
		)
	}

	slices.Sort(changed)
	return changed, attrs
}

// NeedsRegeneration reports whether any of the changed sections affects
// generated schedules.
func NeedsRegeneration(changed []string) bool {
	return slices.Contains(changed, "schedule") || slices.Contains(changed, "protocol")
}

func trimStorage(s StorageConfig) StorageConfig {
	return StorageConfig{
		Driver:      strings.ToLower(strings.TrimSpace(s.Driver)),
		Path:        strings.TrimSpace(s.Path),
		BusyTimeout: strings.TrimSpace(s.BusyTimeout),
	}
}
