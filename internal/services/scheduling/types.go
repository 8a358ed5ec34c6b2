package scheduling

import (
	"errors"
	"time"
)

var (
	ErrTaskNotFound = errors.New("task not found")
	ErrNoTask       = errors.New("no upcoming task")
)

// Report summarizes the last successful generation. It is stored under
// SCHEDULE_REPORT.
type Report struct {
	Version       string    `json:"version"`
	Reason        string    `json:"reason"`
	GeneratedAt   time.Time `json:"generatedAt"`
	Reference     time.Time `json:"reference"`
	TookMS        int64     `json:"tookMs"`
	Tasks         int       `json:"tasks"`
	Completed     int       `json:"completed"`
	TimezoneShift bool      `json:"timezoneShift"`
}

// TimezoneChange describes a change noticed by NoteTimezone. Offsets are
// minutes east of UTC.
type TimezoneChange struct {
	From       string `json:"from"`
	To         string `json:"to"`
	FromOffset int    `json:"fromOffset"`
	ToOffset   int    `json:"toOffset"`
	// ZoneMoved is false for daylight-saving transitions inside one zone.
	ZoneMoved bool `json:"zoneMoved"`
}

// Common generation reasons.
const (
	ReasonManual   = "manual"
	ReasonStartup  = "startup"
	ReasonCron     = "cron"
	ReasonTimezone = "timezone"
	ReasonConfig   = "config"
	ReasonProtocol = "protocol"
)
