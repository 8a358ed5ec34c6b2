package storage

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrDisabled   = errors.New("storage disabled")
	ErrUnknownKey = errors.New("unknown storage key")
)

// Config configures storage.
//
// Driver values:
//   - "memory" (default when empty)
//   - "file": JSON snapshot at Path
//   - "sqlite": SQLite database file at Path
//
// Driver "none" disables storage and Open returns ErrDisabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Key names one persisted value.
type Key string

const (
	KeyAppVersion                Key = "APP_VERSION"
	KeyReferenceDate             Key = "REFERENCEDATE"
	KeyEnrolmentDate             Key = "ENROLMENTDATE"
	KeyParticipantID             Key = "PARTICIPANTID"
	KeyLanguage                  Key = "LANGUAGE"
	KeyConfigVersion             Key = "CONFIG_VERSION"
	KeyConfigAssessments         Key = "CONFIG_ASSESSMENTS"
	KeyConfigAssessmentsOnDemand Key = "CONFIG_ASSESSMENTS_ON_DEMAND"
	KeyHasClinicalTasks          Key = "HAS_CLINICAL_TASKS"
	KeyScheduleVersion           Key = "SCHEDULE_VERSION"
	KeyScheduleTasks             Key = "SCHEDULE_TASKS"
	KeyScheduleTasksOnDemand     Key = "SCHEDULE_TASKS_ON_DEMAND"
	KeyScheduleTasksCompleted    Key = "SCHEDULE_TASKS_COMPLETED"
	KeyScheduleReport            Key = "SCHEDULE_REPORT"
	KeyTimeZone                  Key = "TIME_ZONE"
	KeyUTCOffset                 Key = "UTC_OFFSET"
	KeyUTCOffsetPrev             Key = "UTC_OFFSET_PREV"
	KeyLastNotificationUpdate    Key = "LAST_NOTIFICATION_UPDATE"
)

var allKeys = []Key{
	KeyAppVersion,
	KeyReferenceDate,
	KeyEnrolmentDate,
	KeyParticipantID,
	KeyLanguage,
	KeyConfigVersion,
	KeyConfigAssessments,
	KeyConfigAssessmentsOnDemand,
	KeyHasClinicalTasks,
	KeyScheduleVersion,
	KeyScheduleTasks,
	KeyScheduleTasksOnDemand,
	KeyScheduleTasksCompleted,
	KeyScheduleReport,
	KeyTimeZone,
	KeyUTCOffset,
	KeyUTCOffsetPrev,
	KeyLastNotificationUpdate,
}

var keySet = func() map[Key]struct{} {
	m := make(map[Key]struct{}, len(allKeys))
	for _, k := range allKeys {
		m[k] = struct{}{}
	}
	return m
}()

// Keys lists every valid key.
func Keys() []Key {
	out := make([]Key, len(allKeys))
	copy(out, allKeys)
	return out
}

func (k Key) Valid() bool {
	_, ok := keySet[k]
	return ok
}

func (k Key) check() error {
	if !k.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownKey, string(k))
	}
	return nil
}

// ParseKey validates a key name.
func ParseKey(s string) (Key, error) {
	k := Key(s)
	if err := k.check(); err != nil {
		return "", err
	}
	return k, nil
}
