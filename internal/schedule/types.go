package schedule

import (
	"errors"
	"time"

	"protosched/internal/protocol"
)

const (
	// DefaultCompletionWindow applies when a protocol has no completionWindow.
	DefaultCompletionWindow = 24 * time.Hour
	// DefaultCoverageYears bounds how far ahead occurrences are generated.
	DefaultCoverageYears = 2
)

var (
	// ErrMissingRepeatRule is returned when a protocol lacks the rule the
	// requested generation kind needs.
	ErrMissingRepeatRule = errors.New("protocol has no repeat rule for this kind")
	// ErrInvalidRule is returned for rules the expander cannot iterate.
	ErrInvalidRule = errors.New("invalid repeat rule")
	// ErrNoSchedule means a non-clinical run could not produce a schedule.
	// Callers keep their previous schedule.
	ErrNoSchedule = errors.New("no schedule produced")
)

// Kind selects the generation strategy.
type Kind int

const (
	NonClinical Kind = iota
	Clinical
)

func (k Kind) String() string {
	switch k {
	case NonClinical:
		return "non_clinical"
	case Clinical:
		return "clinical"
	default:
		return "unknown"
	}
}

// AssessmentType is the stored assessment set a kind reads from.
func (k Kind) AssessmentType() protocol.AssessmentType {
	if k == Clinical {
		return protocol.TypeOnDemand
	}
	return protocol.TypeScheduled
}

type NotificationKind string

const (
	NotificationNow      NotificationKind = "NOW"
	NotificationReminder NotificationKind = "REMINDER"
)

type Notification struct {
	Kind      NotificationKind `json:"type"`
	Timestamp time.Time        `json:"timestamp"`
	Title     string           `json:"title"`
	Text      string           `json:"text"`
	Vibrate   bool             `json:"vibrate"`
	Sound     bool             `json:"sound"`
}

// Task is one materialized occurrence of an assessment. (Name, Timestamp)
// identifies it across generations.
type Task struct {
	Index                   int            `json:"index"`
	Timestamp               time.Time      `json:"timestamp"`
	Name                    string         `json:"name"`
	NQuestions              int            `json:"nQuestions"`
	EstimatedCompletionTime int            `json:"estimatedCompletionTime"`
	CompletionWindow        time.Duration  `json:"completionWindow"`
	Warning                 string         `json:"warning"`
	IsClinical              bool           `json:"isClinical"`
	ShowInCalendar          bool           `json:"showInCalendar"`
	IsDemo                  bool           `json:"isDemo"`
	Order                   int            `json:"order"`
	Notifications           []Notification `json:"notifications,omitempty"`
	Completed               bool           `json:"completed"`
	ReportedCompletion      *bool          `json:"reportedCompletion,omitempty"`
	TimeCompleted           *time.Time     `json:"timeCompleted,omitempty"`
}

// WindowEnd is the instant after which the task can no longer be completed.
func (t Task) WindowEnd() time.Time { return t.Timestamp.Add(t.CompletionWindow) }

// DefaultTask holds the values a built task starts from before the
// assessment overlays its own.
func DefaultTask() Task {
	return Task{
		CompletionWindow: DefaultCompletionWindow,
		ShowInCalendar:   true,
	}
}

// CompletedTaskRecord is persisted evidence that a task was done.
type CompletedTaskRecord struct {
	Name               string     `json:"name"`
	Timestamp          time.Time  `json:"timestamp"`
	ReportedCompletion *bool      `json:"reportedCompletion,omitempty"`
	TimeCompleted      *time.Time `json:"timeCompleted,omitempty"`
}

// RecordOf derives the completion record for a task.
func RecordOf(t Task) CompletedTaskRecord {
	return CompletedTaskRecord{
		Name:               t.Name,
		Timestamp:          t.Timestamp,
		ReportedCompletion: t.ReportedCompletion,
		TimeCompleted:      t.TimeCompleted,
	}
}

// Occurrence is a raw expander output before it becomes a Task.
type Occurrence struct {
	Index     int
	Timestamp time.Time
}

// Result is the output of one generation run. Both slices are non-nil.
type Result struct {
	Schedule  []Task `json:"schedule"`
	Completed []Task `json:"completed"`
}
