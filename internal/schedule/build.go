package schedule

import (
	"time"

	"protosched/internal/protocol"
)

// TextResolver picks the text for the active language.
type TextResolver interface {
	Choose(text protocol.LocalizedText) string
}

// NotificationBuilder constructs the notifications for a freshly built task.
type NotificationBuilder interface {
	Build(a protocol.Assessment, t Task) []Notification
}

// Builder materializes occurrences into tasks. Both collaborators are optional.
type Builder struct {
	Text          TextResolver
	Notifications NotificationBuilder
}

// Build returns a fully populated task. Optional assessment fields override
// the defaults only when set; an explicit false or zero is kept.
func (b Builder) Build(index int, a protocol.Assessment, ts time.Time, window time.Duration) Task {
	t := DefaultTask()
	t.Index = index
	t.Timestamp = ts
	t.Name = a.Name
	t.NQuestions = len(a.Questions)
	t.EstimatedCompletionTime = a.EstimatedCompletionTime
	t.CompletionWindow = window
	t.Warning = b.choose(a.Warn)
	t.IsClinical = a.Protocol.ClinicalProtocol != nil
	t.ShowInCalendar = orDefault(a.ShowInCalendar, t.ShowInCalendar)
	t.IsDemo = orDefault(a.IsDemo, t.IsDemo)
	t.Order = orDefault(a.Order, t.Order)
	if b.Notifications != nil {
		t.Notifications = b.Notifications.Build(a, t)
	}
	return t
}

func (b Builder) choose(text protocol.LocalizedText) string {
	if len(text) == 0 {
		return ""
	}
	if b.Text != nil {
		return b.Text.Choose(text)
	}
	return text[""]
}

func orDefault[T any](v *T, def T) T {
	if v == nil {
		return def
	}
	return *v
}
