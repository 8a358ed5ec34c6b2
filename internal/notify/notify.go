// Package notify builds the local notifications attached to a task.
package notify

import (
	"protosched/internal/localization"
	"protosched/internal/protocol"
	"protosched/internal/schedule"
)

// Printer formats a translated message.
type Printer interface {
	Sprintf(key string, args ...any) string
}

// Builder creates one NOW notification at the task's due time and, when the
// protocol asks for reminders, up to Reminders.Repeat REMINDER notifications
// spaced by the reminder interval. Reminders never fall outside the task's
// completion window.
type Builder struct {
	Text    Printer
	Sound   bool
	Vibrate bool
}

var _ schedule.NotificationBuilder = Builder{}

// defaultText is used when a Builder has no Text.
var defaultText Printer = localization.New("en")

func (b Builder) printer() Printer {
	if b.Text == nil {
		return defaultText
	}
	return b.Text
}

func (b Builder) Build(a protocol.Assessment, t schedule.Task) []schedule.Notification {
	p := b.printer()

	title := p.Sprintf(localization.KeyDueTitle)
	if t.IsClinical {
		title = p.Sprintf(localization.KeyClinicalTitle)
	}
	out := []schedule.Notification{{
		Kind:      schedule.NotificationNow,
		Timestamp: t.Timestamp,
		Title:     title,
		Text:      p.Sprintf(localization.KeyDueText, t.Name, t.EstimatedCompletionTime),
		Sound:     b.Sound,
		Vibrate:   b.Vibrate,
	}}

	r := a.Protocol.Reminders
	if r == nil || r.Amount <= 0 || r.Repeat <= 0 {
		return out
	}
	end := t.WindowEnd()
	for i := 1; i <= r.Repeat; i++ {
		ts := schedule.Advance(t.Timestamp, r.Unit, r.Amount*int64(i))
		if !ts.Before(end) {
			break
		}
		out = append(out, schedule.Notification{
			Kind:      schedule.NotificationReminder,
			Timestamp: ts,
			Title:     p.Sprintf(localization.KeyReminderTitle),
			Text:      p.Sprintf(localization.KeyReminderText, t.Name),
			Sound:     b.Sound,
			Vibrate:   b.Vibrate,
		})
	}
	return out
}
