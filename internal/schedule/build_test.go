package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"protosched/internal/protocol"
)

type stubText struct{ lang string }

func (s stubText) Choose(text protocol.LocalizedText) string { return text[s.lang] }

type countingNotifications struct{ seen []int }

func (c *countingNotifications) Build(_ protocol.Assessment, t Task) []Notification {
	c.seen = append(c.seen, t.Index)
	return []Notification{{Kind: NotificationNow, Timestamp: t.Timestamp, Title: t.Name}}
}

func ptr[T any](v T) *T { return &v }

func TestBuildDefaults(t *testing.T) {
	a := protocol.Assessment{
		Name:      "PHQ8",
		Questions: make([]protocol.Question, 8),
	}
	ts := time.Date(2024, 1, 10, 9, 0, 0, 0, cet)
	task := Builder{}.Build(4, a, ts, time.Hour)

	assert.Equal(t, 4, task.Index)
	assert.Equal(t, "PHQ8", task.Name)
	assert.Equal(t, ts, task.Timestamp)
	assert.Equal(t, 8, task.NQuestions)
	assert.Equal(t, time.Hour, task.CompletionWindow)
	assert.True(t, task.ShowInCalendar)
	assert.False(t, task.IsDemo)
	assert.False(t, task.IsClinical)
	assert.False(t, task.Completed)
	assert.Zero(t, task.Order)
	assert.Empty(t, task.Warning)
	assert.Nil(t, task.Notifications)
}

func TestBuildExplicitValuesOverrideDefaults(t *testing.T) {
	a := protocol.Assessment{
		Name:                    "PHQ8",
		EstimatedCompletionTime: 3,
		ShowInCalendar:          ptr(false),
		IsDemo:                  ptr(true),
		Order:                   ptr(2),
		Warn:                    protocol.LocalizedText{"en": "careful", "nl": "voorzichtig"},
		Protocol: protocol.Protocol{
			ClinicalProtocol: &protocol.ClinicalProtocol{},
		},
	}
	task := Builder{Text: stubText{lang: "nl"}}.Build(0, a, testNow, time.Hour)

	assert.False(t, task.ShowInCalendar, "explicit false is kept")
	assert.True(t, task.IsDemo)
	assert.Equal(t, 2, task.Order)
	assert.Equal(t, 3, task.EstimatedCompletionTime)
	assert.Equal(t, "voorzichtig", task.Warning)
	assert.True(t, task.IsClinical)
}

func TestBuildWarningWithoutResolver(t *testing.T) {
	a := protocol.Assessment{Name: "X", Warn: protocol.LocalizedText{"": "plain"}}
	assert.Equal(t, "plain", Builder{}.Build(0, a, testNow, time.Hour).Warning)
}

func TestBuildNotifications(t *testing.T) {
	nb := &countingNotifications{}
	task := Builder{Notifications: nb}.Build(7, protocol.Assessment{Name: "X"}, testNow, time.Hour)
	assert.Equal(t, []int{7}, nb.seen)
	assert.Len(t, task.Notifications, 1)
	assert.Equal(t, testNow, task.Notifications[0].Timestamp)
}
