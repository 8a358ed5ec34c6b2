package localization

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"protosched/internal/protocol"
)

func TestChoose(t *testing.T) {
	text := protocol.LocalizedText{"en": "hello", "nl": "hallo", "de": "hallo welt"}

	tests := []struct {
		lang string
		want string
	}{
		{"nl", "hallo"},
		{"de-AT", "hallo welt"},
		{"en-GB", "hello"},
		{"", "hello"},
		{"not a tag", "hello"},
	}
	for _, tt := range tests {
		t.Run(tt.lang, func(t *testing.T) {
			assert.Equal(t, tt.want, New(tt.lang).Choose(text))
		})
	}
}

func TestChooseFallbacks(t *testing.T) {
	l := New("ja")
	assert.Equal(t, "neutral", l.Choose(protocol.LocalizedText{"": "neutral", "nl": "hallo"}))
	assert.Equal(t, "hi", l.Choose(protocol.LocalizedText{"en": "hi", "nl": "hallo"}))
	assert.Equal(t, "hallo", l.Choose(protocol.LocalizedText{"nl": "hallo", "xx": "?"}))
	assert.Empty(t, l.Choose(nil))
}

func TestSprintf(t *testing.T) {
	assert.Equal(t, "Reminder", New("en").Sprintf(KeyReminderTitle))
	assert.Equal(t, "Herinnering", New("nl-BE").Sprintf(KeyReminderTitle))
	assert.Equal(t, "PHQ8 staat nog open.", New("nl").Sprintf(KeyReminderText, "PHQ8"))
	assert.Equal(t, "Reminder", New("ja").Sprintf(KeyReminderTitle))
}

func TestEveryLanguageHasEveryKey(t *testing.T) {
	for _, tag := range Supported {
		for key := range translations[Supported[0]] {
			_, ok := translations[tag][key]
			assert.True(t, ok, "%s missing %s", tag, key)
		}
	}
}
