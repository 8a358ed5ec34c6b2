// Package localization resolves localizable protocol text and translated
// notification strings for the participant's language.
package localization

import (
	"slices"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	"protosched/internal/protocol"
)

// Message keys for notification strings.
const (
	KeyDueTitle      = "notification.due.title"
	KeyDueText       = "notification.due.text"
	KeyReminderTitle = "notification.reminder.title"
	KeyReminderText  = "notification.reminder.text"
	KeyClinicalTitle = "notification.clinical.title"
)

// Supported lists the languages notification strings are translated into.
// The first entry is the fallback.
var Supported = []language.Tag{
	language.English,
	language.Dutch,
	language.German,
	language.Italian,
	language.Spanish,
}

var translations = map[language.Tag]map[string]string{
	language.English: {
		KeyDueTitle:      "Questionnaire time",
		KeyDueText:       "Please complete %s (about %d min).",
		KeyReminderTitle: "Reminder",
		KeyReminderText:  "%s is still open.",
		KeyClinicalTitle: "Clinical task",
	},
	language.Dutch: {
		KeyDueTitle:      "Tijd voor een vragenlijst",
		KeyDueText:       "Vul %s in (ongeveer %d min).",
		KeyReminderTitle: "Herinnering",
		KeyReminderText:  "%s staat nog open.",
		KeyClinicalTitle: "Klinische taak",
	},
	language.German: {
		KeyDueTitle:      "Zeit für den Fragebogen",
		KeyDueText:       "Bitte füllen Sie %s aus (ca. %d Min.).",
		KeyReminderTitle: "Erinnerung",
		KeyReminderText:  "%s ist noch offen.",
		KeyClinicalTitle: "Klinische Aufgabe",
	},
	language.Italian: {
		KeyDueTitle:      "È ora del questionario",
		KeyDueText:       "Completa %s (circa %d min).",
		KeyReminderTitle: "Promemoria",
		KeyReminderText:  "%s è ancora aperto.",
		KeyClinicalTitle: "Attività clinica",
	},
	language.Spanish: {
		KeyDueTitle:      "Hora del cuestionario",
		KeyDueText:       "Completa %s (unos %d min).",
		KeyReminderTitle: "Recordatorio",
		KeyReminderText:  "%s sigue abierto.",
		KeyClinicalTitle: "Tarea clínica",
	},
}

var (
	cat     catalog.Catalog
	matcher = language.NewMatcher(Supported)
)

func init() {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for tag, msgs := range translations {
		for key, msg := range msgs {
			if err := b.SetString(tag, key, msg); err != nil {
				panic("localization: " + err.Error())
			}
		}
	}
	cat = b
}

// Localizer is bound to one participant language. The zero value is not
// usable; construct with New.
type Localizer struct {
	tag     language.Tag
	printer *message.Printer
}

// New returns a localizer for lang (a BCP 47 tag such as "nl" or "en-GB").
// Unknown or empty tags fall back to English.
func New(lang string) *Localizer {
	want, err := language.Parse(strings.TrimSpace(lang))
	if err != nil {
		want = language.English
	}
	_, idx, _ := matcher.Match(want)
	return &Localizer{
		tag:     want,
		printer: message.NewPrinter(Supported[idx], message.Catalog(cat)),
	}
}

// Language is the requested tag.
func (l *Localizer) Language() language.Tag { return l.tag }

// Sprintf formats the translated message for key.
func (l *Localizer) Sprintf(key string, args ...any) string {
	return l.printer.Sprintf(key, args...)
}

// Choose picks the best entry of a localizable text. An exact key wins, then
// the closest language, then the language-neutral "" entry, then English.
// If none of those exist the alphabetically first entry is used.
func (l *Localizer) Choose(text protocol.LocalizedText) string {
	if len(text) == 0 {
		return ""
	}
	if s, ok := text[l.tag.String()]; ok {
		return s
	}

	keys := make([]string, 0, len(text))
	for k := range text {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	tags := make([]language.Tag, 0, len(keys))
	tagKeys := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		t, err := language.Parse(k)
		if err != nil {
			continue
		}
		tags = append(tags, t)
		tagKeys = append(tagKeys, k)
	}
	if len(tags) > 0 {
		_, idx, conf := language.NewMatcher(tags).Match(l.tag)
		if conf != language.No {
			return text[tagKeys[idx]]
		}
	}
	if s, ok := text[""]; ok {
		return s
	}
	if s, ok := text["en"]; ok {
		return s
	}
	return text[keys[0]]
}
