package protocol

import (
	"encoding/json"
	"time"
)

// AssessmentType separates the recurring schedule from on-demand (clinical) assessments.
type AssessmentType string

const (
	TypeScheduled AssessmentType = "SCHEDULED"
	TypeOnDemand  AssessmentType = "ON_DEMAND"
	// TypeAll is only meaningful when updating stored assessment sets.
	TypeAll AssessmentType = "ALL"
)

// RepeatRule describes how often something recurs and, within each
// recurrence, the offsets at which instances occur.
type RepeatRule struct {
	Unit          TimeUnit `json:"unit"`
	Amount        int64    `json:"amount"`
	UnitsFromZero []int64  `json:"unitsFromZero,omitempty"`
	DayOfWeek     Weekday  `json:"dayOfWeek,omitempty"`
}

// Interval returns the rule's unit/amount pair.
func (r RepeatRule) Interval() TimeInterval {
	return TimeInterval{Unit: r.Unit, Amount: r.Amount}
}

type ClinicalProtocol struct {
	RepeatAfterClinicVisit *RepeatRule `json:"repeatAfterClinicVisit,omitempty"`
}

// Reminders are follow-up notifications sent every Unit/Amount after the due
// time, at most Repeat times.
type Reminders struct {
	Unit   TimeUnit `json:"unit"`
	Amount int64    `json:"amount"`
	Repeat int      `json:"repeat"`
}

type Protocol struct {
	RepeatProtocol      *RepeatRule       `json:"repeatProtocol,omitempty"`
	RepeatQuestionnaire *RepeatRule       `json:"repeatQuestionnaire,omitempty"`
	ClinicalProtocol    *ClinicalProtocol `json:"clinicalProtocol,omitempty"`
	ReferenceTimestamp  *time.Time        `json:"referenceTimestamp,omitempty"`
	CompletionWindow    *TimeInterval     `json:"completionWindow,omitempty"`
	Reminders           *Reminders        `json:"reminders,omitempty"`
}

// IsClinical reports whether the protocol declares a clinical-visit rule.
func (p Protocol) IsClinical() bool {
	return p.ClinicalProtocol != nil && p.ClinicalProtocol.RepeatAfterClinicVisit != nil
}

// QuestionnaireSource points at where the question definitions live.
// Fetching them is not done here.
type QuestionnaireSource struct {
	Repository string `json:"repository,omitempty"`
	Name       string `json:"name,omitempty"`
	Type       string `json:"type,omitempty"`
	Format     string `json:"format,omitempty"`
}

type Question struct {
	FieldName     string `json:"field_name"`
	FieldType     string `json:"field_type,omitempty"`
	FieldLabel    string `json:"field_label,omitempty"`
	SectionHeader string `json:"section_header,omitempty"`
	MatrixGroup   string `json:"matrix_group_name,omitempty"`
	Choices       string `json:"select_choices_or_calculations,omitempty"`
	Required      bool   `json:"required_field,omitempty"`
}

type Assessment struct {
	Name                    string               `json:"name"`
	Type                    AssessmentType       `json:"type,omitempty"`
	Questionnaire           *QuestionnaireSource `json:"questionnaire,omitempty"`
	Questions               []Question           `json:"questions,omitempty"`
	EstimatedCompletionTime int                  `json:"estimatedCompletionTime"`
	Warn                    LocalizedText        `json:"warn,omitempty"`
	StartText               LocalizedText        `json:"startText,omitempty"`
	EndText                 LocalizedText        `json:"endText,omitempty"`
	ShowIntroduction        *bool                `json:"showIntroduction,omitempty"`
	ShowInCalendar          *bool                `json:"showInCalendar,omitempty"`
	IsDemo                  *bool                `json:"isDemo,omitempty"`
	Order                   *int                 `json:"order,omitempty"`
	Protocol                Protocol             `json:"protocol"`
}

// EffectiveType treats an unset type as SCHEDULED.
func (a Assessment) EffectiveType() AssessmentType {
	if a.Type == "" {
		return TypeScheduled
	}
	return a.Type
}

// LocalizedText maps a language tag ("en", "nl", "pt-BR") to text.
// A bare JSON string decodes to a single untagged entry.
type LocalizedText map[string]string

func (t *LocalizedText) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if s == "" {
			*t = nil
			return nil
		}
		*t = LocalizedText{"": s}
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	*t = m
	return nil
}
