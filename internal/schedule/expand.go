package schedule

import (
	"fmt"
	"time"

	"protosched/internal/protocol"
)

// Expander produces occurrence timestamps for a single assessment.
type Expander struct {
	// CoverageYears bounds generation to anchor + CoverageYears.
	CoverageYears int
	// DefaultCompletionWindow is used when the protocol sets none.
	DefaultCompletionWindow time.Duration
}

func (e Expander) coverageYears() int {
	if e.CoverageYears <= 0 {
		return DefaultCoverageYears
	}
	return e.CoverageYears
}

func (e Expander) defaultWindow() time.Duration {
	if e.DefaultCompletionWindow <= 0 {
		return DefaultCompletionWindow
	}
	return e.DefaultCompletionWindow
}

// Window resolves the completion window for a.
func (e Expander) Window(a protocol.Assessment) time.Duration {
	return CompletionWindow(a, e.defaultWindow())
}

// Rules returns the per-cycle rule and the optional outer rule for kind.
// Clinical generation never repeats the cycle.
func Rules(p protocol.Protocol, kind Kind) (rule, outer *protocol.RepeatRule, err error) {
	switch kind {
	case Clinical:
		if !p.IsClinical() {
			return nil, nil, fmt.Errorf("%w: clinicalProtocol.repeatAfterClinicVisit", ErrMissingRepeatRule)
		}
		return p.ClinicalProtocol.RepeatAfterClinicVisit, nil, nil
	default:
		if p.RepeatQuestionnaire == nil {
			return nil, nil, fmt.Errorf("%w: repeatQuestionnaire", ErrMissingRepeatRule)
		}
		return p.RepeatQuestionnaire, p.RepeatProtocol, nil
	}
}

// Anchor computes the first anchor time. protocol.referenceTimestamp replaces
// ref when set; a dayOfWeek (outer rule first, then the cycle rule) shifts
// the anchor to that weekday.
func Anchor(p protocol.Protocol, ref time.Time, rule, outer *protocol.RepeatRule) (time.Time, error) {
	base := ref
	if p.ReferenceTimestamp != nil && !p.ReferenceTimestamp.IsZero() {
		base = p.ReferenceTimestamp.In(ref.Location())
	}
	var dow protocol.Weekday
	switch {
	case outer != nil && outer.DayOfWeek != "":
		dow = outer.DayOfWeek
	case rule != nil && rule.DayOfWeek != "":
		dow = rule.DayOfWeek
	}
	if dow == "" {
		return base, nil
	}
	wd, err := dow.Parse()
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	return ShiftDayOfWeek(base, wd), nil
}

// Expand lists the occurrences of a from ref up to the coverage horizon.
// Occurrences whose completion window ended at or before today (the current
// local midnight) are dropped. Indexes start at indexOffset and follow
// output order.
func (e Expander) Expand(a protocol.Assessment, ref time.Time, indexOffset int, kind Kind, today time.Time) ([]Occurrence, error) {
	rule, outer, err := Rules(a.Protocol, kind)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.Name, err)
	}
	if _, err := protocol.ParseTimeUnit(string(rule.Unit)); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", a.Name, ErrInvalidRule, err)
	}
	if outer != nil {
		if _, err := protocol.ParseTimeUnit(string(outer.Unit)); err != nil {
			return nil, fmt.Errorf("%s: %w: %v", a.Name, ErrInvalidRule, err)
		}
		if outer.Amount <= 0 {
			return nil, fmt.Errorf("%s: %w: repeatProtocol.amount must be > 0", a.Name, ErrInvalidRule)
		}
		if !outer.Unit.Calendar() && time.Duration(outer.Amount)*outer.Unit.Duration() < 24*time.Hour {
			return nil, fmt.Errorf("%s: %w: repeatProtocol must span at least one day", a.Name, ErrInvalidRule)
		}
	}

	anchor, err := Anchor(a.Protocol, ref, rule, outer)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.Name, err)
	}
	end := anchor.AddDate(e.coverageYears(), 0, 0)
	window := e.Window(a)

	offsets := rule.UnitsFromZero
	if len(offsets) == 0 {
		offsets = []int64{0}
	}

	out := make([]Occurrence, 0, len(offsets))
	for !anchor.After(end) {
		for _, off := range offsets {
			ts := Advance(anchor, rule.Unit, off)
			if ts.Add(window).After(today) {
				out = append(out, Occurrence{Index: indexOffset + len(out), Timestamp: ts})
			}
		}
		if outer == nil {
			break
		}
		next := advanceOuter(Midnight(anchor), outer)
		if !next.After(anchor) {
			return nil, fmt.Errorf("%s: %w: repeatProtocol does not advance past %s", a.Name, ErrInvalidRule, anchor.Format(time.RFC3339))
		}
		anchor = next
	}
	return out, nil
}

// advanceOuter steps the cycle anchor. Fixed-length rules that are a whole
// number of days move by calendar days so a DST day cannot pull the anchor
// back onto the day it started from.
func advanceOuter(t time.Time, r *protocol.RepeatRule) time.Time {
	if !r.Unit.Calendar() {
		d := time.Duration(r.Amount) * r.Unit.Duration()
		if d%(24*time.Hour) == 0 {
			return t.AddDate(0, 0, int(d/(24*time.Hour)))
		}
	}
	return Advance(t, r.Unit, r.Amount)
}
