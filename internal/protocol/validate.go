package protocol

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid assessment")

// Validate checks the preconditions the schedule generator relies on:
// a scheduled assessment needs repeatQuestionnaire, an on-demand one needs
// clinicalProtocol.repeatAfterClinicVisit.
func (a Assessment) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("%w: name required", ErrInvalid)
	}
	p := a.Protocol
	switch a.EffectiveType() {
	case TypeScheduled:
		if p.RepeatQuestionnaire == nil {
			return fmt.Errorf("%w: %s: protocol.repeatQuestionnaire required", ErrInvalid, a.Name)
		}
	case TypeOnDemand:
		if !p.IsClinical() {
			return fmt.Errorf("%w: %s: protocol.clinicalProtocol.repeatAfterClinicVisit required", ErrInvalid, a.Name)
		}
	default:
		return fmt.Errorf("%w: %s: unknown type %q", ErrInvalid, a.Name, a.Type)
	}

	rules := []struct {
		path string
		r    *RepeatRule
	}{
		{"protocol.repeatProtocol", p.RepeatProtocol},
		{"protocol.repeatQuestionnaire", p.RepeatQuestionnaire},
	}
	if p.ClinicalProtocol != nil {
		rules = append(rules, struct {
			path string
			r    *RepeatRule
		}{"protocol.clinicalProtocol.repeatAfterClinicVisit", p.ClinicalProtocol.RepeatAfterClinicVisit})
	}
	for _, rr := range rules {
		if rr.r == nil {
			continue
		}
		if err := rr.r.validate(); err != nil {
			return fmt.Errorf("%w: %s: %s: %v", ErrInvalid, a.Name, rr.path, err)
		}
	}
	if p.RepeatProtocol != nil && p.RepeatProtocol.Amount <= 0 {
		// A non-advancing outer rule would never leave the first anchor.
		return fmt.Errorf("%w: %s: protocol.repeatProtocol.amount must be > 0", ErrInvalid, a.Name)
	}
	if r := p.RepeatProtocol; r != nil && !r.Unit.Calendar() && time.Duration(r.Amount)*r.Unit.Duration() < 24*time.Hour {
		return fmt.Errorf("%w: %s: protocol.repeatProtocol must span at least one day", ErrInvalid, a.Name)
	}
	if w := p.CompletionWindow; w != nil {
		if !w.Unit.Valid() || w.Amount < 0 {
			return fmt.Errorf("%w: %s: protocol.completionWindow: bad interval %d %q", ErrInvalid, a.Name, w.Amount, w.Unit)
		}
	}
	if r := p.Reminders; r != nil {
		if !r.Unit.Valid() || r.Amount <= 0 || r.Repeat < 0 {
			return fmt.Errorf("%w: %s: protocol.reminders: bad interval", ErrInvalid, a.Name)
		}
	}
	return nil
}

func (r RepeatRule) validate() error {
	if !r.Unit.Valid() {
		return fmt.Errorf("unknown unit %q", r.Unit)
	}
	if r.Amount < 0 {
		return fmt.Errorf("amount must be >= 0")
	}
	if r.DayOfWeek != "" {
		if _, err := r.DayOfWeek.Parse(); err != nil {
			return err
		}
	}
	return nil
}

// Partition splits assessments into on-demand and scheduled sets,
// preserving input order within each.
func Partition(all []Assessment) (scheduled, onDemand []Assessment) {
	for _, a := range all {
		if a.EffectiveType() == TypeOnDemand {
			onDemand = append(onDemand, a)
		} else {
			scheduled = append(scheduled, a)
		}
	}
	return scheduled, onDemand
}
