package schedule

import (
	"slices"
	"time"
)

// Reconcile overlays completion records onto a freshly generated schedule.
//
// A record matches the first task with the same name whose timestamp is
// equivalent. With prevOffsetWest == nil equivalence is equality. Otherwise
// the timezone changed since the record was made and prevOffsetWest is the
// old UTC offset in minutes west of UTC (not a difference between offsets).
// The task's distance from the current local midnight is then compared with
// the record's distance from today's UTC midnight shifted by prevOffsetWest
// minutes (the previous local midnight), so "09:00 local" still matches
// after the offset moved.
//
// The input slice is not modified. Unmatched records are dropped.
func Reconcile(schedule []Task, records []CompletedTaskRecord, prevOffsetWest *int, now time.Time) Result {
	out := Result{
		Schedule:  slices.Clone(schedule),
		Completed: make([]Task, 0),
	}
	if out.Schedule == nil {
		out.Schedule = make([]Task, 0)
	}
	if len(records) == 0 {
		return out
	}

	equivalent := func(s, d time.Time) bool { return s.Equal(d) }
	if prevOffsetWest != nil {
		currentMidnight := Midnight(now)
		prevMidnight := Midnight(now.UTC()).Add(time.Duration(*prevOffsetWest) * time.Minute)
		equivalent = func(s, d time.Time) bool {
			return s.Sub(currentMidnight) == d.Sub(prevMidnight)
		}
	}

	for _, d := range records {
		i := slices.IndexFunc(out.Schedule, func(s Task) bool {
			return s.Name == d.Name && equivalent(s.Timestamp, d.Timestamp)
		})
		if i < 0 || out.Schedule[i].Completed {
			continue
		}
		t := &out.Schedule[i]
		t.Completed = true
		t.ReportedCompletion = d.ReportedCompletion
		t.TimeCompleted = d.TimeCompleted
		out.Completed = append(out.Completed, *t)
	}
	return out
}
