package schedule

import (
	"time"

	"protosched/internal/protocol"
)

// Midnight truncates t to the start of its calendar day in t's location.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Advance moves t by amount units. Day and larger units use calendar
// arithmetic in t's location so local wall-clock times survive DST changes.
func Advance(t time.Time, unit protocol.TimeUnit, amount int64) time.Time {
	u, err := protocol.ParseTimeUnit(string(unit))
	if err != nil {
		return t
	}
	n := int(amount)
	switch u {
	case protocol.UnitDay:
		return t.AddDate(0, 0, n)
	case protocol.UnitWeek:
		return t.AddDate(0, 0, 7*n)
	case protocol.UnitMonth:
		return t.AddDate(0, n, 0)
	case protocol.UnitYear:
		return t.AddDate(n, 0, 0)
	}
	return t.Add(time.Duration(amount) * u.Duration())
}

// ShiftDayOfWeek moves t to weekday wd of the same Sunday-based week, keeping
// the time of day. If that day has already passed, the following week is used.
func ShiftDayOfWeek(t time.Time, wd time.Weekday) time.Time {
	target := t.AddDate(0, 0, int(wd)-int(t.Weekday()))
	if !t.After(target) {
		return target
	}
	return target.AddDate(0, 0, 7)
}

// CompletionWindow resolves an assessment's completion window, falling back to def.
func CompletionWindow(a protocol.Assessment, def time.Duration) time.Duration {
	if w := a.Protocol.CompletionWindow; w != nil {
		return w.Duration()
	}
	return def
}
