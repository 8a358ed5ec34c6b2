package protocol

import (
	"fmt"
	"strings"
	"time"
)

// TimeUnit is the unit a repeat rule or interval is expressed in.
type TimeUnit string

const (
	UnitMillisecond TimeUnit = "ms"
	UnitSecond      TimeUnit = "sec"
	UnitMinute      TimeUnit = "min"
	UnitHour        TimeUnit = "hour"
	UnitDay         TimeUnit = "day"
	UnitWeek        TimeUnit = "week"
	UnitMonth       TimeUnit = "month"
	UnitYear        TimeUnit = "year"
)

var unitAliases = map[string]TimeUnit{
	"ms": UnitMillisecond, "millisecond": UnitMillisecond, "milliseconds": UnitMillisecond,
	"s": UnitSecond, "sec": UnitSecond, "second": UnitSecond, "seconds": UnitSecond,
	"m": UnitMinute, "min": UnitMinute, "minute": UnitMinute, "minutes": UnitMinute,
	"h": UnitHour, "hour": UnitHour, "hours": UnitHour,
	"d": UnitDay, "day": UnitDay, "days": UnitDay,
	"w": UnitWeek, "week": UnitWeek, "weeks": UnitWeek,
	"month": UnitMonth, "months": UnitMonth,
	"y": UnitYear, "year": UnitYear, "years": UnitYear,
}

// ParseTimeUnit normalizes a unit name. Matching is case-insensitive.
func ParseTimeUnit(s string) (TimeUnit, error) {
	u, ok := unitAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("unknown time unit %q", s)
	}
	return u, nil
}

func (u TimeUnit) Valid() bool {
	_, err := ParseTimeUnit(string(u))
	return err == nil
}

// Calendar reports whether the unit advances by calendar arithmetic
// (day and larger) rather than by a fixed duration.
func (u TimeUnit) Calendar() bool {
	switch u.normalized() {
	case UnitDay, UnitWeek, UnitMonth, UnitYear:
		return true
	}
	return false
}

// Duration is the fixed length of one unit. Months count as 30 days and
// years as 365 days.
func (u TimeUnit) Duration() time.Duration {
	switch u.normalized() {
	case UnitMillisecond:
		return time.Millisecond
	case UnitSecond:
		return time.Second
	case UnitMinute:
		return time.Minute
	case UnitHour:
		return time.Hour
	case UnitDay:
		return 24 * time.Hour
	case UnitWeek:
		return 7 * 24 * time.Hour
	case UnitMonth:
		return 30 * 24 * time.Hour
	case UnitYear:
		return 365 * 24 * time.Hour
	}
	return 0
}

func (u TimeUnit) normalized() TimeUnit {
	n, err := ParseTimeUnit(string(u))
	if err != nil {
		return u
	}
	return n
}

// Weekday is a day-of-week name such as "monday".
type Weekday string

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

// Parse resolves the name to a time.Weekday.
func (w Weekday) Parse() (time.Weekday, error) {
	d, ok := weekdays[strings.ToLower(strings.TrimSpace(string(w)))]
	if !ok {
		return 0, fmt.Errorf("unknown day of week %q", string(w))
	}
	return d, nil
}

// TimeInterval is an amount of a unit, e.g. {unit: day, amount: 1}.
type TimeInterval struct {
	Unit   TimeUnit `json:"unit"`
	Amount int64    `json:"amount"`
}

// Duration converts the interval to a fixed duration.
func (i TimeInterval) Duration() time.Duration {
	return time.Duration(i.Amount) * i.Unit.Duration()
}
