package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"protosched/internal/protocol"
)

var cet = time.FixedZone("CET", 3600)

func TestMidnight(t *testing.T) {
	in := time.Date(2024, 1, 10, 15, 4, 5, 6, cet)
	assert.Equal(t, time.Date(2024, 1, 10, 0, 0, 0, 0, cet), Midnight(in))
}

func TestAdvance(t *testing.T) {
	base := time.Date(2024, 1, 31, 9, 0, 0, 0, cet)
	tests := []struct {
		unit   protocol.TimeUnit
		amount int64
		want   time.Time
	}{
		{protocol.UnitMillisecond, 43200000, base.Add(12 * time.Hour)},
		{protocol.UnitMinute, 30, base.Add(30 * time.Minute)},
		{protocol.UnitHour, 2, base.Add(2 * time.Hour)},
		{protocol.UnitDay, 1, time.Date(2024, 2, 1, 9, 0, 0, 0, cet)},
		{protocol.UnitWeek, 2, time.Date(2024, 2, 14, 9, 0, 0, 0, cet)},
		{protocol.UnitMonth, 1, time.Date(2024, 3, 2, 9, 0, 0, 0, cet)},
		{protocol.UnitYear, 1, time.Date(2025, 1, 31, 9, 0, 0, 0, cet)},
		{"bogus", 5, base},
	}
	for _, tt := range tests {
		t.Run(string(tt.unit), func(t *testing.T) {
			assert.Equal(t, tt.want, Advance(base, tt.unit, tt.amount))
		})
	}
}

func TestAdvanceKeepsWallClockAcrossDST(t *testing.T) {
	ams, err := time.LoadLocation("Europe/Amsterdam")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	// DST starts on 2024-03-31.
	before := time.Date(2024, 3, 30, 9, 0, 0, 0, ams)
	after := Advance(before, protocol.UnitDay, 1)
	assert.Equal(t, 9, after.Hour())
	assert.Equal(t, 23*time.Hour, after.Sub(before))
}

func TestShiftDayOfWeek(t *testing.T) {
	wed := time.Date(2024, 1, 10, 12, 0, 0, 0, cet) // Wednesday

	assert.Equal(t, time.Date(2024, 1, 12, 12, 0, 0, 0, cet), ShiftDayOfWeek(wed, time.Friday), "later in same week")
	assert.Equal(t, wed, ShiftDayOfWeek(wed, time.Wednesday), "same day stays")
	assert.Equal(t, time.Date(2024, 1, 15, 12, 0, 0, 0, cet), ShiftDayOfWeek(wed, time.Monday), "passed -> next week")
	assert.Equal(t, time.Date(2024, 1, 14, 12, 0, 0, 0, cet), ShiftDayOfWeek(wed, time.Sunday), "week starts on sunday")
}

func TestCompletionWindow(t *testing.T) {
	a := protocol.Assessment{}
	assert.Equal(t, time.Hour, CompletionWindow(a, time.Hour))

	a.Protocol.CompletionWindow = &protocol.TimeInterval{Unit: protocol.UnitMinute, Amount: 90}
	assert.Equal(t, 90*time.Minute, CompletionWindow(a, time.Hour))
}
