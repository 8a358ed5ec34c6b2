package protocol

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeUnit(t *testing.T) {
	tests := []struct {
		in   string
		want TimeUnit
	}{
		{"ms", UnitMillisecond},
		{"Minutes", UnitMinute},
		{"hour", UnitHour},
		{"DAY", UnitDay},
		{"weeks", UnitWeek},
		{"month", UnitMonth},
		{"y", UnitYear},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeUnit(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseTimeUnit("fortnight")
	assert.Error(t, err)
}

func TestTimeIntervalDuration(t *testing.T) {
	assert.Equal(t, 24*time.Hour, TimeInterval{Unit: UnitDay, Amount: 1}.Duration())
	assert.Equal(t, 90*time.Minute, TimeInterval{Unit: "minutes", Amount: 90}.Duration())
	assert.Equal(t, 30*24*time.Hour, TimeInterval{Unit: UnitMonth, Amount: 1}.Duration())
	assert.True(t, UnitWeek.Calendar())
	assert.False(t, UnitHour.Calendar())
}

func TestWeekdayParse(t *testing.T) {
	d, err := Weekday("Monday").Parse()
	require.NoError(t, err)
	assert.Equal(t, time.Monday, d)

	_, err = Weekday("caturday").Parse()
	assert.Error(t, err)
}

func TestLocalizedTextAcceptsString(t *testing.T) {
	var a Assessment
	require.NoError(t, json.Unmarshal([]byte(`{"name":"PHQ8","warn":"Be honest","startText":{"en":"Hi","nl":"Hoi"},"protocol":{}}`), &a))
	assert.Equal(t, LocalizedText{"": "Be honest"}, a.Warn)
	assert.Equal(t, "Hoi", a.StartText["nl"])
}

func TestValidate(t *testing.T) {
	daily := &RepeatRule{Unit: UnitDay, Amount: 1, UnitsFromZero: []int64{0}}

	tests := []struct {
		name    string
		a       Assessment
		wantErr bool
	}{
		{
			name: "scheduled ok",
			a:    Assessment{Name: "PHQ8", Protocol: Protocol{RepeatQuestionnaire: daily}},
		},
		{
			name:    "scheduled missing questionnaire rule",
			a:       Assessment{Name: "PHQ8", Protocol: Protocol{RepeatProtocol: daily}},
			wantErr: true,
		},
		{
			name: "on demand ok",
			a: Assessment{Name: "CLIN", Type: TypeOnDemand, Protocol: Protocol{
				ClinicalProtocol: &ClinicalProtocol{RepeatAfterClinicVisit: daily},
			}},
		},
		{
			name:    "on demand missing clinical rule",
			a:       Assessment{Name: "CLIN", Type: TypeOnDemand, Protocol: Protocol{RepeatQuestionnaire: daily}},
			wantErr: true,
		},
		{
			name: "bad weekday",
			a: Assessment{Name: "PHQ8", Protocol: Protocol{
				RepeatProtocol:      &RepeatRule{Unit: UnitWeek, Amount: 1, DayOfWeek: "someday"},
				RepeatQuestionnaire: daily,
			}},
			wantErr: true,
		},
		{
			name: "zero outer amount",
			a: Assessment{Name: "PHQ8", Protocol: Protocol{
				RepeatProtocol:      &RepeatRule{Unit: UnitWeek, Amount: 0},
				RepeatQuestionnaire: daily,
			}},
			wantErr: true,
		},
		{
			name: "sub-day outer rule",
			a: Assessment{Name: "ESM", Protocol: Protocol{
				RepeatProtocol:      &RepeatRule{Unit: UnitHour, Amount: 12},
				RepeatQuestionnaire: daily,
			}},
			wantErr: true,
		},
		{
			name: "whole-day outer rule in hours",
			a: Assessment{Name: "ESM", Protocol: Protocol{
				RepeatProtocol:      &RepeatRule{Unit: UnitHour, Amount: 24},
				RepeatQuestionnaire: daily,
			}},
		},
		{
			name:    "no name",
			a:       Assessment{Protocol: Protocol{RepeatQuestionnaire: daily}},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.a.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalid)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestPartition(t *testing.T) {
	all := []Assessment{
		{Name: "a"},
		{Name: "b", Type: TypeOnDemand},
		{Name: "c", Type: TypeScheduled},
	}
	sched, onDemand := Partition(all)
	require.Len(t, sched, 2)
	require.Len(t, onDemand, 1)
	assert.Equal(t, "a", sched[0].Name)
	assert.Equal(t, "c", sched[1].Name)
	assert.Equal(t, "b", onDemand[0].Name)
}
