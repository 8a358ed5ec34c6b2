package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"protosched/internal/config"
	"protosched/internal/schedule"
	"protosched/internal/services/scheduling"
)

const testProtocol = "../questionnaire/testdata/protocol.yaml"

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func baseConfig(t *testing.T) string {
	return configInZone(t, "UTC")
}

func configInZone(t *testing.T, tz string) string {
	protocolPath, err := filepath.Abs(testProtocol)
	require.NoError(t, err)
	dbPath := filepath.Join(t.TempDir(), "state.json")
	return "logging:\n  level: error\n" +
		"storage:\n  driver: file\n  path: " + dbPath + "\n" +
		"schedule:\n  timezone: " + tz + "\n  language: nl\n" +
		"refresh:\n  enabled: true\n  schedule: daily:03:00\n  timezone_check: 0s\n  min_interval: 1ms\n  burst: 5\n" +
		"protocol:\n  path: " + protocolPath + "\n"
}

func TestNewRejectsBadStorage(t *testing.T) {
	_, err := New(writeConfig(t, "storage:\n  driver: sqlite\n"))
	assert.ErrorContains(t, err, "storage.path is required")
}

func TestNewDefaultsWithoutConfig(t *testing.T) {
	a, err := New("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	assert.Equal(t, "memory", a.Config().Storage.Driver)
}

func TestStartImportsAndGenerates(t *testing.T) {
	a, err := New(writeConfig(t, baseConfig(t)))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, a.Start(ctx))
	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		assert.NoError(t, a.Stop(stopCtx))
	})

	tasks, err := a.Scheduling().Tasks(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, tasks)
	assert.NotEmpty(t, tasks[0].Notifications)

	rep, ok, err := a.Scheduling().Report(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, scheduling.ReasonStartup, rep.Reason)
	assert.Len(t, a.Trigger().NextRuns(1), 1)

	res, again, err := a.ImportProtocol(ctx, testProtocol)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Nil(t, again)
}

func TestApplyConfigReconfigures(t *testing.T) {
	a, err := New(writeConfig(t, baseConfig(t)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	prev := a.Config()
	next := *prev
	next.Schedule = config.ScheduleConfig{Timezone: "UTC", CoverageYears: 1}
	next.Refresh.Enabled = false

	a.applyConfig(context.Background(), prev, &next)
	assert.Equal(t, time.UTC, a.Scheduling().Location())
	assert.Empty(t, a.Trigger().NextRuns(1))
	assert.Equal(t, int64(1), a.Trigger().Stats().Requested)
}

func TestApplyConfigZoneChangeKeepsCompletions(t *testing.T) {
	plusThree, err := time.LoadLocation("Etc/GMT-3")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	a, err := New(writeConfig(t, configInZone(t, "Etc/GMT-3")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	ctx := context.Background()
	_, err = a.Scheduling().NoteTimezone(ctx, time.Now())
	require.NoError(t, err)
	_, _, err = a.ImportProtocol(ctx, testProtocol)
	require.NoError(t, err)

	// Pick an ESM task at 09:00 local on a later day, past the first cycle.
	tomorrow := schedule.Midnight(time.Now().In(plusThree)).AddDate(0, 0, 1)
	tasks, err := a.Scheduling().Tasks(ctx)
	require.NoError(t, err)
	var target schedule.Task
	for _, tk := range tasks {
		local := tk.Timestamp.In(plusThree)
		if tk.Name == "ESM" && !local.Before(tomorrow) && local.Hour() == 9 && local.Minute() == 0 {
			target = tk
			break
		}
	}
	require.NotEmpty(t, target.Name)
	_, err = a.Scheduling().RecordCompletion(ctx, schedule.CompletedTaskRecord{Name: "ESM", Timestamp: target.Timestamp})
	require.NoError(t, err)

	prev := a.Config()
	next := *prev
	next.Schedule.Timezone = "UTC"
	a.applyConfig(ctx, prev, &next)
	require.Equal(t, time.UTC, a.Scheduling().Location())

	rep, err := a.Trigger().Run(ctx, scheduling.ReasonConfig)
	require.NoError(t, err)
	assert.True(t, rep.TimezoneShift)
	assert.Equal(t, 1, rep.Completed)

	y, m, d := target.Timestamp.In(plusThree).Date()
	want := time.Date(y, m, d, 9, 0, 0, 0, time.UTC)
	tasks, err = a.Scheduling().Tasks(ctx)
	require.NoError(t, err)
	var completed []schedule.Task
	for _, tk := range tasks {
		if tk.Completed {
			completed = append(completed, tk)
		}
	}
	require.Len(t, completed, 1)
	assert.Equal(t, "ESM", completed[0].Name)
	assert.True(t, completed[0].Timestamp.Equal(want))

	records, err := a.Scheduling().CompletedTasks(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}
