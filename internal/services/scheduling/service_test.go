package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"protosched/internal/eventbus"
	"protosched/internal/protocol"
	"protosched/internal/questionnaire"
	"protosched/internal/schedule"
	"protosched/internal/storage"
	logx "protosched/pkg/logx"
)

var (
	plusOne   = time.FixedZone("Europe/Lisbon+1", 3600)
	plusThree = time.FixedZone("Europe/Moscow+3", 3*3600)
)

type fixture struct {
	ctx   context.Context
	store storage.Store
	q     *questionnaire.Service
	svc   *Service
	bus   eventbus.Bus
	now   time.Time
}

func (f *fixture) options(loc *time.Location) schedule.Options {
	return schedule.Options{
		Location: loc,
		Now:      func() time.Time { return f.now },
	}
}

func daily(name string, hour int64) protocol.Assessment {
	return protocol.Assessment{Name: name, Protocol: protocol.Protocol{
		RepeatProtocol:      &protocol.RepeatRule{Unit: protocol.UnitDay, Amount: 1},
		RepeatQuestionnaire: &protocol.RepeatRule{Unit: protocol.UnitHour, UnitsFromZero: []int64{hour}},
	}}
}

func newFixture(t *testing.T, assessments ...protocol.Assessment) *fixture {
	t.Helper()
	f := &fixture{
		ctx:   context.Background(),
		store: storage.NewMemory(),
		bus:   eventbus.New(),
		now:   time.Date(2024, 1, 11, 12, 0, 0, 0, time.UTC),
	}
	f.q = questionnaire.New(f.store, logx.Nop())
	require.NoError(t, f.q.UpdateAssessments(f.ctx, protocol.TypeAll, assessments))
	f.svc = New(f.store, f.q, Options{Schedule: f.options(plusOne), Bus: f.bus})
	require.NoError(t, f.svc.SetReference(f.ctx, time.Date(2024, 1, 10, 0, 0, 0, 0, plusOne)))
	return f
}

func (f *fixture) tasks(t *testing.T) []schedule.Task {
	t.Helper()
	tasks, err := f.svc.Tasks(f.ctx)
	require.NoError(t, err)
	return tasks
}

func TestGeneratePersists(t *testing.T) {
	f := newFixture(t, daily("ESM", 9))
	events, unsub := f.bus.Subscribe(4, eventbus.TypeScheduleGenerated)
	defer unsub()

	rep, err := f.svc.Generate(f.ctx, ReasonManual)
	require.NoError(t, err)
	assert.NotEmpty(t, rep.Version)
	assert.Equal(t, ReasonManual, rep.Reason)
	assert.False(t, rep.TimezoneShift)

	tasks := f.tasks(t)
	assert.Len(t, tasks, rep.Tasks)
	assert.True(t, tasks[0].Timestamp.Equal(time.Date(2024, 1, 10, 9, 0, 0, 0, plusOne)))

	v, _, err := storage.Get[string](f.ctx, f.store, storage.KeyScheduleVersion)
	require.NoError(t, err)
	assert.Equal(t, rep.Version, v)

	stored, ok, err := f.svc.Report(f.ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, rep.Tasks, stored.Tasks)

	select {
	case e := <-events:
		assert.Equal(t, eventbus.TypeScheduleGenerated, e.Type)
	default:
		t.Fatal("expected schedule.generated event")
	}

	rep2, err := f.svc.Generate(f.ctx, ReasonCron)
	require.NoError(t, err)
	assert.Greater(t, rep2.Version, rep.Version, "ulids sort by generation")
}

func TestReferenceInitializedOnce(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Remove(f.ctx, storage.KeyReferenceDate))

	ref, err := f.svc.Reference(f.ctx)
	require.NoError(t, err)
	assert.True(t, ref.Equal(f.now))

	f.now = f.now.Add(48 * time.Hour)
	again, err := f.svc.Reference(f.ctx)
	require.NoError(t, err)
	assert.True(t, again.Equal(ref))
}

func TestReferenceFromEnrolment(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Remove(f.ctx, storage.KeyReferenceDate))
	enrol := time.Date(2023, 12, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, storage.Set(f.ctx, f.store, storage.KeyEnrolmentDate, enrol))

	ref, err := f.svc.Reference(f.ctx)
	require.NoError(t, err)
	assert.True(t, ref.Equal(enrol))
}

func TestGenerateFailureKeepsPreviousSchedule(t *testing.T) {
	f := newFixture(t, daily("ESM", 9))
	_, err := f.svc.Generate(f.ctx, ReasonManual)
	require.NoError(t, err)
	before := f.tasks(t)

	failed, unsub := f.bus.Subscribe(1, eventbus.TypeScheduleFailed)
	defer unsub()

	broken := protocol.Assessment{Name: "BROKEN", Protocol: protocol.Protocol{
		RepeatProtocol: &protocol.RepeatRule{Unit: protocol.UnitDay, Amount: 1},
	}}
	require.NoError(t, f.q.UpdateAssessments(f.ctx, protocol.TypeScheduled, []protocol.Assessment{broken}))

	_, err = f.svc.Generate(f.ctx, ReasonManual)
	assert.ErrorIs(t, err, schedule.ErrNoSchedule)
	assert.Equal(t, before, f.tasks(t))
	assert.Len(t, failed, 1)
}

func TestRecordCompletionSurvivesRegeneration(t *testing.T) {
	f := newFixture(t, daily("ESM", 9))
	_, err := f.svc.Generate(f.ctx, ReasonManual)
	require.NoError(t, err)

	due := time.Date(2024, 1, 11, 9, 0, 0, 0, plusOne)
	yes := true
	task, err := f.svc.RecordCompletion(f.ctx, schedule.CompletedTaskRecord{Name: "ESM", Timestamp: due, ReportedCompletion: &yes})
	require.NoError(t, err)
	assert.True(t, task.Completed)
	require.NotNil(t, task.TimeCompleted)
	assert.True(t, task.TimeCompleted.Equal(f.now))

	_, err = f.svc.RecordCompletion(f.ctx, schedule.CompletedTaskRecord{Name: "ESM", Timestamp: due})
	require.NoError(t, err)
	records, err := f.svc.CompletedTasks(f.ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	rep, err := f.svc.Generate(f.ctx, ReasonManual)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Completed)
	for _, tk := range f.tasks(t) {
		assert.Equal(t, tk.Timestamp.Equal(due), tk.Completed)
	}

	_, err = f.svc.RecordCompletion(f.ctx, schedule.CompletedTaskRecord{Name: "ESM", Timestamp: due.Add(time.Minute)})
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestGenerateClinical(t *testing.T) {
	visit := protocol.Assessment{Name: "VISIT", Type: protocol.TypeOnDemand, Protocol: protocol.Protocol{
		ClinicalProtocol: &protocol.ClinicalProtocol{RepeatAfterClinicVisit: &protocol.RepeatRule{
			Unit: protocol.UnitDay, UnitsFromZero: []int64{0, 7},
		}},
	}}
	f := newFixture(t, visit)

	first, err := f.svc.GenerateClinical(f.ctx, "VISIT")
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, 0, first[0].Index)
	assert.True(t, first[0].IsClinical)
	assert.True(t, first[0].Timestamp.Equal(f.now))

	second, err := f.svc.GenerateClinical(f.ctx, "VISIT")
	require.NoError(t, err)
	assert.Equal(t, 2, second[0].Index)
	assert.Len(t, f.tasks(t), 4)

	_, err = f.svc.GenerateClinical(f.ctx, "NOPE")
	assert.ErrorIs(t, err, questionnaire.ErrNotFound)
}

func TestNextTask(t *testing.T) {
	f := newFixture(t, daily("ESM", 9))
	_, err := f.svc.NextTask(f.ctx, f.now)
	assert.ErrorIs(t, err, ErrNoTask)

	_, err = f.svc.Generate(f.ctx, ReasonManual)
	require.NoError(t, err)

	today := time.Date(2024, 1, 11, 9, 0, 0, 0, plusOne)
	next, err := f.svc.NextTask(f.ctx, f.now)
	require.NoError(t, err)
	assert.True(t, next.Timestamp.Equal(today), "window still open")

	_, err = f.svc.RecordCompletion(f.ctx, schedule.CompletedTaskRecord{Name: "ESM", Timestamp: today})
	require.NoError(t, err)
	next, err = f.svc.NextTask(f.ctx, f.now)
	require.NoError(t, err)
	assert.True(t, next.Timestamp.Equal(today.AddDate(0, 0, 1)))
}

func TestTasksForDay(t *testing.T) {
	hidden := daily("HIDDEN", 10)
	hidden.ShowInCalendar = new(bool)
	f := newFixture(t, daily("ESM", 9), daily("EVENING", 20), hidden)
	_, err := f.svc.Generate(f.ctx, ReasonManual)
	require.NoError(t, err)

	got, err := f.svc.TasksForDay(f.ctx, time.Date(2024, 1, 12, 23, 30, 0, 0, plusOne))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "ESM", got[0].Name)
	assert.Equal(t, "EVENING", got[1].Name)
}

func TestNoteTimezone(t *testing.T) {
	f := newFixture(t)

	change, err := f.svc.NoteTimezone(f.ctx, f.now)
	require.NoError(t, err)
	assert.Nil(t, change, "first observation only records")

	change, err = f.svc.NoteTimezone(f.ctx, f.now)
	require.NoError(t, err)
	assert.Nil(t, change)

	f.svc.Reconfigure(f.options(plusThree))
	change, err = f.svc.NoteTimezone(f.ctx, f.now)
	require.NoError(t, err)
	require.NotNil(t, change)
	assert.True(t, change.ZoneMoved)
	assert.Equal(t, 60, change.FromOffset)
	assert.Equal(t, 180, change.ToOffset)

	prev, ok, err := storage.Get[int](f.ctx, f.store, storage.KeyUTCOffsetPrev)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, -60, prev)

	// A second move before regeneration keeps the first pending offset.
	f.svc.Reconfigure(f.options(time.UTC))
	_, err = f.svc.NoteTimezone(f.ctx, f.now)
	require.NoError(t, err)
	prev, _, err = storage.Get[int](f.ctx, f.store, storage.KeyUTCOffsetPrev)
	require.NoError(t, err)
	assert.Equal(t, -60, prev)
}

func TestCompletionMatchedAfterZoneMove(t *testing.T) {
	f := newFixture(t, daily("ESM", 9))
	_, err := f.svc.NoteTimezone(f.ctx, f.now)
	require.NoError(t, err)
	_, err = f.svc.Generate(f.ctx, ReasonStartup)
	require.NoError(t, err)

	done := time.Date(2024, 1, 11, 9, 0, 0, 0, plusOne)
	_, err = f.svc.RecordCompletion(f.ctx, schedule.CompletedTaskRecord{Name: "ESM", Timestamp: done})
	require.NoError(t, err)

	f.svc.Reconfigure(f.options(plusThree))
	change, err := f.svc.NoteTimezone(f.ctx, f.now)
	require.NoError(t, err)
	require.NotNil(t, change)

	rep, err := f.svc.Generate(f.ctx, ReasonTimezone)
	require.NoError(t, err)
	assert.True(t, rep.TimezoneShift)
	assert.Equal(t, 1, rep.Completed)

	var completed []schedule.Task
	for _, tk := range f.tasks(t) {
		if tk.Completed {
			completed = append(completed, tk)
		}
	}
	require.Len(t, completed, 1)
	assert.True(t, completed[0].Timestamp.Equal(time.Date(2024, 1, 11, 9, 0, 0, 0, plusThree)))

	_, pending, err := storage.Get[int](f.ctx, f.store, storage.KeyUTCOffsetPrev)
	require.NoError(t, err)
	assert.False(t, pending)
}
