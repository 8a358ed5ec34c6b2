package scheduling

import (
	"context"
	"fmt"
	"math/rand"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"protosched/internal/eventbus"
	"protosched/internal/protocol"
	"protosched/internal/questionnaire"
	"protosched/internal/schedule"
	"protosched/internal/storage"
	logx "protosched/pkg/logx"
)

type Options struct {
	Schedule schedule.Options
	Bus      eventbus.Bus
	Log      logx.Logger
}

type Service struct {
	store          storage.Store
	questionnaires *questionnaire.Service
	bus            eventbus.Bus
	log            logx.Logger

	gen atomic.Pointer[schedule.Generator]

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func New(store storage.Store, q *questionnaire.Service, opt Options) *Service {
	if opt.Log.IsZero() {
		opt.Log = logx.Nop()
	}
	if opt.Bus == nil {
		opt.Bus = eventbus.New()
	}
	s := &Service{
		store:          store,
		questionnaires: q,
		bus:            opt.Bus,
		log:            opt.Log,
		entropy:        ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
	s.Reconfigure(opt.Schedule)
	return s
}

// Reconfigure swaps the generator, e.g. after the timezone or coverage
// settings changed. The next generation uses the new options.
func (s *Service) Reconfigure(opt schedule.Options) {
	if opt.Log.IsZero() {
		opt.Log = s.log.With(logx.String("comp", "schedule"))
	}
	s.gen.Store(schedule.New(s.questionnaires, s, opt))
}

func (s *Service) generator() *schedule.Generator { return s.gen.Load() }

// Location is the timezone schedules are generated in.
func (s *Service) Location() *time.Location { return s.generator().Location() }

// Now is the configured clock in the schedule location.
func (s *Service) Now() time.Time { return s.generator().Now() }

// CompletedTasks implements schedule.CompletionSource.
func (s *Service) CompletedTasks(ctx context.Context) ([]schedule.CompletedTaskRecord, error) {
	return storage.GetOr(ctx, s.store, storage.KeyScheduleTasksCompleted, []schedule.CompletedTaskRecord{})
}

// Reference returns the stored reference date. On first use it is
// initialized from ENROLMENTDATE, or the current time, and persisted.
func (s *Service) Reference(ctx context.Context) (time.Time, error) {
	ref, ok, err := storage.Get[time.Time](ctx, s.store, storage.KeyReferenceDate)
	if err != nil {
		return time.Time{}, err
	}
	if ok {
		return ref.In(s.Location()), nil
	}
	ref, ok, err = storage.Get[time.Time](ctx, s.store, storage.KeyEnrolmentDate)
	if err != nil {
		return time.Time{}, err
	}
	if !ok {
		ref = s.Now()
	}
	if err := storage.Set(ctx, s.store, storage.KeyReferenceDate, ref); err != nil {
		return time.Time{}, err
	}
	return ref.In(s.Location()), nil
}

// SetReference overrides the reference date, e.g. at enrolment.
func (s *Service) SetReference(ctx context.Context, ref time.Time) error {
	return storage.Set(ctx, s.store, storage.KeyReferenceDate, ref)
}

// Generate regenerates the regular schedule and persists it. On failure
// the previously stored schedule is left untouched.
func (s *Service) Generate(ctx context.Context, reason string) (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	gen := s.generator()
	start := time.Now()

	ref, err := s.Reference(ctx)
	if err != nil {
		return nil, fmt.Errorf("reference date: %w", err)
	}
	offsetPrev, _, err := storage.Get[*int](ctx, s.store, storage.KeyUTCOffsetPrev)
	if err != nil {
		return nil, fmt.Errorf("previous utc offset: %w", err)
	}

	res, err := gen.Generate(ctx, ref, offsetPrev)
	if err != nil {
		s.bus.Publish(eventbus.Event{Type: eventbus.TypeScheduleFailed, Data: err.Error()})
		return nil, err
	}

	completed := make([]schedule.CompletedTaskRecord, 0, len(res.Completed))
	for _, t := range res.Completed {
		completed = append(completed, schedule.RecordOf(t))
	}

	now := gen.Now()
	rep := Report{
		Version:       ulid.MustNew(ulid.Timestamp(now), s.entropy).String(),
		Reason:        reason,
		GeneratedAt:   now,
		Reference:     ref,
		TookMS:        time.Since(start).Milliseconds(),
		Tasks:         len(res.Schedule),
		Completed:     len(res.Completed),
		TimezoneShift: offsetPrev != nil,
	}

	writes := []struct {
		key storage.Key
		v   any
	}{
		{storage.KeyScheduleTasks, res.Schedule},
		{storage.KeyScheduleTasksCompleted, completed},
		{storage.KeyScheduleVersion, rep.Version},
		{storage.KeyScheduleReport, rep},
	}
	for _, w := range writes {
		if err := storage.Set(ctx, s.store, w.key, w.v); err != nil {
			return nil, fmt.Errorf("store %s: %w", w.key, err)
		}
	}
	if offsetPrev != nil {
		if err := s.store.Remove(ctx, storage.KeyUTCOffsetPrev); err != nil {
			return nil, err
		}
	}

	s.log.Info("schedule stored",
		logx.String("version", rep.Version),
		logx.String("reason", reason),
		logx.Int("tasks", rep.Tasks),
		logx.Int("completed", rep.Completed),
		logx.Int64("took_ms", rep.TookMS),
	)
	s.bus.Publish(eventbus.Event{Type: eventbus.TypeScheduleGenerated, Time: now, Data: rep})
	return &rep, nil
}

// GenerateClinical appends the tasks of one on-demand assessment, anchored
// at the current time, to the on-demand schedule.
func (s *Service) GenerateClinical(ctx context.Context, name string) ([]schedule.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.questionnaires.GetAssessment(ctx, protocol.TypeOnDemand, name)
	if err != nil {
		return nil, err
	}
	existing, err := storage.GetOr(ctx, s.store, storage.KeyScheduleTasksOnDemand, []schedule.Task{})
	if err != nil {
		return nil, err
	}

	gen := s.generator()
	res, err := gen.GenerateClinical(a, len(existing), gen.Now())
	if err != nil {
		return nil, err
	}
	if err := storage.Set(ctx, s.store, storage.KeyScheduleTasksOnDemand, append(existing, res.Schedule...)); err != nil {
		return nil, err
	}
	s.log.Info("clinical tasks added", logx.String("assessment", name), logx.Int("tasks", len(res.Schedule)))
	s.bus.Publish(eventbus.Event{Type: eventbus.TypeClinicalGenerated, Data: name})
	return res.Schedule, nil
}

// Tasks returns the stored regular and on-demand schedules merged in
// timestamp order.
func (s *Service) Tasks(ctx context.Context) ([]schedule.Task, error) {
	regular, err := storage.GetOr(ctx, s.store, storage.KeyScheduleTasks, []schedule.Task{})
	if err != nil {
		return nil, err
	}
	onDemand, err := storage.GetOr(ctx, s.store, storage.KeyScheduleTasksOnDemand, []schedule.Task{})
	if err != nil {
		return nil, err
	}
	out := append(slices.Clone(regular), onDemand...)
	schedule.SortTasks(out)
	return out, nil
}

// Report returns the last stored generation report.
func (s *Service) Report(ctx context.Context) (Report, bool, error) {
	return storage.Get[Report](ctx, s.store, storage.KeyScheduleReport)
}

// RecordCompletion marks the stored task (name, timestamp) completed and
// appends a completion record for future reconciliation. Recording the same
// task twice is a no-op.
func (s *Service) RecordCompletion(ctx context.Context, rec schedule.CompletedTaskRecord) (schedule.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.TimeCompleted == nil {
		now := s.Now()
		rec.TimeCompleted = &now
	}

	var (
		found schedule.Task
		hit   bool
	)
	for _, key := range []storage.Key{storage.KeyScheduleTasks, storage.KeyScheduleTasksOnDemand} {
		tasks, err := storage.GetOr(ctx, s.store, key, []schedule.Task{})
		if err != nil {
			return schedule.Task{}, err
		}
		i := slices.IndexFunc(tasks, func(t schedule.Task) bool {
			return t.Name == rec.Name && t.Timestamp.Equal(rec.Timestamp)
		})
		if i < 0 {
			continue
		}
		if tasks[i].Completed {
			return tasks[i], nil
		}
		tasks[i].Completed = true
		tasks[i].ReportedCompletion = rec.ReportedCompletion
		tasks[i].TimeCompleted = rec.TimeCompleted
		if err := storage.Set(ctx, s.store, key, tasks); err != nil {
			return schedule.Task{}, err
		}
		found, hit = tasks[i], true
		break
	}
	if !hit {
		return schedule.Task{}, fmt.Errorf("%w: %s at %s", ErrTaskNotFound, rec.Name, rec.Timestamp.Format(time.RFC3339))
	}

	records, err := s.CompletedTasks(ctx)
	if err != nil {
		return schedule.Task{}, err
	}
	dup := slices.ContainsFunc(records, func(r schedule.CompletedTaskRecord) bool {
		return r.Name == rec.Name && r.Timestamp.Equal(rec.Timestamp)
	})
	if !dup {
		if err := storage.Set(ctx, s.store, storage.KeyScheduleTasksCompleted, append(records, rec)); err != nil {
			return schedule.Task{}, err
		}
	}

	s.log.Info("task completed", logx.String("name", rec.Name), logx.Time("timestamp", rec.Timestamp))
	s.bus.Publish(eventbus.Event{Type: eventbus.TypeTaskCompleted, Data: schedule.RecordOf(found)})
	return found, nil
}

// NextTask returns the first incomplete task whose completion window is open
// at now, or else the first incomplete task due after now.
func (s *Service) NextTask(ctx context.Context, now time.Time) (schedule.Task, error) {
	tasks, err := s.Tasks(ctx)
	if err != nil {
		return schedule.Task{}, err
	}
	var upcoming *schedule.Task
	for i := range tasks {
		t := &tasks[i]
		if t.Completed {
			continue
		}
		if !now.Before(t.Timestamp) && now.Before(t.WindowEnd()) {
			return *t, nil
		}
		if upcoming == nil && t.Timestamp.After(now) {
			upcoming = t
		}
	}
	if upcoming == nil {
		return schedule.Task{}, ErrNoTask
	}
	return *upcoming, nil
}

// TasksForDay lists calendar-visible tasks falling on day's local date.
func (s *Service) TasksForDay(ctx context.Context, day time.Time) ([]schedule.Task, error) {
	tasks, err := s.Tasks(ctx)
	if err != nil {
		return nil, err
	}
	loc := s.Location()
	want := schedule.Midnight(day.In(loc))
	out := make([]schedule.Task, 0)
	for _, t := range tasks {
		if t.ShowInCalendar && schedule.Midnight(t.Timestamp.In(loc)).Equal(want) {
			out = append(out, t)
		}
	}
	return out, nil
}
