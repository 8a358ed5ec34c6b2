package schedule

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"protosched/internal/protocol"
	logx "protosched/pkg/logx"
)

// AssessmentSource supplies the stored assessment definitions.
type AssessmentSource interface {
	GetAssessments(ctx context.Context, kind protocol.AssessmentType) ([]protocol.Assessment, error)
}

// CompletionSource supplies previously recorded completions. It may return none.
type CompletionSource interface {
	CompletedTasks(ctx context.Context) ([]CompletedTaskRecord, error)
}

type Options struct {
	// Location is the device timezone. Defaults to time.Local.
	Location *time.Location
	// Now defaults to time.Now.
	Now func() time.Time

	CoverageYears           int
	DefaultCompletionWindow time.Duration

	Text          TextResolver
	Notifications NotificationBuilder

	Log logx.Logger
}

// Generator is the schedule orchestrator.
type Generator struct {
	assessments AssessmentSource
	completions CompletionSource

	expander Expander
	builder  Builder

	loc *time.Location
	now func() time.Time
	log logx.Logger
}

func New(assessments AssessmentSource, completions CompletionSource, opt Options) *Generator {
	if opt.Location == nil {
		opt.Location = time.Local
	}
	if opt.Now == nil {
		opt.Now = time.Now
	}
	if opt.Log.IsZero() {
		opt.Log = logx.Nop()
	}
	return &Generator{
		assessments: assessments,
		completions: completions,
		expander: Expander{
			CoverageYears:           opt.CoverageYears,
			DefaultCompletionWindow: opt.DefaultCompletionWindow,
		},
		builder: Builder{Text: opt.Text, Notifications: opt.Notifications},
		loc:     opt.Location,
		now:     opt.Now,
		log:     opt.Log,
	}
}

// Location is the timezone schedules are generated in.
func (g *Generator) Location() *time.Location { return g.loc }

// Now returns the generator's current time in its location.
func (g *Generator) Now() time.Time { return g.now().In(g.loc) }

// Request selects one of the two entry modes. Assessment and IndexOffset are
// only read for Clinical runs.
type Request struct {
	Kind           Kind
	Reference      time.Time
	PrevOffsetWest *int // UTC_OFFSET_PREV, minutes west of UTC

	Assessment  *protocol.Assessment
	IndexOffset int
}

// Run dispatches a request to Generate or GenerateClinical.
func (g *Generator) Run(ctx context.Context, req Request) (*Result, error) {
	switch req.Kind {
	case NonClinical:
		return g.Generate(ctx, req.Reference, req.PrevOffsetWest)
	case Clinical:
		if req.Assessment == nil {
			return nil, fmt.Errorf("clinical run: assessment required")
		}
		return g.GenerateClinical(*req.Assessment, req.IndexOffset, req.Reference)
	default:
		return nil, fmt.Errorf("unknown generation kind %d", req.Kind)
	}
}

// Generate builds the regular schedule. Assessments and completion records
// are fetched concurrently. Any failure is logged and reported as
// ErrNoSchedule with a nil result; callers keep what they had.
func (g *Generator) Generate(ctx context.Context, ref time.Time, prevOffsetWest *int) (*Result, error) {
	var (
		assessments []protocol.Assessment
		completed   []CompletedTaskRecord
	)
	eg, ectx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		assessments, err = g.assessments.GetAssessments(ectx, protocol.TypeScheduled)
		if err != nil {
			return fmt.Errorf("fetch assessments: %w", err)
		}
		return nil
	})
	if g.completions != nil {
		eg.Go(func() error {
			var err error
			completed, err = g.completions.CompletedTasks(ectx)
			if err != nil {
				return fmt.Errorf("fetch completed tasks: %w", err)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		g.log.Error("failed to schedule assessments", logx.Err(err))
		return nil, fmt.Errorf("%w: %w", ErrNoSchedule, err)
	}

	res, err := g.BuildSchedule(assessments, completed, ref, prevOffsetWest)
	if err != nil {
		g.log.Error("failed to schedule assessments", logx.Err(err))
		return nil, fmt.Errorf("%w: %w", ErrNoSchedule, err)
	}
	return res, nil
}

// BuildSchedule is the synchronous part of Generate.
func (g *Generator) BuildSchedule(assessments []protocol.Assessment, completed []CompletedTaskRecord, ref time.Time, prevOffsetWest *int) (*Result, error) {
	now := g.Now()
	today := Midnight(now)
	ref = ref.In(g.loc)

	schedule := make([]Task, 0)
	for _, a := range assessments {
		tasks, err := g.buildForAssessment(a, len(schedule), ref, NonClinical, today)
		if err != nil {
			return nil, err
		}
		schedule = append(schedule, tasks...)
	}

	res := Reconcile(schedule, completed, prevOffsetWest, now)
	SortTasks(res.Schedule)

	g.log.Info("updated task schedule",
		logx.Int("assessments", len(assessments)),
		logx.Int("tasks", len(res.Schedule)),
		logx.Int("completed", len(res.Completed)),
		logx.Bool("tz_shift", prevOffsetWest != nil),
	)
	return &res, nil
}

// GenerateClinical builds the tasks for one on-demand assessment. Nothing is
// reconciled: such tasks cannot have been completed yet.
func (g *Generator) GenerateClinical(a protocol.Assessment, indexOffset int, ref time.Time) (*Result, error) {
	today := Midnight(g.Now())
	tasks, err := g.buildForAssessment(a, indexOffset, ref.In(g.loc), Clinical, today)
	if err != nil {
		return nil, err
	}
	g.log.Debug("built clinical tasks", logx.String("assessment", a.Name), logx.Int("tasks", len(tasks)))
	return &Result{Schedule: tasks, Completed: make([]Task, 0)}, nil
}

func (g *Generator) buildForAssessment(a protocol.Assessment, indexOffset int, ref time.Time, kind Kind, today time.Time) ([]Task, error) {
	occ, err := g.expander.Expand(a, ref, indexOffset, kind, today)
	if err != nil {
		return nil, err
	}
	window := g.expander.Window(a)
	tasks := make([]Task, 0, len(occ))
	for _, o := range occ {
		tasks = append(tasks, g.builder.Build(o.Index, a, o.Timestamp, window))
	}
	return tasks, nil
}
