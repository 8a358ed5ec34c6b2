package trigger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"protosched/internal/runtime/supervisor"
	"protosched/internal/services/scheduling"
	logx "protosched/pkg/logx"
)

// Target is the scheduling surface the trigger drives.
type Target interface {
	Generate(ctx context.Context, reason string) (*scheduling.Report, error)
	NoteTimezone(ctx context.Context, now time.Time) (*scheduling.TimezoneChange, error)
}

type Config struct {
	Enabled  bool
	Schedule string
	Location *time.Location
	// TimezoneCheck <= 0 disables the timezone check.
	TimezoneCheck time.Duration
	MinInterval   time.Duration
	Burst         int
}

// Stats counts what happened to requests since the service was created.
type Stats struct {
	Requested int64 `json:"requested"`
	Coalesced int64 `json:"coalesced"`
	Runs      int64 `json:"runs"`
	Failures  int64 `json:"failures"`
}

type Service struct {
	target Target
	log    logx.Logger
	parser cron.Parser
	now    func() time.Time

	mu      sync.Mutex
	cfg     Config
	spec    ParsedSpec
	started bool
	c       *cron.Cron
	entry   cron.EntryID
	limiter *rate.Limiter

	reqCh chan string
	runMu sync.Mutex

	requested, coalesced, runs, failures atomic.Int64
}

func New(cfg Config, target Target, log logx.Logger) (*Service, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		target: target,
		log:    log,
		// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		now:    time.Now,
		reqCh:  make(chan string, 1),
	}
	if err := s.setConfig(cfg); err != nil {
		return nil, err
	}
	return s, nil
}

func normalize(cfg Config) Config {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = 10 * time.Second
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	return cfg
}

func (s *Service) setConfig(cfg Config) error {
	cfg = normalize(cfg)
	spec, err := ParseSchedule(cfg.Schedule)
	if err != nil {
		return err
	}
	if spec.Kind == SpecCron {
		if _, err := s.parser.Parse(spec.Cron); err != nil {
			return fmt.Errorf("refresh schedule %q: %w", spec.Cron, err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	s.spec = spec
	lim := rate.Every(cfg.MinInterval)
	if s.limiter == nil {
		s.limiter = rate.NewLimiter(lim, cfg.Burst)
	} else {
		s.limiter.SetLimit(lim)
		s.limiter.SetBurst(cfg.Burst)
	}
	return nil
}

// Start launches the cron, the request worker and the timezone check under sup.
func (s *Service) Start(sup *supervisor.Supervisor) {
	s.mu.Lock()
	s.started = true
	s.startCronLocked()
	s.mu.Unlock()

	sup.GoRestart("trigger.worker", s.work)
	sup.GoRestart("trigger.timezone", s.watchTimezone)
}

func (s *Service) startCronLocked() {
	if !s.started || s.c != nil || !s.cfg.Enabled {
		return
	}
	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(s.cfg.Location))
	job := cron.FuncJob(func() { s.Request(scheduling.ReasonCron) })

	switch s.spec.Kind {
	case SpecInterval:
		sched, jitter := intervalSchedule(s.spec.Every, s.now(), s.spec.Source)
		s.entry = s.c.Schedule(sched, job)
		s.log.Debug("interval refresh registered", logx.Duration("every", s.spec.Every), logx.Duration("startup_spread", jitter))
	default:
		sched, err := s.parser.Parse(s.spec.Cron)
		if err != nil {
			// setConfig already validated the expression.
			s.log.Error("invalid refresh schedule", logx.String("cron", s.spec.Cron), logx.Err(err))
			s.c = nil
			return
		}
		s.entry = s.c.Schedule(sched, job)
	}
	s.c.Start()
	s.log.Info("refresh schedule started",
		logx.String("kind", s.spec.Kind.String()),
		logx.String("schedule", s.cfg.Schedule),
		logx.String("tz", s.cfg.Location.String()),
	)
}

func (s *Service) stopCron(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.entry = 0
	s.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
}

// Apply swaps in a new configuration and re-registers the refresh schedule.
// An invalid configuration leaves the running one untouched.
func (s *Service) Apply(ctx context.Context, cfg Config) error {
	if err := s.setConfig(cfg); err != nil {
		return err
	}
	s.mu.Lock()
	running := s.c != nil
	s.mu.Unlock()
	if running {
		s.stopCron(ctx)
	}
	s.mu.Lock()
	s.startCronLocked()
	s.mu.Unlock()
	return nil
}

// Stop stops the cron. The worker and timezone loops end with the
// supervisor context.
func (s *Service) Stop(ctx context.Context) {
	start := time.Now()
	s.mu.Lock()
	s.started = false
	s.mu.Unlock()
	s.stopCron(ctx)
	s.log.Info("trigger stopped", logx.Duration("took", time.Since(start)))
}

// Request queues a regeneration. It reports false when another request is
// already pending; that pending run will cover this one.
func (s *Service) Request(reason string) bool {
	s.requested.Add(1)
	select {
	case s.reqCh <- reason:
		return true
	default:
		s.coalesced.Add(1)
		s.log.Debug("regeneration already pending", logx.String("reason", reason))
		return false
	}
}

func (s *Service) work(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case reason := <-s.reqCh:
			if _, err := s.Run(ctx, reason); err != nil && ctx.Err() == nil {
				s.log.Warn("regeneration failed", logx.String("reason", reason), logx.Err(err))
			}
		}
	}
}

// Run regenerates now, waiting for the rate limiter first. Concurrent calls
// are serialized.
func (s *Service) Run(ctx context.Context, reason string) (*scheduling.Report, error) {
	s.mu.Lock()
	lim := s.limiter
	s.mu.Unlock()
	if err := lim.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	s.runMu.Lock()
	defer s.runMu.Unlock()
	s.runs.Add(1)
	rep, err := s.target.Generate(ctx, reason)
	if err != nil {
		s.failures.Add(1)
		return nil, err
	}
	return rep, nil
}

// CheckTimezone compares the current offset with the stored one and
// regenerates when it changed.
func (s *Service) CheckTimezone(ctx context.Context) (*scheduling.TimezoneChange, error) {
	s.mu.Lock()
	loc := s.cfg.Location
	s.mu.Unlock()

	change, err := s.target.NoteTimezone(ctx, s.now().In(loc))
	if err != nil || change == nil {
		return change, err
	}
	s.log.Debug("regenerating after timezone change", logx.String("to", change.To))
	s.Request(scheduling.ReasonTimezone)
	return change, nil
}

func (s *Service) timezoneInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.TimezoneCheck
}

func (s *Service) watchTimezone(ctx context.Context) error {
	const idle = time.Minute
	for {
		every := s.timezoneInterval()
		wait := every
		if wait <= 0 {
			wait = idle
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
		if every <= 0 {
			continue
		}
		if _, err := s.CheckTimezone(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Warn("timezone check failed", logx.Err(err))
		}
	}
}

// NextRuns previews the next n refresh activations. It is empty when the
// refresh schedule is disabled or not started.
func (s *Service) NextRuns(n int) []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c == nil || n <= 0 {
		return nil
	}
	e := s.c.Entry(s.entry)
	if e.Schedule == nil {
		return nil
	}
	out := make([]time.Time, 0, n)
	t := s.now().In(s.cfg.Location)
	for range n {
		t = e.Schedule.Next(t)
		if t.IsZero() {
			break
		}
		out = append(out, t)
	}
	return out
}

func (s *Service) Stats() Stats {
	return Stats{
		Requested: s.requested.Load(),
		Coalesced: s.coalesced.Load(),
		Runs:      s.runs.Load(),
		Failures:  s.failures.Load(),
	}
}
