// Package app wires configuration, storage, the questionnaire store, the
// scheduling service and the refresh trigger into one process.
package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"protosched/internal/config"
	"protosched/internal/eventbus"
	"protosched/internal/questionnaire"
	"protosched/internal/runtime/supervisor"
	"protosched/internal/services/scheduling"
	"protosched/internal/services/status"
	"protosched/internal/storage"
	"protosched/internal/trigger"
	logx "protosched/pkg/logx"
)

type App struct {
	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	questionnaires *questionnaire.Service
	sched          *scheduling.Service
	trig           *trigger.Service
}

// New loads the config at cfgPath (defaults when empty) and builds every
// service. Nothing runs until Start.
func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	return build(cfgm, cfg)
}

func build(cfgm *config.Manager, cfg *config.Config) (*App, error) {
	logSvc, log := logx.New(mapLogConfig(cfg))
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if errors.Is(err, storage.ErrDisabled) {
		log.Warn("storage disabled; state lives in memory only")
		store, err = storage.NewMemory(), nil
	}
	if err != nil {
		return nil, err
	}

	schedOpts, err := mapScheduleOptions(cfg, log.With(logx.String("comp", "schedule")))
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	tc, err := mapTriggerConfig(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	bus := eventbus.New()
	q := questionnaire.New(store, log.With(logx.String("comp", "questionnaire")))
	sched := scheduling.New(store, q, scheduling.Options{
		Schedule: schedOpts,
		Bus:      bus,
		Log:      log.With(logx.String("comp", "scheduling")),
	})
	trig, err := trigger.New(tc, sched, log.With(logx.String("comp", "trigger")))
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &App{
		cfgm:           cfgm,
		log:            log,
		logs:           logSvc,
		bus:            bus,
		store:          store,
		questionnaires: q,
		sched:          sched,
		trig:           trig,
	}, nil
}

func (a *App) Config() *config.Config                 { return a.cfgm.Get() }
func (a *App) Log() logx.Logger                       { return a.log }
func (a *App) Bus() eventbus.Bus                      { return a.bus }
func (a *App) Questionnaires() *questionnaire.Service { return a.questionnaires }
func (a *App) Scheduling() *scheduling.Service        { return a.sched }
func (a *App) Trigger() *trigger.Service              { return a.trig }
func (a *App) Supervisor() *supervisor.Supervisor     { return a.sup }

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// ImportProtocol stores the protocol at path and regenerates when its
// content changed.
func (a *App) ImportProtocol(ctx context.Context, path string) (questionnaire.ImportResult, *scheduling.Report, error) {
	res, err := a.questionnaires.Import(ctx, path)
	if err != nil {
		return res, nil, err
	}
	if !res.Changed {
		return res, nil, nil
	}
	a.bus.Publish(eventbus.Event{Type: eventbus.TypeProtocolImported, Time: a.sched.Now(), Data: res})
	rep, err := a.trig.Run(ctx, scheduling.ReasonProtocol)
	return res, rep, err
}

// Start imports the configured protocol, generates once and launches the
// long-running loops under one supervisor.
func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if _, err := mapStorageConfig(cfg); err != nil {
			return err
		}
		if _, err := mapScheduleOptions(cfg, logx.Nop()); err != nil {
			return err
		}
		_, err := mapTriggerConfig(cfg)
		return err
	})

	cfg := a.cfgm.Get()
	if path := strings.TrimSpace(cfg.Protocol.Path); path != "" {
		if _, err := a.questionnaires.Import(ctx, path); err != nil {
			return fmt.Errorf("import protocol: %w", err)
		}
	}
	if _, err := a.sched.NoteTimezone(ctx, time.Now()); err != nil {
		return err
	}
	if _, err := a.trig.Run(ctx, scheduling.ReasonStartup); err != nil {
		// A daemon without a schedule can still pick one up from a later
		// protocol import.
		a.log.Warn("startup generation failed", logx.Err(err))
	}

	a.trig.Start(a.sup)

	if a.cfgm.Path() != "" {
		a.sup.GoRestart("config.watch", a.cfgm.Watch)
	}
	if cfg.Protocol.Watch && strings.TrimSpace(cfg.Protocol.Path) != "" {
		a.watchProtocol(strings.TrimSpace(cfg.Protocol.Path))
	}
	if cfg.Debug.Enabled {
		srv := status.New(status.Config{Addr: cfg.Debug.Address(), Token: cfg.Debug.Token},
			a.sched, a.sup.Snapshot, a.log.With(logx.String("comp", "status")))
		a.sup.GoRestart("status.http", srv.Run)
	}
	a.sup.Go("config.reload", a.reloadLoop)
	a.sup.Go("eventbus.log", a.logEvents)

	a.log.Info("app started", logx.String("tz", a.sched.Location().String()))
	return nil
}

func (a *App) watchProtocol(path string) {
	w := &config.FileWatcher{
		Path: path,
		Log:  a.log.With(logx.String("comp", "protocol.watch")),
		OnChange: func(ctx context.Context) {
			res, rep, err := a.ImportProtocol(ctx, path)
			switch {
			case err != nil:
				a.log.Warn("protocol reload failed", logx.String("path", path), logx.Err(err))
			case rep != nil:
				a.log.Info("protocol reloaded", logx.String("version", res.Version), logx.Int("tasks", rep.Tasks))
			}
		},
	}
	a.sup.GoRestart("protocol.watch", w.Run)
}

func (a *App) reloadLoop(ctx context.Context) error {
	sub, unsub := a.cfgm.Subscribe(8)
	defer unsub()
	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return nil
		case next, ok := <-sub:
			if !ok {
				return nil
			}
			a.applyConfig(ctx, last, next)
			last = next
		}
	}
}

func (a *App) applyConfig(ctx context.Context, prev, next *config.Config) {
	sections, attrs := config.SummarizeConfigChange(prev, next)
	if len(sections) == 0 {
		a.log.Debug("config reload received, but no effective changes detected")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config changed", fields...)

	a.logs.Apply(mapLogConfig(next))
	for _, s := range sections {
		switch s {
		case "storage", "debug":
			a.log.Warn(s + " config changed; restart required for changes to take effect")
		case "protocol":
			if next.Protocol.Watch && next.Protocol.Path != prev.Protocol.Path {
				a.log.Warn("protocol.path changed; the file watcher follows it after a restart")
			}
			if path := strings.TrimSpace(next.Protocol.Path); path != "" {
				if _, err := a.questionnaires.Import(ctx, path); err != nil {
					a.log.Warn("protocol import failed", logx.String("path", path), logx.Err(err))
				}
			}
		}
	}

	// The validator already accepted next, so mapping errors are not expected here.
	if opts, err := mapScheduleOptions(next, a.log.With(logx.String("comp", "schedule"))); err == nil {
		a.sched.Reconfigure(opts)
		// Record a zone move before regenerating so completions made under
		// the old zone still match.
		if slices.Contains(sections, "schedule") {
			if _, err := a.sched.NoteTimezone(ctx, time.Now()); err != nil {
				a.log.Warn("timezone check failed", logx.Err(err))
			}
		}
	} else {
		a.log.Warn("invalid schedule config; keeping previous", logx.Err(err))
	}
	if tc, err := mapTriggerConfig(next); err != nil {
		a.log.Warn("invalid refresh config; keeping previous", logx.Err(err))
	} else if err := a.trig.Apply(ctx, tc); err != nil {
		a.log.Warn("refresh schedule rejected; keeping previous", logx.Err(err))
	}

	if config.NeedsRegeneration(sections) {
		a.trig.Request(scheduling.ReasonConfig)
	}
}

func (a *App) logEvents(ctx context.Context) error {
	events, unsub := a.bus.Subscribe(128)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-events:
			if !ok {
				return nil
			}
			a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
		}
	}
}

// Stop stops the trigger and every supervised loop, then closes storage
// and log outputs.
func (a *App) Stop(ctx context.Context) error {
	start := time.Now()
	a.log.Info("stopping")
	a.trig.Stop(ctx)

	var errs []error
	if a.sup != nil {
		if err := a.sup.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close storage: %w", err))
	}
	a.log.Info("stopped", logx.Duration("took", time.Since(start)))
	_ = a.logs.Close()
	return errors.Join(errs...)
}

// Close releases storage and logs for an App that was never started.
func (a *App) Close() error {
	err := a.store.Close()
	_ = a.logs.Close()
	return err
}
