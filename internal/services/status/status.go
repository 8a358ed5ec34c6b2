// Package status serves a small local HTTP API for a running daemon:
// liveness, the last generation report, the next task, supervised loop
// stats and net/http/pprof.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	hpprof "net/http/pprof"
	"strings"
	"time"

	"protosched/internal/runtime/supervisor"
	"protosched/internal/schedule"
	"protosched/internal/services/scheduling"
	logx "protosched/pkg/logx"
)

type Config struct {
	Addr  string
	Token string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Source is the scheduling surface the server reads from.
type Source interface {
	Now() time.Time
	Report(ctx context.Context) (scheduling.Report, bool, error)
	NextTask(ctx context.Context, now time.Time) (schedule.Task, error)
}

type Server struct {
	cfg   Config
	src   Source
	loops func() []supervisor.Stats
	log   logx.Logger
}

func New(cfg Config, src Source, loops func() []supervisor.Stats, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	if loops == nil {
		loops = func() []supervisor.Stats { return nil }
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = time.Minute
	}
	// WriteTimeout stays 0 by default so /debug/pprof/profile can stream.
	return &Server{cfg: cfg, src: src, loops: loops, log: log}
}

// Handler returns the routes, wrapped with token auth when a token is set.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /report", s.handleReport)
	mux.HandleFunc("GET /next", s.handleNext)
	mux.HandleFunc("GET /loops", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.loops())
	})
	mux.HandleFunc("/debug/pprof/", hpprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", hpprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", hpprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", hpprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", hpprof.Trace)
	return withAuth(s.cfg.Token, mux)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	rep, ok, err := s.src.Report(r.Context())
	switch {
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	case !ok:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no schedule generated yet"})
	default:
		writeJSON(w, http.StatusOK, rep)
	}
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	t, err := s.src.NextTask(r.Context(), s.src.Now())
	switch {
	case errors.Is(err, scheduling.ErrNoTask):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusOK, t)
	}
}

// Run listens on cfg.Addr and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}
	s.log.Info("status server started", logx.String("addr", ln.Addr().String()), logx.Bool("token_set", s.cfg.Token != ""))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)
	s.log.Info("status server stopped")
	return err
}

// withAuth accepts "Authorization: Bearer <token>" or "?token=<token>".
func withAuth(token string, h http.Handler) http.Handler {
	tok := strings.TrimSpace(token)
	if tok == "" {
		return h
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.URL.Query().Get("token")
		if got == "" {
			if ah := r.Header.Get("Authorization"); strings.HasPrefix(ah, "Bearer ") {
				got = strings.TrimSpace(strings.TrimPrefix(ah, "Bearer "))
			}
		}
		if got != tok {
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		h.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
