package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	logx "protosched/pkg/logx"
)

// ErrUnchanged is returned by Reload when the file decodes to the config
// that is already active.
var ErrUnchanged = errors.New("config unchanged")

// Validator gets a last say before a reloaded config is committed.
type Validator func(ctx context.Context, cfg *Config) error

// Manager holds the active config and fans reloads out to subscribers.
type Manager struct {
	path string
	log  logx.Logger

	mu       sync.RWMutex
	cur      *Config
	curHash  uint64
	validate Validator

	subMu sync.Mutex
	subs  map[int]chan *Config
	next  int
}

func NewManager(path string) *Manager {
	return &Manager{path: path, log: logx.Nop(), subs: map[int]chan *Config{}}
}

// Default is the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Console: true},
		Storage: StorageConfig{Driver: "memory"},
		Refresh: RefreshConfig{Enabled: true},
	}
}

func (m *Manager) Path() string { return m.path }

func (m *Manager) SetLogger(log logx.Logger) {
	if log.IsZero() {
		log = logx.Nop()
	}
	m.log = log
}

func (m *Manager) SetValidator(fn Validator) {
	m.mu.Lock()
	m.validate = fn
	m.mu.Unlock()
}

// Load reads, validates and commits the file without notifying
// subscribers. An empty path commits Default().
func (m *Manager) Load() (*Config, error) {
	if m.path == "" {
		cfg := Default()
		m.commit(cfg, contentHash(cfg))
		return cfg, nil
	}
	cfg, err := m.read()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m.commit(cfg, contentHash(cfg))
	return cfg, nil
}

func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cur
}

// Reload re-reads the file. A config that decodes the same as the active
// one returns ErrUnchanged; an invalid one is rejected and the active one
// stays. Accepted configs are committed and published.
func (m *Manager) Reload(ctx context.Context) (*Config, error) {
	cfg, err := m.read()
	if err != nil {
		return nil, err
	}
	h := contentHash(cfg)

	m.mu.RLock()
	same := h != 0 && h == m.curHash
	validate := m.validate
	m.mu.RUnlock()
	if same {
		return nil, ErrUnchanged
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if validate != nil {
		vctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := validate(vctx, cfg)
		cancel()
		if err != nil {
			return nil, err
		}
	}

	m.commit(cfg, h)
	m.publish(cfg)
	m.log.Debug("config published", logx.String("path", m.path), logx.String("hash", fmt.Sprintf("%016x", h)))
	return cfg, nil
}

// Subscribe returns a channel that receives every committed reload. A
// slow subscriber only ever sees the newest config. The returned func
// unsubscribes and closes the channel.
func (m *Manager) Subscribe(buffer int) (<-chan *Config, func()) {
	ch := make(chan *Config, max(buffer, 1))
	m.subMu.Lock()
	id := m.next
	m.next++
	m.subs[id] = ch
	m.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.subMu.Lock()
			delete(m.subs, id)
			close(ch)
			m.subMu.Unlock()
		})
	}
}

// Watch reloads whenever the file changes until ctx is done.
func (m *Manager) Watch(ctx context.Context) error {
	w := &FileWatcher{
		Path: m.path,
		Log:  m.log,
		OnChange: func(ctx context.Context) {
			_, err := m.Reload(ctx)
			switch {
			case err == nil:
			case errors.Is(err, ErrUnchanged):
				m.log.Debug("config file touched without changes", logx.String("path", m.path))
			default:
				m.log.Warn("config rejected; keeping the active one", logx.String("path", m.path), logx.Err(err))
			}
		},
	}
	return w.Run(ctx)
}

func (m *Manager) read() (*Config, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := DecodeStrict(m.path, data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", m.path, err)
	}
	return cfg, nil
}

func (m *Manager) commit(cfg *Config, h uint64) {
	m.mu.Lock()
	m.cur, m.curHash = cfg, h
	m.mu.Unlock()
}

// publish runs under subMu so an unsubscribe can't close a channel mid-send.
func (m *Manager) publish(cfg *Config) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for id, ch := range m.subs {
		select {
		case ch <- cfg:
			continue
		default:
		}
		// Full: replace the stale entry with the newest.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- cfg:
		default:
			m.log.Debug("config update dropped", logx.Int("subscriber", id))
		}
	}
}

// contentHash hashes the decoded config, so formatting-only edits hash the same.
func contentHash(cfg *Config) uint64 {
	b, err := json.Marshal(cfg)
	if err != nil {
		return 0
	}
	return hashBytes(b)
}
