package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	logx "protosched/pkg/logx"
)

// fileStore keeps every value in memory and rewrites one JSON snapshot on
// each change. The snapshot is written to a temp file and renamed into
// place so a crash never leaves a torn file behind.
type fileStore struct {
	log  logx.Logger
	path string

	mu     sync.Mutex
	values map[Key]json.RawMessage
	closed bool
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	values, err := loadSnapshot(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	log.Debug("file store opened", logx.String("path", path), logx.Int("keys", len(values)))
	return &fileStore{log: log, path: path, values: values}, nil
}

func loadSnapshot(path string) (map[Key]json.RawMessage, error) {
	out := map[Key]json.RawMessage{}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(b))) == 0 {
		return out, nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, err
	}
	for k, v := range raw {
		key := Key(k)
		if !key.Valid() {
			// Written by a newer version; keep going without it.
			continue
		}
		out[key] = v
	}
	return out, nil
}

func (s *fileStore) GetRaw(_ context.Context, key Key) (json.RawMessage, bool, error) {
	if err := key.check(); err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, false, ErrDisabled
	}
	v, ok := s.values[key]
	return slices.Clone(v), ok, nil
}

func (s *fileStore) SetRaw(_ context.Context, key Key, value json.RawMessage) error {
	if err := key.check(); err != nil {
		return err
	}
	if !json.Valid(value) {
		return fmt.Errorf("set %s: invalid json", key)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrDisabled
	}
	prev, had := s.values[key]
	s.values[key] = slices.Clone(value)
	if err := s.flushLocked(); err != nil {
		if had {
			s.values[key] = prev
		} else {
			delete(s.values, key)
		}
		return err
	}
	return nil
}

func (s *fileStore) Remove(_ context.Context, key Key) error {
	if err := key.check(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrDisabled
	}
	if _, ok := s.values[key]; !ok {
		return nil
	}
	delete(s.values, key)
	return s.flushLocked()
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fileStore) flushLocked() error {
	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s.values); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		s.log.Warn("snapshot rename failed", logx.String("path", s.path), logx.Err(err))
		return err
	}
	return nil
}
