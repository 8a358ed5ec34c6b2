package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	logx "protosched/pkg/logx"
)

// Store is the raw key/value API every driver implements. Values are JSON
// documents; use Get and Set for typed access.
type Store interface {
	GetRaw(ctx context.Context, key Key) (json.RawMessage, bool, error)
	SetRaw(ctx context.Context, key Key, value json.RawMessage) error
	Remove(ctx context.Context, key Key) error
	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "", "memory":
		return NewMemory(), nil
	case "none":
		return nil, ErrDisabled
	case "file", "json":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}

// Get decodes the value under key into a T. ok is false when the key was
// never set.
func Get[T any](ctx context.Context, s Store, key Key) (v T, ok bool, err error) {
	raw, ok, err := s.GetRaw(ctx, key)
	if err != nil || !ok {
		return v, false, err
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, false, fmt.Errorf("decode %s: %w", key, err)
	}
	return v, true, nil
}

// GetOr is Get with a fallback for missing keys.
func GetOr[T any](ctx context.Context, s Store, key Key, def T) (T, error) {
	v, ok, err := Get[T](ctx, s, key)
	if err != nil {
		return def, err
	}
	if !ok {
		return def, nil
	}
	return v, nil
}

// Set encodes v as JSON and stores it under key.
func Set(ctx context.Context, s Store, key Key, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.SetRaw(ctx, key, b)
}
