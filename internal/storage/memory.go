package storage

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
)

type memoryStore struct {
	mu     sync.RWMutex
	values map[Key]json.RawMessage
	closed bool
}

// NewMemory returns an empty in-process store.
func NewMemory() Store {
	return &memoryStore{values: map[Key]json.RawMessage{}}
}

func (s *memoryStore) GetRaw(_ context.Context, key Key) (json.RawMessage, bool, error) {
	if err := key.check(); err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, false, ErrDisabled
	}
	v, ok := s.values[key]
	return slices.Clone(v), ok, nil
}

func (s *memoryStore) SetRaw(_ context.Context, key Key, value json.RawMessage) error {
	if err := key.check(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrDisabled
	}
	s.values[key] = slices.Clone(value)
	return nil
}

func (s *memoryStore) Remove(_ context.Context, key Key) error {
	if err := key.check(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrDisabled
	}
	delete(s.values, key)
	return nil
}

func (s *memoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
