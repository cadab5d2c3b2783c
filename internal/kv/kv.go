// Package kv provides string key-value slot persistence shared by the
// application's front-end shells. A slot holds one serialized value; a
// write is always a whole-value replacement.
package kv

import (
	"context"
	"fmt"
	"sync"

	"github.com/nhle/project-planner/internal/model"
)

// Backend is a named-slot string store.
type Backend interface {
	// Get reads the raw value of a slot. The boolean reports whether
	// the slot exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set replaces the slot's value entirely.
	Set(ctx context.Context, key, value string) error

	// Delete removes the slot. Deleting an absent slot is not an error.
	Delete(ctx context.Context, key string) error
}

// Open creates the backend selected by the storage configuration.
func Open(cfg model.StorageConfig) (Backend, error) {
	switch cfg.Backend {
	case model.StorageMemory:
		return NewMemory(), nil
	case model.StorageFile:
		return NewFile(cfg.Path)
	case model.StorageSQLite:
		return NewSQLite(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// Memory is an in-process Backend, used in tests and as a throwaway store.
type Memory struct {
	mu    sync.RWMutex
	slots map[string]string
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{slots: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.slots[key]
	return value, ok, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[key] = value
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.slots, key)
	return nil
}
