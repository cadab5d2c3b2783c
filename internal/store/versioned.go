// Package store persists JSON aggregates in named key-value slots, with a
// migration hook that upgrades whatever was stored back into canonical
// shape on every load.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nhle/project-planner/internal/kv"
)

// Migrate upgrades a decoded payload into canonical shape. It must be
// idempotent: applying it twice yields the same result as applying it once.
type Migrate[T any] func(T) T

// Store persists a single JSON value of type T under a named slot.
type Store[T any] struct {
	backend kv.Backend
	key     string
	def     func() T
	migrate Migrate[T]
}

// Option configures a Store.
type Option[T any] func(*Store[T])

// WithMigrate sets the migration hook applied on every successful load.
func WithMigrate[T any](m Migrate[T]) Option[T] {
	return func(s *Store[T]) {
		s.migrate = m
	}
}

// New creates a store over the given slot. defaultValue produces the value
// returned when the slot is absent or unreadable; it is returned as-is,
// not migrated, since a brand-new slot is assumed already canonical.
func New[T any](backend kv.Backend, key string, defaultValue func() T, opts ...Option[T]) *Store[T] {
	s := &Store[T]{
		backend: backend,
		key:     key,
		def:     defaultValue,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads and decodes the slot. An absent slot yields the default; so
// does malformed JSON, which is treated as "no data" rather than raised.
// Backend errors propagate to the caller.
func (s *Store[T]) Load(ctx context.Context) (T, error) {
	raw, ok, err := s.backend.Get(ctx, s.key)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("loading slot %s: %w", s.key, err)
	}
	if !ok {
		return s.def(), nil
	}

	var value T
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return s.def(), nil
	}
	if s.migrate != nil {
		value = s.migrate(value)
	}
	return value, nil
}

// Save serializes the value and replaces the slot entirely.
func (s *Store[T]) Save(ctx context.Context, value T) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding slot %s: %w", s.key, err)
	}
	if err := s.backend.Set(ctx, s.key, string(data)); err != nil {
		return fmt.Errorf("saving slot %s: %w", s.key, err)
	}
	return nil
}

// Reset removes the slot entirely.
func (s *Store[T]) Reset(ctx context.Context) error {
	if err := s.backend.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("resetting slot %s: %w", s.key, err)
	}
	return nil
}
