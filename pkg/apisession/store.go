// Package apisession is a typed, thread-safe registry for per-client state
// addressed by an opaque session ID. Entries idle longer than the TTL are
// evicted and handed to an eviction callback.
package apisession

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrFull is returned by Add when the store holds its maximum number of entries.
var ErrFull = errors.New("session limit reached")

type entry[T any] struct {
	value      T
	lastAccess time.Time
}

// Store maps session IDs to values of T.
type Store[T any] struct {
	mu      sync.Mutex
	entries map[string]*entry[T]
	ttl     time.Duration
	max     int
	onEvict func(id string, v T)
	now     func() time.Time
}

// New creates a Store. A zero ttl disables idle eviction and a zero max
// disables the size limit. onEvict may be nil.
func New[T any](ttl time.Duration, max int, onEvict func(id string, v T)) *Store[T] {
	return &Store[T]{
		entries: make(map[string]*entry[T]),
		ttl:     ttl,
		max:     max,
		onEvict: onEvict,
		now:     time.Now,
	}
}

// Add registers v under a fresh random ID built by newValue.
func (s *Store[T]) Add(newValue func(id string) T) (string, T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero T
	if s.max > 0 && len(s.entries) >= s.max {
		return "", zero, ErrFull
	}
	id := uuid.NewString()
	v := newValue(id)
	s.entries[id] = &entry[T]{value: v, lastAccess: s.now()}
	return id, v, nil
}

// Get returns the value for id and refreshes its last-access time.
func (s *Store[T]) Get(id string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		var zero T
		return zero, false
	}
	e.lastAccess = s.now()
	return e.value, true
}

// Touch refreshes the last-access time of id without returning it.
func (s *Store[T]) Touch(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if ok {
		e.lastAccess = s.now()
	}
	return ok
}

// Remove deletes id and returns its value. The eviction callback is not called.
func (s *Store[T]) Remove(id string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		var zero T
		return zero, false
	}
	delete(s.entries, id)
	return e.value, true
}

// Cleanup evicts every entry idle longer than the TTL and returns how many
// were evicted. The callback runs outside the lock.
func (s *Store[T]) Cleanup() int {
	if s.ttl <= 0 {
		return 0
	}

	s.mu.Lock()
	cutoff := s.now().Add(-s.ttl)
	evicted := make(map[string]T)
	for id, e := range s.entries {
		if e.lastAccess.Before(cutoff) {
			evicted[id] = e.value
			delete(s.entries, id)
		}
	}
	s.mu.Unlock()

	if s.onEvict != nil {
		for id, v := range evicted {
			s.onEvict(id, v)
		}
	}
	return len(evicted)
}

// Drain removes and returns every entry.
func (s *Store[T]) Drain() []T {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]T, 0, len(s.entries))
	for id, e := range s.entries {
		out = append(out, e.value)
		delete(s.entries, id)
	}
	return out
}

// Len returns the number of active sessions.
func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
