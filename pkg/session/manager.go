package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"wandermap/pkg/apisession"
	"wandermap/pkg/metrics"
)

// Manager owns every live session. Sessions idle longer than the TTL are
// closed by Sweep.
type Manager struct {
	opts     Options
	sessions *apisession.Store[*Session]
	baseCtx  context.Context
}

// NewManager creates a Manager. Geometry loads started by Create run under
// ctx and end when it is cancelled.
func NewManager(ctx context.Context, opts Options, ttl time.Duration, max int) *Manager {
	m := &Manager{opts: opts, baseCtx: ctx}
	m.sessions = apisession.New(ttl, max, func(id string, s *Session) {
		slog.Info("Session: evicting idle session", "session", id)
		s.Close()
		metrics.SessionsActive.Dec()
	})
	return m
}

// Create registers a new session and starts its geometry load.
func (m *Manager) Create() (*Session, error) {
	_, s, err := m.sessions.Add(func(id string) *Session {
		return newSession(id, m.opts)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	metrics.SessionsActive.Inc()
	slog.Info("Session: created", "session", s.ID(), "source", m.opts.Source.Name())
	s.Start(m.baseCtx)
	return s, nil
}

// Get returns the session with id.
func (m *Manager) Get(id string) (*Session, error) {
	s, ok := m.sessions.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Touch marks the session as in use so the idle sweep keeps it. Long-lived
// streams call it on client activity.
func (m *Manager) Touch(id string) bool {
	return m.sessions.Touch(id)
}

// Close removes and closes the session with id.
func (m *Manager) Close(id string) error {
	s, ok := m.sessions.Remove(id)
	if !ok {
		return ErrNotFound
	}
	s.Close()
	metrics.SessionsActive.Dec()
	return nil
}

// CloseAll closes every session. It is used on shutdown.
func (m *Manager) CloseAll() {
	all := m.sessions.Drain()
	for _, s := range all {
		s.Close()
	}
	metrics.SessionsActive.Sub(float64(len(all)))
	if len(all) > 0 {
		slog.Info("Session: closed all sessions", "count", len(all))
	}
}

// Len returns the number of live sessions.
func (m *Manager) Len() int { return m.sessions.Len() }

// Sweep closes idle sessions and returns how many were closed.
func (m *Manager) Sweep() int {
	return m.sessions.Cleanup()
}

// Run sweeps idle sessions every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				slog.Debug("Session: sweep finished", "evicted", n)
			}
		}
	}
}
