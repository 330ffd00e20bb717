package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/voxlate/voxlate/internal/observe"
	"github.com/voxlate/voxlate/internal/pipeline"
)

// Manager owns the registry of live sessions. One session is created per
// connected participant and removed when the participant disconnects.
// All exported methods are safe for concurrent use.
type Manager struct {
	proc    *pipeline.Pipeline
	metrics *observe.Metrics
	opts    []Option

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager constructs a Manager that creates sessions over proc. opts are
// applied to every session the manager creates.
func NewManager(proc *pipeline.Pipeline, metrics *observe.Metrics, opts ...Option) *Manager {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Manager{
		proc:     proc,
		metrics:  metrics,
		opts:     append([]Option{WithMetrics(metrics)}, opts...),
		sessions: make(map[string]*Session),
	}
}

// Create registers a new session captioning into targetLang and delivering
// outcomes to sink. The returned session has a fresh unique ID.
func (m *Manager) Create(ctx context.Context, targetLang string, sink Sink) *Session {
	s := New(ctx, uuid.NewString(), targetLang, m.proc, sink, m.opts...)

	m.mu.Lock()
	m.sessions[s.ID()] = s
	n := len(m.sessions)
	m.mu.Unlock()

	m.metrics.ActiveSessions.Add(ctx, 1)
	slog.Info("session created",
		"session_id", s.ID(), "target_language", targetLang, "active", n)
	return s
}

// Get returns the session with the given ID, or nil when unknown.
func (m *Manager) Get(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id]
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Remove destroys the session with the given ID and drops it from the
// registry. Unknown IDs are a no-op, so disconnect handlers may call Remove
// unconditionally.
func (m *Manager) Remove(ctx context.Context, id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	n := len(m.sessions)
	m.mu.Unlock()

	if !ok {
		return
	}
	s.Destroy()
	m.metrics.ActiveSessions.Add(ctx, -1)
	slog.Info("session removed", "session_id", id, "active", n)
}

// Shutdown destroys every live session and waits for in-flight frames to
// finish processing, or until ctx expires. A provider call that outlives ctx
// is abandoned to its goroutine so graceful shutdown cannot stall on it.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range all {
		s.Destroy()
		m.metrics.ActiveSessions.Add(ctx, -1)
	}

	done := make(chan struct{})
	go func() {
		for _, s := range all {
			s.Wait()
		}
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		slog.Warn("shutdown abandoned in-flight frames", "error", ctx.Err())
		return ctx.Err()
	}

	if len(all) > 0 {
		slog.Info("all sessions destroyed", "count", len(all))
	}
	return nil
}
