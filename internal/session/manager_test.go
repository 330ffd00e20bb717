package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/voxlate/voxlate/internal/session"
	"github.com/voxlate/voxlate/pkg/provider/recognize"
	recognizemock "github.com/voxlate/voxlate/pkg/provider/recognize/mock"
)

func newTestManager(t *testing.T) *session.Manager {
	t.Helper()
	rec := echoRecognizer(nil, nil, nil)
	return session.NewManager(newSessionPipeline(t, rec), testMetrics(t))
}

func TestManager_CreateAssignsUniqueIDs(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	ctx := context.Background()

	a := m.Create(ctx, "en", newCaptureSink())
	b := m.Create(ctx, "fr", newCaptureSink())

	if a.ID() == "" || b.ID() == "" {
		t.Fatal("session IDs must not be empty")
	}
	if a.ID() == b.ID() {
		t.Fatalf("session IDs collide: %q", a.ID())
	}
	if got := m.Len(); got != 2 {
		t.Errorf("Len: got %d, want 2", got)
	}
	if a.TargetLanguage() != "en" || b.TargetLanguage() != "fr" {
		t.Errorf("target languages: got %q, %q", a.TargetLanguage(), b.TargetLanguage())
	}
}

func TestManager_GetReturnsRegisteredSession(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	s := m.Create(context.Background(), "en", newCaptureSink())

	if got := m.Get(s.ID()); got != s {
		t.Errorf("Get: got %p, want %p", got, s)
	}
	if got := m.Get("unknown"); got != nil {
		t.Errorf("Get(unknown): got %v, want nil", got)
	}
}

func TestManager_RemoveDestroysSession(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	ctx := context.Background()
	s := m.Create(ctx, "en", newCaptureSink())

	m.Remove(ctx, s.ID())

	if got := s.State(); got != session.StateDestroyed {
		t.Errorf("state: got %v, want destroyed", got)
	}
	if got := m.Len(); got != 0 {
		t.Errorf("Len: got %d, want 0", got)
	}
	if got := m.Get(s.ID()); got != nil {
		t.Errorf("Get after Remove: got %v, want nil", got)
	}

	// Removing an unknown ID is a no-op.
	m.Remove(ctx, "unknown")
}

func TestManager_ShutdownDestroysAll(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	ctx := context.Background()
	a := m.Create(ctx, "en", newCaptureSink())
	b := m.Create(ctx, "de", newCaptureSink())

	if err := m.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	if a.State() != session.StateDestroyed || b.State() != session.StateDestroyed {
		t.Error("sessions not destroyed after Shutdown")
	}
	if got := m.Len(); got != 0 {
		t.Errorf("Len: got %d, want 0", got)
	}
}

func TestManager_ShutdownExpiresWithContext(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	rec := &recognizemock.Provider{
		ResultFunc: func(req recognize.Request) (recognize.Result, error) {
			close(started)
			<-release
			return recognize.Result{Text: frameText(req.PCM[0])}, nil
		},
	}
	m := session.NewManager(newSessionPipeline(t, rec), testMetrics(t))
	s := m.Create(context.Background(), "en", newCaptureSink())

	if err := s.Enqueue(numberedFrame(1)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("recognizer never started")
	}

	// A provider call that hangs past the shutdown budget must not stall
	// Shutdown; the expired context wins.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.Shutdown(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Shutdown: got %v, want context.Canceled", err)
	}
	if got := s.State(); got != session.StateDestroyed {
		t.Errorf("state: got %v, want destroyed", got)
	}

	close(release)
	s.Wait()
}
