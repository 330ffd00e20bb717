package resilience

import (
	"errors"
	"strings"
	"testing"
	"time"
)

// fakeBackend is a stand-in for a stage backend: it returns its name as the
// result, or an error when broken.
type fakeBackend struct {
	name   string
	broken bool
	calls  int
}

func (b *fakeBackend) call() (string, error) {
	b.calls++
	if b.broken {
		return "", errBackend
	}
	return b.name, nil
}

func newGroup(backends ...*fakeBackend) *FallbackGroup[*fakeBackend] {
	cfg := FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour},
	}
	fg := NewFallbackGroup(backends[0], backends[0].name, cfg)
	for _, b := range backends[1:] {
		fg.AddFallback(b.name, b)
	}
	return fg
}

func TestFallbackGroup_PrimaryServesWhileHealthy(t *testing.T) {
	t.Parallel()

	primary := &fakeBackend{name: "primary"}
	secondary := &fakeBackend{name: "secondary"}
	fg := newGroup(primary, secondary)

	got, err := ExecuteWithResult(fg, (*fakeBackend).call)
	if err != nil {
		t.Fatalf("ExecuteWithResult: %v", err)
	}
	if got != "primary" {
		t.Errorf("result = %q, want primary", got)
	}
	if secondary.calls != 0 {
		t.Errorf("secondary called %d times, want 0", secondary.calls)
	}
}

func TestFallbackGroup_FailsOverInRegistrationOrder(t *testing.T) {
	t.Parallel()

	first := &fakeBackend{name: "first", broken: true}
	second := &fakeBackend{name: "second", broken: true}
	third := &fakeBackend{name: "third"}
	fg := newGroup(first, second, third)

	got, err := ExecuteWithResult(fg, (*fakeBackend).call)
	if err != nil {
		t.Fatalf("ExecuteWithResult: %v", err)
	}
	if got != "third" {
		t.Errorf("result = %q, want third", got)
	}
	if first.calls != 1 || second.calls != 1 {
		t.Errorf("calls = %d/%d, want 1/1", first.calls, second.calls)
	}
}

func TestFallbackGroup_AllFailWrapsLastError(t *testing.T) {
	t.Parallel()

	fg := newGroup(&fakeBackend{name: "a", broken: true}, &fakeBackend{name: "b", broken: true})

	_, err := ExecuteWithResult(fg, (*fakeBackend).call)
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("error = %v, want ErrAllFailed", err)
	}
	if !strings.Contains(err.Error(), errBackend.Error()) {
		t.Errorf("error %q does not mention the last backend failure", err)
	}
}

func TestFallbackGroup_OpenBreakerSkipsBackend(t *testing.T) {
	t.Parallel()

	primary := &fakeBackend{name: "primary", broken: true}
	secondary := &fakeBackend{name: "secondary"}
	fg := newGroup(primary, secondary)

	// MaxFailures is 2: after two failovers the primary's breaker is open
	// and later calls go straight to the secondary.
	for i := 0; i < 4; i++ {
		if _, err := ExecuteWithResult(fg, (*fakeBackend).call); err != nil {
			t.Fatalf("call %d: %v", i+1, err)
		}
	}
	if primary.calls != 2 {
		t.Errorf("primary called %d times, want 2", primary.calls)
	}
	if secondary.calls != 4 {
		t.Errorf("secondary called %d times, want 4", secondary.calls)
	}
}

func TestFallbackGroup_ExecuteDiscardsResult(t *testing.T) {
	t.Parallel()

	primary := &fakeBackend{name: "primary"}
	fg := newGroup(primary)

	if err := fg.Execute(func(b *fakeBackend) error {
		_, err := b.call()
		return err
	}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if primary.calls != 1 {
		t.Errorf("primary called %d times, want 1", primary.calls)
	}
}
