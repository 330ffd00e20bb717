// Package session implements per-participant caption sessions.
//
// Each connected participant owns one Session: a bounded FIFO queue of audio
// frames drained by a single in-flight pipeline call. Frames are processed
// strictly in arrival order and never concurrently within a session, so
// captions reach the client in the order the audio was spoken. Sessions from
// different participants process independently.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/voxlate/voxlate/internal/observe"
	"github.com/voxlate/voxlate/internal/pipeline"
	"github.com/voxlate/voxlate/pkg/audio"
)

// DefaultQueueDepth bounds how many frames may wait behind the in-flight one.
// At the default 2s frame duration this is 30s of backlog, which already
// means captions lag too far behind live speech to be useful.
const DefaultQueueDepth = 15

// ErrSessionDestroyed is returned by Enqueue after Destroy has been called.
var ErrSessionDestroyed = errors.New("session: session destroyed")

// ErrQueueFull is returned by Enqueue when the queue is at capacity and the
// overflow policy is OverflowRejectNewest.
var ErrQueueFull = errors.New("session: frame queue full")

// OverflowPolicy selects what happens when a frame arrives at a full queue.
type OverflowPolicy string

const (
	// OverflowDropOldest discards the oldest waiting frame to make room.
	// Captions stay close to live speech at the cost of a gap.
	OverflowDropOldest OverflowPolicy = "drop_oldest"

	// OverflowRejectNewest refuses the incoming frame and surfaces
	// ErrQueueFull to the caller.
	OverflowRejectNewest OverflowPolicy = "reject_newest"
)

// IsValid reports whether p is a known overflow policy.
func (p OverflowPolicy) IsValid() bool {
	switch p {
	case OverflowDropOldest, OverflowRejectNewest:
		return true
	}
	return false
}

// State describes the lifecycle of a Session.
type State int

const (
	// StateIdle means no frame is being processed and the queue is empty.
	StateIdle State = iota

	// StateProcessing means a pipeline call is in flight.
	StateProcessing

	// StateDestroyed means the session has been torn down. It is terminal.
	StateDestroyed
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProcessing:
		return "processing"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// Sink receives the outcome of each processed frame. Implementations are
// called from the session's processing goroutine, one call at a time, in
// frame arrival order.
type Sink interface {
	// Caption delivers a successfully processed frame.
	Caption(ctx context.Context, c pipeline.Caption)

	// Error delivers a frame-local processing failure. The session
	// continues with the next frame.
	Error(ctx context.Context, err error)
}

// Option is a functional option for configuring a Session.
type Option func(*Session)

// WithQueueDepth bounds the number of frames that may wait behind the
// in-flight one. Non-positive values select DefaultQueueDepth.
func WithQueueDepth(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.maxDepth = n
		}
	}
}

// WithOverflowPolicy selects the behaviour at a full queue. Defaults to
// OverflowDropOldest.
func WithOverflowPolicy(p OverflowPolicy) Option {
	return func(s *Session) {
		if p.IsValid() {
			s.policy = p
		}
	}
}

// WithMetrics sets the metrics instance. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// Session is one participant's caption queue. All exported methods are safe
// for concurrent use.
type Session struct {
	id         string
	targetLang string
	proc       *pipeline.Pipeline
	sink       Sink
	metrics    *observe.Metrics
	maxDepth   int
	policy     OverflowPolicy

	// ctx is detached from the constructor's context at New, so an
	// in-flight pipeline call runs to completion even after the
	// connection handler returns; its result is simply not emitted.
	ctx context.Context

	mu         sync.Mutex
	queue      []audio.Frame
	processing bool
	destroyed  bool

	// emitMu serializes the destroyed check with the sink call so no
	// caption can slip out once Destroy has returned.
	emitMu sync.Mutex

	// wg tracks the processing goroutine so tests and teardown paths can
	// synchronise with the end of the in-flight frame.
	wg sync.WaitGroup
}

// New constructs a Session identified by id that captions frames into
// targetLang through proc and delivers outcomes to sink. The session's
// lifetime is governed by Destroy, not by ctx: cancelling ctx (for example
// when the connection handler returns) must not abort a frame that is
// already in the pipeline.
func New(ctx context.Context, id, targetLang string, proc *pipeline.Pipeline, sink Sink, opts ...Option) *Session {
	s := &Session{
		id:         id,
		targetLang: targetLang,
		proc:       proc,
		sink:       sink,
		maxDepth:   DefaultQueueDepth,
		policy:     OverflowDropOldest,
		ctx:        context.WithoutCancel(ctx),
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// TargetLanguage returns the language captions are translated into.
func (s *Session) TargetLanguage() string { return s.targetLang }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.destroyed:
		return StateDestroyed
	case s.processing:
		return StateProcessing
	default:
		return StateIdle
	}
}

// QueueLen returns the number of frames waiting behind the in-flight one.
func (s *Session) QueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Enqueue submits one frame for processing. When the session is idle the
// frame is dispatched immediately; otherwise it joins the FIFO queue. At a
// full queue the overflow policy decides whether the oldest waiting frame is
// dropped or the new one rejected.
func (s *Session) Enqueue(frame audio.Frame) error {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return ErrSessionDestroyed
	}

	s.metrics.FramesReceived.Add(s.ctx, 1)

	if !s.processing {
		s.processing = true
		s.wg.Add(1)
		go s.run(frame)
		s.mu.Unlock()
		return nil
	}

	if len(s.queue) >= s.maxDepth {
		if s.policy == OverflowRejectNewest {
			s.mu.Unlock()
			s.metrics.RecordFrameDropped(s.ctx, "overflow")
			return ErrQueueFull
		}
		// Drop the oldest waiting frame to keep captions near-live.
		s.queue = s.queue[1:]
		s.metrics.RecordFrameDropped(s.ctx, "overflow")
		s.metrics.QueuedFrames.Add(s.ctx, -1)
	}

	s.queue = append(s.queue, frame)
	s.metrics.QueuedFrames.Add(s.ctx, 1)
	s.mu.Unlock()
	return nil
}

// run processes frame and then drains the queue until it is empty or the
// session is destroyed. It owns the processing flag for its whole lifetime.
func (s *Session) run(frame audio.Frame) {
	defer s.wg.Done()

	for {
		caption, err := s.proc.Process(s.ctx, frame, s.targetLang)

		s.emitMu.Lock()
		s.mu.Lock()
		destroyed := s.destroyed
		s.mu.Unlock()
		if destroyed {
			// Result computed but the participant is gone; do not emit.
			s.emitMu.Unlock()
			return
		}

		switch {
		case err == nil:
			s.metrics.CaptionsEmitted.Add(s.ctx, 1)
			s.sink.Caption(s.ctx, caption)
		case errors.Is(err, pipeline.ErrNoSpeech):
			// Silence is a normal outcome; nothing to deliver.
		default:
			s.sink.Error(s.ctx, err)
		}
		s.emitMu.Unlock()

		s.mu.Lock()
		if s.destroyed || len(s.queue) == 0 {
			s.processing = false
			s.mu.Unlock()
			return
		}
		frame = s.queue[0]
		s.queue = s.queue[1:]
		s.metrics.QueuedFrames.Add(s.ctx, -1)
		s.mu.Unlock()
	}
}

// Destroy tears the session down: the queue is discarded immediately and no
// further frames are accepted or captions emitted. An in-flight pipeline call
// is left to finish in the background; its result is dropped. Destroy is
// idempotent.
func (s *Session) Destroy() {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	s.destroyed = true
	dropped := len(s.queue)
	s.queue = nil
	s.mu.Unlock()

	// Wait out any emission already past its destroyed check. After this,
	// every later check observes destroyed and nothing more reaches the sink.
	s.emitMu.Lock()
	s.emitMu.Unlock() //nolint:staticcheck // empty critical section is the barrier

	for i := 0; i < dropped; i++ {
		s.metrics.RecordFrameDropped(s.ctx, "teardown")
	}
	if dropped > 0 {
		s.metrics.QueuedFrames.Add(s.ctx, int64(-dropped))
	}
}

// Wait blocks until the in-flight frame, if any, has finished processing.
// Intended for tests and graceful shutdown.
func (s *Session) Wait() {
	s.wg.Wait()
}
