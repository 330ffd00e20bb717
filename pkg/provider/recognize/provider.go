// Package recognize defines the Provider interface for batch speech
// recognition backends.
//
// Unlike a streaming transcription API, a recognize provider accepts one
// complete audio frame per call and returns the recognized text for exactly
// that frame. The caption pipeline submits fixed-duration frames, so the
// short-audio REST endpoints of cloud speech services map onto this interface
// directly.
//
// Implementations must be safe for concurrent use.
package recognize

import (
	"context"
	"time"
)

// Result is the outcome of recognizing a single audio frame.
//
// A frame that contained no recognizable speech yields a Result with an empty
// Text and a nil error; callers should treat such frames as silence rather
// than as failures.
type Result struct {
	// Text is the recognized speech, normalized with capitalization and
	// punctuation where the backend supports it. Empty when the frame held
	// no recognizable speech.
	Text string

	// Offset is the position of the recognized utterance within the frame,
	// when reported by the backend.
	Offset time.Duration

	// Duration is the length of the recognized utterance, when reported.
	Duration time.Duration
}

// Request describes one frame of audio to recognize.
type Request struct {
	// PCM is raw 16-bit signed little-endian mono PCM audio.
	PCM []byte

	// SampleRate is the sample rate of PCM in Hz.
	SampleRate int

	// Language is the BCP-47 tag the recognizer should assume
	// (e.g., "en-US"). Must not be empty.
	Language string
}

// Provider is the abstraction over any batch speech recognition backend.
type Provider interface {
	// Recognize transcribes a single audio frame. It blocks until the
	// backend responds or ctx is cancelled. A frame without recognizable
	// speech returns an empty Result and a nil error.
	Recognize(ctx context.Context, req Request) (Result, error)
}
