package pipeline

import (
	"errors"
	"fmt"
)

// ErrAudioTooShort is returned by [Pipeline.Process] when a frame is shorter
// than the minimum the recognizer accepts. The frame is rejected before any
// provider call is made.
var ErrAudioTooShort = errors.New("pipeline: audio frame too short to recognize")

// ErrNoSpeech is returned by [Pipeline.Process] when the recognizer found no
// speech in the frame. It marks a silent frame, not a failure; callers should
// skip the frame without surfacing an error to the client.
var ErrNoSpeech = errors.New("pipeline: no speech recognized in frame")

// RecognitionError wraps a failure of the speech recognition stage.
type RecognitionError struct {
	Err error
}

func (e *RecognitionError) Error() string {
	return fmt.Sprintf("speech recognition failed: %v", e.Err)
}

func (e *RecognitionError) Unwrap() error { return e.Err }

// TranslationError wraps a failure of the translation stage. The recognized
// text survived, so the error carries it for callers that want to caption the
// original even when translation failed.
type TranslationError struct {
	Original string
	Err      error
}

func (e *TranslationError) Error() string {
	return fmt.Sprintf("translation failed: %v", e.Err)
}

func (e *TranslationError) Unwrap() error { return e.Err }
