// Package detect defines the Provider interface for text language detection
// backends.
//
// Detection sits between recognition and translation in the caption pipeline:
// the recognized text is inspected so the translator knows which source
// language to translate from. Detection is best-effort; callers fall back to
// a configured default language when the backend fails or is unsure.
package detect

import "context"

// Detection is the outcome of detecting the language of a piece of text.
type Detection struct {
	// Language is the ISO 639-1 code of the detected language (e.g., "en").
	Language string

	// Confidence is the backend's confidence in the detection, in [0, 1].
	Confidence float64
}

// Provider is the abstraction over any language detection backend.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Detect determines the language of text. It blocks until the backend
	// responds or ctx is cancelled.
	Detect(ctx context.Context, text string) (Detection, error)
}
