// Package translate defines the Provider interface for text translation
// backends.
package translate

import "context"

// Request describes one piece of text to translate.
type Request struct {
	// Text is the source text. Must not be empty.
	Text string

	// From is the ISO 639-1 code of the source language. An empty string
	// lets the backend detect the source language itself, if supported.
	From string

	// To is the ISO 639-1 code of the target language. Must not be empty.
	To string
}

// Provider is the abstraction over any text translation backend.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Translate renders Request.Text in the target language. It blocks
	// until the backend responds or ctx is cancelled.
	Translate(ctx context.Context, req Request) (string, error)
}
