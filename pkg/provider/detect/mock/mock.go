// Package mock provides test doubles for the detect package interfaces.
package mock

import (
	"context"
	"sync"

	"github.com/voxlate/voxlate/pkg/provider/detect"
)

// DetectCall records a single invocation of Provider.Detect.
type DetectCall struct {
	// Ctx is the context passed to Detect.
	Ctx context.Context
	// Text is the text passed to Detect.
	Text string
}

// Provider is a mock implementation of detect.Provider.
type Provider struct {
	mu sync.Mutex

	// Detection is returned from every Detect call unless DetectFunc is set.
	Detection detect.Detection

	// Err, if non-nil, is returned as the error from Detect.
	Err error

	// DetectFunc, if non-nil, computes the result per call and takes
	// precedence over Detection and Err.
	DetectFunc func(text string) (detect.Detection, error)

	// Calls records every call to Detect in order.
	Calls []DetectCall
}

// Detect records the call and returns the configured detection.
func (p *Provider) Detect(ctx context.Context, text string) (detect.Detection, error) {
	p.mu.Lock()
	p.Calls = append(p.Calls, DetectCall{Ctx: ctx, Text: text})
	fn := p.DetectFunc
	d, err := p.Detection, p.Err
	p.mu.Unlock()

	if fn != nil {
		return fn(text)
	}
	return d, err
}

// CallCount returns the number of Detect calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = nil
}

// Ensure Provider implements detect.Provider at compile time.
var _ detect.Provider = (*Provider)(nil)
