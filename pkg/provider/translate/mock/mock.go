// Package mock provides test doubles for the translate package interfaces.
package mock

import (
	"context"
	"sync"

	"github.com/voxlate/voxlate/pkg/provider/translate"
)

// TranslateCall records a single invocation of Provider.Translate.
type TranslateCall struct {
	// Ctx is the context passed to Translate.
	Ctx context.Context
	// Req is the request passed to Translate.
	Req translate.Request
}

// Provider is a mock implementation of translate.Provider.
type Provider struct {
	mu sync.Mutex

	// Text is returned from every Translate call unless TranslateFunc is set.
	Text string

	// Err, if non-nil, is returned as the error from Translate.
	Err error

	// TranslateFunc, if non-nil, computes the result per call and takes
	// precedence over Text and Err.
	TranslateFunc func(req translate.Request) (string, error)

	// Calls records every call to Translate in order.
	Calls []TranslateCall
}

// Translate records the call and returns the configured text.
func (p *Provider) Translate(ctx context.Context, req translate.Request) (string, error) {
	p.mu.Lock()
	p.Calls = append(p.Calls, TranslateCall{Ctx: ctx, Req: req})
	fn := p.TranslateFunc
	text, err := p.Text, p.Err
	p.mu.Unlock()

	if fn != nil {
		return fn(req)
	}
	return text, err
}

// CallCount returns the number of Translate calls. Thread-safe.
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

// Ensure Provider implements translate.Provider at compile time.
var _ translate.Provider = (*Provider)(nil)
