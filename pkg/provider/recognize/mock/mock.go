// Package mock provides test doubles for the recognize package interfaces.
//
// Use Provider to feed controlled recognition results and inspect which audio
// frames were submitted.
package mock

import (
	"context"
	"sync"

	"github.com/voxlate/voxlate/pkg/provider/recognize"
)

// RecognizeCall records a single invocation of Provider.Recognize.
type RecognizeCall struct {
	// Ctx is the context passed to Recognize.
	Ctx context.Context
	// Req is a copy of the request, with its own copy of the PCM bytes.
	Req recognize.Request
}

// Provider is a mock implementation of recognize.Provider.
type Provider struct {
	mu sync.Mutex

	// Result is returned from every Recognize call unless ResultFunc is set.
	Result recognize.Result

	// Err, if non-nil, is returned as the error from Recognize.
	Err error

	// ResultFunc, if non-nil, computes the result per call and takes
	// precedence over Result and Err.
	ResultFunc func(req recognize.Request) (recognize.Result, error)

	// Calls records every call to Recognize in order.
	Calls []RecognizeCall
}

// Recognize records the call and returns the configured result.
func (p *Provider) Recognize(ctx context.Context, req recognize.Request) (recognize.Result, error) {
	p.mu.Lock()
	cp := req
	cp.PCM = append([]byte(nil), req.PCM...)
	p.Calls = append(p.Calls, RecognizeCall{Ctx: ctx, Req: cp})
	fn := p.ResultFunc
	res, err := p.Result, p.Err
	p.mu.Unlock()

	if fn != nil {
		return fn(req)
	}
	return res, err
}

// CallCount returns the number of Recognize calls. Thread-safe.
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

// Ensure Provider implements recognize.Provider at compile time.
var _ recognize.Provider = (*Provider)(nil)
