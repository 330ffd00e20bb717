package resilience

import (
	"context"

	"github.com/voxlate/voxlate/pkg/provider/recognize"
)

// RecognizeFallback implements [recognize.Provider] with automatic failover
// across multiple recognition backends. Each backend has its own circuit
// breaker.
type RecognizeFallback struct {
	group *FallbackGroup[recognize.Provider]
}

// Compile-time interface assertion.
var _ recognize.Provider = (*RecognizeFallback)(nil)

// NewRecognizeFallback creates a [RecognizeFallback] with primary as the
// preferred backend.
func NewRecognizeFallback(primary recognize.Provider, primaryName string, cfg FallbackConfig) *RecognizeFallback {
	return &RecognizeFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional recognition provider as a fallback.
func (f *RecognizeFallback) AddFallback(name string, provider recognize.Provider) {
	f.group.AddFallback(name, provider)
}

// Recognize transcribes the frame against the first healthy provider.
func (f *RecognizeFallback) Recognize(ctx context.Context, req recognize.Request) (recognize.Result, error) {
	return ExecuteWithResult(f.group, func(p recognize.Provider) (recognize.Result, error) {
		return p.Recognize(ctx, req)
	})
}
