package resilience

import (
	"context"

	"github.com/voxlate/voxlate/pkg/provider/detect"
)

// DetectFallback implements [detect.Provider] with automatic failover across
// multiple detection backends. Each backend has its own circuit breaker.
//
// Detection is already best-effort at the pipeline level; the breaker here
// keeps a flapping backend from adding its timeout to every frame.
type DetectFallback struct {
	group *FallbackGroup[detect.Provider]
}

// Compile-time interface assertion.
var _ detect.Provider = (*DetectFallback)(nil)

// NewDetectFallback creates a [DetectFallback] with primary as the preferred
// backend.
func NewDetectFallback(primary detect.Provider, primaryName string, cfg FallbackConfig) *DetectFallback {
	return &DetectFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional detection provider as a fallback.
func (f *DetectFallback) AddFallback(name string, provider detect.Provider) {
	f.group.AddFallback(name, provider)
}

// Detect determines the language of text against the first healthy provider.
func (f *DetectFallback) Detect(ctx context.Context, text string) (detect.Detection, error) {
	return ExecuteWithResult(f.group, func(p detect.Provider) (detect.Detection, error) {
		return p.Detect(ctx, text)
	})
}
