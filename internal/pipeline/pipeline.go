// Package pipeline implements per-frame caption processing: speech
// recognition, language detection, and translation composed into a single
// Process call.
//
// The pipeline is stateless per frame. Each stage has distinct failure
// semantics: a frame that fails validation or recognition produces a typed
// error, language detection is best-effort and falls back to a configured
// default, and a translation failure still carries the recognized original
// text so callers can decide what to surface.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/voxlate/voxlate/internal/observe"
	"github.com/voxlate/voxlate/pkg/audio"
	"github.com/voxlate/voxlate/pkg/provider/detect"
	"github.com/voxlate/voxlate/pkg/provider/recognize"
	"github.com/voxlate/voxlate/pkg/provider/translate"
)

const (
	// DefaultConfidenceThreshold is the minimum detection confidence below
	// which the fallback language is used instead of the detected one.
	DefaultConfidenceThreshold = 0.7

	// DefaultFallbackLanguage is assumed when detection fails or is unsure.
	DefaultFallbackLanguage = "en"
)

// Caption is the result of processing one audio frame.
type Caption struct {
	// Original is the recognized text in the speaker's language.
	Original string

	// Translated is the text rendered in the target language. Equals
	// Original when the detected language already matches the target.
	Translated string

	// DetectedLanguage is the ISO 639-1 code assumed for the source text.
	// It is the fallback language when detection failed or was unsure.
	DetectedLanguage string

	// TargetLanguage is the ISO 639-1 code the caption was translated to.
	TargetLanguage string
}

// Option is a functional option for configuring a Pipeline.
type Option func(*Pipeline)

// WithMetrics sets the metrics instance used for stage instrumentation.
// Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithConfidenceThreshold sets the minimum detection confidence required to
// trust the detected language. Defaults to 0.7.
func WithConfidenceThreshold(threshold float64) Option {
	return func(p *Pipeline) { p.confidenceThreshold = threshold }
}

// WithFallbackLanguage sets the source language assumed when detection fails
// or is below the confidence threshold. Defaults to "en".
func WithFallbackLanguage(lang string) Option {
	return func(p *Pipeline) { p.fallbackLanguage = lang }
}

// WithRecognitionLanguage sets the BCP-47 tag passed to the recognizer
// (e.g., "en-US"). Defaults to "en-US".
func WithRecognitionLanguage(lang string) Option {
	return func(p *Pipeline) { p.recognitionLanguage = lang }
}

// Pipeline composes the three caption stages over provider interfaces.
//
// Pipeline is safe for concurrent use; a session manager typically shares one
// instance across all sessions.
type Pipeline struct {
	recognizer recognize.Provider
	detector   detect.Provider
	translator translate.Provider

	recognitionLanguage string
	fallbackLanguage    string
	confidenceThreshold float64
	metrics             *observe.Metrics
}

// New constructs a Pipeline over the given providers. recognizer and
// translator must be non-nil. detector may be nil, in which case every frame
// uses the fallback language as its source.
func New(recognizer recognize.Provider, detector detect.Provider, translator translate.Provider, opts ...Option) (*Pipeline, error) {
	if recognizer == nil {
		return nil, errors.New("pipeline: recognizer must not be nil")
	}
	if translator == nil {
		return nil, errors.New("pipeline: translator must not be nil")
	}
	p := &Pipeline{
		recognizer:          recognizer,
		detector:            detector,
		recognitionLanguage: "en-US",
		fallbackLanguage:    DefaultFallbackLanguage,
		confidenceThreshold: DefaultConfidenceThreshold,
		translator:          translator,
	}
	for _, o := range opts {
		o(p)
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	return p, nil
}

// Process runs one frame through recognition, detection, and translation and
// returns the caption in targetLang.
//
// Error semantics per stage:
//   - A frame below the minimum length returns [ErrAudioTooShort] without
//     touching any provider.
//   - A silent frame returns [ErrNoSpeech].
//   - A recognition failure returns a [*RecognitionError].
//   - A detection failure never fails the frame; the fallback language is
//     assumed instead.
//   - A translation failure returns a [*TranslationError] carrying the
//     recognized original text.
func (p *Pipeline) Process(ctx context.Context, frame audio.Frame, targetLang string) (Caption, error) {
	start := time.Now()
	ctx, span := observe.StartSpan(ctx, "pipeline.process",
		trace.WithAttributes(
			attribute.Int("frame.bytes", len(frame.Data)),
			attribute.String("target_language", targetLang),
		),
	)
	defer span.End()

	if len(frame.Data) < audio.MinFrameBytes {
		p.metrics.RecordPipelineError(ctx, "validation")
		return Caption{}, ErrAudioTooShort
	}
	if targetLang == "" {
		targetLang = p.fallbackLanguage
	}

	text, err := p.recognizeStage(ctx, frame)
	if err != nil {
		return Caption{}, err
	}
	if strings.TrimSpace(text) == "" {
		return Caption{}, ErrNoSpeech
	}

	source := p.detectStage(ctx, text)

	translated, err := p.translateStage(ctx, text, source, targetLang)
	if err != nil {
		return Caption{}, err
	}

	p.metrics.PipelineDuration.Record(ctx, time.Since(start).Seconds())
	return Caption{
		Original:         text,
		Translated:       translated,
		DetectedLanguage: source,
		TargetLanguage:   targetLang,
	}, nil
}

func (p *Pipeline) recognizeStage(ctx context.Context, frame audio.Frame) (string, error) {
	start := time.Now()
	res, err := p.recognizer.Recognize(ctx, recognize.Request{
		PCM:        frame.Data,
		SampleRate: frame.SampleRate,
		Language:   p.recognitionLanguage,
	})
	p.metrics.RecognitionDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		p.metrics.RecordPipelineError(ctx, "recognition")
		return "", &RecognitionError{Err: err}
	}
	return res.Text, nil
}

// detectStage determines the source language of text. It never fails: any
// backend error or low-confidence result yields the fallback language.
func (p *Pipeline) detectStage(ctx context.Context, text string) string {
	if p.detector == nil {
		return p.fallbackLanguage
	}

	start := time.Now()
	d, err := p.detector.Detect(ctx, text)
	p.metrics.DetectionDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		p.metrics.RecordPipelineError(ctx, "detection")
		observe.Logger(ctx).Warn("language detection failed, using fallback",
			"fallback", p.fallbackLanguage, "error", err)
		return p.fallbackLanguage
	}
	if d.Language == "" || d.Confidence < p.confidenceThreshold {
		return p.fallbackLanguage
	}
	return d.Language
}

func (p *Pipeline) translateStage(ctx context.Context, text, source, target string) (string, error) {
	// Same language needs no translation; the caption shows the original.
	if strings.EqualFold(source, target) {
		return text, nil
	}

	start := time.Now()
	translated, err := p.translator.Translate(ctx, translate.Request{
		Text: text,
		From: source,
		To:   target,
	})
	p.metrics.TranslationDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		p.metrics.RecordPipelineError(ctx, "translation")
		return "", &TranslationError{Original: text, Err: err}
	}
	return translated, nil
}
