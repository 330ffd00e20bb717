// Package config provides the configuration schema and loader for the
// Voxlate caption server.
package config

import (
	"time"

	"github.com/voxlate/voxlate/internal/session"
)

// LogLevel controls log verbosity for the Voxlate server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for Voxlate.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Audio      AudioConfig      `yaml:"audio"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Resilience ResilienceConfig `yaml:"resilience"`
}

// ServerConfig holds network and logging settings for the Voxlate server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// AudioConfig holds frame segmentation settings.
type AudioConfig struct {
	// FrameDuration is the fixed length of each audio frame submitted to
	// the pipeline. Default: 2s. Clamped to [500ms, 10s].
	FrameDuration time.Duration `yaml:"frame_duration"`

	// SampleRate is the expected sample rate of incoming audio in Hz.
	// Default: 16000.
	SampleRate int `yaml:"sample_rate"`
}

// PipelineConfig holds per-frame processing settings.
type PipelineConfig struct {
	// TargetLanguage is the default ISO 639-1 code captions are translated
	// into when the client does not request one. Default: "en".
	TargetLanguage string `yaml:"target_language"`

	// FallbackLanguage is assumed as the source language when detection
	// fails or is unsure. Default: "en".
	FallbackLanguage string `yaml:"fallback_language"`

	// RecognitionLanguage is the BCP-47 tag passed to the recognizer.
	// Default: "en-US".
	RecognitionLanguage string `yaml:"recognition_language"`

	// ConfidenceThreshold is the minimum detection confidence required to
	// trust a detected language, in [0, 1]. Default: 0.7.
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`

	// DetectionCacheTTL is how long identical detection results are reused.
	// Default: 60s.
	DetectionCacheTTL time.Duration `yaml:"detection_cache_ttl"`

	// QueueDepth bounds how many frames may wait behind the in-flight one
	// in each session. Default: 15.
	QueueDepth int `yaml:"queue_depth"`

	// OverflowPolicy selects the behaviour at a full session queue.
	// Default: "drop_oldest".
	OverflowPolicy session.OverflowPolicy `yaml:"overflow_policy"`
}

// ProvidersConfig declares the backends for each pipeline stage.
type ProvidersConfig struct {
	Recognize ProviderEntry `yaml:"recognize"`
	Detect    ProviderEntry `yaml:"detect"`
	Translate ProviderEntry `yaml:"translate"`
}

// ProviderEntry is the common configuration block shared by all provider
// kinds.
type ProviderEntry struct {
	// Name selects the provider implementation (currently "azure" per
	// stage; detection also accepts "none" to disable the stage).
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API. Values of
	// the form ${VAR} are expanded from the environment at load time.
	APIKey string `yaml:"api_key"`

	// Region is the cloud service region (e.g., "westeurope"). Used by
	// providers whose endpoints are regional.
	Region string `yaml:"region"`

	// Endpoint overrides the provider's default API endpoint. Required for
	// backends addressed by resource URL rather than region.
	Endpoint string `yaml:"endpoint"`
}

// ResilienceConfig tunes the per-provider circuit breakers.
type ResilienceConfig struct {
	// MaxFailures is the number of consecutive failures before a breaker
	// opens. Default: 5.
	MaxFailures int `yaml:"max_failures"`

	// ResetTimeout is how long an open breaker waits before probing the
	// backend again. Default: 30s.
	ResetTimeout time.Duration `yaml:"reset_timeout"`
}
