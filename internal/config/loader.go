package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/voxlate/voxlate/pkg/audio"
)

// ValidProviderNames lists known provider names per pipeline stage.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"recognize": {"azure"},
	"detect":    {"azure", "none"},
	"translate": {"azure"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, expands ${VAR} references in
// credential fields, applies defaults, and validates the result. Useful in
// tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}

	expandCredentials(cfg)
	applyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// expandCredentials resolves ${VAR} environment references in API key fields
// so secrets can stay out of the config file.
func expandCredentials(cfg *Config) {
	cfg.Providers.Recognize.APIKey = os.ExpandEnv(cfg.Providers.Recognize.APIKey)
	cfg.Providers.Detect.APIKey = os.ExpandEnv(cfg.Providers.Detect.APIKey)
	cfg.Providers.Translate.APIKey = os.ExpandEnv(cfg.Providers.Translate.APIKey)
}

// applyDefaults fills zero-valued fields with their documented defaults.
func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Audio.FrameDuration <= 0 {
		cfg.Audio.FrameDuration = audio.DefaultFrameDuration
	}
	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = audio.SampleRate
	}
	if cfg.Pipeline.TargetLanguage == "" {
		cfg.Pipeline.TargetLanguage = "en"
	}
	if cfg.Pipeline.FallbackLanguage == "" {
		cfg.Pipeline.FallbackLanguage = "en"
	}
	if cfg.Pipeline.RecognitionLanguage == "" {
		cfg.Pipeline.RecognitionLanguage = "en-US"
	}
	if cfg.Pipeline.ConfidenceThreshold <= 0 {
		cfg.Pipeline.ConfidenceThreshold = 0.7
	}
	if cfg.Pipeline.DetectionCacheTTL <= 0 {
		cfg.Pipeline.DetectionCacheTTL = 60 * time.Second
	}
	if cfg.Pipeline.QueueDepth <= 0 {
		cfg.Pipeline.QueueDepth = 15
	}
	if cfg.Pipeline.OverflowPolicy == "" {
		cfg.Pipeline.OverflowPolicy = "drop_oldest"
	}
	if cfg.Resilience.MaxFailures <= 0 {
		cfg.Resilience.MaxFailures = 5
	}
	if cfg.Resilience.ResetTimeout <= 0 {
		cfg.Resilience.ResetTimeout = 30 * time.Second
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Audio
	if cfg.Audio.SampleRate != audio.SampleRate {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d is unsupported; recognition requires %d Hz", cfg.Audio.SampleRate, audio.SampleRate))
	}

	// Pipeline
	if cfg.Pipeline.ConfidenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("pipeline.confidence_threshold %.2f is out of range (0, 1]", cfg.Pipeline.ConfidenceThreshold))
	}
	if !cfg.Pipeline.OverflowPolicy.IsValid() {
		errs = append(errs, fmt.Errorf("pipeline.overflow_policy %q is invalid; valid values: drop_oldest, reject_newest", cfg.Pipeline.OverflowPolicy))
	}

	// Providers
	validateProviderName("recognize", cfg.Providers.Recognize.Name)
	validateProviderName("detect", cfg.Providers.Detect.Name)
	validateProviderName("translate", cfg.Providers.Translate.Name)

	if cfg.Providers.Recognize.Name == "azure" {
		if cfg.Providers.Recognize.APIKey == "" {
			errs = append(errs, errors.New("providers.recognize.api_key is required for the azure backend"))
		}
		if cfg.Providers.Recognize.Region == "" {
			errs = append(errs, errors.New("providers.recognize.region is required for the azure backend"))
		}
	}
	if cfg.Providers.Detect.Name == "azure" {
		if cfg.Providers.Detect.APIKey == "" {
			errs = append(errs, errors.New("providers.detect.api_key is required for the azure backend"))
		}
		if cfg.Providers.Detect.Endpoint == "" {
			errs = append(errs, errors.New("providers.detect.endpoint is required for the azure backend"))
		}
	}
	if cfg.Providers.Translate.Name == "azure" {
		if cfg.Providers.Translate.APIKey == "" {
			errs = append(errs, errors.New("providers.translate.api_key is required for the azure backend"))
		}
		if cfg.Providers.Translate.Region == "" {
			errs = append(errs, errors.New("providers.translate.region is required for the azure backend"))
		}
	}
	if cfg.Providers.Detect.Name == "" || cfg.Providers.Detect.Name == "none" {
		slog.Warn("no detection provider configured; every caption will assume the fallback source language",
			"fallback", cfg.Pipeline.FallbackLanguage)
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given stage.
func validateProviderName(stage, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[stage]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"stage", stage,
		"name", name,
		"known", known,
	)
}

// SlogLevel converts a [LogLevel] to its slog equivalent.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
