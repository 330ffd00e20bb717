package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; provider and
// server changes require a restart and are reported as such.
type ConfigDiff struct {
	// LogLevelChanged is true when server.log_level changed. Applying it
	// is always safe.
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// QueueChanged is true when pipeline.queue_depth or
	// pipeline.overflow_policy changed. Applies to sessions created after
	// the reload; live sessions keep their settings.
	QueueChanged bool

	// LanguagesChanged is true when the default target, fallback, or
	// recognition language changed. Applies to sessions created after the
	// reload.
	LanguagesChanged bool

	// RestartRequired is true when server, audio, provider, or resilience
	// settings changed. These cannot be hot-reloaded.
	RestartRequired bool
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Pipeline.QueueDepth != new.Pipeline.QueueDepth ||
		old.Pipeline.OverflowPolicy != new.Pipeline.OverflowPolicy {
		d.QueueChanged = true
	}

	if old.Pipeline.TargetLanguage != new.Pipeline.TargetLanguage ||
		old.Pipeline.FallbackLanguage != new.Pipeline.FallbackLanguage ||
		old.Pipeline.RecognitionLanguage != new.Pipeline.RecognitionLanguage {
		d.LanguagesChanged = true
	}

	if old.Server.ListenAddr != new.Server.ListenAddr ||
		old.Providers != new.Providers ||
		old.Audio != new.Audio ||
		old.Resilience != new.Resilience {
		d.RestartRequired = true
	}

	return d
}
