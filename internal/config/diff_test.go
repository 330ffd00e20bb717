package config_test

import (
	"strings"
	"testing"

	"github.com/voxlate/voxlate/internal/config"
)

func loadYAML(t *testing.T, yaml string) *config.Config {
	t.Helper()
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	return cfg
}

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()

	a := loadYAML(t, validYAML)
	b := loadYAML(t, validYAML)

	d := config.Diff(a, b)
	if d.LogLevelChanged || d.QueueChanged || d.LanguagesChanged || d.RestartRequired {
		t.Errorf("expected empty diff, got %+v", d)
	}
}

func TestDiff_LogLevelChange(t *testing.T) {
	t.Parallel()

	a := loadYAML(t, validYAML)
	b := loadYAML(t, strings.Replace(validYAML, "log_level: debug", "log_level: warn", 1))

	d := config.Diff(a, b)
	if !d.LogLevelChanged {
		t.Fatal("LogLevelChanged = false, want true")
	}
	if d.NewLogLevel != config.LogWarn {
		t.Errorf("NewLogLevel = %q, want warn", d.NewLogLevel)
	}
	if d.RestartRequired {
		t.Error("log level change must not require a restart")
	}
}

func TestDiff_QueueChange(t *testing.T) {
	t.Parallel()

	a := loadYAML(t, validYAML)
	b := loadYAML(t, strings.Replace(validYAML, "queue_depth: 10", "queue_depth: 20", 1))

	d := config.Diff(a, b)
	if !d.QueueChanged {
		t.Error("QueueChanged = false, want true")
	}
	if d.RestartRequired {
		t.Error("queue change must not require a restart")
	}
}

func TestDiff_LanguageChange(t *testing.T) {
	t.Parallel()

	a := loadYAML(t, validYAML)
	b := loadYAML(t, strings.Replace(validYAML, "target_language: fr", "target_language: de", 1))

	d := config.Diff(a, b)
	if !d.LanguagesChanged {
		t.Error("LanguagesChanged = false, want true")
	}
}

func TestDiff_ProviderChangeRequiresRestart(t *testing.T) {
	t.Parallel()

	a := loadYAML(t, validYAML)
	b := loadYAML(t, strings.Replace(validYAML, "region: westeurope", "region: eastus", 1))

	d := config.Diff(a, b)
	if !d.RestartRequired {
		t.Error("RestartRequired = false, want true")
	}
}

func TestDiff_ListenAddrChangeRequiresRestart(t *testing.T) {
	t.Parallel()

	a := loadYAML(t, validYAML)
	b := loadYAML(t, strings.Replace(validYAML, `listen_addr: ":9090"`, `listen_addr: ":9091"`, 1))

	d := config.Diff(a, b)
	if !d.RestartRequired {
		t.Error("RestartRequired = false, want true")
	}
}
