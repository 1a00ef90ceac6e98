package lisan

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lisan.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
provider:
  provider: mock
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Language.Local != "en" {
		t.Fatalf("default local language = %q", cfg.Language.Local)
	}
	if cfg.Connect.MaxAttempts != 3 || cfg.Connect.BackoffMS != 200 {
		t.Fatalf("connect defaults = %+v", cfg.Connect)
	}
	if !cfg.Negotiation.Enabled {
		t.Fatal("negotiation should default to enabled")
	}
	if cfg.Recording.Enabled {
		t.Fatal("recording should default to disabled")
	}
}

func TestLoadConfigExpandsEnv(t *testing.T) {
	t.Setenv("LISAN_TEST_KEY", "sk-secret")
	path := writeConfig(t, `
language:
  local: es
provider:
  provider: openairt
  settings:
    api_key: ${LISAN_TEST_KEY}
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if got := cfg.Provider.Settings["api_key"]; got != "sk-secret" {
		t.Fatalf("api_key = %v, want expanded env value", got)
	}
	if cfg.Language.Local != "es" {
		t.Fatalf("local language = %q", cfg.Language.Local)
	}
}

func TestLoadConfigRejectsMissingProvider(t *testing.T) {
	path := writeConfig(t, `
provider:
  provider: ""
`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadConfigRejectsRecordingWithoutDir(t *testing.T) {
	path := writeConfig(t, `
provider:
  provider: mock
recording:
  enabled: true
  dir: ""
`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestProviderRegistryUnknownName(t *testing.T) {
	if _, err := DefaultRegistry().Build("unknown", nil); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestProviderRegistryBuildsMock(t *testing.T) {
	p, err := DefaultRegistry().Build("Mock", map[string]any{"frames_per_turn": 3})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if p.Name() == "" {
		t.Fatal("provider name empty")
	}
}
