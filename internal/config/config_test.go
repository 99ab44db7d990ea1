package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	def := Default()
	if cfg.APIBaseURL != def.APIBaseURL || cfg.HubURL != def.HubURL {
		t.Fatalf("cfg = %+v, want defaults", cfg)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.yaml")
	body := `
api_base_url: https://api.test
hub_url: wss://api.test/hub
storage_path: /tmp/state.json
log_level: debug
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIBaseURL != "https://api.test" {
		t.Fatalf("api url = %s", cfg.APIBaseURL)
	}
	if cfg.HubURL != "wss://api.test/hub" {
		t.Fatalf("hub url = %s", cfg.HubURL)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("log level = %s", cfg.LogLevel)
	}
	// Unset fields keep their defaults.
	if cfg.MetricsAddr != Default().MetricsAddr {
		t.Fatalf("metrics addr = %s", cfg.MetricsAddr)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.yaml")
	if err := os.WriteFile(path, []byte("api_base_url: https://file.test\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("COMMUNITAS_API_URL", "https://env.test")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIBaseURL != "https://env.test" {
		t.Fatalf("api url = %s, want env override", cfg.APIBaseURL)
	}
}

func TestLoadRejectsBlankRequiredField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.yaml")
	if err := os.WriteFile(path, []byte("api_base_url: \"\"\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for blank api_base_url")
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.yaml")
	if err := os.WriteFile(path, []byte("api_base_url: [unclosed"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}
