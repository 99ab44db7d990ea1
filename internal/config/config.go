// Package config loads client configuration from a YAML file with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds everything the client runtime needs to start.
type Config struct {
	// APIBaseURL is the platform REST API root.
	APIBaseURL string `yaml:"api_base_url"`

	// HubURL is the realtime notification hub endpoint.
	HubURL string `yaml:"hub_url"`

	// StoragePath is where the session record is persisted.
	StoragePath string `yaml:"storage_path"`

	// MetricsAddr is the listen address for /metrics and /healthz.
	MetricsAddr string `yaml:"metrics_addr"`

	// LogLevel is a logrus level name.
	LogLevel string `yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() Config {
	home, _ := os.UserHomeDir()
	return Config{
		APIBaseURL:  "https://api.communitas.app",
		HubURL:      "wss://api.communitas.app/hub/notifications",
		StoragePath: filepath.Join(home, ".communitas", "state.json"),
		MetricsAddr: "127.0.0.1:9174",
		LogLevel:    "info",
	}
}

// Load reads the YAML file at path, applies environment overrides, and
// validates. A missing file is not an error: defaults plus environment
// apply.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Defaults only.
	case err != nil:
		return Config{}, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	overrides := map[string]*string{
		"COMMUNITAS_API_URL":      &c.APIBaseURL,
		"COMMUNITAS_HUB_URL":      &c.HubURL,
		"COMMUNITAS_STORAGE_PATH": &c.StoragePath,
		"COMMUNITAS_METRICS_ADDR": &c.MetricsAddr,
		"COMMUNITAS_LOG_LEVEL":    &c.LogLevel,
	}
	for name, target := range overrides {
		if v := os.Getenv(name); v != "" {
			*target = v
		}
	}
}

func (c *Config) validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("config: api_base_url is required")
	}
	if c.HubURL == "" {
		return fmt.Errorf("config: hub_url is required")
	}
	if c.StoragePath == "" {
		return fmt.Errorf("config: storage_path is required")
	}
	return nil
}
