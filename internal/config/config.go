// Package config loads crewdesk settings. Defaults are overlaid by an
// optional YAML file; command-line flags and environment variables are
// applied on top by the caller.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultFileName = "crewdesk.yaml"

type Config struct {
	// ServerURL is the base URL of the crewdesk backend.
	ServerURL string `yaml:"server_url"`

	// PollInterval is the delegated-task polling period.
	PollInterval time.Duration `yaml:"poll_interval"`

	// HTTPTimeout bounds every single request; there are no retries.
	HTTPTimeout time.Duration `yaml:"http_timeout"`

	// LogFile receives structured logs. The terminal belongs to the TUI, so
	// logging to stdout is never an option. Empty disables logging.
	LogFile string `yaml:"log_file"`

	Debug     bool `yaml:"debug"`
	AltScreen bool `yaml:"alt_screen"`
}

func Default() Config {
	return Config{
		ServerURL:    "http://127.0.0.1:8700",
		PollInterval: 3 * time.Second,
		HTTPTimeout:  30 * time.Second,
		LogFile:      "",
		Debug:        false,
		AltScreen:    true,
	}
}

// Load reads path over the defaults. A missing file is not an error; a
// present but unreadable or malformed file is.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg.normalized(), nil
}

// DefaultPath is the per-user config location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultFileName
	}
	return filepath.Join(home, ".config", "crewdesk", DefaultFileName)
}

func (c Config) normalized() Config {
	if c.ServerURL == "" {
		c.ServerURL = Default().ServerURL
	}
	if c.PollInterval <= 0 {
		c.PollInterval = Default().PollInterval
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = Default().HTTPTimeout
	}
	return c
}
