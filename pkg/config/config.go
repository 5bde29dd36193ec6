// Package config loads the optional client configuration file. The service
// origin is fixed by default; the file exists so deployments pointing at a
// staging instance do not need to rebuild the client.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultTimeout bounds each HTTP request when the config file does not
// set one. Front-ends wrap every request in a context with this deadline,
// so it must never be zero.
const DefaultTimeout = 30 * time.Second

// Config is the client configuration (TOML).
type Config struct {
	// BaseURL is the equipment service origin.
	BaseURL string `toml:"baseURL"`

	// Timeout bounds each HTTP request.
	Timeout duration `toml:"timeout"`

	// ReportFile is the default filename for downloaded PDF reports.
	ReportFile string `toml:"reportFile"`
}

// duration lets TOML carry values like "30s".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// RequestTimeout returns the configured per-request timeout, falling back
// to DefaultTimeout when the file left it unset.
func (c *Config) RequestTimeout() time.Duration {
	if c.Timeout.Duration <= 0 {
		return DefaultTimeout
	}
	return c.Timeout.Duration
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		BaseURL:    "http://127.0.0.1:8001",
		Timeout:    duration{DefaultTimeout},
		ReportFile: "equipment_report.pdf",
	}
}

// Load reads a TOML configuration file, applying defaults for missing
// fields. A missing file yields the defaults. The EQUIPVIZ_BASE_URL
// environment variable overrides the configured origin.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultConfigPath()
	}
	data, err := os.ReadFile(filepath.Clean(path))
	switch {
	case errors.Is(err, os.ErrNotExist):
		// keep defaults
	case err != nil:
		return nil, fmt.Errorf("config: read failed: %w", err)
	default:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse failed: %w", err)
		}
	}

	if env := os.Getenv("EQUIPVIZ_BASE_URL"); env != "" {
		cfg.BaseURL = env
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = Default().BaseURL
	}
	if cfg.ReportFile == "" {
		cfg.ReportFile = Default().ReportFile
	}
	if cfg.Timeout.Duration <= 0 {
		cfg.Timeout = duration{DefaultTimeout}
	}
	return cfg, nil
}

// DefaultConfigPath returns the OS-specific default config file location.
func DefaultConfigPath() string {
	if dir, err := os.UserConfigDir(); err == nil && dir != "" {
		return filepath.Join(dir, "equipviz", "config.toml")
	}
	return filepath.Join(".", "equipviz.toml")
}
