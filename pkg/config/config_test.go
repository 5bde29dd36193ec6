package config

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Tarrifer/chemical-equipment-visualizer/pkg/api"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.BaseURL != "http://127.0.0.1:8001" {
		t.Errorf("unexpected default base URL: %s", cfg.BaseURL)
	}
	if cfg.ReportFile != "equipment_report.pdf" {
		t.Errorf("unexpected default report file: %s", cfg.ReportFile)
	}
	if cfg.RequestTimeout() != DefaultTimeout {
		t.Errorf("expected %v default timeout, got %v", DefaultTimeout, cfg.RequestTimeout())
	}
}

func TestRequestTimeoutNeverZero(t *testing.T) {
	var cfg Config
	if cfg.RequestTimeout() <= 0 {
		t.Errorf("zero-value config must still carry a usable timeout, got %v", cfg.RequestTimeout())
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
baseURL = "https://equipment.example.com"
timeout = "45s"
reportFile = "weekly.pdf"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.BaseURL != "https://equipment.example.com" {
		t.Errorf("unexpected base URL: %s", cfg.BaseURL)
	}
	if cfg.RequestTimeout() != 45*time.Second {
		t.Errorf("expected 45s timeout, got %v", cfg.RequestTimeout())
	}
	if cfg.ReportFile != "weekly.pdf" {
		t.Errorf("unexpected report file: %s", cfg.ReportFile)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("missing file must not error: %v", err)
	}
	if cfg.BaseURL != Default().BaseURL {
		t.Errorf("expected default base URL, got %s", cfg.BaseURL)
	}
	if cfg.RequestTimeout() != DefaultTimeout {
		t.Errorf("expected %v timeout backfill, got %v", DefaultTimeout, cfg.RequestTimeout())
	}
}

// A fresh install has no config file; requests bounded by the loaded timeout
// must still reach the service instead of expiring immediately.
func TestFreshInstallTimeoutAllowsRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"token":"tok-1"}`))
	}))
	defer srv.Close()

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout())
	defer cancel()

	client := api.New(api.Config{BaseURL: srv.URL, Timeout: cfg.RequestTimeout()})
	if _, err := client.Login(ctx, "fresh", "install"); err != nil {
		t.Fatalf("login under default timeout failed: %v", err)
	}
}

func TestLoadPartialFileFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`baseURL = "http://10.0.0.5:8001"`), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.BaseURL != "http://10.0.0.5:8001" {
		t.Errorf("unexpected base URL: %s", cfg.BaseURL)
	}
	if cfg.ReportFile != "equipment_report.pdf" {
		t.Errorf("expected default report file backfill, got %s", cfg.ReportFile)
	}
	if cfg.RequestTimeout() != DefaultTimeout {
		t.Errorf("expected default timeout backfill, got %v", cfg.RequestTimeout())
	}
}

func TestLoadInvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("baseURL = ["), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error for invalid TOML")
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("EQUIPVIZ_BASE_URL", "http://override:9000")
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.BaseURL != "http://override:9000" {
		t.Errorf("expected env override, got %s", cfg.BaseURL)
	}
}
