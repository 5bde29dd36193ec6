package state

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestNewDefaultAppState(t *testing.T) {
	st := NewDefaultAppState()
	if st == nil {
		t.Fatal("expected non-nil state")
	}
	if st.StateVersion != 1 {
		t.Errorf("expected StateVersion 1, got %d", st.StateVersion)
	}
	if st.Theme != ThemeDark {
		t.Errorf("expected default theme dark, got %s", st.Theme)
	}
	if st.Token != "" {
		t.Errorf("expected no token by default, got %q", st.Token)
	}
}

func TestDefaultStatePath(t *testing.T) {
	path := DefaultStatePath()
	if path == "" {
		t.Fatal("expected non-empty path")
	}
	if !strings.Contains(path, "equipviz") {
		t.Errorf("expected path to contain 'equipviz', got %s", path)
	}
	if !strings.HasSuffix(path, ".yaml") {
		t.Errorf("expected path to end with .yaml, got %s", path)
	}
}

func TestSaveAppState_LoadAppState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")

	st := NewDefaultAppState()
	st.Token = "tok-round-trip"
	st.Theme = ThemeLight
	st.AppendRecentReport("/tmp/equipment_report.pdf", 5)

	if err := SaveAppState(st, path); err != nil {
		t.Fatalf("failed to save state: %v", err)
	}

	loaded, err := LoadAppState(path)
	if err != nil {
		t.Fatalf("failed to load state: %v", err)
	}
	if loaded.Token != "tok-round-trip" {
		t.Errorf("expected token to round-trip, got %q", loaded.Token)
	}
	if loaded.Theme != ThemeLight {
		t.Errorf("expected theme light, got %s", loaded.Theme)
	}
	if len(loaded.RecentReports) != 1 {
		t.Errorf("expected 1 recent report, got %d", len(loaded.RecentReports))
	}
}

func TestLoadAppState_MissingFileYieldsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.yaml")
	st, err := LoadAppState(path)
	if err != nil {
		t.Fatalf("missing file must not error: %v", err)
	}
	if st.Theme != ThemeDark {
		t.Errorf("expected default theme dark, got %s", st.Theme)
	}
}

func TestNormalizeAppState(t *testing.T) {
	st := &AppState{Theme: "solarized"}
	normalizeAppState(st)
	if st.StateVersion != 1 {
		t.Errorf("expected version backfill, got %d", st.StateVersion)
	}
	if st.Theme != ThemeDark {
		t.Errorf("unknown theme should normalize to dark, got %s", st.Theme)
	}
	if st.LastWindow.Width <= 0 || st.LastWindow.Height <= 0 {
		t.Errorf("expected geometry backfill, got %+v", st.LastWindow)
	}
}

func TestToggleTheme(t *testing.T) {
	st := NewDefaultAppState()
	if got := st.ToggleTheme(); got != ThemeLight {
		t.Errorf("expected light after first toggle, got %s", got)
	}
	if got := st.ToggleTheme(); got != ThemeDark {
		t.Errorf("expected dark after second toggle, got %s", got)
	}
}

func TestAppendRecentReport(t *testing.T) {
	st := NewDefaultAppState()
	st.AppendRecentReport("a.pdf", 2)
	st.AppendRecentReport("b.pdf", 2)
	st.AppendRecentReport("a.pdf", 2) // re-add moves to front
	if len(st.RecentReports) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(st.RecentReports))
	}
	if st.RecentReports[0] != "a.pdf" || st.RecentReports[1] != "b.pdf" {
		t.Errorf("unexpected MRU order: %v", st.RecentReports)
	}
}
