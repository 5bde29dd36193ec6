// Package state provides persisted application state for the equipment
// visualizer front-ends: the auth token, the theme preference, and a few
// GUI conveniences. State lives in a single YAML document under the user
// config directory and is written atomically.
package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Theme values persisted in AppState. The default is dark.
const (
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// AppState is the full persisted client state (YAML).
type AppState struct {
	StateVersion int       `yaml:"stateVersion"`
	SavedAt      time.Time `yaml:"savedAt"`

	// Token is the bearer credential from the last successful login.
	// Empty means logged out.
	Token string `yaml:"token,omitempty"`

	// Theme is "dark" or "light".
	Theme string `yaml:"theme"`

	LastWindow WindowGeometry `yaml:"lastWindow"`

	// RecentReports holds paths of recently saved PDF reports (MRU order).
	RecentReports []string `yaml:"recentReports,omitempty"`
}

// WindowGeometry tracks the last GUI window geometry.
type WindowGeometry struct {
	Width     int  `yaml:"width"`
	Height    int  `yaml:"height"`
	Maximized bool `yaml:"maximized"`
}

// NewDefaultAppState creates an initialized AppState with defaults.
func NewDefaultAppState() *AppState {
	return &AppState{
		StateVersion: 1,
		SavedAt:      time.Now().UTC(),
		Theme:        ThemeDark,
		LastWindow:   WindowGeometry{Width: 1000, Height: 680},
	}
}

// LoadAppState loads state from disk. A missing file yields defaults.
func LoadAppState(path string) (*AppState, error) {
	if path == "" {
		path = DefaultStatePath()
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewDefaultAppState(), nil
		}
		return nil, fmt.Errorf("state: read failed: %w", err)
	}
	var st AppState
	if err := yaml.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("state: parse failed: %w", err)
	}
	normalizeAppState(&st)
	return &st, nil
}

// SaveAppState persists the state atomically to disk.
func SaveAppState(st *AppState, path string) error {
	if st == nil {
		return errors.New("state: nil AppState")
	}
	if path == "" {
		path = DefaultStatePath()
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("state: mkdir failed: %w", err)
	}
	st.SavedAt = time.Now().UTC()

	out, err := yaml.Marshal(st)
	if err != nil {
		return fmt.Errorf("state: marshal failed: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".app_state.tmp-*")
	if err != nil {
		return fmt.Errorf("state: temp create failed: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(out); err != nil {
		return fmt.Errorf("state: temp write failed: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		return fmt.Errorf("state: chmod failed: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("state: sync failed: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("state: atomic rename failed: %w", err)
	}
	return nil
}

// DefaultStatePath returns the OS-specific default path for client state.
func DefaultStatePath() string {
	return filepath.Join(userConfigDir(), "equipviz", "state.yaml")
}

// userConfigDir resolves a configuration directory in a portable way.
func userConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil && dir != "" {
		return dir
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, ".config")
	}
	return "."
}

// normalizeAppState ensures invariants and fills defaults after load.
func normalizeAppState(st *AppState) {
	if st.StateVersion <= 0 {
		st.StateVersion = 1
	}
	if st.Theme != ThemeLight && st.Theme != ThemeDark {
		st.Theme = ThemeDark
	}
	if st.LastWindow.Width <= 0 {
		st.LastWindow.Width = 1000
	}
	if st.LastWindow.Height <= 0 {
		st.LastWindow.Height = 680
	}
}

// ToggleTheme flips the persisted theme and returns the new value.
func (s *AppState) ToggleTheme() string {
	if s.Theme == ThemeDark {
		s.Theme = ThemeLight
	} else {
		s.Theme = ThemeDark
	}
	return s.Theme
}

// AppendRecentReport adds a saved report path to the MRU list (de-duped,
// size-limited).
func (s *AppState) AppendRecentReport(p string, maxItems int) {
	if p == "" {
		return
	}
	filtered := make([]string, 0, len(s.RecentReports)+1)
	for _, existing := range s.RecentReports {
		if existing != p {
			filtered = append(filtered, existing)
		}
	}
	s.RecentReports = append([]string{p}, filtered...)
	if maxItems > 0 && len(s.RecentReports) > maxItems {
		s.RecentReports = s.RecentReports[:maxItems]
	}
}
