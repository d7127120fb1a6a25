// Package prefs handles ember user preferences persistence.
// Preferences are stored in ~/.config/ember/prefs.toml.
package prefs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// Prefs holds user preferences for ember.
type Prefs struct {
	Theme      string `toml:"theme"`
	CardSize   int    `toml:"card_size"`
	ListStyle  string `toml:"list_style"`
	SortOption string `toml:"sort_option"`
	Folder     string `toml:"folder"`
	DrawerOpen bool   `toml:"drawer_open"`
	DarkMode   bool   `toml:"dark_mode"`
	ForceSSL   bool   `toml:"force_ssl"`
}

// List styles.
const (
	StyleCard = "card"
	StyleList = "list"
)

const (
	defaultPrefsPath = "~/.config/ember/prefs.toml"
	defaultTheme     = "Dracula"
	defaultCardSize  = 300
	defaultSort      = "updated_at desc"
	defaultFolder    = "All Videos"
)

// Defaults returns the preferences used when nothing is stored.
func Defaults() Prefs {
	return Prefs{
		Theme:      defaultTheme,
		CardSize:   defaultCardSize,
		ListStyle:  StyleCard,
		SortOption: defaultSort,
		Folder:     defaultFolder,
		DrawerOpen: true,
		DarkMode:   true,
	}
}

// DefaultPath returns the default preferences file path.
func DefaultPath() string {
	return defaultPrefsPath
}

func readValues(resolved string) map[string]any {
	values := map[string]any{}
	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return values
		}
		return values // Graceful degradation
	}
	defer func() { _ = file.Close() }()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return values // Graceful degradation
	}
	if err := toml.Unmarshal(bytes, &values); err != nil {
		return map[string]any{} // Graceful degradation
	}
	return values
}

func writeFile(resolved string, bytes []byte) error {
	dir := filepath.Dir(resolved)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}
	tmp := resolved + ".tmp"
	if err := os.WriteFile(tmp, bytes, 0o644); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	if err := os.Rename(tmp, resolved); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	return nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultPrefsPath)
	}
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
