package prefs

import (
	"os"
	"path/filepath"
	"testing"
)

func openPrefs(t *testing.T, path string) Prefs {
	t.Helper()
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	return s.Prefs()
}

func TestOpen_MissingFileUsesDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	p := openPrefs(t, "")
	if p != Defaults() {
		t.Fatalf("Prefs = %#v, want defaults %#v", p, Defaults())
	}
}

func TestOpen_ReadsExistingFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	prefsDir := filepath.Join(home, ".config", "ember")
	if err := os.MkdirAll(prefsDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	content := "theme = \"Slate\"\ncard_size = 420\nlist_style = \"list\"\ndrawer_open = false\n"
	prefsFile := filepath.Join(prefsDir, "prefs.toml")
	if err := os.WriteFile(prefsFile, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	p := openPrefs(t, "")
	if p.Theme != "Slate" || p.CardSize != 420 || p.ListStyle != StyleList || p.DrawerOpen {
		t.Fatalf("Prefs = %#v", p)
	}
	if p.SortOption != defaultSort {
		t.Fatalf("SortOption = %q, want default %q", p.SortOption, defaultSort)
	}
}

func TestOpen_EmptyValuesFallBackToDefaults(t *testing.T) {
	tmp := t.TempDir()
	prefsFile := filepath.Join(tmp, "prefs.toml")
	content := "theme = \"\"\ncard_size = 0\nlist_style = \"grid\"\n"
	if err := os.WriteFile(prefsFile, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	p := openPrefs(t, prefsFile)
	if p.Theme != defaultTheme || p.CardSize != defaultCardSize || p.ListStyle != StyleCard {
		t.Fatalf("Prefs = %#v, want defaults for empty values", p)
	}
}

func TestOpen_InvalidTOMLFallsBackToDefault(t *testing.T) {
	tmp := t.TempDir()
	prefsFile := filepath.Join(tmp, "prefs.toml")
	if err := os.WriteFile(prefsFile, []byte("not valid toml {{{\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	p := openPrefs(t, prefsFile)
	if p.Theme != defaultTheme {
		t.Fatalf("Theme = %q, want %q", p.Theme, defaultTheme)
	}
}

func TestStore_RoundTripPreservesType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.toml")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}

	if err := s.Set(KeyCardSize, 300); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if err := s.Set(KeyDrawerOpen, false); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if err := s.Set(KeySortOption, "views desc"); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	check := func(name string, s *Store) {
		t.Helper()
		if got := s.Int(KeyCardSize, -1); got != 300 {
			t.Fatalf("%s: Int(card_size) = %d, want 300", name, got)
		}
		if raw, _ := s.lookup(KeyCardSize); raw != int64(300) {
			t.Fatalf("%s: card_size stored as %T(%v), want int64", name, raw, raw)
		}
		if got := s.Bool(KeyDrawerOpen, true); got {
			t.Fatalf("%s: Bool(drawer_open) = true, want false", name)
		}
		if got := s.String(KeySortOption, ""); got != "views desc" {
			t.Fatalf("%s: String(sort_option) = %q", name, got)
		}
	}
	check("in memory", s)

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	check("reloaded", reopened)
}

func TestStore_Coercion(t *testing.T) {
	tmp := t.TempDir()
	prefsFile := filepath.Join(tmp, "prefs.toml")
	content := "card_size = \"250\"\nlast_card_size = 199.6\ndark_mode = \"false\"\nforce_ssl = 1\ntheme = 7\n"
	if err := os.WriteFile(prefsFile, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	s, err := Open(prefsFile)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}

	if got := s.Int(KeyCardSize, 0); got != 250 {
		t.Fatalf("Int from string = %d, want 250", got)
	}
	if got := s.Int(KeyLastCard, 0); got != 200 {
		t.Fatalf("Int from float = %d, want 200", got)
	}
	if got := s.Bool(KeyDarkMode, true); got {
		t.Fatalf("Bool from string = true, want false")
	}
	if got := s.Bool(KeyForceSSL, false); !got {
		t.Fatalf("Bool from int = false, want true")
	}
	if got := s.String(KeyTheme, ""); got != "7" {
		t.Fatalf("String from int = %q, want 7", got)
	}
	if got := s.Int("missing", 42); got != 42 {
		t.Fatalf("Int default = %d, want 42", got)
	}
	if got := s.Int(KeyDarkMode, 5); got != 5 {
		t.Fatalf("Int from non-numeric string = %d, want default 5", got)
	}
}

func TestStore_RemoveAndUnsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.toml")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	if err := s.Set(KeyFolder, "GameA"); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if err := s.Set(KeyFolder, []string{"nope"}); err == nil {
		t.Fatalf("Set with slice returned nil error")
	}
	if got := s.String(KeyFolder, ""); got != "GameA" {
		t.Fatalf("failed Set changed value to %q", got)
	}
	if err := s.Set(" ", "x"); err == nil {
		t.Fatalf("Set with empty key returned nil error")
	}

	if err := s.Remove(KeyFolder); err != nil {
		t.Fatalf("Remove returned error: %v", err)
	}
	if s.Has(KeyFolder) {
		t.Fatalf("key still present after Remove")
	}
	if err := s.Remove("never-set"); err != nil {
		t.Fatalf("Remove of missing key returned error: %v", err)
	}

	reopened, _ := Open(path)
	if reopened.Has(KeyFolder) {
		t.Fatalf("Remove was not persisted")
	}
	if got := reopened.Prefs().Folder; got != defaultFolder {
		t.Fatalf("Folder = %q, want default", got)
	}
}
