package prefs

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	toml "github.com/pelletier/go-toml/v2"
)

// Keys understood by Prefs. Other keys may be stored through Store as well.
const (
	KeyTheme      = "theme"
	KeyCardSize   = "card_size"
	KeyLastCard   = "last_card_size"
	KeyListStyle  = "list_style"
	KeySortOption = "sort_option"
	KeyFolder     = "folder"
	KeyDrawerOpen = "drawer_open"
	KeyDarkMode   = "dark_mode"
	KeyForceSSL   = "force_ssl"
)

// Store is a typed key/value view over the prefs file. Reads coerce the stored
// value to the requested type; writes rewrite the whole file. Last write wins.
type Store struct {
	path string

	mu     sync.RWMutex
	values map[string]any
}

// Open loads the prefs file at path (default path when empty). A missing or
// unreadable file yields an empty store.
func Open(path string) (*Store, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}
	return &Store{path: resolved, values: readValues(resolved)}, nil
}

// Path returns the resolved file path.
func (s *Store) Path() string { return s.path }

// String returns key as a string, or def when unset.
func (s *Store) String(key, def string) string {
	v, ok := s.lookup(key)
	if !ok {
		return def
	}
	switch t := v.(type) {
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return def
	}
}

// Int returns key as an int. Numeric strings and whole floats are accepted;
// anything else yields def.
func (s *Store) Int(key string, def int) int {
	v, ok := s.lookup(key)
	if !ok {
		return def
	}
	switch t := v.(type) {
	case int64:
		return int(t)
	case float64:
		if t == math.Trunc(t) {
			return int(t)
		}
		return int(math.Round(t))
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return int(math.Round(f))
		}
		return def
	default:
		return def
	}
}

// Bool returns key as a bool. "true"/"false" strings and 0/1 are accepted.
func (s *Store) Bool(key string, def bool) bool {
	v, ok := s.lookup(key)
	if !ok {
		return def
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(t)); err == nil {
			return b
		}
		return def
	case int64:
		return t != 0
	default:
		return def
	}
}

// Has reports whether key is stored.
func (s *Store) Has(key string) bool {
	_, ok := s.lookup(key)
	return ok
}

// Set stores value under key and persists the file. Supported values are
// strings, bools and integer or float numbers.
func (s *Store) Set(key string, value any) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("prefs key is empty")
	}
	normalized, err := normalize(value)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.values[key]
	s.values[key] = normalized
	if err := s.persistLocked(); err != nil {
		if had {
			s.values[key] = prev
		} else {
			delete(s.values, key)
		}
		return err
	}
	return nil
}

// Remove deletes key and persists the file.
func (s *Store) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; !ok {
		return nil
	}
	delete(s.values, key)
	return s.persistLocked()
}

// Keys returns the stored keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Prefs returns the typed preference record, filling gaps with defaults.
func (s *Store) Prefs() Prefs {
	def := Defaults()
	p := Prefs{
		Theme:      s.String(KeyTheme, def.Theme),
		CardSize:   s.Int(KeyCardSize, def.CardSize),
		ListStyle:  s.String(KeyListStyle, def.ListStyle),
		SortOption: s.String(KeySortOption, def.SortOption),
		Folder:     s.String(KeyFolder, def.Folder),
		DrawerOpen: s.Bool(KeyDrawerOpen, def.DrawerOpen),
		DarkMode:   s.Bool(KeyDarkMode, def.DarkMode),
		ForceSSL:   s.Bool(KeyForceSSL, def.ForceSSL),
	}
	if strings.TrimSpace(p.Theme) == "" {
		p.Theme = def.Theme
	}
	if p.CardSize <= 0 {
		p.CardSize = def.CardSize
	}
	if p.ListStyle != StyleCard && p.ListStyle != StyleList {
		p.ListStyle = def.ListStyle
	}
	if strings.TrimSpace(p.SortOption) == "" {
		p.SortOption = def.SortOption
	}
	if strings.TrimSpace(p.Folder) == "" {
		p.Folder = def.Folder
	}
	return p
}

func (s *Store) lookup(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *Store) persistLocked() error {
	bytes, err := toml.Marshal(s.values)
	if err != nil {
		return fmt.Errorf("marshal prefs: %w", err)
	}
	return writeFile(s.path, bytes)
}

// normalize maps value onto the types go-toml produces when decoding, so a
// value reads back the same before and after a reload.
func normalize(value any) (any, error) {
	switch t := value.(type) {
	case string:
		return t, nil
	case bool:
		return t, nil
	case int:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case int64:
		return t, nil
	case uint:
		return int64(t), nil
	case float32:
		return float64(t), nil
	case float64:
		return t, nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", value)
	}
}
