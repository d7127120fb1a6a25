package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

// Config captures what ember needs to reach a Fireshare server.
type Config struct {
	ServerURL          string
	Username           string
	Password           string
	DataDir            string
	PollInterval       time.Duration
	ProcessingInterval time.Duration
	ProcessingTimeout  time.Duration
}

// Environment overrides.
const (
	EnvServerURL = "EMBER_SERVER_URL"
	EnvUsername  = "EMBER_USERNAME"
	EnvPassword  = "EMBER_PASSWORD"
)

const (
	defaultConfigPath         = "~/.config/ember/config.toml"
	defaultDataDir            = "~/.local/share/ember"
	defaultServerURL          = "http://127.0.0.1:8080"
	defaultPollInterval       = 10 * time.Second
	defaultProcessingInterval = 3 * time.Second
	defaultProcessingTimeout  = 30 * time.Minute
)

// Load locates and parses the ember config, falling back to defaults when
// missing. A .env file next to the config file, then the process environment,
// override the server URL and credentials.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		ServerURL:          defaultServerURL,
		DataDir:            defaultDataDir,
		PollInterval:       defaultPollInterval,
		ProcessingInterval: defaultProcessingInterval,
		ProcessingTimeout:  defaultProcessingTimeout,
	}

	raw, err := readRaw(resolved)
	if err != nil {
		return Config{}, err
	}

	if v := strings.TrimSpace(raw.ServerURL); v != "" {
		cfg.ServerURL = v
	}
	cfg.Username = strings.TrimSpace(raw.Username)
	if v := strings.TrimSpace(raw.DataDir); v != "" {
		cfg.DataDir = v
	}
	if cfg.PollInterval, err = parseInterval("poll_interval", raw.PollInterval, defaultPollInterval); err != nil {
		return Config{}, err
	}
	if cfg.ProcessingInterval, err = parseInterval("processing_interval", raw.ProcessingInterval, defaultProcessingInterval); err != nil {
		return Config{}, err
	}
	if cfg.ProcessingTimeout, err = parseInterval("processing_timeout", raw.ProcessingTimeout, defaultProcessingTimeout); err != nil {
		return Config{}, err
	}

	env := envLookup(filepath.Join(filepath.Dir(resolved), ".env"))
	if v, ok := env(EnvServerURL); ok {
		cfg.ServerURL = v
	}
	if v, ok := env(EnvUsername); ok {
		cfg.Username = v
	}
	if v, ok := env(EnvPassword); ok {
		cfg.Password = v
	}

	cfg.DataDir = mustExpand(cfg.DataDir)
	return cfg, nil
}

type rawConfig struct {
	ServerURL          string `toml:"server_url"`
	Username           string `toml:"username"`
	DataDir            string `toml:"data_dir"`
	PollInterval       string `toml:"poll_interval"`
	ProcessingInterval string `toml:"processing_interval"`
	ProcessingTimeout  string `toml:"processing_timeout"`
}

func readRaw(resolved string) (rawConfig, error) {
	var raw rawConfig
	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return raw, nil
		}
		return raw, fmt.Errorf("open config: %w", err)
	}
	defer func() { _ = file.Close() }()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return raw, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return raw, fmt.Errorf("parse config: %w", err)
	}
	return raw, nil
}

// envLookup prefers the process environment over the .env file. Empty values
// count as unset.
func envLookup(dotenvPath string) func(string) (string, bool) {
	fileVars, err := godotenv.Read(dotenvPath)
	if err != nil {
		fileVars = map[string]string{}
	}
	return func(key string) (string, bool) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v, true
		}
		if v := strings.TrimSpace(fileVars[key]); v != "" {
			return v, true
		}
		return "", false
	}
}

// parseInterval accepts Go durations ("3s", "1m30s") or bare seconds ("5").
func parseInterval(field, value string, def time.Duration) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return def, nil
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs <= 0 {
			return def, nil
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("parse config: %s: %w", field, err)
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}

// HasCredentials reports whether ember should log in before listing videos.
func (c Config) HasCredentials() bool {
	return strings.TrimSpace(c.Username) != "" && c.Password != ""
}

// LogPath returns the path of ember's own log file.
func (c Config) LogPath() string {
	return filepath.Join(c.dataDir(), "ember.log")
}

// CachePath returns the path of the response cache database.
func (c Config) CachePath() string {
	return filepath.Join(c.dataDir(), "cache.db")
}

func (c Config) dataDir() string {
	if strings.TrimSpace(c.DataDir) == "" {
		return mustExpand(defaultDataDir)
	}
	return c.DataDir
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
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
