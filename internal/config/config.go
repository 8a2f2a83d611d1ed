// ABOUTME: YAML configuration for the monthcal server and CLI.
// ABOUTME: Loads defaults on first run, applies .env and environment overrides, and saves atomically.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	StorageSQLite   = "sqlite"
	StorageJSON     = "json"
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// StorageKinds lists every accepted storage value.
var StorageKinds = []string{StorageSQLite, StorageJSON, StoragePostgres, StorageMemory}

const (
	defaultListen   = "127.0.0.1:9000"
	defaultLogLevel = "info"
	defaultModel    = "gpt-5-mini"
	appDir          = "monthcal"
)

// SnapshotConfig schedules periodic month exports. An empty Cron disables them.
type SnapshotConfig struct {
	Cron   string `yaml:"cron" json:"cron"`
	Dir    string `yaml:"dir" json:"dir"`
	Format string `yaml:"format" json:"format"`
}

// OpenAIConfig enables AI-generated seed events.
type OpenAIConfig struct {
	APIKey string `yaml:"api_key,omitempty" json:"-"`
	Model  string `yaml:"model" json:"model"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" json:"listen"`

	// Storage selects the persister: sqlite, json, postgres or memory.
	Storage string `yaml:"storage" json:"storage"`

	DBPath      string `yaml:"db_path" json:"db_path"`
	JSONPath    string `yaml:"json_path" json:"json_path"`
	PostgresURL string `yaml:"postgres_url,omitempty" json:"-"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	// APIToken, when set, is required as a bearer token on /api routes.
	APIToken string `yaml:"api_token,omitempty" json:"-"`

	Snapshot SnapshotConfig `yaml:"snapshot" json:"snapshot"`
	OpenAI   OpenAIConfig   `yaml:"openai" json:"openai"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	c := &Config{}
	c.Normalize()
	return c
}

// Normalize fills in missing values with defaults.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	c.Storage = strings.ToLower(strings.TrimSpace(c.Storage))
	if c.Storage == "" {
		c.Storage = StorageSQLite
	}
	if c.DBPath == "" {
		c.DBPath = filepath.Join(DataDir(), "monthcal.db")
	}
	if c.JSONPath == "" {
		c.JSONPath = filepath.Join(DataDir(), "events.json")
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.Snapshot.Dir == "" {
		c.Snapshot.Dir = filepath.Join(DataDir(), "snapshots")
	}
	switch c.Snapshot.Format {
	case "json", "ics":
	default:
		c.Snapshot.Format = "json"
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = defaultModel
	}
}

// Validate reports configuration that cannot be used.
func (c *Config) Validate() error {
	valid := false
	for _, k := range StorageKinds {
		if c.Storage == k {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("unknown storage %q (want one of %s)", c.Storage, strings.Join(StorageKinds, ", "))
	}
	if c.Storage == StoragePostgres && c.PostgresURL == "" {
		return errors.New("postgres storage requires postgres_url or MONTHCAL_POSTGRES_URL")
	}
	if c.Storage == StorageSQLite {
		if _, err := ValidatePath(c.DBPath); err != nil {
			return err
		}
	}
	return nil
}

// envOverrides maps environment variables onto config fields.
var envOverrides = map[string]func(*Config, string){
	"MONTHCAL_LISTEN":        func(c *Config, v string) { c.Listen = v },
	"MONTHCAL_STORAGE":       func(c *Config, v string) { c.Storage = v },
	"MONTHCAL_DB_PATH":       func(c *Config, v string) { c.DBPath = v },
	"MONTHCAL_JSON_PATH":     func(c *Config, v string) { c.JSONPath = v },
	"MONTHCAL_POSTGRES_URL":  func(c *Config, v string) { c.PostgresURL = v },
	"MONTHCAL_LOG_LEVEL":     func(c *Config, v string) { c.LogLevel = v },
	"MONTHCAL_API_TOKEN":     func(c *Config, v string) { c.APIToken = v },
	"MONTHCAL_SNAPSHOT_CRON": func(c *Config, v string) { c.Snapshot.Cron = v },
	"MONTHCAL_SNAPSHOT_DIR":  func(c *Config, v string) { c.Snapshot.Dir = v },
	"OPENAI_API_KEY":         func(c *Config, v string) { c.OpenAI.APIKey = v },
	"OPENAI_MODEL":           func(c *Config, v string) { c.OpenAI.Model = v },
}

// ApplyEnv overrides fields from non-empty variables returned by getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	for key, set := range envOverrides {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			set(c, v)
		}
	}
	c.Normalize()
}

// LoadDotEnv loads the first .env found in the working directory, its
// parents, or the home directory. Existing variables are not overwritten.
func LoadDotEnv() {
	for _, p := range []string{".env", "../.env", "../../.env"} {
		if err := godotenv.Load(p); err == nil {
			return
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		godotenv.Load(filepath.Join(home, ".env"))
	}
}

// Load reads configuration from path. A missing file is created with
// defaults. Environment overrides are applied on top.
func Load(path string) (*Config, error) {
	cfg, err := loadFile(path)
	if err != nil {
		return cfg, err
	}
	cfg.ApplyEnv(os.Getenv)
	return cfg, nil
}

func loadFile(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: write the defaults so they can be edited.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()
	return &cfg, nil
}

// Save writes cfg to path atomically with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".monthcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// DefaultPath is $XDG_CONFIG_HOME/monthcal/config.yaml.
func DefaultPath() string {
	if dir, err := os.UserConfigDir(); err == nil && dir != "" {
		return filepath.Join(dir, appDir, "config.yaml")
	}
	return filepath.Join(".", "monthcal.yaml")
}

// DataDir is the per-user data directory following the XDG Base Directory
// spec, or %LOCALAPPDATA% on Windows.
func DataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil || homeDir == "" || homeDir == "/" {
			return "."
		}
		if runtime.GOOS == "windows" {
			dataHome = os.Getenv("LOCALAPPDATA")
			if dataHome == "" {
				dataHome = filepath.Join(homeDir, "AppData", "Local")
			}
		} else {
			dataHome = filepath.Join(homeDir, ".local", "share")
		}
	}
	return filepath.Join(dataHome, appDir)
}

// ValidatePath cleans a database or file path and rejects empty, root-like,
// traversing, or sensitive locations.
func ValidatePath(path string) (string, error) {
	if strings.TrimSpace(path) == ":memory:" {
		return ":memory:", nil
	}
	cleanPath := filepath.Clean(strings.TrimSpace(path))

	if cleanPath == "" || cleanPath == "." || cleanPath == "/" {
		return "", fmt.Errorf("path cannot be empty, '.', or '/'")
	}

	// Windows: reject bare drive letters (e.g., "C:", "D:")
	if runtime.GOOS == "windows" && len(cleanPath) == 2 && cleanPath[1] == ':' {
		return "", fmt.Errorf("path cannot be a bare drive letter")
	}

	if strings.Contains(cleanPath, "..") {
		return "", fmt.Errorf("path cannot contain '..'")
	}

	badPatterns := []string{".git", ".svn", "node_modules", ".env", "credentials", "secret"}
	lowerPath := strings.ToLower(cleanPath)
	for _, pattern := range badPatterns {
		if strings.Contains(lowerPath, pattern) {
			return "", fmt.Errorf("path cannot contain '%s' directory", pattern)
		}
	}

	return cleanPath, nil
}
