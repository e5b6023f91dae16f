// Package config handles layered YAML configuration with environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all xiuxian client configuration.
type Config struct {
	API   API   `yaml:"api"`
	Store Store `yaml:"store"`
	UI    UI    `yaml:"ui"`
	Log   Log   `yaml:"log"`
}

// API holds backend connection settings.
type API struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"` // 0 disables the client-side timeout
}

// Store holds local storage settings.
type Store struct {
	Path string `yaml:"path"` // SQLite file holding the session token
}

// UI holds terminal client settings.
type UI struct {
	StartRoute       string        `yaml:"start_route"`       // Overrides the login/home default when set
	EstimateDebounce time.Duration `yaml:"estimate_debounce"` // Delay before a preview estimate is requested
	AltScreen        bool          `yaml:"alt_screen"`
	TemplatesDir     string        `yaml:"templates_dir"` // Local panel templates, checked before the embedded set
}

// Log holds logging settings.
type Log struct {
	Level string `yaml:"level"` // "debug" | "info" | "warn" | "error"
	File  string `yaml:"file"`  // Empty discards log output
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		API: API{
			BaseURL: "http://127.0.0.1:5000",
		},
		Store: Store{
			Path: ".xiuxian/local.db",
		},
		UI: UI{
			EstimateDebounce: 300 * time.Millisecond,
			AltScreen:        true,
			TemplatesDir:     "templates/panels",
		},
		Log: Log{
			Level: "info",
		},
	}
}

// Load reads a single YAML config file at path and returns a Config.
// For merging multiple config sources, use LoadLayered instead.
// If the file does not exist, defaults are returned without error.
// If the file contains invalid YAML or unknown fields, an error is returned.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	layer, err := loadLayer(path)
	if err != nil {
		return nil, err
	}
	if layer != nil {
		cfg.merge(layer)
	}
	return &cfg, nil
}

// LoadLayered loads config from multiple paths with increasing priority.
// Later paths override earlier ones. Missing files are skipped.
func LoadLayered(paths ...string) (*Config, error) {
	cfg := DefaultConfig()

	for _, path := range paths {
		layer, err := loadLayer(path)
		if err != nil {
			return nil, err
		}
		if layer == nil {
			continue
		}
		cfg.merge(layer)
	}

	return &cfg, nil
}

// Validate checks that config values are usable.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return errors.New("config: api.base_url cannot be empty")
	}
	if c.API.Timeout < 0 {
		return fmt.Errorf("config: api.timeout must be non-negative, got %v", c.API.Timeout)
	}
	if c.Store.Path == "" {
		return errors.New("config: store.path cannot be empty")
	}
	if c.UI.EstimateDebounce < 0 {
		return fmt.Errorf("config: ui.estimate_debounce must be non-negative, got %v", c.UI.EstimateDebounce)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// ApplyEnv applies environment variable overrides to the config.
// Supported variables: XIUXIAN_API_URL, XIUXIAN_API_TIMEOUT, XIUXIAN_STORE,
// XIUXIAN_LOG_LEVEL, XIUXIAN_LOG_FILE.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("XIUXIAN_API_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("XIUXIAN_API_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: invalid XIUXIAN_API_TIMEOUT %q: %w", v, err)
		}
		c.API.Timeout = d
	}
	if v := os.Getenv("XIUXIAN_STORE"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("XIUXIAN_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("XIUXIAN_LOG_FILE"); v != "" {
		c.Log.File = v
	}
	return nil
}

// ParseLevel maps a config level name to a slog.Level.
// An empty name means info.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("config: log.level must be one of debug, info, warn, error, got %q", name)
	}
}

// rawConfig mirrors Config but uses pointers to distinguish set vs unset fields.
type rawConfig struct {
	API   *rawAPI   `yaml:"api"`
	Store *rawStore `yaml:"store"`
	UI    *rawUI    `yaml:"ui"`
	Log   *rawLog   `yaml:"log"`
}

type rawAPI struct {
	BaseURL *string        `yaml:"base_url"`
	Timeout *time.Duration `yaml:"timeout"`
}

type rawStore struct {
	Path *string `yaml:"path"`
}

type rawUI struct {
	StartRoute       *string        `yaml:"start_route"`
	EstimateDebounce *time.Duration `yaml:"estimate_debounce"`
	AltScreen        *bool          `yaml:"alt_screen"`
	TemplatesDir     *string        `yaml:"templates_dir"`
}

type rawLog struct {
	Level *string `yaml:"level"`
	File  *string `yaml:"file"`
}

// loadLayer reads a single config file into a rawConfig for selective merging.
// Returns nil if the file does not exist. Rejects unknown fields.
func loadLayer(path string) (*rawConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if len(data) == 0 {
		return nil, nil
	}

	var raw rawConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		// Comment-only YAML files produce EOF with no decoded content.
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	return &raw, nil
}

// merge applies non-nil fields from a rawConfig layer onto this Config.
func (c *Config) merge(layer *rawConfig) {
	if layer.API != nil {
		if layer.API.BaseURL != nil {
			c.API.BaseURL = *layer.API.BaseURL
		}
		if layer.API.Timeout != nil {
			c.API.Timeout = *layer.API.Timeout
		}
	}
	if layer.Store != nil {
		if layer.Store.Path != nil {
			c.Store.Path = *layer.Store.Path
		}
	}
	if layer.UI != nil {
		if layer.UI.StartRoute != nil {
			c.UI.StartRoute = *layer.UI.StartRoute
		}
		if layer.UI.EstimateDebounce != nil {
			c.UI.EstimateDebounce = *layer.UI.EstimateDebounce
		}
		if layer.UI.AltScreen != nil {
			c.UI.AltScreen = *layer.UI.AltScreen
		}
		if layer.UI.TemplatesDir != nil {
			c.UI.TemplatesDir = *layer.UI.TemplatesDir
		}
	}
	if layer.Log != nil {
		if layer.Log.Level != nil {
			c.Log.Level = *layer.Log.Level
		}
		if layer.Log.File != nil {
			c.Log.File = *layer.Log.File
		}
	}
}
