package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Cache   CacheConfig   `mapstructure:"cache"`
	UI      UIConfig      `mapstructure:"ui"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds API connection settings
type ServerConfig struct {
	URL        string        `mapstructure:"url"`
	Token      string        `mapstructure:"token"`
	UserAgent  string        `mapstructure:"user_agent"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"` // GET only
}

// CacheConfig holds freshness windows and persistence settings
type CacheConfig struct {
	Dir               string        `mapstructure:"dir"`
	Persist           bool          `mapstructure:"persist"` // false keeps caches in memory only
	ListTTL           time.Duration `mapstructure:"list_ttl"`
	ListDetailTTL     time.Duration `mapstructure:"list_detail_ttl"`
	CategoryTTL       time.Duration `mapstructure:"category_ttl"`
	CategoryDetailTTL time.Duration `mapstructure:"category_detail_ttl"`
	BookTTL           time.Duration `mapstructure:"book_ttl"`
	SearchTTL         time.Duration `mapstructure:"search_ttl"`
}

// UIConfig holds terminal UI configuration
type UIConfig struct {
	Theme    string `mapstructure:"theme"`
	PageSize int    `mapstructure:"page_size"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			URL:        "https://api.trackr.app",
			UserAgent:  "trackr-cli",
			Timeout:    15 * time.Second,
			MaxRetries: 2,
		},
		Cache: CacheConfig{
			Dir:               defaultCachePath(),
			Persist:           true,
			ListTTL:           5 * time.Minute,
			ListDetailTTL:     30 * time.Minute,
			CategoryTTL:       time.Hour,
			CategoryDetailTTL: 30 * time.Minute,
			BookTTL:           30 * time.Minute,
			SearchTTL:         10 * time.Minute,
		},
		UI: UIConfig{
			Theme:    "default",
			PageSize: 50,
		},
		Logging: LoggingConfig{
			File:  defaultLogPath(),
			Level: "INFO",
		},
	}
}

// defaultLogPath returns the default log file path for the current OS
func defaultLogPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "trackr", "trackr.log")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "trackr", "trackr.log")
	}
}

// DefaultDir returns the default config directory for the current OS
func DefaultDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "trackr")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "trackr")
	}
}

// defaultCachePath returns the default cache directory path for the current OS
func defaultCachePath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "trackr", "cache")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "trackr", "cache")
	}
}

func newViper(dir string) *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	// TRACKR_SERVER_TOKEN overrides server.token, and so on
	v.SetEnvPrefix("TRACKR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setAll(DefaultConfig(), v.SetDefault)
	return v
}

// setAll writes every key of cfg through set, keeping snake_case key names
func setAll(cfg *Config, set func(string, any)) {
	set("server.url", cfg.Server.URL)
	set("server.token", cfg.Server.Token)
	set("server.user_agent", cfg.Server.UserAgent)
	set("server.timeout", cfg.Server.Timeout.String())
	set("server.max_retries", cfg.Server.MaxRetries)

	set("cache.dir", cfg.Cache.Dir)
	set("cache.persist", cfg.Cache.Persist)
	set("cache.list_ttl", cfg.Cache.ListTTL.String())
	set("cache.list_detail_ttl", cfg.Cache.ListDetailTTL.String())
	set("cache.category_ttl", cfg.Cache.CategoryTTL.String())
	set("cache.category_detail_ttl", cfg.Cache.CategoryDetailTTL.String())
	set("cache.book_ttl", cfg.Cache.BookTTL.String())
	set("cache.search_ttl", cfg.Cache.SearchTTL.String())

	set("ui.theme", cfg.UI.Theme)
	set("ui.page_size", cfg.UI.PageSize)

	set("logging.file", cfg.Logging.File)
	set("logging.level", cfg.Logging.Level)
}

// Load reads config.yaml from dir (DefaultDir when empty) and applies
// TRACKR_* environment overrides. A missing file yields the defaults.
func Load(dir string) (*Config, error) {
	if dir == "" {
		dir = DefaultDir()
	}
	v := newViper(dir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	return cfg, nil
}

// Save writes cfg to dir/config.yaml
func Save(dir string, cfg *Config) error {
	if dir == "" {
		dir = DefaultDir()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setAll(cfg, v.Set)

	if err := v.WriteConfigAs(filepath.Join(dir, "config.yaml")); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveToken stores token, keeping every other setting
func SaveToken(dir, token string) error {
	cfg, err := Load(dir)
	if err != nil {
		return err
	}
	cfg.Server.Token = token
	return Save(dir, cfg)
}

// ClearServerConfig removes credentials while preserving other settings
func ClearServerConfig(dir string) error {
	cfg, err := Load(dir)
	if err != nil {
		return err
	}
	cfg.Server.Token = ""
	return Save(dir, cfg)
}

// IsConfigured returns true if the server URL and token are set
func (c *Config) IsConfigured() bool {
	return c.Server.URL != "" && c.Server.Token != ""
}

// CacheDir returns the directory the cache database lives in, or "" when
// persistence is disabled
func (c *Config) CacheDir() string {
	if !c.Cache.Persist {
		return ""
	}
	return c.Cache.Dir
}
