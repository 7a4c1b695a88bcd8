// Package config loads board settings.
//
// Sources, highest priority first:
//  1. explicit --config path;
//  2. CONFIG_PATH;
//  3. ./board.yaml;
//  4. environment only.
//
// Environment variables always overlay whatever a file provided.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const localFile = "board.yaml"

// Variant selects how likes and authorship work.
const (
	VariantGuest = "guest"
	VariantAuth  = "auth"
)

// Kind selects the collection flavour.
const (
	KindComments = "comments"
	KindTodo     = "todo"
)

// Storage backends for the session.
const (
	StorageFile   = "file"
	StorageRedis  = "redis"
	StorageSQLite = "sqlite"
	StorageMemory = "memory"
)

type Config struct {
	Env     string        `yaml:"env" env:"BOARD_ENV" env-default:"local"`
	API     APIConfig     `yaml:"api"`
	Mode    ModeConfig    `yaml:"mode"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
	UI      UIConfig      `yaml:"ui"`
}

// APIConfig describes the remote board.
type APIConfig struct {
	BaseURL        string        `yaml:"base_url"        env:"BOARD_API_URL"         env-default:"https://wedev-api.sky.pro"`
	CollectionPath string        `yaml:"collection_path" env:"BOARD_COLLECTION_PATH" env-default:"/api/v2/alina-skypro/comments"`
	LoginPath      string        `yaml:"login_path"      env:"BOARD_LOGIN_PATH"      env-default:"/api/user/login"`
	Encoding       string        `yaml:"encoding"        env:"BOARD_ENCODING"        env-default:"json"`
	Timeout        time.Duration `yaml:"timeout"         env:"BOARD_TIMEOUT"         env-default:"0s"`
	ForceError     bool          `yaml:"force_error"     env:"BOARD_FORCE_ERROR"`
	// RawHTML sends user text as typed; by default markup is escaped.
	RawHTML        bool          `yaml:"raw_html"        env:"BOARD_RAW_HTML"`
	UserAgent      string        `yaml:"user_agent"      env:"BOARD_USER_AGENT"      env-default:"board-cli"`
}

func (a APIConfig) CollectionURL() string { return joinURL(a.BaseURL, a.CollectionPath) }
func (a APIConfig) LoginURL() string      { return joinURL(a.BaseURL, a.LoginPath) }
func (a APIConfig) EscapeHTML() bool      { return !a.RawHTML }

// ModeConfig picks the variant of the board.
type ModeConfig struct {
	Variant string `yaml:"variant" env:"BOARD_VARIANT" env-default:"auth"`
	Kind    string `yaml:"kind"    env:"BOARD_KIND"    env-default:"comments"`
}

// StorageConfig is where the session survives between runs.
type StorageConfig struct {
	Backend     string `yaml:"backend"      env:"BOARD_STORAGE"        env-default:"file"`
	Path        string `yaml:"path"         env:"BOARD_STORAGE_PATH"`
	RedisAddr   string `yaml:"redis_addr"   env:"BOARD_REDIS_ADDR"     env-default:"localhost:6379"`
	RedisDB     int    `yaml:"redis_db"     env:"BOARD_REDIS_DB"       env-default:"0"`
	RedisPrefix string `yaml:"redis_prefix" env:"BOARD_REDIS_PREFIX"   env-default:"board"`
}

type LogConfig struct {
	Level  string `yaml:"level"  env:"BOARD_LOG_LEVEL"  env-default:"info"`
	Pretty bool   `yaml:"pretty" env:"BOARD_LOG_PRETTY"`
	File   string `yaml:"file"   env:"BOARD_LOG_FILE"`
}

type UIConfig struct {
	Theme string `yaml:"theme" env:"BOARD_THEME" env-default:"classic"`
	// NewestFirst sorts by date instead of keeping the server's order.
	NewestFirst bool `yaml:"newest_first" env:"BOARD_NEWEST_FIRST"`
}

// Validate rejects values the rest of the program cannot act on.
func (c *Config) Validate() error {
	switch c.Mode.Variant {
	case VariantGuest, VariantAuth:
	default:
		return fmt.Errorf("mode.variant: want %q or %q, got %q", VariantGuest, VariantAuth, c.Mode.Variant)
	}
	switch c.Mode.Kind {
	case KindComments, KindTodo:
	default:
		return fmt.Errorf("mode.kind: want %q or %q, got %q", KindComments, KindTodo, c.Mode.Kind)
	}
	switch c.API.Encoding {
	case "json", "form":
	default:
		return fmt.Errorf("api.encoding: want json or form, got %q", c.API.Encoding)
	}
	switch c.Storage.Backend {
	case StorageFile, StorageRedis, StorageSQLite, StorageMemory:
	default:
		return fmt.Errorf("storage.backend: unknown %q", c.Storage.Backend)
	}
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return fmt.Errorf("api.base_url is empty")
	}
	if c.API.Timeout < 0 {
		return fmt.Errorf("api.timeout must not be negative")
	}
	return nil
}

// MustLoad panics if Load fails.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

func Load(path string) (*Config, error) {
	var cfg Config

	readFile := func(p string) (*Config, error) {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("config file %q stat failed: %w", p, err)
		}
		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		return finish(&cfg)
	}

	if path != "" {
		return readFile(path)
	}
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return readFile(envPath)
	}
	if _, err := os.Stat(localFile); err == nil {
		return readFile(localFile)
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read env: %w", err)
	}
	return finish(&cfg)
}

// finish normalises enum-like fields and validates.
func finish(cfg *Config) (*Config, error) {
	cfg.Mode.Variant = strings.ToLower(strings.TrimSpace(cfg.Mode.Variant))
	cfg.Mode.Kind = strings.ToLower(strings.TrimSpace(cfg.Mode.Kind))
	cfg.API.Encoding = strings.ToLower(strings.TrimSpace(cfg.API.Encoding))
	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// DataDir is ~/.board, where file-based backends keep their data.
func DataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home: %w", err)
	}
	return filepath.Join(home, ".board"), nil
}

func joinURL(base, path string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	path = strings.TrimSpace(path)
	if path == "" {
		return base
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}
