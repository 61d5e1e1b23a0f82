package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/flarebyte/crous-sync/internal/paths"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DefaultServerPort     = 53061
	DefaultServerGRPCPort = 53062
	DefaultPostgresPort   = 5432
	DefaultMaxConns       = 10
	DefaultFetchAttempts  = 3
	DefaultFetchBaseDelay = time.Second
	DefaultCrousTimeout   = 30 * time.Second
	DefaultEmbedColor     = "2f3136"
	DefaultUserAgent      = "crous-sync"
)

type ServerConfig struct {
	Port     int `yaml:"port" mapstructure:"port"`
	GRPCPort int `yaml:"grpc_port" mapstructure:"grpc_port"`
}

// APIRoleConfig describes the read-only role provisioned for the public API.
type APIRoleConfig struct {
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	Schema   string `yaml:"schema" mapstructure:"schema"`
}

type PostgresConfig struct {
	Host     string        `yaml:"host" mapstructure:"host"`
	Port     int           `yaml:"port" mapstructure:"port"`
	Database string        `yaml:"database" mapstructure:"database"`
	User     string        `yaml:"user" mapstructure:"user"`
	Password string        `yaml:"password" mapstructure:"password"`
	SSLMode  string        `yaml:"sslmode" mapstructure:"sslmode"`
	MaxConns int           `yaml:"max_conns" mapstructure:"max_conns"`
	API      APIRoleConfig `yaml:"api" mapstructure:"api"`
}

type CrousConfig struct {
	BaseURL   string        `yaml:"base_url" mapstructure:"base_url"`
	UserAgent string        `yaml:"user_agent" mapstructure:"user_agent"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

type NotifyConfig struct {
	WebhookURL   string `yaml:"webhook_url" mapstructure:"webhook_url"`
	EmbedColor   string `yaml:"embed_color" mapstructure:"embed_color"`
	ThumbnailURL string `yaml:"thumbnail_url" mapstructure:"thumbnail_url"`
	ImageURL     string `yaml:"image_url" mapstructure:"image_url"`
}

type FetchConfig struct {
	Attempts  int           `yaml:"attempts" mapstructure:"attempts"`
	BaseDelay time.Duration `yaml:"base_delay" mapstructure:"base_delay"`
}

type SyncConfig struct {
	// SkipInactive skips upstream restaurants that are not in the active set
	// loaded at the start of a run.
	SkipInactive bool `yaml:"skip_inactive" mapstructure:"skip_inactive"`
}

type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
	File  string `yaml:"file" mapstructure:"file"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Postgres PostgresConfig `yaml:"postgres" mapstructure:"postgres"`
	Crous    CrousConfig    `yaml:"crous" mapstructure:"crous"`
	Notify   NotifyConfig   `yaml:"notify" mapstructure:"notify"`
	Fetch    FetchConfig    `yaml:"fetch" mapstructure:"fetch"`
	Sync     SyncConfig     `yaml:"sync" mapstructure:"sync"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// envBindings maps config keys to the environment variables that override them.
var envBindings = map[string]string{
	"postgres.host":         "POSTGRES_HOST",
	"postgres.port":         "POSTGRES_PORT",
	"postgres.database":     "POSTGRES_DATABASE",
	"postgres.user":         "POSTGRES_USER",
	"postgres.password":     "POSTGRES_PASSWORD",
	"postgres.sslmode":      "POSTGRES_SSLMODE",
	"postgres.max_conns":    "POSTGRES_MAX_CONNS",
	"postgres.api.user":     "POSTGRES_API_USER",
	"postgres.api.password": "POSTGRES_API_PASSWORD",
	"postgres.api.schema":   "POSTGRES_API_SCHEMA",
	"crous.base_url":        "CROUS_BASE_URL",
	"crous.user_agent":      "CROUS_USER_AGENT",
	"crous.timeout":         "CROUS_TIMEOUT",
	"notify.webhook_url":    "WEBHOOK_URL",
	"notify.embed_color":    "EMBED_COLOR",
	"notify.thumbnail_url":  "THUMBNAIL_URL",
	"notify.image_url":      "IMAGE_URL",
	"fetch.attempts":        "FETCH_ATTEMPTS",
	"fetch.base_delay":      "FETCH_BASE_DELAY",
	"sync.skip_inactive":    "SYNC_SKIP_INACTIVE",
	"log.level":             "LOG_LEVEL",
	"log.file":              "LOG_FILE",
	"server.port":           "SERVER_PORT",
	"server.grpc_port":      "SERVER_GRPC_PORT",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.grpc_port", DefaultServerGRPCPort)
	v.SetDefault("postgres.host", "127.0.0.1")
	v.SetDefault("postgres.port", DefaultPostgresPort)
	v.SetDefault("postgres.database", "crous")
	v.SetDefault("postgres.user", "crous")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.max_conns", DefaultMaxConns)
	v.SetDefault("postgres.api.user", "")
	v.SetDefault("postgres.api.password", "")
	v.SetDefault("postgres.api.schema", "api")
	v.SetDefault("crous.base_url", "")
	v.SetDefault("crous.user_agent", DefaultUserAgent)
	v.SetDefault("crous.timeout", DefaultCrousTimeout)
	v.SetDefault("notify.webhook_url", "")
	v.SetDefault("notify.embed_color", DefaultEmbedColor)
	v.SetDefault("notify.thumbnail_url", "")
	v.SetDefault("notify.image_url", "")
	v.SetDefault("fetch.attempts", DefaultFetchAttempts)
	v.SetDefault("fetch.base_delay", DefaultFetchBaseDelay)
	v.SetDefault("sync.skip_inactive", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", filepath.Join(paths.LogDir(), "crous-sync.log"))
}

// Path returns the expected path to the config.yaml file.
func Path() string {
	return filepath.Join(paths.Home(), "config.yaml")
}

// Load reads config.yaml when present and applies environment overrides.
// A .env file in the working directory is loaded first; variables already
// set in the process environment win over it.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return LoadFile(Path())
}

// LoadFile is Load without the .env step, reading the given yaml file.
// A missing file is not an error; defaults are returned.
func LoadFile(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return Config{}, fmt.Errorf("bind %s: %w", env, err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.Crous.BaseURL = strings.TrimRight(cfg.Crous.BaseURL, "/")
	return cfg, nil
}

// Validate reports the settings a sync run cannot do without.
func (c Config) Validate() error {
	var errs []error
	if c.Postgres.Host == "" {
		errs = append(errs, errors.New("postgres.host is required"))
	}
	if c.Postgres.Database == "" {
		errs = append(errs, errors.New("postgres.database is required"))
	}
	if c.Postgres.User == "" {
		errs = append(errs, errors.New("postgres.user is required"))
	}
	if c.Crous.BaseURL == "" {
		errs = append(errs, errors.New("crous.base_url is required"))
	}
	if c.Fetch.Attempts < 1 {
		errs = append(errs, fmt.Errorf("fetch.attempts must be >= 1, got %d", c.Fetch.Attempts))
	}
	if c.Fetch.BaseDelay < 0 {
		errs = append(errs, fmt.Errorf("fetch.base_delay must not be negative, got %s", c.Fetch.BaseDelay))
	}
	return errors.Join(errs...)
}

// Redacted returns a copy with secrets masked, for printing.
func (c Config) Redacted() Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "********"
	}
	c.Postgres.Password = mask(c.Postgres.Password)
	c.Postgres.API.Password = mask(c.Postgres.API.Password)
	c.Notify.WebhookURL = mask(c.Notify.WebhookURL)
	return c
}
