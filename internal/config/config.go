package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Sync backends.
const (
	BackendNone  = "none"
	BackendHTTP  = "http"
	BackendRedis = "redis"
	BackendS3    = "s3"
)

// Config is the root configuration structure.
// It is read-only after Load() returns and thread-safe for concurrent reads.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Sync     SyncConfig     `yaml:"sync"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig contains HTTP server settings for `lifexp serve`.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
	// BackupDir receives periodic database copies. Empty or a zero
	// BackupInterval disables them.
	BackupDir      string   `yaml:"backup_dir"`
	BackupInterval Duration `yaml:"backup_interval"`
	BackupKeep     int      `yaml:"backup_keep"`
}

// DatabaseConfig contains database settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig contains authentication settings for the sync server.
type AuthConfig struct {
	APIKey string `yaml:"-"` // env-only, never in YAML
}

// SyncConfig selects and configures the remote the CLI syncs with.
type SyncConfig struct {
	Backend      string      `yaml:"backend"`
	UserID       string      `yaml:"user_id"`
	Debounce     Duration    `yaml:"debounce"`
	PullInterval Duration    `yaml:"pull_interval"`
	Timeout      Duration    `yaml:"timeout"`
	HTTP         HTTPConfig  `yaml:"http"`
	Redis        RedisConfig `yaml:"redis"`
	S3           S3Config    `yaml:"s3"`
}

// HTTPConfig points at a `lifexp serve` instance.
type HTTPConfig struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"-"` // env-only
}

// RedisConfig contains Redis remote settings.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"-"` // env-only
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// S3Config contains S3-compatible remote settings.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	UseSSL    *bool  `yaml:"use_ssl"`
	AccessKey string `yaml:"-"` // env-only
	SecretKey string `yaml:"-"` // env-only
}

// LogConfig contains logging settings. Format "auto" selects JSON for the
// server and text for interactive commands.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Duration is a wrapper around time.Duration that supports YAML string parsing.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Load loads configuration with precedence: defaults → .env → YAML file →
// env vars.
func Load() (*Config, error) {
	cfg := newDefaults()

	// .env only fills variables that are not already set
	envFile := getEnv("LIFEXP_ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading env file: %w", err)
	}

	configPath := getEnv("LIFEXP_CONFIG_PATH", "config/lifexp.yaml")
	if err := loadYAMLFile(cfg, configPath); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a specific path.
// Used for testing and explicit path specification.
func LoadFromFile(path string) (*Config, error) {
	cfg := newDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newDefaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(30 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
			BackupKeep:      7,
		},
		Database: DatabaseConfig{
			Path: "~/.lifexp/lifexp.db",
		},
		Sync: SyncConfig{
			Backend:  BackendNone,
			UserID:   "default",
			Debounce: Duration(800 * time.Millisecond),
			Timeout:  Duration(10 * time.Second),
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				KeyPrefix: "lifexp",
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// loadYAMLFile loads configuration from a YAML file if it exists.
// Missing file is not an error; we just use defaults.
func loadYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Only non-empty env vars override config values.
func applyEnvOverrides(cfg *Config) {
	// Server
	if v := os.Getenv("LIFEXP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	envDuration("LIFEXP_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("LIFEXP_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	envDuration("LIFEXP_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)
	if v := os.Getenv("LIFEXP_BACKUP_DIR"); v != "" {
		cfg.Server.BackupDir = v
	}
	envDuration("LIFEXP_BACKUP_INTERVAL", &cfg.Server.BackupInterval)
	if v := os.Getenv("LIFEXP_BACKUP_KEEP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.BackupKeep = n
		}
	}

	// Database
	if v := os.Getenv("LIFEXP_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Auth
	if v := os.Getenv("LIFEXP_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}

	// Sync
	if v := os.Getenv("LIFEXP_SYNC_BACKEND"); v != "" {
		cfg.Sync.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("LIFEXP_SYNC_USER_ID"); v != "" {
		cfg.Sync.UserID = v
	}
	envDuration("LIFEXP_SYNC_DEBOUNCE", &cfg.Sync.Debounce)
	envDuration("LIFEXP_SYNC_PULL_INTERVAL", &cfg.Sync.PullInterval)
	envDuration("LIFEXP_SYNC_TIMEOUT", &cfg.Sync.Timeout)
	if v := os.Getenv("LIFEXP_SYNC_URL"); v != "" {
		cfg.Sync.HTTP.URL = v
	}
	if v := os.Getenv("LIFEXP_SYNC_API_KEY"); v != "" {
		cfg.Sync.HTTP.APIKey = v
	}
	if v := os.Getenv("LIFEXP_REDIS_ADDR"); v != "" {
		cfg.Sync.Redis.Addr = v
	}
	if v := os.Getenv("LIFEXP_REDIS_PASSWORD"); v != "" {
		cfg.Sync.Redis.Password = v
	}
	if v := os.Getenv("LIFEXP_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Sync.Redis.DB = n
		}
	}
	if v := os.Getenv("LIFEXP_S3_ENDPOINT"); v != "" {
		cfg.Sync.S3.Endpoint = v
	}
	if v := os.Getenv("LIFEXP_S3_BUCKET"); v != "" {
		cfg.Sync.S3.Bucket = v
	}
	if v := os.Getenv("LIFEXP_S3_REGION"); v != "" {
		cfg.Sync.S3.Region = v
	}
	if v := os.Getenv("LIFEXP_S3_ACCESS_KEY"); v != "" {
		cfg.Sync.S3.AccessKey = v
	}
	if v := os.Getenv("LIFEXP_S3_SECRET_KEY"); v != "" {
		cfg.Sync.S3.SecretKey = v
	}
	if v := os.Getenv("LIFEXP_S3_USE_SSL"); v != "" {
		b := v == "true" || v == "1"
		cfg.Sync.S3.UseSSL = &b
	}

	// Log
	if v := os.Getenv("LIFEXP_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LIFEXP_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

func envDuration(key string, dst *Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = Duration(d)
		}
	}
}

// validate checks the settings every command depends on.
func (c *Config) validate() error {
	var errs []error
	switch c.Sync.Backend {
	case BackendNone:
	case BackendHTTP:
		if c.Sync.HTTP.URL == "" {
			errs = append(errs, errors.New("sync.http.url is required for the http backend"))
		}
	case BackendRedis:
		if c.Sync.Redis.Addr == "" {
			errs = append(errs, errors.New("sync.redis.addr is required for the redis backend"))
		}
	case BackendS3:
		if c.Sync.S3.Bucket == "" || c.Sync.S3.Endpoint == "" {
			errs = append(errs, errors.New("sync.s3.endpoint and sync.s3.bucket are required for the s3 backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("sync.backend %q must be one of none, http, redis, s3", c.Sync.Backend))
	}
	if c.Server.BackupInterval < 0 {
		errs = append(errs, errors.New("server.backup_interval must not be negative"))
	}
	if c.Sync.Debounce < 0 {
		errs = append(errs, errors.New("sync.debounce must not be negative"))
	}
	switch strings.ToLower(c.Log.Format) {
	case "auto", "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be auto, json or text", c.Log.Format))
	}
	return errors.Join(errs...)
}

// ValidateServer checks the settings `lifexp serve` requires.
// In dev mode (LIFEXP_DEV_MODE=true), API key validation is skipped.
func (c *Config) ValidateServer() error {
	if os.Getenv("LIFEXP_DEV_MODE") == "true" {
		return nil
	}
	if c.Auth.APIKey == "" {
		return errors.New("LIFEXP_API_KEY is required")
	}
	return nil
}

// BackupsEnabled reports whether `lifexp serve` should run the backup worker.
func (c *Config) BackupsEnabled() bool {
	return c.Server.BackupDir != "" && c.Server.BackupInterval > 0
}

// DatabasePath returns Database.Path with a leading ~ expanded.
func (c *Config) DatabasePath() (string, error) {
	return ExpandPath(c.Database.Path)
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
