package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
// It is read-only after Load() returns and thread-safe for concurrent reads.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Fallback  FallbackConfig  `yaml:"fallback"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Search    SearchConfig    `yaml:"search"`
	Auth      AuthConfig      `yaml:"auth"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64    `yaml:"max_body_bytes"`
}

// DatabaseConfig selects and configures the primary backend.
type DatabaseConfig struct {
	Driver      string `yaml:"driver"` // sqlite | postgres
	DSN         string `yaml:"dsn"`    // file path for sqlite, connection string for postgres
	AutoMigrate bool   `yaml:"auto_migrate"`
}

// FallbackConfig configures the document backend used when the primary
// backend cannot serve a read or delete.
type FallbackConfig struct {
	Dir    string   `yaml:"dir"`
	Suffix string   `yaml:"suffix"`
	S3     S3Config `yaml:"s3"`
}

// S3Config contains S3-compatible storage settings. An empty bucket keeps
// fallback documents on the local filesystem.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Prefix    string `yaml:"prefix"`
	UseSSL    *bool  `yaml:"use_ssl"`
	AccessKey string `yaml:"-"` // env-only, never in YAML
	SecretKey string `yaml:"-"` // env-only, never in YAML
}

// EmbeddingConfig contains embedding service settings.
type EmbeddingConfig struct {
	Provider    string `yaml:"provider"` // openai | compatible | hashing
	APIKey      string `yaml:"-"`        // env-only, never in YAML
	Model       string `yaml:"model"`
	BaseURL     string `yaml:"base_url"`
	Dimensions  int    `yaml:"dimensions"`
	BatchSize   int    `yaml:"batch_size"`
	Concurrency int    `yaml:"concurrency"`
}

// SearchConfig bounds top-k requests.
type SearchConfig struct {
	DefaultTopK int `yaml:"default_top_k"`
	MaxTopK     int `yaml:"max_top_k"`
}

// AuthConfig contains authentication settings.
type AuthConfig struct {
	APIKey string `yaml:"-"` // env-only, never in YAML
}

// LogConfig contains logging settings.
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

// Load loads configuration with precedence: defaults → YAML file → env vars.
// Returns an immutable Config suitable for concurrent read access.
func Load() (*Config, error) {
	cfg := newDefaults()

	configPath := getEnv("RECOLLECT_CONFIG_PATH", "config/recollect.yaml")

	// Missing file is not an error
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

// newDefaults returns a Config with all default values.
func newDefaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(2 * time.Minute),
			ShutdownTimeout: Duration(15 * time.Second),
			MaxBodyBytes:    256 << 20,
		},
		Database: DatabaseConfig{
			Driver:      "sqlite",
			DSN:         "data/recollect.db",
			AutoMigrate: true,
		},
		Fallback: FallbackConfig{
			Dir:    "data/conversations",
			Suffix: "userData.json",
		},
		Embedding: EmbeddingConfig{
			Provider:    "openai",
			Model:       "text-embedding-3-small",
			Dimensions:  0,
			BatchSize:   256,
			Concurrency: 4,
		},
		Search: SearchConfig{
			DefaultTopK: 6,
			MaxTopK:     100,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
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
	if v := os.Getenv("RECOLLECT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("RECOLLECT_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = Duration(d)
		}
	}
	if v := os.Getenv("RECOLLECT_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = Duration(d)
		}
	}
	if v := os.Getenv("RECOLLECT_SHUTDOWN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ShutdownTimeout = Duration(d)
		}
	}
	if v := os.Getenv("RECOLLECT_MAX_BODY_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Server.MaxBodyBytes = n
		}
	}

	// Database
	if v := os.Getenv("RECOLLECT_DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("RECOLLECT_DB_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("RECOLLECT_DB_AUTO_MIGRATE"); v != "" {
		cfg.Database.AutoMigrate = v == "true" || v == "1"
	}

	// Fallback
	if v := os.Getenv("RECOLLECT_FALLBACK_DIR"); v != "" {
		cfg.Fallback.Dir = v
	}
	if v := os.Getenv("RECOLLECT_FALLBACK_SUFFIX"); v != "" {
		cfg.Fallback.Suffix = v
	}
	if v := os.Getenv("RECOLLECT_S3_ENDPOINT"); v != "" {
		cfg.Fallback.S3.Endpoint = v
	}
	if v := os.Getenv("RECOLLECT_S3_BUCKET"); v != "" {
		cfg.Fallback.S3.Bucket = v
	}
	if v := os.Getenv("RECOLLECT_S3_REGION"); v != "" {
		cfg.Fallback.S3.Region = v
	}
	if v := os.Getenv("RECOLLECT_S3_ACCESS_KEY"); v != "" {
		cfg.Fallback.S3.AccessKey = v
	}
	if v := os.Getenv("RECOLLECT_S3_SECRET_KEY"); v != "" {
		cfg.Fallback.S3.SecretKey = v
	}

	// Embedding (OPENAI_API_KEY is industry convention)
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := os.Getenv("RECOLLECT_EMBEDDING_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := os.Getenv("RECOLLECT_EMBEDDING_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("RECOLLECT_EMBEDDING_BASE_URL"); v != "" {
		cfg.Embedding.BaseURL = v
	}
	if v := os.Getenv("RECOLLECT_EMBEDDING_DIMENSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Embedding.Dimensions = n
		}
	}

	// Search
	if v := os.Getenv("RECOLLECT_DEFAULT_TOP_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Search.DefaultTopK = n
		}
	}

	// Auth
	if v := os.Getenv("RECOLLECT_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}

	// Log
	if v := os.Getenv("RECOLLECT_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("RECOLLECT_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// validate checks that required configuration values are set and that
// enumerated settings hold known values.
// In dev mode (RECOLLECT_DEV_MODE=true), the API key requirement is skipped.
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}
	if c.Fallback.Suffix == "" {
		return errors.New("fallback.suffix is required")
	}

	switch c.Embedding.Provider {
	case "openai":
		if c.Embedding.APIKey == "" && os.Getenv("RECOLLECT_DEV_MODE") != "true" {
			return errors.New("OPENAI_API_KEY is required")
		}
	case "compatible":
		if c.Embedding.BaseURL == "" {
			return errors.New("embedding.base_url is required for the compatible provider")
		}
	case "hashing":
		if c.Embedding.Dimensions <= 0 {
			return errors.New("embedding.dimensions must be positive for the hashing provider")
		}
	default:
		return fmt.Errorf("embedding.provider must be openai, compatible or hashing, got %q", c.Embedding.Provider)
	}
	if c.Embedding.BatchSize <= 0 {
		return errors.New("embedding.batch_size must be positive")
	}
	if c.Embedding.Concurrency <= 0 {
		return errors.New("embedding.concurrency must be positive")
	}

	if c.Search.DefaultTopK <= 0 || c.Search.MaxTopK < c.Search.DefaultTopK {
		return fmt.Errorf("search: need 0 < default_top_k (%d) <= max_top_k (%d)", c.Search.DefaultTopK, c.Search.MaxTopK)
	}
	return nil
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
