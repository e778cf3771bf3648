// Package config handles loading and parsing of Invoicedeck configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultMaxUploadBytes is the ceiling on encoded image payload data per
// request. Matches the ~90MB limit the dashboard enforces client-side.
const DefaultMaxUploadBytes = 90 << 20

// Config is the top-level configuration for Invoicedeck.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	Metadata MetadataConfig `yaml:"metadata"`
	Storage  StorageConfig  `yaml:"storage"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// ShutdownTimeout is the graceful shutdown window in seconds.
	ShutdownTimeout int `yaml:"shutdown_timeout"`
	// MaxUploadBytes caps the encoded image payload data accepted per request.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
}

// AuthConfig holds authentication settings for the API surface.
type AuthConfig struct {
	// AccessToken is the bearer token required on /api/* requests.
	// An empty token disables authentication (local development).
	AccessToken string `yaml:"access_token"`
}

// MetadataConfig holds metadata store settings.
type MetadataConfig struct {
	SQLite SQLiteConfig `yaml:"sqlite"`
}

// SQLiteConfig holds SQLite-specific metadata store settings.
type SQLiteConfig struct {
	// Path is the filesystem path for the SQLite database file.
	Path string `yaml:"path"`
}

// StorageConfig holds blob store backend settings.
type StorageConfig struct {
	// Backend is the blob store backend type: "memory", "aws", or "gcs".
	Backend string `yaml:"backend"`
	// AWSBucket is the S3 bucket name for the aws backend.
	AWSBucket string `yaml:"aws_bucket"`
	// AWSRegion is the AWS region for the aws backend.
	AWSRegion string `yaml:"aws_region"`
	// AWSEndpointURL overrides the S3 endpoint, for S3-compatible stores
	// (e.g. Cloudflare R2, MinIO). Empty means native AWS S3.
	AWSEndpointURL string `yaml:"aws_endpoint_url"`
	// AWSUsePathStyle forces path-style addressing, required by most
	// S3-compatible endpoints.
	AWSUsePathStyle bool `yaml:"aws_use_path_style"`
	// AWSAccessKeyID and AWSSecretAccessKey override the default AWS
	// credential chain when both are set.
	AWSAccessKeyID     string `yaml:"aws_access_key_id"`
	AWSSecretAccessKey string `yaml:"aws_secret_access_key"`
	// GCSBucket is the GCS bucket name for the gcs backend. The bucket must
	// have object versioning enabled.
	GCSBucket string `yaml:"gcs_bucket"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is the log output format: text or json.
	Format string `yaml:"format"`
}

// Load reads a YAML configuration file from the given path and returns a
// parsed Config with defaults applied. If the primary path fails, it falls
// back to invoicedeck.example.yaml in the same or parent directory.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		fallbackPaths := []string{
			filepath.Join(filepath.Dir(path), "invoicedeck.example.yaml"),
			filepath.Join(filepath.Dir(path), "..", "invoicedeck.example.yaml"),
		}
		var fallbackErr error
		for _, fp := range fallbackPaths {
			data, fallbackErr = os.ReadFile(fp)
			if fallbackErr == nil {
				break
			}
		}
		if fallbackErr != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// The token is the one secret in the file; let deployments keep it in the
	// environment ("${INVOICEDECK_ACCESS_TOKEN}") instead of on disk.
	cfg.Auth.AccessToken = os.ExpandEnv(cfg.Auth.AccessToken)

	applyDefaults(cfg)

	return cfg, nil
}

// Default returns a Config with sensible defaults, without reading any file.
func Default() *Config {
	return defaultConfig()
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8787,
			ShutdownTimeout: 30,
			MaxUploadBytes:  DefaultMaxUploadBytes,
		},
		Metadata: MetadataConfig{
			SQLite: SQLiteConfig{
				Path: "./data/invoicedeck.db",
			},
		},
		Storage: StorageConfig{
			Backend: "memory",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// applyDefaults fills in any fields that are still at their zero value
// after YAML unmarshaling.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8787
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30
	}
	if cfg.Server.MaxUploadBytes == 0 {
		cfg.Server.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.Metadata.SQLite.Path == "" {
		cfg.Metadata.SQLite.Path = "./data/invoicedeck.db"
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "memory"
	}
	if cfg.Storage.AWSRegion == "" {
		cfg.Storage.AWSRegion = "us-east-1"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}
