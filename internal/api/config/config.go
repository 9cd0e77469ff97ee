package config

import (
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/anthanhphan/gosdk/conflux"
	"github.com/anthanhphan/gosdk/logger"
)

// Config holds gateway configuration
type Config struct {
	Server    ServerConfig    `json:"server" yaml:"server"`
	App       AppConfig       `json:"app" yaml:"app"`
	Crypto    CryptoConfig    `json:"crypto" yaml:"crypto"`
	Auth      AuthConfig      `json:"auth" yaml:"auth"`
	Blob      BlobConfig      `json:"blob" yaml:"blob"`
	Database  DatabaseConfig  `json:"database" yaml:"database"`
	Redis     RedisConfig     `json:"redis" yaml:"redis"`
	RateLimit RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`
	Janitor   JanitorConfig   `json:"janitor" yaml:"janitor"`
	Logger    logger.Config   `json:"logger" yaml:"logger"`
}

type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"`
	// BodyLimit caps any request body; chunk uploads need MaxChunkSize plus multipart overhead.
	BodyLimit int `json:"body_limit" yaml:"body_limit"`
}

type AppConfig struct {
	NodeID                    int64 `json:"node_id" yaml:"node_id"`
	MaxChunkSize              int64 `json:"max_chunk_size" yaml:"max_chunk_size"`
	DefaultQuotaBytes         int64 `json:"default_quota_bytes" yaml:"default_quota_bytes"`
	FailOpenOnQuotaCheckError bool  `json:"fail_open_on_quota_check_error" yaml:"fail_open_on_quota_check_error"`
	LinkRefreshMarginSeconds  int   `json:"link_refresh_margin_seconds" yaml:"link_refresh_margin_seconds"`
	MaxRetries                int   `json:"max_retries" yaml:"max_retries"`
	RetryBaseDelayMS          int   `json:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	UpstreamTimeoutMS         int   `json:"upstream_timeout_ms" yaml:"upstream_timeout_ms"`
	BreakerFailureThreshold   int   `json:"breaker_failure_threshold" yaml:"breaker_failure_threshold"`
	BreakerOpenTimeoutMS      int   `json:"breaker_open_timeout_ms" yaml:"breaker_open_timeout_ms"`
}

type CryptoConfig struct {
	Secret        string `json:"secret" yaml:"secret"`
	KeyDerivation string `json:"key_derivation" yaml:"key_derivation"` // "hkdf-sha256" or "sha256"
}

type AuthConfig struct {
	JWTSecret string `json:"jwt_secret" yaml:"jwt_secret"`
}

type BlobConfig struct {
	Driver           string `json:"driver" yaml:"driver"` // "s3" or "memory"
	Bucket           string `json:"bucket" yaml:"bucket"`
	Region           string `json:"region" yaml:"region"`
	Endpoint         string `json:"endpoint" yaml:"endpoint"`
	AccessKey        string `json:"access_key" yaml:"access_key"`
	SecretKey        string `json:"secret_key" yaml:"secret_key"`
	UsePathStyle     bool   `json:"use_path_style" yaml:"use_path_style"`
	KeyPrefix        string `json:"key_prefix" yaml:"key_prefix"`
	URLExpirySeconds int    `json:"url_expiry_seconds" yaml:"url_expiry_seconds"`
	// PublicBaseURL is where the memory driver's blobs are reachable.
	PublicBaseURL string `json:"public_base_url" yaml:"public_base_url"`
}

type DatabaseConfig struct {
	Driver      string `json:"driver" yaml:"driver"` // "postgres" or "memory"
	DSN         string `json:"dsn" yaml:"dsn"`
	AutoMigrate bool   `json:"auto_migrate" yaml:"auto_migrate"`
}

type RedisConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
}

type RateLimitConfig struct {
	Enabled                bool `json:"enabled" yaml:"enabled"`
	GlobalMax              int  `json:"global_max" yaml:"global_max"`
	GlobalWindowSeconds    int  `json:"global_window_seconds" yaml:"global_window_seconds"`
	SensitiveMax           int  `json:"sensitive_max" yaml:"sensitive_max"`
	SensitiveWindowSeconds int  `json:"sensitive_window_seconds" yaml:"sensitive_window_seconds"`
}

type JanitorConfig struct {
	Enabled            bool `json:"enabled" yaml:"enabled"`
	IntervalSeconds    int  `json:"interval_seconds" yaml:"interval_seconds"`
	GracePeriodSeconds int  `json:"grace_period_seconds" yaml:"grace_period_seconds"`
	BatchSize          int  `json:"batch_size" yaml:"batch_size"`
}

// DefaultConfig returns configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:      ":8090",
			BodyLimit: 21 * 1024 * 1024,
		},
		App: AppConfig{
			NodeID:                    1,
			MaxChunkSize:              20 * 1024 * 1024,
			DefaultQuotaBytes:         1024 * 1024 * 1024, // 1GB
			FailOpenOnQuotaCheckError: true,
			LinkRefreshMarginSeconds:  300,
			MaxRetries:                3,
			RetryBaseDelayMS:          200,
			UpstreamTimeoutMS:         30000,
			BreakerFailureThreshold:   5,
			BreakerOpenTimeoutMS:      10000,
		},
		Crypto: CryptoConfig{
			KeyDerivation: "hkdf-sha256",
		},
		Blob: BlobConfig{
			Driver:           "memory",
			Region:           "us-east-1",
			KeyPrefix:        "chunks/",
			URLExpirySeconds: 24 * 3600,
			PublicBaseURL:    "http://localhost:8090/_blobs",
		},
		Database: DatabaseConfig{
			Driver:      "memory",
			AutoMigrate: true,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		RateLimit: RateLimitConfig{
			GlobalMax:              2000,
			GlobalWindowSeconds:    15 * 60,
			SensitiveMax:           50,
			SensitiveWindowSeconds: 3600,
		},
		Janitor: JanitorConfig{
			IntervalSeconds:    3600,
			GracePeriodSeconds: 24 * 3600,
			BatchSize:          500,
		},
		Logger: logger.Config{
			LogLevel:    logger.LevelInfo,
			LogEncoding: logger.EncodingJSON,
		},
	}
}

// LinkRefreshMargin is how close to expiry a blob url is refreshed before use.
func (c AppConfig) LinkRefreshMargin() time.Duration {
	return time.Duration(c.LinkRefreshMarginSeconds) * time.Second
}

// UpstreamTimeout bounds one blob host call.
func (c AppConfig) UpstreamTimeout() time.Duration {
	if c.UpstreamTimeoutMS <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.UpstreamTimeoutMS) * time.Millisecond
}

// Load loads configuration from file
func Load(path string) (*Config, error) {
	configPath := path
	if configPath == "" {
		env := os.Getenv("ENV")
		if env == "" {
			env = "local"
		}
		configPath = filepath.Join("internal", "api", "config", env+".yaml")
	}

	cfg := DefaultConfig()

	parsedCfg, err := conflux.ParseConfig(configPath, cfg)
	if err != nil {
		// The logger is configured from this file, so it is not available yet.
		log.Printf("Config file not found or failed to parse, path: %s, error: %v", configPath, err)
		if path != "" {
			return nil, err
		}
		return cfg, nil
	}

	return parsedCfg, nil
}

// MustLoad loads configuration or exits on error
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}
