package config

import (
	"log"
	"time"

	"github.com/anthanhphan/gosdk/conflux"
	"github.com/anthanhphan/gosdk/logger"
)

// Config holds uploader configuration
type Config struct {
	ServerURL             string        `json:"server_url" yaml:"server_url"`
	Token                 string        `json:"token" yaml:"token"`
	Concurrency           int           `json:"concurrency" yaml:"concurrency"`
	RetryAttempts         int           `json:"retry_attempts" yaml:"retry_attempts"`
	RetryBaseDelayMS      int           `json:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RequestTimeoutSeconds int           `json:"request_timeout_seconds" yaml:"request_timeout_seconds"`
	LedgerPath            string        `json:"ledger_path" yaml:"ledger_path"`
	Public                bool          `json:"public" yaml:"public"`
	Logger                logger.Config `json:"logger" yaml:"logger"`
}

// DefaultConfig returns configuration with default values
func DefaultConfig() *Config {
	return &Config{
		ServerURL:             "http://localhost:8090",
		Concurrency:           1,
		RetryAttempts:         3,
		RetryBaseDelayMS:      1000,
		RequestTimeoutSeconds: 300,
		LedgerPath:            "uploader-ledger.db",
		Logger: logger.Config{
			LogLevel:    logger.LevelInfo,
			LogEncoding: logger.EncodingJSON,
		},
	}
}

// RetryBaseDelay is the backoff before the first retry of a failed request.
func (c *Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.RetryBaseDelayMS) * time.Millisecond
}

// RequestTimeout bounds one chunk, finalize or cancel request.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// Load loads configuration from file; an empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	parsedCfg, err := conflux.ParseConfig(path, cfg)
	if err != nil {
		log.Printf("Failed to parse uploader config, path: %s, error: %v", path, err)
		return nil, err
	}
	return parsedCfg, nil
}
