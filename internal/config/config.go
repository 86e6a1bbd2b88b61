// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server     ServerConfig
	Upload     UploadConfig
	Validation ValidationConfig
	Rate       RateLimitConfig
	Security   SecurityConfig
	Logging    LoggingConfig
	Storage    StorageConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 30s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"30s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// UploadConfig bounds the spreadsheets held in memory.
type UploadConfig struct {
	// MaxFileSize is the maximum decoded spreadsheet size in bytes (default: 20MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"20971520"`

	// MaxConcurrent is the maximum number of validations in flight (default: 5)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"5"`

	// MaxWaitTime is how long to wait for a validation slot (default: 30s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"30s"`
}

// ValidationConfig holds the health rules applied to every spreadsheet.
type ValidationConfig struct {
	// RequiredHeaders is the exact, ordered header row, separated by "|".
	RequiredHeaders []string `env:"VALIDATION_REQUIRED_HEADERS" sep:"|" default:"Funder Hierarchy|Responsible Unit Name|Project Definition|PD Description"`

	// UniqueColumn is the column that must not contain duplicated values.
	UniqueColumn string `env:"VALIDATION_UNIQUE_COLUMN" default:"Project Definition"`

	// Sheet is the sheet to read; empty means the first sheet of the workbook.
	Sheet string `env:"VALIDATION_SHEET"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the rate limit per IP (default: 60)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"60"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// RequireAPIKey enables X-API-Key authentication on /api routes (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted API keys
	APIKeys []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// StorageConfig configures the S3 source used when an event names an object
// instead of carrying the file inline.
type StorageConfig struct {
	// Enabled turns on the S3 source (default: false)
	Enabled bool `env:"S3_ENABLED" default:"false"`

	// Region is the AWS region (default: us-east-1)
	Region string `env:"S3_REGION" envAlt:"AWS_REGION" default:"us-east-1"`

	// Endpoint overrides the S3 endpoint, e.g. for LocalStack or MinIO
	Endpoint string `env:"S3_ENDPOINT"`

	// UsePathStyle forces path-style addressing (default: false)
	UsePathStyle bool `env:"S3_USE_PATH_STYLE" default:"false"`

	// DefaultBucket is used when an event carries a key without a bucket
	DefaultBucket string `env:"S3_DEFAULT_BUCKET"`

	// AccessKeyID and SecretAccessKey set static credentials. When both are
	// empty the default AWS credential chain is used.
	AccessKeyID     string `env:"S3_ACCESS_KEY_ID" envAlt:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY" envAlt:"AWS_SECRET_ACCESS_KEY"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
