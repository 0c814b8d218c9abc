// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"

	"github.com/c2h5oh/datasize"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server    ServerConfig
	Upload    UploadConfig
	Staging   StagingConfig
	SFTP      SFTPConfig
	Auth      AuthConfig
	Favorites FavoritesConfig
	Database  DatabaseConfig
	Rate      RateLimitConfig
	Security  SecurityConfig
	Logging   LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 60s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"60s"`

	// WriteTimeout is the maximum duration for writing response (default: 5m)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"5m"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 5m)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"5m"`
}

// UploadConfig holds conversion upload settings.
type UploadConfig struct {
	// MaxFileSize is the largest accepted dataset, e.g. "100MB" (default: 100MB)
	MaxFileSize datasize.ByteSize `env:"UPLOAD_MAX_FILE_SIZE" default:"100MB"`

	// MaxConcurrent is the maximum number of parallel conversions (default: 4)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long to wait for a conversion slot (default: 30s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"30s"`

	// Timeout is the maximum duration for a single conversion (default: 10m)
	Timeout time.Duration `env:"UPLOAD_TIMEOUT" default:"10m"`
}

// StagingConfig holds object-store settings for staged uploads.
type StagingConfig struct {
	// Backend selects the store: s3, minio or memory (default: s3)
	Backend string `env:"STAGING_BACKEND" default:"s3"`

	// Endpoint is the S3-compatible endpoint URL; empty means AWS
	Endpoint string `env:"STAGING_ENDPOINT" envAlt:"S3_ENDPOINT"`

	// Region is the bucket region (default: us-east-1)
	Region string `env:"STAGING_REGION" envAlt:"AWS_REGION" default:"us-east-1"`

	// Bucket is the staging bucket name (default: sas-staging)
	Bucket string `env:"STAGING_BUCKET" default:"sas-staging"`

	// Prefix is prepended to every staged key (default: staging/)
	Prefix string `env:"STAGING_PREFIX" default:"staging/"`

	// AccessKey and SecretKey are static credentials; empty uses the SDK chain
	AccessKey string `env:"STAGING_ACCESS_KEY" envAlt:"AWS_ACCESS_KEY_ID"`
	SecretKey string `env:"STAGING_SECRET_KEY" envAlt:"AWS_SECRET_ACCESS_KEY"`

	// UseSSL applies to the minio backend when Endpoint has no scheme (default: true)
	UseSSL bool `env:"STAGING_USE_SSL" default:"true"`

	// Compress stores objects zstd-compressed (default: false)
	Compress bool `env:"STAGING_COMPRESS" default:"false"`

	// OperationTimeout bounds each put/get/delete (default: 30s)
	OperationTimeout time.Duration `env:"STAGING_OPERATION_TIMEOUT" default:"30s"`
}

// SFTPConfig holds remote transfer settings.
type SFTPConfig struct {
	// DialTimeout bounds TCP connect plus SSH handshake (default: 10s)
	DialTimeout time.Duration `env:"SFTP_DIAL_TIMEOUT" default:"10s"`

	// OperationTimeout bounds a whole remote operation (default: 60s)
	OperationTimeout time.Duration `env:"SFTP_OPERATION_TIMEOUT" default:"60s"`

	// KnownHostsFile enables host key verification when set
	KnownHostsFile string `env:"SFTP_KNOWN_HOSTS"`

	// DefaultPath is browsed when a request omits the path (default: /sasdata)
	DefaultPath string `env:"SFTP_DEFAULT_PATH" default:"/sasdata"`

	// MaxDownloadSize caps ReadFile (default: 1GB)
	MaxDownloadSize datasize.ByteSize `env:"SFTP_MAX_DOWNLOAD_SIZE" default:"1GB"`
}

// AuthConfig holds identity token settings.
type AuthConfig struct {
	// JWTSecret signs and verifies HS256 tokens (required, >= 32 bytes)
	JWTSecret string `env:"JWT_SECRET" required:"true"`

	// TokenTTL is the lifetime of issued tokens (default: 24h)
	TokenTTL time.Duration `env:"JWT_TTL" default:"24h"`

	// Issuer is the iss claim (default: sasbridge)
	Issuer string `env:"JWT_ISSUER" default:"sasbridge"`
}

// FavoritesConfig holds saved-connection persistence settings.
type FavoritesConfig struct {
	// Backend is file or postgres (default: file)
	Backend string `env:"FAVORITES_BACKEND" default:"file"`

	// Path is the JSON-records file for the file backend
	Path string `env:"FAVORITES_PATH" default:"data/favorites.json"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string; empty disables history
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 1)
	MinConns int `env:"DB_MIN_CONNS" default:"1"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// Migrate runs embedded migrations on startup (default: true)
	Migrate bool `env:"DB_MIGRATE" default:"true"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// ConvertLimit is requests per minute for conversion endpoints (default: 10)
	ConvertLimit int `env:"RATE_LIMIT_CONVERT" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// AllowedOrigins is a comma-separated CORS allow list; "*" allows any
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
