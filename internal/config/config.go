// Package config provides centralized configuration management for the
// ingestion pipeline. It loads configuration from environment variables with
// sensible defaults and validates all settings on startup to fail fast on
// misconfiguration.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Store     StoreConfig
	Warehouse WarehouseConfig
	Ingest    IngestConfig
	Logging   LoggingConfig
	Server    ServerConfig
}

// StoreConfig holds settings for the manifest/content SQLite store.
type StoreConfig struct {
	// Path is the SQLite database file (default: fexingest.db)
	Path string `env:"STORE_PATH" default:"fexingest.db"`
}

// WarehouseConfig holds the target Postgres warehouse settings.
// URL may be empty for commands that never load (ingest, scan, status).
type WarehouseConfig struct {
	// URL is the PostgreSQL connection string
	// Supports both WAREHOUSE_URL and DATABASE_URL env vars
	URL string `env:"WAREHOUSE_URL" envAlt:"DATABASE_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"WAREHOUSE_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `env:"WAREHOUSE_MIN_CONNS" default:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"WAREHOUSE_MAX_CONN_LIFETIME" default:"1h"`
}

// IngestConfig holds pipeline processing settings.
type IngestConfig struct {
	// InboxDir is where discovered source files are read from (default: ./inbox)
	InboxDir string `env:"INGEST_INBOX_DIR" default:"./inbox"`

	// OutputDir is where produced output files live, for the metadata
	// scanner (default: ./output)
	OutputDir string `env:"INGEST_OUTPUT_DIR" default:"./output"`

	// CatalogPath is the recipe catalog JSON file (default: ./catalog.json)
	CatalogPath string `env:"INGEST_CATALOG_PATH" default:"./catalog.json"`

	// SourceSystem is recorded on manifest rows (default: taifex)
	SourceSystem string `env:"INGEST_SOURCE_SYSTEM" default:"taifex"`

	// MaxFileSize is the maximum allowed file size in bytes (default: 100MB)
	MaxFileSize int64 `env:"INGEST_MAX_FILE_SIZE" default:"104857600"`

	// MaxConcurrent is the maximum number of files ingested in parallel (default: 4)
	MaxConcurrent int `env:"INGEST_MAX_CONCURRENT" default:"4"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// ServerConfig holds settings for the ops HTTP server (serve command).
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading a request (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing a response (default: 30s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"30s"`

	// ShutdownTimeout is the maximum wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	if c.Store.Path == "" {
		errs = append(errs, "STORE_PATH is required")
	}

	if c.Warehouse.MaxConns <= 0 {
		errs = append(errs, "WAREHOUSE_MAX_CONNS must be positive")
	}
	if c.Warehouse.MinConns < 0 {
		errs = append(errs, "WAREHOUSE_MIN_CONNS must be non-negative")
	}
	if c.Warehouse.MaxConns < c.Warehouse.MinConns {
		errs = append(errs, fmt.Sprintf("WAREHOUSE_MAX_CONNS (%d) must be >= WAREHOUSE_MIN_CONNS (%d)",
			c.Warehouse.MaxConns, c.Warehouse.MinConns))
	}

	if c.Ingest.MaxFileSize <= 0 {
		errs = append(errs, "INGEST_MAX_FILE_SIZE must be positive")
	}
	if c.Ingest.MaxConcurrent <= 0 {
		errs = append(errs, "INGEST_MAX_CONCURRENT must be positive")
	}
	if c.Ingest.CatalogPath == "" {
		errs = append(errs, "INGEST_CATALOG_PATH is required")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be debug, info, warn, or error", c.Logging.Level))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}
