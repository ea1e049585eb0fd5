// Package config provides configuration management for tagd.
// Configuration is loaded from environment variables with sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	// Default values
	DefaultPort       = 4000
	DefaultLogLevel   = "info"
	DefaultDataDir    = ".tagd"
	DefaultCORSOrigin = "*"

	// Environment variable names
	EnvPort       = "TAGD_PORT"
	EnvLogLevel   = "TAGD_LOG_LEVEL"
	EnvDataDir    = "TAGD_DATA_DIR"
	EnvCORSOrigin = "TAGD_CORS_ORIGIN"

	// Extraction environment variable names
	EnvFFmpegPath         = "TAGD_FFMPEG"
	EnvExtractConcurrency = "TAGD_EXTRACT_CONCURRENCY"
	EnvFFmpegTimeoutS     = "TAGD_FFMPEG_TIMEOUT_S"

	// Database filename
	DBFilename = "events.db"

	// Extraction defaults
	DefaultExtractConcurrency = 4
	DefaultFFmpegTimeoutS     = 0 // no per-clip timeout unless configured
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	ClipsDir() string
	UploadsDir() string
	CORSOrigin() string
	FFmpegPath() string
	ExtractConcurrency() int
	FFmpegTimeout() time.Duration
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port               int
	logLevel           string
	dataDir            string
	corsOrigin         string
	ffmpegPath         string
	extractConcurrency int
	ffmpegTimeoutS     int
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:               DefaultPort,
		logLevel:           DefaultLogLevel,
		dataDir:            defaultDataDir(),
		corsOrigin:         DefaultCORSOrigin,
		extractConcurrency: DefaultExtractConcurrency,
		ffmpegTimeoutS:     DefaultFFmpegTimeoutS,
	}

	// Override port from environment
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	// Override log level from environment
	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	// Override data directory from environment
	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	if co := os.Getenv(EnvCORSOrigin); co != "" {
		cfg.corsOrigin = co
	}

	cfg.ffmpegPath = os.Getenv(EnvFFmpegPath)

	if ec := os.Getenv(EnvExtractConcurrency); ec != "" {
		n, err := strconv.Atoi(ec)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid %s: must be a positive integer", EnvExtractConcurrency)
		}
		cfg.extractConcurrency = n
	}

	if ts := os.Getenv(EnvFFmpegTimeoutS); ts != "" {
		n, err := strconv.Atoi(ts)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid %s: must be a non-negative integer", EnvFFmpegTimeoutS)
		}
		cfg.ffmpegTimeoutS = n
	}

	return cfg, nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// ClipsDir returns the base directory for extracted clips
func (c *EnvConfig) ClipsDir() string {
	return filepath.Join(c.dataDir, "clips")
}

// UploadsDir returns the directory for uploaded videos
func (c *EnvConfig) UploadsDir() string {
	return filepath.Join(c.dataDir, "uploads")
}

// CORSOrigin returns the allowed CORS origin ("*" allows any)
func (c *EnvConfig) CORSOrigin() string {
	return c.corsOrigin
}

// FFmpegPath returns the configured ffmpeg binary path; empty means auto-detect
func (c *EnvConfig) FFmpegPath() string {
	return c.ffmpegPath
}

// ExtractConcurrency returns the maximum number of concurrent transcodes
func (c *EnvConfig) ExtractConcurrency() int {
	return c.extractConcurrency
}

// FFmpegTimeout returns the per-clip transcode timeout; zero means none
func (c *EnvConfig) FFmpegTimeout() time.Duration {
	return time.Duration(c.ffmpegTimeoutS) * time.Second
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
