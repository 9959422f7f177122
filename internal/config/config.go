// Package config provides centralized configuration for the leadsync client
// and its reference backend. Values come from environment variables (and a
// .env file loaded by main) with defaults, and are validated on startup so
// misconfiguration fails fast.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	API       APIConfig
	Retry     RetryConfig
	Import    ImportConfig
	Storage   StorageConfig
	Logging   LoggingConfig
	Metrics   MetricsConfig
	DevServer DevServerConfig
}

// APIConfig holds settings for talking to the CRM backend.
type APIConfig struct {
	// BaseURL is the backend origin, e.g. https://crm.example.com
	BaseURL string `env:"LEADSYNC_API_URL" envAlt:"API_URL" default:"http://localhost:8080"`

	LoginPath   string `env:"API_LOGIN_PATH" default:"/api/auth/login"`
	RefreshPath string `env:"API_REFRESH_PATH" default:"/api/auth/refresh"`
	LogoutPath  string `env:"API_LOGOUT_PATH" default:"/api/auth/logout"`
	LeadsPath   string `env:"API_LEADS_PATH" default:"/api/leads"`
	MePath      string `env:"API_ME_PATH" default:"/api/auth/me"`

	// Timeout bounds a single HTTP exchange (default: 30s). Retries are
	// bounded by attempt count, not by this value.
	Timeout time.Duration `env:"API_TIMEOUT" default:"30s"`

	// SingleFlightRefresh makes concurrent 401s share one refresh call.
	SingleFlightRefresh bool `env:"API_SINGLE_FLIGHT_REFRESH" default:"false"`
}

// RetryConfig holds the default backoff policy for record submission.
type RetryConfig struct {
	// MaxAttempts is the number of retries after the first try (default: 3)
	MaxAttempts int `env:"RETRY_MAX_ATTEMPTS" default:"3"`

	BaseDelay time.Duration `env:"RETRY_BASE_DELAY" default:"500ms"`
	MaxDelay  time.Duration `env:"RETRY_MAX_DELAY" default:"10s"`

	// Jitter is the ceiling of the random delay added to each backoff step.
	Jitter time.Duration `env:"RETRY_JITTER" default:"250ms"`
}

// ImportConfig holds bulk import settings.
type ImportConfig struct {
	// MaxFileSize is the largest input file accepted, in bytes (default: 10MB)
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" default:"10485760"`

	// Separator is the field separator for delimited text (default: ",")
	Separator string `env:"IMPORT_SEPARATOR" default:","`

	PreviewRows  int `env:"IMPORT_PREVIEW_ROWS" default:"5"`
	ErrorLogSize int `env:"IMPORT_ERROR_LOG_SIZE" default:"5"`

	DefaultSource string `env:"IMPORT_DEFAULT_SOURCE" default:"CSV Import"`
	DefaultStatus string `env:"IMPORT_DEFAULT_STATUS" default:"new"`

	// RatePerSecond paces submissions; 0 disables pacing.
	RatePerSecond float64 `env:"IMPORT_RATE_PER_SECOND" default:"0"`
}

// StorageConfig holds settings for the durable mirror.
type StorageConfig struct {
	// Dir is where the local state database lives (default: ~/.leadsync)
	Dir string `env:"LEADSYNC_STATE_DIR"`

	// InMemory keeps state for the process lifetime only.
	InMemory bool `env:"LEADSYNC_STATE_IN_MEMORY" default:"false"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// MetricsConfig holds prometheus exposition settings for the client.
type MetricsConfig struct {
	// Addr serves /metrics while a command runs; empty disables it.
	Addr string `env:"METRICS_ADDR"`
}

// DevServerConfig holds settings for the reference CRM backend.
type DevServerConfig struct {
	Host string `env:"DEVSERVER_HOST" default:"127.0.0.1"`
	Port int    `env:"DEVSERVER_PORT" default:"8080"`

	// JWTSecret signs access tokens (HS256).
	JWTSecret string `env:"DEVSERVER_JWT_SECRET" default:"leadsync-dev-secret"`

	AccessTTL  time.Duration `env:"DEVSERVER_ACCESS_TTL" default:"5m"`
	SessionTTL time.Duration `env:"DEVSERVER_SESSION_TTL" default:"24h"`

	UserEmail    string `env:"DEVSERVER_USER_EMAIL" default:"demo@leadsync.local"`
	UserPassword string `env:"DEVSERVER_USER_PASSWORD" default:"demo"`

	// DatabaseURL switches lead storage to PostgreSQL when set.
	DatabaseURL string `env:"DATABASE_URL" envAlt:"DB_URL"`
	DBMaxConns  int    `env:"DB_MAX_CONNS" default:"5"`

	// MaxConcurrent caps in-flight lead writes; excess requests wait up to
	// MaxWait and then get 429.
	MaxConcurrent int           `env:"DEVSERVER_MAX_CONCURRENT" default:"8"`
	MaxWait       time.Duration `env:"DEVSERVER_MAX_WAIT" default:"2s"`

	// FailEvery answers every Nth lead write with 503 (0 disables).
	FailEvery int `env:"DEVSERVER_FAIL_EVERY" default:"0"`

	ShutdownTimeout time.Duration `env:"DEVSERVER_SHUTDOWN_TIMEOUT" default:"10s"`
}

// Addr returns the dev server listen address in host:port format.
func (c *DevServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// StateDir resolves the state directory, falling back to ~/.leadsync.
func (c *StorageConfig) StateDir() string {
	if c.Dir != "" {
		return c.Dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".leadsync"
	}
	return filepath.Join(home, ".leadsync")
}
