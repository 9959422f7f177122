package config

import (
	"fmt"
	"net/url"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

var durationType = reflect.TypeOf(time.Duration(0))

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// loadStruct recursively populates struct fields from environment variables.
func loadStruct(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		if !fieldVal.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct {
			if err := loadStruct(fieldVal); err != nil {
				return err
			}
			continue
		}

		envName := field.Tag.Get("env")
		if envName == "" {
			continue
		}

		value, ok := lookup(envName, field.Tag.Get("envAlt"))
		if !ok {
			if field.Tag.Get("required") == "true" {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
			value = field.Tag.Get("default")
		}

		if value == "" {
			continue
		}

		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

// lookup returns the first non-empty value of the primary or alternate variable.
func lookup(name, alt string) (string, bool) {
	if v := os.Getenv(name); v != "" {
		return v, true
	}
	if alt != "" {
		if v := os.Getenv(alt); v != "" {
			return v, true
		}
	}
	return "", false
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		if field.Type() == durationType {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.SetInt(int64(d))
			return nil
		}
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		field.SetInt(i)

	case reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid number: %w", err)
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// API
	if u, err := url.Parse(c.API.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("LEADSYNC_API_URL (%q) must be an absolute URL", c.API.BaseURL))
	}
	for name, p := range map[string]string{
		"API_LOGIN_PATH":   c.API.LoginPath,
		"API_REFRESH_PATH": c.API.RefreshPath,
		"API_LOGOUT_PATH":  c.API.LogoutPath,
		"API_LEADS_PATH":   c.API.LeadsPath,
		"API_ME_PATH":      c.API.MePath,
	} {
		if !strings.HasPrefix(p, "/") {
			errs = append(errs, fmt.Sprintf("%s (%q) must start with /", name, p))
		}
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, "API_TIMEOUT must be positive")
	}

	// Retry
	if c.Retry.MaxAttempts < 0 {
		errs = append(errs, "RETRY_MAX_ATTEMPTS must be non-negative")
	}
	if c.Retry.BaseDelay < 0 || c.Retry.Jitter < 0 {
		errs = append(errs, "RETRY_BASE_DELAY and RETRY_JITTER must be non-negative")
	}
	if c.Retry.MaxDelay < c.Retry.BaseDelay {
		errs = append(errs, fmt.Sprintf("RETRY_MAX_DELAY (%s) must be >= RETRY_BASE_DELAY (%s)",
			c.Retry.MaxDelay, c.Retry.BaseDelay))
	}

	// Import
	if c.Import.MaxFileSize <= 0 {
		errs = append(errs, "IMPORT_MAX_FILE_SIZE must be positive")
	}
	if utf8.RuneCountInString(c.Import.Separator) != 1 || c.Import.Separator == `"` {
		errs = append(errs, fmt.Sprintf("IMPORT_SEPARATOR (%q) must be a single non-quote character", c.Import.Separator))
	}
	if c.Import.PreviewRows <= 0 {
		errs = append(errs, "IMPORT_PREVIEW_ROWS must be positive")
	}
	if c.Import.ErrorLogSize <= 0 {
		errs = append(errs, "IMPORT_ERROR_LOG_SIZE must be positive")
	}
	if c.Import.RatePerSecond < 0 {
		errs = append(errs, "IMPORT_RATE_PER_SECOND must be non-negative")
	}

	// Dev server
	if c.DevServer.Port <= 0 || c.DevServer.Port > 65535 {
		errs = append(errs, fmt.Sprintf("DEVSERVER_PORT (%d) must be 1-65535", c.DevServer.Port))
	}
	if c.DevServer.AccessTTL <= 0 || c.DevServer.SessionTTL <= 0 {
		errs = append(errs, "DEVSERVER_ACCESS_TTL and DEVSERVER_SESSION_TTL must be positive")
	}
	if c.DevServer.JWTSecret == "" {
		errs = append(errs, "DEVSERVER_JWT_SECRET must not be empty")
	}
	if c.DevServer.MaxConcurrent <= 0 || c.DevServer.DBMaxConns <= 0 {
		errs = append(errs, "DEVSERVER_MAX_CONCURRENT and DB_MAX_CONNS must be positive")
	}
	if c.DevServer.FailEvery < 0 {
		errs = append(errs, "DEVSERVER_FAIL_EVERY must be non-negative")
	}

	// Logging
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe representation of the config for logging.
// Secrets are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "API: {BaseURL: %q, Timeout: %s, SingleFlightRefresh: %v}, ",
		c.API.BaseURL, c.API.Timeout, c.API.SingleFlightRefresh)
	fmt.Fprintf(&b, "Retry: {MaxAttempts: %d, BaseDelay: %s, MaxDelay: %s}, ",
		c.Retry.MaxAttempts, c.Retry.BaseDelay, c.Retry.MaxDelay)
	fmt.Fprintf(&b, "Import: {Separator: %q, ErrorLogSize: %d}, ",
		c.Import.Separator, c.Import.ErrorLogSize)
	fmt.Fprintf(&b, "DevServer: {Addr: %q, JWTSecret: [MASKED], DatabaseURL: %s}, ",
		c.DevServer.Addr(), maskIfSet(c.DevServer.DatabaseURL))
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}", c.Logging.Level, c.Logging.Format)
	b.WriteString("}")
	return b.String()
}

func maskIfSet(s string) string {
	if s == "" {
		return `""`
	}
	return "[MASKED]"
}
