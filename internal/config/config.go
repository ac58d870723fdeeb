// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"dario.cat/mergo"
	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/jeranaias/cognilib/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete cognilib configuration.
//
// Every boolean defaults to false so that unset fields can be filled from
// Default() without overriding an explicit choice.
type Config struct {
	Version string `toml:"version" validate:"required"`

	Gateway    GatewayConfig    `toml:"gateway"`
	Upload     UploadConfig     `toml:"upload"`
	Logging    LoggingConfig    `toml:"logging"`
	Tracing    TracingConfig    `toml:"tracing"`
	Watch      WatchConfig      `toml:"watch"`
	UI         UIConfig         `toml:"ui"`
	DevGateway DevGatewayConfig `toml:"devgateway"`
}

// GatewayConfig describes how to reach the knowledge gateway.
type GatewayConfig struct {
	// URL is the gateway base URL, without the API prefix.
	URL string `toml:"url" validate:"required,url"`
	// APIPrefix is prepended to every route (e.g. "/api").
	APIPrefix string `toml:"api_prefix" validate:"omitempty,startswith=/"`
	// TimeoutSecs bounds every request, including uploads.
	TimeoutSecs int `toml:"timeout_secs" validate:"min=1,max=600"`
	// MaxRetries applies to idempotent reads only.
	MaxRetries int `toml:"max_retries" validate:"min=0,max=10"`
	// RateLimit is the sustained request rate per second. Negative disables limiting.
	RateLimit float64 `toml:"rate_limit"`
	// RateBurst is the limiter burst size.
	RateBurst int `toml:"rate_burst" validate:"min=1"`
	// MaxUploadMB rejects larger files before they are sent.
	MaxUploadMB int `toml:"max_upload_mb" validate:"min=1,max=1024"`
}

// UploadConfig tunes the upload progress estimator.
type UploadConfig struct {
	TickMS  int `toml:"tick_ms" validate:"min=10,max=10000"`
	Step    int `toml:"step" validate:"min=1,max=99"`
	Ceiling int `toml:"ceiling" validate:"min=1,max=99"`
	// SettleMS is how long a finished upload stays visible. Negative resets immediately.
	SettleMS int `toml:"settle_ms"`
}

// LoggingConfig controls the structured log.
type LoggingConfig struct {
	Level string `toml:"level" validate:"oneof=debug info warn error"`
	// Path is the rotated log file (empty = ~/.cognilib/cognilib.log).
	Path string `toml:"path"`
	// Console also writes logs to stderr. Never enabled for the TUI.
	Console bool `toml:"console"`
}

// TracingConfig controls OpenTelemetry export.
type TracingConfig struct {
	Enabled     bool   `toml:"enabled"`
	Endpoint    string `toml:"endpoint" validate:"required"`
	ServiceName string `toml:"service_name" validate:"required"`
	// Secure uses TLS for the OTLP exporter.
	Secure bool `toml:"secure"`
}

// WatchConfig configures the drop-folder watcher.
type WatchConfig struct {
	Dir        string   `toml:"dir"`
	DebounceMS int      `toml:"debounce_ms" validate:"min=0,max=60000"`
	Extensions []string `toml:"extensions" validate:"min=1,dive,startswith=."`
}

// UIConfig contains presentation settings.
type UIConfig struct {
	PlainText   bool `toml:"plain_text"`
	HideSources bool `toml:"hide_sources"`
	WordWrap    int  `toml:"word_wrap" validate:"min=20,max=400"`
}

// DevGatewayConfig configures the local development gateway.
type DevGatewayConfig struct {
	Addr         string `toml:"addr" validate:"required"`
	DBPath       string `toml:"db_path" validate:"required"`
	CacheTTLSecs int    `toml:"cache_ttl_secs" validate:"min=0"`
	ChunkSize    int    `toml:"chunk_size" validate:"min=50"`
	ChunkOverlap int    `toml:"chunk_overlap" validate:"min=0,ltfield=ChunkSize"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Version: "1",
		Gateway: GatewayConfig{
			URL:         "http://localhost:8001",
			APIPrefix:   "/api",
			TimeoutSecs: 60,
			MaxRetries:  3,
			RateLimit:   20,
			RateBurst:   10,
			MaxUploadMB: 25,
		},
		Upload: UploadConfig{
			TickMS:   200,
			Step:     10,
			Ceiling:  90,
			SettleMS: 500,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Tracing: TracingConfig{
			Endpoint:    "localhost:4318",
			ServiceName: "cognilib",
		},
		Watch: WatchConfig{
			DebounceMS: 500,
			Extensions: []string{".pdf", ".txt", ".md", ".docx"},
		},
		UI: UIConfig{
			WordWrap: 80,
		},
		DevGateway: DevGatewayConfig{
			Addr:         ":8001",
			DBPath:       ":memory:",
			CacheTTLSecs: 30,
			ChunkSize:    500,
			ChunkOverlap: 50,
		},
	}
}

// =============================================================================
// DURATION HELPERS
// =============================================================================

// Timeout returns the request timeout.
func (g GatewayConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSecs) * time.Second
}

// MaxUploadBytes returns the upload size limit in bytes.
func (g GatewayConfig) MaxUploadBytes() int64 {
	return int64(g.MaxUploadMB) << 20
}

// TickInterval returns the estimator tick.
func (u UploadConfig) TickInterval() time.Duration {
	return time.Duration(u.TickMS) * time.Millisecond
}

// SettleDelay returns how long a finished upload stays visible.
func (u UploadConfig) SettleDelay() time.Duration {
	if u.SettleMS < 0 {
		return 0
	}
	return time.Duration(u.SettleMS) * time.Millisecond
}

// Debounce returns the watcher debounce window.
func (w WatchConfig) Debounce() time.Duration {
	return time.Duration(w.DebounceMS) * time.Millisecond
}

// CacheTTL returns the devgateway list cache lifetime.
func (d DevGatewayConfig) CacheTTL() time.Duration {
	return time.Duration(d.CacheTTLSecs) * time.Second
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the cognilib configuration directory path.
// COGNILIB_HOME overrides the default of ~/.cognilib.
func ConfigDir() (string, error) {
	if dir := os.Getenv("COGNILIB_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".cognilib"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	if path := os.Getenv("COGNILIB_CONFIG"); path != "" {
		return path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// LogPath returns the configured log file, or the default inside ConfigDir.
func (c *Config) LogPath() string {
	if c.Logging.Path != "" {
		return c.Logging.Path
	}
	dir, err := ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "cognilib.log")
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// loadDotEnv loads .env from the working directory when present.
// Variables already set in the environment win.
func loadDotEnv() error {
	if _, err := os.Stat(".env"); err != nil {
		return nil
	}
	if err := godotenv.Load(".env"); err != nil {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// Load loads configuration from the default path.
// A missing file yields defaults. Environment overrides are applied last.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific file with full validation.
// A missing file is not an error.
func LoadFromPath(path string) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	cfg := Default()
	if _, statErr := os.Stat(path); statErr == nil {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	cfg.ApplyEnvOverrides()
	if err := fillDefaults(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file over cfg and rejects unknown keys.
func LoadTOML(cfg *Config, path string) error {
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

// fillDefaults fills zero-valued fields from Default().
func fillDefaults(cfg *Config) error {
	if err := mergo.Merge(cfg, Default()); err != nil {
		return fmt.Errorf("failed to apply defaults: %w", err)
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default path.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes the configuration atomically with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# cognilib configuration file\n")
	buf.WriteString("# Generated by cognilib - edit with care\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// String renders the configuration as TOML.
func (c *Config) String() string {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Sprintf("<config: %v>", err)
	}
	return buf.String()
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// validatorInstance returns a validator that reports fields by their TOML key.
func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("toml"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate validates the configuration and returns any errors as ValidateErrors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if err := validatorInstance().Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		for _, fe := range fieldErrs {
			errs = append(errs, ValidationError{
				Field:   strings.TrimPrefix(fe.Namespace(), "Config."),
				Message: describeFieldError(fe),
			})
		}
	}

	if c.Upload.Step > c.Upload.Ceiling {
		errs = append(errs, ValidationError{
			Field:   "upload.step",
			Message: fmt.Sprintf("step %d exceeds ceiling %d", c.Upload.Step, c.Upload.Ceiling),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "url":
		return fmt.Sprintf("invalid URL %q", fe.Value())
	case "oneof":
		return fmt.Sprintf("invalid value %q, must be one of: %s", fe.Value(), fe.Param())
	case "min", "gte":
		return fmt.Sprintf("value %v is below minimum %s", fe.Value(), fe.Param())
	case "max", "lte":
		return fmt.Sprintf("value %v exceeds maximum %s", fe.Value(), fe.Param())
	case "startswith":
		return fmt.Sprintf("value %q must start with %q", fe.Value(), fe.Param())
	case "ltfield":
		return fmt.Sprintf("value %v must be less than %s", fe.Value(), fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the configuration.
//
// Supported variables:
//   - COGNILIB_GATEWAY_URL: overrides gateway.url
//   - COGNILIB_API_PREFIX: overrides gateway.api_prefix
//   - COGNILIB_TIMEOUT_SECS: overrides gateway.timeout_secs
//   - COGNILIB_LOG_LEVEL: overrides logging.level
//   - COGNILIB_LOG_PATH: overrides logging.path
//   - COGNILIB_WATCH_DIR: overrides watch.dir
//   - COGNILIB_DEVGATEWAY_ADDR: overrides devgateway.addr
//   - COGNILIB_DEVGATEWAY_DB: overrides devgateway.db_path
//   - OTEL_ENABLED: overrides tracing.enabled
//   - OTEL_EXPORTER_OTLP_ENDPOINT: overrides tracing.endpoint
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("COGNILIB_GATEWAY_URL"); v != "" {
		c.Gateway.URL = v
	}
	if v := os.Getenv("COGNILIB_API_PREFIX"); v != "" {
		c.Gateway.APIPrefix = v
	}
	if v := os.Getenv("COGNILIB_TIMEOUT_SECS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			c.Gateway.TimeoutSecs = secs
		}
	}
	if v := os.Getenv("COGNILIB_LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("COGNILIB_LOG_PATH"); v != "" {
		c.Logging.Path = v
	}
	if v := os.Getenv("COGNILIB_WATCH_DIR"); v != "" {
		c.Watch.Dir = v
	}
	if v := os.Getenv("COGNILIB_DEVGATEWAY_ADDR"); v != "" {
		c.DevGateway.Addr = v
	}
	if v := os.Getenv("COGNILIB_DEVGATEWAY_DB"); v != "" {
		c.DevGateway.DBPath = v
	}
	if v := os.Getenv("OTEL_ENABLED"); v != "" {
		c.Tracing.Enabled = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		c.Tracing.Endpoint = v
	}
}

// =============================================================================
// GLOBAL CONFIG
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance.
// Loads configuration on first access and falls back to defaults on error. Thread-safe.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
			cfg = Default()
		}
		globalConfigMu.Lock()
		if globalConfig == nil {
			globalConfig = cfg
		}
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// ReloadGlobal reloads the global configuration from disk.
// The current configuration is kept when loading fails.
func ReloadGlobal() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	SetGlobal(cfg)
	return nil
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
