// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the config directory at a temp dir and clears overrides.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("COGNILIB_HOME", dir)
	t.Setenv("COGNILIB_CONFIG", "")
	for _, key := range []string{
		"COGNILIB_GATEWAY_URL", "COGNILIB_API_PREFIX", "COGNILIB_TIMEOUT_SECS",
		"COGNILIB_LOG_LEVEL", "COGNILIB_LOG_PATH", "COGNILIB_WATCH_DIR",
		"COGNILIB_DEVGATEWAY_ADDR", "COGNILIB_DEVGATEWAY_DB",
		"OTEL_ENABLED", "OTEL_EXPORTER_OTLP_ENDPOINT",
	} {
		t.Setenv(key, "")
	}
	return dir
}

// =============================================================================
// GLOBAL CONFIG TESTS
// =============================================================================

// TestConfig_ConcurrentAccess tests that Global() and SetGlobal()
// can be safely called concurrently.
// Run with: go test -race -v ./internal/config/
func TestConfig_ConcurrentAccess(t *testing.T) {
	isolate(t)
	ResetGlobalForTesting()
	defer ResetGlobalForTesting()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)

		go func() {
			defer wg.Done()
			c := Default()
			c.Gateway.URL = "http://gateway.test"
			SetGlobal(c)
		}()

		go func() {
			defer wg.Done()
			if Global() == nil {
				t.Error("Global() returned nil")
			}
		}()
	}
	wg.Wait()
}

func TestConfig_ConcurrentReload(t *testing.T) {
	isolate(t)
	ResetGlobalForTesting()
	defer ResetGlobalForTesting()

	_ = Global()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = ReloadGlobal()
		}()
	}
	for i := 0; i < 80; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if Global() == nil {
				t.Error("Global() returned nil")
			}
		}()
	}
	wg.Wait()
}

func TestConfig_SetGlobalOverwrites(t *testing.T) {
	isolate(t)
	ResetGlobalForTesting()
	defer ResetGlobalForTesting()

	c := Default()
	c.Gateway.URL = "http://other:9000"
	SetGlobal(c)

	if got := Global().Gateway.URL; got != "http://other:9000" {
		t.Errorf("Global().Gateway.URL = %q, want http://other:9000", got)
	}
}

// =============================================================================
// DEFAULT AND VALIDATION TESTS
// =============================================================================

func TestConfig_Default(t *testing.T) {
	cfg := Default()

	if cfg.Gateway.APIPrefix != "/api" {
		t.Errorf("APIPrefix = %q, want /api", cfg.Gateway.APIPrefix)
	}
	if cfg.Upload.TickInterval() != 200*time.Millisecond {
		t.Errorf("TickInterval = %v, want 200ms", cfg.Upload.TickInterval())
	}
	if cfg.Upload.Step != 10 || cfg.Upload.Ceiling != 90 {
		t.Errorf("estimator = +%d up to %d, want +10 up to 90", cfg.Upload.Step, cfg.Upload.Ceiling)
	}
	if cfg.Upload.SettleDelay() != 500*time.Millisecond {
		t.Errorf("SettleDelay = %v, want 500ms", cfg.Upload.SettleDelay())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{"bad url", func(c *Config) { c.Gateway.URL = "not a url" }, "gateway.url"},
		{"empty url", func(c *Config) { c.Gateway.URL = "" }, "gateway.url"},
		{"prefix without slash", func(c *Config) { c.Gateway.APIPrefix = "api" }, "gateway.api_prefix"},
		{"zero timeout", func(c *Config) { c.Gateway.TimeoutSecs = 0 }, "gateway.timeout_secs"},
		{"bad level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"step above ceiling", func(c *Config) { c.Upload.Step = 95 }, "upload.step"},
		{"extension without dot", func(c *Config) { c.Watch.Extensions = []string{"pdf"} }, "watch.extensions[0]"},
		{"overlap not below size", func(c *Config) { c.DevGateway.ChunkOverlap = 500 }, "devgateway.chunk_overlap"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)

			var verrs ValidateErrors
			require.True(t, errors.As(err, &verrs), "expected ValidateErrors, got %T", err)

			found := false
			for _, ve := range verrs {
				if ve.Field == tc.wantField {
					found = true
				}
			}
			assert.True(t, found, "no error for %s in %v", tc.wantField, verrs)
		})
	}
}

func TestValidateErrors_Error(t *testing.T) {
	errs := ValidateErrors{
		{Field: "gateway.url", Message: "is required"},
		{Field: "logging.level", Message: "bad"},
	}
	assert.Equal(t, "gateway.url: is required; logging.level: bad", errs.Error())
	assert.Equal(t, "no validation errors", ValidateErrors{}.Error())
}

// =============================================================================
// LOAD / SAVE TESTS
// =============================================================================

func TestLoadFromPath_MissingFileUsesDefaults(t *testing.T) {
	dir := isolate(t)

	cfg, err := LoadFromPath(filepath.Join(dir, "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Gateway, cfg.Gateway)
}

func TestLoadFromPath_PartialFileKeepsDefaults(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	content := `
[gateway]
url = "http://kb.internal:8080"

[ui]
plain_text = true

[upload]
step = 0
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, "http://kb.internal:8080", cfg.Gateway.URL)
	assert.Equal(t, "/api", cfg.Gateway.APIPrefix)
	assert.True(t, cfg.UI.PlainText)
	assert.Equal(t, 10, cfg.Upload.Step, "zero values are filled from defaults")
	assert.Equal(t, 80, cfg.UI.WordWrap)
}

func TestLoadFromPath_UnknownKey(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[gateway]\nhost = \"x\"\n"), 0600))

	_, err := LoadFromPath(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gateway.host")
}

func TestLoadFromPath_InvalidValue(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[logging]\nlevel = \"loud\"\n"), 0600))

	_, err := LoadFromPath(path)
	require.Error(t, err)

	var verrs ValidateErrors
	assert.True(t, errors.As(err, &verrs))
}

func TestApplyEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("COGNILIB_GATEWAY_URL", "http://env:1234")
	t.Setenv("COGNILIB_LOG_LEVEL", "DEBUG")
	t.Setenv("COGNILIB_TIMEOUT_SECS", "15")
	t.Setenv("OTEL_ENABLED", "true")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	assert.Equal(t, "http://env:1234", cfg.Gateway.URL)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 15*time.Second, cfg.Gateway.Timeout())
	assert.True(t, cfg.Tracing.Enabled)
}

func TestSaveTOML_RoundTrip(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "nested", "config.toml")

	cfg := Default()
	cfg.Gateway.URL = "http://saved:8001"
	cfg.Watch.Dir = "/tmp/inbox"
	require.NoError(t, SaveTOML(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# cognilib configuration file"))

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "http://saved:8001", loaded.Gateway.URL)
	assert.Equal(t, "/tmp/inbox", loaded.Watch.Dir)
}

func TestSettleDelay_NegativeIsImmediate(t *testing.T) {
	u := UploadConfig{SettleMS: -1}
	assert.Equal(t, time.Duration(0), u.SettleDelay())
}

func TestConfigPath_EnvOverride(t *testing.T) {
	isolate(t)
	t.Setenv("COGNILIB_CONFIG", "/etc/cognilib.toml")

	path, err := ConfigPath()
	require.NoError(t, err)
	assert.Equal(t, "/etc/cognilib.toml", path)
}
