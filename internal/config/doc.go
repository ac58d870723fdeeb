// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for cognilib.
//
// Configuration is TOML with defaults filled for unset fields, .env support,
// environment variable overrides and struct-tag validation.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - GatewayConfig: Gateway address, timeouts, retries and rate limits
//   - UploadConfig: Upload progress estimator tuning
//   - LoggingConfig, TracingConfig: Observability settings
//   - WatchConfig: Drop-folder watcher settings
//   - DevGatewayConfig: Local development gateway settings
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (COGNILIB_*, OTEL_*), including values from ./.env
//   - $COGNILIB_CONFIG or ~/.cognilib/config.toml
//   - Built-in defaults
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Access settings:
//
//	url := cfg.Gateway.URL
//	tick := cfg.Upload.TickInterval()
package config
