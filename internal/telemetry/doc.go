// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry provides tracing and activity tracking for cognilib.
//
// Tracing uses OpenTelemetry with an OTLP/HTTP exporter and is off unless
// enabled in config. Activity tracking tallies operation outcomes per client
// run and persists finished runs for the status command.
//
// # Key Types
//
//   - ActivityTracker: Records operation outcomes for the running session
//   - ActivitySession: Aggregated counts and slowest operations for one run
//   - ActivityStorage: JSON-file persistence for finished sessions
//   - ShutdownFunc: Flushes the tracer provider on exit
//
// # Usage
//
// Install the tracer:
//
//	shutdown := telemetry.InitTracer(ctx, cfg.Tracing, logger)
//	defer shutdown(context.Background())
//
// Track activity:
//
//	tracker := telemetry.NewActivityTracker(storage)
//	tracker.Record("send", telemetry.OutcomeOK, elapsed)
package telemetry
