// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package main runs the local development gateway.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/cognilib/internal/config"
	"github.com/jeranaias/cognilib/internal/devgateway"
	"github.com/jeranaias/cognilib/internal/logging"
	"github.com/jeranaias/cognilib/internal/telemetry"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		addr       string
		dbPath     string
	)

	cmd := &cobra.Command{
		Use:           "devgateway",
		Short:         "Serve the knowledge gateway API locally",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.DevGateway.Addr = addr
			}
			if cmd.Flags().Changed("db") {
				cfg.DevGateway.DBPath = dbPath
			}
			return run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "config file (default ~/.cognilib/config.toml)")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from [devgateway] addr)")
	cmd.Flags().StringVar(&dbPath, "db", "", `SQLite path, or ":memory:" (default from [devgateway] db_path)`)
	return cmd
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFromPath(path)
}

func run(ctx context.Context, cfg *config.Config) error {
	logCfg := cfg.Logging
	logCfg.Console = true
	logger, closeLog, err := logging.New(logCfg, cfg.LogPath())
	if err != nil {
		return err
	}
	defer closeLog()
	logger = logging.Component(logger, "devgateway")

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer := telemetry.InitTracer(ctx, cfg.Tracing, logger)
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(flushCtx); err != nil {
			logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()

	srv, err := devgateway.New(cfg.DevGateway, logger)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Listen() }()

	select {
	case err := <-errCh:
		_ = srv.Shutdown()
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
		return srv.Shutdown()
	}
}
