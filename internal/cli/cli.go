// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/cognilib/internal/config"
	"github.com/jeranaias/cognilib/internal/gateway"
	"github.com/jeranaias/cognilib/internal/logging"
	"github.com/jeranaias/cognilib/internal/session"
	"github.com/jeranaias/cognilib/internal/telemetry"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// skipSetupAnnotation marks commands that run without loading configuration.
const skipSetupAnnotation = "cognilib/skip-setup"

// =============================================================================
// APPLICATION STATE
// =============================================================================

// app carries what every command needs once flags are parsed.
type app struct {
	// Flags
	cfgPath    string
	gatewayURL string
	verbose    bool

	cfg      *config.Config
	logger   *zap.Logger
	closeLog func() error
	shutdown telemetry.ShutdownFunc
	tracker  *telemetry.ActivityTracker
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{}
	root := newRootCommand(a)
	err := root.ExecuteContext(ctx)
	a.cleanup()
	if err != nil {
		printError(root.ErrOrStderr(), err)
		return 1
	}
	return 0
}

// newRootCommand builds the command tree around a.
func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "cognilib",
		Short: "Chat with your documents through a knowledge gateway",
		Long: `cognilib is a terminal client for a document knowledge assistant.

Run without arguments to open the interactive TUI. Upload documents, then ask
questions; answers cite the documents they were drawn from.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[skipSetupAnnotation] == "true" {
				return nil
			}
			// The TUI owns the terminal, so it never logs to the console.
			return a.setup(cmd.Context(), a.verbose && cmd.Parent() != nil)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTUI(cmd.Context())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgPath, "config", "", "config file (default ~/.cognilib/config.toml)")
	flags.StringVar(&a.gatewayURL, "gateway", "", "gateway base URL (overrides [gateway] url)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log to stderr as well as the log file")

	root.AddCommand(
		newChatCommand(a),
		newConversationsCommand(a),
		newDocsCommand(a),
		newWatchCommand(a),
		newStatusCommand(a),
		newConfigCommand(a),
		newVersionCommand(),
	)
	return root
}

// =============================================================================
// SETUP AND TEARDOWN
// =============================================================================

func (a *app) setup(ctx context.Context, console bool) error {
	var (
		cfg *config.Config
		err error
	)
	if a.cfgPath != "" {
		cfg, err = config.LoadFromPath(a.cfgPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return errors.Wrap(err, "load config")
	}
	if a.gatewayURL != "" {
		cfg.Gateway.URL = a.gatewayURL
	}
	if console {
		cfg.Logging.Console = true
	}
	a.cfg = cfg

	logger, closeLog, err := logging.New(cfg.Logging, cfg.LogPath())
	if err != nil {
		return errors.Wrap(err, "open log")
	}
	a.logger = logger
	a.closeLog = closeLog
	a.shutdown = telemetry.InitTracer(ctx, cfg.Tracing, logging.Component(logger, "telemetry"))

	var storage *telemetry.ActivityStorage
	if dir, err := activityDir(); err == nil {
		if storage, err = telemetry.NewActivityStorage(dir); err != nil {
			logger.Warn("activity history disabled", zap.Error(err))
		}
	}
	a.tracker = telemetry.NewActivityTracker(storage)
	return nil
}

func (a *app) cleanup() {
	if a.tracker != nil {
		if err := a.tracker.EndSession(); err != nil && a.logger != nil {
			a.logger.Warn("save activity", zap.Error(err))
		}
	}
	if a.shutdown != nil {
		_ = a.shutdown(context.Background())
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	if a.closeLog != nil {
		_ = a.closeLog()
	}
}

// activityDir is where finished runs are recorded.
func activityDir() (string, error) {
	dir, err := config.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "activity"), nil
}

// client builds a gateway client from the loaded configuration.
func (a *app) client() *gateway.Client {
	return gateway.NewFromConfig(a.cfg.Gateway, logging.Component(a.logger, "gateway"))
}

// controller builds a session controller. immediate skips the settle window,
// which only matters when something is watching the upload bar.
func (a *app) controller(client *gateway.Client, immediate bool) *session.Controller {
	cfg := session.ConfigFromUpload(a.cfg.Upload)
	if immediate {
		cfg.SettleDelay = 0
	}
	cfg.Logger = logging.Component(a.logger, "session")
	cfg.Recorder = a.tracker
	return session.New(client, cfg)
}

// =============================================================================
// VERSION
// =============================================================================

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipSetupAnnotation: "true"},
		Run: func(cmd *cobra.Command, args []string) {
			printVersion(cmd.OutOrStdout())
		},
	}
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "cognilib %s\n", Version)
	fmt.Fprintf(w, "  commit: %s\n", GitCommit)
	fmt.Fprintf(w, "  built:  %s\n", BuildDate)
	fmt.Fprintf(w, "  go:     %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
