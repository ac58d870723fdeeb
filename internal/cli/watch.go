// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jeranaias/cognilib/internal/logging"
	"github.com/jeranaias/cognilib/internal/util"
	"github.com/jeranaias/cognilib/internal/watch"
)

// =============================================================================
// WATCH COMMAND
// =============================================================================

func newWatchCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [DIR]",
		Short: "Upload files dropped into a folder",
		Long: `Watch a folder and upload every supported file that appears in it or
changes. The folder defaults to [watch] dir. Stop with Ctrl+C.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := a.cfg.Watch.Dir
			if len(args) == 1 {
				dir = args[0]
			}
			if dir == "" {
				return errors.New("no folder given and [watch] dir is not set")
			}
			return a.runWatch(cmd, dir)
		},
	}
}

func (a *app) runWatch(cmd *cobra.Command, dir string) error {
	ctrl, err := a.startController(cmd)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()
	w, err := watch.New(ctrl, watch.Options{
		Dir:        dir,
		Debounce:   a.cfg.Watch.Debounce(),
		Extensions: a.cfg.Watch.Extensions,
		Logger:     logging.Component(a.logger, "watch"),
		OnResult: func(r watch.Result) {
			if r.Err != nil {
				printError(errOut, errors.Wrap(r.Err, filepath.Base(r.Path)))
				return
			}
			printSuccess(out, "Uploaded %s (%s chunks)", r.Document.Filename, util.FormatCount(r.Document.ChunkCount))
		},
	})
	if err != nil {
		return errors.Wrap(err, "watch")
	}
	defer w.Close()

	if err := w.Watch(); err != nil {
		return errors.Wrap(err, "watch")
	}
	fmt.Fprintf(out, "Watching %s for %v (Ctrl+C to stop)\n", dir, a.cfg.Watch.Extensions)
	<-cmd.Context().Done()
	return nil
}
