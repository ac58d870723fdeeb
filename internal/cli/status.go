// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/cognilib/internal/gateway"
	"github.com/jeranaias/cognilib/internal/telemetry"
	"github.com/jeranaias/cognilib/internal/util"
)

// activityLookback is how far back status looks for the previous run.
const activityLookback = 30 * 24 * time.Hour

// =============================================================================
// STATUS COMMAND
// =============================================================================

func newStatusCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		Aliases: []string{"s"},
		Short:   "Show gateway health and knowledge base counts",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runStatus(cmd)
		},
	}
}

func (a *app) runStatus(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()
	client := a.client()

	printTitle(out, "Gateway")
	printKV(out, "Endpoint", client.Endpoint())

	health, err := client.Ping(cmd.Context())
	if err != nil {
		printKV(out, "Health", errorColor.Sprint(reasonOrError(err)))
		return err
	}
	printKV(out, "Health", successColor.Sprint(health.Status))
	if health.Message != "" {
		printKV(out, "Service", health.Message)
	}

	ctrl, err := a.startController(cmd)
	if err != nil {
		return err
	}
	defer ctrl.Close()
	snap := ctrl.Snapshot()

	var chunks int
	for _, d := range snap.Documents {
		chunks += d.ChunkCount
	}
	fmt.Fprintln(out)
	printTitle(out, "Knowledge base")
	printKV(out, "Convs", util.FormatCount(len(snap.Conversations)))
	printKV(out, "Documents", util.FormatCount(len(snap.Documents)))
	printKV(out, "Chunks", util.FormatCount(chunks))

	if last := lastActivity(); last != nil {
		fmt.Fprintln(out)
		printActivity(out, last)
	}
	return nil
}

func reasonOrError(err error) string {
	if reason := gateway.Reason(err); reason != "" {
		return reason
	}
	return err.Error()
}

// lastActivity loads the most recent recorded run, if any.
func lastActivity() *telemetry.ActivitySession {
	dir, err := activityDir()
	if err != nil {
		return nil
	}
	storage, err := telemetry.NewActivityStorage(dir)
	if err != nil {
		return nil
	}
	now := time.Now()
	ids, err := storage.List(now.Add(-activityLookback), now)
	if err != nil || len(ids) == 0 {
		return nil
	}
	s, err := storage.Load(ids[len(ids)-1])
	if err != nil {
		return nil
	}
	return s
}

func printActivity(w io.Writer, s *telemetry.ActivitySession) {
	printTitle(w, "Previous run")
	printKV(w, "Started", s.StartTime.Local().Format(timeLayout))
	for _, op := range s.Ops() {
		c := s.Counts[op]
		printKV(w, op, fmt.Sprintf("%d ok, %d failed, %d discarded", c.OK, c.Failed, c.Discarded))
	}
	if len(s.Slowest) > 0 {
		slowest := s.Slowest[0]
		printKV(w, "Slowest", fmt.Sprintf("%s %s", slowest.Op, slowest.Duration.Round(time.Millisecond)))
	}
}
