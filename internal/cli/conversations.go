// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jeranaias/cognilib/internal/session"
	"github.com/jeranaias/cognilib/internal/util"
)

// timeLayout formats timestamps in listings.
const timeLayout = "2006-01-02 15:04"

// =============================================================================
// CONVERSATIONS COMMAND
// =============================================================================

func newConversationsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"conv", "c"},
		Short:   "List, create, show and delete conversations",
	}

	var assumeYes bool
	rm := &cobra.Command{
		Use:   "rm ID",
		Short: "Delete a conversation and its messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.removeConversation(cmd, args[0], assumeYes)
		},
	}
	rm.Flags().BoolVarP(&assumeYes, "yes", "y", false, "do not ask for confirmation")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List conversations, most recently updated first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.listConversations(cmd)
			},
		},
		&cobra.Command{
			Use:   "new",
			Short: "Create an empty conversation",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.newConversation(cmd)
			},
		},
		&cobra.Command{
			Use:   "show ID",
			Short: "Print the messages of a conversation",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.showConversation(cmd, args[0])
			},
		},
		rm,
	)
	return cmd
}

// startController builds a controller and loads the lists.
func (a *app) startController(cmd *cobra.Command) (*session.Controller, error) {
	ctrl := a.controller(a.client(), true)
	if err := ctrl.Start(cmd.Context()); err != nil {
		ctrl.Close()
		return nil, errors.Wrap(err, "load lists")
	}
	return ctrl, nil
}

func (a *app) listConversations(cmd *cobra.Command) error {
	ctrl, err := a.startController(cmd)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	convs := ctrl.Snapshot().Conversations
	out := cmd.OutOrStdout()
	if len(convs) == 0 {
		fmt.Fprintln(out, "No conversations yet. Create one with: cognilib conversations new")
		return nil
	}
	rows := make([][]string, 0, len(convs))
	for _, c := range convs {
		rows = append(rows, []string{
			c.ID,
			util.TruncateWidth(util.SingleLine(c.GetTitle()), 50),
			c.UpdatedAt.Local().Format(timeLayout),
		})
	}
	fmt.Fprintln(out, renderTable([]string{"ID", "TITLE", "UPDATED"}, rows))
	return nil
}

func (a *app) newConversation(cmd *cobra.Command) error {
	ctrl := a.controller(a.client(), true)
	defer ctrl.Close()

	conv, err := ctrl.NewConversation(cmd.Context())
	if err != nil {
		return errors.Wrap(err, "create conversation")
	}
	printSuccess(cmd.OutOrStdout(), "Created conversation %s", conv.ID)
	return nil
}

func (a *app) showConversation(cmd *cobra.Command, id string) error {
	ctrl, err := a.startController(cmd)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	if err := ctrl.SelectConversation(cmd.Context(), id); err != nil {
		return errors.Wrapf(err, "open conversation %s", id)
	}
	snap := ctrl.Snapshot()
	out := cmd.OutOrStdout()
	if conv, ok := snap.ActiveConversation(); ok {
		printTitle(out, conv.GetTitle())
	}
	if len(snap.Messages) == 0 {
		fmt.Fprintln(out, "No messages yet.")
		return nil
	}
	r := newReplyPrinter(a.cfg.UI)
	for _, m := range snap.Messages {
		r.print(out, m)
	}
	return nil
}

func (a *app) removeConversation(cmd *cobra.Command, id string, assumeYes bool) error {
	ok, err := confirm(fmt.Sprintf("Delete conversation %s and all its messages?", id), assumeYes)
	if err != nil || !ok {
		return err
	}

	ctrl := a.controller(a.client(), true)
	defer ctrl.Close()
	if err := ctrl.DeleteConversation(cmd.Context(), id); err != nil {
		return errors.Wrapf(err, "delete conversation %s", id)
	}
	printSuccess(cmd.OutOrStdout(), "Deleted conversation %s", id)
	return nil
}

// =============================================================================
// TABLE RENDERING
// =============================================================================

// renderTable draws rows under a header row.
func renderTable(headers []string, rows [][]string) string {
	header := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderColumn(false).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		}).
		Render()
}
