// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jeranaias/cognilib/internal/util"
)

// =============================================================================
// DOCS COMMAND
// =============================================================================

func newDocsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "docs",
		Aliases: []string{"documents", "d"},
		Short:   "List, upload and delete knowledge base documents",
	}

	var assumeYes bool
	rm := &cobra.Command{
		Use:   "rm ID",
		Short: "Delete a document and its chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.removeDocument(cmd, args[0], assumeYes)
		},
	}
	rm.Flags().BoolVarP(&assumeYes, "yes", "y", false, "do not ask for confirmation")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List uploaded documents",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.listDocuments(cmd)
			},
		},
		&cobra.Command{
			Use:   "upload FILE...",
			Short: "Upload one or more files (.pdf, .txt, .md, .docx)",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.uploadDocuments(cmd, args)
			},
		},
		rm,
	)
	return cmd
}

func (a *app) listDocuments(cmd *cobra.Command) error {
	ctrl, err := a.startController(cmd)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	docs := ctrl.Snapshot().Documents
	out := cmd.OutOrStdout()
	if len(docs) == 0 {
		fmt.Fprintln(out, "No documents yet. Upload one with: cognilib docs upload FILE")
		return nil
	}
	rows := make([][]string, 0, len(docs))
	for _, d := range docs {
		status := d.Status
		if d.IsReady() {
			status = "ready"
		}
		rows = append(rows, []string{
			d.ID,
			util.TruncateWidth(d.Filename, 40),
			util.FormatBytes(d.FileSize),
			util.FormatCount(d.ChunkCount),
			status,
			d.CreatedAt.Local().Format(timeLayout),
		})
	}
	fmt.Fprintln(out, renderTable([]string{"ID", "FILE", "SIZE", "CHUNKS", "STATUS", "UPLOADED"}, rows))
	return nil
}

// uploadDocuments uploads files one after another. A failed file does not
// stop the rest; the command fails if any file failed.
func (a *app) uploadDocuments(cmd *cobra.Command, paths []string) error {
	ctrl := a.controller(a.client(), true)
	defer ctrl.Close()

	out := cmd.OutOrStdout()
	var failed []string
	for _, path := range paths {
		doc, err := ctrl.UploadFile(cmd.Context(), path)
		if err != nil {
			printError(cmd.ErrOrStderr(), errors.Wrap(err, filepath.Base(path)))
			failed = append(failed, filepath.Base(path))
			continue
		}
		printSuccess(out, "Uploaded %s (%s, %s chunks) as %s",
			doc.Filename, util.FormatBytes(doc.FileSize), util.FormatCount(doc.ChunkCount), doc.ID)
	}
	if len(failed) > 0 {
		return errors.Errorf("%d of %d uploads failed: %s", len(failed), len(paths), strings.Join(failed, ", "))
	}
	return nil
}

func (a *app) removeDocument(cmd *cobra.Command, id string, assumeYes bool) error {
	ok, err := confirm(fmt.Sprintf("Delete document %s from the knowledge base?", id), assumeYes)
	if err != nil || !ok {
		return err
	}

	ctrl := a.controller(a.client(), true)
	defer ctrl.Close()
	if err := ctrl.DeleteDocument(cmd.Context(), id); err != nil {
		return errors.Wrapf(err, "delete document %s", id)
	}
	printSuccess(cmd.OutOrStdout(), "Deleted document %s", id)
	return nil
}
