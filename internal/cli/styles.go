// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/jeranaias/cognilib/internal/gateway"
	"github.com/jeranaias/cognilib/internal/ui/styles"
)

// =============================================================================
// SHARED STYLES FOR ALL CLI COMMANDS
// =============================================================================

var (
	titleColor   = color.New(color.FgCyan, color.Bold)
	labelColor   = color.New(color.FgHiBlack)
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	warnColor    = color.New(color.FgYellow, color.Bold)
	promptColor  = color.New(color.FgCyan, color.Bold)
	roleColor    = color.New(color.FgMagenta, color.Bold)
)

// printTitle writes a section title.
func printTitle(w io.Writer, title string) {
	titleColor.Fprintln(w, title)
}

// printKV writes an aligned "label: value" line.
func printKV(w io.Writer, label, value string) {
	fmt.Fprintf(w, "  %s %s\n", labelColor.Sprintf("%-12s", label+":"), value)
}

// printSuccess writes a success line with its indicator.
func printSuccess(w io.Writer, format string, args ...interface{}) {
	successColor.Fprint(w, styles.StatusIndicators.Success)
	fmt.Fprintf(w, " "+format+"\n", args...)
}

// printWarning writes a warning line with its indicator.
func printWarning(w io.Writer, format string, args ...interface{}) {
	warnColor.Fprint(w, styles.StatusIndicators.Warning)
	fmt.Fprintf(w, " "+format+"\n", args...)
}

// printError writes err, preferring the gateway's own reason.
func printError(w io.Writer, err error) {
	msg := err.Error()
	if reason := gateway.Reason(err); reason != "" {
		msg = reason
	}
	errorColor.Fprint(w, styles.StatusIndicators.Error)
	fmt.Fprintf(w, " %s\n", msg)
}
