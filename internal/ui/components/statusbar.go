// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"

	"github.com/jeranaias/cognilib/internal/session"
	"github.com/jeranaias/cognilib/internal/ui/styles"
	"github.com/jeranaias/cognilib/internal/util"
)

// =============================================================================
// STATUS
// =============================================================================

// Status is the activity shown at the left of the status bar.
type Status int

const (
	StatusReady Status = iota
	StatusLoading
	StatusSending
	StatusUploading
)

// String returns the display string for the status.
func (s Status) String() string {
	switch s {
	case StatusReady:
		return "Ready"
	case StatusLoading:
		return "Loading..."
	case StatusSending:
		return "Waiting for answer..."
	case StatusUploading:
		return "Uploading..."
	default:
		return "Unknown"
	}
}

// Busy reports whether a spinner should be shown.
func (s Status) Busy() bool {
	return s != StatusReady
}

// StatusOf derives the bar status from a snapshot.
func StatusOf(snap session.Snapshot) Status {
	switch {
	case snap.Sending:
		return StatusSending
	case snap.Upload.Phase == session.UploadUploading:
		return StatusUploading
	case snap.Loading:
		return StatusLoading
	default:
		return StatusReady
	}
}

// =============================================================================
// STATUS BAR COMPONENT
// =============================================================================

// Shortcut is one key hint.
type Shortcut struct {
	Key  string
	Desc string
}

// DefaultShortcuts are the hints shown when the bar has room.
var DefaultShortcuts = []Shortcut{
	{"ctrl+n", "new"},
	{"ctrl+o", "upload"},
	{"ctrl+x", "delete"},
	{"tab", "focus"},
	{"ctrl+r", "refresh"},
	{"ctrl+c", "quit"},
}

// StatusBar is the bottom line of the TUI.
type StatusBar struct {
	Endpoint  string
	Spinner   string
	Shortcuts []Shortcut
	theme     *styles.Theme
}

// NewStatusBar creates a status bar for the given gateway endpoint.
func NewStatusBar(theme *styles.Theme, endpoint string) *StatusBar {
	return &StatusBar{
		Endpoint:  endpoint,
		Shortcuts: DefaultShortcuts,
		theme:     theme,
	}
}

// View renders the bar for snap. Shortcuts are dropped from the right until
// the line fits.
func (b *StatusBar) View(snap session.Snapshot, width int) string {
	inner := width - b.theme.StatusBar.GetHorizontalFrameSize()
	if inner < 10 {
		inner = 10
	}

	st := StatusOf(snap)
	left := st.String()
	if st.Busy() && b.Spinner != "" {
		left = b.Spinner + " " + left
	}
	left += fmt.Sprintf("  %s convs  %s docs  %s",
		util.FormatCount(len(snap.Conversations)),
		util.FormatCount(len(snap.Documents)),
		b.Endpoint)
	left = util.TruncateWidth(left, inner)

	var right string
	for i := len(b.Shortcuts); i > 0; i-- {
		hints := make([]string, 0, i)
		plain := make([]string, 0, i)
		for _, s := range b.Shortcuts[:i] {
			hints = append(hints, b.theme.ShortcutKey.Render(s.Key)+" "+b.theme.ShortcutDesc.Render(s.Desc))
			plain = append(plain, s.Key+" "+s.Desc)
		}
		if util.StringWidth(left)+2+util.StringWidth(strings.Join(plain, "  ")) <= inner {
			right = strings.Join(hints, "  ")
			gap := inner - util.StringWidth(left) - util.StringWidth(strings.Join(plain, "  "))
			return b.theme.StatusBar.Width(width).Render(left + strings.Repeat(" ", gap) + right)
		}
	}
	return b.theme.StatusBar.Width(width).Render(util.PadWidth(left, inner))
}
