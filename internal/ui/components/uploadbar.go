// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"

	"github.com/charmbracelet/bubbles/progress"

	"github.com/jeranaias/cognilib/internal/session"
	"github.com/jeranaias/cognilib/internal/ui/styles"
	"github.com/jeranaias/cognilib/internal/util"
)

// =============================================================================
// UPLOAD BAR
// =============================================================================

// UploadBar draws the upload slot. It is a pure function of UploadStatus;
// the controller owns the progress estimate.
type UploadBar struct {
	theme *styles.Theme
	bar   progress.Model
}

// NewUploadBar creates an upload bar.
func NewUploadBar(theme *styles.Theme) *UploadBar {
	bar := progress.New(
		progress.WithDefaultGradient(),
		progress.WithoutPercentage(),
	)
	return &UploadBar{theme: theme, bar: bar}
}

// Visible reports whether the slot has anything to show.
func (u *UploadBar) Visible(st session.UploadStatus) bool {
	return st.Phase != session.UploadIdle
}

// View renders the bar for st at the given width. Idle renders nothing.
func (u *UploadBar) View(st session.UploadStatus, width int) string {
	if width < 20 {
		width = 20
	}
	inner := width - u.theme.UploadBar.GetHorizontalFrameSize()

	switch st.Phase {
	case session.UploadIdle:
		return ""
	case session.UploadDragging:
		return u.theme.UploadBar.Render(u.theme.UploadDragging.Render(
			util.TruncateWidth("Drop a file: type its path and press enter (esc cancels)", inner)))
	}

	label := fmt.Sprintf("%s %3d%% ", uploadIndicator(st.Phase), st.Progress)
	name := util.TruncateWidth(st.Filename, inner/3)
	head := u.theme.UploadLabel.Render(label + name + " ")

	bar := u.bar
	bar.Width = inner - util.StringWidth(label+name+" ")
	if bar.Width < 5 {
		bar.Width = 5
	}
	return u.theme.UploadBar.Render(head + bar.ViewAs(float64(st.Progress)/100))
}

func uploadIndicator(p session.UploadPhase) string {
	switch p {
	case session.UploadSucceeded:
		return styles.StatusIndicators.Success
	case session.UploadFailed:
		return styles.StatusIndicators.Error
	default:
		return styles.StatusIndicators.Pending
	}
}
