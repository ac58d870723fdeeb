// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/cognilib/internal/model"
	"github.com/jeranaias/cognilib/internal/ui/styles"
	"github.com/jeranaias/cognilib/internal/util"
)

// maxExcerptRunes bounds a source excerpt in the chat pane.
const maxExcerptRunes = 160

// =============================================================================
// MESSAGE BUBBLE COMPONENT
// =============================================================================

// MessageOptions controls how a message is drawn.
type MessageOptions struct {
	Width       int
	HideSources bool
	Markdown    *MarkdownRenderer
}

// RenderMessage draws one message. User turns that the gateway has not yet
// confirmed are dimmed and marked as sending.
func RenderMessage(theme *styles.Theme, msg model.Message, opts MessageOptions) string {
	width := opts.Width
	if width < 10 {
		width = 10
	}

	bubble := theme.AssistantBubble
	switch {
	case msg.IsTentative():
		bubble = theme.TentativeBubble
	case msg.Role == model.RoleUser:
		bubble = theme.UserBubble
	}
	inner := width - bubble.GetHorizontalFrameSize()

	label := msg.Role.DisplayName()
	if msg.IsTentative() {
		label += " " + styles.StatusIndicators.Pending + " sending"
	} else if !msg.CreatedAt.IsZero() {
		label += "  " + msg.CreatedAt.Local().Format("15:04")
	}

	body := msg.Content
	if msg.Role == model.RoleAssistant {
		body = opts.Markdown.Render(body)
	}
	body = lipgloss.NewStyle().Width(inner).Render(body)

	parts := []string{theme.RoleLabel.Render(label), body}
	if !opts.HideSources && len(msg.Sources) > 0 {
		parts = append(parts, renderSources(theme, msg.Sources, inner))
	}
	return bubble.Render(strings.Join(parts, "\n"))
}

// RenderMessages draws a whole buffer separated by blank lines.
func RenderMessages(theme *styles.Theme, msgs []model.Message, opts MessageOptions) string {
	if len(msgs) == 0 {
		return theme.EmptyState.Render("No messages yet. Ask something about your documents.")
	}
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, RenderMessage(theme, m, opts))
	}
	return strings.Join(out, "\n\n")
}

func renderSources(theme *styles.Theme, sources []model.Source, width int) string {
	lines := []string{theme.SourceHeader.Render(fmt.Sprintf("Sources (%d)", len(sources)))}
	for i, src := range sources {
		lines = append(lines, theme.SourceFile.Render(
			fmt.Sprintf("[%d] %s #%d", i+1, src.Filename, src.ChunkIndex)))
		excerpt := util.TruncateRunes(util.SingleLine(src.Content), maxExcerptRunes)
		lines = append(lines, theme.SourceExcerpt.Width(width).Render(excerpt))
	}
	return strings.Join(lines, "\n")
}
