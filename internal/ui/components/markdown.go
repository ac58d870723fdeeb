// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// MarkdownRenderer renders assistant replies. A nil renderer, or one built
// with plain set, passes text through unchanged.
type MarkdownRenderer struct {
	term  *glamour.TermRenderer
	width int
}

// NewMarkdownRenderer builds a glamour renderer wrapping at width.
func NewMarkdownRenderer(width int, plain bool) *MarkdownRenderer {
	r := &MarkdownRenderer{width: width}
	if plain || width <= 0 {
		return r
	}
	term, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err == nil {
		r.term = term
	}
	return r
}

// Width returns the wrap width the renderer was built for.
func (r *MarkdownRenderer) Width() int {
	if r == nil {
		return 0
	}
	return r.width
}

// Render returns text rendered as markdown, or text itself on failure.
func (r *MarkdownRenderer) Render(text string) string {
	if r == nil || r.term == nil {
		return text
	}
	out, err := r.term.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}
