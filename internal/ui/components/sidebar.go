// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"

	"github.com/jeranaias/cognilib/internal/model"
	"github.com/jeranaias/cognilib/internal/ui/styles"
	"github.com/jeranaias/cognilib/internal/util"
)

// =============================================================================
// SIDEBAR ITEMS
// =============================================================================

// ItemKind distinguishes the two sidebar sections.
type ItemKind int

const (
	ItemConversation ItemKind = iota
	ItemDocument
)

// minMetaWidth is the narrowest row that still shows item metadata.
const minMetaWidth = 36

// SidebarItem is one selectable row.
type SidebarItem struct {
	Kind  ItemKind
	ID    string
	Label string
	Meta  string
}

// =============================================================================
// SIDEBAR
// =============================================================================

// Sidebar lists conversations, then documents, with a single cursor that
// moves across both sections.
type Sidebar struct {
	theme    *styles.Theme
	items    []SidebarItem
	nConvs   int
	activeID string
	cursor   int
	focused  bool
}

// NewSidebar creates an empty sidebar.
func NewSidebar(theme *styles.Theme) *Sidebar {
	return &Sidebar{theme: theme}
}

// SetData replaces the listed items. The cursor stays on the same item when
// it still exists and is clamped otherwise.
func (s *Sidebar) SetData(convs []model.Conversation, docs []model.Document, activeID string) {
	prev, hadPrev := s.Selected()

	items := make([]SidebarItem, 0, len(convs)+len(docs))
	for _, c := range convs {
		items = append(items, SidebarItem{
			Kind:  ItemConversation,
			ID:    c.ID,
			Label: c.GetTitle(),
			Meta:  c.UpdatedAt.Local().Format("Jan 2 15:04"),
		})
	}
	for _, d := range docs {
		items = append(items, SidebarItem{
			Kind:  ItemDocument,
			ID:    d.ID,
			Label: d.Filename,
			Meta:  fmt.Sprintf("%s chunks", util.FormatCount(d.ChunkCount)),
		})
	}
	s.items = items
	s.nConvs = len(convs)
	s.activeID = activeID

	if hadPrev {
		for i, it := range items {
			if it.Kind == prev.Kind && it.ID == prev.ID {
				s.cursor = i
				return
			}
		}
	}
	s.clamp()
}

// Items returns the rows in display order.
func (s *Sidebar) Items() []SidebarItem {
	return s.items
}

// Selected returns the row under the cursor.
func (s *Sidebar) Selected() (SidebarItem, bool) {
	if s.cursor < 0 || s.cursor >= len(s.items) {
		return SidebarItem{}, false
	}
	return s.items[s.cursor], true
}

// MoveUp moves the cursor one row up.
func (s *Sidebar) MoveUp() {
	s.cursor--
	s.clamp()
}

// MoveDown moves the cursor one row down.
func (s *Sidebar) MoveDown() {
	s.cursor++
	s.clamp()
}

// SetFocused toggles the focus border.
func (s *Sidebar) SetFocused(focused bool) {
	s.focused = focused
}

// Focused reports whether the sidebar has focus.
func (s *Sidebar) Focused() bool {
	return s.focused
}

func (s *Sidebar) clamp() {
	if s.cursor >= len(s.items) {
		s.cursor = len(s.items) - 1
	}
	if s.cursor < 0 {
		s.cursor = 0
	}
}

// View renders the sidebar into a box of the given outer size.
func (s *Sidebar) View(width, height int) string {
	box := s.theme.Sidebar
	if s.focused {
		box = s.theme.SidebarFocused
	}
	inner := width - box.GetHorizontalFrameSize()
	if inner < 4 {
		inner = 4
	}

	var lines []string
	lines = append(lines, s.theme.SidebarSection.Render(util.PadWidth("Conversations", inner)))
	if s.nConvs == 0 {
		lines = append(lines, s.theme.EmptyState.Render(util.PadWidth("  none yet (ctrl+n)", inner)))
	}
	for i := 0; i < s.nConvs; i++ {
		lines = append(lines, s.renderItem(i, inner))
	}

	lines = append(lines, "", s.theme.SidebarSection.Render(util.PadWidth("Documents", inner)))
	if len(s.items) == s.nConvs {
		lines = append(lines, s.theme.EmptyState.Render(util.PadWidth("  none yet (ctrl+o)", inner)))
	}
	for i := s.nConvs; i < len(s.items); i++ {
		lines = append(lines, s.renderItem(i, inner))
	}

	innerHeight := height - box.GetVerticalFrameSize()
	if innerHeight > 0 && len(lines) > innerHeight {
		lines = scrollWindow(lines, s.lineOf(s.cursor), innerHeight)
	}

	return box.
		Width(width - box.GetHorizontalBorderSize()).
		Height(max(innerHeight, 0)).
		Render(strings.Join(lines, "\n"))
}

// lineOf returns the rendered line index of item i.
func (s *Sidebar) lineOf(i int) int {
	line := 1 + i
	if i >= s.nConvs {
		line += 2
		if s.nConvs == 0 {
			line++
		}
	}
	return line
}

func (s *Sidebar) renderItem(i, width int) string {
	it := s.items[i]
	marker := "  "
	if it.Kind == ItemConversation && it.ID == s.activeID {
		marker = "> "
	}
	text := marker + util.SingleLine(it.Label)

	meta := ""
	if it.Meta != "" && width >= minMetaWidth {
		meta = " " + it.Meta
	}
	label := util.PadWidth(text, width-util.StringWidth(meta))

	style := s.theme.SidebarItem
	if it.Kind == ItemConversation && it.ID == s.activeID {
		style = s.theme.SidebarItemActive
	}
	if s.focused && i == s.cursor {
		style = style.Inherit(s.theme.SidebarItemCursor)
	}
	return style.Render(label) + s.theme.SidebarMeta.Render(meta)
}

// scrollWindow returns height lines around line focus.
func scrollWindow(lines []string, focus, height int) []string {
	start := focus - height/2
	if start < 0 {
		start = 0
	}
	if start+height > len(lines) {
		start = len(lines) - height
	}
	return lines[start : start+height]
}
