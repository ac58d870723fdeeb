// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/cognilib/internal/ui/components"
	"github.com/jeranaias/cognilib/internal/util"
)

// =============================================================================
// LAYOUT
// =============================================================================

const (
	minSidebarWidth = 24
	maxSidebarWidth = 40
	headerHeight    = 1
	statusHeight    = 1
	inputHeight     = 2
)

func (m *Model) sidebarWidth() int {
	w := m.width / 4
	if w < minSidebarWidth {
		w = minSidebarWidth
	}
	if w > maxSidebarWidth {
		w = maxSidebarWidth
	}
	return w
}

func (m *Model) bodyHeight() int {
	h := m.height - headerHeight - statusHeight - inputHeight
	if m.uploadBar.Visible(m.snap.Upload) {
		h--
	}
	if h < 3 {
		h = 3
	}
	return h
}

// layout sizes the panes for the current window and re-renders messages.
func (m *Model) layout() {
	if !m.ready {
		return
	}
	paneWidth := m.width - m.sidebarWidth() - 1
	if paneWidth < 20 {
		paneWidth = 20
	}
	m.viewport.Width = paneWidth
	m.viewport.Height = m.bodyHeight()
	m.input.Width = m.width - 6
	m.pathInput.Width = m.width - 12

	wrap := paneWidth - 4
	if m.opts.WordWrap > 0 && m.opts.WordWrap < wrap {
		wrap = m.opts.WordWrap
	}
	if m.markdown == nil || m.markdown.Width() != wrap {
		m.markdown = components.NewMarkdownRenderer(wrap, m.opts.PlainText)
	}
	m.refreshContent()
}

// =============================================================================
// VIEW
// =============================================================================

// View renders the whole screen.
func (m *Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top,
		m.sidebar.View(m.sidebarWidth(), m.bodyHeight()),
		" ",
		m.viewport.View(),
	)

	parts := []string{
		components.RenderHeader(m.theme, m.snap, m.width),
		body,
	}
	if m.uploadBar.Visible(m.snap.Upload) {
		parts = append(parts, m.uploadBar.View(m.snap.Upload, m.width))
	}
	parts = append(parts, m.renderInput())

	m.statusBar.Spinner = m.spinner.View()
	parts = append(parts, m.statusBar.View(m.snap, m.width))

	return m.alert.Render(strings.Join(parts, "\n"))
}

func (m *Model) renderInput() string {
	box := m.theme.InputContainer
	if m.focus == focusInput && m.mode == modeNormal {
		box = m.theme.InputContainerFocused
	}
	box = box.Width(m.width - box.GetHorizontalBorderSize())

	switch m.mode {
	case modeConfirmDelete:
		what := "conversation"
		if m.pendingDelete.Kind == components.ItemDocument {
			what = "document"
		}
		label := util.TruncateWidth(util.SingleLine(m.pendingDelete.Label), m.width/2)
		prompt := fmt.Sprintf("Delete %s %q? ", what, label) +
			m.theme.ConfirmKey.Render("y") + "/" + m.theme.ConfirmKey.Render("n")
		return box.BorderForeground(m.theme.ConfirmBox.GetBorderTopForeground()).Render(prompt)
	case modeUploadPrompt:
		return box.Render(m.pathInput.View())
	}

	if m.snap.Sending {
		return box.Render(m.theme.MutedStyle.Render(m.spinner.View() + " waiting for the answer..."))
	}
	return box.Render(m.input.View())
}
