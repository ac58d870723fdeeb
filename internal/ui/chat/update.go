// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"go.dalton.dog/bubbleup"
	"go.uber.org/zap"

	"github.com/jeranaias/cognilib/internal/session"
	"github.com/jeranaias/cognilib/internal/ui/components"
)

// =============================================================================
// UPDATE LOOP
// =============================================================================

// Update handles messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	// Always update the alert model with every message
	outAlert, alertCmd := m.alert.Update(msg)
	m.alert = outAlert.(bubbleup.AlertModel)
	if alertCmd != nil {
		cmds = append(cmds, alertCmd)
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ready = true
		m.layout()

	case EventsMsg:
		if msg.Snapshot != nil {
			m.applySnapshot(*msg.Snapshot)
		}
		for _, n := range msg.Notices {
			cmds = append(cmds, m.noticeCmd(n))
		}
		cmds = append(cmds, m.bridge.Wait())

	case bridgeClosedMsg:
		// The model is shutting down.

	case intentDoneMsg:
		if msg.err != nil {
			m.logger.Debug("intent failed", zap.String("op", msg.op), zap.Error(msg.err))
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			m.Close()
			return m, tea.Quit
		}
		cmds = append(cmds, m.handleKey(msg))
	}

	return m, tea.Batch(cmds...)
}

// noticeCmd turns a controller notice into a toast.
func (m *Model) noticeCmd(n session.Notice) tea.Cmd {
	kind := bubbleup.InfoKey
	switch n.Level {
	case session.NoticeWarn:
		kind = bubbleup.WarnKey
	case session.NoticeError:
		kind = bubbleup.ErrorKey
	}
	return m.alert.NewAlertCmd(kind, n.Message)
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch m.mode {
	case modeConfirmDelete:
		return m.handleConfirmKey(msg)
	case modeUploadPrompt:
		return m.handleUploadKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.New):
		return m.intent("new conversation", func(ctx context.Context) error {
			_, err := m.ctrl.NewConversation(ctx)
			return err
		})

	case key.Matches(msg, m.keys.Upload):
		m.mode = modeUploadPrompt
		m.pathInput.Reset()
		m.pathInput.Focus()
		m.input.Blur()
		m.ctrl.DragEnter()
		return nil

	case key.Matches(msg, m.keys.Refresh):
		return m.intent("refresh", m.ctrl.Refresh)

	case key.Matches(msg, m.keys.Focus):
		m.toggleFocus()
		return nil

	case key.Matches(msg, m.keys.Delete):
		if item, ok := m.sidebar.Selected(); ok && m.focus == focusSidebar {
			m.pendingDelete = item
			m.mode = modeConfirmDelete
		}
		return nil

	case key.Matches(msg, m.keys.PageUp), key.Matches(msg, m.keys.PageDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return cmd
	}

	if m.focus == focusSidebar {
		return m.handleSidebarKey(msg)
	}
	return m.handleInputKey(msg)
}

func (m *Model) handleSidebarKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Up):
		m.sidebar.MoveUp()
	case key.Matches(msg, m.keys.Down):
		m.sidebar.MoveDown()
	case key.Matches(msg, m.keys.Submit):
		item, ok := m.sidebar.Selected()
		if !ok || item.Kind != components.ItemConversation {
			return nil
		}
		id := item.ID
		return m.intent("select conversation", func(ctx context.Context) error {
			return m.ctrl.SelectConversation(ctx, id)
		})
	}
	return nil
}

func (m *Model) handleInputKey(msg tea.KeyMsg) tea.Cmd {
	if key.Matches(msg, m.keys.Submit) {
		text := strings.TrimSpace(m.input.Value())
		if text == "" || m.snap.Sending {
			return nil
		}
		m.input.Reset()
		return m.intent("send", func(ctx context.Context) error {
			return m.ctrl.SendMessage(ctx, text)
		})
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

func (m *Model) handleUploadKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.closeUploadPrompt()
		m.ctrl.DragLeave()
		return nil

	case key.Matches(msg, m.keys.Submit):
		path := strings.Trim(strings.TrimSpace(m.pathInput.Value()), `"'`)
		if path == "" {
			return nil
		}
		m.closeUploadPrompt()
		return m.intent("upload", func(ctx context.Context) error {
			_, err := m.ctrl.UploadFile(ctx, path)
			return err
		})
	}
	var cmd tea.Cmd
	m.pathInput, cmd = m.pathInput.Update(msg)
	return cmd
}

func (m *Model) handleConfirmKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Confirm):
		item := m.pendingDelete
		m.mode = modeNormal
		m.pendingDelete = components.SidebarItem{}
		if item.Kind == components.ItemDocument {
			return m.intent("delete document", func(ctx context.Context) error {
				return m.ctrl.DeleteDocument(ctx, item.ID)
			})
		}
		return m.intent("delete conversation", func(ctx context.Context) error {
			return m.ctrl.DeleteConversation(ctx, item.ID)
		})

	case key.Matches(msg, m.keys.Deny):
		m.mode = modeNormal
		m.pendingDelete = components.SidebarItem{}
	}
	return nil
}

func (m *Model) closeUploadPrompt() {
	m.mode = modeNormal
	m.pathInput.Blur()
	m.pathInput.Reset()
	if m.focus == focusInput {
		m.input.Focus()
	}
}

func (m *Model) toggleFocus() {
	if m.focus == focusInput {
		m.focus = focusSidebar
		m.input.Blur()
		m.sidebar.SetFocused(true)
		return
	}
	m.focus = focusInput
	m.input.Focus()
	m.sidebar.SetFocused(false)
}

// =============================================================================
// SNAPSHOT APPLICATION
// =============================================================================

// applySnapshot replaces the rendered state. Older snapshots are ignored.
func (m *Model) applySnapshot(snap session.Snapshot) {
	if snap.Version < m.snap.Version {
		return
	}
	uploadWasVisible := m.uploadBar.Visible(m.snap.Upload)
	m.snap = snap
	m.sidebar.SetData(snap.Conversations, snap.Documents, snap.ActiveID)
	if m.uploadBar.Visible(snap.Upload) != uploadWasVisible {
		m.layout()
	}
	m.refreshContent()
}

// refreshContent re-renders the message pane, following the tail when the
// buffer grew.
func (m *Model) refreshContent() {
	if !m.ready {
		return
	}
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(components.RenderMessages(m.theme, m.snap.Messages, components.MessageOptions{
		Width:       m.viewport.Width,
		HideSources: m.opts.HideSources,
		Markdown:    m.markdown,
	}))
	if atBottom || len(m.snap.Messages) != m.renderedLen {
		m.viewport.GotoBottom()
	}
	m.renderedLen = len(m.snap.Messages)
}
