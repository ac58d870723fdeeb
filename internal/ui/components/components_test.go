// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"testing"
	"time"

	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/cognilib/internal/model"
	"github.com/jeranaias/cognilib/internal/session"
	"github.com/jeranaias/cognilib/internal/ui/styles"
)

func plainTheme() *styles.Theme {
	return styles.NewThemeWithProfile(termenv.Ascii, true)
}

func sampleData() ([]model.Conversation, []model.Document) {
	at := model.Timestamp{Time: time.Date(2025, 3, 4, 10, 30, 0, 0, time.UTC)}
	convs := []model.Conversation{
		{ID: "c1", Title: "Refund questions", UpdatedAt: at},
		{ID: "c2", UpdatedAt: at},
	}
	docs := []model.Document{
		{ID: "d1", Filename: "policy.pdf", ChunkCount: 12},
	}
	return convs, docs
}

// =============================================================================
// SIDEBAR
// =============================================================================

func TestSidebar_SetDataOrdersSections(t *testing.T) {
	s := NewSidebar(plainTheme())
	convs, docs := sampleData()
	s.SetData(convs, docs, "c1")

	items := s.Items()
	require.Len(t, items, 3)
	assert.Equal(t, ItemConversation, items[0].Kind)
	assert.Equal(t, model.DefaultTitle, items[1].Label)
	assert.Equal(t, ItemDocument, items[2].Kind)
	assert.Equal(t, "12 chunks", items[2].Meta)
}

func TestSidebar_CursorFollowsItem(t *testing.T) {
	s := NewSidebar(plainTheme())
	convs, docs := sampleData()
	s.SetData(convs, docs, "")
	s.MoveDown()
	s.MoveDown()
	sel, ok := s.Selected()
	require.True(t, ok)
	assert.Equal(t, "d1", sel.ID)

	// A conversation removed above the cursor keeps the document selected.
	s.SetData(convs[1:], docs, "")
	sel, ok = s.Selected()
	require.True(t, ok)
	assert.Equal(t, "d1", sel.ID)

	// The selected item vanishing clamps the cursor.
	s.SetData(convs[1:], nil, "")
	sel, ok = s.Selected()
	require.True(t, ok)
	assert.Equal(t, "c2", sel.ID)
}

func TestSidebar_MoveClamps(t *testing.T) {
	s := NewSidebar(plainTheme())
	s.MoveUp()
	s.MoveDown()
	_, ok := s.Selected()
	assert.False(t, ok)

	convs, _ := sampleData()
	s.SetData(convs, nil, "")
	s.MoveUp()
	sel, _ := s.Selected()
	assert.Equal(t, "c1", sel.ID)
	for i := 0; i < 5; i++ {
		s.MoveDown()
	}
	sel, _ = s.Selected()
	assert.Equal(t, "c2", sel.ID)
}

func TestSidebar_View(t *testing.T) {
	s := NewSidebar(plainTheme())
	out := s.View(40, 12)
	assert.Contains(t, out, "Conversations")
	assert.Contains(t, out, "none yet (ctrl+n)")
	assert.Contains(t, out, "none yet (ctrl+o)")

	convs, docs := sampleData()
	s.SetData(convs, docs, "c1")
	out = s.View(40, 12)
	assert.Contains(t, out, "> Refund questions")
	assert.Contains(t, out, "policy.pdf")
	assert.Contains(t, out, "12 chunks")
	assert.NotContains(t, out, "none yet")

	narrow := s.View(24, 12)
	assert.NotContains(t, narrow, "12 chunks")
}

func TestSidebar_LineOf(t *testing.T) {
	s := NewSidebar(plainTheme())
	convs, docs := sampleData()
	s.SetData(convs, docs, "")
	assert.Equal(t, 1, s.lineOf(0))
	assert.Equal(t, 2, s.lineOf(1))
	assert.Equal(t, 5, s.lineOf(2))

	s.SetData(nil, docs, "")
	assert.Equal(t, 4, s.lineOf(0))
}

func TestScrollWindow(t *testing.T) {
	lines := []string{"0", "1", "2", "3", "4", "5", "6", "7"}
	assert.Equal(t, []string{"0", "1", "2"}, scrollWindow(lines, 0, 3))
	assert.Equal(t, []string{"3", "4", "5"}, scrollWindow(lines, 4, 3))
	assert.Equal(t, []string{"5", "6", "7"}, scrollWindow(lines, 7, 3))
}

// =============================================================================
// MESSAGES
// =============================================================================

func TestRenderMessage_Tentative(t *testing.T) {
	msg := model.NewTentativeMessage("c1", "tok", "hello there")
	out := RenderMessage(plainTheme(), msg, MessageOptions{Width: 60})
	assert.Contains(t, out, "You")
	assert.Contains(t, out, "sending")
	assert.Contains(t, out, "hello there")
}

func TestRenderMessage_Sources(t *testing.T) {
	msg := model.Message{
		ID:      model.DurableID("m1"),
		Role:    model.RoleAssistant,
		Content: "Refunds take 30 days.",
		Sources: []model.Source{
			{Filename: "policy.pdf", ChunkIndex: 3, Content: "Refunds are issued\nwithin 30 days."},
		},
	}
	theme := plainTheme()

	out := RenderMessage(theme, msg, MessageOptions{Width: 80})
	assert.Contains(t, out, "Assistant")
	assert.Contains(t, out, "Sources (1)")
	assert.Contains(t, out, "[1] policy.pdf #3")
	assert.Contains(t, out, "Refunds are issued within 30 days.")

	hidden := RenderMessage(theme, msg, MessageOptions{Width: 80, HideSources: true})
	assert.NotContains(t, hidden, "Sources")
}

func TestRenderMessages_Empty(t *testing.T) {
	out := RenderMessages(plainTheme(), nil, MessageOptions{Width: 60})
	assert.Contains(t, out, "No messages yet")
}

func TestMarkdownRenderer_Plain(t *testing.T) {
	var nilRenderer *MarkdownRenderer
	assert.Equal(t, "**x**", nilRenderer.Render("**x**"))
	assert.Equal(t, 0, nilRenderer.Width())

	plain := NewMarkdownRenderer(80, true)
	assert.Equal(t, "**x**", plain.Render("**x**"))
	assert.Equal(t, 80, plain.Width())
}

func TestHighlightExcerpt_UnknownTypeUnchanged(t *testing.T) {
	assert.Equal(t, "plain words", HighlightExcerpt("plain words", "notes.unknownext"))
}

// =============================================================================
// UPLOAD BAR
// =============================================================================

func TestUploadBar(t *testing.T) {
	bar := NewUploadBar(plainTheme())

	assert.False(t, bar.Visible(session.UploadStatus{}))
	assert.Empty(t, bar.View(session.UploadStatus{}, 80))

	drag := bar.View(session.UploadStatus{Phase: session.UploadDragging}, 80)
	assert.Contains(t, drag, "Drop a file")

	up := bar.View(session.UploadStatus{Phase: session.UploadUploading, Progress: 40, Filename: "a.pdf"}, 80)
	assert.Contains(t, up, "[ ]  40% a.pdf")

	done := bar.View(session.UploadStatus{Phase: session.UploadSucceeded, Progress: 100, Filename: "a.pdf"}, 80)
	assert.Contains(t, done, "[OK] 100%")

	failed := bar.View(session.UploadStatus{Phase: session.UploadFailed, Filename: "a.pdf"}, 80)
	assert.Contains(t, failed, "[X]   0%")
}

// =============================================================================
// STATUS BAR AND HEADER
// =============================================================================

func TestStatusOf(t *testing.T) {
	assert.Equal(t, StatusReady, StatusOf(session.Snapshot{}))
	assert.Equal(t, StatusLoading, StatusOf(session.Snapshot{Loading: true}))
	assert.Equal(t, StatusSending, StatusOf(session.Snapshot{Sending: true, Loading: true}))
	assert.Equal(t, StatusUploading, StatusOf(session.Snapshot{
		Upload: session.UploadStatus{Phase: session.UploadUploading},
	}))
	assert.False(t, StatusReady.Busy())
	assert.True(t, StatusSending.Busy())
}

func TestStatusBar_View(t *testing.T) {
	bar := NewStatusBar(plainTheme(), "http://localhost:8001/api")
	convs, docs := sampleData()
	snap := session.Snapshot{Conversations: convs, Documents: docs}

	wide := bar.View(snap, 160)
	assert.Contains(t, wide, "Ready  2 convs  1 docs  http://localhost:8001/api")
	assert.Contains(t, wide, "ctrl+c quit")

	narrow := bar.View(snap, 60)
	assert.NotContains(t, narrow, "ctrl+c")

	bar.Spinner = "*"
	busy := bar.View(session.Snapshot{Sending: true}, 160)
	assert.True(t, strings.Contains(busy, "* Waiting for answer..."))
}

func TestRenderHeader(t *testing.T) {
	theme := plainTheme()
	assert.Contains(t, RenderHeader(theme, session.Snapshot{}, 60), "no conversation selected")

	convs, _ := sampleData()
	snap := session.Snapshot{Conversations: convs, ActiveID: "c1"}
	out := RenderHeader(theme, snap, 60)
	assert.Contains(t, out, "cognilib | Refund questions")
}
