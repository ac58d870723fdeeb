// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/cognilib/internal/model"
	"github.com/jeranaias/cognilib/internal/session"
	"github.com/jeranaias/cognilib/internal/ui/styles"
)

// =============================================================================
// FAKE CONTROLLER
// =============================================================================

type fakeController struct {
	mu       sync.Mutex
	calls    []string
	snap     session.Snapshot
	listener session.Listener
}

func (f *fakeController) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeController) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeController) Start(context.Context) error {
	f.record("start")
	return nil
}

func (f *fakeController) Refresh(context.Context) error {
	f.record("refresh")
	return nil
}

func (f *fakeController) NewConversation(context.Context) (model.Conversation, error) {
	f.record("new")
	return model.Conversation{ID: "c9"}, nil
}

func (f *fakeController) SelectConversation(_ context.Context, id string) error {
	f.record("select " + id)
	return nil
}

func (f *fakeController) DeleteConversation(_ context.Context, id string) error {
	f.record("delete-conv " + id)
	return nil
}

func (f *fakeController) SendMessage(_ context.Context, text string) error {
	f.record("send " + text)
	return nil
}

func (f *fakeController) UploadFile(_ context.Context, path string) (model.Document, error) {
	f.record("upload " + path)
	return model.Document{}, nil
}

func (f *fakeController) DeleteDocument(_ context.Context, id string) error {
	f.record("delete-doc " + id)
	return nil
}

func (f *fakeController) DragEnter() { f.record("drag-enter") }
func (f *fakeController) DragLeave() { f.record("drag-leave") }

func (f *fakeController) Snapshot() session.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeController) Subscribe(l session.Listener) func() {
	f.mu.Lock()
	f.listener = l
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		f.listener = nil
		f.mu.Unlock()
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func sampleSnapshot() session.Snapshot {
	return session.Snapshot{
		Version: 1,
		Conversations: []model.Conversation{
			{ID: "c1", Title: "Refunds"},
			{ID: "c2", Title: "Shipping"},
		},
		ActiveID:  "c1",
		Documents: []model.Document{{ID: "d1", Filename: "policy.pdf", ChunkCount: 2}},
		Messages: []model.Message{
			{ID: model.DurableID("m1"), ConversationID: "c1", Role: model.RoleUser, Content: "How long do refunds take?"},
			{ID: model.DurableID("m2"), ConversationID: "c1", Role: model.RoleAssistant, Content: "Thirty days."},
		},
	}
}

func newTestModel(t *testing.T) (*Model, *fakeController) {
	t.Helper()
	ctrl := &fakeController{snap: sampleSnapshot()}
	m := New(ctrl, Options{
		Endpoint:  "http://gw/api",
		PlainText: true,
		Theme:     styles.NewThemeWithProfile(termenv.Ascii, true),
	})
	t.Cleanup(m.Close)
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 30})
	return m, ctrl
}

func keyMsg(k tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: k}
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// runIntent executes a command expected to be a single controller intent.
func runIntent(t *testing.T, cmd tea.Cmd) intentDoneMsg {
	t.Helper()
	require.NotNil(t, cmd)
	msg, ok := cmd().(intentDoneMsg)
	require.True(t, ok, "expected an intent command")
	return msg
}

// =============================================================================
// TESTS
// =============================================================================

func TestNew_SubscribesAndRendersSnapshot(t *testing.T) {
	m, ctrl := newTestModel(t)
	assert.NotNil(t, ctrl.listener)
	assert.Equal(t, "c1", m.Snapshot().ActiveID)

	view := m.View()
	assert.Contains(t, view, "cognilib | Refunds")
	assert.Contains(t, view, "Thirty days.")
	assert.Contains(t, view, "policy.pdf")
	assert.Contains(t, view, "http://gw/api")

	m.Close()
	assert.Nil(t, ctrl.listener)
}

func TestView_BeforeResize(t *testing.T) {
	ctrl := &fakeController{}
	m := New(ctrl, Options{Theme: styles.NewThemeWithProfile(termenv.Ascii, true)})
	defer m.Close()
	assert.Equal(t, "Loading...", m.View())
}

func TestHandleKey_SendTrimsAndResets(t *testing.T) {
	m, ctrl := newTestModel(t)
	m.input.SetValue("  what is the refund policy?  ")

	done := runIntent(t, m.handleKey(keyMsg(tea.KeyEnter)))
	assert.Equal(t, "send", done.op)
	assert.Equal(t, []string{"send what is the refund policy?"}, ctrl.Calls())
	assert.Empty(t, m.input.Value())

	// Blank input sends nothing.
	assert.Nil(t, m.handleKey(keyMsg(tea.KeyEnter)))
}

func TestHandleKey_NoSendWhileSending(t *testing.T) {
	m, ctrl := newTestModel(t)
	snap := sampleSnapshot()
	snap.Version = 2
	snap.Sending = true
	m.applySnapshot(snap)

	m.input.SetValue("second question")
	assert.Nil(t, m.handleKey(keyMsg(tea.KeyEnter)))
	assert.Empty(t, ctrl.Calls())
	assert.Equal(t, "second question", m.input.Value())
}

func TestHandleKey_NewAndRefresh(t *testing.T) {
	m, ctrl := newTestModel(t)
	runIntent(t, m.handleKey(keyMsg(tea.KeyCtrlN)))
	runIntent(t, m.handleKey(keyMsg(tea.KeyCtrlR)))
	assert.Equal(t, []string{"new", "refresh"}, ctrl.Calls())
}

func TestHandleKey_SidebarSelect(t *testing.T) {
	m, ctrl := newTestModel(t)
	assert.Nil(t, m.handleKey(keyMsg(tea.KeyTab)))
	assert.Equal(t, focusSidebar, m.focus)
	assert.True(t, m.sidebar.Focused())

	m.handleKey(keyMsg(tea.KeyDown))
	done := runIntent(t, m.handleKey(keyMsg(tea.KeyEnter)))
	assert.Equal(t, "select conversation", done.op)
	assert.Equal(t, []string{"select c2"}, ctrl.Calls())

	// Documents are not selectable.
	m.handleKey(keyMsg(tea.KeyDown))
	assert.Nil(t, m.handleKey(keyMsg(tea.KeyEnter)))

	m.handleKey(keyMsg(tea.KeyTab))
	assert.Equal(t, focusInput, m.focus)
	assert.False(t, m.sidebar.Focused())
}

func TestHandleKey_DeleteRequiresConfirmation(t *testing.T) {
	m, ctrl := newTestModel(t)

	// Delete only acts on the focused sidebar.
	assert.Nil(t, m.handleKey(keyMsg(tea.KeyCtrlX)))
	assert.Equal(t, modeNormal, m.mode)

	m.handleKey(keyMsg(tea.KeyTab))
	m.handleKey(keyMsg(tea.KeyCtrlX))
	require.Equal(t, modeConfirmDelete, m.mode)
	assert.Contains(t, m.View(), `Delete conversation "Refunds"? y/n`)

	assert.Nil(t, m.handleKey(runes("n")))
	assert.Equal(t, modeNormal, m.mode)
	assert.Empty(t, ctrl.Calls())

	m.handleKey(keyMsg(tea.KeyDown))
	m.handleKey(keyMsg(tea.KeyDown))
	m.handleKey(keyMsg(tea.KeyCtrlX))
	done := runIntent(t, m.handleKey(runes("y")))
	assert.Equal(t, "delete document", done.op)
	assert.Equal(t, []string{"delete-doc d1"}, ctrl.Calls())
	assert.Equal(t, modeNormal, m.mode)
}

func TestHandleKey_UploadPrompt(t *testing.T) {
	m, ctrl := newTestModel(t)

	m.handleKey(keyMsg(tea.KeyCtrlO))
	require.Equal(t, modeUploadPrompt, m.mode)
	m.handleKey(keyMsg(tea.KeyEsc))
	assert.Equal(t, modeNormal, m.mode)
	assert.Equal(t, []string{"drag-enter", "drag-leave"}, ctrl.Calls())

	m.handleKey(keyMsg(tea.KeyCtrlO))
	assert.Nil(t, m.handleKey(keyMsg(tea.KeyEnter)), "empty path is ignored")
	m.pathInput.SetValue(` "/tmp/policy.pdf" `)
	done := runIntent(t, m.handleKey(keyMsg(tea.KeyEnter)))
	assert.Equal(t, "upload", done.op)
	assert.Equal(t, "upload /tmp/policy.pdf", ctrl.Calls()[3])
	assert.Equal(t, modeNormal, m.mode)
	assert.True(t, m.input.Focused())
}

func TestUpdate_QuitClosesModel(t *testing.T) {
	m, ctrl := newTestModel(t)
	_, cmd := m.Update(keyMsg(tea.KeyCtrlC))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
	assert.Nil(t, ctrl.listener)
}

func TestApplySnapshot_IgnoresOlderVersions(t *testing.T) {
	m, _ := newTestModel(t)
	newer := sampleSnapshot()
	newer.Version = 5
	newer.ActiveID = "c2"
	m.applySnapshot(newer)

	older := sampleSnapshot()
	older.Version = 3
	m.applySnapshot(older)
	assert.Equal(t, "c2", m.Snapshot().ActiveID)
}

func TestApplySnapshot_UploadBarResizesBody(t *testing.T) {
	m, _ := newTestModel(t)
	before := m.viewport.Height

	snap := sampleSnapshot()
	snap.Version = 2
	snap.Upload = session.UploadStatus{Phase: session.UploadUploading, Progress: 30, Filename: "a.pdf"}
	m.applySnapshot(snap)
	assert.Equal(t, before-1, m.viewport.Height)
	assert.Contains(t, m.View(), "a.pdf")
}

// =============================================================================
// BRIDGE
// =============================================================================

func TestBridge_CoalescesSnapshots(t *testing.T) {
	b := NewBridge(context.Background())
	b.OnSnapshot(session.Snapshot{Version: 1})
	b.OnSnapshot(session.Snapshot{Version: 3})
	b.OnSnapshot(session.Snapshot{Version: 2})
	b.OnNotice(session.Notice{Message: "first"})
	b.OnNotice(session.Notice{Message: "second"})

	msg, ok := b.Wait()().(EventsMsg)
	require.True(t, ok)
	require.NotNil(t, msg.Snapshot)
	assert.Equal(t, uint64(3), msg.Snapshot.Version)
	require.Len(t, msg.Notices, 2)
	assert.Equal(t, "first", msg.Notices[0].Message)
	assert.Equal(t, "second", msg.Notices[1].Message)
}

func TestBridge_NoticeOnly(t *testing.T) {
	b := NewBridge(context.Background())
	b.OnNotice(session.Notice{Level: session.NoticeError, Message: "boom"})

	msg := b.Wait()().(EventsMsg)
	assert.Nil(t, msg.Snapshot)
	assert.Len(t, msg.Notices, 1)
}

func TestBridge_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	b := NewBridge(ctx)

	got := make(chan tea.Msg, 1)
	go func() { got <- b.Wait()() }()
	cancel()

	select {
	case msg := <-got:
		assert.IsType(t, bridgeClosedMsg{}, msg)
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after cancel")
	}
}

func TestUpdate_EventsMsgAppliesAndRearms(t *testing.T) {
	m, _ := newTestModel(t)
	snap := sampleSnapshot()
	snap.Version = 7
	snap.ActiveID = "c2"

	_, cmd := m.Update(EventsMsg{Snapshot: &snap, Notices: []session.Notice{{Level: session.NoticeWarn, Message: "careful"}}})
	assert.NotNil(t, cmd)
	assert.Equal(t, uint64(7), m.Snapshot().Version)
	assert.Equal(t, "c2", m.Snapshot().ActiveID)
}
