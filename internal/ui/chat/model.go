// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.dalton.dog/bubbleup"
	"go.uber.org/zap"

	"github.com/jeranaias/cognilib/internal/model"
	"github.com/jeranaias/cognilib/internal/session"
	"github.com/jeranaias/cognilib/internal/ui/components"
	"github.com/jeranaias/cognilib/internal/ui/styles"
)

// =============================================================================
// CONTROLLER INTERFACE
// =============================================================================

// Controller is the part of *session.Controller the TUI drives.
type Controller interface {
	Start(ctx context.Context) error
	Refresh(ctx context.Context) error
	NewConversation(ctx context.Context) (model.Conversation, error)
	SelectConversation(ctx context.Context, id string) error
	DeleteConversation(ctx context.Context, id string) error
	SendMessage(ctx context.Context, text string) error
	UploadFile(ctx context.Context, path string) (model.Document, error)
	DeleteDocument(ctx context.Context, id string) error
	DragEnter()
	DragLeave()
	Snapshot() session.Snapshot
	Subscribe(l session.Listener) func()
}

// =============================================================================
// OPTIONS
// =============================================================================

// Options configures the chat model.
type Options struct {
	// Endpoint is shown in the status bar.
	Endpoint string

	// PlainText disables markdown rendering of replies.
	PlainText bool

	// HideSources hides the source list under replies.
	HideSources bool

	// WordWrap caps the width of rendered replies (0 = pane width).
	WordWrap int

	// Theme overrides terminal detection. Optional.
	Theme *styles.Theme

	// Logger receives debug logs (default: no-op).
	Logger *zap.Logger
}

// =============================================================================
// MODEL
// =============================================================================

type focusArea int

const (
	focusInput focusArea = iota
	focusSidebar
)

type mode int

const (
	modeNormal mode = iota
	modeUploadPrompt
	modeConfirmDelete
)

// alertWidth is the maximum toast width.
const alertWidth = 48

// alertSeconds is how long a toast stays visible.
const alertSeconds = 4

// Model is the Bubble Tea model of the TUI. It owns no session state: the
// latest snapshot is a copy the controller published.
type Model struct {
	ctrl        Controller
	bridge      *Bridge
	unsubscribe func()
	ctx         context.Context
	cancel      context.CancelFunc

	theme     *styles.Theme
	keys      KeyMap
	opts      Options
	logger    *zap.Logger
	sidebar   *components.Sidebar
	uploadBar *components.UploadBar
	statusBar *components.StatusBar
	markdown  *components.MarkdownRenderer

	input     textinput.Model
	pathInput textinput.Model
	viewport  viewport.Model
	spinner   spinner.Model
	alert     bubbleup.AlertModel

	snap          session.Snapshot
	focus         focusArea
	mode          mode
	pendingDelete components.SidebarItem
	renderedLen   int

	width  int
	height int
	ready  bool
}

// New creates the TUI model and subscribes it to ctrl.
func New(ctrl Controller, opts Options) *Model {
	theme := opts.Theme
	if theme == nil {
		theme = styles.NewTheme()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	bridge := NewBridge(ctx)

	input := textinput.New()
	input.Placeholder = "Ask about your documents..."
	input.Prompt = "> "
	input.PromptStyle = theme.InputPrompt
	input.PlaceholderStyle = theme.InputPlaceholder
	input.CharLimit = 4000
	input.Focus()

	pathInput := textinput.New()
	pathInput.Placeholder = "/path/to/file.pdf"
	pathInput.Prompt = "upload: "
	pathInput.PromptStyle = theme.UploadDragging

	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = theme.Spinner

	m := &Model{
		ctrl:      ctrl,
		bridge:    bridge,
		ctx:       ctx,
		cancel:    cancel,
		theme:     theme,
		keys:      DefaultKeyMap(),
		opts:      opts,
		logger:    logger,
		sidebar:   components.NewSidebar(theme),
		uploadBar: components.NewUploadBar(theme),
		statusBar: components.NewStatusBar(theme, opts.Endpoint),
		input:     input,
		pathInput: pathInput,
		viewport:  viewport.New(0, 0),
		spinner:   spin,
		alert:     *bubbleup.NewAlertModel(alertWidth, false, alertSeconds),
	}
	m.unsubscribe = ctrl.Subscribe(bridge)
	m.applySnapshot(ctrl.Snapshot())
	return m
}

// Init starts the bridge, the spinner and the initial list load.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.bridge.Wait(),
		m.spinner.Tick,
		m.alert.Init(),
		m.intent("start", m.ctrl.Start),
	)
}

// Close detaches the model from the controller and cancels pending intents.
func (m *Model) Close() {
	m.cancel()
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
}

// Snapshot returns the last snapshot the model rendered.
func (m *Model) Snapshot() session.Snapshot {
	return m.snap
}

// intent runs a controller call off the update loop.
func (m *Model) intent(op string, fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return intentDoneMsg{op: op, err: fn(ctx)}
	}
}
