// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/jeranaias/cognilib/internal/config"
	"github.com/jeranaias/cognilib/internal/model"
	"github.com/jeranaias/cognilib/internal/telemetry"
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// Gateway is the remote service the controller reconciles against.
// *gateway.Client implements it.
type Gateway interface {
	ListConversations(ctx context.Context) ([]model.Conversation, error)
	CreateConversation(ctx context.Context) (model.Conversation, error)
	DeleteConversation(ctx context.Context, id string) error
	ListMessages(ctx context.Context, conversationID string) ([]model.Message, error)
	SendChat(ctx context.Context, conversationID, text string) (model.ChatReply, error)
	ListDocuments(ctx context.Context) ([]model.Document, error)
	UploadDocument(ctx context.Context, filename string, r io.Reader) (model.Document, error)
	DeleteDocument(ctx context.Context, id string) error
}

// Recorder receives operation outcomes. *telemetry.ActivityTracker implements it.
type Recorder interface {
	Record(op string, outcome telemetry.Outcome, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) Record(string, telemetry.Outcome, time.Duration) {}

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config holds configuration for the session controller.
type Config struct {
	// TickInterval is how often the upload estimator advances (default: 200ms).
	TickInterval time.Duration

	// Step is added to the estimate on every tick (default: 10).
	Step int

	// Ceiling caps the estimate while the upload is outstanding (default: 90).
	Ceiling int

	// SettleDelay keeps a finished upload visible before resetting to idle.
	// Zero resets immediately.
	SettleDelay time.Duration

	// Logger receives structured logs (default: no-op).
	Logger *zap.Logger

	// Recorder receives operation outcomes (default: discarded).
	Recorder Recorder
}

// DefaultConfig returns the default controller configuration.
func DefaultConfig() Config {
	return Config{
		TickInterval: 200 * time.Millisecond,
		Step:         10,
		Ceiling:      90,
		SettleDelay:  500 * time.Millisecond,
	}
}

// ConfigFromUpload builds a controller configuration from the [upload] section.
func ConfigFromUpload(u config.UploadConfig) Config {
	cfg := DefaultConfig()
	cfg.TickInterval = u.TickInterval()
	cfg.Step = u.Step
	cfg.Ceiling = u.Ceiling
	cfg.SettleDelay = u.SettleDelay()
	return cfg
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller owns all session state and is the only caller of the gateway.
// Every intent is safe to call from any goroutine.
type Controller struct {
	gw       Gateway
	cfg      Config
	logger   *zap.Logger
	recorder Recorder
	tracer   trace.Tracer

	mu       sync.Mutex
	version  uint64
	started  bool
	closed   bool
	convs    conversationStore
	messages []model.Message
	loading  bool
	loadSeq  uint64
	turns    turnTracker
	docs     []model.Document
	upload   uploadTask
	wg       sync.WaitGroup

	listenersMu  sync.Mutex
	listeners    map[int]Listener
	nextListener int

	dispatchMu     sync.Mutex
	lastDispatched uint64
}

// New creates a controller. Zero estimator settings fall back to defaults.
func New(gw Gateway, cfg Config) *Controller {
	def := DefaultConfig()
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = def.TickInterval
	}
	if cfg.Step <= 0 {
		cfg.Step = def.Step
	}
	if cfg.Ceiling <= 0 || cfg.Ceiling >= 100 {
		cfg.Ceiling = def.Ceiling
	}
	if cfg.SettleDelay < 0 {
		cfg.SettleDelay = 0
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	recorder := cfg.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}

	return &Controller{
		gw:        gw,
		cfg:       cfg,
		logger:    logger,
		recorder:  recorder,
		tracer:    telemetry.Tracer(),
		messages:  []model.Message{},
		turns:     newTurnTracker(),
		listeners: make(map[int]Listener),
	}
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Start fetches the conversation and document lists once, in parallel.
// Later calls are no-ops; use Refresh to re-fetch.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = true
	c.mu.Unlock()

	return c.fetchLists(ctx, "start")
}

// Refresh re-fetches the conversation and document lists.
func (c *Controller) Refresh(ctx context.Context) error {
	return c.fetchLists(ctx, "refresh")
}

func (c *Controller) fetchLists(ctx context.Context, op string) error {
	start := time.Now()

	var wg sync.WaitGroup
	var convs []model.Conversation
	var docs []model.Document
	var convErr, docErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		convs, convErr = c.gw.ListConversations(ctx)
	}()
	go func() {
		defer wg.Done()
		docs, docErr = c.gw.ListDocuments(ctx)
	}()
	wg.Wait()

	var notices []Notice
	c.mu.Lock()
	if convErr == nil {
		if c.convs.replaceAll(convs) {
			c.clearBufferLocked()
		}
	} else {
		notices = append(notices, failureNotice(op, convErr, "Failed to load conversations"))
	}
	if docErr == nil {
		c.docs = dedupeDocuments(docs)
	} else {
		notices = append(notices, failureNotice(op, docErr, "Failed to load documents"))
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	err := errors.Join(convErr, docErr)
	c.record(op, err, start)
	c.publish(snap, notices...)
	if err != nil {
		c.logger.Warn("failed to fetch lists", zap.String("op", op), zap.Error(err))
		return err
	}
	c.logger.Info("lists loaded",
		zap.Int("conversations", len(snap.Conversations)),
		zap.Int("documents", len(snap.Documents)))
	return nil
}

// Close stops the upload estimator and any pending settle timer.
// Intents issued afterwards fail with ErrClosed.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.upload.stopEstimator()
	c.upload.stopSettle()
	c.mu.Unlock()

	c.wg.Wait()
}

// =============================================================================
// CONVERSATION INTENTS
// =============================================================================

// NewConversation creates a conversation on the gateway, prepends it and makes
// it active with an empty buffer. On failure the list is untouched.
func (c *Controller) NewConversation(ctx context.Context) (model.Conversation, error) {
	start := time.Now()
	if err := c.checkOpen("create_conversation"); err != nil {
		return model.Conversation{}, err
	}

	conv, err := c.gw.CreateConversation(ctx)
	c.record("create_conversation", err, start)
	if err != nil {
		c.logger.Warn("create conversation failed", zap.Error(err))
		c.notify(failureNotice("create_conversation", err, "Failed to create conversation"))
		return model.Conversation{}, err
	}

	c.mu.Lock()
	c.convs.prepend(conv)
	c.convs.active = conv.ID
	c.clearBufferLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Info("conversation created", zap.String("conversation", conv.ID))
	c.publish(snap, infoNotice("create_conversation", "New conversation created"))
	return conv, nil
}

// SelectConversation makes id active and loads its messages. The previous
// buffer is cleared first so nothing leaks across conversations.
func (c *Controller) SelectConversation(ctx context.Context, id string) error {
	if err := c.checkOpen("select_conversation"); err != nil {
		return err
	}

	c.mu.Lock()
	if !c.convs.contains(id) {
		c.mu.Unlock()
		err := preconditionf("unknown conversation %q", id)
		c.notify(failureNotice("select_conversation", err, "Conversation not found"))
		return err
	}
	c.convs.active = id
	c.clearBufferLocked()
	c.restorePendingLocked(id)
	c.loading = true
	seq := c.loadSeq
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.publish(snap)
	return c.loadMessages(ctx, id, seq)
}

// DeleteConversation deletes id on the gateway, then locally. If it was
// active the selection and buffer are cleared. On failure nothing changes.
func (c *Controller) DeleteConversation(ctx context.Context, id string) error {
	start := time.Now()
	if err := c.checkOpen("delete_conversation"); err != nil {
		return err
	}

	err := c.gw.DeleteConversation(ctx, id)
	c.record("delete_conversation", err, start)
	if err != nil {
		c.logger.Warn("delete conversation failed", zap.String("conversation", id), zap.Error(err))
		c.notify(failureNotice("delete_conversation", err, "Failed to delete conversation"))
		return err
	}

	c.mu.Lock()
	if c.convs.remove(id) {
		c.clearBufferLocked()
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Info("conversation deleted", zap.String("conversation", id))
	c.publish(snap, infoNotice("delete_conversation", "Conversation deleted"))
	return nil
}

// =============================================================================
// SNAPSHOTS AND LISTENERS
// =============================================================================

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copyLocked()
}

// Subscribe registers l and immediately delivers the current snapshot to it.
// The returned function removes the listener.
func (c *Controller) Subscribe(l Listener) func() {
	c.listenersMu.Lock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = l
	c.listenersMu.Unlock()

	snap := c.Snapshot()
	c.dispatchMu.Lock()
	l.OnSnapshot(snap)
	c.dispatchMu.Unlock()

	return func() {
		c.listenersMu.Lock()
		delete(c.listeners, id)
		c.listenersMu.Unlock()
	}
}

// snapshotLocked bumps the version and copies the state. Caller holds c.mu.
func (c *Controller) snapshotLocked() Snapshot {
	c.version++
	return c.copyLocked()
}

func (c *Controller) copyLocked() Snapshot {
	return Snapshot{
		Version:       c.version,
		Conversations: c.convs.snapshot(),
		ActiveID:      c.convs.active,
		Messages:      model.CloneMessages(c.messages),
		Documents:     append([]model.Document(nil), c.docs...),
		Sending:       c.turns.inFlight(c.convs.active),
		Loading:       c.loading,
		LastTurn:      c.turns.last,
		Upload: UploadStatus{
			Phase:    c.upload.phase,
			Progress: c.upload.progress,
			Filename: c.upload.filename,
		},
	}
}

// publish delivers a snapshot and notices outside the state lock. Snapshots
// older than one already delivered are dropped; notices are always delivered.
func (c *Controller) publish(snap Snapshot, notices ...Notice) {
	c.listenersMu.Lock()
	listeners := make([]Listener, 0, len(c.listeners))
	for _, l := range c.listeners {
		listeners = append(listeners, l)
	}
	c.listenersMu.Unlock()

	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()

	if snap.Version > c.lastDispatched {
		c.lastDispatched = snap.Version
		for _, l := range listeners {
			l.OnSnapshot(snap)
		}
	}
	for _, n := range notices {
		for _, l := range listeners {
			l.OnNotice(n)
		}
	}
}

// notify delivers notices without a state change.
func (c *Controller) notify(notices ...Notice) {
	c.publish(Snapshot{}, notices...)
}

// =============================================================================
// HELPERS
// =============================================================================

// clearBufferLocked empties the message buffer and invalidates pending loads.
func (c *Controller) clearBufferLocked() {
	c.messages = []model.Message{}
	c.loading = false
	c.loadSeq++
}

func (c *Controller) checkOpen(op string) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if !closed {
		return nil
	}
	c.notify(failureNotice(op, ErrClosed, "Session is closed"))
	return ErrClosed
}

func (c *Controller) record(op string, err error, start time.Time) {
	outcome := telemetry.OutcomeOK
	if err != nil {
		outcome = telemetry.OutcomeFailed
	}
	c.recorder.Record(op, outcome, time.Since(start))
}

func dedupeDocuments(docs []model.Document) []model.Document {
	seen := make(map[string]struct{}, len(docs))
	out := make([]model.Document, 0, len(docs))
	for _, d := range docs {
		if _, dup := seen[d.ID]; dup {
			continue
		}
		seen[d.ID] = struct{}{}
		out = append(out, d)
	}
	return out
}
