// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/jeranaias/cognilib/internal/gateway"
	"github.com/jeranaias/cognilib/internal/model"
	"github.com/jeranaias/cognilib/internal/telemetry"
)

// =============================================================================
// TURN TRACKING
// =============================================================================

// pendingTurn is an in-flight send for one conversation.
type pendingTurn struct {
	token string
	first bool
	msg   model.Message
}

// turnTracker enforces one in-flight send per conversation and remembers how
// the last turn settled.
type turnTracker struct {
	pending map[string]pendingTurn
	seq     uint64
	last    TurnOutcome
}

func newTurnTracker() turnTracker {
	return turnTracker{pending: make(map[string]pendingTurn)}
}

// inFlight reports whether conversationID has a send outstanding.
func (t *turnTracker) inFlight(conversationID string) bool {
	if conversationID == "" {
		return false
	}
	_, ok := t.pending[conversationID]
	return ok
}

// nextToken returns a session-unique tentative token.
func (t *turnTracker) nextToken() string {
	t.seq++
	return strconv.FormatUint(t.seq, 10)
}

// settle clears the pending entry if it still belongs to token.
func (t *turnTracker) settle(conversationID, token string) {
	if p, ok := t.pending[conversationID]; ok && p.token == token {
		delete(t.pending, conversationID)
	}
}

// =============================================================================
// SEND
// =============================================================================

// SendMessage sends text in the active conversation.
//
// The message is shown immediately with a tentative id. On success it is
// replaced by the durable user message and followed by the assistant answer.
// On failure it is removed and the buffer is as it was before the send.
// Blank text or no active conversation is a silent no-op. A second send while
// one is in flight for the same conversation fails with ErrPreconditionViolated.
func (c *Controller) SendMessage(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if err := c.checkOpen("send"); err != nil {
		return err
	}

	c.mu.Lock()
	convID := c.convs.active
	if convID == "" {
		c.mu.Unlock()
		return nil
	}
	if c.turns.inFlight(convID) {
		c.mu.Unlock()
		err := preconditionf("a message is already being sent in conversation %q", convID)
		c.notify(failureNotice("send", err, "A message is already being sent"))
		return err
	}

	conv, _ := c.convs.get(convID)
	first := len(c.messages) == 0 && !c.loading && conv.HasDefaultTitle()
	token := c.turns.nextToken()
	tentative := model.NewTentativeMessage(convID, token, text)
	c.messages = append(c.messages, tentative)
	c.turns.pending[convID] = pendingTurn{token: token, first: first, msg: tentative}
	c.turns.last = TurnOutcome{ConversationID: convID, State: TurnSending}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.publish(snap)

	ctx, span := c.tracer.Start(ctx, "session.send")
	span.SetAttributes(attribute.String("conversation.id", convID))
	defer span.End()

	start := time.Now()
	reply, err := c.gw.SendChat(ctx, convID, text)
	if err != nil {
		span.RecordError(err)
		return c.rollback(convID, tentative, err, start)
	}
	return c.confirm(convID, tentative, text, first, reply, start)
}

// confirm applies a successful reply. The buffer is only touched when the
// originating conversation is still active; otherwise the result is
// discarded. Messages a reload already brought in are not appended twice.
// The first-exchange title is applied by id either way.
func (c *Controller) confirm(convID string, tentative model.Message, text string, first bool, reply model.ChatReply, start time.Time) error {
	c.mu.Lock()
	c.turns.settle(convID, tentative.ID.Value())

	applied := false
	if c.convs.active == convID {
		if i := indexOfID(c.messages, tentative.ID); i >= 0 {
			c.messages = append(c.messages[:i], c.messages[i+1:]...)
		}
		for _, m := range []model.Message{c.durableUserMessage(tentative, reply), assistantMessage(convID, reply)} {
			if indexOfID(c.messages, m.ID) < 0 {
				c.messages = append(c.messages, m)
			}
		}
		applied = true
	}

	renamed := false
	if first {
		renamed = c.convs.rename(convID, model.DeriveTitle(text))
	}

	c.turns.last = TurnOutcome{ConversationID: convID, State: TurnConfirmed, Applied: applied}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	outcome := telemetry.OutcomeOK
	if !applied {
		outcome = telemetry.OutcomeDiscarded
		c.logger.Info("discarded reply for inactive conversation", zap.String("conversation", convID))
	}
	c.recorder.Record("send", outcome, time.Since(start))
	c.logger.Debug("turn confirmed",
		zap.String("conversation", convID),
		zap.Bool("applied", applied),
		zap.Bool("renamed", renamed),
		zap.Int("sources", len(reply.AssistantSources())))

	c.publish(snap)
	return nil
}

// rollback removes the tentative message and raises one error notice.
func (c *Controller) rollback(convID string, tentative model.Message, err error, start time.Time) error {
	notice := failureNotice("send", err, "Failed to send message")

	c.mu.Lock()
	c.turns.settle(convID, tentative.ID.Value())
	if c.convs.active == convID {
		if i := indexOfID(c.messages, tentative.ID); i >= 0 {
			c.messages = append(c.messages[:i], c.messages[i+1:]...)
		}
	}
	c.turns.last = TurnOutcome{ConversationID: convID, State: TurnRolledBack, Reason: notice.Message}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.recorder.Record("send", telemetry.OutcomeFailed, time.Since(start))
	c.logger.Warn("turn rolled back",
		zap.String("conversation", convID),
		zap.Bool("unreachable", gateway.IsUnreachable(err)),
		zap.Error(err))

	c.publish(snap, notice)
	return err
}

// durableUserMessage promotes the tentative message. The gateway's user turn
// id is preferred; without it the local token becomes the durable id.
func (c *Controller) durableUserMessage(tentative model.Message, reply model.ChatReply) model.Message {
	msg := tentative.Clone()
	if reply.UserMessage != nil && reply.UserMessage.ID.Value() != "" {
		msg.ID = tentative.ID.Confirm(reply.UserMessage.ID.Value())
		if !reply.UserMessage.CreatedAt.IsZero() {
			msg.CreatedAt = reply.UserMessage.CreatedAt
		}
		return msg
	}
	c.logger.Warn("gateway omitted user turn id, deriving from local token",
		zap.String("conversation", tentative.ConversationID),
		zap.String("token", tentative.ID.Value()))
	msg.ID = tentative.ID.Confirm("")
	return msg
}

// assistantMessage copies the reply's assistant message with its sources in
// gateway order.
func assistantMessage(convID string, reply model.ChatReply) model.Message {
	msg := reply.Message.Clone()
	if msg.ConversationID == "" {
		msg.ConversationID = convID
	}
	if msg.Role == "" {
		msg.Role = model.RoleAssistant
	}
	msg.Sources = append([]model.Source{}, reply.AssistantSources()...)
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = model.Now()
	}
	return msg
}

// restorePendingLocked re-appends the tentative message of an in-flight send
// for id after its buffer was cleared or replaced.
func (c *Controller) restorePendingLocked(id string) {
	p, ok := c.turns.pending[id]
	if !ok || indexOfID(c.messages, p.msg.ID) >= 0 {
		return
	}
	c.messages = append(c.messages, p.msg.Clone())
}

func indexOfID(msgs []model.Message, id model.MessageID) int {
	for i, m := range msgs {
		if m.ID == id {
			return i
		}
	}
	return -1
}

// =============================================================================
// LOAD
// =============================================================================

// loadMessages fully replaces the buffer with the gateway's messages for id.
// The result is dropped if another select happened since, or id is no longer
// active. A send still in flight for id keeps its tentative message.
func (c *Controller) loadMessages(ctx context.Context, id string, seq uint64) error {
	start := time.Now()
	msgs, err := c.gw.ListMessages(ctx, id)
	c.record("load_messages", err, start)

	c.mu.Lock()
	if seq != c.loadSeq || c.convs.active != id {
		c.mu.Unlock()
		c.logger.Debug("discarded stale message load", zap.String("conversation", id))
		return nil
	}
	c.loading = false
	if err != nil {
		c.restorePendingLocked(id)
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.logger.Warn("load messages failed", zap.String("conversation", id), zap.Error(err))
		c.publish(snap, failureNotice("load_messages", err, "Failed to load messages"))
		return err
	}
	c.messages = model.CloneMessages(msgs)
	if c.messages == nil {
		c.messages = []model.Message{}
	}
	c.restorePendingLocked(id)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.publish(snap)
	return nil
}
