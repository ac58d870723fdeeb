// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"errors"

	"github.com/jeranaias/cognilib/internal/gateway"
	"github.com/jeranaias/cognilib/internal/model"
)

// =============================================================================
// TURN AND UPLOAD STATES
// =============================================================================

// TurnState is the state of a chat turn.
type TurnState int

const (
	TurnIdle TurnState = iota
	TurnSending
	TurnConfirmed
	TurnRolledBack
)

// String returns the string representation of the turn state.
func (s TurnState) String() string {
	switch s {
	case TurnIdle:
		return "idle"
	case TurnSending:
		return "sending"
	case TurnConfirmed:
		return "confirmed"
	case TurnRolledBack:
		return "rolled_back"
	default:
		return "unknown"
	}
}

// TurnOutcome records how the most recent turn settled.
type TurnOutcome struct {
	ConversationID string
	State          TurnState
	// Applied is false when a confirmed result was discarded because the
	// conversation was switched away or deleted while the turn was in flight.
	Applied bool
	Reason  string
}

// UploadPhase is the phase of the single upload slot.
type UploadPhase int

const (
	UploadIdle UploadPhase = iota
	UploadDragging
	UploadUploading
	UploadSucceeded
	UploadFailed
)

// String returns the string representation of the upload phase.
func (p UploadPhase) String() string {
	switch p {
	case UploadIdle:
		return "idle"
	case UploadDragging:
		return "dragging"
	case UploadUploading:
		return "uploading"
	case UploadSucceeded:
		return "succeeded"
	case UploadFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// UploadStatus is the visible state of the upload slot.
//
// Progress below 100 is an estimate driven by a timer, not a measurement of
// bytes sent. It is 100 only after the gateway confirmed the upload.
type UploadStatus struct {
	Phase    UploadPhase
	Progress int
	Filename string
}

// =============================================================================
// SNAPSHOT
// =============================================================================

// Snapshot is an immutable copy of the session state handed to listeners.
// Receivers may keep it; nothing in it is shared with the controller.
type Snapshot struct {
	// Version increases with every state change. Older snapshots are stale.
	Version uint64

	Conversations []model.Conversation
	ActiveID      string
	Messages      []model.Message
	Documents     []model.Document

	// Sending reports an in-flight turn for the active conversation.
	Sending bool
	// Loading reports an in-flight message fetch for the active conversation.
	Loading  bool
	LastTurn TurnOutcome
	Upload   UploadStatus
}

// ActiveConversation returns the active conversation, if any.
func (s Snapshot) ActiveConversation() (model.Conversation, bool) {
	for _, c := range s.Conversations {
		if c.ID == s.ActiveID {
			return c, true
		}
	}
	return model.Conversation{}, false
}

// HasTentative reports whether the message buffer holds an unconfirmed message.
func (s Snapshot) HasTentative() bool {
	for _, m := range s.Messages {
		if m.IsTentative() {
			return true
		}
	}
	return false
}

// =============================================================================
// NOTICES
// =============================================================================

// NoticeLevel classifies a notice.
type NoticeLevel int

const (
	NoticeInfo NoticeLevel = iota
	NoticeWarn
	NoticeError
)

// String returns the string representation of the level.
func (l NoticeLevel) String() string {
	switch l {
	case NoticeInfo:
		return "info"
	case NoticeWarn:
		return "warn"
	case NoticeError:
		return "error"
	default:
		return "unknown"
	}
}

// Notice is a user-facing notification. Every failed intent produces exactly one.
type Notice struct {
	Level   NoticeLevel
	Op      string
	Message string
	Err     error
}

// failureNotice builds the notice for a failed intent. The gateway's reason
// wins over the fallback. Local precondition failures are warnings.
func failureNotice(op string, err error, fallback string) Notice {
	n := Notice{Level: NoticeError, Op: op, Message: fallback, Err: err}
	if errors.Is(err, ErrPreconditionViolated) || errors.Is(err, ErrClosed) {
		n.Level = NoticeWarn
	}
	if reason := gateway.Reason(err); reason != "" {
		n.Message = reason
	}
	return n
}

func infoNotice(op, message string) Notice {
	return Notice{Level: NoticeInfo, Op: op, Message: message}
}

// =============================================================================
// LISTENERS
// =============================================================================

// Listener receives snapshots and notices. Callbacks run outside the state
// lock but are serialized; they must not block and must not call back into
// the controller synchronously.
type Listener interface {
	OnSnapshot(Snapshot)
	OnNotice(Notice)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	Snapshot func(Snapshot)
	Notice   func(Notice)
}

// OnSnapshot implements Listener.
func (f ListenerFuncs) OnSnapshot(s Snapshot) {
	if f.Snapshot != nil {
		f.Snapshot(s)
	}
}

// OnNotice implements Listener.
func (f ListenerFuncs) OnNotice(n Notice) {
	if f.Notice != nil {
		f.Notice(n)
	}
}
