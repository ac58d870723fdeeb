// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jeranaias/cognilib/internal/util"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// =============================================================================
// MESSAGE IDENTIFIER
// =============================================================================

// ErrTentativeID is returned when a tentative identifier is serialized.
// Tentative identifiers are local to the running client and never reach the gateway.
var ErrTentativeID = errors.New("tentative message id cannot be serialized")

type idKind uint8

const (
	idDurable idKind = iota
	idTentative
)

// MessageID identifies a message. It is either Durable, issued by the gateway,
// or Tentative, a local placeholder used while a send is in flight.
//
// The zero value is an empty durable identifier.
type MessageID struct {
	kind  idKind
	value string
}

// DurableID returns a gateway-issued identifier.
func DurableID(id string) MessageID {
	return MessageID{kind: idDurable, value: id}
}

// TentativeID returns a local placeholder identifier for the given token.
func TentativeID(token string) MessageID {
	return MessageID{kind: idTentative, value: token}
}

// IsTentative reports whether the identifier is a local placeholder.
func (id MessageID) IsTentative() bool {
	return id.kind == idTentative
}

// Value returns the raw identifier or local token.
func (id MessageID) Value() string {
	return id.value
}

// String returns the identifier for display. Tentative identifiers are marked.
func (id MessageID) String() string {
	if id.kind == idTentative {
		return "~" + id.value
	}
	return id.value
}

// Confirm promotes a tentative identifier to a durable one.
//
// If remote is empty the local token becomes the durable value. That is a
// best-effort derivation for gateways that do not return the user turn's id.
// Confirming a durable identifier returns it unchanged.
func (id MessageID) Confirm(remote string) MessageID {
	if id.kind == idDurable {
		return id
	}
	if remote == "" {
		return DurableID(id.value)
	}
	return DurableID(remote)
}

// MarshalJSON encodes a durable identifier as a JSON string.
func (id MessageID) MarshalJSON() ([]byte, error) {
	if id.kind == idTentative {
		return nil, fmt.Errorf("%w: %s", ErrTentativeID, id.value)
	}
	return json.Marshal(id.value)
}

// UnmarshalJSON decodes a JSON string into a durable identifier.
func (id *MessageID) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*id = MessageID{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("message id: %w", err)
	}
	*id = DurableID(s)
	return nil
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Source is a citation attached to an assistant message.
type Source struct {
	Content    string `json:"content"`
	Filename   string `json:"filename"`
	ChunkIndex int    `json:"chunk_index"`
}

// Message represents a single message in a conversation.
type Message struct {
	ID             MessageID `json:"id"`
	ConversationID string    `json:"conversation_id" validate:"required"`
	Role           Role      `json:"role" validate:"oneof=user assistant"`
	Content        string    `json:"content"`
	Sources        []Source  `json:"sources"`
	CreatedAt      Timestamp `json:"created_at"`
}

// NewTentativeMessage creates a user message that has not been confirmed yet.
func NewTentativeMessage(conversationID, token, content string) Message {
	return Message{
		ID:             TentativeID(token),
		ConversationID: conversationID,
		Role:           RoleUser,
		Content:        content,
		Sources:        []Source{},
		CreatedAt:      Now(),
	}
}

// IsTentative reports whether the message still carries a placeholder id.
func (m Message) IsTentative() bool {
	return m.ID.IsTentative()
}

// Clone returns a copy that shares no slices with m.
func (m Message) Clone() Message {
	out := m
	if m.Sources != nil {
		out.Sources = make([]Source, len(m.Sources))
		copy(out.Sources, m.Sources)
	}
	return out
}

// Preview returns a truncated preview of the message content.
func (m Message) Preview(maxLen int) string {
	return util.TruncateRunes(m.Content, maxLen)
}

// CloneMessages copies a message slice deeply.
func CloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}

// ChatReply is the gateway's answer to a chat turn.
//
// UserMessage is optional. When the gateway omits it the user turn's durable
// id is derived from the tentative token.
type ChatReply struct {
	Message     Message  `json:"message"`
	Sources     []Source `json:"sources"`
	UserMessage *Message `json:"user_message,omitempty"`
}

// AssistantSources returns the sources for the assistant message in gateway order.
func (r ChatReply) AssistantSources() []Source {
	if len(r.Message.Sources) > 0 {
		return r.Message.Sources
	}
	return r.Sources
}
