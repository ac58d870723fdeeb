// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"github.com/jeranaias/cognilib/internal/util"
)

// DefaultTitle is the title the gateway gives a conversation before its first exchange.
const DefaultTitle = "New Conversation"

// TitleMaxRunes is the number of characters kept when deriving a title.
const TitleMaxRunes = 50

// TitleEllipsis is appended to derived titles that were truncated.
const TitleEllipsis = "..."

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation is a summary of a chat session held by the gateway.
type Conversation struct {
	ID        string    `json:"id" validate:"required"`
	Title     string    `json:"title"`
	CreatedAt Timestamp `json:"created_at"`
	UpdatedAt Timestamp `json:"updated_at"`
}

// GetTitle returns the conversation title or a default.
func (c Conversation) GetTitle() string {
	if c.Title == "" {
		return DefaultTitle
	}
	return c.Title
}

// HasDefaultTitle reports whether the title was never derived.
func (c Conversation) HasDefaultTitle() bool {
	return c.Title == "" || c.Title == DefaultTitle
}

// DeriveTitle builds a conversation title from the first message of a conversation.
//
// Characters are counted as runes. Text of TitleMaxRunes or fewer is returned
// unchanged; longer text is cut and TitleEllipsis is appended.
func DeriveTitle(text string) string {
	if util.RuneLen(text) <= TitleMaxRunes {
		return text
	}
	return util.TruncateRunesNoEllipsis(text, TitleMaxRunes) + TitleEllipsis
}

// =============================================================================
// DOCUMENT TYPE
// =============================================================================

// Document status values reported by the gateway.
const (
	DocumentProcessing = "processing"
	DocumentReady      = "ready"
)

// Document is an uploaded file in the knowledge corpus.
type Document struct {
	ID         string    `json:"id" validate:"required"`
	Filename   string    `json:"filename" validate:"required"`
	FileType   string    `json:"file_type"`
	FileSize   int64     `json:"file_size" validate:"gte=0"`
	ChunkCount int       `json:"chunk_count" validate:"gte=0"`
	CreatedAt  Timestamp `json:"created_at"`
	Status     string    `json:"status"`
}

// IsReady reports whether the gateway finished indexing the document.
func (d Document) IsReady() bool {
	return d.Status == "" || d.Status == DocumentReady
}
