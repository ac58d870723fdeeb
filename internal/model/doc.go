// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations, messages and documents.
//
// These types mirror the gateway's wire format. They are plain values so the
// session package can hand out copies in snapshots without sharing state.
//
// # Key Types
//
//   - Conversation: Conversation summary (id, title, timestamps)
//   - Message: Chat message with role, content and sources
//   - MessageID: Tagged identifier, either Tentative (local) or Durable (gateway)
//   - Document: Uploaded document with chunk count and status
//   - Timestamp: Lenient time decoding for gateway payloads
//   - Role: Message role enumeration (user, assistant)
//
// # Usage
//
// Create an optimistic message and confirm it once the gateway answers:
//
//	msg := model.NewTentativeMessage(convID, "17", "What is the refund policy?")
//	msg.ID = msg.ID.Confirm(reply.UserMessage.ID.Value())
//
// Derive a conversation title from the first message:
//
//	title := model.DeriveTitle(text) // first 50 runes, "..." when longer
package model
