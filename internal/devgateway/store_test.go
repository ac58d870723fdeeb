// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package devgateway

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/cognilib/internal/model"
)

var storeBase = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func at(minutes int) model.Timestamp {
	return model.Timestamp{Time: storeBase.Add(time.Duration(minutes) * time.Minute)}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// =============================================================================
// CONVERSATION TESTS
// =============================================================================

func TestStore_ConversationLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateConversation(ctx, model.Conversation{ID: "c1", Title: model.DefaultTitle, CreatedAt: at(0), UpdatedAt: at(0)}))
	require.NoError(t, s.CreateConversation(ctx, model.Conversation{ID: "c2", Title: model.DefaultTitle, CreatedAt: at(1), UpdatedAt: at(1)}))

	list, err := s.ListConversations(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c2", list[0].ID)

	require.NoError(t, s.TouchConversation(ctx, "c1", "Refunds", at(5)))
	list, err = s.ListConversations(ctx)
	require.NoError(t, err)
	assert.Equal(t, "c1", list[0].ID)
	assert.Equal(t, "Refunds", list[0].Title)
	assert.True(t, list[0].UpdatedAt.Equal(at(5).Time))

	got, err := s.GetConversation(ctx, "c2")
	require.NoError(t, err)
	assert.True(t, got.HasDefaultTitle())

	_, err = s.GetConversation(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_DeleteConversationRemovesMessages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateConversation(ctx, model.Conversation{ID: "c1", Title: "t", CreatedAt: at(0), UpdatedAt: at(0)}))
	require.NoError(t, s.AddMessage(ctx, model.Message{ID: model.DurableID("m1"), ConversationID: "c1", Role: model.RoleUser, Content: "hi", CreatedAt: at(1)}))

	require.NoError(t, s.DeleteConversation(ctx, "c1"))
	n, err := s.CountMessages(ctx, "c1")
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.ErrorIs(t, s.DeleteConversation(ctx, "c1"), ErrNotFound)
}

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestStore_MessagesKeepOrderAndSources(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateConversation(ctx, model.Conversation{ID: "c1", Title: "t", CreatedAt: at(0), UpdatedAt: at(0)}))

	// Same timestamp: insertion order decides.
	require.NoError(t, s.AddMessage(ctx, model.Message{ID: model.DurableID("u1"), ConversationID: "c1", Role: model.RoleUser, Content: "q", CreatedAt: at(1)}))
	require.NoError(t, s.AddMessage(ctx, model.Message{
		ID: model.DurableID("a1"), ConversationID: "c1", Role: model.RoleAssistant, Content: "a",
		Sources:   []model.Source{{Content: "excerpt", Filename: "policy.pdf", ChunkIndex: 2}},
		CreatedAt: at(1),
	}))

	msgs, err := s.ListMessages(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "u1", msgs[0].ID.Value())
	assert.False(t, msgs[0].IsTentative())
	assert.Empty(t, msgs[0].Sources)
	assert.NotNil(t, msgs[0].Sources)
	assert.Equal(t, model.RoleAssistant, msgs[1].Role)
	require.Len(t, msgs[1].Sources, 1)
	assert.Equal(t, "policy.pdf", msgs[1].Sources[0].Filename)
	assert.Equal(t, 2, msgs[1].Sources[0].ChunkIndex)

	empty, err := s.ListMessages(ctx, "unknown")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

// =============================================================================
// DOCUMENT AND SEARCH TESTS
// =============================================================================

func TestStore_DocumentsAndSearch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddDocument(ctx,
		model.Document{ID: "d1", Filename: "policy.pdf", FileType: ".pdf", FileSize: 10, ChunkCount: 2, Status: model.DocumentReady, CreatedAt: at(0)},
		[]string{"Refunds are issued within 30 days of purchase.", "Shipping takes five business days."}))
	require.NoError(t, s.AddDocument(ctx,
		model.Document{ID: "d2", Filename: "hr.md", FileType: ".md", FileSize: 5, ChunkCount: 1, Status: model.DocumentReady, CreatedAt: at(1)},
		[]string{"Vacation requests need manager approval."}))

	docs, err := s.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "d2", docs[0].ID)

	hits, err := s.SearchChunks(ctx, "What is the refund policy?", 5)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "policy.pdf", hits[0].Filename)
	assert.Equal(t, 0, hits[0].Index)

	require.NoError(t, s.DeleteDocument(ctx, "d1"))
	hits, err = s.SearchChunks(ctx, "refunds", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)

	assert.ErrorIs(t, s.DeleteDocument(ctx, "d1"), ErrNotFound)
}

func TestStore_SearchIgnoresOperators(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.AddDocument(ctx,
		model.Document{ID: "d1", Filename: "a.txt", Status: model.DocumentReady, CreatedAt: at(0)},
		[]string{"alpha beta gamma"}))

	hits, err := s.SearchChunks(ctx, `beta AND NOT "(*`, 5)
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	hits, err = s.SearchChunks(ctx, "?! a", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestStore_PersistsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "gateway.db")
	ctx := context.Background()

	s, err := OpenStore(path)
	require.NoError(t, err)
	require.NoError(t, s.CreateConversation(ctx, model.Conversation{ID: "c1", Title: "kept", CreatedAt: at(0), UpdatedAt: at(0)}))
	require.NoError(t, s.Close())

	s, err = OpenStore(path)
	require.NoError(t, err)
	defer s.Close()
	conv, err := s.GetConversation(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "kept", conv.Title)
}

func TestBuildFTSQuery(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"simple", "Refund policy", `"refund" OR "policy"`},
		{"dedupes", "refund REFUND", `"refund"`},
		{"drops short", "a b cd", `"cd"`},
		{"strips punctuation", `what's "this"?`, `"what" OR "this"`},
		{"empty", "  ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildFTSQuery(tt.in))
		})
	}
}
