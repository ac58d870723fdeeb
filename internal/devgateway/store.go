// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package devgateway

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/cognilib/internal/model"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrNotFound      = errors.New("not found")
	ErrDatabaseError = errors.New("database error")
)

// Chunk is an indexed slice of document text.
type Chunk struct {
	DocumentID string
	Filename   string
	Index      int
	Content    string
}

// =============================================================================
// STORE
// =============================================================================

// Store persists gateway state in SQLite.
type Store struct {
	db *sql.DB
}

// OpenStore opens or creates the database at path. ":memory:" keeps
// everything in memory for the lifetime of the store.
func OpenStore(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time, and an in-memory database
	// lives on exactly one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if _, err := db.Exec(InitMetadata); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize metadata: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func dbErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrDatabaseError, op, err)
}

func toNanos(t model.Timestamp) int64 {
	return t.UTC().UnixNano()
}

func fromNanos(n int64) model.Timestamp {
	return model.Timestamp{Time: time.Unix(0, n).UTC()}
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

// CreateConversation inserts conv.
func (s *Store) CreateConversation(ctx context.Context, conv model.Conversation) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO conversations (id, title, created_at, updated_at) VALUES (?, ?, ?, ?)",
		conv.ID, conv.Title, toNanos(conv.CreatedAt), toNanos(conv.UpdatedAt))
	if err != nil {
		return dbErr("insert conversation", err)
	}
	return nil
}

// ListConversations returns up to 100 conversations, most recently updated first.
func (s *Store) ListConversations(ctx context.Context) ([]model.Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, title, created_at, updated_at FROM conversations ORDER BY updated_at DESC LIMIT 100")
	if err != nil {
		return nil, dbErr("list conversations", err)
	}
	defer rows.Close()

	out := []model.Conversation{}
	for rows.Next() {
		var c model.Conversation
		var created, updated int64
		if err := rows.Scan(&c.ID, &c.Title, &created, &updated); err != nil {
			return nil, dbErr("scan conversation", err)
		}
		c.CreatedAt = fromNanos(created)
		c.UpdatedAt = fromNanos(updated)
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetConversation returns the conversation with id or ErrNotFound.
func (s *Store) GetConversation(ctx context.Context, id string) (model.Conversation, error) {
	var c model.Conversation
	var created, updated int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id, title, created_at, updated_at FROM conversations WHERE id = ?", id).
		Scan(&c.ID, &c.Title, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return c, ErrNotFound
	}
	if err != nil {
		return c, dbErr("get conversation", err)
	}
	c.CreatedAt = fromNanos(created)
	c.UpdatedAt = fromNanos(updated)
	return c, nil
}

// DeleteConversation removes a conversation and its messages.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return dbErr("begin", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE conversation_id = ?", id); err != nil {
		return dbErr("delete messages", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM conversations WHERE id = ?", id)
	if err != nil {
		return dbErr("delete conversation", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

// TouchConversation bumps updated_at and, when title is non-empty, renames.
func (s *Store) TouchConversation(ctx context.Context, id, title string, at model.Timestamp) error {
	var err error
	if title != "" {
		_, err = s.db.ExecContext(ctx,
			"UPDATE conversations SET title = ?, updated_at = ? WHERE id = ?", title, toNanos(at), id)
	} else {
		_, err = s.db.ExecContext(ctx,
			"UPDATE conversations SET updated_at = ? WHERE id = ?", toNanos(at), id)
	}
	if err != nil {
		return dbErr("update conversation", err)
	}
	return nil
}

// =============================================================================
// MESSAGES
// =============================================================================

// AddMessage appends m to its conversation.
func (s *Store) AddMessage(ctx context.Context, m model.Message) error {
	sources := m.Sources
	if sources == nil {
		sources = []model.Source{}
	}
	encoded, err := json.Marshal(sources)
	if err != nil {
		return fmt.Errorf("encode sources: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO messages (id, conversation_id, role, content, sources, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		m.ID.Value(), m.ConversationID, string(m.Role), m.Content, string(encoded), toNanos(m.CreatedAt))
	if err != nil {
		return dbErr("insert message", err)
	}
	return nil
}

// ListMessages returns a conversation's messages, oldest first.
func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, role, content, sources, created_at
		FROM messages WHERE conversation_id = ?
		ORDER BY created_at, seq LIMIT 1000`, conversationID)
	if err != nil {
		return nil, dbErr("list messages", err)
	}
	defer rows.Close()

	out := []model.Message{}
	for rows.Next() {
		var m model.Message
		var id, role, sources string
		var created int64
		if err := rows.Scan(&id, &m.ConversationID, &role, &m.Content, &sources, &created); err != nil {
			return nil, dbErr("scan message", err)
		}
		m.ID = model.DurableID(id)
		m.Role = model.Role(role)
		m.CreatedAt = fromNanos(created)
		if err := json.Unmarshal([]byte(sources), &m.Sources); err != nil {
			return nil, fmt.Errorf("decode sources of %s: %w", id, err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// CountMessages returns the number of messages in a conversation.
func (s *Store) CountMessages(ctx context.Context, conversationID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM messages WHERE conversation_id = ?", conversationID).Scan(&n)
	if err != nil {
		return 0, dbErr("count messages", err)
	}
	return n, nil
}

// =============================================================================
// DOCUMENTS
// =============================================================================

// AddDocument inserts doc and its chunks in one transaction.
func (s *Store) AddDocument(ctx context.Context, doc model.Document, chunks []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return dbErr("begin", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (id, filename, file_type, file_size, chunk_count, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Filename, doc.FileType, doc.FileSize, doc.ChunkCount, doc.Status, toNanos(doc.CreatedAt))
	if err != nil {
		return dbErr("insert document", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO chunks (document_id, filename, chunk_index, content) VALUES (?, ?, ?, ?)")
	if err != nil {
		return dbErr("prepare chunk insert", err)
	}
	defer stmt.Close()
	for i, chunk := range chunks {
		if _, err := stmt.ExecContext(ctx, doc.ID, doc.Filename, i, chunk); err != nil {
			return dbErr("insert chunk", err)
		}
	}

	return tx.Commit()
}

// ListDocuments returns every document, newest first.
func (s *Store) ListDocuments(ctx context.Context) ([]model.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, filename, file_type, file_size, chunk_count, status, created_at
		FROM documents ORDER BY created_at DESC LIMIT 1000`)
	if err != nil {
		return nil, dbErr("list documents", err)
	}
	defer rows.Close()

	out := []model.Document{}
	for rows.Next() {
		var d model.Document
		var created int64
		if err := rows.Scan(&d.ID, &d.Filename, &d.FileType, &d.FileSize, &d.ChunkCount, &d.Status, &created); err != nil {
			return nil, dbErr("scan document", err)
		}
		d.CreatedAt = fromNanos(created)
		out = append(out, d)
	}
	return out, rows.Err()
}

// DeleteDocument removes a document and its chunks.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return dbErr("begin", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", id); err != nil {
		return dbErr("delete chunks", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return dbErr("delete document", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

// =============================================================================
// SEARCH
// =============================================================================

// SearchChunks returns up to limit chunks matching any term of query, best
// match first.
func (s *Store) SearchChunks(ctx context.Context, query string, limit int) ([]Chunk, error) {
	ftsQuery := buildFTSQuery(query)
	if ftsQuery == "" {
		return []Chunk{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.document_id, c.filename, c.chunk_index, c.content
		FROM chunks_fts
		JOIN chunks c ON c.id = chunks_fts.rowid
		WHERE chunks_fts MATCH ?
		ORDER BY chunks_fts.rank
		LIMIT ?`, ftsQuery, limit)
	if err != nil {
		return nil, dbErr("search chunks", err)
	}
	defer rows.Close()

	out := []Chunk{}
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.DocumentID, &c.Filename, &c.Index, &c.Content); err != nil {
			return nil, dbErr("scan chunk", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// buildFTSQuery turns free text into an FTS5 OR query of quoted terms.
// Quoting every term keeps FTS5 operators in user input inert.
func buildFTSQuery(text string) string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]struct{}, len(words))
	terms := make([]string, 0, len(words))
	for _, w := range words {
		if len([]rune(w)) < 2 {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		terms = append(terms, `"`+w+`"`)
	}
	return strings.Join(terms, " OR ")
}
