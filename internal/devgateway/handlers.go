// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package devgateway

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/jeranaias/cognilib/internal/model"
	"github.com/jeranaias/cognilib/internal/telemetry"
	"github.com/jeranaias/cognilib/internal/util"
)

var (
	errConversationNotFound = fiber.NewError(fiber.StatusNotFound, "Conversation not found")
	errDocumentNotFound     = fiber.NewError(fiber.StatusNotFound, "Document not found")
)

type chatRequest struct {
	ConversationID string `json:"conversation_id" validate:"required"`
	Message        string `json:"message" validate:"required"`
}

func (s *Server) status(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"message": "cognilib development gateway", "status": "running"})
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

func (s *Server) listConversations(c *fiber.Ctx) error {
	list, err := cachedList(s, cacheKeyConversations, func() ([]model.Conversation, error) {
		return s.store.ListConversations(c.UserContext())
	})
	if err != nil {
		return err
	}
	return c.JSON(list)
}

func (s *Server) createConversation(c *fiber.Ctx) error {
	now := s.timestamp()
	conv := model.Conversation{
		ID:        uuid.NewString(),
		Title:     model.DefaultTitle,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateConversation(c.UserContext(), conv); err != nil {
		return err
	}
	s.invalidate(cacheKeyConversations)
	s.logger.Info("conversation created", zap.String("conversation", conv.ID))
	return c.JSON(conv)
}

func (s *Server) getConversation(c *fiber.Ctx) error {
	conv, err := s.store.GetConversation(c.UserContext(), c.Params("id"))
	if errors.Is(err, ErrNotFound) {
		return errConversationNotFound
	}
	if err != nil {
		return err
	}
	return c.JSON(conv)
}

func (s *Server) deleteConversation(c *fiber.Ctx) error {
	id := c.Params("id")
	err := s.store.DeleteConversation(c.UserContext(), id)
	if errors.Is(err, ErrNotFound) {
		return errConversationNotFound
	}
	if err != nil {
		return err
	}
	s.invalidate(cacheKeyConversations)
	s.logger.Info("conversation deleted", zap.String("conversation", id))
	return c.JSON(fiber.Map{"message": "Conversation deleted"})
}

func (s *Server) listMessages(c *fiber.Ctx) error {
	msgs, err := s.store.ListMessages(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(msgs)
}

// =============================================================================
// CHAT
// =============================================================================

// chat stores the user turn, retrieves supporting chunks, composes a grounded
// answer and stores it. The first exchange names the conversation.
func (s *Server) chat(c *fiber.Ctx) error {
	var req chatRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid JSON body")
	}
	if err := s.validate.Struct(req); err != nil {
		return unprocessable(c, s.validationErrors(err)...)
	}

	ctx := c.UserContext()
	if _, err := s.store.GetConversation(ctx, req.ConversationID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return errConversationNotFound
		}
		return err
	}

	user := model.Message{
		ID:             model.DurableID(uuid.NewString()),
		ConversationID: req.ConversationID,
		Role:           model.RoleUser,
		Content:        req.Message,
		Sources:        []model.Source{},
		CreatedAt:      s.timestamp(),
	}
	if err := s.store.AddMessage(ctx, user); err != nil {
		return err
	}

	rctx, span := telemetry.Tracer().Start(ctx, "devgateway.retrieve")
	chunks, err := s.store.SearchChunks(rctx, req.Message, RetrievalLimit)
	span.SetAttributes(attribute.Int("chunks", len(chunks)))
	span.End()
	if err != nil {
		// Retrieval failures degrade to an unsourced answer.
		s.logger.Error("chunk search failed", zap.Error(err))
		chunks = nil
	}

	sources := make([]model.Source, 0, len(chunks))
	for _, ch := range chunks {
		sources = append(sources, model.Source{
			Content:    excerpt(ch.Content),
			Filename:   ch.Filename,
			ChunkIndex: ch.Index,
		})
	}

	assistant := model.Message{
		ID:             model.DurableID(uuid.NewString()),
		ConversationID: req.ConversationID,
		Role:           model.RoleAssistant,
		Content:        composeAnswer(req.Message, chunks),
		Sources:        sources,
		CreatedAt:      s.timestamp(),
	}
	if err := s.store.AddMessage(ctx, assistant); err != nil {
		return err
	}

	count, err := s.store.CountMessages(ctx, req.ConversationID)
	if err != nil {
		return err
	}
	title := ""
	if count == 2 {
		title = model.DeriveTitle(req.Message)
	}
	if err := s.store.TouchConversation(ctx, req.ConversationID, title, s.timestamp()); err != nil {
		return err
	}
	s.invalidate(cacheKeyConversations)

	s.logger.Info("chat turn",
		zap.String("conversation", req.ConversationID),
		zap.Int("sources", len(sources)),
		zap.Bool("titled", title != ""))

	return c.JSON(model.ChatReply{
		Message:     assistant,
		Sources:     sources,
		UserMessage: &user,
	})
}

func excerpt(content string) string {
	if util.RuneLen(content) <= ExcerptMaxRunes {
		return content
	}
	return util.TruncateRunesNoEllipsis(content, ExcerptMaxRunes) + "..."
}

// =============================================================================
// DOCUMENTS
// =============================================================================

func (s *Server) listDocuments(c *fiber.Ctx) error {
	list, err := cachedList(s, cacheKeyDocuments, func() ([]model.Document, error) {
		return s.store.ListDocuments(c.UserContext())
	})
	if err != nil {
		return err
	}
	return c.JSON(list)
}

// uploadDocument extracts, chunks and indexes one file.
func (s *Server) uploadDocument(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return unprocessable(c, fieldError{Loc: []string{"body", "file"}, Msg: "field required", Type: "value_error.missing"})
	}

	filename := filepath.Base(fh.Filename)
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtension(ext) {
		return fiber.NewError(fiber.StatusBadRequest,
			fmt.Sprintf("File type %s not supported. Allowed: %s", ext, strings.Join(AllowedExtensions, ", ")))
	}

	f, err := fh.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("read upload: %w", err)
	}

	text, err := extractText(ext, data)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Could not read "+filename+": "+err.Error())
	}
	chunks := chunkText(text, s.cfg.ChunkSize, s.cfg.ChunkOverlap)

	doc := model.Document{
		ID:         uuid.NewString(),
		Filename:   filename,
		FileType:   ext,
		FileSize:   int64(len(data)),
		ChunkCount: len(chunks),
		CreatedAt:  s.timestamp(),
		Status:     model.DocumentReady,
	}
	if err := s.validate.Struct(doc); err != nil {
		return unprocessable(c, s.validationErrors(err)...)
	}
	if err := s.store.AddDocument(c.UserContext(), doc, chunks); err != nil {
		return err
	}
	s.invalidate(cacheKeyDocuments)

	s.logger.Info("document indexed",
		zap.String("document", doc.ID),
		zap.String("filename", filename),
		zap.String("size", util.FormatBytes(doc.FileSize)),
		zap.Int("chunks", doc.ChunkCount))
	return c.JSON(doc)
}

func (s *Server) deleteDocument(c *fiber.Ctx) error {
	id := c.Params("id")
	err := s.store.DeleteDocument(c.UserContext(), id)
	if errors.Is(err, ErrNotFound) {
		return errDocumentNotFound
	}
	if err != nil {
		return err
	}
	s.invalidate(cacheKeyDocuments)
	s.logger.Info("document deleted", zap.String("document", id))
	return c.JSON(fiber.Map{"message": "Document deleted"})
}
