// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jeranaias/cognilib/internal/config"
	"github.com/jeranaias/cognilib/internal/model"
	"github.com/jeranaias/cognilib/internal/telemetry"
	"github.com/jeranaias/cognilib/internal/util"
)

// Configuration constants for the gateway client.
const (
	// DefaultBaseURL is where the development gateway listens.
	DefaultBaseURL = "http://localhost:8001"

	// DefaultAPIPrefix is prepended to every route.
	DefaultAPIPrefix = "/api"

	// DefaultTimeout bounds every request, including uploads.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxRetries is the number of extra attempts for idempotent reads.
	DefaultMaxRetries = 3

	// DefaultMaxUploadSize rejects larger files before they are sent.
	DefaultMaxUploadSize = 25 << 20

	// retryBaseDelay is the base delay for exponential backoff.
	retryBaseDelay = 500 * time.Millisecond

	// retryMaxDelay is the maximum delay for exponential backoff.
	retryMaxDelay = 10 * time.Second

	// MaxResponseSize is the maximum allowed response body size.
	MaxResponseSize = 10 * 1024 * 1024
)

// UserAgent is sent with every request. Overridden at build time via cli.Version.
var UserAgent = "cognilib/dev"

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the knowledge gateway over HTTP. It is safe for concurrent use.
type Client struct {
	baseURL       string
	apiPrefix     string
	httpClient    *http.Client
	maxRetries    int
	retryBase     time.Duration
	maxUploadSize int64
	limiter       *rate.Limiter
	logger        *zap.Logger
	validate      *validator.Validate
	tracer        trace.Tracer
}

// NewClient creates a gateway client for baseURL with default settings.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		apiPrefix:     DefaultAPIPrefix,
		httpClient:    &http.Client{Timeout: DefaultTimeout},
		maxRetries:    DefaultMaxRetries,
		retryBase:     retryBaseDelay,
		maxUploadSize: DefaultMaxUploadSize,
		limiter:       rate.NewLimiter(rate.Inf, 1),
		logger:        zap.NewNop(),
		validate:      validator.New(),
		tracer:        telemetry.Tracer(),
	}
}

// NewFromConfig creates a client from the [gateway] config section.
func NewFromConfig(cfg config.GatewayConfig, logger *zap.Logger) *Client {
	return NewClient(cfg.URL).
		WithAPIPrefix(cfg.APIPrefix).
		WithTimeout(cfg.Timeout()).
		WithMaxRetries(cfg.MaxRetries).
		WithRateLimit(cfg.RateLimit, cfg.RateBurst).
		WithMaxUploadSize(cfg.MaxUploadBytes()).
		WithLogger(logger)
}

// WithBaseURL sets the gateway base URL, without the API prefix.
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// WithAPIPrefix sets the route prefix (e.g. "/api").
func (c *Client) WithAPIPrefix(prefix string) *Client {
	c.apiPrefix = strings.TrimRight(prefix, "/")
	return c
}

// WithTimeout sets the per-request timeout.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	if timeout > 0 {
		c.httpClient.Timeout = timeout
	}
	return c
}

// WithMaxRetries sets the number of extra attempts for reads.
func (c *Client) WithMaxRetries(maxRetries int) *Client {
	if maxRetries >= 0 {
		c.maxRetries = maxRetries
	}
	return c
}

// WithRateLimit limits the sustained request rate. A non-positive rps disables limiting.
func (c *Client) WithRateLimit(rps float64, burst int) *Client {
	if rps <= 0 {
		c.limiter = rate.NewLimiter(rate.Inf, 1)
		return c
	}
	if burst < 1 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	return c
}

// WithMaxUploadSize sets the largest file UploadDocument will send.
func (c *Client) WithMaxUploadSize(n int64) *Client {
	if n > 0 {
		c.maxUploadSize = n
	}
	return c
}

// WithLogger sets the request logger.
func (c *Client) WithLogger(logger *zap.Logger) *Client {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// WithHTTPClient replaces the underlying HTTP client. Its timeout is kept as is.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.httpClient = hc
	}
	return c
}

// Endpoint returns the resolved API root, for display.
func (c *Client) Endpoint() string {
	return c.baseURL + c.apiPrefix
}

// =============================================================================
// OPERATIONS
// =============================================================================

// Health is the gateway's root status payload.
type Health struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type chatRequest struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
}

// Ping checks that the gateway answers.
func (c *Client) Ping(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.request(ctx, "ping", http.MethodGet, "/", nil, "", &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// ListConversations returns all conversations, most recent first.
func (c *Client) ListConversations(ctx context.Context) ([]model.Conversation, error) {
	var out []model.Conversation
	if err := c.request(ctx, "list_conversations", http.MethodGet, "/conversations", nil, "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateConversation creates an empty conversation.
func (c *Client) CreateConversation(ctx context.Context) (model.Conversation, error) {
	var out model.Conversation
	err := c.request(ctx, "create_conversation", http.MethodPost, "/conversations", nil, "", &out)
	return out, err
}

// GetConversation fetches a single conversation.
func (c *Client) GetConversation(ctx context.Context, id string) (model.Conversation, error) {
	var out model.Conversation
	err := c.request(ctx, "get_conversation", http.MethodGet, "/conversations/"+url.PathEscape(id), nil, "", &out)
	return out, err
}

// DeleteConversation deletes a conversation and its messages.
func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	var out messageResponse
	return c.request(ctx, "delete_conversation", http.MethodDelete, "/conversations/"+url.PathEscape(id), nil, "", &out)
}

// ListMessages returns a conversation's messages in order.
func (c *Client) ListMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	var out []model.Message
	path := "/conversations/" + url.PathEscape(conversationID) + "/messages"
	if err := c.request(ctx, "list_messages", http.MethodGet, path, nil, "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SendChat sends one user turn and returns the assistant's answer.
func (c *Client) SendChat(ctx context.Context, conversationID, text string) (model.ChatReply, error) {
	var out model.ChatReply
	body, err := json.Marshal(chatRequest{ConversationID: conversationID, Message: text})
	if err != nil {
		return out, fmt.Errorf("failed to marshal request: %w", err)
	}
	if err := c.request(ctx, "send_chat", http.MethodPost, "/chat", body, "application/json", &out); err != nil {
		return out, err
	}
	if out.Message.ID.Value() == "" {
		return out, &RejectedError{Op: "send_chat", Status: http.StatusOK, Reason: "malformed response"}
	}
	return out, nil
}

// ListDocuments returns all documents.
func (c *Client) ListDocuments(ctx context.Context) ([]model.Document, error) {
	var out []model.Document
	if err := c.request(ctx, "list_documents", http.MethodGet, "/documents", nil, "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UploadDocument sends a file as multipart field "file".
// Files larger than the upload limit are rejected without contacting the gateway.
func (c *Client) UploadDocument(ctx context.Context, filename string, r io.Reader) (model.Document, error) {
	var out model.Document

	data, err := io.ReadAll(io.LimitReader(r, c.maxUploadSize+1))
	if err != nil {
		return out, fmt.Errorf("failed to read %s: %w", filename, err)
	}
	if int64(len(data)) > c.maxUploadSize {
		return out, &RejectedError{
			Op:     "upload_document",
			Status: http.StatusRequestEntityTooLarge,
			Reason: fmt.Sprintf("File exceeds the %s upload limit", util.FormatBytes(c.maxUploadSize)),
		}
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return out, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return out, fmt.Errorf("failed to write form file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return out, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	err = c.request(ctx, "upload_document", http.MethodPost, "/documents/upload", buf.Bytes(), mw.FormDataContentType(), &out)
	return out, err
}

// DeleteDocument deletes a document and its chunks.
func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	var out messageResponse
	return c.request(ctx, "delete_document", http.MethodDelete, "/documents/"+url.PathEscape(id), nil, "", &out)
}

// =============================================================================
// TRANSPORT
// =============================================================================

// request performs one operation. Only GET is retried, with exponential backoff.
func (c *Client) request(ctx context.Context, op, method, path string, body []byte, contentType string, out interface{}) error {
	ctx, span := c.tracer.Start(ctx, "gateway."+op, trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.route", path),
		))
	defer span.End()

	attempts := 1
	if method == http.MethodGet {
		attempts += c.maxRetries
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return c.fail(span, unreachable(op, ctx.Err()))
			case <-time.After(calculateBackoff(c.retryBase, attempt)):
			}
		}

		err := c.doRequest(ctx, op, method, path, body, contentType, out, attempt)
		if err == nil {
			span.SetStatus(codes.Ok, "")
			return nil
		}
		lastErr = err
		if !isRetryable(err) {
			break
		}
	}
	return c.fail(span, lastErr)
}

func (c *Client) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, Reason(err))
	return err
}

// doRequest performs a single HTTP round trip and decodes the response into out.
func (c *Client) doRequest(ctx context.Context, op, method, path string, body []byte, contentType string, out interface{}, attempt int) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return unreachable(op, err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+c.apiPrefix+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("X-Request-ID", requestID)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		c.logger.Debug("gateway request failed",
			zap.String("op", op),
			zap.String("method", method),
			zap.String("path", path),
			zap.String("request_id", requestID),
			zap.Int("attempt", attempt),
			zap.Duration("duration", duration),
			zap.Error(err))
		return unreachable(op, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("gateway request",
		zap.String("op", op),
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.String("request_id", requestID),
		zap.Int("attempt", attempt),
		zap.Duration("duration", duration))

	respBody, err := readResponse(resp)
	if errors.Is(err, errResponseTooLarge) {
		c.logger.Warn("oversized gateway response", zap.String("op", op), zap.Int("status", resp.StatusCode))
		return &RejectedError{Op: op, Status: resp.StatusCode, Reason: errResponseTooLarge.Error()}
	}
	if err != nil {
		return unreachable(op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &RejectedError{Op: op, Status: resp.StatusCode, Reason: parseReason(respBody)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		c.logger.Warn("malformed gateway response", zap.String("op", op), zap.Error(err))
		return &RejectedError{Op: op, Status: resp.StatusCode, Reason: "malformed response"}
	}
	if err := c.check(out); err != nil {
		c.logger.Warn("invalid gateway payload", zap.String("op", op), zap.Error(err))
		return &RejectedError{Op: op, Status: resp.StatusCode, Reason: "malformed response"}
	}
	return nil
}

// check validates decoded payloads, element by element for slices.
func (c *Client) check(v interface{}) error {
	rv := reflect.Indirect(reflect.ValueOf(v))
	switch rv.Kind() {
	case reflect.Slice:
		for i := 0; i < rv.Len(); i++ {
			if err := c.validate.Struct(rv.Index(i).Interface()); err != nil {
				return err
			}
		}
	case reflect.Struct:
		return c.validate.Struct(rv.Interface())
	}
	return nil
}

// readResponse reads the response body with a size limit.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) > MaxResponseSize {
		return nil, fmt.Errorf("%w: exceeded %d bytes", errResponseTooLarge, MaxResponseSize)
	}
	return body, nil
}

// calculateBackoff returns the delay to wait before the given retry attempt.
func calculateBackoff(base time.Duration, attempt int) time.Duration {
	delay := base * time.Duration(1<<uint(attempt-1))
	if delay > retryMaxDelay {
		delay = retryMaxDelay
	}
	return delay
}
