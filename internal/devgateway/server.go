// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package devgateway

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/jeranaias/cognilib/internal/config"
	"github.com/jeranaias/cognilib/internal/model"
)

const (
	// APIPrefix is the route group every endpoint lives under.
	APIPrefix = "/api"

	// RetrievalLimit is the number of chunks cited per answer.
	RetrievalLimit = 5

	// ExcerptMaxRunes is the length of a source excerpt before "..." is appended.
	ExcerptMaxRunes = 300

	// bodyLimit leaves room for multipart framing around a 25MB file.
	bodyLimit = 32 * 1024 * 1024

	cacheKeyConversations = "conversations"
	cacheKeyDocuments     = "documents"
)

// =============================================================================
// SERVER
// =============================================================================

// Server is a local implementation of the gateway HTTP surface.
type Server struct {
	cfg      config.DevGatewayConfig
	app      *fiber.App
	store    *Store
	cache    *cache.Cache
	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time
}

// New opens the store at cfg.DBPath and builds the HTTP app.
func New(cfg config.DevGatewayConfig, logger *zap.Logger) (*Server, error) {
	store, err := OpenStore(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	return NewWithStore(cfg, store, logger), nil
}

// NewWithStore builds the HTTP app around an open store. A zero cache TTL
// disables list caching.
func NewWithStore(cfg config.DevGatewayConfig, store *Store, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		cfg:      cfg,
		store:    store,
		validate: newValidator(),
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
	if ttl := cfg.CacheTTL(); ttl > 0 {
		s.cache = cache.New(ttl, 2*ttl)
	}

	app := fiber.New(fiber.Config{
		AppName:               "cognilib devgateway",
		BodyLimit:             bodyLimit,
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, X-Request-ID",
		AllowMethods: "GET, POST, DELETE, OPTIONS",
	}))

	// OpenTelemetry tracing middleware (traces all HTTP requests)
	app.Use(otelfiber.Middleware())
	app.Use(s.logRequests)
	app.Use(recover.New())

	s.registerRoutes(app.Group(APIPrefix))
	s.app = app
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on cfg.Addr until Shutdown.
func (s *Server) Listen() error {
	s.logger.Info("devgateway listening", zap.String("addr", s.cfg.Addr), zap.String("db", s.cfg.DBPath))
	return s.app.Listen(s.cfg.Addr)
}

// Shutdown stops the listener and closes the store.
func (s *Server) Shutdown() error {
	return errors.Join(s.app.Shutdown(), s.store.Close())
}

func (s *Server) registerRoutes(r fiber.Router) {
	r.Get("/", s.status)

	r.Get("/conversations", s.listConversations)
	r.Post("/conversations", s.createConversation)
	r.Get("/conversations/:id", s.getConversation)
	r.Delete("/conversations/:id", s.deleteConversation)
	r.Get("/conversations/:id/messages", s.listMessages)

	r.Post("/chat", s.chat)

	r.Get("/documents", s.listDocuments)
	r.Post("/documents/upload", s.uploadDocument)
	r.Delete("/documents/:id", s.deleteDocument)
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

// logRequests logs one line per request after the error handler ran, so the
// logged status is the one sent.
func (s *Server) logRequests(c *fiber.Ctx) error {
	start := time.Now()
	if err := c.Next(); err != nil {
		if herr := s.handleError(c, err); herr != nil {
			_ = c.SendStatus(fiber.StatusInternalServerError)
		}
	}

	status := c.Response().StatusCode()
	fields := []zap.Field{
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", status),
		zap.Duration("latency", time.Since(start)),
		zap.String("request_id", c.Get("X-Request-ID")),
	}
	if status >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", fields...)
	} else {
		s.logger.Debug("request", fields...)
	}
	return nil
}

// handleError renders every error as {"detail": reason}.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	detail := "Internal server error"

	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		code = fe.Code
		detail = fe.Message
	case errors.Is(err, ErrNotFound):
		code = fiber.StatusNotFound
		detail = "Not found"
	default:
		s.logger.Error("unhandled error", zap.String("path", c.Path()), zap.Error(err))
	}
	return c.Status(code).JSON(fiber.Map{"detail": detail})
}

// fieldError is one entry of a 422 response.
type fieldError struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

// unprocessable renders validation failures as a list of field errors.
func unprocessable(c *fiber.Ctx, errs ...fieldError) error {
	return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"detail": errs})
}

func (s *Server) validationErrors(err error) []fieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []fieldError{{Loc: []string{"body"}, Msg: err.Error(), Type: "value_error"}}
	}
	out := make([]fieldError, 0, len(verrs))
	for _, fe := range verrs {
		msg := fmt.Sprintf("failed on the '%s' rule", fe.Tag())
		if fe.Tag() == "required" {
			msg = "field required"
		}
		out = append(out, fieldError{
			Loc:  []string{"body", fe.Field()},
			Msg:  msg,
			Type: "value_error." + fe.Tag(),
		})
	}
	return out
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// =============================================================================
// CACHE
// =============================================================================

// cachedList returns the cached value for key or loads and stores it.
func cachedList[T any](s *Server, key string, load func() ([]T, error)) ([]T, error) {
	if s.cache != nil {
		if v, ok := s.cache.Get(key); ok {
			return v.([]T), nil
		}
	}
	list, err := load()
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Set(key, list, cache.DefaultExpiration)
	}
	return list, nil
}

func (s *Server) invalidate(keys ...string) {
	if s.cache == nil {
		return
	}
	for _, k := range keys {
		s.cache.Delete(k)
	}
}

func (s *Server) timestamp() model.Timestamp {
	return model.Timestamp{Time: s.now()}
}
