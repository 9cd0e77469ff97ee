package http_handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/anthanhphan/go-chunked-file-storage/internal/api/config"
	"github.com/anthanhphan/go-chunked-file-storage/internal/api/domain"
	"github.com/anthanhphan/go-chunked-file-storage/internal/api/port"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
)

// BlobRoute is where an in-process blob host is mounted.
const BlobRoute = "/_blobs"

// Options are the optional collaborators of the server.
type Options struct {
	// Redis backs the rate limiters; nil disables rate limiting.
	Redis redis.UniversalClient
	// Blobs serves an in-process blob host under BlobRoute.
	Blobs http.Handler
}

type Server struct {
	app       *fiber.App
	cfg       *config.Config
	service   port.FileService
	jwtSecret []byte
	startedAt time.Time

	globalLimit    *RateLimiter
	sensitiveLimit *RateLimiter
}

func NewServer(cfg *config.Config, service port.FileService, opts Options) *Server {
	app := fiber.New(fiber.Config{
		BodyLimit:         cfg.Server.BodyLimit,
		StreamRequestBody: true,
		UnescapePath:      true,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
	}))

	s := &Server{
		app:       app,
		cfg:       cfg,
		service:   service,
		jwtSecret: []byte(cfg.Auth.JWTSecret),
		startedAt: time.Now(),
	}

	if opts.Blobs != nil {
		app.Get(BlobRoute+"/*", adaptor.HTTPHandler(http.StripPrefix(BlobRoute, opts.Blobs)))
	}

	if cfg.RateLimit.Enabled && opts.Redis != nil {
		rl := cfg.RateLimit
		s.globalLimit = NewRateLimiter(opts.Redis, "ratelimit:global", rl.GlobalMax, time.Duration(rl.GlobalWindowSeconds)*time.Second)
		s.sensitiveLimit = NewRateLimiter(opts.Redis, "ratelimit:sensitive", rl.SensitiveMax, time.Duration(rl.SensitiveWindowSeconds)*time.Second)
		app.Use(s.globalLimit.Handler())
	}

	// Routes
	s.registerRoutes()

	return s
}

func (s *Server) registerRoutes() {
	s.app.Get("/status", s.handleStatus)

	upload := s.app.Group("/upload")
	upload.Post("/chunk", s.requireAuth, s.handleUploadChunk)
	upload.Post("/finalize", s.sensitive(), s.requireAuth, s.handleFinalize)
	upload.Delete("/cancel", s.sensitive(), s.optionalAuth, s.handleCancel)

	s.app.Get("/download/:filename", s.optionalAuth, s.handleDownload)

	s.app.Delete("/files/:filename", s.requireAuth, s.handleSoftDelete)
	s.app.Delete("/files/:filename/permanent", s.requireAuth, s.handlePermanentDelete)
}

// sensitive returns the stricter limiter, or a pass-through when limiting is off.
func (s *Server) sensitive() fiber.Handler {
	if s.sensitiveLimit == nil {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return s.sensitiveLimit.Handler()
}

func (s *Server) Start() error {
	return s.app.Listen(s.cfg.Server.Addr)
}

func (s *Server) Stop(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) sendJSONError(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": message,
	})
}

// sendServiceError maps the domain error taxonomy to a status and message.
// Unclassified errors are answered with fallback and status 500.
func (s *Server) sendServiceError(c *fiber.Ctx, err error, fallback string) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return s.sendJSONError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrQuotaExceeded):
		return s.sendJSONError(c, fiber.StatusForbidden, "Storage quota exceeded")
	case errors.Is(err, domain.ErrAccessDenied):
		return s.sendJSONError(c, fiber.StatusForbidden, "Access denied: Private file")
	case errors.Is(err, domain.ErrNotFound):
		return s.sendJSONError(c, fiber.StatusNotFound, "File not found")
	case errors.Is(err, domain.ErrConflict):
		return s.sendJSONError(c, fiber.StatusConflict, "File already exists")
	default:
		return s.sendJSONError(c, fiber.StatusInternalServerError, fallback)
	}
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(s.startedAt).Seconds()),
	})
}
