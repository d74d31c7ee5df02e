// Package gateway is the HTTP front door: it verifies GitHub webhook
// deliveries, normalizes the three comment-bearing event types into a single
// shape, and hands them to the dispatcher.
package gateway

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"
)

// Server hosts the webhook endpoint and health check.
type Server struct {
	app           *fiber.App
	log           *zap.Logger
	webhookSecret []byte
	dispatcher    *Dispatcher
}

// NewServer builds the fiber application with its middleware and routes.
func NewServer(webhookSecret string, dispatcher *Dispatcher, log *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(requestLogger(log))

	s := &Server{
		app:           app,
		log:           log,
		webhookSecret: []byte(webhookSecret),
		dispatcher:    dispatcher,
	}

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	app.Post("/webhook", s.handleWebhook)

	return s
}

// Listen serves until Shutdown is called.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// requestLogger logs method, path, status and duration for every request.
func requestLogger(log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		reqID, _ := c.Locals("requestid").(string)
		log.Info("http",
			zap.String("method", c.Method()),
			zap.String("path", c.OriginalURL()),
			zap.Int("status", c.Response().StatusCode()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", reqID),
		)
		return err
	}
}
