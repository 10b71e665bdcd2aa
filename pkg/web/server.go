// Package web assembles the relay's HTTP surface: the telephony
// webhook, the media stream and monitor WebSocket endpoints, the
// browser call endpoint, and the operations API.
package web

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/pfeddy91/better-call-robots-sub000/internal/config"
	"github.com/pfeddy91/better-call-robots-sub000/internal/log"
	"github.com/pfeddy91/better-call-robots-sub000/pkg/hub"
	"github.com/pfeddy91/better-call-robots-sub000/pkg/relay"
	"github.com/pfeddy91/better-call-robots-sub000/pkg/twilio"
	"github.com/pfeddy91/better-call-robots-sub000/pkg/webcall"
)

// Deps are the wired components the server exposes. Config, Adapter
// and Relay are required; Monitor and WebCalls are optional and their
// routes stay unregistered when nil.
type Deps struct {
	Config   *config.Config
	Adapter  *twilio.Adapter
	Relay    *relay.Orchestrator
	Monitor  *hub.Hub
	WebCalls *webcall.Bridge
}

// Server is the relay's HTTP front door.
type Server struct {
	app    *fiber.App
	logger *slog.Logger

	config   *config.Config
	adapter  *twilio.Adapter
	relay    *relay.Orchestrator
	monitor  *hub.Hub
	webcalls *webcall.Bridge

	started time.Time
}

// New assembles the fiber app and mounts every route.
func New(deps Deps) (*Server, error) {
	if deps.Config == nil {
		return nil, ErrMissingConfig
	}
	if deps.Adapter == nil {
		return nil, ErrMissingAdapter
	}
	if deps.Relay == nil {
		return nil, ErrMissingRelay
	}

	s := &Server{
		logger:   log.Component("web"),
		config:   deps.Config,
		adapter:  deps.Adapter,
		relay:    deps.Relay,
		monitor:  deps.Monitor,
		webcalls: deps.WebCalls,
		started:  time.Now(),
	}

	app := fiber.New(fiber.Config{
		AppName:               "relay",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(cors.New())

	app.Post("/twiml", s.handleTwiML)
	app.Get("/health", s.handleHealth)
	app.Get("/metrics", s.handleMetrics)

	// WebSocket endpoints: /ws/audio for the provider's media fork,
	// /ws/monitor for the dashboard feed.
	s.adapter.RegisterRoutes(app)
	if s.monitor != nil {
		s.monitor.RegisterRoutes(app)
	}

	s.registerAPIRoutes(app.Group("/api"))

	app.Static("/", "./static")

	s.app = app
	return s, nil
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.config.Addr())
	return s.app.Listen(s.config.Addr())
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}
