// Package monitor provides a small HTTP status surface for the engine.
package monitor

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/ljramones/dynamis-audio/internal/log"
	"github.com/ljramones/dynamis-audio/pkg/engine"
)

// Server exposes engine and scheduler statistics over HTTP.
type Server struct {
	app    *fiber.App
	port   string
	engine *engine.Engine
}

// NewServer creates a monitor for the given engine.
func NewServer(port string, eng *engine.Engine) *Server {
	s := &Server{
		port:   port,
		engine: eng,
	}

	app := fiber.New(fiber.Config{
		AppName:               "Dynamis Monitor",
		DisableStartupMessage: true,
	})

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/voices", s.handleVoices)

	s.app = app
	return s
}

// handleStatus returns the full engine counter snapshot.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.engine.Stats())
}

// handleVoices returns only the scheduler accounting.
func (s *Server) handleVoices(c *fiber.Ctx) error {
	return c.JSON(s.engine.Scheduler().Stats())
}

// Start runs the HTTP server. Blocks until Shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%s", s.port)
	log.Info("monitor listening", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
