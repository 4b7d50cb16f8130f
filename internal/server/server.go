package server

import (
	"thunderbird/internal/config"
	"thunderbird/internal/dispatch"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	App        *fiber.App
	Cfg        config.Config
	Dispatcher *dispatch.Dispatcher
}

func NewServer(cfg config.Config, d *dispatch.Dispatcher) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	s := &Server{
		App:        app,
		Cfg:        cfg,
		Dispatcher: d,
	}

	registerRoutes(s)
	return s
}

type inboundRequest struct {
	From string `json:"from"`
	Body string `json:"body"`
}

type inboundResponse struct {
	Segments []string `json:"segments"`
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	s.App.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// The gateway delivers raw inbound SMS here and sends back whatever
	// segments we return.
	s.App.Post("/gateway/inbound", GatewayAuth(s.Cfg.GatewaySecret), func(c *fiber.Ctx) error {
		var req inboundRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.From == "" {
			return fiber.NewError(fiber.StatusBadRequest, "from required")
		}
		segments, err := s.Dispatcher.HandleInbound(c.Context(), req.From, req.Body)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(inboundResponse{Segments: segments})
	})
}
