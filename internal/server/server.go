package server

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/mustafamuse/irshad-center-sub005/internal/handler"
	"github.com/mustafamuse/irshad-center-sub005/internal/service"
)

type Server struct {
	echo           *echo.Echo
	webhookHandler *handler.WebhookHandler
}

func NewServer(webhookService service.WebhookService) *Server {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())

	s := &Server{
		echo:           e,
		webhookHandler: handler.NewWebhookHandler(webhookService),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	// -------- stripe webhooks, one endpoint per program --------
	api.POST("/webhook/dugsi", s.webhookHandler.DugsiWebhook)
	api.POST("/webhook/mahad", s.webhookHandler.MahadWebhook)

	// audit view over the idempotency store
	api.GET("/webhook/events", s.webhookHandler.ListEvents)
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown() error {
	return s.echo.Close()
}
