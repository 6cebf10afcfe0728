package server

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"storyloom/pkg/generation"
	"storyloom/pkg/metrics"
	"storyloom/pkg/orchestrator"
	"storyloom/pkg/paper"
)

type Server struct {
	Echo     *echo.Echo
	Service  *generation.Service
	Flows    *orchestrator.Manager
	Exporter *paper.Exporter
}

func NewServer(svc *generation.Service, flows *orchestrator.Manager, exporter *paper.Exporter) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		ExposeHeaders: []string{headerLimit, headerRemaining, headerReset, headerSession},
	}))
	e.Use(middleware.BodyLimit("4M"))

	s := &Server{
		Echo:     e,
		Service:  svc,
		Flows:    flows,
		Exporter: exporter,
	}

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.Echo.GET("/", s.handleGetRoot)
	s.Echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))

	api := s.Echo.Group("/api")
	api.POST("/generate-content", s.handleGenerateContent)
	api.POST("/generate-image", s.handleGenerateImage)

	// mocked paper pipeline
	api.POST("/enrich", s.handleEnrich)
	api.POST("/generate", s.handleGenerateStory)
	api.POST("/export", s.handleExport)
	api.GET("/export/:id", s.handleGetExport)

	session := api.Group("/session", s.withSession)
	session.GET("", s.handleGetSession)
	session.GET("/events", s.handleSessionEvents)
	session.POST("/resume", s.handleResume)
	session.POST("/topic", s.handleSetTopic)
	session.POST("/options", s.handleSubmitOptions)
	session.POST("/content", s.handleCreateContent)
	session.POST("/start-over", s.handleStartOver)
	session.POST("/save", s.handleSave)

	library := api.Group("/library", s.withSession)
	library.GET("", s.handleListLibrary)
	library.GET("/:id", s.handleGetEntry)
	library.POST("/:id/open", s.handleOpenEntry)
	library.POST("/:id/regenerate-images", s.handleRegenerateImages)
	library.POST("/:id/regenerate-text", s.handleRegenerateText)
	library.DELETE("/:id", s.handleDeleteEntry)
}

func (s *Server) Start(addr string) error {
	log.Info("server listening", "addr", addr)
	return s.Echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Info("shutting down server")
	err := s.Echo.Shutdown(ctx)
	if waitErr := s.Flows.Wait(ctx); waitErr != nil {
		log.Warn("background generation did not finish before shutdown", "error", waitErr)
	}
	s.Flows.Close()
	return err
}
