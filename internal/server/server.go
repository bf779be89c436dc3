/*
Package server exposes the KriShield features over HTTP with echo.
Every handler is a thin adapter over app.App.
*/
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rohmanhakim/krishield/internal/app"
	"github.com/rs/zerolog"
)

type Server struct {
	app       *app.App
	logger    zerolog.Logger
	hub       *chatHub
	startedAt time.Time
	*echo.Echo
}

func New(a *app.App, logger zerolog.Logger) *Server {
	s := &Server{
		app:       a,
		logger:    logger,
		hub:       newChatHub(logger),
		startedAt: time.Now(),
		Echo:      echo.New(),
	}
	s.HideBanner = true
	s.HidePort = true
	s.registerRoutes()
	return s
}

// HTTPServer wraps the router with production timeouts.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      s,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2 * time.Minute, // remote calls retry with backoff
	}
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := s.HTTPServer(addr)
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.Use(middleware.Recover())
	s.Use(s.requestLogger)

	s.GET("/healthz", s.healthHandler)
	s.GET("/v1/system", s.systemHandler)
	s.GET("/v1/dashboard", s.dashboardHandler)
	s.GET("/v1/market", s.marketHandler)
	s.GET("/v1/schemes", s.schemesHandler)
	s.POST("/v1/irrigation", s.irrigationHandler)
	s.GET("/v1/weather", s.weatherHandler)
	s.POST("/v1/chat", s.chatHandler)
	s.POST("/v1/price-advice", s.priceAdviceHandler)
	s.POST("/v1/diagnose", s.diagnoseHandler)

	s.GET("/v1/communities", s.listCommunitiesHandler)
	s.POST("/v1/communities", s.createCommunityHandler)
	s.POST("/v1/communities/:id/join", s.joinCommunityHandler)
	s.GET("/v1/communities/:id/messages", s.messagesHandler)
	s.POST("/v1/communities/:id/messages", s.postMessageHandler)
	s.GET("/v1/communities/:id/stream", s.streamHandler)
}

// requestLogger tags each request with an id and logs it once it completes.
func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := c.Request().Header.Get(echo.HeaderXRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Response().Header().Set(echo.HeaderXRequestID, requestID)

		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}

		s.logger.Info().
			Str("request_id", requestID).
			Str("method", c.Request().Method).
			Str("path", c.Path()).
			Int("status", c.Response().Status).
			Dur("latency", time.Since(start)).
			Msg("request")
		return nil
	}
}
