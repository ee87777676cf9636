// Package server wraps echo with the arena's middleware stack, health
// endpoint and graceful shutdown.
package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/auralab/song-arena/internal/apperr"
	mw "github.com/auralab/song-arena/pkg/middleware"
	pkgserver "github.com/auralab/song-arena/pkg/server"
)

const (
	GracefulShutdownTimeout = 10 * time.Second
)

type Server struct {
	Echo *echo.Echo

	cfg     *Config
	checker pkgserver.HealthChecker
}

func NewServer(e *echo.Echo, cfg *Config, checker pkgserver.HealthChecker) *Server {
	e.DisableHTTP2 = !cfg.UseHttp2
	e.HideBanner = true
	e.HTTPErrorHandler = apperr.GlobalErrorHandler()

	s := &Server{
		Echo:    e,
		cfg:     cfg,
		checker: checker,
	}

	s.setupMiddlewares()
	s.setupHealthChecks()

	return s
}

func (s *Server) setupMiddlewares() {
	s.Echo.Use(mw.Logger())
	s.Echo.Use(middleware.Recover())
	s.Echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: s.cfg.CorsOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPut, http.MethodPost, http.MethodDelete},
	}))
}

func (s *Server) setupHealthChecks() {
	s.Echo.GET("/healthz", func(c echo.Context) error {
		if s.checker != nil && !s.checker.Healthy(c.Request().Context()) {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
}

func (s *Server) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	go func() {
		if err := s.Echo.Start(":" + s.cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.Echo.Logger.Fatal("shutting down the server")
		}
	}()

	<-ctx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), GracefulShutdownTimeout)
	defer cancel()

	if err := s.Echo.Shutdown(ctx); err != nil {
		s.Echo.Logger.Fatal(err)
		return err
	}
	return nil
}
