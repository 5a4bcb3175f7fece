package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	mw "github.com/tphakala/fallwatch/internal/api/middleware"
	v1 "github.com/tphakala/fallwatch/internal/api/v1"
	"github.com/tphakala/fallwatch/internal/auth"
	"github.com/tphakala/fallwatch/internal/conf"
	"github.com/tphakala/fallwatch/internal/inference"
	"github.com/tphakala/fallwatch/internal/logger"
	"github.com/tphakala/fallwatch/internal/observability"
	"github.com/tphakala/fallwatch/internal/settings"
)

// Dependencies are the services the API drives.
type Dependencies struct {
	Detector inference.Detector
	Live     v1.LiveController
	Videos   v1.VideoProcessor
	Events   v1.EventLog
	Auth     *auth.Service
	Settings *settings.Store
}

// Server is the main HTTP server for FallWatch.
type Server struct {
	echo       *echo.Echo
	config     *Config
	metrics    *observability.Metrics
	controller *v1.Controller
	startTime  time.Time
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithMetrics sets the observability metrics for the server.
func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithConfig replaces the configuration derived from settings.
func WithConfig(cfg *Config) ServerOption {
	return func(s *Server) {
		s.config = cfg
	}
}

// New creates an HTTP server with the given settings and dependencies.
func New(settings *conf.Settings, deps Dependencies, opts ...ServerOption) (*Server, error) {
	s := &Server{
		config:    ConfigFromSettings(settings),
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server configuration: %w", err)
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Server.ReadTimeout = s.config.ReadTimeout
	s.echo.Server.WriteTimeout = s.config.WriteTimeout
	s.echo.Server.IdleTimeout = s.config.IdleTimeout

	s.setupMiddleware()

	s.controller = v1.New(s.echo, deps.Detector, deps.Live, deps.Videos, deps.Events, deps.Auth, deps.Settings,
		v1.Options{
			ModelPath:    settings.Model.Path,
			InputSize:    settings.Model.InputSize,
			RequireAuth:  s.config.RequireAuth,
			FrameTimeout: s.config.FrameTimeout,
		})

	if s.metrics != nil && s.config.Metrics {
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}

	GetLogger().Info("HTTP server initialized",
		logger.String("address", s.config.Listen),
		logger.Bool("require_auth", s.config.RequireAuth),
		logger.Bool("metrics", s.config.Metrics))

	return s, nil
}

// setupMiddleware configures the Echo middleware stack.
func (s *Server) setupMiddleware() {
	// Recovery middleware - should be first
	s.echo.Use(echomw.Recover())

	s.echo.Use(mw.NewRequestLoggerWithSkipper(GetLogger(), func(c echo.Context) bool {
		return c.Path() == "/metrics" || c.Path() == "/health"
	}))

	if s.metrics != nil {
		s.echo.Use(mw.NewMetrics(s.metrics.HTTP))
	}

	securityConfig := mw.DefaultSecurityConfig()
	securityConfig.AllowedOrigins = s.config.AllowedOrigins

	s.echo.Use(mw.NewCORS(securityConfig))
	s.echo.Use(mw.NewBodyLimit(s.config.BodyLimit))
	s.echo.Use(mw.NewSecureHeaders(securityConfig))
}

// Controller returns the API controller, e.g. to register it as an event
// log listener.
func (s *Server) Controller() *v1.Controller {
	return s.controller
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Run serves until ctx is cancelled and then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		GetLogger().Info("HTTP server starting", logger.String("address", s.config.Listen))
		if err := s.echo.Start(s.config.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	if err := s.Shutdown(); err != nil {
		return err
	}
	return <-errCh
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if err := s.echo.Shutdown(ctx); err != nil {
		GetLogger().Error("error during server shutdown", logger.Error(err))
		return fmt.Errorf("shutdown error: %w", err)
	}

	GetLogger().Info("server shutdown complete",
		logger.Duration("uptime", time.Since(s.startTime)))
	return nil
}
