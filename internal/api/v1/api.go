// Package v1 implements the FallWatch JSON API. Routes are registered both
// at the server root and under /api/v1.
package v1

import (
	"context"
	"crypto/rand"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	mw "github.com/tphakala/fallwatch/internal/api/middleware"
	"github.com/tphakala/fallwatch/internal/auth"
	"github.com/tphakala/fallwatch/internal/batch"
	"github.com/tphakala/fallwatch/internal/capture"
	"github.com/tphakala/fallwatch/internal/datastore/repository"
	"github.com/tphakala/fallwatch/internal/errors"
	"github.com/tphakala/fallwatch/internal/eventlog"
	"github.com/tphakala/fallwatch/internal/inference"
	"github.com/tphakala/fallwatch/internal/logger"
	"github.com/tphakala/fallwatch/internal/securefs"
	"github.com/tphakala/fallwatch/internal/settings"
)

const (
	// DefaultFrameTimeout bounds a single live frame poll.
	DefaultFrameTimeout = 10 * time.Second
)

// GetLogger returns the api module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("api")
}

// LiveController drives the live capture session.
type LiveController interface {
	Start(ctx context.Context) capture.StartResult
	Stop() capture.StopResult
	Running() bool
	CooldownActive() bool
	Poll(ctx context.Context) (*capture.Frame, error)
}

// VideoProcessor runs batch detection on uploads.
type VideoProcessor interface {
	Process(ctx context.Context, req batch.Request) (*batch.Result, error)
	OutputPath(fileID, filename string) (string, error)
	Outputs() *securefs.SecureFS
}

// EventLog is the detection log used by the logs endpoints.
type EventLog interface {
	Append(ctx context.Context, event eventlog.Event) (uint, error)
	List(ctx context.Context, limit int) ([]eventlog.Event, error)
	Stats(ctx context.Context) (eventlog.Stats, error)
	DeleteAll(ctx context.Context) (int64, error)
}

// Options carries controller settings that come from configuration.
type Options struct {
	ModelPath    string
	InputSize    int
	RequireAuth  bool
	FrameTimeout time.Duration
}

// Controller handles all API requests.
type Controller struct {
	detector inference.Detector
	live     LiveController
	videos   VideoProcessor
	events   EventLog
	auth     *auth.Service
	settings *settings.Store
	opts     Options

	startTime time.Time
}

// New creates a controller and registers its routes on e.
func New(e *echo.Echo, det inference.Detector, live LiveController, videos VideoProcessor,
	events EventLog, authSvc *auth.Service, store *settings.Store, opts Options,
) *Controller {
	if opts.FrameTimeout <= 0 {
		opts.FrameTimeout = DefaultFrameTimeout
	}
	c := &Controller{
		detector: det,
		live:     live,
		videos:   videos,
		events:   events,
		auth:     authSvc,
		settings: store,
		opts:      opts,
		startTime: time.Now(),
	}

	c.registerRoutes(e.Group(""))
	c.registerRoutes(e.Group("/api/v1"))
	return c
}

func (c *Controller) registerRoutes(g *echo.Group) {
	admin := mw.NewAdminBasicAuth(c.auth, c.opts.RequireAuth)

	g.GET("/", c.Root)
	g.GET("/health", c.Health)
	g.GET("/model/info", c.ModelInfo)

	g.POST("/detect/video", c.DetectVideo)
	g.GET("/download/:file_id/:filename", c.DownloadVideo)

	g.GET("/live/start", c.StartLive)
	g.POST("/live/start", c.StartLive)
	g.GET("/live/stop", c.StopLive)
	g.POST("/live/stop", c.StopLive)
	g.GET("/live/frame", c.LiveFrame)
	g.GET("/live/stream-url", c.StreamURL)

	g.GET("/logs/list", c.ListLogs)
	g.GET("/logs/stats", c.LogStats)
	g.POST("/logs/save", c.SaveLog)
	g.DELETE("/logs/delete-all", c.DeleteAllLogs, admin)

	g.POST("/auth/login", c.Login)
	g.POST("/auth/register", c.Register)
	g.POST("/auth/change-password", c.ChangePassword)
	g.GET("/auth/users", c.ListUsers, admin)
	g.DELETE("/auth/users/:id", c.DeleteUser, admin)

	g.GET("/settings", c.GetSettings)
	g.GET("/settings/raw", c.GetRawSettings)
	g.POST("/settings/update", c.UpdateSettings, admin)
	g.PUT("/settings/:key", c.UpdateSetting, admin)
}

// ErrorResponse is the JSON body of every error.
type ErrorResponse struct {
	Error         string `json:"error"`          // underlying error text
	Message       string `json:"message"`        // message for the user
	Code          int    `json:"code"`           // HTTP status code
	CorrelationID string `json:"correlation_id"` // unique identifier for tracking this error
}

// NewErrorResponse creates an error body with a fresh correlation id.
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}
	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: generateCorrelationID(),
	}
}

// generateCorrelationID returns 8 random alphanumeric characters.
func generateCorrelationID() string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 8

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "ERR-RAND"
	}
	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}
	return string(b)
}

// HandleError logs err and writes an error body. A zero code is derived
// from the error with StatusFor.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	if code == 0 {
		code = StatusFor(err)
	}
	resp := NewErrorResponse(err, message, code)

	fields := []logger.Field{
		logger.String("correlation_id", resp.CorrelationID),
		logger.String("path", ctx.Path()),
		logger.Int("code", code),
		logger.Error(err),
	}
	if code >= http.StatusInternalServerError {
		GetLogger().Error(message, fields...)
	} else {
		GetLogger().Debug(message, fields...)
	}

	return ctx.JSON(code, resp)
}

// StatusFor maps domain errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, capture.ErrNotRunning):
		return http.StatusBadRequest
	case errors.Is(err, capture.ErrFrameUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, auth.ErrTooManyAttempts):
		return http.StatusTooManyRequests
	case errors.Is(err, repository.ErrDuplicateUsername):
		return http.StatusConflict
	case errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, repository.ErrSettingNotFound),
		errors.Is(err, repository.ErrEventNotFound),
		errors.Is(err, batch.ErrOutputNotFound):
		return http.StatusNotFound
	case errors.Is(err, batch.ErrUnsupportedFormat),
		errors.IsCategory(err, errors.CategoryValidation):
		return http.StatusBadRequest
	case errors.IsCategory(err, errors.CategoryNotFound):
		return http.StatusNotFound
	case errors.IsCategory(err, errors.CategoryConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// bindParams fills req from query parameters and then from the request body.
func bindParams(ctx echo.Context, req any) error {
	binder := &echo.DefaultBinder{}
	if err := binder.BindQueryParams(ctx, req); err != nil {
		return err
	}
	return binder.BindBody(ctx, req)
}
