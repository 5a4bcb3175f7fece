package v1

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/fallwatch/internal/inference"
)

// Root returns a service banner with the endpoint map.
func (c *Controller) Root(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]any{
		"message": "Fall Detection API is running!",
		"version": "1.0",
		"endpoints": map[string]string{
			"health":          "/health",
			"detect_video":    "/detect/video",
			"model_info":      "/model/info",
			"live_start":      "/live/start",
			"live_stop":       "/live/stop",
			"live_frame":      "/live/frame",
			"stream_url":      "/live/stream-url",
			"logs_list":       "/logs/list",
			"logs_stats":      "/logs/stats",
			"logs_delete_all": "/logs/delete-all",
			"auth_login":      "/auth/login",
			"auth_register":   "/auth/register",
			"auth_users":      "/auth/users",
			"settings":        "/settings",
		},
	})
}

// Health reports liveness and whether a model is loaded.
func (c *Controller) Health(ctx echo.Context) error {
	uptime := time.Since(c.startTime)
	return ctx.JSON(http.StatusOK, map[string]any{
		"status":         "healthy",
		"model_loaded":   c.detector != nil,
		"uptime_seconds": uptime.Seconds(),
		"timestamp":      time.Now().Format(time.RFC3339),
	})
}

// ModelInfo describes the loaded model.
func (c *Controller) ModelInfo(ctx echo.Context) error {
	if c.detector == nil {
		return c.HandleError(ctx, nil, "Model not loaded", http.StatusServiceUnavailable)
	}
	return ctx.JSON(http.StatusOK, inference.ModelInfo(c.detector, c.opts.ModelPath, c.opts.InputSize))
}
