package v1

import (
	"context"
	"encoding/base64"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/fallwatch/internal/capture"
	"github.com/tphakala/fallwatch/internal/inference"
)

// FrameResponse is one annotated live frame.
type FrameResponse struct {
	Frame          string                `json:"frame"` // base64 JPEG
	Detections     []inference.Detection `json:"detections"`
	Timestamp      time.Time             `json:"timestamp"`
	CooldownActive bool                  `json:"cooldown_active"`
}

// StartLive connects to the configured camera.
func (c *Controller) StartLive(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, c.live.Start(ctx.Request().Context()))
}

// StopLive stops the running session.
func (c *Controller) StopLive(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, c.live.Stop())
}

// LiveFrame polls one annotated frame. Polls are bounded by the configured
// frame timeout.
func (c *Controller) LiveFrame(ctx echo.Context) error {
	if !c.live.Running() {
		return c.HandleError(ctx, capture.ErrNotRunning, "Live detection not running", http.StatusBadRequest)
	}

	pollCtx, cancel := context.WithTimeout(ctx.Request().Context(), c.opts.FrameTimeout)
	defer cancel()

	frame, err := c.live.Poll(pollCtx)
	if err != nil {
		code := StatusFor(err)
		message := "Failed to read frame"
		if code == http.StatusBadRequest {
			message = "Live detection not running"
		} else if code == http.StatusInternalServerError {
			code = http.StatusServiceUnavailable
		}
		return c.HandleError(ctx, err, message, code)
	}

	detections := frame.Detections
	if detections == nil {
		detections = []inference.Detection{}
	}
	return ctx.JSON(http.StatusOK, FrameResponse{
		Frame:          base64.StdEncoding.EncodeToString(frame.JPEG),
		Detections:     detections,
		Timestamp:      frame.Timestamp,
		CooldownActive: c.live.CooldownActive(),
	})
}

// StreamURL returns the configured camera URL with the password redacted.
func (c *Controller) StreamURL(ctx echo.Context) error {
	cfg := c.settings.Snapshot(ctx.Request().Context())
	status := "success"
	if cfg.CameraURL == "" {
		status = "not_configured"
	}
	return ctx.JSON(http.StatusOK, map[string]string{
		"rtsp_url": cfg.RedactedStreamURL(),
		"status":   status,
	})
}
