package v1

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/fallwatch/internal/eventlog"
)

// SaveLogRequest is a manual event insert.
type SaveLogRequest struct {
	DetectionType string  `query:"detection_type" json:"detection_type" form:"detection_type"`
	Confidence    float64 `query:"confidence" json:"confidence" form:"confidence"`
	CameraSource  string  `query:"camera_source" json:"camera_source" form:"camera_source"`
	Notes         string  `query:"notes" json:"notes" form:"notes"`
}

// ListLogs returns up to ?limit events, most recent first.
func (c *Controller) ListLogs(ctx echo.Context) error {
	limit := eventlog.DefaultListLimit
	if raw := ctx.QueryParam("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			return c.HandleError(ctx, err, "limit must be a positive integer", http.StatusBadRequest)
		}
		limit = v
	}

	events, err := c.events.List(ctx.Request().Context(), limit)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list detections", 0)
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"detections": events,
		"count":      len(events),
	})
}

// LogStats returns log statistics. The 24 hour window is computed per request.
func (c *Controller) LogStats(ctx echo.Context) error {
	stats, err := c.events.Stats(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err, "Failed to compute statistics", 0)
	}
	return ctx.JSON(http.StatusOK, stats)
}

// SaveLog inserts an event by hand. Parameters come from the query string
// or a JSON body.
func (c *Controller) SaveLog(ctx echo.Context) error {
	var req SaveLogRequest
	if err := bindParams(ctx, &req); err != nil {
		return c.HandleError(ctx, err, "Invalid request parameters", http.StatusBadRequest)
	}
	if req.CameraSource == "" {
		req.CameraSource = eventlog.SourceManual
	}

	id, err := c.events.Append(ctx.Request().Context(), eventlog.Event{
		DetectionType: req.DetectionType,
		Confidence:    req.Confidence,
		CameraSource:  req.CameraSource,
		Notes:         req.Notes,
	})
	if err != nil {
		return c.HandleError(ctx, err, "Failed to save detection", 0)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"success":      true,
		"detection_id": id,
		"message":      "Detection saved",
	})
}

// DeleteAllLogs truncates the log.
func (c *Controller) DeleteAllLogs(ctx echo.Context) error {
	deleted, err := c.events.DeleteAll(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err, "Failed to delete detections", 0)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"success": true,
		"deleted": deleted,
		"message": "All detections deleted from database",
	})
}
