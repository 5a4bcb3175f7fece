package v1

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/fallwatch/internal/datastore/repository"
)

// SettingValueRequest is the body of a single setting update. Numbers and
// booleans are accepted and stored in their text form.
type SettingValueRequest struct {
	Value any `json:"value"`
}

// settingText converts a decoded JSON value to its stored form.
func settingText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// GetSettings returns settings grouped by category.
func (c *Controller) GetSettings(ctx echo.Context) error {
	grouped, err := c.settings.ByCategory(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err, "Failed to load settings", 0)
	}
	return ctx.JSON(http.StatusOK, grouped)
}

// GetRawSettings returns the flat key to value map with secrets masked.
func (c *Controller) GetRawSettings(ctx echo.Context) error {
	all, err := c.settings.Public(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err, "Failed to load settings", 0)
	}
	return ctx.JSON(http.StatusOK, all)
}

// UpdateSettings applies a map of key to value. Unknown keys are skipped.
func (c *Controller) UpdateSettings(ctx echo.Context) error {
	raw := map[string]any{}
	if err := (&echo.DefaultBinder{}).BindBody(ctx, &raw); err != nil {
		return c.HandleError(ctx, err, "Body must be a JSON object", http.StatusBadRequest)
	}
	values := make(map[string]string, len(raw))
	for k, v := range raw {
		values[k] = settingText(v)
	}

	updated, err := c.settings.UpdateMany(ctx.Request().Context(), values)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to update settings", 0)
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"success": true,
		"updated": updated,
	})
}

// UpdateSetting sets one existing key.
func (c *Controller) UpdateSetting(ctx echo.Context) error {
	key := ctx.Param("key")
	var req SettingValueRequest
	if err := (&echo.DefaultBinder{}).BindBody(ctx, &req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}
	value := settingText(req.Value)

	ok, err := c.settings.Set(ctx.Request().Context(), key, value)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to update setting", 0)
	}
	if !ok {
		return c.HandleError(ctx, repository.ErrSettingNotFound,
			fmt.Sprintf("Setting '%s' not found", key), http.StatusNotFound)
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"success": true,
		"key":     key,
		"value":   value,
	})
}
