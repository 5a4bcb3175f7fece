package middleware

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/tphakala/fallwatch/internal/datastore"
)

// Authorizer verifies credentials and a required role.
type Authorizer interface {
	Authorize(ctx context.Context, username, password, role string) (*datastore.User, error)
}

// NewAdminBasicAuth requires HTTP basic credentials of an admin account.
// When enabled is false every request passes through.
func NewAdminBasicAuth(auth Authorizer, enabled bool) echo.MiddlewareFunc {
	return middleware.BasicAuthWithConfig(middleware.BasicAuthConfig{
		Skipper: func(echo.Context) bool { return !enabled },
		Realm:   "FallWatch",
		Validator: func(username, password string, c echo.Context) (bool, error) {
			user, err := auth.Authorize(c.Request().Context(), username, password, datastore.RoleAdmin)
			if err != nil || user == nil {
				return false, nil
			}
			c.Set("user", user.Username)
			return true, nil
		},
	})
}
