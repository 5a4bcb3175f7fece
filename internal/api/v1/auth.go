package v1

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/fallwatch/internal/auth"
	"github.com/tphakala/fallwatch/internal/datastore"
)

// CredentialsRequest carries login and registration parameters.
type CredentialsRequest struct {
	Username string `query:"username" json:"username" form:"username"`
	Password string `query:"password" json:"password" form:"password"`
	Role     string `query:"role" json:"role" form:"role"`
}

// ChangePasswordRequest carries a password change.
type ChangePasswordRequest struct {
	Username        string `query:"username" json:"username" form:"username"`
	CurrentPassword string `query:"current_password" json:"current_password" form:"current_password"`
	NewPassword     string `query:"new_password" json:"new_password" form:"new_password"`
}

// UserView is the public part of a user account.
type UserView struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Login verifies credentials.
func (c *Controller) Login(ctx echo.Context) error {
	var req CredentialsRequest
	if err := bindParams(ctx, &req); err != nil {
		return c.HandleError(ctx, err, "Invalid request parameters", http.StatusBadRequest)
	}

	user, err := c.auth.Login(ctx.Request().Context(), req.Username, req.Password)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid username or password", 0)
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"success": true,
		"user":    UserView{ID: user.ID, Username: user.Username, Role: user.Role},
		"message": "Login successful",
	})
}

// Register creates an account. Duplicate names return 409. When admin
// credentials are required, creating anything but a plain user account needs
// them as well.
func (c *Controller) Register(ctx echo.Context) error {
	var req CredentialsRequest
	if err := bindParams(ctx, &req); err != nil {
		return c.HandleError(ctx, err, "Invalid request parameters", http.StatusBadRequest)
	}

	if c.opts.RequireAuth && req.Role != "" && req.Role != datastore.RoleUser {
		if err := c.authorizeAdmin(ctx); err != nil {
			return c.HandleError(ctx, err, "Administrator credentials required for this role", 0)
		}
	}

	user, err := c.auth.Register(ctx.Request().Context(), req.Username, req.Password, req.Role)
	if err != nil {
		message := "Failed to create user"
		if StatusFor(err) == http.StatusConflict {
			message = "Username already exists"
		}
		return c.HandleError(ctx, err, message, 0)
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("User '%s' created successfully", user.Username),
		"user_id": user.ID,
	})
}

// ChangePassword replaces a password after verifying the current one.
func (c *Controller) ChangePassword(ctx echo.Context) error {
	var req ChangePasswordRequest
	if err := bindParams(ctx, &req); err != nil {
		return c.HandleError(ctx, err, "Invalid request parameters", http.StatusBadRequest)
	}

	if err := c.auth.ChangePassword(ctx.Request().Context(), req.Username, req.CurrentPassword, req.NewPassword); err != nil {
		return c.HandleError(ctx, err, "Failed to change password", 0)
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"success": true,
		"message": "Password changed",
	})
}

// ListUsers returns every account.
func (c *Controller) ListUsers(ctx echo.Context) error {
	users, err := c.auth.Users(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list users", 0)
	}
	views := make([]UserView, 0, len(users))
	for i := range users {
		views = append(views, UserView{ID: users[i].ID, Username: users[i].Username, Role: users[i].Role})
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"users": views,
		"count": len(views),
	})
}

// DeleteUser removes an account.
func (c *Controller) DeleteUser(ctx echo.Context) error {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid user id", http.StatusBadRequest)
	}
	if err := c.auth.DeleteUser(ctx.Request().Context(), uint(id)); err != nil {
		return c.HandleError(ctx, err, "Failed to delete user", 0)
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("User %d deleted", id),
	})
}

// authorizeAdmin checks the request's basic credentials for an admin account.
func (c *Controller) authorizeAdmin(ctx echo.Context) error {
	username, password, ok := ctx.Request().BasicAuth()
	if !ok {
		ctx.Response().Header().Set(echo.HeaderWWWAuthenticate, `basic realm="FallWatch"`)
		return auth.ErrInvalidCredentials
	}
	_, err := c.auth.Authorize(ctx.Request().Context(), username, password, datastore.RoleAdmin)
	return err
}
