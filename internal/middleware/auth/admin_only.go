package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

const adminRequiredMessage = "admin privileges are required to perform this action"

// AdminOnly admits only callers whose verified access token carries the admin
// claim. The claim comes from the token alone, never from request input.
func (m *Middleware) AdminOnly(next echo.HandlerFunc) echo.HandlerFunc {
	return m.RequireLogin(func(c echo.Context) error {
		ident := Identity(c)
		if ident == nil || !ident.IsAdmin {
			return echo.NewHTTPError(http.StatusUnauthorized, adminRequiredMessage)
		}
		return next(c)
	})
}
