package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Machina123/FieldGameRestApi/internal/service/token"
)

type Middleware struct {
	Tokens *token.Service
}

// extractToken prefers the access cookie and falls back to a bearer header,
// so both browser and API clients work.
func extractToken(c echo.Context) string {
	if cookie, err := c.Cookie("accessToken"); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

func (m *Middleware) RequireLogin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw := extractToken(c)
		if raw == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
		}

		ident, err := m.Tokens.Authorize(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
		}

		setUserContext(c, ident)
		return next(c)
	}
}
