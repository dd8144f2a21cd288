package auth

import (
	"github.com/labstack/echo/v4"

	"github.com/Machina123/FieldGameRestApi/internal/service/token"
)

const identityKey = "identity"

func setUserContext(c echo.Context, ident *token.Identity) {
	c.Set(identityKey, ident)
	c.Set("userID", ident.UserID)
	c.Set("isAdmin", ident.IsAdmin)
}

// Identity returns the verified caller identity set by RequireLogin, or nil
// when the request did not pass through it.
func Identity(c echo.Context) *token.Identity {
	if v, ok := c.Get(identityKey).(*token.Identity); ok {
		return v
	}
	return nil
}
