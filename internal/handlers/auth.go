package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Machina123/FieldGameRestApi/internal/logging"
	"github.com/Machina123/FieldGameRestApi/internal/mykafka"
	"github.com/Machina123/FieldGameRestApi/internal/service/token"
)

type AuthHandler struct {
	Svc      *token.Service
	Producer *mykafka.Producer
}

func (h *AuthHandler) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_register")

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("register_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Username == "" {
		return blankFieldError("username")
	}
	if req.Password == "" {
		return blankFieldError("password")
	}

	user, err := h.Svc.Register(ctx, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, token.ErrUserExists) {
			return echo.NewHTTPError(http.StatusConflict, fmt.Sprintf("user %s already exists", req.Username))
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	publish(c, h.Producer, "user_events", fmt.Sprint(user.ID), map[string]interface{}{
		"type":     "user_registered",
		"UserID":   user.ID,
		"username": user.Username,
	})

	return c.JSON(http.StatusOK, echo.Map{
		"id":       user.ID,
		"username": user.Username,
	})
}

func (h *AuthHandler) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("login_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Username == "" {
		return blankFieldError("username")
	}
	if req.Password == "" {
		return blankFieldError("password")
	}

	pair, user, err := h.Svc.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, token.ErrInvalidCredentials) {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid username or password")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	c.SetCookie(CreateCookie("accessToken", pair.AccessToken, "/", pair.AccessExp))
	c.SetCookie(CreateCookie("refreshToken", pair.RefreshToken, "/", pair.RefreshExp))

	publish(c, h.Producer, "user_events", fmt.Sprint(user.ID), map[string]interface{}{
		"type":     "user_logged_in",
		"UserID":   user.ID,
		"username": user.Username,
	})

	return c.JSON(http.StatusOK, echo.Map{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"is_admin":      pair.IsAdmin,
	})
}

func (h *AuthHandler) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_refresh")

	refreshCookie, err := c.Cookie("refreshToken")
	if err != nil {
		l.Warn("refresh_failed", "status", 401, "reason", "missing_refresh_cookie")
		return echo.NewHTTPError(http.StatusUnauthorized, "refresh token missing")
	}

	accessToken, accessExp, err := h.Svc.Refresh(ctx, refreshCookie.Value)
	if err != nil {
		if errors.Is(err, token.ErrInvalidToken) || errors.Is(err, token.ErrTokenRevoked) {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid refresh token")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	c.SetCookie(CreateCookie("accessToken", accessToken, "/", accessExp))

	return c.JSON(http.StatusOK, echo.Map{
		"access_token": accessToken,
	})
}

func (h *AuthHandler) LogOut(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_logout")

	refreshCookie, err := c.Cookie("refreshToken")
	if err != nil {
		l.Warn("logout_failed", "status", 401, "reason", "missing_refresh_cookie")
		return echo.NewHTTPError(http.StatusUnauthorized, "refresh token missing")
	}

	if err := h.Svc.Revoke(ctx, refreshCookie.Value); err != nil {
		if errors.Is(err, token.ErrInvalidToken) || errors.Is(err, token.ErrTokenRevoked) {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid refresh token")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	c.SetCookie(DeleteCookie("accessToken", "/"))
	c.SetCookie(DeleteCookie("refreshToken", "/"))

	return c.JSON(http.StatusOK, echo.Map{
		"message": "refresh token has been revoked",
	})
}
