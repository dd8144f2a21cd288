package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	mwauth "github.com/Machina123/FieldGameRestApi/internal/middleware/auth"
	"github.com/Machina123/FieldGameRestApi/internal/mykafka"
	"github.com/Machina123/FieldGameRestApi/internal/service/progress"
)

type ProgressHandler struct {
	Tracker  *progress.Tracker
	Producer *mykafka.Producer
}

func (h *ProgressHandler) JoinGame(c echo.Context) error {
	ident := mwauth.Identity(c)
	if ident == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
	}

	gameID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	entry, err := h.Tracker.Join(c.Request().Context(), ident.UserID, gameID)
	if err != nil {
		if errors.Is(err, progress.ErrGameNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "game not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	publish(c, h.Producer, "game_events", fmt.Sprint(ident.UserID), map[string]interface{}{
		"type":   "game_joined",
		"UserID": ident.UserID,
		"gameID": gameID,
	})

	return c.JSON(http.StatusOK, entry)
}

func (h *ProgressHandler) Advance(c echo.Context) error {
	ident := mwauth.Identity(c)
	if ident == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
	}

	gameID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	entry, finishedNow, err := h.Tracker.Advance(c.Request().Context(), ident.UserID, gameID)
	if err != nil {
		switch {
		case errors.Is(err, progress.ErrNotJoined):
			return echo.NewHTTPError(http.StatusNotFound, "user has not joined this game")
		case errors.Is(err, progress.ErrGameNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "game not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	if finishedNow {
		publish(c, h.Producer, "game_events", fmt.Sprint(ident.UserID), map[string]interface{}{
			"type":   "game_finished",
			"UserID": ident.UserID,
			"gameID": gameID,
		})
	}

	return c.JSON(http.StatusOK, entry)
}

func (h *ProgressHandler) MyProgress(c echo.Context) error {
	ident := mwauth.Identity(c)
	if ident == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
	}

	entries, err := h.Tracker.ByUser(c.Request().Context(), ident.UserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, entries)
}

func (h *ProgressHandler) GameProgress(c echo.Context) error {
	ident := mwauth.Identity(c)
	if ident == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
	}

	gameID, err := pathID(c, "game_id")
	if err != nil {
		return err
	}

	entry, err := h.Tracker.ByUserAndGame(c.Request().Context(), ident.UserID, gameID)
	if err != nil {
		if errors.Is(err, progress.ErrNotJoined) {
			return echo.NewHTTPError(http.StatusNotFound, "user has not joined this game")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, entry)
}
