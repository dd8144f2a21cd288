package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Machina123/FieldGameRestApi/internal/service/stats"
)

type StatsHandler struct {
	Aggregator *stats.Aggregator
}

// Statistics returns live progress of every player in every game. No auth:
// the scoreboard is public.
func (h *StatsHandler) Statistics(c echo.Context) error {
	entries, err := h.Aggregator.AllEntries(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"entries": entries,
	})
}
