package handlers

import (
	"net/http"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"

	"github.com/Machina123/FieldGameRestApi/internal/service/search"
	"github.com/Machina123/FieldGameRestApi/internal/util"
)

type SearchHandler struct {
	ES    *elasticsearch.Client
	Index string
}

func (h *SearchHandler) Search(c echo.Context) error {
	q := c.QueryParam("q")
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query error")
	}

	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	from, size := util.Calculate(page, size)

	total, games, err := search.Games(c.Request().Context(), h.ES, h.Index, q, from, size)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, echo.Map{"total": total, "games": games})
}
