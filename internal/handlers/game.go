package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/Machina123/FieldGameRestApi/internal/logging"
	"github.com/Machina123/FieldGameRestApi/internal/models"
	"github.com/Machina123/FieldGameRestApi/internal/mykafka"
	"github.com/Machina123/FieldGameRestApi/internal/service/search"
	"github.com/Machina123/FieldGameRestApi/internal/util"
)

type GameHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
	ES       *elasticsearch.Client
	Index    string
}

func (h *GameHandler) ListGames(c echo.Context) error {
	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	var total int64
	if err := h.DB.Model(&models.Game{}).Count(&total).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	var games []models.Game
	if err := h.DB.Order("id ASC").Offset(offset).Limit(limit).Find(&games).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, map[string]any{
		"data": games,
		"meta": map[string]any{
			"page":     page,
			"size":     limit,
			"total":    total,
			"has_prev": page > 1,
			"has_next": int64(offset+limit) < total,
		},
	})
}

func (h *GameHandler) GetGame(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var game models.Game
	if err := h.DB.First(&game, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "game not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, game)
}

func (h *GameHandler) ListRiddles(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var game models.Game
	if err := h.DB.First(&game, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "game not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	var riddles []models.Riddle
	if err := h.DB.Where("game_id = ?", id).Order("riddle_no ASC").Find(&riddles).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, riddles)
}

func (h *GameHandler) CreateGame(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "game_create")

	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Riddles     int    `json:"riddles"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Title == "" {
		return blankFieldError("title")
	}
	if req.Description == "" {
		return blankFieldError("description")
	}
	if req.Riddles <= 0 {
		return blankFieldError("riddles")
	}

	game := models.Game{
		Title:       req.Title,
		Description: req.Description,
		RiddleCount: req.Riddles,
	}
	if err := h.DB.Create(&game).Error; err != nil {
		l.Error("game_create_failed", "reason", "db_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	if h.ES != nil {
		if err := search.IndexGame(ctx, h.ES, h.Index, &game); err != nil {
			l.Error("game_index_failed", "gameID", game.ID, "error", err)
		}
	}

	publish(c, h.Producer, "game_events", fmt.Sprint(game.ID), map[string]interface{}{
		"type":   "game_created",
		"gameID": game.ID,
		"title":  game.Title,
	})

	l.Info("game_created", "gameID", game.ID)
	return c.JSON(http.StatusOK, game)
}

func (h *GameHandler) CreateRiddle(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "riddle_create")

	gameID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var game models.Game
	if err := h.DB.First(&game, gameID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "game not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	var req struct {
		RiddleNo       int     `json:"riddle_no"`
		Latitude       float64 `json:"latitude"`
		Longitude      float64 `json:"longitude"`
		Description    string  `json:"description"`
		Radius         int     `json:"radius"`
		DominantObject string  `json:"dominant_object"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Description == "" {
		return blankFieldError("description")
	}
	if req.DominantObject == "" {
		return blankFieldError("dominant_object")
	}
	if req.RiddleNo <= 0 {
		return blankFieldError("riddle_no")
	}
	if req.Radius <= 0 {
		return blankFieldError("radius")
	}

	riddle := models.Riddle{
		GameID:         gameID,
		RiddleNo:       req.RiddleNo,
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
		Description:    req.Description,
		Radius:         req.Radius,
		DominantObject: req.DominantObject,
	}
	if err := h.DB.Create(&riddle).Error; err != nil {
		l.Error("riddle_create_failed", "reason", "db_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	l.Info("riddle_created", "riddleID", riddle.ID, "gameID", gameID)
	return c.JSON(http.StatusOK, riddle)
}
