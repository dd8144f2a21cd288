package httpserver

import (
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/Machina123/FieldGameRestApi/internal/handlers"
	mwauth "github.com/Machina123/FieldGameRestApi/internal/middleware/auth"
)

type Deps struct {
	DB              *gorm.DB
	AuthHandler     *handlers.AuthHandler
	GameHandler     *handlers.GameHandler
	ProgressHandler *handlers.ProgressHandler
	StatsHandler    *handlers.StatsHandler
	SearchHandler   *handlers.SearchHandler
	Auth            *mwauth.Middleware
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	v1 := e.Group("/api/v1")

	v1.POST("/register", d.AuthHandler.Register)
	v1.POST("/login", d.AuthHandler.Login)
	v1.POST("/refresh", d.AuthHandler.Refresh)
	v1.POST("/logout", d.AuthHandler.LogOut)

	v1.GET("/statistics", d.StatsHandler.Statistics)

	games := v1.Group("/games")
	games.GET("", d.GameHandler.ListGames)
	games.GET("/search", d.SearchHandler.Search)
	games.GET("/:id", d.GameHandler.GetGame, d.Auth.RequireLogin)
	games.GET("/:id/riddles", d.GameHandler.ListRiddles, d.Auth.RequireLogin)
	games.POST("/:id/join", d.ProgressHandler.JoinGame, d.Auth.RequireLogin)
	games.POST("/:id/advance", d.ProgressHandler.Advance, d.Auth.RequireLogin)

	prog := v1.Group("/progress", d.Auth.RequireLogin)
	prog.GET("", d.ProgressHandler.MyProgress)
	prog.GET("/:game_id", d.ProgressHandler.GameProgress)

	admin := v1.Group("/admin", d.Auth.AdminOnly)
	admin.PUT("/games", d.GameHandler.CreateGame)
	admin.PUT("/games/:id/riddles", d.GameHandler.CreateRiddle)
}
