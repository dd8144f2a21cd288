package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Machina123/FieldGameRestApi/internal/config"
	"github.com/Machina123/FieldGameRestApi/internal/es"
	"github.com/Machina123/FieldGameRestApi/internal/handlers"
	"github.com/Machina123/FieldGameRestApi/internal/logging"
	mwauth "github.com/Machina123/FieldGameRestApi/internal/middleware/auth"
	loggingmw "github.com/Machina123/FieldGameRestApi/internal/middleware/logging"
	"github.com/Machina123/FieldGameRestApi/internal/mykafka"
	"github.com/Machina123/FieldGameRestApi/internal/service/progress"
	"github.com/Machina123/FieldGameRestApi/internal/service/stats"
	"github.com/Machina123/FieldGameRestApi/internal/service/token"
	httpserver "github.com/Machina123/FieldGameRestApi/internal/transport/http"
)

func main() {
	db, err := config.InitDB(context.Background())
	if err != nil {
		log.Fatalf("database init error: %v", err)
	}

	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(configuration.LOG_LEVEL)

	jwtSecret := []byte(configuration.JWT_SECRET)
	refreshSecret := []byte(configuration.REFRESH_SECRET)

	prod := mykafka.NewProducer([]string{configuration.KAFKA_ADDRESS})

	esClient, err := es.NewClient(configuration)
	if err != nil {
		log.Fatal(err)
	}

	tokenSvc := &token.Service{DB: db, JWTSecret: jwtSecret, RefreshSecret: refreshSecret}
	tracker := &progress.Tracker{DB: db}
	aggregator := &stats.Aggregator{DB: db}

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())
	e.Use(loggingmw.RequestLogger(logger))

	deps := httpserver.Deps{
		DB:              db,
		AuthHandler:     &handlers.AuthHandler{Svc: tokenSvc, Producer: prod},
		GameHandler:     &handlers.GameHandler{DB: db, Producer: prod, ES: esClient, Index: "games"},
		ProgressHandler: &handlers.ProgressHandler{Tracker: tracker, Producer: prod},
		StatsHandler:    &handlers.StatsHandler{Aggregator: aggregator},
		SearchHandler:   &handlers.SearchHandler{ES: esClient, Index: "games"},
		Auth:            &mwauth.Middleware{Tokens: tokenSvc},
	}

	httpserver.Register(e, &deps)

	// Revoked refresh tokens whose own expiry has passed are dead weight.
	pruneCtx, pruneCancel := context.WithCancel(context.Background())
	defer pruneCancel()
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n, err := tokenSvc.PruneRevoked(pruneCtx); err != nil {
					logger.Error("revoked token prune failed", "error", err)
				} else if n > 0 {
					logger.Info("pruned revoked tokens", "count", n)
				}
			case <-pruneCtx.Done():
				return
			}
		}
	}()

	srv := &http.Server{
		Addr:         ":8080",
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit

	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	} else {
		log.Printf("db() error: %v", err)
	}

	if err := prod.Close(); err != nil {
		log.Printf("kafka close error: %v", err)
	}

	log.Println("shutdown complete")
}
