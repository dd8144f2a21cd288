package config

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/Machina123/FieldGameRestApi/internal/models"
	"github.com/Machina123/FieldGameRestApi/pkg/db"
)

type Config struct {
	DB_HOST        string
	DB_PORT        string
	DB_USER        string
	DB_PASSWORD    string
	DB_NAME        string
	ES_URL         string
	ES_USER        string
	ES_PASSWORD    string
	JWT_SECRET     string
	REFRESH_SECRET string
	KAFKA_ADDRESS  string
	LOG_LEVEL      string
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	config := &Config{
		DB_HOST:        os.Getenv("DB_HOST"),
		DB_PORT:        os.Getenv("DB_PORT"),
		DB_USER:        os.Getenv("DB_USER"),
		DB_PASSWORD:    os.Getenv("DB_PASSWORD"),
		DB_NAME:        os.Getenv("DB_NAME"),
		ES_URL:         os.Getenv("ES_URL"),
		ES_USER:        os.Getenv("ES_USER"),
		ES_PASSWORD:    os.Getenv("ES_PASSWORD"),
		JWT_SECRET:     os.Getenv("JWT_SECRET"),
		REFRESH_SECRET: os.Getenv("REFRESH_SECRET"),
		KAFKA_ADDRESS:  os.Getenv("KAFKA_ADDRESS"),
		LOG_LEVEL:      os.Getenv("LOG_LEVEL"),
	}

	return config, nil
}

func InitDB(ctx context.Context) (*gorm.DB, error) {
	configuration, _ := LoadConfig()

	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		configuration.DB_USER, configuration.DB_PASSWORD,
		configuration.DB_HOST, configuration.DB_PORT, configuration.DB_NAME,
	)
	conn, err := db.Open(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to database: %w", err)
	}
	if err := conn.AutoMigrate(
		&models.User{},
		&models.RevokedToken{},
		&models.Game{},
		&models.Riddle{},
		&models.ScoreboardEntry{},
	); err != nil {
		return nil, fmt.Errorf("cannot run migrations: %w", err)
	}
	return conn, nil
}
