package models

import (
	"time"
)

type User struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string `gorm:"unique;not null"          json:"username"`
	PasswordHash string `gorm:"not null"                 json:"-"`
	IsAdmin      bool   `gorm:"not null;default:false"   json:"is_admin"`
}

// RevokedToken stores the jti of an invalidated refresh token together with
// the token's own expiry, so entries whose token could not be used anyway can
// be pruned instead of accumulating forever.
type RevokedToken struct {
	ID        uint   `gorm:"primaryKey"           json:"id"`
	JTI       string `gorm:"uniqueIndex;not null" json:"jti"`
	ExpiresAt int64  `gorm:"not null"             json:"expires_at"`
}

type Game struct {
	ID          uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Title       string `gorm:"not null"                 json:"title"`
	Description string `gorm:"not null"                 json:"description"`
	RiddleCount int    `gorm:"not null"                 json:"riddles"`
}

type Riddle struct {
	ID             uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	GameID         uint    `gorm:"index;not null"           json:"game_id"`
	RiddleNo       int     `gorm:"not null"                 json:"riddle_no"`
	Latitude       float64 `gorm:"not null"                 json:"latitude"`
	Longitude      float64 `gorm:"not null"                 json:"longitude"`
	Description    string  `gorm:"not null"                 json:"description"`
	Radius         int     `gorm:"not null"                 json:"radius"`
	DominantObject string  `gorm:"not null"                 json:"dominant_object"`
}

// ScoreboardEntry is the per-player-per-game progress record. The composite
// unique index closes the check-then-insert race on concurrent first joins.
type ScoreboardEntry struct {
	ID            uint       `gorm:"primaryKey;autoIncrement"           json:"id"`
	UserID        uint       `gorm:"uniqueIndex:idx_user_game;not null" json:"user_id"`
	GameID        uint       `gorm:"uniqueIndex:idx_user_game;not null" json:"game_id"`
	CurrentRiddle int        `gorm:"not null;default:0"                 json:"current_riddle"`
	Finished      bool       `gorm:"not null;default:false"             json:"finished"`
	TimeBegin     time.Time  `gorm:"not null"                           json:"time_begin"`
	TimeEnd       *time.Time `json:"time_end,omitempty"`
}
