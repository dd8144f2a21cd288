package stats

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/Machina123/FieldGameRestApi/internal/models"
)

// Aggregator is a read-only projection over every scoreboard entry joined
// with user and game identity. Elapsed time is recomputed on every call,
// never stored.
type Aggregator struct {
	DB *gorm.DB

	// Now may be overridden in tests; defaults to time.Now.
	Now func() time.Time
}

type Entry struct {
	Username       string  `json:"username"`
	Game           string  `json:"game"`
	CurrentRiddle  int     `json:"current_riddle"`
	Finished       bool    `json:"finished"`
	TimeBegin      int64   `json:"time_begin"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

func (a *Aggregator) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *Aggregator) AllEntries(ctx context.Context) ([]Entry, error) {
	var rows []struct {
		Username      string
		Title         string
		CurrentRiddle int
		Finished      bool
		TimeBegin     time.Time
		TimeEnd       *time.Time
	}

	if err := a.DB.WithContext(ctx).Model(&models.ScoreboardEntry{}).
		Select("users.username, games.title, scoreboard_entries.current_riddle, scoreboard_entries.finished, scoreboard_entries.time_begin, scoreboard_entries.time_end").
		Joins("JOIN users ON users.id = scoreboard_entries.user_id").
		Joins("JOIN games ON games.id = scoreboard_entries.game_id").
		Order("scoreboard_entries.id ASC").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	entries := make([]Entry, len(rows))
	for i, row := range rows {
		end := a.now()
		if row.TimeEnd != nil {
			end = *row.TimeEnd
		}
		entries[i] = Entry{
			Username:       row.Username,
			Game:           row.Title,
			CurrentRiddle:  row.CurrentRiddle,
			Finished:       row.Finished,
			TimeBegin:      row.TimeBegin.UnixMilli(),
			ElapsedSeconds: end.Sub(row.TimeBegin).Seconds(),
		}
	}
	return entries, nil
}
