package progress

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/Machina123/FieldGameRestApi/internal/logging"
	"github.com/Machina123/FieldGameRestApi/internal/models"
)

var (
	ErrGameNotFound = errors.New("game not found")
	ErrNotJoined    = errors.New("user has not joined this game")
)

// Tracker owns the scoreboard state machine: not_started -> in_progress ->
// finished, with finished absorbing.
type Tracker struct {
	DB *gorm.DB

	// Now may be overridden in tests; defaults to time.Now.
	Now func() time.Time
}

func (t *Tracker) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

// Join creates the scoreboard entry for (userID, gameID) if the user has not
// joined yet, otherwise returns the existing entry untouched. The composite
// unique index on (user_id, game_id) guarantees a single entry even when two
// first-join requests race: the losing insert fails and we refetch.
func (t *Tracker) Join(ctx context.Context, userID, gameID uint) (*models.ScoreboardEntry, error) {
	l := logging.FromContext(ctx).With("svc", "progress.join", "userID", userID, "gameID", gameID)

	var game models.Game
	if err := t.DB.WithContext(ctx).First(&game, gameID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.Warn("join_failed", "reason", "game not found")
			return nil, ErrGameNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	entry := models.ScoreboardEntry{
		UserID:    userID,
		GameID:    gameID,
		TimeBegin: t.now(),
	}
	tx := t.DB.WithContext(ctx).
		Where("user_id = ? AND game_id = ?", userID, gameID).
		FirstOrCreate(&entry)
	if tx.Error != nil {
		// A concurrent join may have inserted between our check and create;
		// the unique index rejected ours, so the row exists now.
		var existing models.ScoreboardEntry
		if refetchErr := t.DB.WithContext(ctx).
			Where("user_id = ? AND game_id = ?", userID, gameID).
			First(&existing).Error; refetchErr == nil {
			return &existing, nil
		}
		l.Error("join_failed", "reason", "db_error", "error", tx.Error)
		return nil, fmt.Errorf("db error: %w", tx.Error)
	}

	if tx.RowsAffected > 0 {
		l.Info("join_success", "entryID", entry.ID)
	}
	return &entry, nil
}

// Advance moves the caller one riddle forward, or finishes the game when the
// last riddle has already been reached. A finished entry is never touched
// again. The writes are guarded compare-and-updates, so two concurrent calls
// cannot double-increment or set time_end twice; the loser simply observes
// the winner's result. The returned bool is true only when this call is the
// one that performed the finish transition.
func (t *Tracker) Advance(ctx context.Context, userID, gameID uint) (*models.ScoreboardEntry, bool, error) {
	l := logging.FromContext(ctx).With("svc", "progress.advance", "userID", userID, "gameID", gameID)

	entry, err := t.ByUserAndGame(ctx, userID, gameID)
	if err != nil {
		return nil, false, err
	}
	if entry.Finished {
		return entry, false, nil
	}

	var game models.Game
	if err := t.DB.WithContext(ctx).First(&game, gameID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, ErrGameNotFound
		}
		return nil, false, fmt.Errorf("db error: %w", err)
	}

	if entry.CurrentRiddle+1 > game.RiddleCount {
		end := t.now()
		tx := t.DB.WithContext(ctx).Model(&models.ScoreboardEntry{}).
			Where("id = ? AND finished = ?", entry.ID, false).
			Updates(map[string]interface{}{"finished": true, "time_end": end})
		if tx.Error != nil {
			l.Error("advance_failed", "reason", "db_error", "error", tx.Error)
			return nil, false, fmt.Errorf("db error: %w", tx.Error)
		}
		finishedNow := tx.RowsAffected > 0
		if finishedNow {
			l.Info("game_finished", "entryID", entry.ID)
		}
		updated, err := t.ByUserAndGame(ctx, userID, gameID)
		return updated, finishedNow, err
	}

	tx := t.DB.WithContext(ctx).Model(&models.ScoreboardEntry{}).
		Where("id = ? AND current_riddle = ? AND finished = ?", entry.ID, entry.CurrentRiddle, false).
		Update("current_riddle", entry.CurrentRiddle+1)
	if tx.Error != nil {
		l.Error("advance_failed", "reason", "db_error", "error", tx.Error)
		return nil, false, fmt.Errorf("db error: %w", tx.Error)
	}
	updated, err := t.ByUserAndGame(ctx, userID, gameID)
	return updated, false, err
}

func (t *Tracker) ByUser(ctx context.Context, userID uint) ([]models.ScoreboardEntry, error) {
	var entries []models.ScoreboardEntry
	if err := t.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("game_id ASC").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return entries, nil
}

func (t *Tracker) ByUserAndGame(ctx context.Context, userID, gameID uint) (*models.ScoreboardEntry, error) {
	var entry models.ScoreboardEntry
	if err := t.DB.WithContext(ctx).
		Where("user_id = ? AND game_id = ?", userID, gameID).
		First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotJoined
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &entry, nil
}
