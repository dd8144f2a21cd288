package token

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/Machina123/FieldGameRestApi/internal/hash"
	"github.com/Machina123/FieldGameRestApi/internal/logging"
	"github.com/Machina123/FieldGameRestApi/internal/models"
	"github.com/Machina123/FieldGameRestApi/internal/tokens"
)

var (
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrTokenRevoked       = errors.New("refresh token revoked")
)

// Identity is what a verified access token proves about the caller. It is
// extracted from the token alone, never from request input.
type Identity struct {
	UserID   uint
	Username string
	IsAdmin  bool
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
	AccessExp    time.Time
	RefreshExp   time.Time
	IsAdmin      bool
}

type Service struct {
	DB            *gorm.DB
	JWTSecret     []byte
	RefreshSecret []byte
}

func (s *Service) Register(ctx context.Context, username, password string) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "token.register")

	pwHash, err := hash.HashPassword(password)
	if err != nil {
		l.Error("register_failed", "reason", "cannot hash the password", "error", err)
		return nil, err
	}

	user := models.User{
		Username:     username,
		PasswordHash: pwHash,
	}
	tx := s.DB.WithContext(ctx).Where("username = ?", username).FirstOrCreate(&user)
	if tx.Error != nil {
		// a concurrent registration may have won the unique index; if the
		// username exists now, this is a plain conflict
		var count int64
		if s.DB.WithContext(ctx).Model(&models.User{}).
			Where("username = ?", username).
			Count(&count).Error == nil && count > 0 {
			l.Warn("register_failed", "reason", "user_exists", "username", username)
			return nil, ErrUserExists
		}
		l.Error("register_failed", "reason", "db_error", "error", tx.Error)
		return nil, fmt.Errorf("db error: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		l.Warn("register_failed", "reason", "user_exists", "username", username)
		return nil, ErrUserExists
	}

	l.Info("register_success", "userID", user.ID, "username", user.Username)
	return &user, nil
}

func (s *Service) Authenticate(ctx context.Context, username, password string) (*TokenPair, *models.User, error) {
	l := logging.FromContext(ctx).With("svc", "token.authenticate")

	var user models.User
	if err := s.DB.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.Warn("login_failed", "reason", "invalid credentials")
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("db error: %w", err)
	}

	if !hash.CheckPassword(user.PasswordHash, password) {
		l.Warn("login_failed", "reason", "invalid credentials")
		return nil, nil, ErrInvalidCredentials
	}

	pair, err := s.issuePair(&user)
	if err != nil {
		l.Error("login_failed", "reason", "cannot create token", "error", err)
		return nil, nil, err
	}

	l.Info("login_success", "userID", user.ID)
	return pair, &user, nil
}

// issuePair mints an access/refresh pair for the user. Issuance writes
// nothing; only revocation touches the store.
func (s *Service) issuePair(user *models.User) (*TokenPair, error) {
	accessExp := time.Now().Add(tokens.AccessTokenTTL)
	accessToken, err := tokens.SignAccessToken(user.ID, user.Username, user.IsAdmin, s.JWTSecret, accessExp)
	if err != nil {
		return nil, err
	}

	refreshExp := time.Now().Add(tokens.RefreshTokenTTL)
	refreshToken, _, err := tokens.SignRefreshToken(user.ID, s.RefreshSecret, refreshExp)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
		IsAdmin:      user.IsAdmin,
	}, nil
}

// Refresh exchanges a still-valid refresh token for a new access token. The
// refresh token itself is not rotated.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, time.Time, error) {
	l := logging.FromContext(ctx).With("svc", "token.refresh")

	claims, err := tokens.RefreshClaimsFromToken(refreshToken, s.RefreshSecret)
	if err != nil {
		l.Warn("refresh_failed", "reason", "invalid token", "error", err)
		return "", time.Time{}, ErrInvalidToken
	}

	revoked, err := s.isRevoked(ctx, claims.ID)
	if err != nil {
		return "", time.Time{}, err
	}
	if revoked {
		l.Warn("refresh_failed", "reason", "token revoked")
		return "", time.Time{}, ErrTokenRevoked
	}

	userID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		return "", time.Time{}, ErrInvalidToken
	}

	var user models.User
	if err := s.DB.WithContext(ctx).Where("id = ?", uint(userID)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", time.Time{}, ErrInvalidToken
		}
		return "", time.Time{}, fmt.Errorf("db error: %w", err)
	}

	accessExp := time.Now().Add(tokens.AccessTokenTTL)
	accessToken, err := tokens.SignAccessToken(user.ID, user.Username, user.IsAdmin, s.JWTSecret, accessExp)
	if err != nil {
		l.Error("refresh_failed", "reason", "cannot create token", "error", err)
		return "", time.Time{}, err
	}

	l.Info("refresh_success", "userID", user.ID)
	return accessToken, accessExp, nil
}

// Revoke invalidates the refresh token by adding its jti to the revoked set.
// A token that is already expired or already revoked cannot be revoked again.
func (s *Service) Revoke(ctx context.Context, refreshToken string) error {
	l := logging.FromContext(ctx).With("svc", "token.revoke")

	claims, err := tokens.RefreshClaimsFromToken(refreshToken, s.RefreshSecret)
	if err != nil {
		l.Warn("revoke_failed", "reason", "invalid token", "error", err)
		return ErrInvalidToken
	}

	revoked := models.RevokedToken{
		JTI:       claims.ID,
		ExpiresAt: claims.ExpiresAt.Unix(),
	}
	tx := s.DB.WithContext(ctx).Where("jti = ?", claims.ID).FirstOrCreate(&revoked)
	if tx.Error != nil {
		l.Error("revoke_failed", "reason", "db_error", "error", tx.Error)
		return fmt.Errorf("db error: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		l.Warn("revoke_failed", "reason", "already revoked")
		return ErrTokenRevoked
	}

	l.Info("revoke_success", "jti", claims.ID)
	return nil
}

// Authorize verifies an access token and extracts the caller identity.
// Verification is stateless: no store lookup, and the revocation set is not
// consulted, so an access token stays usable until it expires.
func (s *Service) Authorize(accessToken string) (*Identity, error) {
	claims, err := tokens.AccessClaimsFromToken(accessToken, s.JWTSecret)
	if err != nil {
		return nil, ErrInvalidToken
	}

	userID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		return nil, ErrInvalidToken
	}

	return &Identity{
		UserID:   uint(userID),
		Username: claims.Username,
		IsAdmin:  claims.Admin,
	}, nil
}

func (s *Service) isRevoked(ctx context.Context, jti string) (bool, error) {
	var count int64
	if err := s.DB.WithContext(ctx).Model(&models.RevokedToken{}).
		Where("jti = ?", jti).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return count > 0, nil
}

// PruneRevoked drops revoked-set entries whose underlying token has expired
// on its own, keeping the set bounded.
func (s *Service) PruneRevoked(ctx context.Context) (int64, error) {
	tx := s.DB.WithContext(ctx).
		Where("expires_at < ?", time.Now().Unix()).
		Delete(&models.RevokedToken{})
	if tx.Error != nil {
		return 0, fmt.Errorf("db error: %w", tx.Error)
	}
	return tx.RowsAffected, nil
}
