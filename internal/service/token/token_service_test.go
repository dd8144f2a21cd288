package token

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Machina123/FieldGameRestApi/internal/models"
	"github.com/Machina123/FieldGameRestApi/internal/tokens"
)

func InitTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&models.User{}, &models.RevokedToken{}); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}

	return db
}

func newService(t *testing.T) *Service {
	return &Service{
		DB:            InitTestDB(t),
		JWTSecret:     []byte("test-access-secret"),
		RefreshSecret: []byte("test-refresh-secret"),
	}
}

func TestRegisterConflict(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	first, err := svc.Register(ctx, "test_user", "password")
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)
	require.NotEqual(t, "password", first.PasswordHash)

	_, err = svc.Register(ctx, "test_user", "other_password")
	require.ErrorIs(t, err, ErrUserExists)

	var stored models.User
	require.NoError(t, svc.DB.First(&stored, first.ID).Error)
	require.Equal(t, first.PasswordHash, stored.PasswordHash)

	var count int64
	require.NoError(t, svc.DB.Model(&models.User{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestAuthenticate(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "test_user", "password")
	require.NoError(t, err)

	pair, user, err := svc.Authenticate(ctx, "test_user", "password")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.Equal(t, "test_user", user.Username)

	_, _, errWrongPass := svc.Authenticate(ctx, "test_user", "wrong")
	require.ErrorIs(t, errWrongPass, ErrInvalidCredentials)

	_, _, errNoUser := svc.Authenticate(ctx, "no_such_user", "password")
	require.ErrorIs(t, errNoUser, ErrInvalidCredentials)

	// the failure must not reveal whether the username existed
	require.Equal(t, errWrongPass.Error(), errNoUser.Error())
}

func TestRefresh(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "test_user", "password")
	require.NoError(t, err)

	pair, _, err := svc.Authenticate(ctx, "test_user", "password")
	require.NoError(t, err)

	access, exp, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.NotEmpty(t, access)
	require.True(t, exp.After(time.Now()))

	ident, err := svc.Authorize(access)
	require.NoError(t, err)
	require.Equal(t, "test_user", ident.Username)

	_, _, err = svc.Refresh(ctx, "garbage")
	require.ErrorIs(t, err, ErrInvalidToken)

	_, _, err = svc.Refresh(ctx, pair.AccessToken)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestRevokeBlocksRefresh(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "test_user", "password")
	require.NoError(t, err)

	pair, _, err := svc.Authenticate(ctx, "test_user", "password")
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, pair.RefreshToken))

	_, _, err = svc.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrTokenRevoked)

	// a second revocation presents an already-revoked token
	require.ErrorIs(t, svc.Revoke(ctx, pair.RefreshToken), ErrTokenRevoked)
}

func TestRevokeRequiresValidToken(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	require.ErrorIs(t, svc.Revoke(ctx, "garbage"), ErrInvalidToken)

	expired, _, err := tokens.SignRefreshToken(1, svc.RefreshSecret, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.ErrorIs(t, svc.Revoke(ctx, expired), ErrInvalidToken)
}

func TestAuthorize(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "admin_user", "password")
	require.NoError(t, err)
	require.NoError(t, svc.DB.Model(user).Update("is_admin", true).Error)

	pair, _, err := svc.Authenticate(ctx, "admin_user", "password")
	require.NoError(t, err)

	ident, err := svc.Authorize(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, user.ID, ident.UserID)
	require.Equal(t, "admin_user", ident.Username)
	require.True(t, ident.IsAdmin)

	_, err = svc.Authorize("garbage")
	require.ErrorIs(t, err, ErrInvalidToken)

	// a refresh token is not an access token
	_, err = svc.Authorize(pair.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestPruneRevoked(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.DB.Create(&models.RevokedToken{
		JTI:       "expired-jti",
		ExpiresAt: time.Now().Add(-time.Hour).Unix(),
	}).Error)
	require.NoError(t, svc.DB.Create(&models.RevokedToken{
		JTI:       "live-jti",
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	}).Error)

	n, err := svc.PruneRevoked(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	var remaining []models.RevokedToken
	require.NoError(t, svc.DB.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	require.Equal(t, "live-jti", remaining[0].JTI)
}
