package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	mwauth "github.com/Machina123/FieldGameRestApi/internal/middleware/auth"
	"github.com/Machina123/FieldGameRestApi/internal/models"
	"github.com/Machina123/FieldGameRestApi/internal/mykafka"
	"github.com/Machina123/FieldGameRestApi/internal/service/progress"
	"github.com/Machina123/FieldGameRestApi/internal/service/stats"
	"github.com/Machina123/FieldGameRestApi/internal/service/token"
)

type testEnv struct {
	DB     *gorm.DB
	E      *echo.Echo
	Tokens *token.Service
	A      *AuthHandler
	G      *GameHandler
	P      *ProgressHandler
	S      *StatsHandler
	MW     *mwauth.Middleware
}

func InitTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&models.User{},
		&models.RevokedToken{},
		&models.Game{},
		&models.Riddle{},
		&models.ScoreboardEntry{},
	); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}

	return db
}

func newTestEnv(t *testing.T) *testEnv {
	db := InitTestDB(t)
	tokenSvc := &token.Service{
		DB:            db,
		JWTSecret:     []byte("test-access-secret"),
		RefreshSecret: []byte("test-refresh-secret"),
	}
	producer := &mykafka.Producer{}

	return &testEnv{
		DB:     db,
		E:      echo.New(),
		Tokens: tokenSvc,
		A:      &AuthHandler{Svc: tokenSvc, Producer: producer},
		G:      &GameHandler{DB: db, Producer: producer},
		P:      &ProgressHandler{Tracker: &progress.Tracker{DB: db}, Producer: producer},
		S:      &StatsHandler{Aggregator: &stats.Aggregator{DB: db}},
		MW:     &mwauth.Middleware{Tokens: tokenSvc},
	}
}

func (env *testEnv) doJSONRequest(method, path string, payload any) (*httptest.ResponseRecorder, *http.Request, echo.Context) {
	var body *bytes.Reader
	if payload != nil {
		bodyBytes, _ := json.Marshal(payload)
		body = bytes.NewReader(bodyBytes)
	} else {
		body = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := env.E.NewContext(req, rec)
	return rec, req, c
}

func (env *testEnv) register(t *testing.T, username, password string) {
	rec, _, c := env.doJSONRequest(http.MethodPost, "/register", map[string]string{
		"username": username,
		"password": password,
	})
	require.NoError(t, env.A.Register(c))
	require.Equal(t, http.StatusOK, rec.Code)
}

func (env *testEnv) login(t *testing.T, username, password string) (access, refresh string) {
	rec, _, c := env.doJSONRequest(http.MethodPost, "/login", map[string]string{
		"username": username,
		"password": password,
	})
	require.NoError(t, env.A.Login(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	access, _ = resp["access_token"].(string)
	refresh, _ = resp["refresh_token"].(string)
	require.NotEmpty(t, access)
	require.NotEmpty(t, refresh)
	return access, refresh
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t)

	payload := map[string]string{"username": "test_user", "password": "password"}
	rec, _, c := env.doJSONRequest(http.MethodPost, "/register", payload)
	require.NoError(t, env.A.Register(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "test_user", resp["username"])
	require.NotEmpty(t, resp["id"])

	_, _, cDup := env.doJSONRequest(http.MethodPost, "/register", payload)
	err := env.A.Register(cDup)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusConflict, he.Code)
}

func TestRegisterBlankFields(t *testing.T) {
	env := newTestEnv(t)

	_, _, c := env.doJSONRequest(http.MethodPost, "/register", map[string]string{"username": "test_user"})
	err := env.A.Register(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusBadRequest, he.Code)
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "test_user", "password")

	rec, _, c := env.doJSONRequest(http.MethodPost, "/login", map[string]string{
		"username": "test_user",
		"password": "password",
	})
	require.NoError(t, env.A.Login(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["access_token"])
	require.NotEmpty(t, resp["refresh_token"])
	require.Equal(t, false, resp["is_admin"])

	cookies := rec.Result().Cookies()
	names := map[string]bool{}
	for _, ck := range cookies {
		names[ck.Name] = true
	}
	require.True(t, names["accessToken"])
	require.True(t, names["refreshToken"])

	_, _, cBad := env.doJSONRequest(http.MethodPost, "/login", map[string]string{
		"username": "test_user",
		"password": "wrong",
	})
	err := env.A.Login(cBad)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusUnauthorized, he.Code)

	_, _, cNoUser := env.doJSONRequest(http.MethodPost, "/login", map[string]string{
		"username": "ghost",
		"password": "password",
	})
	errNoUser := env.A.Login(cNoUser)
	heNoUser, ok := errNoUser.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusUnauthorized, heNoUser.Code)
	require.Equal(t, he.Message, heNoUser.Message)
}

func TestRefreshEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "test_user", "password")
	_, refresh := env.login(t, "test_user", "password")

	req := httptest.NewRequest(http.MethodPost, "/refresh", nil)
	req.AddCookie(&http.Cookie{Name: "refreshToken", Value: refresh})
	rec := httptest.NewRecorder()
	c := env.E.NewContext(req, rec)

	require.NoError(t, env.A.Refresh(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["access_token"])

	ident, err := env.Tokens.Authorize(resp["access_token"])
	require.NoError(t, err)
	require.Equal(t, "test_user", ident.Username)

	reqMissing := httptest.NewRequest(http.MethodPost, "/refresh", nil)
	cMissing := env.E.NewContext(reqMissing, httptest.NewRecorder())
	errMissing := env.A.Refresh(cMissing)
	he, ok := errMissing.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusUnauthorized, he.Code)
}

func TestLogOut(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "test_user", "password")
	_, refresh := env.login(t, "test_user", "password")

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(&http.Cookie{Name: "refreshToken", Value: refresh})
	rec := httptest.NewRecorder()
	c := env.E.NewContext(req, rec)

	require.NoError(t, env.A.LogOut(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "refresh token has been revoked", resp["message"])

	// the revoked refresh token can no longer mint access tokens
	reqRefresh := httptest.NewRequest(http.MethodPost, "/refresh", nil)
	reqRefresh.AddCookie(&http.Cookie{Name: "refreshToken", Value: refresh})
	cRefresh := env.E.NewContext(reqRefresh, httptest.NewRecorder())
	err := env.A.Refresh(cRefresh)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusUnauthorized, he.Code)

	// and a second logout with the same token is rejected as well
	reqAgain := httptest.NewRequest(http.MethodPost, "/logout", nil)
	reqAgain.AddCookie(&http.Cookie{Name: "refreshToken", Value: refresh})
	cAgain := env.E.NewContext(reqAgain, httptest.NewRecorder())
	errAgain := env.A.LogOut(cAgain)
	heAgain, ok := errAgain.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusUnauthorized, heAgain.Code)
}
