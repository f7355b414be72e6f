package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messenger-service/internal/auth"
	"messenger-service/internal/mocks"
	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
)

func setupAuthRouter(users *mocks.UserRepositoryMock, tokens *mocks.TokenRepositoryMock) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := auth.NewTokenService("access-secret", "refresh-secret", 15*time.Minute, 7*24*time.Hour, tokens, users)
	h := NewAuthHandler(users, svc, nil)

	router := gin.New()
	router.POST("/auth/register", h.Register)
	router.POST("/auth/login", h.Login)
	router.POST("/auth/refresh", h.Refresh)
	router.POST("/auth/logout", h.Logout)
	return router
}

func postJSON(router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRegisterSuccess(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	tokens := new(mocks.TokenRepositoryMock)

	users.On("Create", mock.Anything, "alice@example.com", mock.Anything, "Alice", "user").
		Return(models.User{ID: 1, Email: "alice@example.com", Name: "Alice", Role: "user"}, nil).Once()
	tokens.On("Store", mock.Anything, 1, mock.Anything, mock.Anything).Return(nil).Once()

	router := setupAuthRouter(users, tokens)
	rec := postJSON(router, "/auth/register", gin.H{
		"email":    "alice@example.com",
		"password": "verysecret",
		"name":     "Alice",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.NotEmpty(t, body["accessToken"])
	assert.NotEmpty(t, body["refreshToken"])
	user := body["user"].(map[string]any)
	assert.Equal(t, float64(1), user["id"])
	assert.Equal(t, "alice@example.com", user["email"])
	assert.NotContains(t, rec.Body.String(), "password")

	users.AssertExpectations(t)
	tokens.AssertExpectations(t)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	users.On("Create", mock.Anything, "alice@example.com", mock.Anything, "Alice", "user").
		Return(models.User{}, repositories.ErrEmailTaken).Once()

	router := setupAuthRouter(users, new(mocks.TokenRepositoryMock))
	rec := postJSON(router, "/auth/register", gin.H{
		"email":    "alice@example.com",
		"password": "verysecret",
		"name":     "Alice",
	})

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRegisterValidation(t *testing.T) {
	router := setupAuthRouter(new(mocks.UserRepositoryMock), new(mocks.TokenRepositoryMock))

	// Short password.
	rec := postJSON(router, "/auth/register", gin.H{
		"email":    "alice@example.com",
		"password": "short",
		"name":     "Alice",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Invalid email.
	rec = postJSON(router, "/auth/register", gin.H{
		"email":    "not-an-email",
		"password": "verysecret",
		"name":     "Alice",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginSuccess(t *testing.T) {
	hash, err := auth.HashPassword("verysecret")
	require.NoError(t, err)

	users := new(mocks.UserRepositoryMock)
	tokens := new(mocks.TokenRepositoryMock)
	users.On("GetByEmail", mock.Anything, "alice@example.com").
		Return(models.User{ID: 1, Email: "alice@example.com", PasswordHash: hash, Name: "Alice", Role: "user"}, nil).Once()
	tokens.On("DeleteExpiredForUser", mock.Anything, 1).Return(nil).Once()
	tokens.On("Store", mock.Anything, 1, mock.Anything, mock.Anything).Return(nil).Once()

	router := setupAuthRouter(users, tokens)
	rec := postJSON(router, "/auth/login", gin.H{
		"email":    "alice@example.com",
		"password": "verysecret",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.NotEmpty(t, body["accessToken"])
	assert.NotEmpty(t, body["refreshToken"])
	tokens.AssertExpectations(t)
}

func TestLoginWrongPassword(t *testing.T) {
	hash, err := auth.HashPassword("verysecret")
	require.NoError(t, err)

	users := new(mocks.UserRepositoryMock)
	users.On("GetByEmail", mock.Anything, "alice@example.com").
		Return(models.User{ID: 1, Email: "alice@example.com", PasswordHash: hash}, nil).Once()

	router := setupAuthRouter(users, new(mocks.TokenRepositoryMock))
	rec := postJSON(router, "/auth/login", gin.H{
		"email":    "alice@example.com",
		"password": "wrongwrong",
	})

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid credentials", decodeBody(t, rec)["error"])
}

func TestLoginUnknownEmail(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	users.On("GetByEmail", mock.Anything, "ghost@example.com").
		Return(models.User{}, repositories.ErrUserNotFound).Once()

	router := setupAuthRouter(users, new(mocks.TokenRepositoryMock))
	rec := postJSON(router, "/auth/login", gin.H{
		"email":    "ghost@example.com",
		"password": "whatever12",
	})

	// Same body as a wrong password so the two are indistinguishable.
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid credentials", decodeBody(t, rec)["error"])
}

func TestRefreshRotatesPair(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	tokens := new(mocks.TokenRepositoryMock)
	svc := auth.NewTokenService("access-secret", "refresh-secret", 15*time.Minute, 7*24*time.Hour, tokens, users)

	tokens.On("Store", mock.Anything, 1, mock.Anything, mock.Anything).Return(nil).Twice()
	pair, err := svc.IssuePair(testContext(), models.User{ID: 1, Email: "alice@example.com", Role: "user"})
	require.NoError(t, err)

	tokens.On("Redeem", mock.Anything, mock.Anything, 1).
		Return(models.RefreshToken{ID: 9, UserID: 1}, nil).Once()
	users.On("GetByID", mock.Anything, 1).
		Return(models.User{ID: 1, Email: "alice@example.com", Role: "user"}, nil).Once()

	router := setupAuthRouterWith(users, svc)
	rec := postJSON(router, "/auth/refresh", gin.H{"refreshToken": pair.RefreshToken})

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.NotEmpty(t, body["accessToken"])
	assert.NotEqual(t, pair.RefreshToken, body["refreshToken"])
	tokens.AssertExpectations(t)
}

func TestRefreshRejectsReplayedToken(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	tokens := new(mocks.TokenRepositoryMock)
	svc := auth.NewTokenService("access-secret", "refresh-secret", 15*time.Minute, 7*24*time.Hour, tokens, users)

	tokens.On("Store", mock.Anything, 1, mock.Anything, mock.Anything).Return(nil).Once()
	pair, err := svc.IssuePair(testContext(), models.User{ID: 1, Email: "alice@example.com", Role: "user"})
	require.NoError(t, err)

	// The single-use record is already gone.
	tokens.On("Redeem", mock.Anything, mock.Anything, 1).
		Return(models.RefreshToken{}, repositories.ErrTokenNotFound).Once()

	router := setupAuthRouterWith(users, svc)
	rec := postJSON(router, "/auth/refresh", gin.H{"refreshToken": pair.RefreshToken})

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid or expired refresh token", decodeBody(t, rec)["error"])
}

func TestRefreshRejectsGarbage(t *testing.T) {
	router := setupAuthRouter(new(mocks.UserRepositoryMock), new(mocks.TokenRepositoryMock))
	rec := postJSON(router, "/auth/refresh", gin.H{"refreshToken": "garbage"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutIsIdempotent(t *testing.T) {
	tokens := new(mocks.TokenRepositoryMock)
	tokens.On("DeleteByHash", mock.Anything, mock.Anything).Return(nil).Twice()

	router := setupAuthRouter(new(mocks.UserRepositoryMock), tokens)

	for i := 0; i < 2; i++ {
		rec := postJSON(router, "/auth/logout", gin.H{"refreshToken": "whatever"})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Logout successful", decodeBody(t, rec)["message"])
	}
	tokens.AssertExpectations(t)
}

func setupAuthRouterWith(users *mocks.UserRepositoryMock, svc *auth.TokenService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewAuthHandler(users, svc, nil)
	router := gin.New()
	router.POST("/auth/refresh", h.Refresh)
	return router
}
