package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messenger-service/internal/mocks"
	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
)

func setupUserRouter(users *mocks.UserRepositoryMock) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewUserHandler(users)

	router := gin.New()
	router.Use(authAs(1))
	router.GET("/users", h.List)
	return router
}

func TestListUsers(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	users.On("List", mock.Anything, 1, 2).Return([]models.User{
		{ID: 2, Email: "bob@example.com", Name: "Bob", Role: "user", PasswordHash: "bcrypt-hash"},
		{ID: 1, Email: "alice@example.com", Name: "Alice", Role: "user", PasswordHash: "bcrypt-hash"},
	}, 5, nil).Once()

	router := setupUserRouter(users)
	req := httptest.NewRequest(http.MethodGet, "/users?page=1&limit=2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	list := body["users"].([]any)
	require.Len(t, list, 2)
	page := body["pagination"].(map[string]any)
	assert.Equal(t, float64(5), page["total"])
	assert.Equal(t, float64(3), page["totalPages"])
	assert.NotContains(t, rec.Body.String(), "bcrypt-hash")
	users.AssertExpectations(t)
}

func TestListUsersClampsLimit(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	users.On("List", mock.Anything, 1, repositories.MaxPageLimit).
		Return([]models.User{}, 0, nil).Once()

	router := setupUserRouter(users)
	req := httptest.NewRequest(http.MethodGet, "/users?limit=9999", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	users.AssertExpectations(t)
}

func TestListUsersBadPage(t *testing.T) {
	router := setupUserRouter(new(mocks.UserRepositoryMock))
	req := httptest.NewRequest(http.MethodGet, "/users?page=0", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
