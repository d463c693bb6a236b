package services

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogetcash/backend/internal/store"
)

func setupAuthViper() {
	viper.Set("argon2.salt_length", 16)
	viper.Set("argon2.time", 1)
	viper.Set("argon2.memory", 64*1024)
	viper.Set("argon2.threads", 4)
	viper.Set("argon2.key_length", 32)
	viper.Set("jwt.secret_key", "test-secret")
	viper.Set("jwt.expiry_hours", 24)
}

func TestAuthService_Register(t *testing.T) {
	setupAuthViper()

	docStore := store.NewMemoryStore()
	service := NewAuthService(docStore, nil)

	t.Run("successful registration", func(t *testing.T) {
		req := RegisterRequest{
			Username: "jeysi",
			Name:     "Jeysi Cruz",
			Email:    "jeysi@example.com",
			Password: "password123",
		}

		body, _ := json.Marshal(req)
		r := httptest.NewRequest("POST", "/auth/register", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.Register(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		var response AuthResponse
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.NotEmpty(t, response.Token)
		assert.Equal(t, "jeysi", response.User.Username)
		assert.Equal(t, "jeysi@example.com", response.User.Email)

		// Both balances start at zero.
		gcash, err := docStore.Read(context.Background(), "users/jeysi/gcashBalance")
		require.NoError(t, err)
		assert.Equal(t, `"0"`, string(gcash))
		onHand, err := docStore.Read(context.Background(), "users/jeysi/onHandBalance")
		require.NoError(t, err)
		assert.Equal(t, `"0"`, string(onHand))
	})

	t.Run("duplicate username", func(t *testing.T) {
		req := RegisterRequest{
			Username: "jeysi",
			Name:     "Another Jeysi",
			Email:    "other@example.com",
			Password: "password123",
		}

		body, _ := json.Marshal(req)
		r := httptest.NewRequest("POST", "/auth/register", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.Register(w, r)

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("username is case-insensitive", func(t *testing.T) {
		req := RegisterRequest{
			Username: "JEYSI",
			Name:     "Shouting Jeysi",
			Email:    "caps@example.com",
			Password: "password123",
		}

		body, _ := json.Marshal(req)
		r := httptest.NewRequest("POST", "/auth/register", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.Register(w, r)

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("invalid request body", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/auth/register", bytes.NewBuffer([]byte("invalid")))
		w := httptest.NewRecorder()

		service.Register(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("short password", func(t *testing.T) {
		req := RegisterRequest{
			Username: "newuser",
			Name:     "New User",
			Email:    "new@example.com",
			Password: "123",
		}

		body, _ := json.Marshal(req)
		r := httptest.NewRequest("POST", "/auth/register", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.Register(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAuthService_Login(t *testing.T) {
	setupAuthViper()

	docStore := store.NewMemoryStore()
	service := NewAuthService(docStore, nil)

	// Register a user first.
	reg := RegisterRequest{
		Username: "maria",
		Name:     "Maria Santos",
		Email:    "maria@example.com",
		Password: "password123",
	}
	body, _ := json.Marshal(reg)
	w := httptest.NewRecorder()
	service.Register(w, httptest.NewRequest("POST", "/auth/register", bytes.NewBuffer(body)))
	require.Equal(t, http.StatusOK, w.Code)

	t.Run("successful login", func(t *testing.T) {
		req := LoginRequest{Username: "maria", Password: "password123"}

		body, _ := json.Marshal(req)
		r := httptest.NewRequest("POST", "/auth/login", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.Login(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		var response AuthResponse
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.NotEmpty(t, response.Token)
		assert.Equal(t, "Maria Santos", response.User.Name)
	})

	t.Run("wrong password", func(t *testing.T) {
		req := LoginRequest{Username: "maria", Password: "wrongpassword"}

		body, _ := json.Marshal(req)
		r := httptest.NewRequest("POST", "/auth/login", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.Login(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("user not found", func(t *testing.T) {
		req := LoginRequest{Username: "nonexistent", Password: "password123"}

		body, _ := json.Marshal(req)
		r := httptest.NewRequest("POST", "/auth/login", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.Login(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestAuthService_Logout(t *testing.T) {
	setupAuthViper()

	redisClient, mock := redismock.NewClientMock()
	service := NewAuthService(store.NewMemoryStore(), redisClient)

	t.Run("blacklists the token", func(t *testing.T) {
		mock.ExpectSet("blacklist:some-token", "1", 24*time.Hour).SetVal("OK")

		r := httptest.NewRequest("POST", "/auth/logout", nil)
		r.Header.Set("Authorization", "Bearer some-token")
		w := httptest.NewRecorder()

		service.Logout(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no token is still a success", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/auth/logout", nil)
		w := httptest.NewRecorder()

		service.Logout(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestAuthService_GetUserAccount(t *testing.T) {
	setupAuthViper()

	docStore := store.NewMemoryStore()
	service := NewAuthService(docStore, nil)

	reg := RegisterRequest{
		Username: "juan",
		Name:     "Juan Dela Cruz",
		Email:    "juan@example.com",
		Password: "password123",
	}
	body, _ := json.Marshal(reg)
	w := httptest.NewRecorder()
	service.Register(w, httptest.NewRequest("POST", "/auth/register", bytes.NewBuffer(body)))
	require.Equal(t, http.StatusOK, w.Code)

	t.Run("returns the profile", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/auth/account", nil)
		r = r.WithContext(context.WithValue(r.Context(), "userID", "juan"))
		w := httptest.NewRecorder()

		service.GetUserAccount(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		var user struct {
			Username string `json:"username"`
			Name     string `json:"name"`
			Email    string `json:"email"`
		}
		json.Unmarshal(w.Body.Bytes(), &user)
		assert.Equal(t, "juan", user.Username)
		assert.Equal(t, "Juan Dela Cruz", user.Name)
	})

	t.Run("missing context user", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/auth/account", nil)
		w := httptest.NewRecorder()

		service.GetUserAccount(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("unknown user", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/auth/account", nil)
		r = r.WithContext(context.WithValue(r.Context(), "userID", "ghost"))
		w := httptest.NewRecorder()

		service.GetUserAccount(w, r)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestPasswordHashing(t *testing.T) {
	setupAuthViper()

	password := "testpassword"

	hashed, err := hashPassword(password)
	assert.NoError(t, err)
	assert.NotEmpty(t, hashed)

	assert.True(t, verifyPassword(password, hashed))
	assert.False(t, verifyPassword("wrongpassword", hashed))
}
