package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/thereayou/heartmatch/internal/config"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Server:   config.ServerConfig{Port: "0", Fanout: config.FanoutLocal, ShutdownTimeout: time.Second},
		Database: config.DatabaseConfig{Storage: config.StorageMemory},
		JWT:      config.JWTConfig{Secret: "secret", TTL: time.Hour},
		Chat:     config.ChatConfig{MessageRate: 30, MessageWindow: time.Minute, MaxMessageLength: 2000, HistoryLimit: 200},
		Logging:  config.LoggingConfig{Level: "info"},
	}
}

func TestServerRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv, err := NewServer(memoryConfig(), zap.NewNop())
	require.NoError(t, err)
	defer srv.Close()

	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/matches", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	body, _ := json.Marshal(map[string]string{
		"username": "alice",
		"email":    "alice@example.com",
		"password": "correct-horse",
	})
	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	srv.Router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var token struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &token))

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/matches", nil)
	req.Header.Set("Authorization", "Bearer "+token.Token)
	srv.Router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"matches":[]}`, rec.Body.String())
}
