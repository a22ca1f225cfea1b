package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-dbclient/pkg/config"
)

func TestHealthHandler_Health_WithoutStats(t *testing.T) {
	handler := NewHealthHandler(&config.Config{Version: "test-version", Env: "test"}, nil, zap.NewNop())

	rec := httptest.NewRecorder()
	handler.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var response HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	assert.Equal(t, "ok", response.Status)
	assert.Nil(t, response.Connections)
}

func TestHealthHandler_Health_WithStats(t *testing.T) {
	handler := NewHealthHandler(&config.Config{}, &mockConnectionService{}, zap.NewNop())

	rec := httptest.NewRecorder()
	handler.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var response HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	require.NotNil(t, response.Connections)
	assert.Equal(t, 1, response.Connections.TotalConnections)
	assert.Equal(t, 10, response.Connections.MaxConnections)
}

func TestHealthHandler_Ping(t *testing.T) {
	handler := NewHealthHandler(&config.Config{Version: "1.2.3", Env: "local"}, nil, zap.NewNop())

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var response PingResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	assert.Equal(t, "ok", response.Status)
	assert.Equal(t, "1.2.3", response.Version)
	assert.Equal(t, "ekaya-dbclient", response.Service)
	assert.Equal(t, "local", response.Environment)
	assert.Equal(t, runtime.Version(), response.GoVersion)
}
