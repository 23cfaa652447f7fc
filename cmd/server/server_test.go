package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	config "smartwaste-api/configs"
	"smartwaste-api/pkg/handlers"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	// テスト環境の設定
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// 外部サービスなしの構成
func setupTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	for _, key := range []string{"API_KEY", "REDIS_ADDR", "QDRANT_URL", "CATALOG_PATH", "CHAT_RESPONSE_DELAY", "TRAINING_DELAY"} {
		t.Setenv(key, "")
	}

	cfg := config.LoadConfig()
	require.NotNil(t, cfg)

	deps, cleanup, err := handlers.NewDependencies(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(cleanup)

	return handlers.NewRouter(deps)
}

func TestApplicationSetup(t *testing.T) {
	router := setupTestRouter(t)
	assert.NotNil(t, router)

	// ルート登録の確認
	routes := make(map[string]bool)
	for _, r := range router.Routes() {
		routes[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"GET /health",
		"POST /api/v1/chat/message",
		"POST /api/v1/model/train",
		"POST /api/v1/discounts/generate",
		"POST /api/v1/discounts/:id/approve",
		"GET /api/v1/discounts/export",
	} {
		assert.True(t, routes[want], "route %s should be registered", want)
	}
}

func TestHealthEndpoint(t *testing.T) {
	router := setupTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestProductsEndpoint(t *testing.T) {
	router := setupTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"success":true`)
}
