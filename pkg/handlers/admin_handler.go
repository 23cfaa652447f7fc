package handlers

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"sync/atomic"

	config "smartwaste-api/configs"

	"github.com/gin-gonic/gin"
)

// AdminHandler は管理者向け操作のハンドラです。
type AdminHandler struct {
	adminUsername string
	adminPassword string
	maintenance   atomic.Bool
}

// NewAdminHandler は新しいAdminHandlerを生成します。
func NewAdminHandler(cfg *config.Config) *AdminHandler {
	return &AdminHandler{
		adminUsername: cfg.AdminUsername,
		adminPassword: cfg.AdminPassword,
	}
}

// AdminCredentials は管理者認証のためのリクエストボディです。
type AdminCredentials struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// authorize 管理者アカウント未設定の場合は常に拒否
func (h *AdminHandler) authorize(c *gin.Context) bool {
	var input AdminCredentials
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBadRequest(c, "Username and password are required")
		return false
	}
	if h.adminUsername == "" ||
		subtle.ConstantTimeCompare([]byte(input.Username), []byte(h.adminUsername)) != 1 ||
		subtle.ConstantTimeCompare([]byte(input.Password), []byte(h.adminPassword)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid credentials"})
		return false
	}
	return true
}

// StartMaintenance はメンテナンスモードを開始します。
func (h *AdminHandler) StartMaintenance(c *gin.Context) {
	if !h.authorize(c) {
		return
	}
	h.maintenance.Store(true)
	respondOK(c, http.StatusOK, gin.H{"message": "Maintenance mode started", "isMaintenanceMode": true})
}

// StopMaintenance はメンテナンスモードを停止します。
func (h *AdminHandler) StopMaintenance(c *gin.Context) {
	if !h.authorize(c) {
		return
	}
	h.maintenance.Store(false)
	respondOK(c, http.StatusOK, gin.H{"message": "Maintenance mode stopped", "isMaintenanceMode": false})
}

// GetHealthStatus は現在のサーバーの状態を返します。
func (h *AdminHandler) GetHealthStatus(c *gin.Context) {
	respondOK(c, http.StatusOK, gin.H{"isMaintenanceMode": h.maintenance.Load()})
}

// HealthCheck は外部のヘルスチェッカー（例: ロードバランサー）からのリクエストに応答します。
func (h *AdminHandler) HealthCheck(c *gin.Context) {
	if h.maintenance.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "message": "Server is in maintenance mode"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// MaintenanceGuard メンテナンス中は管理・監視以外のAPIを503で拒否します。
func (h *AdminHandler) MaintenanceGuard() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if h.maintenance.Load() &&
			!strings.HasPrefix(path, "/api/v1/admin") &&
			!strings.HasPrefix(path, "/api/v1/monitoring") {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"success": false,
				"error":   "Server is in maintenance mode",
			})
			return
		}
		c.Next()
	}
}
