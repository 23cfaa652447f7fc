package handlers

import (
	"errors"
	"log"
	"net/http"

	"smartwaste-api/pkg/services"

	"github.com/gin-gonic/gin"
)

// respondOK 成功レスポンス {"success":true,"data":...}
func respondOK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

// respondBadRequest リクエスト形式の誤り
func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": message})
}

// respondError はサービス層のエラーをHTTPステータスに変換して返します。
func respondError(c *gin.Context, err error) {
	if ve, ok := services.AsValidationError(err); ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Validation failed",
			"code":    "VALIDATION_ERROR",
			"details": gin.H{
				"validation_errors": ve.Errors,
				"error_count":       len(ve.Errors),
			},
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": err.Error(), "code": "INVALID_STATE"})
	case errors.Is(err, services.ErrRecommendationNotFound), errors.Is(err, services.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": err.Error(), "code": "NOT_FOUND"})
	case errors.Is(err, services.ErrNoTrainingData):
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": err.Error(), "code": "NO_TRAINING_DATA"})
	default:
		log.Printf("❌ [API] %s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
	}
}
