package handlers

import (
	"crypto/subtle"
	"net/http"

	config "smartwaste-api/configs"
	"smartwaste-api/pkg/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Dependencies はルーターが使うサービス群です。
type Dependencies struct {
	Config       *config.Config
	Catalog      *services.CatalogService
	Conversation *services.ConversationService
	Sessions     services.SessionStore
	Archive      services.InteractionArchive
	Training     *services.TrainingService
	Discounts    *services.DiscountService
	Monitoring   *services.MonitoringService
	ChatDelay    services.Delayer
}

// APIKeyMiddleware はX-API-KEYヘッダーを検証します。apiKeyが空なら認証しません。
func APIKeyMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			c.Next()
			return
		}
		if subtle.ConstantTimeCompare([]byte(c.GetHeader("X-API-KEY")), []byte(apiKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Unauthorized"})
			return
		}
		c.Next()
	}
}

// NewRouter はGinルーターを構築します。
func NewRouter(d *Dependencies) *gin.Engine {
	r := gin.Default()

	adminHandler := NewAdminHandler(d.Config)
	monitoringHandler := NewMonitoringHandler(d.Monitoring)
	catalogHandler := NewCatalogHandler(d.Catalog)
	chatHandler := NewChatHandler(d.Conversation, d.Sessions, d.Archive, d.ChatDelay, d.Monitoring)
	trainingHandler := NewTrainingHandler(d.Training, d.Monitoring)
	discountHandler := NewDiscountHandler(d.Discounts, d.Training, d.Monitoring)

	// ミドルウェアの登録
	r.Use(d.Monitoring.LoggingMiddleware())
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "X-API-KEY")
	r.Use(cors.New(corsConfig))

	// ヘルスチェックエンドポイント
	r.GET("/health", adminHandler.HealthCheck)

	v1 := r.Group("/api/v1")
	v1.Use(APIKeyMiddleware(d.Config.APIKey))
	v1.Use(adminHandler.MaintenanceGuard())
	{
		admin := v1.Group("/admin")
		{
			admin.GET("/health-status", adminHandler.GetHealthStatus)
			admin.POST("/maintenance/start", adminHandler.StartMaintenance)
			admin.POST("/maintenance/stop", adminHandler.StopMaintenance)
		}

		v1.GET("/monitoring/logs", monitoringHandler.GetLogs)

		products := v1.Group("/products")
		{
			products.GET("", catalogHandler.ListProducts)
			products.GET("/deals", catalogHandler.ListDeals)
			products.GET("/:id", catalogHandler.GetProduct)
		}

		chat := v1.Group("/chat")
		{
			chat.POST("/message", chatHandler.SendMessage)
			chat.POST("/analyze", chatHandler.AnalyzeMessage)
			chat.POST("/feedback", chatHandler.SubmitFeedback)
			chat.GET("/session/:id", chatHandler.GetSession)
			chat.POST("/session/:id/clear", chatHandler.ClearSession)
			chat.DELETE("/session/:id", chatHandler.DeleteSession)
			chat.GET("/similar", chatHandler.SimilarInteractions)
		}

		training := v1.Group("/training")
		{
			training.POST("/records", trainingHandler.SubmitRecords)
			training.GET("/records", trainingHandler.ListRecords)
			training.POST("/upload", trainingHandler.UploadFile)
		}

		model := v1.Group("/model")
		{
			model.POST("/train", trainingHandler.TrainModel)
			model.GET("/status", trainingHandler.ModelStatus)
		}

		discounts := v1.Group("/discounts")
		{
			discounts.POST("/generate", discountHandler.Generate)
			discounts.GET("", discountHandler.ListAll)
			discounts.DELETE("", discountHandler.Clear)
			discounts.GET("/pending", discountHandler.ListPending)
			discounts.GET("/decisions", discountHandler.ListDecisions)
			discounts.GET("/stats", discountHandler.Stats)
			discounts.GET("/risk-distribution", discountHandler.RiskDistribution)
			discounts.GET("/export", discountHandler.Export)
			discounts.GET("/:id", discountHandler.GetRecommendation)
			discounts.POST("/:id/approve", discountHandler.Approve)
			discounts.POST("/:id/reject", discountHandler.Reject)
		}
	}

	return r
}
