package handler

import (
	"context"
	"log"
	"net/http"
	"sync"

	config "smartwaste-api/configs"
	"smartwaste-api/pkg/handlers"

	"github.com/gin-gonic/gin"
)

var (
	app     *gin.Engine
	initErr error
	once    sync.Once
)

// setupApp はGinアプリケーションを初期化します。
// サーバーレス環境では、リクエストごとに初期化が走らないようsync.Onceで一度だけ実行します。
func setupApp() (*gin.Engine, error) {
	once.Do(func() {
		log.Printf("🟢 [setupApp] Initializing Gin application")

		// .envファイルはVercelの環境変数設定から読み込まれるため、ここではgodotenvを呼び出しません。
		cfg := config.LoadConfig()

		deps, _, err := handlers.NewDependencies(context.Background(), cfg)
		if err != nil {
			initErr = err
			return
		}
		app = handlers.NewRouter(deps)
		log.Printf("🟢 [setupApp] Router ready")
	})
	return app, initErr
}

// Handler はVercelのエントリーポイントです。
func Handler(w http.ResponseWriter, r *http.Request) {
	engine, err := setupApp()
	if err != nil {
		log.Printf("❌ [setupApp] %v", err)
		http.Error(w, "service initialization failed", http.StatusInternalServerError)
		return
	}
	engine.ServeHTTP(w, r)
}
