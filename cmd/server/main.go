package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "smartwaste-api/configs"
	"smartwaste-api/pkg/handlers"

	"github.com/joho/godotenv"
)

func main() {
	// .envファイルを読み込み
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or could not be loaded: %v", err)
	}

	// 設定の読み込み
	cfg := config.LoadConfig()

	deps, cleanup, err := handlers.NewDependencies(context.Background(), cfg)
	if err != nil {
		log.Fatalf("❌ 初期化に失敗しました: %v", err)
	}
	defer cleanup()

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handlers.NewRouter(deps),
	}

	go func() {
		log.Printf("🚀 Starting SmartWaste API server on :%s (%s)", cfg.Port, cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
}
