package handlers

import (
	"context"
	"fmt"
	"log"
	"time"

	config "smartwaste-api/configs"
	"smartwaste-api/pkg/services"
)

// NewDependencies は設定からサービス群を初期化します。
// Redis・Qdrantは設定がある場合のみ接続し、失敗時はメモリ実装にフォールバックします。
// 戻り値のcleanupで外部接続を閉じます。
func NewDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	products, err := config.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	log.Printf("🛒 カタログを読み込みました: %d商品", len(products))

	var closers []func()
	cleanup := func() {
		for _, c := range closers {
			c()
		}
	}

	var sessions services.SessionStore = services.NewMemorySessionStore()
	if cfg.RedisAddr != "" {
		redisStore, err := services.NewRedisSessionStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.SessionTTL)
		if err != nil {
			log.Printf("⚠️ Redisに接続できないためメモリのセッションストアを使用します: %v", err)
		} else {
			log.Printf("✅ Redisセッションストアを使用します: %s", cfg.RedisAddr)
			sessions = redisStore
			closers = append(closers, redisStore.Close)
		}
	}

	var archive services.InteractionArchive = services.NopInteractionArchive{}
	if cfg.QdrantURL != "" {
		qctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		qdrantArchive, err := services.NewQdrantInteractionArchive(qctx, cfg.QdrantURL, cfg.QdrantAPIKey)
		cancel()
		if err != nil {
			log.Printf("⚠️ Qdrantに接続できないため会話アーカイブを無効化します: %v", err)
		} else {
			log.Printf("✅ Qdrant会話アーカイブを使用します: %s", cfg.QdrantURL)
			archive = qdrantArchive
			closers = append(closers, func() { qdrantArchive.Close() })
		}
	}

	catalog := services.NewCatalogService(products)
	return &Dependencies{
		Config:       cfg,
		Catalog:      catalog,
		Conversation: services.NewConversationService(catalog),
		Sessions:     sessions,
		Archive:      archive,
		Training:     services.NewTrainingService(services.NewDelayer(cfg.TrainingDelay)),
		Discounts:    services.NewDiscountService(services.NewRandomInventoryProvider(nil)),
		Monitoring:   services.NewMonitoringService(),
		ChatDelay:    services.NewDelayer(cfg.ChatResponseDelay),
	}, cleanup, nil
}
