package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration
type Config struct {
	Port          string
	Environment   string
	APIKey        string
	AdminUsername string
	AdminPassword string

	// セッション保存先（REDIS_ADDRが空ならメモリ）
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SessionTTL    time.Duration

	// 会話アーカイブ（QDRANT_URLが空なら無効）
	QdrantURL    string
	QdrantAPIKey string

	// 「考え中」演出用の待機時間
	ChatResponseDelay time.Duration
	TrainingDelay     time.Duration

	// 空の場合は埋め込みカタログを使用
	CatalogPath string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Port:              getEnv("PORT", "8080"),
		Environment:       getEnv("ENVIRONMENT", "development"),
		APIKey:            getEnv("API_KEY", ""),
		AdminUsername:     getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:     getEnv("ADMIN_PASSWORD", ""),
		RedisAddr:         getEnv("REDIS_ADDR", ""),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisDB:           getEnvInt("REDIS_DB", 0),
		SessionTTL:        getEnvDuration("SESSION_TTL", 24*time.Hour),
		QdrantURL:         getEnv("QDRANT_URL", ""),
		QdrantAPIKey:      getEnv("QDRANT_API_KEY", ""),
		ChatResponseDelay: getEnvDuration("CHAT_RESPONSE_DELAY", 0),
		TrainingDelay:     getEnvDuration("TRAINING_DELAY", 0),
		CatalogPath:       getEnv("CATALOG_PATH", ""),
	}
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt 整数の環境変数を取得（不正な値はデフォルト）
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("⚠️ [設定] %s の値が不正です（%q）。デフォルト値 %d を使用します", key, value, defaultValue)
		return defaultValue
	}
	return n
}

// getEnvDuration time.ParseDuration形式の環境変数を取得
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		log.Printf("⚠️ [設定] %s の値が不正です（%q）。デフォルト値 %s を使用します", key, value, defaultValue)
		return defaultValue
	}
	return d
}
