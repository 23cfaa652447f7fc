package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	// テスト用の環境変数を設定
	testCases := map[string]string{
		"PORT":                "9090",
		"ENVIRONMENT":         "test",
		"API_KEY":             "test-key",
		"REDIS_ADDR":          "localhost:6379",
		"REDIS_DB":            "2",
		"SESSION_TTL":         "30m",
		"QDRANT_URL":          "localhost:6334",
		"CHAT_RESPONSE_DELAY": "750ms",
		"TRAINING_DELAY":      "2s",
	}

	// 環境変数を設定
	for key, value := range testCases {
		os.Setenv(key, value)
	}

	// テスト後にクリーンアップ
	defer func() {
		for key := range testCases {
			os.Unsetenv(key)
		}
	}()

	// 設定を読み込み
	cfg := LoadConfig()

	// 検証
	if cfg.Port != "9090" {
		t.Errorf("Expected Port to be '9090', got '%s'", cfg.Port)
	}

	if cfg.Environment != "test" {
		t.Errorf("Expected Environment to be 'test', got '%s'", cfg.Environment)
	}

	if cfg.APIKey != "test-key" {
		t.Errorf("Expected APIKey to be 'test-key', got '%s'", cfg.APIKey)
	}

	if cfg.RedisAddr != "localhost:6379" || cfg.RedisDB != 2 {
		t.Errorf("Expected redis localhost:6379 db 2, got '%s' db %d", cfg.RedisAddr, cfg.RedisDB)
	}

	if cfg.SessionTTL != 30*time.Minute {
		t.Errorf("Expected SessionTTL to be 30m, got %s", cfg.SessionTTL)
	}

	if cfg.ChatResponseDelay != 750*time.Millisecond {
		t.Errorf("Expected ChatResponseDelay to be 750ms, got %s", cfg.ChatResponseDelay)
	}

	if cfg.TrainingDelay != 2*time.Second {
		t.Errorf("Expected TrainingDelay to be 2s, got %s", cfg.TrainingDelay)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	// 環境変数をクリア
	vars := []string{
		"PORT", "ENVIRONMENT", "API_KEY", "REDIS_ADDR", "REDIS_DB",
		"SESSION_TTL", "QDRANT_URL", "CHAT_RESPONSE_DELAY", "TRAINING_DELAY",
	}

	for _, v := range vars {
		os.Unsetenv(v)
	}

	// 設定を読み込み
	cfg := LoadConfig()

	// デフォルト値の検証
	if cfg.Port != "8080" {
		t.Errorf("Expected default Port to be '8080', got '%s'", cfg.Port)
	}

	if cfg.Environment != "development" {
		t.Errorf("Expected default Environment to be 'development', got '%s'", cfg.Environment)
	}

	if cfg.SessionTTL != 24*time.Hour {
		t.Errorf("Expected default SessionTTL to be 24h, got %s", cfg.SessionTTL)
	}

	if cfg.ChatResponseDelay != 0 || cfg.TrainingDelay != 0 {
		t.Errorf("Expected zero delays by default, got %s / %s", cfg.ChatResponseDelay, cfg.TrainingDelay)
	}
}

func TestLoadConfigInvalidValuesFallBack(t *testing.T) {
	os.Setenv("REDIS_DB", "not-a-number")
	os.Setenv("SESSION_TTL", "forever")
	defer os.Unsetenv("REDIS_DB")
	defer os.Unsetenv("SESSION_TTL")

	cfg := LoadConfig()

	if cfg.RedisDB != 0 {
		t.Errorf("Expected RedisDB to fall back to 0, got %d", cfg.RedisDB)
	}
	if cfg.SessionTTL != 24*time.Hour {
		t.Errorf("Expected SessionTTL to fall back to 24h, got %s", cfg.SessionTTL)
	}
}
