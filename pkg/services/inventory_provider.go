package services

import (
	"context"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"smartwaste-api/pkg/models"
)

// InventorySnapshotProvider は予測に使う「現在の在庫状況」を提供します。
// 実在庫フィードがない環境ではRandomInventoryProviderで代用します。
type InventorySnapshotProvider interface {
	Snapshot(ctx context.Context, history []models.TrainingRecord) ([]models.InventorySnapshot, error)
}

// 在庫シミュレーションの範囲
const (
	simMinStock       = 20
	simStockSpan      = 130 // 20〜149
	simMinHours       = 2
	simHoursSpan      = 94 // 2〜95
	simMinPrice       = 1.50
	simPriceSpan      = 14.0 // 1.50〜15.49
	simTemperatureDev = 8.0
	simHumidityDev    = 15.0
)

// RandomInventoryProvider は履歴の商品ごとに在庫状況をランダム生成します。
type RandomInventoryProvider struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomInventoryProvider rngがnilの場合は現在時刻でシードします。
func NewRandomInventoryProvider(rng *rand.Rand) *RandomInventoryProvider {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &RandomInventoryProvider{rng: rng}
}

// Snapshot 履歴に登場する商品名ごとに1件（初出順）
func (p *RandomInventoryProvider) Snapshot(ctx context.Context, history []models.TrainingRecord) ([]models.InventorySnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	seen := make(map[string]bool)
	var snapshots []models.InventorySnapshot
	for _, r := range history {
		key := strings.ToLower(strings.TrimSpace(r.ProductName))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true

		baseline := historicalPatternFor(r.ProductName, r.Category, history)
		snapshots = append(snapshots, models.InventorySnapshot{
			ProductName:      r.ProductName,
			Category:         r.Category,
			CurrentStock:     simMinStock + p.rng.Intn(simStockSpan),
			HoursUntilExpiry: simMinHours + p.rng.Intn(simHoursSpan),
			CurrentPrice:     round2(simMinPrice + math.Floor(p.rng.Float64()*simPriceSpan*100)/100),
			Temperature:      round1(baseline.AvgTemperature + (p.rng.Float64()*2-1)*simTemperatureDev),
			Humidity:         round1(clampFloat(baseline.AvgHumidity+(p.rng.Float64()*2-1)*simHumidityDev, 0, 100)),
		})
	}
	return snapshots, nil
}

// StaticInventoryProvider 固定の在庫状況を返します（テスト・デモ用）
type StaticInventoryProvider struct {
	Items []models.InventorySnapshot
}

func (p StaticInventoryProvider) Snapshot(ctx context.Context, _ []models.TrainingRecord) ([]models.InventorySnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]models.InventorySnapshot{}, p.Items...), nil
}
