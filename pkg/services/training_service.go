package services

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"smartwaste-api/pkg/models"
)

const (
	minTemperature = -50.0
	maxTemperature = 150.0
)

// 学習データで受け付ける日付フォーマット
var trainingDateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006/1/2",
	time.RFC3339,
}

// TrainingService は学習データと「学習済みモデル」マーカーを管理します。
// 実際の機械学習は行わず、学習は精度値を算出するだけです。
type TrainingService struct {
	mu      sync.RWMutex
	records []models.TrainingRecord
	model   models.ModelState
	delay   Delayer
	rng     *rand.Rand
	now     func() time.Time
}

// NewTrainingService 新しい学習サービスを作成
func NewTrainingService(delay Delayer) *TrainingService {
	if delay == nil {
		delay = NoDelay{}
	}
	return &TrainingService{
		delay: delay,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		now:   time.Now,
	}
}

// Ingest は学習データを検証し、問題がなければ既存データを置き換えます。
// 1件でも不正があればバッチ全体を拒否します。モデルは未学習に戻ります。
func (s *TrainingService) Ingest(records []models.TrainingRecord) (int, error) {
	if problems := ValidateTrainingRecords(records); len(problems) > 0 {
		return 0, &ValidationError{Errors: problems}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append([]models.TrainingRecord{}, records...)
	s.model = models.ModelState{}

	log.Printf("📥 [学習データ] %d件を取り込みました", len(records))
	return len(records), nil
}

// Records は現在の学習データのコピーを返します。
func (s *TrainingService) Records() []models.TrainingRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.TrainingRecord{}, s.records...)
}

// Status は現在のモデル状態を返します。
func (s *TrainingService) Status() models.ModelState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model
}

// Snapshot はモデル状態と学習データを同時に取得します。
func (s *TrainingService) Snapshot() (models.ModelState, []models.TrainingRecord) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model, append([]models.TrainingRecord{}, s.records...)
}

// Train はモデルを「学習」します。待機中にctxがキャンセルされた場合は状態を変更しません。
func (s *TrainingService) Train(ctx context.Context) (models.ModelState, error) {
	s.mu.RLock()
	count := len(s.records)
	s.mu.RUnlock()
	if count == 0 {
		return models.ModelState{}, ErrNoTrainingData
	}

	log.Printf("🧠 [学習] %d件のデータでモデルを学習中...", count)
	if err := s.delay.Wait(ctx); err != nil {
		return models.ModelState{}, fmt.Errorf("training interrupted: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.records) == 0 {
		return models.ModelState{}, ErrNoTrainingData
	}
	trainedAt := s.now()
	s.model = models.ModelState{
		Trained:     true,
		RecordCount: len(s.records),
		Accuracy:    math.Round((0.85+s.rng.Float64()*0.12)*1000) / 1000,
		TrainedAt:   &trainedAt,
	}
	log.Printf("✅ [学習] 完了: accuracy=%.3f", s.model.Accuracy)
	return s.model, nil
}

// ValidateTrainingRecords は学習データを検証し、行ごとのエラーメッセージを返します。
func ValidateTrainingRecords(records []models.TrainingRecord) []string {
	if len(records) == 0 {
		return []string{"no records provided"}
	}

	var problems []string
	for i, r := range records {
		problems = append(problems, validateTrainingRecord(r, i+1)...)
	}
	return problems
}

// validateTrainingRecord は1件の学習データを検証します。rowはエラーメッセージの行番号です。
func validateTrainingRecord(r models.TrainingRecord, row int) []string {
	var problems []string
	prefix := fmt.Sprintf("Row %d: ", row)
	add := func(format string, args ...interface{}) {
		problems = append(problems, prefix+fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(r.ProductName) == "" {
		add("product name is required")
	}
	if strings.TrimSpace(r.Category) == "" {
		add("category is required")
	}

	purchase, perr := parseTrainingDate(r.PurchaseDate)
	if perr != nil {
		add("purchase date %q is not a valid date", r.PurchaseDate)
	}
	expiry, eerr := parseTrainingDate(r.ExpiryDate)
	if eerr != nil {
		add("expiry date %q is not a valid date", r.ExpiryDate)
	}
	if perr == nil && eerr == nil && !expiry.After(purchase) {
		add("expiry date must be after purchase date")
	}

	if r.InitialStock < 0 {
		add("initial stock cannot be negative")
	}
	if r.FinalStock < 0 {
		add("final stock cannot be negative")
	}
	if r.WasteAmount < 0 {
		add("waste amount cannot be negative")
	}
	if r.WasteAmount > r.InitialStock {
		add("waste amount (%d) exceeds initial stock (%d)", r.WasteAmount, r.InitialStock)
	}
	if r.FinalStock > r.InitialStock {
		add("final stock (%d) exceeds initial stock (%d)", r.FinalStock, r.InitialStock)
	}
	if r.Humidity < 0 || r.Humidity > 100 {
		add("humidity must be between 0 and 100 (got %.1f)", r.Humidity)
	}
	if r.Temperature < minTemperature || r.Temperature > maxTemperature {
		add("temperature must be between %.0f and %.0f degrees (got %.1f)", minTemperature, maxTemperature, r.Temperature)
	}
	return problems
}

func parseTrainingDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range trainingDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", value)
}
