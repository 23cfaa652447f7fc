package services

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"smartwaste-api/pkg/models"

	"github.com/oklog/ulid/v2"
)

// DiscountService は廃棄予測に基づく割引推奨の生成と、承認・却下ワークフローを管理します。
type DiscountService struct {
	mu              sync.RWMutex
	recommendations []models.DiscountRecommendation
	decisions       []models.DiscountDecision
	inventory       InventorySnapshotProvider
	entropy         *ulid.MonotonicEntropy
	now             func() time.Time
}

// NewDiscountService 新しい割引サービスを作成
func NewDiscountService(inventory InventorySnapshotProvider) *DiscountService {
	if inventory == nil {
		inventory = NewRandomInventoryProvider(nil)
	}
	return &DiscountService{
		inventory: inventory,
		entropy:   ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
		now:       time.Now,
	}
}

// newID は呼び出し側でロックを保持していること
func (s *DiscountService) newID() string {
	return ulid.MustNew(ulid.Timestamp(s.now()), s.entropy).String()
}

// Generate は学習済みモデルと履歴データから割引推奨を生成します。
// 既存のpending推奨は破棄され、承認・却下済みの推奨は保持されます。
func (s *DiscountService) Generate(ctx context.Context, model models.ModelState, history []models.TrainingRecord) ([]models.DiscountRecommendation, error) {
	switch {
	case !model.Trained:
		return nil, fmt.Errorf("%w (%w)", ErrInvalidState, ErrModelNotTrained)
	case len(history) == 0:
		return nil, fmt.Errorf("%w (%w)", ErrInvalidState, ErrNoTrainingData)
	}

	snapshots, err := s.inventory.Snapshot(ctx, history)
	if err != nil {
		return nil, fmt.Errorf("failed to load inventory snapshot: %w", err)
	}

	type scored struct {
		rec   models.DiscountRecommendation
		score float64
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	generatedAt := s.now()
	var batch []scored
	for _, snap := range snapshots {
		pattern := historicalPatternFor(snap.ProductName, snap.Category, history)
		wastePct := predictWastePercent(pattern, snap)
		if !shouldRecommend(pattern.WasteRate, wastePct, snap.HoursUntilExpiry) {
			continue
		}

		discount := suggestDiscount(wastePct, snap.HoursUntilExpiry, pattern.DataPoints)
		wasteUnits := int(math.Round(wastePct / 100 * float64(snap.CurrentStock)))
		price := discountedPrice(snap.CurrentPrice, discount)

		batch = append(batch, scored{
			rec: models.DiscountRecommendation{
				ID:                    s.newID(),
				ProductName:           snap.ProductName,
				Category:              snap.Category,
				CurrentStock:          snap.CurrentStock,
				HoursUntilExpiry:      snap.HoursUntilExpiry,
				PredictedWasteAmount:  wasteUnits,
				PredictedWastePercent: round1(wastePct),
				SuggestedDiscount:     discount,
				EstimatedRevenueSaved: round2(float64(wasteUnits) * price),
				Confidence:            predictionConfidence(pattern.DataPoints, snap.HoursUntilExpiry),
				RiskLevel:             riskLevelFor(wastePct),
				Reasoning:             buildReasoning(pattern, snap, wastePct, wasteUnits),
				CurrentPrice:          snap.CurrentPrice,
				DiscountedPrice:       price,
				Status:                models.StatusPending,
				Timestamp:             generatedAt,
				BasedOnDataPoints:     pattern.DataPoints,
				HistoricalWasteRate:   round1(pattern.WasteRate),
			},
			score: urgencyScore(wastePct, snap.HoursUntilExpiry),
		})
	}

	sort.SliceStable(batch, func(i, j int) bool {
		return batch[i].score > batch[j].score
	})

	generated := make([]models.DiscountRecommendation, 0, len(batch))
	for _, b := range batch {
		generated = append(generated, b.rec)
	}

	kept := s.recommendations[:0:0]
	for _, r := range s.recommendations {
		if r.Status != models.StatusPending {
			kept = append(kept, r)
		}
	}
	s.recommendations = append(kept, generated...)

	log.Printf("🏷️ [割引推奨] %d件の在庫から%d件の推奨を生成しました", len(snapshots), len(generated))
	return cloneRecommendations(generated), nil
}

func buildReasoning(p historicalPattern, snap models.InventorySnapshot, wastePct float64, wasteUnits int) []string {
	scope := "this product"
	if p.ByCategory {
		scope = "the " + snap.Category + " category"
	}
	reasons := []string{
		fmt.Sprintf("Historical waste rate for %s is %.1f%% across %d records", scope, p.WasteRate, p.DataPoints),
	}
	switch {
	case snap.HoursUntilExpiry <= 24:
		reasons = append(reasons, fmt.Sprintf("Expires in %d hours", snap.HoursUntilExpiry))
	case snap.HoursUntilExpiry <= 72:
		reasons = append(reasons, fmt.Sprintf("Expires within %d days", (snap.HoursUntilExpiry+23)/24))
	}
	if snap.Temperature > p.AvgTemperature+5 {
		reasons = append(reasons, fmt.Sprintf("Storage temperature %.1f° is above the usual %.1f°", snap.Temperature, p.AvgTemperature))
	}
	if snap.Humidity > p.AvgHumidity+10 {
		reasons = append(reasons, fmt.Sprintf("Humidity %.0f%% is above the usual %.0f%%", snap.Humidity, p.AvgHumidity))
	}
	if snap.CurrentStock > 50 {
		reasons = append(reasons, fmt.Sprintf("High stock level: %d units on hand", snap.CurrentStock))
	}
	reasons = append(reasons, fmt.Sprintf("Predicted waste: %.1f%% (%d units)", wastePct, wasteUnits))
	return reasons
}

// Approve は推奨を承認します。discountが指定された場合は割引後価格と節約額を再計算します。
// 承認済みの推奨に再度discountを指定すると、その値で再計算します。
// 未知のIDでも監査レコードは追加され、ErrRecommendationNotFoundを返します。
func (s *DiscountService) Approve(id string, discount *int, notes string) (models.DiscountRecommendation, error) {
	if discount != nil && (*discount < 0 || *discount > 100) {
		return models.DiscountRecommendation{}, &ValidationError{Errors: []string{"discount must be between 0 and 100"}}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	decision := models.DiscountDecision{
		ID:               s.newID(),
		RecommendationID: id,
		Decision:         models.DecisionApproved,
		Notes:            notes,
		Timestamp:        s.now(),
	}

	idx := s.indexOf(id)
	if idx < 0 {
		decision.ActualDiscount = copyIntPtr(discount)
		s.decisions = append(s.decisions, decision)
		log.Printf("⚠️ [割引推奨] 未知のIDへの承認: %s", id)
		return models.DiscountRecommendation{}, fmt.Errorf("%w: %s", ErrRecommendationNotFound, id)
	}

	// 却下済みは終端。承認済みへの再承認では上書き割引率を反映し直す
	rec := &s.recommendations[idx]
	if rec.Status != models.StatusRejected {
		rec.Status = models.StatusApproved
		if discount != nil {
			applied := *discount
			rec.AppliedDiscount = &applied
			rec.DiscountedPrice = discountedPrice(rec.CurrentPrice, applied)
			rec.EstimatedRevenueSaved = round2(float64(rec.PredictedWasteAmount) * rec.DiscountedPrice)
		}
	}

	decision.RecommendationFound = true
	decision.ProductName = rec.ProductName
	if rec.Status == models.StatusRejected {
		// 適用される割引はないため、要求された値だけを残す
		decision.ActualDiscount = copyIntPtr(discount)
		s.decisions = append(s.decisions, decision)
		log.Printf("⚠️ [割引推奨] 却下済みの推奨への承認: %s (%s)", rec.ProductName, id)
		return cloneRecommendation(*rec), nil
	}

	actual := effectiveDiscount(*rec)
	decision.ActualDiscount = &actual
	s.decisions = append(s.decisions, decision)

	log.Printf("✅ [割引推奨] 承認: %s (%s, %d%%)", rec.ProductName, id, actual)
	return cloneRecommendation(*rec), nil
}

// Reject は推奨を却下します。価格の再計算は行いません。
func (s *DiscountService) Reject(id string, notes string) (models.DiscountRecommendation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	decision := models.DiscountDecision{
		ID:               s.newID(),
		RecommendationID: id,
		Decision:         models.DecisionRejected,
		Notes:            notes,
		Timestamp:        s.now(),
	}

	idx := s.indexOf(id)
	if idx < 0 {
		s.decisions = append(s.decisions, decision)
		log.Printf("⚠️ [割引推奨] 未知のIDへの却下: %s", id)
		return models.DiscountRecommendation{}, fmt.Errorf("%w: %s", ErrRecommendationNotFound, id)
	}

	rec := &s.recommendations[idx]
	if rec.Status == models.StatusPending {
		rec.Status = models.StatusRejected
	}
	decision.RecommendationFound = true
	decision.ProductName = rec.ProductName
	s.decisions = append(s.decisions, decision)

	log.Printf("🚫 [割引推奨] 却下: %s (%s)", rec.ProductName, id)
	return cloneRecommendation(*rec), nil
}

// effectiveDiscount 上書きがあればその値、なければ提案値
func effectiveDiscount(rec models.DiscountRecommendation) int {
	if rec.AppliedDiscount != nil {
		return *rec.AppliedDiscount
	}
	return rec.SuggestedDiscount
}

func (s *DiscountService) indexOf(id string) int {
	for i := range s.recommendations {
		if s.recommendations[i].ID == id {
			return i
		}
	}
	return -1
}

// Get IDで推奨を取得
func (s *DiscountService) Get(id string) (models.DiscountRecommendation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return models.DiscountRecommendation{}, fmt.Errorf("%w: %s", ErrRecommendationNotFound, id)
	}
	return cloneRecommendation(s.recommendations[idx]), nil
}

// Pending 承認待ちの推奨（生成時の順位順）
func (s *DiscountService) Pending() []models.DiscountRecommendation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var pending []models.DiscountRecommendation
	for _, r := range s.recommendations {
		if r.Status == models.StatusPending {
			pending = append(pending, cloneRecommendation(r))
		}
	}
	return pending
}

// All 全推奨（タイムスタンプ降順）
func (s *DiscountService) All() []models.DiscountRecommendation {
	s.mu.RLock()
	all := cloneRecommendations(s.recommendations)
	s.mu.RUnlock()

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Timestamp.After(all[j].Timestamp)
	})
	return all
}

// Decisions 判断履歴（新しい順）
func (s *DiscountService) Decisions() []models.DiscountDecision {
	s.mu.RLock()
	history := make([]models.DiscountDecision, 0, len(s.decisions))
	for i := len(s.decisions) - 1; i >= 0; i-- {
		history = append(history, s.decisions[i])
	}
	s.mu.RUnlock()

	sort.SliceStable(history, func(i, j int) bool {
		return history[i].Timestamp.After(history[j].Timestamp)
	})
	return history
}

// Stats ステータス別件数・承認率・承認済み推奨の節約額合計
func (s *DiscountService) Stats() models.RecommendationStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats models.RecommendationStats
	var savings float64
	for _, r := range s.recommendations {
		stats.Total++
		switch r.Status {
		case models.StatusApproved:
			stats.Approved++
			savings += r.EstimatedRevenueSaved
		case models.StatusRejected:
			stats.Rejected++
		case models.StatusPending:
			stats.Pending++
		}
	}
	if stats.Total > 0 {
		stats.ApprovalRate = int(math.Round(float64(stats.Approved) / float64(stats.Total) * 100))
	}
	stats.TotalPotentialSavings = round2(savings)
	return stats
}

// RiskDistribution リスク区分ごとの推奨件数（全区分のキーを含む）
func (s *DiscountService) RiskDistribution() map[models.RiskLevel]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dist := map[models.RiskLevel]int{
		models.RiskLow:      0,
		models.RiskMedium:   0,
		models.RiskHigh:     0,
		models.RiskCritical: 0,
	}
	for _, r := range s.recommendations {
		dist[r.RiskLevel]++
	}
	return dist
}

// Clear 推奨と判断履歴をすべて削除
func (s *DiscountService) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recommendations = nil
	s.decisions = nil
	log.Println("🗑️ [割引推奨] 推奨と判断履歴をクリアしました")
}

func cloneRecommendation(r models.DiscountRecommendation) models.DiscountRecommendation {
	r.Reasoning = append([]string{}, r.Reasoning...)
	r.AppliedDiscount = copyIntPtr(r.AppliedDiscount)
	return r
}

func cloneRecommendations(recs []models.DiscountRecommendation) []models.DiscountRecommendation {
	out := make([]models.DiscountRecommendation, 0, len(recs))
	for _, r := range recs {
		out = append(out, cloneRecommendation(r))
	}
	return out
}

func copyIntPtr(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
