package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"smartwaste-api/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var trainedModel = models.ModelState{Trained: true, RecordCount: 4, Accuracy: 0.9}

func discountHistory() []models.TrainingRecord {
	return []models.TrainingRecord{
		wasteRecord("Milk", "groceries", 100, 20),
		wasteRecord("Milk", "groceries", 100, 20),
		wasteRecord("Bread", "groceries", 100, 30),
		wasteRecord("Bread", "groceries", 100, 30),
	}
}

// Milk: 20%×2.0 = 40% (10h), Bread: 30%×1.2 = 36% (60h)
func discountInventory() StaticInventoryProvider {
	return StaticInventoryProvider{Items: []models.InventorySnapshot{
		{ProductName: "Bread", Category: "groceries", CurrentStock: 40, HoursUntilExpiry: 60, CurrentPrice: 5.00, Temperature: 4, Humidity: 60},
		{ProductName: "Milk", Category: "groceries", CurrentStock: 40, HoursUntilExpiry: 10, CurrentPrice: 4.00, Temperature: 4, Humidity: 60},
	}}
}

func newTestDiscountService(t *testing.T, inventory InventorySnapshotProvider) (*DiscountService, *time.Time) {
	t.Helper()
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	svc := NewDiscountService(inventory)
	svc.now = func() time.Time { return now }
	return svc, &now
}

func TestGenerateRanksByUrgency(t *testing.T) {
	svc, _ := newTestDiscountService(t, discountInventory())

	recs, err := svc.Generate(context.Background(), trainedModel, discountHistory())
	require.NoError(t, err)
	require.Len(t, recs, 2)

	milk := recs[0]
	assert.Equal(t, "Milk", milk.ProductName)
	assert.InDelta(t, 40.0, milk.PredictedWastePercent, 1e-9)
	assert.Equal(t, 16, milk.PredictedWasteAmount)
	assert.Equal(t, 42, milk.SuggestedDiscount)
	assert.InDelta(t, 2.32, milk.DiscountedPrice, 1e-9)
	assert.InDelta(t, 37.12, milk.EstimatedRevenueSaved, 1e-9)
	assert.Equal(t, 75, milk.Confidence)
	assert.Equal(t, models.RiskHigh, milk.RiskLevel)
	assert.Equal(t, models.StatusPending, milk.Status)
	assert.Equal(t, 2, milk.BasedOnDataPoints)
	assert.InDelta(t, 20.0, milk.HistoricalWasteRate, 1e-9)
	assert.NotEmpty(t, milk.Reasoning)
	assert.NotEmpty(t, milk.ID)

	bread := recs[1]
	assert.Equal(t, "Bread", bread.ProductName)
	assert.InDelta(t, 36.0, bread.PredictedWastePercent, 1e-9)
	assert.Equal(t, 25, bread.SuggestedDiscount)
	assert.Equal(t, models.RiskMedium, bread.RiskLevel)
	assert.NotEqual(t, milk.ID, bread.ID)
}

func TestGenerateSkipsLowRiskProducts(t *testing.T) {
	history := []models.TrainingRecord{
		wasteRecord("Candles", "home", 100, 5),
		wasteRecord("Towels", "home", 100, 8),
	}
	inventory := StaticInventoryProvider{Items: []models.InventorySnapshot{
		{ProductName: "Candles", Category: "home", CurrentStock: 40, HoursUntilExpiry: 10, CurrentPrice: 10, Temperature: 4, Humidity: 60},
		{ProductName: "Towels", Category: "home", CurrentStock: 40, HoursUntilExpiry: 90, CurrentPrice: 10, Temperature: 4, Humidity: 60},
	}}
	svc, _ := newTestDiscountService(t, inventory)

	recs, err := svc.Generate(context.Background(), trainedModel, history)
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.Empty(t, svc.Pending())
}

func TestGenerateRequiresTrainedModelAndHistory(t *testing.T) {
	svc, _ := newTestDiscountService(t, discountInventory())
	_, err := svc.Generate(context.Background(), trainedModel, discountHistory())
	require.NoError(t, err)
	require.Len(t, svc.Pending(), 2)

	_, err = svc.Generate(context.Background(), trainedModel, nil)
	assert.True(t, errors.Is(err, ErrInvalidState))
	assert.True(t, errors.Is(err, ErrNoTrainingData))
	assert.Len(t, svc.Pending(), 2, "existing pending recommendations are untouched")

	_, err = svc.Generate(context.Background(), models.ModelState{}, discountHistory())
	assert.True(t, errors.Is(err, ErrInvalidState))
	assert.True(t, errors.Is(err, ErrModelNotTrained))
	assert.Len(t, svc.Pending(), 2)
}

func TestGenerateReplacesPendingKeepsDecided(t *testing.T) {
	svc, now := newTestDiscountService(t, discountInventory())

	first, err := svc.Generate(context.Background(), trainedModel, discountHistory())
	require.NoError(t, err)
	_, err = svc.Approve(first[0].ID, nil, "")
	require.NoError(t, err)

	*now = now.Add(time.Hour)
	second, err := svc.Generate(context.Background(), trainedModel, discountHistory())
	require.NoError(t, err)
	require.Len(t, second, 2)

	all := svc.All()
	require.Len(t, all, 3)
	assert.Equal(t, second[0].ID, all[0].ID, "newest first")
	assert.Equal(t, first[0].ID, all[2].ID)
	assert.Equal(t, models.StatusApproved, all[2].Status)

	pending := svc.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, second[0].ID, pending[0].ID)
	assert.Equal(t, second[1].ID, pending[1].ID)
}

func TestApproveWithOverrideRecomputesPrice(t *testing.T) {
	svc, _ := newTestDiscountService(t, discountInventory())
	recs, err := svc.Generate(context.Background(), trainedModel, discountHistory())
	require.NoError(t, err)
	milk := recs[0]

	override := 40
	approved, err := svc.Approve(milk.ID, &override, "manager override")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, approved.Status)
	assert.InDelta(t, 2.40, approved.DiscountedPrice, 1e-9)
	assert.InDelta(t, 38.40, approved.EstimatedRevenueSaved, 1e-9)
	require.NotNil(t, approved.AppliedDiscount)
	assert.Equal(t, 40, *approved.AppliedDiscount)
	assert.Equal(t, 42, approved.SuggestedDiscount)

	// 2回目の承認はステータスを変えず、監査行だけ追加される
	again, err := svc.Approve(milk.ID, nil, "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, again.Status)
	assert.InDelta(t, 2.40, again.DiscountedPrice, 1e-9)

	decisions := svc.Decisions()
	require.Len(t, decisions, 2)
	for _, d := range decisions {
		assert.Equal(t, milk.ID, d.RecommendationID)
		assert.True(t, d.RecommendationFound)
		assert.Equal(t, models.DecisionApproved, d.Decision)
		require.NotNil(t, d.ActualDiscount)
	}
	assert.Equal(t, 40, *decisions[0].ActualDiscount, "second call keeps the applied override")
	assert.Equal(t, 40, *decisions[1].ActualDiscount)
	assert.Equal(t, "manager override", decisions[1].Notes)
}

func TestReapproveWithOverrideRepricesRecommendation(t *testing.T) {
	svc, _ := newTestDiscountService(t, discountInventory())
	recs, err := svc.Generate(context.Background(), trainedModel, discountHistory())
	require.NoError(t, err)
	milk := recs[0]

	first, err := svc.Approve(milk.ID, nil, "")
	require.NoError(t, err)
	assert.InDelta(t, 2.32, first.DiscountedPrice, 1e-9)
	assert.Nil(t, first.AppliedDiscount)

	override := 60
	second, err := svc.Approve(milk.ID, &override, "deeper cut")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, second.Status)
	require.NotNil(t, second.AppliedDiscount)
	assert.Equal(t, 60, *second.AppliedDiscount)
	assert.InDelta(t, 1.60, second.DiscountedPrice, 1e-9)
	assert.InDelta(t, 25.60, second.EstimatedRevenueSaved, 1e-9)

	stored, err := svc.Get(milk.ID)
	require.NoError(t, err)
	assert.InDelta(t, 1.60, stored.DiscountedPrice, 1e-9)

	// 監査行の割引率は推奨の状態と一致する
	decisions := svc.Decisions()
	require.Len(t, decisions, 2)
	require.NotNil(t, decisions[0].ActualDiscount)
	assert.Equal(t, *stored.AppliedDiscount, *decisions[0].ActualDiscount)
	require.NotNil(t, decisions[1].ActualDiscount)
	assert.Equal(t, 42, *decisions[1].ActualDiscount)
}

func TestApproveOnRejectedRecordsRequestedDiscountOnly(t *testing.T) {
	svc, _ := newTestDiscountService(t, discountInventory())
	recs, err := svc.Generate(context.Background(), trainedModel, discountHistory())
	require.NoError(t, err)

	_, err = svc.Reject(recs[0].ID, "")
	require.NoError(t, err)

	override := 30
	after, err := svc.Approve(recs[0].ID, &override, "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, after.Status)
	assert.Nil(t, after.AppliedDiscount)
	assert.Equal(t, recs[0].DiscountedPrice, after.DiscountedPrice)

	decisions := svc.Decisions()
	require.Len(t, decisions, 2)
	assert.Equal(t, models.DecisionApproved, decisions[0].Decision)
	require.NotNil(t, decisions[0].ActualDiscount)
	assert.Equal(t, 30, *decisions[0].ActualDiscount)
}

func TestApproveWithoutOverrideKeepsSuggestedPrice(t *testing.T) {
	svc, _ := newTestDiscountService(t, discountInventory())
	recs, err := svc.Generate(context.Background(), trainedModel, discountHistory())
	require.NoError(t, err)

	approved, err := svc.Approve(recs[1].ID, nil, "")
	require.NoError(t, err)
	assert.Equal(t, recs[1].DiscountedPrice, approved.DiscountedPrice)
	assert.Nil(t, approved.AppliedDiscount)
}

func TestApproveRejectsOutOfRangeOverride(t *testing.T) {
	svc, _ := newTestDiscountService(t, discountInventory())
	recs, err := svc.Generate(context.Background(), trainedModel, discountHistory())
	require.NoError(t, err)

	bad := 120
	_, err = svc.Approve(recs[0].ID, &bad, "")
	_, isValidation := AsValidationError(err)
	assert.True(t, isValidation)
	assert.Empty(t, svc.Decisions())
	assert.Len(t, svc.Pending(), 2)
}

func TestRejectIsTerminal(t *testing.T) {
	svc, _ := newTestDiscountService(t, discountInventory())
	recs, err := svc.Generate(context.Background(), trainedModel, discountHistory())
	require.NoError(t, err)

	rejected, err := svc.Reject(recs[0].ID, "not worth it")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, rejected.Status)
	assert.Equal(t, recs[0].DiscountedPrice, rejected.DiscountedPrice)

	afterApprove, err := svc.Approve(recs[0].ID, nil, "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, afterApprove.Status)
	assert.Len(t, svc.Decisions(), 2)
}

func TestDecisionOnUnknownIDIsAudited(t *testing.T) {
	svc, _ := newTestDiscountService(t, discountInventory())

	_, err := svc.Approve("does-not-exist", nil, "typo")
	assert.True(t, errors.Is(err, ErrRecommendationNotFound))
	_, err = svc.Reject("also-missing", "")
	assert.True(t, errors.Is(err, ErrRecommendationNotFound))

	decisions := svc.Decisions()
	require.Len(t, decisions, 2)
	for _, d := range decisions {
		assert.False(t, d.RecommendationFound)
		assert.Empty(t, d.ProductName)
	}
	assert.Equal(t, "also-missing", decisions[0].RecommendationID)
}

func TestStatsOnEmptySetAreZero(t *testing.T) {
	svc, _ := newTestDiscountService(t, discountInventory())
	assert.Equal(t, models.RecommendationStats{}, svc.Stats())
}

func TestStatsCountsApprovedSavingsOnly(t *testing.T) {
	svc, _ := newTestDiscountService(t, discountInventory())
	recs, err := svc.Generate(context.Background(), trainedModel, discountHistory())
	require.NoError(t, err)

	_, err = svc.Approve(recs[0].ID, nil, "")
	require.NoError(t, err)

	stats := svc.Stats()
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Approved)
	assert.Equal(t, 0, stats.Rejected)
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, 50, stats.ApprovalRate)
	assert.InDelta(t, recs[0].EstimatedRevenueSaved, stats.TotalPotentialSavings, 1e-9)

	_, err = svc.Reject(recs[1].ID, "")
	require.NoError(t, err)
	stats = svc.Stats()
	assert.Equal(t, 1, stats.Rejected)
	assert.Equal(t, 0, stats.Pending)
	assert.InDelta(t, recs[0].EstimatedRevenueSaved, stats.TotalPotentialSavings, 1e-9)
}

func TestRiskDistributionAndClear(t *testing.T) {
	svc, _ := newTestDiscountService(t, discountInventory())
	_, err := svc.Generate(context.Background(), trainedModel, discountHistory())
	require.NoError(t, err)

	dist := svc.RiskDistribution()
	assert.Equal(t, map[models.RiskLevel]int{
		models.RiskLow:      0,
		models.RiskMedium:   1,
		models.RiskHigh:     1,
		models.RiskCritical: 0,
	}, dist)

	_, _ = svc.Reject(svc.Pending()[0].ID, "")
	svc.Clear()
	assert.Empty(t, svc.All())
	assert.Empty(t, svc.Decisions())
	assert.Equal(t, models.RecommendationStats{}, svc.Stats())
}

func TestGetReturnsCopy(t *testing.T) {
	svc, _ := newTestDiscountService(t, discountInventory())
	recs, err := svc.Generate(context.Background(), trainedModel, discountHistory())
	require.NoError(t, err)

	got, err := svc.Get(recs[0].ID)
	require.NoError(t, err)
	got.Reasoning[0] = "mutated"

	again, err := svc.Get(recs[0].ID)
	require.NoError(t, err)
	assert.NotEqual(t, "mutated", again.Reasoning[0])

	_, err = svc.Get("missing")
	assert.True(t, errors.Is(err, ErrRecommendationNotFound))
}

func TestGenerateWithRandomInventoryStaysInBounds(t *testing.T) {
	svc, _ := newTestDiscountService(t, NewRandomInventoryProvider(nil))
	history := []models.TrainingRecord{
		wasteRecord("Milk", "groceries", 100, 50),
		wasteRecord("Bread", "groceries", 100, 40),
		wasteRecord("Salad", "groceries", 100, 60),
	}

	for i := 0; i < 20; i++ {
		recs, err := svc.Generate(context.Background(), trainedModel, history)
		require.NoError(t, err)
		for _, r := range recs {
			assert.GreaterOrEqual(t, r.SuggestedDiscount, 5)
			assert.LessOrEqual(t, r.SuggestedDiscount, 70)
			assert.GreaterOrEqual(t, r.PredictedWastePercent, 0.0)
			assert.LessOrEqual(t, r.PredictedWastePercent, 100.0)
			assert.LessOrEqual(t, r.Confidence, 95)
			assert.LessOrEqual(t, r.DiscountedPrice, r.CurrentPrice)
		}
	}
}
