package services

import (
	"math"
	"strings"

	"smartwaste-api/pkg/models"
)

// historicalPattern 商品（または同カテゴリ）の過去実績
type historicalPattern struct {
	DataPoints       int
	ByCategory       bool // 商品名で一致せずカテゴリで集計した場合
	WasteRate        float64
	AvgShelfLifeDays float64
	AvgTemperature   float64
	AvgHumidity      float64
}

// historicalPatternFor は商品名の完全一致（大文字小文字を無視）で履歴を集計し、
// 一致がなければカテゴリ単位で集計します。
func historicalPatternFor(productName, category string, history []models.TrainingRecord) historicalPattern {
	var matched []models.TrainingRecord
	for _, r := range history {
		if strings.EqualFold(strings.TrimSpace(r.ProductName), strings.TrimSpace(productName)) {
			matched = append(matched, r)
		}
	}
	byCategory := false
	if len(matched) == 0 {
		byCategory = true
		for _, r := range history {
			if strings.EqualFold(strings.TrimSpace(r.Category), strings.TrimSpace(category)) {
				matched = append(matched, r)
			}
		}
	}

	pattern := historicalPattern{DataPoints: len(matched), ByCategory: byCategory}
	if len(matched) == 0 {
		return pattern
	}

	var initial, waste int
	var shelfDays, temp, humidity []float64
	for _, r := range matched {
		initial += r.InitialStock
		waste += r.WasteAmount
		temp = append(temp, r.Temperature)
		humidity = append(humidity, r.Humidity)
		purchase, perr := parseTrainingDate(r.PurchaseDate)
		expiry, eerr := parseTrainingDate(r.ExpiryDate)
		if perr == nil && eerr == nil {
			shelfDays = append(shelfDays, expiry.Sub(purchase).Hours()/24)
		}
	}
	if initial > 0 {
		pattern.WasteRate = float64(waste) / float64(initial) * 100
	}
	pattern.AvgShelfLifeDays = calculateMean(shelfDays)
	pattern.AvgTemperature = calculateMean(temp)
	pattern.AvgHumidity = calculateMean(humidity)
	return pattern
}

// predictWastePercent は履歴廃棄率に現在状況の補正を掛け合わせます。
func predictWastePercent(p historicalPattern, snap models.InventorySnapshot) float64 {
	pct := p.WasteRate

	switch {
	case snap.HoursUntilExpiry <= 24:
		pct *= 2.0
	case snap.HoursUntilExpiry <= 48:
		pct *= 1.5
	case snap.HoursUntilExpiry <= 72:
		pct *= 1.2
	}
	if snap.Temperature > p.AvgTemperature+5 {
		pct *= 1.3
	}
	if snap.Humidity > p.AvgHumidity+10 {
		pct *= 1.2
	}
	switch {
	case snap.CurrentStock > 100:
		pct *= 1.2
	case snap.CurrentStock > 50:
		pct *= 1.1
	}
	return clampFloat(pct, 0, 100)
}

// baseDiscountFor 廃棄率ラダー（下限を含む）
func baseDiscountFor(wastePct float64) float64 {
	switch {
	case wastePct >= 60:
		return 50
	case wastePct >= 40:
		return 35
	case wastePct >= 25:
		return 25
	case wastePct >= 15:
		return 15
	default:
		return 10
	}
}

// suggestDiscount 推奨割引率（5〜70%）
func suggestDiscount(wastePct float64, hoursUntilExpiry, dataPoints int) int {
	discount := baseDiscountFor(wastePct)
	switch {
	case hoursUntilExpiry <= 6:
		discount *= 1.4
	case hoursUntilExpiry <= 12:
		discount *= 1.2
	case hoursUntilExpiry <= 24:
		discount *= 1.1
	}
	if dataPoints >= 5 {
		discount *= 1.1
	}
	return int(clampFloat(math.Round(discount), 5, 70))
}

func predictionConfidence(dataPoints, hoursUntilExpiry int) int {
	confidence := 50 + minInt(30, dataPoints*5)
	if hoursUntilExpiry <= 24 {
		confidence += 15
	}
	return minInt(confidence, 95)
}

func riskLevelFor(wastePct float64) models.RiskLevel {
	switch {
	case wastePct >= 60:
		return models.RiskCritical
	case wastePct >= 40:
		return models.RiskHigh
	case wastePct >= 20:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}

// urgencyScore 72時間を超えると負の値になる（並び替え用途のためそのまま）
func urgencyScore(wastePct float64, hoursUntilExpiry int) float64 {
	return (wastePct / 100) * float64(72-hoursUntilExpiry) / 72
}

// shouldRecommend 履歴廃棄率が5%超、かつ予測廃棄率10%超または24時間以内に期限切れ
func shouldRecommend(historicalRate, predictedPct float64, hoursUntilExpiry int) bool {
	return historicalRate > 5 && (predictedPct > 10 || hoursUntilExpiry <= 24)
}

func discountedPrice(price float64, discount int) float64 {
	return round2(price * (1 - float64(discount)/100))
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }

func clampFloat(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
