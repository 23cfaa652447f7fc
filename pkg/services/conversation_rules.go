package services

import (
	"regexp"
	"strconv"
	"strings"

	"smartwaste-api/pkg/models"
)

// intentRule は意図とキーワードの組です。
type intentRule struct {
	intent   models.Intent
	keywords []string
}

// intentRules は宣言順で評価される意図テーブル。最初にマッチした意図が採用される
// （マッチ数は比較しない）。
var intentRules = []intentRule{
	{models.IntentGreeting, []string{"hello", "hi there", "hey there", "good morning", "good afternoon", "good evening", "greetings", "howdy"}},
	{models.IntentSearchProduct, []string{"find", "looking for", "search", "need", "want", "show me", "do you have", "where can i", "buy"}},
	{models.IntentPriceInquiry, []string{"price", "cost ", "costs", "cost?", "how much", "cheap", "budget", "under $", "afford", "expensive"}},
	{models.IntentDealInquiry, []string{"deal", "discount", "sale", "offer", "promo", "coupon", "save", "clearance"}},
	{models.IntentRecommendation, []string{"recommend", "suggest", "what should", "best", "popular", "trending", "idea"}},
	{models.IntentComparison, []string{"compare", "versus", " vs ", "difference", "better", "which one"}},
	{models.IntentWasteReduction, []string{"waste", "expir", "sustainab", "eco-", "eco friendly", "ecolog", "environment", "surplus", "rescue", "leftover"}},
	{models.IntentComplaint, []string{"bad", "terrible", "awful", "broken", "disappointed", "problem", "issue", "wrong", "refund", "complain"}},
	{models.IntentCompliment, []string{"great", "awesome", "love", "thank", "excellent", "amazing", "helpful", "perfect"}},
}

// categoryRule はカテゴリ検出用のキーワードです。
type categoryRule struct {
	category models.Category
	keywords []string
}

var categoryRules = []categoryRule{
	{models.CategoryGroceries, []string{"grocer", "food", "fruit", "vegetable", "milk", "bread", "dairy", "produce", "snack", "organic", "banana", "salad", "yogurt", "meat"}},
	{models.CategoryElectronics, []string{"electronic", "phone", "laptop", "headphone", "earbud", "speaker", "charger", "gadget", "watch", "tech"}},
	{models.CategoryClothing, []string{"cloth", "shirt", "jacket", "shoe", "dress", "pants", "jeans", "fashion", "apparel", "scarf", "wear"}},
	{models.CategoryHome, []string{"home", "kitchen", "furniture", "decor", "lamp", "candle", "towel", "garden", "plant"}},
}

var (
	positiveWords = []string{"good", "great", "love", "like", "awesome", "excellent", "happy", "thank", "amazing", "nice", "perfect", "wonderful"}
	negativeWords = []string{"bad", "terrible", "hate", "awful", "poor", "disappointed", "angry", "worst", "broken", "problem", "wrong", "horrible"}

	highUrgencyWords   = []string{"urgent", "asap", "immediately", "right now", "emergency", "today"}
	mediumUrgencyWords = []string{"soon", "quickly", "this week", "tomorrow", "fast"}
)

// 「under $20」「less than 15」「max $9.99」「under $1,000」などの価格上限表現
var priceCeilingPattern = regexp.MustCompile(`(?:under|less than|below|cheaper than|max(?:imum)?|up to)\s*\$?\s*((?:\d{1,3}(?:,\d{3})+|\d+)(?:\.\d+)?)`)

// normalizeUtterance は小文字化し、末尾に空白を付ける（"cost "のような語末キーワードを文末でも一致させる）
func normalizeUtterance(text string) string {
	return strings.ToLower(text) + " "
}

// countMatches はテキストに含まれるキーワード数を返す（部分一致）
func countMatches(text string, keywords []string) int {
	count := 0
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			count++
		}
	}
	return count
}

// detectCategories はテキストから言及されたカテゴリを宣言順で返す
func detectCategories(text string) []models.Category {
	entities := make([]models.Category, 0)
	for _, rule := range categoryRules {
		if countMatches(text, rule.keywords) > 0 {
			entities = append(entities, rule.category)
		}
	}
	return entities
}

// detectSentiment はポジティブ語とネガティブ語の出現数で感情を判定する
func detectSentiment(text string) models.Sentiment {
	pos := countMatches(text, positiveWords)
	neg := countMatches(text, negativeWords)
	switch {
	case pos > neg:
		return models.SentimentPositive
	case neg > pos:
		return models.SentimentNegative
	default:
		return models.SentimentNeutral
	}
}

// detectUrgency 緊急度を判定
func detectUrgency(text string) models.Urgency {
	if countMatches(text, highUrgencyWords) > 0 {
		return models.UrgencyHigh
	}
	if countMatches(text, mediumUrgencyWords) > 0 {
		return models.UrgencyMedium
	}
	return models.UrgencyLow
}

// extractPriceCeiling は価格上限を抽出する。見つからなければfalse
func extractPriceCeiling(text string) (float64, bool) {
	m := priceCeilingPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
