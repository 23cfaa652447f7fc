package services

import (
	"fmt"
	"math"
	"strings"
	"time"

	"smartwaste-api/pkg/models"

	"github.com/google/uuid"
)

const (
	contextWindowSize = 5   // 意図判定に使う直近の発話数
	maxHistorySize    = 100 // セッションに保持する発話の上限
	maxSuggestions    = 4
)

// ConversationService はルールベースのチャット応答エンジンです。
// セッション状態は保持せず、呼び出し側から値として受け取り、更新後の値を返します。
type ConversationService struct {
	catalog *CatalogService
	now     func() time.Time
}

// NewConversationService 新しい会話サービスを作成
func NewConversationService(catalog *CatalogService) *ConversationService {
	return &ConversationService{
		catalog: catalog,
		now:     time.Now,
	}
}

// NewSession は空のセッション状態を作成します。idが空ならUUIDを採番します。
func (s *ConversationService) NewSession(id string) models.SessionState {
	if id == "" {
		id = uuid.New().String()
	}
	now := s.now()
	return models.SessionState{
		ID: id,
		Memory: models.ConversationMemory{
			InterestedCategories: []models.Category{},
			SessionStart:         now,
		},
		History:   []string{},
		Feedback:  map[string]bool{},
		UpdatedAt: now,
	}
}

// AnalyzeIntent は発話の意図・カテゴリ・感情・緊急度を判定します。
func (s *ConversationService) AnalyzeIntent(message string, context []string) models.IntentAnalysis {
	text := normalizeUtterance(message)

	analysis := models.IntentAnalysis{
		Intent:     models.IntentGeneral,
		Confidence: 0.5,
		Entities:   detectCategories(text),
		Sentiment:  detectSentiment(text),
		Urgency:    detectUrgency(text),
	}

	for _, rule := range intentRules {
		matches := countMatches(text, rule.keywords)
		if matches == 0 {
			continue
		}
		confidence := math.Min(0.95, 0.6+0.1*float64(matches))
		if contextMentions(context, rule.keywords) {
			confidence += 0.1
		}
		analysis.Intent = rule.intent
		analysis.Confidence = math.Round(math.Min(1.0, confidence)*100) / 100
		break
	}

	return analysis
}

// contextMentions は直前の発話のいずれかが同じ意図のキーワードを含むか
func contextMentions(context []string, keywords []string) bool {
	for _, prior := range context {
		if countMatches(normalizeUtterance(prior), keywords) > 0 {
			return true
		}
	}
	return false
}

// Respond は1つの発話に対する応答を生成し、更新後のセッション状態を返します。
// 渡されたstateは変更しません。
func (s *ConversationService) Respond(state models.SessionState, input models.ChatInput) (models.ChatReply, models.SessionState) {
	next := cloneSession(state)
	now := s.now()

	window := input.Context
	if len(window) == 0 {
		window = next.History
	}
	window = lastN(window, contextWindowSize)

	analysis := s.AnalyzeIntent(input.Message, window)

	// 関心カテゴリを記憶（初出順、1回のみ）
	for _, c := range analysis.Entities {
		if !containsCategory(next.Memory.InterestedCategories, c) {
			next.Memory.InterestedCategories = append(next.Memory.InterestedCategories, c)
		}
	}
	if ceiling, ok := extractPriceCeiling(strings.ToLower(input.Message)); ok {
		next.Memory.PriceRange = &models.PriceRange{Min: 0, Max: ceiling}
	}

	next.History = append(next.History, input.Message)
	if len(next.History) > maxHistorySize {
		next.History = next.History[len(next.History)-maxHistorySize:]
	}
	next.MessageCount++
	next.UpdatedAt = now

	reply := s.buildReply(analysis, effectiveMemory(next.Memory, input.Preferences))
	reply.MessageID = uuid.New().String()
	reply.Timestamp = now
	reply.Analysis = &analysis

	return reply, next
}

// RecordFeedback はメッセージへの評価を記録します（今後の応答には影響しない）。
func (s *ConversationService) RecordFeedback(state models.SessionState, messageID string, helpful bool) models.SessionState {
	next := cloneSession(state)
	next.Feedback[messageID] = helpful
	next.UpdatedAt = s.now()
	return next
}

// ClearMemory はセッションの記憶と履歴をリセットします。
func (s *ConversationService) ClearMemory(state models.SessionState) models.SessionState {
	return s.NewSession(state.ID)
}

// effectiveMemory はリクエストの嗜好設定を記憶に重ねたビューを返す（永続化しない）
func effectiveMemory(memory models.ConversationMemory, prefs *models.UserPreferences) models.ConversationMemory {
	if prefs == nil {
		return memory
	}
	view := memory
	view.InterestedCategories = append([]models.Category{}, memory.InterestedCategories...)
	for _, c := range prefs.Categories {
		if c.IsValid() && !containsCategory(view.InterestedCategories, c) {
			view.InterestedCategories = append(view.InterestedCategories, c)
		}
	}
	if view.PriceRange == nil && prefs.Budget > 0 {
		view.PriceRange = &models.PriceRange{Min: 0, Max: prefs.Budget}
	}
	return view
}

// buildReply は意図ごとのメッセージ・商品・サジェストを組み立てる
func (s *ConversationService) buildReply(analysis models.IntentAnalysis, memory models.ConversationMemory) models.ChatReply {
	var (
		message  string
		products []models.Product
		category *models.Category
	)
	if len(analysis.Entities) > 0 {
		category = &analysis.Entities[0]
	}

	switch analysis.Intent {
	case models.IntentGreeting:
		message = "Hello! Welcome to SmartMart. I can help you find products, today's best deals, and ways to cut food waste. What are you looking for?"

	case models.IntentSearchProduct:
		switch {
		case category != nil && memory.PriceRange != nil:
			products = s.catalog.UnderPrice(memory.PriceRange.Max, category, defaultProductLimit)
			if len(products) > 0 {
				message = fmt.Sprintf("Here are our %s products under %s, lowest price first.", *category, formatMoney(memory.PriceRange.Max))
			} else {
				products = s.catalog.ByCategory(*category, defaultProductLimit)
				message = fmt.Sprintf("I couldn't find any %s under %s, but here is what we have in %s.", *category, formatMoney(memory.PriceRange.Max), *category)
			}
		case category != nil:
			products = s.catalog.ByCategory(*category, defaultProductLimit)
			message = fmt.Sprintf("Here are some great %s products for you!", *category)
		default:
			products = s.catalog.Smart(memory.InterestedCategories)
			if len(memory.InterestedCategories) > 0 {
				message = "Here are a few picks based on what you've been browsing."
			} else {
				message = "Here are some of today's top deals to get you started. Tell me a category like groceries or electronics to narrow it down."
			}
		}

	case models.IntentPriceInquiry:
		if memory.PriceRange != nil {
			products = s.catalog.UnderPrice(memory.PriceRange.Max, category, defaultProductLimit)
			if len(products) > 0 {
				message = fmt.Sprintf("Here are options under %s, sorted by price.", formatMoney(memory.PriceRange.Max))
			} else {
				products = s.catalog.Deals(nil, defaultProductLimit)
				message = fmt.Sprintf("Sorry, I couldn't find anything under %s. Here are our best deals instead.", formatMoney(memory.PriceRange.Max))
			}
		} else {
			products = s.catalog.UnderPrice(math.Inf(1), category, defaultProductLimit)
			if category != nil {
				message = fmt.Sprintf("Here are our %s prices, lowest first. Tell me your budget (for example \"under $20\") and I'll narrow it down.", *category)
			} else {
				message = "Here are our most affordable items. Tell me your budget (for example \"under $20\") and I'll narrow it down."
			}
		}

	case models.IntentDealInquiry:
		products = s.catalog.Deals(category, defaultProductLimit)
		switch {
		case category != nil && len(products) > 0:
			message = fmt.Sprintf("🔥 Here are today's best %s deals, biggest discounts first!", *category)
		case category != nil:
			products = s.catalog.Deals(nil, defaultProductLimit)
			message = fmt.Sprintf("There are no active deals in %s right now. Here are our top deals overall.", *category)
		default:
			message = "🔥 Here are today's best deals, biggest discounts first!"
		}

	case models.IntentRecommendation:
		products = s.catalog.Smart(memory.InterestedCategories)
		if len(memory.InterestedCategories) > 0 {
			message = fmt.Sprintf("Based on your interest in %s, here are my top picks!", joinCategories(memory.InterestedCategories))
		} else {
			message = "Here are my top picks from today's deals!"
		}

	case models.IntentComparison:
		if category != nil {
			products = s.catalog.ByCategory(*category, comparisonLimit)
			message = fmt.Sprintf("Here's a side-by-side look at our %s options. Compare prices and deals below.", *category)
		} else {
			message = "Happy to help you compare! Which category are you interested in: groceries, electronics, clothing, or home?"
		}

	case models.IntentWasteReduction:
		products = s.catalog.WasteReductionDeals(defaultProductLimit)
		message = "🌱 These items are close to their best-before time and discounted to prevent waste. You save money and help reduce food waste!"

	case models.IntentComplaint:
		message = "I'm sorry to hear that. Your feedback matters to us. Could you tell me more about the problem so I can help make it right?"

	case models.IntentCompliment:
		message = "Thank you so much! I'm glad I could help. Is there anything else you'd like to find today?"

	default:
		message = "I'm not sure I understood that. I can help you search for products, find deals, compare items, or discover ways to reduce food waste."
	}

	return models.ChatReply{
		Message:     message,
		Products:    toCards(products),
		Suggestions: buildSuggestions(analysis, memory),
	}
}

// suggestionTemplates 意図ごとの定型サジェスト
var suggestionTemplates = map[models.Intent][]string{
	models.IntentGreeting:       {"Today's best deals", "Find groceries", "Help me reduce waste"},
	models.IntentSearchProduct:  {"Today's best deals", "Compare products"},
	models.IntentPriceInquiry:   {"Show items under $20", "What's on sale?"},
	models.IntentDealInquiry:    {"Flash deals", "Waste-reduction deals"},
	models.IntentRecommendation: {"Show me more", "Today's best deals"},
	models.IntentComparison:     {"Compare electronics", "Compare clothing"},
	models.IntentWasteReduction: {"More eco-friendly deals", "Why does food waste matter?"},
	models.IntentComplaint:      {"Talk to customer support", "Browse deals"},
	models.IntentCompliment:     {"Today's best deals", "Recommend something"},
	models.IntentGeneral:        {"Today's best deals", "Find groceries", "Recommend something", "Help me reduce waste"},
}

// buildSuggestions 定型サジェストにカテゴリ・嗜好由来の候補を加え、最大4件に切り詰める
func buildSuggestions(analysis models.IntentAnalysis, memory models.ConversationMemory) []string {
	candidates := append([]string{}, suggestionTemplates[analysis.Intent]...)
	for _, c := range analysis.Entities {
		candidates = append(candidates, fmt.Sprintf("More %s deals", c))
	}
	for _, c := range memory.InterestedCategories {
		if !containsCategory(analysis.Entities, c) {
			candidates = append(candidates, fmt.Sprintf("Recommended %s for you", c))
		}
	}

	seen := make(map[string]bool, len(candidates))
	suggestions := make([]string, 0, maxSuggestions)
	for _, s := range candidates {
		if seen[s] {
			continue
		}
		seen[s] = true
		suggestions = append(suggestions, s)
		if len(suggestions) == maxSuggestions {
			break
		}
	}
	return suggestions
}

func toCards(products []models.Product) []models.ProductCard {
	if len(products) == 0 {
		return nil
	}
	cards := make([]models.ProductCard, len(products))
	for i, p := range products {
		cards[i] = p.Card()
	}
	return cards
}

func cloneSession(state models.SessionState) models.SessionState {
	next := state
	next.Memory.InterestedCategories = append([]models.Category{}, state.Memory.InterestedCategories...)
	if state.Memory.PriceRange != nil {
		pr := *state.Memory.PriceRange
		next.Memory.PriceRange = &pr
	}
	next.History = append([]string{}, state.History...)
	next.Feedback = make(map[string]bool, len(state.Feedback))
	for k, v := range state.Feedback {
		next.Feedback[k] = v
	}
	return next
}

func containsCategory(list []models.Category, c models.Category) bool {
	for _, item := range list {
		if item == c {
			return true
		}
	}
	return false
}

func lastN(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[len(items)-n:]
}

func joinCategories(categories []models.Category) string {
	names := make([]string, len(categories))
	for i, c := range categories {
		names[i] = string(c)
	}
	if len(names) <= 1 {
		return strings.Join(names, "")
	}
	return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
}

// formatMoney 整数ならセントを省略して表示
func formatMoney(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("$%.0f", v)
	}
	return fmt.Sprintf("$%.2f", v)
}
