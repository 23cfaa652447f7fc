package models

import "time"

// Category 商品カテゴリ（固定の列挙）
type Category string

const (
	CategoryGroceries   Category = "groceries"
	CategoryElectronics Category = "electronics"
	CategoryClothing    Category = "clothing"
	CategoryHome        Category = "home"
)

// Categories は宣言順のカテゴリ一覧です。
var Categories = []Category{CategoryGroceries, CategoryElectronics, CategoryClothing, CategoryHome}

// IsValid reports whether c is one of the fixed catalog categories.
func (c Category) IsValid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// DealType セールの種類
type DealType string

const (
	DealFlash          DealType = "flash"
	DealWasteReduction DealType = "waste-reduction"
	DealRegular        DealType = "regular"
)

// Deal represents an active price reduction on a catalog product
type Deal struct {
	Discount      int      `json:"discount" yaml:"discount"`             // 割引率（%）
	OriginalPrice float64  `json:"original_price" yaml:"original_price"` // 元の価格
	Type          DealType `json:"type" yaml:"type"`
	ExpiresIn     *int     `json:"expires_in,omitempty" yaml:"expires_in,omitempty"` // 残り時間（時間）
}

// Product represents an immutable catalog entry
type Product struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Category    Category `json:"category" yaml:"category"`
	Price       float64  `json:"price" yaml:"price"`
	Image       string   `json:"image" yaml:"image"`
	Description string   `json:"description,omitempty" yaml:"description"`
	Deal        *Deal    `json:"deal,omitempty" yaml:"deal,omitempty"`
	WasteRisk   string   `json:"waste_risk,omitempty" yaml:"waste_risk,omitempty"` // "low", "medium", "high"
}

// ProductCard is the projection of a product sent with chat replies
type ProductCard struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Price    float64  `json:"price"`
	Image    string   `json:"image"`
	Category Category `json:"category"`
	Deal     *Deal    `json:"deal,omitempty"`
}

// Card は商品をチャット用のカードに変換します。
func (p Product) Card() ProductCard {
	return ProductCard{
		ID:       p.ID,
		Name:     p.Name,
		Price:    p.Price,
		Image:    p.Image,
		Category: p.Category,
		Deal:     p.Deal,
	}
}

// ----- 会話 -----

// Intent 発話の意図
type Intent string

const (
	IntentGreeting       Intent = "greeting"
	IntentSearchProduct  Intent = "search_product"
	IntentPriceInquiry   Intent = "price_inquiry"
	IntentDealInquiry    Intent = "deal_inquiry"
	IntentRecommendation Intent = "recommendation"
	IntentComparison     Intent = "comparison"
	IntentWasteReduction Intent = "waste_reduction"
	IntentComplaint      Intent = "complaint"
	IntentCompliment     Intent = "compliment"
	IntentGeneral        Intent = "general"
)

// Sentiment 感情
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Urgency 緊急度
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// IntentAnalysis is the structured classification of one utterance
type IntentAnalysis struct {
	Intent     Intent     `json:"intent"`
	Confidence float64    `json:"confidence"`
	Entities   []Category `json:"entities"`
	Sentiment  Sentiment  `json:"sentiment"`
	Urgency    Urgency    `json:"urgency"`
}

// PriceRange 価格帯
type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// ConversationMemory holds the rolling user-interest memory of a session
type ConversationMemory struct {
	InterestedCategories []Category  `json:"interested_categories"` // 初出順、重複なし
	PriceRange           *PriceRange `json:"price_range,omitempty"` // 最後に指定された上限
	SessionStart         time.Time   `json:"session_start"`
}

// SessionState is the per-session value passed in and out of the conversation service
type SessionState struct {
	ID           string             `json:"id"`
	Memory       ConversationMemory `json:"memory"`
	History      []string           `json:"history"`
	MessageCount int                `json:"message_count"`
	Feedback     map[string]bool    `json:"feedback,omitempty"` // メッセージID -> 役に立ったか
	UpdatedAt    time.Time          `json:"updated_at"`
}

// UserPreferences optional shopper preferences sent with a message
type UserPreferences struct {
	Budget              float64    `json:"budget,omitempty"`
	Categories          []Category `json:"categories,omitempty"`
	DietaryRestrictions []string   `json:"dietary_restrictions,omitempty"` // 受け付けるが未使用
}

// ChatInput is one utterance plus its rolling context
type ChatInput struct {
	Message     string           `json:"message"`
	Context     []string         `json:"context,omitempty"` // 直近の発話（最大5件、古い順）
	Preferences *UserPreferences `json:"preferences,omitempty"`
}

// ChatReply is the structured reply produced for an utterance
type ChatReply struct {
	MessageID   string          `json:"message_id"`
	Message     string          `json:"message"`
	Products    []ProductCard   `json:"products,omitempty"`
	Suggestions []string        `json:"suggestions,omitempty"`
	Analysis    *IntentAnalysis `json:"analysis,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
}

// ChatMessageRequest represents an incoming chat request
type ChatMessageRequest struct {
	Message     string           `json:"message" binding:"required"`
	SessionID   string           `json:"session_id,omitempty"`
	Context     []string         `json:"context,omitempty"`
	Preferences *UserPreferences `json:"preferences,omitempty"`
}

// ChatAnalyzeRequest 意図解析のみのリクエスト
type ChatAnalyzeRequest struct {
	Message string   `json:"message" binding:"required"`
	Context []string `json:"context,omitempty"`
}

// ChatFeedbackRequest 評価（👍/👎）リクエスト
type ChatFeedbackRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	MessageID string `json:"message_id" binding:"required"`
	Helpful   bool   `json:"helpful"`
}

// ArchivedInteraction 会話アーカイブの1エントリー
type ArchivedInteraction struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id"`
	Message   string         `json:"message"`
	Analysis  IntentAnalysis `json:"analysis"`
	Score     float32        `json:"score,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// ----- 廃棄予測・割引 -----

// TrainingRecord is one historical waste observation supplied by a user
type TrainingRecord struct {
	ProductName     string  `json:"product_name"`
	Category        string  `json:"category"`
	PurchaseDate    string  `json:"purchase_date"` // YYYY-MM-DD
	ExpiryDate      string  `json:"expiry_date"`   // YYYY-MM-DD
	InitialStock    int     `json:"initial_stock"`
	FinalStock      int     `json:"final_stock"`
	WasteAmount     int     `json:"waste_amount"`
	Temperature     float64 `json:"temperature"`
	Humidity        float64 `json:"humidity"`
	PromotionActive bool    `json:"promotion_active"`
	Location        string  `json:"location"`
}

// ModelState is the explicit "trained model" marker read by the discount engine
type ModelState struct {
	Trained     bool       `json:"trained"`
	RecordCount int        `json:"record_count"`
	Accuracy    float64    `json:"accuracy,omitempty"` // 0-1（演出用の値）
	TrainedAt   *time.Time `json:"trained_at,omitempty"`
}

// RiskLevel 予測廃棄率のリスク区分
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// RecommendationStatus 推奨のステータス
type RecommendationStatus string

const (
	StatusPending  RecommendationStatus = "pending"
	StatusApproved RecommendationStatus = "approved"
	StatusRejected RecommendationStatus = "rejected"
)

// DiscountRecommendation is a generated discount suggestion awaiting a human decision
type DiscountRecommendation struct {
	ID                    string               `json:"id"`
	ProductName           string               `json:"product_name"`
	Category              string               `json:"category"`
	CurrentStock          int                  `json:"current_stock"`
	HoursUntilExpiry      int                  `json:"hours_until_expiry"`
	PredictedWasteAmount  int                  `json:"predicted_waste_amount"`
	PredictedWastePercent float64              `json:"predicted_waste_percentage"`
	SuggestedDiscount     int                  `json:"suggested_discount"`
	EstimatedRevenueSaved float64              `json:"estimated_revenue_saved"`
	Confidence            int                  `json:"confidence"` // 0-100
	RiskLevel             RiskLevel            `json:"risk_level"`
	Reasoning             []string             `json:"reasoning"`
	CurrentPrice          float64              `json:"current_price"`
	DiscountedPrice       float64              `json:"discounted_price"`
	AppliedDiscount       *int                 `json:"applied_discount,omitempty"` // 承認時に上書きされた割引率
	Status                RecommendationStatus `json:"status"`
	Timestamp             time.Time            `json:"timestamp"`
	BasedOnDataPoints     int                  `json:"based_on_data_points"`
	HistoricalWasteRate   float64              `json:"historical_waste_rate"`
}

// DecisionType 承認 or 却下
type DecisionType string

const (
	DecisionApproved DecisionType = "approved"
	DecisionRejected DecisionType = "rejected"
)

// DiscountDecision is the append-only audit record of an approve/reject call
type DiscountDecision struct {
	ID                  string       `json:"id"`
	RecommendationID    string       `json:"recommendation_id"`
	RecommendationFound bool         `json:"recommendation_found"` // 未知のIDでも監査行は残す
	ProductName         string       `json:"product_name,omitempty"`
	Decision            DecisionType `json:"decision"`
	ActualDiscount      *int         `json:"actual_discount_applied,omitempty"`
	Notes               string       `json:"notes,omitempty"`
	Timestamp           time.Time    `json:"timestamp"`
}

// RecommendationStats 推奨の集計
type RecommendationStats struct {
	Total                 int     `json:"total"`
	Approved              int     `json:"approved"`
	Rejected              int     `json:"rejected"`
	Pending               int     `json:"pending"`
	ApprovalRate          int     `json:"approval_rate"` // 整数%
	TotalPotentialSavings float64 `json:"total_potential_savings"`
}

// InventorySnapshot is the current-state view of one product fed to the predictor
type InventorySnapshot struct {
	ProductName      string  `json:"product_name"`
	Category         string  `json:"category"`
	CurrentStock     int     `json:"current_stock"`
	HoursUntilExpiry int     `json:"hours_until_expiry"`
	CurrentPrice     float64 `json:"current_price"`
	Temperature      float64 `json:"temperature"`
	Humidity         float64 `json:"humidity"`
}

// ApproveRequest 承認リクエスト
type ApproveRequest struct {
	Discount *int   `json:"discount,omitempty"` // 実際に適用する割引率（任意）
	Notes    string `json:"notes,omitempty"`
}

// RejectRequest 却下リクエスト
type RejectRequest struct {
	Notes string `json:"notes,omitempty"`
}

// TrainingRecordsRequest JSONでの学習データ投入
type TrainingRecordsRequest struct {
	Records []TrainingRecord `json:"records" binding:"required"`
}
