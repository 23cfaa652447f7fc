package services

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"strings"
	"time"

	"smartwaste-api/pkg/models"

	"github.com/google/uuid"
	qdrant "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

const (
	interactionCollection = "smartwaste_interactions"
	defaultSimilarLimit   = 5
)

// 特徴ベクトルの各区画（順序固定）
var (
	featureIntents = []models.Intent{
		models.IntentGreeting, models.IntentSearchProduct, models.IntentPriceInquiry,
		models.IntentDealInquiry, models.IntentRecommendation, models.IntentComparison,
		models.IntentWasteReduction, models.IntentComplaint, models.IntentCompliment,
		models.IntentGeneral,
	}
	featureSentiments = []models.Sentiment{models.SentimentPositive, models.SentimentNegative, models.SentimentNeutral}
	featureUrgencies  = []models.Urgency{models.UrgencyLow, models.UrgencyMedium, models.UrgencyHigh}
)

// featureVectorSize 意図10 + カテゴリ4 + 感情3 + 緊急度3
var featureVectorSize = len(featureIntents) + len(models.Categories) + len(featureSentiments) + len(featureUrgencies)

// InteractionArchive は解析済みの発話を保存し、似た発話を検索します。
type InteractionArchive interface {
	Archive(ctx context.Context, sessionID, message string, analysis models.IntentAnalysis) error
	Similar(ctx context.Context, analysis models.IntentAnalysis, limit uint64) ([]models.ArchivedInteraction, error)
}

// NopInteractionArchive Qdrant未設定時に使う何もしないアーカイブ
type NopInteractionArchive struct{}

func (NopInteractionArchive) Archive(context.Context, string, string, models.IntentAnalysis) error {
	return nil
}

func (NopInteractionArchive) Similar(context.Context, models.IntentAnalysis, uint64) ([]models.ArchivedInteraction, error) {
	return []models.ArchivedInteraction{}, nil
}

// featureVector は意図解析結果を固定長のベクトルに変換します。
func featureVector(a models.IntentAnalysis) []float32 {
	vec := make([]float32, featureVectorSize)
	offset := 0
	oneHot := func(n int, match func(i int) bool) {
		for i := 0; i < n; i++ {
			if match(i) {
				vec[offset+i] = 1
			}
		}
		offset += n
	}

	oneHot(len(featureIntents), func(i int) bool { return featureIntents[i] == a.Intent })
	oneHot(len(models.Categories), func(i int) bool { return containsCategory(a.Entities, models.Categories[i]) })
	oneHot(len(featureSentiments), func(i int) bool { return featureSentiments[i] == a.Sentiment })
	oneHot(len(featureUrgencies), func(i int) bool { return featureUrgencies[i] == a.Urgency })
	return vec
}

// QdrantInteractionArchive はQdrantに会話の特徴ベクトルを保存します
type QdrantInteractionArchive struct {
	points      qdrant.PointsClient
	collections qdrant.CollectionsClient
	conn        *grpc.ClientConn
	now         func() time.Time
}

// NewQdrantInteractionArchive Qdrantに接続し、コレクションがなければ作成します。
func NewQdrantInteractionArchive(ctx context.Context, qdrantURL, qdrantAPIKey string) (*QdrantInteractionArchive, error) {
	var dialOpts []grpc.DialOption

	// APIキーの有無でCloud接続(TLS+APIキー)とローカル接続(非セキュア)を切り替える
	if qdrantAPIKey != "" {
		log.Println("🔐 Qdrant Cloud (TLS) への接続を準備します...")
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{})))
		authInterceptor := func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
			ctx = metadata.AppendToOutgoingContext(ctx, "api-key", qdrantAPIKey)
			return invoker(ctx, method, req, reply, cc, opts...)
		}
		dialOpts = append(dialOpts, grpc.WithUnaryInterceptor(authInterceptor))
	} else {
		log.Println("🔌 ローカルのQdrant (非TLS) への接続を準備します...")
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	conn, err := grpc.NewClient(qdrantURL, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("QdrantへのgRPCクライアント作成に失敗: %w", err)
	}

	archive := &QdrantInteractionArchive{
		points:      qdrant.NewPointsClient(conn),
		collections: qdrant.NewCollectionsClient(conn),
		conn:        conn,
		now:         time.Now,
	}
	if err := archive.ensureCollection(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return archive, nil
}

func (a *QdrantInteractionArchive) ensureCollection(ctx context.Context) error {
	const maxRetries = 5
	retryInterval := 2 * time.Second

	var res *qdrant.ListCollectionsResponse
	var err error
	for i := 0; i < maxRetries; i++ {
		listCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		res, err = a.collections.List(listCtx, &qdrant.ListCollectionsRequest{})
		cancel()
		if err == nil {
			break
		}
		log.Printf("⏳ Qdrantサーバーの準備確認に失敗 (試行 %d/%d): %v", i+1, maxRetries, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	if err != nil {
		return fmt.Errorf("Qdrantのコレクションリスト取得に失敗: %w", err)
	}

	for _, c := range res.GetCollections() {
		if c.GetName() == interactionCollection {
			log.Printf("📚 コレクション '%s' は既に存在します", interactionCollection)
			return nil
		}
	}

	createCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err = a.collections.Create(createCtx, &qdrant.CreateCollection{
		CollectionName: interactionCollection,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     uint64(featureVectorSize),
					Distance: qdrant.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("Qdrantのコレクション作成に失敗: %w", err)
	}
	log.Printf("📚 コレクション '%s' を作成しました", interactionCollection)
	return nil
}

// Archive 発話と解析結果をQdrantにUpsert
func (a *QdrantInteractionArchive) Archive(ctx context.Context, sessionID, message string, analysis models.IntentAnalysis) error {
	pointID := uuid.New().String()
	wait := true
	_, err := a.points.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: interactionCollection,
		Wait:           &wait,
		Points: []*qdrant.PointStruct{
			{
				Id: &qdrant.PointId{PointIdOptions: &qdrant.PointId_Uuid{Uuid: pointID}},
				Vectors: &qdrant.Vectors{
					VectorsOptions: &qdrant.Vectors_Vector{Vector: &qdrant.Vector{Data: featureVector(analysis)}},
				},
				Payload: interactionPayload(sessionID, message, analysis, a.now()),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("Qdrantへの会話保存に失敗: %w", err)
	}
	return nil
}

// Similar 解析結果が似ている過去の発話を検索
func (a *QdrantInteractionArchive) Similar(ctx context.Context, analysis models.IntentAnalysis, limit uint64) ([]models.ArchivedInteraction, error) {
	if limit == 0 {
		limit = defaultSimilarLimit
	}
	res, err := a.points.Search(ctx, &qdrant.SearchPoints{
		CollectionName: interactionCollection,
		Vector:         featureVector(analysis),
		Limit:          limit,
		WithPayload:    &qdrant.WithPayloadSelector{SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("Qdrantでの類似検索に失敗: %w", err)
	}

	found := make([]models.ArchivedInteraction, 0, len(res.GetResult()))
	for _, p := range res.GetResult() {
		item := interactionFromPayload(p.GetPayload())
		item.ID = p.GetId().GetUuid()
		item.Score = p.GetScore()
		found = append(found, item)
	}
	return found, nil
}

// Close gRPC接続を閉じる
func (a *QdrantInteractionArchive) Close() error {
	return a.conn.Close()
}

func interactionPayload(sessionID, message string, analysis models.IntentAnalysis, at time.Time) map[string]*qdrant.Value {
	str := func(v string) *qdrant.Value { return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: v}} }

	entities := make([]string, 0, len(analysis.Entities))
	for _, e := range analysis.Entities {
		entities = append(entities, string(e))
	}
	return map[string]*qdrant.Value{
		"session_id": str(sessionID),
		"message":    str(message),
		"intent":     str(string(analysis.Intent)),
		"confidence": {Kind: &qdrant.Value_DoubleValue{DoubleValue: analysis.Confidence}},
		"entities":   str(strings.Join(entities, ",")),
		"sentiment":  str(string(analysis.Sentiment)),
		"urgency":    str(string(analysis.Urgency)),
		"created_at": str(at.UTC().Format(time.RFC3339)),
	}
}

func interactionFromPayload(payload map[string]*qdrant.Value) models.ArchivedInteraction {
	str := func(key string) string { return payload[key].GetStringValue() }

	entities := []models.Category{}
	for _, e := range strings.Split(str("entities"), ",") {
		if e != "" {
			entities = append(entities, models.Category(e))
		}
	}
	createdAt, _ := time.Parse(time.RFC3339, str("created_at"))
	return models.ArchivedInteraction{
		SessionID: str("session_id"),
		Message:   str("message"),
		Analysis: models.IntentAnalysis{
			Intent:     models.Intent(str("intent")),
			Confidence: payload["confidence"].GetDoubleValue(),
			Entities:   entities,
			Sentiment:  models.Sentiment(str("sentiment")),
			Urgency:    models.Urgency(str("urgency")),
		},
		CreatedAt: createdAt,
	}
}
