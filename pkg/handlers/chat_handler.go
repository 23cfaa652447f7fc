package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"smartwaste-api/pkg/models"
	"smartwaste-api/pkg/services"

	"github.com/gin-gonic/gin"
)

const archiveTimeout = 5 * time.Second

// ChatHandler ショッピングアシスタントのチャットAPI
type ChatHandler struct {
	conversation *services.ConversationService
	sessions     services.SessionStore
	archive      services.InteractionArchive
	delay        services.Delayer
	monitoring   *services.MonitoringService
}

// NewChatHandler 新しいチャットハンドラーを作成
func NewChatHandler(
	conversation *services.ConversationService,
	sessions services.SessionStore,
	archive services.InteractionArchive,
	delay services.Delayer,
	monitoring *services.MonitoringService,
) *ChatHandler {
	if archive == nil {
		archive = services.NopInteractionArchive{}
	}
	if delay == nil {
		delay = services.NoDelay{}
	}
	return &ChatHandler{
		conversation: conversation,
		sessions:     sessions,
		archive:      archive,
		delay:        delay,
		monitoring:   monitoring,
	}
}

// loadOrCreate は保存済みセッションを読み込み、なければ新規作成します。
func (h *ChatHandler) loadOrCreate(ctx context.Context, id string) (models.SessionState, error) {
	if id == "" {
		return h.conversation.NewSession(""), nil
	}
	state, err := h.sessions.Load(ctx, id)
	if errors.Is(err, services.ErrSessionNotFound) {
		return h.conversation.NewSession(id), nil
	}
	if err != nil {
		return models.SessionState{}, fmt.Errorf("failed to load session: %w", err)
	}
	return state, nil
}

// SendMessage 発話を受け取り、応答と更新後のセッション記憶を返します。
func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req models.ChatMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "リクエストの形式が正しくありません: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		respondBadRequest(c, "メッセージが必要です")
		return
	}

	ctx := c.Request.Context()
	state, err := h.loadOrCreate(ctx, req.SessionID)
	if err != nil {
		respondError(c, err)
		return
	}

	reply, next := h.conversation.Respond(state, models.ChatInput{
		Message:     req.Message,
		Context:     req.Context,
		Preferences: req.Preferences,
	})

	// 応答待ちの演出。キャンセル時はセッションを更新しない
	if err := h.delay.Wait(ctx); err != nil {
		log.Printf("⏹️ [チャット] 応答前にキャンセルされました: session=%s", next.ID)
		c.AbortWithStatus(499)
		return
	}

	if err := h.sessions.Save(ctx, next); err != nil {
		respondError(c, fmt.Errorf("failed to save session: %w", err))
		return
	}

	analysis := *reply.Analysis
	go func(sessionID, message string) {
		archiveCtx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()
		if err := h.archive.Archive(archiveCtx, sessionID, message, analysis); err != nil {
			log.Printf("⚠️ [チャット] 会話アーカイブへの保存に失敗: %v", err)
		}
	}(next.ID, req.Message)

	if h.monitoring != nil {
		h.monitoring.RecordEvent(services.EventChatMessage, fmt.Sprintf("%s (%.2f)", analysis.Intent, analysis.Confidence))
	}
	log.Printf("💬 [チャット] session=%s intent=%s products=%d", next.ID, analysis.Intent, len(reply.Products))

	respondOK(c, http.StatusOK, gin.H{
		"session_id":    next.ID,
		"reply":         reply,
		"memory":        next.Memory,
		"message_count": next.MessageCount,
	})
}

// AnalyzeMessage 意図解析のみ（セッションは変更しない）
func (h *ChatHandler) AnalyzeMessage(c *gin.Context) {
	var req models.ChatAnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "リクエストの形式が正しくありません: "+err.Error())
		return
	}
	respondOK(c, http.StatusOK, h.conversation.AnalyzeIntent(req.Message, req.Context))
}

// SubmitFeedback 応答への評価を記録
func (h *ChatHandler) SubmitFeedback(c *gin.Context) {
	var req models.ChatFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "リクエストの形式が正しくありません: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	state, err := h.sessions.Load(ctx, req.SessionID)
	if err != nil {
		respondError(c, err)
		return
	}
	next := h.conversation.RecordFeedback(state, req.MessageID, req.Helpful)
	if err := h.sessions.Save(ctx, next); err != nil {
		respondError(c, fmt.Errorf("failed to save session: %w", err))
		return
	}
	respondOK(c, http.StatusOK, gin.H{"message_id": req.MessageID, "helpful": req.Helpful})
}

// GetSession セッション状態を取得
func (h *ChatHandler) GetSession(c *gin.Context) {
	state, err := h.sessions.Load(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, state)
}

// ClearSession セッションの記憶と履歴をリセット
func (h *ChatHandler) ClearSession(c *gin.Context) {
	ctx := c.Request.Context()
	state, err := h.sessions.Load(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	cleared := h.conversation.ClearMemory(state)
	if err := h.sessions.Save(ctx, cleared); err != nil {
		respondError(c, fmt.Errorf("failed to save session: %w", err))
		return
	}
	log.Printf("🧹 [チャット] セッションの記憶をクリア: %s", cleared.ID)
	respondOK(c, http.StatusOK, cleared)
}

// DeleteSession セッションを削除
func (h *ChatHandler) DeleteSession(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if _, err := h.sessions.Load(ctx, id); err != nil {
		respondError(c, err)
		return
	}
	if err := h.sessions.Delete(ctx, id); err != nil {
		respondError(c, fmt.Errorf("failed to delete session: %w", err))
		return
	}
	log.Printf("🗑️ [チャット] セッションを削除: %s", id)
	respondOK(c, http.StatusOK, gin.H{"session_id": id, "deleted": true})
}

// SimilarInteractions 解析結果が似ている過去の発話を検索
func (h *ChatHandler) SimilarInteractions(c *gin.Context) {
	message := strings.TrimSpace(c.Query("message"))
	if message == "" {
		respondBadRequest(c, "messageパラメータが必要です")
		return
	}
	limit, err := strconv.ParseUint(c.DefaultQuery("limit", "5"), 10, 64)
	if err != nil || limit == 0 || limit > 50 {
		respondBadRequest(c, "limitは1〜50で指定してください")
		return
	}

	analysis := h.conversation.AnalyzeIntent(message, nil)
	similar, err := h.archive.Similar(c.Request.Context(), analysis, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"analysis": analysis, "interactions": similar})
}
