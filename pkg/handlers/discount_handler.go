package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"smartwaste-api/pkg/models"
	"smartwaste-api/pkg/services"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// DiscountHandler 割引推奨と承認ワークフローのAPI
type DiscountHandler struct {
	discounts  *services.DiscountService
	training   *services.TrainingService
	monitoring *services.MonitoringService
}

// NewDiscountHandler 新しい割引ハンドラーを作成
func NewDiscountHandler(discounts *services.DiscountService, training *services.TrainingService, monitoring *services.MonitoringService) *DiscountHandler {
	return &DiscountHandler{discounts: discounts, training: training, monitoring: monitoring}
}

func (h *DiscountHandler) recordEvent(kind services.EventKind, detail string) {
	if h.monitoring != nil {
		h.monitoring.RecordEvent(kind, detail)
	}
}

// bindOptionalJSON ボディが空の場合はエラーにしない
func bindOptionalJSON(c *gin.Context, dst interface{}) error {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Generate 学習済みモデルと学習データから推奨を生成
func (h *DiscountHandler) Generate(c *gin.Context) {
	model, records := h.training.Snapshot()
	recs, err := h.discounts.Generate(c.Request.Context(), model, records)
	if err != nil {
		respondError(c, err)
		return
	}
	h.recordEvent(services.EventBatchGenerated, fmt.Sprintf("%d recommendations", len(recs)))
	respondOK(c, http.StatusOK, gin.H{"recommendations": recs, "count": len(recs)})
}

// ListPending 承認待ちの推奨
func (h *DiscountHandler) ListPending(c *gin.Context) {
	recs := h.discounts.Pending()
	if recs == nil {
		recs = []models.DiscountRecommendation{}
	}
	respondOK(c, http.StatusOK, gin.H{"recommendations": recs, "count": len(recs)})
}

// ListAll 全推奨（新しい順）
func (h *DiscountHandler) ListAll(c *gin.Context) {
	recs := h.discounts.All()
	respondOK(c, http.StatusOK, gin.H{"recommendations": recs, "count": len(recs)})
}

// GetRecommendation 推奨の詳細
func (h *DiscountHandler) GetRecommendation(c *gin.Context) {
	rec, err := h.discounts.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, rec)
}

// Approve 推奨を承認（割引率の上書き可）
func (h *DiscountHandler) Approve(c *gin.Context) {
	var req models.ApproveRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		respondBadRequest(c, "リクエストの形式が正しくありません: "+err.Error())
		return
	}

	id := c.Param("id")
	rec, err := h.discounts.Approve(id, req.Discount, req.Notes)
	if err != nil {
		if errors.Is(err, services.ErrRecommendationNotFound) {
			h.recordEvent(services.EventDecisionRecorded, "approved unknown "+id)
		}
		respondError(c, err)
		return
	}
	h.recordEvent(services.EventDecisionRecorded, "approved "+rec.ProductName)
	respondOK(c, http.StatusOK, rec)
}

// Reject 推奨を却下
func (h *DiscountHandler) Reject(c *gin.Context) {
	var req models.RejectRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		respondBadRequest(c, "リクエストの形式が正しくありません: "+err.Error())
		return
	}

	id := c.Param("id")
	rec, err := h.discounts.Reject(id, req.Notes)
	if err != nil {
		if errors.Is(err, services.ErrRecommendationNotFound) {
			h.recordEvent(services.EventDecisionRecorded, "rejected unknown "+id)
		}
		respondError(c, err)
		return
	}
	h.recordEvent(services.EventDecisionRecorded, "rejected "+rec.ProductName)
	respondOK(c, http.StatusOK, rec)
}

// ListDecisions 判断履歴（新しい順）
func (h *DiscountHandler) ListDecisions(c *gin.Context) {
	decisions := h.discounts.Decisions()
	respondOK(c, http.StatusOK, gin.H{"decisions": decisions, "count": len(decisions)})
}

// Stats 推奨の集計
func (h *DiscountHandler) Stats(c *gin.Context) {
	respondOK(c, http.StatusOK, h.discounts.Stats())
}

// RiskDistribution リスク区分ごとの件数
func (h *DiscountHandler) RiskDistribution(c *gin.Context) {
	respondOK(c, http.StatusOK, h.discounts.RiskDistribution())
}

// Export 全推奨をXLSX（既定）またはCSVでダウンロード
func (h *DiscountHandler) Export(c *gin.Context) {
	recs := h.discounts.All()
	stamp := time.Now().Format("20060102-150405")

	switch format := c.DefaultQuery("format", "xlsx"); format {
	case "xlsx":
		buf, err := services.WriteRecommendationsXLSX(recs)
		if err != nil {
			respondError(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="discount-recommendations-%s.xlsx"`, stamp))
		c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
	case "csv":
		var buf bytes.Buffer
		if err := services.WriteRecommendationsCSV(&buf, recs); err != nil {
			respondError(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="discount-recommendations-%s.csv"`, stamp))
		c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
	default:
		respondBadRequest(c, fmt.Sprintf("無効なformatです: %s。'xlsx' または 'csv' を指定してください。", format))
	}
}

// Clear 推奨と判断履歴を全削除
func (h *DiscountHandler) Clear(c *gin.Context) {
	h.discounts.Clear()
	respondOK(c, http.StatusOK, gin.H{"cleared": true})
}
