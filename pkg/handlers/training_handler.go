package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"smartwaste-api/pkg/models"
	"smartwaste-api/pkg/services"

	"github.com/gin-gonic/gin"
)

const maxUploadSize = 10 << 20 // 10MB

// TrainingHandler 学習データ投入とモデル学習のAPI
type TrainingHandler struct {
	training   *services.TrainingService
	monitoring *services.MonitoringService
}

// NewTrainingHandler 新しい学習ハンドラーを作成
func NewTrainingHandler(training *services.TrainingService, monitoring *services.MonitoringService) *TrainingHandler {
	return &TrainingHandler{training: training, monitoring: monitoring}
}

func (h *TrainingHandler) ingest(c *gin.Context, records []models.TrainingRecord, source string) {
	count, err := h.training.Ingest(records)
	if err != nil {
		respondError(c, err)
		return
	}
	if h.monitoring != nil {
		h.monitoring.RecordEvent(services.EventTrainingIngested, fmt.Sprintf("%d records from %s", count, source))
	}
	respondOK(c, http.StatusCreated, gin.H{
		"records_ingested": count,
		"model":            h.training.Status(),
	})
}

// SubmitRecords JSONで学習データを投入（既存データは置き換え）
func (h *TrainingHandler) SubmitRecords(c *gin.Context) {
	var req models.TrainingRecordsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "リクエストの形式が正しくありません: "+err.Error())
		return
	}
	h.ingest(c, req.Records, "json")
}

// ListRecords 投入済みの学習データ
func (h *TrainingHandler) ListRecords(c *gin.Context) {
	records := h.training.Records()
	respondOK(c, http.StatusOK, gin.H{"records": records, "count": len(records)})
}

// UploadFile CSV/XLSXファイルで学習データを投入
func (h *TrainingHandler) UploadFile(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	file, fileHeader, err := c.Request.FormFile("file")
	if err != nil {
		respondBadRequest(c, "ファイルの取得に失敗しました。")
		return
	}
	defer file.Close()

	log.Printf("📄 [学習データ] アップロード: %s (%d bytes)", fileHeader.Filename, fileHeader.Size)
	records, err := services.ParseTrainingFile(fileHeader.Filename, file)
	if err != nil {
		if errors.Is(err, services.ErrUnsupportedFileType) {
			respondBadRequest(c, "対応していないファイル形式です。CSVまたはXLSXをアップロードしてください。")
			return
		}
		if _, ok := services.AsValidationError(err); ok {
			respondError(c, err)
			return
		}
		respondBadRequest(c, err.Error())
		return
	}
	h.ingest(c, records, fileHeader.Filename)
}

// TrainModel 投入済みデータでモデルを学習
func (h *TrainingHandler) TrainModel(c *gin.Context) {
	state, err := h.training.Train(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if h.monitoring != nil {
		h.monitoring.RecordEvent(services.EventModelTrained, fmt.Sprintf("accuracy=%.3f records=%d", state.Accuracy, state.RecordCount))
	}
	respondOK(c, http.StatusOK, state)
}

// ModelStatus モデルの状態
func (h *TrainingHandler) ModelStatus(c *gin.Context) {
	respondOK(c, http.StatusOK, h.training.Status())
}
