package services

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"smartwaste-api/pkg/models"

	"github.com/xuri/excelize/v2"
)

const recommendationSheet = "Recommendations"

var recommendationExportHeader = []string{
	"ID", "Product", "Category", "Status", "Risk Level",
	"Current Stock", "Hours Until Expiry", "Predicted Waste %", "Predicted Waste Units",
	"Suggested Discount %", "Applied Discount %", "Current Price", "Discounted Price",
	"Estimated Revenue Saved", "Confidence", "Data Points", "Historical Waste Rate %",
	"Generated At", "Reasoning",
}

func recommendationExportRow(r models.DiscountRecommendation) []string {
	applied := ""
	if r.AppliedDiscount != nil {
		applied = strconv.Itoa(*r.AppliedDiscount)
	}
	return []string{
		r.ID,
		r.ProductName,
		r.Category,
		string(r.Status),
		string(r.RiskLevel),
		strconv.Itoa(r.CurrentStock),
		strconv.Itoa(r.HoursUntilExpiry),
		strconv.FormatFloat(r.PredictedWastePercent, 'f', 1, 64),
		strconv.Itoa(r.PredictedWasteAmount),
		strconv.Itoa(r.SuggestedDiscount),
		applied,
		strconv.FormatFloat(r.CurrentPrice, 'f', 2, 64),
		strconv.FormatFloat(r.DiscountedPrice, 'f', 2, 64),
		strconv.FormatFloat(r.EstimatedRevenueSaved, 'f', 2, 64),
		strconv.Itoa(r.Confidence),
		strconv.Itoa(r.BasedOnDataPoints),
		strconv.FormatFloat(r.HistoricalWasteRate, 'f', 1, 64),
		r.Timestamp.Format(time.RFC3339),
		strings.Join(r.Reasoning, " / "),
	}
}

// WriteRecommendationsCSV 推奨一覧をCSVで出力
func WriteRecommendationsCSV(w io.Writer, recs []models.DiscountRecommendation) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(recommendationExportHeader); err != nil {
		return err
	}
	for _, r := range recs {
		if err := cw.Write(recommendationExportRow(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteRecommendationsXLSX 推奨一覧をExcelブックで出力
func WriteRecommendationsXLSX(recs []models.DiscountRecommendation) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), recommendationSheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]interface{}, len(recommendationExportHeader))
	for i, h := range recommendationExportHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(recommendationSheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	for i, r := range recs {
		cells := recommendationExportRow(r)
		row := make([]interface{}, len(cells))
		for j, c := range cells {
			row[j] = c
		}
		// 数値列は数値型で書き込む
		row[5], row[6], row[8], row[9], row[14], row[15] =
			r.CurrentStock, r.HoursUntilExpiry, r.PredictedWasteAmount, r.SuggestedDiscount, r.Confidence, r.BasedOnDataPoints
		row[7], row[11], row[12], row[13], row[16] =
			r.PredictedWastePercent, r.CurrentPrice, r.DiscountedPrice, r.EstimatedRevenueSaved, r.HistoricalWasteRate

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(recommendationSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write xlsx: %w", err)
	}
	return buf, nil
}
