package services

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"smartwaste-api/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func exportFixture() []models.DiscountRecommendation {
	applied := 40
	return []models.DiscountRecommendation{
		{
			ID: "01HZX", ProductName: "Milk", Category: "groceries",
			CurrentStock: 40, HoursUntilExpiry: 10,
			PredictedWasteAmount: 16, PredictedWastePercent: 40,
			SuggestedDiscount: 42, AppliedDiscount: &applied,
			EstimatedRevenueSaved: 38.4, Confidence: 75,
			RiskLevel: models.RiskHigh, Reasoning: []string{"a", "b"},
			CurrentPrice: 4, DiscountedPrice: 2.4,
			Status: models.StatusApproved, Timestamp: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
			BasedOnDataPoints: 2, HistoricalWasteRate: 20,
		},
	}
}

func TestWriteRecommendationsCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRecommendationsCSV(&buf, exportFixture()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, recommendationExportHeader, rows[0])
	assert.Equal(t, "Milk", rows[1][1])
	assert.Equal(t, "approved", rows[1][3])
	assert.Equal(t, "40", rows[1][10])
	assert.Equal(t, "2.40", rows[1][12])
	assert.Equal(t, "2024-06-01T09:00:00Z", rows[1][17])
	assert.Equal(t, "a / b", rows[1][18])
}

func TestWriteRecommendationsXLSX(t *testing.T) {
	buf, err := WriteRecommendationsXLSX(exportFixture())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, recommendationSheet, f.GetSheetName(0))
	rows, err := f.GetRows(recommendationSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "ID", rows[0][0])
	assert.Equal(t, "Milk", rows[1][1])
	assert.Equal(t, "42", rows[1][9])
}

func TestWriteRecommendationsEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRecommendationsCSV(&buf, nil))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	_, err = WriteRecommendationsXLSX(nil)
	assert.NoError(t, err)
}
