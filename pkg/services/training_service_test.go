package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"smartwaste-api/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTrainingRecordsAcceptsValidBatch(t *testing.T) {
	records := []models.TrainingRecord{
		wasteRecord("Milk", "groceries", 100, 20),
		{
			ProductName: "Bread", Category: "groceries",
			PurchaseDate: "2024/3/1", ExpiryDate: "2024-03-04T00:00:00Z",
			InitialStock: 10, FinalStock: 0, WasteAmount: 10,
			Temperature: -5, Humidity: 0,
		},
	}
	assert.Empty(t, ValidateTrainingRecords(records))
}

func TestValidateTrainingRecordsReportsEveryProblem(t *testing.T) {
	bad := models.TrainingRecord{
		ProductName:  "",
		Category:     "groceries",
		PurchaseDate: "2024-01-10",
		ExpiryDate:   "2024-01-10",
		InitialStock: 10,
		FinalStock:   12,
		WasteAmount:  11,
		Temperature:  200,
		Humidity:     101,
	}
	problems := ValidateTrainingRecords([]models.TrainingRecord{wasteRecord("Milk", "groceries", 100, 20), bad})

	joined := strings.Join(problems, "\n")
	assert.Len(t, problems, 6)
	for _, p := range problems {
		assert.True(t, strings.HasPrefix(p, "Row 2: "), p)
	}
	assert.Contains(t, joined, "product name is required")
	assert.Contains(t, joined, "expiry date must be after purchase date")
	assert.Contains(t, joined, "waste amount (11) exceeds initial stock (10)")
	assert.Contains(t, joined, "final stock (12) exceeds initial stock (10)")
	assert.Contains(t, joined, "humidity")
	assert.Contains(t, joined, "temperature")
}

func TestValidateTrainingRecordsRejectsNegativesAndBadDates(t *testing.T) {
	r := wasteRecord("Milk", "groceries", 10, 0)
	r.InitialStock = -1
	r.FinalStock = -1
	r.WasteAmount = -1
	r.PurchaseDate = "yesterday"

	problems := ValidateTrainingRecords([]models.TrainingRecord{r})
	joined := strings.Join(problems, "\n")
	assert.Contains(t, joined, "initial stock cannot be negative")
	assert.Contains(t, joined, "final stock cannot be negative")
	assert.Contains(t, joined, "waste amount cannot be negative")
	assert.Contains(t, joined, `purchase date "yesterday" is not a valid date`)
}

func TestValidateTrainingRecordsEmptyBatch(t *testing.T) {
	assert.Equal(t, []string{"no records provided"}, ValidateTrainingRecords(nil))
}

func TestIngestIsAllOrNothing(t *testing.T) {
	svc := NewTrainingService(NoDelay{})
	_, err := svc.Ingest([]models.TrainingRecord{wasteRecord("Milk", "groceries", 100, 20)})
	require.NoError(t, err)

	bad := wasteRecord("Bread", "groceries", 10, 20)
	bad.FinalStock = 0
	_, err = svc.Ingest([]models.TrainingRecord{wasteRecord("Eggs", "groceries", 50, 5), bad})
	ve, ok := AsValidationError(err)
	require.True(t, ok)
	assert.Len(t, ve.Errors, 1)

	records := svc.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "Milk", records[0].ProductName)
}

func TestTrainProducesModelState(t *testing.T) {
	svc := NewTrainingService(NoDelay{})
	fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	_, err := svc.Train(context.Background())
	assert.True(t, errors.Is(err, ErrNoTrainingData))
	assert.False(t, svc.Status().Trained)

	n, err := svc.Ingest(discountHistory())
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	state, err := svc.Train(context.Background())
	require.NoError(t, err)
	assert.True(t, state.Trained)
	assert.Equal(t, 4, state.RecordCount)
	assert.GreaterOrEqual(t, state.Accuracy, 0.85)
	assert.LessOrEqual(t, state.Accuracy, 0.97)
	require.NotNil(t, state.TrainedAt)
	assert.Equal(t, fixed, *state.TrainedAt)
	assert.Equal(t, state, svc.Status())

	model, records := svc.Snapshot()
	assert.True(t, model.Trained)
	assert.Len(t, records, 4)

	// 再投入でモデルは未学習に戻る
	_, err = svc.Ingest(discountHistory()[:1])
	require.NoError(t, err)
	assert.False(t, svc.Status().Trained)
}

func TestTrainCancelledLeavesStateUnchanged(t *testing.T) {
	svc := NewTrainingService(TimerDelay{Duration: time.Hour})
	_, err := svc.Ingest(discountHistory())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.Train(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, svc.Status().Trained)
}
