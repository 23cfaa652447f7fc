package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidState は推奨生成の前提条件（学習済みモデルと学習データ）を満たしていないことを示します。
	ErrInvalidState = errors.New("model must be trained with historical data before generating recommendations")
	// ErrRecommendationNotFound は承認・却下の対象IDが存在しないことを示します。
	ErrRecommendationNotFound = errors.New("recommendation not found")
	// ErrNoTrainingData 学習データ未投入
	ErrNoTrainingData = errors.New("no training data uploaded")
	// ErrModelNotTrained 学習前
	ErrModelNotTrained = errors.New("model has not been trained")
)

// ValidationError は入力バッチの検証エラー一覧です。バッチ全体が拒否されます。
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "validation failed: " + e.Errors[0]
	}
	return fmt.Sprintf("validation failed with %d errors: %s", len(e.Errors), strings.Join(e.Errors, "; "))
}

// AsValidationError はerrがValidationErrorならそれを返します。
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
