package services

import (
	"context"
	"time"
)

// Delayer は「AIが考えている」演出用の待機を表します。
type Delayer interface {
	Wait(ctx context.Context) error
}

// TimerDelay は指定時間待機します。ctxのキャンセルで中断されます。
type TimerDelay struct {
	Duration time.Duration
}

// Wait implements Delayer.
func (d TimerDelay) Wait(ctx context.Context) error {
	if d.Duration <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d.Duration)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// NoDelay は待機しません（テスト用）。
type NoDelay struct{}

// Wait implements Delayer.
func (NoDelay) Wait(ctx context.Context) error {
	return ctx.Err()
}

// NewDelayer は0以下ならNoDelayを返します。
func NewDelayer(d time.Duration) Delayer {
	if d <= 0 {
		return NoDelay{}
	}
	return TimerDelay{Duration: d}
}
