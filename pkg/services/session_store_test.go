package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"smartwaste-api/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySessionStoreRoundTrip(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()

	_, err := store.Load(ctx, "s1")
	assert.True(t, errors.Is(err, ErrSessionNotFound))

	state := models.SessionState{
		ID:       "s1",
		Memory:   models.ConversationMemory{InterestedCategories: []models.Category{models.CategoryHome}},
		History:  []string{"hello"},
		Feedback: map[string]bool{},
	}
	require.NoError(t, store.Save(ctx, state))

	// 保存後に呼び出し側の値を変更してもストアには影響しない
	state.History[0] = "mutated"
	state.Memory.InterestedCategories = append(state.Memory.InterestedCategories, models.CategoryClothing)

	loaded, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"hello"}, loaded.History)
	assert.Equal(t, []models.Category{models.CategoryHome}, loaded.Memory.InterestedCategories)

	require.NoError(t, store.Delete(ctx, "s1"))
	_, err = store.Load(ctx, "s1")
	assert.True(t, errors.Is(err, ErrSessionNotFound))
}

func TestRedisSessionStoreUnreachable(t *testing.T) {
	_, err := NewRedisSessionStore("127.0.0.1:1", "", 0, time.Hour)
	assert.Error(t, err)
}

func TestDelayers(t *testing.T) {
	assert.IsType(t, NoDelay{}, NewDelayer(0))
	assert.IsType(t, TimerDelay{}, NewDelayer(time.Millisecond))

	assert.NoError(t, TimerDelay{Duration: time.Millisecond}.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, TimerDelay{Duration: time.Hour}.Wait(ctx), context.Canceled)
	assert.ErrorIs(t, NoDelay{}.Wait(ctx), context.Canceled)
}
