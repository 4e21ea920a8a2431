package repository

import (
	"context"
	"testing"
	"time"

	"github.com/calvora/sales-gateway/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string    { return &s }
func intPtr(v int) *int          { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestCallRepository_Create(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewCallRepository(db)
	ctx := context.Background()

	created, err := repo.Create(ctx, &model.Call{
		SessionID:      "sess-1",
		ProviderCallID: "call-1",
		UserID:         int64Ptr(1),
		ContactID:      int64Ptr(2),
		Direction:      model.CallDirectionOutbound,
		Status:         model.CallStatusScheduled,
	})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "sess-1", created.SessionID)
	assert.Equal(t, model.CallStatusScheduled, created.Status)
}

func TestCallRepository_GetBySessionID(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewCallRepository(db)
	ctx := context.Background()

	_, err := repo.Create(ctx, &model.Call{
		SessionID: "sess-2",
		Direction: model.CallDirectionInbound,
		Status:    model.CallStatusInProgress,
	})
	require.NoError(t, err)

	t.Run("found", func(t *testing.T) {
		got, err := repo.GetBySessionID(ctx, "sess-2")
		require.NoError(t, err)
		assert.Equal(t, model.CallStatusInProgress, got.Status)
	})

	t.Run("unknown session id", func(t *testing.T) {
		_, err := repo.GetBySessionID(ctx, "sess-unknown")
		assert.ErrorIs(t, err, ErrCallNotFound)
	})
}

func TestCallRepository_UpdateBySessionID(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewCallRepository(db)
	ctx := context.Background()

	_, err := repo.Create(ctx, &model.Call{
		SessionID: "sess-3",
		Direction: model.CallDirectionOutbound,
		Status:    model.CallStatusInProgress,
		Cost:      floatPtr(1.5),
	})
	require.NoError(t, err)

	t.Run("fields present overwrite, absent retained", func(t *testing.T) {
		merged, err := repo.UpdateBySessionID(ctx, "sess-3", model.CallUpdate{
			Duration: intPtr(42),
		})
		require.NoError(t, err)
		assert.Equal(t, intPtr(42), merged.Duration)
		assert.Equal(t, floatPtr(1.5), merged.Cost)
		assert.Equal(t, model.CallStatusInProgress, merged.Status)

		stored, err := repo.GetBySessionID(ctx, "sess-3")
		require.NoError(t, err)
		assert.Equal(t, intPtr(42), stored.Duration)
		assert.Equal(t, floatPtr(1.5), stored.Cost)
	})

	t.Run("completion event", func(t *testing.T) {
		ended := time.Date(2024, 1, 1, 0, 5, 0, 0, time.UTC)
		merged, err := repo.UpdateBySessionID(ctx, "sess-3", model.CallUpdate{
			Status:     model.CallStatusCompleted,
			EndedAt:    &ended,
			Duration:   intPtr(120),
			Summary:    strPtr("left voicemail"),
			Transcript: strPtr("hello"),
		})
		require.NoError(t, err)
		assert.Equal(t, model.CallStatusCompleted, merged.Status)
		assert.Equal(t, intPtr(120), merged.Duration)
		assert.Equal(t, floatPtr(1.5), merged.Cost)
	})

	t.Run("unknown session id", func(t *testing.T) {
		_, err := repo.UpdateBySessionID(ctx, "nope", model.CallUpdate{Status: model.CallStatusFailed})
		assert.ErrorIs(t, err, ErrCallNotFound)
	})
}

func TestCallRepository_List(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewCallRepository(db)
	ctx := context.Background()

	userID := int64(9)
	for i, s := range []model.CallStatus{model.CallStatusScheduled, model.CallStatusCompleted, model.CallStatusFailed} {
		_, err := repo.Create(ctx, &model.Call{
			SessionID: "list-" + string(rune('a'+i)),
			UserID:    &userID,
			Direction: model.CallDirectionOutbound,
			Status:    s,
		})
		require.NoError(t, err)
	}

	t.Run("by user", func(t *testing.T) {
		calls, total, err := repo.List(ctx, model.CallFilter{UserID: &userID, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Len(t, calls, 3)
	})

	t.Run("status filter", func(t *testing.T) {
		calls, total, err := repo.List(ctx, model.CallFilter{
			UserID:   &userID,
			Statuses: []model.CallStatus{model.CallStatusCompleted, model.CallStatusFailed},
			Limit:    10,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.Len(t, calls, 2)
	})
}
