package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func ptr[T any](v T) *T { return &v }

func TestMergeCallFields(t *testing.T) {
	base := Call{
		ID:        7,
		SessionID: "s1",
		Direction: CallDirectionOutbound,
		Status:    CallStatusScheduled,
	}

	t.Run("present fields overwrite, absent fields retained", func(t *testing.T) {
		existing := base
		existing.Cost = ptr(1.5)

		merged := MergeCallFields(existing, CallUpdate{Duration: ptr(42)})

		assert.Equal(t, ptr(42), merged.Duration)
		assert.Equal(t, ptr(1.5), merged.Cost)
		assert.Equal(t, CallStatusScheduled, merged.Status)
		assert.Equal(t, "s1", merged.SessionID)
	})

	t.Run("empty status does not clear existing status", func(t *testing.T) {
		existing := base
		existing.Status = CallStatusInProgress

		merged := MergeCallFields(existing, CallUpdate{Transcript: ptr("hello")})

		assert.Equal(t, CallStatusInProgress, merged.Status)
		assert.Equal(t, ptr("hello"), merged.Transcript)
	})

	t.Run("later event overwrites earlier values", func(t *testing.T) {
		existing := base
		existing.Status = CallStatusInProgress
		existing.Duration = ptr(10)

		ended := time.Date(2024, 1, 1, 0, 5, 0, 0, time.UTC)
		merged := MergeCallFields(existing, CallUpdate{
			Status:   CallStatusCompleted,
			Duration: ptr(120),
			EndedAt:  &ended,
		})

		assert.Equal(t, CallStatusCompleted, merged.Status)
		assert.Equal(t, ptr(120), merged.Duration)
		assert.Equal(t, &ended, merged.EndedAt)
	})

	t.Run("existing row is not mutated", func(t *testing.T) {
		existing := base
		_ = MergeCallFields(existing, CallUpdate{Status: CallStatusFailed})
		assert.Equal(t, CallStatusScheduled, existing.Status)
	})
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "+15551234567", NormalizePhone("15551234567"))
	assert.Equal(t, "+15551234567", NormalizePhone(" +15551234567 "))
	assert.Equal(t, "", NormalizePhone("  "))
}
