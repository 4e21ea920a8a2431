package repository

import (
	"context"
	"testing"

	"github.com/calvora/sales-gateway/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThreadRepository_FindOrCreate(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewThreadRepository(db)
	ctx := context.Background()

	t.Run("creates lazily", func(t *testing.T) {
		th, err := repo.FindOrCreate(ctx, 1, "sms")
		require.NoError(t, err)
		assert.NotZero(t, th.ID)
		assert.Equal(t, int64(1), th.ContactID)
		assert.Equal(t, "sms", th.Label)
	})

	t.Run("reuses the contact thread regardless of label", func(t *testing.T) {
		first, err := repo.FindOrCreate(ctx, 2, "sms")
		require.NoError(t, err)

		second, err := repo.FindOrCreate(ctx, 2, "whatsapp")
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, "sms", second.Label)
	})
}

func TestMessageRepository_Create(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewMessageRepository(db)
	ctx := context.Background()

	created, err := repo.Create(ctx, &model.Message{
		ThreadID:  1,
		Channel:   model.MessageChannelSMS,
		Direction: model.MessageDirectionInbound,
		Status:    model.MessageStatusReceived,
		Body:      "hi there",
		Metadata:  map[string]string{model.MetaProviderMessageID: "SM123", model.MetaFrom: "+15551234567"},
	})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "SM123", created.ProviderMessageID())

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "hi there", got.Body)
	assert.Equal(t, "SM123", got.Metadata[model.MetaProviderMessageID])
	assert.Equal(t, "+15551234567", got.Metadata[model.MetaFrom])
}

func TestMessageRepository_ReplayIsNotDeduplicated(t *testing.T) {
	// Replayed inbound webhooks create a second row. This pins down the
	// current behavior rather than endorsing it.
	db := setupTestDB(t).DB
	repo := NewMessageRepository(db)
	ctx := context.Background()

	msg := &model.Message{
		ThreadID:  5,
		Channel:   model.MessageChannelSMS,
		Direction: model.MessageDirectionInbound,
		Status:    model.MessageStatusReceived,
		Body:      "same webhook twice",
		Metadata:  map[string]string{model.MetaProviderMessageID: "SM999"},
	}

	_, err := repo.Create(ctx, msg)
	require.NoError(t, err)
	msg.ID = 0
	_, err = repo.Create(ctx, msg)
	require.NoError(t, err)

	threadID := int64(5)
	_, total, err := repo.List(ctx, model.MessageFilter{ThreadID: &threadID, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}

func TestMessageRepository_UpdateStatusByProviderID(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewMessageRepository(db)
	ctx := context.Background()

	created, err := repo.Create(ctx, &model.Message{
		ThreadID:  2,
		Channel:   model.MessageChannelEmail,
		Direction: model.MessageDirectionOutbound,
		Status:    model.MessageStatusSent,
		Body:      "quarterly update",
		Metadata:  map[string]string{model.MetaProviderMessageID: "em-42"},
	})
	require.NoError(t, err)

	t.Run("matching provider id updates status", func(t *testing.T) {
		rows, err := repo.UpdateStatusByProviderID(ctx, "em-42", model.MessageStatusDelivered)
		require.NoError(t, err)
		assert.Equal(t, int64(1), rows)

		got, err := repo.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, model.MessageStatusDelivered, got.Status)
	})

	t.Run("unknown provider id matches nothing", func(t *testing.T) {
		rows, err := repo.UpdateStatusByProviderID(ctx, "em-unknown", model.MessageStatusDelivered)
		require.NoError(t, err)
		assert.Zero(t, rows)
	})

	t.Run("empty provider id matches nothing", func(t *testing.T) {
		rows, err := repo.UpdateStatusByProviderID(ctx, "", model.MessageStatusDelivered)
		require.NoError(t, err)
		assert.Zero(t, rows)
	})
}

func TestMessageRepository_List(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewMessageRepository(db)
	ctx := context.Background()

	threadID := int64(77)
	for _, ch := range []model.MessageChannel{model.MessageChannelSMS, model.MessageChannelSMS, model.MessageChannelWhatsApp} {
		_, err := repo.Create(ctx, &model.Message{
			ThreadID:  threadID,
			Channel:   ch,
			Direction: model.MessageDirectionOutbound,
			Status:    model.MessageStatusSent,
			Body:      "b",
		})
		require.NoError(t, err)
	}

	t.Run("channel filter", func(t *testing.T) {
		ch := model.MessageChannelSMS
		msgs, total, err := repo.List(ctx, model.MessageFilter{ThreadID: &threadID, Channel: &ch, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.Len(t, msgs, 2)
	})

	t.Run("status filter", func(t *testing.T) {
		msgs, total, err := repo.List(ctx, model.MessageFilter{
			ThreadID: &threadID,
			Statuses: []model.MessageStatus{model.MessageStatusSent, model.MessageStatusDelivered},
			Limit:    10,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Len(t, msgs, 3)
	})
}

func TestCrmIntegrationRepository_Upsert(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewCrmIntegrationRepository(db)
	ctx := context.Background()

	first, err := repo.Upsert(ctx, &model.CrmIntegration{
		UserID:      1,
		Platform:    model.CrmPlatformHubSpot,
		AccessToken: "tok-1",
		Active:      true,
	})
	require.NoError(t, err)
	assert.Equal(t, "tok-1", first.AccessToken)

	second, err := repo.Upsert(ctx, &model.CrmIntegration{
		UserID:      1,
		Platform:    model.CrmPlatformHubSpot,
		AccessToken: "tok-2",
		Active:      true,
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "tok-2", second.AccessToken)

	t.Run("GetActive honors the active flag", func(t *testing.T) {
		require.NoError(t, repo.Deactivate(ctx, 1, model.CrmPlatformHubSpot))
		_, err := repo.GetActive(ctx, 1, model.CrmPlatformHubSpot)
		assert.ErrorIs(t, err, ErrIntegrationNotFound)
	})
}
