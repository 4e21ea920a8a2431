package repository

import (
	"context"
	"testing"
	"time"

	"github.com/calvora/sales-gateway/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64Ptr(v int64) *int64 { return &v }

func TestContactRepository_Create(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewContactRepository(db)
	ctx := context.Background()

	t.Run("create contact successfully", func(t *testing.T) {
		c := &model.Contact{
			UserID:   int64Ptr(1),
			Name:     "Ada Lovelace",
			Phone:    "+15551234567",
			Email:    "ada@example.com",
			Category: "analytics",
			Source:   model.ContactSourceManual,
			Status:   model.ContactStatusNew,
		}

		created, err := repo.Create(ctx, c)
		require.NoError(t, err)
		assert.NotZero(t, created.ID)
		assert.Equal(t, "+15551234567", created.Phone)
		assert.Equal(t, model.ContactStatusNew, created.Status)
		assert.NotZero(t, created.CreatedAt)
	})
}

func TestContactRepository_FindOrCreateByPhone(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewContactRepository(db)
	ctx := context.Background()

	t.Run("creates when absent", func(t *testing.T) {
		c, err := repo.FindOrCreateByPhone(ctx, "+15550001111", &model.Contact{
			Name:   "Caller +15550001111",
			Source: model.ContactSourceWebhook,
		})
		require.NoError(t, err)
		assert.NotZero(t, c.ID)
		assert.Equal(t, "+15550001111", c.Phone)
		assert.Equal(t, model.ContactStatusNew, c.Status)
	})

	t.Run("reuses existing contact on second call", func(t *testing.T) {
		first, err := repo.FindOrCreateByPhone(ctx, "+15550002222", &model.Contact{
			Name:   "Caller +15550002222",
			Source: model.ContactSourceWebhook,
		})
		require.NoError(t, err)

		second, err := repo.FindOrCreateByPhone(ctx, "+15550002222", &model.Contact{
			Name:   "should not be used",
			Source: model.ContactSourceWebhook,
		})
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, "Caller +15550002222", second.Name)

		var count int64
		f := model.ContactFilter{Phone: &first.Phone}
		_, count, err = repo.List(ctx, f)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})
}

func TestContactRepository_Ownership(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewContactRepository(db)
	ctx := context.Background()

	created, err := repo.Create(ctx, &model.Contact{
		UserID: int64Ptr(42),
		Name:   "Owned",
		Phone:  "+15550003333",
		Status: model.ContactStatusNew,
	})
	require.NoError(t, err)

	t.Run("owner can fetch", func(t *testing.T) {
		got, err := repo.GetOwnedByUser(ctx, created.ID, 42)
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
	})

	t.Run("other user gets not found", func(t *testing.T) {
		_, err := repo.GetOwnedByUser(ctx, created.ID, 7)
		assert.ErrorIs(t, err, ErrContactNotFound)
	})
}

func TestContactRepository_TouchLastContact(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewContactRepository(db)
	ctx := context.Background()

	created, err := repo.Create(ctx, &model.Contact{
		Name:   "Touched",
		Phone:  "+15550004444",
		Status: model.ContactStatusNew,
	})
	require.NoError(t, err)
	require.Nil(t, created.LastContact)

	at := time.Date(2024, 1, 1, 0, 5, 0, 0, time.UTC)
	require.NoError(t, repo.TouchLastContact(ctx, created.ID, at))

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastContact)
	assert.True(t, got.LastContact.Equal(at))

	t.Run("unknown id", func(t *testing.T) {
		err := repo.TouchLastContact(ctx, 99999, at)
		assert.ErrorIs(t, err, ErrContactNotFound)
	})
}

func TestContactRepository_List(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewContactRepository(db)
	ctx := context.Background()

	userID := int64(100)
	for i := 0; i < 5; i++ {
		_, err := repo.Create(ctx, &model.Contact{
			UserID: &userID,
			Name:   "Contact",
			Phone:  "+1555100000" + string(rune('0'+i)),
			Status: model.ContactStatusNew,
		})
		require.NoError(t, err)
	}

	t.Run("list by user", func(t *testing.T) {
		contacts, total, err := repo.List(ctx, model.ContactFilter{UserID: &userID, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(5), total)
		assert.Len(t, contacts, 5)
	})

	t.Run("pagination", func(t *testing.T) {
		contacts, total, err := repo.List(ctx, model.ContactFilter{UserID: &userID, Limit: 2, Offset: 4})
		require.NoError(t, err)
		assert.Equal(t, int64(5), total)
		assert.Len(t, contacts, 1)
	})

	t.Run("status filter", func(t *testing.T) {
		status := model.ContactStatusReady
		contacts, total, err := repo.List(ctx, model.ContactFilter{UserID: &userID, Status: &status, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(0), total)
		assert.Len(t, contacts, 0)
	})
}
