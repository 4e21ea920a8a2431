package repository

import (
	"context"
	"errors"

	"github.com/calvora/sales-gateway/internal/model"
	"github.com/calvora/sales-gateway/pkg/pg"
	"gorm.io/gorm"
)

var (
	ErrThreadNotFound = errors.New("thread not found")
)

type ThreadRepository struct {
	*pg.DB
}

func NewThreadRepository(db *pg.DB) *ThreadRepository {
	return &ThreadRepository{
		db,
	}
}

// FindOrCreate returns the contact's thread, creating it lazily on the
// first message. The lookup keys on contact id only; the label is
// informational and recorded on creation.
func (r *ThreadRepository) FindOrCreate(ctx context.Context, contactID int64, label string) (*model.Thread, error) {
	var result *model.Thread
	err := r.WithinTransaction(ctx, func(ctx context.Context) error {
		var entity ThreadEntity
		err := r.Write(ctx).WithContext(ctx).
			Where("contact_id = ?", contactID).
			Order("id ASC").
			First(&entity).
			Error
		if err == nil {
			result = toThreadModel(&entity)
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		created := &ThreadEntity{ContactID: contactID, Label: label}
		if err := r.Write(ctx).WithContext(ctx).Create(created).Error; err != nil {
			return err
		}
		result = toThreadModel(created)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *ThreadRepository) GetByContact(ctx context.Context, contactID int64) (*model.Thread, error) {
	var entity ThreadEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("contact_id = ?", contactID).
		Order("id ASC").
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrThreadNotFound
		}
		return nil, err
	}
	return toThreadModel(&entity), nil
}
