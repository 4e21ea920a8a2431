package repository

import (
	"context"
	"errors"

	"github.com/calvora/sales-gateway/internal/model"
	"github.com/calvora/sales-gateway/pkg/pg"
	"gorm.io/gorm"
)

var (
	ErrMessageNotFound = errors.New("message not found")
)

type MessageRepository struct {
	*pg.DB
}

func NewMessageRepository(db *pg.DB) *MessageRepository {
	return &MessageRepository{
		db,
	}
}

func (r *MessageRepository) Create(ctx context.Context, msg *model.Message) (*model.Message, error) {
	entity := toMessageEntity(msg)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toMessageModel(entity), nil
}

func (r *MessageRepository) GetByID(ctx context.Context, id int64) (*model.Message, error) {
	var entity MessageEntity
	err := r.Read(ctx).WithContext(ctx).Where("id = ?", id).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return toMessageModel(&entity), nil
}

func (r *MessageRepository) UpdateStatus(ctx context.Context, id int64, status model.MessageStatus) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&MessageEntity{}).
		Where("id = ?", id).
		Update("status", string(status))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// MarkDispatched records the provider outcome of an outbound send: the
// new status plus the provider's message id, which later delivery
// webhooks and history merging key on.
func (r *MessageRepository) MarkDispatched(ctx context.Context, id int64, status model.MessageStatus, providerMessageID string) error {
	updates := map[string]interface{}{
		"status": string(status),
	}
	if providerMessageID != "" {
		updates["provider_message_id"] = providerMessageID
	}
	result := r.Write(ctx).WithContext(ctx).
		Model(&MessageEntity{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// UpdateStatusByProviderID resolves delivery-status webhooks which only
// carry the provider's message id. Returns the number of rows matched;
// zero is not an error because providers replay events for messages this
// system never stored.
func (r *MessageRepository) UpdateStatusByProviderID(ctx context.Context, providerMessageID string, status model.MessageStatus) (int64, error) {
	if providerMessageID == "" {
		return 0, nil
	}
	result := r.Write(ctx).WithContext(ctx).
		Model(&MessageEntity{}).
		Where("provider_message_id = ?", providerMessageID).
		Update("status", string(status))
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *MessageRepository) List(ctx context.Context, f model.MessageFilter) ([]*model.Message, int64, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&MessageEntity{})

	if f.ThreadID != nil {
		q = q.Where("thread_id = ?", *f.ThreadID)
	}
	if f.Channel != nil {
		q = q.Where("channel = ?", string(*f.Channel))
	}
	if f.Direction != nil {
		q = q.Where("direction = ?", string(*f.Direction))
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		q = q.Where("status IN ?", statuses)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at < ?", *f.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "created_at"
	if f.Desc {
		order += " DESC"
	} else {
		order += " ASC"
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var entities []*MessageEntity
	if err := q.Order(order).Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toMessageModels(entities), total, nil
}
