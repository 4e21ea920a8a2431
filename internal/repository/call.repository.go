package repository

import (
	"context"
	"errors"

	"github.com/calvora/sales-gateway/internal/model"
	"github.com/calvora/sales-gateway/pkg/pg"
	"gorm.io/gorm"
)

var (
	ErrCallNotFound = errors.New("call not found")
)

type CallRepository struct {
	*pg.DB
}

func NewCallRepository(db *pg.DB) *CallRepository {
	return &CallRepository{
		db,
	}
}

func (r *CallRepository) Create(ctx context.Context, c *model.Call) (*model.Call, error) {
	entity := toCallEntity(c)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toCallModel(entity), nil
}

func (r *CallRepository) GetBySessionID(ctx context.Context, sessionID string) (*model.Call, error) {
	var entity CallEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("session_id = ?", sessionID).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCallNotFound
		}
		return nil, err
	}
	return toCallModel(&entity), nil
}

func (r *CallRepository) GetOwnedByUser(ctx context.Context, id, userID int64) (*model.Call, error) {
	var entity CallEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCallNotFound
		}
		return nil, err
	}
	return toCallModel(&entity), nil
}

// UpdateBySessionID applies a webhook update to the row matched by
// session id inside one transaction. The read-modify-write goes through
// model.MergeCallFields so fields absent from the payload survive.
func (r *CallRepository) UpdateBySessionID(ctx context.Context, sessionID string, update model.CallUpdate) (*model.Call, error) {
	var merged model.Call
	err := r.WithinTransaction(ctx, func(ctx context.Context) error {
		var entity CallEntity
		err := r.Write(ctx).WithContext(ctx).
			Where("session_id = ?", sessionID).
			First(&entity).
			Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCallNotFound
			}
			return err
		}

		merged = model.MergeCallFields(*toCallModel(&entity), update)
		out := toCallEntity(&merged)

		return r.Write(ctx).WithContext(ctx).
			Model(&CallEntity{}).
			Where("session_id = ?", sessionID).
			Updates(map[string]interface{}{
				"status":            out.Status,
				"started_at":        out.StartedAt,
				"ended_at":          out.EndedAt,
				"duration":          out.Duration,
				"cost":              out.Cost,
				"sentiment":         out.Sentiment,
				"disconnect_reason": out.DisconnectReason,
				"transcript":        out.Transcript,
				"summary":           out.Summary,
				"recording_url":     out.RecordingURL,
				"log_url":           out.LogURL,
			}).Error
	})
	if err != nil {
		return nil, err
	}
	return &merged, nil
}

func (r *CallRepository) List(ctx context.Context, f model.CallFilter) ([]*model.Call, int64, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&CallEntity{})

	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	if f.ContactID != nil {
		q = q.Where("contact_id = ?", *f.ContactID)
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		q = q.Where("status IN ?", statuses)
	}
	if f.Direction != nil {
		q = q.Where("direction = ?", string(*f.Direction))
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

	var entities []*CallEntity
	if err := q.Order(order).Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toCallModels(entities), total, nil
}
