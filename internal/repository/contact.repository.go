package repository

import (
	"context"
	"errors"
	"time"

	"github.com/calvora/sales-gateway/internal/model"
	"github.com/calvora/sales-gateway/pkg/pg"
	"gorm.io/gorm"
)

var (
	ErrContactNotFound = errors.New("contact not found")
)

type ContactRepository struct {
	*pg.DB
}

func NewContactRepository(db *pg.DB) *ContactRepository {
	return &ContactRepository{
		db,
	}
}

func (r *ContactRepository) Create(ctx context.Context, c *model.Contact) (*model.Contact, error) {
	entity := toContactEntity(c)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toContactModel(entity), nil
}

func (r *ContactRepository) GetByID(ctx context.Context, id int64) (*model.Contact, error) {
	var entity ContactEntity
	err := r.Read(ctx).WithContext(ctx).Where("id = ?", id).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrContactNotFound
		}
		return nil, err
	}
	return toContactModel(&entity), nil
}

// GetOwnedByUser enforces the ownership check: a contact belonging to a
// different user is indistinguishable from a missing one.
func (r *ContactRepository) GetOwnedByUser(ctx context.Context, id, userID int64) (*model.Contact, error) {
	var entity ContactEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrContactNotFound
		}
		return nil, err
	}
	return toContactModel(&entity), nil
}

func (r *ContactRepository) FindByPhone(ctx context.Context, phone string) (*model.Contact, error) {
	var entity ContactEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("phone = ?", phone).
		Order("id ASC").
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrContactNotFound
		}
		return nil, err
	}
	return toContactModel(&entity), nil
}

// FindByPhoneForUser scopes the phone lookup to one owning user. Used by
// the WhatsApp webhook where one provider number serves multiple users.
func (r *ContactRepository) FindByPhoneForUser(ctx context.Context, phone string, userID int64) (*model.Contact, error) {
	var entity ContactEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("phone = ? AND user_id = ?", phone, userID).
		Order("id ASC").
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrContactNotFound
		}
		return nil, err
	}
	return toContactModel(&entity), nil
}

// FindByEmail matches inbound email events to a contact by the sender
// address.
func (r *ContactRepository) FindByEmail(ctx context.Context, email string) (*model.Contact, error) {
	var entity ContactEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("email = ?", email).
		Order("id ASC").
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrContactNotFound
		}
		return nil, err
	}
	return toContactModel(&entity), nil
}

// FindOrCreateByPhone runs the create-if-absent sequence in one
// transaction so concurrent webhooks cannot create duplicate contacts
// for the same phone number.
func (r *ContactRepository) FindOrCreateByPhone(ctx context.Context, phone string, defaults *model.Contact) (*model.Contact, error) {
	var result *model.Contact
	err := r.WithinTransaction(ctx, func(ctx context.Context) error {
		var entity ContactEntity
		err := r.Write(ctx).WithContext(ctx).
			Where("phone = ?", phone).
			Order("id ASC").
			First(&entity).
			Error
		if err == nil {
			result = toContactModel(&entity)
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		created := toContactEntity(defaults)
		created.Phone = phone
		if created.Status == "" {
			created.Status = string(model.ContactStatusNew)
		}
		if err := r.Write(ctx).WithContext(ctx).Create(created).Error; err != nil {
			return err
		}
		result = toContactModel(created)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// FindOrCreateByEmail is the email-keyed variant of FindOrCreateByPhone.
func (r *ContactRepository) FindOrCreateByEmail(ctx context.Context, email string, defaults *model.Contact) (*model.Contact, error) {
	var result *model.Contact
	err := r.WithinTransaction(ctx, func(ctx context.Context) error {
		var entity ContactEntity
		err := r.Write(ctx).WithContext(ctx).
			Where("email = ?", email).
			Order("id ASC").
			First(&entity).
			Error
		if err == nil {
			result = toContactModel(&entity)
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		created := toContactEntity(defaults)
		created.Email = email
		if created.Status == "" {
			created.Status = string(model.ContactStatusNew)
		}
		if err := r.Write(ctx).WithContext(ctx).Create(created).Error; err != nil {
			return err
		}
		result = toContactModel(created)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *ContactRepository) Update(ctx context.Context, c *model.Contact) (*model.Contact, error) {
	entity := toContactEntity(c)

	result := r.Write(ctx).WithContext(ctx).
		Model(&ContactEntity{}).
		Where("id = ?", entity.ID).
		Updates(map[string]interface{}{
			"name":     entity.Name,
			"email":    entity.Email,
			"category": entity.Category,
			"status":   entity.Status,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrContactNotFound
	}

	return r.GetByID(ctx, c.ID)
}

// TouchLastContact records the moment an associated call completed.
func (r *ContactRepository) TouchLastContact(ctx context.Context, id int64, at time.Time) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&ContactEntity{}).
		Where("id = ?", id).
		Update("last_contact", at)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrContactNotFound
	}
	return nil
}

func (r *ContactRepository) List(ctx context.Context, f model.ContactFilter) ([]*model.Contact, int64, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&ContactEntity{})

	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	if f.Status != nil {
		q = q.Where("status = ?", string(*f.Status))
	}
	if f.Phone != nil && *f.Phone != "" {
		q = q.Where("phone = ?", *f.Phone)
	}
	if f.Category != nil && *f.Category != "" {
		q = q.Where("category = ?", *f.Category)
	}

	// Count before pagination
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

	var entities []*ContactEntity
	if err := q.Order(order).Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toContactModels(entities), total, nil
}
