package repository

import (
	"time"

	"github.com/calvora/sales-gateway/internal/model"
)

type ContactEntity struct {
	ID          int64      `db:"id"           gorm:"primaryKey;autoIncrement;column:id"`
	UserID      *int64     `db:"user_id"      gorm:"column:user_id;index"`
	Name        string     `db:"name"         gorm:"column:name;not null"`
	Phone       string     `db:"phone"        gorm:"column:phone;not null;index"`
	Email       string     `db:"email"        gorm:"column:email"`
	Category    string     `db:"category"     gorm:"column:category"`
	Source      string     `db:"source"       gorm:"column:source"`
	Status      string     `db:"status"       gorm:"column:status;not null;default:new"`
	LastContact *time.Time `db:"last_contact" gorm:"column:last_contact"`
	CreatedAt   time.Time  `db:"created_at"   gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `db:"updated_at"   gorm:"column:updated_at;autoUpdateTime"`
}

func (ContactEntity) TableName() string {
	return "contacts"
}

func toContactEntity(m *model.Contact) *ContactEntity {
	if m == nil {
		return nil
	}
	return &ContactEntity{
		ID:          m.ID,
		UserID:      m.UserID,
		Name:        m.Name,
		Phone:       m.Phone,
		Email:       m.Email,
		Category:    m.Category,
		Source:      m.Source,
		Status:      string(m.Status),
		LastContact: m.LastContact,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func toContactModel(e *ContactEntity) *model.Contact {
	if e == nil {
		return nil
	}
	return &model.Contact{
		ID:          e.ID,
		UserID:      e.UserID,
		Name:        e.Name,
		Phone:       e.Phone,
		Email:       e.Email,
		Category:    e.Category,
		Source:      e.Source,
		Status:      model.ContactStatus(e.Status),
		LastContact: e.LastContact,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

func toContactModels(entities []*ContactEntity) []*model.Contact {
	if entities == nil {
		return nil
	}
	models := make([]*model.Contact, len(entities))
	for i, e := range entities {
		models[i] = toContactModel(e)
	}
	return models
}
