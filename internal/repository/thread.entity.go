package repository

import (
	"time"

	"github.com/calvora/sales-gateway/internal/model"
)

type ThreadEntity struct {
	ID        int64     `db:"id"         gorm:"primaryKey;autoIncrement;column:id"`
	ContactID int64     `db:"contact_id" gorm:"column:contact_id;not null;index"`
	Label     string    `db:"label"      gorm:"column:label"`
	CreatedAt time.Time `db:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (ThreadEntity) TableName() string {
	return "threads"
}

func toThreadEntity(m *model.Thread) *ThreadEntity {
	if m == nil {
		return nil
	}
	return &ThreadEntity{
		ID:        m.ID,
		ContactID: m.ContactID,
		Label:     m.Label,
		CreatedAt: m.CreatedAt,
	}
}

func toThreadModel(e *ThreadEntity) *model.Thread {
	if e == nil {
		return nil
	}
	return &model.Thread{
		ID:        e.ID,
		ContactID: e.ContactID,
		Label:     e.Label,
		CreatedAt: e.CreatedAt,
	}
}
