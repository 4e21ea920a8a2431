package model

import "time"

// Thread is a conversation container scoping ordered messages to one
// contact. Lazily created the first time a message is sent or received
// for a contact on a given label.
type Thread struct {
	ID        int64     `json:"id"         db:"id"         gorm:"primaryKey;autoIncrement;column:id"`
	ContactID int64     `json:"contact_id" db:"contact_id" gorm:"column:contact_id;not null;index"`
	Label     string    `json:"label"      db:"label"      gorm:"column:label"`
	CreatedAt time.Time `json:"created_at" db:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (Thread) TableName() string { return "threads" }
