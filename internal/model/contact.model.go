package model

import (
	"errors"
	"strings"
	"time"
)

// ContactStatus is the lifecycle state of a contact.
type ContactStatus string

const (
	ContactStatusNew     ContactStatus = "new"
	ContactStatusPending ContactStatus = "pending"
	ContactStatusReady   ContactStatus = "ready"
)

const (
	// ContactSourceWebhook tags contacts created on first inbound
	// call or message, before any user claims them.
	ContactSourceWebhook = "webhook"
	ContactSourceManual  = "manual"
	ContactSourceCRM     = "crm"
)

type Contact struct {
	ID          int64         `json:"id"           db:"id"           gorm:"primaryKey;autoIncrement;column:id"`
	UserID      *int64        `json:"user_id"      db:"user_id"      gorm:"column:user_id;index"` // nullable until claimed
	Name        string        `json:"name"         db:"name"         gorm:"column:name;not null"`
	Phone       string        `json:"phone"        db:"phone"        gorm:"column:phone;not null;index"` // primary matching key for inbound events
	Email       string        `json:"email"        db:"email"        gorm:"column:email"`
	Category    string        `json:"category"     db:"category"     gorm:"column:category"`
	Source      string        `json:"source"       db:"source"       gorm:"column:source"`
	Status      ContactStatus `json:"status"       db:"status"       gorm:"column:status;not null;default:new"`
	LastContact *time.Time    `json:"last_contact" db:"last_contact" gorm:"column:last_contact"`
	CreatedAt   time.Time     `json:"created_at"   db:"created_at"   gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time     `json:"updated_at"   db:"updated_at"   gorm:"column:updated_at;autoUpdateTime"`
}

func (Contact) TableName() string { return "contacts" }

// ContactCreateRequest is the input for creating a contact.
type ContactCreateRequest struct {
	UserID   int64
	Name     string
	Phone    string
	Email    string
	Category string
	Source   string
}

func (p ContactCreateRequest) Validate() error {
	if p.Name == "" {
		return errors.New("name is required")
	}
	if p.Phone == "" {
		return errors.New("phone is required")
	}
	return nil
}

// ContactFilter controls List queries.
type ContactFilter struct {
	UserID   *int64
	Status   *ContactStatus
	Phone    *string // normalized form
	Category *string
	Limit    int
	Offset   int
	Desc     bool
}

// NormalizePhone reduces a phone number to E.164-ish form: whitespace
// trimmed and a leading "+" guaranteed.
func NormalizePhone(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	if !strings.HasPrefix(s, "+") {
		s = "+" + s
	}
	return s
}
