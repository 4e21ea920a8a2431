package model

import (
	"errors"
	"strings"
	"time"
)

type User struct {
	ID           int64     `json:"id"    db:"id"            gorm:"primaryKey;autoIncrement;column:id"`
	Name         string    `json:"name"  db:"name"          gorm:"column:name;not null"`
	Email        string    `json:"email" db:"email"         gorm:"column:email;not null;uniqueIndex"`
	Phone        string    `json:"phone" db:"phone"         gorm:"column:phone"` // the user's own outbound number, scopes shared WhatsApp webhooks
	PasswordHash string    `json:"-"     db:"password_hash" gorm:"column:password_hash;not null"`
	CreatedAt    time.Time `json:"created_at" db:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (User) TableName() string { return "users" }

type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

func (p SignupRequest) Validate() error {
	if p.Name == "" {
		return errors.New("name is required")
	}
	if p.Email == "" || !strings.Contains(p.Email, "@") {
		return errors.New("a valid email is required")
	}
	if len(p.Password) < 8 {
		return errors.New("password must be at least 8 characters")
	}
	return nil
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (p LoginRequest) Validate() error {
	if p.Email == "" {
		return errors.New("email is required")
	}
	if p.Password == "" {
		return errors.New("password is required")
	}
	return nil
}
