package model

import (
	"errors"
	"time"
)

type CrmPlatform string

const (
	CrmPlatformHubSpot   CrmPlatform = "hubspot"
	CrmPlatformPipedrive CrmPlatform = "pipedrive"
)

// CrmIntegration stores one access token per (user, platform).
type CrmIntegration struct {
	ID          int64       `json:"id"           db:"id"           gorm:"primaryKey;autoIncrement;column:id"`
	UserID      int64       `json:"user_id"      db:"user_id"      gorm:"column:user_id;not null;uniqueIndex:idx_crm_user_platform"`
	Platform    CrmPlatform `json:"platform"     db:"platform"     gorm:"column:platform;not null;uniqueIndex:idx_crm_user_platform"`
	AccessToken string      `json:"-"            db:"access_token" gorm:"column:access_token;not null"`
	Active      bool        `json:"active"       db:"active"       gorm:"column:active;not null;default:true"`
	CreatedAt   time.Time   `json:"created_at"   db:"created_at"   gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time   `json:"updated_at"   db:"updated_at"   gorm:"column:updated_at;autoUpdateTime"`
}

func (CrmIntegration) TableName() string { return "crm_integrations" }

type CrmConnectRequest struct {
	UserID      int64
	Platform    CrmPlatform
	AccessToken string
}

func (p CrmConnectRequest) Validate() error {
	switch p.Platform {
	case CrmPlatformHubSpot, CrmPlatformPipedrive:
	default:
		return errors.New("platform must be hubspot or pipedrive")
	}
	if p.AccessToken == "" {
		return errors.New("access_token is required")
	}
	return nil
}
