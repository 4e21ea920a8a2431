package repository

import (
	"time"

	"github.com/calvora/sales-gateway/internal/model"
)

type CrmIntegrationEntity struct {
	ID          int64     `db:"id"           gorm:"primaryKey;autoIncrement;column:id"`
	UserID      int64     `db:"user_id"      gorm:"column:user_id;not null;uniqueIndex:idx_crm_user_platform"`
	Platform    string    `db:"platform"     gorm:"column:platform;not null;uniqueIndex:idx_crm_user_platform"`
	AccessToken string    `db:"access_token" gorm:"column:access_token;not null"`
	Active      bool      `db:"active"       gorm:"column:active;not null;default:true"`
	CreatedAt   time.Time `db:"created_at"   gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `db:"updated_at"   gorm:"column:updated_at;autoUpdateTime"`
}

func (CrmIntegrationEntity) TableName() string {
	return "crm_integrations"
}

func toCrmIntegrationEntity(m *model.CrmIntegration) *CrmIntegrationEntity {
	if m == nil {
		return nil
	}
	return &CrmIntegrationEntity{
		ID:          m.ID,
		UserID:      m.UserID,
		Platform:    string(m.Platform),
		AccessToken: m.AccessToken,
		Active:      m.Active,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func toCrmIntegrationModel(e *CrmIntegrationEntity) *model.CrmIntegration {
	if e == nil {
		return nil
	}
	return &model.CrmIntegration{
		ID:          e.ID,
		UserID:      e.UserID,
		Platform:    model.CrmPlatform(e.Platform),
		AccessToken: e.AccessToken,
		Active:      e.Active,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

func toCrmIntegrationModels(entities []*CrmIntegrationEntity) []*model.CrmIntegration {
	if entities == nil {
		return nil
	}
	models := make([]*model.CrmIntegration, len(entities))
	for i, e := range entities {
		models[i] = toCrmIntegrationModel(e)
	}
	return models
}
