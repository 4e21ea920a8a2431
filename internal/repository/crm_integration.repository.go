package repository

import (
	"context"
	"errors"

	"github.com/calvora/sales-gateway/internal/model"
	"github.com/calvora/sales-gateway/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrIntegrationNotFound = errors.New("crm integration not found")
)

type CrmIntegrationRepository struct {
	*pg.DB
}

func NewCrmIntegrationRepository(db *pg.DB) *CrmIntegrationRepository {
	return &CrmIntegrationRepository{
		db,
	}
}

// Upsert stores or replaces the token for one (user, platform) pair.
func (r *CrmIntegrationRepository) Upsert(ctx context.Context, integ *model.CrmIntegration) (*model.CrmIntegration, error) {
	entity := toCrmIntegrationEntity(integ)

	err := r.Write(ctx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "platform"}},
			DoUpdates: clause.AssignmentColumns([]string{"access_token", "active", "updated_at"}),
		}).
		Create(entity).
		Error
	if err != nil {
		return nil, err
	}

	return r.Get(ctx, integ.UserID, integ.Platform)
}

func (r *CrmIntegrationRepository) Get(ctx context.Context, userID int64, platform model.CrmPlatform) (*model.CrmIntegration, error) {
	var entity CrmIntegrationEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("user_id = ? AND platform = ?", userID, string(platform)).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrIntegrationNotFound
		}
		return nil, err
	}
	return toCrmIntegrationModel(&entity), nil
}

// GetActive returns the integration only when its active flag is set.
func (r *CrmIntegrationRepository) GetActive(ctx context.Context, userID int64, platform model.CrmPlatform) (*model.CrmIntegration, error) {
	integ, err := r.Get(ctx, userID, platform)
	if err != nil {
		return nil, err
	}
	if !integ.Active {
		return nil, ErrIntegrationNotFound
	}
	return integ, nil
}

func (r *CrmIntegrationRepository) ListByUser(ctx context.Context, userID int64) ([]*model.CrmIntegration, error) {
	var entities []*CrmIntegrationEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("user_id = ?", userID).
		Order("platform ASC").
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}
	return toCrmIntegrationModels(entities), nil
}

func (r *CrmIntegrationRepository) Deactivate(ctx context.Context, userID int64, platform model.CrmPlatform) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&CrmIntegrationEntity{}).
		Where("user_id = ? AND platform = ?", userID, string(platform)).
		Update("active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrIntegrationNotFound
	}
	return nil
}
