package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	gateway "github.com/calvora/sales-gateway/internal/gateways"
	"github.com/calvora/sales-gateway/internal/model"
	"github.com/calvora/sales-gateway/internal/repository"
	"github.com/calvora/sales-gateway/pkg/logger"
)

var ErrIntegrationNotFound = errors.New("crm integration not found")

type CrmIntegrationRepository interface {
	Upsert(ctx context.Context, integ *model.CrmIntegration) (*model.CrmIntegration, error)
	GetActive(ctx context.Context, userID int64, platform model.CrmPlatform) (*model.CrmIntegration, error)
	ListByUser(ctx context.Context, userID int64) ([]*model.CrmIntegration, error)
	Deactivate(ctx context.Context, userID int64, platform model.CrmPlatform) error
}

type CrmContactRepository interface {
	GetOwnedByUser(ctx context.Context, id, userID int64) (*model.Contact, error)
	FindOrCreateByPhone(ctx context.Context, phone string, defaults *model.Contact) (*model.Contact, error)
}

// CrmGatewayFactory returns the client for one platform; indirection
// keeps the service testable without real CRM hosts.
type CrmGatewayFactory func(platform model.CrmPlatform) (gateway.CrmGateway, error)

// CrmService connects per-user CRM integrations and syncs contacts in
// both directions.
type CrmService struct {
	integrationRepo CrmIntegrationRepository
	contactRepo     CrmContactRepository
	gatewayFor      CrmGatewayFactory
}

func NewCrmService(integrationRepo CrmIntegrationRepository, contactRepo CrmContactRepository, gatewayFor CrmGatewayFactory) *CrmService {
	return &CrmService{
		integrationRepo: integrationRepo,
		contactRepo:     contactRepo,
		gatewayFor:      gatewayFor,
	}
}

// Connect stores (or refreshes) the access token for one platform.
func (s *CrmService) Connect(ctx context.Context, userID int64, p model.CrmConnectRequest) (*model.CrmIntegration, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	return s.integrationRepo.Upsert(ctx, &model.CrmIntegration{
		UserID:      userID,
		Platform:    p.Platform,
		AccessToken: p.AccessToken,
		Active:      true,
	})
}

func (s *CrmService) Disconnect(ctx context.Context, userID int64, platform model.CrmPlatform) error {
	err := s.integrationRepo.Deactivate(ctx, userID, platform)
	if errors.Is(err, repository.ErrIntegrationNotFound) {
		return ErrIntegrationNotFound
	}
	return err
}

func (s *CrmService) List(ctx context.Context, userID int64) ([]*model.CrmIntegration, error) {
	return s.integrationRepo.ListByUser(ctx, userID)
}

// SyncResult reports one import run.
type SyncResult struct {
	Fetched  int `json:"fetched"`
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// Sync imports the platform's contacts into the local store. Contacts
// without a phone number are skipped since phone is the matching key
// for inbound events.
func (s *CrmService) Sync(ctx context.Context, userID int64, platform model.CrmPlatform) (*SyncResult, error) {
	integ, err := s.integrationRepo.GetActive(ctx, userID, platform)
	if err != nil {
		if errors.Is(err, repository.ErrIntegrationNotFound) {
			return nil, ErrIntegrationNotFound
		}
		return nil, err
	}

	gw, err := s.gatewayFor(platform)
	if err != nil {
		return nil, err
	}

	remote, err := gw.FetchContacts(ctx, integ.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("fetch crm contacts: %w", err)
	}

	result := &SyncResult{Fetched: len(remote)}
	for _, rc := range remote {
		if rc.Phone == "" {
			result.Skipped++
			continue
		}
		phone := model.NormalizePhone(rc.Phone)
		_, err := s.contactRepo.FindOrCreateByPhone(ctx, phone, &model.Contact{
			UserID: &userID,
			Name:   rc.Name,
			Email:  rc.Email,
			Source: model.ContactSourceCRM,
			Status: model.ContactStatusNew,
		})
		if err != nil {
			logger.Warn("crm contact import failed", "platform", string(platform), "external_id", rc.ExternalID, "error", err)
			result.Skipped++
			continue
		}
		result.Imported++
	}

	logger.Info("crm sync finished", "platform", string(platform), "user_id", userID, "fetched", result.Fetched, "imported", result.Imported)
	return result, nil
}

// Push writes one local contact to the platform.
func (s *CrmService) Push(ctx context.Context, userID, contactID int64, platform model.CrmPlatform) error {
	integ, err := s.integrationRepo.GetActive(ctx, userID, platform)
	if err != nil {
		if errors.Is(err, repository.ErrIntegrationNotFound) {
			return ErrIntegrationNotFound
		}
		return err
	}

	contact, err := s.contactRepo.GetOwnedByUser(ctx, contactID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrContactNotFound) {
			return ErrContactNotFound
		}
		return err
	}

	gw, err := s.gatewayFor(platform)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	return gw.PushContact(ctx, integ.AccessToken, &gateway.CrmContact{
		Name:  contact.Name,
		Phone: contact.Phone,
		Email: contact.Email,
	})
}
