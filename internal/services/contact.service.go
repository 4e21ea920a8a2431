package services

import (
	"context"
	"errors"

	"github.com/calvora/sales-gateway/internal/model"
	"github.com/calvora/sales-gateway/internal/repository"
)

type ContactStoreRepository interface {
	Create(ctx context.Context, c *model.Contact) (*model.Contact, error)
	GetOwnedByUser(ctx context.Context, id, userID int64) (*model.Contact, error)
	Update(ctx context.Context, c *model.Contact) (*model.Contact, error)
	List(ctx context.Context, f model.ContactFilter) ([]*model.Contact, int64, error)
}

type ContactService struct {
	contactRepo ContactStoreRepository
}

func NewContactService(contactRepo ContactStoreRepository) *ContactService {
	return &ContactService{contactRepo: contactRepo}
}

func (s *ContactService) Create(ctx context.Context, p model.ContactCreateRequest) (*model.Contact, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	source := p.Source
	if source == "" {
		source = model.ContactSourceManual
	}

	return s.contactRepo.Create(ctx, &model.Contact{
		UserID:   &p.UserID,
		Name:     p.Name,
		Phone:    model.NormalizePhone(p.Phone),
		Email:    p.Email,
		Category: p.Category,
		Source:   source,
		Status:   model.ContactStatusNew,
	})
}

func (s *ContactService) Get(ctx context.Context, userID, contactID int64) (*model.Contact, error) {
	contact, err := s.contactRepo.GetOwnedByUser(ctx, contactID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrContactNotFound) {
			return nil, ErrContactNotFound
		}
		return nil, err
	}
	return contact, nil
}

// Update modifies the mutable fields of a contact owned by the caller.
func (s *ContactService) Update(ctx context.Context, userID int64, contact *model.Contact) (*model.Contact, error) {
	existing, err := s.Get(ctx, userID, contact.ID)
	if err != nil {
		return nil, err
	}

	if contact.Name == "" {
		contact.Name = existing.Name
	}
	if contact.Email == "" {
		contact.Email = existing.Email
	}
	if contact.Category == "" {
		contact.Category = existing.Category
	}
	if contact.Status == "" {
		contact.Status = existing.Status
	}

	updated, err := s.contactRepo.Update(ctx, contact)
	if err != nil {
		if errors.Is(err, repository.ErrContactNotFound) {
			return nil, ErrContactNotFound
		}
		return nil, err
	}
	return updated, nil
}

func (s *ContactService) List(ctx context.Context, userID int64, f model.ContactFilter) ([]*model.Contact, int64, error) {
	f.UserID = &userID
	return s.contactRepo.List(ctx, f)
}
