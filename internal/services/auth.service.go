package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/calvora/sales-gateway/internal/auth"
	"github.com/calvora/sales-gateway/internal/model"
	"github.com/calvora/sales-gateway/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmailTaken         = errors.New("email is already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

type AuthUserRepository interface {
	Create(ctx context.Context, u *model.User) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id int64) (*model.User, error)
}

type AuthService struct {
	userRepo AuthUserRepository
	tokens   *auth.Manager
}

func NewAuthService(userRepo AuthUserRepository, tokens *auth.Manager) *AuthService {
	return &AuthService{userRepo: userRepo, tokens: tokens}
}

// Signup registers a user and returns the signed session token.
func (s *AuthService) Signup(ctx context.Context, p model.SignupRequest) (*model.User, string, error) {
	if err := p.Validate(); err != nil {
		return nil, "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(p.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		Name:         strings.TrimSpace(p.Name),
		Email:        strings.ToLower(strings.TrimSpace(p.Email)),
		Phone:        model.NormalizePhone(p.Phone),
		PasswordHash: string(hash),
	}
	created, err := s.userRepo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, "", ErrEmailTaken
		}
		return nil, "", err
	}

	token, err := s.tokens.Issue(time.Now(), created)
	if err != nil {
		return nil, "", err
	}
	return created, token, nil
}

// Login verifies credentials and returns the signed session token.
func (s *AuthService) Login(ctx context.Context, p model.LoginRequest) (*model.User, string, error) {
	if err := p.Validate(); err != nil {
		return nil, "", err
	}

	user, err := s.userRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(p.Email)))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(p.Password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(time.Now(), user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Me returns the profile of the authenticated user.
func (s *AuthService) Me(ctx context.Context, userID int64) (*model.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}
