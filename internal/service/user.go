package service

import (
	"context"
	"fmt"

	"github.com/eventpass/eventpass-api/internal/domain"
	"github.com/eventpass/eventpass-api/internal/repository"
)

var (
	ErrUserNotFound = repository.ErrUserNotFound
)

type UserRepository interface {
	FindByID(ctx context.Context, id string) (domain.User, error)
}

type CredentialLister interface {
	FindByUserID(ctx context.Context, userID string) ([]domain.CredentialRecord, error)
}

type UserService struct {
	repo        UserRepository
	credentials CredentialLister
}

func NewUserService(repo UserRepository, credentials CredentialLister) *UserService {
	return &UserService{
		repo:        repo,
		credentials: credentials,
	}
}

func (s *UserService) GetUser(ctx context.Context, id string) (domain.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.User{}, fmt.Errorf("s.repo.FindByID -> %w", err)
	}

	return user, nil
}

func (s *UserService) ListCredentials(ctx context.Context, userID string) ([]domain.CredentialRecord, error) {
	records, err := s.credentials.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("s.credentials.FindByUserID -> %w", err)
	}

	return records, nil
}
