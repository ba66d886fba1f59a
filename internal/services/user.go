package services

import (
	"context"

	"places-backend/internal/apperror"
	"places-backend/internal/models"
	"places-backend/internal/repository"
)

// UserService handles user-related business logic
type UserService struct {
	store repository.Store
}

// NewUserService creates a new user service
func NewUserService(store repository.Store) *UserService {
	return &UserService{
		store: store,
	}
}

// ListUsers returns every user with its places list
func (s *UserService) ListUsers(ctx context.Context) ([]*models.User, error) {
	users, err := s.store.Users().List(ctx)
	if err != nil {
		return nil, apperror.Store("Fetching users failed, please try again later.", err)
	}
	if users == nil {
		users = []*models.User{}
	}
	return users, nil
}
