// Package repository defines the place and user stores and their Postgres
// implementation. Other backends live in subpackages.
package repository

import (
	"context"
	"errors"

	"places-backend/internal/models"
)

// ErrNotFound is returned when the requested document does not exist
var ErrNotFound = errors.New("not found")

// PlaceRepository provides access to the place collection
type PlaceRepository interface {
	Create(ctx context.Context, place *models.Place) error
	GetByID(ctx context.Context, id string) (*models.Place, error)
	// GetWithCreator loads a place together with its owning user. The user
	// is nil when the creator document is missing.
	GetWithCreator(ctx context.Context, id string) (*models.Place, *models.User, error)
	// Update persists title and description only.
	Update(ctx context.Context, place *models.Place) error
	Delete(ctx context.Context, id string) error
}

// UserRepository provides access to the user collection
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	// PlacesOf resolves the user's places list in list order.
	PlacesOf(ctx context.Context, userID string) ([]*models.Place, error)
	AddPlace(ctx context.Context, userID, placeID string) error
	RemovePlace(ctx context.Context, userID, placeID string) error
}

// Store is the persistence handle injected into services
type Store interface {
	Places() PlaceRepository
	Users() UserRepository
	// WithTx runs fn against a transaction-bound store. The transaction
	// commits when fn returns nil and aborts otherwise.
	WithTx(ctx context.Context, fn func(tx Store) error) error
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
