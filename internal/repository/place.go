package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"places-backend/internal/models"

	"github.com/jackc/pgx/v5"
)

const placeColumns = `p.id, p.title, p.description, p.address, p.lat, p.lng, p.image, p.creator, p.created_at, p.updated_at`

// PostgresPlaceRepository handles database operations for places
type PostgresPlaceRepository struct {
	db dbtx
}

// NewPlaceRepository creates a new place repository
func NewPlaceRepository(db dbtx) *PostgresPlaceRepository {
	return &PostgresPlaceRepository{db: db}
}

// Create inserts a new place
func (r *PostgresPlaceRepository) Create(ctx context.Context, place *models.Place) error {
	query := `
		INSERT INTO places (id, title, description, address, lat, lng, image, creator, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.Exec(ctx, query,
		place.ID, place.Title, place.Description, place.Address,
		place.Location.Lat, place.Location.Lng, place.Image, place.Creator,
		place.CreatedAt, place.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create place: %w", err)
	}
	return nil
}

// GetByID retrieves a place by ID
func (r *PostgresPlaceRepository) GetByID(ctx context.Context, id string) (*models.Place, error) {
	query := `SELECT ` + placeColumns + ` FROM places p WHERE p.id = $1`

	place, err := scanPlace(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("place %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get place: %w", err)
	}
	return place, nil
}

// GetWithCreator retrieves a place and its owning user in a single query
func (r *PostgresPlaceRepository) GetWithCreator(ctx context.Context, id string) (*models.Place, *models.User, error) {
	query := `
		SELECT ` + placeColumns + `,
			u.id, u.name, u.email, u.image, u.places, u.created_at
		FROM places p
		LEFT JOIN users u ON u.id = p.creator
		WHERE p.id = $1
	`
	var (
		place     models.Place
		userID    *string
		name      *string
		email     *string
		image     *string
		places    []string
		createdAt *time.Time
	)
	err := r.db.QueryRow(ctx, query, id).Scan(
		&place.ID, &place.Title, &place.Description, &place.Address,
		&place.Location.Lat, &place.Location.Lng, &place.Image, &place.Creator,
		&place.CreatedAt, &place.UpdatedAt,
		&userID, &name, &email, &image, &places, &createdAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, fmt.Errorf("place %s: %w", id, ErrNotFound)
		}
		return nil, nil, fmt.Errorf("failed to get place with creator: %w", err)
	}

	if userID == nil {
		return &place, nil, nil
	}
	user := &models.User{
		ID:     *userID,
		Places: places,
	}
	if name != nil {
		user.Name = *name
	}
	if email != nil {
		user.Email = *email
	}
	if image != nil {
		user.Image = *image
	}
	if createdAt != nil {
		user.CreatedAt = *createdAt
	}
	return &place, user, nil
}

// Update updates the mutable fields of a place
func (r *PostgresPlaceRepository) Update(ctx context.Context, place *models.Place) error {
	query := `UPDATE places SET title = $1, description = $2, updated_at = $3 WHERE id = $4`
	result, err := r.db.Exec(ctx, query, place.Title, place.Description, place.UpdatedAt, place.ID)
	if err != nil {
		return fmt.Errorf("failed to update place: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("place %s: %w", place.ID, ErrNotFound)
	}
	return nil
}

// Delete deletes a place by ID
func (r *PostgresPlaceRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM places WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete place: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("place %s: %w", id, ErrNotFound)
	}
	return nil
}

func scanPlace(row pgx.Row) (*models.Place, error) {
	var place models.Place
	err := row.Scan(
		&place.ID, &place.Title, &place.Description, &place.Address,
		&place.Location.Lat, &place.Location.Lng, &place.Image, &place.Creator,
		&place.CreatedAt, &place.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &place, nil
}
