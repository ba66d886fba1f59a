package repository

import (
	"context"
	"errors"
	"fmt"

	"places-backend/internal/models"

	"github.com/jackc/pgx/v5"
)

// PostgresUserRepository handles database operations for users
type PostgresUserRepository struct {
	db dbtx
}

// NewUserRepository creates a new user repository
func NewUserRepository(db dbtx) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

// Create creates a new user
func (r *PostgresUserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, name, email, image, places, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	places := user.Places
	if places == nil {
		places = []string{}
	}
	_, err := r.db.Exec(ctx, query, user.ID, user.Name, user.Email, user.Image, places, user.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID
func (r *PostgresUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT id, name, email, image, places, created_at
		FROM users
		WHERE id = $1
	`
	var user models.User
	err := r.db.QueryRow(ctx, query, id).Scan(
		&user.ID, &user.Name, &user.Email, &user.Image, &user.Places, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// List returns all users ordered by creation time
func (r *PostgresUserRepository) List(ctx context.Context) ([]*models.User, error) {
	query := `
		SELECT id, name, email, image, places, created_at
		FROM users
		ORDER BY created_at
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		var user models.User
		if err := rows.Scan(&user.ID, &user.Name, &user.Email, &user.Image, &user.Places, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, &user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

// PlacesOf resolves a user's places list against the places table,
// preserving list order
func (r *PostgresUserRepository) PlacesOf(ctx context.Context, userID string) ([]*models.Place, error) {
	query := `
		SELECT ` + placeColumns + `
		FROM users u
		CROSS JOIN LATERAL unnest(u.places) WITH ORDINALITY AS ref(place_id, ord)
		JOIN places p ON p.id = ref.place_id
		WHERE u.id = $1
		ORDER BY ref.ord
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get places of user: %w", err)
	}
	defer rows.Close()

	var places []*models.Place
	for rows.Next() {
		place, err := scanPlace(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan place: %w", err)
		}
		places = append(places, place)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating places: %w", err)
	}

	if len(places) == 0 {
		exists, err := r.exists(ctx, userID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
		}
	}
	return places, nil
}

// AddPlace appends a place ID to the user's places list unless present
func (r *PostgresUserRepository) AddPlace(ctx context.Context, userID, placeID string) error {
	query := `
		UPDATE users
		SET places = CASE WHEN $2 = ANY(places) THEN places ELSE array_append(places, $2) END
		WHERE id = $1
	`
	result, err := r.db.Exec(ctx, query, userID, placeID)
	if err != nil {
		return fmt.Errorf("failed to add place to user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	return nil
}

// RemovePlace pulls a place ID from the user's places list
func (r *PostgresUserRepository) RemovePlace(ctx context.Context, userID, placeID string) error {
	query := `UPDATE users SET places = array_remove(places, $2) WHERE id = $1`
	result, err := r.db.Exec(ctx, query, userID, placeID)
	if err != nil {
		return fmt.Errorf("failed to remove place from user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	return nil
}

func (r *PostgresUserRepository) exists(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return exists, nil
}
