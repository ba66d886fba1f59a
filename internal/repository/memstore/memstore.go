// Package memstore is an in-memory Store used by tests and the memory
// database driver. Transactions run against a snapshot that replaces the
// live data on commit.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"places-backend/internal/models"
	"places-backend/internal/repository"
)

type data struct {
	places map[string]*models.Place
	users  map[string]*models.User
}

func (d *data) clone() *data {
	out := &data{
		places: make(map[string]*models.Place, len(d.places)),
		users:  make(map[string]*models.User, len(d.users)),
	}
	for id, p := range d.places {
		out.places[id] = copyPlace(p)
	}
	for id, u := range d.users {
		out.users[id] = copyUser(u)
	}
	return out
}

// Store is an in-memory implementation of repository.Store
type Store struct {
	mu   sync.RWMutex
	data *data
	tx   bool
}

// New creates an empty store
func New() *Store {
	return &Store{data: &data{
		places: make(map[string]*models.Place),
		users:  make(map[string]*models.User),
	}}
}

// Places returns the place repository
func (s *Store) Places() repository.PlaceRepository {
	return &placeRepo{s: s}
}

// Users returns the user repository
func (s *Store) Users() repository.UserRepository {
	return &userRepo{s: s}
}

// WithTx runs fn against a snapshot of the store. The snapshot replaces the
// live data only when fn succeeds. Transactions are serialized.
func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.tx {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Store{data: s.data.clone(), tx: true}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("commit aborted: %w", err)
	}
	s.data = tx.data
	return nil
}

// Migrate is a no-op
func (s *Store) Migrate(context.Context) error { return nil }

// Ping always succeeds
func (s *Store) Ping(context.Context) error { return nil }

// Close is a no-op
func (s *Store) Close(context.Context) error { return nil }

func (s *Store) read(fn func(d *data)) {
	if !s.tx {
		s.mu.RLock()
		defer s.mu.RUnlock()
	}
	fn(s.data)
}

func (s *Store) write(ctx context.Context, fn func(d *data) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !s.tx {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	return fn(s.data)
}

type placeRepo struct {
	s *Store
}

func (r *placeRepo) Create(ctx context.Context, place *models.Place) error {
	return r.s.write(ctx, func(d *data) error {
		if _, ok := d.places[place.ID]; ok {
			return fmt.Errorf("place %s already exists", place.ID)
		}
		d.places[place.ID] = copyPlace(place)
		return nil
	})
}

func (r *placeRepo) GetByID(ctx context.Context, id string) (*models.Place, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var place *models.Place
	r.s.read(func(d *data) {
		if p, ok := d.places[id]; ok {
			place = copyPlace(p)
		}
	})
	if place == nil {
		return nil, fmt.Errorf("place %s: %w", id, repository.ErrNotFound)
	}
	return place, nil
}

func (r *placeRepo) GetWithCreator(ctx context.Context, id string) (*models.Place, *models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	var (
		place *models.Place
		user  *models.User
	)
	r.s.read(func(d *data) {
		p, ok := d.places[id]
		if !ok {
			return
		}
		place = copyPlace(p)
		if u, ok := d.users[p.Creator]; ok {
			user = copyUser(u)
		}
	})
	if place == nil {
		return nil, nil, fmt.Errorf("place %s: %w", id, repository.ErrNotFound)
	}
	return place, user, nil
}

func (r *placeRepo) Update(ctx context.Context, place *models.Place) error {
	return r.s.write(ctx, func(d *data) error {
		p, ok := d.places[place.ID]
		if !ok {
			return fmt.Errorf("place %s: %w", place.ID, repository.ErrNotFound)
		}
		p.Title = place.Title
		p.Description = place.Description
		p.UpdatedAt = place.UpdatedAt
		return nil
	})
}

func (r *placeRepo) Delete(ctx context.Context, id string) error {
	return r.s.write(ctx, func(d *data) error {
		if _, ok := d.places[id]; !ok {
			return fmt.Errorf("place %s: %w", id, repository.ErrNotFound)
		}
		delete(d.places, id)
		return nil
	})
}

type userRepo struct {
	s *Store
}

func (r *userRepo) Create(ctx context.Context, user *models.User) error {
	return r.s.write(ctx, func(d *data) error {
		if _, ok := d.users[user.ID]; ok {
			return fmt.Errorf("user %s already exists", user.ID)
		}
		d.users[user.ID] = copyUser(user)
		return nil
	})
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var user *models.User
	r.s.read(func(d *data) {
		if u, ok := d.users[id]; ok {
			user = copyUser(u)
		}
	})
	if user == nil {
		return nil, fmt.Errorf("user %s: %w", id, repository.ErrNotFound)
	}
	return user, nil
}

func (r *userRepo) List(ctx context.Context) ([]*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var users []*models.User
	r.s.read(func(d *data) {
		for _, u := range d.users {
			users = append(users, copyUser(u))
		}
	})
	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID < users[j].ID
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

func (r *userRepo) PlacesOf(ctx context.Context, userID string) ([]*models.Place, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var (
		found  bool
		places []*models.Place
	)
	r.s.read(func(d *data) {
		u, ok := d.users[userID]
		if !ok {
			return
		}
		found = true
		for _, id := range u.Places {
			if p, ok := d.places[id]; ok {
				places = append(places, copyPlace(p))
			}
		}
	})
	if !found {
		return nil, fmt.Errorf("user %s: %w", userID, repository.ErrNotFound)
	}
	return places, nil
}

func (r *userRepo) AddPlace(ctx context.Context, userID, placeID string) error {
	return r.s.write(ctx, func(d *data) error {
		u, ok := d.users[userID]
		if !ok {
			return fmt.Errorf("user %s: %w", userID, repository.ErrNotFound)
		}
		if !u.HasPlace(placeID) {
			u.Places = append(u.Places, placeID)
		}
		return nil
	})
}

func (r *userRepo) RemovePlace(ctx context.Context, userID, placeID string) error {
	return r.s.write(ctx, func(d *data) error {
		u, ok := d.users[userID]
		if !ok {
			return fmt.Errorf("user %s: %w", userID, repository.ErrNotFound)
		}
		kept := u.Places[:0]
		for _, id := range u.Places {
			if id != placeID {
				kept = append(kept, id)
			}
		}
		u.Places = kept
		return nil
	})
}

func copyPlace(p *models.Place) *models.Place {
	cp := *p
	return &cp
}

func copyUser(u *models.User) *models.User {
	cp := *u
	cp.Places = append([]string{}, u.Places...)
	return &cp
}
