package memstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"places-backend/internal/models"
	"places-backend/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func seedUser(t *testing.T, s *Store, id string) {
	t.Helper()
	require.NoError(t, s.Users().Create(context.Background(), &models.User{
		ID:        id,
		Name:      id,
		CreatedAt: time.Now(),
	}))
}

func TestPlaceCRUD(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedUser(t, s, "u1")

	place := &models.Place{ID: "p1", Title: "Tower", Description: "A tall one", Creator: "u1"}
	require.NoError(t, s.Places().Create(ctx, place))

	got, err := s.Places().GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Tower", got.Title)

	// returned documents are copies
	got.Title = "changed"
	again, err := s.Places().GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Tower", again.Title)

	got.Title = "Bridge"
	require.NoError(t, s.Places().Update(ctx, got))

	p, owner, err := s.Places().GetWithCreator(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Bridge", p.Title)
	require.NotNil(t, owner)
	assert.Equal(t, "u1", owner.ID)

	require.NoError(t, s.Places().Delete(ctx, "p1"))
	_, err = s.Places().GetByID(ctx, "p1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.ErrorIs(t, s.Places().Delete(ctx, "p1"), repository.ErrNotFound)
}

func TestAddPlaceHasNoDuplicates(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedUser(t, s, "u1")

	require.NoError(t, s.Users().AddPlace(ctx, "u1", "p1"))
	require.NoError(t, s.Users().AddPlace(ctx, "u1", "p1"))
	require.NoError(t, s.Users().AddPlace(ctx, "u1", "p2"))

	u, err := s.Users().GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, u.Places)

	require.NoError(t, s.Users().RemovePlace(ctx, "u1", "p1"))
	u, err = s.Users().GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"p2"}, u.Places)

	assert.ErrorIs(t, s.Users().AddPlace(ctx, "missing", "p1"), repository.ErrNotFound)
}

func TestPlacesOfFollowsListOrder(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedUser(t, s, "u1")

	for _, id := range []string{"b", "a", "c"} {
		require.NoError(t, s.Places().Create(ctx, &models.Place{ID: id, Creator: "u1"}))
		require.NoError(t, s.Users().AddPlace(ctx, "u1", id))
	}

	places, err := s.Users().PlacesOf(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, places, 3)
	assert.Equal(t, "b", places[0].ID)
	assert.Equal(t, "a", places[1].ID)
	assert.Equal(t, "c", places[2].ID)

	_, err = s.Users().PlacesOf(ctx, "nobody")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedUser(t, s, "u1")

	boom := errors.New("user write failed")
	err := s.WithTx(ctx, func(tx repository.Store) error {
		if err := tx.Places().Create(ctx, &models.Place{ID: "p1", Creator: "u1"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.Places().GetByID(ctx, "p1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestWithTxCommits(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedUser(t, s, "u1")

	err := s.WithTx(ctx, func(tx repository.Store) error {
		if err := tx.Places().Create(ctx, &models.Place{ID: "p1", Creator: "u1"}); err != nil {
			return err
		}
		return tx.Users().AddPlace(ctx, "u1", "p1")
	})
	require.NoError(t, err)

	u, err := s.Users().GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, u.HasPlace("p1"))
}

func TestWithTxHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New()
	called := false
	err := s.WithTx(ctx, func(tx repository.Store) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestConcurrentTransactionsKeepBackReferences(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedUser(t, s, "u1")
	seedUser(t, s, "u2")

	const perUser = 25
	var wg sync.WaitGroup
	for _, owner := range []string{"u1", "u2"} {
		for i := 0; i < perUser; i++ {
			wg.Add(1)
			go func(owner string, i int) {
				defer wg.Done()
				id := fmt.Sprintf("%s-%d", owner, i)
				err := s.WithTx(ctx, func(tx repository.Store) error {
					if err := tx.Places().Create(ctx, &models.Place{ID: id, Creator: owner}); err != nil {
						return err
					}
					return tx.Users().AddPlace(ctx, owner, id)
				})
				assert.NoError(t, err)
			}(owner, i)
		}
	}
	wg.Wait()

	for _, owner := range []string{"u1", "u2"} {
		u, err := s.Users().GetByID(ctx, owner)
		require.NoError(t, err)
		assert.Len(t, u.Places, perUser)
		for _, id := range u.Places {
			p, err := s.Places().GetByID(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, owner, p.Creator)
		}
	}
}
