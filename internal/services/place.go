package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"places-backend/internal/apperror"
	"places-backend/internal/geocode"
	"places-backend/internal/metrics"
	"places-backend/internal/models"
	"places-backend/internal/repository"
	"places-backend/internal/storage"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	EventPlaceCreated = "place_created"
	EventPlaceUpdated = "place_updated"
	EventPlaceDeleted = "place_deleted"

	imageCleanupTimeout = 30 * time.Second
)

var errPlaceGone = errors.New("place already deleted")

// PlaceNotifier is told about committed place changes
type PlaceNotifier interface {
	NotifyPlaceChanged(userID, eventType string, place *models.Place)
}

// PlaceService keeps places and their owners' back-references consistent
type PlaceService struct {
	store    repository.Store
	geocoder geocode.Geocoder
	images   storage.ImageStore
	notifier PlaceNotifier

	cleanups sync.WaitGroup
	now      func() time.Time
	newID    func() string
}

// NewPlaceService creates a new place service. notifier may be nil.
func NewPlaceService(
	store repository.Store,
	geocoder geocode.Geocoder,
	images storage.ImageStore,
	notifier PlaceNotifier,
) *PlaceService {
	return &PlaceService{
		store:    store,
		geocoder: geocoder,
		images:   images,
		notifier: notifier,
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}
}

// GetPlaceByID returns a single place
func (s *PlaceService) GetPlaceByID(ctx context.Context, placeID string) (*models.Place, error) {
	place, err := s.store.Places().GetByID(ctx, placeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.NotFound("Could not find a place for the provided id.")
		}
		return nil, apperror.Store("Something went wrong. Could not find a place.", err)
	}
	return place, nil
}

// GetPlacesByUserID resolves a user's places through the user's places list.
// An unknown user and a user without places both yield a not-found error.
func (s *PlaceService) GetPlacesByUserID(ctx context.Context, userID string) ([]*models.Place, error) {
	places, err := s.store.Users().PlacesOf(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.Store("Fetching places failed, please try again later.", err)
	}
	if len(places) == 0 {
		return nil, apperror.NotFound("Could not find places for the provided user id.")
	}
	return places, nil
}

// CreatePlace geocodes the address, then inserts the place and appends it to
// the caller's places list in one transaction
func (s *PlaceService) CreatePlace(
	ctx context.Context,
	in models.PlaceInput,
	caller models.Identity,
	imagePath string,
) (place *models.Place, err error) {
	defer func() { recordMutation("create", err) }()

	if caller.UserID == "" {
		return nil, apperror.Authentication(authFailedMessage, nil)
	}
	if !in.Valid() {
		return nil, apperror.Validation("Invalid inputs passed, please check your data.")
	}

	location, err := s.geocoder.Resolve(ctx, in.Address)
	if err != nil {
		if _, ok := apperror.As(err); ok {
			return nil, err
		}
		return nil, apperror.Geocode("Could not resolve the address, please try again later.", http.StatusInternalServerError, err)
	}

	now := s.now()
	place = &models.Place{
		ID:          s.newID(),
		Title:       in.Title,
		Description: in.Description,
		Address:     in.Address,
		Location:    location,
		Image:       imagePath,
		Creator:     caller.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	user, err := s.store.Users().GetByID(ctx, caller.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.NotFound("Could not find user for provided id.")
		}
		return nil, apperror.Store("Creating place failed, please try again.", err)
	}

	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		if err := tx.Places().Create(ctx, place); err != nil {
			return err
		}
		return tx.Users().AddPlace(ctx, user.ID, place.ID)
	})
	if err != nil {
		return nil, apperror.Store("Creating place failed, please try again.", err)
	}

	s.notify(place.Creator, EventPlaceCreated, place)
	return place, nil
}

// UpdatePlace changes the title and description of a place owned by the caller
func (s *PlaceService) UpdatePlace(
	ctx context.Context,
	placeID string,
	patch models.PlacePatch,
	caller models.Identity,
) (place *models.Place, err error) {
	defer func() { recordMutation("update", err) }()

	if !patch.Valid() {
		return nil, apperror.Validation("Invalid inputs passed, please check your data.")
	}

	place, err = s.store.Places().GetByID(ctx, placeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.NotFound("Could not find a place for the provided id.")
		}
		return nil, apperror.Store("Something went wrong, could not update place.", err)
	}

	if place.Creator != caller.UserID {
		return nil, apperror.Authorization("You are not allowed to edit this place.")
	}

	place.Title = patch.Title
	place.Description = patch.Description
	place.UpdatedAt = s.now()

	if err := s.store.Places().Update(ctx, place); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.NotFound("Could not find a place for the provided id.")
		}
		return nil, apperror.Store("Something went wrong, could not update place.", err)
	}

	s.notify(place.Creator, EventPlaceUpdated, place)
	return place, nil
}

// DeletePlace removes a place owned by the caller and pulls it from the
// owner's places list in one transaction. The stored image is deleted in
// the background once the transaction has committed.
func (s *PlaceService) DeletePlace(ctx context.Context, placeID string, caller models.Identity) (err error) {
	defer func() { recordMutation("delete", err) }()

	place, owner, err := s.store.Places().GetWithCreator(ctx, placeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.NotFound("Could not find place for this id.")
		}
		return apperror.Store("Something went wrong, could not delete place.", err)
	}

	if place.Creator != caller.UserID {
		return apperror.Authorization("You are not allowed to delete this place.")
	}

	if owner == nil {
		return apperror.Store("Something went wrong, could not delete place.",
			fmt.Errorf("creator %s of place %s does not exist", place.Creator, place.ID))
	}

	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		if err := tx.Places().Delete(ctx, place.ID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return errPlaceGone
			}
			return err
		}
		return tx.Users().RemovePlace(ctx, owner.ID, place.ID)
	})
	if err != nil {
		if errors.Is(err, errPlaceGone) {
			return apperror.NotFound("Could not find place for this id.")
		}
		return apperror.Store("Something went wrong, could not delete place.", err)
	}

	s.DiscardImage(place.Image)
	s.notify(owner.ID, EventPlaceDeleted, place)
	return nil
}

// DiscardImage deletes a stored image in the background. Failures are
// logged and never reported to the caller.
func (s *PlaceService) DiscardImage(path string) {
	if path == "" || s.images == nil {
		return
	}

	s.cleanups.Add(1)
	go func() {
		defer s.cleanups.Done()

		ctx, cancel := context.WithTimeout(context.Background(), imageCleanupTimeout)
		defer cancel()

		if err := s.images.Delete(ctx, path); err != nil {
			metrics.ImageCleanupFailures.Inc()
			log.Warn().
				Err(err).
				Str("path", path).
				Msg("Failed to delete image")
		}
	}()
}

// Wait blocks until pending image deletions finish
func (s *PlaceService) Wait() {
	s.cleanups.Wait()
}

func (s *PlaceService) notify(userID, eventType string, place *models.Place) {
	if s.notifier != nil {
		s.notifier.NotifyPlaceChanged(userID, eventType, place)
	}
}

func recordMutation(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(apperror.KindOf(err))
	}
	metrics.PlaceMutations.WithLabelValues(op, outcome).Inc()
}
