package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"places-backend/internal/apperror"
	"places-backend/internal/middleware"
	"places-backend/internal/models"
	"places-backend/internal/services"
	"places-backend/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultMaxImageBytes is the largest accepted image upload
	DefaultMaxImageBytes = 500_000

	// room for the text fields and multipart framing around the image
	multipartOverhead = 64 << 10

	invalidInputsMessage = "Invalid inputs passed, please check your data."
)

// PlaceResponse wraps a single place
type PlaceResponse struct {
	Place *models.Place `json:"place"`
}

// PlacesResponse wraps a list of places
type PlacesResponse struct {
	Places []*models.Place `json:"places"`
}

// PlaceHandler handles place-related HTTP requests
type PlaceHandler struct {
	placeService  *services.PlaceService
	images        storage.ImageStore
	maxImageBytes int64
}

// NewPlaceHandler creates a new place handler
func NewPlaceHandler(placeService *services.PlaceService, images storage.ImageStore, maxImageBytes int64) *PlaceHandler {
	if maxImageBytes <= 0 {
		maxImageBytes = DefaultMaxImageBytes
	}
	return &PlaceHandler{
		placeService:  placeService,
		images:        images,
		maxImageBytes: maxImageBytes,
	}
}

// GetPlace handles GET /api/places/{pid}
func (h *PlaceHandler) GetPlace(w http.ResponseWriter, r *http.Request) {
	placeID := chi.URLParam(r, "pid")

	place, err := h.placeService.GetPlaceByID(r.Context(), placeID)
	if err != nil {
		logFailure(err, "Failed to get place", "place_id", placeID)
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, PlaceResponse{Place: place})
}

// GetPlacesByUser handles GET /api/places/user/{uid}
func (h *PlaceHandler) GetPlacesByUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "uid")

	places, err := h.placeService.GetPlacesByUserID(r.Context(), userID)
	if err != nil {
		logFailure(err, "Failed to get places", "user_id", userID)
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, PlacesResponse{Places: places})
}

// CreatePlace handles POST /api/places. The request is multipart with the
// fields title, description, address and an image file.
func (h *PlaceHandler) CreatePlace(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, _ := middleware.GetIdentity(ctx)

	imagePath, in, err := h.receiveUpload(w, r)
	if err != nil {
		logFailure(err, "Rejected place upload", "user_id", identity.UserID)
		respondError(w, err)
		return
	}

	place, err := h.placeService.CreatePlace(ctx, in, identity, imagePath)
	if err != nil {
		h.placeService.DiscardImage(imagePath)
		logFailure(err, "Failed to create place", "user_id", identity.UserID)
		respondError(w, err)
		return
	}

	log.Info().
		Str("place_id", place.ID).
		Str("user_id", identity.UserID).
		Msg("Place created")

	respondJSON(w, http.StatusCreated, PlaceResponse{Place: place})
}

// receiveUpload parses the multipart form and stores the image. The returned
// path must be discarded by the caller if the request fails later on.
func (h *PlaceHandler) receiveUpload(w http.ResponseWriter, r *http.Request) (string, models.PlaceInput, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxImageBytes+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxImageBytes + multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", models.PlaceInput{}, apperror.Validation("Image is too large.")
		}
		return "", models.PlaceInput{}, apperror.Validation(invalidInputsMessage)
	}
	defer r.MultipartForm.RemoveAll()

	in := models.PlaceInput{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Address:     r.FormValue("address"),
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		return "", in, apperror.Validation(invalidInputsMessage)
	}
	defer file.Close()

	if header.Size > h.maxImageBytes {
		return "", in, apperror.Validation("Image is too large.")
	}

	contentType := header.Header.Get("Content-Type")
	name, err := storage.NewImageName(contentType)
	if err != nil {
		return "", in, apperror.New(apperror.KindValidation, "Invalid mime type!", err)
	}

	path, err := h.images.Save(r.Context(), name, contentType, file, header.Size)
	if err != nil {
		return "", in, apperror.Store("Uploading image failed, please try again.", err)
	}
	return path, in, nil
}

// UpdatePlace handles PATCH /api/places/{pid}
func (h *PlaceHandler) UpdatePlace(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, _ := middleware.GetIdentity(ctx)
	placeID := chi.URLParam(r, "pid")

	var patch models.PlacePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		respondError(w, apperror.Validation(invalidInputsMessage))
		return
	}

	place, err := h.placeService.UpdatePlace(ctx, placeID, patch, identity)
	if err != nil {
		logFailure(err, "Failed to update place", "place_id", placeID)
		respondError(w, err)
		return
	}

	log.Info().
		Str("place_id", place.ID).
		Str("user_id", identity.UserID).
		Msg("Place updated")

	respondJSON(w, http.StatusOK, PlaceResponse{Place: place})
}

// DeletePlace handles DELETE /api/places/{pid}
func (h *PlaceHandler) DeletePlace(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, _ := middleware.GetIdentity(ctx)
	placeID := chi.URLParam(r, "pid")

	if err := h.placeService.DeletePlace(ctx, placeID, identity); err != nil {
		logFailure(err, "Failed to delete place", "place_id", placeID)
		respondError(w, err)
		return
	}

	log.Info().
		Str("place_id", placeID).
		Str("user_id", identity.UserID).
		Msg("Place deleted")

	respondJSON(w, http.StatusOK, MessageResponse{Message: "Deleted place."})
}

// logFailure logs server-side failures at error and client mistakes at debug
func logFailure(err error, msg, key, value string) {
	event := log.Debug()
	if apperror.StatusOf(err) >= http.StatusInternalServerError {
		event = log.Error()
	}
	event.Err(err).Str(key, value).Msg(msg)
}
