package handlers

import (
	"net/http"

	"places-backend/internal/models"
	"places-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// UsersResponse wraps the user listing
type UsersResponse struct {
	Users []*models.User `json:"users"`
}

// UserHandler handles user-related HTTP requests
type UserHandler struct {
	userService *services.UserService
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

// ListUsers handles GET /api/users
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.ListUsers(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list users")
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, UsersResponse{Users: users})
}
