package handlers

import (
	"encoding/json"
	"net/http"

	"places-backend/internal/apperror"

	"github.com/rs/zerolog/log"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// MessageResponse is returned by endpoints with no resource to report
type MessageResponse struct {
	Message string `json:"message"`
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// respondError sends an error response with the status and message carried by err
func respondError(w http.ResponseWriter, err error) {
	status := apperror.StatusOf(err)
	respondJSON(w, status, ErrorResponse{
		Message: apperror.MessageOf(err),
		Code:    status,
	})
}

// NotFound answers requests for unknown routes
func NotFound(w http.ResponseWriter, r *http.Request) {
	respondError(w, apperror.NotFound("Could not find this route."))
}
