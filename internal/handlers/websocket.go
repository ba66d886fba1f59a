package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"places-backend/internal/apperror"
	"places-backend/internal/middleware"
	"places-backend/internal/models"
	"places-backend/internal/services"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	wsTypeSnapshot = "places_snapshot"
	wsTypePing     = "ping"
	wsTypePong     = "pong"
	wsTypeError    = "error"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler serves the live feed of a user's place changes
type WebSocketHandler struct {
	hub          *services.WSHub
	tokens       middleware.TokenValidator
	placeService *services.PlaceService
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(
	hub *services.WSHub,
	tokens middleware.TokenValidator,
	placeService *services.PlaceService,
) *WebSocketHandler {
	return &WebSocketHandler{
		hub:          hub,
		tokens:       tokens,
		placeService: placeService,
	}
}

// HandleWebSocket handles WebSocket connections. The bearer token is passed
// in the token query parameter.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	identity, err := h.tokens.ValidateToken(r.URL.Query().Get("token"))
	if err != nil {
		respondError(w, err)
		return
	}
	userID := identity.UserID

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	h.hub.Register(userID, conn)
	defer h.hub.Unregister(userID, conn)

	ctx := r.Context()
	h.sendSnapshot(ctx, userID)

	log.Info().Str("user_id", userID).Msg("WebSocket connection established")

	for {
		_, messageBytes, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("user_id", userID).Msg("WebSocket error")
			}
			break
		}

		var msg services.WSMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			log.Debug().Err(err).Str("user_id", userID).Msg("Failed to parse WebSocket message")
			h.sendError(userID, "Invalid message format")
			continue
		}

		switch msg.Type {
		case wsTypePing:
			if err := h.hub.SendToUser(userID, services.WSMessage{Type: wsTypePong}); err != nil {
				log.Error().Err(err).Str("user_id", userID).Msg("Failed to answer ping")
			}
		case wsTypeSnapshot:
			h.sendSnapshot(ctx, userID)
		default:
			h.sendError(userID, "Unknown message type")
		}
	}
}

// sendSnapshot sends the user's current places. A user without places gets
// an empty list.
func (h *WebSocketHandler) sendSnapshot(ctx context.Context, userID string) {
	places, err := h.placeService.GetPlacesByUserID(ctx, userID)
	if err != nil && !apperror.Is(err, apperror.KindNotFound) {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to load places snapshot")
		h.sendError(userID, apperror.MessageOf(err))
		return
	}
	if places == nil {
		places = []*models.Place{}
	}

	msg := services.WSMessage{
		Type: wsTypeSnapshot,
		Data: map[string]interface{}{
			"places": places,
		},
	}
	if err := h.hub.SendToUser(userID, msg); err != nil {
		log.Error().
			Err(err).
			Str("user_id", userID).
			Msg("Failed to send places snapshot")
	}
}

// sendError sends an error message to a user
func (h *WebSocketHandler) sendError(userID, message string) {
	msg := services.WSMessage{
		Type:    wsTypeError,
		Message: message,
	}
	if err := h.hub.SendToUser(userID, msg); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to send error message")
	}
}
