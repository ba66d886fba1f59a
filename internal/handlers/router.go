package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"places-backend/internal/apperror"
	"places-backend/internal/middleware"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

const healthTimeout = 3 * time.Second

// RouterConfig holds everything the HTTP surface is built from
type RouterConfig struct {
	Places    *PlaceHandler
	Users     *UserHandler
	WebSocket *WebSocketHandler
	Tokens    middleware.TokenValidator

	// Metrics serves /metrics when set
	Metrics http.Handler
	// Health is called by /healthz when set
	Health func(ctx context.Context) error

	// UploadsDir is served under UploadsPrefix when both are set
	UploadsDir    string
	UploadsPrefix string

	RequestTimeout time.Duration
}

// NewRouter wires middleware and routes
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(corsMiddleware)

	r.NotFound(NotFound)
	r.MethodNotAllowed(NotFound)

	r.Group(func(r chi.Router) {
		if cfg.RequestTimeout > 0 {
			r.Use(chiMiddleware.Timeout(cfg.RequestTimeout))
		}

		r.Route("/api/places", func(r chi.Router) {
			r.Get("/{pid}", cfg.Places.GetPlace)
			r.Get("/user/{uid}", cfg.Places.GetPlacesByUser)

			// Protected routes
			r.Group(func(r chi.Router) {
				r.Use(middleware.AuthMiddleware(cfg.Tokens))
				r.Post("/", cfg.Places.CreatePlace)
				r.Patch("/{pid}", cfg.Places.UpdatePlace)
				r.Delete("/{pid}", cfg.Places.DeletePlace)
			})
		})

		if cfg.Users != nil {
			r.Get("/api/users", cfg.Users.ListUsers)
		}
	})

	if cfg.WebSocket != nil {
		r.Get("/ws", cfg.WebSocket.HandleWebSocket)
	}
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}
	if cfg.Health != nil {
		r.Get("/healthz", healthHandler(cfg.Health))
	}
	if cfg.UploadsDir != "" && cfg.UploadsPrefix != "" {
		prefix := "/" + strings.Trim(cfg.UploadsPrefix, "/")
		fs := http.StripPrefix(prefix+"/", http.FileServer(http.Dir(cfg.UploadsDir)))
		r.Get(prefix+"/*", fs.ServeHTTP)
	}

	return r
}

func healthHandler(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		if err := check(ctx); err != nil {
			log.Error().Err(err).Msg("Health check failed")
			respondError(w, apperror.New(apperror.KindStore, "Database unavailable.", err))
			return
		}
		respondJSON(w, http.StatusOK, MessageResponse{Message: "ok"})
	}
}

// corsMiddleware handles CORS
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Origin, X-Requested-With, Content-Type, Accept, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
