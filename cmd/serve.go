package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"places-backend/internal/handlers"
	"places-backend/internal/metrics"
	"places-backend/internal/services"
	"places-backend/internal/storage"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			log.Error().Err(err).Msg("Failed to close database")
		}
	}()
	log.Info().Str("driver", cfg.Database.Driver).Msg("Database connection established")

	images, err := newImageStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}

	geocoder, redisClient, err := newGeocoder(ctx, cfg.Geocoder, cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.RegisterCollectors(registry)

	// Initialize services
	tokens := services.NewTokenService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TTL)
	wsHub := services.NewWSHub()
	placeService := services.NewPlaceService(store, geocoder, images, wsHub)
	userService := services.NewUserService(store)

	routerCfg := handlers.RouterConfig{
		Places:         handlers.NewPlaceHandler(placeService, images, cfg.Upload.MaxBytes),
		Users:          handlers.NewUserHandler(userService),
		WebSocket:      handlers.NewWebSocketHandler(wsHub, tokens, placeService),
		Tokens:         tokens,
		Metrics:        promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		Health:         store.Ping,
		RequestTimeout: cfg.Server.RequestTimeout,
	}
	if local, ok := images.(*storage.LocalStore); ok {
		routerCfg.UploadsDir = local.Dir()
		routerCfg.UploadsPrefix = cfg.Storage.PublicPrefix
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handlers.NewRouter(routerCfg),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		wsHub.Close()
		err := srv.Shutdown(shutdownCtx)
		if err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
		placeService.Wait()
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info().Msg("Server exited")
	return nil
}
