// main is the entry point of the lmsbridge application.
// It initializes the configuration, logger, database and media server controller, and starts the HTTP server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/lmsbridge/internal/config"
	"github.com/woozymasta/lmsbridge/internal/control"
	"github.com/woozymasta/lmsbridge/internal/fake"
	"github.com/woozymasta/lmsbridge/internal/logger"
	"github.com/woozymasta/lmsbridge/internal/maintenance"
	"github.com/woozymasta/lmsbridge/internal/server"
	"github.com/woozymasta/lmsbridge/internal/storage"
	"github.com/woozymasta/lmsbridge/internal/vars"
)

func main() {
	cfg := config.Parse()

	logCloser := logger.Setup(cfg.Logger)
	defer func() { _ = logCloser.Close() }()
	log.Info().Str("version", vars.String()).Msg("Starting lmsbridge service...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Development stand-in for a real server
	if cfg.Server.FakeLMS {
		fakeLMS := fake.NewServer(fake.DemoPlayers(3)...)
		if err := fakeLMS.Listen("127.0.0.1:0"); err != nil {
			log.Fatal().Err(err).Msg("Failed to start fake LMS")
		}
		defer func() { _ = fakeLMS.Close() }()

		cfg.LMS.Host = fakeLMS.Host()
		cfg.LMS.Port = fakeLMS.Port()
		log.Warn().Str("host", cfg.LMS.Host).Int("port", cfg.LMS.Port).Msg("Using fake LMS")
	}

	ctl := control.New(control.NewResolver(cfg), cfg.LMS)
	if cfg.LMS.Host == "" {
		log.Info().Str("address", cfg.Discovery.Address).Msg("No LMS host configured, discovering per request")
	}

	// Database
	store, err := storage.New(cfg.Storage.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database")
		}
	}()

	// Database maintenance
	if maintenance.Run(ctx, cfg, store, ctl) {
		return
	}

	// Init server
	srvHandler := server.New(store, ctl, cfg)

	// Background queue
	srvHandler.StartWorkers()

	httpServer := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           srvHandler.Run(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("address", cfg.Server.Address).Msg("Server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Graceful Shutdown
	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	// Shut down HTTP
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop workers (wait queue done)
	srvHandler.StopWorkers()

	log.Info().Msg("Server exited")
}
