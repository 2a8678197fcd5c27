// Package server implements the HTTP API, middleware, and request handlers for the application.
package server

import (
	"net/http"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/woozymasta/lmsbridge/internal/config"
	"github.com/woozymasta/lmsbridge/internal/control"
	"github.com/woozymasta/lmsbridge/internal/storage"
)

const (
	inventoryWorkers   = 2
	inventoryQueueSize = 256
)

// New creates a new Server instance with the provided storage, controller, and configuration.
func New(store *storage.Repository, ctl *control.Controller, cfg *config.Config) *Server {
	playerMap := make(map[uint64]struct{})
	for _, id := range cfg.Server.AllowedPlayers {
		playerMap[xxhash.Sum64String(id)] = struct{}{}
	}

	pollInterval := cfg.Server.PollInterval
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}

	return &Server{
		storage:        store,
		control:        ctl,
		authToken:      cfg.Server.AuthToken,
		allowedPlayers: playerMap,
		maxBody:        cfg.Server.MaxBodySize,
		pollInterval:   pollInterval,
		trustProxy:     cfg.Server.TrustProxy,
		hardLimitCount: cfg.RateLimit.HardLimitCount,
		hardLimitWin:   cfg.RateLimit.HardLimitWin,

		queue:    make(chan inventoryJob, inventoryQueueSize),
		shutdown: make(chan struct{}),
	}
}

// StartWorkers initializes the background worker pool that records player sightings.
func (s *Server) StartWorkers() {
	for i := 0; i < inventoryWorkers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
}

// StopWorkers gracefully stops the background workers and closes the job queue.
// Calls after the first only wait for the workers.
func (s *Server) StopWorkers() {
	s.stopOnce.Do(func() {
		close(s.shutdown)

		s.queueMu.Lock()
		close(s.queue)
		s.queueMu.Unlock()
	})

	s.wg.Wait()
}

// Run configures the HTTP routes and returns the main handler.
func (s *Server) Run() http.Handler {
	api := http.NewServeMux()

	api.HandleFunc("GET /api/players", s.handlePlayers)
	api.HandleFunc("GET /api/players/watch", s.handleWatch)
	api.HandleFunc("GET /api/player/{id}/status", s.handleStatus)
	api.HandleFunc("GET /api/player/{id}/power", s.handleGetPower)
	api.HandleFunc("PUT /api/player/{id}/power", s.handleSetPower)
	api.HandleFunc("GET /api/player/{id}/volume", s.handleGetVolume)
	api.HandleFunc("PUT /api/player/{id}/volume", s.handleSetVolume)
	api.HandleFunc("GET /api/player/{id}/mute", s.handleGetMute)
	api.HandleFunc("PUT /api/player/{id}/mute", s.handleSetMute)
	api.HandleFunc("GET /api/inventory", s.handleInventory)
	api.HandleFunc("DELETE /api/inventory", s.handleDeleteInventory)
	api.HandleFunc("GET /api/version", s.handleVersion)

	mux := http.NewServeMux()
	mux.Handle("/api/", s.RateLimitMiddleware(AdminAuthMiddleware(s.authToken, api)))

	return s.LoggingMiddleware(mux)
}

// playerAllowed reports whether id may be controlled.
func (s *Server) playerAllowed(id string) bool {
	if len(s.allowedPlayers) == 0 {
		return true
	}

	_, ok := s.allowedPlayers[xxhash.Sum64String(id)]
	return ok
}
