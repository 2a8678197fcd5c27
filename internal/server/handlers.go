package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/lmsbridge/internal/control"
	"github.com/woozymasta/lmsbridge/internal/discovery"
	"github.com/woozymasta/lmsbridge/internal/models"
	"github.com/woozymasta/lmsbridge/internal/vars"
)

// handleInventory returns a JSON list of all players seen so far.
func (s *Server) handleInventory(w http.ResponseWriter, r *http.Request) {
	players, err := s.storage.GetPlayers(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch players")
		http.Error(w, "Database Error", http.StatusInternalServerError)
		return
	}

	if players == nil {
		players = []models.Player{}
	}

	respondJSON(w, http.StatusOK, players)
}

// handleDeleteInventory removes a specific player from the inventory.
// Query params: ?id=00:04:20:12:34:56
func (s *Server) handleDeleteInventory(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Missing id", http.StatusBadRequest)
		return
	}

	if err := s.storage.DeletePlayer(r.Context(), id); err != nil {
		log.Error().Err(err).Str("player", id).Msg("Failed to delete player")
		http.Error(w, "Database Error", http.StatusInternalServerError)
		return
	}

	log.Info().Str("player", id).Msg("Player deleted manually")
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "Player deleted"})
}

// handleVersion returns build information.
func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, vars.Info())
}

// worker is a background goroutine that records player sightings.
func (s *Server) worker() {
	defer s.wg.Done()

	for job := range s.queue {
		s.processJob(job)
	}
}

// processJob writes one player sighting to the inventory.
func (s *Server) processJob(job inventoryJob) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	player := models.Player{
		ID:       job.Record.ID,
		Name:     job.Record.Name(),
		Model:    job.Record.Status["model"],
		IP:       job.Record.Status["player_ip"],
		LastSeen: job.Seen,
	}

	if err := s.storage.UpsertPlayer(ctx, player); err != nil {
		log.Error().Err(err).Str("player", player.ID).Msg("Failed to save player to DB")
		return
	}

	log.Trace().Str("player", player.ID).Msg("Player sighting saved")
}

// enqueue hands a sighting to the workers without blocking the request.
func (s *Server) enqueue(job inventoryJob) {
	s.queueMu.RLock()
	defer s.queueMu.RUnlock()

	select {
	case <-s.shutdown:
		return
	default:
	}

	select {
	case s.queue <- job:
	default:
		log.Warn().Str("player", job.Record.ID).Msg("Queue full, player sighting dropped")
	}
}

// respondJSON writes v as a JSON body with the given status code.
func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// respondUpstreamError maps a media server failure to an HTTP status so clients can tell
// "not responding" apart from bad input.
func respondUpstreamError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, control.ErrMissingField):
		status = http.StatusNotFound
	case errors.Is(err, discovery.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}

	respondJSON(w, status, map[string]string{"error": err.Error()})
}
