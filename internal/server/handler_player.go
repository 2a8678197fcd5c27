package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/lmsbridge/internal/models"
)

// handlePlayers returns the live player list. Players whose lookup failed are reported
// in "errors" while the rest are still returned.
func (s *Server) handlePlayers(w http.ResponseWriter, r *http.Request) {
	resp, err := s.livePlayers(r.Context())
	if err != nil {
		respondUpstreamError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

// livePlayers fetches the player list and queues every record for the inventory.
// An error is returned only when nothing could be listed.
func (s *Server) livePlayers(ctx context.Context) (models.PlayersResponse, error) {
	records, err := s.control.Players(ctx)
	if err != nil && records == nil {
		return models.PlayersResponse{}, err
	}

	resp := models.PlayersResponse{Players: make([]map[string]string, 0, len(records))}
	now := time.Now()
	for _, record := range records {
		resp.Players = append(resp.Players, record.Map())
		s.enqueue(inventoryJob{Seen: now, Record: record})
	}

	for _, e := range splitErrors(err) {
		resp.Errors = append(resp.Errors, e.Error())
	}

	return resp, nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.control.Status(r.Context(), r.PathValue("id"))
	if err != nil {
		respondUpstreamError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, status)
}

func (s *Server) handleGetPower(w http.ResponseWriter, r *http.Request) {
	on, err := s.control.Power(r.Context(), r.PathValue("id"))
	if err != nil {
		respondUpstreamError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, models.PowerRequest{On: on})
}

func (s *Server) handleSetPower(w http.ResponseWriter, r *http.Request) {
	id, ok := s.controlTarget(w, r)
	if !ok {
		return
	}

	var req models.PowerRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	if err := s.control.SetPower(r.Context(), id, req.On); err != nil {
		respondUpstreamError(w, err)
		return
	}

	log.Info().Str("player", id).Bool("on", req.On).Msg("Power changed")
	respondJSON(w, http.StatusOK, req)
}

func (s *Server) handleGetVolume(w http.ResponseWriter, r *http.Request) {
	volume, err := s.control.Volume(r.Context(), r.PathValue("id"))
	if err != nil {
		respondUpstreamError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, models.VolumeRequest{Volume: volume})
}

func (s *Server) handleSetVolume(w http.ResponseWriter, r *http.Request) {
	id, ok := s.controlTarget(w, r)
	if !ok {
		return
	}

	var req models.VolumeRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	volume, err := s.control.SetVolume(r.Context(), id, req.Volume)
	if err != nil {
		respondUpstreamError(w, err)
		return
	}

	log.Info().Str("player", id).Int("volume", volume).Msg("Volume changed")
	respondJSON(w, http.StatusOK, models.VolumeRequest{Volume: volume})
}

func (s *Server) handleGetMute(w http.ResponseWriter, r *http.Request) {
	muted, err := s.control.Muted(r.Context(), r.PathValue("id"))
	if err != nil {
		respondUpstreamError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, models.MuteRequest{Muted: muted})
}

func (s *Server) handleSetMute(w http.ResponseWriter, r *http.Request) {
	id, ok := s.controlTarget(w, r)
	if !ok {
		return
	}

	var req models.MuteRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	if err := s.control.SetMuted(r.Context(), id, req.Muted); err != nil {
		respondUpstreamError(w, err)
		return
	}

	log.Info().Str("player", id).Bool("muted", req.Muted).Msg("Mute changed")
	respondJSON(w, http.StatusOK, req)
}

// controlTarget returns the player id of a control request, refusing players outside the allow-list.
func (s *Server) controlTarget(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if !s.playerAllowed(id) {
		log.Debug().
			Str("player", id).
			Str("ip", GetRealIP(r, s.trustProxy)).
			Msg("Player not allowed")

		http.Error(w, "Forbidden", http.StatusForbidden)
		return "", false
	}

	return id, true
}

// decodeBody reads a size limited JSON body into v and answers 400 on failure.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if s.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	}

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		log.Debug().
			Err(err).
			Str("ip", GetRealIP(r, s.trustProxy)).
			Msg("Invalid JSON")

		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return false
	}

	return true
}

// splitErrors flattens a joined error into its parts.
func splitErrors(err error) []error {
	if err == nil {
		return nil
	}

	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		return joined.Unwrap()
	}

	return []error{err}
}
