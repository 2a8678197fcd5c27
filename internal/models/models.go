// Package models defines the data structures used for API requests and database persistence.
package models

import "time"

// Player represents a player stored in the inventory database.
// Only identity and sighting data are kept; power and mixer state are always read live.
type Player struct {
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	ID        string    `json:"player_id"`
	Name      string    `json:"name"`
	Model     string    `json:"model"`
	IP        string    `json:"ip"`
	Count     int64     `json:"count"`
}

// PowerRequest is the body of a power change.
type PowerRequest struct {
	On bool `json:"on"`
}

// VolumeRequest is the body of a volume change.
type VolumeRequest struct {
	Volume int `json:"volume"`
}

// MuteRequest is the body of a mute change.
type MuteRequest struct {
	Muted bool `json:"muted"`
}

// PlayersResponse is a live player listing; Errors lists players whose lookup failed.
type PlayersResponse struct {
	Players []map[string]string `json:"players"`
	Errors  []string            `json:"errors,omitempty"`
}
