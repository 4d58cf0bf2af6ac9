package model

import "time"

// Track represents a catalog entry in the music library.
// IDs are opaque source-prefixed strings, e.g. "spotify:4uLU6hMCjMI75M1A2tKUQC"
// or "local:polyphia-gott". IDs are unique within the catalog.
type Track struct {
	ID        string         `json:"id"`
	Artist    string         `json:"artist"`
	Title     string         `json:"title"`
	Genre     string         `json:"genre,omitempty"`
	Duration  int            `json:"duration"` // seconds
	BPM       float64        `json:"bpm"`
	Key       string         `json:"key"` // Camelot notation, 1A-12B
	Energy    int            `json:"energy,omitempty"`
	Sections  []TrackSection `json:"sections,omitempty"`
	FilePath  string         `json:"filePath,omitempty"`
	Album     string         `json:"album,omitempty"`
	Year      int            `json:"year,omitempty"`
	Label     string         `json:"label,omitempty"`
	Inferred  bool           `json:"inferred"` // audio features approximated, not provider-sourced
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// TrackSection is a structural segment within a track (intro, drop, ...).
type TrackSection struct {
	Type  string  `json:"type"`
	Start float64 `json:"start"` // seconds
	End   float64 `json:"end"`   // seconds, End >= Start
}

// TrackFilter describes a deterministic catalog query.
// Zero values mean "not filtered on".
type TrackFilter struct {
	BPMMin float64
	BPMMax float64
	Keys   []string // exact key set
	Genre  string   // case-insensitive match
	Artist string   // case-insensitive match
	IDs    []string // set membership
	Limit  int
}
