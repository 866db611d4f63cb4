package models

import "time"

// Track represents a playable catalog entry
type Track struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Album      string `json:"album"`
	Genre      string `json:"genre"`
	DurationMS int64  `json:"durationMs"`
	AudioPath  string `json:"-"`                    // don't expose file path to client
	ArtworkRef string `json:"artworkRef,omitempty"` // file path or art cache key
	FileSize   int64  `json:"fileSize"`
}

// Duration returns the track length as a time.Duration
func (t Track) Duration() time.Duration {
	return time.Duration(t.DurationMS) * time.Millisecond
}

// Subtitle is the secondary line shown under the title in notifications
func (t Track) Subtitle() string {
	if t.Artist == "" {
		return t.Album
	}
	if t.Album == "" {
		return t.Artist
	}
	return t.Artist + " • " + t.Album
}
