package server

import (
	"errors"
	"net/http"
	"time"

	"mediasession/internal/catalog"
	"mediasession/internal/metadata"
	"mediasession/pkg/models"

	"github.com/sirupsen/logrus"
)

// handleGetTracks returns the catalog, optionally filtered by ?search=.
func (ms *ControlServer) handleGetTracks(w http.ResponseWriter, r *http.Request) {
	searchQuery := r.URL.Query().Get("search")
	if verr := ms.validateSearchQuery(searchQuery); verr != nil {
		ms.respondWithValidationError(w, r, []ValidationError{*verr})
		return
	}
	searchQuery = sanitizeInput(searchQuery)

	var tracks []models.Track
	if searchQuery != "" {
		tracks = ms.catalog.Search(searchQuery)
	} else {
		tracks = ms.catalog.List()
	}
	if tracks == nil {
		tracks = []models.Track{}
	}

	w.Header().Set("Content-Type", "application/json")
	ms.respondJSON(w, tracks)
}

// handleGetTrackCount responds with a JSON count of all tracks.
func (ms *ControlServer) handleGetTrackCount(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	ms.respondJSON(w, map[string]int{"count": ms.catalog.Len()})
}

// handleStreamTrack serves a track's audio file with Range support.
// Builtin tracks have no file and answer 404.
func (ms *ControlServer) handleStreamTrack(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if verr := ms.validateMediaID(id); verr != nil {
		ms.respondWithValidationError(w, r, []ValidationError{*verr})
		return
	}

	track, err := ms.media.Track(id)
	if errors.Is(err, catalog.ErrNotFound) {
		ms.respondWithError(w, r, http.StatusNotFound, "Track not found", err)
		return
	}
	if err != nil {
		ms.respondWithError(w, r, http.StatusInternalServerError, "Error resolving track", err)
		return
	}

	reader, _, err := ms.media.OpenAudio(id)
	if err != nil {
		ms.respondWithError(w, r, http.StatusInternalServerError, "Error opening audio file", err)
		return
	}
	if reader == nil {
		ms.respondWithError(w, r, http.StatusNotFound, "Track has no audio file", nil)
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", metadata.ContentType(track.AudioPath))
	w.Header().Set("Cache-Control", "public, max-age=3600")

	ms.logger.WithFields(logrus.Fields{
		"media_id": track.ID,
		"artist":   track.Artist,
		"title":    track.Title,
	}).Debug("Streaming track")

	http.ServeContent(w, r, track.AudioPath, time.Time{}, reader)
}
