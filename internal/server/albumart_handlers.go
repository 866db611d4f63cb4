package server

import (
	"errors"
	"net/http"
	"strconv"

	"mediasession/internal/catalog"
)

// handleAlbumArt serves the embedded cover of a track
func (ms *ControlServer) handleAlbumArt(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if verr := ms.validateMediaID(id); verr != nil {
		ms.respondWithValidationError(w, r, []ValidationError{*verr})
		return
	}

	artData, mimeType, err := ms.media.Artwork(id)
	switch {
	case errors.Is(err, catalog.ErrNotFound), errors.Is(err, catalog.ErrNoArtwork):
		http.Error(w, "Album art not found", http.StatusNotFound)
		return
	case err != nil:
		ms.respondWithError(w, r, http.StatusInternalServerError, "Error reading album art", err)
		return
	}

	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(artData)))
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(artData)
}
