package server

import (
	"errors"
	"net/http"
	"time"

	"mediasession/internal/catalog"
	"mediasession/internal/session"
)

// handleGetPlayerState returns the current session snapshot
func (ms *ControlServer) handleGetPlayerState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	ms.respondJSON(w, ms.state.Snapshot())
}

// transportHandler wraps a parameterless transport command
func (ms *ControlServer) transportHandler(name string, command func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := command(); err != nil {
			ms.respondWithCommandError(w, r, name, err)
			return
		}
		ms.respondWithState(w)
	}
}

// handlePlayFromID loads and plays a catalog track
func (ms *ControlServer) handlePlayFromID(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if verr := ms.validateMediaID(id); verr != nil {
		ms.respondWithValidationError(w, r, []ValidationError{*verr})
		return
	}

	extras := map[string]string{"source": "http", "remote_addr": r.RemoteAddr}
	if err := ms.controls.PlayFromID(id, extras); err != nil {
		ms.respondWithCommandError(w, r, "play_from_id", err)
		return
	}

	ms.logger.WithField("media_id", id).Info("Playing track from control API")
	ms.respondWithState(w)
}

// handlePlayFromSearch plays the first track matching ?q=
func (ms *ControlServer) handlePlayFromSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if verr := ms.validateSearchQuery(query); verr != nil {
		ms.respondWithValidationError(w, r, []ValidationError{*verr})
		return
	}

	if err := ms.controls.PlayFromSearch(sanitizeInput(query)); err != nil {
		ms.respondWithCommandError(w, r, "play_from_search", err)
		return
	}
	ms.respondWithState(w)
}

// handleSeek moves the play position to ?position= milliseconds
func (ms *ControlServer) handleSeek(w http.ResponseWriter, r *http.Request) {
	position, verr := ms.validatePosition(r.URL.Query().Get("position"))
	if verr != nil {
		ms.respondWithValidationError(w, r, []ValidationError{*verr})
		return
	}

	if err := ms.controls.SeekTo(position); err != nil {
		ms.respondWithCommandError(w, r, "seek", err)
		return
	}
	ms.respondWithState(w)
}

// handlePlayerEvents long-polls for the next session event. Position ticks
// are skipped unless ?position=true. It answers 204 when nothing happens
// before the timeout.
func (ms *ControlServer) handlePlayerEvents(w http.ResponseWriter, r *http.Request) {
	timeout, verr := ms.validatePollTimeout(r.URL.Query().Get("timeout"))
	if verr != nil {
		ms.respondWithValidationError(w, r, []ValidationError{*verr})
		return
	}

	events := ms.state.Subscribe()
	defer ms.state.Unsubscribe(events)

	timer := time.NewTimer(time.Duration(timeout) * time.Second)
	defer timer.Stop()

	includePosition := r.URL.Query().Get("position") == "true"

	for {
		select {
		case event, ok := <-events:
			if !ok {
				ms.respondWithError(w, r, http.StatusServiceUnavailable, "Session closed", session.ErrClosed)
				return
			}
			if event.Kind == session.EventPosition && !includePosition {
				continue
			}
			w.Header().Set("Content-Type", "application/json")
			ms.respondJSON(w, event)
			return
		case <-timer.C:
			w.WriteHeader(http.StatusNoContent)
			return
		case <-ms.shutdown:
			w.WriteHeader(http.StatusNoContent)
			return
		case <-r.Context().Done():
			ms.logger.WithField("remote_addr", r.RemoteAddr).Debug("Long poll client went away")
			return
		}
	}
}

func (ms *ControlServer) respondWithState(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	ms.respondJSON(w, map[string]interface{}{
		"success": true,
		"state":   ms.state.Snapshot(),
	})
}

// respondWithCommandError maps control errors to HTTP status codes
func (ms *ControlServer) respondWithCommandError(w http.ResponseWriter, r *http.Request, command string, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		ms.respondWithError(w, r, http.StatusNotFound, "Track not found", err)
	case errors.Is(err, session.ErrNoMatch):
		ms.respondWithError(w, r, http.StatusNotFound, "No track matches query", err)
	case errors.Is(err, session.ErrClosed):
		ms.respondWithError(w, r, http.StatusServiceUnavailable, "Session closed", err)
	default:
		ms.respondWithError(w, r, http.StatusInternalServerError, "Command "+command+" failed", err)
	}
}
