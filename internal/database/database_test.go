package database

import (
	"errors"
	"path/filepath"
	"testing"

	"mediasession/pkg/models"

	"github.com/sirupsen/logrus"
)

func newTestDatabase(t *testing.T) *Database {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	db, err := NewDatabase(filepath.Join(t.TempDir(), "test.db"), logger)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestDatabase(t *testing.T) {
	db := newTestDatabase(t)

	track := models.Track{
		ID:         "b_song",
		Title:      "B Song",
		Artist:     "Test Artist",
		Album:      "Test Album",
		Genre:      "Rock",
		DurationMS: 180000,
		AudioPath:  "/test/b_song.mp3",
		FileSize:   1024000,
	}

	t.Run("UpsertAndGetTrack", func(t *testing.T) {
		if err := db.UpsertTrack(track); err != nil {
			t.Fatalf("Failed to upsert track: %v", err)
		}

		got, err := db.GetTrackByID("b_song")
		if err != nil {
			t.Fatalf("Failed to get track: %v", err)
		}
		if *got != track {
			t.Errorf("Expected %+v, got %+v", track, *got)
		}
	})

	t.Run("UpsertReplacesExisting", func(t *testing.T) {
		updated := track
		updated.Title = "B Song (Remaster)"
		if err := db.UpsertTrack(updated); err != nil {
			t.Fatalf("Failed to upsert track: %v", err)
		}

		got, err := db.GetTrackByID("b_song")
		if err != nil {
			t.Fatalf("Failed to get track: %v", err)
		}
		if got.Title != updated.Title {
			t.Errorf("Expected title %s, got %s", updated.Title, got.Title)
		}
	})

	t.Run("GetAllTracksOrderedByID", func(t *testing.T) {
		other := models.Track{ID: "a_song", Title: "A", Artist: "x", Album: "y", AudioPath: "/test/a_song.mp3"}
		if err := db.UpsertTrack(other); err != nil {
			t.Fatalf("Failed to upsert track: %v", err)
		}

		tracks, err := db.GetAllTracks()
		if err != nil {
			t.Fatalf("Failed to get all tracks: %v", err)
		}
		if len(tracks) != 2 {
			t.Fatalf("Expected 2 tracks, got %d", len(tracks))
		}
		if tracks[0].ID != "a_song" || tracks[1].ID != "b_song" {
			t.Errorf("Expected tracks ordered by id, got %s, %s", tracks[0].ID, tracks[1].ID)
		}
	})

	t.Run("TrackExistsAndRemove", func(t *testing.T) {
		exists, err := db.TrackExists("/test/b_song.mp3")
		if err != nil || !exists {
			t.Fatalf("Expected track to exist, got %v (err %v)", exists, err)
		}

		if err := db.RemoveTrackByPath("/test/b_song.mp3"); err != nil {
			t.Fatalf("Failed to remove track: %v", err)
		}

		exists, err = db.TrackExists("/test/b_song.mp3")
		if err != nil || exists {
			t.Errorf("Expected track to be removed, got %v (err %v)", exists, err)
		}

		if _, err := db.GetTrackByID("b_song"); !errors.Is(err, ErrTrackNotFound) {
			t.Errorf("Expected ErrTrackNotFound, got %v", err)
		}
	})

	t.Run("PathMovesToNewID", func(t *testing.T) {
		moved := models.Track{ID: "renamed", Title: "R", Artist: "x", Album: "y", AudioPath: "/test/a_song.mp3"}
		if err := db.UpsertTrack(moved); err != nil {
			t.Fatalf("Failed to upsert moved track: %v", err)
		}
		if _, err := db.GetTrackByID("a_song"); !errors.Is(err, ErrTrackNotFound) {
			t.Errorf("Expected stale row to be dropped, got %v", err)
		}
	})

	t.Run("Ping", func(t *testing.T) {
		if err := db.Ping(); err != nil {
			t.Errorf("Ping() error: %v", err)
		}
	})
}
