package library

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"

	"mediasession/internal/catalog"
	"mediasession/pkg/models"

	"github.com/sirupsen/logrus"
)

// Prober reads track metadata from audio files
type Prober interface {
	ExtractFromFile(filePath string) (models.Track, error)
	IsAudioFile(filePath string) bool
}

// Index is the persistent track store the scanner writes to
type Index interface {
	UpsertTrack(track models.Track) error
	GetAllTracks() ([]models.Track, error)
	TrackExists(filePath string) (bool, error)
	RemoveTrackByPath(filePath string) error
}

// Scanner walks a music directory and indexes every audio file.
type Scanner struct {
	prober  Prober
	index   Index
	logger  *logrus.Logger
	workers int
}

// NewScanner creates a scanner with one worker per CPU
func NewScanner(prober Prober, index Index, logger *logrus.Logger) *Scanner {
	return &Scanner{
		prober:  prober,
		index:   index,
		logger:  logger,
		workers: runtime.NumCPU(),
	}
}

// Scan indexes all audio files under root and returns how many were added
// or refreshed. Files that fail to probe are logged and skipped.
func (s *Scanner) Scan(ctx context.Context, root string) (int, error) {
	s.logger.WithField("library_path", root).Info("Scanning music library")

	var wg sync.WaitGroup
	var trackCount int64
	jobs := make(chan string, 100)

	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				if s.indexFile(path) {
					atomic.AddInt64(&trackCount, 1)
				}
			}
		}()
	}

	walkErr := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !info.IsDir() && s.prober.IsAudioFile(path) {
			jobs <- path
		}
		return nil
	})

	close(jobs)
	wg.Wait()

	s.logger.WithField("tracks", trackCount).Info("Library scan finished")
	if walkErr != nil {
		return int(trackCount), fmt.Errorf("walk %s: %w", root, walkErr)
	}
	return int(trackCount), nil
}

func (s *Scanner) indexFile(path string) bool {
	track, err := s.prober.ExtractFromFile(path)
	if err != nil {
		s.logger.WithError(err).WithField("file_path", path).Warn("Error extracting metadata")
		return false
	}
	if err := s.index.UpsertTrack(track); err != nil {
		s.logger.WithError(err).WithField("file_path", path).Error("Error indexing track")
		return false
	}

	s.logger.WithFields(logrus.Fields{
		"media_id": track.ID,
		"artist":   track.Artist,
		"title":    track.Title,
	}).Debug("Indexed track")
	return true
}

// LoadCatalog builds the read-only catalog from the index. An empty index
// yields catalog.ErrEmpty.
func LoadCatalog(index Index) (*catalog.Catalog, error) {
	tracks, err := index.GetAllTracks()
	if err != nil {
		return nil, fmt.Errorf("load indexed tracks: %w", err)
	}
	return catalog.New(tracks)
}
