package catalog

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"mediasession/internal/cache"
	"mediasession/internal/metadata"
	"mediasession/pkg/models"

	"github.com/sirupsen/logrus"
)

// FormatSynth marks a source with no bytes behind it
const FormatSynth = "synth"

// ErrNoArtwork is returned when a track has no cover image
var ErrNoArtwork = errors.New("no artwork")

// Resolver turns media ids into playable sources and cover images.
type Resolver struct {
	catalog   *Catalog
	extractor *metadata.Extractor
	artwork   *cache.ArtworkCache
	logger    *logrus.Logger
}

// NewResolver creates a resolver over the catalog. The artwork cache may be
// shared with other readers.
func NewResolver(c *Catalog, extractor *metadata.Extractor, artwork *cache.ArtworkCache, logger *logrus.Logger) *Resolver {
	return &Resolver{
		catalog:   c,
		extractor: extractor,
		artwork:   artwork,
		logger:    logger,
	}
}

// Catalog returns the catalog the resolver reads from
func (r *Resolver) Catalog() *Catalog {
	return r.catalog
}

// Track looks up a track by id.
func (r *Resolver) Track(id string) (models.Track, error) {
	return r.catalog.Get(id)
}

// OpenAudio opens the audio bytes for a track. The returned format is one of
// mp3, flac, wav or FormatSynth; for FormatSynth the reader is nil.
func (r *Resolver) OpenAudio(id string) (io.ReadSeekCloser, string, error) {
	track, err := r.catalog.Get(id)
	if err != nil {
		return nil, "", err
	}

	if strings.HasPrefix(track.AudioPath, BuiltinScheme) {
		return nil, FormatSynth, nil
	}

	format := metadata.Format(track.AudioPath)
	if format == "" {
		return nil, "", fmt.Errorf("unsupported audio format: %s", track.AudioPath)
	}

	f, err := os.Open(track.AudioPath)
	if err != nil {
		return nil, "", fmt.Errorf("open audio for %s: %w", id, err)
	}
	return f, format, nil
}

// Artwork returns the cover image for a track, reading embedded tags once and
// serving later requests from the cache.
func (r *Resolver) Artwork(id string) ([]byte, string, error) {
	if art, ok := r.artwork.GetArtwork(id); ok {
		return art.Data, art.MimeType, nil
	}

	track, err := r.catalog.Get(id)
	if err != nil {
		return nil, "", err
	}
	if track.ArtworkRef == "" || r.extractor == nil {
		return nil, "", ErrNoArtwork
	}

	data, mimeType, err := r.extractor.ReadArtwork(track.ArtworkRef)
	if errors.Is(err, metadata.ErrNoArtwork) {
		return nil, "", ErrNoArtwork
	}
	if err != nil {
		return nil, "", fmt.Errorf("read artwork for %s: %w", id, err)
	}

	r.artwork.SetArtwork(id, cache.Artwork{Data: data, MimeType: mimeType})
	r.logger.WithFields(logrus.Fields{
		"media_id": id,
		"size":     len(data),
	}).Debug("Cached artwork")

	return data, mimeType, nil
}
