package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"mediasession/pkg/models"
)

var (
	// ErrNotFound is returned by Get for an unknown media id
	ErrNotFound = errors.New("track not found")
	// ErrEmpty is returned when a catalog would hold no tracks
	ErrEmpty = errors.New("catalog is empty")
	// ErrDuplicateID is returned when two tracks share a media id
	ErrDuplicateID = errors.New("duplicate media id")
)

// Catalog is an ordered, read-only collection of tracks keyed by media id.
// It is built once and injected into the components that need it; all
// methods are safe for concurrent use because nothing mutates it.
type Catalog struct {
	ids    []string
	tracks map[string]models.Track
}

// New builds a catalog ordered lexicographically by id.
func New(tracks []models.Track) (*Catalog, error) {
	if len(tracks) == 0 {
		return nil, ErrEmpty
	}

	c := &Catalog{
		ids:    make([]string, 0, len(tracks)),
		tracks: make(map[string]models.Track, len(tracks)),
	}
	for _, track := range tracks {
		if track.ID == "" {
			return nil, fmt.Errorf("track %q has no media id", track.Title)
		}
		if _, exists := c.tracks[track.ID]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, track.ID)
		}
		if track.DurationMS < 0 {
			return nil, fmt.Errorf("track %s has negative duration", track.ID)
		}
		c.tracks[track.ID] = track
		c.ids = append(c.ids, track.ID)
	}
	sort.Strings(c.ids)

	return c, nil
}

// Len returns the number of tracks
func (c *Catalog) Len() int {
	return len(c.ids)
}

// List returns every track in ascending id order.
func (c *Catalog) List() []models.Track {
	out := make([]models.Track, 0, len(c.ids))
	for _, id := range c.ids {
		out = append(out, c.tracks[id])
	}
	return out
}

// Get returns the track with the given id.
func (c *Catalog) Get(id string) (models.Track, error) {
	track, ok := c.tracks[id]
	if !ok {
		return models.Track{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return track, nil
}

// Previous returns the greatest id sorting before id, wrapping to the last
// id. id need not be in the catalog.
func (c *Catalog) Previous(id string) string {
	i := sort.SearchStrings(c.ids, id)
	if i == 0 {
		return c.ids[len(c.ids)-1]
	}
	return c.ids[i-1]
}

// Next returns the smallest id sorting after id, wrapping to the first id.
// id need not be in the catalog.
func (c *Catalog) Next(id string) string {
	i := sort.SearchStrings(c.ids, id)
	if i < len(c.ids) && c.ids[i] == id {
		i++
	}
	if i >= len(c.ids) {
		return c.ids[0]
	}
	return c.ids[i]
}

// Search returns tracks whose title, artist, album or genre contains query,
// ignoring case, in id order. An empty query matches nothing.
func (c *Catalog) Search(query string) []models.Track {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}

	var matches []models.Track
	for _, id := range c.ids {
		track := c.tracks[id]
		for _, field := range []string{track.Title, track.Artist, track.Album, track.Genre, track.ID} {
			if strings.Contains(strings.ToLower(field), query) {
				matches = append(matches, track)
				break
			}
		}
	}
	return matches
}
