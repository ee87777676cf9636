// Package tracks provides the track-metadata collaborator: batch lookup of
// display metadata by track ID, tolerant of misses. The catalog is loaded
// once from a JSON dump and held in memory for the life of the process.
package tracks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

type Artist struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

type Track struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Artists    []Artist `json:"artists"`
	AlbumName  string   `json:"album_name,omitempty"`
	AlbumArt   string   `json:"album_art,omitempty"`
	PreviewURL string   `json:"preview_url,omitempty"`
	DurationMS int      `json:"duration_ms,omitempty"`
}

// PrimaryArtist returns the first listed artist's name, or "" when the track
// carries no artist metadata.
func (t Track) PrimaryArtist() string {
	if len(t.Artists) == 0 {
		return ""
	}
	return t.Artists[0].Name
}

// Catalog is the lookup contract consumed by the filter and the scheduler.
type Catalog interface {
	// GetBatch resolves the given IDs. Unknown IDs are simply absent from
	// the returned map; callers decide whether a miss is an error.
	GetBatch(ctx context.Context, ids []string) (map[string]Track, error)

	// Get resolves a single ID.
	Get(ctx context.Context, id string) (Track, bool)
}

// MemoryCatalog is an immutable in-memory Catalog.
type MemoryCatalog struct {
	tracks map[string]Track
}

func NewMemoryCatalog(all []Track) *MemoryCatalog {
	m := make(map[string]Track, len(all))
	for _, t := range all {
		m[t.ID] = t
	}
	return &MemoryCatalog{tracks: m}
}

// LoadCatalog reads a catalog JSON dump. Both a flat array of tracks and a
// map keyed by track ID are accepted.
func LoadCatalog(path string) (*MemoryCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read track catalog: %w", err)
	}

	var list []Track
	if err := json.Unmarshal(data, &list); err == nil {
		return NewMemoryCatalog(list), nil
	}

	var byID map[string]Track
	if err := json.Unmarshal(data, &byID); err != nil {
		return nil, fmt.Errorf("parse track catalog %s: %w", path, err)
	}
	tracks := make([]Track, 0, len(byID))
	for id, t := range byID {
		if t.ID == "" {
			t.ID = id
		}
		tracks = append(tracks, t)
	}
	return NewMemoryCatalog(tracks), nil
}

func (c *MemoryCatalog) GetBatch(_ context.Context, ids []string) (map[string]Track, error) {
	found := make(map[string]Track, len(ids))
	for _, id := range ids {
		if t, ok := c.tracks[id]; ok {
			found[id] = t
		}
	}
	return found, nil
}

func (c *MemoryCatalog) Get(_ context.Context, id string) (Track, bool) {
	t, ok := c.tracks[id]
	return t, ok
}

// Len reports the catalog size.
func (c *MemoryCatalog) Len() int { return len(c.tracks) }

var _ Catalog = (*MemoryCatalog)(nil)
