package domain

import "fmt"

// TaskType represents the comparison paradigm of a query.
type TaskType string

const (
	// TaskTypeText: free-text description matched against the catalog
	TaskTypeText TaskType = "text"

	// TaskTypeSong: seed-track similarity search
	TaskTypeSong TaskType = "song"
)

func (t TaskType) Valid() bool {
	return t == TaskTypeText || t == TaskTypeSong
}

// Query is a single evaluation request. Queries are immutable once uploaded;
// the ID is a content hash for text queries and the seed track ID for song queries.
type Query struct {
	ID          string         `json:"query_id" yaml:"id"`
	Type        TaskType       `json:"task_type" yaml:"type"`
	Text        string         `json:"query_text,omitempty" yaml:"text,omitempty"`
	SeedTrackID string         `json:"seed_track_id,omitempty" yaml:"track_id,omitempty"`
	Intents     []string       `json:"intents,omitempty" yaml:"intents,omitempty"`
	Genres      []string       `json:"genres,omitempty" yaml:"genres,omitempty"`
	Era         string         `json:"era,omitempty" yaml:"era,omitempty"`
	Extras      map[string]any `json:"extras,omitempty" yaml:"extras,omitempty"`
}

func (q Query) Validate() error {
	if q.ID == "" {
		return fmt.Errorf("query has no id")
	}
	if !q.Type.Valid() {
		return fmt.Errorf("query %q: invalid type %q, must be %q or %q", q.ID, q.Type, TaskTypeText, TaskTypeSong)
	}
	if q.Type == TaskTypeText && q.Text == "" {
		return fmt.Errorf("query %q: text is required for text queries", q.ID)
	}
	if q.Type == TaskTypeSong && q.SeedTrackID == "" {
		return fmt.Errorf("query %q: track_id is required for song queries", q.ID)
	}
	return nil
}
