// Package ingest loads arena inputs from files: evaluation queries, system
// response batches and filter policies. Files are YAML; JSON parses too
// since every JSON document is valid YAML.
package ingest

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/auralab/song-arena/internal/domain"
)

// QueryFile is the on-disk shape of a query upload.
type QueryFile struct {
	Queries []domain.Query `json:"queries" yaml:"queries"`
}

func LoadQueriesFromFile(path string) ([]domain.Query, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read queries file: %w", err)
	}
	return ParseQueries(data)
}

func ParseQueries(data []byte) ([]domain.Query, error) {
	var f QueryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse queries YAML: %w", err)
	}
	if len(f.Queries) == 0 {
		return nil, fmt.Errorf("file has no queries")
	}

	seen := make(map[string]bool, len(f.Queries))
	for i, q := range f.Queries {
		if err := q.Validate(); err != nil {
			return nil, fmt.Errorf("query at index %d: %w", i, err)
		}
		if seen[q.ID] {
			return nil, fmt.Errorf("duplicate query id %q", q.ID)
		}
		seen[q.ID] = true
	}
	return f.Queries, nil
}
