package ingest

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/auralab/song-arena/internal/domain"
)

// ResponseFile is one system's full upload: its identity, the config it ran
// with and its ranked candidates per query.
type ResponseFile struct {
	SystemID  string          `json:"system_id" yaml:"system_id"`
	DatasetID string          `json:"dataset_id" yaml:"dataset_id"`
	Config    map[string]any  `json:"config,omitempty" yaml:"config,omitempty"`
	Responses []QueryResponse `json:"responses" yaml:"responses"`
}

type QueryResponse struct {
	QueryID    string                   `json:"query_id" yaml:"query_id"`
	Candidates []domain.RankedCandidate `json:"candidates" yaml:"candidates"`
}

func LoadResponsesFromFile(path string) (*ResponseFile, []domain.ResponseBatch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read responses file: %w", err)
	}
	return ParseResponses(data)
}

// ParseResponses parses a response file into per-query batches.
func ParseResponses(data []byte) (*ResponseFile, []domain.ResponseBatch, error) {
	var f ResponseFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, nil, fmt.Errorf("parse responses YAML: %w", err)
	}
	batches, err := BatchesFromFile(&f)
	if err != nil {
		return nil, nil, err
	}
	return &f, batches, nil
}

// BatchesFromFile expands a response file into per-query batches. Candidates
// without explicit ranks get their list position; explicit ranks are kept
// as uploaded.
func BatchesFromFile(f *ResponseFile) ([]domain.ResponseBatch, error) {
	if f.SystemID == "" {
		return nil, fmt.Errorf("file has no system_id")
	}
	if len(f.Responses) == 0 {
		return nil, fmt.Errorf("file has no responses")
	}

	batches := make([]domain.ResponseBatch, 0, len(f.Responses))
	seen := make(map[string]bool, len(f.Responses))
	for _, r := range f.Responses {
		if seen[r.QueryID] {
			return nil, fmt.Errorf("duplicate response for query %q", r.QueryID)
		}
		seen[r.QueryID] = true

		cs := make([]domain.RankedCandidate, len(r.Candidates))
		copy(cs, r.Candidates)
		for i := range cs {
			if cs[i].Rank == 0 {
				cs[i].Rank = i + 1
			}
		}

		batches = append(batches, domain.ResponseBatch{
			SystemID:   f.SystemID,
			DatasetID:  f.DatasetID,
			Config:     f.Config,
			QueryID:    r.QueryID,
			Candidates: cs,
		})
	}
	return batches, nil
}
