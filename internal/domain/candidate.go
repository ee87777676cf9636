package domain

import "fmt"

// Candidate is one raw ranked result from a system for a query.
// Rank is 1-based and unique per (system, query).
type Candidate struct {
	SystemID string  `json:"system_id"`
	QueryID  string  `json:"query_id"`
	Rank     int     `json:"rank"`
	TrackID  string  `json:"track_id"`
	Score    float64 `json:"score"`
}

// RankedCandidate is a candidate as it appears inside a response upload,
// before it is keyed by system and query.
type RankedCandidate struct {
	TrackID string  `json:"track_id" yaml:"track_id"`
	Score   float64 `json:"score" yaml:"score"`
	Rank    int     `json:"rank" yaml:"rank"`
}

// ResponseBatch is one system's full ranked output for a single query.
type ResponseBatch struct {
	SystemID   string            `json:"system_id" yaml:"system_id"`
	Config     map[string]any    `json:"config,omitempty" yaml:"config,omitempty"`
	QueryID    string            `json:"query_id" yaml:"query_id"`
	DatasetID  string            `json:"dataset_id" yaml:"dataset_id"`
	Candidates []RankedCandidate `json:"candidates" yaml:"candidates"`
}

// Validate checks batch shape. minDepth is the active policy's
// retrieval_depth_k: batches shallower than the scan depth are rejected at
// upload time rather than producing starved final lists later.
func (r ResponseBatch) Validate(minDepth int) error {
	if r.SystemID == "" {
		return fmt.Errorf("response has no system_id")
	}
	if r.QueryID == "" {
		return fmt.Errorf("response for system %q has no query_id", r.SystemID)
	}
	if len(r.Candidates) < minDepth {
		return fmt.Errorf("response %s/%s: insufficient candidates, need at least %d, got %d",
			r.SystemID, r.QueryID, minDepth, len(r.Candidates))
	}
	for i, c := range r.Candidates {
		if c.Rank < 1 {
			return fmt.Errorf("response %s/%s: candidate %d has rank %d, must be >= 1",
				r.SystemID, r.QueryID, i, c.Rank)
		}
		if c.TrackID == "" {
			return fmt.Errorf("response %s/%s: candidate at rank %d has no track_id",
				r.SystemID, r.QueryID, c.Rank)
		}
	}
	return nil
}
