package domain

import "time"

// Filter reason keys recorded in FinalList.FilterCounts.
const (
	FilterSeedTrackExcluded  = "seed_track_excluded"
	FilterSeedArtistExcluded = "seed_artist_excluded"
	FilterDuplicateTrack     = "duplicate_track_skipped"
	FilterArtistCapReached   = "duplicate_artist_skipped"
	FilterMissingMetadata    = "missing_metadata"
	FilterInsufficient       = "insufficient_results"
	FilterNoCandidates       = "no_candidates"
)

// FinalList is the materialized post-filter output for one
// (policy, system, query). Recomputed on every materialization run;
// upserts are idempotent on the natural key.
type FinalList struct {
	PolicyVersion string         `json:"policy_version"`
	SystemID      string         `json:"system_id"`
	QueryID       string         `json:"query_id"`
	FinalOrder    []string       `json:"final_order"`
	FilterCounts  map[string]int `json:"filter_counts"`
	DepthScanned  int            `json:"depth_scanned"`
	GeneratedAt   time.Time      `json:"generated_at"`
}
