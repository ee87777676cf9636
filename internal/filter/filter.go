// Package filter turns one system's raw ranked candidates for one query into
// a bounded, deduplicated final list under a versioned policy.
package filter

import (
	"github.com/auralab/song-arena/internal/domain"
	"github.com/auralab/song-arena/internal/tracks"
)

// Result is the outcome of filtering one (system, query) candidate list.
type Result struct {
	// FinalOrder holds the accepted track IDs, at most policy.FinalK long,
	// in original rank order.
	FinalOrder []string

	// FilterCounts tallies rejected candidates per reason, plus the
	// no_candidates / insufficient_results markers.
	FilterCounts map[string]int

	// DepthScanned is the number of candidates examined, rejects included.
	DepthScanned int
}

// Run applies the policy's filter chain to candidates, which must be sorted
// by rank ascending. meta resolves track IDs to metadata; a candidate whose
// metadata is missing is skipped and counted, never fatal. The scan stops as
// soon as FinalK tracks are accepted.
//
// The chain, in fixed priority per candidate: seed-track exclusion, seed-
// artist exclusion (song queries with ExcludeSeedArtist only), exact track
// dedup, per-artist cap.
func Run(query domain.Query, policy domain.Policy, candidates []domain.Candidate, meta map[string]tracks.Track) Result {
	counts := map[string]int{
		domain.FilterSeedTrackExcluded:  0,
		domain.FilterSeedArtistExcluded: 0,
		domain.FilterDuplicateTrack:     0,
		domain.FilterArtistCapReached:   0,
		domain.FilterMissingMetadata:    0,
		domain.FilterInsufficient:       0,
	}

	if len(candidates) == 0 {
		return Result{
			FinalOrder:   []string{},
			FilterCounts: map[string]int{domain.FilterNoCandidates: 1},
		}
	}

	// Seed-artist exclusion compares primary artist to primary artist.
	// A collaboration's secondary artists do not trigger it.
	var seedArtist string
	if query.Type == domain.TaskTypeSong && policy.ExcludeSeedArtist {
		if seed, ok := meta[query.SeedTrackID]; ok {
			seedArtist = seed.PrimaryArtist()
		}
	}

	final := make([]string, 0, policy.FinalK)
	seen := make(map[string]struct{}, policy.FinalK)
	artistCounts := make(map[string]int)
	depth := 0

	for _, cand := range candidates {
		if len(final) >= policy.FinalK {
			break
		}
		depth++

		track, ok := meta[cand.TrackID]
		if !ok {
			counts[domain.FilterMissingMetadata]++
			continue
		}

		if cand.TrackID == query.SeedTrackID && query.SeedTrackID != "" {
			counts[domain.FilterSeedTrackExcluded]++
			continue
		}

		primary := track.PrimaryArtist()

		if seedArtist != "" && primary == seedArtist {
			counts[domain.FilterSeedArtistExcluded]++
			continue
		}

		if _, dup := seen[cand.TrackID]; dup {
			counts[domain.FilterDuplicateTrack]++
			continue
		}

		// Tracks without artist metadata bypass the cap.
		if primary != "" {
			if artistCounts[primary] >= policy.MaxPerArtist {
				counts[domain.FilterArtistCapReached]++
				continue
			}
			artistCounts[primary]++
		}

		final = append(final, cand.TrackID)
		seen[cand.TrackID] = struct{}{}
	}

	if len(final) < policy.FinalK {
		counts[domain.FilterInsufficient] = policy.FinalK - len(final)
	}

	return Result{
		FinalOrder:   final,
		FilterCounts: counts,
		DepthScanned: depth,
	}
}
