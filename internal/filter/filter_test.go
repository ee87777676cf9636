package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auralab/song-arena/internal/domain"
	"github.com/auralab/song-arena/internal/tracks"
)

func testPolicy() domain.Policy {
	return domain.Policy{
		Version:           "test-v1",
		RetrievalDepthK:   50,
		FinalK:            5,
		MaxPerArtist:      1,
		ExcludeSeedArtist: true,
	}
}

func track(id, artist string) tracks.Track {
	return tracks.Track{ID: id, Name: id, Artists: []tracks.Artist{{Name: artist}}}
}

func cands(ids ...string) []domain.Candidate {
	out := make([]domain.Candidate, len(ids))
	for i, id := range ids {
		out[i] = domain.Candidate{SystemID: "sys", QueryID: "q1", Rank: i + 1, TrackID: id, Score: 1 - float64(i)*0.01}
	}
	return out
}

func TestRun_AcceptsInRankOrderUpToFinalK(t *testing.T) {
	meta := map[string]tracks.Track{}
	ids := []string{"t1", "t2", "t3", "t4", "t5", "t6", "t7"}
	for i, id := range ids {
		meta[id] = track(id, "artist"+string(rune('a'+i)))
	}
	q := domain.Query{ID: "q1", Type: domain.TaskTypeText, Text: "mellow"}

	res := Run(q, testPolicy(), cands(ids...), meta)

	assert.Equal(t, []string{"t1", "t2", "t3", "t4", "t5"}, res.FinalOrder)
	assert.Equal(t, 5, res.DepthScanned)
	assert.Equal(t, 0, res.FilterCounts[domain.FilterInsufficient])
}

func TestRun_ExcludesSeedTrack(t *testing.T) {
	meta := map[string]tracks.Track{
		"seed": track("seed", "x"),
		"t1":   track("t1", "a"),
		"t2":   track("t2", "b"),
	}
	q := domain.Query{ID: "seed", Type: domain.TaskTypeSong, SeedTrackID: "seed"}
	p := testPolicy()
	p.ExcludeSeedArtist = false

	res := Run(q, p, cands("seed", "t1", "t2"), meta)

	assert.NotContains(t, res.FinalOrder, "seed")
	assert.Equal(t, 1, res.FilterCounts[domain.FilterSeedTrackExcluded])
	assert.Equal(t, []string{"t1", "t2"}, res.FinalOrder)
}

func TestRun_SeedArtistExclusion(t *testing.T) {
	meta := map[string]tracks.Track{
		"seed":  track("seed", "Shared Artist"),
		"same":  track("same", "Shared Artist"),
		"other": track("other", "Someone Else"),
		// Secondary-artist collaboration must NOT be excluded.
		"collab": {ID: "collab", Artists: []tracks.Artist{{Name: "Lead"}, {Name: "Shared Artist"}}},
	}
	q := domain.Query{ID: "seed", Type: domain.TaskTypeSong, SeedTrackID: "seed"}

	t.Run("enabled on song query", func(t *testing.T) {
		res := Run(q, testPolicy(), cands("same", "collab", "other"), meta)
		assert.Equal(t, []string{"collab", "other"}, res.FinalOrder)
		assert.Equal(t, 1, res.FilterCounts[domain.FilterSeedArtistExcluded])
	})

	t.Run("disabled by policy", func(t *testing.T) {
		p := testPolicy()
		p.ExcludeSeedArtist = false
		res := Run(q, p, cands("same", "other"), meta)
		assert.Contains(t, res.FinalOrder, "same")
	})

	t.Run("never applies to text queries", func(t *testing.T) {
		tq := domain.Query{ID: "q2", Type: domain.TaskTypeText, Text: "anything"}
		res := Run(tq, testPolicy(), cands("same", "other"), meta)
		assert.Contains(t, res.FinalOrder, "same")
	})
}

func TestRun_DeduplicatesTrackIDs(t *testing.T) {
	meta := map[string]tracks.Track{
		"t1": track("t1", "a"),
		"t2": track("t2", "b"),
	}
	q := domain.Query{ID: "q1", Type: domain.TaskTypeText, Text: "x"}

	res := Run(q, testPolicy(), cands("t1", "t1", "t2"), meta)

	assert.Equal(t, []string{"t1", "t2"}, res.FinalOrder)
	assert.Equal(t, 1, res.FilterCounts[domain.FilterDuplicateTrack])
}

func TestRun_ArtistCap(t *testing.T) {
	meta := map[string]tracks.Track{
		"t1": track("t1", "prolific"),
		"t2": track("t2", "prolific"),
		"t3": track("t3", "prolific"),
		"t4": track("t4", "other"),
	}
	q := domain.Query{ID: "q1", Type: domain.TaskTypeText, Text: "x"}

	t.Run("cap of one", func(t *testing.T) {
		res := Run(q, testPolicy(), cands("t1", "t2", "t3", "t4"), meta)
		assert.Equal(t, []string{"t1", "t4"}, res.FinalOrder)
		assert.Equal(t, 2, res.FilterCounts[domain.FilterArtistCapReached])
	})

	t.Run("cap of two", func(t *testing.T) {
		p := testPolicy()
		p.MaxPerArtist = 2
		res := Run(q, p, cands("t1", "t2", "t3", "t4"), meta)
		assert.Equal(t, []string{"t1", "t2", "t4"}, res.FinalOrder)
	})

	t.Run("artistless tracks bypass the cap", func(t *testing.T) {
		m := map[string]tracks.Track{
			"n1": {ID: "n1"},
			"n2": {ID: "n2"},
		}
		res := Run(q, testPolicy(), cands("n1", "n2"), m)
		assert.Equal(t, []string{"n1", "n2"}, res.FinalOrder)
	})
}

func TestRun_MissingMetadataIsSoftSkip(t *testing.T) {
	meta := map[string]tracks.Track{
		"known": track("known", "a"),
	}
	q := domain.Query{ID: "q1", Type: domain.TaskTypeText, Text: "x"}

	res := Run(q, testPolicy(), cands("ghost", "known"), meta)

	assert.Equal(t, []string{"known"}, res.FinalOrder)
	assert.Equal(t, 1, res.FilterCounts[domain.FilterMissingMetadata])
}

func TestRun_EmptyCandidates(t *testing.T) {
	q := domain.Query{ID: "q1", Type: domain.TaskTypeText, Text: "x"}

	res := Run(q, testPolicy(), nil, nil)

	assert.Empty(t, res.FinalOrder)
	assert.Equal(t, 0, res.DepthScanned)
	assert.Equal(t, 1, res.FilterCounts[domain.FilterNoCandidates])
}

func TestRun_InsufficientResults(t *testing.T) {
	meta := map[string]tracks.Track{
		"t1": track("t1", "a"),
		"t2": track("t2", "b"),
	}
	q := domain.Query{ID: "q1", Type: domain.TaskTypeText, Text: "x"}

	res := Run(q, testPolicy(), cands("t1", "t2"), meta)

	assert.Len(t, res.FinalOrder, 2)
	assert.Equal(t, 3, res.FilterCounts[domain.FilterInsufficient])
	assert.Equal(t, 2, res.DepthScanned)
}

func TestRun_Invariants(t *testing.T) {
	// Properties that must hold for any input: bounded length, no
	// duplicates, artist cap respected, seed track absent.
	meta := map[string]tracks.Track{}
	var cs []domain.Candidate
	artists := []string{"a", "b", "c"}
	for i := 0; i < 40; i++ {
		id := "t" + string(rune('a'+i%26)) + string(rune('0'+i/26))
		meta[id] = track(id, artists[i%len(artists)])
		cs = append(cs, domain.Candidate{SystemID: "s", QueryID: "q", Rank: i + 1, TrackID: id})
	}
	// Inject the seed and duplicates.
	meta["seed"] = track("seed", "a")
	cs[7].TrackID = "seed"
	cs[12].TrackID = cs[0].TrackID

	q := domain.Query{ID: "seed", Type: domain.TaskTypeSong, SeedTrackID: "seed"}
	p := testPolicy()
	p.MaxPerArtist = 2
	p.FinalK = 6

	res := Run(q, p, cs, meta)

	assert.LessOrEqual(t, len(res.FinalOrder), p.FinalK)
	assert.NotContains(t, res.FinalOrder, "seed")

	seen := map[string]int{}
	perArtist := map[string]int{}
	for _, id := range res.FinalOrder {
		seen[id]++
		perArtist[meta[id].PrimaryArtist()]++
	}
	for id, n := range seen {
		assert.Equal(t, 1, n, "track %s appears more than once", id)
	}
	for artist, n := range perArtist {
		if artist == "" {
			continue
		}
		assert.LessOrEqual(t, n, p.MaxPerArtist, "artist %s over cap", artist)
	}

	// Determinism: identical input yields identical output.
	again := Run(q, p, cs, meta)
	require.Equal(t, res.FinalOrder, again.FinalOrder)
	require.Equal(t, res.FilterCounts, again.FilterCounts)
	require.Equal(t, res.DepthScanned, again.DepthScanned)
}
