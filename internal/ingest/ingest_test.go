package ingest_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auralab/song-arena/internal/apperr"
	"github.com/auralab/song-arena/internal/domain"
	"github.com/auralab/song-arena/internal/ingest"
	"github.com/auralab/song-arena/internal/storage/memory"
	"github.com/auralab/song-arena/internal/tracks"
)

func TestParseQueries(t *testing.T) {
	t.Run("valid file", func(t *testing.T) {
		yaml := `
queries:
  - id: q-road-trip
    type: text
    text: "songs for a long road trip"
    genres: [rock]
  - id: q-seed-1
    type: song
    track_id: trk-42
    era: "90s"
`
		qs, err := ingest.ParseQueries([]byte(yaml))
		require.NoError(t, err)
		require.Len(t, qs, 2)
		assert.Equal(t, domain.TaskTypeText, qs[0].Type)
		assert.Equal(t, "trk-42", qs[1].SeedTrackID)
	})

	t.Run("json parses too", func(t *testing.T) {
		js := `{"queries":[{"id":"q1","type":"text","text":"x"}]}`
		qs, err := ingest.ParseQueries([]byte(js))
		require.NoError(t, err)
		assert.Len(t, qs, 1)
	})

	t.Run("empty file", func(t *testing.T) {
		_, err := ingest.ParseQueries([]byte("queries: []"))
		assert.ErrorContains(t, err, "no queries")
	})

	t.Run("duplicate ids", func(t *testing.T) {
		yaml := `
queries:
  - {id: q1, type: text, text: a}
  - {id: q1, type: text, text: b}
`
		_, err := ingest.ParseQueries([]byte(yaml))
		assert.ErrorContains(t, err, "duplicate query id")
	})

	t.Run("song query without seed", func(t *testing.T) {
		_, err := ingest.ParseQueries([]byte("queries: [{id: q1, type: song}]"))
		assert.Error(t, err)
	})
}

func TestParseResponses(t *testing.T) {
	yaml := `
system_id: sys-bm25
dataset_id: ds-1
config:
  ranker: bm25
responses:
  - query_id: q1
    candidates:
      - {track_id: t1, score: 0.91}
      - {track_id: t2, score: 0.80}
  - query_id: q2
    candidates:
      - {track_id: t9, rank: 1, score: 0.77}
`
	file, batches, err := ingest.ParseResponses([]byte(yaml))
	require.NoError(t, err)
	assert.Equal(t, "sys-bm25", file.SystemID)
	require.Len(t, batches, 2)

	// Positional ranks filled in when absent.
	assert.Equal(t, 1, batches[0].Candidates[0].Rank)
	assert.Equal(t, 2, batches[0].Candidates[1].Rank)
	assert.Equal(t, 1, batches[1].Candidates[0].Rank)

	t.Run("duplicate query", func(t *testing.T) {
		bad := `
system_id: s
responses:
  - {query_id: q1, candidates: [{track_id: t1}]}
  - {query_id: q1, candidates: [{track_id: t2}]}
`
		_, _, err := ingest.ParseResponses([]byte(bad))
		assert.ErrorContains(t, err, "duplicate response")
	})

	t.Run("missing system", func(t *testing.T) {
		_, _, err := ingest.ParseResponses([]byte("responses: [{query_id: q1}]"))
		assert.ErrorContains(t, err, "no system_id")
	})
}

func TestParsePolicy(t *testing.T) {
	p, err := ingest.ParsePolicy([]byte("version: v2\nexclude_seed_artist: true"))
	require.NoError(t, err)
	assert.Equal(t, "v2", p.Version)
	assert.Equal(t, domain.DefaultFinalK, p.FinalK)
	assert.Equal(t, domain.DefaultRetrievalDepthK, p.RetrievalDepthK)
	assert.True(t, p.ExcludeSeedArtist)

	_, err = ingest.ParsePolicy([]byte("final_k: 5"))
	assert.ErrorContains(t, err, "no version")
}

func newPipeline(t *testing.T) (*ingest.Pipeline, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	catalog := tracks.NewMemoryCatalog([]tracks.Track{
		{ID: "t1", Name: "One", Artists: []tracks.Artist{{Name: "a"}}},
		{ID: "t2", Name: "Two", Artists: []tracks.Artist{{Name: "b"}}},
	})
	return ingest.NewPipeline(store, catalog), store
}

func TestApplyQueries_SeedMustExistInCatalog(t *testing.T) {
	ctx := context.Background()
	p, store := newPipeline(t)

	count, errs, err := p.ApplyQueries(ctx, []domain.Query{
		{ID: "q1", Type: domain.TaskTypeSong, SeedTrackID: "t1"},
		{ID: "q2", Type: domain.TaskTypeSong, SeedTrackID: "missing"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "not in catalog")

	qs, err := store.ListQueries(ctx)
	require.NoError(t, err)
	assert.Len(t, qs, 1)
}

func TestApplyResponses(t *testing.T) {
	ctx := context.Background()
	p, store := newPipeline(t)

	t.Run("requires an active policy", func(t *testing.T) {
		_, _, err := p.ApplyResponses(ctx, &ingest.ResponseFile{SystemID: "s"}, nil)
		var confErr *apperr.ConfigurationError
		require.ErrorAs(t, err, &confErr)
	})

	require.NoError(t, p.ApplyPolicy(ctx, domain.Policy{
		Version: "v1", RetrievalDepthK: 2, FinalK: 1, MaxPerArtist: 1,
	}))
	require.NoError(t, store.UpsertQuery(ctx, domain.Query{ID: "q1", Type: domain.TaskTypeText, Text: "x"}))

	file := &ingest.ResponseFile{SystemID: "sys", DatasetID: "d", Config: map[string]any{"k": "v"}}
	batches := []domain.ResponseBatch{
		{SystemID: "sys", QueryID: "q1", Candidates: []domain.RankedCandidate{
			{TrackID: "t1", Rank: 1}, {TrackID: "t2", Rank: 2},
		}},
		// Too shallow for retrieval_depth_k=2.
		{SystemID: "sys", QueryID: "q1", Candidates: []domain.RankedCandidate{{TrackID: "t1", Rank: 1}}},
		// Unknown query.
		{SystemID: "sys", QueryID: "q9", Candidates: []domain.RankedCandidate{
			{TrackID: "t1", Rank: 1}, {TrackID: "t2", Rank: 2},
		}},
	}

	count, errs, err := p.ApplyResponses(ctx, file, batches)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Len(t, errs, 2)

	systems, err := store.ListSystems(ctx)
	require.NoError(t, err)
	require.Len(t, systems, 1)
	assert.Equal(t, domain.HashConfig(file.Config), systems[0].ConfigHash)

	cs, err := store.ListCandidates(ctx, "sys", "q1")
	require.NoError(t, err)
	assert.Len(t, cs, 2)
}
