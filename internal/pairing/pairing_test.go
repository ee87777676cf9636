package pairing_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auralab/song-arena/internal/apperr"
	"github.com/auralab/song-arena/internal/domain"
	"github.com/auralab/song-arena/internal/pairing"
	"github.com/auralab/song-arena/internal/storage/memory"
)

func storeWithSystems(t *testing.T, systems ...string) *memory.Store {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	require.NoError(t, store.UpsertQuery(ctx, domain.Query{ID: "q1", Type: domain.TaskTypeText, Text: "a"}))
	require.NoError(t, store.UpsertQuery(ctx, domain.Query{ID: "q2", Type: domain.TaskTypeText, Text: "b"}))
	for _, s := range systems {
		require.NoError(t, store.UpsertSystem(ctx, domain.System{ID: s}))
		require.NoError(t, store.UpsertCandidates(ctx, []domain.Candidate{
			{SystemID: s, QueryID: "q1", Rank: 1, TrackID: "t1"},
		}))
	}
	return store
}

func TestGeneratePairs_AllCombinations(t *testing.T) {
	store := storeWithSystems(t, "alpha", "beta", "gamma")
	g := pairing.NewGenerator(store)

	pairs, err := g.GeneratePairs(context.Background())
	require.NoError(t, err)
	require.Len(t, pairs, 3)

	ids := make([]string, len(pairs))
	for i, p := range pairs {
		ids[i] = p.ID
		assert.Less(t, p.SystemA, p.SystemB)
	}
	assert.ElementsMatch(t, []string{"alpha_vs_beta", "alpha_vs_gamma", "beta_vs_gamma"}, ids)
}

func TestGeneratePairs_NeedsTwoSystems(t *testing.T) {
	store := storeWithSystems(t, "solo")
	g := pairing.NewGenerator(store)

	_, err := g.GeneratePairs(context.Background())
	var confErr *apperr.ConfigurationError
	require.ErrorAs(t, err, &confErr)
}

func TestGeneratePairs_SystemWithoutCandidatesIgnored(t *testing.T) {
	ctx := context.Background()
	store := storeWithSystems(t, "alpha", "beta")
	// Registered but never uploaded anything.
	require.NoError(t, store.UpsertSystem(ctx, domain.System{ID: "ghost"}))
	g := pairing.NewGenerator(store)

	pairs, err := g.GeneratePairs(ctx)
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, "alpha_vs_beta", pairs[0].ID)
}

func TestCreateTasks_QueryPairCrossProduct(t *testing.T) {
	ctx := context.Background()
	store := storeWithSystems(t, "alpha", "beta", "gamma")
	g := pairing.NewGenerator(store)

	_, err := g.GeneratePairs(ctx)
	require.NoError(t, err)

	count, errs, err := g.CreateTasks(ctx, 3)
	require.NoError(t, err)
	assert.Empty(t, errs)
	assert.Equal(t, 6, count) // 2 queries x 3 pairs

	tasks, err := store.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 6)
	for _, task := range tasks {
		assert.Equal(t, 3, task.TargetJudgments)
		assert.Zero(t, task.CollectedJudgments)
		assert.False(t, task.Done)
	}
}

func TestCreateTasks_RerunPreservesExisting(t *testing.T) {
	ctx := context.Background()
	store := storeWithSystems(t, "alpha", "beta")
	g := pairing.NewGenerator(store)

	_, err := g.GeneratePairs(ctx)
	require.NoError(t, err)
	_, _, err = g.CreateTasks(ctx, 3)
	require.NoError(t, err)

	before, err := store.ListTasks(ctx)
	require.NoError(t, err)

	_, _, err = g.CreateTasks(ctx, 3)
	require.NoError(t, err)
	after, err := store.ListTasks(ctx)
	require.NoError(t, err)

	require.Equal(t, len(before), len(after))
	beforeIDs := map[string]bool{}
	for _, task := range before {
		beforeIDs[task.ID.String()] = true
	}
	for _, task := range after {
		assert.True(t, beforeIDs[task.ID.String()], "task identity changed on re-run")
	}
}

func TestCreateTasks_RequiresPairs(t *testing.T) {
	store := storeWithSystems(t, "alpha", "beta")
	g := pairing.NewGenerator(store)

	_, _, err := g.CreateTasks(context.Background(), 3)
	var confErr *apperr.ConfigurationError
	require.ErrorAs(t, err, &confErr)
}

func TestCreateTasks_DefaultTarget(t *testing.T) {
	ctx := context.Background()
	store := storeWithSystems(t, "alpha", "beta")
	g := pairing.NewGenerator(store)

	_, err := g.GeneratePairs(ctx)
	require.NoError(t, err)
	_, _, err = g.CreateTasks(ctx, 0)
	require.NoError(t, err)

	tasks, err := store.ListTasks(ctx)
	require.NoError(t, err)
	for _, task := range tasks {
		assert.Equal(t, domain.DefaultTargetJudgments, task.TargetJudgments)
	}
}
