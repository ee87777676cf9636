// Package pairing derives the unordered system pairs under comparison and
// the per-query judgment tasks for each pair.
package pairing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/auralab/song-arena/internal/apperr"
	"github.com/auralab/song-arena/internal/domain"
	"github.com/auralab/song-arena/internal/storage"
)

type Generator struct {
	store storage.Store
}

func NewGenerator(store storage.Store) *Generator {
	return &Generator{store: store}
}

// GeneratePairs enumerates every unordered pair of systems that have uploaded
// candidates and upserts them. At least two such systems must exist. Re-runs
// are idempotent: pair identity is canonical, so existing pairs are untouched
// and only newly possible combinations are added.
func (g *Generator) GeneratePairs(ctx context.Context) ([]domain.Pair, error) {
	systemIDs, err := g.store.ListSystemsWithCandidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("list systems: %w", err)
	}
	if len(systemIDs) < 2 {
		return nil, apperr.NewConfiguration(
			fmt.Sprintf("need at least 2 systems with candidates to form pairs, have %d", len(systemIDs)))
	}

	pairs := make([]domain.Pair, 0, len(systemIDs)*(len(systemIDs)-1)/2)
	for i := 0; i < len(systemIDs); i++ {
		for j := i + 1; j < len(systemIDs); j++ {
			p := domain.NewPair(systemIDs[i], systemIDs[j])
			if err := g.store.UpsertPair(ctx, p); err != nil {
				return nil, fmt.Errorf("upsert pair %s: %w", p.ID, err)
			}
			pairs = append(pairs, p)
		}
	}

	slog.Info("generated system pairs", "systems", len(systemIDs), "pairs", len(pairs))
	return pairs, nil
}

// CreateTasks materializes one task per (query, pair) combination with the
// given judgment target. Existing tasks keep their identity and collected
// counts; only missing combinations are created. Per-combination failures are
// accumulated and do not abort the batch.
func (g *Generator) CreateTasks(ctx context.Context, targetJudgments int) (int, []string, error) {
	if targetJudgments <= 0 {
		targetJudgments = domain.DefaultTargetJudgments
	}

	queries, err := g.store.ListQueries(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("list queries: %w", err)
	}
	pairs, err := g.store.ListPairs(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("list pairs: %w", err)
	}
	if len(pairs) == 0 {
		return 0, nil, apperr.NewConfiguration("no pairs exist; generate pairs first")
	}

	var (
		count  int
		errors []string
	)
	for _, q := range queries {
		for _, p := range pairs {
			task := domain.Task{
				ID:              uuid.New(),
				QueryID:         q.ID,
				PairID:          p.ID,
				TargetJudgments: targetJudgments,
			}
			if err := g.store.UpsertTask(ctx, task); err != nil {
				errors = append(errors, fmt.Sprintf("task %s/%s: %v", q.ID, p.ID, err))
				continue
			}
			count++
		}
	}

	slog.Info("created judgment tasks",
		"queries", len(queries), "pairs", len(pairs), "tasks", count, "errors", len(errors))
	return count, errors, nil
}
