package filter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/auralab/song-arena/internal/domain"
	"github.com/auralab/song-arena/internal/storage"
	"github.com/auralab/song-arena/internal/tracks"
)

const defaultConcurrency = 8

// Materializer runs the candidate filter over the full query x system cross
// product and upserts the resulting final lists. Units are independent, so
// they run concurrently; per-unit failures are accumulated rather than
// aborting the batch.
type Materializer struct {
	store       storage.Store
	catalog     tracks.Catalog
	concurrency int
}

func NewMaterializer(store storage.Store, catalog tracks.Catalog) *Materializer {
	return &Materializer{store: store, catalog: catalog, concurrency: defaultConcurrency}
}

// WithConcurrency overrides the number of parallel units.
func (m *Materializer) WithConcurrency(n int) *Materializer {
	if n > 0 {
		m.concurrency = n
	}
	return m
}

// Materialize recomputes final lists for every (query, system) combination
// under the given policy. Returns how many lists were written and the
// per-unit errors encountered.
func (m *Materializer) Materialize(ctx context.Context, policy domain.Policy) (int, []string, error) {
	queries, err := m.store.ListQueries(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("list queries: %w", err)
	}
	systemIDs, err := m.store.ListSystemsWithCandidates(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("list systems: %w", err)
	}

	slog.Info("materializing final lists",
		"policy", policy.Version, "queries", len(queries), "systems", len(systemIDs))

	var (
		mu     sync.Mutex
		count  int
		errors []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)

	for _, q := range queries {
		for _, sysID := range systemIDs {
			q, sysID := q, sysID
			g.Go(func() error {
				if err := m.materializeOne(gctx, policy, q, sysID); err != nil {
					mu.Lock()
					errors = append(errors, fmt.Sprintf("materialize %s/%s: %v", sysID, q.ID, err))
					mu.Unlock()
					return nil
				}
				mu.Lock()
				count++
				mu.Unlock()
				return nil
			})
		}
	}

	// Workers never return errors; the group exists for the limit and the
	// shared cancel.
	_ = g.Wait()

	return count, errors, nil
}

func (m *Materializer) materializeOne(ctx context.Context, policy domain.Policy, query domain.Query, systemID string) error {
	res, err := m.ProcessQuerySystem(ctx, policy, query, systemID)
	if err != nil {
		return err
	}

	fl := domain.FinalList{
		PolicyVersion: policy.Version,
		SystemID:      systemID,
		QueryID:       query.ID,
		FinalOrder:    res.FinalOrder,
		FilterCounts:  res.FilterCounts,
		DepthScanned:  res.DepthScanned,
		GeneratedAt:   time.Now().UTC(),
	}
	if err := m.store.UpsertFinalList(ctx, fl); err != nil {
		return fmt.Errorf("upsert final list: %w", err)
	}

	slog.Debug("materialized final list",
		"system", systemID, "query", query.ID,
		"tracks", len(res.FinalOrder), "scanned", res.DepthScanned)
	return nil
}

// ProcessQuerySystem filters one (query, system) combination without
// persisting the result.
func (m *Materializer) ProcessQuerySystem(ctx context.Context, policy domain.Policy, query domain.Query, systemID string) (Result, error) {
	candidates, err := m.store.ListCandidates(ctx, systemID, query.ID)
	if err != nil {
		return Result{}, fmt.Errorf("list candidates: %w", err)
	}

	ids := make([]string, 0, len(candidates)+1)
	for _, c := range candidates {
		ids = append(ids, c.TrackID)
	}
	if query.SeedTrackID != "" {
		ids = append(ids, query.SeedTrackID)
	}
	meta, err := m.catalog.GetBatch(ctx, ids)
	if err != nil {
		return Result{}, fmt.Errorf("resolve track metadata: %w", err)
	}

	return Run(query, policy, candidates, meta), nil
}
