package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/auralab/song-arena/internal/apperr"
	"github.com/auralab/song-arena/internal/domain"
	"github.com/auralab/song-arena/internal/storage"
	"github.com/auralab/song-arena/internal/tracks"
)

// Pipeline validates parsed uploads against the catalog and the active
// policy, then persists them. The HTTP upload handlers and the ingest CLI
// both run through it.
type Pipeline struct {
	store   storage.Store
	catalog tracks.Catalog
}

func NewPipeline(store storage.Store, catalog tracks.Catalog) *Pipeline {
	return &Pipeline{store: store, catalog: catalog}
}

// ApplyQueries persists queries whose referenced seed tracks exist. Bad
// queries are skipped and reported; good ones still land.
func (p *Pipeline) ApplyQueries(ctx context.Context, queries []domain.Query) (int, []string, error) {
	var (
		count  int
		errors []string
	)
	for _, q := range queries {
		if err := q.Validate(); err != nil {
			errors = append(errors, err.Error())
			continue
		}
		if q.Type == domain.TaskTypeSong {
			if _, ok := p.catalog.Get(ctx, q.SeedTrackID); !ok {
				errors = append(errors, fmt.Sprintf("query %s: seed track %q not in catalog", q.ID, q.SeedTrackID))
				continue
			}
		}
		if err := p.store.UpsertQuery(ctx, q); err != nil {
			errors = append(errors, fmt.Sprintf("query %s: %v", q.ID, err))
			continue
		}
		count++
	}
	slog.Info("imported queries", "accepted", count, "rejected", len(errors))
	return count, errors, nil
}

// ApplyResponses persists one system's batches. Depth is validated against
// the active policy, so a policy must be set before any upload. The system
// row is written once with its config hash; each valid batch becomes
// candidate rows.
func (p *Pipeline) ApplyResponses(ctx context.Context, file *ResponseFile, batches []domain.ResponseBatch) (int, []string, error) {
	policy, err := p.store.GetActivePolicy(ctx)
	if err != nil {
		return 0, nil, err
	}

	sys := domain.System{
		ID:         file.SystemID,
		Config:     file.Config,
		ConfigHash: domain.HashConfig(file.Config),
		DatasetID:  file.DatasetID,
	}
	if err := p.store.UpsertSystem(ctx, sys); err != nil {
		return 0, nil, fmt.Errorf("upsert system %s: %w", sys.ID, err)
	}

	var (
		count  int
		errors []string
	)
	for _, b := range batches {
		if err := b.Validate(policy.RetrievalDepthK); err != nil {
			errors = append(errors, err.Error())
			continue
		}
		if _, err := p.store.GetQuery(ctx, b.QueryID); err != nil {
			errors = append(errors, fmt.Sprintf("response %s/%s: unknown query", b.SystemID, b.QueryID))
			continue
		}

		cs := make([]domain.Candidate, len(b.Candidates))
		for i, rc := range b.Candidates {
			cs[i] = domain.Candidate{
				SystemID: b.SystemID,
				QueryID:  b.QueryID,
				Rank:     rc.Rank,
				TrackID:  rc.TrackID,
				Score:    rc.Score,
			}
		}
		if err := p.store.UpsertCandidates(ctx, cs); err != nil {
			errors = append(errors, fmt.Sprintf("response %s/%s: %v", b.SystemID, b.QueryID, err))
			continue
		}
		count++
	}
	slog.Info("imported responses", "system", file.SystemID, "accepted", count, "rejected", len(errors))
	return count, errors, nil
}

// ApplyPolicy activates the policy after validation.
func (p *Pipeline) ApplyPolicy(ctx context.Context, policy domain.Policy) error {
	policy = policy.WithDefaults()
	if err := policy.Validate(); err != nil {
		return apperr.NewValidationWrap("invalid policy", err)
	}
	if err := p.store.SetActivePolicy(ctx, policy); err != nil {
		return fmt.Errorf("activate policy %s: %w", policy.Version, err)
	}
	slog.Info("activated policy", "version", policy.Version)
	return nil
}

// ImportQueries loads and applies a query file.
func (p *Pipeline) ImportQueries(ctx context.Context, path string) (int, []string, error) {
	queries, err := LoadQueriesFromFile(path)
	if err != nil {
		return 0, nil, err
	}
	return p.ApplyQueries(ctx, queries)
}

// ImportResponses loads and applies one system's response file.
func (p *Pipeline) ImportResponses(ctx context.Context, path string) (int, []string, error) {
	file, batches, err := LoadResponsesFromFile(path)
	if err != nil {
		return 0, nil, err
	}
	return p.ApplyResponses(ctx, file, batches)
}

// ImportPolicy loads and activates a policy file.
func (p *Pipeline) ImportPolicy(ctx context.Context, path string) (domain.Policy, error) {
	policy, err := LoadPolicyFromFile(path)
	if err != nil {
		return domain.Policy{}, err
	}
	if err := p.ApplyPolicy(ctx, policy); err != nil {
		return domain.Policy{}, err
	}
	return policy, nil
}
