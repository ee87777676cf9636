// Arena ingest CLI: loads a policy, queries and system response files into
// the store, then optionally materializes final lists and creates the pair
// and task pool in one shot.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"strings"

	"github.com/auralab/song-arena/internal/filter"
	"github.com/auralab/song-arena/internal/ingest"
	"github.com/auralab/song-arena/internal/pairing"
	"github.com/auralab/song-arena/internal/storage/pg"
	"github.com/auralab/song-arena/internal/tracks"
)

type cliConfig struct {
	DatabaseURL string
	CatalogPath string
	PolicyPath  string
	QueriesPath string
	Responses   string
	Prepare     bool
	Target      int
}

func parseFlags() cliConfig {
	cfg := cliConfig{}

	flag.StringVar(&cfg.DatabaseURL, "db", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
	flag.StringVar(&cfg.CatalogPath, "catalog", "data/tracks.json", "Path to track catalog JSON")
	flag.StringVar(&cfg.PolicyPath, "policy", "", "Path to policy YAML to activate")
	flag.StringVar(&cfg.QueriesPath, "queries", "", "Path to queries file")
	flag.StringVar(&cfg.Responses, "responses", "", "Response files, comma-separated (one per system)")
	flag.BoolVar(&cfg.Prepare, "prepare", false, "After loading, materialize final lists and create pairs and tasks")
	flag.IntVar(&cfg.Target, "target", 0, "Judgments per task when preparing (0 = default)")

	flag.Parse()
	return cfg
}

func main() {
	cfg := parseFlags()
	ctx := context.Background()

	if cfg.DatabaseURL == "" {
		slog.Error("No database configured: pass -db or set DATABASE_URL")
		os.Exit(1)
	}

	catalog, err := tracks.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		slog.Error("Failed to load track catalog", "error", err)
		os.Exit(1)
	}

	pool, err := pg.NewConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	store := pg.NewStore(pool)

	pipeline := ingest.NewPipeline(store, catalog)

	if cfg.PolicyPath != "" {
		policy, err := pipeline.ImportPolicy(ctx, cfg.PolicyPath)
		if err != nil {
			slog.Error("Failed to import policy", "error", err)
			os.Exit(1)
		}
		slog.Info("Policy activated", "version", policy.Version)
	}

	if cfg.QueriesPath != "" {
		count, errs, err := pipeline.ImportQueries(ctx, cfg.QueriesPath)
		if err != nil {
			slog.Error("Failed to import queries", "error", err)
			os.Exit(1)
		}
		logBatch("queries", count, errs)
	}

	if cfg.Responses != "" {
		for _, path := range strings.Split(cfg.Responses, ",") {
			path = strings.TrimSpace(path)
			if path == "" {
				continue
			}
			count, errs, err := pipeline.ImportResponses(ctx, path)
			if err != nil {
				slog.Error("Failed to import responses", "file", path, "error", err)
				os.Exit(1)
			}
			logBatch("responses "+path, count, errs)
		}
	}

	if cfg.Prepare {
		prepare(ctx, store, catalog, cfg.Target)
	}
}

func prepare(ctx context.Context, store *pg.Store, catalog tracks.Catalog, target int) {
	policy, err := store.GetActivePolicy(ctx)
	if err != nil {
		slog.Error("Cannot prepare without an active policy", "error", err)
		os.Exit(1)
	}

	count, errs, err := filter.NewMaterializer(store, catalog).Materialize(ctx, policy)
	if err != nil {
		slog.Error("Failed to materialize final lists", "error", err)
		os.Exit(1)
	}
	logBatch("final lists", count, errs)

	gen := pairing.NewGenerator(store)
	pairs, err := gen.GeneratePairs(ctx)
	if err != nil {
		slog.Error("Failed to generate pairs", "error", err)
		os.Exit(1)
	}
	slog.Info("Pairs ready", "pairs", len(pairs))

	tasks, errs, err := gen.CreateTasks(ctx, target)
	if err != nil {
		slog.Error("Failed to create tasks", "error", err)
		os.Exit(1)
	}
	logBatch("tasks", tasks, errs)
}

func logBatch(what string, count int, errs []string) {
	slog.Info("Imported "+what, "accepted", count, "rejected", len(errs))
	for _, e := range errs {
		slog.Warn("Rejected", "what", what, "reason", e)
	}
}
