// Song Search Arena API: blinded pairwise evaluation of music retrieval
// systems. Serves the rater task loop and the admin experiment-control
// endpoints.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/labstack/echo/v4"

	"github.com/auralab/song-arena/internal/export"
	"github.com/auralab/song-arena/internal/filter"
	"github.com/auralab/song-arena/internal/ingest"
	"github.com/auralab/song-arena/internal/judging"
	"github.com/auralab/song-arena/internal/pairing"
	"github.com/auralab/song-arena/internal/router"
	"github.com/auralab/song-arena/internal/scheduler"
	"github.com/auralab/song-arena/internal/server"
	"github.com/auralab/song-arena/internal/storage"
	"github.com/auralab/song-arena/internal/storage/memory"
	"github.com/auralab/song-arena/internal/storage/pg"
	"github.com/auralab/song-arena/internal/tracks"
	pkgserver "github.com/auralab/song-arena/pkg/server"
)

func main() {
	cfg := parseFlags()
	ctx := context.Background()

	sCfg, err := server.LoadConfig(cfg.EnvFile)
	if err != nil {
		slog.Error("Failed to load server config", "error", err)
		os.Exit(1)
	}

	catalog, err := tracks.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		slog.Error("Failed to load track catalog", "error", err, "path", cfg.CatalogPath)
		os.Exit(1)
	}
	slog.Info("Loaded track catalog", "tracks", catalog.Len())

	var store storage.Store
	switch cfg.Store {
	case "memory":
		store = memory.NewStore()
		slog.Warn("Using in-memory store, state is lost on restart")
	case "postgres":
		url, err := cfg.databaseURL()
		if err != nil {
			slog.Error("Failed to resolve database", "error", err)
			os.Exit(1)
		}
		pool, err := pg.NewConnectionPool(ctx, url)
		if err != nil {
			slog.Error("Failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		store = pg.NewStore(pool)
	default:
		slog.Error("Unknown store backend", "store", cfg.Store)
		os.Exit(1)
	}

	e := echo.New()
	srv := server.NewServer(e, sCfg, pkgserver.NewOkHealthChecker())

	sched := scheduler.New(store, catalog)
	router.NewRaterRouter(e, sched, judging.NewRecorder(store), store).Bind()
	router.NewAdminRouter(e, store,
		ingest.NewPipeline(store, catalog),
		filter.NewMaterializer(store, catalog),
		pairing.NewGenerator(store),
		export.NewExporter(store),
	).Bind()

	if err := srv.Start(); err != nil {
		slog.Error("Server stopped", "error", err)
		os.Exit(1)
	}
}
