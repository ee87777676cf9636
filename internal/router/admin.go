package router

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/auralab/song-arena/internal/apperr"
	"github.com/auralab/song-arena/internal/domain"
	"github.com/auralab/song-arena/internal/export"
	"github.com/auralab/song-arena/internal/filter"
	"github.com/auralab/song-arena/internal/ingest"
	"github.com/auralab/song-arena/internal/pairing"
	"github.com/auralab/song-arena/internal/stats"
	"github.com/auralab/song-arena/internal/storage"
)

type AdminRouter struct {
	e            *echo.Echo
	store        storage.Store
	pipeline     *ingest.Pipeline
	materializer *filter.Materializer
	generator    *pairing.Generator
	exporter     *export.Exporter
}

func NewAdminRouter(
	e *echo.Echo,
	store storage.Store,
	pipeline *ingest.Pipeline,
	materializer *filter.Materializer,
	generator *pairing.Generator,
	exporter *export.Exporter,
) *AdminRouter {
	return &AdminRouter{
		e:            e,
		store:        store,
		pipeline:     pipeline,
		materializer: materializer,
		generator:    generator,
		exporter:     exporter,
	}
}

func (r *AdminRouter) Bind() {
	g := r.e.Group("/api/admin")
	g.POST("/queries", r.uploadQueriesHandler)
	g.POST("/responses", r.uploadResponsesHandler)
	g.PUT("/policy", r.setPolicyHandler)
	g.GET("/policy", r.getPolicyHandler)
	g.POST("/final-lists/materialize", r.materializeHandler)
	g.POST("/pairs", r.generatePairsHandler)
	g.POST("/tasks", r.createTasksHandler)
	g.GET("/overview", r.overviewHandler)
	g.GET("/stats", r.statsHandler)
	g.GET("/export/judgments.json", r.exportJudgmentsJSONHandler)
	g.GET("/export/judgments.csv", r.exportJudgmentsCSVHandler)
	g.GET("/export/final-lists.csv", r.exportFinalListsCSVHandler)
	g.GET("/export/tasks.csv", r.exportTasksCSVHandler)
	g.GET("/export/raters.csv", r.exportRatersCSVHandler)
}

// importResult reports a partial-success batch operation.
type importResult struct {
	Accepted int      `json:"accepted"`
	Errors   []string `json:"errors,omitempty"`
}

func (r *AdminRouter) uploadQueriesHandler(c echo.Context) error {
	var body ingest.QueryFile
	if err := c.Bind(&body); err != nil {
		return apperr.NewValidationWrap("malformed queries body", err)
	}
	if len(body.Queries) == 0 {
		return apperr.NewValidation("body has no queries")
	}
	count, errs, err := r.pipeline.ApplyQueries(c.Request().Context(), body.Queries)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, importResult{Accepted: count, Errors: errs})
}

func (r *AdminRouter) uploadResponsesHandler(c echo.Context) error {
	var body ingest.ResponseFile
	if err := c.Bind(&body); err != nil {
		return apperr.NewValidationWrap("malformed responses body", err)
	}
	batches, err := ingest.BatchesFromFile(&body)
	if err != nil {
		return apperr.NewValidationWrap("invalid responses body", err)
	}
	count, errs, err := r.pipeline.ApplyResponses(c.Request().Context(), &body, batches)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, importResult{Accepted: count, Errors: errs})
}

func (r *AdminRouter) setPolicyHandler(c echo.Context) error {
	var body domain.Policy
	if err := c.Bind(&body); err != nil {
		return apperr.NewValidationWrap("malformed policy body", err)
	}
	if err := r.pipeline.ApplyPolicy(c.Request().Context(), body); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, body.WithDefaults())
}

func (r *AdminRouter) getPolicyHandler(c echo.Context) error {
	p, err := r.store.GetActivePolicy(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

type materializeResult struct {
	PolicyVersion string   `json:"policy_version"`
	Materialized  int      `json:"materialized"`
	Errors        []string `json:"errors,omitempty"`
}

func (r *AdminRouter) materializeHandler(c echo.Context) error {
	ctx := c.Request().Context()
	policy, err := r.store.GetActivePolicy(ctx)
	if err != nil {
		return err
	}
	count, errs, err := r.materializer.Materialize(ctx, policy)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, materializeResult{
		PolicyVersion: policy.Version,
		Materialized:  count,
		Errors:        errs,
	})
}

func (r *AdminRouter) generatePairsHandler(c echo.Context) error {
	pairs, err := r.generator.GeneratePairs(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"pairs": pairs})
}

type createTasksRequest struct {
	TargetJudgments int `json:"target_judgments"`
}

func (r *AdminRouter) createTasksHandler(c echo.Context) error {
	var body createTasksRequest
	if err := c.Bind(&body); err != nil {
		return apperr.NewValidationWrap("malformed tasks body", err)
	}
	count, errs, err := r.generator.CreateTasks(c.Request().Context(), body.TargetJudgments)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, importResult{Accepted: count, Errors: errs})
}

type overviewResponse struct {
	Queries        int            `json:"queries"`
	Systems        int            `json:"systems"`
	Pairs          int            `json:"pairs"`
	Tasks          int            `json:"tasks"`
	CompletedTasks int            `json:"completed_tasks"`
	Judgments      int            `json:"judgments"`
	Raters         int            `json:"raters"`
	ActivePolicy   *domain.Policy `json:"active_policy,omitempty"`
}

func (r *AdminRouter) overviewHandler(c echo.Context) error {
	ctx := c.Request().Context()

	queries, err := r.store.ListQueries(ctx)
	if err != nil {
		return err
	}
	systems, err := r.store.ListSystems(ctx)
	if err != nil {
		return err
	}
	pairs, err := r.store.ListPairs(ctx)
	if err != nil {
		return err
	}
	tasks, err := r.store.ListTasks(ctx)
	if err != nil {
		return err
	}
	completed := 0
	for _, t := range tasks {
		if t.Done {
			completed++
		}
	}
	judgments, err := r.store.ListJudgments(ctx)
	if err != nil {
		return err
	}
	raters, err := r.store.ListRaters(ctx)
	if err != nil {
		return err
	}

	resp := overviewResponse{
		Queries:        len(queries),
		Systems:        len(systems),
		Pairs:          len(pairs),
		Tasks:          len(tasks),
		CompletedTasks: completed,
		Judgments:      len(judgments),
		Raters:         len(raters),
	}
	if p, err := r.store.GetActivePolicy(ctx); err == nil {
		resp.ActivePolicy = &p
	}
	return c.JSON(http.StatusOK, resp)
}

// statsHandler aggregates judgments per pair, stratified. mode=plain|weighted.
func (r *AdminRouter) statsHandler(c echo.Context) error {
	mode := stats.VotePlain
	switch c.QueryParam("mode") {
	case "", "plain":
	case "weighted":
		mode = stats.VoteWeighted
	default:
		return apperr.NewValidation("mode must be plain or weighted")
	}

	recs, err := r.exporter.JudgmentRecords(c.Request().Context())
	if err != nil {
		return err
	}

	byPair := map[string][]stats.Judgment{}
	for _, rec := range recs {
		if rec.IsPractice {
			continue
		}
		byPair[rec.PairID] = append(byPair[rec.PairID], toStatsJudgment(rec))
	}

	out := map[string][]stats.StratumResult{}
	for pairID, js := range byPair {
		rows, err := stats.Stratify(js, mode, nil)
		if err != nil {
			return apperr.NewValidationWrap("aggregate pair "+pairID, err)
		}
		out[pairID] = rows
	}
	return c.JSON(http.StatusOK, map[string]any{"mode": mode, "pairs": out})
}

func toStatsJudgment(rec export.JudgmentRecord) stats.Judgment {
	return stats.Judgment{
		JudgmentID:    rec.JudgmentID,
		TaskID:        rec.TaskID,
		QueryID:       rec.QueryID,
		PairID:        rec.PairID,
		TaskType:      rec.TaskType,
		Genres:        rec.Genres,
		LeftSystemID:  rec.LeftSystemID,
		RightSystemID: rec.RightSystemID,
		Choice:        rec.Choice,
		Confidence:    rec.Confidence,
	}
}

func (r *AdminRouter) exportJudgmentsJSONHandler(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c.Response().WriteHeader(http.StatusOK)
	return r.exporter.JudgmentsJSON(c.Request().Context(), c.Response())
}

func (r *AdminRouter) exportJudgmentsCSVHandler(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderContentType, "text/csv")
	c.Response().WriteHeader(http.StatusOK)
	return r.exporter.JudgmentsCSV(c.Request().Context(), c.Response())
}

func (r *AdminRouter) exportFinalListsCSVHandler(c echo.Context) error {
	ctx := c.Request().Context()
	version := c.QueryParam("policy_version")
	if version == "" {
		p, err := r.store.GetActivePolicy(ctx)
		if err != nil {
			return err
		}
		version = p.Version
	}
	c.Response().Header().Set(echo.HeaderContentType, "text/csv")
	c.Response().WriteHeader(http.StatusOK)
	return r.exporter.FinalListsCSV(ctx, c.Response(), version)
}

func (r *AdminRouter) exportTasksCSVHandler(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderContentType, "text/csv")
	c.Response().WriteHeader(http.StatusOK)
	return r.exporter.TaskProgressCSV(c.Request().Context(), c.Response())
}

func (r *AdminRouter) exportRatersCSVHandler(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderContentType, "text/csv")
	c.Response().WriteHeader(http.StatusOK)
	return r.exporter.RaterStatsCSV(c.Request().Context(), c.Response())
}
