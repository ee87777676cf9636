// Package router binds the arena's HTTP surface: the rater-facing task loop
// and the admin experiment-control endpoints.
package router

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/auralab/song-arena/internal/apperr"
	"github.com/auralab/song-arena/internal/domain"
	"github.com/auralab/song-arena/internal/judging"
	"github.com/auralab/song-arena/internal/scheduler"
	"github.com/auralab/song-arena/internal/storage"
	"github.com/auralab/song-arena/internal/tracks"
)

type RaterRouter struct {
	e        *echo.Echo
	sched    *scheduler.Scheduler
	recorder *judging.Recorder
	store    storage.Store
}

func NewRaterRouter(e *echo.Echo, sched *scheduler.Scheduler, recorder *judging.Recorder, store storage.Store) *RaterRouter {
	return &RaterRouter{e: e, sched: sched, recorder: recorder, store: store}
}

func (r *RaterRouter) Bind() {
	g := r.e.Group("/api")
	g.GET("/tasks/next", r.nextTaskHandler)
	g.POST("/judgments", r.submitHandler)
	g.GET("/raters/:rater_id/progress", r.progressHandler)
}

// trackView is the rater-visible slice of track metadata.
type trackView struct {
	TrackID    string   `json:"track_id"`
	Name       string   `json:"name"`
	Artists    []string `json:"artists"`
	AlbumName  string   `json:"album_name,omitempty"`
	AlbumArt   string   `json:"album_art,omitempty"`
	PreviewURL string   `json:"preview_url,omitempty"`
}

// taskView is the blinded presentation payload. It carries no system
// identities; the opaque rng_seed is the submission's link back to them.
type taskView struct {
	TaskID      string      `json:"task_id"`
	QueryID     string      `json:"query_id"`
	TaskType    string      `json:"task_type"`
	QueryText   string      `json:"query_text,omitempty"`
	SeedTrack   *trackView  `json:"seed_track,omitempty"`
	Left        []trackView `json:"left"`
	Right       []trackView `json:"right"`
	RNGSeed     string      `json:"rng_seed"`
	PresentedAt time.Time   `json:"presented_at"`
	IsPractice  bool        `json:"is_practice"`
}

type nextTaskResponse struct {
	Task    *taskView `json:"task"`
	Message string    `json:"message,omitempty"`
}

func (r *RaterRouter) nextTaskHandler(c echo.Context) error {
	raterID := c.QueryParam("rater_id")
	if raterID == "" {
		return apperr.NewValidation("rater_id query parameter is required")
	}
	sessionID := c.QueryParam("session_id")

	p, err := r.sched.NextTask(c.Request().Context(), raterID, sessionID)
	if err != nil {
		return err
	}
	if p == nil {
		return c.JSON(http.StatusOK, nextTaskResponse{Message: "no tasks available"})
	}

	view := &taskView{
		TaskID:      p.TaskID.String(),
		QueryID:     p.QueryID,
		TaskType:    string(p.Query.Type),
		QueryText:   p.Query.Text,
		Left:        trackViews(p.LeftTracks),
		Right:       trackViews(p.RightTracks),
		RNGSeed:     p.RNGSeed,
		PresentedAt: p.PresentedAt,
		IsPractice:  p.IsPractice,
	}
	if p.SeedTrack != nil {
		tv := toTrackView(*p.SeedTrack)
		view.SeedTrack = &tv
	}
	return c.JSON(http.StatusOK, nextTaskResponse{Task: view})
}

// judgmentRequest echoes the presentation payload back with the verdict.
// Left and Right are the track IDs exactly as displayed, in order; they are
// stored verbatim as the audit snapshot. The seed only resolves which system
// sat on which side, so the client still never handles system identities.
type judgmentRequest struct {
	TaskID      string    `json:"task_id"`
	RaterID     string    `json:"rater_id"`
	SessionID   string    `json:"session_id"`
	Left        []string  `json:"left"`
	Right       []string  `json:"right"`
	Choice      string    `json:"choice"`
	Confidence  int       `json:"confidence"`
	RNGSeed     string    `json:"rng_seed"`
	PresentedAt time.Time `json:"presented_at"`
}

type judgmentResponse struct {
	JudgmentID string `json:"judgment_id"`
	TaskDone   bool   `json:"task_done"`
}

func (r *RaterRouter) submitHandler(c echo.Context) error {
	var req judgmentRequest
	if err := c.Bind(&req); err != nil {
		return apperr.NewValidationWrap("malformed judgment body", err)
	}
	taskID, err := uuid.Parse(req.TaskID)
	if err != nil {
		return apperr.NewValidationWrap("task_id must be a UUID", err)
	}
	if req.RNGSeed == "" {
		return apperr.NewValidation("rng_seed is required")
	}

	ctx := c.Request().Context()
	task, err := r.store.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	sides, err := r.sched.Sides(ctx, task, req.RNGSeed)
	if err != nil {
		return err
	}

	j, err := r.recorder.Record(ctx, judging.Submission{
		TaskID:        taskID,
		RaterID:       req.RaterID,
		SessionID:     req.SessionID,
		LeftSystemID:  sides.Left,
		RightSystemID: sides.Right,
		LeftList:      req.Left,
		RightList:     req.Right,
		Choice:        domain.Choice(req.Choice),
		Confidence:    req.Confidence,
		RNGSeed:       req.RNGSeed,
		PresentedAt:   req.PresentedAt,
	})
	if err != nil {
		return err
	}

	done, err := r.store.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, judgmentResponse{
		JudgmentID: j.ID.String(),
		TaskDone:   done.Done,
	})
}

func (r *RaterRouter) progressHandler(c echo.Context) error {
	raterID := c.Param("rater_id")
	prog, err := r.sched.Progress(c.Request().Context(), raterID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, prog)
}

func trackViews(ts []tracks.Track) []trackView {
	out := make([]trackView, len(ts))
	for i, t := range ts {
		out[i] = toTrackView(t)
	}
	return out
}

func toTrackView(t tracks.Track) trackView {
	names := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		names[i] = a.Name
	}
	return trackView{
		TrackID:    t.ID,
		Name:       t.Name,
		Artists:    names,
		AlbumName:  t.AlbumName,
		AlbumArt:   t.AlbumArt,
		PreviewURL: t.PreviewURL,
	}
}
