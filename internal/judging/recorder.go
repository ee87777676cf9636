// Package judging validates and persists rater submissions. A submission
// echoes the exact presentation the rater saw; the recorder snapshots it
// verbatim so the judgment record stands on its own.
package judging

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/auralab/song-arena/internal/apperr"
	"github.com/auralab/song-arena/internal/domain"
	"github.com/auralab/song-arena/internal/storage"
)

// Submission is one rater verdict plus the presentation it answers.
type Submission struct {
	TaskID        uuid.UUID     `json:"task_id"`
	RaterID       string        `json:"rater_id"`
	SessionID     string        `json:"session_id"`
	LeftSystemID  string        `json:"left_system_id"`
	RightSystemID string        `json:"right_system_id"`
	LeftList      []string      `json:"left_list"`
	RightList     []string      `json:"right_list"`
	Choice        domain.Choice `json:"choice"`
	Confidence    int           `json:"confidence"`
	RNGSeed       string        `json:"rng_seed"`
	PresentedAt   time.Time     `json:"presented_at"`
}

type Recorder struct {
	store storage.Store
	now   func() time.Time
}

func NewRecorder(store storage.Store) *Recorder {
	return &Recorder{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock fixes the submission timestamp source. Test hook.
func (r *Recorder) WithClock(now func() time.Time) *Recorder {
	r.now = now
	return r
}

// Record validates the submission against its task and persists the
// judgment. The store applies the side effects atomically: judgment insert,
// assignment completion and the task counter in one unit.
func (r *Recorder) Record(ctx context.Context, sub Submission) (domain.Judgment, error) {
	if err := domain.ValidateSubmission(sub.Choice, sub.Confidence); err != nil {
		return domain.Judgment{}, apperr.NewValidationWrap("invalid submission", err)
	}
	if sub.RaterID == "" {
		return domain.Judgment{}, apperr.NewValidation("rater_id is required")
	}
	if sub.RNGSeed == "" {
		return domain.Judgment{}, apperr.NewValidation("rng_seed is required")
	}
	if len(sub.LeftList) == 0 || len(sub.RightList) == 0 {
		return domain.Judgment{}, apperr.NewValidation("left and right track lists as shown are required")
	}

	task, err := r.store.GetTask(ctx, sub.TaskID)
	if err != nil {
		return domain.Judgment{}, err
	}
	pair, err := r.store.GetPair(ctx, task.PairID)
	if err != nil {
		return domain.Judgment{}, fmt.Errorf("get pair: %w", err)
	}

	// The echoed sides must be the task's pair in some orientation.
	straight := sub.LeftSystemID == pair.SystemA && sub.RightSystemID == pair.SystemB
	flipped := sub.LeftSystemID == pair.SystemB && sub.RightSystemID == pair.SystemA
	if !straight && !flipped {
		return domain.Judgment{}, apperr.NewValidation(
			fmt.Sprintf("submitted systems %q/%q do not match pair %s",
				sub.LeftSystemID, sub.RightSystemID, pair.ID))
	}

	j := domain.Judgment{
		ID:            uuid.New(),
		TaskID:        task.ID,
		RaterID:       sub.RaterID,
		SessionID:     sub.SessionID,
		QueryID:       task.QueryID,
		PairID:        task.PairID,
		LeftSystemID:  sub.LeftSystemID,
		RightSystemID: sub.RightSystemID,
		LeftList:      sub.LeftList,
		RightList:     sub.RightList,
		Choice:        sub.Choice,
		Confidence:    sub.Confidence,
		RNGSeed:       sub.RNGSeed,
		PresentedAt:   sub.PresentedAt,
		SubmittedAt:   r.now(),
	}

	id, err := r.store.RecordJudgment(ctx, j)
	if err != nil {
		return domain.Judgment{}, fmt.Errorf("record judgment: %w", err)
	}
	j.ID = id

	slog.Info("judgment recorded",
		"judgment", id, "task", task.ID, "rater", sub.RaterID, "choice", sub.Choice)
	return j, nil
}
