// Package scheduler hands out judgment tasks to raters. Selection balances
// query coverage per rater first and task fill second, then claims the task
// atomically so concurrent requests never double-assign. The returned
// presentation is blinded and reproducible from its recorded seed.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/auralab/song-arena/internal/apperr"
	"github.com/auralab/song-arena/internal/domain"
	"github.com/auralab/song-arena/internal/storage"
	"github.com/auralab/song-arena/internal/tracks"
)

type Scheduler struct {
	store   storage.Store
	catalog tracks.Catalog
	rng     *rand.Rand
	now     func() time.Time
}

func New(store storage.Store, catalog tracks.Catalog) *Scheduler {
	return &Scheduler{
		store:   store,
		catalog: catalog,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithRand fixes the tie-breaking source. Test hook.
func (s *Scheduler) WithRand(r *rand.Rand) *Scheduler {
	s.rng = r
	return s
}

// WithClock fixes the timestamp source. Test hook.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// NextTask picks, claims and presents the next task for the rater. A nil
// presentation with nil error means no task right now: every query covered
// for every pair, the total cap reached, or nothing open among the rater's
// least-seen queries.
func (s *Scheduler) NextTask(ctx context.Context, raterID, sessionID string) (*Presentation, error) {
	rater, err := s.store.GetRater(ctx, raterID)
	if err != nil {
		return nil, fmt.Errorf("get rater: %w", err)
	}

	assignments, err := s.store.ListAssignments(ctx, raterID)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}

	completed := 0
	for _, a := range assignments {
		if a.Completed {
			completed++
		}
	}
	if rater.TotalCap > 0 && completed >= rater.TotalCap {
		slog.Info("rater reached total cap", "rater", raterID, "completed", completed)
		return nil, nil
	}

	for {
		task, ok, err := s.selectTask(ctx, assignments)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}

		err = s.store.CreateAssignment(ctx, raterID, task.ID)
		var conflict *apperr.ConflictError
		if errors.As(err, &conflict) {
			// Lost a race against the rater's own concurrent request.
			// Reload assignments and pick again.
			assignments, err = s.store.ListAssignments(ctx, raterID)
			if err != nil {
				return nil, fmt.Errorf("list assignments: %w", err)
			}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("claim task %s: %w", task.ID, err)
		}

		return s.buildPresentation(ctx, task, raterID, sessionID)
	}
}

// selectTask picks among the rater's least-seen queries only, preferring the
// tasks furthest from their judgment target. Ties break randomly. A query the
// rater has seen more often than their minimum is never offered, even when
// the least-seen ones have nothing open; coverage stays level per rater.
func (s *Scheduler) selectTask(ctx context.Context, assignments []domain.Assignment) (domain.Task, bool, error) {
	queries, err := s.store.ListQueries(ctx)
	if err != nil {
		return domain.Task{}, false, fmt.Errorf("list queries: %w", err)
	}
	pairs, err := s.store.ListPairs(ctx)
	if err != nil {
		return domain.Task{}, false, fmt.Errorf("list pairs: %w", err)
	}
	if len(queries) == 0 || len(pairs) == 0 {
		return domain.Task{}, false, nil
	}

	allTasks, err := s.store.ListTasks(ctx)
	if err != nil {
		return domain.Task{}, false, fmt.Errorf("list tasks: %w", err)
	}
	taskQuery := make(map[uuid.UUID]string, len(allTasks))
	for _, t := range allTasks {
		taskQuery[t.ID] = t.QueryID
	}

	assigned := make(map[uuid.UUID]struct{}, len(assignments))
	seenPerQuery := make(map[string]int, len(queries))
	for _, a := range assignments {
		assigned[a.TaskID] = struct{}{}
		if a.Completed {
			seenPerQuery[taskQuery[a.TaskID]]++
		}
	}

	// A rater who has judged every query once per pair has full coverage.
	minSeen := -1
	for _, q := range queries {
		if n := seenPerQuery[q.ID]; minSeen < 0 || n < minSeen {
			minSeen = n
		}
	}
	if minSeen >= len(pairs) {
		return domain.Task{}, false, nil
	}

	// Only queries at the minimum seen count are candidates.
	leastSeen := make([]string, 0, len(queries))
	for _, q := range queries {
		if seenPerQuery[q.ID] == minSeen {
			leastSeen = append(leastSeen, q.ID)
		}
	}

	open, err := s.store.ListOpenTasks(ctx, leastSeen)
	if err != nil {
		return domain.Task{}, false, fmt.Errorf("list open tasks: %w", err)
	}

	eligible := open[:0]
	for _, t := range open {
		if _, taken := assigned[t.ID]; !taken {
			eligible = append(eligible, t)
		}
	}
	if len(eligible) == 0 {
		return domain.Task{}, false, nil
	}

	minFill := eligible[0].FillRatio()
	for _, t := range eligible[1:] {
		if r := t.FillRatio(); r < minFill {
			minFill = r
		}
	}
	thinnest := make([]domain.Task, 0, len(eligible))
	for _, t := range eligible {
		if t.FillRatio() == minFill {
			thinnest = append(thinnest, t)
		}
	}

	return thinnest[s.rng.Intn(len(thinnest))], true, nil
}
