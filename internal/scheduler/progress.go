package scheduler

import (
	"context"
	"fmt"

	"github.com/auralab/song-arena/internal/domain"
)

// Progress summarizes where a rater stands against the pool and their caps.
type Progress struct {
	RaterID         string `json:"rater_id"`
	Completed       int    `json:"completed"`
	Claimed         int    `json:"claimed"`
	TotalTasks      int    `json:"total_tasks"`
	SoftCap         int    `json:"soft_cap"`
	TotalCap        int    `json:"total_cap,omitempty"`
	SoftCapReached  bool   `json:"soft_cap_reached"`
	TotalCapReached bool   `json:"total_cap_reached"`
}

// Progress reports the rater's completed and outstanding claims. Unknown
// raters get the default soft cap; the soft cap only flags, the total cap is
// what NextTask enforces.
func (s *Scheduler) Progress(ctx context.Context, raterID string) (Progress, error) {
	rater, err := s.store.GetRater(ctx, raterID)
	if err != nil {
		return Progress{}, fmt.Errorf("get rater: %w", err)
	}
	if rater.SoftCap <= 0 {
		rater.SoftCap = domain.DefaultSoftCap
	}

	assignments, err := s.store.ListAssignments(ctx, raterID)
	if err != nil {
		return Progress{}, fmt.Errorf("list assignments: %w", err)
	}
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		return Progress{}, fmt.Errorf("list tasks: %w", err)
	}

	p := Progress{
		RaterID:    raterID,
		TotalTasks: len(tasks),
		SoftCap:    rater.SoftCap,
		TotalCap:   rater.TotalCap,
	}
	for _, a := range assignments {
		if a.Completed {
			p.Completed++
		} else {
			p.Claimed++
		}
	}
	p.SoftCapReached = p.Completed >= p.SoftCap
	p.TotalCapReached = rater.TotalCap > 0 && p.Completed >= rater.TotalCap
	return p, nil
}
