package scheduler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/auralab/song-arena/internal/domain"
	"github.com/auralab/song-arena/internal/tracks"
)

// Presentation is one claimed task rendered for a rater: two shuffled,
// side-blinded track lists. Which system sits on which side derives entirely
// from RNGSeed; the rendered lists themselves are echoed back with the
// judgment and stored as the verbatim snapshot of what was shown.
type Presentation struct {
	TaskID      uuid.UUID
	QueryID     string
	Query       domain.Query
	PairID      string
	IsPractice  bool
	RaterID     string
	SessionID   string
	RNGSeed     string
	PresentedAt time.Time

	// Side assignment after the coin flip. Never shown to the rater.
	LeftSystemID  string
	RightSystemID string

	LeftTracks  []tracks.Track
	RightTracks []tracks.Track

	// SeedTrack is set for song-seeded queries.
	SeedTrack *tracks.Track
}

// LeftOrder returns the presented left-side track IDs in display order.
func (p *Presentation) LeftOrder() []string {
	return trackIDs(p.LeftTracks)
}

// RightOrder returns the presented right-side track IDs in display order.
func (p *Presentation) RightOrder() []string {
	return trackIDs(p.RightTracks)
}

func trackIDs(ts []tracks.Track) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.ID
	}
	return out
}

// deriveSeed produces the presentation seed: the first 16 hex characters of
// sha256("taskID:raterID:timestamp").
func deriveSeed(taskID uuid.UUID, raterID string, at time.Time) string {
	sum := sha256.Sum256([]byte(taskID.String() + ":" + raterID + ":" + at.Format(time.RFC3339Nano)))
	return hex.EncodeToString(sum[:])[:16]
}

func seedSource(seed string) int64 {
	u, err := strconv.ParseUint(seed, 16, 64)
	if err != nil {
		// Seeds are produced by deriveSeed and always parse; a stored
		// seed from elsewhere falls back to a stable hash.
		sum := sha256.Sum256([]byte(seed))
		u = uint64(sum[0])<<56 | uint64(sum[1])<<48 | uint64(sum[2])<<40 | uint64(sum[3])<<32 |
			uint64(sum[4])<<24 | uint64(sum[5])<<16 | uint64(sum[6])<<8 | uint64(sum[7])
	}
	return int64(u)
}

// Layout is the arrangement one seed produces for one task: which system
// sits on which side and the shuffled display order per side.
type Layout struct {
	LeftSystemID  string
	RightSystemID string
	LeftOrder     []string
	RightOrder    []string
}

// LayoutFromSeed derives the layout deterministically: one coin flip for
// side assignment, then an independent shuffle per side, all drawn from the
// seed. The same seed over the same inputs yields the same arrangement.
func LayoutFromSeed(pair domain.Pair, orderA, orderB []string, seed string) Layout {
	rng := rand.New(rand.NewSource(seedSource(seed)))

	leftSystem, rightSystem := pair.SystemA, pair.SystemB
	leftOrder, rightOrder := orderA, orderB
	if rng.Float64() < 0.5 {
		leftSystem, rightSystem = rightSystem, leftSystem
		leftOrder, rightOrder = rightOrder, leftOrder
	}
	return Layout{
		LeftSystemID:  leftSystem,
		RightSystemID: rightSystem,
		LeftOrder:     shuffled(rng, leftOrder),
		RightOrder:    shuffled(rng, rightOrder),
	}
}

// Sides is the seed-determined side assignment for a task's pair.
type Sides struct {
	Left  string
	Right string
}

// Sides resolves which system sat on which side for a recorded seed. Used at
// submission time: the client echoes only the opaque seed, never the system
// identities. The coin flip is the first draw from the seeded PRNG, so the
// assignment reproduces regardless of what the final lists contain by then;
// the shown track sequences travel with the submission itself and are stored
// verbatim, never re-derived.
func (s *Scheduler) Sides(ctx context.Context, task domain.Task, seed string) (Sides, error) {
	pair, err := s.store.GetPair(ctx, task.PairID)
	if err != nil {
		return Sides{}, fmt.Errorf("get pair: %w", err)
	}
	rng := rand.New(rand.NewSource(seedSource(seed)))
	left, right := pair.SystemA, pair.SystemB
	if rng.Float64() < 0.5 {
		left, right = right, left
	}
	return Sides{Left: left, Right: right}, nil
}

func (s *Scheduler) buildPresentation(ctx context.Context, task domain.Task, raterID, sessionID string) (*Presentation, error) {
	policy, err := s.store.GetActivePolicy(ctx)
	if err != nil {
		return nil, err
	}
	pair, err := s.store.GetPair(ctx, task.PairID)
	if err != nil {
		return nil, fmt.Errorf("get pair: %w", err)
	}
	query, err := s.store.GetQuery(ctx, task.QueryID)
	if err != nil {
		return nil, fmt.Errorf("get query: %w", err)
	}

	// Both sides must have been materialized under the active policy; a
	// missing list is a setup fault, not something to paper over.
	listA, err := s.store.GetFinalList(ctx, policy.Version, pair.SystemA, task.QueryID)
	if err != nil {
		return nil, err
	}
	listB, err := s.store.GetFinalList(ctx, policy.Version, pair.SystemB, task.QueryID)
	if err != nil {
		return nil, err
	}

	at := s.now()
	seed := deriveSeed(task.ID, raterID, at)
	layout := LayoutFromSeed(pair, listA.FinalOrder, listB.FinalOrder, seed)

	ids := make([]string, 0, len(layout.LeftOrder)+len(layout.RightOrder)+1)
	ids = append(ids, layout.LeftOrder...)
	ids = append(ids, layout.RightOrder...)
	if query.SeedTrackID != "" {
		ids = append(ids, query.SeedTrackID)
	}
	meta, err := s.catalog.GetBatch(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve track metadata: %w", err)
	}

	p := &Presentation{
		TaskID:        task.ID,
		QueryID:       task.QueryID,
		Query:         query,
		PairID:        task.PairID,
		IsPractice:    task.IsPractice,
		RaterID:       raterID,
		SessionID:     sessionID,
		RNGSeed:       seed,
		PresentedAt:   at,
		LeftSystemID:  layout.LeftSystemID,
		RightSystemID: layout.RightSystemID,
		LeftTracks:    resolve(meta, layout.LeftOrder),
		RightTracks:   resolve(meta, layout.RightOrder),
	}
	if query.SeedTrackID != "" {
		if seedTrack, ok := meta[query.SeedTrackID]; ok {
			p.SeedTrack = &seedTrack
		}
	}
	return p, nil
}

func shuffled(rng *rand.Rand, order []string) []string {
	out := make([]string, len(order))
	copy(out, order)
	rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}

// resolve keeps display order and silently omits IDs the catalog cannot
// resolve; the rater only ever sees, and the snapshot only ever records,
// tracks that actually rendered.
func resolve(meta map[string]tracks.Track, order []string) []tracks.Track {
	out := make([]tracks.Track, 0, len(order))
	for _, id := range order {
		if t, ok := meta[id]; ok {
			out = append(out, t)
		}
	}
	return out
}
