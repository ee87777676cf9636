// Package storage defines the persistence contract consumed by the arena
// core: keyed reads, filtered listing and idempotent upserts per entity, a
// transactional insert-if-absent for assignment claims, and an atomic
// judgment write. Implementations live in the pg and memory subpackages.
package storage

import (
	"context"

	"github.com/google/uuid"

	"github.com/auralab/song-arena/internal/domain"
)

type QueryStore interface {
	UpsertQuery(ctx context.Context, q domain.Query) error
	// GetQuery returns apperr.NotFoundError for an unknown ID.
	GetQuery(ctx context.Context, id string) (domain.Query, error)
	ListQueries(ctx context.Context) ([]domain.Query, error)
}

type SystemStore interface {
	UpsertSystem(ctx context.Context, s domain.System) error
	ListSystems(ctx context.Context) ([]domain.System, error)
	// ListSystemsWithCandidates returns the IDs of systems that have at
	// least one uploaded candidate row.
	ListSystemsWithCandidates(ctx context.Context) ([]string, error)
}

type CandidateStore interface {
	UpsertCandidates(ctx context.Context, cs []domain.Candidate) error
	// ListCandidates returns candidates for one (system, query) ordered by
	// rank ascending.
	ListCandidates(ctx context.Context, systemID, queryID string) ([]domain.Candidate, error)
}

type PolicyStore interface {
	// SetActivePolicy upserts the policy and deactivates all others in the
	// same transaction.
	SetActivePolicy(ctx context.Context, p domain.Policy) error
	// GetActivePolicy returns apperr.ConfigurationError when no policy is
	// active.
	GetActivePolicy(ctx context.Context) (domain.Policy, error)
}

type FinalListStore interface {
	UpsertFinalList(ctx context.Context, fl domain.FinalList) error
	// GetFinalList returns apperr.NotFoundError when materialization has
	// not produced this (policy, system, query) yet.
	GetFinalList(ctx context.Context, policyVersion, systemID, queryID string) (domain.FinalList, error)
	ListFinalLists(ctx context.Context, policyVersion string) ([]domain.FinalList, error)
}

type PairStore interface {
	UpsertPair(ctx context.Context, p domain.Pair) error
	GetPair(ctx context.Context, id string) (domain.Pair, error)
	ListPairs(ctx context.Context) ([]domain.Pair, error)
}

type TaskStore interface {
	// UpsertTask is idempotent on the (query, pair) natural key; counters
	// of an existing task are preserved.
	UpsertTask(ctx context.Context, t domain.Task) error
	GetTask(ctx context.Context, id uuid.UUID) (domain.Task, error)
	ListTasks(ctx context.Context) ([]domain.Task, error)
	// ListOpenTasks returns not-done tasks whose query is in queryIDs.
	ListOpenTasks(ctx context.Context, queryIDs []string) ([]domain.Task, error)
}

type AssignmentStore interface {
	// CreateAssignment claims a task for a rater. It must be atomic at the
	// persistence boundary: a duplicate (rater, task) claim returns
	// apperr.ConflictError and leaves the existing row untouched.
	CreateAssignment(ctx context.Context, raterID string, taskID uuid.UUID) error
	ListAssignments(ctx context.Context, raterID string) ([]domain.Assignment, error)
}

type JudgmentStore interface {
	// RecordJudgment persists the judgment, marks the rater's assignment
	// completed and increments the task's collected counter (setting done
	// once the target is met) as one atomic unit.
	RecordJudgment(ctx context.Context, j domain.Judgment) (uuid.UUID, error)
	ListJudgments(ctx context.Context) ([]domain.Judgment, error)
}

type RaterStore interface {
	UpsertRater(ctx context.Context, r domain.Rater) error
	// GetRater returns a zero-cap rater record for unknown IDs; raters are
	// created lazily on first contact.
	GetRater(ctx context.Context, id string) (domain.Rater, error)
	ListRaters(ctx context.Context) ([]domain.Rater, error)
}

// Store is the full persistence collaborator.
type Store interface {
	QueryStore
	SystemStore
	CandidateStore
	PolicyStore
	FinalListStore
	PairStore
	TaskStore
	AssignmentStore
	JudgmentStore
	RaterStore
}
