// Package memory provides an in-memory Store used by unit tests and by the
// ingest CLI's dry-run mode. All operations are guarded by a single mutex,
// which also gives the assignment claim and the judgment write the atomicity
// the contract demands.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/auralab/song-arena/internal/apperr"
	"github.com/auralab/song-arena/internal/domain"
	"github.com/auralab/song-arena/internal/storage"
)

type Store struct {
	mu sync.RWMutex

	queries    map[string]domain.Query
	systems    map[string]domain.System
	candidates map[candidateKey][]domain.Candidate
	policies   map[string]domain.Policy
	activePol  string
	finalLists map[listKey]domain.FinalList
	pairs      map[string]domain.Pair
	tasks      map[uuid.UUID]domain.Task
	taskByNat  map[natKey]uuid.UUID
	assigns    map[assignKey]domain.Assignment
	judgments  []domain.Judgment
	raters     map[string]domain.Rater
}

type candidateKey struct{ systemID, queryID string }
type listKey struct{ policy, systemID, queryID string }
type natKey struct{ queryID, pairID string }
type assignKey struct {
	raterID string
	taskID  uuid.UUID
}

func NewStore() *Store {
	return &Store{
		queries:    make(map[string]domain.Query),
		systems:    make(map[string]domain.System),
		candidates: make(map[candidateKey][]domain.Candidate),
		policies:   make(map[string]domain.Policy),
		finalLists: make(map[listKey]domain.FinalList),
		pairs:      make(map[string]domain.Pair),
		tasks:      make(map[uuid.UUID]domain.Task),
		taskByNat:  make(map[natKey]uuid.UUID),
		assigns:    make(map[assignKey]domain.Assignment),
		raters:     make(map[string]domain.Rater),
	}
}

func (s *Store) UpsertQuery(_ context.Context, q domain.Query) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries[q.ID] = q
	return nil
}

func (s *Store) GetQuery(_ context.Context, id string) (domain.Query, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.queries[id]
	if !ok {
		return domain.Query{}, apperr.NewNotFound("query", id)
	}
	return q, nil
}

func (s *Store) ListQueries(_ context.Context) ([]domain.Query, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Query, 0, len(s.queries))
	for _, q := range s.queries {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpsertSystem(_ context.Context, sys domain.System) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.systems[sys.ID] = sys
	return nil
}

func (s *Store) ListSystems(_ context.Context) ([]domain.System, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.System, 0, len(s.systems))
	for _, sys := range s.systems {
		out = append(out, sys)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListSystemsWithCandidates(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	for k := range s.candidates {
		seen[k.systemID] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) UpsertCandidates(_ context.Context, cs []domain.Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range cs {
		key := candidateKey{c.SystemID, c.QueryID}
		existing := s.candidates[key]
		replaced := false
		for i := range existing {
			if existing[i].Rank == c.Rank {
				existing[i] = c
				replaced = true
				break
			}
		}
		if !replaced {
			existing = append(existing, c)
		}
		s.candidates[key] = existing
	}
	return nil
}

func (s *Store) ListCandidates(_ context.Context, systemID, queryID string) ([]domain.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cs := s.candidates[candidateKey{systemID, queryID}]
	out := make([]domain.Candidate, len(cs))
	copy(out, cs)
	sort.Slice(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out, nil
}

func (s *Store) SetActivePolicy(_ context.Context, p domain.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies[p.Version] = p
	s.activePol = p.Version
	return nil
}

func (s *Store) GetActivePolicy(_ context.Context) (domain.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.activePol == "" {
		return domain.Policy{}, apperr.NewConfiguration("no active policy")
	}
	return s.policies[s.activePol], nil
}

func (s *Store) UpsertFinalList(_ context.Context, fl domain.FinalList) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalLists[listKey{fl.PolicyVersion, fl.SystemID, fl.QueryID}] = fl
	return nil
}

func (s *Store) GetFinalList(_ context.Context, policyVersion, systemID, queryID string) (domain.FinalList, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fl, ok := s.finalLists[listKey{policyVersion, systemID, queryID}]
	if !ok {
		return domain.FinalList{}, apperr.NewNotFound("final list", policyVersion+"/"+systemID+"/"+queryID)
	}
	return fl, nil
}

func (s *Store) ListFinalLists(_ context.Context, policyVersion string) ([]domain.FinalList, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.FinalList
	for k, fl := range s.finalLists {
		if k.policy == policyVersion {
			out = append(out, fl)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SystemID != out[j].SystemID {
			return out[i].SystemID < out[j].SystemID
		}
		return out[i].QueryID < out[j].QueryID
	})
	return out, nil
}

func (s *Store) UpsertPair(_ context.Context, p domain.Pair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pairs[p.ID] = p
	return nil
}

func (s *Store) GetPair(_ context.Context, id string) (domain.Pair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pairs[id]
	if !ok {
		return domain.Pair{}, apperr.NewNotFound("pair", id)
	}
	return p, nil
}

func (s *Store) ListPairs(_ context.Context) ([]domain.Pair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Pair, 0, len(s.pairs))
	for _, p := range s.pairs {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpsertTask(_ context.Context, t domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	nat := natKey{t.QueryID, t.PairID}
	if id, ok := s.taskByNat[nat]; ok {
		// Existing task keeps its identity and its counters.
		existing := s.tasks[id]
		existing.TargetJudgments = t.TargetJudgments
		existing.IsPractice = t.IsPractice
		s.tasks[id] = existing
		return nil
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	s.tasks[t.ID] = t
	s.taskByNat[nat] = t.ID
	return nil
}

func (s *Store) GetTask(_ context.Context, id uuid.UUID) (domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return domain.Task{}, apperr.NewNotFound("task", id.String())
	}
	return t, nil
}

func (s *Store) ListTasks(_ context.Context) ([]domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (s *Store) ListOpenTasks(_ context.Context, queryIDs []string) ([]domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := make(map[string]struct{}, len(queryIDs))
	for _, id := range queryIDs {
		want[id] = struct{}{}
	}
	var out []domain.Task
	for _, t := range s.tasks {
		if t.Done {
			continue
		}
		if _, ok := want[t.QueryID]; ok {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (s *Store) CreateAssignment(_ context.Context, raterID string, taskID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := assignKey{raterID, taskID}
	if _, exists := s.assigns[key]; exists {
		return apperr.NewConflict("task " + taskID.String() + " already assigned to rater " + raterID)
	}
	s.assigns[key] = domain.Assignment{
		RaterID:    raterID,
		TaskID:     taskID,
		AssignedAt: time.Now().UTC(),
	}
	return nil
}

func (s *Store) ListAssignments(_ context.Context, raterID string) ([]domain.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Assignment
	for k, a := range s.assigns {
		if k.raterID == raterID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TaskID.String() < out[j].TaskID.String() })
	return out, nil
}

func (s *Store) RecordJudgment(_ context.Context, j domain.Judgment) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[j.TaskID]
	if !ok {
		return uuid.Nil, apperr.NewNotFound("task", j.TaskID.String())
	}

	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	if j.SubmittedAt.IsZero() {
		j.SubmittedAt = time.Now().UTC()
	}
	s.judgments = append(s.judgments, j)

	if a, ok := s.assigns[assignKey{j.RaterID, j.TaskID}]; ok {
		a.Completed = true
		s.assigns[assignKey{j.RaterID, j.TaskID}] = a
	}

	task.CollectedJudgments++
	if task.CollectedJudgments >= task.TargetJudgments {
		task.Done = true
	}
	s.tasks[j.TaskID] = task

	return j.ID, nil
}

func (s *Store) ListJudgments(_ context.Context) ([]domain.Judgment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Judgment, len(s.judgments))
	copy(out, s.judgments)
	return out, nil
}

func (s *Store) UpsertRater(_ context.Context, r domain.Rater) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raters[r.ID] = r
	return nil
}

func (s *Store) GetRater(_ context.Context, id string) (domain.Rater, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.raters[id]; ok {
		return r, nil
	}
	return domain.Rater{ID: id}, nil
}

func (s *Store) ListRaters(_ context.Context) ([]domain.Rater, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Rater, 0, len(s.raters))
	for _, r := range s.raters {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

var _ storage.Store = (*Store)(nil)
