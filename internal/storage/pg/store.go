package pg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/auralab/song-arena/internal/apperr"
	"github.com/auralab/song-arena/internal/domain"
	"github.com/auralab/song-arena/internal/storage"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(pool *ConnectionPool) *Store {
	return &Store{db: pool.conn}
}

var _ storage.Store = (*Store)(nil)

func (s *Store) UpsertQuery(ctx context.Context, q domain.Query) error {
	intents, _ := json.Marshal(q.Intents)
	genres, _ := json.Marshal(q.Genres)
	extras, _ := json.Marshal(q.Extras)

	sql := `
		INSERT INTO queries (id, task_type, query_text, seed_track_id, intents, genres, era, extras)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			task_type = EXCLUDED.task_type,
			query_text = EXCLUDED.query_text,
			seed_track_id = EXCLUDED.seed_track_id,
			intents = EXCLUDED.intents,
			genres = EXCLUDED.genres,
			era = EXCLUDED.era,
			extras = EXCLUDED.extras;
	`
	_, err := s.db.Exec(ctx, sql, q.ID, string(q.Type), q.Text, q.SeedTrackID, intents, genres, q.Era, extras)
	return err
}

const queryColumns = `id, task_type, query_text, seed_track_id, intents, genres, era, extras`

func scanQuery(row pgx.Row) (domain.Query, error) {
	var (
		q       domain.Query
		intents []byte
		genres  []byte
		extras  []byte
	)
	if err := row.Scan(&q.ID, &q.Type, &q.Text, &q.SeedTrackID, &intents, &genres, &q.Era, &extras); err != nil {
		return domain.Query{}, err
	}
	if len(intents) > 0 {
		if err := json.Unmarshal(intents, &q.Intents); err != nil {
			return domain.Query{}, err
		}
	}
	if len(genres) > 0 {
		if err := json.Unmarshal(genres, &q.Genres); err != nil {
			return domain.Query{}, err
		}
	}
	if len(extras) > 0 {
		if err := json.Unmarshal(extras, &q.Extras); err != nil {
			return domain.Query{}, err
		}
	}
	return q, nil
}

func (s *Store) GetQuery(ctx context.Context, id string) (domain.Query, error) {
	row := s.db.QueryRow(ctx, `SELECT `+queryColumns+` FROM queries WHERE id = $1`, id)
	q, err := scanQuery(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Query{}, apperr.NewNotFound("query", id)
	}
	return q, err
}

func (s *Store) ListQueries(ctx context.Context) ([]domain.Query, error) {
	rows, err := s.db.Query(ctx, `SELECT `+queryColumns+` FROM queries ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Query
	for rows.Next() {
		q, err := scanQuery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *Store) UpsertSystem(ctx context.Context, sys domain.System) error {
	config, _ := json.Marshal(sys.Config)
	sql := `
		INSERT INTO systems (id, config, config_hash, dataset_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			config = EXCLUDED.config,
			config_hash = EXCLUDED.config_hash,
			dataset_id = EXCLUDED.dataset_id;
	`
	_, err := s.db.Exec(ctx, sql, sys.ID, config, sys.ConfigHash, sys.DatasetID)
	return err
}

func (s *Store) ListSystems(ctx context.Context) ([]domain.System, error) {
	rows, err := s.db.Query(ctx, `SELECT id, config, config_hash, dataset_id FROM systems ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.System
	for rows.Next() {
		var (
			sys    domain.System
			config []byte
		)
		if err := rows.Scan(&sys.ID, &config, &sys.ConfigHash, &sys.DatasetID); err != nil {
			return nil, err
		}
		if len(config) > 0 {
			if err := json.Unmarshal(config, &sys.Config); err != nil {
				return nil, err
			}
		}
		out = append(out, sys)
	}
	return out, rows.Err()
}

func (s *Store) ListSystemsWithCandidates(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT DISTINCT system_id FROM candidates ORDER BY system_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *Store) UpsertCandidates(ctx context.Context, cs []domain.Candidate) error {
	if len(cs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	sql := `
		INSERT INTO candidates (system_id, query_id, rank, track_id, score)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (system_id, query_id, rank) DO UPDATE SET
			track_id = EXCLUDED.track_id,
			score = EXCLUDED.score;
	`
	for _, c := range cs {
		batch.Queue(sql, c.SystemID, c.QueryID, c.Rank, c.TrackID, c.Score)
	}
	return s.db.SendBatch(ctx, batch).Close()
}

func (s *Store) ListCandidates(ctx context.Context, systemID, queryID string) ([]domain.Candidate, error) {
	sql := `
		SELECT system_id, query_id, rank, track_id, score
		FROM candidates
		WHERE system_id = $1 AND query_id = $2
		ORDER BY rank;
	`
	rows, err := s.db.Query(ctx, sql, systemID, queryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Candidate
	for rows.Next() {
		var c domain.Candidate
		if err := rows.Scan(&c.SystemID, &c.QueryID, &c.Rank, &c.TrackID, &c.Score); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) SetActivePolicy(ctx context.Context, p domain.Policy) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `UPDATE policies SET active = FALSE WHERE active`); err != nil {
		return err
	}
	sql := `
		INSERT INTO policies (version, retrieval_depth_k, final_k, max_per_artist, exclude_seed_artist, task_block_size, active)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE)
		ON CONFLICT (version) DO UPDATE SET
			retrieval_depth_k = EXCLUDED.retrieval_depth_k,
			final_k = EXCLUDED.final_k,
			max_per_artist = EXCLUDED.max_per_artist,
			exclude_seed_artist = EXCLUDED.exclude_seed_artist,
			task_block_size = EXCLUDED.task_block_size,
			active = TRUE;
	`
	if _, err := tx.Exec(ctx, sql,
		p.Version, p.RetrievalDepthK, p.FinalK, p.MaxPerArtist, p.ExcludeSeedArtist, p.TaskBlockSize); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) GetActivePolicy(ctx context.Context) (domain.Policy, error) {
	sql := `
		SELECT version, retrieval_depth_k, final_k, max_per_artist, exclude_seed_artist, task_block_size
		FROM policies WHERE active LIMIT 1;
	`
	var p domain.Policy
	err := s.db.QueryRow(ctx, sql).Scan(
		&p.Version, &p.RetrievalDepthK, &p.FinalK, &p.MaxPerArtist, &p.ExcludeSeedArtist, &p.TaskBlockSize)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Policy{}, apperr.NewConfiguration("no active policy")
	}
	return p, err
}

func (s *Store) UpsertFinalList(ctx context.Context, fl domain.FinalList) error {
	order, _ := json.Marshal(fl.FinalOrder)
	counts, _ := json.Marshal(fl.FilterCounts)

	sql := `
		INSERT INTO final_lists (policy_version, system_id, query_id, final_order, filter_counts, depth_scanned, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (policy_version, system_id, query_id) DO UPDATE SET
			final_order = EXCLUDED.final_order,
			filter_counts = EXCLUDED.filter_counts,
			depth_scanned = EXCLUDED.depth_scanned,
			generated_at = EXCLUDED.generated_at;
	`
	_, err := s.db.Exec(ctx, sql,
		fl.PolicyVersion, fl.SystemID, fl.QueryID, order, counts, fl.DepthScanned, fl.GeneratedAt)
	return err
}

const finalListColumns = `policy_version, system_id, query_id, final_order, filter_counts, depth_scanned, generated_at`

func scanFinalList(row pgx.Row) (domain.FinalList, error) {
	var (
		fl     domain.FinalList
		order  []byte
		counts []byte
	)
	if err := row.Scan(&fl.PolicyVersion, &fl.SystemID, &fl.QueryID, &order, &counts, &fl.DepthScanned, &fl.GeneratedAt); err != nil {
		return domain.FinalList{}, err
	}
	if err := json.Unmarshal(order, &fl.FinalOrder); err != nil {
		return domain.FinalList{}, err
	}
	if err := json.Unmarshal(counts, &fl.FilterCounts); err != nil {
		return domain.FinalList{}, err
	}
	return fl, nil
}

func (s *Store) GetFinalList(ctx context.Context, policyVersion, systemID, queryID string) (domain.FinalList, error) {
	sql := `SELECT ` + finalListColumns + ` FROM final_lists WHERE policy_version = $1 AND system_id = $2 AND query_id = $3`
	fl, err := scanFinalList(s.db.QueryRow(ctx, sql, policyVersion, systemID, queryID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.FinalList{}, apperr.NewNotFound("final list",
			fmt.Sprintf("%s/%s/%s", policyVersion, systemID, queryID))
	}
	return fl, err
}

func (s *Store) ListFinalLists(ctx context.Context, policyVersion string) ([]domain.FinalList, error) {
	sql := `SELECT ` + finalListColumns + ` FROM final_lists WHERE policy_version = $1 ORDER BY system_id, query_id`
	rows, err := s.db.Query(ctx, sql, policyVersion)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.FinalList
	for rows.Next() {
		fl, err := scanFinalList(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, fl)
	}
	return out, rows.Err()
}

func (s *Store) UpsertPair(ctx context.Context, p domain.Pair) error {
	sql := `
		INSERT INTO pairs (id, system_a, system_b)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING;
	`
	_, err := s.db.Exec(ctx, sql, p.ID, p.SystemA, p.SystemB)
	return err
}

func (s *Store) GetPair(ctx context.Context, id string) (domain.Pair, error) {
	var p domain.Pair
	err := s.db.QueryRow(ctx, `SELECT id, system_a, system_b FROM pairs WHERE id = $1`, id).
		Scan(&p.ID, &p.SystemA, &p.SystemB)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Pair{}, apperr.NewNotFound("pair", id)
	}
	return p, err
}

func (s *Store) ListPairs(ctx context.Context) ([]domain.Pair, error) {
	rows, err := s.db.Query(ctx, `SELECT id, system_a, system_b FROM pairs ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Pair
	for rows.Next() {
		var p domain.Pair
		if err := rows.Scan(&p.ID, &p.SystemA, &p.SystemB); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) UpsertTask(ctx context.Context, t domain.Task) error {
	// Existing (query, pair) tasks keep their identity and counters.
	sql := `
		INSERT INTO tasks (id, query_id, pair_id, target_judgments, collected_judgments, done, is_practice)
		VALUES ($1, $2, $3, $4, 0, FALSE, $5)
		ON CONFLICT (query_id, pair_id) DO NOTHING;
	`
	_, err := s.db.Exec(ctx, sql, t.ID, t.QueryID, t.PairID, t.TargetJudgments, t.IsPractice)
	return err
}

const taskColumns = `id, query_id, pair_id, target_judgments, collected_judgments, done, is_practice`

func scanTask(row pgx.Row) (domain.Task, error) {
	var t domain.Task
	err := row.Scan(&t.ID, &t.QueryID, &t.PairID, &t.TargetJudgments, &t.CollectedJudgments, &t.Done, &t.IsPractice)
	return t, err
}

func (s *Store) GetTask(ctx context.Context, id uuid.UUID) (domain.Task, error) {
	t, err := scanTask(s.db.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Task{}, apperr.NewNotFound("task", id.String())
	}
	return t, err
}

func (s *Store) ListTasks(ctx context.Context) ([]domain.Task, error) {
	return s.listTasks(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY query_id, pair_id`)
}

func (s *Store) ListOpenTasks(ctx context.Context, queryIDs []string) ([]domain.Task, error) {
	sql := `SELECT ` + taskColumns + ` FROM tasks WHERE NOT done AND query_id = ANY($1) ORDER BY query_id, pair_id`
	return s.listTasks(ctx, sql, queryIDs)
}

func (s *Store) listTasks(ctx context.Context, sql string, args ...any) ([]domain.Task, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) CreateAssignment(ctx context.Context, raterID string, taskID uuid.UUID) error {
	sql := `
		INSERT INTO task_assignments (rater_id, task_id, assigned_at, completed)
		VALUES ($1, $2, NOW(), FALSE)
		ON CONFLICT (rater_id, task_id) DO NOTHING;
	`
	tag, err := s.db.Exec(ctx, sql, raterID, taskID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NewConflict(fmt.Sprintf("task %s already assigned to rater %s", taskID, raterID))
	}
	return nil
}

func (s *Store) ListAssignments(ctx context.Context, raterID string) ([]domain.Assignment, error) {
	sql := `
		SELECT rater_id, task_id, assigned_at, completed
		FROM task_assignments
		WHERE rater_id = $1
		ORDER BY assigned_at;
	`
	rows, err := s.db.Query(ctx, sql, raterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Assignment
	for rows.Next() {
		var a domain.Assignment
		if err := rows.Scan(&a.RaterID, &a.TaskID, &a.AssignedAt, &a.Completed); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) RecordJudgment(ctx context.Context, j domain.Judgment) (uuid.UUID, error) {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	leftList, _ := json.Marshal(j.LeftList)
	rightList, _ := json.Marshal(j.RightList)
	var confidence *int
	if j.Confidence > 0 {
		confidence = &j.Confidence
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	defer tx.Rollback(ctx)

	insert := `
		INSERT INTO judgments (id, task_id, rater_id, session_id, query_id, pair_id,
			left_system_id, right_system_id, left_list, right_list,
			choice, confidence, rng_seed, presented_at, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15);
	`
	if _, err := tx.Exec(ctx, insert,
		j.ID, j.TaskID, j.RaterID, j.SessionID, j.QueryID, j.PairID,
		j.LeftSystemID, j.RightSystemID, leftList, rightList,
		string(j.Choice), confidence, j.RNGSeed, j.PresentedAt, j.SubmittedAt); err != nil {
		return uuid.Nil, err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE task_assignments SET completed = TRUE WHERE rater_id = $1 AND task_id = $2`,
		j.RaterID, j.TaskID); err != nil {
		return uuid.Nil, err
	}

	update := `
		UPDATE tasks SET
			collected_judgments = collected_judgments + 1,
			done = collected_judgments + 1 >= target_judgments
		WHERE id = $1;
	`
	if _, err := tx.Exec(ctx, update, j.TaskID); err != nil {
		return uuid.Nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, err
	}
	return j.ID, nil
}

func (s *Store) ListJudgments(ctx context.Context) ([]domain.Judgment, error) {
	sql := `
		SELECT id, task_id, rater_id, session_id, query_id, pair_id,
			left_system_id, right_system_id, left_list, right_list,
			choice, confidence, rng_seed, presented_at, submitted_at
		FROM judgments
		ORDER BY submitted_at;
	`
	rows, err := s.db.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Judgment
	for rows.Next() {
		var (
			j          domain.Judgment
			leftList   []byte
			rightList  []byte
			confidence *int
		)
		if err := rows.Scan(&j.ID, &j.TaskID, &j.RaterID, &j.SessionID, &j.QueryID, &j.PairID,
			&j.LeftSystemID, &j.RightSystemID, &leftList, &rightList,
			&j.Choice, &confidence, &j.RNGSeed, &j.PresentedAt, &j.SubmittedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(leftList, &j.LeftList); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(rightList, &j.RightList); err != nil {
			return nil, err
		}
		if confidence != nil {
			j.Confidence = *confidence
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (s *Store) UpsertRater(ctx context.Context, r domain.Rater) error {
	sql := `
		INSERT INTO raters (id, display_name, soft_cap, total_cap)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			soft_cap = EXCLUDED.soft_cap,
			total_cap = EXCLUDED.total_cap;
	`
	_, err := s.db.Exec(ctx, sql, r.ID, r.DisplayName, r.SoftCap, r.TotalCap)
	return err
}

func (s *Store) GetRater(ctx context.Context, id string) (domain.Rater, error) {
	var r domain.Rater
	err := s.db.QueryRow(ctx, `SELECT id, display_name, soft_cap, total_cap FROM raters WHERE id = $1`, id).
		Scan(&r.ID, &r.DisplayName, &r.SoftCap, &r.TotalCap)
	if errors.Is(err, pgx.ErrNoRows) {
		// Raters appear lazily on first contact.
		return domain.Rater{ID: id}, nil
	}
	return r, err
}

func (s *Store) ListRaters(ctx context.Context) ([]domain.Rater, error) {
	rows, err := s.db.Query(ctx, `SELECT id, display_name, soft_cap, total_cap FROM raters ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Rater
	for rows.Next() {
		var r domain.Rater
		if err := rows.Scan(&r.ID, &r.DisplayName, &r.SoftCap, &r.TotalCap); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
