// Package export renders arena data as CSV and JSON for offline analysis.
// The JSON judgment export carries the stratification attributes inline, so
// the analyzer never needs to re-join queries or tasks.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/auralab/song-arena/internal/domain"
	"github.com/auralab/song-arena/internal/storage"
)

// listSeparator joins multi-valued CSV cells (track lists, genres).
const listSeparator = "|"

// JudgmentRecord is one judgment joined with its task and query attributes.
type JudgmentRecord struct {
	JudgmentID    string    `json:"judgment_id"`
	TaskID        string    `json:"task_id"`
	RaterID       string    `json:"rater_id"`
	SessionID     string    `json:"session_id"`
	QueryID       string    `json:"query_id"`
	QueryText     string    `json:"query_text,omitempty"`
	TaskType      string    `json:"task_type"`
	SeedTrackID   string    `json:"seed_track_id,omitempty"`
	Genres        []string  `json:"genres"`
	PairID        string    `json:"pair_id"`
	LeftSystemID  string    `json:"left_system_id"`
	RightSystemID string    `json:"right_system_id"`
	LeftList      []string  `json:"left_list"`
	RightList     []string  `json:"right_list"`
	Choice        string    `json:"choice"`
	Confidence    *int      `json:"confidence"`
	RNGSeed       string    `json:"rng_seed"`
	PresentedAt   time.Time `json:"presented_at"`
	SubmittedAt   time.Time `json:"submitted_at"`
	IsPractice    bool      `json:"is_practice"`
}

type Exporter struct {
	store storage.Store
}

func NewExporter(store storage.Store) *Exporter {
	return &Exporter{store: store}
}

// JudgmentRecords joins every judgment with its query and task.
func (e *Exporter) JudgmentRecords(ctx context.Context) ([]JudgmentRecord, error) {
	js, err := e.store.ListJudgments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list judgments: %w", err)
	}
	queries, err := e.store.ListQueries(ctx)
	if err != nil {
		return nil, fmt.Errorf("list queries: %w", err)
	}
	tasks, err := e.store.ListTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	queryByID := make(map[string]domain.Query, len(queries))
	for _, q := range queries {
		queryByID[q.ID] = q
	}
	practice := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		practice[t.ID.String()] = t.IsPractice
	}

	out := make([]JudgmentRecord, 0, len(js))
	for _, j := range js {
		rec := JudgmentRecord{
			JudgmentID:    j.ID.String(),
			TaskID:        j.TaskID.String(),
			RaterID:       j.RaterID,
			SessionID:     j.SessionID,
			QueryID:       j.QueryID,
			PairID:        j.PairID,
			LeftSystemID:  j.LeftSystemID,
			RightSystemID: j.RightSystemID,
			LeftList:      j.LeftList,
			RightList:     j.RightList,
			Choice:        string(j.Choice),
			RNGSeed:       j.RNGSeed,
			PresentedAt:   j.PresentedAt,
			SubmittedAt:   j.SubmittedAt,
			IsPractice:    practice[j.TaskID.String()],
		}
		if j.Confidence > 0 {
			c := j.Confidence
			rec.Confidence = &c
		}
		if q, ok := queryByID[j.QueryID]; ok {
			rec.QueryText = q.Text
			rec.TaskType = string(q.Type)
			rec.SeedTrackID = q.SeedTrackID
			rec.Genres = q.Genres
		}
		out = append(out, rec)
	}
	return out, nil
}

// JudgmentsJSON writes the enriched judgment records as a JSON array.
func (e *Exporter) JudgmentsJSON(ctx context.Context, w io.Writer) error {
	recs, err := e.JudgmentRecords(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(recs)
}

// JudgmentsCSV writes the enriched judgment records as CSV, one row per
// judgment with list-valued cells joined by "|".
func (e *Exporter) JudgmentsCSV(ctx context.Context, w io.Writer) error {
	recs, err := e.JudgmentRecords(ctx)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	header := []string{
		"judgment_id", "task_id", "rater_id", "session_id",
		"query_id", "query_text", "task_type", "seed_track_id", "genres",
		"pair_id", "left_system_id", "right_system_id",
		"left_list", "right_list",
		"choice", "confidence", "rng_seed",
		"presented_at", "submitted_at", "is_practice",
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range recs {
		confidence := ""
		if r.Confidence != nil {
			confidence = strconv.Itoa(*r.Confidence)
		}
		row := []string{
			r.JudgmentID, r.TaskID, r.RaterID, r.SessionID,
			r.QueryID, r.QueryText, r.TaskType, r.SeedTrackID, strings.Join(r.Genres, listSeparator),
			r.PairID, r.LeftSystemID, r.RightSystemID,
			strings.Join(r.LeftList, listSeparator), strings.Join(r.RightList, listSeparator),
			r.Choice, confidence, r.RNGSeed,
			r.PresentedAt.Format(time.RFC3339Nano), r.SubmittedAt.Format(time.RFC3339Nano),
			strconv.FormatBool(r.IsPractice),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// FinalListsJSON writes one policy version's materialized final lists.
func (e *Exporter) FinalListsJSON(ctx context.Context, w io.Writer, policyVersion string) error {
	lists, err := e.store.ListFinalLists(ctx, policyVersion)
	if err != nil {
		return fmt.Errorf("list final lists: %w", err)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(lists)
}

// FinalListsCSV writes final lists exploded to one row per ranked track.
func (e *Exporter) FinalListsCSV(ctx context.Context, w io.Writer, policyVersion string) error {
	lists, err := e.store.ListFinalLists(ctx, policyVersion)
	if err != nil {
		return fmt.Errorf("list final lists: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"policy_version", "system_id", "query_id", "position", "track_id"}); err != nil {
		return err
	}
	for _, fl := range lists {
		for i, trackID := range fl.FinalOrder {
			row := []string{fl.PolicyVersion, fl.SystemID, fl.QueryID, strconv.Itoa(i + 1), trackID}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// TaskProgressCSV writes one row per task with its collection state.
func (e *Exporter) TaskProgressCSV(ctx context.Context, w io.Writer) error {
	tasks, err := e.store.ListTasks(ctx)
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{
		"task_id", "query_id", "pair_id",
		"target_judgments", "collected_judgments", "fill_ratio", "done", "is_practice",
	}); err != nil {
		return err
	}
	for _, t := range tasks {
		row := []string{
			t.ID.String(), t.QueryID, t.PairID,
			strconv.Itoa(t.TargetJudgments), strconv.Itoa(t.CollectedJudgments),
			strconv.FormatFloat(t.FillRatio(), 'f', 4, 64),
			strconv.FormatBool(t.Done), strconv.FormatBool(t.IsPractice),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// RaterStatsCSV writes per-rater activity derived from recorded judgments.
func (e *Exporter) RaterStatsCSV(ctx context.Context, w io.Writer) error {
	js, err := e.store.ListJudgments(ctx)
	if err != nil {
		return fmt.Errorf("list judgments: %w", err)
	}

	type raterAgg struct {
		judgments int
		queries   map[string]struct{}
		sessions  map[string]struct{}
		first     time.Time
		last      time.Time
	}
	byRater := map[string]*raterAgg{}
	order := make([]string, 0)
	for _, j := range js {
		agg, ok := byRater[j.RaterID]
		if !ok {
			agg = &raterAgg{
				queries:  map[string]struct{}{},
				sessions: map[string]struct{}{},
				first:    j.SubmittedAt,
				last:     j.SubmittedAt,
			}
			byRater[j.RaterID] = agg
			order = append(order, j.RaterID)
		}
		agg.judgments++
		agg.queries[j.QueryID] = struct{}{}
		agg.sessions[j.SessionID] = struct{}{}
		if j.SubmittedAt.Before(agg.first) {
			agg.first = j.SubmittedAt
		}
		if j.SubmittedAt.After(agg.last) {
			agg.last = j.SubmittedAt
		}
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{
		"rater_id", "judgments", "distinct_queries", "sessions", "first_submitted", "last_submitted",
	}); err != nil {
		return err
	}
	for _, raterID := range order {
		agg := byRater[raterID]
		row := []string{
			raterID, strconv.Itoa(agg.judgments),
			strconv.Itoa(len(agg.queries)), strconv.Itoa(len(agg.sessions)),
			agg.first.Format(time.RFC3339Nano), agg.last.Format(time.RFC3339Nano),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
