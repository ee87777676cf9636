package export_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auralab/song-arena/internal/domain"
	"github.com/auralab/song-arena/internal/export"
	"github.com/auralab/song-arena/internal/stats"
	"github.com/auralab/song-arena/internal/storage/memory"
)

func seedArena(t *testing.T) (*memory.Store, domain.Task) {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()

	require.NoError(t, store.UpsertQuery(ctx, domain.Query{
		ID: "q1", Type: domain.TaskTypeText, Text: "songs for a road trip",
		Genres: []string{"rock", "pop"},
	}))
	pair := domain.NewPair("sysA", "sysB")
	require.NoError(t, store.UpsertPair(ctx, pair))
	task := domain.Task{ID: uuid.New(), QueryID: "q1", PairID: pair.ID, TargetJudgments: 3}
	require.NoError(t, store.UpsertTask(ctx, task))
	require.NoError(t, store.CreateAssignment(ctx, "r1", task.ID))

	_, err := store.RecordJudgment(ctx, domain.Judgment{
		ID: uuid.New(), TaskID: task.ID, RaterID: "r1", SessionID: "s1",
		QueryID: "q1", PairID: pair.ID,
		LeftSystemID: "sysB", RightSystemID: "sysA",
		LeftList: []string{"b1", "b2"}, RightList: []string{"a1", "a2"},
		Choice: domain.ChoiceRight, Confidence: 2, RNGSeed: "0011223344556677",
		PresentedAt: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
		SubmittedAt: time.Date(2026, 3, 14, 9, 1, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return store, task
}

func TestJudgmentsJSON_FeedsAggregation(t *testing.T) {
	ctx := context.Background()
	store, task := seedArena(t)
	exp := export.NewExporter(store)

	var buf bytes.Buffer
	require.NoError(t, exp.JudgmentsJSON(ctx, &buf))

	// The export must load straight into the analytical view.
	var view []stats.Judgment
	require.NoError(t, json.Unmarshal(buf.Bytes(), &view))
	require.Len(t, view, 1)
	assert.Equal(t, task.ID.String(), view[0].TaskID)
	assert.Equal(t, "text", view[0].TaskType)
	assert.Equal(t, []string{"rock", "pop"}, view[0].Genres)
	assert.Equal(t, "right", view[0].Choice)
	require.NotNil(t, view[0].Confidence)
	assert.Equal(t, 2, *view[0].Confidence)

	s, err := stats.Compute(view, stats.VotePlain, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, s.AWins) // sysA sat on the chosen right side
}

func TestJudgmentsCSV(t *testing.T) {
	ctx := context.Background()
	store, _ := seedArena(t)
	exp := export.NewExporter(store)

	var buf bytes.Buffer
	require.NoError(t, exp.JudgmentsCSV(ctx, &buf))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)

	header, row := rows[0], rows[1]
	col := func(name string) string {
		for i, h := range header {
			if h == name {
				return row[i]
			}
		}
		t.Fatalf("column %s not found", name)
		return ""
	}
	assert.Equal(t, "q1", col("query_id"))
	assert.Equal(t, "songs for a road trip", col("query_text"))
	assert.Equal(t, "rock|pop", col("genres"))
	assert.Equal(t, "b1|b2", col("left_list"))
	assert.Equal(t, "right", col("choice"))
	assert.Equal(t, "2", col("confidence"))
	assert.Equal(t, "false", col("is_practice"))
}

func TestFinalListsCSV_OneRowPerTrack(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	require.NoError(t, store.UpsertFinalList(ctx, domain.FinalList{
		PolicyVersion: "p1", SystemID: "sysA", QueryID: "q1",
		FinalOrder: []string{"t3", "t1", "t2"},
	}))
	exp := export.NewExporter(store)

	var buf bytes.Buffer
	require.NoError(t, exp.FinalListsCSV(ctx, &buf, "p1"))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"p1", "sysA", "q1", "1", "t3"}, rows[1])
	assert.Equal(t, []string{"p1", "sysA", "q1", "3", "t2"}, rows[3])
}

func TestTaskProgressCSV(t *testing.T) {
	ctx := context.Background()
	store, task := seedArena(t)
	exp := export.NewExporter(store)

	var buf bytes.Buffer
	require.NoError(t, exp.TaskProgressCSV(ctx, &buf))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, task.ID.String(), rows[1][0])
	assert.Equal(t, "3", rows[1][3])
	assert.Equal(t, "1", rows[1][4])
	assert.Equal(t, "0.3333", rows[1][5])
}

func TestRaterStatsCSV(t *testing.T) {
	ctx := context.Background()
	store, _ := seedArena(t)
	exp := export.NewExporter(store)

	var buf bytes.Buffer
	require.NoError(t, exp.RaterStatsCSV(ctx, &buf))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "r1", rows[1][0])
	assert.Equal(t, "1", rows[1][1])
	assert.Equal(t, "1", rows[1][2])
}
