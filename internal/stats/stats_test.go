package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func conf(n int) *int { return &n }

func j(task, left, right, choice string, confidence *int) Judgment {
	return Judgment{
		TaskID:        task,
		QueryID:       "q-" + task,
		PairID:        "s1_vs_s2",
		TaskType:      "text",
		LeftSystemID:  left,
		RightSystemID: right,
		Choice:        choice,
		Confidence:    confidence,
	}
}

func TestTaskVerdict_PlainMajority(t *testing.T) {
	js := []Judgment{
		j("t1", "s1", "s2", "left", conf(2)),
		j("t1", "s1", "s2", "left", conf(1)),
		j("t1", "s1", "s2", "right", conf(3)),
	}
	v, err := TaskVerdict(js, "s1", "s2", VotePlain)
	require.NoError(t, err)
	assert.Equal(t, VerdictA, v)
}

func TestTaskVerdict_ProjectsFlippedOrientations(t *testing.T) {
	// Two raters preferred s2, each from a different side of the screen.
	js := []Judgment{
		j("t1", "s1", "s2", "right", conf(2)),
		j("t1", "s2", "s1", "left", conf(2)),
		j("t1", "s1", "s2", "left", conf(2)),
	}
	v, err := TaskVerdict(js, "s1", "s2", VotePlain)
	require.NoError(t, err)
	assert.Equal(t, VerdictB, v)
}

func TestTaskVerdict_Weighted(t *testing.T) {
	t.Run("confidence sums decide", func(t *testing.T) {
		// Plain would be 2-1 for left; weighted is 4 vs 2.
		js := []Judgment{
			j("t1", "s1", "s2", "left", conf(3)),
			j("t1", "s1", "s2", "left", conf(1)),
			j("t1", "s1", "s2", "right", conf(2)),
		}
		v, err := TaskVerdict(js, "s1", "s2", VoteWeighted)
		require.NoError(t, err)
		assert.Equal(t, VerdictA, v)
	})

	t.Run("equal weight is a tie", func(t *testing.T) {
		js := []Judgment{
			j("t1", "s1", "s2", "left", conf(2)),
			j("t1", "s1", "s2", "right", conf(2)),
		}
		v, err := TaskVerdict(js, "s1", "s2", VoteWeighted)
		require.NoError(t, err)
		assert.Equal(t, VerdictTie, v)
	})

	t.Run("missing confidence is excluded", func(t *testing.T) {
		js := []Judgment{
			j("t1", "s1", "s2", "left", nil),
			j("t1", "s1", "s2", "left", nil),
			j("t1", "s1", "s2", "right", conf(1)),
		}
		v, err := TaskVerdict(js, "s1", "s2", VoteWeighted)
		require.NoError(t, err)
		assert.Equal(t, VerdictB, v)
	})
}

func TestTaskVerdict_TieOutvotesSplit(t *testing.T) {
	js := []Judgment{
		j("t1", "s1", "s2", "tie", conf(2)),
		j("t1", "s1", "s2", "tie", conf(2)),
		j("t1", "s1", "s2", "left", conf(2)),
	}
	v, err := TaskVerdict(js, "s1", "s2", VotePlain)
	require.NoError(t, err)
	assert.Equal(t, VerdictTie, v)
}

func TestTaskVerdict_ForeignSystemRejected(t *testing.T) {
	js := []Judgment{j("t1", "s1", "s9", "left", conf(2))}
	_, err := TaskVerdict(js, "s1", "s2", VotePlain)
	require.Error(t, err)
}

func TestWilson95(t *testing.T) {
	lo, hi := Wilson95(7, 10)
	assert.InDelta(t, 0.3968, lo, 0.0005)
	assert.InDelta(t, 0.8922, hi, 0.0005)
	assert.Greater(t, lo, 0.0)
	assert.Less(t, hi, 1.0)

	t.Run("zero trials is vacuous", func(t *testing.T) {
		lo, hi := Wilson95(0, 0)
		assert.Equal(t, 0.0, lo)
		assert.Equal(t, 1.0, hi)
	})

	t.Run("interval tightens with n", func(t *testing.T) {
		lo10, hi10 := Wilson95(7, 10)
		lo100, hi100 := Wilson95(70, 100)
		assert.Less(t, hi100-lo100, hi10-lo10)
	})
}

func TestBinomTestTwoSided(t *testing.T) {
	// 7 of 10 against a fair coin: sum of all outcome masses no more
	// likely than pmf(7) = 352/1024.
	assert.InDelta(t, 0.34375, BinomTestTwoSided(7, 10, 0.5), 1e-12)

	assert.InDelta(t, 1.0, BinomTestTwoSided(5, 10, 0.5), 1e-12)
	assert.InDelta(t, 2.0/1024.0, BinomTestTwoSided(0, 10, 0.5), 1e-12)
	assert.InDelta(t, 2.0/1024.0, BinomTestTwoSided(10, 10, 0.5), 1e-12)
	assert.Equal(t, 1.0, BinomTestTwoSided(0, 0, 0.5))

	// Stays finite and sane for large n.
	p := BinomTestTwoSided(520, 1000, 0.5)
	assert.Greater(t, p, 0.0)
	assert.LessOrEqual(t, p, 1.0)
}

func TestCompute_SevenOfTen(t *testing.T) {
	var js []Judgment
	for i := 0; i < 7; i++ {
		js = append(js, j(taskName("a", i), "s1", "s2", "left", conf(2)))
	}
	for i := 0; i < 3; i++ {
		js = append(js, j(taskName("b", i), "s1", "s2", "right", conf(2)))
	}

	s, err := Compute(js, VotePlain, nil)
	require.NoError(t, err)
	assert.Equal(t, "s1", s.SystemA)
	assert.Equal(t, "s2", s.SystemB)
	assert.Equal(t, 10, s.Tasks)
	assert.Equal(t, 7, s.AWins)
	assert.Equal(t, 3, s.BWins)
	assert.Equal(t, 0, s.Ties)
	assert.InDelta(t, 0.7, s.WinRateA, 1e-12)
	assert.InDelta(t, 0.34375, s.PValue, 1e-12)
	assert.InDelta(t, 0.3968, s.CILow, 0.0005)
	assert.InDelta(t, 0.8922, s.CIHigh, 0.0005)
}

func taskName(prefix string, i int) string {
	return prefix + string(rune('0'+i))
}

func TestCompute_TiesExcludedFromWinRate(t *testing.T) {
	js := []Judgment{
		j("t1", "s1", "s2", "left", conf(2)),
		j("t2", "s1", "s2", "tie", conf(2)),
		j("t3", "s1", "s2", "tie", conf(2)),
	}
	s, err := Compute(js, VotePlain, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, s.AWins)
	assert.Equal(t, 2, s.Ties)
	assert.InDelta(t, 1.0, s.WinRateA, 1e-12)
}

func TestCompute_AllTiesDefaultsEven(t *testing.T) {
	js := []Judgment{
		j("t1", "s1", "s2", "tie", conf(2)),
		j("t2", "s1", "s2", "tie", conf(2)),
	}
	s, err := Compute(js, VotePlain, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, s.WinRateA, 1e-12)
	assert.Equal(t, 1.0, s.PValue)
	assert.Equal(t, 0.0, s.CILow)
	assert.Equal(t, 1.0, s.CIHigh)
}

func TestCompute_ExplicitSystemOrder(t *testing.T) {
	js := []Judgment{
		j("t1", "s1", "s2", "left", conf(2)),
		j("t2", "s1", "s2", "left", conf(2)),
		j("t3", "s1", "s2", "right", conf(2)),
	}

	s, err := Compute(js, VotePlain, []string{"s2", "s1"})
	require.NoError(t, err)
	assert.Equal(t, "s2", s.SystemA)
	assert.Equal(t, "s1", s.SystemB)
	// s1's two wins now count for side B.
	assert.Equal(t, 1, s.AWins)
	assert.Equal(t, 2, s.BWins)
	assert.InDelta(t, 1.0/3.0, s.WinRateA, 1e-12)

	t.Run("order must cover the judged systems", func(t *testing.T) {
		_, err := Compute(js, VotePlain, []string{"s1", "s9"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "does not cover judged system")
	})

	t.Run("order must name two distinct systems", func(t *testing.T) {
		_, err := Compute(js, VotePlain, []string{"s1"})
		require.Error(t, err)
		_, err = Compute(js, VotePlain, []string{"s1", "s1"})
		require.Error(t, err)
	})
}

func TestCompute_EmptyInputZeroRow(t *testing.T) {
	s, err := Compute(nil, VotePlain, nil)
	require.NoError(t, err)
	assert.Zero(t, s.Tasks)
	assert.Zero(t, s.Judgments)
	assert.InDelta(t, 0.5, s.WinRateA, 1e-12)
	assert.Equal(t, 0.0, s.CILow)
	assert.Equal(t, 1.0, s.CIHigh)
	assert.Equal(t, 1.0, s.PValue)

	t.Run("order still names the systems", func(t *testing.T) {
		s, err := Compute(nil, VotePlain, []string{"s2", "s1"})
		require.NoError(t, err)
		assert.Equal(t, "s2", s.SystemA)
		assert.Equal(t, "s1", s.SystemB)
	})
}

func TestStratify_EmptyInputZeroRow(t *testing.T) {
	rows, err := Stratify(nil, VotePlain, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, StratumOverall, rows[0].Stratum)
	assert.Zero(t, rows[0].Tasks)
	assert.InDelta(t, 0.5, rows[0].WinRateA, 1e-12)
}

func TestCompute_RejectsMoreThanTwoSystems(t *testing.T) {
	js := []Judgment{
		j("t1", "s1", "s2", "left", conf(2)),
		j("t2", "s1", "s3", "left", conf(2)),
	}
	_, err := Compute(js, VotePlain, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly 2 distinct systems")
}

func TestStratify(t *testing.T) {
	mk := func(task, taskType, choice string, genres ...string) Judgment {
		v := j(task, "s1", "s2", choice, conf(2))
		v.TaskType = taskType
		v.Genres = genres
		return v
	}
	js := []Judgment{
		mk("t1", "text", "left", "rock"),
		mk("t2", "text", "right", "rock", "pop"),
		mk("t3", "song", "left"),
		mk("t4", "song", "left", "pop"),
	}

	rows, err := Stratify(js, VotePlain, nil)
	require.NoError(t, err)

	byLabel := map[string]StratumResult{}
	labels := make([]string, len(rows))
	for i, r := range rows {
		byLabel[r.Stratum] = r
		labels[i] = r.Stratum
	}
	assert.Equal(t, []string{
		"overall",
		"task_type:song", "task_type:text",
		"genre:pop", "genre:rock", "genre:unspecified",
	}, labels)

	assert.Equal(t, 4, byLabel["overall"].Tasks)
	assert.Equal(t, 3, byLabel["overall"].AWins)

	assert.Equal(t, 2, byLabel["task_type:text"].Tasks)
	assert.Equal(t, 2, byLabel["task_type:song"].Tasks)

	// t2 carries two genres and appears once in each; t3 has none.
	assert.Equal(t, 2, byLabel["genre:rock"].Tasks)
	assert.Equal(t, 2, byLabel["genre:pop"].Tasks)
	assert.Equal(t, 1, byLabel["genre:unspecified"].Tasks)
	assert.Equal(t, 1, byLabel["genre:unspecified"].AWins)
}

func TestStratify_MultiJudgmentTasks(t *testing.T) {
	js := []Judgment{
		j("t1", "s1", "s2", "left", conf(1)),
		j("t1", "s2", "s1", "right", conf(3)),
		j("t1", "s1", "s2", "right", conf(2)),
	}

	plain, err := Stratify(js, VotePlain, nil)
	require.NoError(t, err)
	require.NotEmpty(t, plain)
	// Plain: s1 gets 2 of 3 projected votes.
	assert.Equal(t, 1, plain[0].AWins)

	weighted, err := Stratify(js, VoteWeighted, nil)
	require.NoError(t, err)
	// Weighted: s1 has 1+3=4 against s2's 2.
	assert.Equal(t, 1, weighted[0].AWins)
	assert.Equal(t, 3, weighted[0].Judgments)
}
