package stats

import (
	"fmt"
	"sort"
)

// Summary is the head-to-head outcome for one set of decided tasks. Win
// rate is system A's share of decisive verdicts; ties are excluded from it
// but reported. The p-value tests the decisive verdicts against a fair coin.
type Summary struct {
	SystemA string `json:"system_a"`
	SystemB string `json:"system_b"`

	Tasks     int `json:"tasks"`
	Judgments int `json:"judgments"`
	AWins     int `json:"a_wins"`
	BWins     int `json:"b_wins"`
	Ties      int `json:"ties"`

	WinRateA float64 `json:"win_rate_a"`
	CILow    float64 `json:"ci_low"`
	CIHigh   float64 `json:"ci_high"`
	PValue   float64 `json:"p_value"`
}

// taskGroup is one task's judgments plus the query attributes shared by all
// of them.
type taskGroup struct {
	taskID    string
	taskType  string
	genres    []string
	judgments []Judgment
	verdict   Verdict
}

// pairSystems resolves the (A, B) naming for a summary. An explicit order
// pins it; otherwise the two distinct systems observed across the judgments
// are taken alphabetically. An order that does not cover the judged systems,
// or data spanning more than two systems, is a malformed input.
func pairSystems(js []Judgment, order []string) (string, string, error) {
	set := map[string]struct{}{}
	for _, j := range js {
		set[j.LeftSystemID] = struct{}{}
		set[j.RightSystemID] = struct{}{}
	}

	if len(order) > 0 {
		if len(order) != 2 || order[0] == order[1] {
			return "", "", fmt.Errorf("system order must name exactly 2 distinct systems, got %v", order)
		}
		for id := range set {
			if id != order[0] && id != order[1] {
				return "", "", fmt.Errorf("system order %v does not cover judged system %q", order, id)
			}
		}
		return order[0], order[1], nil
	}

	if len(set) == 0 {
		return "", "", nil
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	if len(ids) != 2 {
		return "", "", fmt.Errorf("expected exactly 2 distinct systems, found %d", len(ids))
	}
	sort.Strings(ids)
	return ids[0], ids[1], nil
}

// groupTasks buckets judgments by task, resolves each bucket's verdict and
// returns the groups in stable task order.
func groupTasks(js []Judgment, systemA, systemB string, mode VoteMode) ([]taskGroup, error) {
	byTask := map[string]*taskGroup{}
	order := make([]string, 0)
	for _, j := range js {
		g, ok := byTask[j.TaskID]
		if !ok {
			g = &taskGroup{taskID: j.TaskID, taskType: j.TaskType, genres: j.Genres}
			byTask[j.TaskID] = g
			order = append(order, j.TaskID)
		}
		g.judgments = append(g.judgments, j)
	}
	sort.Strings(order)

	groups := make([]taskGroup, 0, len(order))
	for _, id := range order {
		g := byTask[id]
		v, err := TaskVerdict(g.judgments, systemA, systemB, mode)
		if err != nil {
			return nil, fmt.Errorf("task %s: %w", id, err)
		}
		g.verdict = v
		groups = append(groups, *g)
	}
	return groups, nil
}

// summarize folds task verdicts into a Summary. With no decisive verdicts
// the win rate defaults to an even 0.5 and the test degenerates to p=1.
func summarize(systemA, systemB string, groups []taskGroup) Summary {
	s := Summary{SystemA: systemA, SystemB: systemB, Tasks: len(groups)}
	for _, g := range groups {
		s.Judgments += len(g.judgments)
		switch g.verdict {
		case VerdictA:
			s.AWins++
		case VerdictB:
			s.BWins++
		default:
			s.Ties++
		}
	}

	decisive := s.AWins + s.BWins
	if decisive == 0 {
		s.WinRateA = 0.5
		s.CILow, s.CIHigh = 0, 1
		s.PValue = 1
		return s
	}

	s.WinRateA = float64(s.AWins) / float64(decisive)
	s.CILow, s.CIHigh = Wilson95(s.AWins, decisive)
	s.PValue = BinomTestTwoSided(s.AWins, decisive, 0.5)
	return s
}

// Compute produces the unstratified head-to-head summary for one pair's
// judgments. order optionally pins which system reports as A and which as B;
// nil falls back to alphabetical. Empty input yields the zero row: no tasks,
// an even win rate, a vacuous interval.
func Compute(js []Judgment, mode VoteMode, order []string) (Summary, error) {
	systemA, systemB, err := pairSystems(js, order)
	if err != nil {
		return Summary{}, err
	}
	groups, err := groupTasks(js, systemA, systemB, mode)
	if err != nil {
		return Summary{}, err
	}
	return summarize(systemA, systemB, groups), nil
}
