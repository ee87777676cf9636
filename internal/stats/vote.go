// Package stats aggregates recorded judgments into per-pair results:
// majority verdicts per task, win rates with Wilson intervals and an exact
// binomial sign test, stratified overall, by task type and by genre.
package stats

import (
	"fmt"
)

// Judgment is the analytical view of one recorded judgment, enriched with
// the query attributes used for stratification. Field names match the
// JSON export, so dumped data loads straight into the analyzer.
type Judgment struct {
	JudgmentID    string   `json:"judgment_id"`
	TaskID        string   `json:"task_id"`
	QueryID       string   `json:"query_id"`
	PairID        string   `json:"pair_id"`
	TaskType      string   `json:"task_type"`
	Genres        []string `json:"genres"`
	LeftSystemID  string   `json:"left_system_id"`
	RightSystemID string   `json:"right_system_id"`
	Choice        string   `json:"choice"`
	Confidence    *int     `json:"confidence"`
}

// VoteMode selects how a task's judgments combine into a verdict.
type VoteMode string

const (
	// VotePlain counts every judgment once.
	VotePlain VoteMode = "plain"
	// VoteWeighted weights each judgment by its confidence; judgments
	// without a confidence are excluded.
	VoteWeighted VoteMode = "weighted"
)

// Verdict is a task-level outcome relative to the canonical pair order.
type Verdict string

const (
	VerdictA   Verdict = "a_win"
	VerdictB   Verdict = "b_win"
	VerdictTie Verdict = "tie"
)

// TaskVerdict reduces one task's judgments to a verdict. Raters saw the
// systems in per-presentation orientations, so each choice is first
// projected onto the system it actually names before counting. Any
// ambiguity, a shared maximum between outcomes, resolves to a tie.
func TaskVerdict(js []Judgment, systemA, systemB string, mode VoteMode) (Verdict, error) {
	if len(js) == 0 {
		return VerdictTie, nil
	}

	var wA, wB, wTie float64
	for _, j := range js {
		if !sidesMatch(j, systemA, systemB) {
			return "", fmt.Errorf("judgment %s presents systems %q/%q, want %q and %q",
				j.JudgmentID, j.LeftSystemID, j.RightSystemID, systemA, systemB)
		}

		w := 1.0
		if mode == VoteWeighted {
			if j.Confidence == nil {
				continue
			}
			w = float64(*j.Confidence)
		}

		switch j.Choice {
		case "left":
			if j.LeftSystemID == systemA {
				wA += w
			} else {
				wB += w
			}
		case "right":
			if j.RightSystemID == systemA {
				wA += w
			} else {
				wB += w
			}
		case "tie":
			wTie += w
		default:
			return "", fmt.Errorf("judgment %s has unknown choice %q", j.JudgmentID, j.Choice)
		}
	}

	switch {
	case wA > wB && wA > wTie:
		return VerdictA, nil
	case wB > wA && wB > wTie:
		return VerdictB, nil
	default:
		return VerdictTie, nil
	}
}

func sidesMatch(j Judgment, systemA, systemB string) bool {
	return (j.LeftSystemID == systemA && j.RightSystemID == systemB) ||
		(j.LeftSystemID == systemB && j.RightSystemID == systemA)
}
