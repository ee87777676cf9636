package domain

import "github.com/google/uuid"

const DefaultTargetJudgments = 3

// Task is the unit of comparison work for one (query, pair). Collected
// judgments only ever grow; Done flips once the target is met and stays set.
type Task struct {
	ID                 uuid.UUID `json:"task_id"`
	QueryID            string    `json:"query_id"`
	PairID             string    `json:"pair_id"`
	TargetJudgments    int       `json:"target_judgments"`
	CollectedJudgments int       `json:"collected_judgments"`
	Done               bool      `json:"done"`
	IsPractice         bool      `json:"is_practice"`
}

// FillRatio is collected/target, used to prioritize under-collected tasks.
func (t Task) FillRatio() float64 {
	if t.TargetJudgments <= 0 {
		return 1
	}
	return float64(t.CollectedJudgments) / float64(t.TargetJudgments)
}
