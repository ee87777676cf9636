package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Choice is a rater's preference for one presented comparison.
type Choice string

const (
	ChoiceLeft  Choice = "left"
	ChoiceRight Choice = "right"
	ChoiceTie   Choice = "tie"
)

func (c Choice) Valid() bool {
	return c == ChoiceLeft || c == ChoiceRight || c == ChoiceTie
}

// Confidence bounds for a judgment.
const (
	MinConfidence = 1
	MaxConfidence = 3
)

// Assignment records that a task was offered to a rater. At most one exists
// per (rater, task); Completed flips once the rater submits.
type Assignment struct {
	RaterID    string    `json:"rater_id"`
	TaskID     uuid.UUID `json:"task_id"`
	AssignedAt time.Time `json:"assigned_at"`
	Completed  bool      `json:"completed"`
}

// Judgment is the immutable record of one rater's choice for one
// presentation. LeftList and RightList are the exact post-shuffle track
// sequences that were shown, snapshotted rather than re-derived, so the
// record stays auditable even if final lists are re-materialized.
type Judgment struct {
	ID            uuid.UUID `json:"judgment_id"`
	TaskID        uuid.UUID `json:"task_id"`
	RaterID       string    `json:"rater_id"`
	SessionID     string    `json:"session_id"`
	QueryID       string    `json:"query_id"`
	PairID        string    `json:"pair_id"`
	LeftSystemID  string    `json:"left_system_id"`
	RightSystemID string    `json:"right_system_id"`
	LeftList      []string  `json:"left_list"`
	RightList     []string  `json:"right_list"`
	Choice        Choice    `json:"choice"`
	Confidence    int       `json:"confidence"`
	RNGSeed       string    `json:"rng_seed"`
	PresentedAt   time.Time `json:"presented_at"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

// ValidateSubmission checks the rater-controlled fields of a judgment.
func ValidateSubmission(choice Choice, confidence int) error {
	if !choice.Valid() {
		return fmt.Errorf("invalid choice %q, must be one of %q, %q, %q",
			choice, ChoiceLeft, ChoiceRight, ChoiceTie)
	}
	if confidence < MinConfidence || confidence > MaxConfidence {
		return fmt.Errorf("confidence must be between %d and %d, got %d",
			MinConfidence, MaxConfidence, confidence)
	}
	return nil
}
