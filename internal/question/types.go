package question

import (
	"errors"
	"fmt"
)

// Difficulty constants for readability.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// Question is the normalized payload delivered to clients. Choices keeps the
// upstream order with the correct answer appended last; shuffling for display
// is the presentation layer's job, not ours.
type Question struct {
	ID           string   `json:"id"`
	Text         string   `json:"text"`
	Choices      []string `json:"choices"`
	CorrectIndex int      `json:"correct_index"`
	Category     string   `json:"category"`
	Difficulty   string   `json:"difficulty"`
}

// Request describes one topic's worth of questions. Immutable once built.
type Request struct {
	Topic      string
	Amount     int
	Difficulty string // empty means any
}

// TopicQuota is the per-topic share of a multi-topic request.
type TopicQuota struct {
	Topic string
	Count int
}

// TopicFailure reports one topic whose fetch exhausted its retries.
type TopicFailure struct {
	Topic string
	Err   error
}

// Reason exposes the failure cause for responses and logs.
func (f TopicFailure) Reason() string {
	if f.Err == nil {
		return ""
	}
	return f.Err.Error()
}

// Result is the outcome of a distribution request. Failed is empty on full
// success; on partial failure Questions holds what did arrive and Failed
// names the topics that did not.
type Result struct {
	Questions []Question
	Failed    []TopicFailure
}

// Validation errors, rejected before anything is fetched.
var (
	ErrNoTopics     = errors.New("no topics selected")
	ErrInvalidTotal = errors.New("total question count must be at least 1")
)

// TotalFailureError is returned when every fetched topic failed.
type TotalFailureError struct {
	Failures []TopicFailure
}

func (e *TotalFailureError) Error() string {
	return fmt.Sprintf("all %d topics failed", len(e.Failures))
}
