package model

import (
	"context"
	"time"
)

const (
	MetricGroundedness = "groundedness"
	MetricCoherence    = "coherence"
	MetricRelevance    = "relevance"

	ResultPass = "pass"
	ResultFail = "fail"
)

// MetricResult is one scorer's structured output. A scorer that failed
// outright carries Error and an empty Result instead of aborting the whole
// evaluation mapping.
type MetricResult struct {
	Score  float64 `json:"score"`
	Result string  `json:"result"`
	Reason string  `json:"reason,omitempty"`
	Error  string  `json:"error,omitempty"`
}

// Evaluation maps metric name to that scorer's result.
type Evaluation map[string]MetricResult

// Failed returns the subset of metrics whose result is an explicit fail.
func (e Evaluation) Failed() Evaluation {
	failed := Evaluation{}
	for name, r := range e {
		if r.Result == ResultFail {
			failed[name] = r
		}
	}
	return failed
}

// EvaluationRecord is one durable evaluation log entry. Records are
// append-only with a fresh id per call; callers store at most once per
// response id to avoid duplicates.
type EvaluationRecord struct {
	ID         string            `json:"id"`
	SessionID  string            `json:"session_id"`
	ResponseID string            `json:"response_id"`
	UserQuery  string            `json:"user_query"`
	Response   string            `json:"response"`
	Evaluation Evaluation        `json:"evaluation"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

type EvaluationStore interface {
	StoreEvaluation(ctx context.Context, sessionID, responseID, userQuery, response string, evaluation Evaluation, metadata map[string]string) error
}
