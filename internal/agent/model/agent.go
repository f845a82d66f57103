package model

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

// Agent is the capability surface an agent variant exposes. Variants share
// wiring (history, cache, evaluation) by composition, not inheritance.
type Agent interface {
	Initialize(ctx context.Context) error
	Invoke(ctx context.Context, in QueryInput) (*AgentResponse, error)
}

// QueryInput represents one inbound turn request.
type QueryInput struct {
	SessionID string `json:"session_id"`
	UserInput string `json:"user_input"`
}

// AgentResponse is the transient per-turn result returned to the caller.
// It is projected into the transcript and, on a cache miss, into the cache.
type AgentResponse struct {
	Content          string   `json:"content"`
	References       []string `json:"references"`
	ResponseID       string   `json:"response_id"`
	IsTaskComplete   bool     `json:"is_task_complete"`
	RequireUserInput bool     `json:"require_user_input"`
}

// CacheOutcome is the dataflow value between the cache-lookup node and the
// branch that either short-circuits the turn or proceeds to the model.
type CacheOutcome struct {
	Hit    bool
	Answer *CachedAnswer
}

// AppState stores per-invocation state for the Eino graph.
// Concurrency model:
//   - Registered as graph local state via compose.WithGenLocalState.
//   - All reads/writes happen only inside Eino state handlers
//     (WithStatePreHandler, WithStatePostHandler, compose.ProcessState),
//     which Eino serializes, so no mutex is required.
//   - For persistence, go through the MessagesManager, never the state.
type AppState struct {
	SessionID  string
	ResponseID string
	UserInput  string

	// Transcript loaded at turn start plus everything appended during the
	// turn; mutated only inside Eino state handlers.
	History []*schema.Message

	ToolCallCount        int
	ToolCallLimitReached bool
	ToolCallIDSeq        int

	// Accumulated total LLM cost (USD) across model invocations for this turn.
	TotalCostUSD float64
}
