package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	logx "github.com/hrdesk/server/pkg/logger"

	"github.com/hrdesk/server/internal/agent/cache"
	"github.com/hrdesk/server/internal/agent/evaluation"
	"github.com/hrdesk/server/internal/agent/graph/conversations"
	"github.com/hrdesk/server/internal/agent/graph/parsers"
	"github.com/hrdesk/server/internal/agent/graph/prompts"
	"github.com/hrdesk/server/internal/agent/model"
	"github.com/hrdesk/server/internal/observability"
)

// Graph node names.
const (
	NodeCacheLookup       = "CacheLookup"
	NodeCacheHit          = "CacheHit"
	NodeContextAssembler  = "ContextAssembler"
	NodeResponseChatModel = "ResponseChatModel"
	NodeToolExecutor      = "ToolExecutor"
	NodeFinalize          = "Finalize"
)

// NewCacheLookupPreHandler seeds the per-turn state: session identity, a
// fresh response id, and zeroed counters.
func NewCacheLookupPreHandler() func(context.Context, model.QueryInput, *model.AppState) (model.QueryInput, error) {
	return func(ctx context.Context, in model.QueryInput, s *model.AppState) (model.QueryInput, error) {
		s.SessionID = in.SessionID
		s.UserInput = in.UserInput
		s.ResponseID = uuid.NewString()
		s.History = nil
		s.ToolCallCount = 0
		s.ToolCallLimitReached = false
		s.ToolCallIDSeq = 0
		s.TotalCostUSD = 0
		return in, nil
	}
}

// NewCacheLookupNode creates the CacheLookup node. A cache transport failure
// is downgraded to a miss: the model path stays available when the cache
// store is not.
func NewCacheLookupNode(semCache *cache.SemanticCache, metrics *observability.Metrics) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, input model.QueryInput) (model.CacheOutcome, error) {
		answer, err := semCache.GetSimilar(ctx, input.UserInput)
		if err != nil {
			logx.Error().Err(err).Str("session_id", input.SessionID).Msg("cache lookup failed, continuing as miss")
			metrics.IncCacheMiss()
			return model.CacheOutcome{}, nil
		}
		if answer == nil {
			metrics.IncCacheMiss()
			return model.CacheOutcome{}, nil
		}
		metrics.IncCacheHit()
		return model.CacheOutcome{Hit: true, Answer: answer}, nil
	})
}

// NewCacheRouteCondition routes a hit straight to the short-circuit node and
// a miss into the model path.
func NewCacheRouteCondition() func(context.Context, model.CacheOutcome) (string, error) {
	return func(ctx context.Context, outcome model.CacheOutcome) (string, error) {
		if outcome.Hit {
			logx.Debug().Msg("Routing to CacheHit - answer served from cache")
			return NodeCacheHit, nil
		}
		logx.Debug().Msg("Routing to ContextAssembler - cache miss")
		return NodeContextAssembler, nil
	}
}

// NewCacheHitNode creates the CacheHit node. The turn is still recorded in
// the transcript: the user turn durably before we answer, the cached answer
// best-effort after.
func NewCacheHitNode(mm *conversations.MessagesManager) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, outcome model.CacheOutcome) (*model.AgentResponse, error) {
		if outcome.Answer == nil {
			return nil, fmt.Errorf("cache hit with nil answer")
		}

		var sessionID, responseID, userInput string
		err := compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			sessionID, responseID, userInput = state.SessionID, state.ResponseID, state.UserInput
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		if err := mm.AppendUser(ctx, nil, sessionID, responseID, userInput); err != nil {
			return nil, fmt.Errorf("append user turn: %w", err)
		}

		persistCtx := context.WithoutCancel(ctx)
		if err := mm.AppendAssistant(persistCtx, nil, sessionID, responseID, outcome.Answer.Content); err != nil {
			logx.Error().Err(err).Str("session_id", sessionID).Msg("failed to persist cached answer to transcript")
		}

		return &model.AgentResponse{
			Content:          outcome.Answer.Content,
			References:       outcome.Answer.References,
			ResponseID:       responseID,
			IsTaskComplete:   true,
			RequireUserInput: true,
		}, nil
	})
}

// NewContextAssemblerNode creates the ContextAssembler node for the miss
// path: load the transcript, render the system prompt, and record the user
// turn. A transcript load or user-turn append failure aborts the turn,
// otherwise a lost turn would silently corrupt future context.
func NewContextAssemblerNode(
	mm *conversations.MessagesManager,
	responsePromptConfig *model.ResponsePromptConfig,
) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, _ model.CacheOutcome) ([]*schema.Message, error) {
		var sessionID, responseID, userInput string
		err := compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			sessionID, responseID, userInput = state.SessionID, state.ResponseID, state.UserInput
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		transcript, err := mm.LoadTranscript(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("load transcript: %w", err)
		}

		respSysPrompt, err := prompts.RenderResponseSystem(ctx, *responsePromptConfig)
		if err != nil {
			return nil, fmt.Errorf("generate response prompt: %w", err)
		}

		messages := mm.BuildResponseContext(respSysPrompt, conversationalTurns(transcript))

		if err := mm.AppendUser(ctx, &messages, sessionID, responseID, userInput); err != nil {
			return nil, fmt.Errorf("append user turn: %w", err)
		}

		return messages, nil
	})
}

// conversationalTurns filters a replayed transcript down to user/assistant
// text turns. Persisted tool records are audit data; replaying an orphan
// tool message without its paired tool-call turn breaks the model API.
func conversationalTurns(transcript []*schema.Message) []*schema.Message {
	turns := make([]*schema.Message, 0, len(transcript))
	for _, msg := range transcript {
		if msg == nil || strings.TrimSpace(msg.Content) == "" {
			continue
		}
		if msg.Role != schema.User && msg.Role != schema.Assistant {
			continue
		}
		turns = append(turns, msg)
	}
	return turns
}

// NewResponseChatModelPreHandler creates the pre-handler for ResponseChatModel node
func NewResponseChatModelPreHandler(maxToolCalls int) func(context.Context, []*schema.Message, *model.AppState) ([]*schema.Message, error) {
	return func(ctx context.Context, in []*schema.Message, state *model.AppState) ([]*schema.Message, error) {
		// Heuristic fix for providers that omit tool_call_id on tool results
		if len(in) > 0 {
			last := in[len(in)-1]
			if last != nil && last.Role == schema.Tool && strings.TrimSpace(last.ToolCallID) == "" {
				// Try to find the most recent assistant tool call id from history
				for i := len(state.History) - 1; i >= 0; i-- {
					msg := state.History[i]
					if msg == nil || msg.Role != schema.Assistant || len(msg.ToolCalls) == 0 {
						continue
					}
					id := msg.ToolCalls[0].ID
					if strings.TrimSpace(id) != "" {
						last.ToolCallID = id
					}
					break
				}
			}
		}

		state.History = append(state.History, in...)

		if checkAndMarkToolLimit(state, maxToolCalls) {
			maxToolCalls = normalizeMaxToolCalls(maxToolCalls)
			wrapUp := &schema.Message{
				Role: schema.System,
				Content: fmt.Sprintf(
					"SYSTEM NOTICE: You have reached the maximum tool call limit (%d). "+
						"Please synthesize a helpful response using the information you've already gathered. "+
						"Acknowledge any limitations in your response if you couldn't complete all necessary tool calls.",
					maxToolCalls,
				),
			}
			state.History = append(state.History, wrapUp)
		}

		logx.Debug().Msg("AI thinking...")

		return state.History, nil
	}
}

// NewResponseChatModelPostHandler creates the post-handler for ResponseChatModel node
func NewResponseChatModelPostHandler(
	modelName string,
	metrics *observability.Metrics,
) func(context.Context, *schema.Message, *model.AppState) (*schema.Message, error) {
	return func(ctx context.Context, out *schema.Message, state *model.AppState) (*schema.Message, error) {
		metrics.IncModelCall()

		// Compute usage cost if available
		if model.CostEnabled() && out != nil && out.ResponseMeta != nil && out.ResponseMeta.Usage != nil {
			pricing := model.ResolvePricing(modelName)
			inC, outC, totalC := model.ComputeCost(out.ResponseMeta.Usage, pricing)
			if out.Extra == nil {
				out.Extra = map[string]any{}
			}
			out.Extra["usage_cost"] = map[string]any{
				"currency":          "USD",
				"model":             modelName,
				"prompt_tokens":     out.ResponseMeta.Usage.PromptTokens,
				"completion_tokens": out.ResponseMeta.Usage.CompletionTokens,
				"total_tokens":      out.ResponseMeta.Usage.TotalTokens,
				"input_cost":        inC,
				"output_cost":       outC,
				"total_cost":        totalC,
			}
			logx.Debug().
				Str("session_id", state.SessionID).
				Str("node", NodeResponseChatModel).
				Str("model", modelName).
				Int("prompt_tokens", out.ResponseMeta.Usage.PromptTokens).
				Int("completion_tokens", out.ResponseMeta.Usage.CompletionTokens).
				Int("total_tokens", out.ResponseMeta.Usage.TotalTokens).
				Float64("input_cost_usd", inC).
				Float64("output_cost_usd", outC).
				Float64("total_cost_usd", totalC).
				Msg("LLM usage")

			// Accumulate only total cost into state
			state.TotalCostUSD += totalC
			// Also expose running total in the message Extra for visibility
			out.Extra["usage_cost_total_usd"] = state.TotalCostUSD
		}

		// Normalize tool calls: some providers may omit tool_call IDs.
		if out != nil && len(out.ToolCalls) > 0 {
			for i := range out.ToolCalls {
				if strings.TrimSpace(out.ToolCalls[i].ID) == "" {
					state.ToolCallIDSeq++
					out.ToolCalls[i].ID = fmt.Sprintf("call_%d", state.ToolCallIDSeq)
				}
			}
		}

		state.History = append(state.History, out)

		if len(out.ToolCalls) > 0 {
			logx.Debug().Int("tool_count", len(out.ToolCalls)).Msg("Calling tools")
		} else {
			logx.Debug().Msg("AI response ready")
		}

		return out, nil
	}
}

// NewToolExecutorCondition creates the condition function for tool execution routing
func NewToolExecutorCondition() func(context.Context, *schema.Message) (string, error) {
	return func(ctx context.Context, input *schema.Message) (string, error) {
		// Check if tool limit was reached
		var limitReached bool
		compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			limitReached = state.ToolCallLimitReached
			return nil
		})

		if limitReached {
			logx.Debug().Msg("Tool limit reached previously - routing to finalize")
			return NodeFinalize, nil
		}

		if len(input.ToolCalls) > 0 {
			logx.Debug().Int("tool_count", len(input.ToolCalls)).Msg("Routing to ToolExecutor")
			return NodeToolExecutor, nil
		}

		logx.Debug().Msg("No tool calls - routing to finalize")
		return NodeFinalize, nil
	}
}

// NewToolExecutorPreHandler creates the pre-handler for ToolExecutor node
func NewToolExecutorPreHandler(maxToolCalls int, metrics *observability.Metrics) func(context.Context, *schema.Message, *model.AppState) (*schema.Message, error) {
	return func(ctx context.Context, in *schema.Message, state *model.AppState) (*schema.Message, error) {
		metrics.IncToolCall()
		exceeded := incrementToolCallAndCheck(state, maxToolCalls)

		logx.Debug().
			Int("tool_call_count", state.ToolCallCount).
			Str("session_id", state.SessionID).
			Msg("Tool execution attempt")

		if exceeded {
			maxToolCalls = normalizeMaxToolCalls(maxToolCalls)
			logx.Warn().
				Int("tool_call_count", state.ToolCallCount).
				Int("max_tool_calls", maxToolCalls).
				Str("session_id", state.SessionID).
				Msg("Tool call limit exceeded - flagging and continuing")
		}

		return in, nil
	}
}

// NewToolExecutorPostHandler records executed tool results as audit entries
// in the durable transcript. Failures are logged only: a lost audit record
// must not fail the turn.
func NewToolExecutorPostHandler(mm *conversations.MessagesManager) func(context.Context, []*schema.Message, *model.AppState) ([]*schema.Message, error) {
	return func(ctx context.Context, out []*schema.Message, state *model.AppState) ([]*schema.Message, error) {
		persistCtx := context.WithoutCancel(ctx)
		for _, msg := range out {
			if msg == nil || msg.Role != schema.Tool {
				continue
			}
			if err := mm.AppendTool(persistCtx, nil, state.SessionID, state.ResponseID, msg.Content, msg.ToolCallID, msg.ToolName); err != nil {
				logx.Error().Err(err).
					Str("session_id", state.SessionID).
					Str("tool_call_id", msg.ToolCallID).
					Msg("failed to persist tool result")
			}
		}
		return out, nil
	}
}

// FinalizeDeps bundles everything the finalize node touches after the model
// has answered.
type FinalizeDeps struct {
	Manager   *conversations.MessagesManager
	Cache     *cache.SemanticCache
	Evaluator *evaluation.Engine
	EvalStore model.EvaluationStore
	Metrics   *observability.Metrics
	AgentName string
	ModelName string
}

// NewFinalizeNode creates the Finalize node: parse the raw model output into
// the content/references contract, score it, and write the turn back to the
// transcript and the cache. Everything past parsing is best-effort; the user
// gets their answer even when a write-back path is down.
func NewFinalizeNode(deps FinalizeDeps) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, out *schema.Message) (*model.AgentResponse, error) {
		if out == nil {
			return nil, fmt.Errorf("response model returned nil message")
		}

		content, references := parsers.ParseAgentOutput(out.Content)

		var sessionID, responseID, userInput string
		var history []*schema.Message
		var totalCost float64
		err := compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			sessionID, responseID, userInput = state.SessionID, state.ResponseID, state.UserInput
			history = state.History
			totalCost = state.TotalCostUSD
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		// Write-backs survive a caller that hangs up right after the answer.
		persistCtx := context.WithoutCancel(ctx)

		if deps.Evaluator != nil && deps.EvalStore != nil {
			eval := deps.Evaluator.EvaluateFromHistory(ctx, userInput, content, evaluationHistory(history, out))
			if len(eval.Failed()) > 0 {
				deps.Metrics.IncEvalFailure()
				logx.Warn().
					Str("session_id", sessionID).
					Str("response_id", responseID).
					Int("failed_metrics", len(eval.Failed())).
					Msg("response failed quality evaluation")
			}
			metadata := map[string]string{
				"agent": deps.AgentName,
				"model": deps.ModelName,
			}
			if model.CostEnabled() {
				metadata["total_cost_usd"] = fmt.Sprintf("%.6f", totalCost)
			}
			if err := deps.EvalStore.StoreEvaluation(persistCtx, sessionID, responseID, userInput, content, eval, metadata); err != nil {
				logx.Error().Err(err).Str("response_id", responseID).Msg("failed to store evaluation")
			}
		}

		if err := deps.Manager.AppendAssistant(persistCtx, nil, sessionID, responseID, content); err != nil {
			logx.Error().Err(err).Str("session_id", sessionID).Msg("failed to persist assistant turn")
		}

		if err := deps.Cache.Store(persistCtx, userInput, content, references); err != nil {
			logx.Error().Err(err).Str("session_id", sessionID).Msg("failed to store cache entry")
		}

		return &model.AgentResponse{
			Content:          content,
			References:       references,
			ResponseID:       responseID,
			IsTaskComplete:   true,
			RequireUserInput: true,
		}, nil
	})
}

// evaluationHistory is the transcript the scorers may ground on: everything
// gathered during the turn except the answer under evaluation itself. An
// answer that grounds its own groundedness score would always pass.
func evaluationHistory(history []*schema.Message, final *schema.Message) []*schema.Message {
	n := len(history)
	if n == 0 || final == nil {
		return history
	}
	last := history[n-1]
	if last != nil && last.Role == schema.Assistant && last.Content == final.Content {
		return history[:n-1]
	}
	return history
}
