package evaluation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	logx "github.com/hrdesk/server/pkg/logger"

	"github.com/hrdesk/server/internal/agent/graph/parsers"
	"github.com/hrdesk/server/internal/agent/model"
)

// metricSpec describes one quality scorer: its grading criteria and whether
// the transcript-derived context participates in the judgement.
type metricSpec struct {
	name        string
	criteria    string
	withContext bool
}

var metrics = []metricSpec{
	{
		name:        model.MetricGroundedness,
		criteria:    "Groundedness measures whether every claim in the answer is supported by the provided context. An answer that invents facts absent from the context scores low, even when those facts happen to be true.",
		withContext: true,
	},
	{
		name:        model.MetricCoherence,
		criteria:    "Coherence measures whether the answer is well structured, internally consistent, and reads as a direct reply to the question. Contradictions or disjointed fragments score low.",
		withContext: true,
	},
	{
		name:        model.MetricRelevance,
		criteria:    "Relevance measures whether the answer addresses what the question actually asked. An answer about a different topic, however well written, scores low.",
		withContext: false,
	},
}

// Engine runs the three quality scorers against a query/response/context
// triple. It is a pure function of its inputs: no state survives a call.
type Engine struct {
	judge     einomodel.BaseChatModel
	passScore float64
}

func NewEngine(judge einomodel.BaseChatModel, cfg model.JudgeModelConfig) (*Engine, error) {
	if judge == nil {
		return nil, fmt.Errorf("judge model is nil")
	}
	passScore := cfg.PassScore
	if passScore <= 0 {
		passScore = 3
	}
	return &Engine{judge: judge, passScore: passScore}, nil
}

// Evaluate scores the triple on all metrics. A scorer failure is a partial
// failure: the metric carries an error entry and the others still run.
func (e *Engine) Evaluate(ctx context.Context, userQuery, response, evalContext string) model.Evaluation {
	eval := model.Evaluation{}
	for _, m := range metrics {
		result, err := e.score(ctx, m, userQuery, response, evalContext)
		if err != nil {
			logx.Error().Err(err).Str("metric", m.name).Msg("metric scorer failed")
			eval[m.name] = model.MetricResult{Error: err.Error()}
			continue
		}
		eval[m.name] = result
	}
	return eval
}

// EvaluateFromHistory derives the context from the transcript: prior
// assistant turns plus any tool outputs retrieved this turn, newline-joined,
// oldest first. The caller must not include the response under evaluation in
// the history it passes.
func (e *Engine) EvaluateFromHistory(ctx context.Context, userQuery, response string, history []*schema.Message) model.Evaluation {
	return e.Evaluate(ctx, userQuery, response, ContextFromHistory(history))
}

// ContextFromHistory concatenates the grounding turns, oldest first:
// assistant-authored answers and the retrieved passages carried in tool
// results. User questions and system prompts are not grounding material.
func ContextFromHistory(history []*schema.Message) string {
	var b strings.Builder
	for _, msg := range history {
		if msg == nil || msg.Content == "" {
			continue
		}
		if msg.Role != schema.Assistant && msg.Role != schema.Tool {
			continue
		}
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}
	return b.String()
}

type judgeVerdict struct {
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

func (e *Engine) score(ctx context.Context, m metricSpec, userQuery, response, evalContext string) (model.MetricResult, error) {
	systemPrompt, err := renderJudgeSystem(ctx, m.name, m.criteria)
	if err != nil {
		return model.MetricResult{}, err
	}

	out, err := e.judge.Generate(ctx, []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(judgeUserContent(userQuery, response, evalContext, m.withContext)),
	})
	if err != nil {
		return model.MetricResult{}, fmt.Errorf("judge model call: %w", err)
	}
	if out == nil || strings.TrimSpace(out.Content) == "" {
		return model.MetricResult{}, fmt.Errorf("judge model returned empty output")
	}

	var verdict judgeVerdict
	raw := parsers.StripCodeFence(out.Content)
	if err := json.Unmarshal([]byte(raw), &verdict); err != nil {
		return model.MetricResult{}, fmt.Errorf("judge verdict parse: %w", err)
	}
	if verdict.Score < 1 || verdict.Score > 5 {
		return model.MetricResult{}, fmt.Errorf("judge score %v out of range", verdict.Score)
	}

	result := model.ResultFail
	if verdict.Score >= e.passScore {
		result = model.ResultPass
	}
	return model.MetricResult{Score: verdict.Score, Result: result, Reason: verdict.Reason}, nil
}
