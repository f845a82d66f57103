package evaluation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrdesk/server/internal/agent/model"
)

// fakeJudge answers every Generate call from a queue of scripted replies.
type fakeJudge struct {
	replies []fakeReply
	calls   int
}

type fakeReply struct {
	content string
	err     error
}

func (f *fakeJudge) Generate(ctx context.Context, in []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	idx := f.calls
	f.calls++
	if idx >= len(f.replies) {
		return nil, fmt.Errorf("unexpected call %d", idx)
	}
	r := f.replies[idx]
	if r.err != nil {
		return nil, r.err
	}
	return schema.AssistantMessage(r.content, nil), nil
}

func (f *fakeJudge) Stream(ctx context.Context, in []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("stream not supported")
}

func verdict(score float64) string {
	return fmt.Sprintf("```json\n{\"score\": %g, \"reason\": \"because\"}\n```", score)
}

func newTestEngine(t *testing.T, judge einomodel.BaseChatModel) *Engine {
	t.Helper()
	engine, err := NewEngine(judge, model.JudgeModelConfig{PassScore: 3})
	require.NoError(t, err)
	return engine
}

func TestEvaluateAllMetricsPass(t *testing.T) {
	judge := &fakeJudge{replies: []fakeReply{
		{content: verdict(5)},
		{content: verdict(4)},
		{content: verdict(3)},
	}}
	engine := newTestEngine(t, judge)

	eval := engine.Evaluate(context.Background(), "q", "a", "ctx")

	require.Len(t, eval, 3)
	for _, name := range []string{model.MetricGroundedness, model.MetricCoherence, model.MetricRelevance} {
		result, ok := eval[name]
		require.True(t, ok, name)
		assert.Equal(t, model.ResultPass, result.Result)
		assert.Empty(t, result.Error)
	}
	assert.Empty(t, eval.Failed())
}

func TestEvaluateScoreBelowPassIsFail(t *testing.T) {
	judge := &fakeJudge{replies: []fakeReply{
		{content: verdict(2)},
		{content: verdict(3)},
		{content: verdict(1)},
	}}
	engine := newTestEngine(t, judge)

	eval := engine.Evaluate(context.Background(), "q", "a", "ctx")

	assert.Equal(t, model.ResultFail, eval[model.MetricGroundedness].Result)
	assert.Equal(t, model.ResultPass, eval[model.MetricCoherence].Result)
	assert.Equal(t, model.ResultFail, eval[model.MetricRelevance].Result)
	assert.Len(t, eval.Failed(), 2)
}

func TestEvaluatePartialScorerFailure(t *testing.T) {
	judge := &fakeJudge{replies: []fakeReply{
		{err: errors.New("model unavailable")},
		{content: verdict(4)},
		{content: verdict(4)},
	}}
	engine := newTestEngine(t, judge)

	eval := engine.Evaluate(context.Background(), "q", "a", "ctx")

	require.Len(t, eval, 3, "one scorer failing must not abort the others")
	assert.NotEmpty(t, eval[model.MetricGroundedness].Error)
	assert.Empty(t, eval[model.MetricGroundedness].Result)
	assert.Equal(t, model.ResultPass, eval[model.MetricCoherence].Result)
	assert.Equal(t, model.ResultPass, eval[model.MetricRelevance].Result)

	// an errored metric is not an explicit fail
	assert.Empty(t, eval.Failed())
}

func TestEvaluateRejectsOutOfRangeScore(t *testing.T) {
	judge := &fakeJudge{replies: []fakeReply{
		{content: verdict(0)},
		{content: verdict(6)},
		{content: verdict(3)},
	}}
	engine := newTestEngine(t, judge)

	eval := engine.Evaluate(context.Background(), "q", "a", "ctx")

	assert.NotEmpty(t, eval[model.MetricGroundedness].Error)
	assert.NotEmpty(t, eval[model.MetricCoherence].Error)
	assert.Equal(t, model.ResultPass, eval[model.MetricRelevance].Result)
}

func TestEvaluateMalformedVerdictIsScorerError(t *testing.T) {
	judge := &fakeJudge{replies: []fakeReply{
		{content: "I think the score is 4"},
		{content: verdict(4)},
		{content: verdict(4)},
	}}
	engine := newTestEngine(t, judge)

	eval := engine.Evaluate(context.Background(), "q", "a", "ctx")
	assert.NotEmpty(t, eval[model.MetricGroundedness].Error)
}

func TestContextFromHistory(t *testing.T) {
	history := []*schema.Message{
		schema.SystemMessage("system"),
		schema.UserMessage("first question"),
		schema.AssistantMessage("first answer", nil),
		schema.UserMessage("second question"),
		schema.ToolMessage("retrieved passage", "call_1", schema.WithToolName("search_docs")),
		schema.AssistantMessage("second answer", nil),
	}

	got := ContextFromHistory(history)

	lines := strings.Split(strings.TrimRight(got, "\n"), "\n")
	assert.Equal(t, []string{"first answer", "retrieved passage", "second answer"}, lines,
		"assistant answers and tool outputs ground the scorers; questions and system prompts do not")
}
