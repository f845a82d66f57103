package nodes

import (
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"

	"github.com/hrdesk/server/internal/agent/model"
)

func TestNormalizeMaxToolCalls(t *testing.T) {
	assert.Equal(t, DefaultMaxToolCalls, normalizeMaxToolCalls(0))
	assert.Equal(t, DefaultMaxToolCalls, normalizeMaxToolCalls(-3))
	assert.Equal(t, 7, normalizeMaxToolCalls(7))
}

func TestCheckAndMarkToolLimit(t *testing.T) {
	state := &model.AppState{ToolCallCount: 2}
	assert.False(t, checkAndMarkToolLimit(state, 3))
	assert.False(t, state.ToolCallLimitReached)

	state.ToolCallCount = 3
	assert.True(t, checkAndMarkToolLimit(state, 3))
	assert.True(t, state.ToolCallLimitReached)

	// already marked: not marked "now" again
	assert.False(t, checkAndMarkToolLimit(state, 3))
}

func TestIncrementToolCallAndCheck(t *testing.T) {
	state := &model.AppState{}
	for i := 0; i < 3; i++ {
		assert.False(t, incrementToolCallAndCheck(state, 3))
	}
	assert.True(t, incrementToolCallAndCheck(state, 3))
	assert.True(t, state.ToolCallLimitReached)
	assert.Equal(t, 4, state.ToolCallCount)
}

func TestEvaluationHistoryExcludesAnswerUnderEvaluation(t *testing.T) {
	toolResult := schema.ToolMessage("retrieved passage", "call_1", schema.WithToolName("search_docs"))
	final := schema.AssistantMessage("the final answer", nil)
	history := []*schema.Message{
		schema.UserMessage("question"),
		toolResult,
		final,
	}

	trimmed := evaluationHistory(history, final)

	assert.Len(t, trimmed, 2, "the answer being graded must not ground its own evaluation")
	assert.Same(t, toolResult, trimmed[1])

	// nothing to trim when the final answer never made it into the history
	assert.Len(t, evaluationHistory(history[:2], final), 2)
	assert.Empty(t, evaluationHistory(nil, final))
}

func TestConversationalTurns(t *testing.T) {
	transcript := []*schema.Message{
		schema.UserMessage("question"),
		schema.AssistantMessage("answer", nil),
		schema.ToolMessage("tool output", "call_1"),
		schema.SystemMessage("notice"),
		nil,
		schema.AssistantMessage("", nil),
		schema.UserMessage("follow-up"),
	}

	turns := conversationalTurns(transcript)

	assert.Len(t, turns, 3)
	assert.Equal(t, "question", turns[0].Content)
	assert.Equal(t, "answer", turns[1].Content)
	assert.Equal(t, "follow-up", turns[2].Content)
}
