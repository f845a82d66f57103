package graph

import (
	"context"
	"fmt"
	"strings"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrdesk/server/internal/agent/cache"
	"github.com/hrdesk/server/internal/agent/evaluation"
	"github.com/hrdesk/server/internal/agent/graph/conversations"
	"github.com/hrdesk/server/internal/agent/graph/nodes"
	"github.com/hrdesk/server/internal/agent/graph/tools"
	"github.com/hrdesk/server/internal/agent/model"
	"github.com/hrdesk/server/internal/retrieval"
)

// scriptedChatModel plays back a fixed sequence of assistant replies.
type scriptedChatModel struct {
	replies []*schema.Message
	calls   int
}

func (m *scriptedChatModel) Generate(_ context.Context, _ []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	if m.calls >= len(m.replies) {
		return nil, fmt.Errorf("unexpected model call %d", m.calls+1)
	}
	reply := m.replies[m.calls]
	m.calls++
	return reply, nil
}

func (m *scriptedChatModel) Stream(_ context.Context, _ []*schema.Message, _ ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("stream not supported")
}

func (m *scriptedChatModel) BindTools(_ []*schema.ToolInfo) error { return nil }

// recordingJudge passes every metric and keeps the prompts it was graded with.
type recordingJudge struct {
	prompts []string
}

func (j *recordingJudge) Generate(_ context.Context, in []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	for _, msg := range in {
		if msg != nil && msg.Role == schema.User {
			j.prompts = append(j.prompts, msg.Content)
		}
	}
	return schema.AssistantMessage("```json\n{\"score\": 5, \"reason\": \"grounded\"}\n```", nil), nil
}

func (j *recordingJudge) Stream(_ context.Context, _ []*schema.Message, _ ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("stream not supported")
}

// fakeVectorStore matches on the exact prompt text with distance zero.
type fakeVectorStore struct {
	records []model.CacheRecord
	upserts int
}

func (f *fakeVectorStore) Upsert(_ context.Context, record *model.CacheRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	f.upserts++
	f.records = append(f.records, *record)
	return nil
}

func (f *fakeVectorStore) Search(_ context.Context, query, _ string, _ int) ([]model.SearchResult, error) {
	for _, rec := range f.records {
		if rec.Prompt == query {
			return []model.SearchResult{{Record: rec, Distance: 0}}, nil
		}
	}
	return nil, nil
}

type memoryHistoryRepo struct {
	records map[string][]model.MessageRecord
}

func newMemoryHistoryRepo() *memoryHistoryRepo {
	return &memoryHistoryRepo{records: map[string][]model.MessageRecord{}}
}

func (f *memoryHistoryRepo) Append(_ context.Context, record *model.MessageRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	f.records[record.SessionID] = append(f.records[record.SessionID], *record)
	return nil
}

func (f *memoryHistoryRepo) Load(_ context.Context, sessionID string) (*model.ConversationHistory, error) {
	history := &model.ConversationHistory{SessionID: sessionID}
	for _, rec := range f.records[sessionID] {
		msg, err := rec.Message()
		if err != nil {
			return nil, err
		}
		history.Records = append(history.Records, rec)
		history.Messages = append(history.Messages, msg)
	}
	return history, nil
}

func (f *memoryHistoryRepo) Clear(_ context.Context, sessionID string) error {
	delete(f.records, sessionID)
	return nil
}

func (f *memoryHistoryRepo) MessageCount(_ context.Context, sessionID string) (int, error) {
	return len(f.records[sessionID]), nil
}

type fakeEvalStore struct {
	stored []model.Evaluation
}

func (f *fakeEvalStore) StoreEvaluation(_ context.Context, _, _, _, _ string, evaluation model.Evaluation, _ map[string]string) error {
	f.stored = append(f.stored, evaluation)
	return nil
}

type fakeSearcher struct {
	docs []retrieval.Document
}

func (f *fakeSearcher) Search(_ context.Context, _ string, _ int) ([]retrieval.Document, error) {
	return f.docs, nil
}

func buildTestPipeline(
	t *testing.T,
	responseModel *scriptedChatModel,
	judge *recordingJudge,
	store *fakeVectorStore,
	historyRepo *memoryHistoryRepo,
	evalStore *fakeEvalStore,
	searcher *fakeSearcher,
) compose.Runnable[model.QueryInput, *model.AgentResponse] {
	t.Helper()
	ctx := context.Background()

	semCache, err := cache.NewSemanticCache(store, model.CacheConfig{ScoreThreshold: 0.2})
	require.NoError(t, err)

	evaluator, err := evaluation.NewEngine(judge, model.JudgeModelConfig{PassScore: 3})
	require.NoError(t, err)

	runnable, err := BuildGraph(ctx, &GraphConfig{
		AgentName: "HRAssistant",
		ChatModels: &nodes.ChatModels{
			Response:          responseModel,
			Judge:             judge,
			ResponseModelName: "scripted-response",
			JudgeModelName:    "scripted-judge",
		},
		MessagesManager:      conversations.NewMessagesManager(historyRepo, "HRAssistant"),
		Cache:                semCache,
		Evaluator:            evaluator,
		EvalStore:            evalStore,
		Searcher:             searcher,
		ResponsePromptConfig: &model.ResponsePromptConfig{AgentName: "HRAssistant", KnowledgeBase: "HR policy documents"},
		ToolMaxCalls:         3,
	})
	require.NoError(t, err)
	return runnable
}

func TestPipelineMissThenHit(t *testing.T) {
	ctx := context.Background()

	passage := "Full-time employees accrue 25 days of annual leave per year."
	finalAnswer := "You are entitled to 25 days of annual leave."
	fencedReply := "```json\n{\"content\": \"" + finalAnswer + "\", \"references\": [\"leave_policy.pdf\"]}\n```"

	responseModel := &scriptedChatModel{replies: []*schema.Message{
		{
			Role: schema.Assistant,
			ToolCalls: []schema.ToolCall{{
				ID: "call_leave_1",
				Function: schema.FunctionCall{
					Name:      tools.ToolSearchDocs,
					Arguments: `{"query":"annual leave allowance"}`,
				},
			}},
		},
		schema.AssistantMessage(fencedReply, nil),
	}}
	judge := &recordingJudge{}
	store := &fakeVectorStore{}
	historyRepo := newMemoryHistoryRepo()
	evalStore := &fakeEvalStore{}
	searcher := &fakeSearcher{docs: []retrieval.Document{
		{Title: "Leave Policy", Content: passage, PageNumber: "4"},
	}}

	runnable := buildTestPipeline(t, responseModel, judge, store, historyRepo, evalStore, searcher)

	in := model.QueryInput{SessionID: "sess-1", UserInput: "How many days of annual leave do I get?"}

	t.Run("miss runs the model with tools and writes everything back", func(t *testing.T) {
		out, err := runnable.Invoke(ctx, in)
		require.NoError(t, err)

		assert.Equal(t, finalAnswer, out.Content)
		assert.Equal(t, []string{"leave_policy.pdf"}, out.References)
		assert.NotEmpty(t, out.ResponseID)
		assert.True(t, out.IsTaskComplete)
		assert.True(t, out.RequireUserInput, "every turn hands control back to the user")

		assert.Equal(t, 2, responseModel.calls, "one tool round then the final answer")
		assert.Equal(t, 1, store.upserts, "the answer is cached once")
		require.Len(t, evalStore.stored, 1, "the miss path evaluates exactly once")
		assert.Empty(t, evalStore.stored[0].Failed())
	})

	t.Run("judge grades against retrieved passages, never the answer itself", func(t *testing.T) {
		var grounded string
		for _, p := range judge.prompts {
			if strings.Contains(p, "<context>") {
				grounded = p
				break
			}
		}
		require.NotEmpty(t, grounded, "context-bearing metric prompts must exist")

		contextSection := grounded[strings.Index(grounded, "<context>"):]
		assert.Contains(t, contextSection, passage)
		assert.NotContains(t, contextSection, finalAnswer)
	})

	t.Run("repeating the question is served from the cache", func(t *testing.T) {
		out, err := runnable.Invoke(ctx, in)
		require.NoError(t, err)

		assert.Equal(t, finalAnswer, out.Content)
		assert.Equal(t, []string{"leave_policy.pdf"}, out.References)
		assert.True(t, out.RequireUserInput)

		assert.Equal(t, 2, responseModel.calls, "a hit must not call the model")
		assert.Equal(t, 1, store.upserts, "a hit must not write the cache again")
		assert.Len(t, evalStore.stored, 1, "a hit must not re-evaluate")
	})

	t.Run("both turns land in the durable transcript", func(t *testing.T) {
		records := historyRepo.records["sess-1"]
		roles := make([]string, 0, len(records))
		for _, rec := range records {
			roles = append(roles, rec.Role)
		}
		assert.Equal(t, []string{"user", "tool", "assistant", "user", "assistant"}, roles)
	})
}
