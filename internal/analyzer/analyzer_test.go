package analyzer

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrdesk/server/internal/agent/model"
	"github.com/hrdesk/server/internal/agent/repo"
)

func failedRecord(id, query string, metrics ...string) model.EvaluationRecord {
	eval := model.Evaluation{}
	for _, m := range []string{model.MetricGroundedness, model.MetricCoherence, model.MetricRelevance} {
		eval[m] = model.MetricResult{Score: 5, Result: model.ResultPass}
	}
	for _, m := range metrics {
		eval[m] = model.MetricResult{Score: 1, Result: model.ResultFail, Reason: "bad"}
	}
	return model.EvaluationRecord{
		ID:         id,
		SessionID:  "s-" + id,
		UserQuery:  query,
		Response:   "resp",
		Evaluation: eval,
		Metadata:   map[string]string{"agent": "HRAssistant"},
		Timestamp:  time.Now().UTC(),
	}
}

func passingRecord(id string) model.EvaluationRecord {
	rec := failedRecord(id, "q")
	return rec
}

func TestFlatten(t *testing.T) {
	records := []model.EvaluationRecord{
		failedRecord("1", "leave question", model.MetricGroundedness),
		passingRecord("2"),
		failedRecord("3", "bonus question", model.MetricCoherence, model.MetricRelevance),
	}
	// records with only scorer errors are not fails
	records = append(records, model.EvaluationRecord{
		ID:         "4",
		Evaluation: model.Evaluation{model.MetricGroundedness: {Error: "timeout"}},
	})

	flattened := Flatten(records)

	require.Len(t, flattened, 2)
	assert.Equal(t, "1", flattened[0].ID)
	assert.Len(t, flattened[0].FailedMetrics, 1)
	assert.Contains(t, flattened[0].FailedMetrics, model.MetricGroundedness)
	assert.Equal(t, "3", flattened[1].ID)
	assert.Len(t, flattened[1].FailedMetrics, 2)
	assert.Equal(t, "HRAssistant", flattened[0].Agent)
}

func TestBatch(t *testing.T) {
	items := make([]FlattenedFailure, 45)

	batches := Batch(items, 20)

	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 20)
	assert.Len(t, batches[1], 20)
	assert.Len(t, batches[2], 5)

	assert.Empty(t, Batch(nil, 20))
}

type fakeSource struct {
	records []model.EvaluationRecord
	err     error
}

func (f *fakeSource) QueryFailures(ctx context.Context, agent string, day time.Time) ([]model.EvaluationRecord, error) {
	return f.records, f.err
}

type fakeSink struct {
	saved *repo.SummaryRecord
}

func (f *fakeSink) SaveSummary(ctx context.Context, record *repo.SummaryRecord) error {
	f.saved = record
	return nil
}

// fakeSummarizer echoes a deterministic summary of its user prompt.
type fakeSummarizer struct {
	calls []string
}

func (f *fakeSummarizer) Generate(ctx context.Context, in []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	user := in[len(in)-1].Content
	f.calls = append(f.calls, user)
	return schema.AssistantMessage(fmt.Sprintf("summary#%d", len(f.calls)), nil), nil
}

func (f *fakeSummarizer) Stream(ctx context.Context, in []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("stream not supported")
}

func TestAnalyzerRun(t *testing.T) {
	records := make([]model.EvaluationRecord, 0, 25)
	for i := 0; i < 25; i++ {
		records = append(records, failedRecord(fmt.Sprintf("%d", i), fmt.Sprintf("question %d", i), model.MetricRelevance))
	}
	source := &fakeSource{records: records}
	sink := &fakeSink{}
	summarizer := &fakeSummarizer{}

	a, err := New(source, sink, summarizer, 20)
	require.NoError(t, err)

	day := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)
	record, err := a.Run(context.Background(), "HRAssistant", day)
	require.NoError(t, err)

	// 2 batch calls (20 + 5) plus 1 final consolidation
	require.Len(t, summarizer.calls, 3)
	assert.Contains(t, summarizer.calls[0], "question 0")
	assert.Contains(t, summarizer.calls[0], model.MetricRelevance)
	assert.Contains(t, summarizer.calls[2], "summary#1")
	assert.Contains(t, summarizer.calls[2], "summary#2")

	require.NotNil(t, sink.saved)
	assert.Equal(t, "HRAssistant", sink.saved.Agent)
	assert.Equal(t, "summary#3", sink.saved.FinalSummary)
	assert.Equal(t, []string{"summary#1", "summary#2"}, sink.saved.BatchSummaries)
	assert.Equal(t, record, sink.saved)
}

func TestAnalyzerRunNoFailures(t *testing.T) {
	source := &fakeSource{records: []model.EvaluationRecord{passingRecord("1")}}
	sink := &fakeSink{}
	summarizer := &fakeSummarizer{}

	a, err := New(source, sink, summarizer, 20)
	require.NoError(t, err)

	record, err := a.Run(context.Background(), "HRAssistant", time.Now().UTC())
	require.NoError(t, err)

	assert.Empty(t, summarizer.calls, "no failures means no model calls")
	assert.True(t, strings.Contains(record.FinalSummary, "No evaluation failures"))
	assert.NotNil(t, sink.saved)
}
