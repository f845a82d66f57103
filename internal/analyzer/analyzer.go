package analyzer

import (
	"context"
	"fmt"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	logx "github.com/hrdesk/server/pkg/logger"

	"github.com/hrdesk/server/internal/agent/model"
	"github.com/hrdesk/server/internal/agent/repo"
)

// DefaultBatchSize is how many flattened failures feed one batch summary.
const DefaultBatchSize = 20

const batchSystemPrompt = `You are an evaluation analyst. You receive one line per failed assistant response:
the user question and which quality metrics it failed (groundedness, coherence, relevance).
Summarize the recurring failure patterns in this batch: which kinds of questions fail,
which metrics dominate, and any likely root causes. Be concrete and keep it under 200 words.`

const finalSystemPrompt = `You are an evaluation analyst. You receive several batch-level summaries of
assistant quality failures from one day. Consolidate them into a single report: the top
failure patterns across all batches, their likely root causes, and the most impactful
fixes to try first. Keep it under 300 words.`

// FailureSource yields the evaluation records that failed at least one
// metric for an agent on a given day.
type FailureSource interface {
	QueryFailures(ctx context.Context, agent string, day time.Time) ([]model.EvaluationRecord, error)
}

// SummarySink persists the finished report.
type SummarySink interface {
	SaveSummary(ctx context.Context, record *repo.SummaryRecord) error
}

// FlattenedFailure is one failed response reduced to what the summarizer
// needs: the question and the metrics it failed.
type FlattenedFailure struct {
	ID            string           `json:"id"`
	SessionID     string           `json:"session_id"`
	UserQuery     string           `json:"user_query"`
	Response      string           `json:"response"`
	Agent         string           `json:"agent"`
	Timestamp     time.Time        `json:"timestamp"`
	FailedMetrics model.Evaluation `json:"failed_evaluations"`
}

// Flatten strips passing metrics from each record and drops records with no
// explicit fails. Metrics that errored (no result at all) do not count as
// fails here.
func Flatten(records []model.EvaluationRecord) []FlattenedFailure {
	flattened := make([]FlattenedFailure, 0, len(records))
	for _, rec := range records {
		failed := rec.Evaluation.Failed()
		if len(failed) == 0 {
			continue
		}
		flattened = append(flattened, FlattenedFailure{
			ID:            rec.ID,
			SessionID:     rec.SessionID,
			UserQuery:     rec.UserQuery,
			Response:      rec.Response,
			Agent:         rec.Metadata["agent"],
			Timestamp:     rec.Timestamp,
			FailedMetrics: failed,
		})
	}
	return flattened
}

// Batch splits failures into chunks of at most size entries.
func Batch(items []FlattenedFailure, size int) [][]FlattenedFailure {
	if size <= 0 {
		size = DefaultBatchSize
	}
	batches := make([][]FlattenedFailure, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[start:end])
	}
	return batches
}

// Analyzer runs the daily failure-summarization job: query, flatten, batch,
// summarize each batch, then consolidate.
type Analyzer struct {
	source     FailureSource
	sink       SummarySink
	summarizer einomodel.BaseChatModel
	batchSize  int
}

func New(source FailureSource, sink SummarySink, summarizer einomodel.BaseChatModel, batchSize int) (*Analyzer, error) {
	if source == nil || sink == nil || summarizer == nil {
		return nil, fmt.Errorf("analyzer requires a source, a sink, and a summarizer model")
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Analyzer{source: source, sink: sink, summarizer: summarizer, batchSize: batchSize}, nil
}

// Run produces and persists the failure report for one agent and day.
func (a *Analyzer) Run(ctx context.Context, agent string, day time.Time) (*repo.SummaryRecord, error) {
	records, err := a.source.QueryFailures(ctx, agent, day)
	if err != nil {
		return nil, fmt.Errorf("query failures: %w", err)
	}

	flattened := Flatten(records)
	logx.Info().
		Str("agent", agent).
		Str("day", day.Format("2006-01-02")).
		Int("records", len(records)).
		Int("failures", len(flattened)).
		Msg("failure analysis started")

	record := &repo.SummaryRecord{
		Agent: agent,
		Day:   day,
	}

	if len(flattened) == 0 {
		record.FinalSummary = "No evaluation failures recorded."
		if err := a.sink.SaveSummary(ctx, record); err != nil {
			return nil, fmt.Errorf("save summary: %w", err)
		}
		return record, nil
	}

	batches := Batch(flattened, a.batchSize)
	batchSummaries := make([]string, 0, len(batches))
	for i, batch := range batches {
		summary, err := a.summarizeBatch(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("summarize batch %d: %w", i, err)
		}
		batchSummaries = append(batchSummaries, summary)
	}

	final, err := a.summarizeFinal(ctx, batchSummaries)
	if err != nil {
		return nil, fmt.Errorf("final summary: %w", err)
	}

	record.FinalSummary = final
	record.BatchSummaries = batchSummaries
	if err := a.sink.SaveSummary(ctx, record); err != nil {
		return nil, fmt.Errorf("save summary: %w", err)
	}

	logx.Info().Str("agent", agent).Int("batches", len(batches)).Msg("failure analysis completed")
	return record, nil
}

func (a *Analyzer) summarizeBatch(ctx context.Context, batch []FlattenedFailure) (string, error) {
	var b strings.Builder
	for _, f := range batch {
		fmt.Fprintf(&b, "Q: %s | Failures: %s\n", f.UserQuery, strings.Join(metricNames(f.FailedMetrics), ", "))
	}
	return a.generate(ctx, batchSystemPrompt, b.String())
}

func (a *Analyzer) summarizeFinal(ctx context.Context, batchSummaries []string) (string, error) {
	return a.generate(ctx, finalSystemPrompt, strings.Join(batchSummaries, "\n"))
}

func (a *Analyzer) generate(ctx context.Context, system, user string) (string, error) {
	out, err := a.summarizer.Generate(ctx, []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(user),
	})
	if err != nil {
		return "", err
	}
	if out == nil || strings.TrimSpace(out.Content) == "" {
		return "", fmt.Errorf("summarizer returned empty output")
	}
	return strings.TrimSpace(out.Content), nil
}

func metricNames(eval model.Evaluation) []string {
	names := make([]string, 0, len(eval))
	for _, name := range []string{model.MetricGroundedness, model.MetricCoherence, model.MetricRelevance} {
		if _, ok := eval[name]; ok {
			names = append(names, name)
		}
	}
	return names
}
