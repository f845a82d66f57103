package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	errx "github.com/hrdesk/server/internal/core/error"
)

// SummaryRecord is one consolidated evaluation-failure report produced by the
// batch analyzer.
type SummaryRecord struct {
	ID             string    `json:"id"`
	Agent          string    `json:"agent"`
	Day            time.Time `json:"day"`
	FinalSummary   string    `json:"final_summary"`
	BatchSummaries []string  `json:"batch_summaries"`
	CreatedAt      time.Time `json:"created_at"`
}

type PostgresSummaryStore struct {
	pool *pgxpool.Pool
}

func NewPostgresSummaryStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresSummaryStore, error) {
	stmt := `CREATE TABLE IF NOT EXISTS evaluation_summaries (
		id TEXT PRIMARY KEY,
		agent TEXT NOT NULL,
		day DATE NOT NULL,
		final_summary TEXT NOT NULL,
		batch_summaries JSONB NOT NULL DEFAULT '[]'::jsonb,
		created_at TIMESTAMPTZ NOT NULL
	);`
	if _, err := pool.Exec(ctx, stmt); err != nil {
		return nil, fmt.Errorf("init summary schema: %w", err)
	}
	return &PostgresSummaryStore{pool: pool}, nil
}

func (s *PostgresSummaryStore) SaveSummary(ctx context.Context, record *SummaryRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	batches, err := json.Marshal(record.BatchSummaries)
	if err != nil {
		return fmt.Errorf("marshal batch summaries: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO evaluation_summaries (id, agent, day, final_summary, batch_summaries, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		record.ID, record.Agent, record.Day, record.FinalSummary, batches, record.CreatedAt,
	)
	if err != nil {
		return errx.WrapPostgres(err)
	}
	return nil
}
