package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	errx "github.com/hrdesk/server/internal/core/error"
	logx "github.com/hrdesk/server/pkg/logger"

	"github.com/hrdesk/server/internal/agent/model"
)

// PostgresEvaluationStore is an append-only log of per-turn evaluation
// results. Every StoreEvaluation call writes a fresh row; idempotency across
// retries is the caller's responsibility.
type PostgresEvaluationStore struct {
	pool *pgxpool.Pool
}

func NewPostgresEvaluationStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresEvaluationStore, error) {
	if err := initEvaluationSchema(ctx, pool); err != nil {
		return nil, err
	}
	return &PostgresEvaluationStore{pool: pool}, nil
}

func initEvaluationSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS evaluations (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			response_id TEXT NOT NULL,
			user_query TEXT NOT NULL,
			response TEXT NOT NULL,
			evaluation JSONB NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
			created_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_evaluations_session ON evaluations (session_id, created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_evaluations_agent_created ON evaluations ((metadata->>'agent'), created_at);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init evaluation schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresEvaluationStore) StoreEvaluation(ctx context.Context, sessionID, responseID, userQuery, response string, evaluation model.Evaluation, metadata map[string]string) error {
	evalJSON, err := json.Marshal(evaluation)
	if err != nil {
		return fmt.Errorf("marshal evaluation: %w", err)
	}
	if metadata == nil {
		metadata = map[string]string{}
	}
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshal evaluation metadata: %w", err)
	}

	id := uuid.NewString()
	_, err = s.pool.Exec(ctx,
		`INSERT INTO evaluations (id, session_id, response_id, user_query, response, evaluation, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, sessionID, responseID, userQuery, response, evalJSON, metaJSON, time.Now().UTC(),
	)
	if err != nil {
		logx.Error().Err(err).Str("response_id", responseID).Msg("failed to store evaluation")
		return errx.WrapPostgres(err)
	}
	return nil
}

// QueryFailures returns the evaluations recorded for an agent on a given day
// where at least one metric came back "fail". Day boundaries are UTC.
func (s *PostgresEvaluationStore) QueryFailures(ctx context.Context, agent string, day time.Time) ([]model.EvaluationRecord, error) {
	start := day.UTC().Truncate(24 * time.Hour)
	end := start.Add(24 * time.Hour)

	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, response_id, user_query, response, evaluation, metadata, created_at
		 FROM evaluations
		 WHERE metadata->>'agent' = $1
		   AND created_at >= $2 AND created_at < $3
		   AND EXISTS (
			SELECT 1 FROM jsonb_each(evaluation) AS m(name, result)
			WHERE m.result->>'result' = 'fail'
		   )
		 ORDER BY created_at`,
		agent, start, end,
	)
	if err != nil {
		return nil, errx.WrapPostgres(err)
	}
	defer rows.Close()

	var records []model.EvaluationRecord
	for rows.Next() {
		var (
			rec      model.EvaluationRecord
			evalJSON []byte
			metaJSON []byte
		)
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.ResponseID, &rec.UserQuery, &rec.Response, &evalJSON, &metaJSON, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("scan evaluation row: %w", err)
		}
		if err := json.Unmarshal(evalJSON, &rec.Evaluation); err != nil {
			return nil, fmt.Errorf("unmarshal evaluation %s: %w", rec.ID, err)
		}
		if err := json.Unmarshal(metaJSON, &rec.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal evaluation metadata %s: %w", rec.ID, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errx.WrapPostgres(err)
	}
	return records, nil
}

var _ model.EvaluationStore = (*PostgresEvaluationStore)(nil)
