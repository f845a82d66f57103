package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	errx "github.com/hrdesk/server/internal/core/error"
	logx "github.com/hrdesk/server/pkg/logger"
)

// FeedbackRecord is one end-user judgement on a prior response.
type FeedbackRecord struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	ResponseID string    `json:"response_id"`
	Feedback   string    `json:"feedback"`
	CreatedAt  time.Time `json:"created_at"`
}

type PostgresFeedbackStore struct {
	pool *pgxpool.Pool
}

func NewPostgresFeedbackStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresFeedbackStore, error) {
	stmt := `CREATE TABLE IF NOT EXISTS feedback (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		response_id TEXT NOT NULL,
		feedback TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);`
	if _, err := pool.Exec(ctx, stmt); err != nil {
		return nil, fmt.Errorf("init feedback schema: %w", err)
	}
	return &PostgresFeedbackStore{pool: pool}, nil
}

func (s *PostgresFeedbackStore) AddFeedback(ctx context.Context, record *FeedbackRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO feedback (id, session_id, response_id, feedback, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		record.ID, record.SessionID, record.ResponseID, record.Feedback, record.CreatedAt,
	)
	if err != nil {
		logx.Error().Err(err).Str("response_id", record.ResponseID).Msg("failed to store feedback")
		return errx.WrapPostgres(err)
	}
	return nil
}
