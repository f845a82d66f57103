package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	errx "github.com/hrdesk/server/internal/core/error"
	logx "github.com/hrdesk/server/pkg/logger"
	"github.com/redis/go-redis/v9"

	"github.com/hrdesk/server/internal/agent/model"
)

// RedisHistoryRepository keeps each session's transcript as a Redis list of
// JSON message records. RPUSH preserves call order, so replay is oldest first.
type RedisHistoryRepository struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisHistoryRepository(rdb redis.Cmdable, ttl time.Duration) *RedisHistoryRepository {
	return &RedisHistoryRepository{rdb: rdb, ttl: ttl}
}

func (r *RedisHistoryRepository) sessionKey(sessionID string) string {
	return fmt.Sprintf("session:%s:messages", sessionID)
}

func (r *RedisHistoryRepository) Append(ctx context.Context, record *model.MessageRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}

	b, err := json.Marshal(record)
	if err != nil {
		logx.Error().Err(err).Str("session_id", record.SessionID).Msg("failed to marshal message record")
		return fmt.Errorf("marshal message record: %w", err)
	}
	key := r.sessionKey(record.SessionID)

	// append message
	if err := r.rdb.RPush(ctx, key, b).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to push message record to redis")
		return errx.WrapRedis(err)
	}
	// extend TTL on touch; a zero TTL keeps the log forever
	if r.ttl > 0 {
		if ok, err := r.rdb.Expire(ctx, key, r.ttl).Result(); err != nil {
			logx.Error().Err(err).Str("key", key).Msg("failed to set expire")
			return errx.WrapRedis(err)
		} else if !ok {
			logx.Warn().Str("key", key).Dur("ttl", r.ttl).Msg("failed to set TTL on session key")
		}
	}
	return nil
}

func (r *RedisHistoryRepository) Load(ctx context.Context, sessionID string) (*model.ConversationHistory, error) {
	key := r.sessionKey(sessionID)

	rows, err := r.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		if err == redis.Nil {
			return &model.ConversationHistory{SessionID: sessionID}, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load session history from redis")
		return nil, errx.WrapRedis(err)
	}

	history := &model.ConversationHistory{SessionID: sessionID}
	for i, s := range rows {
		var rec model.MessageRecord
		if err := json.Unmarshal([]byte(s), &rec); err != nil {
			logx.Error().Err(err).Str("session_id", sessionID).Int("index", i).Msg("failed to unmarshal message record")
			return nil, errx.WrapDataIntegrity(fmt.Errorf("unmarshal message at index %d: %w", i, err))
		}
		msg, err := rec.Message()
		if err != nil {
			logx.Error().Err(err).Str("session_id", sessionID).Int("index", i).Msg("unmapped role in stored message")
			return nil, errx.WrapDataIntegrity(err)
		}
		history.Records = append(history.Records, rec)
		history.Messages = append(history.Messages, msg)
	}
	return history, nil
}

func (r *RedisHistoryRepository) Clear(ctx context.Context, sessionID string) error {
	key := r.sessionKey(sessionID)
	if err := r.rdb.Del(ctx, key).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to delete session history from redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisHistoryRepository) MessageCount(ctx context.Context, sessionID string) (int, error) {
	key := r.sessionKey(sessionID)
	n, err := r.rdb.LLen(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to get message count from redis")
		return 0, errx.WrapRedis(err)
	}
	return int(n), nil
}

var _ model.HistoryRepository = (*RedisHistoryRepository)(nil)
