package cache

import (
	"context"
	"encoding/json"
	"fmt"

	logx "github.com/hrdesk/server/pkg/logger"

	errx "github.com/hrdesk/server/internal/core/error"

	"github.com/hrdesk/server/internal/agent/model"
	"github.com/hrdesk/server/internal/agent/repo"
)

// SemanticCache answers a prompt from the nearest previously stored prompt
// when its embedding distance falls below the threshold. Each Store call
// writes a new record; the cache grows monotonically and leaves eviction to
// the storage engine.
type SemanticCache struct {
	store     model.VectorStore
	threshold float64
}

func NewSemanticCache(store model.VectorStore, cfg model.CacheConfig) (*SemanticCache, error) {
	if store == nil {
		return nil, fmt.Errorf("vector store is nil")
	}
	if cfg.ScoreThreshold <= 0 {
		return nil, fmt.Errorf("cache score threshold must be positive, got %v", cfg.ScoreThreshold)
	}
	return &SemanticCache{store: store, threshold: cfg.ScoreThreshold}, nil
}

// GetSimilar returns the cached answer for the nearest stored prompt, or nil
// when nothing is close enough. The boundary is exclusive: a distance equal
// to the threshold is a miss. A corrupted stored payload is logged and
// treated as a miss; only transport failures surface as errors.
func (c *SemanticCache) GetSimilar(ctx context.Context, prompt string) (*model.CachedAnswer, error) {
	results, err := c.store.Search(ctx, prompt, repo.VectorField, 1)
	if err != nil {
		return nil, err
	}

	for _, result := range results {
		logx.Debug().
			Float64("distance", result.Distance).
			Float64("threshold", c.threshold).
			Str("id", result.Record.ID).
			Msg("cache candidate")

		if result.Distance >= c.threshold {
			continue
		}

		var answer model.CachedAnswer
		if err := json.Unmarshal([]byte(result.Record.Result), &answer); err != nil {
			logx.Warn().Err(errx.WrapCacheCorruption(err)).Str("id", result.Record.ID).Msg("corrupted cache payload, treating as miss")
			return nil, nil
		}
		if answer.References == nil {
			answer.References = []string{}
		}
		logx.Info().Str("id", result.Record.ID).Float64("distance", result.Distance).Msg("cache hit")
		return &answer, nil
	}

	logx.Debug().Msg("cache miss")
	return nil, nil
}

// Store writes a new prompt/answer pair. Distinct prompts always produce
// distinct records, even when their content coincides.
func (c *SemanticCache) Store(ctx context.Context, prompt, content string, references []string) error {
	if references == nil {
		references = []string{}
	}
	payload, err := json.Marshal(model.CachedAnswer{Content: content, References: references})
	if err != nil {
		return fmt.Errorf("marshal cache payload: %w", err)
	}

	record := &model.CacheRecord{
		Prompt: prompt,
		Result: string(payload),
	}
	if err := c.store.Upsert(ctx, record); err != nil {
		return err
	}
	logx.Info().Str("id", record.ID).Msg("cache write")
	return nil
}
