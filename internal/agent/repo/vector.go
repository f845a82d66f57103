package repo

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
	errx "github.com/hrdesk/server/internal/core/error"
	logx "github.com/hrdesk/server/pkg/logger"
	"github.com/redis/go-redis/v9"

	"github.com/hrdesk/server/internal/agent/model"
)

const (
	// Hash field names of a cache document. VectorField carries the
	// embedding; PromptTextField keeps the raw prompt for debugging.
	VectorField     = "prompt"
	ResultField     = "result"
	PromptTextField = "promptText"
	distanceAlias   = "distance"
)

// RedisVectorStore persists cache documents as Redis hashes behind a
// RediSearch KNN index with a cosine distance metric. Every call embeds its
// text through the shared embedder; vectors are never cached locally.
type RedisVectorStore struct {
	rdb      redis.Cmdable
	embedder model.Embedder
	index    string
	prefix   string
	dims     int
}

func NewRedisVectorStore(rdb redis.Cmdable, embedder model.Embedder, cfg model.CacheConfig, embedCfg model.EmbeddingConfig) (*RedisVectorStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is nil")
	}
	if cfg.IndexName == "" || cfg.KeyPrefix == "" {
		return nil, fmt.Errorf("cache index name and key prefix are required")
	}
	return &RedisVectorStore{
		rdb:      rdb,
		embedder: embedder,
		index:    cfg.IndexName,
		prefix:   cfg.KeyPrefix,
		dims:     embedCfg.Dimensions,
	}, nil
}

// EnsureIndex creates the KNN index when missing. Safe to call at startup;
// an existing index is left untouched.
func (s *RedisVectorStore) EnsureIndex(ctx context.Context) error {
	err := s.rdb.FTCreate(ctx, s.index,
		&redis.FTCreateOptions{OnHash: true, Prefix: []any{s.prefix}},
		&redis.FieldSchema{
			FieldName: VectorField,
			FieldType: redis.SearchFieldTypeVector,
			VectorArgs: &redis.FTVectorArgs{
				FlatOptions: &redis.FTFlatOptions{
					Type:           "FLOAT32",
					Dim:            s.dims,
					DistanceMetric: "COSINE",
				},
			},
		},
		&redis.FieldSchema{FieldName: ResultField, FieldType: redis.SearchFieldTypeText},
		&redis.FieldSchema{FieldName: PromptTextField, FieldType: redis.SearchFieldTypeText},
	).Err()
	if err != nil && !strings.Contains(err.Error(), "Index already exists") {
		logx.Error().Err(err).Str("index", s.index).Msg("failed to create vector index")
		return errx.WrapRedis(err)
	}
	return nil
}

func (s *RedisVectorStore) Upsert(ctx context.Context, record *model.CacheRecord) error {
	vec, err := s.embedder.Embed(ctx, record.Prompt)
	if err != nil {
		return err
	}

	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	key := s.prefix + record.ID

	fields := map[string]any{
		ResultField:     record.Result,
		PromptTextField: record.Prompt,
		VectorField:     vectorBytes(vec),
	}
	if err := s.rdb.HSet(ctx, key, fields).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to upsert cache document")
		return errx.WrapRedis(err)
	}
	logx.Debug().Str("id", record.ID).Msg("cache document upserted")
	return nil
}

func (s *RedisVectorStore) Search(ctx context.Context, query, vectorField string, topK int) ([]model.SearchResult, error) {
	if topK <= 0 {
		topK = 1
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	knn := fmt.Sprintf("*=>[KNN %d @%s $vec AS %s]", topK, vectorField, distanceAlias)
	res, err := s.rdb.FTSearchWithArgs(ctx, s.index, knn, &redis.FTSearchOptions{
		Return: []redis.FTSearchReturn{
			{FieldName: distanceAlias},
			{FieldName: ResultField},
			{FieldName: PromptTextField},
		},
		SortBy:         []redis.FTSearchSortBy{{FieldName: distanceAlias, Asc: true}},
		DialectVersion: 2,
		LimitOffset:    0,
		Limit:          topK,
		Params:         map[string]any{"vec": vectorBytes(vec)},
	}).Result()
	if err != nil {
		logx.Error().Err(err).Str("index", s.index).Msg("vector search failed")
		return nil, errx.WrapRedis(err)
	}

	results := make([]model.SearchResult, 0, len(res.Docs))
	for _, doc := range res.Docs {
		dist, err := strconv.ParseFloat(doc.Fields[distanceAlias], 64)
		if err != nil {
			logx.Warn().Str("doc_id", doc.ID).Str("raw", doc.Fields[distanceAlias]).Msg("skipping document with unparsable distance")
			continue
		}
		results = append(results, model.SearchResult{
			Record: model.CacheRecord{
				ID:     strings.TrimPrefix(doc.ID, s.prefix),
				Prompt: doc.Fields[PromptTextField],
				Result: doc.Fields[ResultField],
			},
			Distance: dist,
		})
	}
	return results, nil
}

// vectorBytes encodes a vector as the little-endian FLOAT32 blob RediSearch
// expects for KNN parameters and stored vector fields.
func vectorBytes(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

var _ model.VectorStore = (*RedisVectorStore)(nil)
