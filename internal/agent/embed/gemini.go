package embed

import (
	"context"
	"fmt"

	errx "github.com/hrdesk/server/internal/core/error"
	logx "github.com/hrdesk/server/pkg/logger"
	"google.golang.org/genai"

	"github.com/hrdesk/server/internal/agent/model"
)

// GeminiEmbedder generates prompt embeddings through the shared genai client.
// The client is process-wide; connection reuse happens underneath it.
type GeminiEmbedder struct {
	client     *genai.Client
	model      string
	dimensions int32
}

func NewGeminiEmbedder(client *genai.Client, cfg model.EmbeddingConfig) (*GeminiEmbedder, error) {
	if client == nil {
		return nil, fmt.Errorf("genai client is nil")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("embedding model is required")
	}
	return &GeminiEmbedder{
		client:     client,
		model:      cfg.Model,
		dimensions: int32(cfg.Dimensions),
	}, nil
}

func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	cfg := &genai.EmbedContentConfig{}
	if e.dimensions > 0 {
		cfg.OutputDimensionality = genai.Ptr(e.dimensions)
	}

	resp, err := e.client.Models.EmbedContent(ctx, e.model, genai.Text(text), cfg)
	if err != nil {
		logx.Error().Err(err).Str("model", e.model).Msg("embedding request failed")
		return nil, errx.WrapEmbedding(err)
	}
	if resp == nil || len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, errx.WrapEmbedding(fmt.Errorf("empty embedding for model %s", e.model))
	}

	vec := resp.Embeddings[0].Values
	if e.dimensions > 0 && len(vec) != int(e.dimensions) {
		return nil, errx.WrapEmbedding(fmt.Errorf("embedding dimension %d, expected %d", len(vec), e.dimensions))
	}
	return vec, nil
}

var _ model.Embedder = (*GeminiEmbedder)(nil)
