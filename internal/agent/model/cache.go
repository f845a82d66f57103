package model

import "context"

// CacheRecord is one stored prompt/response pair. Result holds the opaque
// serialized payload; the prompt text rides along for debugging. The prompt
// vector itself lives only in the vector store document.
type CacheRecord struct {
	ID     string
	Prompt string
	Result string
}

// CachedAnswer is the payload serialized into CacheRecord.Result.
type CachedAnswer struct {
	Content    string   `json:"content"`
	References []string `json:"references"`
}

// SearchResult carries one nearest-neighbor match. Distance is a
// non-negative cosine distance: lower means more similar. It is not a
// similarity percentage.
type SearchResult struct {
	Record   CacheRecord
	Distance float64
}

// VectorStore stores (prompt-embedding, payload) documents and retrieves the
// nearest stored prompts for a query text.
type VectorStore interface {
	// Upsert embeds record.Prompt and writes the document, assigning a
	// generated id when absent. Writing the same id again overwrites.
	Upsert(ctx context.Context, record *CacheRecord) error

	// Search embeds the query and returns up to topK results ordered by
	// ascending distance over the named vector field. An empty collection
	// yields an empty slice, not an error.
	Search(ctx context.Context, query, vectorField string, topK int) ([]SearchResult, error)
}

// Embedder produces a fixed-dimension vector for a text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
