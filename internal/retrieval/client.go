package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	logx "github.com/hrdesk/server/pkg/logger"

	"github.com/hrdesk/server/internal/agent/model"
)

const (
	apiVersion = "2024-07-01"
	// knnPoolSize is the vector candidate pool fused with the keyword
	// results; the final cut happens at Top.
	knnPoolSize = 50
)

// Document is one retrieved passage from the policy index.
type Document struct {
	Title      string `json:"title"`
	Content    string `json:"content"`
	PageNumber string `json:"pageNumber"`
}

// Searcher is the behaviour the agent tool depends on.
type Searcher interface {
	Search(ctx context.Context, query string, top int) ([]Document, error)
}

// Client performs hybrid (keyword + vector) search against an index over
// HTTP. The index service resolves the text of the vector query into an
// embedding itself.
type Client struct {
	endpoint    string
	index       string
	apiKey      string
	vectorField string
	topK        int
	httpClient  *http.Client
}

func NewClient(cfg model.RetrievalConfig) *Client {
	return &Client{
		endpoint:    strings.TrimRight(cfg.Endpoint, "/"),
		index:       cfg.Index,
		apiKey:      cfg.APIKey,
		vectorField: cfg.VectorField,
		topK:        cfg.TopK,
		httpClient:  &http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second},
	}
}

// TopK is the configured default result count for tool calls.
func (c *Client) TopK() int { return c.topK }

type searchRequest struct {
	Search        string        `json:"search"`
	VectorQueries []vectorQuery `json:"vectorQueries"`
	Top           int           `json:"top"`
	Select        string        `json:"select"`
}

type vectorQuery struct {
	Kind   string `json:"kind"`
	Text   string `json:"text"`
	K      int    `json:"k"`
	Fields string `json:"fields"`
}

type searchResponse struct {
	Value []Document `json:"value"`
}

// Search runs a hybrid query and returns up to top documents.
func (c *Client) Search(ctx context.Context, query string, top int) ([]Document, error) {
	if top <= 0 {
		top = c.topK
	}

	body, err := json.Marshal(searchRequest{
		Search: query,
		VectorQueries: []vectorQuery{{
			Kind:   "text",
			Text:   query,
			K:      knnPoolSize,
			Fields: c.vectorField,
		}},
		Top:    top,
		Select: "title,content,pageNumber",
	})
	if err != nil {
		return nil, fmt.Errorf("retrieval: marshal request: %w", err)
	}

	searchURL := fmt.Sprintf("%s/indexes/%s/docs/search?api-version=%s",
		c.endpoint, url.PathEscape(c.index), apiVersion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, searchURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("retrieval: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("retrieval: search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("retrieval: search returned %d: %s", resp.StatusCode, string(snippet))
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("retrieval: decode response: %w", err)
	}

	logx.Debug().
		Str("query", query).
		Int("results", len(parsed.Value)).
		Dur("elapsed", time.Since(started)).
		Msg("hybrid search completed")

	return parsed.Value, nil
}

// FormatMarkdown renders documents the way the response model consumes tool
// output: numbered sections with title, page and passage text.
func FormatMarkdown(docs []Document, title string) string {
	if len(docs) == 0 {
		return fmt.Sprintf("**%s**\n\nNo results found.", title)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "**%s**\n\n", title)
	for i, d := range docs {
		fmt.Fprintf(&sb, "**%d. %s (Page %s)**\n%s\n\n", i+1, d.Title, d.PageNumber, d.Content)
	}
	return strings.TrimRight(sb.String(), "\n") + "\n"
}
