package tools

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
	logx "github.com/hrdesk/server/pkg/logger"

	"github.com/hrdesk/server/internal/retrieval"
)

const ToolSearchDocs = "search_docs"

type SearchDocsInput struct {
	Query string `json:"query"`
	Top   int    `json:"top,omitempty"`
}

type SearchDocsOutput struct {
	Results string `json:"results"`
	Total   int    `json:"total"`
}

func createSearchDocsTool(searcher retrieval.Searcher) tool.BaseTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolSearchDocs,
			Desc: "Hybrid search (keyword + vector) over the company policy document index. Returns the most relevant passages with their source document title and page number. Use this before answering any policy question; call again with a reformulated query if the first results do not cover the question.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"query": {
					Type:     "string",
					Desc:     "Search keywords or a short natural-language question, e.g. 'annual leave carry over', 'parental leave duration'.",
					Required: true,
				},
				"top": {
					Type: "number",
					Desc: "Maximum number of passages to return (default: 5).",
				},
			}),
		},
		func(ctx context.Context, in *SearchDocsInput) (*SearchDocsOutput, error) {
			if in.Query == "" {
				return nil, fmt.Errorf("query is required")
			}

			docs, err := searcher.Search(ctx, in.Query, in.Top)
			if err != nil {
				logx.Error().Err(err).Str("query", in.Query).Msg("document search failed")
				return nil, err
			}

			return &SearchDocsOutput{
				Results: retrieval.FormatMarkdown(docs, "Hybrid Search Results"),
				Total:   len(docs),
			}, nil
		},
	)
}
