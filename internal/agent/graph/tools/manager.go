package tools

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/hrdesk/server/internal/retrieval"
)

// GetQueryTools returns the tools exposed to the response model.
func GetQueryTools(searcher retrieval.Searcher) []tool.BaseTool {
	return []tool.BaseTool{
		createSearchDocsTool(searcher),
	}
}

// GetToolInfos extracts tool schemas for binding to the chat model.
func GetToolInfos(ctx context.Context, baseTools []tool.BaseTool) ([]*schema.ToolInfo, error) {
	infos := make([]*schema.ToolInfo, 0, len(baseTools))
	for _, t := range baseTools {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("tool info: %w", err)
		}
		infos = append(infos, info)
	}
	return infos, nil
}
