package evaluation

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed template/judge_prompt.txt
var judgeSystemPrompt string

// renderJudgeSystem renders the judge system prompt for one metric via the
// Eino prompt component (enables prompt callbacks).
func renderJudgeSystem(ctx context.Context, metric, criteria string) (string, error) {
	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(judgeSystemPrompt),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"Metric":   metric,
		"Criteria": criteria,
	})
	if err != nil {
		return "", fmt.Errorf("judge prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("judge prompt render: empty result")
	}
	return msgs[0].Content, nil
}

// judgeUserContent lays out the triple under grading. Context is omitted for
// metrics that do not use it.
func judgeUserContent(userQuery, response, context string, withContext bool) string {
	var b strings.Builder
	b.WriteString("<query>\n")
	b.WriteString(userQuery)
	b.WriteString("\n</query>\n<response>\n")
	b.WriteString(response)
	b.WriteString("\n</response>")
	if withContext {
		b.WriteString("\n<context>\n")
		b.WriteString(context)
		b.WriteString("\n</context>")
	}
	return b.String()
}
