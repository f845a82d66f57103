package parsers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAgentOutput(t *testing.T) {
	t.Run("fenced JSON with references", func(t *testing.T) {
		raw := "```json\n{\"content\": \"You get 25 days of annual leave.\", \"references\": [\"Leave Policy\"]}\n```"
		content, refs := ParseAgentOutput(raw)
		assert.Equal(t, "You get 25 days of annual leave.", content)
		assert.Equal(t, []string{"Leave Policy"}, refs)
	})

	t.Run("bare JSON without fence", func(t *testing.T) {
		raw := `{"content": "Contact HR directly.", "references": []}`
		content, refs := ParseAgentOutput(raw)
		assert.Equal(t, "Contact HR directly.", content)
		assert.Empty(t, refs)
	})

	t.Run("missing references defaults to empty slice", func(t *testing.T) {
		content, refs := ParseAgentOutput(`{"content": "Hello!"}`)
		assert.Equal(t, "Hello!", content)
		assert.NotNil(t, refs)
		assert.Empty(t, refs)
	})

	t.Run("malformed JSON falls back to raw text", func(t *testing.T) {
		content, refs := ParseAgentOutput("Sorry, I could not find that policy.")
		assert.Equal(t, "Sorry, I could not find that policy.", content)
		assert.NotNil(t, refs)
		assert.Empty(t, refs)
	})

	t.Run("valid JSON with empty content falls back to raw", func(t *testing.T) {
		raw := `{"content": "", "references": ["x"]}`
		content, refs := ParseAgentOutput(raw)
		assert.Equal(t, raw, content)
		assert.Empty(t, refs)
	})

	t.Run("fenced malformed JSON falls back to unfenced text", func(t *testing.T) {
		content, refs := ParseAgentOutput("```json\n{\"content\": \"broken\n```")
		assert.Equal(t, "{\"content\": \"broken", content)
		assert.Empty(t, refs)
	})

	t.Run("oversize output is truncated not rejected", func(t *testing.T) {
		raw := strings.Repeat("a", maxContentLen+100)
		content, _ := ParseAgentOutput(raw)
		assert.Len(t, content, maxContentLen)
	})
}

func TestStripCodeFence(t *testing.T) {
	t.Run("strips fence with language tag", func(t *testing.T) {
		assert.Equal(t, `{"a":1}`, StripCodeFence("```json\n{\"a\":1}\n```"))
	})

	t.Run("strips fence without language tag", func(t *testing.T) {
		assert.Equal(t, `{"a":1}`, StripCodeFence("```\n{\"a\":1}\n```"))
	})

	t.Run("keeps payload starting on the fence line", func(t *testing.T) {
		assert.Equal(t, `{"a":1}`, StripCodeFence("```{\"a\":1}\n```"))
	})

	t.Run("no fence returns trimmed input", func(t *testing.T) {
		assert.Equal(t, "plain text", StripCodeFence("  plain text \n"))
	})
}
