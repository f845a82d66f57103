package parsers

import (
	"encoding/json"
	"strings"

	logx "github.com/hrdesk/server/pkg/logger"
)

// basic safety limits to avoid pathological inputs
const (
	maxContentLen = 128 * 1024 // 128KB
	maxErrSnippet = 200        // limit logged snippet size
)

// structuredAnswer is the strict output contract the response model is asked
// to honor: a JSON object with the answer text and its citation labels.
type structuredAnswer struct {
	Content    string   `json:"content"`
	References []string `json:"references"`
}

// ParseAgentOutput extracts {content, references} from the model's final
// text. The surrounding fenced code block, when present, is stripped before
// strict JSON parsing. Malformed structured output never aborts the turn:
// the raw (unfenced) text becomes the content and references default to
// empty.
func ParseAgentOutput(raw string) (content string, references []string) {
	if len(raw) > maxContentLen {
		logx.Warn().
			Str("component", "response_parser").
			Int("max_len", maxContentLen).
			Int("orig_len", len(raw)).
			Msg("model output truncated due to size limit")
		raw = raw[:maxContentLen]
	}

	unfenced := StripCodeFence(raw)

	var parsed structuredAnswer
	if err := json.Unmarshal([]byte(unfenced), &parsed); err != nil || strings.TrimSpace(parsed.Content) == "" {
		logx.Warn().
			Str("component", "response_parser").
			Str("snippet", safeSnippet(unfenced)).
			Msg("model output is not valid structured JSON, falling back to raw text")
		return unfenced, []string{}
	}

	if parsed.References == nil {
		parsed.References = []string{}
	}
	return parsed.Content, parsed.References
}

// StripCodeFence removes one surrounding Markdown code fence, including an
// optional language tag (e.g. ```json). Text without a fence is returned
// trimmed but otherwise untouched.
func StripCodeFence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return t
	}

	t = strings.TrimPrefix(t, "```")
	// drop the language tag line unless the payload starts on it
	if nl := strings.IndexByte(t, '\n'); nl >= 0 && !strings.ContainsAny(t[:nl], "{[") {
		t = t[nl+1:]
	}
	t = strings.TrimSpace(t)
	t = strings.TrimSuffix(t, "```")
	return strings.TrimSpace(t)
}

func safeSnippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxErrSnippet {
		return s
	}
	return s[:maxErrSnippet]
}
