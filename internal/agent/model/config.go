package model

// ================ Config ================
type ConversationConfig struct {
	// TTL of "0" keeps the transcript forever (append-only log).
	TTL   string `envconfig:"CONVERSATION_TTL" default:"0"`
	Tools struct {
		MaxCalls int `envconfig:"CONVERSATION_TOOL_MAX_CALLS" default:"10"`
	}
}

type ResponseModelConfig struct {
	Model       string  `envconfig:"RESPONSE_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"RESPONSE_MAX_TOKENS" default:"2000"`
	Temperature float32 `envconfig:"RESPONSE_TEMPERATURE" default:"0.4"`
}

// JudgeModelConfig drives the three quality scorers. Scores are on a 1-5
// scale; anything at or above PassScore is a "pass".
type JudgeModelConfig struct {
	Model       string  `envconfig:"JUDGE_MODEL" default:"gemini-2.5-flash-lite"`
	MaxTokens   int     `envconfig:"JUDGE_MAX_TOKENS" default:"1024"`
	Temperature float32 `envconfig:"JUDGE_TEMPERATURE" default:"0"`
	PassScore   float64 `envconfig:"JUDGE_PASS_SCORE" default:"3"`
}

type EmbeddingConfig struct {
	Model      string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-004"`
	Dimensions int    `envconfig:"EMBEDDING_DIMENSIONS" default:"768"`
}

// CacheConfig controls the semantic response cache. ScoreThreshold is a
// cosine DISTANCE: lower is stricter, a hit requires distance < threshold.
type CacheConfig struct {
	IndexName      string  `envconfig:"CACHE_INDEX_NAME" default:"idx:llm_responses"`
	KeyPrefix      string  `envconfig:"CACHE_KEY_PREFIX" default:"llmcache:"`
	ScoreThreshold float64 `envconfig:"CACHE_SCORE_THRESHOLD" default:"0.20"`
}

type ResponsePromptConfig struct {
	AgentName     string `envconfig:"PROMPT_AGENT_NAME" default:"HRAssistant"`
	KnowledgeBase string `envconfig:"PROMPT_KNOWLEDGE_BASE" default:"HR policy documents"`
}

type RetrievalConfig struct {
	Endpoint    string `envconfig:"SEARCH_ENDPOINT" required:"true"`
	Index       string `envconfig:"SEARCH_INDEX" required:"true"`
	APIKey      string `envconfig:"SEARCH_API_KEY"`
	VectorField string `envconfig:"SEARCH_VECTOR_FIELD" default:"contentVector"`
	TopK        int    `envconfig:"SEARCH_TOP_K" default:"5"`
	Timeout     int    `envconfig:"SEARCH_TIMEOUT_SECONDS" default:"10"`
}
