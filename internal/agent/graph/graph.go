package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"
	logx "github.com/hrdesk/server/pkg/logger"
	"google.golang.org/genai"

	"github.com/hrdesk/server/internal/agent/cache"
	"github.com/hrdesk/server/internal/agent/evaluation"
	"github.com/hrdesk/server/internal/agent/graph/conversations"
	"github.com/hrdesk/server/internal/agent/graph/nodes"
	"github.com/hrdesk/server/internal/agent/graph/observers"
	"github.com/hrdesk/server/internal/agent/graph/tools"
	"github.com/hrdesk/server/internal/agent/model"
	"github.com/hrdesk/server/internal/observability"
	"github.com/hrdesk/server/internal/retrieval"
)

// Config holds everything needed to compose the full agent end-to-end.
// This is a convenience layer over GraphConfig that also constructs
// ChatModels, the MessagesManager, and the evaluation engine.
type Config struct {
	AgentName      string
	GenaiClient    *genai.Client
	ResponseModel  model.ResponseModelConfig
	JudgeModel     model.JudgeModelConfig
	ResponsePrompt model.ResponsePromptConfig
	Conversation   model.ConversationConfig
	HistoryRepo    model.HistoryRepository
	Cache          *cache.SemanticCache
	EvalStore      model.EvaluationStore
	Searcher       retrieval.Searcher
	Metrics        *observability.Metrics
}

// GraphConfig holds all configuration needed to build the graph
type GraphConfig struct {
	AgentName            string
	ChatModels           *nodes.ChatModels
	MessagesManager      *conversations.MessagesManager
	Cache                *cache.SemanticCache
	Evaluator            *evaluation.Engine
	EvalStore            model.EvaluationStore
	Searcher             retrieval.Searcher
	Metrics              *observability.Metrics
	ResponsePromptConfig *model.ResponsePromptConfig
	ToolMaxCalls         int
}

// GraphBuilder handles the construction of the agent conversation graph
type GraphBuilder struct {
	config *GraphConfig
	graph  *compose.Graph[model.QueryInput, *model.AgentResponse]
}

// hrAgent is the compiled pipeline behind the model.Agent interface.
type hrAgent struct {
	cfg      Config
	runnable compose.Runnable[model.QueryInput, *model.AgentResponse]
}

// NewHRAgent wires an agent from its dependencies. Call Initialize before
// the first Invoke.
func NewHRAgent(cfg Config) model.Agent {
	return &hrAgent{cfg: cfg}
}

// Initialize constructs the chat models, binds tools, and compiles the graph.
func (a *hrAgent) Initialize(ctx context.Context) error {
	if a.cfg.HistoryRepo == nil {
		return fmt.Errorf("history repo is nil")
	}
	if a.cfg.Cache == nil {
		return fmt.Errorf("semantic cache is nil")
	}
	if a.cfg.Searcher == nil {
		return fmt.Errorf("searcher is nil")
	}

	cms, err := nodes.NewChatModels(ctx, nodes.ChatModelConfig{
		Client:      a.cfg.GenaiClient,
		RespConfig:  &a.cfg.ResponseModel,
		JudgeConfig: &a.cfg.JudgeModel,
	})
	if err != nil {
		return err
	}

	evaluator, err := evaluation.NewEngine(cms.Judge, a.cfg.JudgeModel)
	if err != nil {
		return err
	}

	mm := conversations.NewMessagesManager(a.cfg.HistoryRepo, a.cfg.AgentName)

	runnable, err := BuildGraph(ctx, &GraphConfig{
		AgentName:            a.cfg.AgentName,
		ChatModels:           cms,
		MessagesManager:      mm,
		Cache:                a.cfg.Cache,
		Evaluator:            evaluator,
		EvalStore:            a.cfg.EvalStore,
		Searcher:             a.cfg.Searcher,
		Metrics:              a.cfg.Metrics,
		ResponsePromptConfig: &a.cfg.ResponsePrompt,
		ToolMaxCalls:         a.cfg.Conversation.Tools.MaxCalls,
	})
	if err != nil {
		return err
	}

	a.runnable = runnable
	logx.Debug().Str("agent", a.cfg.AgentName).Msg("Agent graph built successfully")
	return nil
}

// Invoke runs one turn through the compiled graph.
func (a *hrAgent) Invoke(ctx context.Context, in model.QueryInput) (*model.AgentResponse, error) {
	if a.runnable == nil {
		return nil, fmt.Errorf("agent not initialized")
	}
	if strings.TrimSpace(in.SessionID) == "" {
		return nil, fmt.Errorf("session_id is required")
	}
	if strings.TrimSpace(in.UserInput) == "" {
		return nil, fmt.Errorf("user_input is required")
	}

	started := time.Now()
	out, err := a.runnable.Invoke(ctx, in, compose.WithCallbacks(observers.NewAllCallbacks()))
	a.cfg.Metrics.ObserveTurn(time.Since(started).Seconds())
	if err != nil {
		return nil, err
	}
	return out, nil
}

// BuildGraph constructs and returns the compiled agent graph
func BuildGraph(ctx context.Context, config *GraphConfig) (compose.Runnable[model.QueryInput, *model.AgentResponse], error) {
	// Basic config validation
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	if config.ChatModels == nil || config.ChatModels.Response == nil {
		return nil, fmt.Errorf("chat models are not properly initialized")
	}
	if config.MessagesManager == nil {
		return nil, fmt.Errorf("messages manager is nil")
	}
	if config.Cache == nil {
		return nil, fmt.Errorf("semantic cache is nil")
	}
	if config.ResponsePromptConfig == nil {
		return nil, fmt.Errorf("response prompt config is nil")
	}

	builder := &GraphBuilder{
		config: config,
		graph: compose.NewGraph[model.QueryInput, *model.AgentResponse](
			compose.WithGenLocalState(func(ctx context.Context) *model.AppState {
				return &model.AppState{}
			}),
		),
	}

	if err := builder.setupTools(ctx); err != nil {
		return nil, err
	}

	builder.addNodes()
	builder.addEdges()

	if err := builder.addBranches(); err != nil {
		return nil, err
	}

	return builder.compile(ctx)
}

// setupTools configures agent tools and binds them to the response model
func (b *GraphBuilder) setupTools(ctx context.Context) error {
	queryTools := tools.GetQueryTools(b.config.Searcher)
	toolInfos, err := tools.GetToolInfos(ctx, queryTools)
	if err != nil {
		logx.Error().Err(err).Msg("Failed to get tool infos")
		return fmt.Errorf("failed to get tool infos: %w", err)
	}

	if err := b.config.ChatModels.BindToolsToResponseModel(ctx, toolInfos); err != nil {
		logx.Error().Err(err).Msg("Failed to bind tools to response model")
		return fmt.Errorf("failed to bind tools to response model: %w", err)
	}

	toolsNode, err := compose.NewToolNode(ctx, &compose.ToolsNodeConfig{
		Tools:               queryTools,
		ExecuteSequentially: true,
		UnknownToolsHandler: func(ctx context.Context, name, input string) (string, error) {
			// Gracefully handle hallucinated or malformed tool calls (e.g., empty name)
			logx.Warn().
				Str("tool_name", name).
				Str("arguments", input).
				Msg("Unknown or invalid tool call; returning fallback result")
			return fmt.Sprintf("{\"error\":\"unknown_tool\",\"name\":%q,\"note\":\"ignored\"}", name), nil
		},
		ToolArgumentsHandler: func(ctx context.Context, name, arguments string) (string, error) {
			// Best-effort sanitize; never fail hard here
			var m map[string]any
			if err := json.Unmarshal([]byte(arguments), &m); err != nil {
				// keep original if not JSON
				return arguments, nil
			}

			if name == tools.ToolSearchDocs {
				// query: string (required)
				if v, ok := m["query"]; ok {
					switch vv := v.(type) {
					case string:
						m["query"] = strings.TrimSpace(vv)
					default:
						m["query"] = strings.TrimSpace(fmt.Sprint(v))
					}
				}
				// top: number (optional, clamped)
				if v, ok := m["top"]; ok {
					switch vv := v.(type) {
					case float64:
						// JSON numbers decode as float64
						m["top"] = clampInt(int(vv), 1, 20)
					case string:
						if n, err := strconv.Atoi(strings.TrimSpace(vv)); err == nil {
							m["top"] = clampInt(n, 1, 20)
						} else {
							delete(m, "top")
						}
					default:
						delete(m, "top")
					}
				}
			}

			sanitized, err := json.Marshal(m)
			if err != nil {
				// fallback to original
				return arguments, nil
			}
			return string(sanitized), nil
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("Failed to create tools node")
		return fmt.Errorf("failed to create tools node: %w", err)
	}

	b.graph.AddToolsNode(nodes.NodeToolExecutor, toolsNode,
		compose.WithStatePreHandler(nodes.NewToolExecutorPreHandler(b.config.ToolMaxCalls, b.config.Metrics)),
		compose.WithStatePostHandler(nodes.NewToolExecutorPostHandler(b.config.MessagesManager)),
	)

	return nil
}

// addNodes adds all processing nodes to the graph
func (b *GraphBuilder) addNodes() {
	b.graph.AddLambdaNode(nodes.NodeCacheLookup,
		nodes.NewCacheLookupNode(b.config.Cache, b.config.Metrics),
		compose.WithStatePreHandler(nodes.NewCacheLookupPreHandler()),
	)

	b.graph.AddLambdaNode(nodes.NodeCacheHit,
		nodes.NewCacheHitNode(b.config.MessagesManager),
	)

	b.graph.AddLambdaNode(nodes.NodeContextAssembler,
		nodes.NewContextAssemblerNode(b.config.MessagesManager, b.config.ResponsePromptConfig),
	)

	b.graph.AddChatModelNode(nodes.NodeResponseChatModel,
		b.config.ChatModels.Response,
		compose.WithStatePreHandler(nodes.NewResponseChatModelPreHandler(b.config.ToolMaxCalls)),
		compose.WithStatePostHandler(nodes.NewResponseChatModelPostHandler(b.config.ChatModels.ResponseModelName, b.config.Metrics)),
	)

	b.graph.AddLambdaNode(nodes.NodeFinalize,
		nodes.NewFinalizeNode(nodes.FinalizeDeps{
			Manager:   b.config.MessagesManager,
			Cache:     b.config.Cache,
			Evaluator: b.config.Evaluator,
			EvalStore: b.config.EvalStore,
			Metrics:   b.config.Metrics,
			AgentName: b.config.AgentName,
			ModelName: b.config.ChatModels.ResponseModelName,
		}),
	)
}

// addEdges creates the main flow connections between nodes
func (b *GraphBuilder) addEdges() {
	edges := [][2]string{
		{compose.START, nodes.NodeCacheLookup},
		{nodes.NodeCacheHit, compose.END},
		{nodes.NodeContextAssembler, nodes.NodeResponseChatModel},
		{nodes.NodeToolExecutor, nodes.NodeResponseChatModel},
		{nodes.NodeFinalize, compose.END},
	}

	for _, edge := range edges {
		b.graph.AddEdge(edge[0], edge[1])
	}
}

// addBranches creates conditional routing branches
func (b *GraphBuilder) addBranches() error {
	cacheBranch := compose.NewGraphBranch(
		nodes.NewCacheRouteCondition(),
		map[string]bool{
			nodes.NodeCacheHit:         true,
			nodes.NodeContextAssembler: true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeCacheLookup, cacheBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding cache branch")
		return fmt.Errorf("error adding cache branch: %w", err)
	}

	decisionBranch := compose.NewGraphBranch(
		nodes.NewToolExecutorCondition(),
		map[string]bool{
			nodes.NodeToolExecutor: true,
			nodes.NodeFinalize:     true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeResponseChatModel, decisionBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding decision branch")
		return fmt.Errorf("error adding decision branch: %w", err)
	}

	return nil
}

// compile finalizes and compiles the graph
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[model.QueryInput, *model.AgentResponse], error) {
	// Limit total run steps to avoid infinite loops in branching or tool retries
	maxSteps := 10 + b.config.ToolMaxCalls*2
	if maxSteps < 20 {
		maxSteps = 20
	}

	runnable, err := b.graph.Compile(ctx, compose.WithMaxRunSteps(maxSteps))
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Msg("Graph compiled successfully")
	return runnable, nil
}

// clampInt returns v limited to [min, max].
func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
