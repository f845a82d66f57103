package nodes

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	logx "github.com/hrdesk/server/pkg/logger"
	"google.golang.org/genai"

	"github.com/hrdesk/server/internal/agent/model"
)

// ChatModelConfig holds the configuration for chat model creation
type ChatModelConfig struct {
	Client      *genai.Client
	RespConfig  *model.ResponseModelConfig
	JudgeConfig *model.JudgeModelConfig
}

// ChatModels holds the Response model and the Judge model used by the
// quality scorers. The fields are the eino model interfaces so the graph can
// be compiled against any conforming model.
type ChatModels struct {
	Response          einomodel.ChatModel
	Judge             einomodel.BaseChatModel
	ResponseModelName string
	JudgeModelName    string
}

// NewChatModels creates the Response and Judge chat models with the given configuration
func NewChatModels(ctx context.Context, config ChatModelConfig) (*ChatModels, error) {
	if config.Client == nil {
		return nil, fmt.Errorf("genai client is nil")
	}

	chatModelResponse, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      config.Client,
		Model:       config.RespConfig.Model,
		Temperature: &config.RespConfig.Temperature,
		MaxTokens:   &config.RespConfig.MaxTokens,
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: true,
			ThinkingBudget:  genai.Ptr(int32(2000)),
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Response model")
		return nil, fmt.Errorf("error creating Response model: %w", err)
	}

	// The judge grades deterministically; no thinking budget needed.
	chatModelJudge, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      config.Client,
		Model:       config.JudgeConfig.Model,
		Temperature: &config.JudgeConfig.Temperature,
		MaxTokens:   &config.JudgeConfig.MaxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Judge model")
		return nil, fmt.Errorf("error creating Judge model: %w", err)
	}

	return &ChatModels{
		Response:          chatModelResponse,
		Judge:             chatModelJudge,
		ResponseModelName: config.RespConfig.Model,
		JudgeModelName:    config.JudgeConfig.Model,
	}, nil
}

// BindToolsToResponseModel binds tools to the response chat model
func (cm *ChatModels) BindToolsToResponseModel(ctx context.Context, tools []*schema.ToolInfo) error {
	if err := cm.Response.BindTools(tools); err != nil {
		logx.Error().Err(err).Msg("Failed to bind tools")
		return fmt.Errorf("failed to bind tools: %w", err)
	}

	logx.Debug().Msg("Successfully bound tools to response model")
	return nil
}
