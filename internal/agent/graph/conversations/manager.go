package conversations

import (
	"context"

	"github.com/cloudwego/eino/schema"
	logx "github.com/hrdesk/server/pkg/logger"

	"github.com/hrdesk/server/internal/agent/model"
)

// MessagesManager mediates between the in-memory transcript of the running
// turn and the durable per-session message log. Appends update the in-memory
// transcript first, so the message is immediately reusable within the same
// request; a durable-persistence failure is surfaced to the caller but never
// rolls the in-memory append back.
type MessagesManager struct {
	historyRepo model.HistoryRepository
	agentName   string
}

func NewMessagesManager(historyRepo model.HistoryRepository, agentName string) *MessagesManager {
	return &MessagesManager{historyRepo: historyRepo, agentName: agentName}
}

// LoadTranscript replays the full session transcript, oldest first. Failure
// is fatal to the turn: falling back to an empty transcript would silently
// corrupt future evaluation context.
func (cm *MessagesManager) LoadTranscript(ctx context.Context, sessionID string) ([]*schema.Message, error) {
	history, err := cm.historyRepo.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return history.Messages, nil
}

// BuildResponseContext prepends the system prompt to the transcript.
func (cm *MessagesManager) BuildResponseContext(systemPrompt string, transcript []*schema.Message) []*schema.Message {
	messages := make([]*schema.Message, 0, len(transcript)+1)
	messages = append(messages, schema.SystemMessage(systemPrompt))
	messages = append(messages, transcript...)
	return messages
}

// AddMessage appends one turn entry to the in-memory transcript and persists
// the equivalent record.
func (cm *MessagesManager) AddMessage(ctx context.Context, transcript *[]*schema.Message, sessionID, responseID string, role schema.RoleType, content, toolCallID, functionName string) error {
	record := &model.MessageRecord{
		SessionID:    sessionID,
		ResponseID:   responseID,
		Role:         string(role),
		Content:      content,
		ToolCallID:   toolCallID,
		FunctionName: functionName,
		Metadata:     map[string]string{"agent": cm.agentName},
	}

	msg, err := record.Message()
	if err != nil {
		return err
	}
	if transcript != nil {
		*transcript = append(*transcript, msg)
	}

	if err := cm.historyRepo.Append(ctx, record); err != nil {
		logx.Error().Err(err).
			Str("session_id", sessionID).
			Str("response_id", responseID).
			Str("role", string(role)).
			Msg("durable history append failed, in-memory transcript kept")
		return err
	}
	return nil
}

func (cm *MessagesManager) AppendUser(ctx context.Context, transcript *[]*schema.Message, sessionID, responseID, content string) error {
	return cm.AddMessage(ctx, transcript, sessionID, responseID, schema.User, content, "", "")
}

func (cm *MessagesManager) AppendAssistant(ctx context.Context, transcript *[]*schema.Message, sessionID, responseID, content string) error {
	return cm.AddMessage(ctx, transcript, sessionID, responseID, schema.Assistant, content, "", "")
}

func (cm *MessagesManager) AppendTool(ctx context.Context, transcript *[]*schema.Message, sessionID, responseID, content, toolCallID, functionName string) error {
	return cm.AddMessage(ctx, transcript, sessionID, responseID, schema.Tool, content, toolCallID, functionName)
}
