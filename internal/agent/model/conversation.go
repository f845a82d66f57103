package model

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"
)

// MessageRecord is one durable transcript entry. Records are append-only:
// never mutated, never deleted. ResponseID groups a user turn with the
// assistant/tool turns it produced.
type MessageRecord struct {
	ID           string            `json:"id"`
	SessionID    string            `json:"session_id"`
	ResponseID   string            `json:"response_id"`
	Role         string            `json:"role"`
	Content      string            `json:"content"`
	ToolCallID   string            `json:"tool_call_id,omitempty"`
	FunctionName string            `json:"function_name,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
}

// Message reconstructs the schema message for this record. An unmapped role
// is a data-integrity failure: the store never silently drops a message.
func (r *MessageRecord) Message() (*schema.Message, error) {
	switch schema.RoleType(r.Role) {
	case schema.User:
		return schema.UserMessage(r.Content), nil
	case schema.Assistant:
		return schema.AssistantMessage(r.Content, nil), nil
	case schema.System:
		return schema.SystemMessage(r.Content), nil
	case schema.Tool:
		return schema.ToolMessage(r.Content, r.ToolCallID, schema.WithToolName(r.FunctionName)), nil
	default:
		return nil, fmt.Errorf("unknown role %q in message %s", r.Role, r.ID)
	}
}

// ConversationHistory represents a loaded per-session transcript, oldest first.
type ConversationHistory struct {
	SessionID string
	Records   []MessageRecord
	Messages  []*schema.Message
}

type HistoryRepository interface {
	// Append durably persists a message record at the end of the session log.
	Append(ctx context.Context, record *MessageRecord) error

	// Load retrieves the full ordered transcript for a session.
	Load(ctx context.Context, sessionID string) (*ConversationHistory, error)

	// Clear removes all history for a session.
	Clear(ctx context.Context, sessionID string) error

	// MessageCount returns the number of messages in the session log.
	MessageCount(ctx context.Context, sessionID string) (int, error)
}
