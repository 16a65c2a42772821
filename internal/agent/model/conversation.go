package model

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

// ConversationRepository is the durable append-only log of a thread's
// messages. The checkpointed state carries its own history copy for resume;
// the repository is what outlives checkpoint TTLs and serves inspection.
type ConversationRepository interface {
	// AddMessage appends a message to the thread's history.
	AddMessage(ctx context.Context, threadID string, message *schema.Message) error

	// LoadHistory retrieves the full history for a thread.
	LoadHistory(ctx context.Context, threadID string) (*ConversationHistory, error)

	// ClearHistory removes all history for a thread.
	ClearHistory(ctx context.Context, threadID string) error

	// GetMessageCount returns the number of messages stored for the thread.
	GetMessageCount(ctx context.Context, threadID string) (int, error)
}

// ConversationHistory represents loaded conversation data with metadata.
type ConversationHistory struct {
	ThreadID string
	Messages []*schema.Message
}
