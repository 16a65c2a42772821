package conversations

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/lorcraft-poc/server/internal/agent/model"
)

// MessagesManager mirrors turn messages into the durable conversation log and
// renders the bounded history views handed to collaborators.
type MessagesManager struct {
	conversationRepo model.ConversationRepository
	maxMessages      int
	shrunkMessages   int
}

func NewMessagesManager(conversationRepo model.ConversationRepository, cfg model.ConversationConfig) *MessagesManager {
	return &MessagesManager{
		conversationRepo: conversationRepo,
		maxMessages:      cfg.History.MaxMessages,
		shrunkMessages:   cfg.History.ShrunkMessages,
	}
}

// MaxMessages is the default bounded-view size.
func (mm *MessagesManager) MaxMessages() int { return mm.maxMessages }

// ShrunkMessages is the reduced view used when a model reports its context
// window was exceeded.
func (mm *MessagesManager) ShrunkMessages() int { return mm.shrunkMessages }

// SaveUser appends the user's turn text to the durable log.
func (mm *MessagesManager) SaveUser(ctx context.Context, threadID string, content string) error {
	return mm.conversationRepo.AddMessage(ctx, threadID, schema.UserMessage(content))
}

// SaveAssistant appends an assistant reply (follow-up question, gather reply,
// or document announcement) to the durable log.
func (mm *MessagesManager) SaveAssistant(ctx context.Context, threadID string, content string) error {
	return mm.conversationRepo.AddMessage(ctx, threadID, schema.AssistantMessage(content, nil))
}

// HistoryView renders the most recent part of the state's history as the
// speaker-tagged transcript collaborator prompts expect.
func (mm *MessagesManager) HistoryView(state *model.ConversationState) string {
	return FormatHistory(state.RecentHistory(mm.maxMessages))
}

// ShrunkHistoryView renders the reduced transcript for the overflow retry.
func (mm *MessagesManager) ShrunkHistoryView(state *model.ConversationState) string {
	return FormatHistory(state.RecentHistory(mm.shrunkMessages))
}

// FormatHistory renders messages as "User:"/"AI:" tagged lines.
func FormatHistory(messages []*schema.Message) string {
	var b strings.Builder
	for _, msg := range messages {
		if msg == nil || msg.Content == "" {
			continue
		}
		switch msg.Role {
		case schema.User:
			b.WriteString("User: " + msg.Content + "\n")
		case schema.Assistant:
			b.WriteString("AI: " + msg.Content + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
