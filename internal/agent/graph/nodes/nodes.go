package nodes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/lorcraft-poc/server/internal/agent/graph/conversations"
	"github.com/lorcraft-poc/server/internal/agent/graph/parsers"
	"github.com/lorcraft-poc/server/internal/agent/graph/prompts"
	"github.com/lorcraft-poc/server/internal/agent/model"
	logx "github.com/lorcraft-poc/server/pkg/logger"
)

// Node names. NodeEnd terminates the current request; NodeRequestUserInfo is
// the pause point the engine suspends before.
const (
	NodeRetrieve          = "retrieve"
	NodeTranslate         = "translate"
	NodeCheckCompleteness = "check_completeness"
	NodeGenerate          = "generate"
	NodeRequestUserInfo   = "request_user_info"
	NodeGather            = "gather"
	NodeEnd               = "END"
)

// DocumentReadyMessage is the assistant line logged alongside a finished letter.
const DocumentReadyMessage = "Here is the generated document:"

// Func is one graph node: it reads state and returns the partial patch for
// the keys it owns. A node either fully applies or fails; the engine never
// checkpoints a partial node.
type Func func(ctx context.Context, state *model.ConversationState) (model.StatePatch, error)

// SleepFunc lets tests observe retry backoff without waiting.
type SleepFunc func(time.Duration)

// retryDelay follows 1s, 3s, 5s for attempts 0, 1, 2.
func retryDelay(attempt int) time.Duration {
	return time.Duration(1+2*attempt) * time.Second
}

// NewRetrieveNode queries the vector store for the thread's namespace. The
// call is retried with increasing backoff only while the result set is empty;
// transport errors propagate immediately. Empty after all attempts is a valid
// degenerate input, not an error.
func NewRetrieveNode(retriever model.Retriever, mm *conversations.MessagesManager, cfg model.RetrievalConfig, sleep SleepFunc) Func {
	if sleep == nil {
		sleep = time.Sleep
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return func(ctx context.Context, state *model.ConversationState) (model.StatePatch, error) {
		query := prompts.RetrievalQuery(state.Request, mm.HistoryView(state))

		var snippets []model.Snippet
		for attempt := 0; attempt < maxAttempts; attempt++ {
			var err error
			snippets, err = retriever.Retrieve(ctx, query, state.ThreadID)
			if err != nil {
				return model.StatePatch{}, fmt.Errorf("retrieve context: %w", err)
			}
			if len(snippets) > 0 {
				logx.Debug().
					Str("thread_id", state.ThreadID).
					Int("attempt", attempt+1).
					Int("snippets", len(snippets)).
					Msg("context retrieved")
				break
			}
			logx.Debug().
				Str("thread_id", state.ThreadID).
				Int("attempt", attempt+1).
				Msg("retrieval returned empty, backing off")
			sleep(retryDelay(attempt))
		}

		return model.StatePatch{RetrievedContext: model.Ptr(snippets)}, nil
	}
}

// NewTranslateNode normalizes the retrieved context to English. With no
// retrieved context and no documents in the conversation at all, it falls
// back to the raw conversation transcript so the completeness check still has
// something to work from.
func NewTranslateNode(translator model.Translator, mm *conversations.MessagesManager) Func {
	return func(ctx context.Context, state *model.ConversationState) (model.StatePatch, error) {
		if len(state.RetrievedContext) == 0 {
			if len(state.UploadedFiles) == 0 {
				logx.Debug().Str("thread_id", state.ThreadID).Msg("no documents, using conversation text as context")
				return model.StatePatch{TranslatedContext: model.Ptr(mm.HistoryView(state))}, nil
			}
			logx.Debug().Str("thread_id", state.ThreadID).Msg("no context to translate")
			return model.StatePatch{TranslatedContext: model.Ptr("")}, nil
		}

		parts := make([]string, 0, len(state.RetrievedContext))
		for _, s := range state.RetrievedContext {
			parts = append(parts, s.Text)
		}

		translated, err := translator.Translate(ctx, strings.Join(parts, " "))
		if err != nil {
			return model.StatePatch{}, fmt.Errorf("translate context: %w", err)
		}
		return model.StatePatch{TranslatedContext: model.Ptr(translated)}, nil
	}
}

// SynthesizeFollowUp builds the deterministic fallback question for a set of
// missing fields. It is mandatory whenever the classifier reports missing
// fields without a question; the conversation must never stall with no way to
// ask the user.
func SynthesizeFollowUp(missing []string) string {
	return fmt.Sprintf("Could you please provide the following details: %s?", strings.Join(missing, ", "))
}

// NewCompletenessNode runs the classifier and finalizes the turn outcome on
// the incomplete path: missing fields plus a follow-up question that is
// synthesized deterministically when the classifier omits one. Malformed
// classifier output is never treated as complete; it degrades to asking for
// whatever the known fields cannot resolve.
func NewCompletenessNode(classifier model.CompletenessClassifier, mm *conversations.MessagesManager) Func {
	return func(ctx context.Context, state *model.ConversationState) (model.StatePatch, error) {
		res, err := classifier.Check(ctx, model.CompletenessInput{
			History: mm.HistoryView(state),
			Query:   state.Request,
			Context: state.TranslatedContext,
			Known:   state.Known,
		})
		if err != nil {
			if !errors.Is(err, parsers.ErrMalformed) {
				return model.StatePatch{}, fmt.Errorf("completeness check: %w", err)
			}
			logx.Warn().
				Str("thread_id", state.ThreadID).
				Err(err).
				Msg("classifier output malformed, falling back to known-field resolution")
			res = model.CompletenessResult{
				MissingFields: state.Known.Missing(model.RequiredMinimumFields()),
			}
		}

		if len(res.MissingFields) == 0 {
			return model.StatePatch{
				MissingFields:    model.Ptr([]string(nil)),
				FollowUpQuestion: model.Ptr(""),
			}, nil
		}

		question := res.FollowUpQuestion
		if question == "" {
			question = SynthesizeFollowUp(res.MissingFields)
		}

		if err := mm.SaveAssistant(ctx, state.ThreadID, question); err != nil {
			logx.Error().Err(err).Str("thread_id", state.ThreadID).Msg("failed to save follow-up question")
		}

		return model.StatePatch{
			MissingFields:    model.Ptr(res.MissingFields),
			FollowUpQuestion: model.Ptr(question),
			AppendHistory:    []*schema.Message{schema.AssistantMessage(question, nil)},
		}, nil
	}
}

// NewGatherNode runs the extraction path: pull any known fields out of the
// latest message and reply conversationally. Field updates merge
// monotonically, and a context-window failure is retried exactly once with
// the shrunk history view before any other error propagates.
func NewGatherNode(extractor model.ConversationExtractor, mm *conversations.MessagesManager) Func {
	return func(ctx context.Context, state *model.ConversationState) (model.StatePatch, error) {
		ext, err := extractor.Extract(ctx, state.Request, mm.HistoryView(state))
		if err != nil {
			if !errors.Is(err, model.ErrContextTooLong) {
				return model.StatePatch{}, fmt.Errorf("extract fields: %w", err)
			}
			logx.Warn().
				Str("thread_id", state.ThreadID).
				Int("shrunk_messages", mm.ShrunkMessages()).
				Msg("context window exceeded, retrying with shrunk history")
			ext, err = extractor.Extract(ctx, state.Request, mm.ShrunkHistoryView(state))
			if err != nil {
				return model.StatePatch{}, fmt.Errorf("extract fields after shrink: %w", err)
			}
		}

		reply := ext.Reply
		if strings.TrimSpace(reply) == "" {
			// Merge first so the ask reflects what this very message supplied.
			merged := state.Known
			merged.Merge(ext.Fields)
			missing := merged.Missing(model.RequiredRoutingFields())
			if len(missing) == 0 {
				reply = "Thanks! I have everything I need, ask me to generate the letter whenever you are ready."
			} else {
				reply = SynthesizeFollowUp(missing)
			}
		}

		if err := mm.SaveAssistant(ctx, state.ThreadID, reply); err != nil {
			logx.Error().Err(err).Str("thread_id", state.ThreadID).Msg("failed to save gather reply")
		}

		return model.StatePatch{
			Known:                  model.Ptr(ext.Fields),
			ConversationalResponse: model.Ptr(reply),
			AppendHistory:          []*schema.Message{schema.AssistantMessage(reply, nil)},
		}, nil
	}
}

// NewGenerateNode drafts the final letter from the consolidated context.
func NewGenerateNode(generator model.DocumentGenerator, mm *conversations.MessagesManager) Func {
	return func(ctx context.Context, state *model.ConversationState) (model.StatePatch, error) {
		consolidated := fmt.Sprintf("Retrieved Context: %s\n\nConversation History:\n%s",
			state.TranslatedContext, mm.HistoryView(state))

		doc, err := generator.Generate(ctx, consolidated)
		if err != nil {
			return model.StatePatch{}, fmt.Errorf("generate document: %w", err)
		}

		if err := mm.SaveAssistant(ctx, state.ThreadID, DocumentReadyMessage); err != nil {
			logx.Error().Err(err).Str("thread_id", state.ThreadID).Msg("failed to save document announcement")
		}

		return model.StatePatch{
			GeneratedDocument: model.Ptr(doc),
			AppendHistory:     []*schema.Message{schema.AssistantMessage(DocumentReadyMessage, nil)},
		}, nil
	}
}

// NewRequestUserInfoNode is the pause marker. The engine suspends before it,
// so its body only runs if it is ever wired without an interrupt.
func NewRequestUserInfoNode() Func {
	return func(ctx context.Context, state *model.ConversationState) (model.StatePatch, error) {
		return model.StatePatch{}, nil
	}
}
