package graph

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/lorcraft-poc/server/internal/agent/graph/conversations"
	"github.com/lorcraft-poc/server/internal/agent/model"
	logx "github.com/lorcraft-poc/server/pkg/logger"
)

// TurnStatus is the outcome class of one submitted turn.
type TurnStatus string

const (
	// StatusNeedsInput means execution paused on a follow-up question.
	StatusNeedsInput TurnStatus = "needs_input"
	// StatusDocumentReady means the letter was generated.
	StatusDocumentReady TurnStatus = "document_ready"
	// StatusReply means the gather path produced a conversational reply.
	StatusReply TurnStatus = "reply"
)

// TurnResult is what the hosting application receives for a turn. Exactly one
// of FollowUp, Document, or Reply is populated, matching Status.
type TurnResult struct {
	ThreadID string     `json:"thread_id"`
	Status   TurnStatus `json:"status"`
	FollowUp string     `json:"follow_up,omitempty"`
	Document string     `json:"document,omitempty"`
	Reply    string     `json:"reply,omitempty"`
}

// Service is the boundary exposed to the hosting application: start a
// conversation, submit turns. It serializes turns per thread so state is only
// ever mutated by the one turn currently executing for it.
type Service struct {
	engine      *Engine
	checkpoints model.CheckpointStore
	mm          *conversations.MessagesManager

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewService(engine *Engine, checkpoints model.CheckpointStore, mm *conversations.MessagesManager) *Service {
	return &Service{
		engine:      engine,
		checkpoints: checkpoints,
		mm:          mm,
		locks:       map[string]*sync.Mutex{},
	}
}

// threadLock returns the single-writer lock for a thread.
func (s *Service) threadLock(threadID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[threadID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[threadID] = l
	}
	return l
}

// Start allocates a thread and checkpoints its empty state.
func (s *Service) Start(ctx context.Context) (string, error) {
	threadID := uuid.NewString()
	if err := s.checkpoints.Save(ctx, &model.Checkpoint{
		ThreadID: threadID,
		State:    model.NewConversationState(threadID),
	}); err != nil {
		return "", err
	}
	logx.Info().Str("thread_id", threadID).Msg("conversation started")
	return threadID, nil
}

// SubmitTurn runs the engine to the next pause or terminal node and maps the
// final state to exactly one user-visible outcome. Resuming after a pause is
// just another SubmitTurn; the engine detects the pending pause from the
// persisted checkpoint.
func (s *Service) SubmitTurn(ctx context.Context, threadID, text string, fileRefs []string) (TurnResult, error) {
	lock := s.threadLock(threadID)
	lock.Lock()
	defer lock.Unlock()

	if strings.TrimSpace(text) != "" {
		if err := s.mm.SaveUser(ctx, threadID, text); err != nil {
			logx.Error().Err(err).Str("thread_id", threadID).Msg("failed to save user message")
		}
	}

	outcome, err := s.engine.Run(ctx, threadID, text, fileRefs)
	if err != nil {
		return TurnResult{}, err
	}

	return s.resolve(threadID, outcome)
}

// resolve enforces the mutual-exclusivity invariant: a completed turn ends in
// exactly one of {missing fields, generated document, conversational reply}.
func (s *Service) resolve(threadID string, outcome TurnOutcome) (TurnResult, error) {
	state := outcome.State

	if outcome.Paused {
		question := state.FollowUpQuestion
		if question == "" && len(state.MissingFields) > 0 {
			question = fmt.Sprintf("To generate a high-quality letter, I need more information. Please provide details on: %s",
				strings.Join(state.MissingFields, ", "))
		}
		return TurnResult{ThreadID: threadID, Status: StatusNeedsInput, FollowUp: question}, nil
	}

	switch {
	case state.GeneratedDocument != "":
		return TurnResult{ThreadID: threadID, Status: StatusDocumentReady, Document: state.GeneratedDocument}, nil
	case state.ConversationalResponse != "":
		return TurnResult{ThreadID: threadID, Status: StatusReply, Reply: state.ConversationalResponse}, nil
	default:
		return TurnResult{}, fmt.Errorf("turn for thread %s completed with no outcome", threadID)
	}
}
