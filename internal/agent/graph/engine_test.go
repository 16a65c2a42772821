package graph

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorcraft-poc/server/internal/agent/model"
	"github.com/lorcraft-poc/server/internal/agent/repo"
	errx "github.com/lorcraft-poc/server/internal/core/error"
)

func newTestEngine(t *testing.T, entry EntryFunc) (*Engine, *repo.MemoryCheckpointStore) {
	t.Helper()
	store := repo.NewMemoryCheckpointStore()
	engine, err := NewEngine(EngineConfig{Checkpoints: store, Entry: entry})
	require.NoError(t, err)
	return engine, store
}

func seedThread(t *testing.T, store *repo.MemoryCheckpointStore, threadID string) {
	t.Helper()
	require.NoError(t, store.Save(context.Background(), &model.Checkpoint{
		ThreadID: threadID,
		State:    model.NewConversationState(threadID),
	}))
}

func staticEntry(node string) EntryFunc {
	return func(context.Context, *model.ConversationState) string { return node }
}

func TestRunWithoutCheckpointIsNotFound(t *testing.T) {
	engine, _ := newTestEngine(t, staticEntry("a"))

	_, err := engine.Run(context.Background(), "missing", "hi", nil)
	require.Error(t, err)

	var appErr *errx.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusNotFound, appErr.Status)
	assert.Equal(t, errx.ThreadNotFoundMessage, appErr.Message)
}

func TestRunWalksEdgesToEnd(t *testing.T) {
	engine, store := newTestEngine(t, staticEntry("a"))

	var visited []string
	record := func(name string, patch model.StatePatch) {
		engine.AddNode(name, func(context.Context, *model.ConversationState) (model.StatePatch, error) {
			visited = append(visited, name)
			return patch, nil
		})
	}
	record("a", model.StatePatch{TranslatedContext: model.Ptr("ctx")})
	record("b", model.StatePatch{ConversationalResponse: model.Ptr("done")})
	engine.AddEdge("a", "b")

	seedThread(t, store, "t1")
	outcome, err := engine.Run(context.Background(), "t1", "hello", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, visited)
	assert.False(t, outcome.Paused)
	assert.Equal(t, "ctx", outcome.State.TranslatedContext)
	assert.Equal(t, "done", outcome.State.ConversationalResponse)

	cp, err := store.Load(context.Background(), "t1")
	require.NoError(t, err)
	assert.False(t, cp.Paused())
	assert.Equal(t, "done", cp.State.ConversationalResponse)
}

func TestInterruptCheckpointsResumeNode(t *testing.T) {
	engine, store := newTestEngine(t, staticEntry("check"))

	checkCalls := 0
	engine.AddNode("check", func(context.Context, *model.ConversationState) (model.StatePatch, error) {
		checkCalls++
		return model.StatePatch{FollowUpQuestion: model.Ptr("what is the name?")}, nil
	})
	engine.AddNode("ask", func(context.Context, *model.ConversationState) (model.StatePatch, error) {
		t.Fatal("pause node body must not run")
		return model.StatePatch{}, nil
	})
	engine.AddEdge("check", "ask")
	engine.AddInterruptBefore("ask", "check")

	seedThread(t, store, "t1")
	outcome, err := engine.Run(context.Background(), "t1", "start", nil)
	require.NoError(t, err)
	assert.True(t, outcome.Paused)
	assert.Equal(t, 1, checkCalls)

	cp, err := store.Load(context.Background(), "t1")
	require.NoError(t, err)
	assert.True(t, cp.Paused())
	assert.Equal(t, "check", cp.NextNode)
	assert.Equal(t, "what is the name?", cp.State.FollowUpQuestion)
}

func TestResumeBypassesEntry(t *testing.T) {
	entryCalls := 0
	var engine *Engine
	entry := func(context.Context, *model.ConversationState) string {
		entryCalls++
		return "check"
	}
	engine, store := newTestEngine(t, entry)

	paused := true
	engine.AddNode("check", func(context.Context, *model.ConversationState) (model.StatePatch, error) {
		if paused {
			return model.StatePatch{}, nil
		}
		return model.StatePatch{ConversationalResponse: model.Ptr("resumed")}, nil
	})
	engine.AddNode("ask", func(context.Context, *model.ConversationState) (model.StatePatch, error) {
		return model.StatePatch{}, nil
	})
	engine.AddConditionalEdge("check", func(*model.ConversationState) string {
		if paused {
			return "ask"
		}
		return "END"
	})
	engine.AddInterruptBefore("ask", "check")

	seedThread(t, store, "t1")
	outcome, err := engine.Run(context.Background(), "t1", "first", nil)
	require.NoError(t, err)
	require.True(t, outcome.Paused)
	assert.Equal(t, 1, entryCalls)

	paused = false
	outcome, err = engine.Run(context.Background(), "t1", "second", nil)
	require.NoError(t, err)
	assert.False(t, outcome.Paused)
	assert.Equal(t, "resumed", outcome.State.ConversationalResponse)
	assert.Equal(t, 1, entryCalls, "resume must not consult the entry router")
}

// A failing node leaves the last completed node's checkpoint untouched.
func TestNodeFailureDoesNotCheckpoint(t *testing.T) {
	engine, store := newTestEngine(t, staticEntry("a"))

	engine.AddNode("a", func(context.Context, *model.ConversationState) (model.StatePatch, error) {
		return model.StatePatch{TranslatedContext: model.Ptr("from a")}, nil
	})
	engine.AddNode("b", func(context.Context, *model.ConversationState) (model.StatePatch, error) {
		return model.StatePatch{}, errors.New("model unavailable")
	})
	engine.AddEdge("a", "b")

	seedThread(t, store, "t1")
	_, err := engine.Run(context.Background(), "t1", "hello", nil)
	require.Error(t, err)

	cp, err := store.Load(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "from a", cp.State.TranslatedContext)
	assert.Len(t, cp.State.History, 1)
}

func TestFirstNodeFailureLeavesSeedState(t *testing.T) {
	engine, store := newTestEngine(t, staticEntry("a"))
	engine.AddNode("a", func(context.Context, *model.ConversationState) (model.StatePatch, error) {
		return model.StatePatch{}, errors.New("boom")
	})

	seedThread(t, store, "t1")
	_, err := engine.Run(context.Background(), "t1", "hello", nil)
	require.Error(t, err)

	// The turn input was never persisted either.
	cp, err := store.Load(context.Background(), "t1")
	require.NoError(t, err)
	assert.Empty(t, cp.State.Request)
	assert.Empty(t, cp.State.History)
}

func TestRunRejectsUnknownNode(t *testing.T) {
	engine, store := newTestEngine(t, staticEntry("ghost"))
	seedThread(t, store, "t1")

	_, err := engine.Run(context.Background(), "t1", "hello", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

func TestRunBoundsSteps(t *testing.T) {
	engine, store := newTestEngine(t, staticEntry("loop"))
	engine.AddNode("loop", func(context.Context, *model.ConversationState) (model.StatePatch, error) {
		return model.StatePatch{}, nil
	})
	engine.AddEdge("loop", "loop")

	seedThread(t, store, "t1")
	_, err := engine.Run(context.Background(), "t1", "hello", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "steps")
}
