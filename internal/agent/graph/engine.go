package graph

import (
	"context"
	"fmt"
	"net/http"

	"github.com/lorcraft-poc/server/internal/agent/graph/nodes"
	"github.com/lorcraft-poc/server/internal/agent/model"
	errx "github.com/lorcraft-poc/server/internal/core/error"
	logx "github.com/lorcraft-poc/server/pkg/logger"
)

// EntryFunc picks the first node of a turn from state; it is only consulted
// when no pause is pending.
type EntryFunc func(ctx context.Context, state *model.ConversationState) string

// ConditionFunc picks the successor of a conditional edge from state.
type ConditionFunc func(state *model.ConversationState) string

// Engine executes the workflow: nodes along directed edges, one node at a
// time, with the state checkpointed after every node so a pause survives a
// process restart. Suspension happens only before nodes in the interrupt set;
// the checkpoint then records the node execution resumes at on the next turn.
type Engine struct {
	checkpoints model.CheckpointStore
	entry       EntryFunc

	nodeFuncs    map[string]nodes.Func
	edges        map[string]string
	conditionals map[string]ConditionFunc
	// interruptBefore maps a pause node to the node a later turn resumes at.
	interruptBefore map[string]string

	maxSteps int
}

// EngineConfig collects everything Engine needs.
type EngineConfig struct {
	Checkpoints model.CheckpointStore
	Entry       EntryFunc
}

// NewEngine builds an engine with no wiring; use Add* before Run.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Checkpoints == nil {
		return nil, fmt.Errorf("checkpoint store is nil")
	}
	if cfg.Entry == nil {
		return nil, fmt.Errorf("entry func is nil")
	}
	return &Engine{
		checkpoints:     cfg.Checkpoints,
		entry:           cfg.Entry,
		nodeFuncs:       map[string]nodes.Func{},
		edges:           map[string]string{},
		conditionals:    map[string]ConditionFunc{},
		interruptBefore: map[string]string{},
		maxSteps:        20,
	}, nil
}

// AddNode registers a node function under a name.
func (e *Engine) AddNode(name string, fn nodes.Func) {
	e.nodeFuncs[name] = fn
}

// AddEdge wires a static successor.
func (e *Engine) AddEdge(from, to string) {
	e.edges[from] = to
}

// AddConditionalEdge wires a successor chosen from state at runtime.
func (e *Engine) AddConditionalEdge(from string, cond ConditionFunc) {
	e.conditionals[from] = cond
}

// AddInterruptBefore marks a pause node and the node execution re-enters at
// on the following turn.
func (e *Engine) AddInterruptBefore(pauseNode, resumeNode string) {
	e.interruptBefore[pauseNode] = resumeNode
}

// TurnOutcome is what one engine run produced.
type TurnOutcome struct {
	State  *model.ConversationState
	Paused bool
}

// Run executes one turn for a thread: load the checkpoint, apply the turn
// input, enter at the resume pointer (if paused) or the router's choice, and
// walk the graph until END or a pause node. The caller guarantees at most one
// in-flight turn per thread.
func (e *Engine) Run(ctx context.Context, threadID, text string, fileRefs []string) (TurnOutcome, error) {
	cp, err := e.checkpoints.Load(ctx, threadID)
	if err != nil {
		return TurnOutcome{}, err
	}
	if cp == nil || cp.State == nil {
		return TurnOutcome{}, errx.New(fmt.Errorf("no checkpoint for thread %s", threadID),
			http.StatusNotFound, errx.ThreadNotFoundMessage)
	}

	state := cp.State
	state.BeginTurn(text, fileRefs)

	var current string
	if cp.Paused() {
		// Resume re-enters at the recorded node, not at the router, so the
		// newly supplied information is re-evaluated against the same
		// missing-field question.
		current = cp.NextNode
		logx.Debug().Str("thread_id", threadID).Str("node", current).Msg("resuming paused thread")
	} else {
		current = e.entry(ctx, state)
		logx.Debug().Str("thread_id", threadID).Str("node", current).Msg("routing turn")
	}

	for steps := 0; current != nodes.NodeEnd; steps++ {
		if steps >= e.maxSteps {
			return TurnOutcome{}, fmt.Errorf("graph exceeded %d steps at node %s", e.maxSteps, current)
		}

		if resume, ok := e.interruptBefore[current]; ok {
			if err := e.checkpoint(ctx, threadID, state, resume); err != nil {
				return TurnOutcome{}, err
			}
			logx.Debug().Str("thread_id", threadID).Str("resume_node", resume).Msg("execution suspended awaiting user input")
			return TurnOutcome{State: state, Paused: true}, nil
		}

		fn, ok := e.nodeFuncs[current]
		if !ok {
			return TurnOutcome{}, fmt.Errorf("unknown node %q", current)
		}

		logx.Debug().Str("thread_id", threadID).Str("node", current).Msg("executing node")
		patch, err := fn(ctx, state)
		if err != nil {
			// All-or-nothing per node: nothing from the failed node is
			// applied or checkpointed; the last completed node's snapshot
			// stands.
			return TurnOutcome{}, err
		}
		state.Apply(patch)

		if err := e.checkpoint(ctx, threadID, state, ""); err != nil {
			return TurnOutcome{}, err
		}

		current = e.next(current, state)
	}

	return TurnOutcome{State: state}, nil
}

func (e *Engine) next(current string, state *model.ConversationState) string {
	if cond, ok := e.conditionals[current]; ok {
		return cond(state)
	}
	if to, ok := e.edges[current]; ok {
		return to
	}
	return nodes.NodeEnd
}

func (e *Engine) checkpoint(ctx context.Context, threadID string, state *model.ConversationState, nextNode string) error {
	return e.checkpoints.Save(ctx, &model.Checkpoint{
		ThreadID: threadID,
		State:    state,
		NextNode: nextNode,
	})
}
