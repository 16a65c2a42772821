package graph

import (
	"context"

	"github.com/lorcraft-poc/server/internal/agent/graph/conversations"
	"github.com/lorcraft-poc/server/internal/agent/graph/nodes"
	"github.com/lorcraft-poc/server/internal/agent/model"
	logx "github.com/lorcraft-poc/server/pkg/logger"
)

// Router picks the entry path for a turn. Priority order, first match wins:
// all required fields already known, newly uploaded files, then the default
// gather path. The LLM decider only arbitrates the middle ground where the
// history may cover fields that extraction has not yet captured; any failure
// or ambiguity there falls back to gather, never to generation.
type Router struct {
	decider model.RouteDecider
	mm      *conversations.MessagesManager
}

func NewRouter(decider model.RouteDecider, mm *conversations.MessagesManager) *Router {
	return &Router{decider: decider, mm: mm}
}

// Route is a pure function of state, evaluated once per turn.
func (r *Router) Route(ctx context.Context, state *model.ConversationState) string {
	if state.Known.HasAll(model.RequiredRoutingFields()) {
		logx.Debug().Str("thread_id", state.ThreadID).Msg("all required fields known, routing to completeness check")
		return nodes.NodeCheckCompleteness
	}

	if len(state.TurnFiles) > 0 {
		logx.Debug().Str("thread_id", state.ThreadID).Int("files", len(state.TurnFiles)).Msg("new documents uploaded, routing to retrieve")
		return nodes.NodeRetrieve
	}

	target, err := r.decider.Decide(ctx, r.mm.HistoryView(state), state.Request, state.TurnFiles)
	if err != nil {
		logx.Warn().Err(err).Str("thread_id", state.ThreadID).Msg("route decision failed, defaulting to gather")
		return nodes.NodeGather
	}

	switch target {
	case model.RouteCheckCompleteness:
		return nodes.NodeCheckCompleteness
	case model.RouteRetrieve:
		// Retrieval without documents has nothing to search; gather instead.
		if len(state.UploadedFiles) == 0 {
			logx.Debug().Str("thread_id", state.ThreadID).Msg("retrieve requested with no documents, routing to gather")
			return nodes.NodeGather
		}
		return nodes.NodeRetrieve
	default:
		return nodes.NodeGather
	}
}
