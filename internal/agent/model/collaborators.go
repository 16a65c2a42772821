package model

import (
	"context"
	"errors"
)

// ErrContextTooLong classifies an upstream model failure caused by the prompt
// exceeding the model's context window. The gather path recovers from it once
// by shrinking the history view; adapters must wrap it so errors.Is matches.
var ErrContextTooLong = errors.New("model context window exceeded")

// RouteTarget is the router's decision for a turn.
type RouteTarget string

const (
	RouteRetrieve          RouteTarget = "retrieve"
	RouteCheckCompleteness RouteTarget = "check_completeness"
	RouteGather            RouteTarget = "gather"
)

// Retriever returns ranked context snippets for a query from a per-thread
// namespace. An empty result is valid, not an error.
type Retriever interface {
	Retrieve(ctx context.Context, query string, namespace string) ([]Snippet, error)
}

// Translator normalizes text to English. Implementations must tolerate
// malformed structured output from the backing model by degrading to the raw
// output rather than failing.
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// CompletenessResult is what the classifier reports after inspecting the
// conversation against the required-field set.
type CompletenessResult struct {
	MissingFields    []string
	FollowUpQuestion string
}

// CompletenessClassifier decides which required fields are still missing.
type CompletenessClassifier interface {
	Check(ctx context.Context, in CompletenessInput) (CompletenessResult, error)
}

// CompletenessInput bundles everything the classifier may consult.
type CompletenessInput struct {
	History string
	Query   string
	Context string
	Known   KnownFields
}

// Extraction is the gather-path output: any fields found in the latest user
// message plus a friendly reply.
type Extraction struct {
	Fields KnownFields
	Reply  string
}

// ConversationExtractor pulls known fields out of the latest user message.
type ConversationExtractor interface {
	Extract(ctx context.Context, request string, history string) (Extraction, error)
}

// DocumentGenerator drafts the final letter from the consolidated context.
type DocumentGenerator interface {
	Generate(ctx context.Context, context string) (string, error)
}

// RouteDecider resolves the ambiguous middle of the routing policy, after the
// deterministic checks have run. Unparseable output must map to RouteGather.
type RouteDecider interface {
	Decide(ctx context.Context, history string, request string, files []string) (RouteTarget, error)
}
