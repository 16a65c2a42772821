package graph

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorcraft-poc/server/internal/agent/graph/nodes"
	"github.com/lorcraft-poc/server/internal/agent/model"
	"github.com/lorcraft-poc/server/internal/agent/repo"
)

type fakeDecider struct {
	target model.RouteTarget
	err    error
	calls  int
}

func (f *fakeDecider) Decide(context.Context, string, string, []string) (model.RouteTarget, error) {
	f.calls++
	return f.target, f.err
}

type fakeRetriever struct {
	snippets []model.Snippet
	calls    int
}

func (f *fakeRetriever) Retrieve(context.Context, string, string) ([]model.Snippet, error) {
	f.calls++
	return f.snippets, nil
}

type fakeTranslator struct{ out string }

func (f *fakeTranslator) Translate(context.Context, string) (string, error) {
	return f.out, nil
}

// fakeClassifier returns its results in sequence, repeating the last one.
type fakeClassifier struct {
	results []model.CompletenessResult
	calls   int
}

func (f *fakeClassifier) Check(context.Context, model.CompletenessInput) (model.CompletenessResult, error) {
	i := f.calls
	f.calls++
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	return f.results[i], nil
}

type fakeExtractor struct {
	ext   model.Extraction
	calls int
}

func (f *fakeExtractor) Extract(context.Context, string, string) (model.Extraction, error) {
	f.calls++
	return f.ext, nil
}

type fakeGenerator struct {
	doc   string
	calls int
}

func (f *fakeGenerator) Generate(context.Context, string) (string, error) {
	f.calls++
	return f.doc, nil
}

type harness struct {
	svc         *Service
	checkpoints *repo.MemoryCheckpointStore
	decider     *fakeDecider
	retriever   *fakeRetriever
	classifier  *fakeClassifier
	extractor   *fakeExtractor
	generator   *fakeGenerator
}

func newHarness(t *testing.T, collab Collaborators) *harness {
	t.Helper()

	h := &harness{
		checkpoints: repo.NewMemoryCheckpointStore(),
		decider:     &fakeDecider{target: model.RouteGather},
		retriever:   &fakeRetriever{snippets: []model.Snippet{{Text: "cv chunk"}}},
		classifier:  &fakeClassifier{results: []model.CompletenessResult{{}}},
		extractor:   &fakeExtractor{ext: model.Extraction{Reply: "hello"}},
		generator:   &fakeGenerator{doc: "Dear Committee, ..."},
	}
	if collab.RouteDecider == nil {
		collab.RouteDecider = h.decider
	}
	if collab.Retriever == nil {
		collab.Retriever = h.retriever
	}
	if collab.Translator == nil {
		collab.Translator = &fakeTranslator{out: "translated"}
	}
	if collab.Classifier == nil {
		collab.Classifier = h.classifier
	}
	if collab.Extractor == nil {
		collab.Extractor = h.extractor
	}
	if collab.Generator == nil {
		collab.Generator = h.generator
	}

	cfg := Config{
		Conversation:     testConversationConfig(),
		Retrieval:        model.RetrievalConfig{MaxAttempts: 3},
		ConversationRepo: repo.NewMemoryConversationRepository(),
		Checkpoints:      h.checkpoints,
		Retriever:        collab.Retriever,
		Sleep:            func(time.Duration) {},
	}

	svc, err := Assemble(cfg, collab)
	require.NoError(t, err)
	h.svc = svc
	return h
}

func testConversationConfig() model.ConversationConfig {
	cfg := model.ConversationConfig{}
	cfg.History.MaxMessages = 10
	cfg.History.ShrunkMessages = 3
	return cfg
}

// assertExclusive checks a result carries exactly the payload its status names.
func assertExclusive(t *testing.T, res TurnResult) {
	t.Helper()
	switch res.Status {
	case StatusNeedsInput:
		assert.NotEmpty(t, res.FollowUp)
		assert.Empty(t, res.Document)
		assert.Empty(t, res.Reply)
	case StatusDocumentReady:
		assert.Empty(t, res.FollowUp)
		assert.NotEmpty(t, res.Document)
		assert.Empty(t, res.Reply)
	case StatusReply:
		assert.Empty(t, res.FollowUp)
		assert.Empty(t, res.Document)
		assert.NotEmpty(t, res.Reply)
	default:
		t.Fatalf("unexpected status %q", res.Status)
	}
}

func TestSubmitTurnUnknownThread(t *testing.T) {
	h := newHarness(t, Collaborators{})

	_, err := h.svc.SubmitTurn(context.Background(), "no-such-thread", "hi", nil)
	require.Error(t, err)
}

func TestGatherPathReturnsReply(t *testing.T) {
	h := newHarness(t, Collaborators{})
	h.extractor.ext = model.Extraction{
		Fields: model.KnownFields{ClientName: "John Doe"},
		Reply:  "Got it, John Doe. What are their pronouns?",
	}

	ctx := context.Background()
	threadID, err := h.svc.Start(ctx)
	require.NoError(t, err)

	res, err := h.svc.SubmitTurn(ctx, threadID, "I need a letter for John Doe", nil)
	require.NoError(t, err)
	assert.Equal(t, StatusReply, res.Status)
	assertExclusive(t, res)

	cp, err := h.checkpoints.Load(ctx, threadID)
	require.NoError(t, err)
	assert.Equal(t, "John Doe", cp.State.Known.ClientName)
	assert.False(t, cp.Paused())
}

func TestRouterFailSafeDefaultsToGather(t *testing.T) {
	h := newHarness(t, Collaborators{})
	h.decider.err = errors.New("router model unavailable")

	ctx := context.Background()
	threadID, err := h.svc.Start(ctx)
	require.NoError(t, err)

	res, err := h.svc.SubmitTurn(ctx, threadID, "hello there", nil)
	require.NoError(t, err)
	assert.Equal(t, StatusReply, res.Status)
	assert.Zero(t, h.generator.calls)
	assert.Zero(t, h.classifier.calls)
}

func TestRetrieveRouteWithoutDocumentsFallsBackToGather(t *testing.T) {
	h := newHarness(t, Collaborators{})
	h.decider.target = model.RouteRetrieve

	ctx := context.Background()
	threadID, err := h.svc.Start(ctx)
	require.NoError(t, err)

	res, err := h.svc.SubmitTurn(ctx, threadID, "what do my documents say?", nil)
	require.NoError(t, err)
	assert.Equal(t, StatusReply, res.Status)
	assert.Zero(t, h.retriever.calls)
	assert.Equal(t, 1, h.extractor.calls)
}

// Uploading documents routes through retrieve -> translate -> completeness,
// pauses on missing fields, then the resumed turn re-checks and generates.
func TestUploadThenPauseThenResume(t *testing.T) {
	h := newHarness(t, Collaborators{})
	h.classifier.results = []model.CompletenessResult{
		{MissingFields: []string{model.FieldClientPronouns}, FollowUpQuestion: "What pronouns should the letter use?"},
		{},
	}

	ctx := context.Background()
	threadID, err := h.svc.Start(ctx)
	require.NoError(t, err)

	res, err := h.svc.SubmitTurn(ctx, threadID, "Draft a letter for Maria Alvarez", []string{"cv.pdf"})
	require.NoError(t, err)
	assert.Equal(t, StatusNeedsInput, res.Status)
	assert.Equal(t, "What pronouns should the letter use?", res.FollowUp)
	assertExclusive(t, res)
	assert.Equal(t, 1, h.retriever.calls)
	assert.Zero(t, h.decider.calls)

	cp, err := h.checkpoints.Load(ctx, threadID)
	require.NoError(t, err)
	assert.True(t, cp.Paused())
	assert.Equal(t, nodes.NodeCheckCompleteness, cp.NextNode)

	res, err = h.svc.SubmitTurn(ctx, threadID, "she/her", nil)
	require.NoError(t, err)
	assert.Equal(t, StatusDocumentReady, res.Status)
	assert.Equal(t, "Dear Committee, ...", res.Document)
	assertExclusive(t, res)

	// Resume re-entered at the completeness check, not the router, and the
	// cleared pause does not linger.
	assert.Zero(t, h.decider.calls)
	assert.Equal(t, 2, h.classifier.calls)
	cp, err = h.checkpoints.Load(ctx, threadID)
	require.NoError(t, err)
	assert.False(t, cp.Paused())
	assert.Equal(t, "Dear Committee, ...", cp.State.GeneratedDocument)
}

// With every required field already known the router skips the decider and
// goes straight to the completeness check.
func TestKnownFieldsShortCircuitRouter(t *testing.T) {
	h := newHarness(t, Collaborators{})

	ctx := context.Background()
	threadID, err := h.svc.Start(ctx)
	require.NoError(t, err)

	cp, err := h.checkpoints.Load(ctx, threadID)
	require.NoError(t, err)
	cp.State.Known = model.KnownFields{
		ClientName:     "Maria Alvarez",
		ClientPronouns: "she/her",
		ClientEndeavor: "PhD application",
		Questionnaire:  "filled",
	}
	require.NoError(t, h.checkpoints.Save(ctx, cp))

	res, err := h.svc.SubmitTurn(ctx, threadID, "generate the letter", nil)
	require.NoError(t, err)
	assert.Equal(t, StatusDocumentReady, res.Status)
	assertExclusive(t, res)
	assert.Zero(t, h.decider.calls)
	assert.Equal(t, 1, h.generator.calls)
}

// The decider routing to check_completeness on an incomplete thread ends in a
// pause whose checkpoint records where the next turn re-enters.
func TestDeciderRouteToCompletenessPauses(t *testing.T) {
	h := newHarness(t, Collaborators{})
	h.decider.target = model.RouteCheckCompleteness
	h.classifier.results = []model.CompletenessResult{
		{MissingFields: []string{model.FieldClientName}},
		{},
	}

	ctx := context.Background()
	threadID, err := h.svc.Start(ctx)
	require.NoError(t, err)

	res, err := h.svc.SubmitTurn(ctx, threadID, "is everything ready?", nil)
	require.NoError(t, err)
	assert.Equal(t, StatusNeedsInput, res.Status)
	assert.Equal(t, "Could you please provide the following details: client_name?", res.FollowUp)
	assert.Equal(t, 1, h.decider.calls)

	cp, err := h.checkpoints.Load(ctx, threadID)
	require.NoError(t, err)
	assert.Equal(t, nodes.NodeCheckCompleteness, cp.NextNode)

	res, err = h.svc.SubmitTurn(ctx, threadID, "the client is Maria Alvarez", nil)
	require.NoError(t, err)
	assert.Equal(t, StatusDocumentReady, res.Status)
	assert.Equal(t, 1, h.decider.calls, "resume must bypass the router")
}

// A paused thread survives a restart: a second service built over the same
// stores resumes from the persisted checkpoint.
func TestPauseSurvivesRestart(t *testing.T) {
	h := newHarness(t, Collaborators{})
	h.classifier.results = []model.CompletenessResult{
		{MissingFields: []string{model.FieldClientPronouns}},
	}

	ctx := context.Background()
	threadID, err := h.svc.Start(ctx)
	require.NoError(t, err)

	_, err = h.svc.SubmitTurn(ctx, threadID, "letter for Maria", []string{"cv.pdf"})
	require.NoError(t, err)

	classifier2 := &fakeClassifier{results: []model.CompletenessResult{{}}}
	generator2 := &fakeGenerator{doc: "Dear Committee, ..."}
	cfg := Config{
		Conversation:     testConversationConfig(),
		Retrieval:        model.RetrievalConfig{MaxAttempts: 3},
		ConversationRepo: repo.NewMemoryConversationRepository(),
		Checkpoints:      h.checkpoints,
		Retriever:        h.retriever,
		Sleep:            func(time.Duration) {},
	}
	svc2, err := Assemble(cfg, Collaborators{
		RouteDecider: &fakeDecider{target: model.RouteGather},
		Translator:   &fakeTranslator{out: "translated"},
		Classifier:   classifier2,
		Extractor:    &fakeExtractor{},
		Generator:    generator2,
		Retriever:    h.retriever,
	})
	require.NoError(t, err)

	res, err := svc2.SubmitTurn(ctx, threadID, "she/her", nil)
	require.NoError(t, err)
	assert.Equal(t, StatusDocumentReady, res.Status)
	assert.Equal(t, 1, classifier2.calls)
	assert.Equal(t, 1, generator2.calls)
}

func TestStartAllocatesDistinctThreads(t *testing.T) {
	h := newHarness(t, Collaborators{})

	ctx := context.Background()
	a, err := h.svc.Start(ctx)
	require.NoError(t, err)
	b, err := h.svc.Start(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	cp, err := h.checkpoints.Load(ctx, a)
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.False(t, cp.Paused())
	assert.Empty(t, cp.State.History)
}
