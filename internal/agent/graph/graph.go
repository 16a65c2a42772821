package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/lorcraft-poc/server/internal/agent/graph/conversations"
	"github.com/lorcraft-poc/server/internal/agent/graph/nodes"
	"github.com/lorcraft-poc/server/internal/agent/model"
	logx "github.com/lorcraft-poc/server/pkg/logger"
)

// Config holds everything needed to compose the full drafting workflow
// end-to-end. This is a convenience layer that also constructs the chat
// models and MessagesManager.
type Config struct {
	APIKey  string
	BaseURL string

	RouterModel      model.RouterModelConfig
	ExtractorModel   model.ExtractorModelConfig
	TranslationModel model.TranslationModelConfig
	ClassifierModel  model.ClassifierModelConfig
	GeneratorModel   model.GeneratorModelConfig

	Conversation model.ConversationConfig
	Retrieval    model.RetrievalConfig

	ConversationRepo model.ConversationRepository
	Checkpoints      model.CheckpointStore
	Retriever        model.Retriever

	// Sleep overrides the retrieval backoff sleeper; nil means time.Sleep.
	Sleep func(time.Duration)
}

// Collaborators is the dependency bundle the workflow wiring consumes.
// BuildService fills it from LLM-backed adapters; tests inject fakes.
type Collaborators struct {
	RouteDecider model.RouteDecider
	Translator   model.Translator
	Classifier   model.CompletenessClassifier
	Extractor    model.ConversationExtractor
	Generator    model.DocumentGenerator
	Retriever    model.Retriever
}

// BuildService constructs chat models, adapters, the engine, and the service.
func BuildService(ctx context.Context, cfg Config) (*Service, error) {
	if cfg.ConversationRepo == nil {
		return nil, fmt.Errorf("conversation repo is nil")
	}
	if cfg.Checkpoints == nil {
		return nil, fmt.Errorf("checkpoint store is nil")
	}
	if cfg.Retriever == nil {
		return nil, fmt.Errorf("retriever is nil")
	}

	cms, err := nodes.NewChatModels(ctx, nodes.ChatModelConfig{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Router:     &cfg.RouterModel,
		Extractor:  &cfg.ExtractorModel,
		Translator: &cfg.TranslationModel,
		Classifier: &cfg.ClassifierModel,
		Generator:  &cfg.GeneratorModel,
	})
	if err != nil {
		return nil, err
	}

	collab := Collaborators{
		RouteDecider: nodes.NewRouteDecider(cms),
		Translator:   nodes.NewTranslator(cms),
		Classifier:   nodes.NewCompletenessClassifier(cms),
		Extractor:    nodes.NewConversationExtractor(cms),
		Generator:    nodes.NewDocumentGenerator(cms),
		Retriever:    cfg.Retriever,
	}

	svc, err := Assemble(cfg, collab)
	if err != nil {
		return nil, err
	}

	logx.Debug().Msg("drafting workflow built successfully")
	return svc, nil
}

// Assemble wires collaborators into the workflow graph:
//
//	entry -> {retrieve | check_completeness | gather}   (router)
//	retrieve -> translate -> check_completeness
//	check_completeness -> generate | request_user_info  (missing fields?)
//	generate -> END, gather -> END
//	request_user_info: pause; next turn resumes at check_completeness
func Assemble(cfg Config, collab Collaborators) (*Service, error) {
	mm := conversations.NewMessagesManager(cfg.ConversationRepo, cfg.Conversation)
	router := NewRouter(collab.RouteDecider, mm)

	engine, err := NewEngine(EngineConfig{
		Checkpoints: cfg.Checkpoints,
		Entry:       router.Route,
	})
	if err != nil {
		return nil, err
	}

	engine.AddNode(nodes.NodeRetrieve, nodes.NewRetrieveNode(collab.Retriever, mm, cfg.Retrieval, cfg.Sleep))
	engine.AddNode(nodes.NodeTranslate, nodes.NewTranslateNode(collab.Translator, mm))
	engine.AddNode(nodes.NodeCheckCompleteness, nodes.NewCompletenessNode(collab.Classifier, mm))
	engine.AddNode(nodes.NodeGather, nodes.NewGatherNode(collab.Extractor, mm))
	engine.AddNode(nodes.NodeGenerate, nodes.NewGenerateNode(collab.Generator, mm))
	engine.AddNode(nodes.NodeRequestUserInfo, nodes.NewRequestUserInfoNode())

	engine.AddEdge(nodes.NodeRetrieve, nodes.NodeTranslate)
	engine.AddEdge(nodes.NodeTranslate, nodes.NodeCheckCompleteness)
	engine.AddEdge(nodes.NodeGenerate, nodes.NodeEnd)
	engine.AddEdge(nodes.NodeGather, nodes.NodeEnd)

	engine.AddConditionalEdge(nodes.NodeCheckCompleteness, func(state *model.ConversationState) string {
		if len(state.MissingFields) == 0 {
			return nodes.NodeGenerate
		}
		return nodes.NodeRequestUserInfo
	})

	engine.AddInterruptBefore(nodes.NodeRequestUserInfo, nodes.NodeCheckCompleteness)

	return NewService(engine, cfg.Checkpoints, mm), nil
}
