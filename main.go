package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/lorcraft-poc/server/internal/agent/graph"
	"github.com/lorcraft-poc/server/internal/agent/model"
	"github.com/lorcraft-poc/server/internal/agent/repo"
	"github.com/lorcraft-poc/server/internal/agent/retrieval"
	"github.com/lorcraft-poc/server/internal/core"
	logx "github.com/lorcraft-poc/server/pkg/logger"
	pkgredis "github.com/lorcraft-poc/server/pkg/redis"
)

// AppConfig defines all configurable parameters for the drafting agent,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	// Infrastructure
	Redis    pkgredis.Config
	Pinecone retrieval.PineconeConfig

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Agent configs
	Router       model.RouterModelConfig
	Extractor    model.ExtractorModelConfig
	Translation  model.TranslationModelConfig
	Classifier   model.ClassifierModelConfig
	Generator    model.GeneratorModelConfig
	Conversation model.ConversationConfig
	Retrieval    model.RetrievalConfig
}

func main() {
	ctx := context.Background()

	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	var envCfg AppConfig
	if err := envconfig.Process("", &envCfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}

	logx.Init(logx.LoggerOpts{Environment: core.ParseEnvironment(envCfg.Environment)})

	rdb, err := envCfg.Redis.New(ctx)
	if err != nil {
		log.Fatalf("Failed to initialise Redis client: %v", err)
	}
	defer rdb.Close()

	ttl, err := time.ParseDuration(envCfg.Conversation.TTL)
	if err != nil {
		log.Fatalf("Invalid CONVERSATION_TTL '%s': %v", envCfg.Conversation.TTL, err)
	}

	retriever, err := retrieval.NewPineconeRetriever(envCfg.Pinecone)
	if err != nil {
		log.Fatalf("Failed to initialise retriever: %v", err)
	}

	svc, err := graph.BuildService(ctx, graph.Config{
		APIKey:           envCfg.APIKey,
		BaseURL:          envCfg.BaseURL,
		RouterModel:      envCfg.Router,
		ExtractorModel:   envCfg.Extractor,
		TranslationModel: envCfg.Translation,
		ClassifierModel:  envCfg.Classifier,
		GeneratorModel:   envCfg.Generator,
		Conversation:     envCfg.Conversation,
		Retrieval:        envCfg.Retrieval,
		ConversationRepo: repo.NewRedisConversationRepository(rdb, ttl),
		Checkpoints:      repo.NewRedisCheckpointStore(rdb, ttl),
		Retriever:        retriever,
	})
	if err != nil {
		log.Fatalf("Failed to build drafting service: %v", err)
	}

	threadID, err := svc.Start(ctx)
	if err != nil {
		log.Fatalf("Failed to start conversation: %v", err)
	}
	fmt.Printf("Started conversation %s\n", threadID)

	testTurns := []struct {
		description string
		text        string
	}{
		{
			description: "Initial request with partial details",
			text:        "Please draft a letter of recommendation for Maria Alvarez, she/her.",
		},
		{
			description: "Supply the endeavor",
			text:        "The letter is for her application to a PhD program in computational biology.",
		},
		{
			description: "Supply the questionnaire",
			text:        "Questionnaire: I supervised Maria for three years; she led our genomics pipeline rewrite and mentored two juniors.",
		},
	}

	for i, turn := range testTurns {
		fmt.Printf("\nTurn %d: %s\n", i+1, turn.description)
		fmt.Printf("User: %q\n", turn.text)

		result, err := svc.SubmitTurn(ctx, threadID, turn.text, nil)
		if err != nil {
			log.Fatalf("Turn %d failed: %v", i+1, err)
		}

		switch result.Status {
		case graph.StatusNeedsInput:
			fmt.Printf("Agent needs more info: %s\n", result.FollowUp)
		case graph.StatusDocumentReady:
			fmt.Printf("Document ready:\n%s\n", result.Document)
		case graph.StatusReply:
			fmt.Printf("Agent: %s\n", result.Reply)
		}

		time.Sleep(500 * time.Millisecond)
	}
}
