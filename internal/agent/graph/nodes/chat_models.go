package nodes

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"google.golang.org/genai"

	"github.com/lorcraft-poc/server/internal/agent/model"
	logx "github.com/lorcraft-poc/server/pkg/logger"
)

// ChatModelConfig holds the configuration for chat model creation.
type ChatModelConfig struct {
	APIKey     string
	BaseURL    string
	Router     *model.RouterModelConfig
	Extractor  *model.ExtractorModelConfig
	Translator *model.TranslationModelConfig
	Classifier *model.ClassifierModelConfig
	Generator  *model.GeneratorModelConfig
}

// ChatModels bundles one chat model per collaborator role, all sharing a
// single Gemini client. Translation gets its own (faster) model so its
// latency profile does not leak into the rest of the pipeline.
type ChatModels struct {
	Router     *gemini.ChatModel
	Extractor  *gemini.ChatModel
	Translator *gemini.ChatModel
	Classifier *gemini.ChatModel
	Generator  *gemini.ChatModel

	RouterModelName     string
	ExtractorModelName  string
	TranslatorModelName string
	ClassifierModelName string
	GeneratorModelName  string
}

// NewChatModels creates every role model. A missing API key is a construction
// error, never recovered at runtime.
func NewChatModels(ctx context.Context, config ChatModelConfig) (*ChatModels, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is not set")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = config.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	newModel := func(name string, temperature float32, maxTokens int) (*gemini.ChatModel, error) {
		cm, err := gemini.NewChatModel(ctx, &gemini.Config{
			Client:      client,
			Model:       name,
			Temperature: &temperature,
			MaxTokens:   &maxTokens,
		})
		if err != nil {
			logx.Error().Err(err).Str("model", name).Msg("Error creating chat model")
			return nil, fmt.Errorf("error creating chat model %s: %w", name, err)
		}
		return cm, nil
	}

	routerCM, err := newModel(config.Router.Model, config.Router.Temperature, config.Router.MaxTokens)
	if err != nil {
		return nil, err
	}
	extractorCM, err := newModel(config.Extractor.Model, config.Extractor.Temperature, config.Extractor.MaxTokens)
	if err != nil {
		return nil, err
	}
	translatorCM, err := newModel(config.Translator.Model, config.Translator.Temperature, config.Translator.MaxTokens)
	if err != nil {
		return nil, err
	}
	classifierCM, err := newModel(config.Classifier.Model, config.Classifier.Temperature, config.Classifier.MaxTokens)
	if err != nil {
		return nil, err
	}
	generatorCM, err := newModel(config.Generator.Model, config.Generator.Temperature, config.Generator.MaxTokens)
	if err != nil {
		return nil, err
	}

	return &ChatModels{
		Router:     routerCM,
		Extractor:  extractorCM,
		Translator: translatorCM,
		Classifier: classifierCM,
		Generator:  generatorCM,

		RouterModelName:     config.Router.Model,
		ExtractorModelName:  config.Extractor.Model,
		TranslatorModelName: config.Translator.Model,
		ClassifierModelName: config.Classifier.Model,
		GeneratorModelName:  config.Generator.Model,
	}, nil
}
