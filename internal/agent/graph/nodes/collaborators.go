package nodes

import (
	"context"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/lorcraft-poc/server/internal/agent/graph/parsers"
	"github.com/lorcraft-poc/server/internal/agent/graph/prompts"
	"github.com/lorcraft-poc/server/internal/agent/model"
	logx "github.com/lorcraft-poc/server/pkg/logger"
)

// logUsage records token usage and USD cost for one model invocation.
func logUsage(role, modelName string, out *schema.Message) {
	if out == nil || out.ResponseMeta == nil || out.ResponseMeta.Usage == nil {
		return
	}
	usage := out.ResponseMeta.Usage
	inC, outC, totalC := model.ComputeCost(usage, model.ResolvePricing(modelName))
	logx.Debug().
		Str("role", role).
		Str("model", modelName).
		Int("prompt_tokens", usage.PromptTokens).
		Int("completion_tokens", usage.CompletionTokens).
		Int("total_tokens", usage.TotalTokens).
		Float64("input_cost_usd", inC).
		Float64("output_cost_usd", outC).
		Float64("total_cost_usd", totalC).
		Msg("LLM usage")
}

func invoke(ctx context.Context, cm einomodel.BaseChatModel, role, modelName, prompt string) (string, error) {
	out, err := cm.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		return "", err
	}
	logUsage(role, modelName, out)
	if out == nil {
		return "", fmt.Errorf("%s model returned no message", role)
	}
	return out.Content, nil
}

// isContextWindowError classifies upstream failures caused by the prompt
// exceeding the model's context window.
func isContextWindowError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "context window") || strings.Contains(msg, "context length") {
		return true
	}
	return strings.Contains(msg, "token") &&
		(strings.Contains(msg, "exceed") || strings.Contains(msg, "too large") || strings.Contains(msg, "limit"))
}

// ================ Route decider ================

type llmRouteDecider struct {
	cm        einomodel.BaseChatModel
	modelName string
}

// NewRouteDecider wraps the router model behind model.RouteDecider.
func NewRouteDecider(cms *ChatModels) model.RouteDecider {
	return &llmRouteDecider{cm: cms.Router, modelName: cms.RouterModelName}
}

func (d *llmRouteDecider) Decide(ctx context.Context, history, request string, files []string) (model.RouteTarget, error) {
	prompt, err := prompts.RenderRouter(ctx, history, request, files)
	if err != nil {
		return model.RouteGather, err
	}
	content, err := invoke(ctx, d.cm, "router", d.modelName, prompt)
	if err != nil {
		return model.RouteGather, err
	}
	return parsers.ParseRoute(content), nil
}

// ================ Translator ================

type llmTranslator struct {
	cm        einomodel.BaseChatModel
	modelName string
}

// NewTranslator wraps the translation model behind model.Translator. Parse
// failures degrade to the raw model output, never to an error.
func NewTranslator(cms *ChatModels) model.Translator {
	return &llmTranslator{cm: cms.Translator, modelName: cms.TranslatorModelName}
}

func (t *llmTranslator) Translate(ctx context.Context, text string) (string, error) {
	prompt, err := prompts.RenderTranslation(ctx, text)
	if err != nil {
		return "", err
	}
	content, err := invoke(ctx, t.cm, "translator", t.modelName, prompt)
	if err != nil {
		return "", err
	}
	return parsers.ParseTranslation(content), nil
}

// ================ Completeness classifier ================

type llmClassifier struct {
	cm        einomodel.BaseChatModel
	modelName string
}

// NewCompletenessClassifier wraps the classifier model behind
// model.CompletenessClassifier. Malformed structured output surfaces as
// parsers.ErrMalformed so the node can fall back to a generic ask.
func NewCompletenessClassifier(cms *ChatModels) model.CompletenessClassifier {
	return &llmClassifier{cm: cms.Classifier, modelName: cms.ClassifierModelName}
}

func (c *llmClassifier) Check(ctx context.Context, in model.CompletenessInput) (model.CompletenessResult, error) {
	prompt, err := prompts.RenderCompleteness(ctx, in)
	if err != nil {
		return model.CompletenessResult{}, err
	}
	content, err := invoke(ctx, c.cm, "classifier", c.modelName, prompt)
	if err != nil {
		return model.CompletenessResult{}, err
	}
	return parsers.ParseCompleteness(content)
}

// ================ Conversation extractor ================

type llmExtractor struct {
	cm        einomodel.BaseChatModel
	modelName string
}

// NewConversationExtractor wraps the extraction model behind
// model.ConversationExtractor. Context-window failures are wrapped with
// model.ErrContextTooLong so the gather node can retry with a shrunk view.
func NewConversationExtractor(cms *ChatModels) model.ConversationExtractor {
	return &llmExtractor{cm: cms.Extractor, modelName: cms.ExtractorModelName}
}

func (e *llmExtractor) Extract(ctx context.Context, request, history string) (model.Extraction, error) {
	prompt, err := prompts.RenderConversation(ctx, request, history)
	if err != nil {
		return model.Extraction{}, err
	}
	content, err := invoke(ctx, e.cm, "extractor", e.modelName, prompt)
	if err != nil {
		if isContextWindowError(err) {
			return model.Extraction{}, fmt.Errorf("%w: %v", model.ErrContextTooLong, err)
		}
		return model.Extraction{}, err
	}
	return parsers.ParseExtraction(content), nil
}

// ================ Document generator ================

type llmGenerator struct {
	cm        einomodel.BaseChatModel
	modelName string
}

// NewDocumentGenerator wraps the generation model behind model.DocumentGenerator.
func NewDocumentGenerator(cms *ChatModels) model.DocumentGenerator {
	return &llmGenerator{cm: cms.Generator, modelName: cms.GeneratorModelName}
}

func (g *llmGenerator) Generate(ctx context.Context, consolidated string) (string, error) {
	prompt, err := prompts.RenderGenerate(ctx, consolidated)
	if err != nil {
		return "", err
	}
	content, err := invoke(ctx, g.cm, "generator", g.modelName, prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("generator returned empty document")
	}
	return content, nil
}
