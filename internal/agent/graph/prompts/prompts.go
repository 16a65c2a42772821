package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/lorcraft-poc/server/internal/agent/model"
)

//go:embed template/router_prompt.txt
var routerPrompt string

//go:embed template/completeness_prompt.txt
var completenessPrompt string

//go:embed template/conversation_prompt.txt
var conversationPrompt string

//go:embed template/translation_prompt.txt
var translationPrompt string

//go:embed template/lor_prompt.txt
var lorPrompt string

//go:embed template/retrieval_query.txt
var retrievalQuery string

// render substitutes known tokens with a Replacer (so JSON braces inside the
// templates stay intact) and passes the result through the Eino prompt
// component, which fires prompt callbacks.
func render(ctx context.Context, template string, pairs ...string) (string, error) {
	content := strings.NewReplacer(pairs...).Replace(template)

	tpl := prompt.FromMessages(
		schema.FString,
		schema.MessagesPlaceholder("system_messages", false),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"system_messages": []*schema.Message{schema.SystemMessage(content)},
	})
	if err != nil {
		return "", fmt.Errorf("prompt callbacks: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("prompt callbacks: empty result")
	}
	return msgs[0].Content, nil
}

// RenderRouter renders the master routing prompt.
func RenderRouter(ctx context.Context, history, request string, files []string) (string, error) {
	return render(ctx, routerPrompt,
		"{REQUEST}", request,
		"{FILES}", strings.Join(files, ", "),
		"{HISTORY}", history,
	)
}

// RenderCompleteness renders the completeness-check prompt with known fields
// resolved against the NotProvided sentinel.
func RenderCompleteness(ctx context.Context, in model.CompletenessInput) (string, error) {
	return render(ctx, completenessPrompt,
		"{CLIENT_NAME}", in.Known.Resolved(model.FieldClientName),
		"{CLIENT_PRONOUNS}", in.Known.Resolved(model.FieldClientPronouns),
		"{CLIENT_GENDER}", in.Known.Resolved(model.FieldClientGender),
		"{CLIENT_ENDEAVOR}", in.Known.Resolved(model.FieldClientEndeavor),
		"{HISTORY}", in.History,
		"{QUERY}", in.Query,
		"{CONTEXT}", in.Context,
	)
}

// RenderConversation renders the gather-path extraction prompt.
func RenderConversation(ctx context.Context, request, history string) (string, error) {
	return render(ctx, conversationPrompt,
		"{REQUEST}", request,
		"{HISTORY}", history,
	)
}

// RenderTranslation renders the translation prompt.
func RenderTranslation(ctx context.Context, text string) (string, error) {
	return render(ctx, translationPrompt, "{TEXT}", text)
}

// RenderGenerate renders the letter-drafting prompt over consolidated context.
func RenderGenerate(ctx context.Context, consolidated string) (string, error) {
	return render(ctx, lorPrompt, "{CONTEXT}", consolidated)
}

// RetrievalQuery builds the detailed vector-store query for a turn.
func RetrievalQuery(request, history string) string {
	var b strings.Builder
	b.WriteString("User Request: " + request + "\n\n")
	b.WriteString("Conversation History:\n" + history + "\n\n")
	b.WriteString(strings.TrimSpace(retrievalQuery))
	return b.String()
}
