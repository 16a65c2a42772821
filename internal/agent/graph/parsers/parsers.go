package parsers

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lorcraft-poc/server/internal/agent/model"
	logx "github.com/lorcraft-poc/server/pkg/logger"
)

// basic safety limits to avoid pathological inputs
const (
	maxContentLen = 128 * 1024 // 128KB
	maxErrSnippet = 200
)

// ErrMalformed reports structured output that could not be interpreted. Each
// parser degrades to a safe default instead of failing the turn; callers that
// need to distinguish use errors.Is.
var ErrMalformed = fmt.Errorf("malformed structured output")

// extractJSON locates the JSON object in model output, tolerating markdown
// code fences and prose around it.
func extractJSON(content string) (string, bool) {
	s := strings.TrimSpace(content)
	if len(s) > maxContentLen {
		logx.Warn().
			Str("component", "parsers").
			Int("max_len", maxContentLen).
			Int("orig_len", len(s)).
			Msg("content truncated due to size limit")
		s = s[:maxContentLen]
	}
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

func safeSnippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxErrSnippet {
		return s
	}
	return s[:maxErrSnippet]
}

// ParseRoute maps router model output to a route target by substring match.
// Anything ambiguous or unrecognized falls back to the gather path; a
// document must never be generated off an unparseable routing decision.
func ParseRoute(content string) model.RouteTarget {
	lower := strings.ToLower(content)
	switch {
	case strings.Contains(lower, string(model.RouteCheckCompleteness)):
		return model.RouteCheckCompleteness
	case strings.Contains(lower, string(model.RouteRetrieve)):
		return model.RouteRetrieve
	case strings.Contains(lower, string(model.RouteGather)):
		return model.RouteGather
	default:
		logx.Warn().
			Str("component", "parsers").
			Str("content", safeSnippet(content)).
			Msg("unrecognized route decision, defaulting to gather")
		return model.RouteGather
	}
}

// ParseTranslation reads {"translated_text": ...}; on any parse failure it
// returns the raw model output verbatim so translation never fails a turn.
func ParseTranslation(content string) string {
	raw, ok := extractJSON(content)
	if !ok {
		logx.Debug().Str("component", "parsers").Msg("translation output not JSON, using raw response")
		return content
	}
	var out struct {
		TranslatedText string `json:"translated_text"`
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil || strings.TrimSpace(out.TranslatedText) == "" {
		logx.Debug().Str("component", "parsers").Msg("translation JSON parse failed, using raw response")
		return content
	}
	return out.TranslatedText
}

// ParseCompleteness reads {"missing_fields": [...], "follow_up_question": ...}.
// Malformed output returns ErrMalformed; the completeness node maps that to
// "cannot determine, ask generically" rather than treating it as complete.
func ParseCompleteness(content string) (model.CompletenessResult, error) {
	raw, ok := extractJSON(content)
	if !ok {
		return model.CompletenessResult{}, fmt.Errorf("%w: %s", ErrMalformed, safeSnippet(content))
	}
	var out struct {
		MissingFields    []string `json:"missing_fields"`
		FollowUpQuestion string   `json:"follow_up_question"`
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return model.CompletenessResult{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	missing := make([]string, 0, len(out.MissingFields))
	for _, f := range out.MissingFields {
		if v := strings.TrimSpace(f); v != "" {
			missing = append(missing, v)
		}
	}
	return model.CompletenessResult{
		MissingFields:    missing,
		FollowUpQuestion: strings.TrimSpace(out.FollowUpQuestion),
	}, nil
}

// ParseExtraction reads the gather-path JSON with extracted fields and the
// friendly reply. When the JSON cannot be read at all, the raw content is
// kept as the reply so the user still gets an answer.
func ParseExtraction(content string) model.Extraction {
	raw, ok := extractJSON(content)
	if !ok {
		logx.Warn().Str("component", "parsers").Msg("extraction output not JSON, using raw content as reply")
		return model.Extraction{Reply: strings.TrimSpace(content)}
	}
	var out struct {
		ClientName     string `json:"client_name"`
		ClientPronouns string `json:"client_pronouns"`
		ClientGender   string `json:"client_gender"`
		ClientEndeavor string `json:"client_endeavor"`
		Questionnaire  string `json:"lor_questionnaire"`
		Response       string `json:"response"`
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		logx.Warn().Err(err).Str("component", "parsers").Msg("extraction JSON parse failed, using raw content as reply")
		return model.Extraction{Reply: strings.TrimSpace(content)}
	}
	return model.Extraction{
		Fields: model.KnownFields{
			ClientName:     strings.TrimSpace(out.ClientName),
			ClientPronouns: strings.TrimSpace(out.ClientPronouns),
			ClientGender:   strings.TrimSpace(out.ClientGender),
			ClientEndeavor: strings.TrimSpace(out.ClientEndeavor),
			Questionnaire:  strings.TrimSpace(out.Questionnaire),
		},
		Reply: strings.TrimSpace(out.Response),
	}
}
