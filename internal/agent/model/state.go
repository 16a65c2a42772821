package model

import (
	"strings"

	"github.com/cloudwego/eino/schema"
)

// NotProvided is the sentinel used when a required field has no resolved
// value yet. Classifier prompts receive this instead of an empty string.
const NotProvided = "Not provided"

// Field names for the fixed set of information collected about the client.
const (
	FieldClientName     = "client_name"
	FieldClientPronouns = "client_pronouns"
	FieldClientGender   = "client_gender"
	FieldClientEndeavor = "client_endeavor"
	FieldQuestionnaire  = "lor_questionnaire"
)

// RequiredMinimumFields must be resolved before a letter can be generated.
func RequiredMinimumFields() []string {
	return []string{FieldClientName, FieldClientPronouns}
}

// RequiredRoutingFields is the stricter set the router checks before skipping
// straight to the completeness confirmation pass.
func RequiredRoutingFields() []string {
	return []string{FieldClientName, FieldClientPronouns, FieldClientEndeavor, FieldQuestionnaire}
}

// KnownFields holds everything extracted about the client so far. Values are
// monotonic: once non-empty they are only replaced by other non-empty values.
type KnownFields struct {
	ClientName     string `json:"client_name,omitempty"`
	ClientPronouns string `json:"client_pronouns,omitempty"`
	ClientGender   string `json:"client_gender,omitempty"`
	ClientEndeavor string `json:"client_endeavor,omitempty"`
	Questionnaire  string `json:"lor_questionnaire,omitempty"`
}

// Get returns the raw value for a field name, empty when unset or unknown.
func (k KnownFields) Get(field string) string {
	switch field {
	case FieldClientName:
		return k.ClientName
	case FieldClientPronouns:
		return k.ClientPronouns
	case FieldClientGender:
		return k.ClientGender
	case FieldClientEndeavor:
		return k.ClientEndeavor
	case FieldQuestionnaire:
		return k.Questionnaire
	}
	return ""
}

// Resolved returns the field value or the NotProvided sentinel.
func (k KnownFields) Resolved(field string) string {
	if v := strings.TrimSpace(k.Get(field)); v != "" {
		return v
	}
	return NotProvided
}

// Has reports whether a field carries a usable value.
func (k KnownFields) Has(field string) bool {
	return strings.TrimSpace(k.Get(field)) != ""
}

// HasAll reports whether every listed field is resolved.
func (k KnownFields) HasAll(fields []string) bool {
	for _, f := range fields {
		if !k.Has(f) {
			return false
		}
	}
	return true
}

// Missing returns the subset of fields that have no usable value, in the
// order given.
func (k KnownFields) Missing(fields []string) []string {
	var missing []string
	for _, f := range fields {
		if !k.Has(f) {
			missing = append(missing, f)
		}
	}
	return missing
}

// Merge applies incoming values monotonically: only non-empty incoming values
// overwrite, so an extractor returning empty for a field never erases what an
// earlier turn established.
func (k *KnownFields) Merge(in KnownFields) {
	merge := func(dst *string, v string) {
		if strings.TrimSpace(v) != "" {
			*dst = v
		}
	}
	merge(&k.ClientName, in.ClientName)
	merge(&k.ClientPronouns, in.ClientPronouns)
	merge(&k.ClientGender, in.ClientGender)
	merge(&k.ClientEndeavor, in.ClientEndeavor)
	merge(&k.Questionnaire, in.Questionnaire)
}

// Snippet is one retrieved context fragment with its provenance metadata.
type Snippet struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ConversationState is the record threaded through one conversation. It is
// mutated only by applying StatePatch values, so every field follows a
// defined merge rule: replace-always, append-only, or monotonic.
type ConversationState struct {
	ThreadID string `json:"thread_id"`

	// Request is the latest raw user utterance, overwritten every turn.
	Request string `json:"request"`

	// History is append-only and never truncated in storage; collaborators
	// read it through the bounded RecentHistory view.
	History []*schema.Message `json:"conversation_history"`

	// UploadedFiles accumulates document references across the conversation;
	// TurnFiles holds only the references supplied with the current turn.
	UploadedFiles []string `json:"uploaded_files,omitempty"`
	TurnFiles     []string `json:"turn_files,omitempty"`

	// RetrievedContext is fully replaced each time retrieval runs.
	RetrievedContext  []Snippet `json:"retrieved_context,omitempty"`
	TranslatedContext string    `json:"translated_context,omitempty"`

	Known KnownFields `json:"known_fields"`

	// MissingFields is recomputed on every completeness check, never merged
	// across turns. FollowUpQuestion is only meaningful while MissingFields
	// is non-empty.
	MissingFields    []string `json:"missing_fields,omitempty"`
	FollowUpQuestion string   `json:"follow_up_question,omitempty"`

	ConversationalResponse string `json:"conversational_response,omitempty"`
	GeneratedDocument      string `json:"generated_document,omitempty"`
}

// NewConversationState creates the empty state for a fresh thread.
func NewConversationState(threadID string) *ConversationState {
	return &ConversationState{ThreadID: threadID}
}

// StatePatch is the partial update a node returns. Nil pointer fields are
// keys the node does not own and must leave untouched.
type StatePatch struct {
	RetrievedContext       *[]Snippet
	TranslatedContext      *string
	Known                  *KnownFields
	MissingFields          *[]string
	FollowUpQuestion       *string
	ConversationalResponse *string
	GeneratedDocument      *string

	// AppendHistory adds messages to the conversation log.
	AppendHistory []*schema.Message
}

// Ptr is a convenience for building patches.
func Ptr[T any](v T) *T { return &v }

// Apply merges a patch into the state under the per-field contract.
func (s *ConversationState) Apply(p StatePatch) {
	if p.RetrievedContext != nil {
		s.RetrievedContext = *p.RetrievedContext
	}
	if p.TranslatedContext != nil {
		s.TranslatedContext = *p.TranslatedContext
	}
	if p.Known != nil {
		s.Known.Merge(*p.Known)
	}
	if p.MissingFields != nil {
		s.MissingFields = *p.MissingFields
	}
	if p.FollowUpQuestion != nil {
		s.FollowUpQuestion = *p.FollowUpQuestion
	}
	if p.ConversationalResponse != nil {
		s.ConversationalResponse = *p.ConversationalResponse
	}
	if p.GeneratedDocument != nil {
		s.GeneratedDocument = *p.GeneratedDocument
	}
	if len(p.AppendHistory) > 0 {
		s.History = append(s.History, p.AppendHistory...)
	}
}

// BeginTurn records the incoming user turn: the request is overwritten, the
// user message is appended to history, file references accumulate, and the
// previous turn's transient outcomes are cleared.
func (s *ConversationState) BeginTurn(text string, fileRefs []string) {
	s.Request = text
	if strings.TrimSpace(text) != "" {
		s.History = append(s.History, schema.UserMessage(text))
	}
	s.TurnFiles = fileRefs
	s.UploadedFiles = append(s.UploadedFiles, fileRefs...)
	s.ConversationalResponse = ""
	s.GeneratedDocument = ""
}

// RecentHistory returns the bounded most-recent view used when talking to
// collaborators, so prompt size stays bounded while storage never truncates.
func (s *ConversationState) RecentHistory(maxMessages int) []*schema.Message {
	if maxMessages <= 0 || len(s.History) <= maxMessages {
		return s.History
	}
	return s.History[len(s.History)-maxMessages:]
}
