package model

// ================ Config ================

// ConversationConfig bounds how much of the thread is replayed to models and
// how long persisted per-thread state lives in Redis.
type ConversationConfig struct {
	TTL     string `envconfig:"CONVERSATION_TTL" default:"24h"`
	History struct {
		MaxMessages    int `envconfig:"CONVERSATION_HISTORY_MAX_MESSAGES" default:"10"`
		ShrunkMessages int `envconfig:"CONVERSATION_HISTORY_SHRUNK_MESSAGES" default:"3"`
	}
}

// RouterModelConfig drives the route-decision model.
type RouterModelConfig struct {
	Model       string  `envconfig:"ROUTER_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"ROUTER_MAX_TOKENS" default:"512"`
	Temperature float32 `envconfig:"ROUTER_TEMPERATURE" default:"0.0"`
}

// ExtractorModelConfig drives the gather-path extraction model.
type ExtractorModelConfig struct {
	Model       string  `envconfig:"EXTRACTOR_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"EXTRACTOR_MAX_TOKENS" default:"2000"`
	Temperature float32 `envconfig:"EXTRACTOR_TEMPERATURE" default:"0.1"`
}

// TranslationModelConfig uses a faster model for translation so the rest of
// the pipeline's model choices are unaffected.
type TranslationModelConfig struct {
	Model       string  `envconfig:"TRANSLATION_MODEL" default:"gemini-2.5-flash-lite"`
	MaxTokens   int     `envconfig:"TRANSLATION_MAX_TOKENS" default:"4000"`
	Temperature float32 `envconfig:"TRANSLATION_TEMPERATURE" default:"0.0"`
}

// ClassifierModelConfig drives the completeness check.
type ClassifierModelConfig struct {
	Model       string  `envconfig:"CLASSIFIER_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"CLASSIFIER_MAX_TOKENS" default:"1000"`
	Temperature float32 `envconfig:"CLASSIFIER_TEMPERATURE" default:"0.0"`
}

// GeneratorModelConfig drives the final letter draft.
type GeneratorModelConfig struct {
	Model       string  `envconfig:"GENERATOR_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"GENERATOR_MAX_TOKENS" default:"8000"`
	Temperature float32 `envconfig:"GENERATOR_TEMPERATURE" default:"0.3"`
}

// RetrievalConfig bounds the empty-result retry loop.
type RetrievalConfig struct {
	MaxAttempts int `envconfig:"RETRIEVAL_MAX_ATTEMPTS" default:"3"`
}
