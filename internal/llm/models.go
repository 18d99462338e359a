package llm

import (
	"os"
	"strings"
)

// ModelCategory classifies models by their capability/cost tradeoff.
// Kept on each registry entry as descriptive metadata even though no
// category-based recommendation path is wired (increco selects models
// purely by provider, not by per-operation role).
type ModelCategory string

const (
	CategoryReasoning ModelCategory = "reasoning" // o3, opus, gpt-5, 2.5-pro - expensive, most capable
	CategoryBalanced  ModelCategory = "balanced"  // gpt-5-mini, sonnet, flash - good balance
	CategoryFast      ModelCategory = "fast"      // nano, haiku, flash-lite - cheap, fast
)

// Model represents a complete model definition including metadata and pricing.
// This is the single source of truth for all model information.
type Model struct {
	ID               string        // Canonical model ID (e.g., "gpt-5-mini")
	Provider         string        // Provider display name (e.g., "OpenAI")
	ProviderID       string        // Internal provider ID (e.g., "openai")
	Aliases          []string      // Alternative IDs including dated versions (e.g., "gpt-5-mini-2025-08-07")
	InputPer1M       float64       // $ per 1M input tokens
	OutputPer1M      float64       // $ per 1M output tokens
	IsDefault        bool          // Whether this is the default model for its provider
	SupportsThinking bool          // Whether the model supports extended thinking mode
	Category         ModelCategory // Capability category: reasoning, balanced, fast
	MaxInputTokens   int           // Maximum input context window in tokens (0 = not specified)
}

// DefaultMaxInputTokens is a conservative context size for a model that
// doesn't specify MaxInputTokens. No code in this module reads it.
const DefaultMaxInputTokens = 8192

// ModelRegistry is the single source of truth for all supported models.
// Add new models here - everything else derives from this registry.
// Prices last updated: 2025-12 (via web research)
var ModelRegistry = []Model{
	// ============================================
	// OpenAI Models (2025)
	// https://platform.openai.com/docs/models
	// ============================================
	{
		ID:               "o3",
		Provider:         "OpenAI",
		ProviderID:       ProviderOpenAI,
		InputPer1M:       0.40,
		OutputPer1M:      1.60,
		SupportsThinking: true,
		Category:         CategoryReasoning,
		MaxInputTokens:   200_000,
	},
	{
		ID:               "o4-mini",
		Provider:         "OpenAI",
		ProviderID:       ProviderOpenAI,
		InputPer1M:       1.10,
		OutputPer1M:      4.40,
		SupportsThinking: true,
		Category:         CategoryReasoning,
		MaxInputTokens:   200_000,
	},
	{
		ID:             "gpt-5",
		Provider:       "OpenAI",
		ProviderID:     ProviderOpenAI,
		InputPer1M:     1.25,
		OutputPer1M:    10.00,
		Category:       CategoryReasoning,
		MaxInputTokens: 128_000,
	},
	{
		ID:             "gpt-5-mini",
		Provider:       "OpenAI",
		ProviderID:     ProviderOpenAI,
		InputPer1M:     0.25,
		OutputPer1M:    2.00,
		IsDefault:      true,
		Category:       CategoryBalanced,
		MaxInputTokens: 128_000,
	},
	{
		ID:             "gpt-5-nano",
		Provider:       "OpenAI",
		ProviderID:     ProviderOpenAI,
		InputPer1M:     0.05,
		OutputPer1M:    0.40,
		Category:       CategoryFast,
		MaxInputTokens: 128_000,
	},
	{
		ID:             "gpt-4.1",
		Provider:       "OpenAI",
		ProviderID:     ProviderOpenAI,
		InputPer1M:     2.00,
		OutputPer1M:    8.00,
		Category:       CategoryReasoning,
		MaxInputTokens: 1_000_000,
	},
	{
		ID:             "gpt-4.1-mini",
		Provider:       "OpenAI",
		ProviderID:     ProviderOpenAI,
		InputPer1M:     0.40,
		OutputPer1M:    1.60,
		Category:       CategoryBalanced,
		MaxInputTokens: 1_000_000,
	},
	{
		ID:             "gpt-4.1-nano",
		Provider:       "OpenAI",
		ProviderID:     ProviderOpenAI,
		InputPer1M:     0.10,
		OutputPer1M:    0.40,
		Category:       CategoryFast,
		MaxInputTokens: 1_000_000,
	},

	// ============================================
	// Anthropic Claude 4.x Models (2025)
	// https://docs.anthropic.com/en/docs/about-claude/models
	// ============================================
	{
		ID:               "claude-sonnet-4-5",
		Provider:         "Anthropic",
		ProviderID:       ProviderAnthropic,
		Aliases:          []string{"claude-sonnet-4-5-20250929"},
		InputPer1M:       3.00,
		OutputPer1M:      15.00,
		IsDefault:        true,
		SupportsThinking: true,
		Category:         CategoryBalanced,
		MaxInputTokens:   200_000,
	},
	{
		ID:               "claude-opus-4-5",
		Provider:         "Anthropic",
		ProviderID:       ProviderAnthropic,
		Aliases:          []string{"claude-opus-4-5-20251101"},
		InputPer1M:       5.00,
		OutputPer1M:      25.00,
		SupportsThinking: true,
		Category:         CategoryReasoning,
		MaxInputTokens:   200_000,
	},
	{
		ID:               "claude-haiku-4-5",
		Provider:         "Anthropic",
		ProviderID:       ProviderAnthropic,
		Aliases:          []string{"claude-haiku-4-5-20251001"},
		InputPer1M:       1.00,
		OutputPer1M:      5.00,
		SupportsThinking: true,
		Category:         CategoryFast,
		MaxInputTokens:   200_000,
	},
	{
		ID:               "claude-sonnet-4",
		Provider:         "Anthropic",
		ProviderID:       ProviderAnthropic,
		Aliases:          []string{"claude-sonnet-4-20250514"},
		InputPer1M:       3.00,
		OutputPer1M:      15.00,
		SupportsThinking: true,
		Category:         CategoryBalanced,
		MaxInputTokens:   200_000,
	},
	{
		ID:               "claude-opus-4-1",
		Provider:         "Anthropic",
		ProviderID:       ProviderAnthropic,
		Aliases:          []string{"claude-opus-4-1-20250805"},
		InputPer1M:       15.00,
		OutputPer1M:      75.00,
		SupportsThinking: true,
		Category:         CategoryReasoning,
		MaxInputTokens:   200_000,
	},

	// ============================================
	// AWS Bedrock OpenAI-Compatible Models (curated)
	// Sources:
	// - https://docs.aws.amazon.com/bedrock/latest/userguide/models-supported.html
	// - https://docs.aws.amazon.com/bedrock/latest/userguide/model-ids.html
	// ============================================
	{
		ID:         "anthropic.claude-sonnet-4-5-20250929-v1:0",
		Provider:   "AWS Bedrock",
		ProviderID: ProviderBedrock,
		Aliases: []string{
			"us.anthropic.claude-sonnet-4-5-20250929-v1:0",
			"eu.anthropic.claude-sonnet-4-5-20250929-v1:0",
			"apac.anthropic.claude-sonnet-4-5-20250929-v1:0",
		},
		InputPer1M:       3.00,
		OutputPer1M:      15.00,
		IsDefault:        true,
		SupportsThinking: true,
		Category:         CategoryBalanced,
		MaxInputTokens:   200_000,
	},
	{
		ID:               "anthropic.claude-opus-4-6-v1",
		Provider:         "AWS Bedrock",
		ProviderID:       ProviderBedrock,
		SupportsThinking: true,
		Category:         CategoryReasoning,
		MaxInputTokens:   200_000,
	},
	{
		ID:               "anthropic.claude-opus-4-5-20251101-v1:0",
		Provider:         "AWS Bedrock",
		ProviderID:       ProviderBedrock,
		SupportsThinking: true,
		Category:         CategoryReasoning,
		MaxInputTokens:   200_000,
	},
	{
		ID:               "anthropic.claude-opus-4-1-20250805-v1:0",
		Provider:         "AWS Bedrock",
		ProviderID:       ProviderBedrock,
		InputPer1M:       15.00,
		OutputPer1M:      75.00,
		SupportsThinking: true,
		Category:         CategoryReasoning,
		MaxInputTokens:   200_000,
	},
	{
		ID:               "anthropic.claude-haiku-4-5-20251001-v1:0",
		Provider:         "AWS Bedrock",
		ProviderID:       ProviderBedrock,
		SupportsThinking: true,
		Category:         CategoryFast,
		MaxInputTokens:   200_000,
	},
	{
		ID:             "amazon.nova-premier-v1:0",
		Provider:       "AWS Bedrock",
		ProviderID:     ProviderBedrock,
		Category:       CategoryReasoning,
		MaxInputTokens: 200_000,
	},
	{
		ID:             "amazon.nova-pro-v1:0",
		Provider:       "AWS Bedrock",
		ProviderID:     ProviderBedrock,
		InputPer1M:     0.80,
		OutputPer1M:    3.20,
		Category:       CategoryBalanced,
		MaxInputTokens: 200_000,
	},
	{
		ID:             "amazon.nova-lite-v1:0",
		Provider:       "AWS Bedrock",
		ProviderID:     ProviderBedrock,
		Category:       CategoryBalanced,
		MaxInputTokens: 200_000,
	},
	{
		ID:             "amazon.nova-micro-v1:0",
		Provider:       "AWS Bedrock",
		ProviderID:     ProviderBedrock,
		Category:       CategoryFast,
		MaxInputTokens: 200_000,
	},
	{
		ID:             "meta.llama4-maverick-17b-instruct-v1:0",
		Provider:       "AWS Bedrock",
		ProviderID:     ProviderBedrock,
		Category:       CategoryBalanced,
		MaxInputTokens: 128_000,
	},
	{
		ID:             "meta.llama4-scout-17b-instruct-v1:0",
		Provider:       "AWS Bedrock",
		ProviderID:     ProviderBedrock,
		Category:       CategoryBalanced,
		MaxInputTokens: 128_000,
	},
	{
		ID:             "meta.llama3-3-70b-instruct-v1:0",
		Provider:       "AWS Bedrock",
		ProviderID:     ProviderBedrock,
		InputPer1M:     0.72,
		OutputPer1M:    0.72,
		Category:       CategoryFast,
		MaxInputTokens: 128_000,
	},

	// ============================================
	// Google Gemini Models (2025)
	// https://ai.google.dev/gemini-api/docs/models
	// Note: Gemini 1.5 retired April 2025
	// ============================================
	{
		ID:               "gemini-3-pro-preview",
		Provider:         "Google",
		ProviderID:       ProviderGemini,
		InputPer1M:       2.00,
		OutputPer1M:      12.00,
		SupportsThinking: true,
		Category:         CategoryReasoning,
		MaxInputTokens:   1_000_000,
	},
	{
		ID:               "gemini-3-flash-preview",
		Provider:         "Google",
		ProviderID:       ProviderGemini,
		InputPer1M:       0.50,
		OutputPer1M:      3.00,
		SupportsThinking: true,
		Category:         CategoryBalanced,
		MaxInputTokens:   1_000_000,
	},
	{
		ID:               "gemini-2.5-pro",
		Provider:         "Google",
		ProviderID:       ProviderGemini,
		InputPer1M:       1.25,
		OutputPer1M:      10.00,
		SupportsThinking: true,
		Category:         CategoryReasoning,
		MaxInputTokens:   1_000_000,
	},
	{
		ID:               "gemini-2.5-flash",
		Provider:         "Google",
		ProviderID:       ProviderGemini,
		InputPer1M:       0.30,
		OutputPer1M:      2.50,
		SupportsThinking: true,
		Category:         CategoryBalanced,
		MaxInputTokens:   1_000_000,
	},
	{
		ID:               "gemini-2.5-flash-lite",
		Provider:         "Google",
		ProviderID:       ProviderGemini,
		InputPer1M:       0.10,
		OutputPer1M:      0.40,
		SupportsThinking: true,
		Category:         CategoryFast,
		MaxInputTokens:   1_000_000,
	},
	{
		ID:             "gemini-2.0-flash",
		Provider:       "Google",
		ProviderID:     ProviderGemini,
		InputPer1M:     0.10,
		OutputPer1M:    0.40,
		IsDefault:      true,
		Category:       CategoryBalanced,
		MaxInputTokens: 1_000_000,
	},
	{
		ID:             "gemini-2.0-flash-lite",
		Provider:       "Google",
		ProviderID:     ProviderGemini,
		InputPer1M:     0.075,
		OutputPer1M:    0.30,
		Category:       CategoryFast,
		MaxInputTokens: 1_000_000,
	},

	// ============================================
	// Ollama Models (local, no pricing)
	// ============================================
	{
		ID:             "llama3.2",
		Provider:       "Ollama",
		ProviderID:     ProviderOllama,
		IsDefault:      true,
		Category:       CategoryBalanced,
		MaxInputTokens: 128_000,
	},

	// ============================================
	// Increco Managed Models (fine-tuned, hosted)
	// Optimized for architecture extraction tasks.
	// Requires INCRECO_API_KEY. Endpoint configurable via llm.increco.base_url.
	// ============================================
	{
		ID:             "increco-brain",
		Provider:       "Increco",
		ProviderID:     ProviderIncreco,
		Aliases:        []string{"increco-brain-7b"},
		IsDefault:      true,
		Category:       CategoryBalanced,
		MaxInputTokens: 32_768,
	},
	{
		ID:             "increco-brain-lite",
		Provider:       "Increco",
		ProviderID:     ProviderIncreco,
		Aliases:        []string{"increco-brain-4b"},
		Category:       CategoryFast,
		MaxInputTokens: 32_768,
	},
}

// modelIndex is built at init time for fast lookups
var modelIndex map[string]*Model

func init() {
	buildModelIndex()
}

func buildModelIndex() {
	modelIndex = make(map[string]*Model)
	for i := range ModelRegistry {
		m := &ModelRegistry[i]
		// Index by canonical ID
		modelIndex[m.ID] = m
		// Index by aliases
		for _, alias := range m.Aliases {
			modelIndex[alias] = m
		}
	}
}

// GetModel returns the model definition for a given model ID or alias.
// Returns nil if the model is not found.
func GetModel(modelID string) *Model {
	return modelIndex[modelID]
}

// GetDefaultModel returns the default model for a provider.
func GetDefaultModel(providerID string) *Model {
	for i := range ModelRegistry {
		m := &ModelRegistry[i]
		if m.ProviderID == providerID && m.IsDefault {
			return m
		}
	}
	return nil
}

// GetDefaultModelID returns the default model ID for a provider.
func GetDefaultModelID(providerID string) string {
	m := GetDefaultModel(providerID)
	if m != nil {
		return m.ID
	}
	return ""
}

// InferProvider attempts to determine the provider from a model name.
// Returns the provider ID and true if inference succeeded.
func InferProvider(modelID string) (string, bool) {
	// Check model registry first (most accurate)
	if m := GetModel(modelID); m != nil {
		return m.ProviderID, true
	}

	// Fallback to prefix-based inference for unknown models
	switch {
	case strings.HasPrefix(modelID, "gpt-"),
		strings.HasPrefix(modelID, "o1-"),
		strings.HasPrefix(modelID, "o3"),
		strings.HasPrefix(modelID, "o4-"):
		return ProviderOpenAI, true
	case strings.HasPrefix(modelID, "claude-"):
		return ProviderAnthropic, true
	case strings.HasPrefix(modelID, "anthropic."),
		strings.HasPrefix(modelID, "amazon."),
		strings.HasPrefix(modelID, "meta."),
		strings.HasPrefix(modelID, "mistral."),
		strings.HasPrefix(modelID, "cohere."),
		strings.HasPrefix(modelID, "ai21."),
		strings.HasPrefix(modelID, "deepseek."),
		strings.HasPrefix(modelID, "openai."),
		strings.HasPrefix(modelID, "google."),
		strings.HasPrefix(modelID, "qwen."),
		strings.HasPrefix(modelID, "moonshot."),
		strings.HasPrefix(modelID, "minimax."),
		strings.HasPrefix(modelID, "nvidia."),
		strings.HasPrefix(modelID, "stability."),
		strings.HasPrefix(modelID, "writer."),
		strings.HasPrefix(modelID, "us."),
		strings.HasPrefix(modelID, "eu."),
		strings.HasPrefix(modelID, "apac."):
		return ProviderBedrock, true
	case strings.HasPrefix(modelID, "gemini-"):
		return ProviderGemini, true
	case strings.HasPrefix(modelID, "increco-brain"):
		return ProviderIncreco, true
	case strings.HasPrefix(modelID, "llama"), strings.HasPrefix(modelID, "mistral"), strings.HasPrefix(modelID, "codellama"), strings.HasPrefix(modelID, "phi"):
		return ProviderOllama, true
	}

	return "", false
}

// ModelSupportsThinking returns true if the model supports extended thinking mode.
func ModelSupportsThinking(modelID string) bool {
	m := GetModel(modelID)
	if m == nil {
		return false
	}
	return m.SupportsThinking
}

// providerEnvVars is the SINGLE SOURCE OF TRUTH for provider environment variable names.
// All code needing env var names MUST use GetEnvVarForProvider() or GetEnvValueForProvider().
var providerEnvVars = map[string]string{
	ProviderOpenAI:    "OPENAI_API_KEY",
	ProviderAnthropic: "ANTHROPIC_API_KEY",
	ProviderBedrock:   "BEDROCK_API_KEY",
	ProviderGemini:    "GEMINI_API_KEY",
	ProviderOllama:    "",                 // Local, no API key needed
	ProviderIncreco:  "INCRECO_API_KEY", // Managed inference service
}

// GetEnvVarForProvider returns the environment variable name for a provider's API key.
// Returns empty string for local providers (Ollama) or unknown providers.
func GetEnvVarForProvider(providerID string) string {
	return providerEnvVars[providerID]
}

// GetEnvValueForProvider returns the API key value from environment variables.
// Handles provider-specific fallbacks (e.g., GOOGLE_API_KEY for Gemini).
func GetEnvValueForProvider(providerID string) string {
	envVar := providerEnvVars[providerID]
	if envVar == "" {
		return ""
	}

	value := strings.TrimSpace(os.Getenv(envVar))

	// Gemini fallback: also check GOOGLE_API_KEY
	if value == "" && providerID == ProviderGemini {
		value = strings.TrimSpace(os.Getenv("GOOGLE_API_KEY"))
	}
	// Bedrock OpenAI-compatible fallback from AWS docs/examples.
	if value == "" && providerID == ProviderBedrock {
		value = strings.TrimSpace(os.Getenv("AWS_BEARER_TOKEN_BEDROCK"))
	}

	return value
}
