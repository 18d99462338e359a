package llm

// Provider constants
const (
	// DefaultProvider is the default LLM provider
	DefaultProvider = ProviderOpenAI

	// ProviderOpenAI represents the OpenAI provider
	ProviderOpenAI = "openai"

	// ProviderOllama represents the Ollama provider
	ProviderOllama = "ollama"

	// ProviderAnthropic represents the Anthropic provider
	ProviderAnthropic = "anthropic"

	// ProviderGemini represents the Google Gemini provider
	ProviderGemini = "gemini"

	// ProviderBedrock represents AWS Bedrock OpenAI-compatible runtime
	ProviderBedrock = "bedrock"

	// ProviderIncreco represents the Increco managed inference service.
	// Uses fine-tuned models optimized for architecture extraction.
	// OpenAI-compatible API; requires INCRECO_API_KEY.
	ProviderIncreco = "increco"
)

// DefaultOllamaURL is the default URL for Ollama server
const DefaultOllamaURL = "http://localhost:11434"

// DefaultIncrecoURL is the default base URL for the Increco managed inference service.
// Served via RunPod Serverless vLLM (OpenAI-compatible).
// Override per-project via llm.increco.base_url in .increco.yaml.
const DefaultIncrecoURL = "https://api.runpod.ai/v2/increco-brain/openai/v1"

// Increco Brain model constants (fine-tuned for architecture extraction)
const (
	// ModelIncrecoBrain is the primary fine-tuned model (Qwen2.5-Coder-7B based)
	ModelIncrecoBrain = "increco-brain"

	// ModelIncrecoBrainLite is the lightweight variant (Phi-4-Mini based)
	ModelIncrecoBrainLite = "increco-brain-lite"
)

// DefaultModelForProvider returns the default model ID for a given provider.
// This is a convenience wrapper around GetDefaultModelID in models.go.
func DefaultModelForProvider(provider string) string {
	return GetDefaultModelID(provider)
}

// InferProviderFromModel attempts to determine the provider from a model name.
// This is a convenience wrapper around InferProvider in models.go.
func InferProviderFromModel(model string) (string, bool) {
	return InferProvider(model)
}
