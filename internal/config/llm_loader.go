package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/codeboarding/increco/internal/llm"
	"github.com/spf13/viper"
)

var bedrockHostPattern = regexp.MustCompile(`^bedrock-runtime(-fips)?\.[a-z0-9-]+\.amazonaws\.com(\.cn)?$`)

// isLocalhost returns true if the URL points to a local address (localhost, 127.0.0.1, etc.)
func isLocalhost(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := u.Hostname()
	return host == "localhost" || host == "127.0.0.1" || host == "::1" || host == "0.0.0.0"
}

// LoadLLMConfig loads LLM configuration from Viper and Environment variables.
// It handles precedence: Explicit Viper Config > Environment Variables > Defaults.
// It does NOT handle interactive prompts (that belongs in the CLI layer).
func LoadLLMConfig() (llm.Config, error) {
	// 1. Provider
	provider := viper.GetString("llm.provider")
	if provider == "" {
		provider = llm.DefaultProvider
	}

	llmProvider, err := llm.ValidateProvider(provider)
	if err != nil {
		return llm.Config{}, fmt.Errorf("invalid provider: %w", err)
	}

	// 2. Model
	model := viper.GetString("llm.model")
	if model == "" {
		model = llm.DefaultModelForProvider(string(llmProvider))
	}

	// 3. API Key
	apiKey := ResolveAPIKey(llmProvider)
	// Note: We don't error on missing API key here, as interactive mode might ask for it later.
	// Or non-auth providers (Ollama) might not need it.

	// 4. Base URL
	baseURL, err := ResolveProviderBaseURL(llmProvider)
	if err != nil {
		return llm.Config{}, err
	}

	// 5. Thinking budget (extended thinking for models that support it)
	thinkingBudget := viper.GetInt("llm.thinkingBudget")
	if thinkingBudget == 0 && llm.ModelSupportsThinking(model) {
		thinkingBudget = 8192
	}

	timeout, err := ResolveLLMTimeout()
	if err != nil {
		return llm.Config{}, err
	}

	return llm.Config{
		Provider:       llmProvider,
		Model:          model,
		APIKey:         apiKey,
		BaseURL:        baseURL,
		ThinkingBudget: thinkingBudget,
		Timeout:        timeout,
	}, nil
}

// ResolveProviderBaseURL returns the resolved base URL for a provider.
// For Bedrock it enforces strict Bedrock OpenAI-compatible endpoint validation.
func ResolveProviderBaseURL(provider llm.Provider) (string, error) {
	switch provider {
	case llm.ProviderOllama:
		baseURL := strings.TrimSpace(viper.GetString("llm.ollamaURL"))
		if baseURL == "" {
			baseURL = llm.DefaultOllamaURL
		}
		return baseURL, nil
	case llm.ProviderBedrock:
		return ResolveBedrockBaseURL()
	case llm.ProviderIncreco:
		baseURL := strings.TrimSpace(viper.GetString("llm.increco.base_url"))
		if baseURL == "" {
			baseURL = llm.DefaultIncrecoURL
		}
		return baseURL, nil
	default:
		// For cloud providers (OpenAI, Anthropic, Gemini), only use llm.baseURL
		// if it looks like a real custom endpoint (not localhost Ollama).
		// This prevents a stale llm.baseURL from routing cloud requests to localhost.
		baseURL := strings.TrimSpace(viper.GetString("llm.baseURL"))
		if baseURL != "" && isLocalhost(baseURL) {
			return "", nil
		}
		return baseURL, nil
	}
}

// ResolveBedrockRegion returns Bedrock region from config first, then AWS env fallbacks.
func ResolveBedrockRegion() string {
	region := strings.TrimSpace(viper.GetString("llm.bedrock.region"))
	if region != "" {
		return region
	}
	region = strings.TrimSpace(os.Getenv("AWS_REGION"))
	if region != "" {
		return region
	}
	return strings.TrimSpace(os.Getenv("AWS_DEFAULT_REGION"))
}

// ResolveBedrockBaseURL returns a validated Bedrock OpenAI-compatible base URL.
func ResolveBedrockBaseURL() (string, error) {
	baseURL := strings.TrimSpace(viper.GetString("llm.bedrock.base_url"))
	if baseURL == "" {
		region := ResolveBedrockRegion()
		if region == "" {
			return "", fmt.Errorf("AWS Bedrock region is required: set llm.bedrock.region or AWS_REGION")
		}
		baseURL = fmt.Sprintf("https://bedrock-runtime.%s.amazonaws.com/openai/v1", region)
	}
	if err := ValidateBedrockBaseURL(baseURL); err != nil {
		return "", fmt.Errorf("invalid llm.bedrock.base_url: %w", err)
	}
	return strings.TrimSuffix(baseURL, "/"), nil
}

// ValidateBedrockBaseURL validates strict Bedrock OpenAI-compatible endpoint policy.
func ValidateBedrockBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse URL: %w", err)
	}
	if u.Scheme != "https" {
		return fmt.Errorf("must use https")
	}
	if u.Hostname() == "" {
		return fmt.Errorf("missing host")
	}
	if !bedrockHostPattern.MatchString(strings.ToLower(u.Hostname())) {
		return fmt.Errorf("host %q is not a Bedrock runtime endpoint", u.Hostname())
	}
	path := strings.TrimSuffix(u.Path, "/")
	if path != "/openai/v1" {
		return fmt.Errorf("path must be /openai/v1")
	}
	return nil
}

// ResolveLLMTimeout resolves LLM timeout from config or env with defaults.
func ResolveLLMTimeout() (time.Duration, error) {
	if viper.IsSet("llm.timeout") {
		raw := strings.TrimSpace(viper.GetString("llm.timeout"))
		if raw == "" {
			return llm.DefaultRequestTimeout, nil
		}
		dur, err := time.ParseDuration(raw)
		if err != nil {
			return 0, fmt.Errorf("invalid llm.timeout: %w", err)
		}
		return dur, nil
	}
	if viper.IsSet("llm.timeout_seconds") {
		seconds := viper.GetInt("llm.timeout_seconds")
		if seconds < 0 {
			return 0, fmt.Errorf("invalid llm.timeout_seconds: %d", seconds)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	return llm.DefaultRequestTimeout, nil
}

// ResolveAPIKey returns the best API key for the given provider using
// per-provider config keys, then (OpenAI only) the legacy llm.apiKey config,
// then provider-specific env vars.
func ResolveAPIKey(provider llm.Provider) string {
	keyFromViper := func(path string) string {
		if viper.IsSet(path) {
			return strings.TrimSpace(viper.GetString(path))
		}
		return ""
	}

	// 1) Per-provider config key (llm.apiKeys.<provider>)
	perProviderKey := keyFromViper(fmt.Sprintf("llm.apiKeys.%s", provider))
	if perProviderKey != "" {
		return perProviderKey
	}

	// 2) Provider-specific env vars (centralized in llm.GetEnvValueForProvider)
	envKey := llm.GetEnvValueForProvider(string(provider))

	// OpenAI: allow legacy key; others: ignore legacy to avoid wrong-key usage.
	if provider == llm.ProviderOpenAI {
		legacyKey := keyFromViper("llm.apiKey")
		if legacyKey != "" {
			return legacyKey
		}
	}

	return envKey
}
