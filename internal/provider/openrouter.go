package provider

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const openRouterBaseURL = "https://openrouter.ai/api/v1"

// OpenRouterConfig holds configuration for the OpenRouter provider.
type OpenRouterConfig struct {
	// APIKey is the OpenRouter API key. Empty means delayed configuration.
	APIKey string

	// DefaultModel is used when requests do not specify one.
	// Model IDs use the provider/model format, e.g. "openai/gpt-4o".
	DefaultModel string

	// AppName is shown in the OpenRouter dashboard (optional).
	AppName string

	// SiteURL is the referer URL for attribution (optional).
	SiteURL string

	// System is the default system prompt.
	System string

	// RequestTimeout bounds each Ask call. Default: 60 seconds.
	RequestTimeout time.Duration
}

// OpenRouterProvider implements Provider for OpenRouter's unified API.
//
// OpenRouter exposes an OpenAI-compatible surface, so the OpenAI SDK is reused
// with a custom base URL. Attribution headers travel on every request via a
// wrapping transport.
type OpenRouterProvider struct {
	client       *openai.Client
	apiKey       string
	defaultModel string
	system       string
	timeout      time.Duration
}

var _ Provider = (*OpenRouterProvider)(nil)

// attributionTransport adds the OpenRouter app-identification headers.
type attributionTransport struct {
	base    http.RoundTripper
	appName string
	siteURL string
}

func (t *attributionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.appName != "" {
		req.Header.Set("X-Title", t.appName)
	}
	if t.siteURL != "" {
		req.Header.Set("HTTP-Referer", t.siteURL)
	}
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}

// NewOpenRouterProvider creates an OpenRouter provider instance.
func NewOpenRouterProvider(cfg OpenRouterConfig) *OpenRouterProvider {
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "openai/gpt-4o"
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}

	p := &OpenRouterProvider{
		apiKey:       cfg.APIKey,
		defaultModel: cfg.DefaultModel,
		system:       cfg.System,
		timeout:      cfg.RequestTimeout,
	}
	if cfg.APIKey == "" {
		return p
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = openRouterBaseURL
	clientConfig.HTTPClient = &http.Client{
		Transport: &attributionTransport{appName: cfg.AppName, siteURL: cfg.SiteURL},
	}
	p.client = openai.NewClientWithConfig(clientConfig)
	return p
}

// Name returns "openrouter".
func (p *OpenRouterProvider) Name() string {
	return "openrouter"
}

// Available reports whether an API key is configured.
func (p *OpenRouterProvider) Available() bool {
	return p.apiKey != "" && p.client != nil
}

// SystemPrompt returns the configured default system prompt.
func (p *OpenRouterProvider) SystemPrompt() string {
	return p.system
}

// Models returns a curated subset of commonly used OpenRouter models.
// OpenRouter serves hundreds; these cover the routing capability tags.
func (p *OpenRouterProvider) Models() []ModelInfo {
	return []ModelInfo{
		{ID: "openai/gpt-4o", Name: "GPT-4o", ContextSize: 128000,
			Capabilities: []string{"code", "reasoning", "large-context"}},
		{ID: "anthropic/claude-sonnet-4", Name: "Claude Sonnet 4", ContextSize: 200000,
			Capabilities: []string{"code", "reasoning", "large-context"}},
		{ID: "google/gemini-2.0-flash-001", Name: "Gemini 2.0 Flash", ContextSize: 1000000,
			Capabilities: []string{"fast", "large-context"}},
		{ID: "meta-llama/llama-3.3-70b-instruct", Name: "Llama 3.3 70B", ContextSize: 131072,
			Capabilities: []string{"code"}},
	}
}

// Ask sends the request and returns the completion text.
func (p *OpenRouterProvider) Ask(ctx context.Context, req *AskRequest) (string, error) {
	if !p.Available() {
		return "", ErrUnavailable
	}
	if req == nil || strings.TrimSpace(req.Prompt) == "" {
		return "", errors.New("openrouter: empty prompt")
	}

	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.History)+2)
	system := req.System
	if system == "" {
		system = p.system
	}
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	for _, m := range trimHistory(req.History) {
		role := openai.ChatMessageRoleUser
		if m.Role == "assistant" {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: m.Content,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	askCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.client.CreateChatCompletion(askCtx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   clampTokens(req.MaxTokens),
		Temperature: clampTemperature(req.Temperature),
	})
	if err != nil {
		return "", NewBackendError(p.Name(), model, err)
	}
	if len(resp.Choices) == 0 {
		return "", &BackendError{
			Provider: p.Name(),
			Model:    model,
			Reason:   ReasonMalformed,
			Cause:    errors.New("response contained no choices"),
		}
	}
	return resp.Choices[0].Message.Content, nil
}
