package provider

import (
	"context"
	"errors"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig holds configuration for the OpenAI provider.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key. Empty means delayed configuration.
	APIKey string

	// BaseURL overrides the API endpoint (optional; used for compatible
	// gateways).
	BaseURL string

	// DefaultModel is used when requests do not specify one.
	// Default: "gpt-4o".
	DefaultModel string

	// System is the default system prompt.
	System string

	// RequestTimeout bounds each Ask call. Default: 60 seconds.
	RequestTimeout time.Duration
}

// OpenAIProvider implements Provider for OpenAI's GPT models.
//
// Unlike the Anthropic API, the system prompt travels inside the messages
// array rather than as a separate field.
type OpenAIProvider struct {
	client       *openai.Client
	apiKey       string
	defaultModel string
	system       string
	timeout      time.Duration
}

var _ Provider = (*OpenAIProvider)(nil)

// NewOpenAIProvider creates an OpenAI provider instance.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "gpt-4o"
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}

	p := &OpenAIProvider{
		apiKey:       cfg.APIKey,
		defaultModel: cfg.DefaultModel,
		system:       cfg.System,
		timeout:      cfg.RequestTimeout,
	}
	if cfg.APIKey == "" {
		return p
	}

	if strings.TrimSpace(cfg.BaseURL) != "" {
		clientConfig := openai.DefaultConfig(cfg.APIKey)
		clientConfig.BaseURL = cfg.BaseURL
		p.client = openai.NewClientWithConfig(clientConfig)
	} else {
		p.client = openai.NewClient(cfg.APIKey)
	}
	return p
}

// Name returns "openai".
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Available reports whether an API key is configured.
func (p *OpenAIProvider) Available() bool {
	return p.apiKey != "" && p.client != nil
}

// SystemPrompt returns the configured default system prompt.
func (p *OpenAIProvider) SystemPrompt() string {
	return p.system
}

// Models returns the supported GPT models with capability tags.
func (p *OpenAIProvider) Models() []ModelInfo {
	return []ModelInfo{
		{ID: "gpt-4o", Name: "GPT-4o", ContextSize: 128000,
			Capabilities: []string{"code", "reasoning", "large-context"}},
		{ID: "gpt-4o-mini", Name: "GPT-4o mini", ContextSize: 128000,
			Capabilities: []string{"fast", "large-context"}},
		{ID: "gpt-4-turbo", Name: "GPT-4 Turbo", ContextSize: 128000,
			Capabilities: []string{"code", "reasoning", "large-context"}},
	}
}

// Ask sends the request and returns the completion text.
func (p *OpenAIProvider) Ask(ctx context.Context, req *AskRequest) (string, error) {
	if !p.Available() {
		return "", ErrUnavailable
	}
	if req == nil || strings.TrimSpace(req.Prompt) == "" {
		return "", errors.New("openai: empty prompt")
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
