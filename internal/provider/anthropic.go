package provider

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicConfig holds configuration for the Anthropic provider.
type AnthropicConfig struct {
	// APIKey is the Anthropic API key. Empty means delayed configuration:
	// the provider is constructed but reports unavailable.
	APIKey string

	// BaseURL overrides the API endpoint (optional).
	BaseURL string

	// DefaultModel is used when requests do not specify one.
	// Default: "claude-sonnet-4-20250514".
	DefaultModel string

	// System is the default system prompt.
	System string

	// RequestTimeout bounds each Ask call. Default: 60 seconds.
	RequestTimeout time.Duration
}

// AnthropicProvider implements Provider for Anthropic's Claude models.
//
// Thread safety: the underlying SDK client is safe for concurrent use; each
// Ask call is an independent request.
type AnthropicProvider struct {
	client       anthropic.Client
	apiKey       string
	defaultModel string
	system       string
	timeout      time.Duration
}

var _ Provider = (*AnthropicProvider)(nil)

// NewAnthropicProvider creates an Anthropic provider instance.
func NewAnthropicProvider(cfg AnthropicConfig) *AnthropicProvider {
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "claude-sonnet-4-20250514"
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &AnthropicProvider{
		client:       anthropic.NewClient(opts...),
		apiKey:       cfg.APIKey,
		defaultModel: cfg.DefaultModel,
		system:       cfg.System,
		timeout:      cfg.RequestTimeout,
	}
}

// Name returns "anthropic".
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// Available reports whether an API key is configured.
func (p *AnthropicProvider) Available() bool {
	return p.apiKey != ""
}

// SystemPrompt returns the configured default system prompt.
func (p *AnthropicProvider) SystemPrompt() string {
	return p.system
}

// Models returns the supported Claude models with capability tags.
func (p *AnthropicProvider) Models() []ModelInfo {
	return []ModelInfo{
		{ID: "claude-opus-4-20250514", Name: "Claude Opus 4", ContextSize: 200000,
			Capabilities: []string{"code", "reasoning", "large-context"}},
		{ID: "claude-sonnet-4-20250514", Name: "Claude Sonnet 4", ContextSize: 200000,
			Capabilities: []string{"code", "reasoning", "large-context"}},
		{ID: "claude-3-5-haiku-latest", Name: "Claude 3.5 Haiku", ContextSize: 200000,
			Capabilities: []string{"fast", "large-context"}},
	}
}

// Ask sends the request and returns the completion text.
func (p *AnthropicProvider) Ask(ctx context.Context, req *AskRequest) (string, error) {
	if !p.Available() {
		return "", ErrUnavailable
	}
	if req == nil || strings.TrimSpace(req.Prompt) == "" {
		return "", errors.New("anthropic: empty prompt")
	}

	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	messages := make([]anthropic.MessageParam, 0, len(req.History)+1)
	for _, m := range trimHistory(req.History) {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == "assistant" {
			messages = append(messages, anthropic.NewAssistantMessage(block))
		} else {
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}
	messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)))

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		Messages:    messages,
		MaxTokens:   int64(clampTokens(req.MaxTokens)),
		Temperature: anthropic.Float(float64(clampTemperature(req.Temperature))),
	}

	system := req.System
	if system == "" {
		system = p.system
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	askCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg, err := p.client.Messages.New(askCtx, params)
	if err != nil {
		return "", NewBackendError(p.Name(), model, err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	text := sb.String()
	if strings.TrimSpace(text) == "" {
		return "", &BackendError{
			Provider: p.Name(),
			Model:    model,
			Reason:   ReasonMalformed,
			Cause:    errors.New("response contained no text blocks"),
		}
	}
	return text, nil
}
