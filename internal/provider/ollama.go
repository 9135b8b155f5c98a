package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OllamaConfig holds configuration for the local Ollama provider.
type OllamaConfig struct {
	// BaseURL is the Ollama server address. Default: "http://localhost:11434".
	BaseURL string

	// DefaultModel is used when requests do not specify one.
	// Default: "llama3.2".
	DefaultModel string

	// System is the default system prompt.
	System string

	// RequestTimeout bounds each Ask call. Local models can be slow on first
	// load. Default: 120 seconds.
	RequestTimeout time.Duration
}

// OllamaProvider implements Provider against a local Ollama server.
//
// Ollama has no official Go SDK; the chat endpoint is a small JSON API and is
// called directly.
type OllamaProvider struct {
	baseURL      string
	defaultModel string
	system       string
	timeout      time.Duration
	httpClient   *http.Client
}

var _ Provider = (*OllamaProvider)(nil)

// NewOllamaProvider creates an Ollama provider instance.
func NewOllamaProvider(cfg OllamaConfig) *OllamaProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "llama3.2"
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 120 * time.Second
	}

	return &OllamaProvider{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		defaultModel: cfg.DefaultModel,
		system:       cfg.System,
		timeout:      cfg.RequestTimeout,
		httpClient:   &http.Client{},
	}
}

// Name returns "ollama".
func (p *OllamaProvider) Name() string {
	return "ollama"
}

// Available probes the server with a short-deadline version check.
func (p *OllamaProvider) Available() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/version", nil)
	if err != nil {
		return false
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// SystemPrompt returns the configured default system prompt.
func (p *OllamaProvider) SystemPrompt() string {
	return p.system
}

// Models returns locally installed models reported by the server. Falls back
// to the configured default when the server cannot be reached.
func (p *OllamaProvider) Models() []ModelInfo {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return p.fallbackModels()
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return p.fallbackModels()
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return p.fallbackModels()
	}

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return p.fallbackModels()
	}

	models := make([]ModelInfo, 0, len(tags.Models))
	for _, m := range tags.Models {
		models = append(models, ModelInfo{
			ID:           m.Name,
			Name:         m.Name,
			ContextSize:  8192,
			Capabilities: []string{"fast"},
		})
	}
	if len(models) == 0 {
		return p.fallbackModels()
	}
	return models
}

func (p *OllamaProvider) fallbackModels() []ModelInfo {
	return []ModelInfo{
		{ID: p.defaultModel, Name: p.defaultModel, ContextSize: 8192,
			Capabilities: []string{"fast"}},
	}
}

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Options  map[string]any      `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message ollamaChatMessage `json:"message"`
	Done    bool              `json:"done"`
	Error   string            `json:"error,omitempty"`
}

// Ask sends the request and returns the completion text.
func (p *OllamaProvider) Ask(ctx context.Context, req *AskRequest) (string, error) {
	if req == nil || strings.TrimSpace(req.Prompt) == "" {
		return "", errors.New("ollama: empty prompt")
	}

	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	messages := make([]ollamaChatMessage, 0, len(req.History)+2)
	system := req.System
	if system == "" {
		system = p.system
	}
	if system != "" {
		messages = append(messages, ollamaChatMessage{Role: "system", Content: system})
	}
	for _, m := range trimHistory(req.History) {
		role := "user"
		if m.Role == "assistant" {
			role = "assistant"
		}
		messages = append(messages, ollamaChatMessage{Role: role, Content: m.Content})
	}
	messages = append(messages, ollamaChatMessage{Role: "user", Content: req.Prompt})

	body, err := json.Marshal(ollamaChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   false,
		Options: map[string]any{
			"temperature": clampTemperature(req.Temperature),
			"num_predict": clampTokens(req.MaxTokens),
		},
	})
	if err != nil {
		return "", fmt.Errorf("ollama: marshal request: %w", err)
	}

	askCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(askCtx, http.MethodPost,
		p.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("ollama: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", NewBackendError(p.Name(), model, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &BackendError{
			Provider: p.Name(),
			Model:    model,
			Reason:   ReasonRejected,
			Cause:    fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(data))),
		}
	}

	var chatResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", &BackendError{
			Provider: p.Name(),
			Model:    model,
			Reason:   ReasonMalformed,
			Cause:    err,
		}
	}
	if chatResp.Error != "" {
		return "", &BackendError{
			Provider: p.Name(),
			Model:    model,
			Reason:   ReasonRejected,
			Cause:    errors.New(chatResp.Error),
		}
	}
	if strings.TrimSpace(chatResp.Message.Content) == "" {
		return "", &BackendError{
			Provider: p.Name(),
			Model:    model,
			Reason:   ReasonMalformed,
			Cause:    errors.New("response contained no content"),
		}
	}
	return chatResp.Message.Content, nil
}
