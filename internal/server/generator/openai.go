package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com"
	defaultOpenAIModel   = "gpt-4"
)

// OpenAI calls an OpenAI-compatible /v1/chat/completions endpoint.
type OpenAI struct {
	BaseURL    string
	Model      string
	APIKey     string
	HTTPClient *http.Client
}

func NewOpenAI(cfg Config) *OpenAI {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAI{
		BaseURL:    cfg.BaseURL,
		Model:      cfg.Model,
		APIKey:     cfg.APIKey,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

func (p *OpenAI) Name() string { return ProviderOpenAI }

type chatCompletionRequest struct {
	Model    string `json:"model"`
	Messages []Turn `json:"messages"`
}

type chatCompletionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message Turn `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *OpenAI) Generate(ctx context.Context, turns []Turn) (Turn, error) {
	b, err := json.Marshal(chatCompletionRequest{Model: p.model(), Messages: turns})
	if err != nil {
		return Turn{}, fmt.Errorf("openai: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL()+"/v1/chat/completions", bytes.NewReader(b))
	if err != nil {
		return Turn{}, fmt.Errorf("openai: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	client := p.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return Turn{}, fmt.Errorf("openai: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	var parsed chatCompletionResponse
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if json.Unmarshal(body, &parsed) == nil && parsed.Error != nil && parsed.Error.Message != "" {
			return Turn{}, fmt.Errorf("openai: status %d: %s", resp.StatusCode, parsed.Error.Message)
		}
		return Turn{}, fmt.Errorf("openai: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Turn{}, fmt.Errorf("openai: parse response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return Turn{}, fmt.Errorf("openai: response has no choices")
	}
	out := parsed.Choices[0].Message
	if out.Role == "" {
		out.Role = "assistant"
	}
	return out, nil
}

func (p *OpenAI) baseURL() string {
	if p.BaseURL == "" {
		return defaultOpenAIBaseURL
	}
	return strings.TrimRight(p.BaseURL, "/")
}

func (p *OpenAI) model() string {
	if p.Model == "" {
		return defaultOpenAIModel
	}
	return p.Model
}
