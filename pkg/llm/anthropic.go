package llm

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

type AnthropicProvider struct {
	client    *http.Client
	apiKey    string
	apiURL    string
	model     string
	maxTokens int
}

const defaultAnthropicMaxTokens = 4096

func NewAnthropicProvider(cfg Config) *AnthropicProvider {
	apiURL := strings.TrimRight(cfg.APIURL, "/")
	if apiURL == "" {
		apiURL = "https://api.anthropic.com"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	return &AnthropicProvider{
		client:    &http.Client{Timeout: 60 * time.Second},
		apiKey:    cfg.APIKey,
		apiURL:    apiURL,
		model:     cfg.Model,
		maxTokens: maxTokens,
	}
}

func (p *AnthropicProvider) Complete(ctx context.Context, messages []Message) (string, error) {
	if p.model == "" {
		return "", errors.New("anthropic model is required")
	}
	reqBody := anthropicRequest{
		Model:     p.model,
		MaxTokens: p.maxTokens,
	}
	reqBody.Messages, reqBody.System = anthropicMessagesFrom(messages)

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("anthropic: marshal request: %w", err)
	}

	resp, err := doWithRetry(ctx, p.client, func() (*http.Request, error) {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL+"/v1/messages", bytes.NewReader(payload))
		if reqErr != nil {
			return nil, fmt.Errorf("anthropic: create request: %w", reqErr)
		}
		req.Header.Set("Content-Type", "application/json")
		if p.apiKey != "" {
			req.Header.Set("X-API-Key", p.apiKey)
		}
		req.Header.Set("Anthropic-Version", "2023-06-01")
		return req, nil
	})
	if err != nil {
		return "", fmt.Errorf("anthropic: request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("anthropic: unexpected status %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var response anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("anthropic: decode response: %w", err)
	}
	var parts []string
	for _, block := range response.Content {
		if block.Type == "text" && block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	if len(parts) == 0 {
		return "", errors.New("anthropic: response contained no text content")
	}
	return strings.Join(parts, ""), nil
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func anthropicMessagesFrom(messages []Message) ([]anthropicMessage, string) {
	var systemParts []string
	out := make([]anthropicMessage, 0, len(messages))
	for _, message := range messages {
		if message.Role == "system" {
			systemParts = append(systemParts, message.Content)
			continue
		}
		out = append(out, anthropicMessage{
			Role:    message.Role,
			Content: message.Content,
		})
	}
	return out, strings.Join(systemParts, "\n")
}
