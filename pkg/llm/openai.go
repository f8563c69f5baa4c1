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

type OpenAIProvider struct {
	client *http.Client
	apiKey string
	apiURL string
	model  string
}

func NewOpenAIProvider(cfg Config) *OpenAIProvider {
	apiURL := strings.TrimRight(cfg.APIURL, "/")
	if apiURL == "" {
		apiURL = "https://api.openai.com/v1"
	}
	return &OpenAIProvider{
		client: &http.Client{Timeout: 60 * time.Second},
		apiKey: cfg.APIKey,
		apiURL: apiURL,
		model:  cfg.Model,
	}
}

func (p *OpenAIProvider) Complete(ctx context.Context, messages []Message) (string, error) {
	if p.model == "" {
		return "", errors.New("openai model is required")
	}
	payload, err := json.Marshal(openAIRequest{
		Model:    p.model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("openai: marshal request: %w", err)
	}

	resp, err := doWithRetry(ctx, p.client, func() (*http.Request, error) {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL+"/chat/completions", bytes.NewReader(payload))
		if reqErr != nil {
			return nil, fmt.Errorf("openai: create request: %w", reqErr)
		}
		req.Header.Set("Content-Type", "application/json")
		if p.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+p.apiKey)
		}
		return req, nil
	})
	if err != nil {
		return "", fmt.Errorf("openai: request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("openai: unexpected status %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var response openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("openai: decode response: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", errors.New("openai: response contained no choices")
	}
	return response.Choices[0].Message.Content, nil
}

type openAIRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type openAIResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}
