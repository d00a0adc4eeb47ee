package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Veraticus/follow-the-money/internal/common"
	"github.com/Veraticus/follow-the-money/internal/model"
)

const defaultAnthropicModel = "claude-3-5-haiku-20241022"

// anthropicClient implements the Client interface for the Anthropic API
// using a forced tool-use block.
type anthropicClient struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
	maxTokens  int
}

// newAnthropicClient creates a new Anthropic API client.
func newAnthropicClient(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required")
	}

	model := cfg.Model
	if model == "" {
		model = defaultAnthropicModel
	}

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 150
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}

	return &anthropicClient{
		apiKey:    cfg.APIKey,
		model:     model,
		baseURL:   strings.TrimRight(baseURL, "/"),
		maxTokens: maxTokens,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

// Classify sends a classification request to Anthropic and returns the
// chosen category name.
func (c *anthropicClient) Classify(ctx context.Context, record model.Record, categories []string) (string, error) {
	if len(categories) == 0 {
		return "", fmt.Errorf("no categories offered")
	}

	userMessage, err := buildUserMessage(record)
	if err != nil {
		return "", err
	}

	requestBody := map[string]any{
		"model":      c.model,
		"max_tokens": c.maxTokens,
		"system":     buildSystemPrompt(categories),
		"messages": []map[string]string{
			{"role": "user", "content": userMessage},
		},
		"tools": []map[string]any{
			{
				"name":         categorizeToolName,
				"description":  "Assign the transaction to one of the predefined categories.",
				"input_schema": toolParameters(categories),
			},
		},
		"tool_choice": map[string]string{
			"type": "tool",
			"name": categorizeToolName,
		},
		"temperature": 0,
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", strings.NewReader(string(jsonBody)))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", fmt.Errorf("%w: Anthropic API", common.ErrRateLimit)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("Anthropic API error (status %d): %s", resp.StatusCode, string(body))
	}

	var response anthropicResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	for _, block := range response.Content {
		if block.Type != "tool_use" || block.Name != categorizeToolName {
			continue
		}
		if category, ok := validateCategory(block.Input.Category, categories); ok {
			return category, nil
		}
	}

	return "", fmt.Errorf("no valid category in tool use blocks")
}

// anthropicResponse represents the Anthropic API response structure.
type anthropicResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Content []struct {
		Type  string `json:"type"`
		Name  string `json:"name"`
		Input struct {
			Category string `json:"category"`
		} `json:"input"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}
