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

const defaultOpenAIModel = "gpt-4.1-mini"

// openAIClient implements the Client interface for the OpenAI API using a
// forced, enum-constrained function call.
type openAIClient struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
	maxTokens  int
}

// newOpenAIClient creates a new OpenAI API client.
func newOpenAIClient(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 150
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}

	return &openAIClient{
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

// Classify sends a classification request to OpenAI and returns the chosen
// category name.
func (c *openAIClient) Classify(ctx context.Context, record model.Record, categories []string) (string, error) {
	if len(categories) == 0 {
		return "", fmt.Errorf("no categories offered")
	}

	userMessage, err := buildUserMessage(record)
	if err != nil {
		return "", err
	}

	requestBody := map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": buildSystemPrompt(categories)},
			{"role": "user", "content": userMessage},
		},
		"tools": []map[string]any{
			{
				"type": "function",
				"function": map[string]any{
					"name":        categorizeToolName,
					"description": "Assign the transaction to one of the predefined categories.",
					"parameters":  toolParameters(categories),
				},
			},
		},
		"tool_choice": map[string]any{
			"type":     "function",
			"function": map[string]string{"name": categorizeToolName},
		},
		"temperature": 0,
		"max_tokens":  c.maxTokens,
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", strings.NewReader(string(jsonBody)))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

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
		return "", fmt.Errorf("%w: OpenAI API", common.ErrRateLimit)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("OpenAI API error (status %d): %s", resp.StatusCode, string(body))
	}

	var response openAIResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	return extractOpenAICategory(response, categories)
}

// extractOpenAICategory pulls the chosen category out of the forced tool
// call and validates it against the offered vocabulary.
func extractOpenAICategory(response openAIResponse, categories []string) (string, error) {
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no completion choices returned")
	}

	for _, call := range response.Choices[0].Message.ToolCalls {
		if call.Type != "function" || call.Function.Name != categorizeToolName {
			continue
		}

		var args struct {
			Category string `json:"category"`
		}
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			continue
		}

		if category, ok := validateCategory(args.Category, categories); ok {
			return category, nil
		}
	}

	return "", fmt.Errorf("no valid category in tool calls")
}

// openAIResponse represents the OpenAI API response structure.
type openAIResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role      string `json:"role"`
			Content   string `json:"content"`
			ToolCalls []struct {
				ID       string `json:"id"`
				Type     string `json:"type"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}
