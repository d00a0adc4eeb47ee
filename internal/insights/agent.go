// Package insights answers natural-language questions about spending by
// letting a model call read-only reporting tools, then summarize the results.
package insights

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/follow-the-money/internal/common"
	"github.com/Veraticus/follow-the-money/internal/service"
)

const defaultModel = "gpt-4.1-mini"

const systemPrompt = "You are a helpful financial assistant. Use only the provided tools. Never write to the database."

// Config holds API settings for the insights agent.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string // override for testing
}

// Answer is the result of one question: the model's text plus which tools it
// reached for.
type Answer struct {
	SessionID string
	Text      string
	ToolsUsed []string
}

// Agent runs the one-round tool loop: the model may call reporting tools
// once, then must answer in text.
type Agent struct {
	storage    service.Storage
	httpClient *http.Client
	logger     *slog.Logger
	apiKey     string
	model      string
	baseURL    string
}

// New creates an insights agent over the given storage.
func New(storage service.Storage, cfg Config) (*Agent, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	apiModel := cfg.Model
	if apiModel == "" {
		apiModel = defaultModel
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}

	return &Agent{
		storage: storage,
		apiKey:  cfg.APIKey,
		model:   apiModel,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  slog.Default().With("component", "insights"),
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

type chatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []toolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

type toolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function toolCallFunction `json:"function"`
}

type toolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

// Ask answers one question. The model gets a single round of tool calls; a
// second request with tool_choice "none" forces the textual answer.
func (a *Agent) Ask(ctx context.Context, question string) (*Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("question cannot be empty")
	}

	sessionID := uuid.NewString()
	logger := a.logger.With("session_id", sessionID)
	logger.Info("Answering question", "question", question)

	messages := []chatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: question},
	}

	first, err := a.complete(ctx, messages, "auto", 0.2)
	if err != nil {
		return nil, err
	}

	if len(first.ToolCalls) == 0 {
		return &Answer{
			SessionID: sessionID,
			Text:      strings.TrimSpace(first.Content),
		}, nil
	}

	messages = append(messages, chatMessage{
		Role:      "assistant",
		Content:   first.Content,
		ToolCalls: first.ToolCalls,
	})

	toolsUsed := make([]string, 0, len(first.ToolCalls))
	for _, call := range first.ToolCalls {
		if call.Type != "function" {
			continue
		}
		toolsUsed = append(toolsUsed, call.Function.Name)
		logger.Info("Executing tool", "tool", call.Function.Name)

		result, err := dispatchTool(ctx, a.storage, call.Function.Name, call.Function.Arguments)

		var content []byte
		if err != nil {
			logger.Warn("Tool failed", "tool", call.Function.Name, "error", err)
			content, _ = json.Marshal(map[string]any{"ok": false, "error": err.Error()})
		} else {
			content, err = json.Marshal(map[string]any{"ok": true, "result": result})
			if err != nil {
				return nil, fmt.Errorf("failed to encode tool result: %w", err)
			}
		}

		messages = append(messages, chatMessage{
			Role:       "tool",
			Content:    string(content),
			ToolCallID: call.ID,
			Name:       call.Function.Name,
		})
	}

	final, err := a.complete(ctx, messages, "none", 0)
	if err != nil {
		return nil, err
	}

	return &Answer{
		SessionID: sessionID,
		Text:      strings.TrimSpace(final.Content),
		ToolsUsed: toolsUsed,
	}, nil
}

// complete sends one chat completion request and returns the first choice's
// message.
func (a *Agent) complete(ctx context.Context, messages []chatMessage, toolChoice string, temperature float64) (*chatMessage, error) {
	requestBody := map[string]any{
		"model":       a.model,
		"messages":    messages,
		"tools":       toolDefinitions(),
		"tool_choice": toolChoice,
		"temperature": temperature,
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/chat/completions", strings.NewReader(string(jsonBody)))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: OpenAI API", common.ErrRateLimit)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OpenAI API error (status %d): %s", resp.StatusCode, string(body))
	}

	var response chatResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("no completion choices returned")
	}

	return &response.Choices[0].Message, nil
}
