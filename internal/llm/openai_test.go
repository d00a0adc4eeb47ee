package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/follow-the-money/internal/model"
)

func testLLMRecord() model.Record {
	date, _ := time.Parse(model.DateFormat, "2025-06-01")
	return model.Record{Date: date, Description: "ICA 45.67", Amount: -45.67}
}

func openAIToolCallBody(t *testing.T, category string) string {
	t.Helper()
	args, err := json.Marshal(map[string]string{"category": category})
	require.NoError(t, err)

	body, err := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{
				"message": map[string]any{
					"role": "assistant",
					"tool_calls": []map[string]any{
						{
							"id":   "call_1",
							"type": "function",
							"function": map[string]any{
								"name":      categorizeToolName,
								"arguments": string(args),
							},
						},
					},
				},
				"finish_reason": "tool_calls",
			},
		},
	})
	require.NoError(t, err)
	return string(body)
}

func TestOpenAIClassify(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_, _ = w.Write([]byte(openAIToolCallBody(t, "groceries")))
	}))
	defer server.Close()

	client, err := newOpenAIClient(Config{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	category, err := client.Classify(context.Background(), testLLMRecord(), []string{"groceries", "other"})
	require.NoError(t, err)
	assert.Equal(t, "groceries", category)

	// The request must force the categorize tool at temperature zero.
	assert.Equal(t, defaultOpenAIModel, captured["model"])
	assert.EqualValues(t, 0, captured["temperature"])
	toolChoice, ok := captured["tool_choice"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "function", toolChoice["type"])
}

func TestOpenAIClassify_CanonicalCasing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(openAIToolCallBody(t, "GROCERIES")))
	}))
	defer server.Close()

	client, err := newOpenAIClient(Config{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	category, err := client.Classify(context.Background(), testLLMRecord(), []string{"groceries", "other"})
	require.NoError(t, err)
	assert.Equal(t, "groceries", category, "response casing must normalize to the offered vocabulary")
}

func TestOpenAIClassify_OutOfVocabulary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(openAIToolCallBody(t, "cryptocurrency")))
	}))
	defer server.Close()

	client, err := newOpenAIClient(Config{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = client.Classify(context.Background(), testLLMRecord(), []string{"groceries", "other"})
	assert.Error(t, err, "a category outside the offered list must be rejected")
}

func TestOpenAIClassify_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": {"message": "boom"}}`))
	}))
	defer server.Close()

	client, err := newOpenAIClient(Config{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = client.Classify(context.Background(), testLLMRecord(), []string{"groceries"})
	assert.Error(t, err)
}

func TestOpenAIClassify_NoCategories(t *testing.T) {
	client, err := newOpenAIClient(Config{APIKey: "test-key"})
	require.NoError(t, err)

	_, err = client.Classify(context.Background(), testLLMRecord(), nil)
	assert.Error(t, err)
}

func TestNewOpenAIClient_RequiresKey(t *testing.T) {
	_, err := newOpenAIClient(Config{})
	assert.Error(t, err)
}

func TestNewClient_Factory(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		wantErr  bool
	}{
		{name: "openai", provider: "openai", wantErr: false},
		{name: "anthropic", provider: "anthropic", wantErr: false},
		{name: "mixed case", provider: "OpenAI", wantErr: false},
		{name: "unknown", provider: "bard", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(Config{Provider: tt.provider, APIKey: "k"})
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
