package llm

import (
	"context"

	"github.com/Veraticus/follow-the-money/internal/model"
)

// Client defines the interface for LLM providers. Implementations must
// return a category name drawn from the supplied list, or an error; callers
// own the fallback behavior.
type Client interface {
	Classify(ctx context.Context, record model.Record, categories []string) (string, error)
}

// Config holds configuration for creating an LLM client.
type Config struct {
	Provider          string
	APIKey            string
	Model             string
	BaseURL           string
	MaxTokens         int
	RequestsPerMinute int
}
