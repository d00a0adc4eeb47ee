package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/follow-the-money/internal/common"
	"github.com/Veraticus/follow-the-money/internal/model"
	"github.com/Veraticus/follow-the-money/internal/service"
)

// Classifier adapts a raw Client into the service.Classifier collaborator,
// adding rate limiting and retries. It still surfaces a final failure as an
// error; the engine owns the fallback-to-"other" policy.
type Classifier struct {
	client    Client
	limiter   *rateLimiter
	logger    *slog.Logger
	retryOpts service.RetryOptions
}

// NewClassifier creates a Classifier from configuration.
func NewClassifier(cfg Config, logger *slog.Logger) (*Classifier, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	return NewClassifierWithClient(client, cfg.RequestsPerMinute, logger), nil
}

// NewClassifierWithClient wraps an existing client, mainly for tests.
func NewClassifierWithClient(client Client, requestsPerMinute int, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{
		client:  client,
		limiter: newRateLimiter(requestsPerMinute),
		logger:  logger,
		retryOpts: service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     10 * time.Second,
			Multiplier:   2.0,
		},
	}
}

// ClassifyRecord asks the model to pick one category name from the offered
// vocabulary for a record.
func (c *Classifier) ClassifyRecord(ctx context.Context, record model.Record, categories []string) (string, error) {
	if err := c.limiter.wait(ctx); err != nil {
		return "", err
	}

	var category string
	err := common.WithRetry(ctx, func() error {
		var classifyErr error
		category, classifyErr = c.client.Classify(ctx, record, categories)
		return classifyErr
	}, c.retryOpts)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrClassificationFailed, err)
	}

	c.logger.Debug("classified record",
		"description", record.Description,
		"category", category)
	return category, nil
}

// Close releases the rate limiter's refill goroutine.
func (c *Classifier) Close() {
	c.limiter.Close()
}
