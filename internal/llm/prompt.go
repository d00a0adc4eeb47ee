package llm

import (
	"fmt"
	"strings"

	"github.com/Veraticus/follow-the-money/internal/hashing"
	"github.com/Veraticus/follow-the-money/internal/model"
)

// categorizeToolName is the forced tool both providers call; its single
// argument carries the chosen category.
const categorizeToolName = "categorize_transaction"

// buildSystemPrompt renders the classification instructions with the allowed
// vocabulary inlined. The classifier must choose from exactly this set.
func buildSystemPrompt(categories []string) string {
	var sb strings.Builder
	sb.WriteString("Classify the bank transaction into exactly ONE of the allowed categories. ")
	sb.WriteString("Choose ONLY from the provided list. If unsure, pick the closest match.\n\n")
	sb.WriteString("Allowed categories:\n")
	for _, c := range categories {
		sb.WriteString("- ")
		sb.WriteString(c)
		sb.WriteString("\n")
	}
	return sb.String()
}

// buildUserMessage renders the record as compact canonical JSON, the same
// encoding the cache and dedupe keys use.
func buildUserMessage(record model.Record) (string, error) {
	encoded, err := hashing.Canonical(record.ClassificationPayload())
	if err != nil {
		return "", fmt.Errorf("failed to encode record: %w", err)
	}
	return "Transaction: " + string(encoded), nil
}

// validateCategory confirms the model's pick is actually in the offered
// vocabulary, case-insensitively, and returns the canonical spelling.
func validateCategory(choice string, categories []string) (string, bool) {
	for _, c := range categories {
		if strings.EqualFold(choice, c) {
			return c, true
		}
	}
	return "", false
}

// toolParameters is the JSON-schema parameter block shared by both
// providers, with the category constrained to the offered enum.
func toolParameters(categories []string) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"category": map[string]any{
				"type": "string",
				"enum": categories,
			},
		},
		"required":             []string{"category"},
		"additionalProperties": false,
	}
}
