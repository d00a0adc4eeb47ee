package hashing

import (
	"strings"
	"testing"
)

func TestCanonical(t *testing.T) {
	tests := []struct {
		payload map[string]any
		name    string
		want    string
	}{
		{
			name:    "keys are sorted",
			payload: map[string]any{"b": 2.0, "a": 1.0, "c": 3.0},
			want:    `{"a":1,"b":2,"c":3}`,
		},
		{
			name:    "no whitespace",
			payload: map[string]any{"date": "2025-06-01", "amount": -45.67},
			want:    `{"amount":-45.67,"date":"2025-06-01"}`,
		},
		{
			name:    "null values survive",
			payload: map[string]any{"category": nil, "category_id": int64(5)},
			want:    `{"category":null,"category_id":5}`,
		},
		{
			name:    "ampersands are not escaped",
			payload: map[string]any{"description": "H&M STOCKHOLM"},
			want:    `{"description":"H&M STOCKHOLM"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Canonical(tt.payload)
			if err != nil {
				t.Fatalf("Canonical() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Canonical() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSumStableUnderKeyReordering(t *testing.T) {
	a := map[string]any{
		"date":        "2025-06-01",
		"description": "ICA 45.67",
		"amount":      -45.67,
	}
	b := map[string]any{
		"amount":      -45.67,
		"date":        "2025-06-01",
		"description": "ICA 45.67",
	}

	hashA, err := Sum(a)
	if err != nil {
		t.Fatalf("Sum(a) error = %v", err)
	}
	hashB, err := Sum(b)
	if err != nil {
		t.Fatalf("Sum(b) error = %v", err)
	}

	if hashA != hashB {
		t.Errorf("hashes differ for equal payloads: %s vs %s", hashA, hashB)
	}
}

func TestSumSensitiveToChanges(t *testing.T) {
	base := map[string]any{"date": "2025-06-01", "amount": -45.67}

	valueChanged := map[string]any{"date": "2025-06-01", "amount": -45.68}
	keyChanged := map[string]any{"day": "2025-06-01", "amount": -45.67}

	baseHash, err := Sum(base)
	if err != nil {
		t.Fatalf("Sum(base) error = %v", err)
	}

	for name, payload := range map[string]map[string]any{
		"value change": valueChanged,
		"key change":   keyChanged,
	} {
		got, sumErr := Sum(payload)
		if sumErr != nil {
			t.Fatalf("Sum(%s) error = %v", name, sumErr)
		}
		if got == baseHash {
			t.Errorf("%s produced the same hash", name)
		}
	}
}

func TestSumFormat(t *testing.T) {
	hash, err := Sum(map[string]any{"a": 1.0})
	if err != nil {
		t.Fatalf("Sum() error = %v", err)
	}

	if len(hash) != 64 {
		t.Errorf("hash length = %d, want 64", len(hash))
	}
	if hash != strings.ToLower(hash) {
		t.Errorf("hash is not lowercase: %s", hash)
	}
}

func TestSumRejectsUnencodablePayload(t *testing.T) {
	if _, err := Sum(map[string]any{"ch": make(chan int)}); err == nil {
		t.Error("expected error for unencodable payload")
	}
}
