package storage

import (
	"context"
	"testing"
)

func testPayload(description string) map[string]any {
	return map[string]any{
		"date":        "2025-06-01",
		"description": description,
		"amount":      -45.67,
	}
}

func TestClassificationCache_RoundTrip(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	payload := testPayload("ICA 45.67")

	got, err := store.LookupCachedCategory(ctx, payload)
	if err != nil {
		t.Fatalf("LookupCachedCategory failed: %v", err)
	}
	if got != nil {
		t.Errorf("Lookup before write = %d, want miss", *got)
	}

	if err := store.WriteCachedCategory(ctx, payload, 7); err != nil {
		t.Fatalf("WriteCachedCategory failed: %v", err)
	}

	got, err = store.LookupCachedCategory(ctx, payload)
	if err != nil {
		t.Fatalf("LookupCachedCategory failed: %v", err)
	}
	if got == nil || *got != 7 {
		t.Errorf("Lookup after write = %v, want 7", got)
	}
}

func TestClassificationCache_KeyOrderInsensitive(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	if err := store.WriteCachedCategory(ctx, testPayload("spotify"), 3); err != nil {
		t.Fatalf("WriteCachedCategory failed: %v", err)
	}

	// The same logical payload built in a different key order must hit.
	reordered := map[string]any{
		"amount":      -45.67,
		"description": "spotify",
		"date":        "2025-06-01",
	}
	got, err := store.LookupCachedCategory(ctx, reordered)
	if err != nil {
		t.Fatalf("LookupCachedCategory failed: %v", err)
	}
	if got == nil || *got != 3 {
		t.Errorf("Lookup with reordered keys = %v, want 3", got)
	}
}

func TestClassificationCache_OverwritesInPlace(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	payload := testPayload("misfiled charge")

	if err := store.WriteCachedCategory(ctx, payload, 1); err != nil {
		t.Fatalf("First write failed: %v", err)
	}
	if err := store.WriteCachedCategory(ctx, payload, 2); err != nil {
		t.Fatalf("Second write failed: %v", err)
	}

	got, err := store.LookupCachedCategory(ctx, payload)
	if err != nil {
		t.Fatalf("LookupCachedCategory failed: %v", err)
	}
	if got == nil || *got != 2 {
		t.Errorf("Lookup after overwrite = %v, want 2", got)
	}

	// Overwrite must not grow the table.
	var count int
	if err := store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM classification_cache").Scan(&count); err != nil {
		t.Fatalf("Failed to count cache entries: %v", err)
	}
	if count != 1 {
		t.Errorf("Cache holds %d entries for one fingerprint, want 1", count)
	}
}

func TestClassificationCache_DistinctPayloads(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	if err := store.WriteCachedCategory(ctx, testPayload("first"), 1); err != nil {
		t.Fatalf("WriteCachedCategory failed: %v", err)
	}

	got, err := store.LookupCachedCategory(ctx, testPayload("second"))
	if err != nil {
		t.Fatalf("LookupCachedCategory failed: %v", err)
	}
	if got != nil {
		t.Errorf("Different payload hit the cache with category %d", *got)
	}
}
