package testsupport

import (
	"context"
	"testing"
	"time"

	"sweeper/internal/classify"
	"sweeper/internal/config"
	"sweeper/internal/results"
)

// MustOpenStore opens a results.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *results.Store {
	t.Helper()

	store, err := results.Open(cfg)
	if err != nil {
		t.Fatalf("results.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewVerdict builds a minimal verdict for store tests.
func NewVerdict(id string, category classify.Category, confidence float64) classify.Verdict {
	return classify.Verdict{
		AssetID:         id,
		Filename:        id + ".png",
		Path:            "/library/" + id + ".png",
		FileSize:        1000,
		Category:        category,
		Confidence:      confidence,
		Evidence:        []string{"fixture"},
		Recommendation:  classify.Recommendation(confidence),
		Recommendations: []string{classify.Recommendation(confidence)},
		AnalyzedAt:      time.Now().UTC(),
	}
}

// MustUpsert stores a verdict and fails the test on error.
func MustUpsert(t testing.TB, store *results.Store, v classify.Verdict) {
	t.Helper()

	if err := store.Upsert(context.Background(), v); err != nil {
		t.Fatalf("store.Upsert: %v", err)
	}
}
