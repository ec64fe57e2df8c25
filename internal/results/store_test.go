package results_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sweeper/internal/classify"
	"sweeper/internal/results"
	"sweeper/internal/testsupport"
)

func TestOpenCreatesSchemaAndReopens(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	if store.Path() != cfg.DatabasePath() {
		t.Fatalf("unexpected database path %q", store.Path())
	}
	testsupport.MustUpsert(t, store, testsupport.NewVerdict("a1", classify.CategoryScreenshot, 0.9))
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := results.OpenPath(cfg.DatabasePath())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	rec, err := reopened.Get(context.Background(), "a1")
	if err != nil || rec == nil {
		t.Fatalf("expected persisted record, got %v, %v", rec, err)
	}
}

func TestUpsertRoundTripsVerdict(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	created := time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC)
	v := testsupport.NewVerdict("a1", classify.CategoryScreenshot, 0.85)
	v.CreatedAt = &created
	v.Width, v.Height = 1080, 1920
	v.Flags = classify.Flags{Screenshot: true, HasFaces: true}
	v.FaceCount = 2
	v.Evidence = []string{"filename matches screenshot pattern \"screenshot\"", "screen resolution 1080x1920"}
	testsupport.MustUpsert(t, store, v)

	rec, err := store.Get(ctx, "a1")
	if err != nil || rec == nil {
		t.Fatalf("Get: %v, %v", rec, err)
	}
	if rec.Category != classify.CategoryScreenshot || rec.Confidence != 0.85 || rec.Width != 1080 {
		t.Fatalf("unexpected record %+v", rec)
	}
	if !rec.Flags.Screenshot || !rec.Flags.HasFaces || rec.FaceCount != 2 {
		t.Fatalf("flags not preserved: %+v", rec.Flags)
	}
	if len(rec.Evidence) != 2 || rec.CreatedAt == nil || !rec.CreatedAt.Equal(created) {
		t.Fatalf("unexpected evidence/created %v %v", rec.Evidence, rec.CreatedAt)
	}
	if rec.MarkedForDeletion || rec.UpdatedAt.IsZero() {
		t.Fatalf("unexpected mark/updated %+v", rec)
	}
}

func TestUpsertPreservesMarkUnlessCleared(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	testsupport.MustUpsert(t, store, testsupport.NewVerdict("a1", classify.CategoryScreenshot, 0.9))
	if n, err := store.Mark(ctx, []string{"a1"}, true); err != nil || n != 1 {
		t.Fatalf("Mark = %d, %v", n, err)
	}

	testsupport.MustUpsert(t, store, testsupport.NewVerdict("a1", classify.CategoryWebCache, 0.5))
	rec, _ := store.Get(ctx, "a1")
	if rec == nil || !rec.MarkedForDeletion || rec.Category != classify.CategoryWebCache {
		t.Fatalf("expected mark preserved with new verdict, got %+v", rec)
	}

	if err := store.Upsert(ctx, testsupport.NewVerdict("a1", classify.CategoryWebCache, 0.55), results.ClearMark()); err != nil {
		t.Fatalf("Upsert ClearMark: %v", err)
	}
	rec, _ = store.Get(ctx, "a1")
	if rec == nil || rec.MarkedForDeletion {
		t.Fatalf("expected mark cleared, got %+v", rec)
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	if n, err := store.Remove(ctx, []string{"missing"}); err != nil || n != 0 {
		t.Fatalf("Remove absent = %d, %v", n, err)
	}
	testsupport.MustUpsert(t, store, testsupport.NewVerdict("a1", classify.CategoryScreenshot, 0.9))
	if err := store.RecordAnalyzed(ctx, "a1", 0.9, time.Time{}); err != nil {
		t.Fatalf("RecordAnalyzed: %v", err)
	}
	if n, err := store.Remove(ctx, []string{"a1", "a1"}); err != nil || n != 1 {
		t.Fatalf("Remove = %d, %v", n, err)
	}
	if rec, err := store.Get(ctx, "a1"); err != nil || rec != nil {
		t.Fatalf("expected not found after remove, got %+v, %v", rec, err)
	}
	if ok, err := store.Analyzed(ctx, "a1"); err != nil || ok {
		t.Fatalf("expected ledger cleared, got %v, %v", ok, err)
	}
	if n, err := store.Remove(ctx, []string{"a1"}); err != nil || n != 0 {
		t.Fatalf("second Remove = %d, %v", n, err)
	}
}

func TestQueryFiltersAndOrders(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	testsupport.MustUpsert(t, store, testsupport.NewVerdict("b", classify.CategoryScreenshot, 0.7))
	testsupport.MustUpsert(t, store, testsupport.NewVerdict("a", classify.CategoryScreenshot, 0.7))
	testsupport.MustUpsert(t, store, testsupport.NewVerdict("c", classify.CategoryWebCache, 0.95))
	testsupport.MustUpsert(t, store, testsupport.NewVerdict("d", classify.CategoryLowQuality, 0.45))
	if _, err := store.Mark(ctx, []string{"d"}, true); err != nil {
		t.Fatalf("Mark: %v", err)
	}

	all, err := store.Query(ctx, results.Filter{Category: "all"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	var order []string
	for _, rec := range all {
		order = append(order, rec.AssetID)
	}
	if strings.Join(order, ",") != "c,a,b,d" {
		t.Fatalf("unexpected order %v", order)
	}

	shots, _ := store.Query(ctx, results.Filter{Category: "screenshot"})
	if len(shots) != 2 {
		t.Fatalf("expected 2 screenshots, got %d", len(shots))
	}
	confident, _ := store.Query(ctx, results.Filter{MinConfidence: 0.7})
	if len(confident) != 3 {
		t.Fatalf("expected 3 records >= 0.7, got %d", len(confident))
	}
	marked, _ := store.Query(ctx, results.Filter{MarkedOnly: true})
	if len(marked) != 1 || marked[0].AssetID != "d" {
		t.Fatalf("unexpected marked records %+v", marked)
	}
	page, _ := store.Query(ctx, results.Filter{Limit: 2, Offset: 1})
	if len(page) != 2 || page[0].AssetID != "a" {
		t.Fatalf("unexpected page %+v", page)
	}
	ids, err := store.MarkedIDs(ctx)
	if err != nil || len(ids) != 1 || ids[0] != "d" {
		t.Fatalf("MarkedIDs = %v, %v", ids, err)
	}
}

func TestStatistics(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	testsupport.MustUpsert(t, store, testsupport.NewVerdict("s1", classify.CategoryScreenshot, 0.8))
	testsupport.MustUpsert(t, store, testsupport.NewVerdict("w1", classify.CategoryWebCache, 0.6))
	if err := store.RecordAnalyzed(ctx, "kept", 0.1, time.Time{}); err != nil {
		t.Fatalf("RecordAnalyzed: %v", err)
	}
	if _, err := store.Mark(ctx, []string{"w1"}, true); err != nil {
		t.Fatalf("Mark: %v", err)
	}

	stats, err := store.Statistics(ctx)
	if err != nil {
		t.Fatalf("Statistics: %v", err)
	}
	if stats.TotalCandidates != 2 {
		t.Fatalf("expected 2 candidates, got %d", stats.TotalCandidates)
	}
	if stats.Categories["screenshot"].Count != 1 || stats.Categories["web_cache"].Count != 1 || len(stats.Categories) != 2 {
		t.Fatalf("unexpected categories %+v", stats.Categories)
	}
	if stats.TotalAnalyzed != 3 {
		t.Fatalf("expected 3 analyzed, got %d", stats.TotalAnalyzed)
	}
	if stats.MarkedCount != 1 || stats.MarkedBytes != 1000 || stats.TotalBytes != 2000 {
		t.Fatalf("unexpected totals %+v", stats)
	}
	if stats.HighConfidence != 1 {
		t.Fatalf("expected 1 high confidence record, got %d", stats.HighConfidence)
	}
}

func TestLedgerAndClear(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	if ok, _ := store.Analyzed(ctx, "x"); ok {
		t.Fatal("expected x not analyzed")
	}
	if err := store.RecordAnalyzed(ctx, "x", 0.2, time.Now()); err != nil {
		t.Fatalf("RecordAnalyzed: %v", err)
	}
	if ok, _ := store.Analyzed(ctx, "x"); !ok {
		t.Fatal("expected x analyzed")
	}
	testsupport.MustUpsert(t, store, testsupport.NewVerdict("y", classify.CategoryCorrupt, 0.9))
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	stats, _ := store.Statistics(ctx)
	if stats.TotalAnalyzed != 0 || stats.TotalCandidates != 0 {
		t.Fatalf("expected empty store, got %+v", stats)
	}
}

func TestWriteCSV(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	testsupport.MustUpsert(t, store, testsupport.NewVerdict("a1", classify.CategoryScreenshot, 0.9))

	var buf bytes.Buffer
	if err := store.WriteCSV(context.Background(), &buf); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(rows) != 2 || rows[0][0] != "ID" || rows[0][8] != "Marked for Deletion" {
		t.Fatalf("unexpected csv %v", rows)
	}
	if rows[1][0] != "a1" || rows[1][5] != "screenshot" || rows[1][6] != "0.900" || rows[1][8] != "false" {
		t.Fatalf("unexpected row %v", rows[1])
	}
}

func TestWriteDeletionScriptNeverEmbedsKey(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithImmich("http://photos:2283", "super-secret"))
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	testsupport.MustUpsert(t, store, testsupport.NewVerdict("keep", classify.CategoryScreenshot, 0.9))
	testsupport.MustUpsert(t, store, testsupport.NewVerdict("gone", classify.CategoryScreenshot, 0.9))
	if _, err := store.Mark(ctx, []string{"gone"}, true); err != nil {
		t.Fatalf("Mark: %v", err)
	}

	var buf bytes.Buffer
	if err := store.WriteDeletionScript(ctx, &buf, cfg.Immich.URL+"/api/"); err != nil {
		t.Fatalf("WriteDeletionScript: %v", err)
	}
	script := buf.String()
	if strings.Contains(script, "super-secret") {
		t.Fatal("script must not embed the api key")
	}
	if !strings.HasPrefix(script, "#!/usr/bin/env bash") || !strings.Contains(script, "$IMMICH_API_KEY") {
		t.Fatalf("unexpected script header:\n%s", script)
	}
	if !strings.Contains(script, `{"force":false,"ids":["gone"]}`) || strings.Contains(script, `"keep"`) {
		t.Fatalf("unexpected script body:\n%s", script)
	}
	if !strings.Contains(script, `IMMICH_URL="${IMMICH_URL:-http://photos:2283}"`) {
		t.Fatalf("unexpected base url line:\n%s", script)
	}
}

func TestOpenPathRejectsSchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "sweeper.db")
	store, err := results.OpenPath(path)
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_ = db.Close()

	if _, err := results.OpenPath(path); !errors.Is(err, results.ErrSchemaMismatch) {
		t.Fatalf("expected schema mismatch, got %v", err)
	}
}
