package transfer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tally/internal/core"
	"tally/internal/state"
	"tally/internal/storage"
)

func newTestService(t *testing.T) (*Service, *state.Store) {
	t.Helper()
	store := state.NewStore(storage.NewMemoryStore(), nil, state.Config{
		Now: func() time.Time { return time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC) },
	})
	if err := store.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	return NewService(store, nil), store
}

func importItem(id uuid.UUID, title, amount string) string {
	return fmt.Sprintf(`{
		"id": %q,
		"timestamp": "2026-02-09T08:00:00Z",
		"categoryTitle": %q,
		"categoryType": "goodHabit",
		"unit": "time",
		"durationMinutes": 30,
		"amountUSD": %q,
		"isManual": true,
		"note": "imported"
	}`, id, title, amount)
}

func TestImportMalformedJSONAborts(t *testing.T) {
	svc, store := newTestService(t)

	_, err := svc.Import(context.Background(), []byte(`{"entries": [`), ReplaceExisting)
	var perr *core.InvalidPayloadError
	if !errors.As(err, &perr) {
		t.Fatalf("expected InvalidPayloadError, got %v", err)
	}
	if snap := store.Snapshot(); len(snap.Entries) != 0 || len(snap.Categories) != 0 {
		t.Error("malformed payload must not mutate anything")
	}
}

func TestImportCreatesCategoriesAndEntries(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	id1, id2 := uuid.New(), uuid.New()
	data := fmt.Sprintf(`{"entries": [%s, %s]}`,
		importItem(id1, "Running", "10.00"),
		importItem(id2, "Running", "20.00"))

	preview, err := svc.PreviewImport([]byte(data))
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if preview.NewEntries != 2 || preview.NewCategories != 1 || preview.UpdatedEntries != 0 {
		t.Errorf("preview = %+v, want 2 new entries and 1 new category", preview)
	}

	undo, err := svc.Import(ctx, []byte(data), ReplaceExisting)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if undo == nil {
		t.Fatal("expected an undo payload")
	}
	if len(undo.CreatedEntryIDs) != 2 || len(undo.CreatedCategoryIDs) != 1 {
		t.Errorf("undo = %+v", undo)
	}

	snap := store.Snapshot()
	if len(snap.Categories) != 1 || snap.Categories[0].Title != "Running" {
		t.Errorf("categories = %+v", snap.Categories)
	}
	if len(snap.Entries) != 2 {
		t.Errorf("entries = %d, want 2", len(snap.Entries))
	}
	if !snap.Entries[0].AmountUSD.Equal(decimal.NewFromInt(10)) {
		t.Errorf("amount = %s, want 10", snap.Entries[0].AmountUSD)
	}
}

func TestImportConflictPolicies(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	id := uuid.New()
	original := fmt.Sprintf(`{"entries": [%s]}`, importItem(id, "Running", "10.00"))
	if _, err := svc.Import(ctx, []byte(original), ReplaceExisting); err != nil {
		t.Fatal(err)
	}

	updated := fmt.Sprintf(`{"entries": [%s]}`, importItem(id, "Running", "99.00"))

	// KeepExisting skips the conflicting entry and yields no undo payload.
	undo, err := svc.Import(ctx, []byte(updated), KeepExisting)
	if err != nil {
		t.Fatalf("keep import: %v", err)
	}
	if undo != nil {
		t.Errorf("expected nil undo when nothing changed, got %+v", undo)
	}
	if !store.Snapshot().FindEntry(id).AmountUSD.Equal(decimal.NewFromInt(10)) {
		t.Error("KeepExisting must not overwrite")
	}

	// ReplaceExisting overwrites and snapshots the prior state.
	undo, err = svc.Import(ctx, []byte(updated), ReplaceExisting)
	if err != nil {
		t.Fatalf("replace import: %v", err)
	}
	if undo == nil || len(undo.UpdatedEntrySnapshots) != 1 {
		t.Fatalf("undo = %+v, want one snapshot", undo)
	}
	if !undo.UpdatedEntrySnapshots[0].AmountUSD.Equal(decimal.NewFromInt(10)) {
		t.Errorf("snapshot amount = %s, want the pre-overwrite 10", undo.UpdatedEntrySnapshots[0].AmountUSD)
	}
	if !store.Snapshot().FindEntry(id).AmountUSD.Equal(decimal.NewFromInt(99)) {
		t.Error("ReplaceExisting must overwrite")
	}
}

func TestImportSkipsMalformedItems(t *testing.T) {
	svc, store := newTestService(t)
	data := fmt.Sprintf(`{"entries": [
		%s,
		{"id": "not-a-uuid", "timestamp": "2026-02-09T08:00:00Z", "categoryTitle": "X", "categoryType": "goodHabit", "unit": "time", "amountUSD": "1.00"},
		{"id": %q, "timestamp": "yesterday", "categoryTitle": "X", "categoryType": "goodHabit", "unit": "time", "amountUSD": "1.00"},
		{"id": %q, "timestamp": "2026-02-09T08:00:00Z", "categoryTitle": "X", "categoryType": "badHabit", "unit": "time", "amountUSD": "1.00"},
		{"id": %q, "timestamp": "2026-02-09T08:00:00Z", "categoryTitle": "X", "categoryType": "goodHabit", "unit": "time", "amountUSD": "lots"}
	]}`, importItem(uuid.New(), "Running", "10.00"), uuid.New(), uuid.New(), uuid.New())

	preview, err := svc.PreviewImport([]byte(data))
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if preview.SkippedEntries != 4 || preview.NewEntries != 1 {
		t.Errorf("preview = %+v, want 4 skipped and 1 new", preview)
	}

	if _, err := svc.Import(context.Background(), []byte(data), ReplaceExisting); err != nil {
		t.Fatalf("import: %v", err)
	}
	if n := len(store.Snapshot().Entries); n != 1 {
		t.Errorf("entries = %d, want only the valid one", n)
	}
}

func TestUndoReversesImport(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	existing := uuid.New()
	seed := fmt.Sprintf(`{"entries": [%s]}`, importItem(existing, "Running", "10.00"))
	if _, err := svc.Import(ctx, []byte(seed), ReplaceExisting); err != nil {
		t.Fatal(err)
	}

	newID := uuid.New()
	second := fmt.Sprintf(`{"entries": [%s, %s]}`,
		importItem(existing, "Running", "55.00"),
		importItem(newID, "Reading", "5.00"))
	undo, err := svc.Import(ctx, []byte(second), ReplaceExisting)
	if err != nil {
		t.Fatal(err)
	}

	result, err := svc.Undo(ctx, undo)
	if err != nil {
		t.Fatalf("undo: %v", err)
	}
	if result.DeletedEntries != 1 || result.RestoredEntries != 1 || result.DeletedCategories != 1 {
		t.Errorf("result = %+v", result)
	}
	if result.MissingRecords != 0 {
		t.Errorf("missing records = %d, want 0", result.MissingRecords)
	}

	snap := store.Snapshot()
	if len(snap.Entries) != 1 {
		t.Fatalf("entries = %d, want the original one", len(snap.Entries))
	}
	if !snap.Entries[0].AmountUSD.Equal(decimal.NewFromInt(10)) {
		t.Errorf("restored amount = %s, want 10", snap.Entries[0].AmountUSD)
	}
	if len(snap.Categories) != 1 || snap.Categories[0].Title != "Running" {
		t.Errorf("categories = %+v, want only Running left", snap.Categories)
	}
}

func TestUndoCountsMissingRecords(t *testing.T) {
	svc, _ := newTestService(t)
	payload := &UndoPayload{
		CreatedEntryIDs:       []uuid.UUID{uuid.New()},
		CreatedCategoryIDs:    []uuid.UUID{uuid.New()},
		UpdatedEntrySnapshots: []core.Entry{{ID: uuid.New()}},
	}
	result, err := svc.Undo(context.Background(), payload)
	if err != nil {
		t.Fatalf("undo: %v", err)
	}
	if result.MissingRecords != 3 {
		t.Errorf("missing records = %d, want 3", result.MissingRecords)
	}
}

func TestUndoKeepsReferencedCategories(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	first := fmt.Sprintf(`{"entries": [%s]}`, importItem(uuid.New(), "Running", "10.00"))
	undo, err := svc.Import(ctx, []byte(first), ReplaceExisting)
	if err != nil {
		t.Fatal(err)
	}
	// A later import adds a second entry to the same category; undoing the
	// first import must then leave the category alone.
	second := fmt.Sprintf(`{"entries": [%s]}`, importItem(uuid.New(), "Running", "20.00"))
	if _, err := svc.Import(ctx, []byte(second), ReplaceExisting); err != nil {
		t.Fatal(err)
	}

	result, err := svc.Undo(ctx, undo)
	if err != nil {
		t.Fatalf("undo: %v", err)
	}
	if result.DeletedCategories != 0 {
		t.Errorf("deleted categories = %d, want 0 while still referenced", result.DeletedCategories)
	}
	if len(store.Snapshot().Categories) != 1 {
		t.Error("referenced category must survive the undo")
	}
}

func TestUndoNilPayloadIsNoop(t *testing.T) {
	svc, _ := newTestService(t)
	result, err := svc.Undo(context.Background(), nil)
	if err != nil {
		t.Fatalf("undo: %v", err)
	}
	if result != (UndoResult{}) {
		t.Errorf("result = %+v, want zero", result)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	seed := fmt.Sprintf(`{"entries": [%s, %s]}`,
		importItem(uuid.New(), "Running", "10.00"),
		importItem(uuid.New(), "Reading", "4.50"))
	if _, err := svc.Import(ctx, []byte(seed), ReplaceExisting); err != nil {
		t.Fatal(err)
	}

	exported, err := svc.ExportJSON()
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	// Import the export into a fresh state and compare content.
	fresh, freshStore := newTestService(t)
	if _, err := fresh.Import(ctx, exported, ReplaceExisting); err != nil {
		t.Fatalf("re-import: %v", err)
	}

	a, b := store.Snapshot(), freshStore.Snapshot()
	if len(a.Entries) != len(b.Entries) {
		t.Fatalf("entries %d vs %d", len(a.Entries), len(b.Entries))
	}
	for i := range a.Entries {
		ae, be := a.Entries[i], b.Entries[i]
		if ae.ID != be.ID || !ae.AmountUSD.Equal(be.AmountUSD) || ae.DurationMinutes != be.DurationMinutes {
			t.Errorf("entry %d differs: %+v vs %+v", i, ae, be)
		}
	}
	if len(a.Categories) != len(b.Categories) {
		t.Fatalf("categories %d vs %d", len(a.Categories), len(b.Categories))
	}
	for i := range a.Categories {
		if a.Categories[i].Key() != b.Categories[i].Key() {
			t.Errorf("category %d key differs: %q vs %q", i, a.Categories[i].Key(), b.Categories[i].Key())
		}
	}
}

func TestExportJSONIncludesDailySummaries(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	seed := fmt.Sprintf(`{"entries": [%s]}`, importItem(uuid.New(), "Running", "10.00"))
	if _, err := svc.Import(ctx, []byte(seed), ReplaceExisting); err != nil {
		t.Fatal(err)
	}

	data, err := svc.ExportJSON()
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	var file struct {
		DailySummaries []summaryItem `json:"dailySummaries"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		t.Fatalf("parse export: %v", err)
	}
	if len(file.DailySummaries) != 1 {
		t.Fatalf("summaries = %d, want 1", len(file.DailySummaries))
	}
	day := file.DailySummaries[0]
	if day.Day != "2026-02-09" || day.LedgerChange != "10.00" || day.EntryCount != 1 {
		t.Errorf("summary = %+v", day)
	}
}

func TestExportCSV(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	seed := fmt.Sprintf(`{"entries": [%s]}`, importItem(uuid.New(), "Running", "10.00"))
	if _, err := svc.Import(ctx, []byte(seed), ReplaceExisting); err != nil {
		t.Fatal(err)
	}

	data, err := svc.ExportCSV()
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want header plus one row", len(lines))
	}
	if lines[0] != "day,ledgerChange,gain,spent,entryCount" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != "2026-02-09,10.00,10.00,0.00,1" {
		t.Errorf("row = %q", lines[1])
	}
}

func TestExportCSVEmptyState(t *testing.T) {
	svc, _ := newTestService(t)
	data, err := svc.ExportCSV()
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if strings.TrimSpace(string(data)) != "day,ledgerChange,gain,spent,entryCount" {
		t.Errorf("empty export = %q, want header only", data)
	}
}

func TestImportRejectsUnknownPolicy(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Import(context.Background(), []byte(`{"entries": []}`), Policy("merge"))
	var perr *core.InvalidPayloadError
	if !errors.As(err, &perr) {
		t.Fatalf("expected InvalidPayloadError, got %v", err)
	}
}
