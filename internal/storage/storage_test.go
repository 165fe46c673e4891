package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tally/internal/core"
)

func sampleState(t *testing.T) *core.AppState {
	t.Helper()
	catID := uuid.New()
	segStart := time.Date(2026, 2, 10, 9, 30, 0, 0, time.UTC)
	return &core.AppState{
		Settings: core.Settings{USDPerHour: decimal.RequireFromString("22.50")},
		Categories: []core.Category{
			{
				ID:                 catID,
				Title:              "Running",
				Type:               core.GoodHabit,
				Unit:               core.UnitTime,
				Multiplier:         decimal.RequireFromString("1.5"),
				TimeMode:           core.TimeModeMultiplier,
				DailyGoal:          30,
				StreakEnabled:      true,
				StreakCadence:      core.CadenceDaily,
				BadgeEnabled:       true,
				BadgeMilestones:    []int{3, 7, 14},
				StreakBonusEnabled: true,
				BonusSchedule: map[int]decimal.Decimal{
					3: decimal.RequireFromString("1.25"),
					7: decimal.RequireFromString("5"),
				},
			},
		},
		Entries: []core.Entry{
			{
				ID:              uuid.New(),
				Timestamp:       time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC),
				CategoryID:      catID,
				DurationMinutes: 45,
				AmountUSD:       decimal.RequireFromString("25.31"),
				Note:            "morning run",
				IsManual:        true,
			},
			{
				ID:         uuid.New(),
				Timestamp:  time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC),
				CategoryID: catID,
				Quantity:   decimal.NewNullDecimal(decimal.RequireFromString("2.5")),
				Unit:       core.UnitCount,
				AmountUSD:  decimal.RequireFromString("2.50"),
			},
		},
		BadgeAwards: []core.BadgeAward{
			{
				AwardKey:    "streak:" + catID.String() + ":3:2026-02-10",
				DateAwarded: time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC),
				CategoryID:  catID,
				Milestone:   3,
				Cadence:     core.CadenceDaily,
			},
		},
		ActiveSession: &core.ActiveSession{
			CategoryID:          catID,
			StartTime:           time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC),
			IsPaused:            false,
			AccumulatedSeconds:  120,
			RunningSegmentStart: &segStart,
		},
	}
}

func assertStateEqual(t *testing.T, got, want *core.AppState) {
	t.Helper()
	if got == nil {
		t.Fatal("expected state, got nil")
	}
	if !got.Settings.USDPerHour.Equal(want.Settings.USDPerHour) {
		t.Errorf("usdPerHour = %s, want %s", got.Settings.USDPerHour, want.Settings.USDPerHour)
	}
	if len(got.Categories) != len(want.Categories) {
		t.Fatalf("categories = %d, want %d", len(got.Categories), len(want.Categories))
	}
	wc, gc := want.Categories[0], got.Categories[0]
	if gc.ID != wc.ID || gc.Title != wc.Title || gc.Type != wc.Type || gc.Unit != wc.Unit {
		t.Errorf("category identity mismatch: got %+v", gc)
	}
	if !gc.Multiplier.Equal(wc.Multiplier) {
		t.Errorf("multiplier = %s, want %s", gc.Multiplier, wc.Multiplier)
	}
	if len(gc.BadgeMilestones) != 3 || gc.BadgeMilestones[2] != 14 {
		t.Errorf("milestones = %v, want [3 7 14]", gc.BadgeMilestones)
	}
	if len(gc.BonusSchedule) != 2 || !gc.BonusSchedule[3].Equal(decimal.RequireFromString("1.25")) {
		t.Errorf("bonus schedule = %v", gc.BonusSchedule)
	}
	if len(got.Entries) != len(want.Entries) {
		t.Fatalf("entries = %d, want %d", len(got.Entries), len(want.Entries))
	}
	for i := range want.Entries {
		we, ge := want.Entries[i], got.Entries[i]
		if ge.ID != we.ID || !ge.Timestamp.Equal(we.Timestamp) || ge.DurationMinutes != we.DurationMinutes {
			t.Errorf("entry %d mismatch: got %+v", i, ge)
		}
		if !ge.AmountUSD.Equal(we.AmountUSD) {
			t.Errorf("entry %d amount = %s, want %s", i, ge.AmountUSD, we.AmountUSD)
		}
		if ge.Quantity.Valid != we.Quantity.Valid {
			t.Errorf("entry %d quantity validity = %v, want %v", i, ge.Quantity.Valid, we.Quantity.Valid)
		}
	}
	if len(got.BadgeAwards) != 1 || got.BadgeAwards[0].AwardKey != want.BadgeAwards[0].AwardKey {
		t.Errorf("badge awards = %+v", got.BadgeAwards)
	}
	if got.BadgeAwards[0].CategoryID != want.BadgeAwards[0].CategoryID {
		t.Errorf("award category = %s, want %s", got.BadgeAwards[0].CategoryID, want.BadgeAwards[0].CategoryID)
	}
	if got.ActiveSession == nil {
		t.Fatal("expected active session")
	}
	if got.ActiveSession.AccumulatedSeconds != 120 || got.ActiveSession.RunningSegmentStart == nil {
		t.Errorf("session = %+v", got.ActiveSession)
	}
}

func TestJSONStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "state.json")
	store := NewJSONStore(path)
	ctx := context.Background()

	state, err := store.Read(ctx)
	if err != nil {
		t.Fatalf("read empty: %v", err)
	}
	if state != nil {
		t.Fatal("expected nil state before first write")
	}

	want := sampleState(t)
	if err := store.Write(ctx, want); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := store.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	assertStateEqual(t, got, want)

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	state, err = store.Read(ctx)
	if err != nil {
		t.Fatalf("read after clear: %v", err)
	}
	if state != nil {
		t.Fatal("expected nil state after clear")
	}
}

func TestJSONStoreClearMissingFile(t *testing.T) {
	store := NewJSONStore(filepath.Join(t.TempDir(), "missing.json"))
	if err := store.Clear(context.Background()); err != nil {
		t.Fatalf("clear on missing file: %v", err)
	}
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "tally.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	state, err := store.Read(ctx)
	if err != nil {
		t.Fatalf("read empty: %v", err)
	}
	if state != nil {
		t.Fatal("expected nil state before first write")
	}

	want := sampleState(t)
	if err := store.Write(ctx, want); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := store.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	assertStateEqual(t, got, want)

	// A second write replaces the snapshot rather than appending to it.
	want.Entries = want.Entries[:1]
	want.ActiveSession = nil
	if err := store.Write(ctx, want); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	got, err = store.Read(ctx)
	if err != nil {
		t.Fatalf("reread: %v", err)
	}
	if len(got.Entries) != 1 {
		t.Errorf("entries after rewrite = %d, want 1", len(got.Entries))
	}
	if got.ActiveSession != nil {
		t.Error("expected no active session after rewrite")
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	state, err = store.Read(ctx)
	if err != nil {
		t.Fatalf("read after clear: %v", err)
	}
	if state != nil {
		t.Fatal("expected nil state after clear")
	}
}

func TestMemoryStoreIsolation(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	want := sampleState(t)
	if err := store.Write(ctx, want); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := store.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	got.Categories[0].Title = "mutated"

	again, err := store.Read(ctx)
	if err != nil {
		t.Fatalf("reread: %v", err)
	}
	if again.Categories[0].Title != "Running" {
		t.Errorf("stored state mutated through a read copy: %q", again.Categories[0].Title)
	}
}

func TestMilestonesCodec(t *testing.T) {
	tests := []struct {
		in   string
		want []int
	}{
		{"3,7,14", []int{3, 7, 14}},
		{" 7, 3 ,3", []int{3, 7}},
		{"", nil},
		{"0,-2,abc", nil},
	}
	for _, tt := range tests {
		got := parseMilestones(tt.in)
		if len(got) != len(tt.want) {
			t.Errorf("parseMilestones(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("parseMilestones(%q) = %v, want %v", tt.in, got, tt.want)
			}
		}
	}
	if s := formatMilestones([]int{14, 3, 7}); s != "3,7,14" {
		t.Errorf("formatMilestones = %q, want %q", s, "3,7,14")
	}
	if s := formatMilestones([]int{7, 3, 7, 0}); s != "3,7" {
		t.Errorf("formatMilestones = %q, want %q", s, "3,7")
	}
	if s := formatMilestones(nil); s != "" {
		t.Errorf("formatMilestones(nil) = %q, want empty", s)
	}
}
