package state

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tally/internal/core"
)

func TestDashboardProjection(t *testing.T) {
	store, _, clk := newTestStore(t)
	ctx := context.Background()
	cat := timeCategory(t, store, "Running")

	// Yesterday: 40 minutes. Today: 40 minutes then a live session.
	if _, err := store.AddManualEntry(ctx, cat.ID, decimal.NewFromInt(40), ""); err != nil {
		t.Fatal(err)
	}
	clk.Advance(24 * time.Hour)
	if _, err := store.AddManualEntry(ctx, cat.ID, decimal.NewFromInt(40), ""); err != nil {
		t.Fatal(err)
	}
	if _, err := store.StartSession(ctx, cat.ID); err != nil {
		t.Fatal(err)
	}
	clk.Advance(6 * time.Minute)

	d := store.Dashboard()

	// Two 40-minute entries at $20/hr x1.5 = $20 each.
	if !d.Balance.Equal(decimal.NewFromInt(40)) {
		t.Errorf("balance = %s, want 40", d.Balance)
	}
	if d.Today.EntryCount != 1 {
		t.Errorf("today entries = %d, want 1", d.Today.EntryCount)
	}
	if !d.Today.Gain.Equal(decimal.NewFromInt(20)) {
		t.Errorf("today gain = %s, want 20", d.Today.Gain)
	}

	if d.Session == nil {
		t.Fatal("expected live session status")
	}
	if d.Session.ElapsedSeconds != 360 {
		t.Errorf("elapsed = %d, want 360", d.Session.ElapsedSeconds)
	}
	// 6 minutes at $20/hr x1.5 = $3.
	if !d.Session.AmountUSD.Equal(decimal.NewFromInt(3)) {
		t.Errorf("session amount = %s, want 3", d.Session.AmountUSD)
	}

	if d.Highlight == nil || d.Highlight.CategoryID != cat.ID {
		t.Errorf("highlight = %+v, want category %s", d.Highlight, cat.ID)
	}
	// Both days met the 30-minute goal, current period included.
	if d.Highlight.Streak != 2 {
		t.Errorf("highlight streak = %d, want 2", d.Highlight.Streak)
	}
}

func TestDashboardDoesNotMutate(t *testing.T) {
	store, mem, _ := newTestStore(t)
	cat := timeCategory(t, store, "Running")
	if _, err := store.AddManualEntry(context.Background(), cat.ID, decimal.NewFromInt(10), ""); err != nil {
		t.Fatal(err)
	}
	writes := mem.Writes

	_ = store.Dashboard()
	_ = store.Dashboard()

	if mem.Writes != writes {
		t.Error("dashboard projection must not persist anything")
	}
}

func TestDashboardRecentBadgesCapped(t *testing.T) {
	store, _, clk := newTestStore(t)
	ctx := context.Background()
	cat, err := store.CreateCategory(ctx, core.Category{
		Title:           "Running",
		Type:            core.GoodHabit,
		Unit:            core.UnitTime,
		DailyGoal:       10,
		StreakEnabled:   true,
		StreakCadence:   core.CadenceDaily,
		BadgeEnabled:    true,
		BadgeMilestones: []int{1, 2, 3, 4, 5, 6, 7},
	})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 7; i++ {
		if _, err := store.AddManualEntry(ctx, cat.ID, decimal.NewFromInt(15), ""); err != nil {
			t.Fatal(err)
		}
		clk.Advance(24 * time.Hour)
	}

	d := store.Dashboard()
	if len(d.RecentBadges) != recentBadgeLimit {
		t.Fatalf("recent badges = %d, want %d", len(d.RecentBadges), recentBadgeLimit)
	}
	for i := 1; i < len(d.RecentBadges); i++ {
		if d.RecentBadges[i].DateAwarded.After(d.RecentBadges[i-1].DateAwarded) {
			t.Error("recent badges must be sorted newest first")
		}
	}
}
