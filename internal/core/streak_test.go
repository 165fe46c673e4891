package core

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func timeEntry(cat *Category, ts time.Time, minutes int) Entry {
	return Entry{
		ID:              uuid.New(),
		Timestamp:       ts,
		CategoryID:      cat.ID,
		DurationMinutes: minutes,
		Unit:            UnitTime,
		AmountUSD:       decimal.Zero,
	}
}

func dailyTimeCategory(goal int) *Category {
	return &Category{
		ID:            uuid.New(),
		Title:         "Reading",
		Type:          GoodHabit,
		Unit:          UnitTime,
		Multiplier:    d("1"),
		DailyGoal:     goal,
		StreakEnabled: true,
		StreakCadence: CadenceDaily,
	}
}

func TestPeriodAnchor(t *testing.T) {
	// 2026-02-10 is a Tuesday; the Sunday-based week starts 2026-02-08.
	ts := time.Date(2026, 2, 10, 15, 30, 0, 0, time.UTC)
	cases := []struct {
		cadence Cadence
		want    time.Time
	}{
		{CadenceDaily, time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)},
		{CadenceWeekly, time.Date(2026, 2, 8, 0, 0, 0, 0, time.UTC)},
		{CadenceMonthly, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		if got := PeriodAnchor(ts, tc.cadence); !got.Equal(tc.want) {
			t.Fatalf("%s anchor expected %v, got %v", tc.cadence, tc.want, got)
		}
	}
}

func TestPeriodKey(t *testing.T) {
	ts := time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)
	if got := PeriodKey(CadenceDaily, ts); got != "2026-02-10" {
		t.Fatalf("daily key: %s", got)
	}
	if got := PeriodKey(CadenceWeekly, ts); got != "w2026-W07" {
		t.Fatalf("weekly key: %s", got)
	}
	if got := PeriodKey(CadenceMonthly, ts); got != "m2026-02" {
		t.Fatalf("monthly key: %s", got)
	}
}

func TestGoodHabitStreakOpenCurrentPeriod(t *testing.T) {
	cat := dailyTimeCategory(60)
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	entries := []Entry{
		timeEntry(cat, now.Add(-time.Hour), 30),                  // today, incomplete
		timeEntry(cat, now.AddDate(0, 0, -1), 70),                // yesterday, met
		timeEntry(cat, now.AddDate(0, 0, -2), 60),                // two days ago, met
		timeEntry(cat, now.AddDate(0, 0, -3), 10),                // below goal, breaks
		timeEntry(cat, now.AddDate(0, 0, -4), 120),               // not reached by the walk
		{ID: uuid.New(), Timestamp: now, CategoryID: uuid.New()}, // other category, ignored
	}
	if got := Streak(cat, entries, now); got != 2 {
		t.Fatalf("expected streak 2, got %d", got)
	}
}

func TestGoodHabitStreakCountsCurrentPeriodWhenMet(t *testing.T) {
	cat := dailyTimeCategory(60)
	now := time.Date(2026, 2, 10, 21, 0, 0, 0, time.UTC)
	entries := []Entry{
		timeEntry(cat, now.Add(-time.Hour), 65),
		timeEntry(cat, now.AddDate(0, 0, -1), 60),
	}
	if got := Streak(cat, entries, now); got != 2 {
		t.Fatalf("expected streak 2, got %d", got)
	}
}

func TestGoodHabitStreakDisabledOrNoGoal(t *testing.T) {
	cat := dailyTimeCategory(0)
	now := time.Now()
	entries := []Entry{timeEntry(cat, now, 500)}
	if got := Streak(cat, entries, now); got != 0 {
		t.Fatalf("goal 0 expected streak 0, got %d", got)
	}
	cat.DailyGoal = 60
	cat.StreakEnabled = false
	if got := Streak(cat, entries, now); got != 0 {
		t.Fatalf("disabled expected streak 0, got %d", got)
	}
}

func TestGoodHabitStreakIgnoresBonusEntries(t *testing.T) {
	cat := dailyTimeCategory(60)
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	bonus := timeEntry(cat, now.AddDate(0, 0, -1), 90)
	bonus.BonusKey = "streak:" + cat.ID.String() + ":3:2026-02-09"
	entries := []Entry{bonus}
	if got := Streak(cat, entries, now); got != 0 {
		t.Fatalf("bonus-only day should not sustain a streak, got %d", got)
	}
}

func TestQuitHabitStreakFullElapsedDays(t *testing.T) {
	cat := &Category{
		ID:            uuid.New(),
		Title:         "Doomscrolling",
		Type:          QuitHabit,
		Unit:          UnitTime,
		Multiplier:    d("1"),
		DailyGoal:     30,
		StreakEnabled: true,
		StreakCadence: CadenceDaily,
	}
	relapse := time.Date(2026, 2, 7, 23, 30, 0, 0, time.UTC)
	now := time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)
	entries := []Entry{timeEntry(cat, relapse, 45)}
	if got := Streak(cat, entries, now); got != 3 {
		t.Fatalf("expected 3 clean days, got %d", got)
	}

	// Same-day relapse: no full period elapsed yet.
	if got := Streak(cat, entries, relapse.Add(10*time.Minute)); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}

	// No entries at all.
	if got := Streak(cat, nil, now); got != 0 {
		t.Fatalf("no entries expected 0, got %d", got)
	}
}

func TestWeeklyStreakAnchorsOnSundays(t *testing.T) {
	cat := dailyTimeCategory(100)
	cat.StreakCadence = CadenceWeekly
	// now: Tuesday 2026-02-10. Current week met, previous week met.
	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	entries := []Entry{
		timeEntry(cat, time.Date(2026, 2, 9, 8, 0, 0, 0, time.UTC), 120), // this week (Mon)
		timeEntry(cat, time.Date(2026, 2, 4, 8, 0, 0, 0, time.UTC), 60),  // last week (Wed)
		timeEntry(cat, time.Date(2026, 2, 6, 8, 0, 0, 0, time.UTC), 50),  // last week (Fri)
	}
	if got := Streak(cat, entries, now); got != 2 {
		t.Fatalf("expected weekly streak 2, got %d", got)
	}
}

func TestTotalProgressWindow(t *testing.T) {
	cat := dailyTimeCategory(60)
	day := time.Date(2026, 2, 10, 14, 0, 0, 0, time.UTC)
	entries := []Entry{
		timeEntry(cat, time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC), 20), // inclusive start
		timeEntry(cat, time.Date(2026, 2, 10, 23, 59, 0, 0, time.UTC), 15),
		timeEntry(cat, time.Date(2026, 2, 11, 0, 0, 0, 0, time.UTC), 40), // next period, excluded
	}
	if got := TotalProgress(cat, entries, day); got.String() != "35" {
		t.Fatalf("expected 35, got %s", got)
	}
}

func TestProgressValueByUnit(t *testing.T) {
	moneyCat := &Category{ID: uuid.New(), Unit: UnitMoney, Multiplier: d("1")}
	e := Entry{CategoryID: moneyCat.ID, AmountUSD: d("-12.5")}
	if got := ProgressValue(e, moneyCat); got.String() != "12.5" {
		t.Fatalf("money progress expected 12.5, got %s", got)
	}

	countCat := &Category{ID: uuid.New(), Unit: UnitCount, Multiplier: d("1")}
	e = Entry{CategoryID: countCat.ID, Unit: UnitCount, Quantity: decimal.NewNullDecimal(d("4"))}
	if got := ProgressValue(e, countCat); got.String() != "4" {
		t.Fatalf("count progress expected 4, got %s", got)
	}
	// Non-count entry against a count category falls back to minutes.
	e = Entry{CategoryID: countCat.ID, Unit: UnitTime, DurationMinutes: 25}
	if got := ProgressValue(e, countCat); got.String() != "25" {
		t.Fatalf("fallback progress expected 25, got %s", got)
	}
}

func TestRiskAlerts(t *testing.T) {
	now := time.Date(2026, 2, 10, 20, 0, 0, 0, time.UTC)
	th := DefaultRiskThresholds()

	good := dailyTimeCategory(60)
	goodEntries := []Entry{
		timeEntry(good, now.AddDate(0, 0, -1), 70), // active streak of 1
		timeEntry(good, now, 50),                   // 10 remaining => 10/60 < 0.25
	}
	alerts := RiskAlerts([]Category{*good}, goodEntries, now, th)
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerts))
	}
	if alerts[0].Severity != 3 || alerts[0].Remaining.String() != "10" {
		t.Fatalf("unexpected alert %+v", alerts[0])
	}

	// More remaining: plain warning.
	goodEntries[1].DurationMinutes = 20
	alerts = RiskAlerts([]Category{*good}, goodEntries, now, th)
	if len(alerts) != 1 || alerts[0].Severity != 2 {
		t.Fatalf("expected severity 2 alert, got %+v", alerts)
	}

	// No active streak: silent.
	alerts = RiskAlerts([]Category{*good}, goodEntries[1:], now, th)
	if len(alerts) != 0 {
		t.Fatalf("expected no alerts without a streak, got %+v", alerts)
	}

	quit := &Category{
		ID: uuid.New(), Title: "Takeout", Type: QuitHabit, Unit: UnitTime,
		Multiplier: d("1"), DailyGoal: 100, StreakEnabled: true, StreakCadence: CadenceDaily,
	}
	cases := []struct {
		minutes  int
		severity int // 0 means no alert
	}{
		{0, 0},
		{50, 0},
		{70, 2},
		{100, 3},
		{140, 3},
	}
	for _, tc := range cases {
		var entries []Entry
		if tc.minutes > 0 {
			entries = []Entry{timeEntry(quit, now, tc.minutes)}
		}
		alerts := RiskAlerts([]Category{*quit}, entries, now, th)
		if tc.severity == 0 {
			if len(alerts) != 0 {
				t.Fatalf("minutes=%d: expected no alert, got %+v", tc.minutes, alerts)
			}
			continue
		}
		if len(alerts) != 1 || alerts[0].Severity != tc.severity {
			t.Fatalf("minutes=%d: expected severity %d, got %+v", tc.minutes, tc.severity, alerts)
		}
	}
}

func TestStreakHighlightTieBreaks(t *testing.T) {
	now := time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)
	relapse := time.Date(2026, 2, 7, 12, 0, 0, 0, time.UTC) // 3 clean days

	quit := &Category{
		ID: uuid.New(), Title: "alcohol", Type: QuitHabit, Unit: UnitMoney,
		Multiplier: d("1"), StreakEnabled: true, StreakCadence: CadenceDaily,
	}
	goodA := dailyTimeCategory(30)
	goodA.Title = "Writing"
	goodB := dailyTimeCategory(30)
	goodB.Title = "running"

	var entries []Entry
	entries = append(entries, Entry{ID: uuid.New(), Timestamp: relapse, CategoryID: quit.ID, AmountUSD: d("-8")})
	for i := 1; i <= 3; i++ {
		entries = append(entries, timeEntry(goodA, now.AddDate(0, 0, -i), 45))
		entries = append(entries, timeEntry(goodB, now.AddDate(0, 0, -i), 45))
	}

	h := StreakHighlight([]Category{*quit, *goodA, *goodB}, entries, now)
	if h == nil {
		t.Fatal("expected a highlight")
	}
	// All three have streak 3: good habits beat the quit habit, and
	// "running" sorts before "Writing" case-insensitively.
	if h.CategoryID != goodB.ID {
		t.Fatalf("expected %s highlighted, got %s", goodB.Title, h.CategoryTitle)
	}

	if h := StreakHighlight(nil, nil, now); h != nil {
		t.Fatalf("expected nil highlight, got %+v", h)
	}
}
