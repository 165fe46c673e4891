package core

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PeriodAnchor returns the canonical start instant of the cadence period
// containing t, in t's location. Weeks are Sunday-anchored.
func PeriodAnchor(t time.Time, c Cadence) time.Time {
	y, m, d := t.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	switch c {
	case CadenceWeekly:
		return day.AddDate(0, 0, -int(day.Weekday()))
	case CadenceMonthly:
		return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
	default:
		return day
	}
}

// NextPeriod advances an anchor by one period.
func NextPeriod(anchor time.Time, c Cadence) time.Time {
	switch c {
	case CadenceWeekly:
		return anchor.AddDate(0, 0, 7)
	case CadenceMonthly:
		return anchor.AddDate(0, 1, 0)
	default:
		return anchor.AddDate(0, 0, 1)
	}
}

// PrevPeriod moves an anchor back by one period.
func PrevPeriod(anchor time.Time, c Cadence) time.Time {
	switch c {
	case CadenceWeekly:
		return anchor.AddDate(0, 0, -7)
	case CadenceMonthly:
		return anchor.AddDate(0, -1, 0)
	default:
		return anchor.AddDate(0, 0, -1)
	}
}

// PeriodKey renders the award-key period component: YYYY-MM-DD for daily,
// wYYYY-Www (ISO week) for weekly, mYYYY-MM for monthly.
func PeriodKey(c Cadence, t time.Time) string {
	switch c {
	case CadenceWeekly:
		y, w := t.ISOWeek()
		return fmt.Sprintf("w%04d-W%02d", y, w)
	case CadenceMonthly:
		return "m" + t.Format("2006-01")
	default:
		return t.Format("2006-01-02")
	}
}

// ProgressValue is an entry's contribution toward its category's goal.
// Bonus payout entries contribute nothing; otherwise time categories count
// minutes, count categories count the entry quantity (falling back to the
// duration for non-count entries) and money categories count absolute
// dollars.
func ProgressValue(e Entry, cat *Category) decimal.Decimal {
	if e.IsBonus() {
		return decimal.Zero
	}
	switch cat.Unit {
	case UnitTime:
		return decimal.NewFromInt(int64(e.DurationMinutes))
	case UnitCount:
		if e.ResolvedUnit(cat) == UnitCount {
			return e.ResolvedQuantity(cat)
		}
		return decimal.NewFromInt(int64(e.DurationMinutes))
	case UnitMoney:
		return e.AmountUSD.Abs()
	}
	return decimal.Zero
}

// TotalProgress sums progress for the category's entries whose timestamps
// fall inside the cadence period containing onDate.
func TotalProgress(cat *Category, entries []Entry, onDate time.Time) decimal.Decimal {
	start := PeriodAnchor(onDate, cat.StreakCadence)
	end := NextPeriod(start, cat.StreakCadence)
	total := decimal.Zero
	for _, e := range entries {
		if e.CategoryID != cat.ID {
			continue
		}
		if e.Timestamp.Before(start) || !e.Timestamp.Before(end) {
			continue
		}
		total = total.Add(ProgressValue(e, cat))
	}
	return total
}

// Streak computes the current streak length for a category.
//
// Good habits count consecutive periods meeting the goal, walking backward
// from the current period when it is already met, else from the previous one
// (the current period is still open, not yet failed). Quit habits count full
// elapsed periods since the last relapse entry.
func Streak(cat *Category, entries []Entry, now time.Time) int {
	if !cat.StreakEnabled {
		return 0
	}
	if cat.Type == QuitHabit {
		return quitStreak(cat, entries, now)
	}
	return goodStreak(cat, entries, now)
}

func goodStreak(cat *Category, entries []Entry, now time.Time) int {
	if cat.DailyGoal <= 0 {
		return 0
	}
	goal := decimal.NewFromInt(int64(cat.DailyGoal))

	totals := make(map[int64]decimal.Decimal)
	for _, e := range entries {
		if e.CategoryID != cat.ID {
			continue
		}
		v := ProgressValue(e, cat)
		if v.Sign() == 0 {
			continue
		}
		k := PeriodAnchor(e.Timestamp, cat.StreakCadence).Unix()
		totals[k] = totals[k].Add(v)
	}
	if len(totals) == 0 {
		return 0
	}

	anchor := PeriodAnchor(now, cat.StreakCadence)
	if totals[anchor.Unix()].LessThan(goal) {
		anchor = PrevPeriod(anchor, cat.StreakCadence)
	}

	streak := 0
	for {
		total, ok := totals[anchor.Unix()]
		if !ok || total.LessThan(goal) {
			return streak
		}
		streak++
		anchor = PrevPeriod(anchor, cat.StreakCadence)
	}
}

func quitStreak(cat *Category, entries []Entry, now time.Time) int {
	// Bonus payouts are not relapses; the last real entry marks the slip.
	var last time.Time
	found := false
	for _, e := range entries {
		if e.CategoryID != cat.ID || e.IsBonus() {
			continue
		}
		if !found || e.Timestamp.After(last) {
			last = e.Timestamp
			found = true
		}
	}
	if !found {
		return 0
	}

	nowAnchor := PeriodAnchor(now, cat.StreakCadence)
	anchor := NextPeriod(PeriodAnchor(last, cat.StreakCadence), cat.StreakCadence)
	streak := 0
	for !anchor.After(nowAnchor) {
		streak++
		anchor = NextPeriod(anchor, cat.StreakCadence)
	}
	return streak
}

// RiskThresholds carries the alert cutoffs. The 70% quit warning ratio and
// the 25%-remaining severity cutoff are product-chosen constants pending
// confirmation, so they are injected rather than read as literals.
type RiskThresholds struct {
	// QuitWarnRatio is the share of the goal at which a quit habit's
	// current-period progress starts warning.
	QuitWarnRatio decimal.Decimal
	// SevereRemainingRatio is the remaining/goal share at or below which a
	// good-habit alert escalates.
	SevereRemainingRatio decimal.Decimal
}

// DefaultRiskThresholds returns the stock cutoffs.
func DefaultRiskThresholds() RiskThresholds {
	return RiskThresholds{
		QuitWarnRatio:        decimal.NewFromFloat(0.7),
		SevereRemainingRatio: decimal.NewFromFloat(0.25),
	}
}

// RiskAlert flags a streak in danger for the current period.
type RiskAlert struct {
	CategoryID    uuid.UUID       `json:"categoryId"`
	CategoryTitle string          `json:"categoryTitle"`
	Cadence       Cadence         `json:"cadence"`
	Streak        int             `json:"streak"`
	Goal          decimal.Decimal `json:"goal"`
	Progress      decimal.Decimal `json:"progress"`
	Remaining     decimal.Decimal `json:"remaining"` // good habits only
	Severity      int             `json:"severity"`  // 2 = warning, 3 = critical
}

// RiskAlerts evaluates every streak-enabled category against th.
//
// Good habits with an active streak alert while current-period progress is
// below goal; severity escalates when little of the goal remains (the streak
// is about to be lost by a small margin of time). Quit habits alert as
// progress approaches the goal ceiling and go critical once it is crossed.
func RiskAlerts(cats []Category, entries []Entry, now time.Time, th RiskThresholds) []RiskAlert {
	var alerts []RiskAlert
	for i := range cats {
		cat := &cats[i]
		if !cat.StreakEnabled || cat.DailyGoal <= 0 {
			continue
		}
		goal := decimal.NewFromInt(int64(cat.DailyGoal))
		progress := TotalProgress(cat, entries, now)

		if cat.Type == GoodHabit {
			streak := Streak(cat, entries, now)
			if streak <= 0 || progress.GreaterThanOrEqual(goal) {
				continue
			}
			remaining := goal.Sub(progress)
			severity := 2
			if remaining.Div(goal).LessThanOrEqual(th.SevereRemainingRatio) {
				severity = 3
			}
			alerts = append(alerts, RiskAlert{
				CategoryID:    cat.ID,
				CategoryTitle: cat.Title,
				Cadence:       cat.StreakCadence,
				Streak:        streak,
				Goal:          goal,
				Progress:      progress,
				Remaining:     remaining,
				Severity:      severity,
			})
			continue
		}

		// Quit habit: silence while clean this period.
		if progress.Sign() <= 0 {
			continue
		}
		severity := 0
		switch {
		case progress.GreaterThanOrEqual(goal):
			severity = 3 // streak already broken this period
		case progress.GreaterThanOrEqual(goal.Mul(th.QuitWarnRatio)):
			severity = 2
		default:
			continue
		}
		alerts = append(alerts, RiskAlert{
			CategoryID:    cat.ID,
			CategoryTitle: cat.Title,
			Cadence:       cat.StreakCadence,
			Streak:        Streak(cat, entries, now),
			Goal:          goal,
			Progress:      progress,
			Severity:      severity,
		})
	}
	return alerts
}

// Highlight is the single best active streak for the dashboard.
type Highlight struct {
	CategoryID    uuid.UUID `json:"categoryId"`
	CategoryTitle string    `json:"categoryTitle"`
	Type          HabitType `json:"type"`
	Cadence       Cadence   `json:"cadence"`
	Streak        int       `json:"streak"`
}

// StreakHighlight picks the category with the highest active streak.
// Ties prefer good habits over quit habits, then the case-insensitively
// lowest title.
func StreakHighlight(cats []Category, entries []Entry, now time.Time) *Highlight {
	type candidate struct {
		cat    *Category
		streak int
	}
	var cands []candidate
	for i := range cats {
		cat := &cats[i]
		if s := Streak(cat, entries, now); s > 0 {
			cands = append(cands, candidate{cat: cat, streak: s})
		}
	}
	if len(cands) == 0 {
		return nil
	}
	sort.Slice(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.streak != b.streak {
			return a.streak > b.streak
		}
		if a.cat.Type != b.cat.Type {
			return a.cat.Type == GoodHabit
		}
		return strings.ToLower(a.cat.Title) < strings.ToLower(b.cat.Title)
	})
	best := cands[0]
	return &Highlight{
		CategoryID:    best.cat.ID,
		CategoryTitle: best.cat.Title,
		Type:          best.cat.Type,
		Cadence:       best.cat.StreakCadence,
		Streak:        best.streak,
	}
}
