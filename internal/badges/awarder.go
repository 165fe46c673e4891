// Package badges grants streak milestone awards and their bonus payouts.
package badges

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"tally/internal/core"
)

// AwardKey builds the unique key enforcing at-most-one award per category,
// milestone and cadence period.
func AwardKey(categoryID uuid.UUID, milestone int, periodKey string) string {
	return fmt.Sprintf("streak:%s:%d:%s", categoryID, milestone, periodKey)
}

// Result is what one award pass produced. Both slices are empty when the
// category's current streak unlocks nothing new.
type Result struct {
	Awards       []core.BadgeAward
	BonusEntries []core.Entry
}

// AwardIfEligible checks every configured milestone against the category's
// current streak and returns the awards (and bonus ledger entries) that do
// not exist yet. hasAward answers whether an award key was already granted;
// running the pass twice with the same inputs therefore yields nothing the
// second time.
func AwardIfEligible(cat *core.Category, entries []core.Entry, hasAward func(key string) bool, now time.Time) Result {
	var res Result
	if !cat.StreakEnabled || !cat.BadgeEnabled {
		return res
	}
	streak := core.Streak(cat, entries, now)
	if streak <= 0 {
		return res
	}

	periodKey := core.PeriodKey(cat.StreakCadence, now)
	for _, milestone := range cat.BadgeMilestones {
		if streak < milestone {
			// Milestones are ascending; nothing further unlocks.
			break
		}
		key := AwardKey(cat.ID, milestone, periodKey)
		if hasAward(key) {
			continue
		}
		res.Awards = append(res.Awards, core.BadgeAward{
			AwardKey:    key,
			DateAwarded: now,
			CategoryID:  cat.ID,
			Milestone:   milestone,
			Cadence:     cat.StreakCadence,
		})

		if !cat.StreakBonusEnabled {
			continue
		}
		amount, ok := cat.BonusAmountFor(milestone)
		if !ok {
			continue
		}
		res.BonusEntries = append(res.BonusEntries, core.Entry{
			ID:         uuid.New(),
			Timestamp:  now,
			CategoryID: cat.ID,
			AmountUSD:  core.Round2(amount),
			Note:       fmt.Sprintf("Streak bonus: %s reached milestone %d (%s)", cat.Title, milestone, periodKey),
			BonusKey:   key,
			IsManual:   false,
		})
	}
	return res
}
