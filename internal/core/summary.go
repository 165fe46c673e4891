package core

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// DaySummary is a compact ledger aggregate for one calendar day.
type DaySummary struct {
	Day          string          `json:"day"` // YYYY-MM-DD
	LedgerChange decimal.Decimal `json:"ledgerChange"`
	Gain         decimal.Decimal `json:"gain"`  // grind: sum of positive amounts
	Spent        decimal.Decimal `json:"spent"` // chill: sum of negative amounts (signed)
	EntryCount   int             `json:"entryCount"`
}

// DayBreakdown aggregates the entries whose timestamps fall on the given
// calendar day.
func DayBreakdown(entries []Entry, day time.Time) DaySummary {
	key := DayKey(day)
	s := DaySummary{Day: key, LedgerChange: decimal.Zero, Gain: decimal.Zero, Spent: decimal.Zero}
	for _, e := range entries {
		if DayKey(e.Timestamp) != key {
			continue
		}
		s.EntryCount++
		s.LedgerChange = Round2(s.LedgerChange.Add(e.AmountUSD))
		if e.AmountUSD.Sign() >= 0 {
			s.Gain = Round2(s.Gain.Add(e.AmountUSD))
		} else {
			s.Spent = Round2(s.Spent.Add(e.AmountUSD))
		}
	}
	return s
}

// DailySummaries aggregates all entries into per-day summaries, oldest day
// first.
func DailySummaries(entries []Entry) []DaySummary {
	byDay := make(map[string]*DaySummary)
	for _, e := range entries {
		key := DayKey(e.Timestamp)
		s, ok := byDay[key]
		if !ok {
			s = &DaySummary{Day: key, LedgerChange: decimal.Zero, Gain: decimal.Zero, Spent: decimal.Zero}
			byDay[key] = s
		}
		s.EntryCount++
		s.LedgerChange = Round2(s.LedgerChange.Add(e.AmountUSD))
		if e.AmountUSD.Sign() >= 0 {
			s.Gain = Round2(s.Gain.Add(e.AmountUSD))
		} else {
			s.Spent = Round2(s.Spent.Add(e.AmountUSD))
		}
	}
	out := make([]DaySummary, 0, len(byDay))
	for _, s := range byDay {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out
}
