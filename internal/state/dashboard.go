package state

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tally/internal/core"
)

// SessionStatus is the live view of the active session, with elapsed time
// and projected amount computed from the wall clock at read time.
type SessionStatus struct {
	CategoryID     uuid.UUID       `json:"categoryId"`
	CategoryTitle  string          `json:"categoryTitle"`
	IsPaused       bool            `json:"isPaused"`
	ElapsedSeconds int             `json:"elapsedSeconds"`
	AmountUSD      decimal.Decimal `json:"amountUSD"`
}

// Dashboard is the read-only projection served to the UI.
type Dashboard struct {
	Balance      decimal.Decimal   `json:"balance"`
	Today        core.DaySummary   `json:"today"`
	Session      *SessionStatus    `json:"session,omitempty"`
	Highlight    *core.Highlight   `json:"streakHighlight,omitempty"`
	RiskAlerts   []core.RiskAlert  `json:"riskAlerts,omitempty"`
	RecentBadges []core.BadgeAward `json:"recentBadges,omitempty"`
}

const recentBadgeLimit = 5

// Dashboard computes the projection for the current instant. It never
// mutates state.
func (s *Store) Dashboard() Dashboard {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	state := s.state
	d := Dashboard{
		Balance:    core.Balance(state.Entries),
		Today:      core.DayBreakdown(state.Entries, now),
		Highlight:  core.StreakHighlight(state.Categories, state.Entries, now),
		RiskAlerts: core.RiskAlerts(state.Categories, state.Entries, now, s.risk),
	}

	if sess := state.ActiveSession; sess != nil {
		if cat := state.FindCategory(sess.CategoryID); cat != nil {
			d.Session = liveSession(sess, cat, state.Settings.USDPerHour, now)
		}
	}

	if n := len(state.BadgeAwards); n > 0 {
		recent := make([]core.BadgeAward, n)
		copy(recent, state.BadgeAwards)
		sort.SliceStable(recent, func(i, j int) bool {
			return recent[i].DateAwarded.After(recent[j].DateAwarded)
		})
		if len(recent) > recentBadgeLimit {
			recent = recent[:recentBadgeLimit]
		}
		d.RecentBadges = recent
	}

	return d
}

func liveSession(sess *core.ActiveSession, cat *core.Category, usdPerHour decimal.Decimal, now time.Time) *SessionStatus {
	elapsed := sess.ElapsedSeconds(now)
	minutes := decimal.NewFromInt(int64(elapsed)).Div(decimal.NewFromInt(60))
	return &SessionStatus{
		CategoryID:     cat.ID,
		CategoryTitle:  cat.Title,
		IsPaused:       sess.IsPaused,
		ElapsedSeconds: elapsed,
		AmountUSD:      core.AmountUSD(cat, minutes, usdPerHour),
	}
}
