package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tally/internal/core"
)

// JSONStore persists the snapshot as a single JSON file. Writes go through a
// temp file plus rename so a crash never leaves a torn snapshot behind.
type JSONStore struct {
	path string
}

// NewJSONStore returns a file-backed persister rooted at path.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

// snapshot is the serialized state shape. Amounts travel as decimal strings
// and the bonus schedule in its "milestone:amount,..." string form; both are
// parsed back into proper types at this boundary.
type snapshot struct {
	Version     int            `json:"version"`
	USDPerHour  string         `json:"usdPerHour"`
	Categories  []categoryJSON `json:"categories"`
	Entries     []entryJSON    `json:"entries"`
	BadgeAwards []awardJSON    `json:"badgeAwards"`
	Session     *sessionJSON   `json:"activeSession,omitempty"`
}

type categoryJSON struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Type            string `json:"type"`
	Unit            string `json:"unit"`
	Multiplier      string `json:"multiplier"`
	TimeMode        string `json:"timeConversionMode,omitempty"`
	HourlyRateUSD   string `json:"hourlyRateUSD,omitempty"`
	USDPerCount     string `json:"usdPerCount,omitempty"`
	DailyGoal       int    `json:"dailyGoalValue"`
	StreakEnabled   bool   `json:"streakEnabled"`
	StreakCadence   string `json:"streakCadence"`
	BadgeEnabled    bool   `json:"badgeEnabled"`
	BadgeMilestones string `json:"badgeMilestones,omitempty"`
	BonusEnabled    bool   `json:"streakBonusEnabled"`
	BonusSchedule   string `json:"streakBonusSchedule,omitempty"`
	LegacyBonusUSD  string `json:"streakBonusAmountUSD,omitempty"`
}

type entryJSON struct {
	ID              string `json:"id"`
	Timestamp       string `json:"timestamp"`
	CategoryID      string `json:"categoryId"`
	DurationMinutes int    `json:"durationMinutes"`
	Quantity        string `json:"quantity,omitempty"`
	Unit            string `json:"unit,omitempty"`
	AmountUSD       string `json:"amountUSD"`
	Note            string `json:"note,omitempty"`
	BonusKey        string `json:"bonusKey,omitempty"`
	IsManual        bool   `json:"isManual"`
}

type awardJSON struct {
	AwardKey    string `json:"awardKey"`
	DateAwarded string `json:"dateAwarded"`
	CategoryID  string `json:"categoryId,omitempty"`
	Milestone   int    `json:"milestone,omitempty"`
	Cadence     string `json:"cadence"`
}

type sessionJSON struct {
	CategoryID          string  `json:"categoryId"`
	StartTime           string  `json:"startTime"`
	IsPaused            bool    `json:"isPaused"`
	AccumulatedSeconds  int     `json:"accumulatedElapsedSeconds"`
	RunningSegmentStart *string `json:"runningSegmentStartTime,omitempty"`
}

func (s *JSONStore) Read(ctx context.Context) (*core.AppState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return snapshotToState(&snap), nil
}

func (s *JSONStore) Write(ctx context.Context, state *core.AppState) error {
	snap := stateToSnapshot(state)
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("serialize snapshot: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".tally-*.json")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

func (s *JSONStore) Clear(ctx context.Context) error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove snapshot: %w", err)
	}
	return nil
}

func stateToSnapshot(state *core.AppState) *snapshot {
	snap := &snapshot{
		Version:    1,
		USDPerHour: state.Settings.USDPerHour.String(),
	}
	for _, c := range state.Categories {
		snap.Categories = append(snap.Categories, categoryJSON{
			ID:              c.ID.String(),
			Title:           c.Title,
			Type:            string(c.Type),
			Unit:            string(c.Unit),
			Multiplier:      c.Multiplier.String(),
			TimeMode:        string(c.TimeMode),
			HourlyRateUSD:   zeroOmitted(c.HourlyRateUSD),
			USDPerCount:     zeroOmitted(c.USDPerCount),
			DailyGoal:       c.DailyGoal,
			StreakEnabled:   c.StreakEnabled,
			StreakCadence:   string(c.StreakCadence),
			BadgeEnabled:    c.BadgeEnabled,
			BadgeMilestones: formatMilestones(c.BadgeMilestones),
			BonusEnabled:    c.StreakBonusEnabled,
			BonusSchedule:   core.FormatBonusSchedule(c.BonusSchedule),
			LegacyBonusUSD:  zeroOmitted(c.LegacyBonusUSD),
		})
	}
	for _, e := range state.Entries {
		ej := entryJSON{
			ID:              e.ID.String(),
			Timestamp:       e.Timestamp.Format(time.RFC3339Nano),
			CategoryID:      e.CategoryID.String(),
			DurationMinutes: e.DurationMinutes,
			Unit:            string(e.Unit),
			AmountUSD:       e.AmountUSD.String(),
			Note:            e.Note,
			BonusKey:        e.BonusKey,
			IsManual:        e.IsManual,
		}
		if e.Quantity.Valid {
			ej.Quantity = e.Quantity.Decimal.String()
		}
		snap.Entries = append(snap.Entries, ej)
	}
	for _, a := range state.BadgeAwards {
		aj := awardJSON{
			AwardKey:    a.AwardKey,
			DateAwarded: a.DateAwarded.Format(time.RFC3339Nano),
			Milestone:   a.Milestone,
			Cadence:     string(a.Cadence),
		}
		if a.CategoryID != uuid.Nil {
			aj.CategoryID = a.CategoryID.String()
		}
		snap.BadgeAwards = append(snap.BadgeAwards, aj)
	}
	if sess := state.ActiveSession; sess != nil {
		sj := &sessionJSON{
			CategoryID:         sess.CategoryID.String(),
			StartTime:          sess.StartTime.Format(time.RFC3339Nano),
			IsPaused:           sess.IsPaused,
			AccumulatedSeconds: sess.AccumulatedSeconds,
		}
		if sess.RunningSegmentStart != nil {
			v := sess.RunningSegmentStart.Format(time.RFC3339Nano)
			sj.RunningSegmentStart = &v
		}
		snap.Session = sj
	}
	return snap
}

// snapshotToState maps the serialized form back into the domain model.
// Malformed rows are dropped rather than failing the whole load; the
// store's normalization pass repairs the rest.
func snapshotToState(snap *snapshot) *core.AppState {
	state := &core.AppState{}
	if v, err := decimal.NewFromString(snap.USDPerHour); err == nil {
		state.Settings.USDPerHour = v
	}
	for _, cj := range snap.Categories {
		id, err := uuid.Parse(cj.ID)
		if err != nil {
			continue
		}
		schedule, err := core.ParseBonusSchedule(cj.BonusSchedule)
		if err != nil {
			schedule = nil
		}
		state.Categories = append(state.Categories, core.Category{
			ID:                 id,
			Title:              cj.Title,
			Type:               core.HabitType(cj.Type),
			Unit:               core.Unit(cj.Unit),
			Multiplier:         parseDecimal(cj.Multiplier),
			TimeMode:           core.TimeMode(cj.TimeMode),
			HourlyRateUSD:      parseDecimal(cj.HourlyRateUSD),
			USDPerCount:        parseDecimal(cj.USDPerCount),
			DailyGoal:          cj.DailyGoal,
			StreakEnabled:      cj.StreakEnabled,
			StreakCadence:      core.Cadence(cj.StreakCadence),
			BadgeEnabled:       cj.BadgeEnabled,
			BadgeMilestones:    parseMilestones(cj.BadgeMilestones),
			StreakBonusEnabled: cj.BonusEnabled,
			BonusSchedule:      schedule,
			LegacyBonusUSD:     parseDecimal(cj.LegacyBonusUSD),
		})
	}
	for _, ej := range snap.Entries {
		id, err := uuid.Parse(ej.ID)
		if err != nil {
			continue
		}
		catID, err := uuid.Parse(ej.CategoryID)
		if err != nil {
			continue
		}
		ts, err := time.Parse(time.RFC3339Nano, ej.Timestamp)
		if err != nil {
			continue
		}
		e := core.Entry{
			ID:              id,
			Timestamp:       ts,
			CategoryID:      catID,
			DurationMinutes: ej.DurationMinutes,
			Unit:            core.Unit(ej.Unit),
			AmountUSD:       parseDecimal(ej.AmountUSD),
			Note:            ej.Note,
			BonusKey:        ej.BonusKey,
			IsManual:        ej.IsManual,
		}
		if ej.Quantity != "" {
			if q, err := decimal.NewFromString(ej.Quantity); err == nil {
				e.Quantity = decimal.NewNullDecimal(q)
			}
		}
		state.Entries = append(state.Entries, e)
	}
	for _, aj := range snap.BadgeAwards {
		if aj.AwardKey == "" {
			continue
		}
		awarded, err := time.Parse(time.RFC3339Nano, aj.DateAwarded)
		if err != nil {
			continue
		}
		a := core.BadgeAward{
			AwardKey:    aj.AwardKey,
			DateAwarded: awarded,
			Milestone:   aj.Milestone,
			Cadence:     core.Cadence(aj.Cadence),
		}
		if aj.CategoryID != "" {
			if catID, err := uuid.Parse(aj.CategoryID); err == nil {
				a.CategoryID = catID
			}
		}
		state.BadgeAwards = append(state.BadgeAwards, a)
	}
	if sj := snap.Session; sj != nil {
		catID, catErr := uuid.Parse(sj.CategoryID)
		start, startErr := time.Parse(time.RFC3339Nano, sj.StartTime)
		if catErr == nil && startErr == nil {
			sess := &core.ActiveSession{
				CategoryID:         catID,
				StartTime:          start,
				IsPaused:           sj.IsPaused,
				AccumulatedSeconds: sj.AccumulatedSeconds,
			}
			if sj.RunningSegmentStart != nil {
				if t, err := time.Parse(time.RFC3339Nano, *sj.RunningSegmentStart); err == nil {
					sess.RunningSegmentStart = &t
				}
			}
			state.ActiveSession = sess
		}
	}
	return state
}

func parseDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	if v, err := decimal.NewFromString(s); err == nil {
		return v
	}
	return decimal.Zero
}

func zeroOmitted(d decimal.Decimal) string {
	if d.IsZero() {
		return ""
	}
	return d.String()
}
