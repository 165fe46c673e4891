package core

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// HabitType distinguishes categories whose logs add to the ledger from those
// whose logs subtract from it.
type HabitType string

const (
	GoodHabit HabitType = "goodHabit"
	QuitHabit HabitType = "quitHabit"
)

// Unit is the measurement a category's entries are logged in.
type Unit string

const (
	UnitTime  Unit = "time"
	UnitCount Unit = "count"
	UnitMoney Unit = "money"
)

// Cadence is the period granularity over which goals and streaks are
// evaluated.
type Cadence string

const (
	CadenceDaily   Cadence = "daily"
	CadenceWeekly  Cadence = "weekly"
	CadenceMonthly Cadence = "monthly"
)

// TimeMode selects how a time-unit category converts minutes into dollars.
type TimeMode string

const (
	TimeModeMultiplier TimeMode = "multiplier"
	TimeModeHourlyRate TimeMode = "hourlyRate"
)

var (
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrCategoryNotFound     = errors.New("category not found")
	ErrEntryNotFound        = errors.New("entry not found")
	ErrNoActiveSession      = errors.New("no active session")
	ErrSessionAlreadyActive = errors.New("a session is already active")
	ErrSessionAlreadyPaused = errors.New("session is already paused")
	ErrSessionNotPaused     = errors.New("session is not paused")
)

// ValidationError reports a single violated field constraint. It is surfaced
// to callers as a field-level message and never crosses the store boundary
// as a panic.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// SessionConflictError blocks an operation that would invalidate the active
// session, naming the category the session is running against.
type SessionConflictError struct {
	CategoryTitle string
}

func (e *SessionConflictError) Error() string {
	return fmt.Sprintf("an active session is running against %q", e.CategoryTitle)
}

// InvalidPayloadError aborts an import before any mutation.
type InvalidPayloadError struct {
	Reason string
}

func (e *InvalidPayloadError) Error() string {
	return "invalid import payload: " + e.Reason
}

// Category is a habit/time category entries are logged against.
type Category struct {
	ID            uuid.UUID
	Title         string
	Type          HabitType
	Unit          Unit
	Multiplier    decimal.Decimal
	TimeMode      TimeMode
	HourlyRateUSD decimal.Decimal // only meaningful when Unit=time and TimeMode=hourlyRate
	USDPerCount   decimal.Decimal // only meaningful when Unit=count

	DailyGoal     int
	StreakEnabled bool
	StreakCadence Cadence

	BadgeEnabled    bool
	BadgeMilestones []int // deduplicated, ascending, all > 0

	StreakBonusEnabled bool
	BonusSchedule      map[int]decimal.Decimal
	LegacyBonusUSD     decimal.Decimal // flat amount from older snapshots, applies to BadgeMilestones
}

// Entry is a single ledger record.
type Entry struct {
	ID              uuid.UUID
	Timestamp       time.Time
	CategoryID      uuid.UUID
	DurationMinutes int
	Quantity        decimal.NullDecimal
	Unit            Unit // empty means "not recorded"; see ResolvedUnit
	AmountUSD       decimal.Decimal
	Note            string
	BonusKey        string // non-empty marks a streak-bonus payout entry
	IsManual        bool
}

// IsBonus reports whether the entry is a streak-bonus payout. Bonus entries
// are excluded from goal progress so a payout cannot feed the streak that
// earned it.
func (e Entry) IsBonus() bool {
	return e.BonusKey != ""
}

// ResolvedUnit resolves the entry's effective unit: the explicit unit, else
// time when a duration was recorded, else the category's unit, else money.
func (e Entry) ResolvedUnit(cat *Category) Unit {
	if e.Unit != "" {
		return e.Unit
	}
	if e.DurationMinutes > 0 {
		return UnitTime
	}
	if cat != nil {
		return cat.Unit
	}
	return UnitMoney
}

// ResolvedQuantity resolves the entry's effective quantity, falling back to
// the absolute amount for money entries and the duration otherwise.
func (e Entry) ResolvedQuantity(cat *Category) decimal.Decimal {
	if e.Quantity.Valid {
		return e.Quantity.Decimal
	}
	if e.ResolvedUnit(cat) == UnitMoney {
		return e.AmountUSD.Abs()
	}
	return decimal.NewFromInt(int64(e.DurationMinutes))
}

// BadgeAward records a granted streak milestone. AwardKey is unique; its
// format is streak:<categoryID>:<milestone>:<periodKey>, which enforces
// at-most-one award per category, milestone and period.
type BadgeAward struct {
	AwardKey    string    `json:"awardKey"`
	DateAwarded time.Time `json:"dateAwarded"`
	CategoryID  uuid.UUID `json:"categoryId"` // uuid.Nil when the award is not category-scoped
	Milestone   int       `json:"milestone"`  // 0 when unknown
	Cadence     Cadence   `json:"cadence"`
}

// ActiveSession is the singleton running timer. Elapsed time is always
// derived from wall-clock anchors, never from a running counter.
type ActiveSession struct {
	CategoryID          uuid.UUID
	StartTime           time.Time
	IsPaused            bool
	AccumulatedSeconds  int
	RunningSegmentStart *time.Time
}

// ElapsedSeconds returns total elapsed seconds as of now.
func (s *ActiveSession) ElapsedSeconds(now time.Time) int {
	total := s.AccumulatedSeconds
	if !s.IsPaused && s.RunningSegmentStart != nil {
		if d := now.Sub(*s.RunningSegmentStart); d > 0 {
			total += int(d.Seconds())
		}
	}
	return total
}

// Settings holds global knobs consumed by the ledger formula.
type Settings struct {
	USDPerHour decimal.Decimal
}

// AppState aggregates the whole persisted model.
type AppState struct {
	Settings      Settings
	Categories    []Category
	Entries       []Entry
	BadgeAwards   []BadgeAward
	ActiveSession *ActiveSession
}

// Validate checks field constraints, returning a *ValidationError naming the
// first violated one.
func (c *Category) Validate() error {
	if strings.TrimSpace(c.Title) == "" {
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if len(c.Title) > 120 {
		return &ValidationError{Field: "title", Reason: "too long (max 120 characters)"}
	}
	switch c.Type {
	case GoodHabit, QuitHabit:
	default:
		return &ValidationError{Field: "type", Reason: "must be goodHabit or quitHabit"}
	}
	switch c.Unit {
	case UnitTime, UnitCount, UnitMoney:
	default:
		return &ValidationError{Field: "unit", Reason: "must be time, count or money"}
	}
	if c.Multiplier.Sign() <= 0 {
		return &ValidationError{Field: "multiplier", Reason: "must be positive"}
	}
	if c.Unit == UnitTime && c.TimeMode == TimeModeHourlyRate && c.HourlyRateUSD.Sign() <= 0 {
		return &ValidationError{Field: "hourlyRateUSD", Reason: "must be positive for hourly-rate time categories"}
	}
	// An unset price is allowed: the ledger engine falls back to $1 per
	// count, matching snapshots and imports that omit the field.
	if c.Unit == UnitCount && c.USDPerCount.Sign() < 0 {
		return &ValidationError{Field: "usdPerCount", Reason: "must not be negative"}
	}
	if c.DailyGoal < 0 {
		return &ValidationError{Field: "dailyGoalValue", Reason: "must not be negative"}
	}
	switch c.StreakCadence {
	case CadenceDaily, CadenceWeekly, CadenceMonthly:
	default:
		return &ValidationError{Field: "streakCadence", Reason: "must be daily, weekly or monthly"}
	}
	for _, m := range c.BadgeMilestones {
		if m <= 0 {
			return &ValidationError{Field: "badgeMilestones", Reason: "milestones must be positive"}
		}
	}
	for m, amt := range c.BonusSchedule {
		if m <= 0 {
			return &ValidationError{Field: "streakBonusSchedule", Reason: "milestones must be positive"}
		}
		if amt.Sign() < 0 {
			return &ValidationError{Field: "streakBonusSchedule", Reason: "bonus amounts must not be negative"}
		}
	}
	return nil
}

// Normalize produces the fully defaulted canonical record. Legacy snapshots
// may miss fields that were added later; downstream logic never branches on
// absence, it relies on this pass having run.
func (c *Category) Normalize() {
	c.Title = strings.TrimSpace(c.Title)
	if c.Type != QuitHabit {
		c.Type = GoodHabit
	}
	switch c.Unit {
	case UnitTime, UnitCount, UnitMoney:
	default:
		c.Unit = UnitTime
	}
	if c.Multiplier.Sign() <= 0 {
		c.Multiplier = decimal.NewFromInt(1)
	}
	if c.Unit == UnitTime {
		if c.TimeMode != TimeModeHourlyRate {
			c.TimeMode = TimeModeMultiplier
		}
	} else {
		c.TimeMode = ""
	}
	// Zero out unit-irrelevant pricing fields.
	if !(c.Unit == UnitTime && c.TimeMode == TimeModeHourlyRate) {
		c.HourlyRateUSD = decimal.Zero
	}
	if c.Unit != UnitCount {
		c.USDPerCount = decimal.Zero
	}
	if c.DailyGoal < 0 {
		c.DailyGoal = 0
	}
	switch c.StreakCadence {
	case CadenceDaily, CadenceWeekly, CadenceMonthly:
	default:
		c.StreakCadence = CadenceDaily
	}
	c.BadgeMilestones = NormalizeMilestones(c.BadgeMilestones)
	if c.LegacyBonusUSD.Sign() < 0 {
		c.LegacyBonusUSD = decimal.Zero
	}
	for m, amt := range c.BonusSchedule {
		if m <= 0 || amt.Sign() < 0 {
			delete(c.BonusSchedule, m)
		}
	}
}

// BonusAmountFor returns the configured bonus for a milestone. An explicit
// schedule entry wins; otherwise the legacy flat amount applies to the
// category's own milestones. The second result is false when no bonus is
// configured.
func (c *Category) BonusAmountFor(milestone int) (decimal.Decimal, bool) {
	if amt, ok := c.BonusSchedule[milestone]; ok && amt.Sign() > 0 {
		return amt, true
	}
	if c.LegacyBonusUSD.Sign() > 0 {
		for _, m := range c.BadgeMilestones {
			if m == milestone {
				return c.LegacyBonusUSD, true
			}
		}
	}
	return decimal.Zero, false
}

// Key is the derived identity used to match categories across imports:
// normalized title, type and unit.
func (c *Category) Key() string {
	return CategoryKey(c.Title, c.Type, c.Unit)
}

// CategoryKey builds the normalized title|type|unit matching key.
func CategoryKey(title string, t HabitType, u Unit) string {
	return strings.ToLower(strings.TrimSpace(title)) + "|" + string(t) + "|" + string(u)
}

// NormalizeMilestones deduplicates, drops non-positive values and sorts
// ascending.
func NormalizeMilestones(in []int) []int {
	seen := make(map[int]struct{}, len(in))
	out := make([]int, 0, len(in))
	for _, m := range in {
		if m <= 0 {
			continue
		}
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	sort.Ints(out)
	return out
}

// ParseBonusSchedule parses the persisted "milestone:amount,..." string form
// (e.g. "3:1.25,7:5") into a map. The string form is serialization only;
// nothing operates on it internally.
func ParseBonusSchedule(s string) (map[int]decimal.Decimal, error) {
	out := make(map[int]decimal.Decimal)
	s = strings.TrimSpace(s)
	if s == "" {
		return out, nil
	}
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, found := strings.Cut(pair, ":")
		if !found {
			return nil, fmt.Errorf("malformed schedule pair %q", pair)
		}
		milestone, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil || milestone <= 0 {
			return nil, fmt.Errorf("malformed schedule milestone %q", k)
		}
		amount, err := ParseAmount(v)
		if err != nil || amount.Sign() < 0 {
			return nil, fmt.Errorf("malformed schedule amount %q", v)
		}
		out[milestone] = amount
	}
	return out, nil
}

// FormatBonusSchedule renders the map back to its persisted string form with
// milestones ascending.
func FormatBonusSchedule(m map[int]decimal.Decimal) string {
	if len(m) == 0 {
		return ""
	}
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, strconv.Itoa(k)+":"+m[k].String())
	}
	return strings.Join(parts, ",")
}

// FindCategory returns the category with the given ID, or nil.
func (s *AppState) FindCategory(id uuid.UUID) *Category {
	for i := range s.Categories {
		if s.Categories[i].ID == id {
			return &s.Categories[i]
		}
	}
	return nil
}

// FindEntry returns the entry with the given ID, or nil.
func (s *AppState) FindEntry(id uuid.UUID) *Entry {
	for i := range s.Entries {
		if s.Entries[i].ID == id {
			return &s.Entries[i]
		}
	}
	return nil
}

// HasAward reports whether an award with the given key exists.
func (s *AppState) HasAward(key string) bool {
	for i := range s.BadgeAwards {
		if s.BadgeAwards[i].AwardKey == key {
			return true
		}
	}
	return false
}

// EntriesForCategory returns the entries referencing a category, in input
// order.
func (s *AppState) EntriesForCategory(id uuid.UUID) []Entry {
	var out []Entry
	for _, e := range s.Entries {
		if e.CategoryID == id {
			out = append(out, e)
		}
	}
	return out
}

// Clone deep-copies the state so readers never observe live mutable data.
func (s *AppState) Clone() *AppState {
	out := &AppState{
		Settings:    s.Settings,
		Categories:  make([]Category, len(s.Categories)),
		Entries:     append([]Entry(nil), s.Entries...),
		BadgeAwards: append([]BadgeAward(nil), s.BadgeAwards...),
	}
	for i, c := range s.Categories {
		cc := c
		cc.BadgeMilestones = append([]int(nil), c.BadgeMilestones...)
		if c.BonusSchedule != nil {
			cc.BonusSchedule = make(map[int]decimal.Decimal, len(c.BonusSchedule))
			for k, v := range c.BonusSchedule {
				cc.BonusSchedule[k] = v
			}
		}
		out.Categories[i] = cc
	}
	if s.ActiveSession != nil {
		sess := *s.ActiveSession
		if s.ActiveSession.RunningSegmentStart != nil {
			t := *s.ActiveSession.RunningSegmentStart
			sess.RunningSegmentStart = &t
		}
		out.ActiveSession = &sess
	}
	return out
}
