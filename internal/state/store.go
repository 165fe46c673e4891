// Package state holds the authoritative in-memory application state and the
// mutation operations over it. All writes funnel through a single Store
// guarded by a mutex; readers get immutable deep copies. Every mutation is
// applied in memory first, then written through to the persister; a failed
// write is logged and the in-memory state stays the source of truth for the
// running process.
package state

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tally/internal/badges"
	"tally/internal/core"
	"tally/internal/storage"
)

// Publisher broadcasts mutation events. Implementations must not block on
// slow consumers; publish failures are logged, never surfaced to callers.
type Publisher interface {
	PublishEntryChanged(ctx context.Context, entryID, categoryID uuid.UUID, day string) error
	PublishBadgeAwarded(ctx context.Context, awardKey string) error
}

// Config tunes a Store. Zero values fall back to sane defaults.
type Config struct {
	Publisher         Publisher
	Now               func() time.Time
	Risk              core.RiskThresholds
	DefaultUSDPerHour decimal.Decimal
}

// Store is the single-writer state machine over the application state.
type Store struct {
	mu        sync.Mutex
	state     *core.AppState
	persister storage.Persister
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
	risk      core.RiskThresholds

	defaultUSDPerHour decimal.Decimal
}

func NewStore(persister storage.Persister, logger *slog.Logger, cfg Config) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	risk := cfg.Risk
	if risk.QuitWarnRatio.IsZero() && risk.SevereRemainingRatio.IsZero() {
		risk = core.DefaultRiskThresholds()
	}
	defaultRate := cfg.DefaultUSDPerHour
	if defaultRate.Sign() <= 0 {
		defaultRate = decimal.NewFromInt(10)
	}
	return &Store{
		state:             &core.AppState{Settings: core.Settings{USDPerHour: defaultRate}},
		persister:         persister,
		publisher:         cfg.Publisher,
		logger:            logger,
		now:               nowFn,
		risk:              risk,
		defaultUSDPerHour: defaultRate,
	}
}

// Load reads the persisted snapshot and runs the normalization pass over it.
// A missing snapshot leaves the default empty state in place.
func (s *Store) Load(ctx context.Context) error {
	loaded, err := s.persister.Read(ctx)
	if err != nil {
		return err
	}
	if loaded == nil {
		s.logger.InfoContext(ctx, "No persisted state found, starting fresh")
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.normalize(ctx, loaded)
	s.state = loaded
	s.logger.InfoContext(ctx, "State loaded",
		"categories", len(loaded.Categories),
		"entries", len(loaded.Entries),
		"badge_awards", len(loaded.BadgeAwards),
		"active_session", loaded.ActiveSession != nil)
	return nil
}

// normalize repairs a loaded snapshot into fully defaulted canonical records
// so downstream code never branches on absent fields.
func (s *Store) normalize(ctx context.Context, state *core.AppState) {
	if state.Settings.USDPerHour.Sign() <= 0 {
		state.Settings.USDPerHour = s.defaultUSDPerHour
	}
	for i := range state.Categories {
		state.Categories[i].Normalize()
	}

	kept := state.Entries[:0]
	for _, e := range state.Entries {
		if state.FindCategory(e.CategoryID) == nil {
			s.logger.WarnContext(ctx, "Dropping entry with missing category",
				"entry_id", e.ID, "category_id", e.CategoryID)
			continue
		}
		kept = append(kept, e)
	}
	state.Entries = kept

	if sess := state.ActiveSession; sess != nil {
		cat := state.FindCategory(sess.CategoryID)
		if cat == nil || cat.Unit != core.UnitTime {
			s.logger.WarnContext(ctx, "Clearing active session with invalid category",
				"category_id", sess.CategoryID)
			state.ActiveSession = nil
		}
	}
}

// Snapshot returns a deep copy for readers. The live state is never exposed.
func (s *Store) Snapshot() *core.AppState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Mutate runs fn against the live state under the writer lock and persists
// afterwards. It exists for multi-record operations (import, undo) that must
// apply as one atomic in-memory step. fn returning an error skips the persist.
func (s *Store) Mutate(ctx context.Context, fn func(state *core.AppState) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fn(s.state); err != nil {
		return err
	}
	s.persist(ctx)
	return nil
}

func (s *Store) CreateCategory(ctx context.Context, cat core.Category) (core.Category, error) {
	if cat.ID == uuid.Nil {
		cat.ID = uuid.New()
	}
	cat.Normalize()
	if err := cat.Validate(); err != nil {
		return core.Category{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Categories = append(s.state.Categories, cat)
	s.persist(ctx)
	s.logger.InfoContext(ctx, "Category created", "category_id", cat.ID, "title", cat.Title)
	return cat, nil
}

func (s *Store) UpdateCategory(ctx context.Context, cat core.Category) (core.Category, error) {
	cat.Normalize()
	if err := cat.Validate(); err != nil {
		return core.Category{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	existing := s.state.FindCategory(cat.ID)
	if existing == nil {
		return core.Category{}, core.ErrCategoryNotFound
	}
	*existing = cat
	s.persist(ctx)
	s.logger.InfoContext(ctx, "Category updated", "category_id", cat.ID, "title", cat.Title)
	return cat, nil
}

func (s *Store) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cat := s.state.FindCategory(id)
	if cat == nil {
		return core.ErrCategoryNotFound
	}
	if sess := s.state.ActiveSession; sess != nil && sess.CategoryID == id {
		return &core.SessionConflictError{CategoryTitle: cat.Title}
	}

	categories := s.state.Categories[:0]
	for _, c := range s.state.Categories {
		if c.ID != id {
			categories = append(categories, c)
		}
	}
	s.state.Categories = categories

	entries := s.state.Entries[:0]
	removed := 0
	for _, e := range s.state.Entries {
		if e.CategoryID == id {
			removed++
			continue
		}
		entries = append(entries, e)
	}
	s.state.Entries = entries

	s.persist(ctx)
	s.logger.InfoContext(ctx, "Category deleted", "category_id", id, "entries_removed", removed)
	return nil
}

// Manual-entry quantity bounds per unit.
var (
	maxTimeMinutes = decimal.NewFromInt(600)
	maxCount       = decimal.NewFromInt(500)
)

func validateQuantity(unit core.Unit, quantity decimal.Decimal) error {
	switch unit {
	case core.UnitTime:
		if quantity.LessThan(decimal.NewFromInt(1)) || quantity.GreaterThan(maxTimeMinutes) {
			return &core.ValidationError{Field: "quantity", Reason: "minutes must be between 1 and 600"}
		}
	case core.UnitCount:
		if quantity.LessThan(decimal.NewFromInt(1)) || quantity.GreaterThan(maxCount) {
			return &core.ValidationError{Field: "quantity", Reason: "count must be between 1 and 500"}
		}
	case core.UnitMoney:
		if quantity.Sign() <= 0 {
			return &core.ValidationError{Field: "quantity", Reason: "amount must be positive"}
		}
	}
	return nil
}

func (s *Store) AddManualEntry(ctx context.Context, categoryID uuid.UUID, quantity decimal.Decimal, note string) (core.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cat := s.state.FindCategory(categoryID)
	if cat == nil {
		return core.Entry{}, core.ErrCategoryNotFound
	}
	if err := validateQuantity(cat.Unit, quantity); err != nil {
		return core.Entry{}, err
	}

	now := s.now()
	entry := core.Entry{
		ID:         uuid.New(),
		Timestamp:  now,
		CategoryID: cat.ID,
		Unit:       cat.Unit,
		AmountUSD:  core.AmountUSD(cat, quantity, s.state.Settings.USDPerHour),
		Note:       note,
		IsManual:   true,
	}
	if cat.Unit == core.UnitTime {
		entry.DurationMinutes = int(quantity.Round(0).IntPart())
	} else {
		entry.Quantity = decimal.NewNullDecimal(quantity)
	}
	s.state.Entries = append(s.state.Entries, entry)

	s.runBadgePass(ctx, cat, now)
	s.persist(ctx)
	s.publishEntry(ctx, entry)
	s.logger.InfoContext(ctx, "Manual entry added",
		"entry_id", entry.ID,
		"category_id", cat.ID,
		"amount_usd", entry.AmountUSD.StringFixed(2))
	return entry, nil
}

func (s *Store) StartSession(ctx context.Context, categoryID uuid.UUID) (core.ActiveSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.ActiveSession != nil {
		return core.ActiveSession{}, core.ErrSessionAlreadyActive
	}
	cat := s.state.FindCategory(categoryID)
	if cat == nil {
		return core.ActiveSession{}, core.ErrCategoryNotFound
	}
	if cat.Unit != core.UnitTime {
		return core.ActiveSession{}, &core.ValidationError{Field: "unit", Reason: "sessions require a time category"}
	}

	now := s.now()
	segStart := now
	sess := &core.ActiveSession{
		CategoryID:          cat.ID,
		StartTime:           now,
		RunningSegmentStart: &segStart,
	}
	s.state.ActiveSession = sess
	s.persist(ctx)
	s.logger.InfoContext(ctx, "Session started", "category_id", cat.ID, "title", cat.Title)
	return *sess, nil
}

func (s *Store) PauseSession(ctx context.Context) (core.ActiveSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.state.ActiveSession
	if sess == nil {
		return core.ActiveSession{}, core.ErrNoActiveSession
	}
	if sess.IsPaused {
		return core.ActiveSession{}, core.ErrSessionAlreadyPaused
	}

	now := s.now()
	if sess.RunningSegmentStart != nil {
		sess.AccumulatedSeconds += int(now.Sub(*sess.RunningSegmentStart).Seconds())
		sess.RunningSegmentStart = nil
	}
	sess.IsPaused = true
	s.persist(ctx)
	s.logger.InfoContext(ctx, "Session paused",
		"category_id", sess.CategoryID, "accumulated_seconds", sess.AccumulatedSeconds)
	return *sess, nil
}

func (s *Store) ResumeSession(ctx context.Context) (core.ActiveSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.state.ActiveSession
	if sess == nil {
		return core.ActiveSession{}, core.ErrNoActiveSession
	}
	if !sess.IsPaused {
		return core.ActiveSession{}, core.ErrSessionNotPaused
	}

	now := s.now()
	sess.RunningSegmentStart = &now
	sess.IsPaused = false
	s.persist(ctx)
	s.logger.InfoContext(ctx, "Session resumed", "category_id", sess.CategoryID)
	return *sess, nil
}

func (s *Store) StopSessionAndSave(ctx context.Context) (core.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.state.ActiveSession
	if sess == nil {
		return core.Entry{}, core.ErrNoActiveSession
	}
	cat := s.state.FindCategory(sess.CategoryID)
	if cat == nil {
		// Session normalization should make this unreachable; recover anyway.
		s.state.ActiveSession = nil
		s.persist(ctx)
		return core.Entry{}, core.ErrCategoryNotFound
	}

	now := s.now()
	elapsed := sess.ElapsedSeconds(now)
	minutes := (elapsed + 30) / 60
	if minutes < 1 {
		minutes = 1
	}

	entry := core.Entry{
		ID:              uuid.New(),
		Timestamp:       now,
		CategoryID:      cat.ID,
		DurationMinutes: minutes,
		Unit:            core.UnitTime,
		AmountUSD:       core.AmountUSD(cat, decimal.NewFromInt(int64(minutes)), s.state.Settings.USDPerHour),
	}
	s.state.Entries = append(s.state.Entries, entry)
	s.state.ActiveSession = nil

	s.runBadgePass(ctx, cat, now)
	s.persist(ctx)
	s.publishEntry(ctx, entry)
	s.logger.InfoContext(ctx, "Session stopped and saved",
		"entry_id", entry.ID,
		"category_id", cat.ID,
		"duration_minutes", minutes,
		"amount_usd", entry.AmountUSD.StringFixed(2))
	return entry, nil
}

func (s *Store) UpdateSettings(ctx context.Context, usdPerHour decimal.Decimal) (core.Settings, error) {
	if usdPerHour.Sign() <= 0 {
		return core.Settings{}, &core.ValidationError{Field: "usdPerHour", Reason: "must be positive"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Settings.USDPerHour = usdPerHour
	s.persist(ctx)
	s.logger.InfoContext(ctx, "Settings updated", "usd_per_hour", usdPerHour.StringFixed(2))
	return s.state.Settings, nil
}

// runBadgePass checks the category's streak milestones against the current
// entry list and grants any awards that are due. Caller holds the lock.
func (s *Store) runBadgePass(ctx context.Context, cat *core.Category, now time.Time) {
	res := badges.AwardIfEligible(cat, s.state.EntriesForCategory(cat.ID), s.state.HasAward, now)
	if len(res.Awards) == 0 {
		return
	}
	s.state.BadgeAwards = append(s.state.BadgeAwards, res.Awards...)
	s.state.Entries = append(s.state.Entries, res.BonusEntries...)
	for _, a := range res.Awards {
		s.logger.InfoContext(ctx, "Badge awarded",
			"award_key", a.AwardKey, "category_id", cat.ID, "milestone", a.Milestone)
		s.publishAward(ctx, a.AwardKey)
	}
	for _, b := range res.BonusEntries {
		s.publishEntry(ctx, b)
	}
}

// persist writes the current state through to storage. Failures are logged
// as warnings; the in-memory state remains authoritative. Caller holds the
// lock.
func (s *Store) persist(ctx context.Context) {
	if err := s.persister.Write(ctx, s.state.Clone()); err != nil {
		s.logger.WarnContext(ctx, "Failed to persist state", "error", err)
	}
}

func (s *Store) publishEntry(ctx context.Context, e core.Entry) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishEntryChanged(ctx, e.ID, e.CategoryID, core.DayKey(e.Timestamp)); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish entry event", "entry_id", e.ID, "error", err)
	}
}

func (s *Store) publishAward(ctx context.Context, awardKey string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishBadgeAwarded(ctx, awardKey); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish badge event", "award_key", awardKey, "error", err)
	}
}
