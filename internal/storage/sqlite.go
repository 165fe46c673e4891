package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tally/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists the snapshot in a sqlite database. Writes replace the
// whole snapshot inside a single transaction; the in-memory state is the
// source of truth, the database is its durable copy.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) Read(ctx context.Context) (*core.AppState, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM settings`).Scan(&count); err != nil {
		return nil, fmt.Errorf("check settings: %w", err)
	}
	state := &core.AppState{}
	hasData := count > 0

	if hasData {
		var usdPerHour string
		if err := s.db.QueryRowContext(ctx, `SELECT usd_per_hour FROM settings WHERE id = 1`).Scan(&usdPerHour); err != nil {
			return nil, fmt.Errorf("read settings: %w", err)
		}
		state.Settings.USDPerHour = parseDecimal(usdPerHour)
	}

	categories, err := s.readCategories(ctx)
	if err != nil {
		return nil, err
	}
	state.Categories = categories

	entries, err := s.readEntries(ctx)
	if err != nil {
		return nil, err
	}
	state.Entries = entries

	awards, err := s.readAwards(ctx)
	if err != nil {
		return nil, err
	}
	state.BadgeAwards = awards

	session, err := s.readSession(ctx)
	if err != nil {
		return nil, err
	}
	state.ActiveSession = session

	if !hasData && len(state.Categories) == 0 && len(state.Entries) == 0 && len(state.BadgeAwards) == 0 && state.ActiveSession == nil {
		return nil, nil
	}
	return state, nil
}

func (s *SQLiteStore) readCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, habit_type, unit, multiplier, time_mode,
		       hourly_rate_usd, usd_per_count, daily_goal_value,
		       streak_enabled, streak_cadence, badge_enabled, badge_milestones,
		       streak_bonus_enabled, streak_bonus_schedule, streak_bonus_amount_usd
		FROM categories`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var categories []core.Category
	for rows.Next() {
		var (
			id, title, habitType, unit, multiplier, timeMode string
			hourlyRate, usdPerCount                          string
			dailyGoal                                        int
			streakEnabled, badgeEnabled, bonusEnabled        bool
			cadence, milestones, bonusSchedule, legacyBonus  string
		)
		if err := rows.Scan(&id, &title, &habitType, &unit, &multiplier, &timeMode,
			&hourlyRate, &usdPerCount, &dailyGoal,
			&streakEnabled, &cadence, &badgeEnabled, &milestones,
			&bonusEnabled, &bonusSchedule, &legacyBonus); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		catID, err := uuid.Parse(id)
		if err != nil {
			continue
		}
		schedule, err := core.ParseBonusSchedule(bonusSchedule)
		if err != nil {
			schedule = nil
		}
		categories = append(categories, core.Category{
			ID:                 catID,
			Title:              title,
			Type:               core.HabitType(habitType),
			Unit:               core.Unit(unit),
			Multiplier:         parseDecimal(multiplier),
			TimeMode:           core.TimeMode(timeMode),
			HourlyRateUSD:      parseDecimal(hourlyRate),
			USDPerCount:        parseDecimal(usdPerCount),
			DailyGoal:          dailyGoal,
			StreakEnabled:      streakEnabled,
			StreakCadence:      core.Cadence(cadence),
			BadgeEnabled:       badgeEnabled,
			BadgeMilestones:    parseMilestones(milestones),
			StreakBonusEnabled: bonusEnabled,
			BonusSchedule:      schedule,
			LegacyBonusUSD:     parseDecimal(legacyBonus),
		})
	}
	return categories, rows.Err()
}

func (s *SQLiteStore) readEntries(ctx context.Context) ([]core.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, category_id, duration_minutes, quantity, unit,
		       amount_usd, note, bonus_key, is_manual
		FROM entries ORDER BY timestamp`)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var entries []core.Entry
	for rows.Next() {
		var (
			id, timestamp, categoryID, unit, amount, note, bonusKey string
			duration                                                int
			quantity                                                sql.NullString
			isManual                                                bool
		)
		if err := rows.Scan(&id, &timestamp, &categoryID, &duration, &quantity, &unit,
			&amount, &note, &bonusKey, &isManual); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entryID, err := uuid.Parse(id)
		if err != nil {
			continue
		}
		catID, err := uuid.Parse(categoryID)
		if err != nil {
			continue
		}
		ts, err := time.Parse(time.RFC3339Nano, timestamp)
		if err != nil {
			continue
		}
		e := core.Entry{
			ID:              entryID,
			Timestamp:       ts,
			CategoryID:      catID,
			DurationMinutes: duration,
			Unit:            core.Unit(unit),
			AmountUSD:       parseDecimal(amount),
			Note:            note,
			BonusKey:        bonusKey,
			IsManual:        isManual,
		}
		if quantity.Valid {
			if q, err := decimal.NewFromString(quantity.String); err == nil {
				e.Quantity = decimal.NewNullDecimal(q)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) readAwards(ctx context.Context) ([]core.BadgeAward, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT award_key, date_awarded, category_id, milestone, cadence
		FROM badge_awards ORDER BY date_awarded`)
	if err != nil {
		return nil, fmt.Errorf("query badge awards: %w", err)
	}
	defer rows.Close()

	var awards []core.BadgeAward
	for rows.Next() {
		var (
			key, awarded, categoryID, cadence string
			milestone                         int
		)
		if err := rows.Scan(&key, &awarded, &categoryID, &milestone, &cadence); err != nil {
			return nil, fmt.Errorf("scan badge award: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, awarded)
		if err != nil {
			continue
		}
		a := core.BadgeAward{
			AwardKey:    key,
			DateAwarded: ts,
			Milestone:   milestone,
			Cadence:     core.Cadence(cadence),
		}
		if categoryID != "" {
			if catID, err := uuid.Parse(categoryID); err == nil {
				a.CategoryID = catID
			}
		}
		awards = append(awards, a)
	}
	return awards, rows.Err()
}

func (s *SQLiteStore) readSession(ctx context.Context) (*core.ActiveSession, error) {
	var (
		categoryID, startTime string
		isPaused              bool
		accumulated           int
		segmentStart          sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT category_id, start_time, is_paused, accumulated_seconds, running_segment_start
		FROM active_session WHERE id = 1`).
		Scan(&categoryID, &startTime, &isPaused, &accumulated, &segmentStart)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read active session: %w", err)
	}
	catID, err := uuid.Parse(categoryID)
	if err != nil {
		return nil, nil
	}
	start, err := time.Parse(time.RFC3339Nano, startTime)
	if err != nil {
		return nil, nil
	}
	sess := &core.ActiveSession{
		CategoryID:         catID,
		StartTime:          start,
		IsPaused:           isPaused,
		AccumulatedSeconds: accumulated,
	}
	if segmentStart.Valid {
		if t, err := time.Parse(time.RFC3339Nano, segmentStart.String); err == nil {
			sess.RunningSegmentStart = &t
		}
	}
	return sess, nil
}

func (s *SQLiteStore) Write(ctx context.Context, state *core.AppState) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"settings", "categories", "entries", "badge_awards", "active_session"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO settings (id, usd_per_hour) VALUES (1, ?)`,
		state.Settings.USDPerHour.String()); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	for _, c := range state.Categories {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO categories (
				id, title, habit_type, unit, multiplier, time_mode,
				hourly_rate_usd, usd_per_count, daily_goal_value,
				streak_enabled, streak_cadence, badge_enabled, badge_milestones,
				streak_bonus_enabled, streak_bonus_schedule, streak_bonus_amount_usd
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID.String(), c.Title, string(c.Type), string(c.Unit),
			c.Multiplier.String(), string(c.TimeMode),
			c.HourlyRateUSD.String(), c.USDPerCount.String(), c.DailyGoal,
			c.StreakEnabled, string(c.StreakCadence), c.BadgeEnabled,
			formatMilestones(c.BadgeMilestones),
			c.StreakBonusEnabled, core.FormatBonusSchedule(c.BonusSchedule),
			c.LegacyBonusUSD.String()); err != nil {
			return fmt.Errorf("write category %s: %w", c.ID, err)
		}
	}

	for _, e := range state.Entries {
		var quantity any
		if e.Quantity.Valid {
			quantity = e.Quantity.Decimal.String()
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO entries (
				id, timestamp, category_id, duration_minutes, quantity, unit,
				amount_usd, note, bonus_key, is_manual
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID.String(), e.Timestamp.Format(time.RFC3339Nano), e.CategoryID.String(),
			e.DurationMinutes, quantity, string(e.Unit),
			e.AmountUSD.String(), e.Note, e.BonusKey, e.IsManual); err != nil {
			return fmt.Errorf("write entry %s: %w", e.ID, err)
		}
	}

	for _, a := range state.BadgeAwards {
		categoryID := ""
		if a.CategoryID != uuid.Nil {
			categoryID = a.CategoryID.String()
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO badge_awards (award_key, date_awarded, category_id, milestone, cadence)
			VALUES (?, ?, ?, ?, ?)`,
			a.AwardKey, a.DateAwarded.Format(time.RFC3339Nano),
			categoryID, a.Milestone, string(a.Cadence)); err != nil {
			return fmt.Errorf("write badge award %s: %w", a.AwardKey, err)
		}
	}

	if sess := state.ActiveSession; sess != nil {
		var segmentStart any
		if sess.RunningSegmentStart != nil {
			segmentStart = sess.RunningSegmentStart.Format(time.RFC3339Nano)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO active_session (id, category_id, start_time, is_paused, accumulated_seconds, running_segment_start)
			VALUES (1, ?, ?, ?, ?, ?)`,
			sess.CategoryID.String(), sess.StartTime.Format(time.RFC3339Nano),
			sess.IsPaused, sess.AccumulatedSeconds, segmentStart); err != nil {
			return fmt.Errorf("write active session: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"settings", "categories", "entries", "badge_awards", "active_session"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit clear: %w", err)
	}
	return nil
}
