// Package worker mirrors day-level ledger summaries to an external sheet.
// It is driven by mutation events and by a periodic full re-sync.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tally/internal/core"
	"tally/internal/events"
	"tally/internal/sheets"
	"tally/internal/storage"
)

// SummarySyncWorker recomputes affected day summaries from the persisted
// snapshot and writes them through the SummaryWriter port.
type SummarySyncWorker struct {
	persister storage.Persister
	sheets    sheets.SummaryWriter
}

func NewSummarySyncWorker(persister storage.Persister, writer sheets.SummaryWriter) *SummarySyncWorker {
	return &SummarySyncWorker{
		persister: persister,
		sheets:    writer,
	}
}

// HandleMessage processes a single mutation event from AMQP. Badge-award
// events carry no day and are ignored here; the bonus entry they insert
// arrives as its own entry event.
func (w *SummarySyncWorker) HandleMessage(ctx context.Context, msg *events.Message) error {
	switch msg.Kind {
	case events.KindEntryChanged:
		if msg.Day == "" {
			slog.WarnContext(ctx, "Entry event without a day, skipping", "entry_id", msg.EntryID)
			return nil
		}
		return w.syncDay(ctx, msg.Day)
	case events.KindBadgeAwarded:
		slog.InfoContext(ctx, "Badge awarded", "award_key", msg.AwardKey)
		return nil
	default:
		slog.WarnContext(ctx, "Unknown message kind, skipping", "kind", msg.Kind)
		return nil
	}
}

// syncDay loads the snapshot, recomputes the given day's aggregate and
// upserts the sheet row.
func (w *SummarySyncWorker) syncDay(ctx context.Context, dayKey string) error {
	day, err := time.Parse("2006-01-02", dayKey)
	if err != nil {
		slog.WarnContext(ctx, "Malformed day key, skipping", "day", dayKey)
		return nil
	}

	state, err := w.persister.Read(ctx)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	if state == nil {
		slog.WarnContext(ctx, "No snapshot to sync from", "day", dayKey)
		return nil
	}

	summary := core.DayBreakdown(state.Entries, day)
	ref, err := w.sheets.WriteDaySummary(ctx, summary)
	if err != nil {
		return fmt.Errorf("write day summary: %w", err)
	}

	slog.InfoContext(ctx, "Day summary synced",
		"day", dayKey,
		"ledger_change", summary.LedgerChange.StringFixed(2),
		"entry_count", summary.EntryCount,
		"row_ref", ref)
	return nil
}

// SyncAll pushes every day present in the snapshot. Used by the periodic
// re-sync ticker to heal rows missed while the worker was down.
func (w *SummarySyncWorker) SyncAll(ctx context.Context) error {
	state, err := w.persister.Read(ctx)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	if state == nil {
		return nil
	}

	synced := 0
	for _, summary := range core.DailySummaries(state.Entries) {
		if _, err := w.sheets.WriteDaySummary(ctx, summary); err != nil {
			return fmt.Errorf("write day summary for %s: %w", summary.Day, err)
		}
		synced++
	}

	slog.InfoContext(ctx, "Full summary re-sync complete", "days", synced)
	return nil
}
