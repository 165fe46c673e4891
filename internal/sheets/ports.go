package sheets

import (
	"context"

	"tally/internal/core"
)

// Ports for outbound adapters.
type (
	// SummaryWriter mirrors a day's ledger aggregate to an external sheet.
	// Writing the same day twice replaces the earlier row.
	SummaryWriter interface {
		WriteDaySummary(ctx context.Context, summary core.DaySummary) (rowRef string, err error)
	}
)
