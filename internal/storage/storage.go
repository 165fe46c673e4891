// Package storage implements the persistence boundary for the app state.
//
// The store treats persistence as opaque snapshot storage: any backing medium
// honoring Persister is valid. Writes are best-effort; a failed write is
// logged by the caller and the in-memory state stays authoritative for the
// session.
package storage

import (
	"context"
	"strconv"
	"strings"

	"tally/internal/core"
)

// Persister reads and writes the whole application state snapshot.
type Persister interface {
	// Read returns the last persisted state, or nil when none exists.
	Read(ctx context.Context) (*core.AppState, error)
	// Write replaces the persisted snapshot.
	Write(ctx context.Context, state *core.AppState) error
	// Clear drops the persisted snapshot.
	Clear(ctx context.Context) error
}

// formatMilestones renders a milestone list to its persisted "3,7,14" form.
// The persisted form is deduplicated ascending regardless of input order.
func formatMilestones(ms []int) string {
	ms = core.NormalizeMilestones(ms)
	if len(ms) == 0 {
		return ""
	}
	parts := make([]string, len(ms))
	for i, m := range ms {
		parts[i] = strconv.Itoa(m)
	}
	return strings.Join(parts, ",")
}

// parseMilestones parses the persisted milestone list form, dropping
// anything malformed.
func parseMilestones(s string) []int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var out []int
	for _, p := range strings.Split(s, ",") {
		if v, err := strconv.Atoi(strings.TrimSpace(p)); err == nil {
			out = append(out, v)
		}
	}
	return core.NormalizeMilestones(out)
}
