// Package memory is an in-process SummaryWriter used in tests and local
// runs without Google credentials.
package memory

import (
	"context"
	"fmt"
	"sync"

	"tally/internal/core"
)

type Store struct {
	mu   sync.Mutex
	rows map[string]core.DaySummary
	days []string
}

func New() *Store {
	return &Store{rows: make(map[string]core.DaySummary)}
}

// WriteDaySummary stores the summary keyed by day and returns a synthetic
// row reference.
func (s *Store) WriteDaySummary(_ context.Context, summary core.DaySummary) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rows[summary.Day]; !exists {
		s.days = append(s.days, summary.Day)
	}
	s.rows[summary.Day] = summary
	return fmt.Sprintf("mem:%s", summary.Day), nil
}

// Rows returns the stored summaries in first-write day order.
func (s *Store) Rows() []core.DaySummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.DaySummary, 0, len(s.days))
	for _, day := range s.days {
		out = append(out, s.rows[day])
	}
	return out
}
