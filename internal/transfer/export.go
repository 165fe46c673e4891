package transfer

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"tally/internal/core"
)

type exportFile struct {
	Entries        []entryItem   `json:"entries"`
	DailySummaries []summaryItem `json:"dailySummaries"`
}

type summaryItem struct {
	Day          string `json:"day"`
	LedgerChange string `json:"ledgerChange"`
	Gain         string `json:"gain"`
	Spent        string `json:"spent"`
	EntryCount   int    `json:"entryCount"`
}

// ExportJSON renders the current entries in the import wire shape plus
// computed daily summaries, so an export can be re-imported losslessly.
func (s *Service) ExportJSON() ([]byte, error) {
	snap := s.store.Snapshot()

	file := exportFile{
		Entries:        make([]entryItem, 0, len(snap.Entries)),
		DailySummaries: make([]summaryItem, 0),
	}
	for _, e := range snap.Entries {
		cat := snap.FindCategory(e.CategoryID)
		if cat == nil {
			continue
		}
		item := entryItem{
			ID:              e.ID.String(),
			Timestamp:       e.Timestamp.Format(time.RFC3339),
			CategoryTitle:   cat.Title,
			CategoryType:    string(cat.Type),
			Unit:            string(e.ResolvedUnit(cat)),
			DurationMinutes: e.DurationMinutes,
			AmountUSD:       e.AmountUSD.StringFixed(2),
			IsManual:        e.IsManual,
			Note:            e.Note,
		}
		if e.Quantity.Valid {
			item.Quantity = e.Quantity.Decimal.String()
		}
		file.Entries = append(file.Entries, item)
	}
	for _, day := range core.DailySummaries(snap.Entries) {
		file.DailySummaries = append(file.DailySummaries, summaryItem{
			Day:          day.Day,
			LedgerChange: day.LedgerChange.StringFixed(2),
			Gain:         day.Gain.StringFixed(2),
			Spent:        day.Spent.StringFixed(2),
			EntryCount:   day.EntryCount,
		})
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("serialize export: %w", err)
	}
	return data, nil
}

// ExportCSV renders daily ledger aggregates, one row per day.
func (s *Service) ExportCSV() ([]byte, error) {
	snap := s.store.Snapshot()

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"day", "ledgerChange", "gain", "spent", "entryCount"}); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, day := range core.DailySummaries(snap.Entries) {
		record := []string{
			day.Day,
			day.LedgerChange.StringFixed(2),
			day.Gain.StringFixed(2),
			day.Spent.StringFixed(2),
			strconv.Itoa(day.EntryCount),
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
