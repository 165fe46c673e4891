// Package transfer implements snapshot import with undo, plus JSON and CSV
// export. Imports reconcile entries by ID and categories by a normalized
// title|type|unit key; a malformed payload aborts before any mutation.
package transfer

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tally/internal/core"
	"tally/internal/state"
)

// Policy decides what happens when an imported entry ID already exists.
type Policy string

const (
	ReplaceExisting Policy = "replaceExisting"
	KeepExisting    Policy = "keepExisting"
)

func (p Policy) IsValid() bool {
	return p == ReplaceExisting || p == KeepExisting
}

// payload is the wire shape of an import file.
type payload struct {
	Entries []entryItem `json:"entries"`
}

type entryItem struct {
	ID              string `json:"id"`
	Timestamp       string `json:"timestamp"`
	CategoryTitle   string `json:"categoryTitle"`
	CategoryType    string `json:"categoryType"`
	Unit            string `json:"unit"`
	Quantity        string `json:"quantity,omitempty"`
	DurationMinutes int    `json:"durationMinutes"`
	AmountUSD       string `json:"amountUSD"`
	IsManual        bool   `json:"isManual"`
	Note            string `json:"note,omitempty"`
}

// Preview reports what an import would do without doing it.
type Preview struct {
	NewEntries     int `json:"newEntries"`
	UpdatedEntries int `json:"updatedEntries"`
	SkippedEntries int `json:"skippedEntries"`
	NewCategories  int `json:"newCategories"`
}

// UndoPayload records everything needed to reverse an import. A nil payload
// means the import changed nothing.
type UndoPayload struct {
	CreatedEntryIDs       []uuid.UUID  `json:"createdEntryIds"`
	CreatedCategoryIDs    []uuid.UUID  `json:"createdCategoryIds"`
	UpdatedEntrySnapshots []core.Entry `json:"updatedEntrySnapshots"`
}

// UndoResult summarizes a best-effort undo.
type UndoResult struct {
	DeletedEntries    int `json:"deletedEntries"`
	RestoredEntries   int `json:"restoredEntries"`
	DeletedCategories int `json:"deletedCategories"`
	MissingRecords    int `json:"missingRecords"`
}

// Service runs imports and exports against the store.
type Service struct {
	store  *state.Store
	logger *slog.Logger
}

func NewService(store *state.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

func parsePayload(data []byte) (*payload, error) {
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, &core.InvalidPayloadError{Reason: "malformed JSON: " + err.Error()}
	}
	return &p, nil
}

// parsedEntry is an import item that passed field validation.
type parsedEntry struct {
	entry       core.Entry
	categoryKey string
	title       string
	habitType   core.HabitType
	unit        core.Unit
}

func parseItem(item entryItem) (parsedEntry, bool) {
	id, err := uuid.Parse(item.ID)
	if err != nil {
		return parsedEntry{}, false
	}
	ts, err := time.Parse(time.RFC3339, item.Timestamp)
	if err != nil {
		return parsedEntry{}, false
	}
	habitType := core.HabitType(item.CategoryType)
	if habitType != core.GoodHabit && habitType != core.QuitHabit {
		return parsedEntry{}, false
	}
	unit := core.Unit(item.Unit)
	if unit != core.UnitTime && unit != core.UnitCount && unit != core.UnitMoney {
		return parsedEntry{}, false
	}
	if item.CategoryTitle == "" {
		return parsedEntry{}, false
	}
	amount, err := core.ParseAmount(item.AmountUSD)
	if err != nil {
		return parsedEntry{}, false
	}
	if item.DurationMinutes < 0 {
		return parsedEntry{}, false
	}

	e := core.Entry{
		ID:              id,
		Timestamp:       ts,
		DurationMinutes: item.DurationMinutes,
		Unit:            unit,
		AmountUSD:       core.Round2(amount),
		Note:            item.Note,
		IsManual:        item.IsManual,
	}
	if item.Quantity != "" {
		q, err := core.ParseAmount(item.Quantity)
		if err != nil || q.Sign() < 0 {
			return parsedEntry{}, false
		}
		e.Quantity = decimal.NewNullDecimal(q)
	}

	return parsedEntry{
		entry:       e,
		categoryKey: core.CategoryKey(item.CategoryTitle, habitType, unit),
		title:       item.CategoryTitle,
		habitType:   habitType,
		unit:        unit,
	}, true
}

// PreviewImport counts what Import would create, update and skip, without
// mutating anything.
func (s *Service) PreviewImport(data []byte) (Preview, error) {
	p, err := parsePayload(data)
	if err != nil {
		return Preview{}, err
	}

	snap := s.store.Snapshot()
	existingKeys := make(map[string]bool, len(snap.Categories))
	for _, c := range snap.Categories {
		existingKeys[c.Key()] = true
	}

	var preview Preview
	newKeys := make(map[string]bool)
	for _, item := range p.Entries {
		parsed, ok := parseItem(item)
		if !ok {
			preview.SkippedEntries++
			continue
		}
		if snap.FindEntry(parsed.entry.ID) != nil {
			preview.UpdatedEntries++
		} else {
			preview.NewEntries++
		}
		if !existingKeys[parsed.categoryKey] && !newKeys[parsed.categoryKey] {
			newKeys[parsed.categoryKey] = true
			preview.NewCategories++
		}
	}
	return preview, nil
}

// Import applies the payload under the given conflict policy. The returned
// undo payload is nil when nothing changed.
func (s *Service) Import(ctx context.Context, data []byte, policy Policy) (*UndoPayload, error) {
	p, err := parsePayload(data)
	if err != nil {
		return nil, err
	}
	if !policy.IsValid() {
		return nil, &core.InvalidPayloadError{Reason: "unknown conflict policy: " + string(policy)}
	}

	var undo *UndoPayload
	skipped := 0
	err = s.store.Mutate(ctx, func(st *core.AppState) error {
		byKey := make(map[string]uuid.UUID, len(st.Categories))
		for _, c := range st.Categories {
			byKey[c.Key()] = c.ID
		}

		var u UndoPayload
		for _, item := range p.Entries {
			parsed, ok := parseItem(item)
			if !ok {
				skipped++
				continue
			}

			catID, found := byKey[parsed.categoryKey]
			if !found {
				cat := core.Category{
					ID:    uuid.New(),
					Title: parsed.title,
					Type:  parsed.habitType,
					Unit:  parsed.unit,
				}
				cat.Normalize()
				st.Categories = append(st.Categories, cat)
				byKey[parsed.categoryKey] = cat.ID
				u.CreatedCategoryIDs = append(u.CreatedCategoryIDs, cat.ID)
				catID = cat.ID
			}
			parsed.entry.CategoryID = catID

			if existing := st.FindEntry(parsed.entry.ID); existing != nil {
				if policy == KeepExisting {
					skipped++
					continue
				}
				u.UpdatedEntrySnapshots = append(u.UpdatedEntrySnapshots, *existing)
				*existing = parsed.entry
				continue
			}
			st.Entries = append(st.Entries, parsed.entry)
			u.CreatedEntryIDs = append(u.CreatedEntryIDs, parsed.entry.ID)
		}

		if len(u.CreatedEntryIDs) > 0 || len(u.CreatedCategoryIDs) > 0 || len(u.UpdatedEntrySnapshots) > 0 {
			undo = &u
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if undo != nil {
		s.logger.InfoContext(ctx, "Import applied",
			"created_entries", len(undo.CreatedEntryIDs),
			"created_categories", len(undo.CreatedCategoryIDs),
			"updated_entries", len(undo.UpdatedEntrySnapshots),
			"skipped", skipped,
			"policy", string(policy))
	}
	return undo, nil
}

// Undo reverses a previous import as far as the current state allows.
// Records that have since disappeared are tallied, not fatal.
func (s *Service) Undo(ctx context.Context, payload *UndoPayload) (UndoResult, error) {
	var result UndoResult
	if payload == nil {
		return result, nil
	}

	err := s.store.Mutate(ctx, func(st *core.AppState) error {
		for _, id := range payload.CreatedEntryIDs {
			if st.FindEntry(id) == nil {
				result.MissingRecords++
				continue
			}
			entries := st.Entries[:0]
			for _, e := range st.Entries {
				if e.ID != id {
					entries = append(entries, e)
				}
			}
			st.Entries = entries
			result.DeletedEntries++
		}

		for _, snap := range payload.UpdatedEntrySnapshots {
			existing := st.FindEntry(snap.ID)
			if existing == nil {
				result.MissingRecords++
				continue
			}
			*existing = snap
			result.RestoredEntries++
		}

		for _, id := range payload.CreatedCategoryIDs {
			if st.FindCategory(id) == nil {
				result.MissingRecords++
				continue
			}
			referenced := false
			for _, e := range st.Entries {
				if e.CategoryID == id {
					referenced = true
					break
				}
			}
			if referenced {
				continue
			}
			categories := st.Categories[:0]
			for _, c := range st.Categories {
				if c.ID != id {
					categories = append(categories, c)
				}
			}
			st.Categories = categories
			result.DeletedCategories++
		}
		return nil
	})
	if err != nil {
		return result, err
	}

	s.logger.InfoContext(ctx, "Import undone",
		"deleted_entries", result.DeletedEntries,
		"restored_entries", result.RestoredEntries,
		"deleted_categories", result.DeletedCategories,
		"missing_records", result.MissingRecords)
	return result, nil
}
