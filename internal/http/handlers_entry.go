package http

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tally/internal/core"
)

type createEntryRequest struct {
	CategoryID uuid.UUID       `json:"categoryId"`
	Quantity   decimal.Decimal `json:"quantity"`
	Note       string          `json:"note,omitempty"`
}

type entryResponse struct {
	ID              uuid.UUID        `json:"id"`
	Timestamp       string           `json:"timestamp"`
	CategoryID      uuid.UUID        `json:"categoryId"`
	Unit            core.Unit        `json:"unit,omitempty"`
	Quantity        *decimal.Decimal `json:"quantity,omitempty"`
	DurationMinutes int              `json:"durationMinutes,omitempty"`
	AmountUSD       decimal.Decimal  `json:"amountUSD"`
	Note            string           `json:"note,omitempty"`
	IsManual        bool             `json:"isManual"`
}

func toEntryResponse(e core.Entry) entryResponse {
	out := entryResponse{
		ID:              e.ID,
		Timestamp:       e.Timestamp.UTC().Format(time.RFC3339),
		CategoryID:      e.CategoryID,
		Unit:            e.Unit,
		DurationMinutes: e.DurationMinutes,
		AmountUSD:       e.AmountUSD,
		Note:            e.Note,
		IsManual:        e.IsManual,
	}
	if e.Quantity.Valid {
		q := e.Quantity.Decimal
		out.Quantity = &q
	}
	return out
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	var req createEntryRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(r.Context(), w, err)
		return
	}

	entry, err := s.store.AddManualEntry(r.Context(), req.CategoryID, req.Quantity, req.Note)
	if err != nil {
		s.respondError(r.Context(), w, err)
		return
	}
	s.invalidateReads()
	writeJSON(w, http.StatusCreated, toEntryResponse(entry))
}
