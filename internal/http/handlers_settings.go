package http

import (
	"net/http"

	"github.com/shopspring/decimal"
)

type settingsPayload struct {
	USDPerHour decimal.Decimal `json:"usdPerHour"`
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Snapshot()
	writeJSON(w, http.StatusOK, settingsPayload{USDPerHour: snap.Settings.USDPerHour})
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsPayload
	if err := decodeBody(r, &req); err != nil {
		s.respondError(r.Context(), w, err)
		return
	}

	updated, err := s.store.UpdateSettings(r.Context(), req.USDPerHour)
	if err != nil {
		s.respondError(r.Context(), w, err)
		return
	}
	s.invalidateReads()
	writeJSON(w, http.StatusOK, settingsPayload{USDPerHour: updated.USDPerHour})
}
