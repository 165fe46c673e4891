package http

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tally/internal/core"
)

// categoryPayload is the wire shape of a category for create and update
// requests. Normalization fills defaults, so most fields are optional.
type categoryPayload struct {
	Title              string                  `json:"title"`
	Type               core.HabitType          `json:"type"`
	Unit               core.Unit               `json:"unit"`
	Multiplier         decimal.Decimal         `json:"multiplier"`
	TimeMode           core.TimeMode           `json:"timeMode,omitempty"`
	HourlyRateUSD      decimal.Decimal         `json:"hourlyRateUSD"`
	USDPerCount        decimal.Decimal         `json:"usdPerCount"`
	DailyGoal          int                     `json:"dailyGoalValue"`
	StreakEnabled      bool                    `json:"streakEnabled"`
	StreakCadence      core.Cadence            `json:"streakCadence,omitempty"`
	BadgeEnabled       bool                    `json:"badgeEnabled"`
	BadgeMilestones    []int                   `json:"badgeMilestones,omitempty"`
	StreakBonusEnabled bool                    `json:"streakBonusEnabled"`
	BonusSchedule      map[int]decimal.Decimal `json:"streakBonusSchedule,omitempty"`
}

type categoryResponse struct {
	ID uuid.UUID `json:"id"`
	categoryPayload
}

func (p categoryPayload) toCategory(id uuid.UUID) core.Category {
	return core.Category{
		ID:                 id,
		Title:              p.Title,
		Type:               p.Type,
		Unit:               p.Unit,
		Multiplier:         p.Multiplier,
		TimeMode:           p.TimeMode,
		HourlyRateUSD:      p.HourlyRateUSD,
		USDPerCount:        p.USDPerCount,
		DailyGoal:          p.DailyGoal,
		StreakEnabled:      p.StreakEnabled,
		StreakCadence:      p.StreakCadence,
		BadgeEnabled:       p.BadgeEnabled,
		BadgeMilestones:    p.BadgeMilestones,
		StreakBonusEnabled: p.StreakBonusEnabled,
		BonusSchedule:      p.BonusSchedule,
	}
}

func toCategoryResponse(cat core.Category) categoryResponse {
	return categoryResponse{
		ID: cat.ID,
		categoryPayload: categoryPayload{
			Title:              cat.Title,
			Type:               cat.Type,
			Unit:               cat.Unit,
			Multiplier:         cat.Multiplier,
			TimeMode:           cat.TimeMode,
			HourlyRateUSD:      cat.HourlyRateUSD,
			USDPerCount:        cat.USDPerCount,
			DailyGoal:          cat.DailyGoal,
			StreakEnabled:      cat.StreakEnabled,
			StreakCadence:      cat.StreakCadence,
			BadgeEnabled:       cat.BadgeEnabled,
			BadgeMilestones:    cat.BadgeMilestones,
			StreakBonusEnabled: cat.StreakBonusEnabled,
			BonusSchedule:      cat.BonusSchedule,
		},
	}
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Snapshot()
	out := make([]categoryResponse, 0, len(snap.Categories))
	for _, cat := range snap.Categories {
		out = append(out, toCategoryResponse(cat))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var payload categoryPayload
	if err := decodeBody(r, &payload); err != nil {
		s.respondError(r.Context(), w, err)
		return
	}

	created, err := s.store.CreateCategory(r.Context(), payload.toCategory(uuid.Nil))
	if err != nil {
		s.respondError(r.Context(), w, err)
		return
	}
	s.invalidateReads()
	writeJSON(w, http.StatusCreated, toCategoryResponse(created))
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid category id")
		return
	}

	var payload categoryPayload
	if err := decodeBody(r, &payload); err != nil {
		s.respondError(r.Context(), w, err)
		return
	}

	updated, err := s.store.UpdateCategory(r.Context(), payload.toCategory(id))
	if err != nil {
		s.respondError(r.Context(), w, err)
		return
	}
	s.invalidateReads()
	writeJSON(w, http.StatusOK, toCategoryResponse(updated))
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid category id")
		return
	}

	if err := s.store.DeleteCategory(r.Context(), id); err != nil {
		s.respondError(r.Context(), w, err)
		return
	}
	s.invalidateReads()
	w.WriteHeader(http.StatusNoContent)
}
