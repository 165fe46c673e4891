package http

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"tally/internal/core"
)

type startSessionRequest struct {
	CategoryID uuid.UUID `json:"categoryId"`
}

type sessionResponse struct {
	CategoryID         uuid.UUID `json:"categoryId"`
	StartTime          string    `json:"startTime"`
	IsPaused           bool      `json:"isPaused"`
	AccumulatedSeconds int       `json:"accumulatedSeconds"`
}

func toSessionResponse(sess core.ActiveSession) sessionResponse {
	return sessionResponse{
		CategoryID:         sess.CategoryID,
		StartTime:          sess.StartTime.UTC().Format(time.RFC3339),
		IsPaused:           sess.IsPaused,
		AccumulatedSeconds: sess.AccumulatedSeconds,
	}
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(r.Context(), w, err)
		return
	}

	sess, err := s.store.StartSession(r.Context(), req.CategoryID)
	if err != nil {
		s.respondError(r.Context(), w, err)
		return
	}
	s.invalidateReads()
	writeJSON(w, http.StatusCreated, toSessionResponse(sess))
}

func (s *Server) handlePauseSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.store.PauseSession(r.Context())
	if err != nil {
		s.respondError(r.Context(), w, err)
		return
	}
	s.invalidateReads()
	writeJSON(w, http.StatusOK, toSessionResponse(sess))
}

func (s *Server) handleResumeSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.store.ResumeSession(r.Context())
	if err != nil {
		s.respondError(r.Context(), w, err)
		return
	}
	s.invalidateReads()
	writeJSON(w, http.StatusOK, toSessionResponse(sess))
}

func (s *Server) handleStopSession(w http.ResponseWriter, r *http.Request) {
	entry, err := s.store.StopSessionAndSave(r.Context())
	if err != nil {
		s.respondError(r.Context(), w, err)
		return
	}
	s.invalidateReads()
	writeJSON(w, http.StatusCreated, toEntryResponse(entry))
}
