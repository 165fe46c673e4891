package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"tally/internal/core"
)

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: message})
}

// respondError translates the domain error taxonomy into status codes.
// Field-level validation failures keep the field name in the body.
func (s *Server) respondError(ctx context.Context, w http.ResponseWriter, err error) {
	var (
		valErr     *core.ValidationError
		payloadErr *core.InvalidPayloadError
		confErr    *core.SessionConflictError
	)
	switch {
	case errors.As(err, &valErr):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: valErr.Reason, Field: valErr.Field})
	case errors.As(err, &payloadErr):
		writeError(w, http.StatusBadRequest, payloadErr.Error())
	case errors.As(err, &confErr):
		writeError(w, http.StatusConflict, confErr.Error())
	case errors.Is(err, core.ErrCategoryNotFound), errors.Is(err, core.ErrEntryNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, core.ErrNoActiveSession),
		errors.Is(err, core.ErrSessionAlreadyActive),
		errors.Is(err, core.ErrSessionAlreadyPaused),
		errors.Is(err, core.ErrSessionNotPaused):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.ErrorContext(ctx, "Request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeBody decodes a JSON request body, rejecting unknown fields.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &core.InvalidPayloadError{Reason: err.Error()}
	}
	return nil
}
