package http

import (
	"io"
	"net/http"

	"tally/internal/transfer"
)

// Import payloads are full ledger snapshots, so allow a generous body size.
const maxImportBytes = 10 << 20

type importResponse struct {
	Applied bool                  `json:"applied"`
	Undo    *transfer.UndoPayload `json:"undo,omitempty"`
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportBytes))
}

func (s *Server) handleImportPreview(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read request body")
		return
	}

	preview, err := s.transfer.PreviewImport(data)
	if err != nil {
		s.respondError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	policy := transfer.Policy(r.URL.Query().Get("policy"))
	if policy == "" {
		policy = transfer.KeepExisting
	}
	if !policy.IsValid() {
		writeError(w, http.StatusBadRequest, "policy must be replaceExisting or keepExisting")
		return
	}

	data, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read request body")
		return
	}

	undo, err := s.transfer.Import(r.Context(), data, policy)
	if err != nil {
		s.respondError(r.Context(), w, err)
		return
	}
	s.invalidateReads()
	writeJSON(w, http.StatusOK, importResponse{Applied: undo != nil, Undo: undo})
}

func (s *Server) handleImportUndo(w http.ResponseWriter, r *http.Request) {
	var payload transfer.UndoPayload
	if err := decodeBody(r, &payload); err != nil {
		s.respondError(r.Context(), w, err)
		return
	}

	result, err := s.transfer.Undo(r.Context(), &payload)
	if err != nil {
		s.respondError(r.Context(), w, err)
		return
	}
	s.invalidateReads()
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleExportJSON(w http.ResponseWriter, r *http.Request) {
	s.serveExport(w, r, "export.json", "application/json; charset=utf-8", s.transfer.ExportJSON)
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	s.serveExport(w, r, "export.csv", "text/csv; charset=utf-8", s.transfer.ExportCSV)
}

func (s *Server) serveExport(w http.ResponseWriter, r *http.Request, key, contentType string, render func() ([]byte, error)) {
	data, ok := s.exportCache.Get(key)
	if !ok {
		var err error
		data, err = render()
		if err != nil {
			s.respondError(r.Context(), w, err)
			return
		}
		s.exportCache.Set(key, data)
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+key+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
