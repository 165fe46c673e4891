package http

import "net/http"

// dashCacheKey is constant: the dashboard is a single global projection.
// The short TTL keeps elapsed-session times close to live.
const dashCacheKey = "dashboard"

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if dash, ok := s.dashCache.Get(dashCacheKey); ok {
		writeJSON(w, http.StatusOK, dash)
		return
	}

	dash := s.store.Dashboard()
	s.dashCache.Set(dashCacheKey, dash)
	writeJSON(w, http.StatusOK, dash)
}
