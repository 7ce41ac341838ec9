package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// DeleteJobHandler removes a scan job together with its objects and findings.
// Mounted behind BasicAuthGuard; deletion is irreversible.
func (s *Server) DeleteJobHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "id")
		if err := s.Status.Delete(r.Context(), jobID); err != nil {
			writeError(w, r, err, nil)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
