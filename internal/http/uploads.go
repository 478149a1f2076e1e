package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleServeUpload streams a stored upload. Range and conditional requests
// are handled by http.ServeContent.
func (s *Server) handleServeUpload(w http.ResponseWriter, r *http.Request) {
	f, err := s.media.Open(chi.URLParam(r, "name"))
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
		return
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}
