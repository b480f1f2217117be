package setlist

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type Server struct {
	svc *Service
}

func NewServer(svc *Service) *Server {
	return &Server{svc: svc}
}

func (s *Server) Router(middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	for _, mw := range middlewares {
		r.Use(mw)
	}

	r.Get("/health", s.handleHealth)

	r.Post("/setlists", s.handleCreateSetlist)
	r.Get("/setlists/{id}", s.handleGetSetlist)
	r.Post("/setlists/{id}/lock", s.handleLockSetlist)
	r.Post("/setlists/import", s.handleImportSetlist)

	r.Post("/setlists/{id}/entries", s.handleAddEntry)
	r.Delete("/setlists/{id}/entries/{entryId}", s.handleRemoveEntry)
	r.Put("/setlists/{id}/entries/order", s.handleReorder)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "setlist-service",
	})
}
