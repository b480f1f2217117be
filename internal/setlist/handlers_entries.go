package setlist

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleAddEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.Header.Get("X-User-Id")
	setlistID := chi.URLParam(r, "id")
	if setlistID == "" {
		writeError(w, http.StatusBadRequest, "missing setlist id")
		return
	}

	var body struct {
		SongID   string `json:"songId"`
		Position int    `json:"position"`
		Notes    string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	body.SongID = strings.TrimSpace(body.SongID)
	if body.SongID == "" {
		writeError(w, http.StatusBadRequest, "songId is required")
		return
	}
	if len(body.Notes) > 500 {
		writeError(w, http.StatusBadRequest, "notes is too long")
		return
	}

	entry, err := s.svc.AddEntry(ctx, setlistID, userID, body.SongID, body.Position, body.Notes)
	if err != nil {
		if err != ErrNotFound && err != ErrForbidden && err != ErrLocked && err != ErrNotAuthenticated {
			log.Printf("setlist-service: add entry %s: %v", setlistID, err)
		}
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleRemoveEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.Header.Get("X-User-Id")
	entryID := chi.URLParam(r, "entryId")
	if entryID == "" {
		writeError(w, http.StatusBadRequest, "missing entry id")
		return
	}

	if err := s.svc.RemoveEntry(ctx, entryID, userID); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReorder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.Header.Get("X-User-Id")
	setlistID := chi.URLParam(r, "id")
	if setlistID == "" {
		writeError(w, http.StatusBadRequest, "missing setlist id")
		return
	}

	var body struct {
		Updates []PositionUpdate `json:"updates"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(body.Updates) == 0 {
		writeError(w, http.StatusBadRequest, "updates is required")
		return
	}

	if err := s.svc.Reorder(ctx, setlistID, userID, body.Updates); err != nil {
		if err != ErrInvalidOrder && err != ErrNotFound && err != ErrForbidden && err != ErrLocked && err != ErrNotAuthenticated {
			log.Printf("setlist-service: reorder %s: %v", setlistID, err)
		}
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
