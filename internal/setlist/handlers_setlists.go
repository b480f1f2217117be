package setlist

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleCreateSetlist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID := r.Header.Get("X-User-Id")
	if ownerID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	var body struct {
		ShowID     string `json:"showId"`
		ArtistID   string `json:"artistId"`
		ArtistName string `json:"artistName"`
		Name       string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	body.ShowID = strings.TrimSpace(body.ShowID)
	body.ArtistID = strings.TrimSpace(body.ArtistID)
	body.ArtistName = strings.TrimSpace(body.ArtistName)
	body.Name = strings.TrimSpace(body.Name)

	if body.ShowID == "" || body.ArtistID == "" {
		writeError(w, http.StatusBadRequest, "showId and artistId are required")
		return
	}
	if len(body.Name) > 200 {
		writeError(w, http.StatusBadRequest, "name must be at most 200 characters")
		return
	}

	sl, err := s.svc.Create(ctx, ownerID, CreateParams{
		ShowID:     body.ShowID,
		ArtistID:   body.ArtistID,
		ArtistName: body.ArtistName,
		Name:       body.Name,
	})
	if err != nil {
		log.Printf("setlist-service: create setlist: %v", err)
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, sl)
}

func (s *Server) handleGetSetlist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	setlistID := chi.URLParam(r, "id")
	viewerID := r.Header.Get("X-User-Id")

	sl, entries, err := s.svc.Get(ctx, setlistID, viewerID)
	if err != nil {
		if err != ErrNotFound {
			log.Printf("setlist-service: get setlist %s: %v", setlistID, err)
		}
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"setlist": sl,
		"entries": entries,
	})
}

func (s *Server) handleLockSetlist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	setlistID := chi.URLParam(r, "id")
	userID := r.Header.Get("X-User-Id")

	if err := s.svc.Lock(ctx, setlistID, userID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"locked": true})
}

func (s *Server) handleImportSetlist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	var body struct {
		ShowID     string `json:"showId"`
		ArtistID   string `json:"artistId"`
		ArtistName string `json:"artistName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.ShowID == "" || body.ArtistID == "" {
		writeError(w, http.StatusBadRequest, "showId and artistId are required")
		return
	}

	sl, err := s.svc.ImportActual(ctx, body.ShowID, body.ArtistID, body.ArtistName, userID)
	if err != nil {
		if err != ErrImportNoMatch {
			log.Printf("setlist-service: import %s: %v", body.ShowID, err)
		}
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, sl)
}
