package vote

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
)

// Server exposes the vote aggregator over HTTP.
type Server struct {
	store    Store
	notifier Notifier

	// NetScore switches the tally read path to the legacy net-score
	// ordering. The write model is presence-only regardless; the flag only
	// changes how tallies are sorted for clients still on the old UI.
	NetScore bool
}

func NewServer(store Store, notifier Notifier) *Server {
	return &Server{store: store, notifier: notifier}
}

func (s *Server) Router(middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	for _, mw := range middlewares {
		r.Use(mw)
	}

	r.Post("/entries/{entryId}/vote", s.handleToggleVote)
	r.Get("/entries/{entryId}/votes", s.handleVoteCount)
	r.Get("/setlists/{id}/tally", s.handleSetlistTally)

	return r
}

func (s *Server) handleToggleVote(w http.ResponseWriter, r *http.Request) {
	entryID := chi.URLParam(r, "entryId")
	userID := r.Header.Get("X-User-Id")

	res, err := toggleVote(r.Context(), s.store, s.notifier, entryID, userID)
	if err != nil {
		writeVoteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleVoteCount(w http.ResponseWriter, r *http.Request) {
	entryID := chi.URLParam(r, "entryId")

	total, err := voteCount(r.Context(), s.store, entryID)
	if err != nil {
		writeVoteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"voteCount": total})
}

func (s *Server) handleSetlistTally(w http.ResponseWriter, r *http.Request) {
	setlistID := chi.URLParam(r, "id")
	userID := r.Header.Get("X-User-Id")

	tally, err := s.store.SetlistTally(r.Context(), setlistID, userID)
	if err != nil {
		log.Printf("setlist-service: tally %s: %v", setlistID, err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if tally == nil {
		tally = []EntryTally{}
	}
	if s.NetScore {
		// Legacy clients expect score ordering, not setlist ordering.
		// Downvotes were removed, so net score degenerates to the count.
		sort.SliceStable(tally, func(i, j int) bool {
			return tally[i].Count > tally[j].Count
		})
	}
	writeJSON(w, http.StatusOK, tally)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func writeVoteError(w http.ResponseWriter, err error) {
	var ve *voteError
	if errors.As(err, &ve) {
		writeError(w, ve.status, ve.msg)
		return
	}
	log.Printf("setlist-service: vote: %v", err)
	writeError(w, http.StatusInternalServerError, "database error")
}
