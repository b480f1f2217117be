package reconcile

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

var errNotAuthenticated = errors.New("missing user context")

// Server exposes the anonymous buffer and the post-login reconciliation
// call.
type Server struct {
	buf *Buffer
	rec *Reconciler
}

func NewServer(buf *Buffer, rec *Reconciler) *Server {
	return &Server{buf: buf, rec: rec}
}

func (s *Server) Router(middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	for _, mw := range middlewares {
		r.Use(mw)
	}

	r.Post("/anon/session", s.handleNewSession)
	r.Post("/anon/{sessionId}/actions", s.handleAppendAction)
	r.Post("/reconcile", s.handleReconcile)

	return r
}

func (s *Server) handleNewSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusCreated, map[string]string{
		"sessionId": uuid.NewString(),
	})
}

func (s *Server) handleAppendAction(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")
	if _, err := uuid.Parse(sessionID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	var a Action
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	switch a.Type {
	case ActionVote:
		if a.EntryID == "" {
			writeError(w, http.StatusBadRequest, "entryId is required for vote actions")
			return
		}
	case ActionSongAdd:
		if a.SetlistID == "" || a.SongID == "" {
			writeError(w, http.StatusBadRequest, "setlistId and songId are required for song_add actions")
			return
		}
	default:
		writeError(w, http.StatusBadRequest, `type must be "vote" or "song_add"`)
		return
	}

	if err := s.buf.Append(r.Context(), sessionID, a); err != nil {
		if errors.Is(err, errBufferFull) {
			writeError(w, http.StatusTooManyRequests, "session buffer is full")
			return
		}
		log.Printf("setlist-service: append action %s: %v", sessionID, err)
		writeError(w, http.StatusInternalServerError, "buffer error")
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	var body struct {
		SessionID string `json:"sessionId"`
		Batch     *Batch `json:"batch,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	body.SessionID = strings.TrimSpace(body.SessionID)
	if body.SessionID == "" {
		writeError(w, http.StatusBadRequest, "sessionId is required")
		return
	}

	var (
		res *Result
		err error
	)
	if body.Batch != nil {
		res, err = s.rec.Reconcile(r.Context(), userID, body.SessionID, *body.Batch)
	} else {
		res, err = s.rec.ReconcileSession(r.Context(), userID, body.SessionID)
	}
	if err != nil {
		log.Printf("setlist-service: reconcile %s: %v", body.SessionID, err)
		writeError(w, http.StatusInternalServerError, "reconcile error")
		return
	}

	writeJSON(w, http.StatusOK, res)
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
