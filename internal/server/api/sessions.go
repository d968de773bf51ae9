package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/ayusman/fingerspell/internal/store"
)

const (
	sessionsPrefix      = "/api/sessions"
	defaultSessionLimit = 50
	maxSessionLimit     = 500
)

// SessionHandler serves the recorded session history:
//
//	GET /api/sessions?limit=N
//	GET /api/sessions/{id}
//	GET /api/sessions/{id}/commits
type SessionHandler struct {
	store *store.Store
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(s *store.Store) *SessionHandler {
	return &SessionHandler{store: s}
}

type sessionResponse struct {
	ID        string  `json:"id"`
	StartedAt string  `json:"started_at"`
	EndedAt   *string `json:"ended_at,omitempty"`
	FinalWord string  `json:"final_word"`
}

type commitResponse struct {
	Kind      string `json:"kind"`
	Label     string `json:"label,omitempty"`
	Appended  string `json:"appended"`
	WordAfter string `json:"word_after"`
	CreatedAt string `json:"created_at"`
}

func toSessionResponse(s *store.Session) sessionResponse {
	resp := sessionResponse{
		ID:        s.ID,
		StartedAt: formatTime(s.StartedAt),
		FinalWord: s.FinalWord,
	}
	if s.EndedAt != nil {
		ended := formatTime(*s.EndedAt)
		resp.EndedAt = &ended
	}
	return resp
}

// ServeHTTP routes session history requests.
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	parts := splitPath(r.URL.Path, sessionsPrefix)
	switch {
	case len(parts) == 0:
		h.list(w, r)
	case len(parts) == 1:
		h.get(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "commits":
		h.commits(w, r, parts[0])
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

func (h *SessionHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := defaultSessionLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxSessionLimit)
	}

	sessions, err := h.store.Sessions().List(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}

	response := struct {
		Sessions []sessionResponse `json:"sessions"`
	}{Sessions: make([]sessionResponse, 0, len(sessions))}
	for _, s := range sessions {
		response.Sessions = append(response.Sessions, toSessionResponse(s))
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *SessionHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	s, err := h.store.Sessions().GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get session")
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(s))
}

func (h *SessionHandler) commits(w http.ResponseWriter, r *http.Request, id string) {
	if _, err := h.store.Sessions().GetByID(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get session")
		return
	}

	commits, err := h.store.Commits().ListBySession(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list commits")
		return
	}

	response := struct {
		Commits []commitResponse `json:"commits"`
	}{Commits: make([]commitResponse, 0, len(commits))}
	for _, c := range commits {
		response.Commits = append(response.Commits, commitResponse{
			Kind:      string(c.Kind),
			Label:     c.Label,
			Appended:  c.Appended,
			WordAfter: c.WordAfter,
			CreatedAt: formatTime(c.CreatedAt),
		})
	}
	writeJSON(w, http.StatusOK, response)
}
