package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/onnwee/charrank/internal/catalog"
	"github.com/onnwee/charrank/internal/engine"
	"github.com/onnwee/charrank/internal/middleware"
	"github.com/onnwee/charrank/internal/notify"
	"github.com/onnwee/charrank/internal/rankings"
	"github.com/onnwee/charrank/internal/sessions"
)

// ModeNewCharacters is the session mode that restricts comparisons to
// freshly added characters.
const ModeNewCharacters = "new_characters"

// PairSide is one character of an offered pair.
type PairSide struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
}

// PairResponse is an offered comparison pair.
type PairResponse struct {
	A PairSide `json:"a"`
	B PairSide `json:"b"`
}

// CreateSessionRequest is the request body for POST /sessions.
type CreateSessionRequest struct {
	Mode string `json:"mode"`
}

// SessionResponse describes session state after create, choice, or undo.
type SessionResponse struct {
	Mode      string            `json:"mode,omitempty"`
	Completed bool              `json:"completed"`
	Pair      *PairResponse     `json:"pair,omitempty"`
	Stats     engine.Statistics `json:"stats"`
	Ranking   []rankings.Entry  `json:"ranking,omitempty"`
}

// ChoiceRequest is the request body for POST /sessions/choice.
type ChoiceRequest struct {
	A      int `json:"a"`
	B      int `json:"b"`
	Winner int `json:"winner"`
}

// UndoResponse is the response body for POST /sessions/undo.
type UndoResponse struct {
	Undone    bool              `json:"undone"`
	Completed bool              `json:"completed"`
	Pair      *PairResponse     `json:"pair,omitempty"`
	Stats     engine.Statistics `json:"stats"`
}

// SessionHandlers holds dependencies for ranking session HTTP handlers.
type SessionHandlers struct {
	sessions      *sessions.Service
	catalog       *catalog.Service
	rankingsRepo  rankings.Repository
	tracker       *notify.Tracker
	broadcaster   *notify.Broadcaster
	budgetForMode func(mode string) int
}

// NewSessionHandlers creates a new SessionHandlers instance.
func NewSessionHandlers(
	svc *sessions.Service,
	cat *catalog.Service,
	repo rankings.Repository,
	tracker *notify.Tracker,
	broadcaster *notify.Broadcaster,
	budgetForMode func(mode string) int,
) *SessionHandlers {
	return &SessionHandlers{
		sessions:      svc,
		catalog:       cat,
		rankingsRepo:  repo,
		tracker:       tracker,
		broadcaster:   broadcaster,
		budgetForMode: budgetForMode,
	}
}

// Sessions dispatches /sessions by method: POST creates, DELETE abandons.
func (h *SessionHandlers) Sessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.create(w, r)
	case http.MethodDelete:
		h.remove(w, r)
	default:
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
	}
}

// create starts a new ranking session, replacing any existing one. The mode
// selects the comparison budget; "new_characters" instead starts a session
// restricted to characters the user has not rated yet.
func (h *SessionHandlers) create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}
	mode := strings.ToLower(strings.TrimSpace(req.Mode))
	if mode == "" {
		mode = "medium"
	}

	var (
		sess *engine.Session
		err  error
	)
	if mode == ModeNewCharacters {
		sess, err = h.createNewCharacters(r, userID)
	} else {
		sess, err = h.sessions.Create(r.Context(), userID, h.catalog.Count(), h.budgetForMode(mode))
	}
	if err != nil {
		h.writeSessionError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, h.sessionResponse(mode, sess))
}

// createNewCharacters resolves which characters the user has not rated and
// starts a restricted session over them.
func (h *SessionHandlers) createNewCharacters(r *http.Request, userID string) (*engine.Session, error) {
	rated, err := h.rankingsRepo.GetRanking(r.Context(), userID)
	if err != nil && !errors.Is(err, rankings.ErrRankingNotFound) {
		return nil, err
	}

	fresh := h.tracker.ForUser(rated)
	indices := make([]int, 0, len(fresh))
	for _, name := range fresh {
		if idx, ok := h.catalog.IndexByName(name); ok {
			indices = append(indices, idx)
		}
	}
	if len(indices) == 0 {
		return nil, sessions.ErrNoNewCharacters
	}

	return h.sessions.CreateNewCharacters(r.Context(), userID, h.catalog.Count(), indices)
}

// remove abandons the user's active session.
func (h *SessionHandlers) remove(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if err := h.sessions.Remove(r.Context(), userID); err != nil {
		slog.ErrorContext(r.Context(), "failed to remove session", "error", err, "user_id", userID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to remove session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CurrentPair handles GET /sessions/current-pair. Repeated calls return the
// same pair until a choice is recorded.
func (h *SessionHandlers) CurrentPair(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	userID := middleware.GetUserID(r.Context())
	sess, err := h.sessions.Get(r.Context(), userID)
	if err != nil {
		h.writeSessionError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, h.sessionResponse("", sess))
}

// Choice handles POST /sessions/choice, recording the winner of the offered
// pair. On the choice that completes the session, the final ranking is
// persisted and pushed on the live feed.
func (h *SessionHandlers) Choice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	userID := middleware.GetUserID(r.Context())

	var req ChoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	sess, err := h.sessions.Get(r.Context(), userID)
	if err != nil {
		h.writeSessionError(w, r, err)
		return
	}
	if sess.IsCompleted() {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeSessionCompleted)
		WriteError(w, ctx, http.StatusConflict, ErrCodeSessionCompleted, "Session is already completed")
		return
	}

	pair := engine.Pair{A: req.A, B: req.B}
	if err := h.sessions.RecordChoice(r.Context(), userID, pair, req.Winner); err != nil {
		h.writeSessionError(w, r, err)
		return
	}

	resp := h.sessionResponse("", sess)
	if resp.Completed {
		h.finishSession(r, userID, sess, &resp)
	} else {
		h.broadcaster.Send(userID, notify.Event{
			Type:        notify.EventProgress,
			Comparisons: resp.Stats.ComparisonsMade,
			Completion:  resp.Stats.CompletionPercentage,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// finishSession persists the completed session's ranking and announces it.
func (h *SessionHandlers) finishSession(r *http.Request, userID string, sess *engine.Session, resp *SessionResponse) {
	names := h.catalog.Names()
	entries := rankings.Build(sess, names)
	resp.Ranking = entries

	order := rankings.NormalizeFull(rankings.Names(entries), names)
	if err := h.rankingsRepo.SaveRanking(r.Context(), userID, order); err != nil {
		slog.ErrorContext(r.Context(), "failed to save final ranking",
			"error", err, "user_id", userID)
	}
	h.tracker.MarkRated(rankings.Names(entries))

	h.broadcaster.Send(userID, notify.Event{
		Type:        notify.EventCompleted,
		Comparisons: resp.Stats.ComparisonsMade,
		Completion:  resp.Stats.CompletionPercentage,
	})
	slog.InfoContext(r.Context(), "session completed",
		"user_id", userID,
		"comparisons", resp.Stats.ComparisonsMade)
}

// Undo handles POST /sessions/undo, reverting the most recent choice. Undoing
// on a completed session reopens it.
func (h *SessionHandlers) Undo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	userID := middleware.GetUserID(r.Context())
	undone, err := h.sessions.Undo(r.Context(), userID)
	if err != nil {
		h.writeSessionError(w, r, err)
		return
	}

	sess, err := h.sessions.Get(r.Context(), userID)
	if err != nil {
		h.writeSessionError(w, r, err)
		return
	}

	resp := UndoResponse{
		Undone:    undone,
		Completed: sess.IsCompleted(),
		Stats:     sess.Statistics(),
	}
	if !resp.Completed {
		if p, ok := sess.CurrentPair(); ok {
			resp.Pair = h.pairResponse(p)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Stats handles GET /sessions/stats.
func (h *SessionHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	userID := middleware.GetUserID(r.Context())
	sess, err := h.sessions.Get(r.Context(), userID)
	if err != nil {
		h.writeSessionError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, sess.Statistics())
}

// sessionResponse assembles the standard session state payload.
func (h *SessionHandlers) sessionResponse(mode string, sess *engine.Session) SessionResponse {
	resp := SessionResponse{
		Mode:      mode,
		Completed: sess.IsCompleted(),
		Stats:     sess.Statistics(),
	}
	if !resp.Completed {
		if p, ok := sess.CurrentPair(); ok {
			resp.Pair = h.pairResponse(p)
		}
	}
	return resp
}

func (h *SessionHandlers) pairResponse(p engine.Pair) *PairResponse {
	nameOf := func(i int) string {
		if c, ok := h.catalog.ByIndex(i); ok {
			return c.Name
		}
		return ""
	}
	return &PairResponse{
		A: PairSide{Index: p.A, Name: nameOf(p.A)},
		B: PairSide{Index: p.B, Name: nameOf(p.B)},
	}
}

// writeSessionError maps session and engine errors to API responses.
func (h *SessionHandlers) writeSessionError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, sessions.ErrSessionNotFound):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeNoSession)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNoSession, "No active ranking session")
	case errors.Is(err, sessions.ErrNoNewCharacters):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeNoNewCharacters)
		WriteError(w, ctx, http.StatusConflict, ErrCodeNoNewCharacters, "No new characters to rate")
	case errors.Is(err, sessions.ErrTooFewItems):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "Not enough characters to rank")
	case errors.Is(err, engine.ErrInvalidPair), errors.Is(err, engine.ErrInvalidWinner):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidChoice)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidChoice, "Choice does not match the offered pair")
	default:
		slog.ErrorContext(r.Context(), "session operation failed", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Internal error")
	}
}
