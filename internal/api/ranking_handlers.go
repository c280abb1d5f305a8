package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/onnwee/charrank/internal/middleware"
	"github.com/onnwee/charrank/internal/notify"
	"github.com/onnwee/charrank/internal/rankings"
	"github.com/onnwee/charrank/internal/sessions"
)

// RankingResponse is the response body for the per-user ranking endpoints.
type RankingResponse struct {
	Ranking []rankings.Entry `json:"ranking"`
}

// FullRankingResponse is the response body for GET /rankings/full.
type FullRankingResponse struct {
	Order []string `json:"order"`
}

// SaveFullRankingRequest is the request body for POST /rankings/full.
type SaveFullRankingRequest struct {
	Order []string `json:"order"`
}

// GlobalRankingResponse is the response body for GET /rankings/global.
type GlobalRankingResponse struct {
	Top   []string `json:"top"`
	Users int      `json:"users"`
}

// RankingHandlers holds dependencies for ranking HTTP handlers.
type RankingHandlers struct {
	sessions *sessions.Service
	catalog  catalogNames
	repo     rankings.Repository
	tracker  *notify.Tracker
	topN     int
}

// catalogNames is the slice of the character catalog rankings need.
type catalogNames interface {
	Names() []string
}

// NewRankingHandlers creates a new RankingHandlers instance.
func NewRankingHandlers(svc *sessions.Service, cat catalogNames, repo rankings.Repository, tracker *notify.Tracker, topN int) *RankingHandlers {
	return &RankingHandlers{
		sessions: svc,
		catalog:  cat,
		repo:     repo,
		tracker:  tracker,
		topN:     topN,
	}
}

// Me handles GET /rankings/me: the live ranking of the user's active session,
// partial orderings included.
func (h *RankingHandlers) Me(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	userID := middleware.GetUserID(r.Context())
	sess, err := h.sessions.Get(r.Context(), userID)
	if err != nil {
		if errors.Is(err, sessions.ErrSessionNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNoSession)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNoSession, "No active ranking session")
			return
		}
		slog.ErrorContext(r.Context(), "failed to load session", "error", err, "user_id", userID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Internal error")
		return
	}

	writeJSON(w, http.StatusOK, RankingResponse{Ranking: rankings.Build(sess, h.catalog.Names())})
}

// Full dispatches /rankings/full by method: GET returns the stored full
// ranking, POST replaces it with a client-supplied order.
func (h *RankingHandlers) Full(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.getFull(w, r)
	case http.MethodPost:
		h.saveFull(w, r)
	default:
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
	}
}

// getFull returns the stored ranking normalized against the current catalog:
// departed characters are dropped, unranked ones appended.
func (h *RankingHandlers) getFull(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	order, err := h.repo.GetRanking(r.Context(), userID)
	if err != nil {
		if errors.Is(err, rankings.ErrRankingNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "No saved ranking")
			return
		}
		slog.ErrorContext(r.Context(), "failed to load ranking", "error", err, "user_id", userID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Internal error")
		return
	}

	writeJSON(w, http.StatusOK, FullRankingResponse{
		Order: rankings.NormalizeFull(order, h.catalog.Names()),
	})
}

// saveFull stores a manually adjusted full ranking.
func (h *RankingHandlers) saveFull(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req SaveFullRankingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}
	if len(req.Order) == 0 {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "order must not be empty")
		return
	}

	order := rankings.NormalizeFull(req.Order, h.catalog.Names())
	if err := h.repo.SaveRanking(r.Context(), userID, order); err != nil {
		slog.ErrorContext(r.Context(), "failed to save ranking", "error", err, "user_id", userID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to save ranking")
		return
	}
	h.tracker.MarkRated(order)

	writeJSON(w, http.StatusOK, FullRankingResponse{Order: order})
}

// Global handles GET /rankings/global: the characters appearing most often in
// users' top places.
func (h *RankingHandlers) Global(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	top, err := h.repo.GlobalTop(r.Context(), h.topN)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to compute global top", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Internal error")
		return
	}

	users, err := h.repo.UsersWithRankings(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to count ranked users", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Internal error")
		return
	}

	writeJSON(w, http.StatusOK, GlobalRankingResponse{Top: top, Users: len(users)})
}
