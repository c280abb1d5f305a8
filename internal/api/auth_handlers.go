package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/onnwee/charrank/internal/auth"
	"github.com/onnwee/charrank/internal/middleware"
	"github.com/onnwee/charrank/internal/validate"
)

// TokenRequest is the request body for POST /auth/token.
type TokenRequest struct {
	UserID string `json:"user_id"`
}

// TokenResponse is the response body for POST /auth/token.
type TokenResponse struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
}

// AuthHandlers holds dependencies for authentication HTTP handlers.
type AuthHandlers struct {
	jwt *auth.JWTService
}

// NewAuthHandlers creates a new AuthHandlers instance.
func NewAuthHandlers(jwt *auth.JWTService) *AuthHandlers {
	return &AuthHandlers{jwt: jwt}
}

// IssueToken handles POST /auth/token. The ranking frontend has no accounts;
// a client picks a user ID once, exchanges it for a token here, and presents
// that token on every subsequent request.
func (h *AuthHandlers) IssueToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	userID, err := validate.UserID(req.UserID)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation,
			"user_id must be 1-64 characters: letters, numbers, dot, dash, underscore")
		return
	}

	token, err := h.jwt.IssueToken(userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to issue token", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to issue token")
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{Token: token, UserID: userID})
}
