package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"chirper/internal/domain"
	"chirper/internal/httputil"
	"chirper/internal/query"
	"chirper/internal/transport/http/middleware"
)

// IdentityHandler mints identity assertions. There is no password or
// credential anywhere: a token only says "requests carrying me act as
// this user id".
type IdentityHandler struct {
	queries *query.Queries
	secret  string
	ttl     time.Duration
}

func NewIdentityHandler(queries *query.Queries, secret string, ttl time.Duration) *IdentityHandler {
	return &IdentityHandler{
		queries: queries,
		secret:  secret,
		ttl:     ttl,
	}
}

type tokenRequest struct {
	UserID string `json:"user_id"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// Token handles POST /api/identity/token
// Issues a token for an existing user id.
func (h *IdentityHandler) Token(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}
	userID := domain.UserID(req.UserID)

	if _, err := h.queries.GetProfile(r.Context(), userID); err != nil {
		httputil.FromError(w, err)
		return
	}

	token, err := middleware.MintToken(h.secret, h.ttl, userID)
	if err != nil {
		httputil.WriteInternalError(w, "Failed to mint token")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tokenResponse{Token: token})
}
