package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"chirper/internal/command"
	"chirper/internal/domain"
	"chirper/internal/httputil"
	"chirper/internal/query"
	"chirper/internal/readstore"
	"chirper/internal/transport/http/middleware"
)

type UserHandler struct {
	bus     *command.Bus
	queries *query.Queries
	secret  string
	ttl     time.Duration
}

func NewUserHandler(bus *command.Bus, queries *query.Queries, secret string, ttl time.Duration) *UserHandler {
	return &UserHandler{
		bus:     bus,
		queries: queries,
		secret:  secret,
		ttl:     ttl,
	}
}

type registerRequest struct {
	Username string `json:"username"`
}

type registerResponse struct {
	User  readstore.Profile `json:"user"`
	Token string            `json:"token"`
}

// Register handles POST /api/users
// Creates an account and mints an identity token for it.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	userID, err := h.bus.RegisterUser(r.Context(), req.Username)
	if err != nil {
		httputil.FromError(w, err)
		return
	}

	// The command waited for projection, so the profile is readable.
	profile, err := h.queries.GetProfile(r.Context(), userID)
	if err != nil {
		httputil.FromError(w, err)
		return
	}

	token, err := middleware.MintToken(h.secret, h.ttl, userID)
	if err != nil {
		httputil.WriteInternalError(w, "Failed to mint token")
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, registerResponse{User: profile, Token: token})
}

// List handles GET /api/users
// Returns every profile, ordered by username.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.queries.ListUsers(r.Context())
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profiles)
}

// GetPosts handles GET /api/users/{userID}/posts
// Returns the user's live posts, newest first.
func (h *UserHandler) GetPosts(w http.ResponseWriter, r *http.Request) {
	userID := domain.UserID(chi.URLParam(r, "userID"))

	posts, err := h.queries.PostsByAuthor(r.Context(), userID)
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, posts)
}

// GetFollowing handles GET /api/users/{userID}/following/{otherID}
// Reports whether userID currently follows otherID.
func (h *UserHandler) GetFollowing(w http.ResponseWriter, r *http.Request) {
	userID := domain.UserID(chi.URLParam(r, "userID"))
	otherID := domain.UserID(chi.URLParam(r, "otherID"))

	following, err := h.queries.IsFollowing(r.Context(), userID, otherID)
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"following": following})
}
