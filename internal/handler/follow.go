package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"chirper/internal/command"
	"chirper/internal/domain"
	"chirper/internal/httputil"
	"chirper/internal/transport/http/middleware"
)

type FollowHandler struct {
	bus *command.Bus
}

func NewFollowHandler(bus *command.Bus) *FollowHandler {
	return &FollowHandler{bus: bus}
}

// Follow handles POST /api/users/{userID}/follow
// The authenticated caller starts following {userID}.
func (h *FollowHandler) Follow(w http.ResponseWriter, r *http.Request) {
	followerID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	followeeID := domain.UserID(chi.URLParam(r, "userID"))

	relID, err := h.bus.StartFollow(r.Context(), followerID, followeeID)
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]string{
		"relationship_id": relID.String(),
	})
}

// Unfollow handles DELETE /api/users/{userID}/follow
// The authenticated caller stops following {userID}.
func (h *FollowHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	followerID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	followeeID := domain.UserID(chi.URLParam(r, "userID"))

	if err := h.bus.EndFollow(r.Context(), followerID, followeeID); err != nil {
		httputil.FromError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
