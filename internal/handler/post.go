package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"chirper/internal/command"
	"chirper/internal/domain"
	"chirper/internal/httputil"
	"chirper/internal/query"
	"chirper/internal/transport/http/middleware"
)

type PostHandler struct {
	bus     *command.Bus
	queries *query.Queries
}

func NewPostHandler(bus *command.Bus, queries *query.Queries) *PostHandler {
	return &PostHandler{
		bus:     bus,
		queries: queries,
	}
}

type createPostRequest struct {
	Body string `json:"body"`
}

// Create handles POST /api/posts
// Publishes a post for the authenticated user and returns the read-side
// row, already fanned out.
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req createPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	postID, err := h.bus.PublishPost(r.Context(), userID, req.Body)
	if err != nil {
		httputil.FromError(w, err)
		return
	}

	post, err := h.queries.GetPost(r.Context(), postID)
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, post)
}

// Delete handles DELETE /api/posts/{postID}
// Retracts a post; only its author may do so.
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	postID := domain.PostID(chi.URLParam(r, "postID"))

	if err := h.bus.RetractPost(r.Context(), postID, userID); err != nil {
		httputil.FromError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
