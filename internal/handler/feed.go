package handler

import (
	"net/http"

	"chirper/internal/httputil"
	"chirper/internal/query"
	"chirper/internal/transport/http/middleware"
)

type FeedHandler struct {
	queries *query.Queries
}

func NewFeedHandler(queries *query.Queries) *FeedHandler {
	return &FeedHandler{queries: queries}
}

// GetFeed handles GET /api/feed
// Returns the authenticated user's home feed: the materialized timeline
// merged with posts from followed celebrities, newest first.
func (h *FeedHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	feed, err := h.queries.GetFeed(r.Context(), userID)
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, feed)
}
