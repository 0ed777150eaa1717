package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"chirper/internal/handler"
	"chirper/internal/httputil"
	authmw "chirper/internal/transport/http/middleware"
)

// RouterConfig holds the dependencies needed to create routes
type RouterConfig struct {
	UserHandler     *handler.UserHandler
	IdentityHandler *handler.IdentityHandler
	PostHandler     *handler.PostHandler
	FollowHandler   *handler.FollowHandler
	FeedHandler     *handler.FeedHandler
	IdentitySecret  string
}

// NewRouter creates and configures a new Chi router with all route groups
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(authmw.RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(authmw.MetricsMiddleware)

	// Liveness and scrape endpoints stay outside /api.
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		// Public routes - no token required
		r.Post("/users", cfg.UserHandler.Register)
		r.Post("/identity/token", cfg.IdentityHandler.Token)
		r.Get("/users", cfg.UserHandler.List)
		r.Get("/users/{userID}/posts", cfg.UserHandler.GetPosts)
		r.Get("/users/{userID}/following/{otherID}", cfg.UserHandler.GetFollowing)

		// Protected routes - require an identity assertion
		r.Group(func(r chi.Router) {
			r.Use(authmw.AuthMiddleware(cfg.IdentitySecret))

			r.Post("/posts", cfg.PostHandler.Create)
			r.Delete("/posts/{postID}", cfg.PostHandler.Delete)

			r.Post("/users/{userID}/follow", cfg.FollowHandler.Follow)
			r.Delete("/users/{userID}/follow", cfg.FollowHandler.Unfollow)

			r.Get("/feed", cfg.FeedHandler.GetFeed)
		})
	})

	return r
}
