// Package api exposes the discovery engine over HTTP.
package api

import (
	"log/slog"
	"net/http"

	"github.com/penlane/greenroom/internal/api/middleware"
	"github.com/penlane/greenroom/internal/auth"
	"github.com/penlane/greenroom/internal/bulkmatch"
	"github.com/penlane/greenroom/internal/search"
	"github.com/penlane/greenroom/internal/song"
)

// RouterDeps bundles all dependencies needed by the HTTP router.
type RouterDeps struct {
	AuthService   *auth.Service
	SongService   *song.Service
	SearchService *search.Service
	MatchService  *bulkmatch.Service
	MatchExecutor *bulkmatch.Executor
	Logger        *slog.Logger
	BasePath      string
}

// Router sets up all HTTP routes for the application.
type Router struct {
	authService   *auth.Service
	songService   *song.Service
	searchService *search.Service
	matchService  *bulkmatch.Service
	matchExecutor *bulkmatch.Executor
	logger        *slog.Logger
	basePath      string
}

// NewRouter creates a new Router with all routes configured.
func NewRouter(deps RouterDeps) *Router {
	return &Router{
		authService:   deps.AuthService,
		songService:   deps.SongService,
		searchService: deps.SearchService,
		matchService:  deps.MatchService,
		matchExecutor: deps.MatchExecutor,
		logger:        deps.Logger,
		basePath:      deps.BasePath,
	}
}

// Handler returns the fully configured HTTP handler with middleware applied.
func (r *Router) Handler() http.Handler {
	authMw := middleware.Auth(r.authService)
	mux := http.NewServeMux()
	bp := r.basePath

	// Public routes (no auth)
	mux.HandleFunc("GET "+bp+"/api/v1/health", r.handleHealth)

	// Song routes
	mux.HandleFunc("GET "+bp+"/api/v1/songs/search", wrapAuth(r.handleSearchSongs, authMw))
	mux.HandleFunc("GET "+bp+"/api/v1/songs", wrapAuth(r.handleListSongs, authMw))
	mux.HandleFunc("POST "+bp+"/api/v1/songs", wrapAuth(r.handleCreateSong, authMw))

	// Match job routes
	mux.HandleFunc("POST "+bp+"/api/v1/match/jobs", wrapAuth(r.handleCreateMatchJob, authMw))
	mux.HandleFunc("GET "+bp+"/api/v1/match/jobs/{id}", wrapAuth(r.handleGetMatchJob, authMw))
	mux.HandleFunc("POST "+bp+"/api/v1/match/jobs/{id}/cancel", wrapAuth(r.handleCancelMatchJob, authMw))
	mux.HandleFunc("POST "+bp+"/api/v1/match/jobs/{id}/items/{index}/resolve", wrapAuth(r.handleResolveMatchItem, authMw))

	return middleware.Logging(r.logger)(mux)
}

// wrapAuth wraps a handler function with auth middleware.
func wrapAuth(fn http.HandlerFunc, authMw func(http.Handler) http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authMw(fn).ServeHTTP(w, r)
	}
}
