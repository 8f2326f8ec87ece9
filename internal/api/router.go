package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/larder/internal/explorer"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(exp *explorer.Explorer, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(exp)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Root view.
	r.Get("/home", h.Home)

	// Search keyword.
	r.Get("/search", h.GetSearch)
	r.Put("/search", h.SetKeyword)
	r.Post("/search/retry", h.RetrySearch)

	// Recipe detail.
	r.Get("/recipes/{id}", h.GetRecipe)

	// Favorites.
	r.Get("/favorites", h.ListFavorites)
	r.Post("/favorites", h.AddFavorite)
	r.Delete("/favorites", h.ClearFavorites)
	r.Post("/favorites/{id}/toggle", h.ToggleFavorite)
	r.Delete("/favorites/{id}", h.RemoveFavorite)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
