package api

import (
	"github.com/starford/larder/internal/explorer"
	"github.com/starford/larder/internal/models"
)

// SetKeywordRequest is the request body for changing the search keyword.
type SetKeywordRequest struct {
	Q string `json:"q" example:"pasta"`
}

// SetKeywordResponse acknowledges a keyword change; the search follows
// once the keyword settles.
type SetKeywordResponse struct {
	Keyword string `json:"keyword" example:"pasta" validate:"required"`
}

// AddFavoriteRequest is a full recipe, or just {"id": n} to have the
// recipe resolved from the current results or the recipe service.
type AddFavoriteRequest = models.Recipe

// AddFavoriteResponse is returned after adding a favorite.
type AddFavoriteResponse struct {
	Recipe         models.Recipe `json:"recipe" validate:"required"`
	Added          bool          `json:"added" example:"true"`
	PersistWarning string        `json:"persist_warning,omitempty"`
}

// ToggleFavoriteResponse is returned after toggling a favorite.
type ToggleFavoriteResponse struct {
	ID             int    `json:"id" example:"4" validate:"required"`
	Favorite       bool   `json:"favorite" example:"true"`
	PersistWarning string `json:"persist_warning,omitempty"`
}

// HomeResponse is the root route model (aliased from the session layer).
type HomeResponse = explorer.HomeView

// SearchResponse is the current search state.
type SearchResponse = explorer.SearchView

// RecipeResponse is the detail route model.
type RecipeResponse = explorer.DetailView

// FavoritesResponse is a derived view of the favorites.
type FavoritesResponse = explorer.FavoritesView
