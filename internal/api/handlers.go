package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/larder/internal/apperr"
	"github.com/starford/larder/internal/explorer"
	"github.com/starford/larder/internal/favorites"
	"github.com/starford/larder/internal/models"
	"github.com/starford/larder/internal/query"
)

const maxBody = 1 << 20

// Handler holds API route handlers.
type Handler struct {
	exp *explorer.Explorer
}

// NewHandler creates a new Handler.
func NewHandler(exp *explorer.Explorer) *Handler {
	return &Handler{exp: exp}
}

// recipeID parses the {id} route parameter.
func recipeID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		return 0, fmt.Errorf("%w: recipe id must be an integer", apperr.ErrInvalid)
	}
	return id, nil
}

// Home handles GET /api/home.
//
//	@Summary		Search results and favorites for the root view
//	@Tags			home
//	@Produce		json
//	@Success		200	{object}	HomeResponse
//	@Security		BearerAuth
//	@Router			/home [get]
func (h *Handler) Home(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.exp.Home())
}

// GetSearch handles GET /api/search.
//
//	@Summary		Current search state
//	@Tags			search
//	@Produce		json
//	@Success		200	{object}	SearchResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) GetSearch(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.exp.Home().Search)
}

// SetKeyword handles PUT /api/search.
//
//	@Summary		Change the search keyword
//	@Tags			search
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SetKeywordRequest	true	"New keyword"
//	@Success		202		{object}	SetKeywordResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [put]
func (h *Handler) SetKeyword(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	var req SetKeywordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	h.exp.SetKeyword(req.Q)
	writeJSON(w, http.StatusAccepted, SetKeywordResponse{Keyword: req.Q})
}

// RetrySearch handles POST /api/search/retry.
//
//	@Summary		Re-run the current search
//	@Tags			search
//	@Produce		json
//	@Success		202	{object}	SearchResponse
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search/retry [post]
func (h *Handler) RetrySearch(w http.ResponseWriter, _ *http.Request) {
	if !h.exp.Retry() {
		writeJSON(w, http.StatusConflict, errorBody("no search to retry"))
		return
	}
	writeJSON(w, http.StatusAccepted, h.exp.Home().Search)
}

// GetRecipe handles GET /api/recipes/{id}.
//
//	@Summary		Recipe detail
//	@Tags			recipes
//	@Produce		json
//	@Param			id	path		int	true	"Recipe ID"
//	@Success		200	{object}	RecipeResponse
//	@Failure		400	{object}	RecipeResponse
//	@Failure		404	{object}	RecipeResponse
//	@Failure		502	{object}	RecipeResponse
//	@Security		BearerAuth
//	@Router			/recipes/{id} [get]
func (h *Handler) GetRecipe(w http.ResponseWriter, r *http.Request) {
	id, err := recipeID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, explorer.DetailView{
			Status: query.StatusError,
			Error:  "Invalid recipe id",
			Back:   explorer.BackLink,
		})
		return
	}
	v := h.exp.Recipe(r.Context(), id)
	status := http.StatusOK
	switch {
	case v.Err == nil:
	case v.NotFound:
		status = http.StatusNotFound
	default:
		status = http.StatusBadGateway
	}
	writeJSON(w, status, v)
}

// ListFavorites handles GET /api/favorites.
//
//	@Summary		List favorites with optional filtering
//	@Tags			favorites
//	@Produce		json
//	@Param			cuisine		query		string	false	"Exact cuisine"
//	@Param			difficulty	query		string	false	"Exact difficulty"
//	@Param			sort		query		string	false	"Order"	Enums(added, name)
//	@Success		200			{object}	FavoritesResponse
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/favorites [get]
func (h *Handler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := favorites.Filter{
		Cuisine:    q.Get("cuisine"),
		Difficulty: q.Get("difficulty"),
		Sort:       q.Get("sort"),
	}
	switch f.Sort {
	case "", favorites.SortAdded, favorites.SortName:
	default:
		writeJSON(w, http.StatusBadRequest, errorBody("sort must be 'added' or 'name'"))
		return
	}
	writeJSON(w, http.StatusOK, h.exp.FavoritesPage(f))
}

// AddFavorite handles POST /api/favorites.
//
//	@Summary		Add a favorite
//	@Tags			favorites
//	@Accept			json
//	@Produce		json
//	@Param			body	body		AddFavoriteRequest	true	"Recipe, or just its id"
//	@Success		201		{object}	AddFavoriteResponse	"Added"
//	@Success		200		{object}	AddFavoriteResponse	"Already a favorite"
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/favorites [post]
func (h *Handler) AddFavorite(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	var rec models.Recipe
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	var (
		added bool
		err   error
	)
	if rec.ID > 0 && rec.Name == "" {
		rec, added, err = h.exp.AddFavoriteByID(r.Context(), rec.ID)
	} else {
		added, err = h.exp.AddFavorite(rec)
	}
	warning, ok := persistOutcome(w, "add favorite", err)
	if !ok {
		return
	}

	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	writeJSON(w, status, AddFavoriteResponse{Recipe: rec, Added: added, PersistWarning: warning})
}

// ToggleFavorite handles POST /api/favorites/{id}/toggle.
//
//	@Summary		Toggle a favorite
//	@Tags			favorites
//	@Produce		json
//	@Param			id	path		int	true	"Recipe ID"
//	@Success		200	{object}	ToggleFavoriteResponse
//	@Failure		400	{object}	errResponse
//	@Failure		404	{object}	errResponse
//	@Failure		502	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/favorites/{id}/toggle [post]
func (h *Handler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	id, err := recipeID(r)
	if err != nil {
		writeError(w, "toggle favorite", err)
		return
	}
	on, err := h.exp.ToggleFavorite(r.Context(), id)
	warning, ok := persistOutcome(w, "toggle favorite", err)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ToggleFavoriteResponse{ID: id, Favorite: on, PersistWarning: warning})
}

// RemoveFavorite handles DELETE /api/favorites/{id}.
//
//	@Summary		Remove a favorite
//	@Tags			favorites
//	@Param			id	path	int	true	"Recipe ID"
//	@Success		204	"Removed, or was not a favorite"
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/favorites/{id} [delete]
func (h *Handler) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	id, err := recipeID(r)
	if err != nil {
		writeError(w, "remove favorite", err)
		return
	}
	_, err = h.exp.RemoveFavorite(id)
	if _, ok := persistOutcome(w, "remove favorite", err); !ok {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearFavorites handles DELETE /api/favorites.
//
//	@Summary		Remove every favorite
//	@Tags			favorites
//	@Success		204	"Cleared"
//	@Security		BearerAuth
//	@Router			/favorites [delete]
func (h *Handler) ClearFavorites(w http.ResponseWriter, _ *http.Request) {
	if _, ok := persistOutcome(w, "clear favorites", h.exp.ClearFavorites()); !ok {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
