package explorer

import (
	"context"
	"errors"
	"strconv"

	"github.com/starford/larder/internal/apperr"
	"github.com/starford/larder/internal/favorites"
	"github.com/starford/larder/internal/models"
	"github.com/starford/larder/internal/query"
)

// BackLink is where an error view sends the user.
const BackLink = "/"

// RecipeCard is a search result with its favorite flag.
type RecipeCard struct {
	Recipe   models.Recipe `json:"recipe"`
	Favorite bool          `json:"favorite"`
}

// SearchView renders the search state.
type SearchView struct {
	Keyword string       `json:"keyword"`
	Status  query.Status `json:"status"`
	Error   string       `json:"error,omitempty"`
	Recipes []RecipeCard `json:"recipes"`
	Total   int          `json:"total"`
	Skip    int          `json:"skip"`
	Limit   int          `json:"limit"`
	Seq     uint64       `json:"seq"`
}

// HomeView is the root route model.
type HomeView struct {
	Keyword        string          `json:"keyword"`
	Debounced      string          `json:"debounced"`
	Search         SearchView      `json:"search"`
	Favorites      []models.Recipe `json:"favorites"`
	FavoritesCount int             `json:"favorites_count"`
	PersistWarning string          `json:"persist_warning,omitempty"`
}

// DetailView is the recipe route model. Failures still render, with an
// error message and a way back.
type DetailView struct {
	Status   query.Status   `json:"status"`
	Recipe   *models.Recipe `json:"recipe,omitempty"`
	Favorite bool           `json:"favorite"`
	Error    string         `json:"error,omitempty"`
	NotFound bool           `json:"not_found,omitempty"`
	Back     string         `json:"back"`

	Err error `json:"-"`
}

// Home builds the root route model.
func (e *Explorer) Home() HomeView {
	raw, debounced := e.Keyword()
	favs := e.favs.SortedByName()
	return HomeView{
		Keyword:        raw,
		Debounced:      debounced,
		Search:         e.searchView(),
		Favorites:      favs,
		FavoritesCount: len(favs),
		PersistWarning: e.PersistWarning(),
	}
}

func (e *Explorer) searchView() SearchView {
	s := e.search.State()
	v := SearchView{
		Keyword: s.Key,
		Status:  s.Status,
		Recipes: []RecipeCard{},
		Seq:     s.Seq,
	}
	if s.Err != nil {
		v.Error = s.Err.Error()
	}
	if page := s.Data; page != nil {
		v.Total, v.Skip, v.Limit = page.Total, page.Skip, page.Limit
		for _, r := range page.Recipes {
			v.Recipes = append(v.Recipes, RecipeCard{Recipe: r.Clone(), Favorite: e.favs.Contains(r.ID)})
		}
	}
	return v
}

// Recipe builds the detail route model for id.
func (e *Explorer) Recipe(ctx context.Context, id int) DetailView {
	v := DetailView{Back: BackLink}
	r, err := e.details.Fetch(ctx, strconv.Itoa(id))
	if err != nil {
		v.Status = query.StatusError
		v.Err = err
		v.NotFound = errors.Is(err, apperr.ErrNotFound)
		if v.NotFound {
			v.Error = "Recipe not found"
		} else {
			v.Error = "Failed to load recipe"
		}
		return v
	}
	rc := r.Clone()
	v.Status = query.StatusSuccess
	v.Recipe = &rc
	v.Favorite = e.favs.Contains(id)
	return v
}

// FavoritesView is the favorites route model.
type FavoritesView struct {
	Favorites      []models.Recipe `json:"favorites"`
	Count          int             `json:"count"`
	PersistWarning string          `json:"persist_warning,omitempty"`
}

// FavoritesPage builds the favorites route model for f.
func (e *Explorer) FavoritesPage(f favorites.Filter) FavoritesView {
	items := e.favs.View(f)
	return FavoritesView{
		Favorites:      items,
		Count:          len(items),
		PersistWarning: e.PersistWarning(),
	}
}
