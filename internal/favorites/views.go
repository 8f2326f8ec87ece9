package favorites

import (
	"cmp"
	"slices"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/starford/larder/internal/models"
)

// Sort orders accepted by View.
const (
	SortAdded = "added"
	SortName  = "name"
)

// Filter selects a derived view of the collection. Empty fields match all.
type Filter struct {
	Cuisine    string
	Difficulty string
	Sort       string
}

// Len returns the number of favorites.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Contains reports whether id is a favorite.
func (s *Store) Contains(id int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexLocked(id) >= 0
}

// Get returns the favorite with id.
func (s *Store) Get(id int) (models.Recipe, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexLocked(id)
	if i < 0 {
		return models.Recipe{}, false
	}
	return s.items[i].Clone(), true
}

// List returns a copy of the collection in insertion order.
func (s *Store) List() []models.Recipe {
	return s.filter(func(models.Recipe) bool { return true })
}

// SortedByName returns the collection ordered by name; see SortByName.
func (s *Store) SortedByName() []models.Recipe {
	out := s.List()
	SortByName(out)
	return out
}

// ByCuisine returns the favorites whose cuisine equals c exactly.
func (s *Store) ByCuisine(c string) []models.Recipe {
	return s.filter(func(r models.Recipe) bool { return r.Cuisine == c })
}

// ByDifficulty returns the favorites whose difficulty equals d exactly.
func (s *Store) ByDifficulty(d string) []models.Recipe {
	return s.filter(func(r models.Recipe) bool { return r.Difficulty == d })
}

// View applies f. Filters are exact and case-sensitive.
func (s *Store) View(f Filter) []models.Recipe {
	out := s.filter(func(r models.Recipe) bool {
		return (f.Cuisine == "" || r.Cuisine == f.Cuisine) &&
			(f.Difficulty == "" || r.Difficulty == f.Difficulty)
	})
	if f.Sort == SortName {
		SortByName(out)
	}
	return out
}

func (s *Store) filter(keep func(models.Recipe) bool) []models.Recipe {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Recipe, 0, len(s.items))
	for _, r := range s.items {
		if keep(r) {
			out = append(out, r.Clone())
		}
	}
	return out
}

// SortByName sorts recipes in place using the Unicode root collation
// (CLDR, language.Und). Names that collate equal are ordered by code points,
// then by ID, so the order is total and independent of the host locale.
func SortByName(recipes []models.Recipe) {
	// Collators are not safe for concurrent use.
	c := collate.New(language.Und)
	slices.SortStableFunc(recipes, func(a, b models.Recipe) int {
		if n := c.CompareString(a.Name, b.Name); n != 0 {
			return n
		}
		if n := cmp.Compare(a.Name, b.Name); n != 0 {
			return n
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
