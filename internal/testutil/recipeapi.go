package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/starford/larder/internal/models"
)

// FakeRecipeAPI serves /recipes/search and /recipes/{id} from a fixed
// catalog. Search matches names case-insensitively. Tests can hold searches
// for a given query until released, and make responses fail.
type FakeRecipeAPI struct {
	URL string

	catalog  []models.Recipe
	searches atomic.Int64
	gets     atomic.Int64

	mu     sync.Mutex
	fail   bool
	blocks map[string]chan struct{}
}

// NewFakeRecipeAPI starts a fake API serving catalog; it is closed with t.
func NewFakeRecipeAPI(t *testing.T, catalog []models.Recipe) *FakeRecipeAPI {
	t.Helper()
	f := &FakeRecipeAPI{catalog: catalog, blocks: make(map[string]chan struct{})}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(func() {
		f.ReleaseAll()
		srv.Close()
	})
	f.URL = srv.URL
	return f
}

// Fail makes every request answer 500 while on is true.
func (f *FakeRecipeAPI) Fail(on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = on
}

// Hold blocks searches for q until Release(q) is called.
func (f *FakeRecipeAPI) Hold(q string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.blocks[q]; !ok {
		f.blocks[q] = make(chan struct{})
	}
}

// Release unblocks searches for q.
func (f *FakeRecipeAPI) Release(q string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ch, ok := f.blocks[q]; ok {
		close(ch)
		delete(f.blocks, q)
	}
}

// ReleaseAll unblocks every held search.
func (f *FakeRecipeAPI) ReleaseAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for q, ch := range f.blocks {
		close(ch)
		delete(f.blocks, q)
	}
}

// Searches returns the number of search requests served.
func (f *FakeRecipeAPI) Searches() int {
	return int(f.searches.Load())
}

// Gets returns the number of by-id requests served.
func (f *FakeRecipeAPI) Gets() int {
	return int(f.gets.Load())
}

func (f *FakeRecipeAPI) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	fail := f.fail
	f.mu.Unlock()

	switch {
	case r.URL.Path == "/recipes/search":
		f.searches.Add(1)
		q := r.URL.Query().Get("q")
		f.mu.Lock()
		block := f.blocks[q]
		f.mu.Unlock()
		if block != nil {
			select {
			case <-block:
			case <-r.Context().Done():
				return
			}
		}
		if fail {
			http.Error(w, `{"message":"boom"}`, http.StatusInternalServerError)
			return
		}
		matches := []models.Recipe{}
		for _, rec := range f.catalog {
			if strings.Contains(strings.ToLower(rec.Name), strings.ToLower(q)) {
				matches = append(matches, rec)
			}
		}
		writeFakeJSON(w, http.StatusOK, models.SearchPage{
			Recipes: matches,
			Total:   len(matches),
			Skip:    0,
			Limit:   30,
		})

	case strings.HasPrefix(r.URL.Path, "/recipes/"):
		f.gets.Add(1)
		if fail {
			http.Error(w, `{"message":"boom"}`, http.StatusInternalServerError)
			return
		}
		id, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/recipes/"))
		if err != nil {
			writeFakeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid id"})
			return
		}
		for _, rec := range f.catalog {
			if rec.ID == id {
				writeFakeJSON(w, http.StatusOK, rec)
				return
			}
		}
		writeFakeJSON(w, http.StatusNotFound, map[string]string{"message": "Recipe with id '" + strconv.Itoa(id) + "' not found"})

	default:
		http.NotFound(w, r)
	}
}

func writeFakeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
