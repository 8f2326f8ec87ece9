package recipeapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/starford/larder/internal/apperr"
	"github.com/starford/larder/internal/testutil"
)

func testClient(t *testing.T) (*Client, *testutil.FakeRecipeAPI) {
	t.Helper()
	api := testutil.NewFakeRecipeAPI(t, testutil.Catalog())
	c, err := New(api.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, api
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	for _, u := range []string{"ftp://example.com", "::nope", ""} {
		if _, err := New(u); err == nil {
			t.Errorf("New(%q) should fail", u)
		}
	}
}

func TestSearch(t *testing.T) {
	c, api := testClient(t)

	page, err := c.Search(context.Background(), "pasta")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if page.Total != 2 || len(page.Recipes) != 2 {
		t.Fatalf("page = %+v", page)
	}
	if page.Recipes[0].Name != "Pasta Carbonara" {
		t.Errorf("first = %q", page.Recipes[0].Name)
	}
	if api.Searches() != 1 {
		t.Errorf("searches = %d", api.Searches())
	}
}

func TestSearchEscapesKeyword(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		_, _ = w.Write([]byte(`{"recipes":null,"total":0,"skip":0,"limit":30}`))
	}))
	defer srv.Close()

	c, _ := New(srv.URL + "/")
	page, err := c.Search(context.Background(), "mac & cheese")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if gotQuery != "mac & cheese" {
		t.Errorf("server saw q = %q", gotQuery)
	}
	if page.Recipes == nil {
		t.Error("nil recipes should decode as empty")
	}
}

func TestGetByID(t *testing.T) {
	c, _ := testClient(t)

	r, err := c.GetByID(context.Background(), 3)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if r.Name != "Chocolate Chip Cookies" {
		t.Errorf("name = %q", r.Name)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	c, api := testClient(t)

	if _, err := c.GetByID(context.Background(), 404); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	before := api.Gets()
	if _, err := c.GetByID(context.Background(), 0); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("id 0 err = %v, want ErrNotFound", err)
	}
	if api.Gets() != before {
		t.Error("id 0 should not reach the network")
	}
}

func TestUpstreamFailure(t *testing.T) {
	c, api := testClient(t)
	api.Fail(true)

	_, err := c.Search(context.Background(), "pasta")
	if !errors.Is(err, apperr.ErrUpstream) {
		t.Errorf("search err = %v, want ErrUpstream", err)
	}
	_, err = c.GetByID(context.Background(), 1)
	if !errors.Is(err, apperr.ErrUpstream) {
		t.Errorf("get err = %v, want ErrUpstream", err)
	}
}

func TestMalformedBodyIsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	}))
	defer srv.Close()

	c, _ := New(srv.URL)
	if _, err := c.Search(context.Background(), "x"); !errors.Is(err, apperr.ErrUpstream) {
		t.Errorf("err = %v, want ErrUpstream", err)
	}
}

func TestCancelledContext(t *testing.T) {
	c, api := testClient(t)
	api.Hold("slow")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Search(ctx, "slow")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}
