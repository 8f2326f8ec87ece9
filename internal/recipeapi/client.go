// Package recipeapi is the HTTP client for the remote recipe catalog.
package recipeapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/starford/larder/internal/apperr"
	"github.com/starford/larder/internal/models"
)

// DefaultBaseURL is the public catalog the application talks to by default.
const DefaultBaseURL = "https://dummyjson.com"

const maxBodyBytes = 4 << 20

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// Client issues search and by-id requests. It never retries on its own.
type Client struct {
	base      *url.URL
	http      *http.Client
	logger    *slog.Logger
	userAgent string
}

// New creates a client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("recipeapi: parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("recipeapi: base url must be http(s): %q", baseURL)
	}
	c := &Client{
		base:      u,
		http:      &http.Client{Timeout: 10 * time.Second},
		logger:    slog.Default(),
		userAgent: "larder/1.0",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Search returns the page of recipes matching keyword. Matching semantics
// belong to the remote API.
func (c *Client) Search(ctx context.Context, keyword string) (*models.SearchPage, error) {
	q := url.Values{"q": []string{keyword}}
	var page models.SearchPage
	if err := c.get(ctx, "/recipes/search", q, &page); err != nil {
		return nil, fmt.Errorf("recipeapi: search %q: %w", keyword, err)
	}
	if page.Recipes == nil {
		page.Recipes = []models.Recipe{}
	}
	return &page, nil
}

// GetByID returns one recipe. Unknown ids, including non-positive ones,
// yield apperr.ErrNotFound.
func (c *Client) GetByID(ctx context.Context, id int) (*models.Recipe, error) {
	if id <= 0 {
		return nil, fmt.Errorf("recipeapi: get %d: %w", id, apperr.ErrNotFound)
	}
	var r models.Recipe
	if err := c.get(ctx, "/recipes/"+strconv.Itoa(id), nil, &r); err != nil {
		return nil, fmt.Errorf("recipeapi: get %d: %w", id, err)
	}
	return &r, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.base.JoinPath(path)
	if query != nil {
		u.RawQuery = query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %w", apperr.ErrUpstream, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("recipeapi: response",
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(start)))

	body := io.LimitReader(resp.Body, maxBodyBytes)
	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, body)
		return apperr.ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		_, _ = io.Copy(io.Discard, body)
		return fmt.Errorf("%w: status %d", apperr.ErrUpstream, resp.StatusCode)
	}
	if err := json.NewDecoder(body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode: %w", apperr.ErrUpstream, err)
	}
	return nil
}
