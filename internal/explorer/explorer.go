// Package explorer is the recipe browsing session: a debounced search
// keyword driving remote searches, the favorites collection, and the view
// models rendered by the HTTP and MCP surfaces.
package explorer

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/starford/larder/internal/apperr"
	"github.com/starford/larder/internal/debounce"
	"github.com/starford/larder/internal/favorites"
	"github.com/starford/larder/internal/models"
	"github.com/starford/larder/internal/query"
	"github.com/starford/larder/internal/sse"
)

// Event types published by the session.
const (
	EventSearchUpdated    = "search.updated"
	EventFavoritesUpdated = "favorites.updated"
)

// Defaults for a new session.
const (
	DefaultKeyword   = "pasta"
	DefaultDebounce  = 300 * time.Millisecond
	DefaultCacheSize = 128
	DefaultCacheTTL  = 5 * time.Minute
)

// Searcher is the remote recipe source.
type Searcher interface {
	Search(ctx context.Context, keyword string) (*models.SearchPage, error)
	GetByID(ctx context.Context, id int) (*models.Recipe, error)
}

// Publisher receives change notifications.
type Publisher interface {
	Publish(event sse.Event)
}

type options struct {
	keyword   string
	quiet     time.Duration
	cacheSize int
	cacheTTL  time.Duration
	logger    *slog.Logger
	pub       Publisher
}

// Option configures an Explorer.
type Option func(*options)

// WithInitialKeyword sets the keyword searched at startup.
func WithInitialKeyword(q string) Option {
	return func(o *options) { o.keyword = q }
}

// WithDebounce sets the keyword quiet period. Zero searches on every change.
func WithDebounce(d time.Duration) Option {
	return func(o *options) { o.quiet = d }
}

// WithCache sets the response cache bounds.
func WithCache(size int, ttl time.Duration) Option {
	return func(o *options) {
		o.cacheSize = size
		o.cacheTTL = ttl
	}
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithPublisher sets where change notifications go.
func WithPublisher(p Publisher) Option {
	return func(o *options) { o.pub = p }
}

// Explorer is one browsing session.
type Explorer struct {
	client Searcher
	favs   *favorites.Store
	logger *slog.Logger
	pub    Publisher

	ctx    context.Context
	cancel context.CancelFunc

	search    *query.Tracker[*models.SearchPage]
	searches  *query.Cache[*models.SearchPage]
	details   *query.Cache[*models.Recipe]
	debouncer *debounce.Debouncer[string]

	mu      sync.RWMutex
	keyword string
}

// New starts a session and issues the search for the initial keyword.
func New(client Searcher, favs *favorites.Store, opts ...Option) *Explorer {
	o := options{
		keyword:   DefaultKeyword,
		quiet:     DefaultDebounce,
		cacheSize: DefaultCacheSize,
		cacheTTL:  DefaultCacheTTL,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Explorer{
		client:  client,
		favs:    favs,
		logger:  o.logger,
		pub:     o.pub,
		ctx:     ctx,
		cancel:  cancel,
		keyword: o.keyword,
	}

	e.searches = query.NewCache(func(ctx context.Context, q string) (*models.SearchPage, error) {
		return client.Search(ctx, q)
	}, o.cacheSize, o.cacheTTL)
	e.details = query.NewCache(func(ctx context.Context, key string) (*models.Recipe, error) {
		id, err := strconv.Atoi(key)
		if err != nil {
			return nil, apperr.ErrNotFound
		}
		return client.GetByID(ctx, id)
	}, o.cacheSize, o.cacheTTL)

	e.search = query.NewTracker(e.searches.Fetch,
		query.WithRefresh(e.searches.Refresh),
		query.WithObserver(e.onSearch),
		query.WithLogger[*models.SearchPage](o.logger),
	)
	e.debouncer = debounce.New(o.keyword, o.quiet, e.onSettle)
	favs.Observe(e.onFavorites)

	e.search.Issue(e.ctx, o.keyword)
	return e
}

// SetKeyword records the raw keyword. The search follows once the keyword
// has been stable for the quiet period.
func (e *Explorer) SetKeyword(q string) {
	e.mu.Lock()
	e.keyword = q
	e.mu.Unlock()
	e.debouncer.Set(q)
}

// Settle issues the search for a pending keyword without waiting.
func (e *Explorer) Settle() {
	e.debouncer.Flush()
}

// Keyword returns the raw and the debounced keyword.
func (e *Explorer) Keyword() (raw, debounced string) {
	e.mu.RLock()
	raw = e.keyword
	e.mu.RUnlock()
	return raw, e.debouncer.Value()
}

// Retry re-issues the current search, bypassing the response cache.
// It reports whether a search was issued.
func (e *Explorer) Retry() bool {
	return e.search.Retry(e.ctx) != nil
}

// Search returns the current search state.
func (e *Explorer) Search() query.State[*models.SearchPage] {
	return e.search.State()
}

// SearchNow runs one search outside the session, through the response cache.
func (e *Explorer) SearchNow(ctx context.Context, q string) (*models.SearchPage, error) {
	return e.searches.Fetch(ctx, q)
}

func (e *Explorer) onSettle(q string) {
	e.logger.Debug("explorer: keyword settled", slog.String("q", q))
	e.search.Issue(e.ctx, q)
}

func (e *Explorer) onSearch(s query.State[*models.SearchPage]) {
	data := map[string]any{
		"key":    s.Key,
		"status": s.Status,
		"seq":    s.Seq,
	}
	if s.Err != nil {
		data["error"] = s.Err.Error()
	}
	e.publish(EventSearchUpdated, data)
}

func (e *Explorer) onFavorites(ch favorites.Change) {
	e.publish(EventFavoritesUpdated, ch)
}

func (e *Explorer) publish(typ string, data any) {
	if e.pub == nil {
		return
	}
	e.pub.Publish(sse.Event{Type: typ, Data: data})
}

// Lookup resolves a recipe for id: from the current search results, then
// the favorites, then the remote source.
func (e *Explorer) Lookup(ctx context.Context, id int) (models.Recipe, error) {
	if page := e.search.State().Data; page != nil {
		for _, r := range page.Recipes {
			if r.ID == id {
				return r.Clone(), nil
			}
		}
	}
	if r, ok := e.favs.Get(id); ok {
		return r, nil
	}
	r, err := e.details.Fetch(ctx, strconv.Itoa(id))
	if err != nil {
		return models.Recipe{}, err
	}
	return r.Clone(), nil
}

// ToggleFavorite flips the favorite status of id and reports whether it is a
// favorite afterwards. A persistence failure still applies the change and
// returns an error wrapping apperr.ErrPersist.
func (e *Explorer) ToggleFavorite(ctx context.Context, id int) (bool, error) {
	r, err := e.Lookup(ctx, id)
	if err != nil {
		return false, err
	}
	return e.favs.Toggle(r)
}

// AddFavorite adds r; see favorites.Store.Add.
func (e *Explorer) AddFavorite(r models.Recipe) (bool, error) {
	return e.favs.Add(r)
}

// AddFavoriteByID resolves id and adds it.
func (e *Explorer) AddFavoriteByID(ctx context.Context, id int) (models.Recipe, bool, error) {
	r, err := e.Lookup(ctx, id)
	if err != nil {
		return models.Recipe{}, false, err
	}
	added, err := e.favs.Add(r)
	return r, added, err
}

// RemoveFavorite removes id; see favorites.Store.Remove.
func (e *Explorer) RemoveFavorite(id int) (bool, error) {
	return e.favs.Remove(id)
}

// ClearFavorites empties the collection.
func (e *Explorer) ClearFavorites() error {
	return e.favs.Clear()
}

// Favorites returns a derived view of the collection.
func (e *Explorer) Favorites(f favorites.Filter) []models.Recipe {
	return e.favs.View(f)
}

// PersistWarning returns the last storage write failure, or "".
func (e *Explorer) PersistWarning() string {
	if err := e.favs.LastPersistError(); err != nil {
		return err.Error()
	}
	return ""
}

// Close stops the debouncer and the search tracker. In-flight requests are
// abandoned.
func (e *Explorer) Close() {
	e.debouncer.Close()
	e.search.Close()
	e.cancel()
}

// IsPersistError reports whether err is only a storage write failure, in
// which case the mutation itself succeeded.
func IsPersistError(err error) bool {
	return errors.Is(err, apperr.ErrPersist)
}
