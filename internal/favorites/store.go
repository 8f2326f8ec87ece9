// Package favorites keeps the user's saved recipes in insertion order and
// mirrors them to durable storage after every mutation.
package favorites

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/larder/internal/apperr"
	"github.com/starford/larder/internal/models"
	"github.com/starford/larder/internal/storage"
)

// DefaultKey is the storage key holding the serialized collection.
const DefaultKey = "favorites"

// Change kinds reported to observers.
const (
	ChangeAdded    = "added"
	ChangeRemoved  = "removed"
	ChangeCleared  = "cleared"
	ChangeReloaded = "reloaded"
)

// Change describes one applied mutation.
type Change struct {
	Kind     string `json:"kind"`
	RecipeID int    `json:"recipe_id,omitempty"`
	Count    int    `json:"count"`
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for hydration and persistence warnings.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithKey overrides the storage key.
func WithKey(key string) Option {
	return func(s *Store) { s.key = key }
}

// WithObserver registers a function called after every applied mutation,
// in the order mutations were applied. It runs outside the store lock but
// must not mutate the store synchronously.
func WithObserver(fn func(Change)) Option {
	return func(s *Store) { s.observers = append(s.observers, fn) }
}

// Store is the favorites collection.
//
// All mutations and their storage write run under one lock, so persisted
// content always equals the in-memory collection at the time of the write.
// A failed write does not roll the mutation back: memory stays
// authoritative for the session and the error wraps apperr.ErrPersist.
type Store struct {
	store     storage.Provider
	key       string
	logger    *slog.Logger
	observers []func(Change)

	// notifyMu orders observer delivery; see unlockAndNotify.
	notifyMu sync.Mutex

	mu         sync.RWMutex
	items      []models.Recipe
	lastSum    string
	persistErr error
}

// New creates a store and hydrates it from storage. Absent, unreadable or
// malformed storage yields an empty collection.
func New(store storage.Provider, opts ...Option) *Store {
	s := &Store{
		store:  store,
		key:    DefaultKey,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.items, s.lastSum = s.load()
	return s
}

// Key returns the storage key backing the store.
func (s *Store) Key() string {
	return s.key
}

// errMalformed marks stored data that is not a JSON array of recipes.
var errMalformed = errors.New("stored data is malformed")

// read decodes the stored collection. An absent key wraps
// apperr.ErrNotFound; the checksum is set whenever data was read.
func (s *Store) read() ([]models.Recipe, string, error) {
	data, err := s.store.Get(s.key)
	if err != nil {
		return nil, "", err
	}
	sum := storage.Checksum(data)
	var items []models.Recipe
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, sum, fmt.Errorf("%w: %w", errMalformed, err)
	}
	return dedupe(items), sum, nil
}

// load hydrates at startup. Absent, unreadable or malformed storage yields
// an empty collection.
func (s *Store) load() ([]models.Recipe, string) {
	items, sum, err := s.read()
	switch {
	case err == nil:
		return items, sum
	case errors.Is(err, apperr.ErrNotFound):
	case errors.Is(err, errMalformed):
		s.logger.Warn("favorites: stored data is malformed, starting empty", slog.String("error", err.Error()))
	default:
		s.logger.Warn("favorites: storage unavailable, starting empty", slog.String("error", err.Error()))
	}
	return []models.Recipe{}, sum
}

// dedupe keeps the first entry for every ID.
func dedupe(items []models.Recipe) []models.Recipe {
	seen := make(map[int]struct{}, len(items))
	out := make([]models.Recipe, 0, len(items))
	for _, r := range items {
		if _, ok := seen[r.ID]; ok {
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, r.Clone())
	}
	return out
}

// Validate checks that a recipe can be stored.
func Validate(r models.Recipe) error {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.ID, validation.Required, validation.Min(1)),
		validation.Field(&r.Name, validation.Required),
	)
	if err != nil {
		return fmt.Errorf("favorites: %w: %w", apperr.ErrInvalid, err)
	}
	return nil
}

// Add appends r unless an entry with the same ID exists. It reports whether
// the collection changed; adding a present ID is a no-op and does not write.
func (s *Store) Add(r models.Recipe) (bool, error) {
	if err := Validate(r); err != nil {
		return false, err
	}

	s.mu.Lock()
	if s.indexLocked(r.ID) >= 0 {
		s.mu.Unlock()
		return false, nil
	}
	ch, err := s.addLocked(r)
	s.unlockAndNotify(ch, true)
	return true, err
}

// Remove deletes the entry with id if present and persists the collection.
// It reports whether an entry was removed.
func (s *Store) Remove(id int) (bool, error) {
	s.mu.Lock()
	ch, removed, err := s.removeLocked(id)
	s.unlockAndNotify(ch, removed)
	return removed, err
}

// Clear empties the collection and persists an empty array.
func (s *Store) Clear() error {
	s.mu.Lock()
	s.items = []models.Recipe{}
	err := s.persistLocked()
	s.unlockAndNotify(Change{Kind: ChangeCleared}, true)
	return err
}

// Toggle removes r if it is a favorite and adds it otherwise.
// It reports whether r is a favorite afterwards.
func (s *Store) Toggle(r models.Recipe) (bool, error) {
	s.mu.Lock()
	if s.indexLocked(r.ID) >= 0 {
		ch, _, err := s.removeLocked(r.ID)
		s.unlockAndNotify(ch, true)
		return false, err
	}
	if err := Validate(r); err != nil {
		s.mu.Unlock()
		return false, err
	}
	ch, err := s.addLocked(r)
	s.unlockAndNotify(ch, true)
	return true, err
}

func (s *Store) addLocked(r models.Recipe) (Change, error) {
	s.items = append(s.items, r.Clone())
	err := s.persistLocked()
	return Change{Kind: ChangeAdded, RecipeID: r.ID, Count: len(s.items)}, err
}

func (s *Store) removeLocked(id int) (Change, bool, error) {
	i := s.indexLocked(id)
	if i >= 0 {
		s.items = slices.Delete(s.items, i, i+1)
	}
	err := s.persistLocked()
	return Change{Kind: ChangeRemoved, RecipeID: id, Count: len(s.items)}, i >= 0, err
}

// Reload re-reads storage, replacing the in-memory collection (last write
// wins). Content identical to the last write or load is ignored, and so is
// storage that cannot be read or does not decode: the in-memory collection
// stays authoritative until a valid external write appears. An absent key
// reloads as an empty collection.
func (s *Store) Reload() bool {
	s.mu.Lock()
	items, sum, err := s.read()
	switch {
	case err == nil:
	case errors.Is(err, apperr.ErrNotFound):
		items = []models.Recipe{}
	default:
		s.mu.Unlock()
		s.logger.Warn("favorites: reload skipped, keeping in-memory state",
			slog.String("key", s.key), slog.String("error", err.Error()))
		return false
	}
	if sum != "" && sum == s.lastSum {
		s.mu.Unlock()
		return false
	}
	s.items = items
	s.lastSum = sum
	ch := Change{Kind: ChangeReloaded, Count: len(items)}
	s.logger.Info("favorites: reloaded from storage", slog.Int("count", ch.Count))
	s.unlockAndNotify(ch, true)
	return true
}

// LastPersistError returns the error of the most recent write, or nil if it
// succeeded.
func (s *Store) LastPersistError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.persistErr
}

func (s *Store) persistLocked() error {
	data, err := json.Marshal(s.items)
	if err == nil {
		err = s.store.Set(s.key, data)
	}
	if err != nil {
		s.persistErr = fmt.Errorf("favorites: %w: %w", apperr.ErrPersist, err)
		s.logger.Warn("favorites: persist failed, keeping in-memory state",
			slog.String("key", s.key), slog.String("error", err.Error()))
		return s.persistErr
	}
	s.persistErr = nil
	s.lastSum = storage.Checksum(data)
	return nil
}

func (s *Store) indexLocked(id int) int {
	return slices.IndexFunc(s.items, func(r models.Recipe) bool { return r.ID == id })
}

// Observe registers fn like WithObserver on an existing store.
func (s *Store) Observe(fn func(Change)) {
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

// unlockAndNotify releases mu and, if send is set, delivers ch to the
// observers. notifyMu is taken before mu is released so observers see
// changes in the order they were applied.
func (s *Store) unlockAndNotify(ch Change, send bool) {
	observers := s.observers
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()
	if !send {
		return
	}
	for _, fn := range observers {
		fn(ch)
	}
}
