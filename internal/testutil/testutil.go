// Package testutil provides shared test helpers: storage doubles, sample
// recipes and a fake remote recipe API.
package testutil

import (
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/starford/larder/internal/models"
	"github.com/starford/larder/internal/storage"
)

// ErrDiskFull is returned by a FlakyProvider that is failing writes.
var ErrDiskFull = errors.New("disk full")

// FlakyProvider wraps a Provider and can be told to fail reads or writes.
type FlakyProvider struct {
	storage.Provider

	mu      sync.Mutex
	failGet bool
	failSet bool
	sets    int
}

// NewFlakyProvider wraps an in-memory provider.
func NewFlakyProvider() *FlakyProvider {
	return &FlakyProvider{Provider: storage.NewMemory()}
}

// FailGet makes every Get fail while on is true.
func (f *FlakyProvider) FailGet(on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failGet = on
}

// FailSet makes every Set fail while on is true.
func (f *FlakyProvider) FailSet(on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failSet = on
}

// Sets returns the number of Set calls, failed or not.
func (f *FlakyProvider) Sets() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sets
}

// Get implements storage.Provider.
func (f *FlakyProvider) Get(key string) ([]byte, error) {
	f.mu.Lock()
	fail := f.failGet
	f.mu.Unlock()
	if fail {
		return nil, errors.New("storage offline")
	}
	return f.Provider.Get(key)
}

// Set implements storage.Provider.
func (f *FlakyProvider) Set(key string, value []byte) error {
	f.mu.Lock()
	f.sets++
	fail := f.failSet
	f.mu.Unlock()
	if fail {
		return ErrDiskFull
	}
	return f.Provider.Set(key, value)
}

// TestStore creates an FS provider in a temporary directory.
func TestStore(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// TestSQLite creates a temporary SQLite provider that is automatically cleaned up.
func TestSQLite(t *testing.T) *storage.SQLite {
	t.Helper()
	dbFile, err := os.CreateTemp("", "larder-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := storage.OpenSQLite(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// Recipe returns a sample recipe with the given id and name.
func Recipe(id int, name, cuisine, difficulty string) models.Recipe {
	return models.Recipe{
		ID:         id,
		Name:       name,
		Cuisine:    cuisine,
		Difficulty: difficulty,
		MealType:   []string{"Dinner"},
		Image:      "https://cdn.example.com/recipe-images/" + name + ".webp",
	}
}

// Catalog is a small fixed recipe catalog.
func Catalog() []models.Recipe {
	return []models.Recipe{
		Recipe(1, "Classic Margherita Pizza", "Italian", "Easy"),
		Recipe(2, "Vegetarian Stir-Fry", "Asian", "Medium"),
		Recipe(3, "Chocolate Chip Cookies", "American", "Easy"),
		Recipe(4, "Pasta Carbonara", "Italian", "Medium"),
		Recipe(5, "Shrimp Pasta Alfredo", "Italian", "Hard"),
	}
}

// Eventually polls fn every tick until it returns true or timeout elapses.
func Eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}
