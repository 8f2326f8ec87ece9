package favorites

import (
	"encoding/json"
	"errors"
	"os"
	"reflect"
	"sync"
	"testing"

	"github.com/starford/larder/internal/apperr"
	"github.com/starford/larder/internal/models"
	"github.com/starford/larder/internal/storage"
	"github.com/starford/larder/internal/testutil"
)

func ids(recipes []models.Recipe) []int {
	out := make([]int, len(recipes))
	for i, r := range recipes {
		out[i] = r.ID
	}
	return out
}

func names(recipes []models.Recipe) []string {
	out := make([]string, len(recipes))
	for i, r := range recipes {
		out[i] = r.Name
	}
	return out
}

func TestAddIsIdempotent(t *testing.T) {
	s := New(storage.NewMemory())
	r := testutil.Recipe(1, "Pasta Carbonara", "Italian", "Medium")

	added, err := s.Add(r)
	if err != nil || !added {
		t.Fatalf("first Add = %v, %v", added, err)
	}
	added, err = s.Add(r)
	if err != nil || added {
		t.Fatalf("second Add = %v, %v; want false, nil", added, err)
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
}

func TestAddKeepsInsertionOrder(t *testing.T) {
	s := New(storage.NewMemory())
	for _, r := range testutil.Catalog() {
		if _, err := s.Add(r); err != nil {
			t.Fatal(err)
		}
	}
	if got := ids(s.List()); !reflect.DeepEqual(got, []int{1, 2, 3, 4, 5}) {
		t.Errorf("List ids = %v", got)
	}
}

func TestAddRejectsInvalidRecipe(t *testing.T) {
	s := New(storage.NewMemory())
	cases := []models.Recipe{
		{ID: 0, Name: "No id"},
		{ID: -3, Name: "Negative"},
		{ID: 7, Name: ""},
	}
	for _, r := range cases {
		if _, err := s.Add(r); !errors.Is(err, apperr.ErrInvalid) {
			t.Errorf("Add(%+v) err = %v, want ErrInvalid", r, err)
		}
	}
	if s.Len() != 0 {
		t.Errorf("invalid recipes were stored: %v", s.List())
	}
}

func TestRemoveAbsentIsNoop(t *testing.T) {
	s := New(storage.NewMemory())
	_, _ = s.Add(testutil.Recipe(1, "A", "Italian", "Easy"))
	before := s.List()

	removed, err := s.Remove(99)
	if err != nil || removed {
		t.Fatalf("Remove(99) = %v, %v", removed, err)
	}
	if !reflect.DeepEqual(s.List(), before) {
		t.Errorf("collection changed: %v", s.List())
	}
}

func TestRemovePresent(t *testing.T) {
	s := New(storage.NewMemory())
	for _, r := range testutil.Catalog()[:3] {
		_, _ = s.Add(r)
	}
	removed, err := s.Remove(2)
	if err != nil || !removed {
		t.Fatalf("Remove(2) = %v, %v", removed, err)
	}
	if got := ids(s.List()); !reflect.DeepEqual(got, []int{1, 3}) {
		t.Errorf("ids = %v, want [1 3]", got)
	}
}

func TestClearThenRemoveStaysEmpty(t *testing.T) {
	s := New(storage.NewMemory())
	for _, r := range testutil.Catalog() {
		_, _ = s.Add(r)
	}
	if err := s.Clear(); err != nil {
		t.Fatal(err)
	}
	for _, id := range []int{1, 2, 42} {
		_, _ = s.Remove(id)
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0", s.Len())
	}
}

func TestToggle(t *testing.T) {
	s := New(storage.NewMemory())
	r := testutil.Recipe(4, "Pasta Carbonara", "Italian", "Medium")

	on, err := s.Toggle(r)
	if err != nil || !on {
		t.Fatalf("first Toggle = %v, %v", on, err)
	}
	on, err = s.Toggle(r)
	if err != nil || on {
		t.Fatalf("second Toggle = %v, %v", on, err)
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d after double toggle", s.Len())
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	backends := map[string]storage.Provider{
		"memory": storage.NewMemory(),
		"sqlite": testutil.TestSQLite(t),
	}
	_, fs := testutil.TestStore(t)
	backends["fs"] = fs

	for name, backend := range backends {
		t.Run(name, func(t *testing.T) {
			s := New(backend)
			check := func(step string) {
				t.Helper()
				fresh := New(backend)
				if !reflect.DeepEqual(fresh.List(), s.List()) {
					t.Errorf("%s: rehydrated %v, in memory %v", step, fresh.List(), s.List())
				}
			}
			for _, r := range testutil.Catalog() {
				_, _ = s.Add(r)
			}
			check("add")
			_, _ = s.Remove(3)
			check("remove")
			_, _ = s.Remove(100)
			check("remove absent")
			_ = s.Clear()
			check("clear")
		})
	}
}

func TestPersistedFormIsJSONArray(t *testing.T) {
	mem := storage.NewMemory()
	s := New(mem)
	_, _ = s.Add(testutil.Recipe(1, "A", "Italian", "Easy"))

	data, err := mem.Get(DefaultKey)
	if err != nil {
		t.Fatal(err)
	}
	var decoded []models.Recipe
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("stored value is not a JSON array of recipes: %v", err)
	}
	if len(decoded) != 1 || decoded[0].ID != 1 {
		t.Errorf("decoded = %+v", decoded)
	}

	_ = s.Clear()
	data, _ = mem.Get(DefaultKey)
	if string(data) != "[]" {
		t.Errorf("after Clear stored %q, want []", data)
	}
}

func TestHydrationCorruptedStorageStartsEmpty(t *testing.T) {
	mem := storage.NewMemory()
	_ = mem.Set(DefaultKey, []byte("definitely not json"))

	s := New(mem)
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0", s.Len())
	}
	// The store stays usable.
	if _, err := s.Add(testutil.Recipe(1, "A", "Italian", "Easy")); err != nil {
		t.Fatalf("Add after corrupt hydration: %v", err)
	}
}

func TestHydrationWrongShapeStartsEmpty(t *testing.T) {
	mem := storage.NewMemory()
	_ = mem.Set(DefaultKey, []byte(`{"items":[]}`))
	if s := New(mem); s.Len() != 0 {
		t.Errorf("Len = %d, want 0", s.Len())
	}
}

func TestHydrationUnavailableStorageStartsEmpty(t *testing.T) {
	flaky := testutil.NewFlakyProvider()
	flaky.FailGet(true)
	if s := New(flaky); s.Len() != 0 {
		t.Errorf("Len = %d, want 0", s.Len())
	}
}

func TestHydrationCollapsesDuplicateIDs(t *testing.T) {
	mem := storage.NewMemory()
	_ = mem.Set(DefaultKey, []byte(`[{"id":1,"name":"First"},{"id":2,"name":"B"},{"id":1,"name":"Second"}]`))

	s := New(mem)
	got := s.List()
	if !reflect.DeepEqual(ids(got), []int{1, 2}) {
		t.Fatalf("ids = %v, want [1 2]", ids(got))
	}
	if got[0].Name != "First" {
		t.Errorf("kept %q, want the first occurrence", got[0].Name)
	}
}

func TestWriteFailureKeepsMutation(t *testing.T) {
	flaky := testutil.NewFlakyProvider()
	s := New(flaky)
	flaky.FailSet(true)

	added, err := s.Add(testutil.Recipe(1, "A", "Italian", "Easy"))
	if !added {
		t.Fatal("mutation should apply in memory")
	}
	if !errors.Is(err, apperr.ErrPersist) {
		t.Fatalf("err = %v, want ErrPersist", err)
	}
	if !errors.Is(s.LastPersistError(), testutil.ErrDiskFull) {
		t.Errorf("LastPersistError = %v", s.LastPersistError())
	}
	if !s.Contains(1) {
		t.Error("in-memory state must stay authoritative")
	}

	flaky.FailSet(false)
	if _, err := s.Add(testutil.Recipe(2, "B", "Asian", "Easy")); err != nil {
		t.Fatalf("Add after recovery: %v", err)
	}
	if s.LastPersistError() != nil {
		t.Error("LastPersistError should clear after a successful write")
	}
	// The recovered write contains both entries.
	if fresh := New(flaky); fresh.Len() != 2 {
		t.Errorf("rehydrated Len = %d, want 2", fresh.Len())
	}
}

func TestReadsNeverWrite(t *testing.T) {
	flaky := testutil.NewFlakyProvider()
	s := New(flaky)
	_, _ = s.Add(testutil.Recipe(1, "A", "Italian", "Easy"))
	before := flaky.Sets()

	_ = s.List()
	_ = s.SortedByName()
	_ = s.ByCuisine("Italian")
	_ = s.ByDifficulty("Easy")
	_ = s.View(Filter{Sort: SortName})
	_ = s.Contains(1)
	_, _ = s.Get(1)

	if flaky.Sets() != before {
		t.Errorf("reads wrote to storage: %d sets", flaky.Sets()-before)
	}
}

func TestReturnedSlicesAreCopies(t *testing.T) {
	s := New(storage.NewMemory())
	_, _ = s.Add(testutil.Recipe(1, "A", "Italian", "Easy"))

	list := s.List()
	list[0].Name = "mutated"
	list[0].MealType[0] = "mutated"

	got, _ := s.Get(1)
	if got.Name != "A" || got.MealType[0] != "Dinner" {
		t.Errorf("store state leaked: %+v", got)
	}
}

func TestObserverSeesChanges(t *testing.T) {
	var mu sync.Mutex
	var kinds []string
	s := New(storage.NewMemory(), WithObserver(func(c Change) {
		mu.Lock()
		defer mu.Unlock()
		kinds = append(kinds, c.Kind)
	}))

	r := testutil.Recipe(1, "A", "Italian", "Easy")
	_, _ = s.Add(r)
	_, _ = s.Add(r)     // no-op
	_, _ = s.Remove(42) // no-op
	_, _ = s.Remove(1)
	_ = s.Clear()

	want := []string{ChangeAdded, ChangeRemoved, ChangeCleared}
	if !reflect.DeepEqual(kinds, want) {
		t.Errorf("kinds = %v, want %v", kinds, want)
	}
}

func TestReloadPicksUpExternalWrite(t *testing.T) {
	mem := storage.NewMemory()
	s := New(mem)
	_, _ = s.Add(testutil.Recipe(1, "A", "Italian", "Easy"))

	if s.Reload() {
		t.Error("reload of our own write should be a no-op")
	}

	_ = mem.Set(DefaultKey, []byte(`[{"id":9,"name":"External"}]`))
	if !s.Reload() {
		t.Fatal("expected reload to apply external content")
	}
	if got := ids(s.List()); !reflect.DeepEqual(got, []int{9}) {
		t.Errorf("ids = %v, want [9]", got)
	}
}

func TestReloadKeepsStateOnMalformedStorage(t *testing.T) {
	mem := storage.NewMemory()
	s := New(mem)
	_, _ = s.Add(testutil.Recipe(1, "A", "Italian", "Easy"))
	_, _ = s.Add(testutil.Recipe(2, "B", "Thai", "Medium"))

	_ = mem.Set(DefaultKey, []byte(`[{"id":1,"name":"A"`))
	if s.Reload() {
		t.Error("reload of malformed content should be rejected")
	}
	if got := ids(s.List()); !reflect.DeepEqual(got, []int{1, 2}) {
		t.Fatalf("ids after bad reload = %v, want [1 2]", got)
	}

	_, _ = s.Add(testutil.Recipe(3, "C", "Mexican", "Hard"))
	if got := ids(New(mem).List()); !reflect.DeepEqual(got, []int{1, 2, 3}) {
		t.Errorf("persisted ids = %v, want [1 2 3]", got)
	}
}

func TestReloadKeepsStateOnUnavailableStorage(t *testing.T) {
	flaky := testutil.NewFlakyProvider()
	s := New(flaky)
	_, _ = s.Add(testutil.Recipe(1, "A", "Italian", "Easy"))

	flaky.FailGet(true)
	if s.Reload() {
		t.Error("reload with failing reads should be rejected")
	}
	if got := ids(s.List()); !reflect.DeepEqual(got, []int{1}) {
		t.Errorf("ids = %v, want [1]", got)
	}
}

func TestReloadAbsentKeyEmpties(t *testing.T) {
	_, fs := testutil.TestStore(t)
	s := New(fs)
	_, _ = s.Add(testutil.Recipe(1, "A", "Italian", "Easy"))

	path, err := fs.Path(DefaultKey)
	if err != nil {
		t.Fatalf("Path: %v", err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if !s.Reload() {
		t.Fatal("expected reload to apply the removal")
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0", s.Len())
	}
}

func TestObserverOrderUnderConcurrency(t *testing.T) {
	var mu sync.Mutex
	var counts []int
	s := New(storage.NewMemory(), WithObserver(func(c Change) {
		mu.Lock()
		defer mu.Unlock()
		counts = append(counts, c.Count)
	}))

	var wg sync.WaitGroup
	for i := 1; i <= 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = s.Add(testutil.Recipe(i, "R", "Italian", "Easy"))
		}(i)
	}
	wg.Wait()

	if len(counts) != 40 {
		t.Fatalf("got %d notifications, want 40", len(counts))
	}
	for i, c := range counts {
		if c != i+1 {
			t.Fatalf("notification %d has count %d, want %d (counts %v)", i, c, i+1, counts)
		}
	}
}

func TestConcurrentAddsKeepUniqueness(t *testing.T) {
	s := New(storage.NewMemory())
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = s.Add(testutil.Recipe(i%5+1, "R", "Italian", "Easy"))
		}(i)
	}
	wg.Wait()
	if s.Len() != 5 {
		t.Errorf("Len = %d, want 5", s.Len())
	}
	if fresh := New(s.store); fresh.Len() != 5 {
		t.Errorf("persisted Len = %d, want 5", fresh.Len())
	}
}
