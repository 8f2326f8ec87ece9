package debounce

import (
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu     sync.Mutex
	values []string
}

func (r *recorder) record(v string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, v)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.values...)
}

func TestInitialValueWithoutDelay(t *testing.T) {
	var rec recorder
	d := New("pasta", 300*time.Millisecond, rec.record)
	defer d.Close()

	if got := d.Value(); got != "pasta" {
		t.Errorf("Value() = %q, want pasta", got)
	}
	if len(rec.snapshot()) != 0 {
		t.Error("initial value must not be reported as settled")
	}
}

func TestRapidChangesOnlyLastSettles(t *testing.T) {
	var rec recorder
	d := New("", 300*time.Millisecond, rec.record)
	defer d.Close()

	for _, v := range []string{"p", "pa", "pas"} {
		d.Set(v)
		time.Sleep(50 * time.Millisecond)
	}
	last := time.Now().Add(-50 * time.Millisecond)

	// Still inside the quiet period of the last change.
	time.Sleep(time.Until(last.Add(200 * time.Millisecond)))
	if got := rec.snapshot(); len(got) != 0 {
		t.Fatalf("propagated before quiet period elapsed: %v", got)
	}
	if got := d.Value(); got != "" {
		t.Fatalf("Value() = %q before settle, want empty", got)
	}
	if p, ok := d.Pending(); !ok || p != "pas" {
		t.Fatalf("Pending() = %q, %v; want pas, true", p, ok)
	}

	time.Sleep(time.Until(last.Add(600 * time.Millisecond)))
	got := rec.snapshot()
	if len(got) != 1 || got[0] != "pas" {
		t.Fatalf("settled values = %v, want [pas]", got)
	}
	if d.Value() != "pas" {
		t.Errorf("Value() = %q, want pas", d.Value())
	}
}

func TestZeroQuietIsPassThrough(t *testing.T) {
	var rec recorder
	d := New("a", 0, rec.record)
	defer d.Close()

	d.Set("b")
	if d.Value() != "b" {
		t.Errorf("Value() = %q, want b", d.Value())
	}
	got := rec.snapshot()
	if len(got) != 1 || got[0] != "b" {
		t.Errorf("settled = %v, want [b]", got)
	}
}

func TestSettlingSameValueDoesNotNotify(t *testing.T) {
	var rec recorder
	d := New("pasta", 20*time.Millisecond, rec.record)
	defer d.Close()

	d.Set("pastax")
	d.Set("pasta")
	time.Sleep(100 * time.Millisecond)

	if got := rec.snapshot(); len(got) != 0 {
		t.Errorf("intermediate or unchanged value propagated: %v", got)
	}
}

func TestCloseCancelsPending(t *testing.T) {
	var rec recorder
	d := New("a", 30*time.Millisecond, rec.record)

	d.Set("b")
	d.Close()
	time.Sleep(100 * time.Millisecond)

	if got := rec.snapshot(); len(got) != 0 {
		t.Errorf("value settled after Close: %v", got)
	}
	if d.Value() != "a" {
		t.Errorf("Value() = %q, want a", d.Value())
	}

	d.Set("c")
	time.Sleep(100 * time.Millisecond)
	if d.Value() != "a" {
		t.Error("Set after Close must be ignored")
	}
	d.Close()
}

func TestFlushSettlesImmediately(t *testing.T) {
	var rec recorder
	d := New("", time.Hour, rec.record)
	defer d.Close()

	d.Flush() // nothing pending
	d.Set("soup")
	d.Flush()

	if d.Value() != "soup" {
		t.Errorf("Value() = %q, want soup", d.Value())
	}
	if _, ok := d.Pending(); ok {
		t.Error("nothing should be pending after Flush")
	}
	if got := rec.snapshot(); len(got) != 1 || got[0] != "soup" {
		t.Errorf("settled = %v, want [soup]", got)
	}
}

func TestSupersededTimerIsInert(t *testing.T) {
	var rec recorder
	d := New("", time.Hour, rec.record)
	defer d.Close()

	d.Set("old")
	d.mu.Lock()
	stale := d.gen
	d.mu.Unlock()
	d.Set("new")

	// Simulate the old timer firing after Stop lost the race.
	d.fire(stale)

	if d.Value() != "" {
		t.Errorf("stale timer propagated %q", d.Value())
	}
	if got := rec.snapshot(); len(got) != 0 {
		t.Errorf("settled = %v, want none", got)
	}
}
