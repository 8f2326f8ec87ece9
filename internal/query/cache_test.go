package query

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestCacheHit(t *testing.T) {
	var calls atomic.Int32
	c := NewCache(func(_ context.Context, key string) (string, error) {
		calls.Add(1)
		return "v:" + key, nil
	}, 8, time.Minute)

	for range 3 {
		v, err := c.Fetch(context.Background(), "pasta")
		if err != nil || v != "v:pasta" {
			t.Fatalf("Fetch = %q, %v", v, err)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}

	if _, err := c.Refresh(context.Background(), "pasta"); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 2 {
		t.Fatalf("Refresh should bypass the cache, calls = %d", calls.Load())
	}

	c.Purge()
	if c.Len() != 0 {
		t.Fatalf("Len after Purge = %d", c.Len())
	}
}

func TestCacheDoesNotCacheErrors(t *testing.T) {
	boom := errors.New("boom")
	var calls atomic.Int32
	c := NewCache(func(_ context.Context, _ string) (string, error) {
		if calls.Add(1) == 1 {
			return "", boom
		}
		return "ok", nil
	}, 8, time.Minute)

	if _, err := c.Fetch(context.Background(), "k"); !errors.Is(err, boom) {
		t.Fatalf("first err = %v, want boom", err)
	}
	v, err := c.Fetch(context.Background(), "k")
	if err != nil || v != "ok" {
		t.Fatalf("second Fetch = %q, %v", v, err)
	}
}

func TestCacheSharesInFlight(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	c := NewCache(func(_ context.Context, key string) (string, error) {
		calls.Add(1)
		<-release
		return "v:" + key, nil
	}, 8, time.Minute)

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if v, err := c.Fetch(context.Background(), "k"); err != nil || v != "v:k" {
				t.Errorf("Fetch = %q, %v", v, err)
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
}

func TestCacheCallerCancelStillFills(t *testing.T) {
	release := make(chan struct{})
	c := NewCache(func(_ context.Context, key string) (string, error) {
		<-release
		return "v:" + key, nil
	}, 8, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := c.Fetch(ctx, "k")
		errc <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want canceled", err)
	}

	close(release)
	deadline := time.Now().Add(2 * time.Second)
	for c.Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("detached request never filled the cache")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCacheExpiry(t *testing.T) {
	var calls atomic.Int32
	c := NewCache(func(_ context.Context, _ string) (int32, error) {
		return calls.Add(1), nil
	}, 8, 30*time.Millisecond)

	first, _ := c.Fetch(context.Background(), "k")
	time.Sleep(80 * time.Millisecond)
	second, _ := c.Fetch(context.Background(), "k")
	if first == second {
		t.Fatalf("expired entry was served: %d", second)
	}
}
