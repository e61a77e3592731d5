package cache

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	tmp := t.TempDir()
	store, err := Open(filepath.Join(tmp, "cache.db"), filepath.Join(tmp, "cache.lock"))
	if err != nil {
		t.Fatalf("Open cache failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestCacheSetGetAndExpiry(t *testing.T) {
	store := openStore(t)
	now := time.Unix(1_700_000_000, 0)
	store.now = func() time.Time { return now }

	if err := store.Set("k1", "claude", []byte("answer"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	entry, ok, err := store.Get("k1")
	if err != nil || !ok {
		t.Fatalf("expected hit, ok=%v err=%v", ok, err)
	}
	if string(entry.Value) != "answer" || entry.Model != "claude" {
		t.Fatalf("unexpected entry: %+v", entry)
	}

	now = now.Add(2 * time.Minute)
	if _, ok, err := store.Get("k1"); err != nil || ok {
		t.Fatalf("expected expired miss, ok=%v err=%v", ok, err)
	}
	if err := store.Prune(); err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if n, err := store.Len(); err != nil || n != 0 {
		t.Fatalf("expected empty cache after prune, got %d err=%v", n, err)
	}
}

func TestCacheMissAndOverwrite(t *testing.T) {
	store := openStore(t)
	if _, ok, err := store.Get("missing"); err != nil || ok {
		t.Fatalf("expected miss, ok=%v err=%v", ok, err)
	}
	_ = store.Set("k", "m1", []byte("one"), time.Hour)
	_ = store.Set("k", "m2", []byte("two"), time.Hour)
	entry, ok, err := store.Get("k")
	if err != nil || !ok || string(entry.Value) != "two" || entry.Model != "m2" {
		t.Fatalf("expected overwritten entry, got %+v ok=%v err=%v", entry, ok, err)
	}
}

func TestKeyIsStableAndUnambiguous(t *testing.T) {
	if Key("a", "b") != Key("a", "b") {
		t.Fatal("expected stable key")
	}
	if Key("ab", "c") == Key("a", "bc") {
		t.Fatal("expected part boundaries to change the key")
	}
}

func TestCacheConcurrentOpenAndSet(t *testing.T) {
	tmp := t.TempDir()
	dbPath := filepath.Join(tmp, "cache.db")
	lockPath := filepath.Join(tmp, "cache.lock")

	const workers = 8
	const iterations = 20

	var wg sync.WaitGroup
	errCh := make(chan error, workers)
	for worker := 0; worker < workers; worker++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()

			store, err := Open(dbPath, lockPath)
			if err != nil {
				errCh <- fmt.Errorf("worker %d open: %w", workerID, err)
				return
			}
			defer store.Close()

			for i := 0; i < iterations; i++ {
				key := Key(fmt.Sprint(workerID), fmt.Sprint(i))
				if err := store.Set(key, "m", []byte("ok"), time.Minute); err != nil {
					errCh <- fmt.Errorf("worker %d set iter %d: %w", workerID, i, err)
					return
				}
				if _, ok, err := store.Get(key); err != nil || !ok {
					errCh <- fmt.Errorf("worker %d get iter %d: ok=%v err=%v", workerID, i, ok, err)
					return
				}
			}
		}(worker)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Fatal(err)
	}
}
