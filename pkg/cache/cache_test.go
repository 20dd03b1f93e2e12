package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
	err  error
	gets int
}

func newMapCache() *mapCache {
	return &mapCache{data: map[string][]byte{}}
}

func (m *mapCache) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.err != nil {
		return nil, m.err
	}
	v, ok := m.data[key]
	if !ok {
		return nil, ErrMiss
	}
	return v, nil
}

func (m *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *mapCache) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func TestLocalCache(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lc, err := NewLocal(ctx, time.Minute)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	defer lc.Close()

	if _, err := lc.Get(ctx, "missing"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected ErrMiss, got %v", err)
	}
	if err := lc.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := lc.Get(ctx, "k")
	if err != nil || string(got) != "v" {
		t.Fatalf("expected v, got %q (%v)", got, err)
	}
	if err := lc.Delete(ctx, "k", "never-set"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := lc.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected ErrMiss after delete, got %v", err)
	}
}

func TestTieredBackfillsL1(t *testing.T) {
	ctx := context.Background()
	l1, l2 := newMapCache(), newMapCache()
	l2.data["irr"] = []byte(`"4.5"`)

	tc := NewTiered(l1, l2)
	var v string
	ok, err := GetJSON(ctx, tc, "irr", &v)
	if err != nil || !ok || v != "4.5" {
		t.Fatalf("expected hit 4.5, got %v %q %v", ok, v, err)
	}
	if _, found := l1.data["irr"]; !found {
		t.Fatal("expected L1 backfill")
	}

	l2.gets = 0
	if _, err := tc.Get(ctx, "irr"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if l2.gets != 0 {
		t.Fatalf("expected L1 hit without touching L2, got %d L2 reads", l2.gets)
	}
}

func TestTieredL2FailureIsMiss(t *testing.T) {
	l2 := newMapCache()
	l2.err = errors.New("connection refused")
	tc := NewTiered(newMapCache(), l2)

	var v string
	ok, err := GetJSON(context.Background(), tc, "irr", &v)
	if err != nil || ok {
		t.Fatalf("expected silent miss, got %v %v", ok, err)
	}
}

func TestSetJSONDelete(t *testing.T) {
	ctx := context.Background()
	l1, l2 := newMapCache(), newMapCache()
	tc := NewTiered(l1, l2)

	if err := SetJSON(ctx, tc, "k", map[string]int{"a": 1}, time.Minute); err != nil {
		t.Fatalf("SetJSON: %v", err)
	}
	if len(l1.data) != 1 || len(l2.data) != 1 {
		t.Fatal("expected value in both levels")
	}
	if err := tc.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(l1.data) != 0 || len(l2.data) != 0 {
		t.Fatal("expected value removed from both levels")
	}
}
