package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func testCaches(t *testing.T) map[string]Cache {
	t.Helper()
	s := miniredis.RunT(t)
	r, err := NewRedis(context.Background(), "redis://"+s.Addr(), "test:")
	if err != nil {
		t.Fatalf("NewRedis: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return map[string]Cache{
		"memory": NewMemory(),
		"redis":  r,
	}
}

func TestCache_StoreLoadInvalidate(t *testing.T) {
	for name, c := range testCaches(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			gen, err := c.Generation(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if err := c.Store(ctx, "records", gen, []byte("v1"), time.Minute); err != nil {
				t.Fatalf("Store: %v", err)
			}
			got, ok, err := c.Load(ctx, "records")
			if err != nil || !ok || string(got) != "v1" {
				t.Fatalf("Load = %q, %v, %v", got, ok, err)
			}
			if err := c.Invalidate(ctx); err != nil {
				t.Fatal(err)
			}
			if _, ok, _ := c.Load(ctx, "records"); ok {
				t.Error("entry survived invalidation")
			}
		})
	}
}

func TestCache_StaleStoreRejected(t *testing.T) {
	for name, c := range testCaches(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			gen, _ := c.Generation(ctx)
			// A write lands between the snapshot and the store.
			_ = c.Invalidate(ctx)
			if err := c.Store(ctx, "records", gen, []byte("old"), time.Minute); !errors.Is(err, ErrStale) {
				t.Fatalf("Store = %v, want ErrStale", err)
			}
			if _, ok, _ := c.Load(ctx, "records"); ok {
				t.Error("stale value was stored")
			}
		})
	}
}

func TestMemory_TTLExpiry(t *testing.T) {
	m := NewMemory()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	_ = m.Store(ctx, "records", 0, []byte("v"), 5*time.Minute)
	now = now.Add(4 * time.Minute)
	if _, ok, _ := m.Load(ctx, "records"); !ok {
		t.Fatal("entry expired early")
	}
	now = now.Add(time.Minute)
	if _, ok, _ := m.Load(ctx, "records"); ok {
		t.Error("entry should expire at the TTL")
	}
}

func TestRedis_TTLExpiry(t *testing.T) {
	s := miniredis.RunT(t)
	r, err := NewRedis(context.Background(), "redis://"+s.Addr(), "")
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	ctx := context.Background()

	_ = r.Store(ctx, "friends", 0, []byte("v"), time.Minute)
	s.FastForward(2 * time.Minute)
	if _, ok, _ := r.Load(ctx, "friends"); ok {
		t.Error("entry should expire")
	}
}

func TestRedis_SharedInvalidation(t *testing.T) {
	s := miniredis.RunT(t)
	a, _ := NewRedis(context.Background(), "redis://"+s.Addr(), "shared:")
	b, _ := NewRedis(context.Background(), "redis://"+s.Addr(), "shared:")
	defer a.Close()
	defer b.Close()
	ctx := context.Background()

	gen, _ := a.Generation(ctx)
	_ = a.Store(ctx, "records", gen, []byte("v"), time.Minute)
	if _, ok, _ := b.Load(ctx, "records"); !ok {
		t.Fatal("second instance should see the entry")
	}
	_ = b.Invalidate(ctx)
	if _, ok, _ := a.Load(ctx, "records"); ok {
		t.Error("invalidation by one instance must be seen by the other")
	}
}
