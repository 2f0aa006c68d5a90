package cache

import (
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func TestCacheExpiry(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	m := newManager(10, time.Minute, clock.Now)

	key := Key([]byte("text"), []byte("Caesar Salad - $12"))
	m.Set(key, []byte(`[{"name":"Caesar Salad"}]`))

	if v, ok := m.Get(key); !ok || string(v) != `[{"name":"Caesar Salad"}]` {
		t.Fatalf("expected hit, got %q %v", v, ok)
	}

	clock.t = clock.t.Add(time.Minute + time.Second)
	if _, ok := m.Get(key); ok {
		t.Fatal("expected expired entry to miss")
	}
}

func TestCacheEvictsLeastUsed(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	m := newManager(2, time.Hour, clock.Now)

	m.Set("a", []byte("1"))
	clock.t = clock.t.Add(time.Second)
	m.Set("b", []byte("2"))
	m.Get("a")

	m.Set("c", []byte("3"))
	if _, ok := m.Get("b"); ok {
		t.Fatal("least used entry should have been evicted")
	}
	if _, ok := m.Get("a"); !ok {
		t.Fatal("frequently used entry was evicted")
	}
	if _, ok := m.Get("c"); !ok {
		t.Fatal("new entry missing")
	}
}

func TestNilCacheIsNoop(t *testing.T) {
	var m *CacheManager
	m.Set("k", []byte("v"))
	if _, ok := m.Get("k"); ok {
		t.Fatal("nil cache returned a hit")
	}
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestKeySeparatesParts(t *testing.T) {
	if Key([]byte("ab"), []byte("c")) == Key([]byte("a"), []byte("bc")) {
		t.Fatal("keys collide across part boundaries")
	}
}

func TestSharedStoreNilClient(t *testing.T) {
	if NewSharedStore(nil, time.Minute) != nil {
		t.Fatal("nil client should give a nil shared store")
	}

	m := newManager(10, time.Minute, time.Now).WithShared(nil)
	m.Set("k", []byte("v"))
	if v, ok := m.Get("k"); !ok || string(v) != "v" {
		t.Fatalf("local cache broken without shared store: %q %v", v, ok)
	}
}

func TestSharedStoreUnreachableIsMiss(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	m := newManager(10, time.Minute, time.Now).WithShared(NewSharedStore(client, time.Minute))
	if _, ok := m.Get("missing"); ok {
		t.Fatal("unreachable redis should be a miss")
	}

	m.Set("k", []byte("v"))
	if v, ok := m.Get("k"); !ok || string(v) != "v" {
		t.Fatalf("local hit expected when redis is down: %q %v", v, ok)
	}
	if stats := m.GetStats(); stats["shared"] != true {
		t.Fatalf("stats should report the shared tier: %v", stats)
	}
}
