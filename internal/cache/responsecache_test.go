package cache

import (
	"testing"
	"time"
)

func TestResponseCache_SetThenGet(t *testing.T) {
	rc, err := NewResponseCache(true, 10, time.Minute, 1<<20, nil)
	if err != nil {
		t.Fatal(err)
	}

	key := Key([]byte(`{"model":"gpt-4.1","messages":[]}`))
	rc.Set(key, &ResponseEntry{Body: []byte(`{"ok":true}`), StatusCode: 200, Model: "gpt-4.1"}, 0)

	entry, ok := rc.Get(key)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if string(entry.Body) != `{"ok":true}` {
		t.Errorf("unexpected body: %s", entry.Body)
	}
}

func TestResponseCache_KeyIgnoresNonSemanticFields(t *testing.T) {
	a := Key([]byte(`{"model":"gpt-4.1","stream":true,"user":"u1"}`))
	b := Key([]byte(`{"model":"gpt-4.1","stream":false,"user":"u2"}`))
	if a != b {
		t.Errorf("expected keys to match ignoring non-semantic fields, got %s vs %s", a, b)
	}
}

func TestResponseCache_RefusesErrorStatus(t *testing.T) {
	rc, _ := NewResponseCache(true, 10, time.Minute, 1<<20, nil)
	rc.Set("key1", &ResponseEntry{Body: []byte("err"), StatusCode: 500}, 0)
	if _, ok := rc.Get("key1"); ok {
		t.Error("expected error responses not to be cached")
	}
}

func TestResponseCache_RefusesOversizedBody(t *testing.T) {
	rc, _ := NewResponseCache(true, 10, time.Minute, 4, nil)
	rc.Set("key1", &ResponseEntry{Body: []byte("too big"), StatusCode: 200}, 0)
	if _, ok := rc.Get("key1"); ok {
		t.Error("expected oversized body not to be cached")
	}
}

func TestResponseCache_RefusesExcludedModel(t *testing.T) {
	excl, err := NewExclusionList([]string{"gpt-4.1"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	rc, _ := NewResponseCache(true, 10, time.Minute, 1<<20, excl)
	rc.Set("key1", &ResponseEntry{Body: []byte("ok"), StatusCode: 200, Model: "gpt-4.1"}, 0)
	if _, ok := rc.Get("key1"); ok {
		t.Error("expected excluded model not to be cached")
	}
}

func TestResponseCache_DisabledNeverCaches(t *testing.T) {
	rc, _ := NewResponseCache(false, 10, time.Minute, 1<<20, nil)
	rc.Set("key1", &ResponseEntry{Body: []byte("ok"), StatusCode: 200}, 0)
	if _, ok := rc.Get("key1"); ok {
		t.Error("expected disabled cache never to store")
	}
}

func TestResponseCache_ExpiresByTTL(t *testing.T) {
	rc, _ := NewResponseCache(true, 10, time.Minute, 1<<20, nil)
	rc.Set("key1", &ResponseEntry{Body: []byte("ok"), StatusCode: 200}, 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	if _, ok := rc.Get("key1"); ok {
		t.Error("expected entry to have expired")
	}
}

func TestResponseCache_EvictDropsExpiredFirst(t *testing.T) {
	rc, _ := NewResponseCache(true, 10, time.Minute, 1<<20, nil)
	rc.Set("key1", &ResponseEntry{Body: []byte("ok")}, 10*time.Millisecond)
	rc.Set("key2", &ResponseEntry{Body: []byte("ok")}, time.Minute)
	time.Sleep(20 * time.Millisecond)

	rc.Evict()
	stats := rc.GetStats()
	if stats.Size != 1 {
		t.Errorf("expected 1 surviving entry after evict, got %d", stats.Size)
	}
}

func TestResponseCache_ShouldCache(t *testing.T) {
	rc, _ := NewResponseCache(true, 10, time.Minute, 1<<20, nil)

	if !rc.ShouldCache([]byte(`{"model":"x"}`), "") {
		t.Error("expected plain request to be cacheable")
	}
	if rc.ShouldCache([]byte(`{"model":"x"}`), "no-cache") {
		t.Error("expected cache-control: no-cache to suppress caching")
	}
	if rc.ShouldCache([]byte(`{"cache":false}`), "") {
		t.Error("expected top-level cache:false to suppress caching")
	}
	if rc.ShouldCache([]byte(`{"no_cache":true}`), "") {
		t.Error("expected top-level no_cache:true to suppress caching")
	}
}

func TestResponseCache_LRUEvictionKeepsHeapConsistent(t *testing.T) {
	rc, err := NewResponseCache(true, 2, time.Minute, 1<<20, nil)
	if err != nil {
		t.Fatal(err)
	}
	rc.Set("key1", &ResponseEntry{Body: []byte("a")}, time.Minute)
	rc.Set("key2", &ResponseEntry{Body: []byte("b")}, time.Minute)
	rc.Set("key3", &ResponseEntry{Body: []byte("c")}, time.Minute)

	if rc.GetStats().Size != 2 {
		t.Errorf("expected LRU to cap at 2 entries, got %d", rc.GetStats().Size)
	}
	// Set's evictLocked pass already dropped key1 (earliest-expiring) from
	// both the heap and the backing LRU; a further Evict must not panic.
	rc.Evict()
}
