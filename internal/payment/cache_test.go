package payment

import (
	"testing"
	"time"
)

func TestCache_SetGet(t *testing.T) {
	c := NewCache(time.Minute)
	c.Set("/v1/chat/completions", Params{PayTo: "0xabc", Asset: "0xdef"})

	p, ok := c.Get("/v1/chat/completions")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if p.PayTo != "0xabc" {
		t.Errorf("got PayTo=%q", p.PayTo)
	}
}

func TestCache_Miss(t *testing.T) {
	c := NewCache(time.Minute)
	if _, ok := c.Get("/nonexistent"); ok {
		t.Error("expected cache miss")
	}
}

func TestCache_ExpiresOnRead(t *testing.T) {
	c := NewCache(10 * time.Millisecond)
	c.Set("/v1/chat/completions", Params{PayTo: "0xabc"})
	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get("/v1/chat/completions"); ok {
		t.Error("expected entry to have expired")
	}
	if c.Len() != 0 {
		t.Errorf("expected expired entry to be evicted on read, len=%d", c.Len())
	}
}

func TestCache_Invalidate(t *testing.T) {
	c := NewCache(time.Minute)
	c.Set("/v1/chat/completions", Params{PayTo: "0xabc"})
	c.Invalidate("/v1/chat/completions")

	if _, ok := c.Get("/v1/chat/completions"); ok {
		t.Error("expected entry to be gone after invalidate")
	}
}

func TestCache_DefaultTTL(t *testing.T) {
	c := NewCache(0)
	if c.ttl != time.Hour {
		t.Errorf("expected default TTL of 1h, got %s", c.ttl)
	}
}
