package session

import (
	"context"
	"testing"
	"time"
)

func TestStore_SetAndGet(t *testing.T) {
	s := NewStore(context.Background(), time.Minute)
	defer s.Close()

	s.SetSession("sess1", map[string]any{"foo": "bar"})
	entry, ok := s.Get("sess1")
	if !ok {
		t.Fatal("expected session to exist")
	}
	if entry.Data["foo"] != "bar" {
		t.Errorf("unexpected data: %v", entry.Data)
	}
}

func TestStore_TouchSession(t *testing.T) {
	s := NewStore(context.Background(), time.Minute)
	defer s.Close()

	if s.TouchSession("missing") {
		t.Error("expected touch of unknown session to fail")
	}

	s.SetSession("sess1", nil)
	entry, _ := s.Get("sess1")
	before := entry.LastUsedAt

	time.Sleep(5 * time.Millisecond)
	if !s.TouchSession("sess1") {
		t.Fatal("expected touch to succeed")
	}
	entry, _ = s.Get("sess1")
	if !entry.LastUsedAt.After(before) {
		t.Error("expected LastUsedAt to advance")
	}
}

func TestStore_Delete(t *testing.T) {
	s := NewStore(context.Background(), time.Minute)
	defer s.Close()

	s.SetSession("sess1", nil)
	s.Delete("sess1")
	if _, ok := s.Get("sess1"); ok {
		t.Error("expected session to be gone after delete")
	}
}

func TestStore_ClosesOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewStore(ctx, time.Minute)
	cancel()
	// sweep goroutine should exit; nothing to assert beyond no panic/leak.
	time.Sleep(10 * time.Millisecond)
	s.SetSession("sess1", nil)
	if _, ok := s.Get("sess1"); !ok {
		t.Error("store should still function after sweep goroutine exits")
	}
}
