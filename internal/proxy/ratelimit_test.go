package proxy

import (
	"testing"
	"time"
)

func TestCooldownMap_MarkAndExpire(t *testing.T) {
	c := newCooldownMap(20 * time.Millisecond)
	if c.InCooldown("model-a") {
		t.Fatal("model should not start in cooldown")
	}
	c.MarkCooldown("model-a")
	if !c.InCooldown("model-a") {
		t.Fatal("expected model-a to be in cooldown")
	}
	time.Sleep(30 * time.Millisecond)
	if c.InCooldown("model-a") {
		t.Fatal("expected cooldown to have expired")
	}
}

func TestCooldownMap_Reorder(t *testing.T) {
	c := newCooldownMap(time.Minute)
	c.MarkCooldown("model-b")

	chain := []string{"model-a", "model-b", "model-c"}
	got := c.Reorder(chain)
	want := []string{"model-a", "model-c", "model-b"}

	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestCooldownMap_ReorderNoneInCooldown(t *testing.T) {
	c := newCooldownMap(time.Minute)
	chain := []string{"model-a", "model-b"}
	got := c.Reorder(chain)
	if got[0] != "model-a" || got[1] != "model-b" {
		t.Fatalf("expected order preserved, got %v", got)
	}
}

func TestNewCooldownMap_DefaultsNonPositiveDuration(t *testing.T) {
	c := newCooldownMap(0)
	c.MarkCooldown("model-a")
	if !c.InCooldown("model-a") {
		t.Fatal("expected default cooldown duration to apply")
	}
}
