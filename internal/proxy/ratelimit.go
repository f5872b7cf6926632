package proxy

import (
	"sync"
	"time"
)

// cooldownMap de-prioritizes models that recently returned 429, for the
// duration given to MarkCooldown. This replaces the teacher's three-state
// circuit breaker: a model isn't removed from the candidate list, just
// pushed to the tail of it, since a 429 here means "this specific model is
// rate-limited right now", not "this provider is down" (spec §9).
type cooldownMap struct {
	mu       sync.Mutex
	until    map[string]time.Time
	cooldown time.Duration
}

func newCooldownMap(cooldown time.Duration) *cooldownMap {
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}
	return &cooldownMap{
		until:    make(map[string]time.Time),
		cooldown: cooldown,
	}
}

// MarkCooldown puts model in cooldown for the configured duration.
func (c *cooldownMap) MarkCooldown(model string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.until[model] = time.Now().Add(c.cooldown)
}

// InCooldown reports whether model is still within its cooldown window,
// evicting the entry lazily once expired.
func (c *cooldownMap) InCooldown(model string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	until, ok := c.until[model]
	if !ok {
		return false
	}
	if time.Now().After(until) {
		delete(c.until, model)
		return false
	}
	return true
}

// Reorder moves any model currently in cooldown to the tail of chain,
// preserving relative order within each group (spec §4.9 step 14).
func (c *cooldownMap) Reorder(chain []string) []string {
	ready := make([]string, 0, len(chain))
	cooling := make([]string, 0)
	for _, m := range chain {
		if c.InCooldown(m) {
			cooling = append(cooling, m)
		} else {
			ready = append(ready, m)
		}
	}
	return append(ready, cooling...)
}
