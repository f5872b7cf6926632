package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/nulpointcorp/llm-proxy/pkg/apierr"
)

// SharedCache is the Get/Set shape Deduplicator needs to mirror completed
// results across replicas. It is satisfied by internal/cache.ExactCache but
// declared here (structural, not imported) because internal/cache already
// depends on this package for Canonicalize — an import the other way would
// cycle.
type SharedCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Result is a completed origin response, either cached for replay or
// delivered to waiters on an in-flight request.
type Result struct {
	Body       []byte
	StatusCode int
	Headers    http.Header
	Model      string
}

type completedEntry struct {
	result    Result
	expiresAt time.Time
}

type inflightEntry struct {
	done   chan struct{}
	result Result
}

// Deduplicator coalesces identical concurrent requests (C6). Grounded on
// internal/cache/memory.go's mutex+map+lazy-expiry shape, generalized to
// two maps: one for already-completed responses with a TTL, one for
// requests currently in flight with channel-based waiter notification.
type Deduplicator struct {
	mu        sync.Mutex
	completed map[string]completedEntry
	inflight  map[string]*inflightEntry

	completedTTL time.Duration
	maxBodySize  int64

	shared SharedCache
}

// NewDeduplicator builds a Deduplicator. completedTTL <= 0 falls back to
// 30s; maxBodySize <= 0 falls back to 1 MiB.
func NewDeduplicator(completedTTL time.Duration, maxBodySize int64) *Deduplicator {
	if completedTTL <= 0 {
		completedTTL = 30 * time.Second
	}
	if maxBodySize <= 0 {
		maxBodySize = 1 << 20
	}
	return &Deduplicator{
		completed:    make(map[string]completedEntry),
		inflight:     make(map[string]*inflightEntry),
		completedTTL: completedTTL,
		maxBodySize:  maxBodySize,
	}
}

// SetSharedCache wires a cross-replica mirror for completed results, so
// dedup coalescing also catches duplicate requests landing on different
// replicas behind a load balancer. nil disables mirroring (single-replica
// deployments don't need it).
func (d *Deduplicator) SetSharedCache(c SharedCache) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.shared = c
}

// Key returns the dedup hash key for a request body: the first 16 hex
// characters of SHA-256 over its canonicalized form.
func Key(body []byte) string {
	sum := sha256.Sum256(Canonicalize(body))
	return hex.EncodeToString(sum[:])[:16]
}

// GetCached returns the most recent completed response for key if it
// hasn't expired; expired entries are pruned on read. Falls back to the
// shared cache (if configured) on a local miss, so a replica that never
// saw the original request can still coalesce against one handled
// elsewhere.
func (d *Deduplicator) GetCached(key string) (Result, bool) {
	d.mu.Lock()
	entry, ok := d.completed[key]
	expired := ok && time.Now().After(entry.expiresAt)
	if expired {
		delete(d.completed, key)
	}
	shared := d.shared
	d.mu.Unlock()

	if ok && !expired {
		return entry.result, true
	}
	if shared == nil {
		return Result{}, false
	}

	raw, hit := shared.Get(context.Background(), "dedup:"+key)
	if !hit {
		return Result{}, false
	}
	var result Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return Result{}, false
	}
	return result, true
}

// GetInflight returns a channel that closes when the originating request
// for key completes, and a function to read its result once it has. ok is
// false if no request is currently in flight for key.
func (d *Deduplicator) GetInflight(key string) (wait <-chan struct{}, read func() Result, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry, found := d.inflight[key]
	if !found {
		return nil, nil, false
	}
	return entry.done, func() Result { return entry.result }, true
}

// MarkInflight registers key as having a request in flight. Callers should
// hold the Deduplicator's implicit ordering guarantee by checking
// GetCached, then GetInflight, then MarkInflight, all without releasing
// control to another goroutine in between (the caller is expected to do
// this check-then-act sequence under its own coordination, typically by
// checking within the same request-handling goroutine before any await).
func (d *Deduplicator) MarkInflight(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.inflight[key]; exists {
		return
	}
	d.inflight[key] = &inflightEntry{done: make(chan struct{})}
}

// Complete caches result under key if its body is within the size limit,
// wakes all waiters with the result, and removes the in-flight
// registration. Also prunes expired completed entries and, if a shared
// cache is configured, mirrors the result for other replicas.
func (d *Deduplicator) Complete(key string, result Result) {
	d.mu.Lock()

	if int64(len(result.Body)) <= d.maxBodySize {
		d.completed[key] = completedEntry{
			result:    result,
			expiresAt: time.Now().Add(d.completedTTL),
		}
	}

	if entry, ok := d.inflight[key]; ok {
		entry.result = result
		close(entry.done)
		delete(d.inflight, key)
	}

	shared := d.shared
	d.pruneExpiredLocked()
	d.mu.Unlock()

	if shared != nil {
		if raw, err := json.Marshal(result); err == nil {
			_ = shared.Set(context.Background(), "dedup:"+key, raw, d.completedTTL)
		}
	}
}

// RemoveInflight deregisters key after the originating request failed.
// Waiters are woken with a fixed 503 dedup_origin_failed body (P10:
// waiters must never hang even when the origin fails).
func (d *Deduplicator) RemoveInflight(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry, ok := d.inflight[key]
	if !ok {
		return
	}
	entry.result = Result{
		Body:       apierr.DedupOriginFailedBody(),
		StatusCode: http.StatusServiceUnavailable,
	}
	close(entry.done)
	delete(d.inflight, key)
}

func (d *Deduplicator) pruneExpiredLocked() {
	now := time.Now()
	for k, v := range d.completed {
		if now.After(v.expiresAt) {
			delete(d.completed, k)
		}
	}
}
