package cache

import (
	"container/heap"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/tidwall/gjson"

	"github.com/nulpointcorp/llm-proxy/internal/dedup"
)

// nonSemanticFields are stripped from the request body before hashing, so
// that two requests differing only in these fields cache-hit the same
// entry (spec §4.7).
var nonSemanticFields = []string{"stream", "user", "request_id", "x-request-id"}

// ResponseEntry is one cached response (C7).
type ResponseEntry struct {
	Body       []byte
	StatusCode int
	Headers    http.Header
	Model      string
	CachedAt   time.Time
	ExpiresAt  time.Time

	cacheKey  string
	heapIndex int
}

// Stats summarizes cache activity for the /cache endpoint.
type Stats struct {
	Hits    uint64
	Misses  uint64
	Size    int
	Enabled bool
}

// ResponseCache is the response cache (C7): an LRU cache of completed
// responses, bounded both by entry count (via hashicorp/golang-lru) and by
// TTL (via a min-heap over expiry times, since golang-lru's own eviction
// only understands recency, not expiry). Grounded on
// internal/cache/memory.go's TTL shape, generalized to a priority-ordered
// eviction per spec §4.7.
type ResponseCache struct {
	mu sync.Mutex

	lru        *lru.Cache[string, *ResponseEntry]
	expiryHeap expiryHeap

	enabled     bool
	maxSize     int
	maxItemSize int64
	defaultTTL  time.Duration
	exclusions  *ExclusionList

	hits, misses uint64
}

// NewResponseCache builds a ResponseCache. maxSize bounds the entry count;
// defaultTTL is used when Set isn't given an explicit ttlSec.
func NewResponseCache(enabled bool, maxSize int, defaultTTL time.Duration, maxItemSize int64, exclusions *ExclusionList) (*ResponseCache, error) {
	if maxSize <= 0 {
		maxSize = 1000
	}
	if defaultTTL <= 0 {
		defaultTTL = 10 * time.Minute
	}
	if maxItemSize <= 0 {
		maxItemSize = 1 << 20
	}

	rc := &ResponseCache{
		enabled:     enabled,
		maxSize:     maxSize,
		maxItemSize: maxItemSize,
		defaultTTL:  defaultTTL,
		exclusions:  exclusions,
	}

	// The backing LRU is sized with headroom above maxSize so that its own
	// Add-time eviction (by recency) practically never fires before
	// evictLocked's own earliest-expiring pass runs — spec §4.7's evict()
	// drops by expiry, not by recency, on capacity overflow.
	backing, err := lru.NewWithEvict(maxSize*2, rc.onLRUEvict)
	if err != nil {
		return nil, err
	}
	rc.lru = backing
	return rc, nil
}

// onLRUEvict is golang-lru's eviction callback, firing when Add pushes the
// backing LRU over its capacity (maxSize*2) and on Remove/Purge. It keeps
// the expiry heap in sync by removing the
// evicted entry from it directly, rather than leaving a dangling pointer
// for Evict to clean up later.
func (rc *ResponseCache) onLRUEvict(_ string, entry *ResponseEntry) {
	if entry.heapIndex >= 0 && entry.heapIndex < rc.expiryHeap.Len() && rc.expiryHeap[entry.heapIndex] == entry {
		heap.Remove(&rc.expiryHeap, entry.heapIndex)
	}
}

// Key returns the response-cache key for a request body: the first 32 hex
// characters of SHA-256 over its semantically normalized form.
func Key(body []byte) string {
	stripped := stripNonSemanticFields(body)
	sum := sha256.Sum256(dedup.Canonicalize(stripped))
	return hex.EncodeToString(sum[:])[:32]
}

func stripNonSemanticFields(body []byte) []byte {
	var v map[string]any
	if err := json.Unmarshal(body, &v); err != nil {
		return body
	}
	for _, f := range nonSemanticFields {
		delete(v, f)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return body
	}
	return out
}

// ShouldCache reports whether a request is eligible for caching: the cache
// must be enabled, the request must not carry `cache-control: no-cache`,
// and the body must not declare `cache:false` or `no_cache:true` at its
// top level. Uses gjson for the cheap top-level probe rather than a full
// unmarshal.
func (rc *ResponseCache) ShouldCache(body []byte, cacheControlHeader string) bool {
	if !rc.enabled {
		return false
	}
	if strings.Contains(strings.ToLower(cacheControlHeader), "no-cache") {
		return false
	}
	if cacheField := gjson.GetBytes(body, "cache"); cacheField.Exists() && !cacheField.Bool() {
		return false
	}
	if noCacheField := gjson.GetBytes(body, "no_cache"); noCacheField.Exists() && noCacheField.Bool() {
		return false
	}
	return true
}

// Get returns the entry for key if present and unexpired, updating hit/miss
// counters.
func (rc *ResponseCache) Get(key string) (*ResponseEntry, bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	entry, ok := rc.lru.Get(key)
	if !ok || time.Now().After(entry.ExpiresAt) {
		rc.misses++
		return nil, false
	}
	rc.hits++
	return entry, true
}

// Set stores a response under key, refusing when the cache is disabled,
// the model is excluded, the body exceeds maxItemSize, or the status is an
// error (>= 400). ttl <= 0 uses the configured default.
func (rc *ResponseCache) Set(key string, resp *ResponseEntry, ttl time.Duration) {
	if !rc.enabled {
		return
	}
	if resp.StatusCode >= 400 {
		return
	}
	if int64(len(resp.Body)) > rc.maxItemSize {
		return
	}
	if rc.exclusions.Matches(resp.Model) {
		return
	}
	if ttl <= 0 {
		ttl = rc.defaultTTL
	}

	rc.mu.Lock()
	defer rc.mu.Unlock()

	resp.CachedAt = time.Now()
	resp.ExpiresAt = resp.CachedAt.Add(ttl)
	resp.cacheKey = key

	// Add overwrites the LRU entry silently (no onLRUEvict callback fires for
	// same-key writes), so the superseded entry's own heap slot must be
	// dropped here or it survives as a dangling stale-expiry entry that
	// evictLocked could later use to remove the live key by index collision.
	if prev, ok := rc.lru.Peek(key); ok {
		if prev.heapIndex >= 0 && prev.heapIndex < rc.expiryHeap.Len() && rc.expiryHeap[prev.heapIndex] == prev {
			heap.Remove(&rc.expiryHeap, prev.heapIndex)
		}
	}

	rc.lru.Add(key, resp)
	heap.Push(&rc.expiryHeap, resp)
	rc.evictLocked()
}

// Evict first drops all already-expired entries (via the expiry heap),
// then — if still over the configured capacity — drops the
// earliest-expiring entries until under capacity (spec §4.7).
func (rc *ResponseCache) Evict() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.evictLocked()
}

func (rc *ResponseCache) evictLocked() {
	now := time.Now()
	for rc.expiryHeap.Len() > 0 {
		top := rc.expiryHeap[0]
		if now.Before(top.ExpiresAt) {
			break
		}
		heap.Pop(&rc.expiryHeap)
		rc.lru.Remove(top.cacheKey)
	}

	// Still over capacity: drop earliest-expiring entries next, per spec
	// §4.7's two-phase evict() — not LRU recency, which is what golang-lru's
	// own Add-time eviction would otherwise apply.
	for rc.lru.Len() > rc.maxSize && rc.expiryHeap.Len() > 0 {
		top := heap.Pop(&rc.expiryHeap).(*ResponseEntry)
		rc.lru.Remove(top.cacheKey)
	}
}

// Clear empties the cache entirely.
func (rc *ResponseCache) Clear() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.lru.Purge()
	rc.expiryHeap = nil
	rc.hits, rc.misses = 0, 0
}

// GetStats returns current hit/miss/size counters.
func (rc *ResponseCache) GetStats() Stats {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return Stats{
		Hits:    rc.hits,
		Misses:  rc.misses,
		Size:    rc.lru.Len(),
		Enabled: rc.enabled,
	}
}

// IsEnabled reports whether the cache is active.
func (rc *ResponseCache) IsEnabled() bool { return rc.enabled }

// expiryHeap is a container/heap ordering ResponseEntry pointers by
// ExpiresAt ascending, used by Evict to find expired/earliest-expiring
// entries without scanning the whole cache.
type expiryHeap []*ResponseEntry

func (h expiryHeap) Len() int            { return len(h) }
func (h expiryHeap) Less(i, j int) bool  { return h[i].ExpiresAt.Before(h[j].ExpiresAt) }
func (h expiryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex, h[j].heapIndex = i, j
}

func (h *expiryHeap) Push(x any) {
	e := x.(*ResponseEntry)
	e.heapIndex = len(*h)
	*h = append(*h, e)
}

func (h *expiryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.heapIndex = -1
	*h = old[:n-1]
	return e
}
