// Package logger implements a non-blocking, batched usage logger (spec §6).
//
// Log entries are written to an internal buffered channel and flushed in
// batches by a background goroutine — so logging never blocks the proxy hot
// path. If the channel fills up (> 10 000 entries), new entries are dropped
// and counted in DroppedLogs. Entries are also folded into an in-memory
// rolling daily aggregate so GET /stats has something to read without a
// ClickHouse sink (see DESIGN.md's dropped-dependency note for why the
// managed build's analytics sink was not carried over).
package logger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const (
	channelBuffer = 10_000
	batchSize     = 100
	flushInterval = time.Second
	maxStatsDays  = 90
)

// UsageEntry is one completed (or failed) chat-completion request, per
// spec §4.9 step 18's usage-log line.
type UsageEntry struct {
	ID          uuid.UUID
	RequestID   string
	Model       string
	Tier        string
	Profile     string
	InputTokens int
	OutputToken int
	CostUSD     float64
	StatusCode  int
	LowBalance  bool
	CacheHit    bool
	Dedup       bool
	CreatedAt   time.Time
}

// DayStats aggregates one day's worth of usage entries.
type DayStats struct {
	Date          string  `json:"date"`
	Requests      int     `json:"requests"`
	CacheHits     int     `json:"cache_hits"`
	DedupCoalesced int    `json:"dedup_coalesced"`
	LowBalanceHits int    `json:"low_balance_hits"`
	Errors        int     `json:"errors"`
	TotalCostUSD  float64 `json:"total_cost_usd"`
	ModelCounts   map[string]int `json:"model_counts"`
}

// Logger batches usage entries off the hot path and maintains a rolling
// per-day in-memory aggregate for GET /stats.
type Logger struct {
	ch        chan UsageEntry
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	droppedLogs int64

	baseCtx context.Context
	log     *slog.Logger

	mu    sync.Mutex
	stats map[string]*DayStats
}

// New starts the background flush loop. ctx bounds the logger's lifetime
// for structured log calls; Close still drains and stops the loop cleanly.
func New(ctx context.Context, slogger *slog.Logger) (*Logger, error) {
	if ctx == nil {
		return nil, fmt.Errorf("logger: context must not be nil")
	}
	if slogger == nil {
		slogger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	l := &Logger{
		ch:      make(chan UsageEntry, channelBuffer),
		done:    make(chan struct{}),
		baseCtx: ctx,
		log:     slogger,
		stats:   make(map[string]*DayStats),
	}

	l.wg.Add(1)
	go l.run()

	return l, nil
}

// LogUsage enqueues one entry without blocking. It takes this package's
// UsageEntry, not proxy.UsageEntry; internal/app's adapter converts between
// the two to satisfy proxy.UsageLogger.
func (l *Logger) LogUsage(_ context.Context, entry UsageEntry) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	select {
	case l.ch <- entry:
	default:
		atomic.AddInt64(&l.droppedLogs, 1)
	}
}

// DroppedLogs reports how many entries were discarded because the channel
// was full.
func (l *Logger) DroppedLogs() int64 {
	return atomic.LoadInt64(&l.droppedLogs)
}

// StatsSince implements proxy.StatsReporter: aggregate the last `days` days
// of in-memory rolling stats.
func (l *Logger) StatsSince(_ context.Context, days int) (any, error) {
	if days <= 0 {
		days = 7
	}
	if days > maxStatsDays {
		days = maxStatsDays
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]DayStats, 0, days)
	now := time.Now().UTC()
	for i := 0; i < days; i++ {
		key := now.AddDate(0, 0, -i).Format("2006-01-02")
		if d, ok := l.stats[key]; ok {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (l *Logger) Close() error {
	l.closeOnce.Do(func() {
		close(l.done)
	})
	l.wg.Wait()
	return nil
}

func (l *Logger) run() {
	defer l.wg.Done()

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]UsageEntry, 0, batchSize)

	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		for _, e := range batch {
			l.log.InfoContext(ctx, "usage",
				slog.String("id", e.ID.String()),
				slog.String("request_id", e.RequestID),
				slog.String("model", e.Model),
				slog.String("tier", e.Tier),
				slog.String("profile", e.Profile),
				slog.Int("input_tokens", e.InputTokens),
				slog.Int("output_tokens", e.OutputToken),
				slog.Float64("cost_usd", e.CostUSD),
				slog.Int("status", e.StatusCode),
				slog.Bool("low_balance", e.LowBalance),
				slog.Bool("cache_hit", e.CacheHit),
				slog.Bool("dedup", e.Dedup),
				slog.Time("created_at", normalizeTime(e.CreatedAt)),
			)
			l.recordStats(e)
		}
		batch = batch[:0]
	}

	for {
		select {
		case entry := <-l.ch:
			batch = append(batch, entry)
			if len(batch) >= batchSize {
				flush(l.baseCtx)
			}

		case <-ticker.C:
			flush(l.baseCtx)

		case <-l.done:
			for {
				select {
				case entry := <-l.ch:
					batch = append(batch, entry)
					if len(batch) >= batchSize {
						flush(l.baseCtx)
					}
				default:
					flush(l.baseCtx)
					return
				}
			}
		}
	}
}

func (l *Logger) recordStats(e UsageEntry) {
	key := normalizeTime(e.CreatedAt).Format("2006-01-02")

	l.mu.Lock()
	defer l.mu.Unlock()

	d, ok := l.stats[key]
	if !ok {
		d = &DayStats{Date: key, ModelCounts: make(map[string]int)}
		l.stats[key] = d
	}
	d.Requests++
	d.TotalCostUSD += e.CostUSD
	d.ModelCounts[e.Model]++
	if e.CacheHit {
		d.CacheHits++
	}
	if e.Dedup {
		d.DedupCoalesced++
	}
	if e.LowBalance {
		d.LowBalanceHits++
	}
	if e.StatusCode >= 400 {
		d.Errors++
	}
}

func normalizeTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}
