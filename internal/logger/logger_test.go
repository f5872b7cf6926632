package logger

import (
	"context"
	"log/slog"
	"io"
	"testing"
	"time"
)

func testLogger(t *testing.T) *Logger {
	t.Helper()
	l, err := New(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestLogUsage_RecordsIntoStats(t *testing.T) {
	l := testLogger(t)
	l.LogUsage(context.Background(), UsageEntry{
		RequestID: "req-1", Model: "openai/gpt-4.1-nano", Tier: "SIMPLE",
		CostUSD: 0.01, StatusCode: 200,
	})

	var stats []DayStats
	for i := 0; i < 20; i++ {
		res, err := l.StatsSince(context.Background(), 1)
		if err != nil {
			t.Fatalf("StatsSince error: %v", err)
		}
		stats = res.([]DayStats)
		if len(stats) > 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	if len(stats) != 1 {
		t.Fatalf("expected one day of stats recorded, got %d", len(stats))
	}
	if stats[0].Requests != 1 {
		t.Errorf("expected 1 request recorded, got %d", stats[0].Requests)
	}
}

func TestLogUsage_AggregatesCacheAndDedupFlags(t *testing.T) {
	l := testLogger(t)
	l.LogUsage(context.Background(), UsageEntry{Model: "m", CacheHit: true, StatusCode: 200})
	l.LogUsage(context.Background(), UsageEntry{Model: "m", Dedup: true, StatusCode: 200})
	l.LogUsage(context.Background(), UsageEntry{Model: "m", LowBalance: true, StatusCode: 500})

	var stats []DayStats
	for i := 0; i < 20; i++ {
		res, _ := l.StatsSince(context.Background(), 1)
		stats = res.([]DayStats)
		if len(stats) > 0 && stats[0].Requests == 3 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	if len(stats) != 1 {
		t.Fatalf("expected stats for one day, got %d", len(stats))
	}
	d := stats[0]
	if d.CacheHits != 1 || d.DedupCoalesced != 1 || d.LowBalanceHits != 1 || d.Errors != 1 {
		t.Errorf("unexpected aggregate: %+v", d)
	}
}

func TestStatsSince_EmptyWhenNothingLogged(t *testing.T) {
	l := testLogger(t)
	res, err := l.StatsSince(context.Background(), 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stats := res.([]DayStats)
	if len(stats) != 0 {
		t.Errorf("expected no stats without any logged usage, got %d", len(stats))
	}
}

func TestStatsSince_ClampsDaysToMax(t *testing.T) {
	l := testLogger(t)
	if _, err := l.StatsSince(context.Background(), 10000); err != nil {
		t.Errorf("unexpected error for oversized days: %v", err)
	}
}

func TestDroppedLogs_IncrementsWhenChannelFull(t *testing.T) {
	l := testLogger(t)
	for i := 0; i < channelBuffer+10; i++ {
		l.LogUsage(context.Background(), UsageEntry{Model: "m"})
	}
	if l.DroppedLogs() == 0 {
		t.Error("expected some entries to be dropped when the channel overflows")
	}
}

func TestClose_Idempotent(t *testing.T) {
	l, err := New(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	l.Close()
	l.Close()
}

func TestNew_NilContextErrors(t *testing.T) {
	if _, err := New(nil, nil); err == nil {
		t.Error("expected error for nil context")
	}
}
