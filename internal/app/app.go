// Package app wires up all subsystems and owns the application lifecycle.
//
// Startup order:
//  1. initInfra     — external connections (Redis when the cache uses it)
//  2. initCollaborators — remote signer + RPC balance reader (spec §9)
//  3. initServices  — dedup, response cache, session store, usage logger,
//     metrics registry
//  4. initGateway   — proxy core + management routes
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/nulpointcorp/llm-proxy/internal/balance"
	npCache "github.com/nulpointcorp/llm-proxy/internal/cache"
	"github.com/nulpointcorp/llm-proxy/internal/config"
	"github.com/nulpointcorp/llm-proxy/internal/dedup"
	"github.com/nulpointcorp/llm-proxy/internal/logger"
	"github.com/nulpointcorp/llm-proxy/internal/metrics"
	"github.com/nulpointcorp/llm-proxy/internal/payment"
	"github.com/nulpointcorp/llm-proxy/internal/proxy"
	"github.com/nulpointcorp/llm-proxy/internal/remotesigner"
	"github.com/nulpointcorp/llm-proxy/internal/rpcbalance"
	"github.com/nulpointcorp/llm-proxy/internal/session"
)

// App owns all long-lived resources and exposes Run / Close.
type App struct {
	version string
	cfg     *config.Config
	baseCtx context.Context
	log     *slog.Logger

	// Optional external connections — nil when not configured.
	rdb *redis.Client

	signer  payment.Signer
	reader  balance.BalanceReader
	usage   *logger.Logger
	dedup   *dedup.Deduplicator
	respC   *npCache.ResponseCache
	sessC   *session.Store
	prom    *metrics.Registry
	fetcher *payment.Fetcher
	balMon  *balance.Monitor

	mgmt *proxy.ManagementRoutes
	gw   *proxy.Gateway
}

// New initialises all subsystems and returns a ready-to-run App. All
// resources allocated here are released by Close.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger, version string) (*App, error) {
	if ctx == nil {
		return nil, fmt.Errorf("app: context must not be nil")
	}

	a := &App{cfg: cfg, version: version, baseCtx: ctx, log: log}

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"infra", a.initInfra},
		{"collaborators", a.initCollaborators},
		{"services", a.initServices},
		{"gateway", a.initGateway},
	}

	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("app: init %s: %w", s.name, err)
		}
	}

	return a, nil
}

// Run starts the HTTP server and blocks until ctx is cancelled or an error
// occurs. It closes the app gracefully when returning.
func (a *App) Run(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", a.cfg.Port)

	a.log.Info("starting proxy",
		slog.String("version", a.version),
		slog.String("addr", addr),
		slog.String("upstream", a.cfg.Upstream.BaseURL),
		slog.Bool("payments_enabled", a.signer != nil),
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.gw.StartWithRoutes(addr, a.mgmt)
	})

	<-gctx.Done()
	a.Close()
	if ctx.Err() != nil {
		return nil
	}
	return g.Wait()
}

// Close releases all resources in reverse-init order. Safe to call multiple
// times in sequence; Close holds no lock, so calls must not overlap.
func (a *App) Close() {
	if a.usage != nil {
		if err := a.usage.Close(); err != nil {
			a.log.Error("usage logger close error", slog.String("error", err.Error()))
		}
		a.usage = nil
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.log.Error("redis close error", slog.String("error", err.Error()))
		}
		a.rdb = nil
	}
}

// ── Private helpers ──────────────────────────────────────────────────────────

// connectRedis parses the URL and verifies connectivity with a PING.
func connectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}

	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return rdb, nil
}

// usageLoggerAdapter bridges internal/logger's UsageEntry shape to
// proxy.UsageLogger/proxy.StatsReporter, so the proxy core stays free of a
// dependency on a specific logging backend (spec §6's external collaborator).
type usageLoggerAdapter struct {
	l *logger.Logger
}

func (u usageLoggerAdapter) LogUsage(ctx context.Context, e proxy.UsageEntry) {
	u.l.LogUsage(ctx, logger.UsageEntry{
		RequestID:   e.RequestID,
		Model:       e.Model,
		Tier:        e.Tier,
		Profile:     e.Profile,
		InputTokens: e.InputTokens,
		OutputToken: e.OutputToken,
		CostUSD:     e.CostUSD,
		StatusCode:  e.StatusCode,
		LowBalance:  e.LowBalance,
		CacheHit:    e.CacheHit,
		Dedup:       e.Dedup,
	})
}

func (u usageLoggerAdapter) StatsSince(ctx context.Context, days int) (any, error) {
	return u.l.StatsSince(ctx, days)
}

// remotesignerOrNil builds a payment.Signer from config, or returns nil when
// no signer service is configured — the proxy then serves every request
// under the free profile (see dispatchWithModel's nil-balance-monitor path).
func remotesignerOrNil(cfg *config.Config) payment.Signer {
	if cfg.Signer.ServiceURL == "" {
		return nil
	}
	return remotesigner.New(cfg.Signer.ServiceURL, cfg.Signer.Timeout)
}

// rpcReaderOrNil builds a balance.BalanceReader from config, or nil when no
// RPC endpoint is configured.
func rpcReaderOrNil(cfg *config.Config) balance.BalanceReader {
	if cfg.RPC.URL == "" || cfg.RPC.TokenContract == "" {
		return nil
	}
	return rpcbalance.New(cfg.RPC.URL, cfg.RPC.TokenContract, cfg.RPC.Timeout)
}
