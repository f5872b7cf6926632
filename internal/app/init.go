package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nulpointcorp/llm-proxy/internal/balance"
	npCache "github.com/nulpointcorp/llm-proxy/internal/cache"
	"github.com/nulpointcorp/llm-proxy/internal/dedup"
	"github.com/nulpointcorp/llm-proxy/internal/logger"
	"github.com/nulpointcorp/llm-proxy/internal/metrics"
	"github.com/nulpointcorp/llm-proxy/internal/payment"
	"github.com/nulpointcorp/llm-proxy/internal/proxy"
	"github.com/nulpointcorp/llm-proxy/internal/ratelimit"
	"github.com/nulpointcorp/llm-proxy/internal/session"
)

// initInfra establishes optional external connections. Redis is only
// connected when REDIS_URL is set; it backs the dedup completed-result
// cache (SetSharedCache) so coalescing still catches duplicates landing on
// different replicas.
func (a *App) initInfra(ctx context.Context) error {
	if a.cfg.Redis.URL == "" {
		return nil
	}

	a.log.Info("connecting to redis", slog.String("url", redactURL(a.cfg.Redis.URL)))

	rdb, err := connectRedis(ctx, a.cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	a.rdb = rdb
	a.log.Info("redis connected")

	return nil
}

// initCollaborators builds the external collaborators that carry payment
// key material and chain reads outside this process (spec §9). Both may be
// nil — New leaves the proxy serving every request under the free profile
// when no signer service is configured.
func (a *App) initCollaborators(_ context.Context) error {
	a.signer = remotesignerOrNil(a.cfg)
	a.reader = rpcReaderOrNil(a.cfg)

	if a.signer == nil {
		a.log.Warn("no signer service configured — payments disabled, serving free profile only")
	}
	if a.reader == nil {
		a.log.Warn("no rpc balance reader configured — balance-gated downgrade disabled")
	}

	return nil
}

// initServices builds dedup, response cache, session store, usage logger
// and the metrics registry.
func (a *App) initServices(ctx context.Context) error {
	a.dedup = dedup.NewDeduplicator(a.cfg.Dedup.CompletedTTL, a.cfg.Dedup.MaxBodySize)
	if a.rdb != nil {
		a.dedup.SetSharedCache(npCache.NewExactCacheFromClient(a.rdb))
	}

	exclusions, err := npCache.NewExclusionList(a.cfg.Cache.ExcludeExact, a.cfg.Cache.ExcludePatterns)
	if err != nil {
		return fmt.Errorf("cache exclusions: %w", err)
	}

	a.respC, err = npCache.NewResponseCache(
		a.cfg.Cache.Enabled,
		a.cfg.Cache.MaxSize,
		a.cfg.Cache.DefaultTTL,
		a.cfg.Cache.MaxItemSize,
		exclusions,
	)
	if err != nil {
		return fmt.Errorf("response cache: %w", err)
	}

	sessionTimeout := a.cfg.Session.Timeout
	if !a.cfg.Session.Enabled {
		sessionTimeout = 0
	}
	a.sessC = session.NewStore(a.baseCtx, sessionTimeout)

	a.usage, err = logger.New(ctx, a.log)
	if err != nil {
		return fmt.Errorf("usage logger: %w", err)
	}

	a.prom = metrics.New()
	a.prom.SetBuildInfo(a.version)

	return nil
}

// initGateway wires the payment fetcher, balance monitor, and Gateway
// itself from the previously-constructed components.
func (a *App) initGateway(_ context.Context) error {
	a.fetcher = payment.NewFetcher(
		nil,
		payment.NewCache(a.cfg.Payment.CacheTTL),
		a.signer,
		a.cfg.Payment.ValidAfterSkew,
		a.cfg.Payment.DefaultMaxTimeoutSeconds,
		a.cfg.Payment.DefaultChainID,
	)

	if a.reader != nil {
		a.balMon = balance.NewMonitor(
			a.reader,
			a.cfg.Wallet.Address,
			a.cfg.Balance.CacheTTL,
			a.cfg.Balance.LowThresholdUSD,
			a.cfg.Balance.ZeroThresholdUSD,
			a.cfg.Balance.SufficiencyMultiplier,
		)
	}

	a.gw = proxy.NewGateway(
		a.cfg,
		a.log,
		a.fetcher,
		a.balMon,
		a.dedup,
		a.respC,
		a.sessC,
		a.prom,
		usageLoggerAdapter{a.usage},
	)

	a.mgmt = &proxy.ManagementRoutes{
		Metrics: a.prom.Handler(),
	}

	if a.rdb != nil && a.cfg.RateLimit.RPMLimit > 0 {
		a.gw.SetRequestLimiter(ratelimit.NewRPMLimiter(a.rdb, a.cfg.RateLimit.RPMLimit))
		a.log.Info("ingress rate limiting enabled", slog.Int("rpm_limit", a.cfg.RateLimit.RPMLimit))
	}

	return nil
}

// redactURL replaces the userinfo portion of a URL with "***" for safe logging.
// e.g. "redis://:secret@localhost:6379" → "redis://***@localhost:6379"
func redactURL(raw string) string {
	for i, c := range raw {
		if c == '@' {
			for j := i - 1; j >= 0; j-- {
				if j+2 < len(raw) && raw[j:j+3] == "://" {
					return raw[:j+3] + "***" + raw[i:]
				}
			}
			return "***" + raw[i:]
		}
	}
	return raw
}
