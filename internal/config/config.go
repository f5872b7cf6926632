// Package config loads and validates all runtime configuration for the proxy.
//
// Configuration is read from environment variables (preferred for containers)
// or from a config.yaml file in the working directory. Environment
// variables take precedence over the YAML file.
//
// Naming convention: env vars use UPPER_SNAKE_CASE; the YAML file uses the
// same names in lower_snake_case.
//
// Wallet key material is never read here — the signing key lives with the
// external Signer collaborator (see internal/payment). This package only
// carries the wallet's public address, used for display and health checks.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config is the top-level configuration container.
type Config struct {
	// Port is the TCP port the HTTP server listens on. Default: 8402.
	Port int

	// LogLevel controls the minimum log level. One of: debug, info, warn, error.
	LogLevel string

	// Upstream holds the single aggregator endpoint this proxy forwards to.
	Upstream UpstreamConfig

	// Wallet holds the payer's public address. The signing key itself is
	// supplied out-of-band to a Signer implementation.
	Wallet WalletConfig

	// Routing controls classification thresholds and overrides.
	Routing RoutingConfig

	// Cache controls the non-streaming response cache (C7).
	Cache CacheConfig

	// Session controls session-pinned model reuse (C8).
	Session SessionConfig

	// Payment controls the payment cache TTL and authorization window (C1/C2).
	Payment PaymentConfig

	// Balance controls the cached balance read and thresholds (C3).
	Balance BalanceConfig

	// Dedup controls in-flight/recent request coalescing (C6).
	Dedup DedupConfig

	// Degraded controls the degraded-response heuristic thresholds.
	Degraded DegradedConfig

	// Fallback controls the per-attempt fallback loop (C9).
	Fallback FallbackConfig

	// Redis optionally backs the dedup completed-result cache with a shared
	// store, and the ingress rate limiter's sliding window.
	Redis RedisConfig

	// RateLimit controls the optional ingress requests-per-minute limiter.
	RateLimit RateLimitConfig

	// Signer points at the remote signing service that holds the payer's
	// private key (spec §9 — key material never lives in this process).
	Signer SignerConfig

	// RPC points at the JSON-RPC endpoint used to read the payer's on-chain
	// token balance.
	RPC RPCConfig

	// CORSOrigins is the list of allowed CORS origins. ["*"] allows any.
	CORSOrigins []string
}

// SignerConfig points at an out-of-process signing service implementing
// payment.Signer over HTTP.
type SignerConfig struct {
	// ServiceURL is the base URL of the signer service, e.g.
	// "http://localhost:9000". Empty disables payment entirely — every
	// request is served under the free profile.
	ServiceURL string

	// Timeout bounds each call to the signer service. Default: 5s.
	Timeout time.Duration
}

// RPCConfig points at the JSON-RPC endpoint used for on-chain balance reads.
type RPCConfig struct {
	// URL is the JSON-RPC HTTP endpoint, e.g. an Alchemy or Base RPC URL.
	URL string

	// TokenContract is the ERC-20 token contract address to read
	// balanceOf(wallet) from (USDC on the configured network).
	TokenContract string

	// Timeout bounds each RPC call. Default: 5s.
	Timeout time.Duration
}

// UpstreamConfig holds the aggregator this proxy forwards requests to.
type UpstreamConfig struct {
	// BaseURL is the aggregator's base URL, e.g. "https://api.blockrun.ai".
	BaseURL string
}

// WalletConfig holds the payer's public wallet address.
type WalletConfig struct {
	Address string
}

// RoutingConfig controls classifier overrides and tier-boundary tuning.
type RoutingConfig struct {
	// MaxTokensForceComplex forces tier COMPLEX when estimated input tokens
	// exceed this value. Default: 100000.
	MaxTokensForceComplex int

	// StructuredOutputMinTier is the minimum tier applied when the system
	// prompt requests structured/JSON output. Default: "MEDIUM".
	StructuredOutputMinTier string

	// AmbiguousDefaultTier is applied when classifier confidence is below
	// ConfidenceThreshold. Default: "MEDIUM".
	AmbiguousDefaultTier string

	// AgenticMode is loaded from AGENTIC_MODE but not read by the proxy; the
	// agentic sub-table is chosen only when the classifier's agentic score
	// is ≥ 0.5. Default: false.
	AgenticMode bool

	// SigmoidSteepness (k) controls confidence calibration steepness. Default: 12.
	SigmoidSteepness float64

	// ConfidenceThreshold below which a tier is treated as ambiguous. Default: 0.7.
	ConfidenceThreshold float64

	// TierBoundaries are the three score cut points b1 < b2 < b3.
	// Defaults: 0.0, 0.3, 0.5.
	TierBoundaries [3]float64

	// FreeModel is the model id substituted under the free profile and on
	// low-balance downgrade.
	FreeModel string
}

// CacheConfig controls the response cache.
type CacheConfig struct {
	// Enabled turns the response cache on. Default: true.
	Enabled bool

	// MaxSize is the maximum number of cached entries. Default: 200.
	MaxSize int

	// DefaultTTL is the default cache entry lifetime. Default: 10m.
	DefaultTTL time.Duration

	// MaxItemSize is the largest body eligible for caching, in bytes.
	// Default: 1 MiB.
	MaxItemSize int64

	// ExcludeExact is a list of exact model ids that must never be cached.
	ExcludeExact []string

	// ExcludePatterns is a list of Go regular expressions matched against
	// model ids; matching requests are never cached.
	ExcludePatterns []string
}

// SessionConfig controls session-pinned model selection.
type SessionConfig struct {
	// Enabled turns on session pinning. Default: false.
	Enabled bool

	// Timeout is how long an idle session stays pinned. Default: 30m.
	Timeout time.Duration

	// HeaderName is the request header carrying the session id.
	// Default: "x-session-id".
	HeaderName string
}

// PaymentConfig controls the payment cache and authorization window.
type PaymentConfig struct {
	// CacheTTL is how long cached per-endpoint payment parameters remain
	// valid. Default: 1h.
	CacheTTL time.Duration

	// ValidAfterSkew is subtracted from now for the authorization's
	// validAfter field. Default: 600s.
	ValidAfterSkew time.Duration

	// DefaultMaxTimeoutSeconds is used when a payment option omits
	// maxTimeoutSeconds. Default: 300.
	DefaultMaxTimeoutSeconds int

	// DefaultChainID is used when the network identifier can't be parsed.
	// Default: 8453 (Base mainnet).
	DefaultChainID int64
}

// BalanceConfig controls the cached on-chain balance read.
type BalanceConfig struct {
	// CacheTTL is how long a balance read remains fresh. Default: 30s.
	CacheTTL time.Duration

	// LowThresholdUSD marks the balance as low (IsLow, reported by
	// /health?full=true) below this amount. The downgrade to the free model
	// comes from the sufficiency check, not from this threshold.
	// Default: 1.00.
	LowThresholdUSD float64

	// ZeroThresholdUSD below which the wallet is considered empty.
	// Default: 0.0001.
	ZeroThresholdUSD float64

	// SufficiencyMultiplier scales the estimated cost when checking it
	// against the cached balance (balance must be ≥ estimate × multiplier).
	// Default: 1.5.
	SufficiencyMultiplier float64
}

// DedupConfig controls in-flight/recent request coalescing.
type DedupConfig struct {
	// CompletedTTL is how long a completed result stays replayable to late
	// dedup waiters. Default: 30s.
	CompletedTTL time.Duration

	// MaxBodySize is the largest completed body cached for replay, in bytes.
	// Default: 1 MiB.
	MaxBodySize int64
}

// DegradedConfig holds the degraded-response heuristic's thresholds. The
// fields are loaded from configuration but not read: the check in
// internal/proxy/degraded.go uses fixed values (3, 0.45, 8 lines).
type DegradedConfig struct {
	// MaxRepeatThreshold is the minimum max-repeat count that counts as
	// suspicious. Default: 3.
	MaxRepeatThreshold int

	// UniqueRatioMax is the maximum unique-line ratio that counts as
	// suspicious. Default: 0.45.
	UniqueRatioMax float64

	// MinLines is the minimum trimmed line count before the repetition
	// heuristic applies. Default: 8.
	MinLines int
}

// FallbackConfig controls the per-request fallback loop.
type FallbackConfig struct {
	// MaxAttempts caps candidates tried per request. Default: 5.
	MaxAttempts int

	// AttemptTimeout is the per-upstream-attempt wall-clock timeout.
	// Default: 180s.
	AttemptTimeout time.Duration

	// RateLimitCooldown is how long a 429'd model is de-prioritized.
	// Default: 60s.
	RateLimitCooldown time.Duration

	// HeartbeatInterval is loaded but not read; the SSE heartbeat cadence is
	// fixed at 2s (heartbeatInterval in internal/proxy/sse.go). Default: 2s.
	HeartbeatInterval time.Duration
}

// RedisConfig optionally connects Redis, used as a shared mirror for dedup
// completed results and as the ingress rate limiter's store.
type RedisConfig struct {
	// URL is a redis:// or rediss:// URL. Empty disables Redis; dedup then
	// stays process-local and ingress rate limiting is off.
	URL string
}

// RateLimitConfig controls the optional ingress rate limiter. Only takes
// effect when Redis is configured.
type RateLimitConfig struct {
	// RPMLimit is the global requests-per-minute budget. <= 0 disables
	// ingress limiting even when Redis is configured. Default: 0 (disabled).
	RPMLimit int
}

// Load reads configuration from environment variables and (optionally) from
// config.yaml in the current working directory.
func Load() (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	_ = v.ReadInConfig()

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// ── Defaults ──────────────────────────────────────────────────────────
	v.SetDefault("PORT", 8402)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ORIGINS", []string{"*"})

	v.SetDefault("MAX_TOKENS_FORCE_COMPLEX", 100000)
	v.SetDefault("STRUCTURED_OUTPUT_MIN_TIER", "MEDIUM")
	v.SetDefault("AMBIGUOUS_DEFAULT_TIER", "MEDIUM")
	v.SetDefault("AGENTIC_MODE", false)
	v.SetDefault("SIGMOID_STEEPNESS", 12.0)
	v.SetDefault("CONFIDENCE_THRESHOLD", 0.7)
	v.SetDefault("TIER_BOUNDARY_1", 0.0)
	v.SetDefault("TIER_BOUNDARY_2", 0.3)
	v.SetDefault("TIER_BOUNDARY_3", 0.5)
	v.SetDefault("FREE_MODEL", "blockrun/free")

	v.SetDefault("CACHE_ENABLED", true)
	v.SetDefault("CACHE_MAX_SIZE", 200)
	v.SetDefault("CACHE_DEFAULT_TTL", "10m")
	v.SetDefault("CACHE_MAX_ITEM_SIZE", 1048576)

	v.SetDefault("SESSION_ENABLED", false)
	v.SetDefault("SESSION_TIMEOUT", "30m")
	v.SetDefault("SESSION_HEADER_NAME", "x-session-id")

	v.SetDefault("PAYMENT_CACHE_TTL", "1h")
	v.SetDefault("PAYMENT_VALID_AFTER_SKEW", "600s")
	v.SetDefault("PAYMENT_DEFAULT_MAX_TIMEOUT_SECONDS", 300)
	v.SetDefault("PAYMENT_DEFAULT_CHAIN_ID", 8453)

	v.SetDefault("BALANCE_CACHE_TTL", "30s")
	v.SetDefault("BALANCE_LOW_THRESHOLD_USD", 1.00)
	v.SetDefault("BALANCE_ZERO_THRESHOLD_USD", 0.0001)
	v.SetDefault("BALANCE_SUFFICIENCY_MULTIPLIER", 1.5)

	v.SetDefault("DEDUP_COMPLETED_TTL", "30s")
	v.SetDefault("DEDUP_MAX_BODY_SIZE", 1048576)

	v.SetDefault("DEGRADED_MAX_REPEAT_THRESHOLD", 3)
	v.SetDefault("DEGRADED_UNIQUE_RATIO_MAX", 0.45)
	v.SetDefault("DEGRADED_MIN_LINES", 8)

	v.SetDefault("FALLBACK_MAX_ATTEMPTS", 5)
	v.SetDefault("FALLBACK_ATTEMPT_TIMEOUT", "180s")
	v.SetDefault("FALLBACK_RATE_LIMIT_COOLDOWN", "60s")
	v.SetDefault("FALLBACK_HEARTBEAT_INTERVAL", "2s")

	v.SetDefault("SIGNER_TIMEOUT", "5s")
	v.SetDefault("RPC_TIMEOUT", "5s")

	v.SetDefault("RATE_LIMIT_RPM", 0)

	// ── Build config ──────────────────────────────────────────────────────
	cfg := &Config{
		Port:     v.GetInt("PORT"),
		LogLevel: strings.ToLower(v.GetString("LOG_LEVEL")),

		Upstream: UpstreamConfig{BaseURL: v.GetString("UPSTREAM_BASE_URL")},
		Wallet:   WalletConfig{Address: v.GetString("WALLET_ADDRESS")},

		Routing: RoutingConfig{
			MaxTokensForceComplex:   v.GetInt("MAX_TOKENS_FORCE_COMPLEX"),
			StructuredOutputMinTier: strings.ToUpper(v.GetString("STRUCTURED_OUTPUT_MIN_TIER")),
			AmbiguousDefaultTier:    strings.ToUpper(v.GetString("AMBIGUOUS_DEFAULT_TIER")),
			AgenticMode:             v.GetBool("AGENTIC_MODE"),
			SigmoidSteepness:        v.GetFloat64("SIGMOID_STEEPNESS"),
			ConfidenceThreshold:     v.GetFloat64("CONFIDENCE_THRESHOLD"),
			TierBoundaries: [3]float64{
				v.GetFloat64("TIER_BOUNDARY_1"),
				v.GetFloat64("TIER_BOUNDARY_2"),
				v.GetFloat64("TIER_BOUNDARY_3"),
			},
			FreeModel: v.GetString("FREE_MODEL"),
		},

		Cache: CacheConfig{
			Enabled:         v.GetBool("CACHE_ENABLED"),
			MaxSize:         v.GetInt("CACHE_MAX_SIZE"),
			DefaultTTL:      v.GetDuration("CACHE_DEFAULT_TTL"),
			MaxItemSize:     v.GetInt64("CACHE_MAX_ITEM_SIZE"),
			ExcludeExact:    v.GetStringSlice("CACHE_EXCLUDE_EXACT"),
			ExcludePatterns: v.GetStringSlice("CACHE_EXCLUDE_PATTERNS"),
		},

		Session: SessionConfig{
			Enabled:    v.GetBool("SESSION_ENABLED"),
			Timeout:    v.GetDuration("SESSION_TIMEOUT"),
			HeaderName: v.GetString("SESSION_HEADER_NAME"),
		},

		Payment: PaymentConfig{
			CacheTTL:                 v.GetDuration("PAYMENT_CACHE_TTL"),
			ValidAfterSkew:           v.GetDuration("PAYMENT_VALID_AFTER_SKEW"),
			DefaultMaxTimeoutSeconds: v.GetInt("PAYMENT_DEFAULT_MAX_TIMEOUT_SECONDS"),
			DefaultChainID:           v.GetInt64("PAYMENT_DEFAULT_CHAIN_ID"),
		},

		Balance: BalanceConfig{
			CacheTTL:              v.GetDuration("BALANCE_CACHE_TTL"),
			LowThresholdUSD:       v.GetFloat64("BALANCE_LOW_THRESHOLD_USD"),
			ZeroThresholdUSD:      v.GetFloat64("BALANCE_ZERO_THRESHOLD_USD"),
			SufficiencyMultiplier: v.GetFloat64("BALANCE_SUFFICIENCY_MULTIPLIER"),
		},

		Dedup: DedupConfig{
			CompletedTTL: v.GetDuration("DEDUP_COMPLETED_TTL"),
			MaxBodySize:  v.GetInt64("DEDUP_MAX_BODY_SIZE"),
		},

		Degraded: DegradedConfig{
			MaxRepeatThreshold: v.GetInt("DEGRADED_MAX_REPEAT_THRESHOLD"),
			UniqueRatioMax:     v.GetFloat64("DEGRADED_UNIQUE_RATIO_MAX"),
			MinLines:           v.GetInt("DEGRADED_MIN_LINES"),
		},

		Fallback: FallbackConfig{
			MaxAttempts:       v.GetInt("FALLBACK_MAX_ATTEMPTS"),
			AttemptTimeout:    v.GetDuration("FALLBACK_ATTEMPT_TIMEOUT"),
			RateLimitCooldown: v.GetDuration("FALLBACK_RATE_LIMIT_COOLDOWN"),
			HeartbeatInterval: v.GetDuration("FALLBACK_HEARTBEAT_INTERVAL"),
		},

		Redis:     RedisConfig{URL: v.GetString("REDIS_URL")},
		RateLimit: RateLimitConfig{RPMLimit: v.GetInt("RATE_LIMIT_RPM")},

		Signer: SignerConfig{
			ServiceURL: v.GetString("SIGNER_SERVICE_URL"),
			Timeout:    v.GetDuration("SIGNER_TIMEOUT"),
		},
		RPC: RPCConfig{
			URL:           v.GetString("RPC_URL"),
			TokenContract: v.GetString("RPC_TOKEN_CONTRACT"),
			Timeout:       v.GetDuration("RPC_TIMEOUT"),
		},

		CORSOrigins: v.GetStringSlice("CORS_ORIGINS"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate checks all semantic constraints that cannot be expressed as defaults.
func (c *Config) validate() error {
	if c.Upstream.BaseURL == "" {
		return errors.New("config: UPSTREAM_BASE_URL is required")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: invalid LOG_LEVEL %q; must be one of: debug, info, warn, error", c.LogLevel)
	}

	if c.Routing.TierBoundaries[0] >= c.Routing.TierBoundaries[1] ||
		c.Routing.TierBoundaries[1] >= c.Routing.TierBoundaries[2] {
		return fmt.Errorf("config: tier boundaries must be strictly increasing, got %v", c.Routing.TierBoundaries)
	}
	if c.Routing.ConfidenceThreshold < 0 || c.Routing.ConfidenceThreshold > 1 {
		return fmt.Errorf("config: CONFIDENCE_THRESHOLD must be in [0,1], got %f", c.Routing.ConfidenceThreshold)
	}

	if c.Cache.MaxSize < 1 {
		return fmt.Errorf("config: CACHE_MAX_SIZE must be ≥ 1, got %d", c.Cache.MaxSize)
	}

	if c.Fallback.MaxAttempts < 1 {
		return fmt.Errorf("config: FALLBACK_MAX_ATTEMPTS must be ≥ 1, got %d", c.Fallback.MaxAttempts)
	}
	if c.Fallback.MaxAttempts > 5 {
		return fmt.Errorf("config: FALLBACK_MAX_ATTEMPTS must be ≤ 5, got %d", c.Fallback.MaxAttempts)
	}

	return nil
}

// loadDotEnv populates process env vars from a .env file when present.
func loadDotEnv(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("config: %s is a directory, expected a file", path)
	}
	if err := gotenv.Load(path); err != nil {
		return fmt.Errorf("config: failed to load %s: %w", path, err)
	}
	return nil
}
