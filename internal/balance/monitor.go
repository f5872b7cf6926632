// Package balance wraps an on-chain balance reader behind a short-TTL
// single-value cache (C3), so the proxy can cheaply gate low-balance
// downgrades without hitting the chain on every request.
//
// RPC reads and wallet key material are external collaborators (spec §9):
// this package depends only on the BalanceReader interface, mirroring how
// internal/payment keeps EIP-712 signing behind Signer.
package balance

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"
)

// usdDecimals is the smallest-unit scale of the payment asset (USDC: 6).
const usdDecimals = 6

// BalanceReader reads the payer's on-chain token balance. Implemented by an
// external collaborator (RPC client); this package only depends on the
// interface.
type BalanceReader interface {
	BalanceOf(ctx context.Context, wallet string) (*big.Int, error)
}

// RPCError wraps a failure to read the chain, distinguished from "balance
// read successfully and is actually zero" per spec §4.5.
type RPCError struct {
	Err error
}

func (e *RPCError) Error() string { return fmt.Sprintf("balance: rpc read failed: %v", e.Err) }
func (e *RPCError) Unwrap() error { return e.Err }

// Info is the result of a balance check.
type Info struct {
	Balance       *big.Int
	BalanceUSD    float64
	IsLow         bool
	IsEmpty       bool
	WalletAddress string
}

// Monitor caches one balance reading per wallet with a configurable TTL.
type Monitor struct {
	reader BalanceReader
	wallet string

	ttl                   time.Duration
	lowThresholdUSD       float64
	zeroThresholdUSD      float64
	sufficiencyMultiplier float64

	mu       sync.Mutex
	cached   *big.Int
	cachedAt time.Time
}

// NewMonitor builds a Monitor for wallet. ttl <= 0 falls back to 30s;
// sufficiencyMultiplier <= 0 falls back to 1.0.
func NewMonitor(reader BalanceReader, wallet string, ttl time.Duration, lowThresholdUSD, zeroThresholdUSD, sufficiencyMultiplier float64) *Monitor {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if sufficiencyMultiplier <= 0 {
		sufficiencyMultiplier = 1.0
	}
	return &Monitor{
		reader:                reader,
		wallet:                wallet,
		ttl:                   ttl,
		lowThresholdUSD:       lowThresholdUSD,
		zeroThresholdUSD:      zeroThresholdUSD,
		sufficiencyMultiplier: sufficiencyMultiplier,
	}
}

// CheckBalance returns the cached balance if fresh, otherwise performs an
// RPC read through BalanceReader. RPC failures are returned as *RPCError so
// callers can tell them apart from a genuinely empty wallet.
func (m *Monitor) CheckBalance(ctx context.Context) (Info, error) {
	m.mu.Lock()
	fresh := m.cached != nil && time.Since(m.cachedAt) <= m.ttl
	balance := m.cached
	m.mu.Unlock()

	if !fresh {
		read, err := m.reader.BalanceOf(ctx, m.wallet)
		if err != nil {
			return Info{}, &RPCError{Err: err}
		}
		m.mu.Lock()
		m.cached = read
		m.cachedAt = time.Now()
		balance = read
		m.mu.Unlock()
	}

	return m.infoFor(balance), nil
}

// CheckSufficient reports whether the cached balance covers estMicros
// (smallest-unit amount), scaled by SufficiencyMultiplier. Does not trigger
// an RPC read; callers should CheckBalance first if freshness matters.
func (m *Monitor) CheckSufficient(estMicros *big.Int) bool {
	m.mu.Lock()
	balance := m.cached
	m.mu.Unlock()

	if balance == nil || estMicros == nil {
		return false
	}
	required := new(big.Float).Mul(new(big.Float).SetInt(estMicros), big.NewFloat(m.sufficiencyMultiplier))
	return new(big.Float).SetInt(balance).Cmp(required) >= 0
}

// DeductEstimated optimistically subtracts amount from the cached balance
// after a successful payment, so the next CheckSufficient call reflects it
// without waiting out the TTL.
func (m *Monitor) DeductEstimated(amount *big.Int) {
	if amount == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cached == nil {
		return
	}
	next := new(big.Int).Sub(m.cached, amount)
	if next.Sign() < 0 {
		next = big.NewInt(0)
	}
	m.cached = next
}

// Invalidate forces the next CheckBalance call to hit RPC, used after a
// payment failure that may have changed the true on-chain balance.
func (m *Monitor) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cached = nil
	m.cachedAt = time.Time{}
}

func (m *Monitor) infoFor(balance *big.Int) Info {
	usd := toUSD(balance)
	return Info{
		Balance:       balance,
		BalanceUSD:    usd,
		IsLow:         usd < m.lowThresholdUSD,
		IsEmpty:       usd < m.zeroThresholdUSD,
		WalletAddress: m.wallet,
	}
}

func toUSD(balance *big.Int) float64 {
	if balance == nil {
		return 0
	}
	scale := new(big.Float).SetFloat64(1)
	for i := 0; i < usdDecimals; i++ {
		scale.Mul(scale, big.NewFloat(10))
	}
	usd := new(big.Float).Quo(new(big.Float).SetInt(balance), scale)
	f, _ := usd.Float64()
	return f
}
