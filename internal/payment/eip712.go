package payment

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

const (
	defaultDomainName    = "USD Coin"
	defaultDomainVersion = "2"
)

// chainIDFromNetwork parses a CAIP-style `eip155:<chainId>` identifier, or
// falls back to the bare `base`/`base-sepolia` aliases, or to defaultChainID
// when nothing matches — per spec §4.4.
func chainIDFromNetwork(network string, defaultChainID int64) int64 {
	if id, ok := strings.CutPrefix(network, "eip155:"); ok {
		if n, err := strconv.ParseInt(id, 10, 64); err == nil {
			return n
		}
	}
	switch network {
	case "base":
		return 8453
	case "base-sepolia":
		return 84532
	}
	if defaultChainID != 0 {
		return defaultChainID
	}
	return 8453
}

// normalizeAddress accepts a plain 40-hex address (optionally 0x-prefixed)
// or a CAIP-style `eip155:<chainId>:0x...` suffix, and returns the
// lower-cased 0x-prefixed 40-hex form. Returns an error for anything else.
func normalizeAddress(addr string) (string, error) {
	s := addr
	if idx := strings.LastIndex(s, ":"); idx >= 0 {
		s = s[idx+1:]
	}
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")
	if len(s) != 40 {
		return "", fmt.Errorf("payment: invalid address %q: expected 40 hex chars", addr)
	}
	if _, err := hex.DecodeString(s); err != nil {
		return "", fmt.Errorf("payment: invalid address %q: %w", addr, err)
	}
	return "0x" + strings.ToLower(s), nil
}

// randomNonce returns 32 cryptographically secure random bytes, used as the
// EIP-712 authorization nonce. No ecosystem library in the example pack goes
// beyond crypto/rand for this — it is the correct, minimal primitive.
func randomNonce() ([32]byte, error) {
	var n [32]byte
	if _, err := rand.Read(n[:]); err != nil {
		return n, fmt.Errorf("payment: failed to generate nonce: %w", err)
	}
	return n, nil
}

func domainFromExtra(extra *Extra, network string, asset string, defaultChainID int64) EIP712Domain {
	name := defaultDomainName
	version := defaultDomainVersion
	if extra != nil {
		if extra.Name != "" {
			name = extra.Name
		}
		if extra.Version != "" {
			version = extra.Version
		}
	}
	return EIP712Domain{
		Name:              name,
		Version:           version,
		ChainID:           chainIDFromNetwork(network, defaultChainID),
		VerifyingContract: asset,
	}
}
