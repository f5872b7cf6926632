// Package rpcbalance implements balance.BalanceReader by reading an ERC-20
// balanceOf(address) over a JSON-RPC eth_call, using nothing beyond the
// standard library: the balanceOf selector (0x70a08231) is a fixed
// four-byte constant, so no ABI/keccak library is needed to build the call.
package rpcbalance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"
)

// balanceOfSelector is the first four bytes of keccak256("balanceOf(address)").
const balanceOfSelector = "70a08231"

// Reader calls eth_call against a JSON-RPC endpoint to read an ERC-20
// token's balanceOf(wallet).
type Reader struct {
	client        *http.Client
	rpcURL        string
	tokenContract string
}

// New builds a Reader against rpcURL, reading balances of tokenContract.
// timeout <= 0 falls back to 5s.
func New(rpcURL, tokenContract string, timeout time.Duration) *Reader {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Reader{
		client:        &http.Client{Timeout: timeout},
		rpcURL:        rpcURL,
		tokenContract: tokenContract,
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type ethCallParams struct {
	To   string `json:"to"`
	Data string `json:"data"`
}

type rpcResponse struct {
	Result string `json:"result"`
	Error  *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// BalanceOf reads the ERC-20 balance of wallet at the configured token
// contract, in the token's smallest unit (e.g. USDC's 6-decimal base units).
func (r *Reader) BalanceOf(ctx context.Context, wallet string) (*big.Int, error) {
	data := "0x" + balanceOfSelector + padAddress(wallet)

	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "eth_call",
		Params:  []any{ethCallParams{To: r.tokenContract, Data: data}, "latest"},
	}

	raw, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("rpcbalance: failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.rpcURL, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rpcbalance: eth_call failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var out rpcResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("rpcbalance: failed to parse response: %w", err)
	}
	if out.Error != nil {
		return nil, fmt.Errorf("rpcbalance: rpc error: %s", out.Error.Message)
	}

	hexValue := strings.TrimPrefix(out.Result, "0x")
	if hexValue == "" {
		return big.NewInt(0), nil
	}
	balance, ok := new(big.Int).SetString(hexValue, 16)
	if !ok {
		return nil, fmt.Errorf("rpcbalance: could not parse result %q as hex", out.Result)
	}
	return balance, nil
}

// padAddress left-pads a 20-byte hex address to a 32-byte ABI word.
func padAddress(addr string) string {
	addr = strings.TrimPrefix(strings.ToLower(addr), "0x")
	if len(addr) < 40 {
		addr = strings.Repeat("0", 40-len(addr)) + addr
	}
	return strings.Repeat("0", 24) + addr
}
