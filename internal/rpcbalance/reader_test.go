package rpcbalance

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPadAddress(t *testing.T) {
	tests := []struct {
		addr   string
		suffix string
	}{
		{"0xabc", "abc"},
		{"0x000000000000000000000000000000000000f1", "000000000000000000000000000000000000f1"},
	}
	for _, tt := range tests {
		got := padAddress(tt.addr)
		if len(got) != 64 {
			t.Fatalf("padAddress(%q) length = %d, want 64", tt.addr, len(got))
		}
		if got[64-len(tt.suffix):] != tt.suffix {
			t.Fatalf("padAddress(%q) = %q, want suffix %q", tt.addr, got, tt.suffix)
		}
	}
}

func TestReader_BalanceOf(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Method != "eth_call" {
			t.Fatalf("method = %q, want eth_call", req.Method)
		}
		params, ok := req.Params[0].(map[string]any)
		if !ok {
			t.Fatalf("params[0] not a map: %#v", req.Params[0])
		}
		data, _ := params["data"].(string)
		if len(data) < 10 || data[2:10] != balanceOfSelector {
			t.Fatalf("data does not start with balanceOf selector: %q", data)
		}
		_ = json.NewEncoder(w).Encode(rpcResponse{Result: "0x2710"})
	}))
	defer srv.Close()

	r := New(srv.URL, "0xtoken", 0)
	bal, err := r.BalanceOf(context.Background(), "0xwallet000000000000000000000000000000f1")
	if err != nil {
		t.Fatalf("BalanceOf: %v", err)
	}
	if bal.Cmp(big.NewInt(10000)) != 0 {
		t.Fatalf("balance = %s, want 10000", bal.String())
	}
}

func TestReader_BalanceOf_EmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(rpcResponse{Result: "0x"})
	}))
	defer srv.Close()

	r := New(srv.URL, "0xtoken", 0)
	bal, err := r.BalanceOf(context.Background(), "0xwallet")
	if err != nil {
		t.Fatalf("BalanceOf: %v", err)
	}
	if bal.Sign() != 0 {
		t.Fatalf("balance = %s, want 0", bal.String())
	}
}

func TestReader_BalanceOf_RPCError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(rpcResponse{Error: &struct {
			Message string `json:"message"`
		}{Message: "execution reverted"}})
	}))
	defer srv.Close()

	r := New(srv.URL, "0xtoken", 0)
	if _, err := r.BalanceOf(context.Background(), "0xwallet"); err == nil {
		t.Fatal("expected error from rpc error field, got nil")
	}
}
