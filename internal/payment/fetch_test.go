package payment

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeSigner struct {
	address string
	calls   int
}

func (f *fakeSigner) Address() string { return f.address }

func (f *fakeSigner) SignTypedData(ctx context.Context, domain EIP712Domain, msg TransferAuthorizationMessage) (string, error) {
	f.calls++
	return "0xsignature", nil
}

func requiredHeaderValue(t *testing.T, h requiredHeader) string {
	t.Helper()
	raw, err := json.Marshal(h)
	if err != nil {
		t.Fatal(err)
	}
	return base64.URLEncoding.EncodeToString(raw)
}

func samplePaymentOption() PaymentOption {
	return PaymentOption{
		Scheme:            "exact",
		Network:           "eip155:8453",
		Asset:             "0x" + "1234567890abcdef1234567890abcdef12345678",
		PayTo:             "0x" + "abcdefabcdefabcdefabcdefabcdefabcdefabcd",
		MaxAmountRequired: "1000",
		MaxTimeoutSeconds: 300,
	}
}

// TestFetch_NormalPath402ThenRetry covers the unauthenticated-first-request
// flow: 402 with x-payment-required, then a signed retry that succeeds.
func TestFetch_NormalPath402ThenRetry(t *testing.T) {
	attempt := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempt++
		if attempt == 1 {
			if r.Header.Get("payment-signature") != "" {
				t.Error("first request should carry no payment header")
			}
			hdr := requiredHeaderValue(t, requiredHeader{Accepts: []PaymentOption{samplePaymentOption()}})
			w.Header().Set("x-payment-required", hdr)
			w.WriteHeader(http.StatusPaymentRequired)
			return
		}
		sig := r.Header.Get("payment-signature")
		xp := r.Header.Get("x-payment")
		if sig == "" || sig != xp {
			t.Errorf("expected identical payment-signature/x-payment headers, got %q / %q", sig, xp)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client(), NewCache(time.Minute), &fakeSigner{address: "0x" + "1111111111111111111111111111111111111111"}, 0, 0, 0)

	resp, body, err := f.Fetch(context.Background(), "/v1/chat/completions", srv.URL, []byte(`{}`), nil, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if string(body) != `{"ok":true}` {
		t.Errorf("unexpected body: %s", body)
	}
	if attempt != 2 {
		t.Errorf("expected exactly 2 attempts, got %d", attempt)
	}
}

// TestFetch_PreAuthFastPath covers the cached-endpoint single-round-trip
// path: a cache entry plus an estimated amount signs on the very first
// request, and a 200 response short-circuits the 402 dance entirely.
func TestFetch_PreAuthFastPath(t *testing.T) {
	attempt := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempt++
		sig := r.Header.Get("payment-signature")
		if sig == "" {
			t.Error("pre-auth request should carry a payment header on the first attempt")
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	cache := NewCache(time.Minute)
	cache.Set("/v1/chat/completions", Params{
		PayTo:   samplePaymentOption().PayTo,
		Asset:   samplePaymentOption().Asset,
		Network: samplePaymentOption().Network,
	})

	f := NewFetcher(srv.Client(), cache, &fakeSigner{address: "0x" + "1111111111111111111111111111111111111111"}, 0, 0, 0)

	resp, _, err := f.Fetch(context.Background(), "/v1/chat/completions", srv.URL, []byte(`{}`), nil, "500")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if attempt != 1 {
		t.Errorf("expected exactly 1 attempt on the fast path, got %d", attempt)
	}
}

// TestFetch_PreAuthInvalidatesOnStaleCache covers the cached-but-stale case:
// a pre-auth attempt still gets a 402 with no new payment header, so the
// cache entry is dropped and a clean retry runs the normal path.
func TestFetch_PreAuthInvalidatesOnStaleCache(t *testing.T) {
	attempt := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempt++
		switch attempt {
		case 1:
			w.WriteHeader(http.StatusPaymentRequired)
		case 2:
			hdr := requiredHeaderValue(t, requiredHeader{Accepts: []PaymentOption{samplePaymentOption()}})
			w.Header().Set("x-payment-required", hdr)
			w.WriteHeader(http.StatusPaymentRequired)
		default:
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"ok":true}`))
		}
	}))
	defer srv.Close()

	cache := NewCache(time.Minute)
	cache.Set("/v1/chat/completions", Params{PayTo: samplePaymentOption().PayTo, Asset: samplePaymentOption().Asset})

	f := NewFetcher(srv.Client(), cache, &fakeSigner{address: "0x" + "1111111111111111111111111111111111111111"}, 0, 0, 0)

	resp, _, err := f.Fetch(context.Background(), "/v1/chat/completions", srv.URL, []byte(`{}`), nil, "500")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected eventual 200, got %d", resp.StatusCode)
	}
	if attempt != 3 {
		t.Errorf("expected 3 attempts (stale pre-auth, fresh 402, signed retry), got %d", attempt)
	}
}

func TestFetch_MissingAcceptsErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hdr := requiredHeaderValue(t, requiredHeader{Accepts: nil})
		w.Header().Set("x-payment-required", hdr)
		w.WriteHeader(http.StatusPaymentRequired)
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client(), NewCache(time.Minute), &fakeSigner{address: "0x" + "1111111111111111111111111111111111111111"}, 0, 0, 0)

	_, _, err := f.Fetch(context.Background(), "/v1/chat/completions", srv.URL, []byte(`{}`), nil, "")
	if err == nil {
		t.Error("expected error for missing accepts")
	}
}

func TestNormalizeAddress(t *testing.T) {
	cases := map[string]string{
		"0xABCDEFabcdef1234567890ABCDEFabcdef123456":          "0xabcdefabcdef1234567890abcdefabcdef123456",
		"eip155:8453:0xabcdefabcdef1234567890abcdefabcdef123456": "0xabcdefabcdef1234567890abcdefabcdef123456",
	}
	for in, want := range cases {
		got, err := normalizeAddress(in)
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", in, err)
		}
		if got != want {
			t.Errorf("normalizeAddress(%q) = %q, want %q", in, got, want)
		}
	}

	if _, err := normalizeAddress("not-an-address"); err == nil {
		t.Error("expected error for invalid address")
	}
}

func TestChainIDFromNetwork(t *testing.T) {
	cases := []struct {
		network string
		want    int64
	}{
		{"eip155:84532", 84532},
		{"base", 8453},
		{"base-sepolia", 84532},
		{"unknown", 8453},
	}
	for _, c := range cases {
		if got := chainIDFromNetwork(c.network, 0); got != c.want {
			t.Errorf("chainIDFromNetwork(%q) = %d, want %d", c.network, got, c.want)
		}
	}
}
