// Package remotesigner implements payment.Signer against an out-of-process
// signing service, so the payer's private key never enters this process
// (spec §9). It follows internal/payment/fetch.go's raw net/http idiom —
// build the request, do it, decode the JSON body — rather than pulling in a
// generic RPC client for a two-endpoint API.
package remotesigner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/nulpointcorp/llm-proxy/internal/payment"
)

// Signer calls a remote signing service's GET /address and POST /sign
// endpoints. The address is fetched once and cached for the process
// lifetime; the wallet key held by the service does not rotate mid-run.
type Signer struct {
	client  *http.Client
	baseURL string

	addrOnce sync.Once
	addrErr  error
	address  string
}

// New builds a Signer against baseURL (e.g. "http://localhost:9000").
// timeout <= 0 falls back to 5s.
func New(baseURL string, timeout time.Duration) *Signer {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Signer{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Address returns the payer's public wallet address, fetched lazily and
// cached. Panics are never used here — a fetch failure is remembered and
// surfaced the next time Address is called from a context that can return
// an error (SignTypedData).
func (s *Signer) Address() string {
	s.addrOnce.Do(func() {
		s.address, s.addrErr = s.fetchAddress(context.Background())
	})
	return s.address
}

func (s *Signer) fetchAddress(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/address", nil)
	if err != nil {
		return "", err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("remotesigner: address request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("remotesigner: address request returned %d: %s", resp.StatusCode, body)
	}

	var out struct {
		Address string `json:"address"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("remotesigner: failed to parse address response: %w", err)
	}
	return out.Address, nil
}

// signRequest is the wire shape POSTed to /sign.
type signRequest struct {
	Domain  domainWire  `json:"domain"`
	Message messageWire `json:"message"`
}

type domainWire struct {
	Name              string `json:"name"`
	Version           string `json:"version"`
	ChainID           int64  `json:"chainId"`
	VerifyingContract string `json:"verifyingContract"`
}

type messageWire struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	ValidAfter  int64  `json:"validAfter"`
	ValidBefore int64  `json:"validBefore"`
	Nonce       string `json:"nonce"`
}

// SignTypedData asks the remote service to sign an EIP-712
// TransferWithAuthorization payload and returns the hex-encoded signature.
func (s *Signer) SignTypedData(ctx context.Context, domain payment.EIP712Domain, msg payment.TransferAuthorizationMessage) (string, error) {
	if s.addrErr != nil {
		return "", fmt.Errorf("remotesigner: address unavailable: %w", s.addrErr)
	}

	reqBody := signRequest{
		Domain: domainWire{
			Name:              domain.Name,
			Version:           domain.Version,
			ChainID:           domain.ChainID,
			VerifyingContract: domain.VerifyingContract,
		},
		Message: messageWire{
			From:        msg.From,
			To:          msg.To,
			Value:       msg.Value,
			ValidAfter:  msg.ValidAfter,
			ValidBefore: msg.ValidBefore,
			Nonce:       "0x" + hexEncode(msg.Nonce[:]),
		},
	}

	raw, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("remotesigner: failed to marshal sign request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/sign", bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("remotesigner: sign request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("remotesigner: sign request returned %d: %s", resp.StatusCode, body)
	}

	var out struct {
		Signature string `json:"signature"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("remotesigner: failed to parse sign response: %w", err)
	}
	return out.Signature, nil
}

func hexEncode(b []byte) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = hexDigits[c>>4]
		out[i*2+1] = hexDigits[c&0x0f]
	}
	return string(out)
}
