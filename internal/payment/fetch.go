package payment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// Fetcher wraps an *http.Client to satisfy a server that speaks HTTP 402
// Payment Required, signing EIP-712 TransferWithAuthorization payloads
// through Signer and caching derived parameters per endpoint (C1).
//
// Grounded on internal/providers/bedrock/bedrock.go's pattern of keeping
// request signing directly next to the raw net/http call it authorizes,
// generalized from AWS SigV4 to EIP-712 typed-data signing.
type Fetcher struct {
	client *http.Client
	cache  *Cache
	signer Signer

	validAfterSkew           time.Duration
	defaultMaxTimeoutSeconds int
	defaultChainID           int64
}

// NewFetcher builds a Fetcher. validAfterSkew and defaultMaxTimeoutSeconds
// fall back to spec defaults (600s, 300s) when zero.
func NewFetcher(client *http.Client, cache *Cache, signer Signer, validAfterSkew time.Duration, defaultMaxTimeoutSeconds int, defaultChainID int64) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if validAfterSkew <= 0 {
		validAfterSkew = 600 * time.Second
	}
	if defaultMaxTimeoutSeconds <= 0 {
		defaultMaxTimeoutSeconds = 300
	}
	return &Fetcher{
		client:                   client,
		cache:                    cache,
		signer:                   signer,
		validAfterSkew:           validAfterSkew,
		defaultMaxTimeoutSeconds: defaultMaxTimeoutSeconds,
		defaultChainID:           defaultChainID,
	}
}

// Fetch performs the 402 handshake against url, using endpointPath as the
// Payment Cache key. estimatedAmount enables the pre-auth fast path
// (smallest-denomination decimal string) when non-empty and a cache entry
// exists for endpointPath.
func (f *Fetcher) Fetch(ctx context.Context, endpointPath, url string, body []byte, headers http.Header, estimatedAmount string) (*http.Response, []byte, error) {
	if estimatedAmount != "" {
		if params, ok := f.cache.Get(endpointPath); ok {
			return f.preAuthPath(ctx, endpointPath, url, body, headers, estimatedAmount, params)
		}
	}
	return f.normalPath(ctx, endpointPath, url, body, headers, nil)
}

// preAuthPath signs using cached parameters + estimatedAmount on the very
// first request, skipping the 402 round trip when possible (spec §4.4).
func (f *Fetcher) preAuthPath(ctx context.Context, endpointPath, url string, body []byte, headers http.Header, estimatedAmount string, params Params) (*http.Response, []byte, error) {
	option := paymentOptionFromParams(params, estimatedAmount)

	payloadHeader, err := f.signOption(ctx, option, params.ResourceURL, params.ResourceDescription)
	if err != nil {
		return nil, nil, err
	}

	resp, respBody, err := f.do(ctx, url, body, headers, payloadHeader)
	if err != nil {
		return nil, nil, err
	}
	if resp.StatusCode != http.StatusPaymentRequired {
		return resp, respBody, nil
	}

	required, err := parseRequiredHeader(resp.Header.Get("x-payment-required"))
	if err != nil {
		// No usable payment header on the 402: invalidate and retry clean.
		f.cache.Invalidate(endpointPath)
		return f.normalPath(ctx, endpointPath, url, body, headers, nil)
	}
	return f.normalPath(ctx, endpointPath, url, body, headers, required)
}

// normalPath implements spec §4.4's normal path. required may be a
// pre-parsed x-payment-required body (from a failed pre-auth attempt) to
// avoid an extra round trip; if nil, a clean request is sent first.
func (f *Fetcher) normalPath(ctx context.Context, endpointPath, url string, body []byte, headers http.Header, required *requiredHeader) (*http.Response, []byte, error) {
	if required == nil {
		resp, respBody, err := f.do(ctx, url, body, headers, "")
		if err != nil {
			return nil, nil, err
		}
		if resp.StatusCode != http.StatusPaymentRequired {
			return resp, respBody, nil
		}
		required, err = parseRequiredHeader(resp.Header.Get("x-payment-required"))
		if err != nil {
			return nil, nil, err
		}
	}

	if len(required.Accepts) == 0 {
		return nil, nil, fmt.Errorf("payment: x-payment-required missing accepts")
	}
	option := required.Accepts[0]

	resourceURL, resourceDesc := endpointPath, ""
	if required.Resource != nil {
		resourceURL = required.Resource.URL
		resourceDesc = required.Resource.Description
	}

	payloadHeader, err := f.signOption(ctx, option, resourceURL, resourceDesc)
	if err != nil {
		return nil, nil, err
	}

	f.cache.Set(endpointPath, paramsFromOption(option, resourceURL, resourceDesc))

	return f.do(ctx, url, body, headers, payloadHeader)
}

// signOption builds an Authorization for option, signs it, and returns the
// base64-encoded outer payload to attach to both payment headers.
func (f *Fetcher) signOption(ctx context.Context, option PaymentOption, resourceURL, resourceDesc string) (string, error) {
	amount := option.Amount
	if amount == "" {
		amount = option.MaxAmountRequired
	}
	if amount == "" {
		return "", fmt.Errorf("payment: payment option missing amount")
	}

	payTo, err := normalizeAddress(option.PayTo)
	if err != nil {
		return "", err
	}
	asset, err := normalizeAddress(option.Asset)
	if err != nil {
		return "", err
	}

	nonce, err := randomNonce()
	if err != nil {
		return "", err
	}

	now := time.Now()
	maxTimeout := option.MaxTimeoutSeconds
	if maxTimeout <= 0 {
		maxTimeout = f.defaultMaxTimeoutSeconds
	}
	validAfter := now.Add(-f.validAfterSkew).Unix()
	validBefore := now.Add(time.Duration(maxTimeout) * time.Second).Unix()

	domain := domainFromExtra(option.Extra, option.Network, asset, f.defaultChainID)
	msg := TransferAuthorizationMessage{
		From:        f.signer.Address(),
		To:          payTo,
		Value:       amount,
		ValidAfter:  validAfter,
		ValidBefore: validBefore,
		Nonce:       nonce,
	}

	sig, err := f.signer.SignTypedData(ctx, domain, msg)
	if err != nil {
		return "", fmt.Errorf("payment: signing failed: %w", err)
	}

	outer := outerPayload{
		X402Version: 2,
		Resource: resourceFull{
			URL:         resourceURL,
			Description: resourceDesc,
			MimeType:    "application/json",
		},
		Accepted: option,
		Payload: innerPayload{
			Signature: sig,
			Authorization: Authorization{
				From:        msg.From,
				To:          msg.To,
				Value:       msg.Value,
				ValidAfter:  strconv.FormatInt(validAfter, 10),
				ValidBefore: strconv.FormatInt(validBefore, 10),
				Nonce:       "0x" + hexEncode(nonce[:]),
			},
		},
		Extensions: map[string]any{},
	}

	raw, err := json.Marshal(outer)
	if err != nil {
		return "", fmt.Errorf("payment: failed to marshal payload: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// do sends the request, attaching identical payment-signature and
// x-payment headers when paymentHeader is non-empty (invariant P8).
func (f *Fetcher) do(ctx context.Context, url string, body []byte, headers http.Header, paymentHeader string) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, nil, err
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if paymentHeader != "" {
		req.Header.Set("payment-signature", paymentHeader)
		req.Header.Set("x-payment", paymentHeader)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}
	return resp, respBody, nil
}

func parseRequiredHeader(raw string) (*requiredHeader, error) {
	if raw == "" {
		return nil, fmt.Errorf("payment: missing x-payment-required header")
	}
	decoded, err := base64.URLEncoding.WithPadding(base64.NoPadding).DecodeString(raw)
	if err != nil {
		decoded, err = base64.URLEncoding.DecodeString(raw)
	}
	if err != nil {
		decoded, err = base64.StdEncoding.DecodeString(raw)
	}
	if err != nil {
		return nil, fmt.Errorf("payment: failed to decode x-payment-required: %w", err)
	}

	var h requiredHeader
	if err := json.Unmarshal(decoded, &h); err != nil {
		return nil, fmt.Errorf("payment: failed to parse x-payment-required: %w", err)
	}
	if len(h.Accepts) == 0 {
		return nil, fmt.Errorf("payment: x-payment-required missing accepts")
	}
	return &h, nil
}

func paramsFromOption(option PaymentOption, resourceURL, resourceDesc string) Params {
	name, version := "", ""
	if option.Extra != nil {
		name, version = option.Extra.Name, option.Extra.Version
	}
	return Params{
		PayTo:               option.PayTo,
		Asset:               option.Asset,
		Scheme:              option.Scheme,
		Network:             option.Network,
		DomainName:          name,
		DomainVersion:       version,
		MaxTimeoutSeconds:   option.MaxTimeoutSeconds,
		ResourceURL:         resourceURL,
		ResourceDescription: resourceDesc,
	}
}

// paymentOptionFromParams reconstructs a PaymentOption from cached Params
// plus the caller's estimated amount, for the pre-auth fast path.
func paymentOptionFromParams(p Params, estimatedAmount string) PaymentOption {
	var extra *Extra
	if p.DomainName != "" || p.DomainVersion != "" {
		extra = &Extra{Name: p.DomainName, Version: p.DomainVersion}
	}
	return PaymentOption{
		Scheme:            p.Scheme,
		Network:           p.Network,
		Asset:             p.Asset,
		PayTo:             p.PayTo,
		Amount:            estimatedAmount,
		MaxTimeoutSeconds: p.MaxTimeoutSeconds,
		Extra:             extra,
	}
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
