// Package payment implements the HTTP-402 payment-required handshake (C2)
// and its per-endpoint payment cache (C1), as described in spec §4.3/§4.4
// and the bit-exact wire shapes in spec §6.
//
// EIP-712 signing and RPC balance reads are consumed through interfaces
// (Signer here; BalanceReader in internal/balance) so this package stays
// crypto-agnostic, mirroring how internal/providers/bedrock/bedrock.go
// keeps request signing next to the raw net/http call it authorizes.
package payment

import (
	"context"
	"time"
)

// PaymentOption is one entry of a 402 response's `accepts` array.
type PaymentOption struct {
	Scheme            string `json:"scheme"`
	Network           string `json:"network"`
	Asset             string `json:"asset"`
	PayTo             string `json:"payTo"`
	Amount            string `json:"amount,omitempty"`
	MaxAmountRequired string `json:"maxAmountRequired,omitempty"`
	MaxTimeoutSeconds int    `json:"maxTimeoutSeconds,omitempty"`
	Extra             *Extra `json:"extra,omitempty"`
}

// Extra carries the optional EIP-712 domain name/version override.
type Extra struct {
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
}

// Resource describes the paid endpoint, echoed back in the outer payload.
type Resource struct {
	URL         string `json:"url"`
	Description string `json:"description"`
}

// requiredHeader is the decoded shape of the `x-payment-required` header.
type requiredHeader struct {
	Accepts  []PaymentOption `json:"accepts"`
	Resource *Resource       `json:"resource,omitempty"`
}

// Authorization is the EIP-712 TransferWithAuthorization message.
type Authorization struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	ValidAfter  string `json:"validAfter"`
	ValidBefore string `json:"validBefore"`
	Nonce       string `json:"nonce"`
}

// innerPayload is the `payload` field of the outer x402 envelope.
type innerPayload struct {
	Signature     string        `json:"signature"`
	Authorization Authorization `json:"authorization"`
}

// resourceFull is the outer payload's resource, with a fixed mime type.
type resourceFull struct {
	URL         string `json:"url"`
	Description string `json:"description"`
	MimeType    string `json:"mimeType"`
}

// outerPayload is the full structure base64-encoded into the
// payment-signature/x-payment headers, per spec §6.
type outerPayload struct {
	X402Version int            `json:"x402Version"`
	Resource    resourceFull   `json:"resource"`
	Accepted    PaymentOption  `json:"accepted"`
	Payload     innerPayload   `json:"payload"`
	Extensions  map[string]any `json:"extensions"`
}

// Params is the per-endpoint cache entry (C1): the payment parameters
// derived from the most recent 402 response for that endpoint.
type Params struct {
	PayTo                string
	Asset                string
	Scheme               string
	Network              string
	DomainName           string
	DomainVersion        string
	MaxTimeoutSeconds    int
	ResourceURL          string
	ResourceDescription  string
	CachedAt             time.Time
}

// EIP712Domain is the typed-data domain signed over.
type EIP712Domain struct {
	Name              string
	Version           string
	ChainID           int64
	VerifyingContract string
}

// TransferAuthorizationMessage is the typed-data message signed over; it
// mirrors Authorization but with the nonce as raw bytes for the signer.
type TransferAuthorizationMessage struct {
	From        string
	To          string
	Value       string
	ValidAfter  int64
	ValidBefore int64
	Nonce       [32]byte
}

// Signer signs an EIP-712 TransferWithAuthorization payload and exposes the
// payer's wallet address. Implemented by an external collaborator; this
// package only depends on the interface (spec §9).
type Signer interface {
	Address() string
	SignTypedData(ctx context.Context, domain EIP712Domain, msg TransferAuthorizationMessage) (signatureHex string, err error)
}
