package main

import (
	"encoding/base64"
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"
)

var fakeWords = []string{
	"The", "quick", "brown", "fox", "jumps", "over", "the", "lazy", "dog",
	"Hello", "world", "This", "is", "a", "mock", "response", "from", "the",
	"mock", "aggregator", "simulating", "a", "real", "model", "call",
	"for", "development", "and", "testing", "purposes",
}

func fakeSentence(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fakeWords[rand.IntN(len(fakeWords))]
	}
	return strings.Join(words, " ") + "."
}

func applyLatency(cfg Config) {
	if cfg.LatencyMS > 0 {
		time.Sleep(time.Duration(cfg.LatencyMS) * time.Millisecond)
	}
}

func shouldError(cfg Config) bool {
	if cfg.ErrorRate <= 0 {
		return false
	}
	return rand.Float64() < cfg.ErrorRate
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, msg, typ string) {
	writeJSON(w, status, errorResponse{Error: errorDetail{
		Message: msg,
		Type:    typ,
		Code:    strings.ToLower(strings.ReplaceAll(typ, " ", "_")),
	}})
}

// paymentOption mirrors internal/payment.PaymentOption's wire shape.
type paymentOption struct {
	Scheme            string `json:"scheme"`
	Network           string `json:"network"`
	Asset             string `json:"asset"`
	PayTo             string `json:"payTo"`
	MaxAmountRequired string `json:"maxAmountRequired,omitempty"`
	MaxTimeoutSeconds int    `json:"maxTimeoutSeconds,omitempty"`
}

type paymentResource struct {
	URL         string `json:"url"`
	Description string `json:"description"`
}

type requiredHeader struct {
	Accepts  []paymentOption  `json:"accepts"`
	Resource *paymentResource `json:"resource,omitempty"`
}

// challenge writes a 402 Payment Required with an x-payment-required header
// carrying a base64-encoded requiredHeader, per spec §4.4.
func challenge(w http.ResponseWriter, cfg Config, path string, amount string) {
	h := requiredHeader{
		Accepts: []paymentOption{{
			Scheme:            "exact",
			Network:           "base",
			Asset:             cfg.Asset,
			PayTo:             cfg.PayTo,
			MaxAmountRequired: amount,
			MaxTimeoutSeconds: 300,
		}},
		Resource: &paymentResource{URL: path, Description: "chat completion"},
	}
	raw, _ := json.Marshal(h)
	w.Header().Set("x-payment-required", base64.StdEncoding.EncodeToString(raw))
	w.WriteHeader(http.StatusPaymentRequired)
}

// hasPayment reports whether the request carries either payment header —
// no signature verification, this mock only checks presence (invariant
// P8 asks the client to send the same header value on both).
func hasPayment(r *http.Request) bool {
	return r.Header.Get("payment-signature") != "" || r.Header.Get("x-payment") != ""
}
