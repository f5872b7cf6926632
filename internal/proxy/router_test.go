package proxy

import (
	"encoding/json"
	"testing"

	"github.com/valyala/fasthttp"

	"github.com/nulpointcorp/llm-proxy/internal/config"
)

func newTestFasthttpServer() *fasthttp.Server {
	return &fasthttp.Server{
		Handler: func(ctx *fasthttp.RequestCtx) {
			ctx.SetStatusCode(fasthttp.StatusOK)
		},
	}
}

func newTestGateway() *Gateway {
	return &Gateway{
		cfg: &config.Config{
			Wallet: config.WalletConfig{Address: "0xabc"},
		},
	}
}

func TestHandleHealth_Basic(t *testing.T) {
	g := newTestGateway()
	ctx := &fasthttp.RequestCtx{}
	g.handleHealth(ctx)

	var body map[string]any
	if err := json.Unmarshal(ctx.Response.Body(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %v", body["status"])
	}
	if body["wallet"] != "0xabc" {
		t.Errorf("expected wallet address echoed, got %v", body["wallet"])
	}
}

func TestHandleHealth_FullWithoutBalanceMonitorOmitsBalance(t *testing.T) {
	g := newTestGateway()
	ctx := &fasthttp.RequestCtx{}
	ctx.QueryArgs().Set("full", "true")
	g.handleHealth(ctx)

	var body map[string]any
	json.Unmarshal(ctx.Response.Body(), &body)
	if _, ok := body["balance_usd"]; ok {
		t.Error("expected no balance info when balance monitor is nil")
	}
}

func TestHandleCacheStats_DisabledWhenNilCache(t *testing.T) {
	g := newTestGateway()
	ctx := &fasthttp.RequestCtx{}
	g.handleCacheStats(ctx)

	var body map[string]any
	json.Unmarshal(ctx.Response.Body(), &body)
	if body["enabled"] != false {
		t.Errorf("expected enabled=false with nil response cache, got %v", body)
	}
}

func TestHandleStats_UnavailableWithoutReporter(t *testing.T) {
	g := newTestGateway()
	ctx := &fasthttp.RequestCtx{}
	g.handleStats(ctx)

	var body map[string]any
	json.Unmarshal(ctx.Response.Body(), &body)
	if body["available"] != false {
		t.Errorf("expected available=false without a StatsReporter usage logger, got %v", body)
	}
}

func TestHandleModels_ListsRegistry(t *testing.T) {
	g := newTestGateway()
	ctx := &fasthttp.RequestCtx{}
	g.handleModels(ctx)

	var body struct {
		Object string           `json:"object"`
		Data   []map[string]any `json:"data"`
	}
	if err := json.Unmarshal(ctx.Response.Body(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body.Object != "list" {
		t.Errorf("expected object=list, got %q", body.Object)
	}
	if len(body.Data) == 0 {
		t.Error("expected at least one model listed")
	}
}

func TestNotFoundHandler(t *testing.T) {
	ctx := &fasthttp.RequestCtx{}
	notFoundHandler(ctx)
	if ctx.Response.StatusCode() != fasthttp.StatusNotFound {
		t.Errorf("expected 404, got %d", ctx.Response.StatusCode())
	}
}

func TestWriteJSON(t *testing.T) {
	ctx := &fasthttp.RequestCtx{}
	writeJSON(ctx, map[string]string{"hello": "world"})
	if string(ctx.Response.Header.ContentType()) != "application/json" {
		t.Errorf("expected application/json content type, got %s", ctx.Response.Header.ContentType())
	}
	var body map[string]string
	json.Unmarshal(ctx.Response.Body(), &body)
	if body["hello"] != "world" {
		t.Errorf("expected round-tripped body, got %v", body)
	}
}
