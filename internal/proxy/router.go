package proxy

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	"github.com/nulpointcorp/llm-proxy/internal/modelregistry"
	"github.com/nulpointcorp/llm-proxy/pkg/apierr"
)

// RouteHandler is a fasthttp handler function.
type RouteHandler = fasthttp.RequestHandler

// ManagementRoutes holds optional management API handler functions
// registered alongside the proxy routes.
type ManagementRoutes struct {
	Metrics RouteHandler
}

// StatsReporter is the external collaborator behind GET /stats — usage-log
// aggregation itself is out of scope here (spec.md §6).
type StatsReporter interface {
	StatsSince(ctx context.Context, days int) (any, error)
}

// Start starts the HTTP server on addr (e.g. "127.0.0.1:8402").
func (g *Gateway) Start(addr string) error {
	return g.StartWithRoutes(addr, nil)
}

// StartWithRoutes starts the HTTP server with optional management routes,
// wiring the endpoint surface from spec.md §4.9.
func (g *Gateway) StartWithRoutes(addr string, mgmt *ManagementRoutes) error {
	r := router.New()

	r.GET("/health", g.handleHealth)
	r.GET("/cache", g.handleCacheStats)
	r.GET("/stats", g.handleStats)
	r.GET("/v1/models", g.handleModels)
	r.POST("/v1/chat/completions", g.handleChatCompletions)
	r.ANY("/v1/x/{path:*}", g.handleTransparentProxy)
	r.ANY("/v1/partner/{path:*}", g.handleTransparentProxy)
	r.ANY("/v1/{path:*}", g.handleChatCompletions)

	if mgmt != nil && mgmt.Metrics != nil {
		r.GET("/metrics", mgmt.Metrics)
	}
	r.NotFound = notFoundHandler

	handler := applyMiddleware(r.Handler,
		recovery,
		requestID,
		timing,
		corsHandler(g.corsOrigins),
		securityHeaders,
		rateLimit(g.limiter),
	)

	srv := &fasthttp.Server{
		Handler:      handler,
		ReadTimeout:  300 * time.Second,
		WriteTimeout: 300 * time.Second,
	}

	return listenWithAdoption(srv, addr)
}

func notFoundHandler(ctx *fasthttp.RequestCtx) {
	ctx.SetStatusCode(fasthttp.StatusNotFound)
	writeJSON(ctx, map[string]string{"error": "not found"})
}

func (g *Gateway) handleChatCompletions(ctx *fasthttp.RequestCtx) {
	g.dispatchChat(ctx)
}

func (g *Gateway) handleHealth(ctx *fasthttp.RequestCtx) {
	resp := map[string]any{"status": "ok", "wallet": g.cfg.Wallet.Address}
	if string(ctx.QueryArgs().Peek("full")) == "true" && g.balanceMon != nil {
		if info, err := g.balanceMon.CheckBalance(context.Background()); err == nil {
			resp["balance_usd"] = info.BalanceUSD
			resp["low_balance"] = info.IsLow
			resp["empty_balance"] = info.IsEmpty
		}
	}
	writeJSON(ctx, resp)
}

func (g *Gateway) handleCacheStats(ctx *fasthttp.RequestCtx) {
	if g.respCache == nil {
		writeJSON(ctx, map[string]any{"enabled": false})
		return
	}
	writeJSON(ctx, g.respCache.GetStats())
}

func (g *Gateway) handleStats(ctx *fasthttp.RequestCtx) {
	reporter, ok := g.usageLogger.(StatsReporter)
	if !ok {
		writeJSON(ctx, map[string]any{"available": false})
		return
	}

	days := 7
	if raw := string(ctx.QueryArgs().Peek("days")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			days = n
		}
	}

	stats, err := reporter.StatsSince(context.Background(), days)
	if err != nil {
		apierr.WriteProxyError(ctx, err.Error())
		return
	}
	writeJSON(ctx, stats)
}

func (g *Gateway) handleModels(ctx *fasthttp.RequestCtx) {
	models := make([]map[string]any, 0, len(modelregistry.Models))
	for id, m := range modelregistry.Models {
		models = append(models, map[string]any{
			"id":                 id,
			"display_name":       m.DisplayName,
			"context_window":     m.ContextWindow,
			"input_price_per_m":  m.InputPricePerM,
			"output_price_per_m": m.OutputPricePerM,
			"reasoning":          m.Reasoning,
			"vision":             m.Vision,
			"agentic":            m.Agentic,
		})
	}
	writeJSON(ctx, map[string]any{"object": "list", "data": models})
}

// handleTransparentProxy implements spec §4.9's `/v1/x/*` and
// `/v1/partner/*` endpoints: forward the request through the payment-fetch
// layer with minimal transformation, no classification or caching.
func (g *Gateway) handleTransparentProxy(ctx *fasthttp.RequestCtx) {
	body := append([]byte(nil), ctx.PostBody()...)
	path := string(ctx.Path())
	headers := http.Header{"Content-Type": []string{string(ctx.Request.Header.ContentType())}}

	resp, respBody, err := g.fetcher.Fetch(context.Background(), path, g.cfg.Upstream.BaseURL+path, body, headers, "")
	if err != nil {
		apierr.WriteProxyError(ctx, err.Error())
		return
	}
	defer resp.Body.Close()

	ctx.SetStatusCode(resp.StatusCode)
	ctx.SetContentType(resp.Header.Get("Content-Type"))
	ctx.SetBody(respBody)
}

func writeJSON(ctx *fasthttp.RequestCtx, v any) {
	ctx.SetContentType("application/json")
	data, _ := json.Marshal(v)
	ctx.SetBody(data)
}
