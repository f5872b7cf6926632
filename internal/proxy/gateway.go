package proxy

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"math/big"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/valyala/fasthttp"

	"github.com/nulpointcorp/llm-proxy/internal/balance"
	"github.com/nulpointcorp/llm-proxy/internal/cache"
	"github.com/nulpointcorp/llm-proxy/internal/classifier"
	"github.com/nulpointcorp/llm-proxy/internal/config"
	"github.com/nulpointcorp/llm-proxy/internal/dedup"
	"github.com/nulpointcorp/llm-proxy/internal/metrics"
	"github.com/nulpointcorp/llm-proxy/internal/modelregistry"
	"github.com/nulpointcorp/llm-proxy/internal/payment"
	"github.com/nulpointcorp/llm-proxy/internal/session"
	"github.com/nulpointcorp/llm-proxy/internal/tier"
	"github.com/nulpointcorp/llm-proxy/pkg/apierr"
)

// UsageLogger is the external collaborator that writes one usage-log line
// per completed request. Writing the file itself is out of scope here (see
// spec.md §6) — the Proxy Core only calls this interface.
type UsageLogger interface {
	LogUsage(ctx context.Context, entry UsageEntry)
}

// RequestLimiter gates ingress traffic ahead of classification/dispatch.
// Implemented by an external collaborator (e.g. a Redis sliding window);
// nil disables ingress rate limiting entirely.
type RequestLimiter interface {
	Allow(ctx context.Context) (bool, error)
}

// UsageEntry is the data passed to the usage-log external collaborator for
// one completed (or failed) request.
type UsageEntry struct {
	RequestID   string
	Model       string
	Tier        string
	Profile     string
	InputTokens int
	OutputToken int
	CostUSD     float64
	StatusCode  int
	LowBalance  bool
	CacheHit    bool
	Dedup       bool
}

// Gateway wires every component (classifier, model registry, payment,
// balance, dedup, response cache, session store) into the single chat
// completion dispatch pipeline described by spec.md §4.9.
type Gateway struct {
	cfg *config.Config
	log *slog.Logger

	fetcher    *payment.Fetcher
	balanceMon *balance.Monitor
	dedup      *dedup.Deduplicator
	respCache  *cache.ResponseCache
	sessions   *session.Store
	cooldowns  *cooldownMap
	metrics    *metrics.Registry

	usageLogger UsageLogger
	limiter     RequestLimiter

	corsOrigins []string
}

// SetRequestLimiter wires an optional ingress rate limiter. Must be called
// before StartWithRoutes.
func (g *Gateway) SetRequestLimiter(l RequestLimiter) {
	g.limiter = l
}

// NewGateway assembles a Gateway from its already-constructed components.
// cfg and fetcher are required; any other component may be nil, and the
// corresponding pipeline step is then skipped.
func NewGateway(
	cfg *config.Config,
	log *slog.Logger,
	fetcher *payment.Fetcher,
	balanceMon *balance.Monitor,
	dd *dedup.Deduplicator,
	respCache *cache.ResponseCache,
	sessions *session.Store,
	reg *metrics.Registry,
	usageLogger UsageLogger,
) *Gateway {
	cooldown := cfg.Fallback.RateLimitCooldown
	return &Gateway{
		cfg:         cfg,
		log:         log,
		fetcher:     fetcher,
		balanceMon:  balanceMon,
		dedup:       dd,
		respCache:   respCache,
		sessions:    sessions,
		cooldowns:   newCooldownMap(cooldown),
		metrics:     reg,
		usageLogger: usageLogger,
		corsOrigins: cfg.CORSOrigins,
	}
}

// chatMessage is the minimal shape the dispatch pipeline needs out of an
// inbound chat-completion message.
type chatMessage struct {
	Role             string          `json:"role"`
	Content          json.RawMessage `json:"content,omitempty"`
	ToolCallID       string          `json:"tool_call_id,omitempty"`
	ToolCalls        json.RawMessage `json:"tool_calls,omitempty"`
	Name             string          `json:"name,omitempty"`
	ReasoningContent *string         `json:"reasoning_content,omitempty"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Stream    bool          `json:"stream"`
	MaxTokens int           `json:"max_tokens"`
	Messages  []chatMessage `json:"messages"`
}

var structuredOutputPattern = regexp.MustCompile(`(?i)json|structured|schema`)

// dispatchChat implements the full 18-step chat-completion lifecycle from
// spec.md §4.9.
func (g *Gateway) dispatchChat(ctx *fasthttp.RequestCtx) {
	requestID, _ := ctx.UserValue("request_id").(string)

	// step 1: read the entire body.
	rawBody := append([]byte(nil), ctx.PostBody()...)

	// step 2: parse JSON.
	var req chatRequest
	if err := json.Unmarshal(rawBody, &req); err != nil {
		apierr.Write(ctx, fasthttp.StatusBadRequest, "invalid JSON body", apierr.TypeInvalidRequest, apierr.CodeInvalidRequest)
		return
	}

	// step 3: model alias resolution.
	requested := req.Model
	profile := ""
	model := ""
	if norm, ok := modelregistry.IsProfileName(requested); ok {
		profile = norm
	} else {
		model = modelregistry.ResolveAlias(requested)
	}

	lowBalance := false

	// step 4: free profile shortcut. With no signer service configured no
	// payment can be signed, so every request takes this path.
	if profile == "free" || g.cfg.Signer.ServiceURL == "" {
		model = g.cfg.Routing.FreeModel
		g.dispatchWithModel(ctx, requestID, req, rawBody, model, "free", tier.Simple, classifier.Decision{}, lowBalance)
		return
	}
	if profile == "" {
		profile = "auto"
	}

	// step 5: session pin.
	sessionID := string(ctx.Request.Header.Peek(g.cfg.Session.HeaderName))
	var decision classifier.Decision
	haveDecision := false
	if g.cfg.Session.Enabled && g.sessions != nil && sessionID != "" {
		if entry, ok := g.sessions.Get(sessionID); ok {
			if pinned, ok := entry.Data["model"].(string); ok && pinned != "" {
				model = pinned
				g.sessions.TouchSession(sessionID)
				haveDecision = true
			}
		}
	}

	prompt, systemPrompt := extractPromptAndSystem(req.Messages)
	if !haveDecision {
		decision = classifier.Classify(classifier.Input{Prompt: prompt, SystemPrompt: systemPrompt}, g.cfg.Routing)
		decision = g.applyOverrides(decision, systemPrompt, prompt)
		if g.metrics != nil {
			g.metrics.RecordRoutingDecision(decision.Tier.String(), decision.Method, model)
			g.metrics.ObserveRoutingConfidence(decision.Tier.String(), decision.Confidence)
		}
	}

	// step 7: tier table pick.
	tableKey := tableName(profile, decision)
	table, ok := modelregistry.Profiles[tableKey]
	if !ok {
		table = modelregistry.Profiles["auto"]
	}

	if model == "" {
		sel := modelregistry.SelectModel(decision.Tier, decision.Confidence, decision.Method, decision.Reasoning,
			table, classifier.EstimateTokens(prompt+systemPrompt), req.MaxTokens, profile)
		model = sel.ModelID
	}

	if g.cfg.Session.Enabled && g.sessions != nil && sessionID != "" && !haveDecision {
		g.sessions.SetSession(sessionID, map[string]any{"model": model})
	}

	g.dispatchWithModel(ctx, requestID, req, rawBody, model, profile, decision.Tier, decision, lowBalance)
}

// applyOverrides implements spec §4.9 step 6's ambiguous-default tier,
// token-limit and structured-output tier floors.
func (g *Gateway) applyOverrides(d classifier.Decision, systemPrompt, prompt string) classifier.Decision {
	if d.Ambiguous {
		def := tier.Medium
		if t, ok := tier.Parse(g.cfg.Routing.AmbiguousDefaultTier); ok {
			def = t
		}
		d.Tier = def
	}
	estTokens := classifier.EstimateTokens(systemPrompt + prompt)
	limit := g.cfg.Routing.MaxTokensForceComplex
	if limit <= 0 {
		limit = 100000
	}
	if estTokens > limit {
		d.Tier = tier.Complex
		d.Confidence = 0.95
		d.Reasoning = "Input exceeds token threshold for this tier"
		d.Method = "override"
	}
	if structuredOutputPattern.MatchString(systemPrompt) {
		min := tier.Medium
		if t, ok := tier.Parse(g.cfg.Routing.StructuredOutputMinTier); ok {
			min = t
		}
		d.Tier = tier.Max(d.Tier, min)
	}
	return d
}

// dispatchWithModel runs steps 8-18 once the model/profile/tier for this
// request are settled.
func (g *Gateway) dispatchWithModel(
	ctx *fasthttp.RequestCtx,
	requestID string,
	req chatRequest,
	rawBody []byte,
	model, profile string,
	t tier.Tier,
	decision classifier.Decision,
	lowBalance bool,
) {
	estIn := classifier.EstimateTokens(string(rawBody))
	estOut := req.MaxTokens
	if estOut <= 0 {
		estOut = 1024
	}

	// step 10: balance check.
	if profile != "free" && g.balanceMon != nil {
		estMicro := estimateCostMicroUSD(model, estIn, estOut)
		if !g.balanceMon.CheckSufficient(estMicro) {
			lowBalance = true
			model = g.cfg.Routing.FreeModel
			if g.metrics != nil {
				g.metrics.SetBalance(0, true)
			}
		}
	}

	normalizedBody := normalizeBody(rawBody, model, req.Messages)

	// step 11: dedup.
	dedupKey := ""
	if g.dedup != nil {
		dedupKey = dedup.Key(normalizedBody)
		if cached, ok := g.dedup.GetCached(dedupKey); ok {
			writeDedupResult(ctx, cached)
			return
		}
		if wait, read, ok := g.dedup.GetInflight(dedupKey); ok {
			<-wait
			writeDedupResult(ctx, read())
			if g.metrics != nil {
				g.metrics.RecordDedupCoalesced()
			}
			return
		}
		g.dedup.MarkInflight(dedupKey)
	}

	// step 12: response cache.
	cacheKey := ""
	if g.respCache != nil && !req.Stream && g.respCache.ShouldCache(normalizedBody, string(ctx.Request.Header.Peek("Cache-Control"))) {
		cacheKey = cache.Key(normalizedBody)
		if entry, ok := g.respCache.Get(cacheKey); ok {
			g.completeDedup(dedupKey, dedup.Result{Body: entry.Body, StatusCode: entry.StatusCode, Headers: entry.Headers, Model: entry.Model})
			ctx.SetStatusCode(entry.StatusCode)
			ctx.SetContentType("application/json")
			ctx.SetBody(entry.Body)
			return
		}
	}

	var candidates []string
	if lowBalance {
		// Downgraded to the free model — never let a free-model failure fall
		// through to a paid candidate and sign a payment despite the downgrade.
		candidates = []string{model}
	} else {
		table, tableOK := modelregistry.Profiles[tableName(profile, decision)]
		if !tableOK {
			table = modelregistry.Profiles["auto"]
		}
		candidates = candidateChain(t, table, estIn+estOut, g.cooldowns, g.cfg.Fallback.MaxAttempts)
		if len(candidates) == 0 {
			candidates = []string{model}
		} else if candidates[0] != model {
			candidates = append([]string{model}, candidates...)
		}
	}

	attemptFn := func(ctx2 context.Context, attemptModel string) attemptResult {
		if g.cfg.Fallback.AttemptTimeout > 0 {
			var cancel context.CancelFunc
			ctx2, cancel = context.WithTimeout(ctx2, g.cfg.Fallback.AttemptTimeout)
			defer cancel()
		}
		body := normalizeBody(rawBody, attemptModel, req.Messages)
		estAmount := strconv.FormatInt(estimateCostMicroUSD(attemptModel, estIn, estOut).Int64(), 10)
		headers := http.Header{"Content-Type": []string{"application/json"}}
		resp, respBody, err := g.fetcher.Fetch(ctx2, "/v1/chat/completions", g.cfg.Upstream.BaseURL+"/v1/chat/completions", body, headers, estAmount)
		if err != nil {
			return attemptResult{Model: attemptModel, Err: err}
		}
		defer resp.Body.Close()

		status := resp.StatusCode
		if status >= 200 && status < 300 {
			content, _ := extractAssistantContent(respBody)
			if isDegradedResponse(content, respBody) {
				status = http.StatusServiceUnavailable
			}
		}
		return attemptResult{Model: attemptModel, StatusCode: status, Body: respBody, Headers: headersFrom(resp)}
	}

	if req.Stream {
		contextUsedKB := len(rawBody) / 1024
		contextLimitKB := modelregistry.ContextWindow(model) * 4 / 1024
		streamChat(ctx, contextUsedKB, contextLimitKB, func() attemptResult {
			res, _ := runFallbackChain(context.Background(), candidates, g.cooldowns, attemptFn)
			g.finalizeAttempt(dedupKey, cacheKey, res, requestID, model, profile, t, lowBalance, estIn, estOut)
			return res
		})
		return
	}

	res, chainErr := runFallbackChain(context.Background(), candidates, g.cooldowns, attemptFn)
	if chainErr != nil && (res.StatusCode == 0) {
		g.removeDedup(dedupKey)
		apierr.WriteAllProvidersUnavailable(ctx, "all candidate models failed")
		return
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		g.completeDedup(dedupKey, dedup.Result{Body: res.Body, StatusCode: res.StatusCode, Model: res.Model})
		if res.StatusCode == http.StatusPaymentRequired {
			writePaymentError(ctx, res.Body, g.cfg.Wallet.Address)
			return
		}
		apierr.WriteProviderError(ctx, res.StatusCode, errMessage(res))
		return
	}

	g.finalizeAttempt(dedupKey, cacheKey, res, requestID, model, profile, t, lowBalance, estIn, estOut)

	ctx.SetStatusCode(res.StatusCode)
	ctx.SetContentType("application/json")
	ctx.SetBody(res.Body)
}

// finalizeAttempt implements spec §4.9 step 18: publish to dedup waiters,
// insert into the response cache, deduct the estimated spend, and emit one
// usage-log line.
func (g *Gateway) finalizeAttempt(
	dedupKey, cacheKey string,
	res attemptResult,
	requestID, model, profile string,
	t tier.Tier,
	lowBalance bool,
	estIn, estOut int,
) {
	result := dedup.Result{Body: res.Body, StatusCode: res.StatusCode, Headers: res.Headers, Model: res.Model}
	g.completeDedup(dedupKey, result)

	if g.respCache != nil && cacheKey != "" && res.StatusCode >= 200 && res.StatusCode < 300 {
		g.respCache.Set(cacheKey, &cache.ResponseEntry{
			Body:       res.Body,
			StatusCode: res.StatusCode,
			Headers:    res.Headers,
			Model:      res.Model,
		}, g.cfg.Cache.DefaultTTL)
	}

	if g.balanceMon != nil && profile != "free" {
		g.balanceMon.DeductEstimated(estimateCostMicroUSD(model, estIn, estOut))
	}

	if g.usageLogger != nil {
		g.usageLogger.LogUsage(context.Background(), UsageEntry{
			RequestID:   requestID,
			Model:       res.Model,
			Tier:        t.String(),
			Profile:     profile,
			InputTokens: estIn,
			OutputToken: estOut,
			StatusCode:  res.StatusCode,
			LowBalance:  lowBalance,
		})
	}
}

func (g *Gateway) completeDedup(key string, result dedup.Result) {
	if g.dedup == nil || key == "" {
		return
	}
	g.dedup.Complete(key, result)
}

func (g *Gateway) removeDedup(key string) {
	if g.dedup == nil || key == "" {
		return
	}
	g.dedup.RemoveInflight(key)
}

func tableName(profile string, d classifier.Decision) string {
	if profile == "auto" && d.AgenticScore >= 0.5 {
		return "agentic"
	}
	if profile == "" {
		return "auto"
	}
	return profile
}

// writeDedupResult replays a previously-completed or in-flight-originator
// result to a coalesced waiter (spec §4.9 step 11).
func writeDedupResult(ctx *fasthttp.RequestCtx, result dedup.Result) {
	ctx.SetStatusCode(result.StatusCode)
	ctx.SetContentType("application/json")
	ctx.SetBody(result.Body)
}

// estimateCostMicroUSD implements spec §4.9 step 10's cost estimate:
// ceil(1.2 * (in+out) * price) micro-USD with a 100 micro-USD floor.
func estimateCostMicroUSD(modelID string, estIn, estOut int) *big.Int {
	m, ok := modelregistry.Lookup(modelID)
	if !ok {
		return big.NewInt(100)
	}
	costUSD := 1.2 * (float64(estIn)*m.InputPricePerM + float64(estOut)*m.OutputPricePerM) / 1e6
	micro := int64(math.Ceil(costUSD * 1e6))
	if micro < 100 {
		micro = 100
	}
	return big.NewInt(micro)
}

// extractPromptAndSystem finds the last user message and the first system
// message per spec §4.9 step 6.
func extractPromptAndSystem(messages []chatMessage) (prompt, system string) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			prompt = contentToString(messages[i].Content)
			break
		}
	}
	for _, m := range messages {
		if m.Role == "system" {
			system = contentToString(m.Content)
			break
		}
	}
	return prompt, system
}

func contentToString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func extractAssistantContent(body []byte) (string, error) {
	var parsed upstreamChatResponse
	if err := json.Unmarshal(body, &parsed); err != nil || len(parsed.Choices) == 0 {
		return "", err
	}
	return parsed.Choices[0].Message.Content, nil
}

func headersFrom(resp *http.Response) http.Header {
	if resp == nil {
		return nil
	}
	return resp.Header
}

var toolIDSanitizer = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// normalizeBody implements spec §4.9 step 8: per-attempt model normalization
// applied to the outbound request body before it reaches a specific model.
func normalizeBody(rawBody []byte, model string, messages []chatMessage) []byte {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(rawBody, &obj); err != nil {
		return rawBody
	}

	modelJSON, _ := json.Marshal(model)
	obj["model"] = modelJSON
	obj["stream"] = []byte("false")

	normalized := normalizeMessages(messages, model)
	if msgJSON, err := json.Marshal(normalized); err == nil {
		obj["messages"] = msgJSON
	}

	out, err := json.Marshal(obj)
	if err != nil {
		return rawBody
	}
	return out
}

const maxMessages = 200

func normalizeMessages(messages []chatMessage, model string) []chatMessage {
	out := make([]chatMessage, 0, len(messages))
	for i := range messages {
		m := messages[i]
		if m.ToolCallID != "" {
			m.ToolCallID = toolIDSanitizer.ReplaceAllString(m.ToolCallID, "_")
		}
		out = append(out, m)
	}

	if len(out) > maxMessages {
		kept := make([]chatMessage, 0, maxMessages)
		for _, m := range out {
			if m.Role == "system" {
				kept = append(kept, m)
			}
		}
		tail := out[len(out)-maxMessages:]
		for _, m := range tail {
			if m.Role != "system" {
				kept = append(kept, m)
			}
		}
		out = kept
	}

	if strings.Contains(model, "gemini") && len(out) > 0 {
		firstNonSystem := -1
		for i, m := range out {
			if m.Role != "system" {
				firstNonSystem = i
				break
			}
		}
		if firstNonSystem >= 0 && (out[firstNonSystem].Role == "assistant" || out[firstNonSystem].Role == "model") {
			placeholder := chatMessage{Role: "user", Content: json.RawMessage(`"(continuing conversation)"`)}
			out = append(out[:firstNonSystem], append([]chatMessage{placeholder}, out[firstNonSystem:]...)...)
		}
	}

	if mm, ok := modelregistry.Lookup(modelregistry.ResolveAlias(model)); ok && mm.Reasoning {
		empty := ""
		for i := range out {
			if out[i].Role == "assistant" && len(out[i].ToolCalls) > 0 && out[i].ReasoningContent == nil {
				out[i].ReasoningContent = &empty
			}
		}
	}

	return out
}
