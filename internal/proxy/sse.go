package proxy

import (
	"bufio"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

const heartbeatInterval = 2 * time.Second

var thinkTagPattern = regexp.MustCompile(`(?s)<think>.*?</think>`)

// upstreamChatResponse is the minimal shape streamChat needs to read out of
// a buffered OpenAI-compatible chat completion body.
type upstreamChatResponse struct {
	Choices []struct {
		Message struct {
			Role      string          `json:"role"`
			Content   string          `json:"content"`
			ToolCalls json.RawMessage `json:"tool_calls,omitempty"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// streamChat implements spec §4.9 step 13/16: the client sees SSE framing
// immediately (headers + a first heartbeat), heartbeats continue on a 2s
// ticker while the upstream call is in flight (the proxy always asks the
// upstream for a buffered, non-streaming response — see normalizeBody in
// the dispatch pipeline), and once the buffered JSON response arrives it is
// transcoded into a role-chunk, a content-chunk, an optional tool_calls
// chunk, and a finish_reason chunk before the [DONE] terminator.
func streamChat(ctx *fasthttp.RequestCtx, contextUsedKB, contextLimitKB int, fetch func() attemptResult) {
	ctx.SetContentType("text/event-stream")
	ctx.Response.Header.Set("Cache-Control", "no-cache")
	ctx.Response.Header.Set("Connection", "keep-alive")
	ctx.Response.Header.Set("x-context-used-kb", strconv.Itoa(contextUsedKB))
	ctx.Response.Header.Set("x-context-limit-kb", strconv.Itoa(contextLimitKB))
	ctx.SetStatusCode(fasthttp.StatusOK)

	done := make(chan attemptResult, 1)
	go func() { done <- fetch() }()

	ctx.SetBodyStreamWriter(func(w *bufio.Writer) {
		defer func() { recover() }() //nolint:errcheck

		fmt.Fprint(w, ": heartbeat\n\n")
		w.Flush() //nolint:errcheck

		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()

		var result attemptResult
	waitLoop:
		for {
			select {
			case result = <-done:
				break waitLoop
			case <-ticker.C:
				fmt.Fprint(w, ": heartbeat\n\n")
				w.Flush() //nolint:errcheck
			}
		}

		writeTranscodedChunks(w, result)

		fmt.Fprint(w, "data: [DONE]\n\n")
		w.Flush() //nolint:errcheck
	})
}

// writeTranscodedChunks emits a buffered chat completion as a small sequence
// of SSE delta chunks, since the upstream aggregator is always called
// non-streaming (spec §4.9 step 9).
func writeTranscodedChunks(w *bufio.Writer, result attemptResult) {
	if result.Err != nil || result.StatusCode < 200 || result.StatusCode >= 300 {
		errChunk := map[string]any{
			"error": map[string]any{
				"message": errMessage(result),
				"type":    "provider_error",
			},
		}
		data, _ := json.Marshal(errChunk)
		fmt.Fprintf(w, "data: %s\n\n", data)
		w.Flush() //nolint:errcheck
		return
	}

	var parsed upstreamChatResponse
	if err := json.Unmarshal(result.Body, &parsed); err != nil || len(parsed.Choices) == 0 {
		fmt.Fprintf(w, "data: %s\n\n", result.Body)
		w.Flush() //nolint:errcheck
		return
	}
	choice := parsed.Choices[0]

	writeChunk(w, map[string]any{"role": choice.Message.Role})

	content := thinkTagPattern.ReplaceAllString(choice.Message.Content, "")
	if content != "" {
		writeChunk(w, map[string]any{"content": content})
	}

	if len(choice.Message.ToolCalls) > 0 && string(choice.Message.ToolCalls) != "null" {
		var toolCalls any
		if err := json.Unmarshal(choice.Message.ToolCalls, &toolCalls); err == nil {
			writeChunk(w, map[string]any{"tool_calls": toolCalls})
		}
	}

	finish := choice.FinishReason
	if finish == "" {
		finish = "stop"
	}
	delta := map[string]any{
		"id":      "chatcmpl-stream",
		"object":  "chat.completion.chunk",
		"choices": []map[string]any{{"index": 0, "delta": map[string]any{}, "finish_reason": finish}},
	}
	data, _ := json.Marshal(delta)
	fmt.Fprintf(w, "data: %s\n\n", data)
	w.Flush() //nolint:errcheck
}

func writeChunk(w *bufio.Writer, delta map[string]any) {
	chunk := map[string]any{
		"id":      "chatcmpl-stream",
		"object":  "chat.completion.chunk",
		"choices": []map[string]any{{"index": 0, "delta": delta, "finish_reason": nil}},
	}
	data, _ := json.Marshal(chunk)
	fmt.Fprintf(w, "data: %s\n\n", data)
	w.Flush() //nolint:errcheck
}

func errMessage(result attemptResult) string {
	if result.Err != nil {
		return result.Err.Error()
	}
	msg := strings.TrimSpace(string(result.Body))
	if msg == "" {
		return fmt.Sprintf("upstream returned status %d", result.StatusCode)
	}
	return msg
}
