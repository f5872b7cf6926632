// Command upstream runs a lightweight HTTP mock of the x402-speaking model
// aggregator this proxy forwards to. It is used for local development and
// E2E-style tests without a real aggregator account.
//
// The first request to a given endpoint without a payment header gets a 402
// with an `x-payment-required` header; the retried request carrying
// `payment-signature`/`x-payment` gets served normally. No signature is
// actually verified — this mock only exercises the shape of the handshake.
//
// Environment overrides:
//
//	PORT              — listen port (default 19001)
//	MOCK_LATENCY_MS   — artificial latency added to every response (default 0)
//	MOCK_ERROR_RATE   — fraction [0,1] of requests that return HTTP 500 (default 0)
//	MOCK_STREAM_WORDS — words in streaming response (default 10)
//	MOCK_PAY_TO       — payTo address echoed in the 402 challenge
//	MOCK_ASSET        — asset (token contract) address echoed in the 402 challenge
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"
)

// Config holds runtime configuration for the mock aggregator.
type Config struct {
	LatencyMS   int
	ErrorRate   float64
	StreamWords int
	PayTo       string
	Asset       string
}

func loadConfig() Config {
	c := Config{
		StreamWords: 10,
		PayTo:       "0x000000000000000000000000000000000000f1",
		Asset:       "0x833589fcd6edb6e08f4c7c32d4f71b54bda02913",
	}

	if v := os.Getenv("MOCK_LATENCY_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.LatencyMS = n
		}
	}
	if v := os.Getenv("MOCK_ERROR_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f <= 1 {
			c.ErrorRate = f
		}
	}
	if v := os.Getenv("MOCK_STREAM_WORDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.StreamWords = n
		}
	}
	if v := os.Getenv("MOCK_PAY_TO"); v != "" {
		c.PayTo = v
	}
	if v := os.Getenv("MOCK_ASSET"); v != "" {
		c.Asset = v
	}
	return c
}

func main() {
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	cfg := loadConfig()

	addr := ":" + os.Getenv("PORT")
	if addr == ":" {
		addr = ":19001"
	}

	srv := &http.Server{
		Addr:         addr,
		Handler:      newAggregatorHandler(cfg),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("mock aggregator listening", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.String("error", err.Error()))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down mock aggregator")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}
