package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownGrace     = 15 * time.Second
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	hub := newHub()
	go hub.run()

	// Separate buckets per surface: signaling transports (/ws, /sse) see one
	// client per connection lifetime, while the REST endpoints (room-id, TURN
	// credentials, diagnostic token) get their own headroom so a noisy WS
	// dialer doesn't starve a legitimate client minting a room.
	wsLimiter := NewIPLimiter(2, 5)
	restLimiter := NewIPLimiter(5, 10)

	mux := http.NewServeMux()
	mux.Handle("/ws", rateLimitMiddleware(wsLimiter, handleWS(hub)))
	mux.Handle("/sse", rateLimitMiddleware(wsLimiter, handleSSE(hub)))
	mux.Handle("/api/room-id", rateLimitMiddleware(restLimiter, corsMiddleware(handleRoomID)))
	mux.Handle("/api/turn-credentials", rateLimitMiddleware(restLimiter, corsMiddleware(handleTurnCredentials(turnCallTokens, turnDiagnosticTokens))))
	mux.Handle("/api/diagnostic-token", rateLimitMiddleware(restLimiter, corsMiddleware(handleDiagnosticToken(turnDiagnosticTokens))))
	mux.Handle("/api/internal/stats", handleInternalStats(hub))
	mux.Handle("/metrics", handleMetrics(hub))
	mux.HandleFunc("/device-check", handleDeviceCheck)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("[SERVER] listening on :%s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[SERVER] ListenAndServe failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("[SERVER] shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[SERVER] graceful shutdown failed: %v", err)
	}
}
