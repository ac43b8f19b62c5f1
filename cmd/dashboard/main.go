// cmd/dashboard serves the WebSocket gateway and REST endpoints that fan
// live updates out to dashboard clients. It subscribes to the Redis update
// channel and relays messages to connected clients by subscription.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tradesignals/config"
	"tradesignals/internal/gateway"
	"tradesignals/internal/logger"
	"tradesignals/internal/metrics"
	redisstore "tradesignals/internal/store/redis"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	logger.Init("dashboard", logger.LevelFromEnv())
	log.Println("[dashboard] starting...")

	cfg := config.Load(":9101")
	symbols := cfg.ParseSymbols()
	start := time.Now()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("[dashboard] shutting down...")
		cancel()
	}()

	met := metrics.New()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr)
	metricsSrv.Start()

	reader, err := redisstore.NewReader(redisstore.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		log.Fatalf("[dashboard] %v", err)
	}
	defer reader.Close()

	hub := gateway.NewHub(reader, symbols, met)
	pubsub := reader.SubscribeUpdates(ctx)
	defer pubsub.Close()
	go hub.Run(ctx, pubsub.Channel())

	mux := http.NewServeMux()
	gateway.RegisterRoutes(mux, hub, start)

	srv := &http.Server{
		Addr:         cfg.DashboardAddr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	go func() {
		log.Printf("[dashboard] listening on %s", cfg.DashboardAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[dashboard] server error: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[dashboard] shutdown: %v", err)
	}
	metricsSrv.Stop(shutdownCtx)
	log.Println("[dashboard] stopped")
}
