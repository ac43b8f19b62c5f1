// cmd/livefeed runs the live signal pipeline: it streams closed candles from
// Binance for every configured symbol, computes indicators and signals,
// tracks positions, and publishes updates to Redis for the dashboard.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tradesignals/config"
	"tradesignals/internal/feed"
	"tradesignals/internal/live"
	"tradesignals/internal/logger"
	"tradesignals/internal/metrics"
	"tradesignals/internal/model"
	"tradesignals/internal/notification"
	redisstore "tradesignals/internal/store/redis"
	sqlitestore "tradesignals/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	logger.Init("livefeed", logger.LevelFromEnv())
	log.Println("[livefeed] starting...")

	cfg := config.Load(":9100")
	strat, err := config.LoadStrategy(cfg.StrategyPath)
	if err != nil {
		log.Fatalf("[livefeed] %v", err)
	}
	symbols := cfg.ParseSymbols()
	log.Printf("[livefeed] symbols=%v timeframe=%s", symbols, cfg.Timeframe)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("[livefeed] shutting down...")
		cancel()
	}()

	met := metrics.New()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr)
	metricsSrv.Start()

	pub, err := redisstore.NewPublisher(redisstore.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		log.Fatalf("[livefeed] %v", err)
	}
	defer pub.Close()
	pub.OnDrop = func() { met.RedisDrops.Inc() }

	store, err := sqlitestore.New(sqlitestore.Config{DBPath: cfg.SQLitePath})
	if err != nil {
		log.Fatalf("[livefeed] %v", err)
	}
	defer store.Close()

	candleCh := make(chan model.Candle, 1024)
	go store.Run(ctx, candleCh)

	var notifier notification.Notifier = notification.NewLogNotifier()
	if cfg.WebhookURL != "" {
		notifier = notification.NewWebhookNotifier(cfg.WebhookURL)
		log.Printf("[livefeed] webhook alerts enabled")
	}

	dispatcher := live.New(strat, symbols, cfg.Timeframe, feed.NewBinance(),
		pub, store, notifier, live.Deps{Metrics: met, Candles: candleCh})

	if err := dispatcher.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("[livefeed] %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Stop(shutdownCtx)
	log.Println("[livefeed] stopped")
}
