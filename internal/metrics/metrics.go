// Package metrics exposes Prometheus instrumentation and a health endpoint
// shared by the livefeed and dashboard binaries.
package metrics

import (
	"context"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. Each binary uses the subset relevant
// to it; registering the full set keeps metric names in one place.
type Metrics struct {
	// Livefeed
	CandlesTotal   prometheus.Counter
	SignalsTotal   *prometheus.CounterVec // labels: kind
	FeedReconnects prometheus.Counter
	StaleSymbols   prometheus.Gauge
	RedisDrops     prometheus.Counter
	ProcessDur     prometheus.Histogram

	// Dashboard
	WSClients       prometheus.Gauge
	ClientDrops     prometheus.Counter
	BroadcastsTotal prometheus.Counter
}

// New registers and returns all metrics.
func New() *Metrics {
	m := &Metrics{
		CandlesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradesignals_candles_total",
			Help: "Closed candles processed across all symbols",
		}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradesignals_signals_total",
			Help: "Directional signals emitted, by kind",
		}, []string{"kind"}),
		FeedReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradesignals_feed_reconnects_total",
			Help: "Upstream feed reconnection attempts",
		}),
		StaleSymbols: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tradesignals_stale_symbols",
			Help: "Symbols currently marked stale (feed down)",
		}),
		RedisDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradesignals_redis_dropped_writes_total",
			Help: "Updates dropped while the Redis circuit breaker was open",
		}),
		ProcessDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tradesignals_candle_process_duration_seconds",
			Help:    "Per-candle pipeline latency (indicators through publish)",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tradesignals_ws_clients",
			Help: "Connected dashboard WebSocket clients",
		}),
		ClientDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradesignals_ws_client_drops_total",
			Help: "Messages evicted from full client send queues",
		}),
		BroadcastsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradesignals_broadcasts_total",
			Help: "Updates fanned out to dashboard clients",
		}),
	}

	prometheus.MustRegister(
		m.CandlesTotal,
		m.SignalsTotal,
		m.FeedReconnects,
		m.StaleSymbols,
		m.RedisDrops,
		m.ProcessDur,
		m.WSClients,
		m.ClientDrops,
		m.BroadcastsTotal,
	)
	return m
}

// Server exposes /metrics on its own listener.
type Server struct {
	srv *http.Server
}

// NewServer creates the metrics server.
func NewServer(addr string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &Server{srv: &http.Server{Addr: addr, Handler: mux}}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
