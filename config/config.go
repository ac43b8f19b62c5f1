package config

import (
	"log"
	"os"
	"strings"
)

// Config holds infrastructure configuration loaded from environment variables.
// Strategy parameters live in a separate YAML document (see strategy.go).
type Config struct {
	// Infrastructure
	RedisAddr     string
	RedisPassword string
	SQLitePath    string
	MetricsAddr   string
	DashboardAddr string

	// Alerting webhook for signal/trade events ("" = disabled)
	WebhookURL string

	// Market data
	Symbols   string // comma-separated, e.g. "BTCUSDT,ETHUSDT,XRPUSDT"
	Timeframe string // e.g. "5m"

	// Strategy YAML path
	StrategyPath string
}

// Load reads configuration from environment variables with sensible defaults.
// Each binary passes its own metrics listen default so colocated services do
// not collide on the port.
func Load(defaultMetricsAddr string) *Config {
	return &Config{
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/candles.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", defaultMetricsAddr),
		DashboardAddr: getEnv("DASHBOARD_ADDR", ":8000"),
		WebhookURL:    getEnv("WEBHOOK_URL", ""),

		Symbols:   getEnv("SYMBOLS", "BTCUSDT,ETHUSDT,XRPUSDT"),
		Timeframe: getEnv("TIMEFRAME", "5m"),

		StrategyPath: getEnv("STRATEGY_PATH", "config/strategy.yaml"),
	}
}

// ParseSymbols returns the configured symbol list, upper-cased and trimmed.
func (c *Config) ParseSymbols() []string {
	parts := strings.Split(c.Symbols, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		log.Printf("[config] no symbols configured, falling back to BTCUSDT")
		out = []string{"BTCUSDT"}
	}
	return out
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}
