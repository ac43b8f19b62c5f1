package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Candle represents a closed OHLCV candle for a single symbol and timeframe.
// Candles are immutable once closed and uniquely keyed by
// (symbol, timeframe, open time).
type Candle struct {
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"` // e.g. "5m"
	OpenTime  time.Time `json:"open_time"` // bucket start (UTC)
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Key returns "symbol:timeframe".
func (c *Candle) Key() string {
	return c.Symbol + ":" + c.Timeframe
}

// JSON returns the JSON-encoded candle (ignoring errors for hot-path usage).
func (c *Candle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}

// TimeframeDuration parses a timeframe label like "1s", "5m", "1h", "1d"
// into its bucket duration.
func TimeframeDuration(tf string) (time.Duration, error) {
	if len(tf) < 2 {
		return 0, fmt.Errorf("invalid timeframe %q", tf)
	}
	unit := tf[len(tf)-1]
	n, err := strconv.Atoi(tf[:len(tf)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid timeframe %q", tf)
	}
	switch unit {
	case 's':
		return time.Duration(n) * time.Second, nil
	case 'm':
		return time.Duration(n) * time.Minute, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("invalid timeframe %q", tf)
	}
}

// ValidateSeries checks that candles form an ordered, gap-free sequence for a
// single (symbol, timeframe): strictly increasing open times with exactly one
// timeframe step between consecutive candles. Returns a terminal error on the
// first violation.
func ValidateSeries(candles []Candle) error {
	if len(candles) == 0 {
		return fmt.Errorf("validate series: empty candle sequence")
	}
	step, err := TimeframeDuration(candles[0].Timeframe)
	if err != nil {
		return fmt.Errorf("validate series: %w", err)
	}
	key := candles[0].Key()
	for i := 1; i < len(candles); i++ {
		c := &candles[i]
		if c.Key() != key {
			return fmt.Errorf("validate series: mixed keys %q and %q at index %d", key, c.Key(), i)
		}
		gap := c.OpenTime.Sub(candles[i-1].OpenTime)
		if gap <= 0 {
			return fmt.Errorf("validate series: out-of-order candle at index %d (%s after %s)",
				i, c.OpenTime.Format(time.RFC3339), candles[i-1].OpenTime.Format(time.RFC3339))
		}
		if gap != step {
			return fmt.Errorf("validate series: gap at index %d (%s missing between %s and %s)",
				i, step, candles[i-1].OpenTime.Format(time.RFC3339), c.OpenTime.Format(time.RFC3339))
		}
	}
	return nil
}

// ParseSymbols parses a comma-separated symbol list like "BTCUSDT,ETHUSDT".
func ParseSymbols(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
