// Package redis moves symbol updates between the live feed process and the
// dashboard: pub/sub for fan-out, a latest-value key per symbol for late
// joiners, and a capped list of recent signals per symbol.
package redis

import "time"

const (
	// UpdatePattern matches every symbol's update channel, for PSUBSCRIBE.
	UpdatePattern = "pub:update:*"

	signalHistoryMax = 100
	latestTTL        = 30 * time.Minute
)

// UpdateChannel is the pub/sub channel carrying one symbol's updates.
func UpdateChannel(symbol string) string { return "pub:update:" + symbol }

func latestKey(symbol string) string  { return "latest:update:" + symbol }
func signalsKey(symbol string) string { return "signals:" + symbol }
