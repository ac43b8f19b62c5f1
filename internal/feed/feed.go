// Package feed sources closed candles from an exchange: bulk history over
// REST and a live stream over WebSocket.
package feed

import (
	"context"

	"tradesignals/internal/model"
)

// Feed delivers closed candles for one (symbol, timeframe).
//
// Stream blocks until the context is cancelled or the connection drops, and
// returns the reason; it never reconnects on its own. Reconnect policy
// belongs to the caller.
type Feed interface {
	History(ctx context.Context, symbol, timeframe string, limit int) ([]model.Candle, error)
	Stream(ctx context.Context, symbol, timeframe string, out chan<- model.Candle) error
}
