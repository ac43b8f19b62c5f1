package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	goredis "github.com/go-redis/redis/v8"

	"tradesignals/internal/model"
)

// Reader is the dashboard-side view: latest updates, signal history and the
// live pub/sub subscription.
type Reader struct {
	client *goredis.Client
}

// NewReader connects and pings the server.
func NewReader(cfg Config) (*Reader, error) {
	client, err := connect(cfg)
	if err != nil {
		return nil, err
	}
	log.Printf("[redis-reader] connected to %s", cfg.Addr)
	return &Reader{client: client}, nil
}

// LatestUpdate returns the symbol's most recent update, or nil when none is
// cached.
func (r *Reader) LatestUpdate(ctx context.Context, symbol string) (*model.Update, error) {
	data, err := r.client.Get(ctx, latestKey(symbol)).Result()
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get latest %s: %w", symbol, err)
	}

	var u model.Update
	if err := json.Unmarshal([]byte(data), &u); err != nil {
		return nil, fmt.Errorf("redis unmarshal latest %s: %w", symbol, err)
	}
	return &u, nil
}

// SignalHistory returns up to limit recent signal events, oldest first.
func (r *Reader) SignalHistory(ctx context.Context, symbol string, limit int64) ([]model.SignalEvent, error) {
	if limit <= 0 || limit > signalHistoryMax {
		limit = signalHistoryMax
	}
	rows, err := r.client.LRange(ctx, signalsKey(symbol), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange signals %s: %w", symbol, err)
	}

	// Stored newest-first via LPUSH; reverse to chronological order.
	events := make([]model.SignalEvent, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		var ev model.SignalEvent
		if err := json.Unmarshal([]byte(rows[i]), &ev); err != nil {
			log.Printf("[redis-reader] skip bad signal entry for %s: %v", symbol, err)
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// SubscribeUpdates pattern-subscribes to every symbol's update channel. The
// caller consumes pubsub.Channel() and closes the handle when done.
func (r *Reader) SubscribeUpdates(ctx context.Context) *goredis.PubSub {
	return r.client.PSubscribe(ctx, UpdatePattern)
}

// Close closes the connection.
func (r *Reader) Close() error { return r.client.Close() }
