// Package gateway fans live symbol updates out to dashboard WebSocket
// clients. Updates arrive over Redis pub/sub from the feed process; each
// client picks the symbols it wants and gets an initial snapshot on
// subscribe, then live updates as candles close.
package gateway

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"

	goredis "github.com/go-redis/redis/v8"

	"tradesignals/internal/metrics"
	"tradesignals/internal/model"
)

// Store is the read side the hub needs for initial snapshots. Implemented by
// the Redis reader.
type Store interface {
	LatestUpdate(ctx context.Context, symbol string) (*model.Update, error)
	SignalHistory(ctx context.Context, symbol string, limit int64) ([]model.SignalEvent, error)
}

// Hub tracks connected clients and routes one update stream to all of them.
type Hub struct {
	store   Store
	symbols []string
	met     *metrics.Metrics

	mu      sync.RWMutex
	clients map[*Client]bool
	latest  map[string][]byte // last update JSON per symbol
}

// NewHub creates a hub serving the given symbol universe. met may be nil in
// tests.
func NewHub(store Store, symbols []string, met *metrics.Metrics) *Hub {
	return &Hub{
		store:   store,
		symbols: symbols,
		met:     met,
		clients: make(map[*Client]bool),
		latest:  make(map[string][]byte),
	}
}

// Symbols returns the configured symbol universe.
func (h *Hub) Symbols() []string { return h.symbols }

// Run consumes pub/sub messages and broadcasts them until ctx is cancelled or
// the channel closes.
func (h *Hub) Run(ctx context.Context, updates <-chan *goredis.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-updates:
			if !ok {
				return
			}
			symbol := strings.TrimPrefix(msg.Channel, "pub:update:")
			h.broadcast(symbol, []byte(msg.Payload))
		}
	}
}

// broadcast caches the update as the symbol's latest and enqueues it to every
// subscribed client. A slow client loses its oldest queued update, never the
// newest: updates are snapshots, so the freshest one wins.
func (h *Hub) broadcast(symbol string, payload []byte) {
	h.mu.Lock()
	h.latest[symbol] = payload
	h.mu.Unlock()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		if client.subscribed(symbol) {
			client.enqueue(payload)
		}
	}
	if h.met != nil {
		h.met.BroadcastsTotal.Inc()
	}
}

// AddClient registers a client and starts its pumps.
func (h *Hub) AddClient(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	count := len(h.clients)
	h.mu.Unlock()

	if h.met != nil {
		h.met.WSClients.Set(float64(count))
	}
	log.Printf("[dashboard] ws client connected (%d total)", count)

	go c.writePump()
	go c.readPump()
}

// RemoveClient unregisters a client and closes its queue.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if !h.clients[c] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	count := len(h.clients)
	close(c.send)
	h.mu.Unlock()

	if h.met != nil {
		h.met.WSClients.Set(float64(count))
	}
	log.Printf("[dashboard] ws client disconnected (%d total)", count)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// latestUpdate returns the symbol's most recent update from the in-memory
// cache, falling back to the store for symbols not seen since startup.
func (h *Hub) latestUpdate(ctx context.Context, symbol string) *model.Update {
	h.mu.RLock()
	raw := h.latest[symbol]
	h.mu.RUnlock()

	if raw != nil {
		u := &model.Update{}
		if err := json.Unmarshal(raw, u); err == nil {
			return u
		}
		log.Printf("[dashboard] bad cached update for %s", symbol)
	}
	if h.store == nil {
		return nil
	}
	u, err := h.store.LatestUpdate(ctx, symbol)
	if err != nil {
		log.Printf("[dashboard] latest update lookup %s: %v", symbol, err)
		return nil
	}
	return u
}

// hasSymbol reports whether the hub serves the symbol.
func (h *Hub) hasSymbol(symbol string) bool {
	for _, s := range h.symbols {
		if s == symbol {
			return true
		}
	}
	return false
}

// Subscribe activates new subscriptions for the client. Each symbol's
// "initial" snapshot is enqueued and the subscription made visible to
// broadcast under the same exclusive hub lock, so a live update can never
// reach the client ahead of its snapshot: a racing broadcast lands either
// before the critical section, where the latest cache folds it into the
// snapshot, or after it.
func (h *Hub) Subscribe(ctx context.Context, c *Client, symbols []string) {
	for _, symbol := range symbols {
		if !h.hasSymbol(symbol) || c.subscribed(symbol) {
			continue
		}

		// Store reads stay outside the lock; the store's latest is only
		// needed for symbols not seen since startup.
		var history []model.SignalEvent
		var stored *model.Update
		if h.store != nil {
			var err error
			history, err = h.store.SignalHistory(ctx, symbol, 0)
			if err != nil {
				log.Printf("[dashboard] signal history lookup %s: %v", symbol, err)
			}
			h.mu.RLock()
			cached := h.latest[symbol] != nil
			h.mu.RUnlock()
			if !cached {
				stored, err = h.store.LatestUpdate(ctx, symbol)
				if err != nil {
					log.Printf("[dashboard] latest update lookup %s: %v", symbol, err)
				}
			}
		}

		h.mu.Lock()
		if h.clients[c] && c.addSubscription(symbol) {
			if payload := buildInitial(h.latest[symbol], stored, history); payload != nil {
				c.enqueue(payload)
			}
		}
		h.mu.Unlock()
	}
}

// buildInitial assembles an "initial" snapshot payload from the freshest
// available state: the raw cached update when present, otherwise the store's
// latest. Returns nil when the symbol has no state yet.
func buildInitial(raw []byte, stored *model.Update, history []model.SignalEvent) []byte {
	var u *model.Update
	if raw != nil {
		v := &model.Update{}
		if err := json.Unmarshal(raw, v); err == nil {
			u = v
		} else {
			log.Printf("[dashboard] bad cached update, falling back to store")
		}
	}
	if u == nil {
		u = stored
	}
	if u == nil {
		return nil
	}
	u.Type = model.UpdateTypeInitial
	u.Data.SignalHistory = history
	return u.JSON()
}
