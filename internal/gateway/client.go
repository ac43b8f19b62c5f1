package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	sendQueueSize = 256
	writeWait     = 10 * time.Second
	pingInterval  = 30 * time.Second
	pongWait      = 60 * time.Second
)

// Client is a single WebSocket peer with its own subscription set and a
// bounded send queue.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	subMu sync.RWMutex
	subs  map[string]bool
}

// NewClient wraps an upgraded connection. The client receives nothing until
// it subscribes.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		conn: conn,
		send: make(chan []byte, sendQueueSize),
		hub:  hub,
		subs: make(map[string]bool),
	}
}

func (c *Client) subscribed(symbol string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return c.subs[symbol]
}

// enqueue adds a message to the send queue. When the queue is full the
// oldest queued message is evicted to make room, so the client always ends
// up with the freshest state once it catches up.
func (c *Client) enqueue(msg []byte) {
	for {
		select {
		case c.send <- msg:
			return
		default:
		}
		select {
		case <-c.send:
			if c.hub.met != nil {
				c.hub.met.ClientDrops.Inc()
			}
		default:
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))

			// Coalesce queued messages into one frame, newline separated.
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(msg)
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.RemoveClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		msg, err := parseClientMessage(raw)
		if err != nil {
			c.enqueue(errorMessage(err.Error()))
			continue
		}

		switch msg.Type {
		case msgSubscribe:
			c.hub.Subscribe(context.Background(), c, msg.Symbols)
		case msgUnsubscribe:
			c.removeSubscriptions(msg.Symbols)
		case msgPing:
			c.enqueue(pongMessage())
		}
	}
}

// addSubscription records one symbol, reporting whether it was new. Called
// with the hub lock held so activation is atomic with initial snapshot
// delivery.
func (c *Client) addSubscription(symbol string) bool {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	if c.subs[symbol] {
		return false
	}
	c.subs[symbol] = true
	return true
}

func (c *Client) removeSubscriptions(symbols []string) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, s := range symbols {
		delete(c.subs, s)
	}
}

func pongMessage() []byte {
	b, _ := json.Marshal(map[string]interface{}{
		"type":      "pong",
		"server_ts": time.Now().UnixMilli(),
	})
	return b
}

func errorMessage(reason string) []byte {
	b, _ := json.Marshal(map[string]string{
		"type":  "error",
		"error": reason,
	})
	return b
}
