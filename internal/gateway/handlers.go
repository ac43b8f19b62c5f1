package gateway

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"tradesignals/internal/model"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// SetCORS sets CORS headers for REST endpoints.
func SetCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	SetCORS(w)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// RegisterRoutes registers the WebSocket endpoint and the REST surface on
// the provided mux.
func RegisterRoutes(mux *http.ServeMux, hub *Hub, start time.Time) {
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[dashboard] ws upgrade error: %v", err)
			return
		}
		conn.EnableWriteCompression(true)
		hub.AddClient(NewClient(hub, conn))
	})

	// REST: configured symbol universe.
	mux.HandleFunc("/api/symbols", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"symbols": hub.Symbols()})
	})

	// REST: latest state of every symbol.
	mux.HandleFunc("/api/market-data", func(w http.ResponseWriter, r *http.Request) {
		out := make(map[string]model.UpdateData)
		for _, symbol := range hub.Symbols() {
			if u := hub.latestUpdate(r.Context(), symbol); u != nil {
				out[symbol] = u.Data
			}
		}
		writeJSON(w, out)
	})

	// REST: recent signal history for one symbol.
	mux.HandleFunc("/api/signals/", func(w http.ResponseWriter, r *http.Request) {
		symbol := strings.ToUpper(strings.TrimPrefix(r.URL.Path, "/api/signals/"))
		if symbol == "" || !hub.hasSymbol(symbol) {
			SetCORS(w)
			http.Error(w, `{"error":"unknown symbol"}`, http.StatusNotFound)
			return
		}
		var history []model.SignalEvent
		if hub.store != nil {
			var err error
			history, err = hub.store.SignalHistory(r.Context(), symbol, 0)
			if err != nil {
				SetCORS(w)
				http.Error(w, `{"error":"history unavailable"}`, http.StatusServiceUnavailable)
				return
			}
		}
		writeJSON(w, map[string]interface{}{"symbol": symbol, "signals": history})
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"status":  "ok",
			"uptime":  time.Since(start).Round(time.Second).String(),
			"clients": hub.ClientCount(),
		})
	})
}
