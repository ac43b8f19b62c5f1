package model

import (
	"encoding/json"
	"time"
)

// Update message types sent to dashboard clients.
const (
	UpdateTypeSymbol  = "symbol_update"
	UpdateTypeInitial = "initial"
)

// UpdateIndicators is the indicator subset exposed to dashboards.
type UpdateIndicators struct {
	RSI     float64 `json:"RSI"`
	MACD    float64 `json:"MACD"`
	BBUpper float64 `json:"BB_UPPER"`
	BBLower float64 `json:"BB_LOWER"`
}

// UpdateData is the per-candle payload of a dashboard update.
type UpdateData struct {
	Price      float64          `json:"price"`
	Signal     SignalKind       `json:"signal"`
	Indicators UpdateIndicators `json:"indicators"`
	Timestamp  string           `json:"timestamp"` // RFC3339, candle open time
	Position   *Position        `json:"position,omitempty"`
	Stale      bool             `json:"stale,omitempty"` // true while the upstream feed is down

	// Only present on "initial" messages.
	SignalHistory []SignalEvent `json:"signal_history,omitempty"`
}

// Update is the message broadcast to every client subscribed to Symbol.
// Updates are idempotent snapshots of the symbol's latest state, not a log:
// dropping a stale intermediate update is always safe.
type Update struct {
	Type   string     `json:"type"` // "symbol_update" or "initial"
	Symbol string     `json:"symbol"`
	Data   UpdateData `json:"data"`
}

// NewUpdate builds a symbol_update from one pipeline step.
func NewUpdate(symbol string, candleTime time.Time, price float64, kind SignalKind, snap IndicatorSnapshot, pos *Position) Update {
	return Update{
		Type:   UpdateTypeSymbol,
		Symbol: symbol,
		Data: UpdateData{
			Price:  price,
			Signal: kind,
			Indicators: UpdateIndicators{
				RSI:     snap.RSI,
				MACD:    snap.MACD,
				BBUpper: snap.BBUpper,
				BBLower: snap.BBLower,
			},
			Timestamp: candleTime.UTC().Format(time.RFC3339),
			Position:  pos,
		},
	}
}

// JSON returns the JSON-encoded update.
func (u *Update) JSON() []byte {
	b, _ := json.Marshal(u)
	return b
}
