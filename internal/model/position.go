package model

import "time"

// PositionState is the lifecycle state of a symbol's position.
type PositionState string

const (
	PositionFlat PositionState = "FLAT"
	PositionOpen PositionState = "OPEN"
)

// ExitReason records why a position was closed. When several conditions
// trigger on the same candle the priority is stop > signal > midband > time.
type ExitReason string

const (
	ExitStop    ExitReason = "stop"
	ExitSignal  ExitReason = "signal"
	ExitMidband ExitReason = "midband"
	ExitTime    ExitReason = "time"
)

// Position is the single tracked position for one symbol. OPEN positions are
// exclusively owned by that symbol's position manager; no other component
// mutates the stop or trailing fields.
type Position struct {
	Symbol       string        `json:"symbol"`
	State        PositionState `json:"state"`
	EntryPrice   float64       `json:"entry_price"` // signal price, before slippage
	EntryTime    time.Time     `json:"entry_time"`
	StopPrice    float64       `json:"stop_price"`
	TrailingStop float64       `json:"trailing_stop_price"`
	BarsHeld     int           `json:"bars_held"`
	Size         float64       `json:"size"`
}

// Trade is the record emitted when a position transitions back to FLAT.
type Trade struct {
	Symbol      string     `json:"symbol"`
	EntryTime   time.Time  `json:"entry_time"`
	ExitTime    time.Time  `json:"exit_time"`
	EntryPrice  float64    `json:"entry_price"` // signal prices, before slippage
	ExitPrice   float64    `json:"exit_price"`
	Size        float64    `json:"size"`
	BarsHeld    int        `json:"bars_held"`
	ExitReason  ExitReason `json:"exit_reason"`
	RealizedPnL float64    `json:"realized_pnl"` // after fees and slippage
	Fees        float64    `json:"fees"`         // entry + exit fees
}

// Win reports whether the trade closed with positive realized PnL.
func (t *Trade) Win() bool {
	return t.RealizedPnL > 0
}
