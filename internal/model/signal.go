package model

import (
	"encoding/json"
	"time"
)

// SignalKind is the directional outcome of evaluating one closed candle.
type SignalKind string

const (
	SignalBuy     SignalKind = "BUY"
	SignalSell    SignalKind = "SELL"
	SignalNeutral SignalKind = "NEUTRAL"
)

// IndicatorSnapshot holds the indicator values computed for one closed candle.
// Ready is false until every configured indicator has seen its warm-up window;
// downstream components must treat a not-ready snapshot as undefined and emit
// NEUTRAL only.
type IndicatorSnapshot struct {
	Time       time.Time `json:"time"`
	BBUpper    float64   `json:"bb_upper"`
	BBMid      float64   `json:"bb_mid"`
	BBLower    float64   `json:"bb_lower"`
	MACD       float64   `json:"macd"`
	MACDSignal float64   `json:"macd_signal"`
	MACDHist   float64   `json:"macd_hist"`
	RSI        float64   `json:"rsi"`
	ATR        float64   `json:"atr"`
	TrendEMA   float64   `json:"trend_ema,omitempty"`
	Ready      bool      `json:"ready"`
}

// SignalEvent is the evaluator's verdict for one closed candle.
// Exactly one event is produced per closed candle per symbol.
type SignalEvent struct {
	Symbol     string     `json:"symbol"`
	CandleTime time.Time  `json:"candle_time"`
	Kind       SignalKind `json:"kind"`
	Price      float64    `json:"price"`
	RSI        float64    `json:"rsi_at_signal"`
}

// JSON returns the JSON-encoded event.
func (e *SignalEvent) JSON() []byte {
	b, _ := json.Marshal(e)
	return b
}
