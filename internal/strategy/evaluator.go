// Package strategy evaluates the BB+MACD trading rules over indicator
// snapshots and emits BUY/SELL/NEUTRAL signal events.
//
// The evaluator is deterministic and works strictly from already-closed
// candles: a crossover is detected by comparing the previous candle's
// MACD/signal relation with the current one, so no event ever depends on
// data from a candle that has not closed, and no event is revised after
// emission.
package strategy

import (
	"tradesignals/config"
	"tradesignals/internal/model"
)

// Evaluator applies the signal rules for one symbol. Its only state beyond
// the configuration is the previous candle's indicator snapshot, needed for
// crossover comparison.
type Evaluator struct {
	cfg config.Strategy

	prev    model.IndicatorSnapshot
	hasPrev bool
}

// NewEvaluator creates an evaluator for a validated strategy configuration.
func NewEvaluator(cfg config.Strategy) *Evaluator {
	return &Evaluator{cfg: cfg}
}

// OnCandle consumes one closed candle with its indicator snapshot and returns
// exactly one signal event for it.
//
// BUY requires, on the same candle: close at or below the lower band
// (within tolerance), a bullish MACD crossover, and — when enabled — the RSI
// and trend filters. SELL mirrors it on the upper band with a bearish
// crossover. If both directions trigger simultaneously the event is NEUTRAL
// by policy.
func (e *Evaluator) OnCandle(c model.Candle, snap model.IndicatorSnapshot) model.SignalEvent {
	event := model.SignalEvent{
		Symbol:     c.Symbol,
		CandleTime: c.OpenTime,
		Kind:       model.SignalNeutral,
		Price:      c.Close,
	}

	prev, hadPrev := e.prev, e.hasPrev
	e.prev, e.hasPrev = snap, true

	// Warm-up gating: both snapshots must be defined before any
	// directional signal may be produced.
	if !snap.Ready || !hadPrev || !prev.Ready {
		return event
	}
	event.RSI = snap.RSI

	tol := e.cfg.TouchTolerancePct
	lowerTouch := c.Close <= snap.BBLower*(1+tol)
	upperTouch := c.Close >= snap.BBUpper*(1-tol)

	bullishCross := prev.MACD <= prev.MACDSignal && snap.MACD > snap.MACDSignal
	bearishCross := prev.MACD >= prev.MACDSignal && snap.MACD < snap.MACDSignal

	buy := lowerTouch && bullishCross
	sell := upperTouch && bearishCross

	if e.cfg.RSIFilterEnabled {
		buy = buy && snap.RSI <= e.cfg.RSIBuyMax
		sell = sell && snap.RSI >= e.cfg.RSISellMin
	}
	if e.cfg.TrendFilterEnabled {
		buy = buy && c.Close >= snap.TrendEMA
		sell = sell && c.Close <= snap.TrendEMA
	}

	switch {
	case buy && sell:
		// Simultaneous triggers resolve to NEUTRAL by policy.
	case buy:
		event.Kind = model.SignalBuy
	case sell:
		event.Kind = model.SignalSell
	}
	return event
}

// Reset drops the previous snapshot, e.g. after an indicator pipeline reset.
func (e *Evaluator) Reset() {
	e.prev = model.IndicatorSnapshot{}
	e.hasPrev = false
}
