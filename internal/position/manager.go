// Package position owns the open/flat lifecycle of a single position per
// traded symbol, applying ATR stop-loss, trailing-stop, mid-band and
// time-based exit rules.
package position

import (
	"log"

	"tradesignals/config"
	"tradesignals/internal/model"
)

// Sizer returns the position size for a new entry at the given execution
// price (signal price adjusted for slippage). Returning 0 skips the entry.
type Sizer func(execPrice float64) float64

// FixedSizer returns a Sizer that always trades the same size. Used by the
// live dispatcher, where signals are advisory and no cash is tracked.
func FixedSizer(size float64) Sizer {
	return func(float64) float64 { return size }
}

// Manager is the per-symbol position state machine:
//
//	FLAT --(BUY signal)--> OPEN --(stop/signal/midband/time exit)--> FLAT
//
// Exactly one Manager exists per symbol and it is the only component that
// mutates the position's stop and trailing fields. Not safe for concurrent
// use; each symbol's pipeline is single-threaded by construction.
type Manager struct {
	cfg   config.Strategy
	sizer Sizer

	pos model.Position

	// Cost basis of the open position: size × entry execution price + entry
	// fee. Needed for realized PnL and for the backtester's cash accounting.
	openCost float64
	entryFee float64

	prevClose    float64
	hasPrevClose bool
}

// NewManager creates a manager for one symbol.
func NewManager(symbol string, cfg config.Strategy, sizer Sizer) *Manager {
	return &Manager{
		cfg:   cfg,
		sizer: sizer,
		pos: model.Position{
			Symbol: symbol,
			State:  model.PositionFlat,
		},
	}
}

// Position returns a snapshot of the current position.
func (m *Manager) Position() model.Position { return m.pos }

// OpenCost returns the cost basis (including the entry fee) of the open
// position, or 0 while FLAT.
func (m *Manager) OpenCost() float64 { return m.openCost }

// OnCandle advances the state machine with one closed candle, its indicator
// snapshot and the signal event emitted for it. Returns a trade record when
// the position closed on this candle, nil otherwise.
//
// While OPEN, on each candle after the entry candle: bars_held increments,
// the trailing stop ratchets to max(previous, close − ATR×trail multiplier)
// — it never retreats — and exit conditions are checked in deterministic
// priority order: stop hit > SELL signal > mid-band cross > time exit.
func (m *Manager) OnCandle(c model.Candle, snap model.IndicatorSnapshot, kind model.SignalKind) *model.Trade {
	prevClose, hadPrev := m.prevClose, m.hasPrevClose
	m.prevClose, m.hasPrevClose = c.Close, true

	if m.pos.State == model.PositionOpen && c.OpenTime.After(m.pos.EntryTime) {
		m.pos.BarsHeld++

		if snap.Ready {
			if t := c.Close - snap.ATR*m.cfg.TrailATRMultiplier; t > m.pos.TrailingStop {
				m.pos.TrailingStop = t
			}
		}

		reason := m.exitReason(c, snap, kind, prevClose, hadPrev)
		if reason == "" {
			return nil
		}
		return m.close(c, reason)
	}

	if m.pos.State == model.PositionFlat && kind == model.SignalBuy && snap.Ready {
		m.open(c, snap)
	}
	return nil
}

// exitReason evaluates exit conditions in priority order.
func (m *Manager) exitReason(c model.Candle, snap model.IndicatorSnapshot, kind model.SignalKind, prevClose float64, hadPrev bool) model.ExitReason {
	switch {
	case c.Close <= m.pos.TrailingStop:
		return model.ExitStop
	case kind == model.SignalSell:
		return model.ExitSignal
	case m.cfg.MidbandExitEnabled && snap.Ready && hadPrev &&
		prevClose < snap.BBMid && c.Close >= snap.BBMid:
		return model.ExitMidband
	case m.pos.BarsHeld >= m.cfg.TimeExitBars:
		return model.ExitTime
	}
	return ""
}

func (m *Manager) open(c model.Candle, snap model.IndicatorSnapshot) {
	execPrice := c.Close * (1 + m.cfg.SlippagePct)
	size := m.sizer(execPrice)
	if size <= 0 {
		return
	}

	stop := c.Close - snap.ATR*m.cfg.StopATRMultiplier
	m.pos.State = model.PositionOpen
	m.pos.EntryPrice = c.Close
	m.pos.EntryTime = c.OpenTime
	m.pos.StopPrice = stop
	m.pos.TrailingStop = stop
	m.pos.BarsHeld = 0
	m.pos.Size = size

	m.entryFee = size * execPrice * m.cfg.FeePct
	m.openCost = size*execPrice + m.entryFee

	log.Printf("[position] %s OPEN size=%.6f entry=%.4f stop=%.4f",
		m.pos.Symbol, size, c.Close, stop)
}

func (m *Manager) close(c model.Candle, reason model.ExitReason) *model.Trade {
	execPrice := c.Close * (1 - m.cfg.SlippagePct)
	proceeds := m.pos.Size * execPrice
	exitFee := proceeds * m.cfg.FeePct

	trade := &model.Trade{
		Symbol:      m.pos.Symbol,
		EntryTime:   m.pos.EntryTime,
		ExitTime:    c.OpenTime,
		EntryPrice:  m.pos.EntryPrice,
		ExitPrice:   c.Close,
		Size:        m.pos.Size,
		BarsHeld:    m.pos.BarsHeld,
		ExitReason:  reason,
		RealizedPnL: proceeds - exitFee - m.openCost,
		Fees:        m.entryFee + exitFee,
	}

	log.Printf("[position] %s FLAT reason=%s bars=%d pnl=%.4f",
		m.pos.Symbol, reason, trade.BarsHeld, trade.RealizedPnL)

	m.pos = model.Position{
		Symbol: m.pos.Symbol,
		State:  model.PositionFlat,
	}
	m.openCost = 0
	m.entryFee = 0
	return trade
}
