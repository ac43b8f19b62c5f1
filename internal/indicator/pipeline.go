// Package indicator provides streaming technical indicator calculations over
// candle data.
//
// All indicators update incrementally in O(1) per candle and expose a Ready
// flag that stays false until their warm-up window has been observed. The
// Pipeline composes the full indicator set one symbol's strategy needs and
// emits one IndicatorSnapshot per closed candle, using only that candle and
// prior candles — never future data.
package indicator

import (
	"tradesignals/config"
	"tradesignals/internal/model"
)

// Pipeline computes the full indicator set for one (symbol, timeframe) stream.
// Designed for single-goroutine usage — no locks needed.
type Pipeline struct {
	bb    *Bollinger
	macd  *MACD
	rsi   *RSI
	atr   *ATR
	trend *EMA // nil when the trend filter is disabled

	count int
}

// NewPipeline creates a pipeline from a validated strategy configuration.
func NewPipeline(cfg config.Strategy) *Pipeline {
	p := &Pipeline{
		bb:   NewBollinger(cfg.BBPeriod, cfg.BBStd),
		macd: NewMACD(cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignalPeriod),
		rsi:  NewRSI(cfg.RSIPeriod),
		atr:  NewATR(cfg.ATRPeriod),
	}
	if cfg.TrendFilterEnabled {
		p.trend = NewEMA(cfg.TrendEMAPeriod)
	}
	return p
}

// Update feeds one closed candle and returns its snapshot. The snapshot's
// Ready flag is false until every configured indicator has warmed up;
// downstream components must emit NEUTRAL only while Ready is false.
func (p *Pipeline) Update(c model.Candle) model.IndicatorSnapshot {
	p.bb.Update(c.Close)
	p.macd.Update(c.Close)
	p.rsi.Update(c.Close)
	p.atr.Update(c.High, c.Low, c.Close)
	if p.trend != nil {
		p.trend.Update(c.Close)
	}
	p.count++

	snap := model.IndicatorSnapshot{
		Time:  c.OpenTime,
		Ready: p.Ready(),
	}
	if !snap.Ready {
		return snap
	}

	snap.BBUpper = p.bb.Upper()
	snap.BBMid = p.bb.Mid()
	snap.BBLower = p.bb.Lower()
	snap.MACD = p.macd.Value()
	snap.MACDSignal = p.macd.Signal()
	snap.MACDHist = p.macd.Hist()
	snap.RSI = p.rsi.Value()
	snap.ATR = p.atr.Value()
	if p.trend != nil {
		snap.TrendEMA = p.trend.Value()
	}
	return snap
}

// Ready reports whether every configured indicator is past its warm-up window.
func (p *Pipeline) Ready() bool {
	if !p.bb.Ready() || !p.macd.Ready() || !p.rsi.Ready() || !p.atr.Ready() {
		return false
	}
	if p.trend != nil && !p.trend.Ready() {
		return false
	}
	return true
}

// Count returns the number of candles observed.
func (p *Pipeline) Count() int { return p.count }

// Reset drops all indicator state, returning the pipeline to the warm-up
// phase. Used when recent history cannot be re-fetched after a feed outage.
func (p *Pipeline) Reset() {
	p.bb.Reset()
	p.macd.Reset()
	p.rsi.Reset()
	p.atr.Reset()
	if p.trend != nil {
		p.trend.Reset()
	}
	p.count = 0
}
