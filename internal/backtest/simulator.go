// Package backtest replays a historical candle series through the indicator
// pipeline, signal evaluator and position manager, simulating fills with the
// configured fees and slippage.
//
// A run is fully deterministic: the same candles and configuration always
// produce the same trades, equity curve and metrics. The simulator processes
// candles strictly in order and the components it drives only ever look at
// the current candle and prior state, so no decision uses future data.
package backtest

import (
	"context"
	"fmt"

	"tradesignals/config"
	"tradesignals/internal/indicator"
	"tradesignals/internal/model"
	"tradesignals/internal/position"
	"tradesignals/internal/strategy"
)

// SignalSource produces one signal event per closed candle. The production
// source is strategy.Evaluator; tests substitute scripted sources.
type SignalSource interface {
	OnCandle(c model.Candle, snap model.IndicatorSnapshot) model.SignalEvent
}

// Simulator runs one strategy configuration over one candle series.
type Simulator struct {
	cfg config.Strategy
	src SignalSource
}

// New creates a simulator backed by the BB+MACD evaluator.
func New(cfg config.Strategy) *Simulator {
	return &Simulator{cfg: cfg, src: strategy.NewEvaluator(cfg)}
}

// NewWithSource creates a simulator with a custom signal source.
func NewWithSource(cfg config.Strategy, src SignalSource) *Simulator {
	return &Simulator{cfg: cfg, src: src}
}

// Run replays the series and returns the full result. The candle series must
// be ordered and gap-free for a single (symbol, timeframe); a violation is a
// terminal error, never silently repaired. A cancelled context aborts the
// replay and returns ctx.Err().
func (s *Simulator) Run(ctx context.Context, candles []model.Candle) (*Result, error) {
	if err := s.cfg.Validate(); err != nil {
		return nil, err
	}
	if err := model.ValidateSeries(candles); err != nil {
		return nil, fmt.Errorf("backtest: %w", err)
	}

	symbol := candles[0].Symbol
	cash := s.cfg.InitialCash

	pipeline := indicator.NewPipeline(s.cfg)
	// All-in sizing: spend size_pct of current cash, fees included, so the
	// cost basis of each entry is exactly cash × size_pct.
	mgr := position.NewManager(symbol, s.cfg, func(execPrice float64) float64 {
		return cash * s.cfg.SizePct / (execPrice * (1 + s.cfg.FeePct))
	})

	res := &Result{
		Symbol:      symbol,
		Timeframe:   candles[0].Timeframe,
		Start:       candles[0].OpenTime,
		End:         candles[len(candles)-1].OpenTime,
		Bars:        len(candles),
		InitialCash: s.cfg.InitialCash,
		Trades:      []model.Trade{},
		Signals:     []model.SignalEvent{},
		EquityCurve: make([]EquityPoint, 0, len(candles)),
	}

	var openCost float64
	for i := range candles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c := candles[i]

		snap := pipeline.Update(c)
		ev := s.src.OnCandle(c, snap)
		if ev.Kind != model.SignalNeutral {
			res.Signals = append(res.Signals, ev)
		}

		wasFlat := mgr.Position().State == model.PositionFlat
		trade := mgr.OnCandle(c, snap, ev.Kind)

		if wasFlat && mgr.Position().State == model.PositionOpen {
			openCost = mgr.OpenCost()
			cash -= openCost
		}
		if trade != nil {
			cash += openCost + trade.RealizedPnL
			openCost = 0
			res.Trades = append(res.Trades, *trade)
		}

		equity := cash
		if pos := mgr.Position(); pos.State == model.PositionOpen {
			equity += pos.Size * c.Close
		}
		res.EquityCurve = append(res.EquityCurve, EquityPoint{Time: c.OpenTime, Equity: equity})
	}

	if pos := mgr.Position(); pos.State == model.PositionOpen {
		res.OpenPosition = &pos
	}
	res.FinalEquity = res.EquityCurve[len(res.EquityCurve)-1].Equity
	res.computeMetrics(s.cfg.Annualization)
	return res, nil
}
