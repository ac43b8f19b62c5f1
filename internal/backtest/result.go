package backtest

import (
	"encoding/json"
	"math"
	"time"

	"tradesignals/internal/model"
)

// When a run closes no losing trade, profit factor has no finite value; it is
// reported as this sentinel instead so the result stays JSON-encodable.
const profitFactorCap = 999.0

// EquityPoint is one mark-to-market sample of the equity curve, taken at each
// candle close.
type EquityPoint struct {
	Time   time.Time `json:"time"`
	Equity float64   `json:"equity"`
}

// Result is the complete outcome of one backtest run.
type Result struct {
	Symbol      string    `json:"symbol"`
	Timeframe   string    `json:"timeframe"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Bars        int       `json:"bars"`
	InitialCash float64   `json:"initial_cash"`
	FinalEquity float64   `json:"final_equity"`

	TotalReturnPct float64 `json:"total_return_pct"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	WinRate        float64 `json:"win_rate"`
	ProfitFactor   float64 `json:"profit_factor"`
	Sharpe         float64 `json:"sharpe"`

	Trades      []model.Trade       `json:"trades"`
	Signals     []model.SignalEvent `json:"signals"`
	EquityCurve []EquityPoint       `json:"equity_curve"`

	// Position still open when the series ended, marked to the last close in
	// FinalEquity, or nil.
	OpenPosition *model.Position `json:"open_position,omitempty"`
}

// JSON returns the indented JSON report of the result.
func (r *Result) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// computeMetrics fills the summary statistics from the trades and equity
// curve. annualization is the number of bars per year for Sharpe scaling.
func (r *Result) computeMetrics(annualization float64) {
	if r.InitialCash > 0 {
		r.TotalReturnPct = (r.FinalEquity/r.InitialCash - 1) * 100
	}
	r.MaxDrawdownPct = maxDrawdownPct(r.EquityCurve)
	r.WinRate, r.ProfitFactor = tradeStats(r.Trades)
	r.Sharpe = sharpe(r.EquityCurve, annualization)
}

// maxDrawdownPct is the largest peak-to-trough equity decline, as a positive
// percentage of the peak.
func maxDrawdownPct(curve []EquityPoint) float64 {
	var peak, maxDD float64
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			if dd := (peak - p.Equity) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD * 100
}

func tradeStats(trades []model.Trade) (winRate, profitFactor float64) {
	if len(trades) == 0 {
		return 0, 0
	}
	var wins int
	var grossProfit, grossLoss float64
	for i := range trades {
		if trades[i].Win() {
			wins++
			grossProfit += trades[i].RealizedPnL
		} else {
			grossLoss += -trades[i].RealizedPnL
		}
	}
	winRate = float64(wins) / float64(len(trades))
	switch {
	case grossLoss > 0:
		profitFactor = grossProfit / grossLoss
		if profitFactor > profitFactorCap {
			profitFactor = profitFactorCap
		}
	case grossProfit > 0:
		profitFactor = profitFactorCap
	}
	return winRate, profitFactor
}

// sharpe is the annualized Sharpe ratio of per-bar equity returns with a zero
// risk-free rate. Zero when fewer than two points or zero variance.
func sharpe(curve []EquityPoint, annualization float64) float64 {
	if len(curve) < 2 {
		return 0
	}
	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev == 0 {
			return 0
		}
		returns = append(returns, curve[i].Equity/prev-1)
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns))
	if variance == 0 {
		return 0
	}
	return mean / math.Sqrt(variance) * math.Sqrt(annualization)
}
