package backtest

import (
	"bytes"
	"context"
	"math"
	"testing"
	"time"

	"tradesignals/config"
	"tradesignals/internal/model"
)

var testBase = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// fastStrategy shrinks every warm-up window so tests need few candles.
func fastStrategy() config.Strategy {
	cfg := config.DefaultStrategy()
	cfg.BBPeriod = 3
	cfg.BBStd = 1.0
	cfg.MACDFast = 2
	cfg.MACDSlow = 3
	cfg.MACDSignalPeriod = 2
	cfg.RSIPeriod = 2
	cfg.ATRPeriod = 2
	cfg.TouchTolerancePct = 0.02
	cfg.FeePct = 0
	cfg.SlippagePct = 0
	cfg.InitialCash = 1000
	cfg.SizePct = 1.0
	return cfg
}

func series(n int, price func(i int) float64) []model.Candle {
	out := make([]model.Candle, n)
	for i := 0; i < n; i++ {
		p := price(i)
		out[i] = model.Candle{
			Symbol:    "BTCUSDT",
			Timeframe: "5m",
			OpenTime:  testBase.Add(time.Duration(i) * 5 * time.Minute),
			Open:      p,
			High:      p,
			Low:       p,
			Close:     p,
			Volume:    1,
		}
	}
	return out
}

// wave is a deterministic oscillating price path that produces band touches.
func wave(i int) float64 {
	return 100 + 8*math.Sin(float64(i)/5) + 3*math.Sin(float64(i)/17)
}

// scripted emits a fixed signal kind per candle index, NEUTRAL elsewhere.
type scripted struct {
	kinds map[int]model.SignalKind
	i     int
}

func (s *scripted) OnCandle(c model.Candle, _ model.IndicatorSnapshot) model.SignalEvent {
	kind, ok := s.kinds[s.i]
	s.i++
	if !ok {
		kind = model.SignalNeutral
	}
	return model.SignalEvent{Symbol: c.Symbol, CandleTime: c.OpenTime, Kind: kind, Price: c.Close}
}

func TestRunRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	cfg := fastStrategy()

	if _, err := New(cfg).Run(ctx, nil); err == nil {
		t.Error("empty series accepted")
	}

	gapped := series(10, wave)
	gapped = append(gapped[:5], gapped[6:]...)
	if _, err := New(cfg).Run(ctx, gapped); err == nil {
		t.Error("gapped series accepted")
	}

	bad := cfg
	bad.MACDFast = bad.MACDSlow
	if _, err := New(bad).Run(ctx, series(10, wave)); err == nil {
		t.Error("invalid strategy config accepted")
	}
}

func TestRunHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := New(fastStrategy()).Run(ctx, series(50, wave))
	if err != context.Canceled {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if res != nil {
		t.Error("got a partial result from a cancelled run")
	}
}

func TestRunIsDeterministic(t *testing.T) {
	candles := series(400, wave)
	cfg := fastStrategy()

	a, err := New(cfg).Run(context.Background(), candles)
	if err != nil {
		t.Fatal(err)
	}
	b, err := New(cfg).Run(context.Background(), candles)
	if err != nil {
		t.Fatal(err)
	}

	aj, _ := a.JSON()
	bj, _ := b.JSON()
	if !bytes.Equal(aj, bj) {
		t.Error("two runs over identical input produced different reports")
	}
}

func TestRunUsesNoFutureData(t *testing.T) {
	full := series(200, wave)
	cfg := fastStrategy()

	whole, err := New(cfg).Run(context.Background(), full)
	if err != nil {
		t.Fatal(err)
	}
	prefix, err := New(cfg).Run(context.Background(), full[:120])
	if err != nil {
		t.Fatal(err)
	}

	// Everything decided inside the prefix must be identical whether or not
	// the later candles exist.
	for i, p := range prefix.EquityCurve {
		if whole.EquityCurve[i] != p {
			t.Fatalf("equity at bar %d differs: full=%v prefix=%v", i, whole.EquityCurve[i], p)
		}
	}
	for i, s := range prefix.Signals {
		if whole.Signals[i] != s {
			t.Fatalf("signal %d differs: full=%+v prefix=%+v", i, whole.Signals[i], s)
		}
	}
}

func TestNoSignalsOrTradesDuringWarmup(t *testing.T) {
	candles := series(300, wave)
	res, err := New(fastStrategy()).Run(context.Background(), candles)
	if err != nil {
		t.Fatal(err)
	}

	// Crossover detection needs two consecutive ready snapshots, so nothing
	// directional can appear before the fifth candle.
	earliest := candles[4].OpenTime
	for _, s := range res.Signals {
		if s.CandleTime.Before(earliest) {
			t.Errorf("signal at %s inside the warm-up window", s.CandleTime)
		}
	}
	for _, tr := range res.Trades {
		if tr.EntryTime.Before(earliest) {
			t.Errorf("trade entered at %s inside the warm-up window", tr.EntryTime)
		}
	}
}

func TestAtMostOnePositionAtATime(t *testing.T) {
	res, err := New(fastStrategy()).Run(context.Background(), series(400, wave))
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(res.Trades); i++ {
		if res.Trades[i].EntryTime.Before(res.Trades[i-1].ExitTime) {
			t.Fatalf("trade %d entered at %s before trade %d exited at %s",
				i, res.Trades[i].EntryTime, i-1, res.Trades[i-1].ExitTime)
		}
	}
	if res.OpenPosition != nil && len(res.Trades) > 0 {
		last := res.Trades[len(res.Trades)-1]
		if res.OpenPosition.EntryTime.Before(last.ExitTime) {
			t.Error("open position overlaps the last closed trade")
		}
	}
}

func TestScriptedRoundTrip(t *testing.T) {
	// Steadily rising prices, one scripted BUY and one scripted SELL past the
	// warm-up window. All cash accounting is hand-checkable.
	candles := series(20, func(i int) float64 { return 100 + float64(i) })
	cfg := fastStrategy()
	src := &scripted{kinds: map[int]model.SignalKind{
		6: model.SignalBuy,
		9: model.SignalSell,
	}}

	res, err := NewWithSource(cfg, src).Run(context.Background(), candles)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Trades) != 1 {
		t.Fatalf("trades = %d, want 1", len(res.Trades))
	}

	tr := res.Trades[0]
	if tr.EntryPrice != 106 || tr.ExitPrice != 109 {
		t.Errorf("entry/exit = %g/%g, want 106/109", tr.EntryPrice, tr.ExitPrice)
	}
	if tr.ExitReason != model.ExitSignal {
		t.Errorf("exit reason = %s, want signal", tr.ExitReason)
	}

	// size = 1000/106, pnl = size * 3
	wantPnL := 1000.0 / 106 * 3
	if math.Abs(tr.RealizedPnL-wantPnL) > 1e-9 {
		t.Errorf("pnl = %g, want %g", tr.RealizedPnL, wantPnL)
	}
	if math.Abs(res.FinalEquity-(1000+wantPnL)) > 1e-9 {
		t.Errorf("final equity = %g, want %g", res.FinalEquity, 1000+wantPnL)
	}
	if res.WinRate != 1.0 {
		t.Errorf("win rate = %g, want 1.0", res.WinRate)
	}
	if res.ProfitFactor != profitFactorCap {
		t.Errorf("profit factor = %g, want sentinel %g with no losses", res.ProfitFactor, profitFactorCap)
	}
	if res.OpenPosition != nil {
		t.Errorf("position left open: %+v", res.OpenPosition)
	}
	wantReturn := wantPnL / 1000 * 100
	if math.Abs(res.TotalReturnPct-wantReturn) > 1e-9 {
		t.Errorf("total return = %g%%, want %g%%", res.TotalReturnPct, wantReturn)
	}
}

func TestScriptedFeesReduceEquity(t *testing.T) {
	candles := series(20, func(i int) float64 { return 100 + float64(i) })
	cfg := fastStrategy()
	cfg.FeePct = 0.001
	cfg.SlippagePct = 0.0005
	src := &scripted{kinds: map[int]model.SignalKind{
		6: model.SignalBuy,
		9: model.SignalSell,
	}}

	res, err := NewWithSource(cfg, src).Run(context.Background(), candles)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Trades) != 1 {
		t.Fatalf("trades = %d, want 1", len(res.Trades))
	}

	// Entry spends exactly size_pct of cash, fees folded into the cost.
	execEntry := 106 * (1 + cfg.SlippagePct)
	size := 1000 * cfg.SizePct / (execEntry * (1 + cfg.FeePct))
	proceeds := size * 109 * (1 - cfg.SlippagePct)
	wantPnL := proceeds*(1-cfg.FeePct) - 1000*cfg.SizePct

	tr := res.Trades[0]
	if math.Abs(tr.RealizedPnL-wantPnL) > 1e-9 {
		t.Errorf("pnl = %g, want %g", tr.RealizedPnL, wantPnL)
	}
	if math.Abs(res.FinalEquity-(1000+wantPnL)) > 1e-9 {
		t.Errorf("final equity = %g, want %g", res.FinalEquity, 1000+wantPnL)
	}
	if tr.Fees <= 0 {
		t.Errorf("fees = %g, want > 0", tr.Fees)
	}
}

// A 1000-bar run with several round trips and real fee/slippage costs: every
// reported metric must agree with the trade ledger and equity curve it ships
// with.
func TestRunLedgerConsistency(t *testing.T) {
	cfg := fastStrategy()
	cfg.FeePct = 0.0004
	cfg.SlippagePct = 0.0005
	src := &scripted{kinds: map[int]model.SignalKind{
		100: model.SignalBuy, 150: model.SignalSell,
		300: model.SignalBuy, 350: model.SignalSell,
		500: model.SignalBuy, 550: model.SignalSell,
		700: model.SignalBuy, 750: model.SignalSell,
	}}

	res, err := NewWithSource(cfg, src).Run(context.Background(), series(1000, wave))
	if err != nil {
		t.Fatal(err)
	}

	// Each scripted BUY finds the book flat (the prior position closes by
	// signal, stop or time exit well before the next entry), so all four
	// round trips complete.
	if len(res.Trades) != 4 {
		t.Fatalf("trades = %d, want 4", len(res.Trades))
	}
	if res.OpenPosition != nil {
		t.Fatalf("position left open: %+v", res.OpenPosition)
	}
	if res.Bars != 1000 || len(res.EquityCurve) != 1000 {
		t.Fatalf("bars = %d, equity points = %d, want 1000 each", res.Bars, len(res.EquityCurve))
	}

	var pnl, grossProfit, grossLoss float64
	wins := 0
	for _, tr := range res.Trades {
		pnl += tr.RealizedPnL
		if tr.Win() {
			wins++
			grossProfit += tr.RealizedPnL
		} else {
			grossLoss += -tr.RealizedPnL
		}
		if tr.Fees <= 0 {
			t.Errorf("trade has no fees: %+v", tr)
		}
	}

	// Cash accounting closes: ending flat, final equity is the initial cash
	// plus the ledger's net PnL, nothing created or destroyed.
	if math.Abs(res.FinalEquity-(cfg.InitialCash+pnl)) > 1e-6 {
		t.Errorf("final equity = %g, want %g (cash + ledger pnl)", res.FinalEquity, cfg.InitialCash+pnl)
	}
	wantReturn := (res.FinalEquity/cfg.InitialCash - 1) * 100
	if math.Abs(res.TotalReturnPct-wantReturn) > 1e-9 {
		t.Errorf("total return = %g%%, want %g%%", res.TotalReturnPct, wantReturn)
	}
	if math.Abs(res.WinRate-float64(wins)/4) > 1e-9 {
		t.Errorf("win rate = %g, want %g", res.WinRate, float64(wins)/4)
	}
	wantPF := profitFactorCap
	if grossLoss > 0 {
		wantPF = grossProfit / grossLoss
	}
	if math.Abs(res.ProfitFactor-wantPF) > 1e-9 {
		t.Errorf("profit factor = %g, want %g", res.ProfitFactor, wantPF)
	}

	var peak, wantDD float64
	for _, p := range res.EquityCurve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if dd := (peak - p.Equity) / peak * 100; dd > wantDD {
			wantDD = dd
		}
	}
	if math.Abs(res.MaxDrawdownPct-wantDD) > 1e-9 {
		t.Errorf("max drawdown = %g%%, want %g%% from the equity curve", res.MaxDrawdownPct, wantDD)
	}
	if math.IsNaN(res.Sharpe) || math.IsInf(res.Sharpe, 0) {
		t.Errorf("sharpe = %g, want finite", res.Sharpe)
	}
	if last := res.EquityCurve[len(res.EquityCurve)-1]; math.Abs(last.Equity-res.FinalEquity) > 1e-9 {
		t.Errorf("equity curve ends at %g, final equity %g", last.Equity, res.FinalEquity)
	}
}

func TestMaxDrawdown(t *testing.T) {
	curve := []EquityPoint{
		{Equity: 100}, {Equity: 120}, {Equity: 90}, {Equity: 130}, {Equity: 117},
	}
	got := maxDrawdownPct(curve)
	want := (120.0 - 90.0) / 120.0 * 100
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("max drawdown = %g, want %g", got, want)
	}
	if dd := maxDrawdownPct(nil); dd != 0 {
		t.Errorf("empty curve drawdown = %g, want 0", dd)
	}
}

func TestTradeStats(t *testing.T) {
	trades := []model.Trade{
		{RealizedPnL: 10},
		{RealizedPnL: -4},
		{RealizedPnL: 2},
	}
	winRate, pf := tradeStats(trades)
	if math.Abs(winRate-2.0/3.0) > 1e-9 {
		t.Errorf("win rate = %g, want 2/3", winRate)
	}
	if math.Abs(pf-3.0) > 1e-9 {
		t.Errorf("profit factor = %g, want 3", pf)
	}

	if winRate, pf = tradeStats(nil); winRate != 0 || pf != 0 {
		t.Errorf("no trades: got %g/%g, want 0/0", winRate, pf)
	}

	_, pf = tradeStats([]model.Trade{{RealizedPnL: 5}})
	if pf != profitFactorCap {
		t.Errorf("profit factor with no losses = %g, want %g", pf, profitFactorCap)
	}
}

func TestSharpeFlatCurveIsZero(t *testing.T) {
	curve := []EquityPoint{{Equity: 100}, {Equity: 100}, {Equity: 100}}
	if s := sharpe(curve, 105120); s != 0 {
		t.Errorf("sharpe of flat curve = %g, want 0", s)
	}
	if s := sharpe(curve[:1], 105120); s != 0 {
		t.Errorf("sharpe of single point = %g, want 0", s)
	}
}
