package live

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jpillora/backoff"

	"tradesignals/config"
	"tradesignals/internal/feed"
	"tradesignals/internal/indicator"
	"tradesignals/internal/model"
	"tradesignals/internal/notification"
	"tradesignals/internal/position"
	"tradesignals/internal/strategy"
)

// Extra candles fetched beyond the warm-up window so a short outage can be
// backfilled without resetting the pipeline.
const historyPad = 50

// Consecutive out-of-order candles tolerated before the stream is treated as
// a feed failure and reconnected.
const maxStaleStreak = 5

// runner drives one symbol: warm-up, streaming, reconnect and backfill. All
// of a symbol's state is confined to its runner goroutine.
type runner struct {
	symbol    string
	timeframe string
	step      time.Duration
	cfg       config.Strategy

	feed     feed.Feed
	sink     UpdateSink
	journal  Journal
	notifier notification.Notifier
	deps     Deps

	pipeline *indicator.Pipeline
	eval     *strategy.Evaluator
	mgr      *position.Manager

	lastOpen   time.Time
	lastKind   model.SignalKind // last directional signal acted on
	lastUpdate *model.Update
	stale      bool
}

func newRunner(d *Dispatcher, symbol string) (*runner, error) {
	step, err := model.TimeframeDuration(d.timeframe)
	if err != nil {
		return nil, err
	}
	return &runner{
		symbol:    symbol,
		timeframe: d.timeframe,
		step:      step,
		cfg:       d.cfg,
		feed:      d.feed,
		sink:      d.sink,
		journal:   d.journal,
		notifier:  d.notifier,
		deps:      d.deps,
		pipeline:  indicator.NewPipeline(d.cfg),
		eval:      strategy.NewEvaluator(d.cfg),
		mgr:       position.NewManager(symbol, d.cfg, position.FixedSizer(1)),
		lastKind:  model.SignalNeutral,
	}, nil
}

// run blocks until ctx is cancelled. The feed is retried forever: a market
// data outage degrades the symbol to stale, it never kills the process.
func (r *runner) run(ctx context.Context) {
	retry := &backoff.Backoff{
		Min:    5 * time.Second,
		Max:    60 * time.Second,
		Factor: 1.5,
		Jitter: true,
	}

	for ctx.Err() == nil {
		if err := r.backfill(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("[live] %s history fetch: %v", r.symbol, err)
			r.sleep(ctx, retry.Duration())
			continue
		}
		r.clearStale(ctx)

		err := r.stream(ctx)
		if ctx.Err() != nil {
			return
		}
		log.Printf("[live] %s stream down: %v", r.symbol, err)

		r.markStale(ctx)
		if r.deps.Metrics != nil {
			r.deps.Metrics.FeedReconnects.Inc()
		}
		r.sleep(ctx, retry.Duration())
	}
}

// stream consumes live candles until the connection drops. A feed stuck
// replaying already-seen candles is treated as down and reconnected.
func (r *runner) stream(ctx context.Context) error {
	out := make(chan model.Candle, 16)
	errC := make(chan error, 1)
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		errC <- r.feed.Stream(streamCtx, r.symbol, r.timeframe, out)
	}()

	staleStreak := 0
	for {
		select {
		case <-ctx.Done():
			<-errC
			return ctx.Err()
		case err := <-errC:
			return err
		case c := <-out:
			if !r.process(ctx, c) {
				staleStreak++
				if staleStreak >= maxStaleStreak {
					return fmt.Errorf("%d consecutive out-of-order candles", staleStreak)
				}
				continue
			}
			staleStreak = 0
		}
	}
}

// backfill fetches recent history and replays what this runner has not seen.
// On first run it warms the pipeline; after an outage it fills the gap, or
// resets to a clean warm-up when the gap outgrew the fetch window.
func (r *runner) backfill(ctx context.Context) error {
	limit := r.cfg.WarmupBars() + historyPad
	candles, err := r.feed.History(ctx, r.symbol, r.timeframe, limit)
	if err != nil {
		return err
	}
	if len(candles) == 0 {
		return fmt.Errorf("empty history for %s/%s", r.symbol, r.timeframe)
	}
	if err := model.ValidateSeries(candles); err != nil {
		return err
	}

	if r.lastOpen.IsZero() {
		// Initial warm-up: indicators and crossover state only, no trading
		// or publishing on historical candles.
		for _, c := range candles {
			r.observe(c)
			r.lastOpen = c.OpenTime
		}
		log.Printf("[live] %s warmed up on %d candles (last %s)",
			r.symbol, len(candles), r.lastOpen.Format(time.RFC3339))
		return nil
	}

	if candles[0].OpenTime.After(r.lastOpen.Add(r.step)) {
		// The outage outlasted the fetch window. Start over: drop indicator
		// and crossover state and re-warm, keeping the position untouched.
		log.Printf("[live] %s gap exceeds %d candles, resetting pipeline", r.symbol, limit)
		r.pipeline.Reset()
		r.eval.Reset()
		for _, c := range candles {
			r.observe(c)
			r.lastOpen = c.OpenTime
		}
		return nil
	}

	// Contiguous: replay only the candles missed during the outage.
	missed := 0
	for _, c := range candles {
		if !c.OpenTime.After(r.lastOpen) {
			continue
		}
		r.process(ctx, c)
		missed++
	}
	if missed > 0 {
		log.Printf("[live] %s backfilled %d missed candles", r.symbol, missed)
	}
	return nil
}

// observe advances indicators and crossover state without trading.
func (r *runner) observe(c model.Candle) (model.IndicatorSnapshot, model.SignalEvent) {
	snap := r.pipeline.Update(c)
	ev := r.eval.OnCandle(c, snap)
	return snap, ev
}

// process handles one live closed candle end to end: indicators, signal,
// position, persistence and publish. Reports whether the candle was accepted;
// out-of-order candles are rejected.
func (r *runner) process(ctx context.Context, c model.Candle) bool {
	if !c.OpenTime.After(r.lastOpen) {
		log.Printf("[live] %s dropping out-of-order candle %s (last %s)",
			r.symbol, c.OpenTime.Format(time.RFC3339), r.lastOpen.Format(time.RFC3339))
		return false
	}
	start := time.Now()
	r.lastOpen = c.OpenTime
	r.clearStale(ctx)

	snap, ev := r.observe(c)
	trade := r.mgr.OnCandle(c, snap, ev.Kind)

	if ev.Kind != model.SignalNeutral && ev.Kind != r.lastKind {
		r.lastKind = ev.Kind
		r.recordSignal(ctx, ev)
	}
	if trade != nil {
		r.recordTrade(ctx, *trade)
	}

	pos := r.mgr.Position()
	var posRef *model.Position
	if pos.State == model.PositionOpen {
		posRef = &pos
	}
	update := model.NewUpdate(r.symbol, c.OpenTime, c.Close, ev.Kind, snap, posRef)
	r.lastUpdate = &update
	if r.sink != nil {
		r.sink.PublishUpdate(ctx, &update)
	}
	if r.deps.Candles != nil {
		select {
		case r.deps.Candles <- c:
		default:
			log.Printf("[live] %s candle store queue full, dropping", r.symbol)
		}
	}

	if m := r.deps.Metrics; m != nil {
		m.CandlesTotal.Inc()
		m.ProcessDur.Observe(time.Since(start).Seconds())
	}
	return true
}

func (r *runner) recordSignal(ctx context.Context, ev model.SignalEvent) {
	log.Printf("[live] %s %s signal at %.4f (rsi %.1f)", r.symbol, ev.Kind, ev.Price, ev.RSI)

	if r.sink != nil {
		r.sink.PushSignal(ctx, ev)
	}
	if r.journal != nil {
		if err := r.journal.SaveSignal(ev); err != nil {
			log.Printf("[live] %s journal signal: %v", r.symbol, err)
		}
	}
	if m := r.deps.Metrics; m != nil {
		m.SignalsTotal.WithLabelValues(string(ev.Kind)).Inc()
	}
	if r.notifier != nil {
		alert := notification.Alert{
			Level: notification.AlertInfo,
			Title: fmt.Sprintf("%s %s", ev.Kind, ev.Symbol),
			Message: fmt.Sprintf("%s %s at %.4f, RSI %.1f",
				ev.Kind, ev.Symbol, ev.Price, ev.RSI),
		}
		if err := r.notifier.Send(ctx, alert); err != nil {
			log.Printf("[live] %s notify: %v", r.symbol, err)
		}
	}
}

func (r *runner) recordTrade(ctx context.Context, tr model.Trade) {
	if r.journal != nil {
		if err := r.journal.SaveTrade(tr); err != nil {
			log.Printf("[live] %s journal trade: %v", r.symbol, err)
		}
	}
	if r.notifier != nil {
		alert := notification.Alert{
			Level: notification.AlertInfo,
			Title: fmt.Sprintf("Closed %s (%s)", tr.Symbol, tr.ExitReason),
			Message: fmt.Sprintf("%s exit at %.4f after %d bars, pnl %.4f",
				tr.Symbol, tr.ExitPrice, tr.BarsHeld, tr.RealizedPnL),
		}
		if err := r.notifier.Send(ctx, alert); err != nil {
			log.Printf("[live] %s notify: %v", r.symbol, err)
		}
	}
}

// markStale republishes the last update flagged stale so dashboards can grey
// the symbol out while the feed is down.
func (r *runner) markStale(ctx context.Context) {
	if r.stale {
		return
	}
	r.stale = true
	if r.deps.Metrics != nil {
		r.deps.Metrics.StaleSymbols.Inc()
	}
	if r.lastUpdate == nil || r.sink == nil {
		return
	}
	u := *r.lastUpdate
	u.Data.Stale = true
	r.sink.PublishUpdate(ctx, &u)
}

func (r *runner) clearStale(ctx context.Context) {
	if !r.stale {
		return
	}
	r.stale = false
	if r.deps.Metrics != nil {
		r.deps.Metrics.StaleSymbols.Dec()
	}
	if r.lastUpdate == nil || r.sink == nil {
		return
	}
	u := *r.lastUpdate
	u.Data.Stale = false
	r.sink.PublishUpdate(ctx, &u)
}

func (r *runner) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
