// Package live runs the signal pipeline against a real-time market data
// feed: one goroutine per symbol, each owning its indicator pipeline, signal
// evaluator and position manager, publishing updates for the dashboard.
package live

import (
	"context"
	"fmt"
	"sync"

	"tradesignals/config"
	"tradesignals/internal/feed"
	"tradesignals/internal/metrics"
	"tradesignals/internal/model"
	"tradesignals/internal/notification"
)

// UpdateSink receives the per-candle updates and signal events produced by
// the pipeline. Implemented by the Redis publisher.
type UpdateSink interface {
	PublishUpdate(ctx context.Context, u *model.Update) error
	PushSignal(ctx context.Context, ev model.SignalEvent) error
}

// Journal persists signals and trades. Implemented by the SQLite writer.
type Journal interface {
	SaveSignal(ev model.SignalEvent) error
	SaveTrade(tr model.Trade) error
}

// Deps are the optional side outputs shared by all runners.
type Deps struct {
	Metrics *metrics.Metrics
	Candles chan<- model.Candle // candle persistence queue, may be nil
}

// Dispatcher fans the configured symbols out to per-symbol runners.
type Dispatcher struct {
	cfg       config.Strategy
	symbols   []string
	timeframe string

	feed     feed.Feed
	sink     UpdateSink
	journal  Journal
	notifier notification.Notifier
	deps     Deps
}

// New creates a dispatcher. sink, journal and notifier may be nil; the
// pipeline still runs without them.
func New(cfg config.Strategy, symbols []string, timeframe string, f feed.Feed,
	sink UpdateSink, journal Journal, notifier notification.Notifier, deps Deps) *Dispatcher {
	return &Dispatcher{
		cfg:       cfg,
		symbols:   symbols,
		timeframe: timeframe,
		feed:      f,
		sink:      sink,
		journal:   journal,
		notifier:  notifier,
		deps:      deps,
	}
}

// Run starts one runner per symbol and blocks until ctx is cancelled and all
// runners have stopped.
func (d *Dispatcher) Run(ctx context.Context) error {
	if len(d.symbols) == 0 {
		return fmt.Errorf("live: no symbols configured")
	}
	if _, err := model.TimeframeDuration(d.timeframe); err != nil {
		return fmt.Errorf("live: %w", err)
	}
	if err := d.cfg.Validate(); err != nil {
		return err
	}

	var wg sync.WaitGroup
	for _, symbol := range d.symbols {
		r, err := newRunner(d, symbol)
		if err != nil {
			return fmt.Errorf("live: %s: %w", symbol, err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.run(ctx)
		}()
	}
	wg.Wait()
	return ctx.Err()
}
