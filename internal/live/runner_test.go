package live

import (
	"context"
	"sync"
	"testing"
	"time"

	"tradesignals/config"
	"tradesignals/internal/feed"
	"tradesignals/internal/model"
)

var testBase = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func testStrategy() config.Strategy {
	cfg := config.DefaultStrategy()
	cfg.BBPeriod = 3
	cfg.BBStd = 1.0
	cfg.MACDFast = 2
	cfg.MACDSlow = 3
	cfg.MACDSignalPeriod = 2
	cfg.RSIPeriod = 2
	cfg.ATRPeriod = 2
	return cfg
}

func candles(from, n int) []model.Candle {
	out := make([]model.Candle, n)
	for i := 0; i < n; i++ {
		p := 100 + float64(from+i)*0.1
		out[i] = model.Candle{
			Symbol:    "BTCUSDT",
			Timeframe: "5m",
			OpenTime:  testBase.Add(time.Duration(from+i) * 5 * time.Minute),
			Open:      p,
			High:      p,
			Low:       p,
			Close:     p,
			Volume:    1,
		}
	}
	return out
}

// fakeFeed serves a fixed candle tape as history.
type fakeFeed struct {
	tape []model.Candle
}

func (f *fakeFeed) History(_ context.Context, _, _ string, limit int) ([]model.Candle, error) {
	if len(f.tape) > limit {
		return f.tape[len(f.tape)-limit:], nil
	}
	return f.tape, nil
}

func (f *fakeFeed) Stream(ctx context.Context, _, _ string, _ chan<- model.Candle) error {
	<-ctx.Done()
	return ctx.Err()
}

type fakeSink struct {
	mu      sync.Mutex
	updates []model.Update
	signals []model.SignalEvent
}

func (s *fakeSink) PublishUpdate(_ context.Context, u *model.Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, *u)
	return nil
}

func (s *fakeSink) PushSignal(_ context.Context, ev model.SignalEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signals = append(s.signals, ev)
	return nil
}

func (s *fakeSink) updateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.updates)
}

func (s *fakeSink) lastUpdate() model.Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updates[len(s.updates)-1]
}

// replayFeed streams a fixed candle set over and over, like a feed stuck
// serving stale data.
type replayFeed struct {
	fakeFeed
	replay []model.Candle
}

func (f *replayFeed) Stream(ctx context.Context, _, _ string, out chan<- model.Candle) error {
	for {
		for _, c := range f.replay {
			select {
			case out <- c:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func newTestRunner(t *testing.T, f feed.Feed, sink *fakeSink) *runner {
	t.Helper()
	d := New(testStrategy(), []string{"BTCUSDT"}, "5m", f, sink, nil, nil, Deps{})
	r, err := newRunner(d, "BTCUSDT")
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestWarmupDoesNotPublish(t *testing.T) {
	f := &fakeFeed{tape: candles(0, 60)}
	sink := &fakeSink{}
	r := newTestRunner(t, f, sink)

	if err := r.backfill(context.Background()); err != nil {
		t.Fatal(err)
	}
	if sink.updateCount() != 0 {
		t.Errorf("published %d updates during warm-up, want 0", sink.updateCount())
	}
	if !r.lastOpen.Equal(f.tape[len(f.tape)-1].OpenTime) {
		t.Errorf("lastOpen = %s, want last history candle", r.lastOpen)
	}
}

func TestProcessPublishesAndAdvances(t *testing.T) {
	f := &fakeFeed{tape: candles(0, 60)}
	sink := &fakeSink{}
	r := newTestRunner(t, f, sink)
	ctx := context.Background()
	if err := r.backfill(ctx); err != nil {
		t.Fatal(err)
	}

	fresh := candles(60, 3)
	for _, c := range fresh {
		r.process(ctx, c)
	}

	if sink.updateCount() != 3 {
		t.Fatalf("published %d updates, want 3", sink.updateCount())
	}
	u := sink.lastUpdate()
	if u.Type != model.UpdateTypeSymbol || u.Symbol != "BTCUSDT" {
		t.Errorf("update envelope = %+v", u)
	}
	if u.Data.Price != fresh[2].Close {
		t.Errorf("price = %g, want %g", u.Data.Price, fresh[2].Close)
	}
	if u.Data.Indicators.RSI == 0 {
		t.Error("indicators missing from update after warm-up")
	}
}

func TestProcessRejectsOutOfOrder(t *testing.T) {
	f := &fakeFeed{tape: candles(0, 60)}
	sink := &fakeSink{}
	r := newTestRunner(t, f, sink)
	ctx := context.Background()
	if err := r.backfill(ctx); err != nil {
		t.Fatal(err)
	}

	c := candles(60, 1)[0]
	r.process(ctx, c)
	r.process(ctx, c) // duplicate
	stale := candles(30, 1)[0]
	r.process(ctx, stale) // older than lastOpen

	if sink.updateCount() != 1 {
		t.Errorf("published %d updates, want 1 (duplicates rejected)", sink.updateCount())
	}
}

func TestStreamReconnectsOnPersistentOutOfOrder(t *testing.T) {
	f := &replayFeed{
		fakeFeed: fakeFeed{tape: candles(0, 60)},
		replay:   candles(30, 1), // forever re-serving an already-seen candle
	}
	sink := &fakeSink{}
	r := newTestRunner(t, f, sink)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.backfill(ctx); err != nil {
		t.Fatal(err)
	}
	published := sink.updateCount()

	err := r.stream(ctx)
	if err == nil {
		t.Fatal("stream kept consuming a stale-replaying feed, want error")
	}
	if ctx.Err() != nil {
		t.Fatalf("stream only ended via timeout: %v", err)
	}
	if sink.updateCount() != published {
		t.Errorf("published %d updates from stale candles, want 0", sink.updateCount()-published)
	}
}

func TestBackfillReplaysOnlyMissedCandles(t *testing.T) {
	f := &fakeFeed{tape: candles(0, 60)}
	sink := &fakeSink{}
	r := newTestRunner(t, f, sink)
	ctx := context.Background()
	if err := r.backfill(ctx); err != nil {
		t.Fatal(err)
	}

	// Outage: 5 candles close while disconnected.
	f.tape = candles(0, 65)
	if err := r.backfill(ctx); err != nil {
		t.Fatal(err)
	}

	if sink.updateCount() != 5 {
		t.Errorf("published %d updates after backfill, want 5", sink.updateCount())
	}
	if !r.lastOpen.Equal(f.tape[64].OpenTime) {
		t.Errorf("lastOpen = %s, want newest candle", r.lastOpen)
	}
}

func TestBackfillResetsOnLargeGap(t *testing.T) {
	f := &fakeFeed{tape: candles(0, 60)}
	sink := &fakeSink{}
	r := newTestRunner(t, f, sink)
	ctx := context.Background()
	if err := r.backfill(ctx); err != nil {
		t.Fatal(err)
	}
	warmCount := r.pipeline.Count()

	// Outage longer than the fetch window: history restarts far ahead.
	f.tape = candles(500, 60)
	if err := r.backfill(ctx); err != nil {
		t.Fatal(err)
	}

	if sink.updateCount() != 0 {
		t.Errorf("published %d updates during re-warm-up, want 0", sink.updateCount())
	}
	if r.pipeline.Count() != warmCount {
		t.Errorf("pipeline count = %d, want %d (fresh warm-up)", r.pipeline.Count(), warmCount)
	}
	if !r.lastOpen.Equal(f.tape[len(f.tape)-1].OpenTime) {
		t.Errorf("lastOpen = %s, want newest candle", r.lastOpen)
	}
}

func TestStaleMarking(t *testing.T) {
	f := &fakeFeed{tape: candles(0, 60)}
	sink := &fakeSink{}
	r := newTestRunner(t, f, sink)
	ctx := context.Background()
	if err := r.backfill(ctx); err != nil {
		t.Fatal(err)
	}
	r.process(ctx, candles(60, 1)[0])

	r.markStale(ctx)
	if u := sink.lastUpdate(); !u.Data.Stale {
		t.Error("stale update not published on disconnect")
	}
	r.markStale(ctx) // idempotent
	if sink.updateCount() != 2 {
		t.Errorf("published %d updates, want 2 (stale mark is one-shot)", sink.updateCount())
	}

	r.clearStale(ctx)
	if u := sink.lastUpdate(); u.Data.Stale {
		t.Error("stale flag not cleared on reconnect")
	}
}
