package feed

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"

	"tradesignals/internal/model"
)

// Binance sources candles from Binance spot: REST klines for history and the
// kline WebSocket stream for live updates. Public market data only, no API
// keys needed.
type Binance struct {
	client *binance.Client
}

// NewBinance creates an unauthenticated Binance feed.
func NewBinance() *Binance {
	return &Binance{client: binance.NewClient("", "")}
}

// History fetches the most recent closed candles, oldest first. The still
// forming candle Binance appends to the response is dropped.
func (b *Binance) History(ctx context.Context, symbol, timeframe string, limit int) ([]model.Candle, error) {
	if _, err := model.TimeframeDuration(timeframe); err != nil {
		return nil, fmt.Errorf("feed: %w", err)
	}
	if limit < 1 {
		return nil, fmt.Errorf("feed: history limit must be >= 1, got %d", limit)
	}

	// One extra so that trimming the forming candle still yields limit rows.
	klines, err := b.client.NewKlinesService().
		Symbol(symbol).
		Interval(timeframe).
		Limit(limit + 1).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("feed: klines %s/%s: %w", symbol, timeframe, err)
	}

	nowMs := time.Now().UnixMilli()
	candles := make([]model.Candle, 0, len(klines))
	for _, k := range klines {
		if k.CloseTime >= nowMs {
			continue // still forming
		}
		c, err := parseCandle(symbol, timeframe, k.OpenTime, k.Open, k.High, k.Low, k.Close, k.Volume)
		if err != nil {
			return nil, err
		}
		candles = append(candles, c)
	}
	if len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	return candles, nil
}

// Stream subscribes to the kline WebSocket and forwards each candle exactly
// once, when Binance marks it final.
func (b *Binance) Stream(ctx context.Context, symbol, timeframe string, out chan<- model.Candle) error {
	if _, err := model.TimeframeDuration(timeframe); err != nil {
		return fmt.Errorf("feed: %w", err)
	}

	stop := make(chan struct{})
	errC := make(chan error, 1)

	handler := func(ev *binance.WsKlineEvent) {
		if !ev.Kline.IsFinal {
			return
		}
		k := ev.Kline
		c, err := parseCandle(symbol, timeframe, k.StartTime, k.Open, k.High, k.Low, k.Close, k.Volume)
		if err != nil {
			select {
			case errC <- err:
			default:
			}
			return
		}
		select {
		case out <- c:
		case <-ctx.Done():
		case <-stop:
		}
	}
	errHandler := func(err error) {
		select {
		case errC <- fmt.Errorf("feed: ws %s/%s: %w", symbol, timeframe, err):
		default:
		}
	}

	doneC, stopC, err := binance.WsKlineServe(symbol, timeframe, handler, errHandler)
	if err != nil {
		return fmt.Errorf("feed: ws connect %s/%s: %w", symbol, timeframe, err)
	}
	defer func() {
		close(stop)
		close(stopC)
		<-doneC
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errC:
		return err
	case <-doneC:
		return errors.New("feed: ws stream closed")
	}
}

func parseCandle(symbol, timeframe string, openTimeMs int64, o, h, l, c, v string) (model.Candle, error) {
	var (
		candle = model.Candle{
			Symbol:    symbol,
			Timeframe: timeframe,
			OpenTime:  time.UnixMilli(openTimeMs).UTC(),
		}
		err error
	)
	if candle.Open, err = strconv.ParseFloat(o, 64); err != nil {
		return model.Candle{}, fmt.Errorf("feed: bad open %q: %w", o, err)
	}
	if candle.High, err = strconv.ParseFloat(h, 64); err != nil {
		return model.Candle{}, fmt.Errorf("feed: bad high %q: %w", h, err)
	}
	if candle.Low, err = strconv.ParseFloat(l, 64); err != nil {
		return model.Candle{}, fmt.Errorf("feed: bad low %q: %w", l, err)
	}
	if candle.Close, err = strconv.ParseFloat(c, 64); err != nil {
		return model.Candle{}, fmt.Errorf("feed: bad close %q: %w", c, err)
	}
	if candle.Volume, err = strconv.ParseFloat(v, 64); err != nil {
		return model.Candle{}, fmt.Errorf("feed: bad volume %q: %w", v, err)
	}
	return candle, nil
}
