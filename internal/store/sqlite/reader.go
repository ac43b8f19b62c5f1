package sqlite

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"tradesignals/internal/model"
)

// Reader provides read-only access for backtests and the REST API.
type Reader struct {
	db *sql.DB
}

// NewReader opens a SQLite connection for reading.
func NewReader(dbPath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	log.Printf("[sqlite-reader] opened %s", dbPath)
	return &Reader{db: db}, nil
}

// ReadCandles returns all candles of a series with open time after the given
// instant, ordered ascending. Pass the zero time for the full series.
func (r *Reader) ReadCandles(symbol, timeframe string, after time.Time) ([]model.Candle, error) {
	rows, err := r.db.Query(`
		SELECT symbol, timeframe, open_time, open, high, low, close, volume
		FROM candles
		WHERE symbol = ? AND timeframe = ? AND open_time > ?
		ORDER BY open_time ASC
	`, symbol, timeframe, after.Unix())
	if err != nil {
		return nil, fmt.Errorf("sqlite query candles: %w", err)
	}
	defer rows.Close()

	var candles []model.Candle
	for rows.Next() {
		var c model.Candle
		var ts int64
		if err := rows.Scan(&c.Symbol, &c.Timeframe, &ts, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("sqlite scan candle: %w", err)
		}
		c.OpenTime = time.Unix(ts, 0).UTC()
		candles = append(candles, c)
	}
	return candles, rows.Err()
}

// RecentSignals returns up to limit journaled signals for a symbol, newest
// first.
func (r *Reader) RecentSignals(symbol string, limit int) ([]model.SignalEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(`
		SELECT symbol, candle_time, kind, price, rsi
		FROM signals
		WHERE symbol = ?
		ORDER BY candle_time DESC
		LIMIT ?
	`, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite query signals: %w", err)
	}
	defer rows.Close()

	var events []model.SignalEvent
	for rows.Next() {
		var ev model.SignalEvent
		var ts int64
		var kind string
		if err := rows.Scan(&ev.Symbol, &ts, &kind, &ev.Price, &ev.RSI); err != nil {
			return nil, fmt.Errorf("sqlite scan signal: %w", err)
		}
		ev.CandleTime = time.Unix(ts, 0).UTC()
		ev.Kind = model.SignalKind(kind)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}
