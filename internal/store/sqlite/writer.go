// Package sqlite persists candle history plus a journal of emitted signals
// and simulated trades.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"tradesignals/internal/model"
)

const (
	defaultBatchSize  = 100
	defaultFlushDelay = 200 * time.Millisecond
)

// Config configures the SQLite writer.
type Config struct {
	DBPath string // e.g. "data/candles.db"
}

// Writer is a single-goroutine SQLite writer with transaction batching.
type Writer struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

// New opens the database in WAL mode and creates the schema.
func New(cfg Config) (*Writer, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Writer{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS candles (
			symbol    TEXT    NOT NULL,
			timeframe TEXT    NOT NULL,
			open_time INTEGER NOT NULL,
			open      REAL    NOT NULL,
			high      REAL    NOT NULL,
			low       REAL    NOT NULL,
			close     REAL    NOT NULL,
			volume    REAL    NOT NULL,
			PRIMARY KEY (symbol, timeframe, open_time)
		);

		CREATE TABLE IF NOT EXISTS signals (
			symbol      TEXT    NOT NULL,
			candle_time INTEGER NOT NULL,
			kind        TEXT    NOT NULL,
			price       REAL    NOT NULL,
			rsi         REAL    NOT NULL,
			PRIMARY KEY (symbol, candle_time)
		);

		CREATE TABLE IF NOT EXISTS trades (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol       TEXT    NOT NULL,
			entry_time   INTEGER NOT NULL,
			exit_time    INTEGER NOT NULL,
			entry_price  REAL    NOT NULL,
			exit_price   REAL    NOT NULL,
			size         REAL    NOT NULL,
			bars_held    INTEGER NOT NULL,
			exit_reason  TEXT    NOT NULL,
			realized_pnl REAL    NOT NULL,
			fees         REAL    NOT NULL
		);
	`)
	return err
}

// Run reads candles from candleCh and inserts them in batched transactions.
// Flushes every batchSize candles or every flushDelay, whichever first.
// Blocks until ctx is cancelled or candleCh is closed.
func (w *Writer) Run(ctx context.Context, candleCh <-chan model.Candle) {
	batch := make([]model.Candle, 0, defaultBatchSize)
	timer := time.NewTimer(defaultFlushDelay)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := w.WriteCandles(batch); err != nil {
			log.Printf("[sqlite] batch insert error: %v", err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case candle, ok := <-candleCh:
			if !ok {
				flush()
				return
			}
			batch = append(batch, candle)
			if len(batch) >= defaultBatchSize {
				flush()
				timer.Reset(defaultFlushDelay)
			}
		case <-timer.C:
			flush()
			timer.Reset(defaultFlushDelay)
		}
	}
}

// WriteCandles upserts a batch of candles in one transaction. Re-delivered
// candles overwrite their earlier row, keeping the unique-key invariant.
func (w *Writer) WriteCandles(candles []model.Candle) error {
	tx, err := w.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO candles (symbol, timeframe, open_time, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i := range candles {
		c := &candles[i]
		_, err := stmt.Exec(c.Symbol, c.Timeframe, c.OpenTime.Unix(), c.Open, c.High, c.Low, c.Close, c.Volume)
		if err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// SaveSignal journals one directional signal event.
func (w *Writer) SaveSignal(ev model.SignalEvent) error {
	_, err := w.db.Exec(`
		INSERT OR REPLACE INTO signals (symbol, candle_time, kind, price, rsi)
		VALUES (?, ?, ?, ?, ?)
	`, ev.Symbol, ev.CandleTime.Unix(), string(ev.Kind), ev.Price, ev.RSI)
	if err != nil {
		return fmt.Errorf("sqlite insert signal: %w", err)
	}
	return nil
}

// SaveTrade journals one closed trade.
func (w *Writer) SaveTrade(tr model.Trade) error {
	_, err := w.db.Exec(`
		INSERT INTO trades (symbol, entry_time, exit_time, entry_price, exit_price, size, bars_held, exit_reason, realized_pnl, fees)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, tr.Symbol, tr.EntryTime.Unix(), tr.ExitTime.Unix(), tr.EntryPrice, tr.ExitPrice,
		tr.Size, tr.BarsHeld, string(tr.ExitReason), tr.RealizedPnL, tr.Fees)
	if err != nil {
		return fmt.Errorf("sqlite insert trade: %w", err)
	}
	return nil
}

// LastOpenTime returns the newest stored candle open time for the series, or
// the zero time when none exist.
func (w *Writer) LastOpenTime(symbol, timeframe string) (time.Time, error) {
	var ts sql.NullInt64
	err := w.db.QueryRow(
		`SELECT MAX(open_time) FROM candles WHERE symbol = ? AND timeframe = ?`,
		symbol, timeframe,
	).Scan(&ts)
	if err != nil {
		return time.Time{}, err
	}
	if !ts.Valid {
		return time.Time{}, nil
	}
	return time.Unix(ts.Int64, 0).UTC(), nil
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}
