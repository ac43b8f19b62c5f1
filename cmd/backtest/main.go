// cmd/backtest replays historical candles from the local SQLite store through
// the full signal pipeline and prints performance metrics. With -fetch it
// first pulls recent klines from Binance and persists them before running.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tradesignals/config"
	"tradesignals/internal/backtest"
	"tradesignals/internal/feed"
	sqlitestore "tradesignals/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	var (
		dbPath    = flag.String("db", "data/market.db", "sqlite database path")
		symbol    = flag.String("symbol", "BTCUSDT", "symbol to backtest")
		timeframe = flag.String("tf", "5m", "candle timeframe")
		stratPath = flag.String("config", "", "strategy yaml path (defaults used if empty)")
		fetch     = flag.Int("fetch", 0, "fetch N recent candles from Binance before running")
		outPath   = flag.String("out", "", "write full JSON report to this file")
	)
	flag.Parse()

	strat, err := config.LoadStrategy(*stratPath)
	if err != nil {
		log.Fatalf("[backtest] %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if *fetch > 0 {
		if err := fetchCandles(ctx, *dbPath, *symbol, *timeframe, *fetch); err != nil {
			log.Fatalf("[backtest] fetch: %v", err)
		}
	}

	reader, err := sqlitestore.NewReader(*dbPath)
	if err != nil {
		log.Fatalf("[backtest] %v", err)
	}
	defer reader.Close()

	candles, err := reader.ReadCandles(*symbol, *timeframe, time.Time{})
	if err != nil {
		log.Fatalf("[backtest] read candles: %v", err)
	}
	if len(candles) == 0 {
		log.Fatalf("[backtest] no candles for %s %s in %s (try -fetch)", *symbol, *timeframe, *dbPath)
	}
	log.Printf("[backtest] %s %s: %d candles from %s to %s",
		*symbol, *timeframe, len(candles),
		candles[0].OpenTime.Format(time.RFC3339),
		candles[len(candles)-1].OpenTime.Format(time.RFC3339))

	res, err := backtest.New(strat).Run(ctx, candles)
	if err != nil {
		log.Fatalf("[backtest] %v", err)
	}

	printSummary(res)

	if *outPath != "" {
		data, err := res.JSON()
		if err != nil {
			log.Fatalf("[backtest] encode report: %v", err)
		}
		if err := os.WriteFile(*outPath, data, 0o644); err != nil {
			log.Fatalf("[backtest] write report: %v", err)
		}
		log.Printf("[backtest] report written to %s", *outPath)
	}
}

func fetchCandles(ctx context.Context, dbPath, symbol, timeframe string, n int) error {
	candles, err := feed.NewBinance().History(ctx, symbol, timeframe, n)
	if err != nil {
		return err
	}
	store, err := sqlitestore.New(sqlitestore.Config{DBPath: dbPath})
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.WriteCandles(candles); err != nil {
		return err
	}
	log.Printf("[backtest] fetched and stored %d candles for %s %s", len(candles), symbol, timeframe)
	return nil
}

func printSummary(res *backtest.Result) {
	fmt.Println("----------------------------------------")
	fmt.Printf("  %s %s  (%d bars)\n", res.Symbol, res.Timeframe, res.Bars)
	fmt.Printf("  %s -> %s\n", res.Start.Format("2006-01-02 15:04"), res.End.Format("2006-01-02 15:04"))
	fmt.Println("----------------------------------------")
	fmt.Printf("  Initial cash       %12.2f\n", res.InitialCash)
	fmt.Printf("  Final equity       %12.2f\n", res.FinalEquity)
	fmt.Printf("  Total return       %11.2f%%\n", res.TotalReturnPct)
	fmt.Printf("  Max drawdown       %11.2f%%\n", res.MaxDrawdownPct)
	fmt.Printf("  Win rate           %11.2f%%\n", res.WinRate*100)
	fmt.Printf("  Profit factor      %12.2f\n", res.ProfitFactor)
	fmt.Printf("  Sharpe             %12.2f\n", res.Sharpe)
	fmt.Printf("  Trades             %12d\n", len(res.Trades))
	fmt.Printf("  Signals            %12d\n", len(res.Signals))
	if res.OpenPosition != nil {
		fmt.Printf("  Open position      entry %.2f, %d bars held\n",
			res.OpenPosition.EntryPrice, res.OpenPosition.BarsHeld)
	}
	fmt.Println("----------------------------------------")
}
