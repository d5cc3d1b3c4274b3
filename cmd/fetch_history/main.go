package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"tradeSentinel/config"
	"tradeSentinel/internal/adapters/binancefeed"
	"tradeSentinel/internal/adapters/logger"
	"tradeSentinel/internal/adapters/sqlite"
	"tradeSentinel/internal/adapters/yahoo"
	"tradeSentinel/internal/app"
	"tradeSentinel/internal/ports"
	"tradeSentinel/internal/utils"
)

var (
	ticker  = flag.String("ticker", "", "symbol to sync, e.g. AAPL; empty syncs every listed instrument")
	csvPath = flag.String("csv", "", "optional path to export the stored bars as CSV, needs -ticker")
)

func main() {
	flag.Parse()
	if *csvPath != "" && *ticker == "" {
		log.Fatalf("FATAL: -csv needs -ticker")
	}

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	// 2. Initialize Logger
	appLogger, err := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize logger: %v", err)
	}

	// 3. Initialize Store
	store, err := sqlite.New(sqlite.Config{DBPath: cfg.DBPath, Logger: appLogger})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize database store: %v", err)
	}
	defer store.Close()

	// 4. Initialize Quote Provider
	var (
		quotes  ports.QuoteSource
		history ports.HistorySource
	)
	switch cfg.QuoteProvider {
	case config.ProviderYahoo:
		yahooClient, err := yahoo.New(yahoo.Config{BaseURL: cfg.YahooBaseURL, Timeout: cfg.QuoteTimeout, Logger: appLogger})
		if err != nil {
			log.Fatalf("FATAL: Failed to initialize Yahoo Finance client: %v", err)
		}
		quotes, history = yahooClient, yahooClient
	case config.ProviderBinance:
		binanceClient, err := binancefeed.New(binancefeed.Config{APIKey: cfg.APIKey, SecretKey: cfg.SecretKey, UseTestnet: cfg.IsTestnet, Logger: appLogger})
		if err != nil {
			log.Fatalf("FATAL: Failed to initialize Binance feed client: %v", err)
		}
		quotes, history = binanceClient, binanceClient
	default:
		log.Fatalf("FATAL: Unknown quote provider %q", cfg.QuoteProvider)
	}

	// 5. Initialize Application Service
	service, err := app.New(cfg, appLogger, store, quotes, history, nil)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize journal service: %v", err)
	}

	ctx := context.Background()

	var symbols []string
	if *ticker != "" {
		symbols = []string{strings.ToUpper(strings.TrimSpace(*ticker))}
	} else {
		instruments, err := service.ListInstruments(ctx)
		if err != nil {
			log.Fatalf("Error listing instruments: %v", err)
		}
		if len(instruments) == 0 {
			log.Fatalf("FATAL: no instruments in the journal; pass -ticker or add instruments first")
		}
		for _, inst := range instruments {
			symbols = append(symbols, inst.Symbol)
		}
	}

	for _, symbol := range symbols {
		fmt.Printf("Syncing daily bars for %s (window %d days)...\n", symbol, cfg.HistoryDays)
		n, err := service.SyncHistory(ctx, symbol)
		if err != nil {
			log.Fatalf("Error syncing history for %s: %v", symbol, err)
		}
		fmt.Printf("Stored %d bars for %s.\n", n, symbol)
	}

	if *csvPath == "" {
		return
	}
	from := time.Now().UTC().AddDate(0, 0, -cfg.HistoryDays)
	bars, err := store.BarsSince(ctx, symbols[0], from)
	if err != nil {
		log.Fatalf("Error reading stored bars: %v", err)
	}
	if err := utils.WriteBarsToCSV(bars, *csvPath); err != nil {
		log.Fatalf("Error writing CSV: %v", err)
	}
	fmt.Printf("Saved %d bars to %s.\n", len(bars), *csvPath)
}
