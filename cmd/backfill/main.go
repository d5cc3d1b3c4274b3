package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"tradeSentinel/config"
	"tradeSentinel/internal/adapters/binancefeed"
	"tradeSentinel/internal/adapters/logger"
	"tradeSentinel/internal/adapters/sqlite"
	"tradeSentinel/internal/adapters/yahoo"
	"tradeSentinel/internal/app"
	"tradeSentinel/internal/engine"
	"tradeSentinel/internal/ports"
)

var tradeID = flag.Int64("trade", 0, "ID of the trade to replay, 0 replays every active trade")

func main() {
	flag.Parse()

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
	// The replay itself runs on stored bars; the provider is only wired so
	// the service is fully assembled.
	var quotes ports.QuoteSource
	switch cfg.QuoteProvider {
	case config.ProviderYahoo:
		yahooClient, err := yahoo.New(yahoo.Config{BaseURL: cfg.YahooBaseURL, Timeout: cfg.QuoteTimeout, Logger: appLogger})
		if err != nil {
			log.Fatalf("FATAL: Failed to initialize Yahoo Finance client: %v", err)
		}
		quotes = yahooClient
	case config.ProviderBinance:
		binanceClient, err := binancefeed.New(binancefeed.Config{APIKey: cfg.APIKey, SecretKey: cfg.SecretKey, UseTestnet: cfg.IsTestnet, Logger: appLogger})
		if err != nil {
			log.Fatalf("FATAL: Failed to initialize Binance feed client: %v", err)
		}
		quotes = binanceClient
	default:
		log.Fatalf("FATAL: Unknown quote provider %q", cfg.QuoteProvider)
	}

	// 5. Initialize Application Service
	service, err := app.New(cfg, appLogger, store, quotes, nil, nil)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize journal service: %v", err)
	}

	ctx := context.Background()
	var outcome *engine.Outcome
	if *tradeID > 0 {
		outcome, err = service.Backfill(ctx, *tradeID)
		if err != nil {
			log.Fatalf("Error replaying trade %d: %v", *tradeID, err)
		}
	} else {
		outcome, err = service.BackfillAll(ctx)
		if err != nil {
			log.Fatalf("Error replaying active trades: %v", err)
		}
	}

	for _, a := range outcome.EntryAlerts {
		fmt.Println(a.Message)
	}
	for _, a := range outcome.SLTPAlerts {
		fmt.Println(a.Message)
	}
	for _, a := range outcome.LayeredAlerts {
		fmt.Println(a.Message)
	}
	if outcome.TotalAlerts() == 0 {
		fmt.Println("Nothing hit during the replay window.")
	}
	if outcome.Conflicts > 0 {
		fmt.Printf("%d conflict(s) need manual review.\n", outcome.Conflicts)
	}
	fmt.Printf("Opened %d and closed %d trade(s), %d partial close(s).\n",
		outcome.AutoOpened, outcome.AutoClosed, outcome.PartialCloses)

	if *tradeID > 0 {
		trade, err := service.GetTrade(ctx, *tradeID)
		if err != nil {
			log.Fatalf("Error loading trade %d after replay: %v", *tradeID, err)
		}
		fmt.Printf("Trade %d (%s) is now %s.\n", trade.ID, trade.Ticker, trade.Status)
	}
}
