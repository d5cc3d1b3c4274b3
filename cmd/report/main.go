package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"text/tabwriter"

	"tradeSentinel/config"
	"tradeSentinel/internal/adapters/binancefeed"
	"tradeSentinel/internal/adapters/logger"
	"tradeSentinel/internal/adapters/sqlite"
	"tradeSentinel/internal/adapters/yahoo"
	"tradeSentinel/internal/app"
	"tradeSentinel/internal/domain"
	"tradeSentinel/internal/ports"
	"tradeSentinel/internal/utils"
)

var csvPath = flag.String("csv", "", "optional path to export the closed trades as CSV")

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
	// The report reads the journal only; the provider is wired so the
	// service is fully assembled.
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
	summary, err := service.Summary(ctx)
	if err != nil {
		log.Fatalf("Error building summary: %v", err)
	}

	if summary.TotalTrades == 0 {
		fmt.Println("No closed trades to report.")
		return
	}

	percent := domain.QtyFromInt(100)

	fmt.Println("## Realized Performance")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintf(w, "Closed trades\t%d\n", summary.TotalTrades)
	fmt.Fprintf(w, "Winners / losers\t%d / %d\n", summary.WinningTrades, summary.LosingTrades)
	fmt.Fprintf(w, "Win rate\t%s%%\n", summary.WinRate.Mul(percent).StringFixed(1))
	fmt.Fprintf(w, "Total P&L\t%s\n", summary.TotalPnL.StringFixed(2))
	fmt.Fprintf(w, "Average win\t%s\n", summary.AverageWin.StringFixed(2))
	fmt.Fprintf(w, "Average loss\t%s\n", summary.AverageLoss.StringFixed(2))
	fmt.Fprintf(w, "Profit factor\t%s\n", summary.ProfitFactor.StringFixed(2))
	fmt.Fprintf(w, "Expectancy\t%s\n", summary.Expectancy.StringFixed(2))
	fmt.Fprintf(w, "Longest win streak\t%d\n", summary.MaxConsecutiveWins)
	fmt.Fprintf(w, "Longest loss streak\t%d\n", summary.MaxConsecutiveLosses)
	w.Flush()

	if len(summary.MonthlyPnL) > 0 {
		months := make([]string, 0, len(summary.MonthlyPnL))
		for m := range summary.MonthlyPnL {
			months = append(months, m)
		}
		sort.Strings(months)

		fmt.Println("\n## Monthly P&L")
		mw := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight)
		for _, m := range months {
			fmt.Fprintf(mw, "%s\t%s\t\n", m, summary.MonthlyPnL[m].StringFixed(2))
		}
		mw.Flush()
	}

	if *csvPath == "" {
		return
	}
	trades, err := service.ListTrades(ctx, domain.StatusClosed)
	if err != nil {
		log.Fatalf("Error listing closed trades: %v", err)
	}
	if err := utils.WriteTradesToCSV(trades, *csvPath); err != nil {
		log.Fatalf("Error writing CSV: %v", err)
	}
	fmt.Printf("\nSaved %d trades to %s.\n", len(trades), *csvPath)
}
