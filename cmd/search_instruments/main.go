package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"text/tabwriter"

	"tradeSentinel/config"
	"tradeSentinel/internal/adapters/logger"
	"tradeSentinel/internal/adapters/sqlite"
	"tradeSentinel/internal/adapters/yahoo"
	"tradeSentinel/internal/app"
)

var (
	query = flag.String("q", "", "search text, e.g. a company name or ticker prefix")
	limit = flag.Int("limit", 10, "maximum number of matches")
	add   = flag.String("add", "", "symbol from the results to save to the journal")
)

func main() {
	flag.Parse()
	if *query == "" {
		log.Fatalf("FATAL: -q is required")
	}

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	if cfg.QuoteProvider != config.ProviderYahoo {
		log.Fatalf("FATAL: symbol search needs QUOTE_PROVIDER=%s, got %q", config.ProviderYahoo, cfg.QuoteProvider)
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
	yahooClient, err := yahoo.New(yahoo.Config{BaseURL: cfg.YahooBaseURL, Timeout: cfg.QuoteTimeout, Logger: appLogger})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize Yahoo Finance client: %v", err)
	}

	// 5. Initialize Application Service
	service, err := app.New(cfg, appLogger, store, yahooClient, yahooClient, yahooClient)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize journal service: %v", err)
	}

	ctx := context.Background()
	results, err := service.SearchInstruments(ctx, *query, *limit)
	if err != nil {
		log.Fatalf("Error searching instruments: %v", err)
	}
	if len(results) == 0 {
		fmt.Printf("No matches for %q.\n", *query)
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tNAME\tEXCHANGE\tTYPE")
	for _, inst := range results {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", inst.Symbol, inst.Name, inst.Exchange, inst.QuoteType)
	}
	w.Flush()

	if *add == "" {
		return
	}
	for _, inst := range results {
		if strings.EqualFold(inst.Symbol, *add) {
			if err := service.AddInstrument(ctx, inst); err != nil {
				log.Fatalf("Error adding instrument %s: %v", inst.Symbol, err)
			}
			fmt.Printf("Added %s to the journal.\n", strings.ToUpper(*add))
			return
		}
	}
	log.Fatalf("Symbol %q is not among the results, nothing added", *add)
}
