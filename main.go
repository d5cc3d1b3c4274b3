package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up

	"tradeSentinel/config"
	"tradeSentinel/internal/adapters/binancefeed"
	"tradeSentinel/internal/adapters/logger"
	"tradeSentinel/internal/adapters/sqlite"
	"tradeSentinel/internal/adapters/yahoo"
	"tradeSentinel/internal/app"
	"tradeSentinel/internal/ports"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger, err := logger.New(logger.Config{
		Level:         cfg.LogLevel,
		Format:        cfg.LogFormat,
		FilePath:      cfg.LogFilePath,
		RotationSize:  cfg.LogMaxSizeMB,
		RetentionDays: cfg.LogMaxAgeDays,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize logger: %v", err)
	}
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel})

	// 3. Initialize Store (Database Adapter)
	store, err := sqlite.New(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize database store")
		log.Fatalf("FATAL: Failed to initialize database store: %v", err) // Also log to stderr
	}
	defer func() {
		if err := store.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing database store")
		}
	}()
	appLogger.Info(context.Background(), "Database store initialized")

	// 4. Initialize Quote Provider
	// Yahoo serves quotes, daily bars, and symbol search from one client.
	// Binance serves quotes and bars; it has no symbol search endpoint.
	var (
		quotes   ports.QuoteSource
		history  ports.HistorySource
		searcher ports.InstrumentSearcher
	)
	switch cfg.QuoteProvider {
	case config.ProviderYahoo:
		yahooClient, err := yahoo.New(yahoo.Config{
			BaseURL: cfg.YahooBaseURL,
			Timeout: cfg.QuoteTimeout,
			Logger:  appLogger,
		})
		if err != nil {
			appLogger.Error(context.Background(), err, "FATAL: Failed to initialize Yahoo Finance client")
			log.Fatalf("FATAL: Failed to initialize Yahoo Finance client: %v", err)
		}
		quotes, history, searcher = yahooClient, yahooClient, yahooClient
	case config.ProviderBinance:
		binanceClient, err := binancefeed.New(binancefeed.Config{
			APIKey:     cfg.APIKey,
			SecretKey:  cfg.SecretKey,
			UseTestnet: cfg.IsTestnet,
			Logger:     appLogger,
		})
		if err != nil {
			appLogger.Error(context.Background(), err, "FATAL: Failed to initialize Binance feed client")
			log.Fatalf("FATAL: Failed to initialize Binance feed client: %v", err)
		}
		quotes, history = binanceClient, binanceClient
	default:
		log.Fatalf("FATAL: Unknown quote provider %q", cfg.QuoteProvider)
	}
	appLogger.Info(context.Background(), "Quote provider initialized", map[string]interface{}{"provider": cfg.QuoteProvider})

	// 5. Initialize Application Service
	service, err := app.New(
		cfg,
		appLogger,
		store, // Pass the concrete implementation, service expects the interface
		quotes,
		history,
		searcher,
	)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize journal service")
		log.Fatalf("FATAL: Failed to initialize journal service: %v", err)
	}
	appLogger.Info(context.Background(), "Journal service initialized")

	// 6. Start the Service
	// Use context.Background() as the base context for the application run
	if err := service.Start(context.Background()); err != nil {
		appLogger.Error(context.Background(), err, "Journal service exited with error")
		log.Fatalf("FATAL: Journal service exited with error: %v", err)
	}

	appLogger.Info(context.Background(), "Application finished gracefully.")
}
