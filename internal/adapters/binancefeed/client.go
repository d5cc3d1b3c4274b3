// Package binancefeed implements the quote and history ports on top of the
// Binance spot market data API. Only public endpoints are used, so API keys
// are optional.
package binancefeed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/shopspring/decimal"

	"tradeSentinel/internal/domain"
	"tradeSentinel/internal/ports"
)

const (
	// Base URLs
	baseURLProduction = "https://api.binance.com"
	baseURLTestnet    = "https://testnet.binance.vision"
)

// Client implements ports.QuoteSource and ports.HistorySource using the
// go-binance library.
type Client struct {
	spotClient *binance.Client
	logger     ports.Logger
}

// Config holds configuration specific to the Binance feed adapter.
type Config struct {
	APIKey     string
	SecretKey  string
	UseTestnet bool
	Logger     ports.Logger
}

// New creates a new Binance feed adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance feed client")
	}
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		cfg.Logger.Warn(context.Background(), "APIKey or SecretKey is empty. Market data endpoints are public, so quotes still work.")
	}

	client := binance.NewClient(cfg.APIKey, cfg.SecretKey)

	// Set BaseURL directly instead of using the global binance.UseTestnet
	if cfg.UseTestnet {
		client.BaseURL = baseURLTestnet
		cfg.Logger.Info(context.Background(), "Binance feed configured for Testnet", map[string]interface{}{"baseURL": client.BaseURL})
	} else {
		client.BaseURL = baseURLProduction
		cfg.Logger.Info(context.Background(), "Binance feed configured for Production", map[string]interface{}{"baseURL": client.BaseURL})
	}

	return &Client{spotClient: client, logger: cfg.Logger}, nil
}

// handleError translates common Binance API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message

		// Map specific Binance error codes to custom errors
		var mappedErr error
		switch apiErr.Code {
		case -1003: // Too many requests
			mappedErr = ports.ErrRateLimited
		case -1021: // Timestamp for this request is outside of the recvWindow
			mappedErr = ports.ErrTimeout
		case -1121: // Invalid symbol
			mappedErr = ports.ErrInstrumentNotFound
		case -2014, -2015: // API-key format invalid / invalid key, IP, or permissions
			mappedErr = ports.ErrAuthenticationFailed
		default:
			mappedErr = ports.ErrQuoteUnavailable
		}
		finalErr := fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
		c.logger.Error(ctx, err, fmt.Sprintf("%s failed with API error", operation), fields)
		return finalErr
	}

	// Handle non-API errors (network, context cancellation, etc.)
	var finalErr error
	if errors.Is(err, context.DeadlineExceeded) {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrTimeout, err)
	} else if errors.Is(err, context.Canceled) {
		finalErr = fmt.Errorf("%s operation canceled: %w: %w", operation, ports.ErrContextCanceled, err)
	} else if strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "connection reset by peer") ||
		strings.Contains(err.Error(), "no such host") {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrConnectionFailed, err)
	} else {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrUnknown, err)
	}

	c.logger.Error(ctx, err, fmt.Sprintf("%s failed", operation), fields)
	return finalErr
}

// Ping checks connectivity to the exchange API.
func (c *Client) Ping(ctx context.Context) error {
	op := "Ping"
	if err := c.spotClient.NewPingService().Do(ctx); err != nil {
		return c.handleError(ctx, err, op)
	}
	c.logger.Debug(ctx, op+" successful")
	return nil
}

// FetchQuotes resolves quotes for the given symbols in one batched 24h
// ticker call. Symbols missing from the response come back invalid.
func (c *Client) FetchQuotes(ctx context.Context, symbols []string) (map[string]*domain.Quote, error) {
	op := "FetchQuotes"
	quotes := make(map[string]*domain.Quote, len(symbols))
	if len(symbols) == 0 {
		return quotes, nil
	}

	stats, err := c.spotClient.NewListPriceChangeStatsService().Symbols(symbols).Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	bySymbol := make(map[string]*binance.PriceChangeStats, len(stats))
	for _, st := range stats {
		bySymbol[st.Symbol] = st
	}
	for _, symbol := range symbols {
		st, ok := bySymbol[symbol]
		if !ok {
			c.logger.Warn(ctx, op+": no ticker data, marking quote invalid", map[string]interface{}{"symbol": symbol})
			quotes[symbol] = domain.InvalidQuote(symbol)
			continue
		}
		quote, err := translateStats(st)
		if err != nil {
			c.logger.Warn(ctx, op+": unparsable ticker, marking quote invalid", map[string]interface{}{"symbol": symbol, "error": err.Error()})
			quotes[symbol] = domain.InvalidQuote(symbol)
			continue
		}
		quotes[symbol] = quote
	}
	return quotes, nil
}

// FetchDailyBars fetches all daily klines for a symbol between from and to.
func (c *Client) FetchDailyBars(ctx context.Context, symbol string, from, to time.Time) ([]*domain.DailyBar, error) {
	op := "FetchDailyBars"
	const maxLimit = 1000
	var bars []*domain.DailyBar
	cursor := from

	for {
		klines, err := c.spotClient.NewKlinesService().
			Symbol(symbol).
			Interval("1d").
			StartTime(cursor.UnixMilli()).
			EndTime(to.UnixMilli()).
			Limit(maxLimit).
			Do(ctx)
		if err != nil {
			return nil, c.handleError(ctx, err, op)
		}
		if len(klines) == 0 {
			break
		}
		for _, k := range klines {
			bar, err := translateKline(k, symbol)
			if err != nil {
				return nil, c.handleError(ctx, fmt.Errorf("failed to translate kline: %w", err), op)
			}
			bars = append(bars, bar)
		}
		last := klines[len(klines)-1]
		cursor = time.UnixMilli(last.CloseTime)
		if cursor.After(to) || len(klines) < maxLimit {
			break
		}
	}

	c.logger.Debug(ctx, op+" successful", map[string]interface{}{"symbol": symbol, "bars": len(bars)})
	return bars, nil
}

// --- Translation Helpers ---

func translateStats(st *binance.PriceChangeStats) (*domain.Quote, error) {
	if st == nil {
		return nil, errors.New("received nil ticker stats")
	}
	last, err := decimal.NewFromString(st.LastPrice)
	if err != nil {
		return nil, fmt.Errorf("parsing last price '%s': %w", st.LastPrice, err)
	}
	if !last.IsPositive() {
		return nil, fmt.Errorf("non-positive last price '%s'", st.LastPrice)
	}

	quote := &domain.Quote{
		Symbol: st.Symbol,
		Price:  &last,
		Valid:  true,
		AsOf:   time.UnixMilli(st.CloseTime).UTC(),
	}
	if high, err := decimal.NewFromString(st.HighPrice); err == nil && high.IsPositive() {
		quote.High = &high
	}
	if low, err := decimal.NewFromString(st.LowPrice); err == nil && low.IsPositive() {
		quote.Low = &low
	}
	return quote, nil
}

func translateKline(k *binance.Kline, symbol string) (*domain.DailyBar, error) {
	if k == nil {
		return nil, errors.New("received nil kline")
	}
	open, err := decimal.NewFromString(k.Open)
	if err != nil {
		return nil, fmt.Errorf("parsing open price '%s': %w", k.Open, err)
	}
	high, err := decimal.NewFromString(k.High)
	if err != nil {
		return nil, fmt.Errorf("parsing high price '%s': %w", k.High, err)
	}
	low, err := decimal.NewFromString(k.Low)
	if err != nil {
		return nil, fmt.Errorf("parsing low price '%s': %w", k.Low, err)
	}
	cls, err := decimal.NewFromString(k.Close)
	if err != nil {
		return nil, fmt.Errorf("parsing close price '%s': %w", k.Close, err)
	}
	vol, err := decimal.NewFromString(k.Volume)
	if err != nil {
		return nil, fmt.Errorf("parsing volume '%s': %w", k.Volume, err)
	}

	return &domain.DailyBar{
		Ticker: symbol,
		Date:   time.UnixMilli(k.OpenTime).UTC().Truncate(24 * time.Hour),
		Open:   open,
		High:   high,
		Low:    low,
		Close:  cls,
		Volume: vol.IntPart(),
	}, nil
}
