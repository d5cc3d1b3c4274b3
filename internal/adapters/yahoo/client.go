// Package yahoo implements the quote, history and search ports against the
// public Yahoo Finance chart and search endpoints. No API key is required,
// but requests must carry a browser-like User-Agent or Yahoo rejects them.
package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tradeSentinel/internal/domain"
	"tradeSentinel/internal/ports"
)

const (
	defaultBaseURL = "https://query1.finance.yahoo.com"
	userAgent      = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
)

// Client implements ports.QuoteSource, ports.HistorySource and
// ports.InstrumentSearcher using the Yahoo Finance HTTP API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     ports.Logger
}

// Config holds configuration specific to the Yahoo Finance adapter.
type Config struct {
	BaseURL string        // Defaults to the public query endpoint
	Timeout time.Duration // Per-request timeout (e.g., 10 * time.Second)
	Logger  ports.Logger
}

// New creates a new Yahoo Finance client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Yahoo Finance client")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	cfg.Logger.Info(context.Background(), "Yahoo Finance client configured", map[string]interface{}{"baseURL": baseURL})

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		logger:     cfg.Logger,
	}, nil
}

// handleError logs the error and wraps it with the failing operation.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}
	c.logger.Error(ctx, err, operation+" failed", map[string]interface{}{"operation": operation})
	return fmt.Errorf("%s failed: %w", operation, err)
}

// FetchQuotes resolves quotes for the given symbols one chart call each.
// A symbol that cannot be resolved yields an invalid quote; the error
// return is reserved for the provider being unreachable as a whole.
func (c *Client) FetchQuotes(ctx context.Context, symbols []string) (map[string]*domain.Quote, error) {
	op := "FetchQuotes"
	quotes := make(map[string]*domain.Quote, len(symbols))

	failures := 0
	for _, symbol := range symbols {
		quote, err := c.fetchChartQuote(ctx, symbol)
		if err != nil {
			if errors.Is(err, ports.ErrContextCanceled) || errors.Is(err, ports.ErrTimeout) {
				return nil, c.handleError(ctx, err, op)
			}
			c.logger.Warn(ctx, op+": marking quote invalid", map[string]interface{}{"symbol": symbol, "error": err.Error()})
			quotes[symbol] = domain.InvalidQuote(symbol)
			failures++
			continue
		}
		quotes[symbol] = quote
	}

	if len(symbols) > 0 && failures == len(symbols) {
		err := fmt.Errorf("all %d symbols failed: %w", len(symbols), ports.ErrQuoteUnavailable)
		return quotes, c.handleError(ctx, err, op)
	}
	return quotes, nil
}

// fetchChartQuote reads the current session snapshot from the 1d chart meta.
func (c *Client) fetchChartQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s", c.baseURL, url.PathEscape(symbol))
	params := url.Values{}
	params.Set("range", "1d")
	params.Set("interval", "1d")

	var payload chartResponse
	if err := c.getJSON(ctx, endpoint+"?"+params.Encode(), &payload); err != nil {
		return nil, err
	}
	if payload.Chart.Error != nil {
		return nil, fmt.Errorf("chart error for %s (%s): %s: %w",
			symbol, payload.Chart.Error.Code, payload.Chart.Error.Description, ports.ErrQuoteUnavailable)
	}
	if len(payload.Chart.Result) == 0 {
		return nil, fmt.Errorf("empty chart result for %s: %w", symbol, ports.ErrInvalidResponse)
	}

	meta := payload.Chart.Result[0].Meta
	if meta.RegularMarketPrice <= 0 {
		return nil, fmt.Errorf("no market price for %s: %w", symbol, ports.ErrQuoteUnavailable)
	}

	asOf := time.Now().UTC()
	if meta.RegularMarketTime > 0 {
		asOf = time.Unix(meta.RegularMarketTime, 0).UTC()
	}
	price := decimal.NewFromFloat(meta.RegularMarketPrice)
	quote := &domain.Quote{
		Symbol: symbol,
		Price:  &price,
		Valid:  true,
		AsOf:   asOf,
	}
	if meta.RegularMarketDayHigh > 0 {
		high := decimal.NewFromFloat(meta.RegularMarketDayHigh)
		quote.High = &high
	}
	if meta.RegularMarketDayLow > 0 {
		low := decimal.NewFromFloat(meta.RegularMarketDayLow)
		quote.Low = &low
	}
	return quote, nil
}

// FetchDailyBars retrieves daily bars for a symbol in [from, to], oldest first.
func (c *Client) FetchDailyBars(ctx context.Context, symbol string, from, to time.Time) ([]*domain.DailyBar, error) {
	op := "FetchDailyBars"
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s", c.baseURL, url.PathEscape(symbol))
	params := url.Values{}
	params.Set("interval", "1d")
	params.Set("period1", strconv.FormatInt(from.Unix(), 10))
	params.Set("period2", strconv.FormatInt(to.Unix(), 10))

	var payload chartResponse
	if err := c.getJSON(ctx, endpoint+"?"+params.Encode(), &payload); err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	if payload.Chart.Error != nil {
		err := fmt.Errorf("chart error for %s (%s): %s: %w",
			symbol, payload.Chart.Error.Code, payload.Chart.Error.Description, ports.ErrQuoteUnavailable)
		return nil, c.handleError(ctx, err, op)
	}
	if len(payload.Chart.Result) == 0 || len(payload.Chart.Result[0].Indicators.Quote) == 0 {
		err := fmt.Errorf("no chart data for %s: %w", symbol, ports.ErrInvalidResponse)
		return nil, c.handleError(ctx, err, op)
	}

	result := payload.Chart.Result[0]
	series := result.Indicators.Quote[0]
	bars := make([]*domain.DailyBar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(series.Open) || i >= len(series.High) || i >= len(series.Low) || i >= len(series.Close) {
			break
		}
		// Nil slots are days without a settled bar (holidays, live session)
		if series.Open[i] == nil || series.High[i] == nil || series.Low[i] == nil || series.Close[i] == nil {
			continue
		}
		var volume int64
		if i < len(series.Volume) && series.Volume[i] != nil {
			volume = *series.Volume[i]
		}
		bars = append(bars, &domain.DailyBar{
			Ticker: symbol,
			Date:   time.Unix(ts, 0).UTC().Truncate(24 * time.Hour),
			Open:   decimal.NewFromFloat(*series.Open[i]),
			High:   decimal.NewFromFloat(*series.High[i]),
			Low:    decimal.NewFromFloat(*series.Low[i]),
			Close:  decimal.NewFromFloat(*series.Close[i]),
			Volume: volume,
		})
	}

	c.logger.Debug(ctx, op+" successful", map[string]interface{}{"symbol": symbol, "bars": len(bars)})
	return bars, nil
}

// Search returns up to limit equity and ETF instruments matching the query.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]*domain.Instrument, error) {
	op := "Search"
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%s failed: empty query: %w", op, ports.ErrInvalidRequest)
	}
	if limit <= 0 {
		limit = 10
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("quotesCount", strconv.Itoa(limit))
	params.Set("newsCount", "0")

	var payload searchResponse
	if err := c.getJSON(ctx, c.baseURL+"/v1/finance/search?"+params.Encode(), &payload); err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	instruments := make([]*domain.Instrument, 0, len(payload.Quotes))
	for _, q := range payload.Quotes {
		// Only tradeable listings are useful as journal instruments
		if q.QuoteType != "EQUITY" && q.QuoteType != "ETF" {
			continue
		}
		name := q.LongName
		if name == "" {
			name = q.ShortName
		}
		instruments = append(instruments, &domain.Instrument{
			Symbol:    q.Symbol,
			Name:      name,
			Exchange:  q.Exchange,
			QuoteType: q.QuoteType,
		})
		if len(instruments) == limit {
			break
		}
	}

	c.logger.Debug(ctx, op+" successful", map[string]interface{}{"query": query, "results": len(instruments)})
	return instruments, nil
}

// getJSON performs a GET request and decodes the JSON body into out.
// HTTP and transport failures are translated into ports errors.
func (c *Client) getJSON(ctx context.Context, rawURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return translateTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return translateStatus(resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w: %w", ports.ErrInvalidResponse, err)
	}
	return nil
}

func translateTransportError(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("request timed out: %w: %w", ports.ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("request canceled: %w: %w", ports.ErrContextCanceled, err)
	default:
		return fmt.Errorf("request failed: %w: %w", ports.ErrConnectionFailed, err)
	}
}

func translateStatus(status int) error {
	switch {
	case status == http.StatusNotFound:
		return fmt.Errorf("status %d: %w", status, ports.ErrInstrumentNotFound)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("status %d: %w", status, ports.ErrRateLimited)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("status %d: %w", status, ports.ErrAuthenticationFailed)
	case status >= 500:
		return fmt.Errorf("status %d: %w", status, ports.ErrQuoteUnavailable)
	default:
		return fmt.Errorf("unexpected status %d: %w", status, ports.ErrInvalidResponse)
	}
}

// --- Wire Types ---

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *apiError     `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta struct {
		Symbol               string  `json:"symbol"`
		RegularMarketPrice   float64 `json:"regularMarketPrice"`
		RegularMarketDayHigh float64 `json:"regularMarketDayHigh"`
		RegularMarketDayLow  float64 `json:"regularMarketDayLow"`
		RegularMarketTime    int64   `json:"regularMarketTime"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*int64   `json:"volume"`
		} `json:"quote"`
	} `json:"indicators"`
}

type apiError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type searchResponse struct {
	Quotes []struct {
		Symbol    string `json:"symbol"`
		ShortName string `json:"shortname"`
		LongName  string `json:"longname"`
		Exchange  string `json:"exchange"`
		QuoteType string `json:"quoteType"`
	} `json:"quotes"`
}
