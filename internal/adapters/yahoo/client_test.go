package yahoo

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tradeSentinel/internal/domain"
	"tradeSentinel/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := New(Config{BaseURL: srv.URL, Timeout: 2 * time.Second, Logger: &mockLogger{}})
	require.NoError(t, err)
	return client
}

// 2026-03-10T14:30:00Z, a typical session timestamp
const sessionTS = 1773153000

func chartQuoteBody(symbol string, price, high, low float64) string {
	return fmt.Sprintf(`{"chart":{"result":[{"meta":{
		"symbol":%q,"regularMarketPrice":%g,"regularMarketDayHigh":%g,
		"regularMarketDayLow":%g,"regularMarketTime":%d}}],"error":null}}`,
		symbol, price, high, low, sessionTS)
}

func TestFetchQuotes(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		switch {
		case strings.HasSuffix(r.URL.Path, "/AAPL"):
			fmt.Fprint(w, chartQuoteBody("AAPL", 187.44, 189.2, 186.1))
		case strings.HasSuffix(r.URL.Path, "/BOGUS"):
			w.WriteHeader(http.StatusNotFound)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	quotes, err := client.FetchQuotes(context.Background(), []string{"AAPL", "BOGUS"})
	require.NoError(t, err)
	require.Len(t, quotes, 2)

	aapl := quotes["AAPL"]
	require.NotNil(t, aapl)
	assert.True(t, aapl.Observable())
	assert.True(t, aapl.Price.Equal(domain.Qty("187.44")))
	require.NotNil(t, aapl.High)
	assert.True(t, aapl.High.Equal(domain.Qty("189.2")))
	require.NotNil(t, aapl.Low)
	assert.True(t, aapl.Low.Equal(domain.Qty("186.1")))
	assert.Equal(t, int64(sessionTS), aapl.AsOf.Unix())

	// The unresolvable symbol comes back invalid, not as an error
	bogus := quotes["BOGUS"]
	require.NotNil(t, bogus)
	assert.False(t, bogus.Observable())
	assert.False(t, bogus.Valid)
}

func TestFetchQuotesAllFail(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	quotes, err := client.FetchQuotes(context.Background(), []string{"AAPL", "MSFT"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrQuoteUnavailable)
	// The invalid quotes are still returned so callers can fail open
	assert.Len(t, quotes, 2)
}

func TestFetchQuotesRejectsZeroPrice(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chart":{"result":[{"meta":{"symbol":"AAPL","regularMarketPrice":0}}],"error":null}}`)
	})

	quotes, err := client.FetchQuotes(context.Background(), []string{"AAPL"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrQuoteUnavailable)
	require.NotNil(t, quotes["AAPL"])
	assert.False(t, quotes["AAPL"].Valid)
}

func TestFetchDailyBars(t *testing.T) {
	day1 := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)
	day3 := day1.AddDate(0, 0, 2)

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		assert.NotEmpty(t, r.URL.Query().Get("period1"))
		assert.NotEmpty(t, r.URL.Query().Get("period2"))
		fmt.Fprintf(w, `{"chart":{"result":[{
			"meta":{"symbol":"AAPL","regularMarketPrice":103.0},
			"timestamp":[%d,%d,%d],
			"indicators":{"quote":[{
				"open":[100.0,null,102.0],
				"high":[101.5,null,103.5],
				"low":[99.0,null,101.0],
				"close":[101.0,null,103.0],
				"volume":[1000,null,1200]
			}]}}],"error":null}}`, day1.Unix(), day2.Unix(), day3.Unix())
	})

	bars, err := client.FetchDailyBars(context.Background(), "AAPL",
		day1.AddDate(0, 0, -1), day3)
	require.NoError(t, err)

	// The null middle day is skipped
	require.Len(t, bars, 2)
	assert.Equal(t, "AAPL", bars[0].Ticker)
	assert.True(t, bars[0].Date.Equal(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)))
	assert.True(t, bars[0].Open.Equal(domain.Qty("100")))
	assert.True(t, bars[0].High.Equal(domain.Qty("101.5")))
	assert.True(t, bars[0].Low.Equal(domain.Qty("99")))
	assert.True(t, bars[0].Close.Equal(domain.Qty("101")))
	assert.Equal(t, int64(1000), bars[0].Volume)
	assert.True(t, bars[1].Date.Equal(time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC)))
	assert.True(t, bars[1].Close.Equal(domain.Qty("103")))
}

func TestFetchDailyBarsChartError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`)
	})

	_, err := client.FetchDailyBars(context.Background(), "GONE", time.Now().AddDate(0, 0, -7), time.Now())
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrQuoteUnavailable)
}

func TestSearch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "apple", r.URL.Query().Get("q"))
		assert.Equal(t, "0", r.URL.Query().Get("newsCount"))
		fmt.Fprint(w, `{"quotes":[
			{"symbol":"AAPL","shortname":"Apple Inc.","longname":"Apple Inc.","exchange":"NMS","quoteType":"EQUITY"},
			{"symbol":"APLE","shortname":"Apple Hospitality","longname":"","exchange":"NYQ","quoteType":"EQUITY"},
			{"symbol":"AAPL-USD","shortname":"Apple Coin","exchange":"CCC","quoteType":"CRYPTOCURRENCY"},
			{"symbol":"QQQ","shortname":"Invesco QQQ","longname":"Invesco QQQ Trust","exchange":"NGM","quoteType":"ETF"}
		]}`)
	})

	results, err := client.Search(context.Background(), "apple", 10)
	require.NoError(t, err)

	// The crypto listing is filtered out
	require.Len(t, results, 3)
	assert.Equal(t, "AAPL", results[0].Symbol)
	assert.Equal(t, "Apple Inc.", results[0].Name)
	assert.Equal(t, "EQUITY", results[0].QuoteType)
	// Short name is the fallback when there is no long name
	assert.Equal(t, "Apple Hospitality", results[1].Name)
	assert.Equal(t, "ETF", results[2].QuoteType)
}

func TestSearchEmptyQuery(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for an empty query")
	})

	_, err := client.Search(context.Background(), "   ", 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrInvalidRequest)
}

func TestStatusTranslation(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{name: "not found", status: http.StatusNotFound, wantErr: ports.ErrInstrumentNotFound},
		{name: "rate limited", status: http.StatusTooManyRequests, wantErr: ports.ErrRateLimited},
		{name: "unauthorized", status: http.StatusUnauthorized, wantErr: ports.ErrAuthenticationFailed},
		{name: "forbidden", status: http.StatusForbidden, wantErr: ports.ErrAuthenticationFailed},
		{name: "server error", status: http.StatusBadGateway, wantErr: ports.ErrQuoteUnavailable},
		{name: "unexpected", status: http.StatusTeapot, wantErr: ports.ErrInvalidResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})

			_, err := client.FetchDailyBars(context.Background(), "AAPL", time.Now().AddDate(0, 0, -7), time.Now())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestFetchDailyBarsBadJSON(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chart":`)
	})

	_, err := client.FetchDailyBars(context.Background(), "AAPL", time.Now().AddDate(0, 0, -7), time.Now())
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrInvalidResponse)
}
