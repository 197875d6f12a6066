// Copyright 2026 © The Gnosis Authors
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jllopis/gnosis/pkg/errors"
	"github.com/jllopis/gnosis/pkg/resilience"
	"github.com/jllopis/gnosis/pkg/telemetry"
)

// DefaultStockBaseURL is the Alpha Vantage query endpoint.
const DefaultStockBaseURL = "https://www.alphavantage.co/query"

const (
	funcGlobalQuote = "GLOBAL_QUOTE"
	funcIntraday    = "TIME_SERIES_INTRADAY"
	funcDaily       = "TIME_SERIES_DAILY"
)

var intradayIntervals = []string{"1min", "5min", "15min", "30min", "60min"}

// Stock fetches market data from Alpha Vantage. Upstream faults, rate
// limits and argument problems all come back as descriptive text; the
// HTTP path sits behind a circuit breaker with a per-call timeout.
type Stock struct {
	apiKey  string
	baseURL string
	timeout time.Duration
	client  *http.Client
	breaker *resilience.CircuitBreaker
	metrics *telemetry.ErrorMetrics
}

// StockOption configures a Stock tool.
type StockOption func(*Stock)

// WithStockHTTPClient replaces the HTTP client.
func WithStockHTTPClient(client *http.Client) StockOption {
	return func(s *Stock) { s.client = client }
}

// WithStockMetrics records circuit breaker state transitions.
func WithStockMetrics(metrics *telemetry.ErrorMetrics) StockOption {
	return func(s *Stock) { s.metrics = metrics }
}

// NewStock builds the market-data tool. An empty baseURL falls back to
// the public Alpha Vantage endpoint; timeout <= 0 defaults to 10s.
func NewStock(apiKey, baseURL string, timeout time.Duration, opts ...StockOption) *Stock {
	if baseURL == "" {
		baseURL = DefaultStockBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	s := &Stock{
		apiKey:  apiKey,
		baseURL: baseURL,
		timeout: timeout,
		client:  &http.Client{},
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:             "stock_tool",
			FailureThreshold: 5,
			Timeout:          30 * time.Second,
		}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements Tool.
func (s *Stock) Name() string { return "stock_info" }

// Description implements Tool.
func (s *Stock) Description() string {
	return "Get real-time stock information for a given stock symbol. " +
		"Use this tool when users ask about stock prices, stock market data, or company stock information."
}

// Parameters implements Tool.
func (s *Stock) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"symbol": map[string]any{
				"type":        "string",
				"description": "The stock ticker symbol (e.g., \"IBM\", \"AAPL\", \"GOOGL\", \"MSFT\")",
			},
			"function": map[string]any{
				"type":        "string",
				"enum":        []string{funcGlobalQuote, funcIntraday, funcDaily},
				"description": "The quote function: GLOBAL_QUOTE for a snapshot, TIME_SERIES_INTRADAY or TIME_SERIES_DAILY for recent prices",
			},
			"interval": map[string]any{
				"type":        "string",
				"enum":        intradayIntervals,
				"description": "Candle interval, required for TIME_SERIES_INTRADAY",
			},
			"outputsize": map[string]any{
				"type":        "string",
				"enum":        []string{"compact", "full"},
				"description": "Optional result size for time series functions",
			},
		},
		"required": []string{"symbol", "function"},
	}
}

type stockArgs struct {
	Symbol     string `json:"symbol"`
	Function   string `json:"function"`
	Interval   string `json:"interval"`
	OutputSize string `json:"outputsize"`
}

// Call implements Tool.
func (s *Stock) Call(ctx context.Context, args string) string {
	var params stockArgs
	if err := json.Unmarshal([]byte(args), &params); err != nil {
		return fmt.Sprintf("Error: invalid arguments for stock_info: %v", err)
	}
	if msg := validateStockArgs(&params); msg != "" {
		return msg
	}

	if s.apiKey == "" {
		return "Error: ALPHAVANTAGE_API_KEY not configured. Please add your Alpha Vantage API key to the .env file."
	}

	data, errText := s.fetch(ctx, params)
	if errText != "" {
		return errText
	}

	if _, found := data["Error Message"]; found {
		return fmt.Sprintf("Error: Invalid stock symbol '%s'. Please check the ticker symbol and try again.", params.Symbol)
	}
	// Alpha Vantage signals rate limiting under "Note" on the legacy
	// plans and "Information" on current ones.
	if _, found := data["Note"]; found {
		return "Error: API rate limit reached. Please try again later or upgrade your Alpha Vantage API key."
	}
	if _, found := data["Information"]; found {
		return "Error: API rate limit reached. Please try again later or upgrade your Alpha Vantage API key."
	}

	switch params.Function {
	case funcGlobalQuote:
		return formatGlobalQuote(params.Symbol, data)
	default:
		return formatTimeSeries(params, data)
	}
}

// validateStockArgs returns a descriptive message for bad arguments, or
// "" when they are acceptable.
func validateStockArgs(params *stockArgs) string {
	params.Symbol = strings.ToUpper(strings.TrimSpace(params.Symbol))
	if params.Symbol == "" {
		return "Error: symbol argument is required."
	}

	switch params.Function {
	case "":
		return fmt.Sprintf("Error: function argument is required. Choose one of: %s, %s, %s.",
			funcGlobalQuote, funcIntraday, funcDaily)
	case funcGlobalQuote, funcDaily:
	case funcIntraday:
		if params.Interval == "" {
			return fmt.Sprintf("Error: interval is required for %s. Choose one of: %s.",
				funcIntraday, strings.Join(intradayIntervals, ", "))
		}
		valid := false
		for _, iv := range intradayIntervals {
			if params.Interval == iv {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Sprintf("Error: invalid interval '%s'. Choose one of: %s.",
				params.Interval, strings.Join(intradayIntervals, ", "))
		}
	default:
		return fmt.Sprintf("Error: unsupported function '%s'. Choose one of: %s, %s, %s.",
			params.Function, funcGlobalQuote, funcIntraday, funcDaily)
	}

	if params.OutputSize != "" && params.OutputSize != "compact" && params.OutputSize != "full" {
		return fmt.Sprintf("Error: invalid outputsize '%s'. Choose compact or full.", params.OutputSize)
	}
	return ""
}

// fetch performs the upstream request behind the circuit breaker and
// timeout. It returns either the decoded payload or a text error.
func (s *Stock) fetch(ctx context.Context, params stockArgs) (map[string]any, string) {
	query := url.Values{}
	query.Set("function", params.Function)
	query.Set("symbol", params.Symbol)
	query.Set("apikey", s.apiKey)
	if params.Interval != "" {
		query.Set("interval", params.Interval)
	}
	if params.OutputSize != "" {
		query.Set("outputsize", params.OutputSize)
	}
	reqURL := s.baseURL + "?" + query.Encode()

	var data map[string]any
	err := s.breaker.Call(ctx, func() error {
		result, err := resilience.WithTimeout(ctx, s.timeout,
			func() (interface{}, error) { return s.get(ctx, reqURL) })
		if err != nil {
			return err
		}
		data = result.(map[string]any)
		return nil
	})
	s.recordBreakerState(ctx)

	if err != nil {
		slog.Warn("tool.stock_info.failed", "symbol", params.Symbol, "error", err)
		ge := errors.AsGnosisError(err)
		switch {
		case ge.Code == errors.CodeTimeout:
			return nil, "Error: Request timed out. Please try again."
		case ge.Context["breaker"] != nil:
			return nil, "Error: Market data service is temporarily unavailable. Please try again later."
		default:
			return nil, fmt.Sprintf("Error fetching stock data: %v", err)
		}
	}
	return data, ""
}

func (s *Stock) get(ctx context.Context, reqURL string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var data map[string]any
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("malformed response: %w", err)
	}
	return data, nil
}

func (s *Stock) recordBreakerState(ctx context.Context) {
	if s.metrics == nil {
		return
	}
	var value int64
	switch s.breaker.State() {
	case resilience.StateOpen:
		value = 0
	case resilience.StateHalfOpen:
		value = 1
	case resilience.StateClosed:
		value = 2
	}
	s.metrics.RecordCircuitBreakerState(ctx, "stock_tool", value)
}

func formatGlobalQuote(symbol string, data map[string]any) string {
	quote, ok := data["Global Quote"].(map[string]any)
	if !ok || len(quote) == 0 {
		return fmt.Sprintf("Error: Unable to fetch data for symbol '%s'. Please verify the symbol is correct.", symbol)
	}

	price, err1 := floatField(quote, "05. price")
	open, err2 := floatField(quote, "02. open")
	high, err3 := floatField(quote, "03. high")
	low, err4 := floatField(quote, "04. low")
	volume, err5 := intField(quote, "06. volume")
	for _, err := range []error{err1, err2, err3, err4, err5} {
		if err != nil {
			return fmt.Sprintf("Error processing stock data: %v", err)
		}
	}

	return fmt.Sprintf(`Stock Quote for %s:

Price: $%.2f
Open: $%.2f
High: $%.2f
Low: $%.2f
Volume: %s
Latest Trading Day: %s
Previous Close: %s
Change: %s (%s)

Data Source: Alpha Vantage (Global Quote)
`,
		symbol, price, open, high, low, groupThousands(volume),
		stringField(quote, "07. latest trading day"),
		dollarField(quote, "08. previous close"),
		stringField(quote, "09. change"),
		stringField(quote, "10. change percent"))
}

func formatTimeSeries(params stockArgs, data map[string]any) string {
	seriesKey, sourceDesc := seriesDescriptor(params)
	series, ok := data[seriesKey].(map[string]any)
	if !ok || len(series) == 0 {
		return fmt.Sprintf("Error: Unable to fetch data for symbol '%s'. Please verify the symbol is correct.", params.Symbol)
	}

	timestamps := make([]string, 0, len(series))
	for ts := range series {
		timestamps = append(timestamps, ts)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(timestamps)))
	latest := timestamps[0]

	point, ok := series[latest].(map[string]any)
	if !ok {
		return fmt.Sprintf("Error processing stock data: malformed data point at %s", latest)
	}

	open, err1 := floatField(point, "1. open")
	high, err2 := floatField(point, "2. high")
	low, err3 := floatField(point, "3. low")
	closing, err4 := floatField(point, "4. close")
	volume, err5 := intField(point, "5. volume")
	for _, err := range []error{err1, err2, err3, err4, err5} {
		if err != nil {
			return fmt.Sprintf("Error processing stock data: %v", err)
		}
	}

	lastRefreshed := "N/A"
	if meta, ok := data["Meta Data"].(map[string]any); ok {
		if v := stringField(meta, "3. Last Refreshed"); v != "" {
			lastRefreshed = v
		}
	}

	return fmt.Sprintf(`Stock Information for %s:

Last Updated: %s
Open: $%.2f
High: $%.2f
Low: $%.2f
Close: $%.2f
Volume: %s

Data Source: Alpha Vantage (%s)
Last Refreshed: %s
`,
		params.Symbol, latest, open, high, low, closing, groupThousands(volume),
		sourceDesc, lastRefreshed)
}

// seriesDescriptor maps the requested function to the upstream response
// key and a human-readable source label.
func seriesDescriptor(params stockArgs) (string, string) {
	if params.Function == funcIntraday {
		return fmt.Sprintf("Time Series (%s)", params.Interval),
			fmt.Sprintf("%s intervals", params.Interval)
	}
	return "Time Series (Daily)", "daily"
}

func stringField(m map[string]any, key string) string {
	v, _ := m[key].(string)
	return v
}

func dollarField(m map[string]any, key string) string {
	f, err := floatField(m, key)
	if err != nil {
		return "N/A"
	}
	return fmt.Sprintf("$%.2f", f)
}

func floatField(m map[string]any, key string) (float64, error) {
	raw, ok := m[key].(string)
	if !ok {
		return 0, fmt.Errorf("missing field %q", key)
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("bad numeric field %q: %v", key, err)
	}
	return f, nil
}

func intField(m map[string]any, key string) (int64, error) {
	f, err := floatField(m, key)
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}

// groupThousands renders n with comma separators.
func groupThousands(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	var b strings.Builder
	for i, digit := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(digit)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
