package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"momentum-backtest/internal/model"
)

// BarsClient fetches adjusted daily bars from an HTTP JSON API:
//
//	GET {BaseURL}/v1/bars/{ticker}?start=YYYY-MM-DD&end=YYYY-MM-DD
//	GET {BaseURL}/v1/tickers
//
// Requests carry the key in the x-api-key header.
type BarsClient struct {
	APIKey          string
	BaseURL         string
	BenchmarkTicker string
	// Start and End bound every history request; zero means unbounded.
	Start time.Time
	End   time.Time

	Client *http.Client
	Cache  *ResponseCache
	Log    *zap.Logger
}

// NewBarsClient uses http://localhost:8090 when baseURL is empty.
func NewBarsClient(apiKey, baseURL, benchmark string, logger *zap.Logger) *BarsClient {
	if baseURL == "" {
		baseURL = "http://localhost:8090"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BarsClient{
		APIKey:          apiKey,
		BaseURL:         strings.TrimRight(baseURL, "/"),
		BenchmarkTicker: benchmark,
		Client:          &http.Client{Timeout: 30 * time.Second},
		Cache:           GetCache(),
		Log:             logger.Named("bars_api"),
	}
}

// BarsQuery selects one ticker's history.
type BarsQuery struct {
	Ticker string
	Start  time.Time
	End    time.Time
}

// APIError is a non-2xx answer from the bars API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	RetryAfter string
}

func (e *APIError) Error() string { return e.Message }

// Query fetches one ticker. A 404 maps to ErrUnknownTicker.
func (c *BarsClient) Query(ctx context.Context, q BarsQuery) (*BarsResponse, error) {
	if err := c.validateAPIKey(); err != nil {
		return nil, err
	}
	if q.Ticker == "" {
		return nil, fmt.Errorf("ticker is required")
	}
	if !q.Start.IsZero() && !q.End.IsZero() && q.Start.After(q.End) {
		return nil, fmt.Errorf("start must be before end")
	}

	key := CacheKey(q)
	if cached, ok := c.Cache.Get(key); ok {
		c.Log.Debug("cache hit", zap.String("ticker", q.Ticker), zap.Int("bars", len(cached.Bars)))
		return cached, nil
	}

	u, err := url.Parse(c.BaseURL + "/v1/bars/" + url.PathEscape(q.Ticker))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	v := u.Query()
	if !q.Start.IsZero() {
		v.Set("start", q.Start.Format(dateLayout))
	}
	if !q.End.IsZero() {
		v.Set("end", q.End.Format(dateLayout))
	}
	u.RawQuery = v.Encode()

	var out BarsResponse
	if err := c.getJSON(ctx, u.String(), &out); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%s: %w", q.Ticker, ErrUnknownTicker)
		}
		return nil, err
	}
	if out.Ticker == "" {
		out.Ticker = q.Ticker
	}
	c.Log.Debug("bars received", zap.String("ticker", q.Ticker), zap.Int("bars", len(out.Bars)))
	c.Cache.Set(key, &out)
	return &out, nil
}

func (c *BarsClient) getJSON(ctx context.Context, rawURL string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-api-key", c.APIKey)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.Client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		c.Log.Warn("request failed", zap.String("url", req.URL.Path), zap.Duration("elapsed", elapsed), zap.Error(err))
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()
	c.Log.Debug("response", zap.String("url", req.URL.Path), zap.Int("status", resp.StatusCode), zap.Duration("elapsed", elapsed))

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return &APIError{StatusCode: resp.StatusCode, Code: "UNAUTHORIZED", Message: "invalid API key or insufficient permissions"}
	case http.StatusNotFound:
		return &APIError{StatusCode: resp.StatusCode, Code: "NOT_FOUND", Message: "not found: " + req.URL.Path}
	case http.StatusTooManyRequests:
		retry := resp.Header.Get("Retry-After")
		return &APIError{
			StatusCode: resp.StatusCode,
			Code:       "RATE_LIMIT_EXCEEDED",
			Message:    fmt.Sprintf("rate limit exceeded, retry after: %s", retry),
			RetryAfter: retry,
		}
	default:
		return &APIError{
			StatusCode: resp.StatusCode,
			Code:       "API_ERROR",
			Message:    fmt.Sprintf("API returned status %d: %s", resp.StatusCode, resp.Status),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *BarsClient) validateAPIKey() error {
	if c.APIKey == "" {
		return &APIError{Code: "MISSING_API_KEY", Message: "API key is required"}
	}
	if len(c.APIKey) < 10 {
		return &APIError{Code: "INVALID_API_KEY_FORMAT", Message: "API key appears to be invalid (too short)"}
	}
	return nil
}

func (c *BarsClient) Bars(ctx context.Context, ticker string) (*model.Series, error) {
	resp, err := c.Query(ctx, BarsQuery{Ticker: ticker, Start: c.Start, End: c.End})
	if err != nil {
		return nil, err
	}
	return resp.Series()
}

func (c *BarsClient) Benchmark(ctx context.Context) (*model.Series, error) {
	return c.Bars(ctx, c.BenchmarkTicker)
}

// Tickers lists the API's instruments, excluding the benchmark.
func (c *BarsClient) Tickers(ctx context.Context) ([]string, error) {
	if err := c.validateAPIKey(); err != nil {
		return nil, err
	}
	var out TickersResponse
	if err := c.getJSON(ctx, c.BaseURL+"/v1/tickers", &out); err != nil {
		return nil, err
	}
	tickers := make([]string, 0, len(out.Tickers))
	for _, t := range out.Tickers {
		if !strings.EqualFold(t, c.BenchmarkTicker) {
			tickers = append(tickers, t)
		}
	}
	return tickers, nil
}
