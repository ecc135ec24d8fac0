package data

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"momentum-backtest/internal/model"
)

func fixture(ticker string, n int) *model.Series {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]model.Bar, n)
	for i := range bars {
		p := 100 + float64(i)
		bars[i] = model.Bar{
			Date: start.AddDate(0, 0, i), Open: p, High: p + 1, Low: p - 1, Close: p + 0.5, Volume: 1e6 + float64(i),
		}
	}
	return model.MustSeries(ticker, bars)
}

func TestArrowCache_RoundTrip(t *testing.T) {
	c := NewArrowCache(t.TempDir(), "SPY")
	want := fixture("AAPL", 30)
	if err := c.Save(want); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !c.Has("aapl") {
		t.Fatalf("expected cache file for AAPL")
	}
	got, err := c.Load("AAPL")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Ticker != "AAPL" || got.Len() != want.Len() {
		t.Fatalf("got %s/%d want AAPL/%d", got.Ticker, got.Len(), want.Len())
	}
	for i := 0; i < want.Len(); i++ {
		if got.At(i) != want.At(i) {
			t.Fatalf("row %d: got %+v want %+v", i, got.At(i), want.At(i))
		}
	}
}

func TestArrowCache_NotCached(t *testing.T) {
	c := NewArrowCache(t.TempDir(), "SPY")
	if _, err := c.Bars(context.Background(), "MSFT"); !errors.Is(err, ErrNotCached) {
		t.Fatalf("expected ErrNotCached, got %v", err)
	}
}

func TestArrowCache_Tickers(t *testing.T) {
	dir := t.TempDir()
	c := NewArrowCache(dir, "SPY")
	for _, tk := range []string{"SPY", "MSFT", "AAPL"} {
		if err := c.Save(fixture(tk, 3)); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := c.Tickers(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(got, ",") != "AAPL,MSFT" {
		t.Fatalf("tickers=%v", got)
	}
	if _, err := NewArrowCache(filepath.Join(dir, "missing"), "SPY").Tickers(context.Background()); err == nil {
		t.Fatalf("expected error for missing cache dir")
	}
}

type fakeProvider struct {
	series map[string]*model.Series
	fail   string
}

func (f fakeProvider) Bars(_ context.Context, ticker string) (*model.Series, error) {
	if ticker == f.fail {
		return nil, errors.New("boom")
	}
	s, ok := f.series[ticker]
	if !ok {
		return nil, ErrNotCached
	}
	return s, nil
}

func (f fakeProvider) Benchmark(ctx context.Context) (*model.Series, error) {
	return f.Bars(ctx, "SPY")
}

func (f fakeProvider) Tickers(context.Context) ([]string, error) {
	return []string{"AAPL", "GONE"}, nil
}

func TestLoadAll_SkipsMissing(t *testing.T) {
	p := fakeProvider{series: map[string]*model.Series{"SPY": fixture("SPY", 5), "AAPL": fixture("AAPL", 5)}}
	u, bench, err := LoadAll(context.Background(), p, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if bench.Ticker != "SPY" || len(u) != 1 || u["AAPL"] == nil {
		t.Fatalf("unexpected universe %v", u.SortedTickers())
	}

	p.fail = "AAPL"
	if _, _, err := LoadAll(context.Background(), p, nil); err == nil {
		t.Fatalf("expected provider error to abort the load")
	}
}

func TestBarsClient_Query(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("x-api-key") != "test-key-123456" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch {
		case r.URL.Path == "/v1/bars/AAPL":
			if r.URL.Query().Get("start") != "2024-01-01" {
				t.Errorf("start=%q", r.URL.Query().Get("start"))
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"ticker":"AAPL","bars":[{"date":"2024-01-02","open":1,"high":2,"low":0.5,"close":1.5,"volume":100},{"date":"2024-01-03","open":1.5,"high":2,"low":1,"close":1.8,"volume":120}]}`))
		case r.URL.Path == "/v1/bars/SLOW":
			w.Header().Set("Retry-After", "30")
			w.WriteHeader(http.StatusTooManyRequests)
		case r.URL.Path == "/v1/tickers":
			w.Write([]byte(`{"tickers":["AAPL","SPY","MSFT"]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewBarsClient("test-key-123456", srv.URL, "SPY", nil)
	c.Cache = NewResponseCache(time.Hour)
	c.Start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	s, err := c.Bars(ctx, "AAPL")
	if err != nil {
		t.Fatalf("bars: %v", err)
	}
	if s.Len() != 2 || s.At(1).Close != 1.8 {
		t.Fatalf("unexpected series %+v", s.Bars())
	}
	if _, err := c.Bars(ctx, "AAPL"); err != nil {
		t.Fatal(err)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected cached second request, server hits=%d", hits.Load())
	}

	if _, err := c.Bars(ctx, "NOPE"); !errors.Is(err, ErrUnknownTicker) {
		t.Fatalf("expected ErrUnknownTicker, got %v", err)
	}

	_, err = c.Bars(ctx, "SLOW")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.RetryAfter != "30" || apiErr.Code != "RATE_LIMIT_EXCEEDED" {
		t.Fatalf("expected rate limit error, got %v", err)
	}

	tickers, err := c.Tickers(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(tickers, ",") != "AAPL,MSFT" {
		t.Fatalf("tickers=%v", tickers)
	}
}

func TestBarsClient_ShortKey(t *testing.T) {
	c := NewBarsClient("short", "http://127.0.0.1:1", "SPY", nil)
	_, err := c.Query(context.Background(), BarsQuery{Ticker: "AAPL"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != "INVALID_API_KEY_FORMAT" {
		t.Fatalf("expected key format error, got %v", err)
	}
}

func TestResponseCache_Expiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewResponseCache(time.Minute)
	c.now = func() time.Time { return now }

	key := CacheKey(BarsQuery{Ticker: "AAPL"})
	c.Set(key, &BarsResponse{Ticker: "AAPL"})
	if _, ok := c.Get(key); !ok {
		t.Fatalf("expected fresh entry")
	}
	now = now.Add(2 * time.Minute)
	if _, ok := c.Get(key); ok {
		t.Fatalf("expected expired entry")
	}
	if n := c.Prune(); n != 1 {
		t.Fatalf("pruned %d want 1", n)
	}

	var nilCache *ResponseCache
	nilCache.Set(key, &BarsResponse{})
	if _, ok := nilCache.Get(key); ok {
		t.Fatalf("nil cache must miss")
	}
}

func TestBarsResponse_Series(t *testing.T) {
	want := fixture("XOM", 4)
	got, err := NewBarsResponse(want).Series()
	if err != nil {
		t.Fatal(err)
	}
	if got.Len() != 4 || got.At(3) != want.At(3) {
		t.Fatalf("mismatch: %+v", got.Bars())
	}
	if _, err := (&BarsResponse{Ticker: "X", Bars: []BarJSON{{Date: "01/02/2024"}}}).Series(); err == nil {
		t.Fatalf("expected date error")
	}
}

func TestReadBarsCSV(t *testing.T) {
	in := "\ufeffDate,Close,Open,High,Low,Adj Close,Volume\n" +
		"2024-01-03,11,10,12,9,11,2000\n" +
		"01/02/2024,10,9,10.5,8.5,10,1500\n"
	bars, err := ReadBarsCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("bars=%d", len(bars))
	}
	b := bars[0]
	if b.Open != 10 || b.High != 12 || b.Low != 9 || b.Close != 11 || b.Volume != 2000 {
		t.Fatalf("columns mapped wrong: %+v", b)
	}
	if !bars[1].Date.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("date=%v", bars[1].Date)
	}

	tests := []struct {
		name string
		in   string
	}{
		{"missing column", "date,open,high,low,close\n2024-01-02,1,1,1,1\n"},
		{"bad number", "date,open,high,low,close,volume\n2024-01-02,x,1,1,1,1\n"},
		{"bad date", "date,open,high,low,close,volume\nyesterday,1,1,1,1,1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadBarsCSV(strings.NewReader(tt.in)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestImportCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "msft.csv")
	raw := "date,open,high,low,close,volume\n2024-01-03,2,3,1,2.5,10\n2024-01-02,1,2,0.5,1.5,10\n"
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := ImportCSV(path, "msft")
	if err != nil {
		t.Fatal(err)
	}
	if s.Ticker != "MSFT" || s.Len() != 2 || s.At(0).Close != 1.5 {
		t.Fatalf("unexpected series %s %+v", s.Ticker, s.Bars())
	}
}

func TestLoadSectors(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "sp500.csv")
	raw := "\ufeffSymbol,Security,GICS Sector\nAAPL,Apple,Information Technology\n xom ,Exxon,Energy\n,Blank,Nothing\n"
	if err := os.WriteFile(csvPath, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := LoadSectors(csvPath)
	if err != nil {
		t.Fatalf("csv: %v", err)
	}
	if len(m) != 2 || m.Sector("XOM") != "Energy" || m.Sector("AAPL") != "Information Technology" {
		t.Fatalf("unexpected map %v", m)
	}
	if m.Sector("ZZZ") != model.UnknownSector {
		t.Fatalf("missing ticker should be unknown")
	}

	jsonPath := filepath.Join(dir, "out", "sectors.json")
	if err := SaveSectors(m, jsonPath); err != nil {
		t.Fatal(err)
	}
	back, err := LoadSectors(jsonPath)
	if err != nil {
		t.Fatalf("json: %v", err)
	}
	if back.Sector("AAPL") != "Information Technology" {
		t.Fatalf("json round trip: %v", back)
	}

	if _, err := ReadSectorsCSV(strings.NewReader("Name,Industry\nA,B\n")); err == nil {
		t.Fatalf("expected header error")
	}
}

func TestValidTable(t *testing.T) {
	for name, ok := range map[string]bool{
		"daily_bars":        true,
		"market.daily_bars": true,
		"bars; DROP TABLE":  false,
		"1bars":             false,
	} {
		if err := validTable(name); (err == nil) != ok {
			t.Fatalf("validTable(%q) err=%v", name, err)
		}
	}
}

func TestOpenSource(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	p, closeFn, err := Open(ctx, SourceOptions{Kind: "ARROW", CacheDir: dir, Benchmark: "SPY"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer closeFn()
	if c, ok := p.(*ArrowCache); !ok || c.Dir != dir {
		t.Fatalf("got %T", p)
	}

	if _, _, err := Open(ctx, SourceOptions{Kind: SourceAPI, APIKey: "x"}, nil); err == nil {
		t.Fatalf("expected short key error")
	}
	if _, _, err := Open(ctx, SourceOptions{Kind: "parquet"}, nil); err == nil {
		t.Fatalf("expected unknown source error")
	}

	t.Setenv("DATA_SOURCE", "api")
	t.Setenv("BARS_API_KEY", "from-env-key-1234")
	o := SourceOptionsFromEnv(SourceOptions{Kind: SourceArrow, CacheDir: "data/cache"})
	if o.Kind != "api" || o.APIKey != "from-env-key-1234" || o.CacheDir == "" {
		t.Fatalf("env not applied: %+v", o)
	}
}
