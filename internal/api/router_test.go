package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"momentum-backtest/internal/api/handlers"
	"momentum-backtest/internal/api/models"
	"momentum-backtest/internal/config"
	"momentum-backtest/internal/model"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func weekdays(start time.Time, n int) []time.Time {
	out := make([]time.Time, 0, n)
	for d := start; len(out) < n; d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		out = append(out, d)
	}
	return out
}

func mkSeries(ticker string, dates []time.Time, closes []float64) *model.Series {
	bars := make([]model.Bar, len(closes))
	for i, c := range closes {
		bars[i] = model.Bar{Date: dates[i], Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1e6}
	}
	return model.MustSeries(ticker, bars)
}

// testMarket is a rising benchmark and one rising stock that dips on days
// 230 and 231, signals on 231 and recovers.
func testMarket(n int) (handlers.Market, []time.Time) {
	dates := weekdays(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), n)
	spy := make([]float64, n)
	stock := make([]float64, n)
	for i := range spy {
		spy[i] = 300 + 0.5*float64(i)
		switch {
		case i <= 229:
			stock[i] = 50 + float64(i)
		case i == 230:
			stock[i] = 275
		case i == 231:
			stock[i] = 272
		default:
			stock[i] = stock[i-1] + 5
		}
	}
	return handlers.Market{
		Universe:  model.Universe{"ACME": mkSeries("ACME", dates, stock)},
		Benchmark: mkSeries("SPY", dates, spy),
		Sectors:   model.SectorMap{"ACME": "Industrials"},
	}, dates
}

func newTestRouter(t *testing.T) (*gin.Engine, []time.Time) {
	t.Helper()
	market, dates := testMarket(240)
	r := NewRouter(Options{Market: market, Config: config.Default(), PresetDir: t.TempDir()})
	return r, dates
}

func do(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return out
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter(t)
	w := do(t, r, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestRunBacktestAndFetch(t *testing.T) {
	r, dates := newTestRouter(t)
	req := models.BacktestRequest{
		Start:   dates[0].Format("2006-01-02"),
		End:     dates[len(dates)-1].Format("2006-01-02"),
		Options: models.BacktestOptions{IncludeTrades: true},
	}
	w := do(t, r, http.MethodPost, "/api/v1/backtest", req)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	resp := decode[models.BacktestResponse](t, w)
	if resp.ID == "" || resp.Status != "completed" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Summary.NumTrades != 1 || len(resp.Trades) != 1 || resp.Trades[0].Ticker != "ACME" {
		t.Fatalf("trades=%d rows=%d", resp.Summary.NumTrades, len(resp.Trades))
	}
	if resp.Summary.ProfitFactor != nil {
		t.Fatalf("single winning trade has an infinite profit factor, want null")
	}
	if resp.Summary.ExitReasons["rsi_exit"] != 1 {
		t.Fatalf("exit reasons=%v", resp.Summary.ExitReasons)
	}
	if len(resp.Equity) != 0 {
		t.Fatalf("equity must be omitted unless requested")
	}

	w = do(t, r, http.MethodGet, "/api/v1/backtest/"+resp.ID, nil)
	if w.Code != http.StatusOK || decode[models.BacktestResponse](t, w).ID != resp.ID {
		t.Fatalf("get status=%d", w.Code)
	}

	w = do(t, r, http.MethodGet, "/api/v1/backtest/"+resp.ID+"/trades", nil)
	if tr := decode[models.TradesResponse](t, w); tr.Count != 1 {
		t.Fatalf("trades count=%d", tr.Count)
	}

	w = do(t, r, http.MethodGet, "/api/v1/backtest/"+resp.ID+"/equity", nil)
	eq := decode[models.EquityResponse](t, w)
	if eq.Count != 240 || len(eq.Regime) != 240 {
		t.Fatalf("equity=%d regime=%d", eq.Count, len(eq.Regime))
	}
}

func TestRunBacktest_Errors(t *testing.T) {
	r, _ := newTestRouter(t)
	tests := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{"invalid config", models.BacktestRequest{Config: config.Config{RiskPerTrade: 2}}, http.StatusBadRequest, "INVALID_CONFIG"},
		{"bad date", models.BacktestRequest{Start: "01/01/2020"}, http.StatusBadRequest, "INVALID_CONFIG"},
		{"no trading days", models.BacktestRequest{Start: "2030-01-01", End: "2030-02-01"}, http.StatusBadRequest, "NO_TRADING_DAYS"},
		{"missing preset", models.BacktestRequest{Preset: "nope"}, http.StatusNotFound, "PRESET_NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, r, http.MethodPost, "/api/v1/backtest", tt.body)
			if w.Code != tt.status {
				t.Fatalf("status=%d want %d body=%s", w.Code, tt.status, w.Body.String())
			}
			if got := decode[models.ErrorResponse](t, w); got.Error.Code != tt.code {
				t.Fatalf("code=%s want %s", got.Error.Code, tt.code)
			}
		})
	}

	if w := do(t, r, http.MethodGet, "/api/v1/backtest/not-a-uuid", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("invalid id status=%d", w.Code)
	}
	if w := do(t, r, http.MethodGet, "/api/v1/backtest/2b1f9a0e-0d6c-4c55-9a39-4d1b8f2f6a11", nil); w.Code != http.StatusNotFound {
		t.Fatalf("unknown id status=%d", w.Code)
	}
}

func TestRunBacktest_ZeroCostOverrides(t *testing.T) {
	r, dates := newTestRouter(t)
	zero := 0.0
	req := models.BacktestRequest{
		Start:     dates[0].Format("2006-01-02"),
		End:       dates[len(dates)-1].Format("2006-01-02"),
		Config:    config.Config{CommissionPerTrade: 5},
		Overrides: models.Overrides{SlippagePct: &zero, CommissionPerTrade: &zero},
		Options:   models.BacktestOptions{IncludeTrades: true},
	}
	w := do(t, r, http.MethodPost, "/api/v1/backtest", req)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	resp := decode[models.BacktestResponse](t, w)
	if resp.Config.SlippagePct != 0 || resp.Config.CommissionPerTrade != 0 {
		t.Fatalf("slippage=%v commission=%v want 0", resp.Config.SlippagePct, resp.Config.CommissionPerTrade)
	}
	if len(resp.Trades) != 1 {
		t.Fatalf("trades=%d", len(resp.Trades))
	}
	tr := resp.Trades[0]
	if tr.EntryPrice != 277 || tr.ExitPrice != 282 || tr.Shares != 361 || tr.PnL != 1805 {
		t.Fatalf("unexpected fills %+v", tr)
	}
}

func TestRunBacktest_Preset(t *testing.T) {
	market, dates := testMarket(240)
	dir := t.TempDir()
	raw := []byte("max_positions: 1\nrsi_entry_threshold: 0.5\n")
	if err := os.WriteFile(filepath.Join(dir, "strict.yaml"), raw, 0o644); err != nil {
		t.Fatal(err)
	}
	r := NewRouter(Options{Market: market, Config: config.Default(), PresetDir: dir})

	w := do(t, r, http.MethodGet, "/api/v1/presets", nil)
	list := decode[struct {
		Presets []models.PresetInfo `json:"presets"`
	}](t, w)
	if len(list.Presets) != 1 || list.Presets[0].ID != "strict" || list.Presets[0].MaxPositions != 1 {
		t.Fatalf("presets=%+v", list.Presets)
	}

	w = do(t, r, http.MethodPost, "/api/v1/backtest", models.BacktestRequest{
		Preset: "strict",
		Start:  dates[0].Format("2006-01-02"),
		End:    dates[len(dates)-1].Format("2006-01-02"),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	resp := decode[models.BacktestResponse](t, w)
	if resp.Config.MaxPositions != 1 || resp.Config.RSIEntryThreshold != 0.5 {
		t.Fatalf("preset not applied: %+v", resp.Config)
	}
	if resp.Config.RSIExitThreshold != 75 {
		t.Fatalf("preset must overlay defaults")
	}
}

func TestCompareBacktests(t *testing.T) {
	r, dates := newTestRouter(t)
	off := false
	req := models.CompareBacktestRequest{
		Start: dates[0].Format("2006-01-02"),
		End:   dates[len(dates)-1].Format("2006-01-02"),
		Variations: []models.BacktestVariation{
			{Name: "default"},
			{Name: "no-sma5", Overrides: models.Overrides{RequireBelowSMA5: &off}},
			{Name: "broken", Config: config.Config{RiskPerTrade: 5}},
		},
	}
	w := do(t, r, http.MethodPost, "/api/v1/backtest/compare", req)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	resp := decode[models.CompareBacktestResponse](t, w)
	if len(resp.Comparison) != 2 || len(resp.Failed) != 1 || resp.Failed[0].Name != "broken" {
		t.Fatalf("comparison=%+v failed=%+v", resp.Comparison, resp.Failed)
	}
	for i, c := range resp.Comparison {
		if c.Rank != i+1 || c.ID == "" {
			t.Fatalf("row %d: %+v", i, c)
		}
	}

	if w := do(t, r, http.MethodPost, "/api/v1/backtest/compare", models.CompareBacktestRequest{}); w.Code != http.StatusBadRequest {
		t.Fatalf("empty variations status=%d", w.Code)
	}
}

func TestWatchlist(t *testing.T) {
	r, dates := newTestRouter(t)

	w := do(t, r, http.MethodGet, "/api/v1/watchlist?date="+dates[231].Format("2006-01-02"), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	resp := decode[models.WatchlistResponse](t, w)
	if !resp.RegimeBullish || len(resp.Watchlist) != 1 || resp.Watchlist[0].Rank != 1 {
		t.Fatalf("unexpected watchlist %+v", resp)
	}
	if len(resp.Signals) != 1 || resp.Signals[0].Ticker != "ACME" || resp.Signals[0].RSI >= 15 {
		t.Fatalf("signals=%+v", resp.Signals)
	}
	if resp.Signals[0].ATR <= 0 {
		t.Fatalf("signal without ATR: %+v", resp.Signals[0])
	}

	w = do(t, r, http.MethodGet, "/api/v1/watchlist?date="+dates[100].Format("2006-01-02"), nil)
	if resp := decode[models.WatchlistResponse](t, w); resp.RegimeBullish || len(resp.Signals) != 0 {
		t.Fatalf("warmup date must be bearish with no signals: %+v", resp)
	}

	if w := do(t, r, http.MethodGet, "/api/v1/watchlist?date=yesterday", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad date status=%d", w.Code)
	}
}

func TestTickersAndDefaults(t *testing.T) {
	r, _ := newTestRouter(t)
	tk := decode[models.TickersResponse](t, do(t, r, http.MethodGet, "/api/v1/tickers", nil))
	if tk.Count != 1 || tk.Tickers[0].Sector != "Industrials" || tk.Tickers[0].Bars != 240 {
		t.Fatalf("tickers=%+v", tk)
	}

	w := do(t, r, http.MethodGet, "/api/v1/config/defaults", nil)
	got := decode[struct {
		Config     config.Config          `json:"config"`
		Parameters []models.ParameterInfo `json:"parameters"`
	}](t, w)
	if got.Config.RSIEntryThreshold != 15 || len(got.Parameters) == 0 {
		t.Fatalf("defaults=%+v", got)
	}

	if w := do(t, r, http.MethodGet, "/api/v1/unknown", nil); w.Code != http.StatusNotFound {
		t.Fatalf("status=%d", w.Code)
	}
}
