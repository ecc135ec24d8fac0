package strategy

import (
	"fmt"
	"math"
	"testing"
	"time"

	"momentum-backtest/internal/config"
	"momentum-backtest/internal/model"
)

var day0 = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

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

func mkSeries(ticker string, closes []float64, volume float64) *model.Series {
	dates := weekdays(day0, len(closes))
	bars := make([]model.Bar, len(closes))
	for i, c := range closes {
		bars[i] = model.Bar{Date: dates[i], Open: c, High: c + 1, Low: c - 1, Close: c, Volume: volume}
	}
	return model.MustSeries(ticker, bars)
}

func mkTrend(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func lastDate(s *model.Series) time.Time { return s.At(s.Len() - 1).Date }

func TestComputeRegime_WarmupIsBearish(t *testing.T) {
	spy := mkSeries("SPY", mkTrend(250, 300, 1), 1e7)
	r := ComputeRegime(spy, 200, 50)
	for i := 0; i < 199; i++ {
		if r.Bullish(spy.At(i).Date) {
			t.Fatalf("day %d bullish before long window filled", i)
		}
	}
	if !r.Bullish(spy.At(199).Date) || !r.Bullish(lastDate(spy)) {
		t.Fatalf("rising benchmark should be bullish once warmed up")
	}
	if r.Bullish(time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unknown date must be bearish")
	}
	days := r.Between(spy.At(10).Date, spy.At(19).Date)
	if len(days) != 10 {
		t.Fatalf("Between returned %d days want 10", len(days))
	}
}

func TestComputeRegime_Downtrend(t *testing.T) {
	spy := mkSeries("SPY", mkTrend(250, 600, -1), 1e7)
	r := ComputeRegime(spy, 200, 50)
	if r.Bullish(lastDate(spy)) {
		t.Fatalf("falling benchmark must be bearish")
	}
}

func TestPassesFilter(t *testing.T) {
	p := UniverseParams{MinPrice: 10, MinAvgVolume: 500_000, AvgVolumeWindow: 20, TrendPeriod: 200}
	tests := []struct {
		name   string
		series *model.Series
		want   bool
	}{
		{"uptrend liquid", mkSeries("A", mkTrend(200, 20, 0.5), 1e6), true},
		{"short history", mkSeries("B", mkTrend(199, 20, 0.5), 1e6), false},
		{"illiquid", mkSeries("C", mkTrend(200, 20, 0.5), 400_000), false},
		{"cheap", mkSeries("D", mkTrend(200, 5, 0.01), 1e6), false},
		{"below trend", mkSeries("E", mkTrend(200, 200, -0.5), 1e6), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PassesFilter(tt.series, lastDate(tt.series), p); got != tt.want {
				t.Fatalf("got %v want %v", got, tt.want)
			}
		})
	}

	s := mkSeries("A", mkTrend(200, 20, 0.5), 1e6)
	sat := lastDate(s).AddDate(0, 0, 1)
	for sat.Weekday() != time.Saturday {
		sat = sat.AddDate(0, 0, 1)
	}
	if PassesFilter(s, sat, p) {
		t.Fatalf("a date without a bar must not pass")
	}
}

func TestFilterUniverseSortedAndExcluded(t *testing.T) {
	u := model.Universe{
		"ZZZ": mkSeries("ZZZ", mkTrend(210, 20, 0.5), 1e6),
		"AAA": mkSeries("AAA", mkTrend(210, 20, 0.5), 1e6),
		"MMM": mkSeries("MMM", mkTrend(210, 20, 0.5), 1e6),
		"LOW": mkSeries("LOW", mkTrend(210, 20, 0.5), 10),
	}
	got := FilterUniverse(u, lastDate(u["AAA"]), UniverseParamsFrom(config.Default()))
	if fmt.Sprint(got) != "[AAA MMM ZZZ]" {
		t.Fatalf("got %v", got)
	}
	sectors := model.SectorMap{"MMM": "Utilities"}
	got = ExcludeSectors(got, sectors, []string{"Utilities"})
	if fmt.Sprint(got) != "[AAA ZZZ]" {
		t.Fatalf("after exclusion got %v", got)
	}
}

func TestRSComposite(t *testing.T) {
	lookbacks := config.Default().RSLookbacks()
	flat := make([]float64, 127)
	for i := range flat {
		flat[i] = 100
	}
	bench := mkSeries("SPY", flat, 1e7)

	up := append([]float64(nil), flat...)
	up[len(up)-1] = 110
	score, ok := RSComposite(mkSeries("A", up, 1e6), bench, lastDate(bench), lookbacks)
	if !ok || math.Abs(score-1.1) > 1e-9 {
		t.Fatalf("score=%v ok=%v want 1.1", score, ok)
	}

	if _, ok := RSComposite(mkSeries("B", flat[:126], 1e6), bench, lastDate(bench), lookbacks); ok {
		t.Fatalf("126 bars is not enough history")
	}

	zero := append([]float64(nil), flat...)
	zero[len(zero)-22] = 0
	if _, ok := RSComposite(mkSeries("C", zero, 1e6), bench, lastDate(bench), lookbacks); ok {
		t.Fatalf("zero starting price must leave the score undefined")
	}
}

func TestApplySectorCap_Backfills(t *testing.T) {
	var scored []WatchlistEntry
	for i := 0; i < 15; i++ {
		scored = append(scored, WatchlistEntry{Ticker: fmt.Sprintf("T%02d", i), Score: float64(100 - i), Sector: "Tech"})
	}
	for i := 0; i < 10; i++ {
		scored = append(scored, WatchlistEntry{Ticker: fmt.Sprintf("O%02d", i), Score: float64(50 - i), Sector: fmt.Sprintf("S%d", i)})
	}

	got := ApplySectorCap(scored, 3, 10)
	if len(got) != 10 {
		t.Fatalf("len=%d want 10", len(got))
	}
	tech := 0
	for i, e := range got {
		if e.Rank != i+1 {
			t.Fatalf("rank at %d = %d", i, e.Rank)
		}
		if i > 0 && e.Score > got[i-1].Score {
			t.Fatalf("not in score order at %d", i)
		}
		if e.Sector == "Tech" {
			tech++
		}
	}
	if tech != 3 {
		t.Fatalf("tech=%d want 3", tech)
	}
	if got[0].Ticker != "T00" || got[3].Ticker != "O00" || got[9].Ticker != "O06" {
		t.Fatalf("unexpected selection %+v", got)
	}
}

func TestApplySectorCap_EqualScoresKeepInputOrder(t *testing.T) {
	scored := []WatchlistEntry{
		{Ticker: "B", Score: 1, Sector: "X"},
		{Ticker: "A", Score: 1, Sector: "X"},
	}
	got := ApplySectorCap(scored, 1, 5)
	if len(got) != 1 || got[0].Ticker != "B" {
		t.Fatalf("got %+v", got)
	}
}

func pullback(tail ...float64) []float64 {
	return append(mkTrend(220, 50, 1), tail...)
}

func TestCheckEntry(t *testing.T) {
	p := EntryParams{RSIThreshold: 15, RequireBelowSMA5: true}
	fp := FrameParamsFrom(config.Default())

	one := mkSeries("A", pullback(265), 1e6)
	if CheckEntry(ComputeFrame(one, fp), lastDate(one), p) {
		t.Fatalf("RSI 20 should not trigger below 15")
	}

	two := mkSeries("A", pullback(265, 262), 1e6)
	f := ComputeFrame(two, fp)
	r, _ := f.At(lastDate(two))
	if math.Abs(r.RSI-100.0/11) > 0.01 {
		t.Fatalf("rsi=%v", r.RSI)
	}
	if !CheckEntry(f, lastDate(two), p) {
		t.Fatalf("expected entry signal")
	}

	short := mkSeries("S", []float64{10, 9, 8}, 1e6)
	if CheckEntry(ComputeFrame(short, fp), lastDate(short), p) {
		t.Fatalf("undefined trend SMA must not trigger")
	}
}

func TestScanEntries_MostOversoldFirst(t *testing.T) {
	fp := FrameParamsFrom(config.Default())
	a := mkSeries("A", pullback(265, 262), 1e6)
	b := mkSeries("B", pullback(265, 255), 1e6)
	c := mkSeries("C", mkTrend(222, 50, 1), 1e6)
	frames := map[string]*Frame{
		"A": ComputeFrame(a, fp),
		"B": ComputeFrame(b, fp),
		"C": ComputeFrame(c, fp),
	}
	got := ScanEntries([]string{"A", "B", "C", "missing"}, frames, lastDate(a), EntryParamsFrom(config.Default()))
	if len(got) != 2 || got[0].Ticker != "B" || got[1].Ticker != "A" {
		t.Fatalf("got %+v", got)
	}
}

func TestCalculateTradeSetup(t *testing.T) {
	cfg := config.Default()
	s, ok := CalculateTradeSetup(150, 3, 100_000, cfg)
	if !ok {
		t.Fatalf("expected a setup")
	}
	if s.StopLoss != 142.5 || s.RiskAmount != 5000 || s.Shares != 666 {
		t.Fatalf("got %+v", s)
	}
	if s.StopLoss != s.EntryPrice-cfg.StopATRMultiple*s.ATR {
		t.Fatalf("stop not entry - multiple*atr")
	}

	if _, ok := CalculateTradeSetup(150, 4, 100_000, cfg); ok {
		t.Fatalf("6.7%% stop must be rejected")
	}
	if _, ok := CalculateTradeSetup(150, 0, 100_000, cfg); ok {
		t.Fatalf("zero distance must be rejected")
	}
	if _, ok := CalculateTradeSetup(150, 3, 100, cfg); ok {
		t.Fatalf("zero shares must be rejected")
	}
}

func TestCheckExit(t *testing.T) {
	p := ExitParams{RSIThreshold: 75, TimeStopDays: 5}
	monday := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	pos := model.Position{Ticker: "A", EntryPrice: 150, EntryDate: monday, Shares: 10, StopLoss: 142.5}

	tests := []struct {
		name   string
		bar    model.Bar
		rsi    float64
		date   time.Time
		want   model.ExitReason
		price  float64
		exited bool
	}{
		{"stop beats rsi", model.Bar{Low: 140, Close: 160}, 90, monday.AddDate(0, 0, 1), model.ExitStopLoss, 142.5, true},
		{"stop touch", model.Bar{Low: 142.5, Close: 145}, 10, monday.AddDate(0, 0, 1), model.ExitStopLoss, 142.5, true},
		{"rsi recovery", model.Bar{Low: 149, Close: 155}, 75, monday.AddDate(0, 0, 1), model.ExitRSI, 155, true},
		{"time stop", model.Bar{Low: 149, Close: 151}, 50, monday.AddDate(0, 0, 7), model.ExitTimeStop, 151, true},
		{"nan rsi holds", model.Bar{Low: 149, Close: 151}, math.NaN(), monday.AddDate(0, 0, 4), "", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig, ok := CheckExit(pos, tt.bar, tt.rsi, tt.date, p)
			if ok != tt.exited || sig.Reason != tt.want || sig.Price != tt.price {
				t.Fatalf("got %+v ok=%v", sig, ok)
			}
		})
	}
}

func TestCanOpenPosition(t *testing.T) {
	cfg := config.Default()
	open := []model.Position{{Ticker: "A", Sector: "Tech"}, {Ticker: "B", Sector: "Tech"}}
	if CanOpenPosition(open, "Tech", cfg) {
		t.Fatalf("sector limit not enforced")
	}
	if !CanOpenPosition(open, "Energy", cfg) {
		t.Fatalf("other sector should be allowed")
	}
	open = append(open, model.Position{Sector: "X"}, model.Position{Sector: "Y"}, model.Position{Sector: "Z"})
	if CanOpenPosition(open, "Energy", cfg) {
		t.Fatalf("total limit not enforced")
	}
}

func TestComputeATR(t *testing.T) {
	s := mkSeries("A", mkTrend(15, 100, 0), 1e6)
	v, ok := ComputeATR(s, lastDate(s), 14)
	if !ok || v != 2 {
		t.Fatalf("atr=%v ok=%v want 2", v, ok)
	}
	if _, ok := ComputeATR(s, s.At(13).Date, 14); ok {
		t.Fatalf("14 bars is not enough for a 14-period ATR")
	}
}

func TestScanDay(t *testing.T) {
	a := mkSeries("A", pullback(265, 262), 1e6)
	c := mkSeries("C", mkTrend(222, 50, 1), 1e6)
	u := model.Universe{"A": a, "C": c}
	bench := mkSeries("SPY", mkTrend(222, 300, 0.5), 1e8)
	sectors := model.SectorMap{"A": "Energy", "C": "Utilities"}
	date := lastDate(a)

	scan := ScanDay(u, bench, date, sectors, config.Default(), 0)
	if !scan.Bullish || scan.Eligible != 2 || len(scan.Watchlist) != 2 {
		t.Fatalf("scan=%+v", scan)
	}
	if scan.Watchlist[0].Ticker != "C" {
		t.Fatalf("undipped stock should rank first, got %+v", scan.Watchlist)
	}
	if len(scan.Signals) != 1 {
		t.Fatalf("signals=%+v", scan.Signals)
	}
	sig := scan.Signals[0]
	if sig.Ticker != "A" || sig.Sector != "Energy" || !sig.Sized || sig.Setup.Shares <= 0 || sig.Setup.ATR <= 0 {
		t.Fatalf("signal=%+v", sig)
	}

	if got := ScanDay(u, bench, date, sectors, config.Default(), 1); len(got.Signals) != 0 {
		t.Fatalf("A is outside a one-name watchlist: %+v", got.Signals)
	}
	cfg := config.Default().WithOverrides(func(c *config.Config) { c.SupplementalTickers = []string{"A", "ZZZ"} })
	if got := ScanDay(u, bench, date, sectors, cfg, 1); len(got.Signals) != 1 || got.Signals[0].Ticker != "A" {
		t.Fatalf("supplemental ticker should be scanned: %+v", got.Signals)
	}

	down := mkSeries("SPY", mkTrend(222, 400, -0.5), 1e8)
	if got := ScanDay(u, down, date, sectors, config.Default(), 0); got.Bullish || len(got.Signals) != 0 {
		t.Fatalf("bearish scan must not signal: %+v", got)
	}
}
