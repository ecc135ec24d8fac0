package strategy

import (
	"time"

	"momentum-backtest/internal/config"
	"momentum-backtest/internal/model"
)

// Signal is an entry candidate with the trade it would size to on a flat
// account of cfg.InitialCapital. Setup is zero when no ATR or setup exists.
type Signal struct {
	Candidate
	Sector string     `json:"sector"`
	Setup  TradeSetup `json:"setup"`
	Sized  bool       `json:"sized"`
}

// DailyScan is the pipeline's view of one date outside a backtest.
type DailyScan struct {
	Date      time.Time
	Bullish   bool
	Eligible  int
	Watchlist []WatchlistEntry
	Signals   []Signal
}

// ScanDay runs regime, filter, ranking and the entry scan for date.
// Signals are only produced when the regime is bullish.
func ScanDay(u model.Universe, benchmark *model.Series, date time.Time, sectors model.SectorMap, cfg config.Config, limit int) DailyScan {
	regime := ComputeRegime(benchmark, cfg.RegimeSMALong, cfg.RegimeSMAShort)

	eligible := FilterUniverse(u, date, UniverseParamsFrom(cfg))
	eligible = ExcludeSectors(eligible, sectors, cfg.ExcludedSectors)
	watchlist := RankStocks(eligible, u, benchmark, date, sectors, cfg)
	if limit > 0 && limit < len(watchlist) {
		watchlist = watchlist[:limit]
	}

	out := DailyScan{
		Date:      model.Day(date),
		Bullish:   regime.Bullish(date),
		Eligible:  len(eligible),
		Watchlist: watchlist,
	}
	if !out.Bullish {
		return out
	}

	seen := make(map[string]bool, len(watchlist))
	tickers := make([]string, 0, len(watchlist)+len(cfg.SupplementalTickers))
	for _, w := range watchlist {
		seen[w.Ticker] = true
		tickers = append(tickers, w.Ticker)
	}
	for _, t := range cfg.SupplementalTickers {
		if _, ok := u[t]; ok && !seen[t] {
			seen[t] = true
			tickers = append(tickers, t)
		}
	}

	params := FrameParamsFrom(cfg)
	frames := make(map[string]*Frame, len(tickers))
	for _, t := range tickers {
		frames[t] = ComputeFrame(u[t], params)
	}
	for _, cand := range ScanEntries(tickers, frames, date, EntryParamsFrom(cfg)) {
		sig := Signal{Candidate: cand, Sector: sectors.Sector(cand.Ticker)}
		if atr, ok := ComputeATR(u[cand.Ticker], date, cfg.ATRPeriod); ok {
			sig.Setup, sig.Sized = CalculateTradeSetup(cand.Close, atr, cfg.InitialCapital, cfg)
			sig.Setup.ATR = atr
		}
		out.Signals = append(out.Signals, sig)
	}
	return out
}
