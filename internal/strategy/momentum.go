package strategy

import (
	"sort"
	"time"

	"momentum-backtest/internal/config"
	"momentum-backtest/internal/model"
)

// WatchlistEntry is one selected ticker. Rank is 1-based selection order.
type WatchlistEntry struct {
	Ticker string  `json:"ticker"`
	Score  float64 `json:"score"`
	Sector string  `json:"sector"`
	Rank   int     `json:"rank"`
}

// RSComposite is the weighted sum of (stock return / benchmark return) over
// each lookback, measured through date. It is undefined (ok=false) when
// either series has fewer than longest-lookback+1 bars or a starting price
// is zero.
func RSComposite(stock, benchmark *model.Series, date time.Time, lookbacks []config.Lookback) (float64, bool) {
	longest := 0
	for _, lb := range lookbacks {
		longest = max(longest, lb.Days)
	}
	ns := stock.CountThrough(date)
	nb := benchmark.CountThrough(date)
	if ns < longest+1 || nb < longest+1 {
		return 0, false
	}
	stockNow := stock.At(ns - 1).Close
	benchNow := benchmark.At(nb - 1).Close

	var score float64
	for _, lb := range lookbacks {
		stockPast := stock.At(ns - lb.Days - 1).Close
		benchPast := benchmark.At(nb - lb.Days - 1).Close
		if stockPast == 0 || benchPast == 0 {
			return 0, false
		}
		benchRet := benchNow / benchPast
		if benchRet == 0 {
			return 0, false
		}
		score += (stockNow / stockPast) / benchRet * lb.Weight
	}
	return score, true
}

// RankStocks scores candidates and keeps the top of the list subject to
// the total and per-sector caps. Candidates without a score are skipped.
func RankStocks(candidates []string, u model.Universe, benchmark *model.Series, date time.Time, sectors model.SectorMap, cfg config.Config) []WatchlistEntry {
	lookbacks := cfg.RSLookbacks()
	scored := make([]WatchlistEntry, 0, len(candidates))
	for _, t := range candidates {
		s, ok := u[t]
		if !ok {
			continue
		}
		score, ok := RSComposite(s, benchmark, date, lookbacks)
		if !ok {
			continue
		}
		scored = append(scored, WatchlistEntry{Ticker: t, Score: score, Sector: sectors.Sector(t)})
	}
	return ApplySectorCap(scored, cfg.SectorCap, cfg.WatchlistSize)
}

// ApplySectorCap sorts by descending score and greedily selects entries,
// skipping any whose sector already holds sectorCap names, until size
// entries are chosen. Equal scores keep their input order.
func ApplySectorCap(scored []WatchlistEntry, sectorCap, size int) []WatchlistEntry {
	ordered := make([]WatchlistEntry, len(scored))
	copy(ordered, scored)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Score > ordered[j].Score })

	out := make([]WatchlistEntry, 0, min(size, len(ordered)))
	perSector := make(map[string]int)
	for _, e := range ordered {
		if len(out) >= size {
			break
		}
		if perSector[e.Sector] >= sectorCap {
			continue
		}
		perSector[e.Sector]++
		e.Rank = len(out) + 1
		out = append(out, e)
	}
	return out
}

// BuildWatchlist runs filter, sector exclusion and ranking for one date.
func BuildWatchlist(u model.Universe, benchmark *model.Series, date time.Time, sectors model.SectorMap, cfg config.Config) []WatchlistEntry {
	passing := FilterUniverse(u, date, UniverseParamsFrom(cfg))
	passing = ExcludeSectors(passing, sectors, cfg.ExcludedSectors)
	return RankStocks(passing, u, benchmark, date, sectors, cfg)
}

// UniverseParamsFrom extracts the filter thresholds from cfg.
func UniverseParamsFrom(cfg config.Config) UniverseParams {
	return UniverseParams{
		MinPrice:        cfg.MinPrice,
		MinAvgVolume:    cfg.MinAvgVolume,
		AvgVolumeWindow: cfg.AvgVolumeWindow,
		TrendPeriod:     cfg.TrendSMAPeriod,
	}
}

// FrameParamsFrom extracts the indicator windows from cfg.
func FrameParamsFrom(cfg config.Config) Params {
	return Params{
		RSIPeriod:      cfg.RSIPeriod,
		SMAShortPeriod: cfg.SMA5Period,
		TrendPeriod:    cfg.TrendSMAPeriod,
		ATRPeriod:      cfg.ATRPeriod,
	}
}
