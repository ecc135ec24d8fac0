package strategy

import (
	"time"

	"momentum-backtest/internal/indicators"
	"momentum-backtest/internal/model"
)

// RegimeDay is the classifier output for one benchmark date.
type RegimeDay struct {
	Date     time.Time `json:"date"`
	Close    float64   `json:"close"`
	SMALong  float64   `json:"sma_long"`
	SMAShort float64   `json:"sma_short"`
	Bullish  bool      `json:"bullish"`
}

// Regime is the bull/bear flag for every benchmark date.
type Regime struct {
	days  []RegimeDay
	index map[time.Time]int
}

// ComputeRegime classifies each benchmark date as bullish when
// close > SMA(long) and SMA(short) > SMA(long).
// Dates where either average is still warming up are bearish.
func ComputeRegime(benchmark *model.Series, longWindow, shortWindow int) *Regime {
	r := &Regime{index: make(map[time.Time]int, benchmark.Len())}
	if benchmark.Len() == 0 {
		return r
	}
	closes := benchmark.Closes()
	long := indicators.SMA(closes, longWindow)
	short := indicators.SMA(closes, shortWindow)

	r.days = make([]RegimeDay, len(closes))
	for i, c := range closes {
		d := RegimeDay{
			Date:     benchmark.At(i).Date,
			Close:    c,
			SMALong:  long[i],
			SMAShort: short[i],
		}
		// NaN comparisons are false, so warmup resolves to bearish.
		d.Bullish = c > long[i] && short[i] > long[i]
		r.days[i] = d
		r.index[d.Date] = i
	}
	return r
}

// Bullish reports the flag for date; unknown dates are bearish.
func (r *Regime) Bullish(date time.Time) bool {
	if r == nil {
		return false
	}
	i, ok := r.index[model.Day(date)]
	return ok && r.days[i].Bullish
}

// Between returns the classified days within [start, end].
func (r *Regime) Between(start, end time.Time) []RegimeDay {
	if r == nil {
		return nil
	}
	start, end = model.Day(start), model.Day(end)
	var out []RegimeDay
	for _, d := range r.days {
		if d.Date.Before(start) || d.Date.After(end) {
			continue
		}
		out = append(out, d)
	}
	return out
}
