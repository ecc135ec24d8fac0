package strategy

import (
	"time"

	"momentum-backtest/internal/indicators"
	"momentum-backtest/internal/model"
)

// Frame holds the per-ticker indicator columns the entry trigger and the
// exit check read. Every column is aligned with the series bars; undefined
// values are NaN.
type Frame struct {
	Series   *model.Series
	RSI      []float64
	SMAShort []float64
	SMATrend []float64
	ATR      []float64
}

// Row is one date of a Frame.
type Row struct {
	Date     time.Time
	Close    float64
	RSI      float64
	SMAShort float64
	SMATrend float64
	ATR      float64
}

// Params is the slice of the configuration needed to build a Frame.
type Params struct {
	RSIPeriod      int
	SMAShortPeriod int
	TrendPeriod    int
	ATRPeriod      int
}

// ComputeFrame runs the indicator library over the full history of s.
// All indicators are causal so values at index i only use bars 0..i.
func ComputeFrame(s *model.Series, p Params) *Frame {
	closes := s.Closes()
	return &Frame{
		Series:   s,
		RSI:      indicators.RSI(closes, p.RSIPeriod),
		SMAShort: indicators.SMA(closes, p.SMAShortPeriod),
		SMATrend: indicators.SMA(closes, p.TrendPeriod),
		ATR:      indicators.ATR(s.Highs(), s.Lows(), closes, p.ATRPeriod),
	}
}

// At returns the row dated exactly on date.
func (f *Frame) At(date time.Time) (Row, bool) {
	if f == nil {
		return Row{}, false
	}
	i, ok := f.Series.IndexOf(date)
	if !ok {
		return Row{}, false
	}
	b := f.Series.At(i)
	return Row{
		Date:     b.Date,
		Close:    b.Close,
		RSI:      f.RSI[i],
		SMAShort: f.SMAShort[i],
		SMATrend: f.SMATrend[i],
		ATR:      f.ATR[i],
	}, true
}
