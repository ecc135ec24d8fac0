package model

import (
	"fmt"
	"sort"
	"time"
)

// Bar is one daily OHLCV row. Prices are split/dividend adjusted.
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Series is the immutable, date-ordered bar history of one instrument.
//
// Dates are normalized to midnight UTC so they can be used as map keys and
// compared across instruments.
type Series struct {
	Ticker string

	bars  []Bar
	index map[time.Time]int
}

// Day truncates t to its calendar date at midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NewSeries copies bars, sorts them by date and indexes them.
// Duplicate dates are rejected.
func NewSeries(ticker string, bars []Bar) (*Series, error) {
	out := make([]Bar, len(bars))
	copy(out, bars)
	for i := range out {
		out[i].Date = Day(out[i].Date)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })

	idx := make(map[time.Time]int, len(out))
	for i, b := range out {
		if _, dup := idx[b.Date]; dup {
			return nil, fmt.Errorf("%s: duplicate bar for %s", ticker, b.Date.Format("2006-01-02"))
		}
		idx[b.Date] = i
	}
	return &Series{Ticker: ticker, bars: out, index: idx}, nil
}

// MustSeries is NewSeries for fixtures and demos; it panics on error.
func MustSeries(ticker string, bars []Bar) *Series {
	s, err := NewSeries(ticker, bars)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.bars)
}

// At returns the i-th bar in date order.
func (s *Series) At(i int) Bar { return s.bars[i] }

// Bars returns a copy of the underlying bars.
func (s *Series) Bars() []Bar {
	out := make([]Bar, len(s.bars))
	copy(out, s.bars)
	return out
}

// IndexOf returns the position of the bar dated exactly on date.
func (s *Series) IndexOf(date time.Time) (int, bool) {
	if s == nil {
		return 0, false
	}
	i, ok := s.index[Day(date)]
	return i, ok
}

// BarOn returns the bar dated exactly on date.
func (s *Series) BarOn(date time.Time) (Bar, bool) {
	i, ok := s.IndexOf(date)
	if !ok {
		return Bar{}, false
	}
	return s.bars[i], true
}

// CountThrough returns how many bars are dated on or before date,
// i.e. the length of the history visible on that date.
func (s *Series) CountThrough(date time.Time) int {
	if s == nil {
		return 0
	}
	d := Day(date)
	return sort.Search(len(s.bars), func(i int) bool { return s.bars[i].Date.After(d) })
}

// DatesBetween returns the bar dates within [start, end] inclusive.
func (s *Series) DatesBetween(start, end time.Time) []time.Time {
	if s == nil {
		return nil
	}
	lo := sort.Search(len(s.bars), func(i int) bool { return !s.bars[i].Date.Before(Day(start)) })
	hi := s.CountThrough(end)
	if lo >= hi {
		return nil
	}
	out := make([]time.Time, 0, hi-lo)
	for _, b := range s.bars[lo:hi] {
		out = append(out, b.Date)
	}
	return out
}

func (s *Series) Dates() []time.Time {
	out := make([]time.Time, len(s.bars))
	for i, b := range s.bars {
		out[i] = b.Date
	}
	return out
}

func (s *Series) Closes() []float64 {
	out := make([]float64, len(s.bars))
	for i, b := range s.bars {
		out[i] = b.Close
	}
	return out
}

func (s *Series) Highs() []float64 {
	out := make([]float64, len(s.bars))
	for i, b := range s.bars {
		out[i] = b.High
	}
	return out
}

func (s *Series) Lows() []float64 {
	out := make([]float64, len(s.bars))
	for i, b := range s.bars {
		out[i] = b.Low
	}
	return out
}

func (s *Series) Volumes() []float64 {
	out := make([]float64, len(s.bars))
	for i, b := range s.bars {
		out[i] = b.Volume
	}
	return out
}

// Universe maps ticker -> price history for every instrument in a run.
type Universe map[string]*Series

// SortedTickers returns the universe keys in lexical order.
func (u Universe) SortedTickers() []string {
	out := make([]string, 0, len(u))
	for t := range u {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
