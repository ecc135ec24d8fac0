package data

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"momentum-backtest/internal/model"
)

const dateLayout = "2006-01-02"

// BarJSON is the wire form of one daily bar.
type BarJSON struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// BarsResponse is the payload of the bars endpoint and of saved bar files.
type BarsResponse struct {
	Ticker string    `json:"ticker"`
	Bars   []BarJSON `json:"bars"`
}

// TickersResponse is the payload of the tickers endpoint.
type TickersResponse struct {
	Tickers []string `json:"tickers"`
}

func LoadBarsJSON(path string) (*BarsResponse, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var resp BarsResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Series converts the payload into a validated Series.
func (r *BarsResponse) Series() (*model.Series, error) {
	bars := make([]model.Bar, 0, len(r.Bars))
	for i, b := range r.Bars {
		d, err := time.Parse(dateLayout, b.Date)
		if err != nil {
			return nil, fmt.Errorf("%s bar %d: invalid date %q", r.Ticker, i, b.Date)
		}
		bars = append(bars, model.Bar{Date: d, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume})
	}
	return model.NewSeries(r.Ticker, bars)
}

// NewBarsResponse is the inverse of Series.
func NewBarsResponse(s *model.Series) *BarsResponse {
	out := &BarsResponse{Ticker: s.Ticker, Bars: make([]BarJSON, 0, s.Len())}
	for _, b := range s.Bars() {
		out.Bars = append(out.Bars, BarJSON{
			Date: b.Date.Format(dateLayout), Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume,
		})
	}
	return out
}
