package backtest

import (
	"time"

	"momentum-backtest/internal/model"
	"momentum-backtest/internal/strategy"
)

// Result is everything a run produces.
// EquityCurve has one snapshot per simulated trading day, in date order.
type Result struct {
	Start          time.Time
	End            time.Time
	InitialCapital float64

	EquityCurve   []model.DailySnapshot
	Trades        []model.TradeRecord
	Regime        []strategy.RegimeDay
	OpenPositions []model.Position
}

// FinalValue is the account value of the last snapshot.
func (r *Result) FinalValue() float64 {
	if r == nil || len(r.EquityCurve) == 0 {
		return 0
	}
	return r.EquityCurve[len(r.EquityCurve)-1].AccountValue()
}

// TradeRow is a TradeRecord flattened with its derived fields.
// This is the primary artifact for "what happened" in a backtest.
type TradeRow struct {
	Ticker      string           `json:"ticker"`
	Sector      string           `json:"sector"`
	EntryDate   time.Time        `json:"entry_date"`
	ExitDate    time.Time        `json:"exit_date"`
	EntryPrice  float64          `json:"entry_price"`
	ExitPrice   float64          `json:"exit_price"`
	Shares      int              `json:"shares"`
	StopLoss    float64          `json:"stop_loss"`
	ATR         float64          `json:"atr"`
	ExitReason  model.ExitReason `json:"exit_reason"`
	PnL         float64          `json:"pnl"`
	PnLPct      float64          `json:"pnl_pct"`
	HoldingDays int              `json:"holding_days"`
	Winner      bool             `json:"winner"`
}

func TradeRows(trades []model.TradeRecord) []TradeRow {
	out := make([]TradeRow, 0, len(trades))
	for _, t := range trades {
		out = append(out, TradeRow{
			Ticker:      t.Ticker,
			Sector:      t.Sector,
			EntryDate:   t.EntryDate,
			ExitDate:    t.ExitDate,
			EntryPrice:  t.EntryPrice,
			ExitPrice:   t.ExitPrice,
			Shares:      t.Shares,
			StopLoss:    t.StopLoss,
			ATR:         t.ATRAtEntry,
			ExitReason:  t.ExitReason,
			PnL:         t.PnL(),
			PnLPct:      t.PnLPct(),
			HoldingDays: t.HoldingDays(),
			Winner:      t.IsWinner(),
		})
	}
	return out
}

// EquityRow is one line of the equity curve export.
type EquityRow struct {
	Date           time.Time `json:"date"`
	Cash           float64   `json:"cash"`
	PositionsValue float64   `json:"positions_value"`
	AccountValue   float64   `json:"account_value"`
	NumPositions   int       `json:"num_positions"`
	RegimeBullish  bool      `json:"regime_bullish"`
}

func EquityRows(curve []model.DailySnapshot) []EquityRow {
	out := make([]EquityRow, 0, len(curve))
	for _, s := range curve {
		out = append(out, EquityRow{
			Date:           s.Date,
			Cash:           s.Cash,
			PositionsValue: s.PositionsValue,
			AccountValue:   s.AccountValue(),
			NumPositions:   s.NumPositions,
			RegimeBullish:  s.RegimeBullish,
		})
	}
	return out
}
