package model

import "time"

// Position is an open long trade. EntryPrice already includes entry slippage.
type Position struct {
	Ticker     string
	Sector     string
	EntryPrice float64
	EntryDate  time.Time
	Shares     int
	StopLoss   float64
	ATR        float64
}

// CostBasis is the position valued at its entry price.
func (p Position) CostBasis() float64 {
	return p.EntryPrice * float64(p.Shares)
}

// TradeRecord is a completed round trip. It is never mutated after creation.
//
// EntryPrice and ExitPrice are the slipped fills; SlippageEntry/SlippageExit
// are the dollar slippage amounts and Commission is entry + exit.
type TradeRecord struct {
	Ticker        string
	Sector        string
	EntryDate     time.Time
	ExitDate      time.Time
	EntryPrice    float64
	ExitPrice     float64
	Shares        int
	StopLoss      float64
	ATRAtEntry    float64
	ExitReason    ExitReason
	SlippageEntry float64
	SlippageExit  float64
	Commission    float64
}

// PnL is the net profit after slippage and commissions.
func (t TradeRecord) PnL() float64 {
	gross := (t.ExitPrice - t.EntryPrice) * float64(t.Shares)
	return gross - t.SlippageEntry - t.SlippageExit - t.Commission
}

// PnLPct is PnL as a percentage of the entry cost.
func (t TradeRecord) PnLPct() float64 {
	cost := t.EntryPrice * float64(t.Shares)
	if cost == 0 {
		return 0
	}
	return t.PnL() / cost * 100
}

// HoldingDays counts business days between entry and exit.
func (t TradeRecord) HoldingDays() int {
	return BusinessDaysBetween(t.EntryDate, t.ExitDate)
}

func (t TradeRecord) IsWinner() bool { return t.PnL() > 0 }

// DailySnapshot is the end-of-day portfolio state; one per simulated date.
type DailySnapshot struct {
	Date           time.Time
	Cash           float64
	PositionsValue float64
	NumPositions   int
	RegimeBullish  bool
}

// AccountValue is cash plus mark-to-market positions.
func (s DailySnapshot) AccountValue() float64 {
	return s.Cash + s.PositionsValue
}
