package backtest

import (
	"time"

	"momentum-backtest/internal/model"
	"momentum-backtest/internal/strategy"
)

// Costs are the execution frictions applied by the Portfolio.
type Costs struct {
	SlippagePct float64 // percent of fill price, per side
	Commission  float64 // fixed dollars, per side
}

// Portfolio owns cash, open positions, the trade log and the daily
// snapshots. It is the only place money state changes.
//
// Positions are keyed by ticker; order keeps entry order so iteration is
// deterministic.
type Portfolio struct {
	cash      float64
	initial   float64
	costs     Costs
	positions map[string]model.Position
	order     []string
	trades    []model.TradeRecord
	snapshots []model.DailySnapshot
}

func NewPortfolio(initialCash float64, costs Costs) *Portfolio {
	return &Portfolio{
		cash:      initialCash,
		initial:   initialCash,
		costs:     costs,
		positions: make(map[string]model.Position),
	}
}

func (p *Portfolio) Cash() float64           { return p.cash }
func (p *Portfolio) InitialCapital() float64 { return p.initial }

func (p *Portfolio) HasPosition(ticker string) bool {
	_, ok := p.positions[ticker]
	return ok
}

// Positions returns the open positions in entry order. The slice is a copy.
func (p *Portfolio) Positions() []model.Position {
	out := make([]model.Position, 0, len(p.order))
	for _, t := range p.order {
		out = append(out, p.positions[t])
	}
	return out
}

// AccountValue is cash plus open positions valued at their entry price.
// This is what sizing reads between snapshots; it is not mark-to-market.
func (p *Portfolio) AccountValue() float64 {
	v := p.cash
	for _, pos := range p.positions {
		v += pos.CostBasis()
	}
	return v
}

// Open buys setup.Shares at setup.EntryPrice plus slippage. When the cost
// exceeds cash the share count is reduced to what cash allows. It returns
// false and leaves state untouched when nothing can be bought.
func (p *Portfolio) Open(setup strategy.TradeSetup, ticker, sector string, date time.Time) bool {
	fill := setup.EntryPrice + setup.EntryPrice*p.costs.SlippagePct/100
	shares := setup.Shares
	cost := fill*float64(shares) + p.costs.Commission
	if cost > p.cash {
		shares = int((p.cash - p.costs.Commission) / fill)
		if shares <= 0 {
			return false
		}
		cost = fill*float64(shares) + p.costs.Commission
	}
	p.cash -= cost
	p.positions[ticker] = model.Position{
		Ticker:     ticker,
		Sector:     sector,
		EntryPrice: fill,
		EntryDate:  model.Day(date),
		Shares:     shares,
		StopLoss:   setup.StopLoss,
		ATR:        setup.ATR,
	}
	p.order = append(p.order, ticker)
	return true
}

// Close sells the whole position at exit.Price less slippage, records the
// trade and removes the position.
func (p *Portfolio) Close(ticker string, exit strategy.ExitSignal, date time.Time) (model.TradeRecord, bool) {
	pos, ok := p.positions[ticker]
	if !ok {
		return model.TradeRecord{}, false
	}
	slip := exit.Price * p.costs.SlippagePct / 100
	fill := exit.Price - slip
	p.cash += fill*float64(pos.Shares) - p.costs.Commission

	trade := model.TradeRecord{
		Ticker:        pos.Ticker,
		Sector:        pos.Sector,
		EntryDate:     pos.EntryDate,
		ExitDate:      model.Day(date),
		EntryPrice:    pos.EntryPrice,
		ExitPrice:     fill,
		Shares:        pos.Shares,
		StopLoss:      pos.StopLoss,
		ATRAtEntry:    pos.ATR,
		ExitReason:    exit.Reason,
		SlippageEntry: pos.EntryPrice * p.costs.SlippagePct / 100 * float64(pos.Shares),
		SlippageExit:  slip * float64(pos.Shares),
		Commission:    p.costs.Commission * 2,
	}
	p.trades = append(p.trades, trade)

	delete(p.positions, ticker)
	for i, t := range p.order {
		if t == ticker {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	return trade, true
}

// Snapshot marks every position to mark(ticker), falling back to the entry
// price when mark has no price, and appends the end-of-day state.
func (p *Portfolio) Snapshot(date time.Time, mark func(ticker string) (float64, bool), bullish bool) model.DailySnapshot {
	var value float64
	for _, t := range p.order {
		pos := p.positions[t]
		price := pos.EntryPrice
		if mark != nil {
			if c, ok := mark(t); ok {
				price = c
			}
		}
		value += price * float64(pos.Shares)
	}
	s := model.DailySnapshot{
		Date:           model.Day(date),
		Cash:           p.cash,
		PositionsValue: value,
		NumPositions:   len(p.positions),
		RegimeBullish:  bullish,
	}
	p.snapshots = append(p.snapshots, s)
	return s
}

// Trades returns the completed trades in exit order.
func (p *Portfolio) Trades() []model.TradeRecord {
	return append([]model.TradeRecord(nil), p.trades...)
}

func (p *Portfolio) Snapshots() []model.DailySnapshot {
	return append([]model.DailySnapshot(nil), p.snapshots...)
}
