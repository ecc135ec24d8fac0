package strategy

import (
	"time"

	"momentum-backtest/internal/config"
	"momentum-backtest/internal/indicators"
	"momentum-backtest/internal/model"
)

// ComputeATR returns the ATR of s as of date. It needs period+1 bars.
func ComputeATR(s *model.Series, date time.Time, period int) (float64, bool) {
	n := s.CountThrough(date)
	if n < period+1 {
		return 0, false
	}
	bars := s.Bars()[:n]
	high := make([]float64, n)
	low := make([]float64, n)
	cl := make([]float64, n)
	for i, b := range bars {
		high[i], low[i], cl[i] = b.High, b.Low, b.Close
	}
	atr := indicators.ATR(high, low, cl, period)
	v := atr[n-1]
	return v, indicators.Defined(v)
}

// TradeSetup is the sizing outcome for one entry.
type TradeSetup struct {
	EntryPrice   float64 `json:"entry_price"`
	StopLoss     float64 `json:"stop_loss"`
	StopDistance float64 `json:"stop_distance"`
	StopPct      float64 `json:"stop_pct"`
	RiskAmount   float64 `json:"risk_amount"`
	Shares       int     `json:"shares"`
	ATR          float64 `json:"atr"`
}

// CalculateTradeSetup places the stop StopATRMultiple ATRs below entry and
// sizes the trade so that hitting the stop loses RiskPerTrade of the
// account. ok is false when the stop is too wide or no shares fit.
func CalculateTradeSetup(entryPrice, atr, accountValue float64, cfg config.Config) (TradeSetup, bool) {
	stop := entryPrice - cfg.StopATRMultiple*atr
	distance := entryPrice - stop
	if entryPrice <= 0 || distance <= 0 {
		return TradeSetup{}, false
	}
	stopPct := distance / entryPrice * 100
	if stopPct > cfg.MaxStopPercent {
		return TradeSetup{}, false
	}
	risk := accountValue * cfg.RiskPerTrade
	shares := int(risk / distance)
	if shares <= 0 {
		return TradeSetup{}, false
	}
	return TradeSetup{
		EntryPrice:   entryPrice,
		StopLoss:     stop,
		StopDistance: distance,
		StopPct:      stopPct,
		RiskAmount:   risk,
		Shares:       shares,
		ATR:          atr,
	}, true
}

// ExitSignal is a triggered exit and its fill price.
type ExitSignal struct {
	Reason model.ExitReason
	Price  float64
}

// ExitParams are the exit thresholds.
type ExitParams struct {
	RSIThreshold float64
	TimeStopDays int
}

func ExitParamsFrom(cfg config.Config) ExitParams {
	return ExitParams{RSIThreshold: cfg.RSIExitThreshold, TimeStopDays: cfg.TimeStopDays}
}

// CheckExit evaluates, in priority order, the stop (low <= stop, filled at
// the stop), RSI recovery (filled at close) and the time stop (filled at
// close). A NaN rsi skips the RSI check.
func CheckExit(pos model.Position, bar model.Bar, rsi float64, date time.Time, p ExitParams) (ExitSignal, bool) {
	if bar.Low <= pos.StopLoss {
		return ExitSignal{Reason: model.ExitStopLoss, Price: pos.StopLoss}, true
	}
	if indicators.Defined(rsi) && rsi >= p.RSIThreshold {
		return ExitSignal{Reason: model.ExitRSI, Price: bar.Close}, true
	}
	if model.BusinessDaysBetween(pos.EntryDate, date) >= p.TimeStopDays {
		return ExitSignal{Reason: model.ExitTimeStop, Price: bar.Close}, true
	}
	return ExitSignal{}, false
}

// CanOpenPosition gates a new entry on the total and per-sector limits.
func CanOpenPosition(open []model.Position, sector string, cfg config.Config) bool {
	if len(open) >= cfg.MaxPositions {
		return false
	}
	same := 0
	for _, p := range open {
		if p.Sector == sector {
			same++
		}
	}
	return same < cfg.MaxSectorPositions
}
